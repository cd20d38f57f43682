package notes

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC)

func TestAppendReasonNoteEmptyExisting(t *testing.T) {
	got := AppendReasonNote("", "BLOCKED理由", "  spaced  ", Options{Now: fixedNow})

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[BLOCKED理由 2024-03-07 09:05]", lines[0])
	assert.Equal(t, "spaced", lines[1])
	assert.NotContains(t, got, "---")
}

func TestAppendReasonNoteBlankReasonIsNoop(t *testing.T) {
	for _, reason := range []string{"", "   ", "\n\t "} {
		assert.Equal(t, "keep me", AppendReasonNote("keep me", "BLOCKED", reason, Options{Now: fixedNow}))
	}
	assert.Equal(t, "", AppendReasonNote("", "BLOCKED", " ", Options{Now: fixedNow}))
}

func TestAppendReasonNoteSeparator(t *testing.T) {
	got := AppendReasonNote("original body", "BLOCKED", "waiting on vendor", Options{Now: fixedNow})
	assert.Equal(t, "original body\n---\n[BLOCKED 2024-03-07 09:05]\nwaiting on vendor", got)
}

func TestAppendReasonNoteRefHeader(t *testing.T) {
	got := AppendReasonNote("", "REJECTED", "no budget", Options{RefID: "dec-1", Now: fixedNow})
	assert.Equal(t, "[REJECTED 2024-03-07 09:05] (ref:dec-1)\nno budget", got)
}

func TestAppendReasonNoteIdempotentOnRef(t *testing.T) {
	first := AppendReasonNote("body", "REJECTED", "no budget", Options{RefID: "dec-1", Now: fixedNow})
	second := AppendReasonNote(first, "REJECTED", "different words", Options{RefID: "dec-1", Now: fixedNow.Add(time.Hour)})
	assert.Equal(t, first, second)
	assert.Equal(t, 1, strings.Count(second, RefMarker("dec-1")))
}

func TestAppendReasonNoteDifferentRefAppends(t *testing.T) {
	first := AppendReasonNote("body", "REJECTED", "no budget", Options{RefID: "dec-1", Now: fixedNow})
	second := AppendReasonNote(first, "REJECTED", "still no budget", Options{RefID: "dec-2", Now: fixedNow})
	assert.NotEqual(t, first, second)
	assert.Contains(t, second, RefMarker("dec-1"))
	assert.Contains(t, second, RefMarker("dec-2"))
	assert.True(t, strings.HasPrefix(second, first+"\n---\n"))
}

func TestAppendReasonNoteUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	got := AppendReasonNote("", "BLOCKED", "late", Options{Now: time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC).In(loc)})
	assert.True(t, strings.HasPrefix(got, "[BLOCKED 2024-01-02 08:30]"), got)
}

func TestAppendReasonNoteDefaultsToWallClock(t *testing.T) {
	got := AppendReasonNote("", "BLOCKED", "x", Options{})
	assert.Regexp(t, `^\[BLOCKED \d{4}-\d{2}-\d{2} \d{2}:\d{2}\]\nx$`, got)
}
