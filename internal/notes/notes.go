// Package notes appends timestamped audit annotations to free-text fields.
package notes

import (
	"strings"
	"time"
)

const (
	separator    = "\n---\n"
	headerLayout = "2006-01-02 15:04"
)

// Options tune a single append. A zero Now means wall-clock time.
type Options struct {
	RefID string
	Now   time.Time
}

// RefMarker is the literal text that identifies a note's causal reference.
func RefMarker(refID string) string {
	return "(ref:" + refID + ")"
}

// AppendReasonNote adds a "[label YYYY-MM-DD HH:MM]" header and the trimmed
// reason to existing. It returns existing unchanged when the reason is blank
// or when a note carrying the same RefID is already present.
func AppendReasonNote(existing, label, reason string, opts Options) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return existing
	}
	if opts.RefID != "" && strings.Contains(existing, RefMarker(opts.RefID)) {
		return existing
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	var b strings.Builder
	if existing != "" {
		b.WriteString(existing)
		b.WriteString(separator)
	}
	b.WriteString("[")
	b.WriteString(label)
	b.WriteString(" ")
	b.WriteString(now.Format(headerLayout))
	b.WriteString("]")
	if opts.RefID != "" {
		b.WriteString(" ")
		b.WriteString(RefMarker(opts.RefID))
	}
	b.WriteString("\n")
	b.WriteString(reason)
	return b.String()
}
