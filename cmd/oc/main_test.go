package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, workspace string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--workspace", workspace, "--json"}, args...))
	err := root.Execute()
	return out.String(), err
}

func runJSON(t *testing.T, workspace string, v any, args ...string) {
	t.Helper()
	out, err := run(t, workspace, args...)
	require.NoError(t, err, "oc %s", strings.Join(args, " "))
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestTaskDecisionFlow(t *testing.T) {
	ws := t.TempDir()

	var goal struct{ ID string }
	runJSON(t, ws, &goal, "goal", "create", "Ship v1")
	require.NotEmpty(t, goal.ID)

	var task struct {
		ID      string
		Status  string
		BoardID *string `json:"board_id"`
	}
	runJSON(t, ws, &task, "task", "create", "Write docs", "--goal", goal.ID)
	require.NotNil(t, task.BoardID, "task lands on the default board")
	assert.Equal(t, "todo", task.Status)

	var res struct {
		TaskID     string  `json:"task_id"`
		DecisionID *string `json:"decision_id"`
	}
	runJSON(t, ws, &res, "task", "transition", task.ID, "in_progress")
	assert.Nil(t, res.DecisionID)
	runJSON(t, ws, &res, "task", "transition", task.ID, "waiting_decision", "--decision-title", "Publish?")
	require.NotNil(t, res.DecisionID)

	var pending []struct{ ID, Title string }
	runJSON(t, ws, &pending, "decision", "list")
	require.Len(t, pending, 1)
	assert.Equal(t, "Publish?", pending[0].Title)

	var decision struct{ Status string }
	runJSON(t, ws, &decision, "decision", "resolve", *res.DecisionID, "approve")
	assert.Equal(t, "approved", decision.Status)

	runJSON(t, ws, &task, "task", "show", task.ID)
	assert.Equal(t, "in_progress", task.Status)

	var events []struct{ Type string }
	runJSON(t, ws, &events, "activity", "--task", task.ID)
	require.NotEmpty(t, events)
	assert.Equal(t, "decision_resolved", events[0].Type)
}

func TestInvalidTransitionFails(t *testing.T) {
	ws := t.TempDir()
	var goal struct{ ID string }
	runJSON(t, ws, &goal, "goal", "create", "Ops")
	var task struct{ ID string }
	runJSON(t, ws, &task, "task", "create", "Rotate keys", "--goal", goal.ID)

	_, err := run(t, ws, "task", "transition", task.ID, "done")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed: [in_progress, blocked, canceled]")

	_, err = run(t, ws, "task", "transition", task.ID, "finished")
	require.Error(t, err)
}

func TestConfigInitAndValidate(t *testing.T) {
	ws := t.TempDir()

	_, err := run(t, ws, "config", "validate")
	require.Error(t, err, "missing file")

	_, err = run(t, ws, "config", "init")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(ws, "opsconsole.yml"))
	require.NoError(t, err)

	_, err = run(t, ws, "config", "init")
	require.Error(t, err, "refuses to overwrite")
	_, err = run(t, ws, "config", "init", "--force")
	require.NoError(t, err)

	var res struct {
		OK bool `json:"ok"`
	}
	runJSON(t, ws, &res, "config", "validate")
	assert.True(t, res.OK)
}

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"a=Ship it", " b = Wait "})
	require.NoError(t, err)
	require.Len(t, opts, 2)
	assert.Equal(t, "b", opts[1].Key)
	assert.Equal(t, "Wait", opts[1].Label)

	_, err = parseOptions([]string{"nolabel"})
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	_, err := parseLogLevel("debug")
	assert.NoError(t, err)
	_, err = parseLogLevel("loud")
	assert.Error(t, err)
}

func TestRunAndOutputCommands(t *testing.T) {
	ws := t.TempDir()
	var goal struct{ ID string }
	runJSON(t, ws, &goal, "goal", "create", "Research")

	var r struct {
		ID, Status string
		StartedAt  *string `json:"started_at"`
	}
	runJSON(t, ws, &r, "run", "create", "agent-1", "--goal", goal.ID, "--objective", "survey")
	assert.Equal(t, "queued", r.Status)
	runJSON(t, ws, &r, "run", "status", r.ID, "running", "--summary", "reading")
	assert.Equal(t, "running", r.Status)
	assert.NotNil(t, r.StartedAt)

	var runs []struct{ ID string }
	runJSON(t, ws, &runs, "run", "list", "--agent", "agent-1")
	require.Len(t, runs, 1)

	var out struct {
		ID        string
		Artifacts []struct{ Kind, Ref string }
	}
	runJSON(t, ws, &out, "output", "create", "Findings", "--type", "research", "--goal", goal.ID, "--artifact", "url=https://example.com")
	require.Len(t, out.Artifacts, 1)
	assert.Equal(t, "https://example.com", out.Artifacts[0].Ref)

	var outputs []struct{ ID string }
	runJSON(t, ws, &outputs, "output", "list", "--type", "research")
	require.Len(t, outputs, 1)
	assert.Equal(t, out.ID, outputs[0].ID)

	_, err := run(t, ws, "run", "status", r.ID, "paused")
	assert.Error(t, err)
}

func TestParseArtifacts(t *testing.T) {
	arts, err := parseArtifacts([]string{"file=a.md", " url = https://x?y=1 "})
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "https://x?y=1", arts[1].Ref)

	_, err = parseArtifacts([]string{"noref="})
	assert.Error(t, err)
}
