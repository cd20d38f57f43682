package opsconsolesdk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsconsole/internal/config"
	"opsconsole/internal/db"
	"opsconsole/internal/engine"
	"opsconsole/internal/migrate"
	"opsconsole/internal/server"
)

type fixture struct {
	client *Client
	goalID string
	board  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(ctx, conn))

	e := engine.New(conn, config.Default())
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err = e.EnsureDefaultUser(ctx)
	require.NoError(t, err)
	goal, err := e.CreateGoal(ctx, engine.GoalCreateOptions{Title: "SDK"})
	require.NoError(t, err)
	board, err := e.DefaultBoard(ctx, goal.ID)
	require.NoError(t, err)

	handler, err := server.New(server.Config{Engine: e, Logger: e.Logger})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return fixture{client: New(ts.URL + "/"), goalID: goal.ID, board: board.ID}
}

func TestTaskDecisionRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.client.CreateTask(ctx, CreateTaskInput{
		Title:    "Review PR",
		GoalID:   f.goalID,
		BoardID:  f.board,
		Status:   "in_progress",
		Assignee: &Assignee{Type: "agent", AgentID: "reviewer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "p2", task.Priority)
	require.NotNil(t, task.Assignee)
	assert.Equal(t, "reviewer", task.Assignee.AgentID)

	res, err := f.client.TransitionTask(ctx, task.ID, TransitionInput{Status: "waiting_decision", DecisionTitle: "Merge?"})
	require.NoError(t, err)
	require.NotEmpty(t, res.DecisionID)

	d, err := f.client.GetDecision(ctx, res.DecisionID)
	require.NoError(t, err)
	assert.Equal(t, "pending", d.Status)
	assert.Equal(t, "Merge?", d.Title)
	assert.Equal(t, task.ID, d.TaskID)

	d, err = f.client.ResolveDecision(ctx, d.ID, "request_changes", "", "add tests")
	require.NoError(t, err)
	assert.Equal(t, "changes_requested", d.Status)
	assert.Equal(t, "add tests", d.ResolutionNote)

	got, err := f.client.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "waiting_decision", got.Status)
	assert.Equal(t, d.ID, got.LatestDecisionID)

	moved, err := f.client.MoveTask(ctx, task.ID, "done")
	require.NoError(t, err)
	assert.Equal(t, "done", moved.Status)

	page, err := f.client.Activity(ctx, ActivityQuery{TaskID: task.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "task_moved", page.Items[0].Type)
	assert.Equal(t, "decision_resolved", page.Items[1].Type)
	assert.NotEmpty(t, page.NextCursor)
}

func TestAPIErrorDecoding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.client.CreateTask(ctx, CreateTaskInput{Title: "Fresh", GoalID: f.goalID})
	require.NoError(t, err)

	_, err = f.client.TransitionTask(ctx, task.ID, TransitionInput{Status: "done"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 409, apiErr.StatusCode)
	assert.Equal(t, "invalid_transition", apiErr.Code)
	assert.Equal(t, []string{"in_progress", "blocked", "canceled"}, apiErr.Allowed())

	_, err = f.client.GetDecision(ctx, "missing")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "not_found")
}

func TestDecodeAPIErrorWithoutEnvelope(t *testing.T) {
	err := decodeAPIError(502, []byte("bad gateway"))
	assert.Equal(t, "", err.Code)
	assert.Equal(t, "api error: status=502 body=bad gateway", err.Error())
}
