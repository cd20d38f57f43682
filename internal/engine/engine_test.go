package engine_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"opsconsole/internal/config"
	"opsconsole/internal/db"
	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
	"opsconsole/internal/migrate"
	"opsconsole/internal/repo"
)

var fixedNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	User   domain.User
	Goal   domain.Goal
	Board  domain.Board
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return fixedNow }
	user, err := eng.EnsureDefaultUser(ctx)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	goal, err := eng.CreateGoal(ctx, engine.GoalCreateOptions{Title: "Launch"})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	board, err := eng.DefaultBoard(ctx, goal.ID)
	if err != nil {
		t.Fatalf("default board: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, User: user, Goal: goal, Board: board}
}

func (env testEnv) newTask(t *testing.T, status domain.TaskStatus) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title:   "Write report",
		GoalID:  env.Goal.ID,
		BoardID: env.Board.ID,
		Status:  status,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (env testEnv) task(t *testing.T, id string) domain.Task {
	t.Helper()
	task, err := env.Engine.GetTask(env.Ctx, id)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	return task
}

func (env testEnv) decision(t *testing.T, id string) domain.Decision {
	t.Helper()
	d, err := env.Engine.GetDecision(env.Ctx, id)
	if err != nil {
		t.Fatalf("get decision: %v", err)
	}
	return d
}

// taskActivity returns the activity types recorded for a task, newest first.
func (env testEnv) taskActivity(t *testing.T, taskID string) []domain.ActivityType {
	t.Helper()
	events, err := env.Engine.ListActivity(env.Ctx, engine.ActivityListOptions{TaskID: taskID, Limit: 200})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	var types []domain.ActivityType
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func (env testEnv) activityCount(t *testing.T) int {
	t.Helper()
	n, err := env.Engine.Repo.CountActivity(env.Ctx)
	if err != nil {
		t.Fatalf("count activity: %v", err)
	}
	return n
}

func TestWaitingDecisionThenApprove(t *testing.T) {
	env := newTestEnv(t)
	task := env.newTask(t, domain.TaskInProgress)

	res, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskWaitingDecision, engine.TransitionOptions{})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if res.TaskID != task.ID || res.DecisionID == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	d := env.decision(t, *res.DecisionID)
	if d.Status != domain.DecisionPending || d.Type != domain.DecisionNeeded {
		t.Fatalf("decision = %s/%s", d.Type, d.Status)
	}
	if d.Title != "Decision needed: Write report" {
		t.Fatalf("auto title = %q", d.Title)
	}
	if d.TaskID == nil || *d.TaskID != task.ID || d.GoalID == nil || *d.GoalID != env.Goal.ID {
		t.Fatalf("decision links = task %v goal %v", d.TaskID, d.GoalID)
	}
	got := env.task(t, task.ID)
	if got.Status != domain.TaskWaitingDecision {
		t.Fatalf("task status = %s", got.Status)
	}
	if got.LatestDecisionID == nil || *got.LatestDecisionID != d.ID {
		t.Fatalf("latest decision = %v, want %s", got.LatestDecisionID, d.ID)
	}
	want := []domain.ActivityType{domain.ActivityTaskUpdated, domain.ActivityDecisionCreated, domain.ActivityTaskCreated}
	if types := env.taskActivity(t, task.ID); !reflect.DeepEqual(types, want) {
		t.Fatalf("activity = %v, want %v", types, want)
	}

	resolvedID, err := env.Engine.ResolveDecision(env.Ctx, d.ID, domain.ActionApprove, env.User.ID, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolvedID != d.ID {
		t.Fatalf("resolve returned %q, want %q", resolvedID, d.ID)
	}
	d = env.decision(t, d.ID)
	if d.Status != domain.DecisionApproved {
		t.Fatalf("decision status = %s", d.Status)
	}
	if d.ResolvedByUserID == nil || *d.ResolvedByUserID != env.User.ID || d.ResolvedAt == nil {
		t.Fatalf("resolution fields not set: %+v", d)
	}
	if d.ResolutionNote != nil {
		t.Fatalf("empty note should stay unset, got %q", *d.ResolutionNote)
	}
	if got := env.task(t, task.ID); got.Status != domain.TaskInProgress {
		t.Fatalf("task status after approve = %s", got.Status)
	}
	types := env.taskActivity(t, task.ID)
	if types[0] != domain.ActivityDecisionResolved || types[1] != domain.ActivityTaskUpdated {
		t.Fatalf("resolve activity = %v", types[:2])
	}
}

func TestInvalidTransitionListsAllowed(t *testing.T) {
	env := newTestEnv(t)
	task := env.newTask(t, domain.TaskTodo)
	before := env.activityCount(t)

	_, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskDone, engine.TransitionOptions{})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if !strings.Contains(err.Error(), "[in_progress, blocked, canceled]") {
		t.Fatalf("error should enumerate allowed destinations: %v", err)
	}
	var te domain.TransitionError
	if !errors.As(err, &te) || !reflect.DeepEqual(te.Allowed, []domain.TaskStatus{domain.TaskInProgress, domain.TaskBlocked, domain.TaskCanceled}) {
		t.Fatalf("allowed = %v", te.Allowed)
	}
	if got := env.task(t, task.ID); got.Status != domain.TaskTodo {
		t.Fatalf("status changed to %s", got.Status)
	}
	if after := env.activityCount(t); after != before {
		t.Fatalf("activity written on failed transition: %d -> %d", before, after)
	}
}

func TestTransitionTable(t *testing.T) {
	env := newTestEnv(t)
	for _, from := range domain.TaskStatuses {
		for _, to := range domain.TaskStatuses {
			task := env.newTask(t, from)
			_, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, to, engine.TransitionOptions{})
			allowed := domain.CanTransition(from, to)
			switch {
			case allowed && err != nil:
				t.Errorf("%s -> %s: unexpected error %v", from, to, err)
			case !allowed && !errors.Is(err, domain.ErrInvalidTransition):
				t.Errorf("%s -> %s: expected invalid transition, got %v", from, to, err)
			}
			want := from
			if allowed {
				want = to
			}
			if got := env.task(t, task.ID).Status; got != want {
				t.Errorf("%s -> %s: status = %s, want %s", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesOnlyReopen(t *testing.T) {
	env := newTestEnv(t)
	for _, from := range []domain.TaskStatus{domain.TaskDone, domain.TaskCanceled} {
		for _, to := range domain.TaskStatuses {
			if to == domain.TaskTodo {
				continue
			}
			task := env.newTask(t, from)
			if _, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, to, engine.TransitionOptions{}); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("%s -> %s: expected invalid transition, got %v", from, to, err)
			}
		}
		task := env.newTask(t, from)
		if _, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskTodo, engine.TransitionOptions{}); err != nil {
			t.Fatalf("%s -> todo: %v", from, err)
		}
	}
}

func TestTransitionMissingTask(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.TransitionTaskStatus(env.Ctx, "nope", domain.TaskDone, engine.TransitionOptions{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBlockedReasonAppendsNote(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title:       "Ship",
		Description: "Original body",
		GoalID:      env.Goal.ID,
		BoardID:     env.Board.ID,
		Status:      domain.TaskInProgress,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskBlocked, engine.TransitionOptions{BlockedReason: "  waiting on legal  "}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	got := env.task(t, task.ID)
	want := "Original body\n---\n[BLOCKED 2024-01-01 00:00]\nwaiting on legal"
	if got.Description != want {
		t.Fatalf("description = %q, want %q", got.Description, want)
	}
	if got.Status != domain.TaskBlocked {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestBlockedWithoutReasonKeepsDescription(t *testing.T) {
	env := newTestEnv(t)
	for _, reason := range []string{"", "   \t"} {
		task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
			Title: "Ship", Description: "keep", GoalID: env.Goal.ID, Status: domain.TaskTodo,
		})
		if err != nil {
			t.Fatalf("create task: %v", err)
		}
		res, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskBlocked, engine.TransitionOptions{BlockedReason: reason})
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if res.DecisionID != nil {
			t.Fatalf("blocked must not open a decision")
		}
		if got := env.task(t, task.ID); got.Description != "keep" || got.Status != domain.TaskBlocked {
			t.Fatalf("reason %q: got %q / %s", reason, got.Description, got.Status)
		}
	}
}

func TestBlockedReasonIgnoredForOtherDestinations(t *testing.T) {
	env := newTestEnv(t)
	task := env.newTask(t, domain.TaskTodo)
	if _, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskInProgress, engine.TransitionOptions{BlockedReason: "ignored"}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got := env.task(t, task.ID); got.Description != "" {
		t.Fatalf("description = %q", got.Description)
	}
}

func TestCustomDecisionTitle(t *testing.T) {
	env := newTestEnv(t)
	task := env.newTask(t, domain.TaskInProgress)
	res, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskWaitingDecision, engine.TransitionOptions{DecisionTitle: "Pick a vendor"})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if d := env.decision(t, *res.DecisionID); d.Title != "Pick a vendor" {
		t.Fatalf("title = %q", d.Title)
	}
}

func TestLongTaskTitleCanWaitOnDecision(t *testing.T) {
	env := newTestEnv(t)
	title := strings.Repeat("é", 200)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title:  title,
		GoalID: env.Goal.ID,
		Status: domain.TaskInProgress,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	res, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskWaitingDecision, engine.TransitionOptions{})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	d := env.decision(t, *res.DecisionID)
	if n := len([]rune(d.Title)); n != 200 {
		t.Fatalf("decision title has %d runes, want 200", n)
	}
	if !strings.HasPrefix(d.Title, "Decision needed: é") {
		t.Fatalf("title = %q", d.Title)
	}
	if got := env.task(t, task.ID); got.Status != domain.TaskWaitingDecision {
		t.Fatalf("task status = %s", got.Status)
	}
}

func TestCustomDecisionTitleTooLong(t *testing.T) {
	env := newTestEnv(t)
	task := env.newTask(t, domain.TaskInProgress)
	_, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskWaitingDecision,
		engine.TransitionOptions{DecisionTitle: strings.Repeat("x", 201)})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := env.task(t, task.ID); got.Status != domain.TaskInProgress {
		t.Fatalf("task status = %s", got.Status)
	}
}

func TestEachWaitingDecisionOpensNewDecision(t *testing.T) {
	env := newTestEnv(t)
	task := env.newTask(t, domain.TaskInProgress)
	first, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskWaitingDecision, engine.TransitionOptions{})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if _, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskInProgress, engine.TransitionOptions{}); err != nil {
		t.Fatalf("back to in_progress: %v", err)
	}
	second, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskWaitingDecision, engine.TransitionOptions{})
	if err != nil {
		t.Fatalf("transition again: %v", err)
	}
	if *first.DecisionID == *second.DecisionID {
		t.Fatalf("expected a new decision")
	}
	if got := env.task(t, task.ID); *got.LatestDecisionID != *second.DecisionID {
		t.Fatalf("latest decision = %s", *got.LatestDecisionID)
	}
	pending, err := env.Engine.ListDecisions(env.Ctx, "", 0)
	if err != nil {
		t.Fatalf("list decisions: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending decisions = %d", len(pending))
	}
}

func (env testEnv) waitingTask(t *testing.T, description string) (domain.Task, string) {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "Migrate db", Description: description, GoalID: env.Goal.ID, BoardID: env.Board.ID, Status: domain.TaskInProgress,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	res, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskWaitingDecision, engine.TransitionOptions{DecisionTitle: "Approve migration"})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	return task, *res.DecisionID
}

func TestRejectBlocksTaskWithNote(t *testing.T) {
	env := newTestEnv(t)
	task, decisionID := env.waitingTask(t, "plan")

	if _, err := env.Engine.ResolveDecision(env.Ctx, decisionID, domain.ActionReject, env.User.ID, "  too risky  "); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := env.task(t, task.ID)
	if got.Status != domain.TaskBlocked {
		t.Fatalf("status = %s", got.Status)
	}
	want := "plan\n---\n[REJECTED 2024-01-01 00:00] (ref:" + decisionID + ")\nDecision rejected: too risky"
	if got.Description != want {
		t.Fatalf("description = %q, want %q", got.Description, want)
	}
	d := env.decision(t, decisionID)
	if d.Status != domain.DecisionRejected || d.ResolutionNote == nil || *d.ResolutionNote != "too risky" {
		t.Fatalf("decision = %s note %v", d.Status, d.ResolutionNote)
	}
}

func TestRejectWithoutNoteUsesDecisionTitle(t *testing.T) {
	env := newTestEnv(t)
	task, decisionID := env.waitingTask(t, "")
	if _, err := env.Engine.ResolveDecision(env.Ctx, decisionID, domain.ActionReject, env.User.ID, "   "); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := env.task(t, task.ID)
	if !strings.HasSuffix(got.Description, "\nDecision rejected: Approve migration") {
		t.Fatalf("description = %q", got.Description)
	}
	if strings.Contains(got.Description, "---") {
		t.Fatalf("empty description should not get a separator: %q", got.Description)
	}
}

func TestRequestChangesLeavesTask(t *testing.T) {
	env := newTestEnv(t)
	task, decisionID := env.waitingTask(t, "body")
	if _, err := env.Engine.ResolveDecision(env.Ctx, decisionID, domain.ActionRequestChanges, env.User.ID, "more detail"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := env.task(t, task.ID)
	if got.Status != domain.TaskWaitingDecision || got.Description != "body" {
		t.Fatalf("task changed: %s %q", got.Status, got.Description)
	}
	if d := env.decision(t, decisionID); d.Status != domain.DecisionChangesRequested {
		t.Fatalf("decision status = %s", d.Status)
	}
	if types := env.taskActivity(t, task.ID); types[0] != domain.ActivityDecisionResolved || types[1] != domain.ActivityTaskUpdated {
		t.Fatalf("activity = %v", types)
	}
}

func TestResolveSkipsTaskNotWaiting(t *testing.T) {
	env := newTestEnv(t)
	task := env.newTask(t, domain.TaskInProgress)
	d, err := env.Engine.CreateDecision(env.Ctx, engine.DecisionCreateOptions{
		Type: domain.DecisionExecutionApproval, Title: "Run migration", TaskID: task.ID, GoalID: env.Goal.ID,
	})
	if err != nil {
		t.Fatalf("create decision: %v", err)
	}
	if _, err := env.Engine.ResolveDecision(env.Ctx, d.ID, domain.ActionReject, env.User.ID, "no"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := env.task(t, task.ID)
	if got.Status != domain.TaskInProgress || got.Description != "" {
		t.Fatalf("task changed: %s %q", got.Status, got.Description)
	}
}

func TestResolveNonPendingFailsWithoutMutation(t *testing.T) {
	env := newTestEnv(t)
	task, decisionID := env.waitingTask(t, "")
	if _, err := env.Engine.ResolveDecision(env.Ctx, decisionID, domain.ActionApprove, env.User.ID, "ok"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskWaitingDecision, engine.TransitionOptions{}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	decisionBefore := env.decision(t, decisionID)
	taskBefore := env.task(t, task.ID)
	countBefore := env.activityCount(t)

	for _, action := range []domain.ResolveAction{domain.ActionApprove, domain.ActionReject, domain.ActionRequestChanges} {
		_, err := env.Engine.ResolveDecision(env.Ctx, decisionID, action, env.User.ID, "again")
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("%s: expected invalid state, got %v", action, err)
		}
		if !strings.Contains(err.Error(), "not pending") {
			t.Fatalf("error = %v", err)
		}
	}
	if got := env.decision(t, decisionID); !reflect.DeepEqual(got, decisionBefore) {
		t.Fatalf("decision mutated: %+v", got)
	}
	if got := env.task(t, task.ID); !reflect.DeepEqual(got, taskBefore) {
		t.Fatalf("task mutated: %+v", got)
	}
	if after := env.activityCount(t); after != countBefore {
		t.Fatalf("activity written: %d -> %d", countBefore, after)
	}
}

func TestResolveErrors(t *testing.T) {
	env := newTestEnv(t)
	_, decisionID := env.waitingTask(t, "")
	countBefore := env.activityCount(t)

	if _, err := env.Engine.ResolveDecision(env.Ctx, "missing", domain.ActionApprove, env.User.ID, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing decision: %v", err)
	}
	if _, err := env.Engine.ResolveDecision(env.Ctx, decisionID, domain.ActionApprove, "ghost", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing user: %v", err)
	}
	if _, err := env.Engine.ResolveDecision(env.Ctx, decisionID, domain.ResolveAction("cancel"), env.User.ID, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad action: %v", err)
	}
	if d := env.decision(t, decisionID); d.Status != domain.DecisionPending {
		t.Fatalf("decision status = %s", d.Status)
	}
	if after := env.activityCount(t); after != countBefore {
		t.Fatalf("activity written: %d -> %d", countBefore, after)
	}
}

func TestResolutionNoteCapped(t *testing.T) {
	env := newTestEnv(t)
	_, decisionID := env.waitingTask(t, "")
	long := strings.Repeat("n", 1500)
	if _, err := env.Engine.ResolveDecision(env.Ctx, decisionID, domain.ActionRequestChanges, env.User.ID, "  "+long+"  "); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	d := env.decision(t, decisionID)
	if d.ResolutionNote == nil || len(*d.ResolutionNote) != 1000 {
		t.Fatalf("note length = %v", d.ResolutionNote)
	}
}

func TestTransitionIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	_, existing := env.waitingTask(t, "")
	task := env.newTask(t, domain.TaskInProgress)
	countBefore := env.activityCount(t)

	// Reusing an id makes the decision insert fail after earlier writes.
	env.Engine.NewID = func() string { return existing }
	_, err := env.Engine.TransitionTaskStatus(env.Ctx, task.ID, domain.TaskWaitingDecision, engine.TransitionOptions{})
	if err == nil {
		t.Fatalf("expected insert failure")
	}
	got := env.task(t, task.ID)
	if got.Status != domain.TaskInProgress || got.LatestDecisionID != nil {
		t.Fatalf("partial transition applied: %s %v", got.Status, got.LatestDecisionID)
	}
	if after := env.activityCount(t); after != countBefore {
		t.Fatalf("activity written: %d -> %d", countBefore, after)
	}
}

func TestMoveStatusIsUnchecked(t *testing.T) {
	env := newTestEnv(t)
	task := env.newTask(t, domain.TaskTodo)
	movedID, err := env.Engine.MoveStatus(env.Ctx, task.ID, domain.TaskDone)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if movedID != task.ID {
		t.Fatalf("move returned %q, want %q", movedID, task.ID)
	}
	if _, err := env.Engine.MoveStatus(env.Ctx, task.ID, domain.TaskWaitingDecision); err != nil {
		t.Fatalf("move: %v", err)
	}
	got := env.task(t, task.ID)
	if got.Status != domain.TaskWaitingDecision || got.LatestDecisionID != nil {
		t.Fatalf("got %s latest=%v", got.Status, got.LatestDecisionID)
	}
	want := []domain.ActivityType{domain.ActivityTaskMoved, domain.ActivityTaskMoved, domain.ActivityTaskCreated}
	if types := env.taskActivity(t, task.ID); !reflect.DeepEqual(types, want) {
		t.Fatalf("activity = %v", types)
	}
	pending, err := env.Engine.ListDecisions(env.Ctx, domain.DecisionPending, 0)
	if err != nil {
		t.Fatalf("list decisions: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("move must not open decisions, found %d", len(pending))
	}
}

func TestMoveStatusRequiresBoard(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Loose", GoalID: env.Goal.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.Engine.MoveStatus(env.Ctx, task.ID, domain.TaskDone); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := env.Engine.MoveStatus(env.Ctx, "missing", domain.TaskDone); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		opts engine.TaskCreateOptions
		want error
	}{
		{"missing title", engine.TaskCreateOptions{Title: "  ", GoalID: env.Goal.ID}, domain.ErrValidation},
		{"long title", engine.TaskCreateOptions{Title: strings.Repeat("x", 201), GoalID: env.Goal.ID}, domain.ErrValidation},
		{"unknown goal", engine.TaskCreateOptions{Title: "x", GoalID: "nope"}, domain.ErrNotFound},
		{"unknown board", engine.TaskCreateOptions{Title: "x", GoalID: env.Goal.ID, BoardID: "nope"}, domain.ErrNotFound},
		{"bad status", engine.TaskCreateOptions{Title: "x", GoalID: env.Goal.ID, Status: "later"}, domain.ErrValidation},
		{"bad due", engine.TaskCreateOptions{Title: "x", GoalID: env.Goal.ID, DueAt: "tomorrow"}, domain.ErrValidation},
		{"assignee mismatch", engine.TaskCreateOptions{Title: "x", GoalID: env.Goal.ID, Assignee: &domain.AssigneeRef{Type: "human", AgentID: "a1"}}, domain.ErrValidation},
		{"unknown user", engine.TaskCreateOptions{Title: "x", GoalID: env.Goal.ID, Assignee: &domain.AssigneeRef{Type: "human", UserID: "ghost"}}, domain.ErrNotFound},
	}
	countBefore := env.activityCount(t)
	for _, tc := range cases {
		if _, err := env.Engine.CreateTask(env.Ctx, tc.opts); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
	if after := env.activityCount(t); after != countBefore {
		t.Fatalf("activity written: %d -> %d", countBefore, after)
	}
}

func TestCreateTaskWithAssignee(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "Agent work", GoalID: env.Goal.ID, Priority: domain.PriorityP1,
		DueAt:    "2024-01-05T09:00:00+09:00",
		Assignee: &domain.AssigneeRef{Type: "agent", AgentID: "agent-7"},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	got := env.task(t, task.ID)
	if got.Assignee != (domain.AgentAssignee{AgentID: "agent-7"}) {
		t.Fatalf("assignee = %#v", got.Assignee)
	}
	if got.DueAt == nil || *got.DueAt != "2024-01-05T00:00:00Z" {
		t.Fatalf("due = %v", got.DueAt)
	}
	updated, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:       task.ID,
		Assignee: &domain.AssigneeRef{Type: "human", UserID: env.User.ID},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Assignee != (domain.HumanAssignee{UserID: env.User.ID}) {
		t.Fatalf("assignee = %#v", updated.Assignee)
	}
	cleared, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, ClearAssignee: true})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.Assignee != nil || env.task(t, task.ID).Assignee != nil {
		t.Fatalf("assignee not cleared")
	}
}

func TestListTasksAndOverdue(t *testing.T) {
	env := newTestEnv(t)
	onBoard := env.newTask(t, domain.TaskTodo)
	loose, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Loose", GoalID: env.Goal.ID, DueAt: "2023-12-31T00:00:00Z"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Closed", GoalID: env.Goal.ID, DueAt: "2023-12-30T00:00:00Z", Status: domain.TaskDone}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Future", GoalID: env.Goal.ID, DueAt: "2024-02-01T00:00:00Z"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	unassigned, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{Unassigned: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unassigned) != 3 {
		t.Fatalf("unassigned = %d", len(unassigned))
	}
	byBoard, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{BoardID: env.Board.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byBoard) != 1 || byBoard[0].ID != onBoard.ID {
		t.Fatalf("by board = %+v", byBoard)
	}
	done, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{Status: domain.TaskDone})
	if err != nil || len(done) != 1 {
		t.Fatalf("done = %d, %v", len(done), err)
	}
	overdue, err := env.Engine.ListOverdueTasks(env.Ctx, 0)
	if err != nil {
		t.Fatalf("overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != loose.ID {
		t.Fatalf("overdue = %+v", overdue)
	}
}

func TestCreateGoalAddsDefaultBoard(t *testing.T) {
	env := newTestEnv(t)
	if env.Board.Name != "Launch Board" || env.Board.GoalID == nil || *env.Board.GoalID != env.Goal.ID {
		t.Fatalf("default board = %+v", env.Board)
	}
	events, err := env.Engine.ListActivity(env.Ctx, engine.ActivityListOptions{GoalID: env.Goal.ID})
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.ActivityGoalCreated || events[0].Message != "Goal created: Launch" {
		t.Fatalf("events = %+v", events)
	}
	title := "Launch v2"
	paused := "paused"
	g, err := env.Engine.UpdateGoal(env.Ctx, engine.GoalUpdateOptions{ID: env.Goal.ID, Title: &title, Status: &paused})
	if err != nil {
		t.Fatalf("update goal: %v", err)
	}
	if g.Title != title || g.Status != "paused" {
		t.Fatalf("goal = %+v", g)
	}
	bad := "frozen"
	if _, err := env.Engine.UpdateGoal(env.Ctx, engine.GoalUpdateOptions{ID: env.Goal.ID, Status: &bad}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateBoardColumns(t *testing.T) {
	env := newTestEnv(t)
	b, err := env.Engine.CreateBoard(env.Ctx, engine.BoardCreateOptions{Name: "Pipeline", Kind: "content_pipeline", Columns: []string{" draft ", "review", "published"}})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	got, err := env.Engine.GetBoard(env.Ctx, b.ID)
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	if !reflect.DeepEqual(got.Columns, []string{"draft", "review", "published"}) {
		t.Fatalf("columns = %v", got.Columns)
	}
	for _, cols := range [][]string{{"a", "a"}, {""}, {strings.Repeat("c", 51)}} {
		if _, err := env.Engine.CreateBoard(env.Ctx, engine.BoardCreateOptions{Name: "Bad", Columns: cols}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("columns %v: got %v", cols, err)
		}
	}
	if _, err := env.Engine.CreateBoard(env.Ctx, engine.BoardCreateOptions{Name: "Orphan", GoalID: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateDecisionValidation(t *testing.T) {
	env := newTestEnv(t)
	opts := make([]domain.DecisionOption, 11)
	for i := range opts {
		opts[i] = domain.DecisionOption{Key: string(rune('a' + i)), Label: "opt"}
	}
	if _, err := env.Engine.CreateDecision(env.Ctx, engine.DecisionCreateOptions{Type: domain.DecisionClarification, Title: "x", Options: opts}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("too many options: %v", err)
	}
	if _, err := env.Engine.CreateDecision(env.Ctx, engine.DecisionCreateOptions{Type: "vote", Title: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad type: %v", err)
	}
	if _, err := env.Engine.CreateDecision(env.Ctx, engine.DecisionCreateOptions{Type: domain.DecisionMergeReview, Title: "x", TaskID: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing task: %v", err)
	}
	d, err := env.Engine.CreateDecision(env.Ctx, engine.DecisionCreateOptions{
		Type:           domain.DecisionRiskException,
		Title:          "Allow prod write",
		Options:        []domain.DecisionOption{{Key: "yes", Label: "Allow"}, {Key: "no", Label: "Deny", Risk: "low"}},
		Recommendation: "no",
		ExecutionPreview: &domain.ExecutionPreview{
			Commands:   []string{"psql -f fix.sql"},
			FileWrites: []domain.FileWrite{{Path: "fix.sql"}},
		},
	})
	if err != nil {
		t.Fatalf("create decision: %v", err)
	}
	got := env.decision(t, d.ID)
	if len(got.Options) != 2 || got.Recommendation != "no" || got.ExecutionPreview == nil || got.ExecutionPreview.Commands[0] != "psql -f fix.sql" {
		t.Fatalf("decision = %+v", got)
	}
}

func TestComplianceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.Engine.CreateComplianceEvent(env.Ctx, engine.ComplianceCreateOptions{
		Severity: domain.SeverityHigh, Message: "agent tried rm -rf", AttemptedAction: "rm -rf /", AgentID: "agent-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	open, err := env.Engine.ListComplianceEvents(env.Ctx, false, "", 0)
	if err != nil || len(open) != 1 {
		t.Fatalf("open = %d, %v", len(open), err)
	}
	resolved, err := env.Engine.ResolveComplianceEvent(env.Ctx, c.ID, " handled ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved.Resolved || resolved.ResolvedNote == nil || *resolved.ResolvedNote != "handled" {
		t.Fatalf("resolved = %+v", resolved)
	}
	if _, err := env.Engine.ResolveComplianceEvent(env.Ctx, c.ID, ""); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second resolve: %v", err)
	}
	if _, err := env.Engine.CreateComplianceEvent(env.Ctx, engine.ComplianceCreateOptions{Severity: "fatal", Message: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad severity: %v", err)
	}
}

func TestStatusSummary(t *testing.T) {
	env := newTestEnv(t)
	env.newTask(t, domain.TaskTodo)
	env.newTask(t, domain.TaskTodo)
	env.waitingTask(t, "")
	if _, err := env.Engine.CreateComplianceEvent(env.Ctx, engine.ComplianceCreateOptions{Severity: domain.SeverityWarn, Message: "m"}); err != nil {
		t.Fatalf("compliance: %v", err)
	}
	s, err := env.Engine.Status(env.Ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if s.TaskCounts[domain.TaskTodo] != 2 || s.TaskCounts[domain.TaskWaitingDecision] != 1 || s.TaskCounts[domain.TaskDone] != 0 {
		t.Fatalf("counts = %v", s.TaskCounts)
	}
	if s.PendingDecisions != 1 || s.UnresolvedCompliance != 1 {
		t.Fatalf("summary = %+v", s)
	}
}

func TestEnsureDefaultUserIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	again, err := env.Engine.EnsureDefaultUser(env.Ctx)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if again.ID != env.User.ID || again.DisplayName != "Local User" {
		t.Fatalf("user = %+v", again)
	}
	users, err := env.Engine.ListUsers(env.Ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("users = %d, %v", len(users), err)
	}
}

func TestRepoNotFoundAlias(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Repo.GetDecision(env.Ctx, "missing")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected repo.ErrNotFound, got %v", err)
	}
}
