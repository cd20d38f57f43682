package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"opsconsole/internal/activity"
	"opsconsole/internal/domain"
	"opsconsole/internal/notes"
	"opsconsole/internal/repo"
	"opsconsole/internal/telemetry"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title       string
	Description string
	GoalID      string
	BoardID     string
	Status      domain.TaskStatus
	Priority    domain.Priority
	DueAt       string
	Assignee    *domain.AssigneeRef
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (t domain.Task, err error) {
	ctx, end := telemetry.StartOp(ctx, "task.create")
	defer func() { end(err) }()

	limits := e.cfg().Limits
	title, err := requireText("title", opts.Title, limits.Title)
	if err != nil {
		return t, err
	}
	desc, err := limitText("description", strings.TrimSpace(opts.Description), limits.Description)
	if err != nil {
		return t, err
	}
	if strings.TrimSpace(opts.GoalID) == "" {
		return t, domain.ValidationError{Field: "goal_id", Reason: "required"}
	}
	status := opts.Status
	if status == "" {
		status = domain.TaskTodo
	}
	if !status.Valid() {
		return t, domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown task status %q", status)}
	}
	priority := opts.Priority
	if priority == "" {
		priority = domain.PriorityP2
	}
	if priority, err = domain.ParsePriority(string(priority)); err != nil {
		return t, err
	}
	dueAt, err := normalizeTime("due_at", opts.DueAt)
	if err != nil {
		return t, err
	}
	var assignee domain.Assignee
	if opts.Assignee != nil {
		if assignee, err = opts.Assignee.Assignee(); err != nil {
			return t, err
		}
	}

	now := e.stamp()
	t = domain.Task{
		ID:          e.newID(),
		Title:       title,
		Description: desc,
		GoalID:      strings.TrimSpace(opts.GoalID),
		BoardID:     optionalString(opts.BoardID),
		Status:      status,
		Priority:    priority,
		DueAt:       dueAt,
		Assignee:    assignee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetGoalTx(ctx, tx, t.GoalID); err != nil {
			return err
		}
		if t.BoardID != nil {
			if _, err := e.Repo.GetBoardTx(ctx, tx, *t.BoardID); err != nil {
				return err
			}
		}
		if h, ok := assignee.(domain.HumanAssignee); ok {
			if _, err := e.Repo.GetUserTx(ctx, tx, h.UserID); err != nil {
				return err
			}
		}
		if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return e.appendActivity(ctx, tx, domain.ActivityTaskCreated, "Task created: "+t.Title, activity.Refs{GoalID: t.GoalID, TaskID: t.ID})
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions is a field patch; nil leaves a field as is. Status here
// is an unchecked overwrite, like MoveStatus.
type TaskUpdateOptions struct {
	ID            string
	Title         *string
	Description   *string
	GoalID        *string
	BoardID       *string
	Status        *domain.TaskStatus
	Priority      *domain.Priority
	DueAt         *string
	Assignee      *domain.AssigneeRef
	ClearAssignee bool
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (t domain.Task, err error) {
	ctx, end := telemetry.StartOp(ctx, "task.update", attribute.String("task.id", opts.ID))
	defer func() { end(err) }()

	limits := e.cfg().Limits
	var assignee domain.Assignee
	if opts.Assignee != nil {
		if opts.ClearAssignee {
			return t, domain.ValidationError{Field: "assignee", Reason: "cannot set and clear in one update"}
		}
		if assignee, err = opts.Assignee.Assignee(); err != nil {
			return t, err
		}
	}
	var title, desc, dueAt *string
	if opts.Title != nil {
		v, err := requireText("title", *opts.Title, limits.Title)
		if err != nil {
			return t, err
		}
		title = &v
	}
	if opts.Description != nil {
		v, err := limitText("description", strings.TrimSpace(*opts.Description), limits.Description)
		if err != nil {
			return t, err
		}
		desc = &v
	}
	if opts.DueAt != nil {
		if dueAt, err = normalizeTime("due_at", *opts.DueAt); err != nil {
			return t, err
		}
	}
	if opts.Status != nil && !opts.Status.Valid() {
		return t, domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown task status %q", *opts.Status)}
	}
	if opts.Priority != nil {
		if _, err := domain.ParsePriority(string(*opts.Priority)); err != nil {
			return t, err
		}
	}

	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.Repo.GetTaskTx(ctx, tx, opts.ID)
		if err != nil {
			return err
		}
		if title != nil {
			cur.Title = *title
		}
		if desc != nil {
			cur.Description = *desc
		}
		if opts.GoalID != nil {
			if _, err := e.Repo.GetGoalTx(ctx, tx, *opts.GoalID); err != nil {
				return err
			}
			cur.GoalID = *opts.GoalID
		}
		if opts.BoardID != nil {
			cur.BoardID = optionalString(*opts.BoardID)
			if cur.BoardID != nil {
				if _, err := e.Repo.GetBoardTx(ctx, tx, *cur.BoardID); err != nil {
					return err
				}
			}
		}
		if opts.Status != nil {
			cur.Status = *opts.Status
		}
		if opts.Priority != nil {
			cur.Priority = *opts.Priority
		}
		if opts.DueAt != nil {
			cur.DueAt = dueAt
		}
		if assignee != nil {
			if h, ok := assignee.(domain.HumanAssignee); ok {
				if _, err := e.Repo.GetUserTx(ctx, tx, h.UserID); err != nil {
					return err
				}
			}
			cur.Assignee = assignee
		}
		if opts.ClearAssignee {
			cur.Assignee = nil
		}
		cur.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateTask(ctx, tx, cur); err != nil {
			return err
		}
		t = cur
		return e.appendActivity(ctx, tx, domain.ActivityTaskUpdated, "Task updated: "+cur.Title, activity.Refs{GoalID: cur.GoalID, TaskID: cur.ID})
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TransitionResult is what TransitionTaskStatus reports back.
type TransitionResult struct {
	TaskID     string  `json:"task_id"`
	DecisionID *string `json:"decision_id,omitempty"`
}

// TransitionOptions carries the optional inputs of a validated transition.
// BlockedReason only matters when entering blocked, DecisionTitle only when
// entering waiting_decision.
type TransitionOptions struct {
	BlockedReason string
	DecisionTitle string
}

// TransitionTaskStatus moves a task along the lifecycle table. Entering
// blocked with a reason annotates the description; entering
// waiting_decision opens a pending decision_needed Decision and links it
// from the task. Every side effect commits in the same transaction.
func (e Engine) TransitionTaskStatus(ctx context.Context, taskID string, to domain.TaskStatus, opts TransitionOptions) (res TransitionResult, err error) {
	ctx, end := telemetry.StartOp(ctx, "task.transition",
		attribute.String("task.id", taskID),
		attribute.String("task.status.to", string(to)),
	)
	defer func() { end(err) }()

	if !to.Valid() {
		return res, domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown task status %q", to)}
	}
	cfg := e.cfg()
	var from domain.TaskStatus
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		res = TransitionResult{TaskID: taskID}
		task, err := e.Repo.GetTaskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		from = task.Status
		if !domain.CanTransition(from, to) {
			return domain.TransitionError{From: from, To: to, Allowed: domain.AllowedTransitions(from)}
		}
		nowTime := e.now()
		now := nowTime.UTC().Format(time.RFC3339)
		patch := repo.TaskPatch{Status: &to, UpdatedAt: now}

		if to == domain.TaskBlocked && strings.TrimSpace(opts.BlockedReason) != "" {
			desc := notes.AppendReasonNote(task.Description, cfg.Notes.BlockedLabel, opts.BlockedReason, notes.Options{Now: nowTime})
			if desc != task.Description {
				patch.Description = &desc
			}
		}

		if to == domain.TaskWaitingDecision {
			title := strings.TrimSpace(opts.DecisionTitle)
			if title == "" {
				title = truncateRunes(cfg.Decisions.AutoTitlePrefix+task.Title, cfg.Limits.Title)
			} else if title, err = limitText("decision_title", title, cfg.Limits.Title); err != nil {
				return err
			}
			d := domain.Decision{
				ID:        e.newID(),
				Type:      domain.DecisionNeeded,
				Status:    domain.DecisionPending,
				Title:     title,
				GoalID:    &task.GoalID,
				TaskID:    &task.ID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := e.Repo.InsertDecision(ctx, tx, d); err != nil {
				return fmt.Errorf("insert decision: %w", err)
			}
			patch.LatestDecisionID = &d.ID
			res.DecisionID = &d.ID
			telemetry.Annotate(ctx, attribute.String("decision.id", d.ID))
			if err := e.appendActivity(ctx, tx, domain.ActivityDecisionCreated, "Decision created: "+title,
				activity.Refs{GoalID: task.GoalID, TaskID: task.ID, DecisionID: d.ID}); err != nil {
				return err
			}
		}

		if err := e.Repo.PatchTask(ctx, tx, task.ID, patch); err != nil {
			return err
		}
		msg := fmt.Sprintf("Task status: %s → %s (%s)", from, to, task.Title)
		return e.appendActivity(ctx, tx, domain.ActivityTaskUpdated, msg, activity.Refs{GoalID: task.GoalID, TaskID: task.ID})
	})
	if err != nil {
		return TransitionResult{}, err
	}
	e.log().Debug("task transitioned", "task", taskID, "from", from, "to", to, "decision", deref(res.DecisionID))
	return res, nil
}

// MoveStatus is the board-column move: an unchecked status overwrite that
// bypasses the lifecycle table and never opens a decision. The task must sit
// on a board.
func (e Engine) MoveStatus(ctx context.Context, taskID string, to domain.TaskStatus) (_ string, err error) {
	ctx, end := telemetry.StartOp(ctx, "task.move",
		attribute.String("task.id", taskID),
		attribute.String("task.status.to", string(to)),
	)
	defer func() { end(err) }()

	if !to.Valid() {
		return "", domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown task status %q", to)}
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		task, err := e.Repo.GetTaskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if task.BoardID == nil {
			return domain.ValidationError{Field: "board_id", Reason: "task is not on a board; unassigned tasks cannot change columns"}
		}
		if _, err := e.Repo.GetBoardTx(ctx, tx, *task.BoardID); err != nil {
			return err
		}
		if err := e.Repo.PatchTask(ctx, tx, task.ID, repo.TaskPatch{Status: &to, UpdatedAt: e.stamp()}); err != nil {
			return err
		}
		msg := fmt.Sprintf("Task moved to %s: %s", to, task.Title)
		return e.appendActivity(ctx, tx, domain.ActivityTaskMoved, msg, activity.Refs{GoalID: task.GoalID, TaskID: task.ID})
	})
	if err != nil {
		return "", err
	}
	return taskID, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return e.Repo.GetTask(ctx, id)
}

// TaskListOptions filters ListTasks. Unassigned selects tasks with no board.
type TaskListOptions struct {
	GoalID     string
	BoardID    string
	Status     domain.TaskStatus
	Unassigned bool
	Limit      int
}

func (e Engine) ListTasks(ctx context.Context, opts TaskListOptions) ([]domain.Task, error) {
	if opts.Unassigned && opts.BoardID != "" {
		return nil, domain.ValidationError{Field: "board_id", Reason: "cannot combine with unassigned"}
	}
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown task status %q", opts.Status)}
	}
	return e.Repo.ListTasks(ctx, repo.TaskFilters{
		GoalID:     opts.GoalID,
		BoardID:    opts.BoardID,
		Status:     opts.Status,
		Unassigned: opts.Unassigned,
		Limit:      clampLimit(opts.Limit),
	})
}

// ListOverdueTasks returns open tasks whose due time has passed.
func (e Engine) ListOverdueTasks(ctx context.Context, limit int) ([]domain.Task, error) {
	return e.Repo.ListOverdueTasks(ctx, e.stamp(), clampLimit(limit))
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// normalizeTime accepts RFC 3339 input and stores it as UTC so that stored
// timestamps order correctly as text.
func normalizeTime(field, raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.ValidationError{Field: field, Reason: "must be an RFC 3339 timestamp"}
	}
	out := ts.UTC().Format(time.RFC3339)
	return &out, nil
}
