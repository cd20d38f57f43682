package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"opsconsole/internal/activity"
	"opsconsole/internal/domain"
	"opsconsole/internal/repo"
	"opsconsole/internal/telemetry"
)

const runTextLimit = 2000

// RunCreateOptions registers a queued run. AgentID and GatewayID are not
// resolved; task, goal and related decision ids must exist.
type RunCreateOptions struct {
	AgentID           string
	TaskID            string
	GoalID            string
	GatewayID         string
	Objective         string
	RelatedDecisionID string
}

func (e Engine) CreateRun(ctx context.Context, opts RunCreateOptions) (r domain.Run, err error) {
	ctx, end := telemetry.StartOp(ctx, "run.create", attribute.String("agent.id", opts.AgentID))
	defer func() { end(err) }()

	agentID := strings.TrimSpace(opts.AgentID)
	if agentID == "" {
		return r, domain.ValidationError{Field: "agent_id", Reason: "required"}
	}
	objective, err := limitText("objective", strings.TrimSpace(opts.Objective), runTextLimit)
	if err != nil {
		return r, err
	}
	now := e.stamp()
	r = domain.Run{
		ID:                e.newID(),
		AgentID:           agentID,
		TaskID:            optionalString(opts.TaskID),
		GoalID:            optionalString(opts.GoalID),
		GatewayID:         optionalString(opts.GatewayID),
		Status:            domain.RunQueued,
		Objective:         objective,
		RelatedDecisionID: optionalString(opts.RelatedDecisionID),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if r.TaskID != nil {
			if _, err := e.Repo.GetTaskTx(ctx, tx, *r.TaskID); err != nil {
				return err
			}
		}
		if r.GoalID != nil {
			if _, err := e.Repo.GetGoalTx(ctx, tx, *r.GoalID); err != nil {
				return err
			}
		}
		if r.RelatedDecisionID != nil {
			if _, err := e.Repo.GetDecisionTx(ctx, tx, *r.RelatedDecisionID); err != nil {
				return err
			}
		}
		if err := e.Repo.InsertRun(ctx, tx, r); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return e.appendActivity(ctx, tx, domain.ActivityRunCreated, "Run created for agent: "+agentID, activity.Refs{
			GoalID:    deref(r.GoalID),
			TaskID:    deref(r.TaskID),
			RunID:     r.ID,
			AgentID:   agentID,
			GatewayID: deref(r.GatewayID),
		})
	})
	if err != nil {
		return domain.Run{}, err
	}
	return r, nil
}

// RunStatusOptions reports progress on a run. Summary and Error are kept
// unless a non-blank value is given; both are cut to 2000 characters.
type RunStatusOptions struct {
	ID      string
	Status  domain.RunStatus
	Summary string
	Error   string
}

// SetRunStatus overwrites the run status. Entering running stamps
// started_at; entering a finished status stamps finished_at.
func (e Engine) SetRunStatus(ctx context.Context, opts RunStatusOptions) (r domain.Run, err error) {
	ctx, end := telemetry.StartOp(ctx, "run.status",
		attribute.String("run.id", opts.ID),
		attribute.String("run.status", string(opts.Status)),
	)
	defer func() { end(err) }()

	status, err := domain.ParseRunStatus(string(opts.Status))
	if err != nil {
		return r, err
	}
	summary := truncateRunes(strings.TrimSpace(opts.Summary), runTextLimit)
	runErr := truncateRunes(strings.TrimSpace(opts.Error), runTextLimit)
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.Repo.GetRunTx(ctx, tx, opts.ID)
		if err != nil {
			return err
		}
		now := e.stamp()
		cur.Status = status
		cur.UpdatedAt = now
		if summary != "" {
			cur.Summary = summary
		}
		if runErr != "" {
			cur.Error = runErr
		}
		if status == domain.RunRunning {
			cur.StartedAt = &now
		}
		if status.Finished() {
			cur.FinishedAt = &now
		}
		if err := e.Repo.UpdateRunState(ctx, tx, cur); err != nil {
			return err
		}
		r = cur
		return e.appendActivity(ctx, tx, domain.ActivityRunStatusChanged, fmt.Sprintf("Run status changed to %s", status), activity.Refs{
			GoalID:  deref(cur.GoalID),
			TaskID:  deref(cur.TaskID),
			RunID:   cur.ID,
			AgentID: cur.AgentID,
		})
	})
	if err != nil {
		return domain.Run{}, err
	}
	e.log().Debug("run status changed", "run", r.ID, "status", status)
	return r, nil
}

func (e Engine) GetRun(ctx context.Context, id string) (domain.Run, error) {
	return e.Repo.GetRun(ctx, id)
}

type RunListOptions struct {
	Status  domain.RunStatus
	AgentID string
	TaskID  string
	Limit   int
}

// ListRuns returns runs newest first.
func (e Engine) ListRuns(ctx context.Context, opts RunListOptions) ([]domain.Run, error) {
	if opts.Status != "" {
		if _, err := domain.ParseRunStatus(string(opts.Status)); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListRuns(ctx, repo.RunFilters{
		Status:  opts.Status,
		AgentID: opts.AgentID,
		TaskID:  opts.TaskID,
		Limit:   clampLimit(opts.Limit),
	})
}
