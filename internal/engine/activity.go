package engine

import (
	"context"

	"opsconsole/internal/domain"
	"opsconsole/internal/repo"
)

// ActivityListOptions filters the audit feed. At most one of GoalID and
// TaskID narrows the feed.
type ActivityListOptions struct {
	GoalID     string
	TaskID     string
	DecisionID string
	Type       domain.ActivityType
	Before     int64
	Limit      int
}

// ListActivity returns audit events newest first, at most 200.
func (e Engine) ListActivity(ctx context.Context, opts ActivityListOptions) ([]domain.ActivityEvent, error) {
	if opts.GoalID != "" && opts.TaskID != "" {
		return nil, domain.ValidationError{Field: "goal_id", Reason: "cannot combine goal and task filters"}
	}
	if opts.Type != "" && !opts.Type.Valid() {
		return nil, domain.ValidationError{Field: "type", Reason: "unknown activity type " + string(opts.Type)}
	}
	return e.Repo.ListActivity(ctx, repo.ActivityFilters{
		GoalID:     opts.GoalID,
		TaskID:     opts.TaskID,
		DecisionID: opts.DecisionID,
		Type:       opts.Type,
		Before:     opts.Before,
		Limit:      clampLimit(opts.Limit),
	})
}

// Status summarizes the workspace for the console header.
func (e Engine) Status(ctx context.Context) (domain.StatusSummary, error) {
	counts, err := e.Repo.CountTasksByStatus(ctx)
	if err != nil {
		return domain.StatusSummary{}, err
	}
	pending, err := e.Repo.CountDecisions(ctx, domain.DecisionPending)
	if err != nil {
		return domain.StatusSummary{}, err
	}
	open, err := e.Repo.CountUnresolvedCompliance(ctx)
	if err != nil {
		return domain.StatusSummary{}, err
	}
	return domain.StatusSummary{TaskCounts: counts, PendingDecisions: pending, UnresolvedCompliance: open}, nil
}
