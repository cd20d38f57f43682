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

// DecisionCreateOptions are parameters for opening a decision by hand.
type DecisionCreateOptions struct {
	Type             domain.DecisionType
	Title            string
	Description      string
	GoalID           string
	TaskID           string
	RunID            string
	AgentID          string
	Options          []domain.DecisionOption
	Recommendation   string
	ExecutionPreview *domain.ExecutionPreview
}

func (e Engine) CreateDecision(ctx context.Context, opts DecisionCreateOptions) (d domain.Decision, err error) {
	ctx, end := telemetry.StartOp(ctx, "decision.create")
	defer func() { end(err) }()

	limits := e.cfg().Limits
	typ, err := domain.ParseDecisionType(string(opts.Type))
	if err != nil {
		return d, err
	}
	title, err := requireText("title", opts.Title, limits.Title)
	if err != nil {
		return d, err
	}
	desc, err := limitText("description", strings.TrimSpace(opts.Description), limits.Description)
	if err != nil {
		return d, err
	}
	if len(opts.Options) > limits.DecisionOptions {
		return d, domain.ValidationError{Field: "options", Reason: fmt.Sprintf("cannot exceed %d items", limits.DecisionOptions)}
	}
	seen := map[string]bool{}
	for i, o := range opts.Options {
		if strings.TrimSpace(o.Key) == "" || strings.TrimSpace(o.Label) == "" {
			return d, domain.ValidationError{Field: fmt.Sprintf("options[%d]", i), Reason: "key and label are required"}
		}
		if seen[o.Key] {
			return d, domain.ValidationError{Field: fmt.Sprintf("options[%d].key", i), Reason: fmt.Sprintf("duplicate key %q", o.Key)}
		}
		seen[o.Key] = true
	}
	rec := strings.TrimSpace(opts.Recommendation)
	if rec != "" && len(opts.Options) > 0 && !seen[rec] {
		return d, domain.ValidationError{Field: "recommendation", Reason: fmt.Sprintf("%q is not an option key", rec)}
	}

	now := e.stamp()
	d = domain.Decision{
		ID:               e.newID(),
		Type:             typ,
		Status:           domain.DecisionPending,
		Title:            title,
		Description:      desc,
		GoalID:           optionalString(opts.GoalID),
		TaskID:           optionalString(opts.TaskID),
		RunID:            optionalString(opts.RunID),
		AgentID:          optionalString(opts.AgentID),
		Options:          opts.Options,
		Recommendation:   rec,
		ExecutionPreview: opts.ExecutionPreview,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if d.GoalID != nil {
			if _, err := e.Repo.GetGoalTx(ctx, tx, *d.GoalID); err != nil {
				return err
			}
		}
		if d.TaskID != nil {
			if _, err := e.Repo.GetTaskTx(ctx, tx, *d.TaskID); err != nil {
				return err
			}
		}
		if err := e.Repo.InsertDecision(ctx, tx, d); err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
		return e.appendActivity(ctx, tx, domain.ActivityDecisionCreated, "Decision created: "+d.Title, activity.Refs{
			GoalID:     deref(d.GoalID),
			TaskID:     deref(d.TaskID),
			DecisionID: d.ID,
			RunID:      deref(d.RunID),
			AgentID:    deref(d.AgentID),
		})
	})
	if err != nil {
		return domain.Decision{}, err
	}
	return d, nil
}

func (e Engine) GetDecision(ctx context.Context, id string) (domain.Decision, error) {
	return e.Repo.GetDecision(ctx, id)
}

// ListDecisions defaults to pending decisions, newest first.
func (e Engine) ListDecisions(ctx context.Context, status domain.DecisionStatus, limit int) ([]domain.Decision, error) {
	if status == "" {
		status = domain.DecisionPending
	}
	if _, err := domain.ParseDecisionStatus(string(status)); err != nil {
		return nil, err
	}
	return e.Repo.ListDecisions(ctx, repo.DecisionFilters{Status: status, Limit: clampLimit(limit)})
}

// ResolveDecision closes a pending decision. When the decision belongs to a
// task that is still waiting on it, approve resumes the task and reject
// blocks it with a REJECTED note; request_changes leaves the task alone.
func (e Engine) ResolveDecision(ctx context.Context, decisionID string, action domain.ResolveAction, resolvedByUserID, note string) (_ string, err error) {
	ctx, end := telemetry.StartOp(ctx, "decision.resolve",
		attribute.String("decision.id", decisionID),
		attribute.String("decision.action", string(action)),
	)
	defer func() { end(err) }()

	outcome, ok := action.Outcome()
	if !ok {
		return "", domain.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", action)}
	}
	cfg := e.cfg()
	resolutionNote := truncateRunes(strings.TrimSpace(note), cfg.Limits.ResolutionNote)

	var autoTransitioned domain.TaskStatus
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		autoTransitioned = ""
		d, err := e.Repo.GetDecisionTx(ctx, tx, decisionID)
		if err != nil {
			return err
		}
		if d.Status != domain.DecisionPending {
			return domain.StateError{Entity: "decision", ID: d.ID, Status: string(d.Status), Reason: "is not pending"}
		}
		if _, err := e.Repo.GetUserTx(ctx, tx, resolvedByUserID); err != nil {
			return err
		}
		nowTime := e.now()
		now := nowTime.UTC().Format(time.RFC3339)
		if err := e.Repo.ResolveDecision(ctx, tx, d.ID, repo.DecisionResolution{
			Status:           outcome,
			ResolvedByUserID: resolvedByUserID,
			ResolutionNote:   optionalString(resolutionNote),
			ResolvedAt:       now,
		}); err != nil {
			return err
		}

		if d.TaskID != nil && action != domain.ActionRequestChanges {
			task, err := e.Repo.GetTaskTx(ctx, tx, *d.TaskID)
			switch {
			case domain.IsNotFound(err):
				// the task is gone; the weak link is simply ignored
			case err != nil:
				return err
			case task.Status == domain.TaskWaitingDecision:
				patch := repo.TaskPatch{UpdatedAt: now}
				var msg string
				switch action {
				case domain.ActionApprove:
					next := domain.TaskInProgress
					patch.Status = &next
					msg = "Task auto-transitioned: waiting_decision → in_progress (decision approved)"
				case domain.ActionReject:
					next := domain.TaskBlocked
					patch.Status = &next
					reason := "Decision rejected: " + d.Title
					if resolutionNote != "" {
						reason = "Decision rejected: " + resolutionNote
					}
					desc := notes.AppendReasonNote(task.Description, cfg.Notes.RejectedLabel, reason, notes.Options{RefID: d.ID, Now: nowTime})
					if desc != task.Description {
						patch.Description = &desc
					}
					msg = "Task auto-transitioned: waiting_decision → blocked (decision rejected)"
				}
				if err := e.Repo.PatchTask(ctx, tx, task.ID, patch); err != nil {
					return err
				}
				if err := e.appendActivity(ctx, tx, domain.ActivityTaskUpdated, msg,
					activity.Refs{GoalID: task.GoalID, TaskID: task.ID, DecisionID: d.ID}); err != nil {
					return err
				}
				autoTransitioned = *patch.Status
			}
		}

		return e.appendActivity(ctx, tx, domain.ActivityDecisionResolved, fmt.Sprintf("Decision %s: %s", outcome, d.Title),
			activity.Refs{GoalID: deref(d.GoalID), TaskID: deref(d.TaskID), DecisionID: d.ID})
	})
	if err != nil {
		return "", err
	}
	if autoTransitioned != "" {
		e.log().Info("task auto-transitioned by decision", "decision", decisionID, "action", action, "status", autoTransitioned)
	}
	e.log().Debug("decision resolved", "decision", decisionID, "status", outcome)
	return decisionID, nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
