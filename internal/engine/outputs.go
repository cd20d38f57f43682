package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"opsconsole/internal/activity"
	"opsconsole/internal/domain"
	"opsconsole/internal/repo"
	"opsconsole/internal/telemetry"
)

const (
	outputArtifactLimit = 20
	artifactFieldLimit  = 500
)

type OutputCreateOptions struct {
	Title     string
	Type      domain.OutputType
	GoalID    string
	TaskID    string
	Summary   string
	Artifacts []domain.Artifact
}

func (e Engine) CreateOutput(ctx context.Context, opts OutputCreateOptions) (o domain.Output, err error) {
	ctx, end := telemetry.StartOp(ctx, "output.create")
	defer func() { end(err) }()

	limits := e.cfg().Limits
	title, err := requireText("title", opts.Title, limits.Title)
	if err != nil {
		return o, err
	}
	typ, err := domain.ParseOutputType(string(opts.Type))
	if err != nil {
		return o, err
	}
	summary, err := limitText("summary", strings.TrimSpace(opts.Summary), limits.Description)
	if err != nil {
		return o, err
	}
	artifacts, err := validateArtifacts(opts.Artifacts)
	if err != nil {
		return o, err
	}
	now := e.stamp()
	o = domain.Output{
		ID:        e.newID(),
		Title:     title,
		Type:      typ,
		GoalID:    optionalString(opts.GoalID),
		TaskID:    optionalString(opts.TaskID),
		Summary:   summary,
		Artifacts: artifacts,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if o.GoalID != nil {
			if _, err := e.Repo.GetGoalTx(ctx, tx, *o.GoalID); err != nil {
				return err
			}
		}
		if o.TaskID != nil {
			if _, err := e.Repo.GetTaskTx(ctx, tx, *o.TaskID); err != nil {
				return err
			}
		}
		if err := e.Repo.InsertOutput(ctx, tx, o); err != nil {
			return fmt.Errorf("insert output: %w", err)
		}
		return e.appendActivity(ctx, tx, domain.ActivityOutputCreated, "Output created: "+title, activity.Refs{
			GoalID:   deref(o.GoalID),
			TaskID:   deref(o.TaskID),
			OutputID: o.ID,
		})
	})
	if err != nil {
		return domain.Output{}, err
	}
	return o, nil
}

func validateArtifacts(in []domain.Artifact) ([]domain.Artifact, error) {
	if len(in) > outputArtifactLimit {
		return nil, domain.ValidationError{Field: "artifacts", Reason: fmt.Sprintf("cannot exceed %d items", outputArtifactLimit)}
	}
	out := make([]domain.Artifact, 0, len(in))
	for _, a := range in {
		kind, err := requireText("artifacts.kind", a.Kind, artifactFieldLimit)
		if err != nil {
			return nil, err
		}
		ref, err := requireText("artifacts.ref", a.Ref, artifactFieldLimit)
		if err != nil {
			return nil, err
		}
		note, err := limitText("artifacts.note", strings.TrimSpace(a.Note), artifactFieldLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Artifact{Kind: kind, Ref: ref, Note: note})
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (e Engine) GetOutput(ctx context.Context, id string) (domain.Output, error) {
	return e.Repo.GetOutput(ctx, id)
}

// ListOutputs returns outputs newest first, optionally narrowed to a goal
// and an output type.
func (e Engine) ListOutputs(ctx context.Context, goalID string, typ domain.OutputType, limit int) ([]domain.Output, error) {
	if typ != "" {
		if _, err := domain.ParseOutputType(string(typ)); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListOutputs(ctx, repo.OutputFilters{GoalID: goalID, Type: typ, Limit: clampLimit(limit)})
}
