package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"opsconsole/internal/domain"
)

const decisionColumns = `id,type,status,title,description,goal_id,task_id,run_id,agent_id,options_json,recommendation,execution_preview_json,resolved_by_user_id,resolution_note,resolved_at,created_at,updated_at`

func scanDecision(scan func(...any) error) (domain.Decision, error) {
	var d domain.Decision
	var desc, goalID, taskID, runID, agentID, options, rec, preview, resolvedBy, note, resolvedAt sql.NullString
	if err := scan(&d.ID, &d.Type, &d.Status, &d.Title, &desc, &goalID, &taskID, &runID, &agentID, &options, &rec, &preview,
		&resolvedBy, &note, &resolvedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return d, err
	}
	d.Description = desc.String
	d.GoalID = strPtr(goalID)
	d.TaskID = strPtr(taskID)
	d.RunID = strPtr(runID)
	d.AgentID = strPtr(agentID)
	d.Recommendation = rec.String
	d.ResolvedByUserID = strPtr(resolvedBy)
	d.ResolutionNote = strPtr(note)
	d.ResolvedAt = strPtr(resolvedAt)
	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &d.Options); err != nil {
			return d, fmt.Errorf("decision %s options: %w", d.ID, err)
		}
	}
	if preview.Valid && preview.String != "" {
		d.ExecutionPreview = &domain.ExecutionPreview{}
		if err := json.Unmarshal([]byte(preview.String), d.ExecutionPreview); err != nil {
			return d, fmt.Errorf("decision %s execution preview: %w", d.ID, err)
		}
	}
	return d, nil
}

func marshalOptional(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r Repo) InsertDecision(ctx context.Context, tx *sql.Tx, d domain.Decision) error {
	options, err := marshalOptional(d.Options, len(d.Options) == 0)
	if err != nil {
		return err
	}
	preview, err := marshalOptional(d.ExecutionPreview, d.ExecutionPreview == nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO decisions(`+decisionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Type, d.Status, d.Title, nullable(d.Description),
		nullableStringPtr(d.GoalID), nullableStringPtr(d.TaskID), nullableStringPtr(d.RunID), nullableStringPtr(d.AgentID),
		options, nullable(d.Recommendation), preview,
		nullableStringPtr(d.ResolvedByUserID), nullableStringPtr(d.ResolutionNote), nullableStringPtr(d.ResolvedAt),
		d.CreatedAt, d.UpdatedAt)
	return err
}

// DecisionResolution is the set of columns written when a decision leaves pending.
type DecisionResolution struct {
	Status           domain.DecisionStatus
	ResolvedByUserID string
	ResolutionNote   *string
	ResolvedAt       string
}

// ResolveDecision applies a resolution only while the row is still pending,
// so a concurrent resolver cannot overwrite a terminal status.
func (r Repo) ResolveDecision(ctx context.Context, tx *sql.Tx, id string, res DecisionResolution) error {
	out, err := tx.ExecContext(ctx, `UPDATE decisions SET status=?, resolved_by_user_id=?, resolution_note=?, resolved_at=?, updated_at=? WHERE id=? AND status=?`,
		res.Status, res.ResolvedByUserID, nullableStringPtr(res.ResolutionNote), res.ResolvedAt, res.ResolvedAt, id, domain.DecisionPending)
	if err != nil {
		return err
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return domain.StateError{Entity: "decision", ID: id, Status: "unknown", Reason: "is not pending"}
	}
	return nil
}

func getDecision(ctx context.Context, q querier, id string) (domain.Decision, error) {
	d, err := scanDecision(q.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE id=?`, id).Scan)
	return d, notFound(err, "decision", id)
}

func (r Repo) GetDecision(ctx context.Context, id string) (domain.Decision, error) {
	return getDecision(ctx, r.DB, id)
}

func (r Repo) GetDecisionTx(ctx context.Context, tx *sql.Tx, id string) (domain.Decision, error) {
	return getDecision(ctx, tx, id)
}

type DecisionFilters struct {
	Status domain.DecisionStatus
	TaskID string
	Limit  int
}

func (r Repo) ListDecisions(ctx context.Context, f DecisionFilters) ([]domain.Decision, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.TaskID != "" {
		clauses = append(clauses, "task_id=?")
		args = append(args, f.TaskID)
	}
	query := `SELECT ` + decisionColumns + ` FROM decisions` + where(clauses) + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Decision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) CountDecisions(ctx context.Context, status domain.DecisionStatus) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM decisions WHERE status=?`, status).Scan(&n)
	return n, err
}
