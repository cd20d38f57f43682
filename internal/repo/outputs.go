package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"opsconsole/internal/domain"
)

const outputColumns = `id,title,type,goal_id,task_id,summary,artifacts_json,created_at,updated_at`

func scanOutput(scan func(...any) error) (domain.Output, error) {
	var o domain.Output
	var goalID, taskID, summary, artifacts sql.NullString
	if err := scan(&o.ID, &o.Title, &o.Type, &goalID, &taskID, &summary, &artifacts, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}
	o.GoalID = strPtr(goalID)
	o.TaskID = strPtr(taskID)
	o.Summary = summary.String
	if artifacts.Valid && artifacts.String != "" {
		if err := json.Unmarshal([]byte(artifacts.String), &o.Artifacts); err != nil {
			return o, fmt.Errorf("output %s artifacts: %w", o.ID, err)
		}
	}
	return o, nil
}

func (r Repo) InsertOutput(ctx context.Context, tx *sql.Tx, o domain.Output) error {
	var artifacts any
	if len(o.Artifacts) > 0 {
		data, err := json.Marshal(o.Artifacts)
		if err != nil {
			return err
		}
		artifacts = string(data)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO outputs(`+outputColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		o.ID, o.Title, o.Type, nullableStringPtr(o.GoalID), nullableStringPtr(o.TaskID), nullable(o.Summary), artifacts,
		o.CreatedAt, o.UpdatedAt)
	return err
}

func (r Repo) GetOutput(ctx context.Context, id string) (domain.Output, error) {
	o, err := scanOutput(r.DB.QueryRowContext(ctx, `SELECT `+outputColumns+` FROM outputs WHERE id=?`, id).Scan)
	return o, notFound(err, "output", id)
}

type OutputFilters struct {
	GoalID string
	Type   domain.OutputType
	Limit  int
}

func (r Repo) ListOutputs(ctx context.Context, f OutputFilters) ([]domain.Output, error) {
	var clauses []string
	var args []any
	if f.GoalID != "" {
		clauses = append(clauses, "goal_id=?")
		args = append(args, f.GoalID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	query := `SELECT ` + outputColumns + ` FROM outputs` + where(clauses) + ` ORDER BY created_at DESC, rowid DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Output
	for rows.Next() {
		o, err := scanOutput(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}
