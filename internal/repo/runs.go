package repo

import (
	"context"
	"database/sql"

	"opsconsole/internal/domain"
)

const runColumns = `id,agent_id,task_id,goal_id,gateway_id,status,objective,related_decision_id,summary,error,started_at,finished_at,created_at,updated_at`

func scanRun(scan func(...any) error) (domain.Run, error) {
	var r domain.Run
	var taskID, goalID, gatewayID, objective, decisionID, summary, runErr, startedAt, finishedAt sql.NullString
	if err := scan(&r.ID, &r.AgentID, &taskID, &goalID, &gatewayID, &r.Status, &objective, &decisionID,
		&summary, &runErr, &startedAt, &finishedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	r.TaskID = strPtr(taskID)
	r.GoalID = strPtr(goalID)
	r.GatewayID = strPtr(gatewayID)
	r.Objective = objective.String
	r.RelatedDecisionID = strPtr(decisionID)
	r.Summary = summary.String
	r.Error = runErr.String
	r.StartedAt = strPtr(startedAt)
	r.FinishedAt = strPtr(finishedAt)
	return r, nil
}

func (r Repo) InsertRun(ctx context.Context, tx *sql.Tx, run domain.Run) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO runs(`+runColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.AgentID, nullableStringPtr(run.TaskID), nullableStringPtr(run.GoalID), nullableStringPtr(run.GatewayID),
		run.Status, nullable(run.Objective), nullableStringPtr(run.RelatedDecisionID), nullable(run.Summary), nullable(run.Error),
		nullableStringPtr(run.StartedAt), nullableStringPtr(run.FinishedAt), run.CreatedAt, run.UpdatedAt)
	return err
}

// UpdateRunState writes the mutable lifecycle fields of a run.
func (r Repo) UpdateRunState(ctx context.Context, tx *sql.Tx, run domain.Run) error {
	res, err := tx.ExecContext(ctx, `UPDATE runs SET status=?, summary=?, error=?, started_at=?, finished_at=?, updated_at=? WHERE id=?`,
		run.Status, nullable(run.Summary), nullable(run.Error), nullableStringPtr(run.StartedAt), nullableStringPtr(run.FinishedAt),
		run.UpdatedAt, run.ID)
	return mustAffect(res, err, "run", run.ID)
}

func getRun(ctx context.Context, q querier, id string) (domain.Run, error) {
	run, err := scanRun(q.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, id).Scan)
	return run, notFound(err, "run", id)
}

func (r Repo) GetRun(ctx context.Context, id string) (domain.Run, error) {
	return getRun(ctx, r.DB, id)
}

func (r Repo) GetRunTx(ctx context.Context, tx *sql.Tx, id string) (domain.Run, error) {
	return getRun(ctx, tx, id)
}

type RunFilters struct {
	Status  domain.RunStatus
	AgentID string
	TaskID  string
	Limit   int
}

func (r Repo) ListRuns(ctx context.Context, f RunFilters) ([]domain.Run, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AgentID != "" {
		clauses = append(clauses, "agent_id=?")
		args = append(args, f.AgentID)
	}
	if f.TaskID != "" {
		clauses = append(clauses, "task_id=?")
		args = append(args, f.TaskID)
	}
	query := `SELECT ` + runColumns + ` FROM runs` + where(clauses) + ` ORDER BY created_at DESC, rowid DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}
