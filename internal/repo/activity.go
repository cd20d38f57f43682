package repo

import (
	"context"
	"database/sql"

	"opsconsole/internal/domain"
)

const activityColumns = `id,type,message,goal_id,task_id,decision_id,run_id,output_id,agent_id,gateway_id,created_at`

type ActivityFilters struct {
	GoalID     string
	TaskID     string
	DecisionID string
	Type       domain.ActivityType
	// Before pages backwards from an event id; zero starts at the newest.
	Before int64
	Limit  int
}

// ListActivity returns events newest first.
func (r Repo) ListActivity(ctx context.Context, f ActivityFilters) ([]domain.ActivityEvent, error) {
	return listActivity(ctx, r.DB, f)
}

func (r Repo) ListActivityTx(ctx context.Context, tx *sql.Tx, f ActivityFilters) ([]domain.ActivityEvent, error) {
	return listActivity(ctx, tx, f)
}

func listActivity(ctx context.Context, q querier, f ActivityFilters) ([]domain.ActivityEvent, error) {
	var clauses []string
	var args []any
	if f.GoalID != "" {
		clauses = append(clauses, "goal_id=?")
		args = append(args, f.GoalID)
	}
	if f.TaskID != "" {
		clauses = append(clauses, "task_id=?")
		args = append(args, f.TaskID)
	}
	if f.DecisionID != "" {
		clauses = append(clauses, "decision_id=?")
		args = append(args, f.DecisionID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Before)
	}
	query := `SELECT ` + activityColumns + ` FROM activity_events` + where(clauses) + ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		var msg, goalID, taskID, decisionID, runID, outputID, agentID, gatewayID sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &msg, &goalID, &taskID, &decisionID, &runID, &outputID, &agentID, &gatewayID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Message = msg.String
		e.GoalID = goalID.String
		e.TaskID = taskID.String
		e.DecisionID = decisionID.String
		e.RunID = runID.String
		e.OutputID = outputID.String
		e.AgentID = agentID.String
		e.GatewayID = gatewayID.String
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) CountActivity(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM activity_events`).Scan(&n)
	return n, err
}
