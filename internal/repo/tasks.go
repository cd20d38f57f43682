package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"opsconsole/internal/domain"
)

const taskColumns = `id,title,description,goal_id,board_id,status,priority,due_at,assignee_type,assignee_id,latest_decision_id,created_at,updated_at`

func scanTask(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	var desc, boardID, dueAt, assigneeType, assigneeID, latest sql.NullString
	if err := scan(&t.ID, &t.Title, &desc, &t.GoalID, &boardID, &t.Status, &t.Priority, &dueAt, &assigneeType, &assigneeID, &latest, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	t.Description = desc.String
	t.BoardID = strPtr(boardID)
	t.DueAt = strPtr(dueAt)
	t.LatestDecisionID = strPtr(latest)
	if assigneeType.Valid {
		switch assigneeType.String {
		case "human":
			t.Assignee = domain.HumanAssignee{UserID: assigneeID.String}
		case "agent":
			t.Assignee = domain.AgentAssignee{AgentID: assigneeID.String}
		default:
			return t, fmt.Errorf("task %s: unknown assignee type %q", t.ID, assigneeType.String)
		}
	}
	return t, nil
}

func assigneeColumns(a domain.Assignee) (any, any) {
	if a == nil {
		return nil, nil
	}
	return a.Kind(), a.Ref()
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	aType, aID := assigneeColumns(t.Assignee)
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), t.GoalID, nullableStringPtr(t.BoardID), t.Status, t.Priority,
		nullableStringPtr(t.DueAt), aType, aID, nullableStringPtr(t.LatestDecisionID), t.CreatedAt, t.UpdatedAt)
	return err
}

// UpdateTask rewrites every mutable column of t.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	aType, aID := assigneeColumns(t.Assignee)
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, goal_id=?, board_id=?, status=?, priority=?, due_at=?, assignee_type=?, assignee_id=?, latest_decision_id=?, updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), t.GoalID, nullableStringPtr(t.BoardID), t.Status, t.Priority,
		nullableStringPtr(t.DueAt), aType, aID, nullableStringPtr(t.LatestDecisionID), t.UpdatedAt, t.ID)
	return mustAffect(res, err, "task", t.ID)
}

// TaskPatch is a partial task update; nil fields are left untouched.
type TaskPatch struct {
	Description      *string
	Status           *domain.TaskStatus
	LatestDecisionID *string
	UpdatedAt        string
}

func (r Repo) PatchTask(ctx context.Context, tx *sql.Tx, id string, p TaskPatch) error {
	var (
		fields []string
		args   []any
	)
	if p.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*p.Description))
	}
	if p.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *p.Status)
	}
	if p.LatestDecisionID != nil {
		fields = append(fields, "latest_decision_id=?")
		args = append(args, nullable(*p.LatestDecisionID))
	}
	fields = append(fields, "updated_at=?")
	args = append(args, p.UpdatedAt, id)
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(fields, ", ")+` WHERE id=?`, args...)
	return mustAffect(res, err, "task", id)
}

func getTask(ctx context.Context, q querier, id string) (domain.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id).Scan)
	return t, notFound(err, "task", id)
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getTask(ctx, r.DB, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return getTask(ctx, tx, id)
}

type TaskFilters struct {
	GoalID     string
	BoardID    string
	Status     domain.TaskStatus
	Unassigned bool
	Limit      int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.GoalID != "" {
		clauses = append(clauses, "goal_id=?")
		args = append(args, f.GoalID)
	}
	if f.BoardID != "" {
		clauses = append(clauses, "board_id=?")
		args = append(args, f.BoardID)
	}
	if f.Unassigned {
		clauses = append(clauses, "board_id IS NULL")
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks` + where(clauses) + ` ORDER BY updated_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.queryTasks(ctx, query, args...)
}

// ListOverdueTasks returns open tasks whose due time is before now, oldest
// due first. Timestamps are stored as UTC RFC 3339 so they compare as text.
func (r Repo) ListOverdueTasks(ctx context.Context, now string, limit int) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE due_at IS NOT NULL AND due_at < ? AND status NOT IN ('done','canceled') ORDER BY due_at ASC, id ASC`
	args := []any{now}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryTasks(ctx, query, args...)
}

func (r Repo) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) CountTasksByStatus(ctx context.Context) (map[domain.TaskStatus]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.TaskStatus]int{}
	for _, s := range domain.TaskStatuses {
		res[s] = 0
	}
	for rows.Next() {
		var status domain.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}
