package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"opsconsole/internal/domain"
)

const goalColumns = `id,title,description,domain,status,priority,owner_user_id,created_at,updated_at`

func scanGoal(scan func(...any) error) (domain.Goal, error) {
	var g domain.Goal
	var desc, owner sql.NullString
	if err := scan(&g.ID, &g.Title, &desc, &g.Domain, &g.Status, &g.Priority, &owner, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return g, err
	}
	g.Description = desc.String
	g.OwnerUserID = strPtr(owner)
	return g, nil
}

func (r Repo) InsertGoal(ctx context.Context, tx *sql.Tx, g domain.Goal) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO goals(`+goalColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		g.ID, g.Title, nullable(g.Description), g.Domain, g.Status, g.Priority, nullableStringPtr(g.OwnerUserID), g.CreatedAt, g.UpdatedAt)
	return err
}

func (r Repo) UpdateGoal(ctx context.Context, tx *sql.Tx, g domain.Goal) error {
	res, err := tx.ExecContext(ctx, `UPDATE goals SET title=?, description=?, domain=?, status=?, priority=?, owner_user_id=?, updated_at=? WHERE id=?`,
		g.Title, nullable(g.Description), g.Domain, g.Status, g.Priority, nullableStringPtr(g.OwnerUserID), g.UpdatedAt, g.ID)
	return mustAffect(res, err, "goal", g.ID)
}

func getGoal(ctx context.Context, q querier, id string) (domain.Goal, error) {
	g, err := scanGoal(q.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id=?`, id).Scan)
	return g, notFound(err, "goal", id)
}

func (r Repo) GetGoal(ctx context.Context, id string) (domain.Goal, error) {
	return getGoal(ctx, r.DB, id)
}

func (r Repo) GetGoalTx(ctx context.Context, tx *sql.Tx, id string) (domain.Goal, error) {
	return getGoal(ctx, tx, id)
}

func (r Repo) ListGoals(ctx context.Context, status string) ([]domain.Goal, error) {
	var clauses []string
	var args []any
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals`+where(clauses)+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

const boardColumns = `id,name,description,goal_id,kind,columns_json,created_at,updated_at`

func scanBoard(scan func(...any) error) (domain.Board, error) {
	var b domain.Board
	var desc, goalID, cols sql.NullString
	if err := scan(&b.ID, &b.Name, &desc, &goalID, &b.Kind, &cols, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return b, err
	}
	b.Description = desc.String
	b.GoalID = strPtr(goalID)
	if cols.Valid && cols.String != "" {
		if err := json.Unmarshal([]byte(cols.String), &b.Columns); err != nil {
			return b, fmt.Errorf("board %s columns: %w", b.ID, err)
		}
	}
	return b, nil
}

func (r Repo) InsertBoard(ctx context.Context, tx *sql.Tx, b domain.Board) error {
	var cols any
	if len(b.Columns) > 0 {
		data, err := json.Marshal(b.Columns)
		if err != nil {
			return err
		}
		cols = string(data)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO boards(`+boardColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		b.ID, b.Name, nullable(b.Description), nullableStringPtr(b.GoalID), b.Kind, cols, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r Repo) UpdateBoard(ctx context.Context, tx *sql.Tx, b domain.Board) error {
	var cols any
	if len(b.Columns) > 0 {
		data, err := json.Marshal(b.Columns)
		if err != nil {
			return err
		}
		cols = string(data)
	}
	res, err := tx.ExecContext(ctx, `UPDATE boards SET name=?, description=?, goal_id=?, kind=?, columns_json=?, updated_at=? WHERE id=?`,
		b.Name, nullable(b.Description), nullableStringPtr(b.GoalID), b.Kind, cols, b.UpdatedAt, b.ID)
	return mustAffect(res, err, "board", b.ID)
}

func getBoard(ctx context.Context, q querier, id string) (domain.Board, error) {
	b, err := scanBoard(q.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id=?`, id).Scan)
	return b, notFound(err, "board", id)
}

func (r Repo) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	return getBoard(ctx, r.DB, id)
}

func (r Repo) GetBoardTx(ctx context.Context, tx *sql.Tx, id string) (domain.Board, error) {
	return getBoard(ctx, tx, id)
}

func (r Repo) ListBoards(ctx context.Context, goalID string) ([]domain.Board, error) {
	var clauses []string
	var args []any
	if strings.TrimSpace(goalID) != "" {
		clauses = append(clauses, "goal_id=?")
		args = append(args, goalID)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+boardColumns+` FROM boards`+where(clauses)+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Board
	for rows.Next() {
		b, err := scanBoard(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}
