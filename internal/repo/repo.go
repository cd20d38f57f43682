package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"opsconsole/internal/domain"
)

// Repo is the Entity Store's data-access layer. Reads come in two flavours:
// a plain method on r.DB and a Tx variant used inside a unit of work. Writes
// always take the caller's transaction.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = domain.ErrNotFound

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// mustAffect turns a zero-row UPDATE into a NotFoundError.
func mustAffect(res sql.Result, err error, entity, id string) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func where(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

const userColumns = `id,display_name,email,created_at,updated_at`

func scanUser(scan func(...any) error) (domain.User, error) {
	var u domain.User
	var email sql.NullString
	if err := scan(&u.ID, &u.DisplayName, &email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return u, err
	}
	u.Email = email.String
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?)`,
		u.ID, u.DisplayName, nullable(u.Email), u.CreatedAt, u.UpdatedAt)
	return err
}

func getUser(ctx context.Context, q querier, id string) (domain.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id).Scan)
	return u, notFound(err, "user", id)
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return getUser(ctx, r.DB, id)
}

func (r Repo) GetUserTx(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	return getUser(ctx, tx, id)
}

// FirstUser returns the earliest created user, the workspace default actor.
func (r Repo) FirstUser(ctx context.Context) (domain.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC LIMIT 1`).Scan)
	return u, notFound(err, "user", "default")
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
