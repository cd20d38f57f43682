package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"opsconsole/internal/activity"
	"opsconsole/internal/domain"
	"opsconsole/internal/telemetry"
)

const defaultUserName = "Local User"

func (e Engine) CreateUser(ctx context.Context, displayName, email string) (u domain.User, err error) {
	ctx, end := telemetry.StartOp(ctx, "user.create")
	defer func() { end(err) }()

	name, err := requireText("display_name", displayName, e.cfg().Limits.Title)
	if err != nil {
		return u, err
	}
	email = strings.TrimSpace(email)
	if email != "" && !strings.Contains(email, "@") {
		return u, domain.ValidationError{Field: "email", Reason: "must contain @"}
	}
	now := e.stamp()
	u = domain.User{ID: e.newID(), DisplayName: name, Email: email, CreatedAt: now, UpdatedAt: now}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		return e.Repo.InsertUser(ctx, tx, u)
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// EnsureDefaultUser returns the first user, creating "Local User" in an
// empty workspace.
func (e Engine) EnsureDefaultUser(ctx context.Context) (domain.User, error) {
	u, err := e.Repo.FirstUser(ctx)
	if err == nil {
		return u, nil
	}
	if !domain.IsNotFound(err) {
		return u, err
	}
	now := e.stamp()
	u = domain.User{ID: e.newID(), DisplayName: defaultUserName, CreatedAt: now, UpdatedAt: now}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
			return err
		}
		return e.appendActivity(ctx, tx, domain.ActivitySystemSeed, "Seeded default user: "+defaultUserName, activity.Refs{})
	})
	if err != nil {
		return domain.User{}, err
	}
	e.log().Info("seeded default user", "user", u.ID)
	return u, nil
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	return e.Repo.GetUser(ctx, id)
}

func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx)
}

var (
	goalDomains  = []string{"work", "personal"}
	goalStatuses = []string{"active", "paused", "completed", "archived"}
	boardKinds   = []string{"generic", "content_pipeline", "software_pipeline", "custom"}
)

func oneOf(field, v string, allowed []string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return domain.ValidationError{Field: field, Reason: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", "))}
}

// GoalCreateOptions are parameters for creating a goal.
type GoalCreateOptions struct {
	Title       string
	Description string
	Domain      string
	Status      string
	Priority    domain.Priority
	OwnerUserID string
}

// CreateGoal inserts the goal together with its default "<title> Board".
func (e Engine) CreateGoal(ctx context.Context, opts GoalCreateOptions) (g domain.Goal, err error) {
	ctx, end := telemetry.StartOp(ctx, "goal.create")
	defer func() { end(err) }()

	limits := e.cfg().Limits
	title, err := requireText("title", opts.Title, limits.Title)
	if err != nil {
		return g, err
	}
	desc, err := limitText("description", strings.TrimSpace(opts.Description), limits.Description)
	if err != nil {
		return g, err
	}
	g = domain.Goal{
		ID:          e.newID(),
		Title:       title,
		Description: desc,
		Domain:      defaultString(opts.Domain, "work"),
		Status:      defaultString(opts.Status, "active"),
		Priority:    domain.Priority(defaultString(string(opts.Priority), string(domain.PriorityP2))),
		OwnerUserID: optionalString(opts.OwnerUserID),
	}
	if err := oneOf("domain", g.Domain, goalDomains); err != nil {
		return domain.Goal{}, err
	}
	if err := oneOf("status", g.Status, goalStatuses); err != nil {
		return domain.Goal{}, err
	}
	if _, err := domain.ParsePriority(string(g.Priority)); err != nil {
		return domain.Goal{}, err
	}
	now := e.stamp()
	g.CreatedAt, g.UpdatedAt = now, now
	board := domain.Board{
		ID:        e.newID(),
		Name:      title + " Board",
		GoalID:    &g.ID,
		Kind:      "generic",
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if g.OwnerUserID != nil {
			if _, err := e.Repo.GetUserTx(ctx, tx, *g.OwnerUserID); err != nil {
				return err
			}
		}
		if err := e.Repo.InsertGoal(ctx, tx, g); err != nil {
			return fmt.Errorf("insert goal: %w", err)
		}
		if err := e.Repo.InsertBoard(ctx, tx, board); err != nil {
			return fmt.Errorf("insert default board: %w", err)
		}
		return e.appendActivity(ctx, tx, domain.ActivityGoalCreated, "Goal created: "+g.Title, activity.Refs{GoalID: g.ID})
	})
	if err != nil {
		return domain.Goal{}, err
	}
	return g, nil
}

// GoalUpdateOptions is a field patch; nil leaves a field as is.
type GoalUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Domain      *string
	Status      *string
	Priority    *domain.Priority
	OwnerUserID *string
}

func (e Engine) UpdateGoal(ctx context.Context, opts GoalUpdateOptions) (g domain.Goal, err error) {
	ctx, end := telemetry.StartOp(ctx, "goal.update")
	defer func() { end(err) }()

	limits := e.cfg().Limits
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.Repo.GetGoalTx(ctx, tx, opts.ID)
		if err != nil {
			return err
		}
		if opts.Title != nil {
			if cur.Title, err = requireText("title", *opts.Title, limits.Title); err != nil {
				return err
			}
		}
		if opts.Description != nil {
			if cur.Description, err = limitText("description", strings.TrimSpace(*opts.Description), limits.Description); err != nil {
				return err
			}
		}
		if opts.Domain != nil {
			if err := oneOf("domain", *opts.Domain, goalDomains); err != nil {
				return err
			}
			cur.Domain = *opts.Domain
		}
		if opts.Status != nil {
			if err := oneOf("status", *opts.Status, goalStatuses); err != nil {
				return err
			}
			cur.Status = *opts.Status
		}
		if opts.Priority != nil {
			if cur.Priority, err = domain.ParsePriority(string(*opts.Priority)); err != nil {
				return err
			}
		}
		if opts.OwnerUserID != nil {
			cur.OwnerUserID = optionalString(*opts.OwnerUserID)
			if cur.OwnerUserID != nil {
				if _, err := e.Repo.GetUserTx(ctx, tx, *cur.OwnerUserID); err != nil {
					return err
				}
			}
		}
		cur.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateGoal(ctx, tx, cur); err != nil {
			return err
		}
		g = cur
		return e.appendActivity(ctx, tx, domain.ActivityGoalUpdated, "Goal updated: "+cur.Title, activity.Refs{GoalID: cur.ID})
	})
	if err != nil {
		return domain.Goal{}, err
	}
	return g, nil
}

func (e Engine) GetGoal(ctx context.Context, id string) (domain.Goal, error) {
	return e.Repo.GetGoal(ctx, id)
}

func (e Engine) ListGoals(ctx context.Context, status string) ([]domain.Goal, error) {
	if status != "" {
		if err := oneOf("status", status, goalStatuses); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListGoals(ctx, status)
}

// BoardCreateOptions are parameters for creating a board.
type BoardCreateOptions struct {
	Name        string
	Description string
	GoalID      string
	Kind        string
	Columns     []string
}

func (e Engine) CreateBoard(ctx context.Context, opts BoardCreateOptions) (b domain.Board, err error) {
	ctx, end := telemetry.StartOp(ctx, "board.create")
	defer func() { end(err) }()

	limits := e.cfg().Limits
	name, err := requireText("name", opts.Name, limits.Title)
	if err != nil {
		return b, err
	}
	desc, err := limitText("description", strings.TrimSpace(opts.Description), limits.Description)
	if err != nil {
		return b, err
	}
	kind := defaultString(opts.Kind, "generic")
	if err := oneOf("kind", kind, boardKinds); err != nil {
		return b, err
	}
	columns, err := e.validateColumns(opts.Columns)
	if err != nil {
		return b, err
	}
	now := e.stamp()
	b = domain.Board{
		ID:          e.newID(),
		Name:        name,
		Description: desc,
		GoalID:      optionalString(opts.GoalID),
		Kind:        kind,
		Columns:     columns,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if b.GoalID != nil {
			if _, err := e.Repo.GetGoalTx(ctx, tx, *b.GoalID); err != nil {
				return err
			}
		}
		return e.Repo.InsertBoard(ctx, tx, b)
	})
	if err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

// BoardUpdateOptions is a field patch; nil leaves a field as is. An empty
// Columns slice clears the custom columns.
type BoardUpdateOptions struct {
	ID          string
	Name        *string
	Description *string
	GoalID      *string
	Kind        *string
	Columns     *[]string
}

func (e Engine) UpdateBoard(ctx context.Context, opts BoardUpdateOptions) (b domain.Board, err error) {
	ctx, end := telemetry.StartOp(ctx, "board.update")
	defer func() { end(err) }()

	limits := e.cfg().Limits
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.Repo.GetBoardTx(ctx, tx, opts.ID)
		if err != nil {
			return err
		}
		if opts.Name != nil {
			if cur.Name, err = requireText("name", *opts.Name, limits.Title); err != nil {
				return err
			}
		}
		if opts.Description != nil {
			if cur.Description, err = limitText("description", strings.TrimSpace(*opts.Description), limits.Description); err != nil {
				return err
			}
		}
		if opts.GoalID != nil {
			cur.GoalID = optionalString(*opts.GoalID)
			if cur.GoalID != nil {
				if _, err := e.Repo.GetGoalTx(ctx, tx, *cur.GoalID); err != nil {
					return err
				}
			}
		}
		if opts.Kind != nil {
			if err := oneOf("kind", *opts.Kind, boardKinds); err != nil {
				return err
			}
			cur.Kind = *opts.Kind
		}
		if opts.Columns != nil {
			if cur.Columns, err = e.validateColumns(*opts.Columns); err != nil {
				return err
			}
		}
		cur.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateBoard(ctx, tx, cur); err != nil {
			return err
		}
		b = cur
		return nil
	})
	if err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

func (e Engine) validateColumns(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	limits := e.cfg().Limits
	if len(in) > limits.BoardColumns {
		return nil, domain.ValidationError{Field: "columns", Reason: fmt.Sprintf("cannot exceed %d items", limits.BoardColumns)}
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, col := range in {
		col = strings.TrimSpace(col)
		if col == "" {
			return nil, domain.ValidationError{Field: "columns", Reason: "column name cannot be empty"}
		}
		if len([]rune(col)) > limits.ColumnName {
			return nil, domain.ValidationError{Field: "columns", Reason: fmt.Sprintf("column name exceeds %d characters", limits.ColumnName)}
		}
		if seen[col] {
			return nil, domain.ValidationError{Field: "columns", Reason: fmt.Sprintf("duplicate column name %q", col)}
		}
		seen[col] = true
		out = append(out, col)
	}
	return out, nil
}

func (e Engine) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	return e.Repo.GetBoard(ctx, id)
}

func (e Engine) ListBoards(ctx context.Context, goalID string) ([]domain.Board, error) {
	return e.Repo.ListBoards(ctx, goalID)
}

func defaultString(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// DefaultBoard returns the oldest board of a goal.
func (e Engine) DefaultBoard(ctx context.Context, goalID string) (domain.Board, error) {
	boards, err := e.Repo.ListBoards(ctx, goalID)
	if err != nil {
		return domain.Board{}, err
	}
	if len(boards) == 0 {
		return domain.Board{}, domain.NotFoundError{Entity: "board for goal", ID: goalID}
	}
	return boards[0], nil
}

