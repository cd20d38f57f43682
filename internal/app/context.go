package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"opsconsole/internal/config"
	"opsconsole/internal/db"
	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
	"opsconsole/internal/migrate"
)

// Context is an opened workspace: config, migrated store, and an engine
// bound to both.
type Context struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
}

// Open loads the workspace config (defaults when the file is missing),
// opens and migrates the store, and builds the engine.
func Open(ctx context.Context, workspace string, logger *slog.Logger) (*Context, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace, BusyTimeoutMS: cfg.Store.BusyTimeoutMS})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg)
	if logger != nil {
		eng.Logger = logger
	}
	return &Context{Workspace: workspace, Config: cfg, DB: conn, Engine: eng}, nil
}

// ResolveUser picks the acting user: the explicit id when given, otherwise
// the seeded local user.
func (c *Context) ResolveUser(ctx context.Context, override string) (domain.User, error) {
	if override != "" {
		return c.Engine.GetUser(ctx, override)
	}
	return c.Engine.EnsureDefaultUser(ctx)
}

func (c *Context) Close() error {
	return c.DB.Close()
}
