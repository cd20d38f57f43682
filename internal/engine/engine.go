package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"opsconsole/internal/activity"
	"opsconsole/internal/config"
	"opsconsole/internal/domain"
	"opsconsole/internal/repo"
)

// Engine runs every state-changing operation as one SQLite transaction: the
// entity writes and the activity events they imply commit together or not at
// all.
type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Config   *config.Config
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Logger: slog.Default(),
		Now:    time.Now,
		NewID:  func() string { return uuid.NewString() },
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) cfg() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

// appendActivity writes through e.Activity, stamping with the engine clock
// unless the writer carries its own.
func (e Engine) appendActivity(ctx context.Context, tx *sql.Tx, typ domain.ActivityType, msg string, refs activity.Refs) error {
	w := e.Activity
	if w.Now == nil {
		w.Now = e.now
	}
	_, err := w.Append(ctx, tx, typ, msg, refs)
	return err
}

// withTx runs fn inside a transaction and commits it. A transaction that
// fails because another writer holds the database lock is retried from the
// start with exponential backoff; any other error aborts immediately and
// the rollback discards every write fn made.
func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := e.runTxOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if isBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		e.log().Info("store busy, retrying transaction", "attempt", attempt, "wait", wait, "err", err)
	}
	return backoff.RetryNotify(op, backoff.WithContext(e.newBusyBackoff(), ctx), notify)
}

func (e Engine) runTxOnce(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) newBusyBackoff() backoff.BackOff {
	maxElapsed := time.Duration(e.cfg().Store.BusyRetryMaxElapsed)
	if maxElapsed <= 0 {
		return &backoff.StopBackOff{}
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 25 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = maxElapsed
	return bo
}

// isBusy reports SQLite lock contention. Domain errors are never retried.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	for _, kind := range []error{domain.ErrNotFound, domain.ErrInvalidTransition, domain.ErrInvalidState, domain.ErrValidation} {
		if errors.Is(err, kind) {
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// requireText trims v and enforces presence and a rune limit.
func requireText(field, v string, limit int) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", domain.ValidationError{Field: field, Reason: "required"}
	}
	return limitText(field, v, limit)
}

func limitText(field, v string, limit int) (string, error) {
	if limit > 0 && len([]rune(v)) > limit {
		return "", domain.ValidationError{Field: field, Reason: fmt.Sprintf("too long (max %d characters)", limit)}
	}
	return v, nil
}
