package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"opsconsole/internal/config"
	"opsconsole/internal/db"
	"opsconsole/internal/domain"
)

func newTxEngine(t *testing.T, maxElapsed time.Duration) Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	cfg := config.Default()
	cfg.Store.BusyRetryMaxElapsed = config.Duration(maxElapsed)
	return New(conn, cfg)
}

func TestIsBusy(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{fmt.Errorf("insert task: %w", errors.New("SQLITE_BUSY")), true},
		{errors.New("UNIQUE constraint failed: decisions.id"), false},
		{domain.ValidationError{Field: "database is locked", Reason: "x"}, false},
	}
	for _, tc := range cases {
		if got := isBusy(tc.err); got != tc.want {
			t.Errorf("isBusy(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestWithTxRetriesBusy(t *testing.T) {
	eng := newTxEngine(t, time.Second)
	calls := 0
	err := eng.withTx(context.Background(), func(tx *sql.Tx) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withTx: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	eng := newTxEngine(t, time.Second)
	calls := 0
	want := domain.NotFoundError{Entity: "task", ID: "x"}
	err := eng.withTx(context.Background(), func(tx *sql.Tx) error {
		calls++
		return want
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithTxRetryDisabled(t *testing.T) {
	eng := newTxEngine(t, 0)
	calls := 0
	err := eng.withTx(context.Background(), func(tx *sql.Tx) error {
		calls++
		return errors.New("database is locked")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Fatalf("got %q", got)
	}
	if got := truncateRunes("abc", 0); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
