package migrate

import (
	"context"
	"testing"

	"opsconsole/internal/db"
)

func TestMigrateIsRepeatable(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if v, err := Current(ctx, conn); err != nil || v != 0 {
		t.Fatalf("fresh store version = %d, %v", v, err)
	}
	if err := Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Migrate(ctx, conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	latest, err := Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	v, err := Current(ctx, conn)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if v != latest || latest < 2 {
		t.Fatalf("expected version %d, got %d", latest, v)
	}
	for _, table := range []string{"users", "goals", "boards", "tasks", "decisions", "activity_events", "compliance_events", "runs", "outputs"} {
		var n int
		if err := conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil || n != 1 {
			t.Fatalf("table %s missing (n=%d err=%v)", table, n, err)
		}
	}
}
