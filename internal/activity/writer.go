// Package activity writes the append-only audit log.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"opsconsole/internal/domain"
)

// Refs names the entities an event is about. Empty fields are stored as NULL.
type Refs struct {
	GoalID     string
	TaskID     string
	DecisionID string
	RunID      string
	OutputID   string
	AgentID    string
	GatewayID  string
}

type Writer struct {
	Now func() time.Time
}

// Append inserts one event inside tx so it commits or rolls back with the
// mutation it describes. It returns the new event id.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, typ domain.ActivityType, message string, refs Refs) (int64, error) {
	if !typ.Valid() {
		return 0, fmt.Errorf("unknown activity type %q", typ)
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx, `INSERT INTO activity_events(type,message,goal_id,task_id,decision_id,run_id,output_id,agent_id,gateway_id,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		typ, nullable(message), nullable(refs.GoalID), nullable(refs.TaskID), nullable(refs.DecisionID),
		nullable(refs.RunID), nullable(refs.OutputID), nullable(refs.AgentID), nullable(refs.GatewayID), ts)
	if err != nil {
		return 0, fmt.Errorf("append %s activity: %w", typ, err)
	}
	return res.LastInsertId()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
