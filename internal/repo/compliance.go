package repo

import (
	"context"
	"database/sql"

	"opsconsole/internal/domain"
)

const complianceColumns = `id,severity,message,goal_id,task_id,run_id,agent_id,gateway_id,attempted_action,policy_rule,resolved,resolved_at,resolved_note,created_at`

func scanCompliance(scan func(...any) error) (domain.ComplianceEvent, error) {
	var c domain.ComplianceEvent
	var goalID, taskID, runID, agentID, gatewayID, attempted, rule, resolvedAt, note sql.NullString
	var resolved int
	if err := scan(&c.ID, &c.Severity, &c.Message, &goalID, &taskID, &runID, &agentID, &gatewayID, &attempted, &rule,
		&resolved, &resolvedAt, &note, &c.CreatedAt); err != nil {
		return c, err
	}
	c.GoalID = strPtr(goalID)
	c.TaskID = strPtr(taskID)
	c.RunID = strPtr(runID)
	c.AgentID = strPtr(agentID)
	c.GatewayID = strPtr(gatewayID)
	c.AttemptedAction = attempted.String
	c.PolicyRule = rule.String
	c.Resolved = resolved != 0
	c.ResolvedAt = strPtr(resolvedAt)
	c.ResolvedNote = strPtr(note)
	return c, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r Repo) InsertComplianceEvent(ctx context.Context, tx *sql.Tx, c domain.ComplianceEvent) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO compliance_events(`+complianceColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Severity, c.Message,
		nullableStringPtr(c.GoalID), nullableStringPtr(c.TaskID), nullableStringPtr(c.RunID), nullableStringPtr(c.AgentID), nullableStringPtr(c.GatewayID),
		nullable(c.AttemptedAction), nullable(c.PolicyRule), boolInt(c.Resolved), nullableStringPtr(c.ResolvedAt), nullableStringPtr(c.ResolvedNote),
		c.CreatedAt)
	return err
}

func (r Repo) MarkComplianceResolved(ctx context.Context, tx *sql.Tx, id, resolvedAt string, note *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE compliance_events SET resolved=1, resolved_at=?, resolved_note=? WHERE id=? AND resolved=0`,
		resolvedAt, nullableStringPtr(note), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.StateError{Entity: "compliance event", ID: id, Status: "resolved", Reason: "is already resolved"}
	}
	return nil
}

func getCompliance(ctx context.Context, q querier, id string) (domain.ComplianceEvent, error) {
	c, err := scanCompliance(q.QueryRowContext(ctx, `SELECT `+complianceColumns+` FROM compliance_events WHERE id=?`, id).Scan)
	return c, notFound(err, "compliance event", id)
}

func (r Repo) GetComplianceEvent(ctx context.Context, id string) (domain.ComplianceEvent, error) {
	return getCompliance(ctx, r.DB, id)
}

func (r Repo) GetComplianceEventTx(ctx context.Context, tx *sql.Tx, id string) (domain.ComplianceEvent, error) {
	return getCompliance(ctx, tx, id)
}

type ComplianceFilters struct {
	Resolved bool
	Severity domain.ComplianceSeverity
	Limit    int
}

func (r Repo) ListComplianceEvents(ctx context.Context, f ComplianceFilters) ([]domain.ComplianceEvent, error) {
	clauses := []string{"resolved=?"}
	args := []any{boolInt(f.Resolved)}
	if f.Severity != "" {
		clauses = append(clauses, "severity=?")
		args = append(args, f.Severity)
	}
	query := `SELECT ` + complianceColumns + ` FROM compliance_events` + where(clauses) + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ComplianceEvent
	for rows.Next() {
		c, err := scanCompliance(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) CountUnresolvedCompliance(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM compliance_events WHERE resolved=0`).Scan(&n)
	return n, err
}
