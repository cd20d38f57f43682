package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"opsconsole/internal/activity"
	"opsconsole/internal/domain"
	"opsconsole/internal/repo"
	"opsconsole/internal/telemetry"
)

const (
	complianceMessageLimit = 1000
	complianceFieldLimit   = 500
)

// ComplianceCreateOptions records a policy violation reported by an agent or
// gateway.
type ComplianceCreateOptions struct {
	Severity        domain.ComplianceSeverity
	Message         string
	AttemptedAction string
	PolicyRule      string
	GoalID          string
	TaskID          string
	RunID           string
	AgentID         string
	GatewayID       string
}

func (e Engine) CreateComplianceEvent(ctx context.Context, opts ComplianceCreateOptions) (c domain.ComplianceEvent, err error) {
	ctx, end := telemetry.StartOp(ctx, "compliance.create", attribute.String("compliance.severity", string(opts.Severity)))
	defer func() { end(err) }()

	sev, err := domain.ParseSeverity(string(opts.Severity))
	if err != nil {
		return c, err
	}
	msg, err := requireText("message", opts.Message, complianceMessageLimit)
	if err != nil {
		return c, err
	}
	attempted, err := limitText("attempted_action", strings.TrimSpace(opts.AttemptedAction), complianceFieldLimit)
	if err != nil {
		return c, err
	}
	rule, err := limitText("policy_rule", strings.TrimSpace(opts.PolicyRule), complianceFieldLimit)
	if err != nil {
		return c, err
	}
	c = domain.ComplianceEvent{
		ID:              e.newID(),
		Severity:        sev,
		Message:         msg,
		GoalID:          optionalString(opts.GoalID),
		TaskID:          optionalString(opts.TaskID),
		RunID:           optionalString(opts.RunID),
		AgentID:         optionalString(opts.AgentID),
		GatewayID:       optionalString(opts.GatewayID),
		AttemptedAction: attempted,
		PolicyRule:      rule,
		CreatedAt:       e.stamp(),
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertComplianceEvent(ctx, tx, c); err != nil {
			return fmt.Errorf("insert compliance event: %w", err)
		}
		return e.appendActivity(ctx, tx, domain.ActivityComplianceCreated, fmt.Sprintf("Compliance event [%s]: %s", sev, msg), activity.Refs{
			GoalID:    deref(c.GoalID),
			TaskID:    deref(c.TaskID),
			RunID:     deref(c.RunID),
			AgentID:   deref(c.AgentID),
			GatewayID: deref(c.GatewayID),
		})
	})
	if err != nil {
		return domain.ComplianceEvent{}, err
	}
	return c, nil
}

// ResolveComplianceEvent marks an open event resolved. Resolving twice is an
// InvalidState error.
func (e Engine) ResolveComplianceEvent(ctx context.Context, id, note string) (c domain.ComplianceEvent, err error) {
	ctx, end := telemetry.StartOp(ctx, "compliance.resolve")
	defer func() { end(err) }()

	resolvedNote := optionalString(truncateRunes(strings.TrimSpace(note), e.cfg().Limits.ResolutionNote))
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := e.Repo.GetComplianceEventTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Resolved {
			return domain.StateError{Entity: "compliance event", ID: id, Status: "resolved", Reason: "is already resolved"}
		}
		now := e.stamp()
		if err := e.Repo.MarkComplianceResolved(ctx, tx, id, now, resolvedNote); err != nil {
			return err
		}
		cur.Resolved = true
		cur.ResolvedAt = &now
		cur.ResolvedNote = resolvedNote
		c = cur
		return nil
	})
	if err != nil {
		return domain.ComplianceEvent{}, err
	}
	return c, nil
}

func (e Engine) ListComplianceEvents(ctx context.Context, resolved bool, severity domain.ComplianceSeverity, limit int) ([]domain.ComplianceEvent, error) {
	if severity != "" {
		if _, err := domain.ParseSeverity(string(severity)); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListComplianceEvents(ctx, repo.ComplianceFilters{Resolved: resolved, Severity: severity, Limit: clampLimit(limit)})
}
