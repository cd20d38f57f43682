package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Audit feed, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		GoalID     string `query:"goal_id"`
		TaskID     string `query:"task_id"`
		DecisionID string `query:"decision_id"`
		Type       string `query:"type"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor" doc:"next_cursor from the previous page"`
	}) (*struct {
		Body ActivityPage `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var before int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			before = parsed
		}
		items, err := e.ListActivity(ctx, engine.ActivityListOptions{
			GoalID:     input.GoalID,
			TaskID:     input.TaskID,
			DecisionID: input.DecisionID,
			Type:       domain.ActivityType(input.Type),
			Before:     before,
			Limit:      limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := ActivityPage{Items: nonNil(items)}
		if len(items) == limit {
			resp.NextCursor = strconv.FormatInt(items[len(items)-1].ID, 10)
		}
		return &struct {
			Body ActivityPage `json:"body"`
		}{Body: resp}, nil
	})
}

type complianceBody struct {
	Body domain.ComplianceEvent `json:"body"`
}

func registerCompliance(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-compliance-event",
		Method:        http.MethodPost,
		Path:          "/compliance",
		Summary:       "Record a policy violation",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateComplianceRequest `json:"body"`
	}) (*complianceBody, error) {
		b := input.Body
		c, err := e.CreateComplianceEvent(ctx, engine.ComplianceCreateOptions{
			Severity:        b.Severity,
			Message:         b.Message,
			AttemptedAction: b.AttemptedAction,
			PolicyRule:      b.PolicyRule,
			GoalID:          b.GoalID,
			TaskID:          b.TaskID,
			RunID:           b.RunID,
			AgentID:         b.AgentID,
			GatewayID:       b.GatewayID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &complianceBody{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-compliance-events",
		Method:      http.MethodGet,
		Path:        "/compliance",
		Summary:     "List compliance events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Resolved bool   `query:"resolved"`
		Severity string `query:"severity" enum:"info,warn,high,critical"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body ComplianceList `json:"body"`
	}, error) {
		items, err := e.ListComplianceEvents(ctx, input.Resolved, domain.ComplianceSeverity(input.Severity), normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ComplianceList `json:"body"`
		}{Body: ComplianceList{Items: nonNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-compliance-event",
		Method:      http.MethodPost,
		Path:        "/compliance/{event_id}/resolve",
		Summary:     "Mark a compliance event resolved",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		EventID string                   `path:"event_id"`
		Body    ResolveComplianceRequest `json:"body"`
	}) (*complianceBody, error) {
		c, err := e.ResolveComplianceEvent(ctx, input.EventID, input.Body.Note)
		if err != nil {
			return nil, handleError(err)
		}
		return &complianceBody{Body: c}, nil
	})
}
