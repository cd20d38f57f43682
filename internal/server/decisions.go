package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

type decisionBody struct {
	Body domain.Decision `json:"body"`
}

func registerDecisions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-decision",
		Method:        http.MethodPost,
		Path:          "/decisions",
		Summary:       "Open a decision",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateDecisionRequest `json:"body"`
	}) (*decisionBody, error) {
		b := input.Body
		d, err := e.CreateDecision(ctx, engine.DecisionCreateOptions{
			Type:             b.Type,
			Title:            b.Title,
			Description:      b.Description,
			GoalID:           b.GoalID,
			TaskID:           b.TaskID,
			RunID:            b.RunID,
			AgentID:          b.AgentID,
			Options:          b.Options,
			Recommendation:   b.Recommendation,
			ExecutionPreview: b.ExecutionPreview,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &decisionBody{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-decisions",
		Method:      http.MethodGet,
		Path:        "/decisions",
		Summary:     "List decisions, pending by default",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"pending,approved,rejected,changes_requested,canceled"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body DecisionList `json:"body"`
	}, error) {
		items, err := e.ListDecisions(ctx, domain.DecisionStatus(input.Status), normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DecisionList `json:"body"`
		}{Body: DecisionList{Items: nonNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-decision",
		Method:      http.MethodGet,
		Path:        "/decisions/{decision_id}",
		Summary:     "Get decision",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DecisionID string `path:"decision_id"`
	}) (*decisionBody, error) {
		d, err := e.GetDecision(ctx, input.DecisionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &decisionBody{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-decision",
		Method:      http.MethodPost,
		Path:        "/decisions/{decision_id}/resolve",
		Summary:     "Resolve a pending decision",
		Description: "approve resumes a task waiting on the decision, reject blocks it with a note, request_changes leaves it as is.",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		DecisionID string                 `path:"decision_id"`
		Body       ResolveDecisionRequest `json:"body"`
	}) (*decisionBody, error) {
		userID := input.Body.UserID
		if userID == "" {
			u, err := e.EnsureDefaultUser(ctx)
			if err != nil {
				return nil, handleError(err)
			}
			userID = u.ID
		}
		id, err := e.ResolveDecision(ctx, input.DecisionID, input.Body.Action, userID, input.Body.Note)
		if err != nil {
			return nil, handleError(err)
		}
		d, err := e.GetDecision(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &decisionBody{Body: d}, nil
	})
}
