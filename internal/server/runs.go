package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

type runBody struct {
	Body domain.Run `json:"body"`
}

func registerRuns(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-run",
		Method:        http.MethodPost,
		Path:          "/runs",
		Summary:       "Register a queued agent run",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateRunRequest `json:"body"`
	}) (*runBody, error) {
		b := input.Body
		r, err := e.CreateRun(ctx, engine.RunCreateOptions{
			AgentID:           b.AgentID,
			TaskID:            b.TaskID,
			GoalID:            b.GoalID,
			GatewayID:         b.GatewayID,
			Objective:         b.Objective,
			RelatedDecisionID: b.RelatedDecisionID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &runBody{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List runs, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status  string `query:"status" enum:"queued,running,waiting_decision,succeeded,failed,canceled"`
		AgentID string `query:"agent_id"`
		TaskID  string `query:"task_id"`
		Limit   int    `query:"limit" default:"50"`
	}) (*struct {
		Body RunList `json:"body"`
	}, error) {
		items, err := e.ListRuns(ctx, engine.RunListOptions{
			Status:  domain.RunStatus(input.Status),
			AgentID: input.AgentID,
			TaskID:  input.TaskID,
			Limit:   normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunList `json:"body"`
		}{Body: RunList{Items: nonNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{run_id}",
		Summary:     "Get run",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RunID string `path:"run_id"`
	}) (*runBody, error) {
		r, err := e.GetRun(ctx, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		return &runBody{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-run-status",
		Method:      http.MethodPost,
		Path:        "/runs/{run_id}/status",
		Summary:     "Report run progress",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		RunID string              `path:"run_id"`
		Body  SetRunStatusRequest `json:"body"`
	}) (*runBody, error) {
		r, err := e.SetRunStatus(ctx, engine.RunStatusOptions{
			ID:      input.RunID,
			Status:  input.Body.Status,
			Summary: input.Body.Summary,
			Error:   input.Body.Error,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &runBody{Body: r}, nil
	})
}

type outputBody struct {
	Body domain.Output `json:"body"`
}

func registerOutputs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-output",
		Method:        http.MethodPost,
		Path:          "/outputs",
		Summary:       "Record a deliverable",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateOutputRequest `json:"body"`
	}) (*outputBody, error) {
		b := input.Body
		o, err := e.CreateOutput(ctx, engine.OutputCreateOptions{
			Title:     b.Title,
			Type:      b.Type,
			GoalID:    b.GoalID,
			TaskID:    b.TaskID,
			Summary:   b.Summary,
			Artifacts: b.Artifacts,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &outputBody{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-outputs",
		Method:      http.MethodGet,
		Path:        "/outputs",
		Summary:     "List outputs, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		GoalID string `query:"goal_id"`
		Type   string `query:"type" enum:"research,doc,code_diff,summary,linkset,image,video,architecture,decision,other"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body OutputList `json:"body"`
	}, error) {
		items, err := e.ListOutputs(ctx, input.GoalID, domain.OutputType(input.Type), normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OutputList `json:"body"`
		}{Body: OutputList{Items: nonNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-output",
		Method:      http.MethodGet,
		Path:        "/outputs/{output_id}",
		Summary:     "Get output",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OutputID string `path:"output_id"`
	}) (*outputBody, error) {
		o, err := e.GetOutput(ctx, input.OutputID)
		if err != nil {
			return nil, handleError(err)
		}
		return &outputBody{Body: o}, nil
	})
}
