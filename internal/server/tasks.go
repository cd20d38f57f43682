package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

type taskPath struct {
	TaskID string `path:"task_id"`
}

type taskBody struct {
	Body TaskResponse `json:"body"`
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*taskBody, error) {
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			GoalID:      input.Body.GoalID,
			BoardID:     input.Body.BoardID,
			Status:      input.Body.Status,
			Priority:    input.Body.Priority,
			DueAt:       input.Body.DueAt,
			Assignee:    input.Body.Assignee,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskBody{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks, most recently updated first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		GoalID     string `query:"goal_id"`
		BoardID    string `query:"board_id"`
		Status     string `query:"status" enum:"todo,in_progress,blocked,waiting_decision,done,canceled"`
		Unassigned bool   `query:"unassigned" doc:"Only tasks that sit on no board"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body TaskList `json:"body"`
	}, error) {
		items, err := e.ListTasks(ctx, engine.TaskListOptions{
			GoalID:     input.GoalID,
			BoardID:    input.BoardID,
			Status:     domain.TaskStatus(input.Status),
			Unassigned: input.Unassigned,
			Limit:      normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskList `json:"body"`
		}{Body: TaskList{Items: mapTasks(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-overdue-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks/overdue",
		Summary:     "List open tasks past their due time",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body TaskList `json:"body"`
	}, error) {
		items, err := e.ListOverdueTasks(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskList `json:"body"`
		}{Body: TaskList{Items: mapTasks(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*taskBody, error) {
		t, err := e.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskBody{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Patch task fields",
		Description: "A status given here is written as is, without the transition table. Use the transition endpoint for checked changes.",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*taskBody, error) {
		b := input.Body
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:            input.TaskID,
			Title:         b.Title,
			Description:   b.Description,
			GoalID:        b.GoalID,
			BoardID:       b.BoardID,
			Status:        b.Status,
			Priority:      b.Priority,
			DueAt:         b.DueAt,
			Assignee:      b.Assignee,
			ClearAssignee: b.ClearAssignee,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskBody{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/transition",
		Summary:     "Validated status transition",
		Description: "Entering blocked with a reason appends a note; entering waiting_decision opens a pending decision.",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string                `path:"task_id"`
		Body   TransitionTaskRequest `json:"body"`
	}) (*struct {
		Body TransitionResponse `json:"body"`
	}, error) {
		res, err := e.TransitionTaskStatus(ctx, input.TaskID, input.Body.Status, engine.TransitionOptions{
			BlockedReason: input.Body.BlockedReason,
			DecisionTitle: input.Body.DecisionTitle,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TransitionResponse `json:"body"`
		}{Body: TransitionResponse{TaskID: res.TaskID, DecisionID: res.DecisionID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/move",
		Summary:     "Move task to a board column",
		Description: "Unchecked status overwrite for board drag and drop. The task must be on a board.",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string          `path:"task_id"`
		Body   MoveTaskRequest `json:"body"`
	}) (*taskBody, error) {
		id, err := e.MoveStatus(ctx, input.TaskID, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.GetTask(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskBody{Body: taskResponse(t)}, nil
	})
}
