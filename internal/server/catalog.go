package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"opsconsole/internal/domain"
	"opsconsole/internal/engine"
)

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		u, err := e.CreateUser(ctx, input.Body.DisplayName, input.Body.Email)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserList `json:"body"`
	}, error) {
		items, err := e.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserList `json:"body"`
		}{Body: UserList{Items: nonNil(items)}}, nil
	})
}

type goalBody struct {
	Body domain.Goal `json:"body"`
}

func registerGoals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-goal",
		Method:        http.MethodPost,
		Path:          "/goals",
		Summary:       "Create goal with its default board",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateGoalRequest `json:"body"`
	}) (*goalBody, error) {
		b := input.Body
		g, err := e.CreateGoal(ctx, engine.GoalCreateOptions{
			Title:       b.Title,
			Description: b.Description,
			Domain:      b.Domain,
			Status:      b.Status,
			Priority:    b.Priority,
			OwnerUserID: b.OwnerUserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &goalBody{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-goals",
		Method:      http.MethodGet,
		Path:        "/goals",
		Summary:     "List goals",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"active,paused,completed,archived"`
	}) (*struct {
		Body GoalList `json:"body"`
	}, error) {
		items, err := e.ListGoals(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GoalList `json:"body"`
		}{Body: GoalList{Items: nonNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-goal",
		Method:      http.MethodGet,
		Path:        "/goals/{goal_id}",
		Summary:     "Get goal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		GoalID string `path:"goal_id"`
	}) (*goalBody, error) {
		g, err := e.GetGoal(ctx, input.GoalID)
		if err != nil {
			return nil, handleError(err)
		}
		return &goalBody{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-goal",
		Method:      http.MethodPatch,
		Path:        "/goals/{goal_id}",
		Summary:     "Patch goal fields",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		GoalID string            `path:"goal_id"`
		Body   UpdateGoalRequest `json:"body"`
	}) (*goalBody, error) {
		b := input.Body
		g, err := e.UpdateGoal(ctx, engine.GoalUpdateOptions{
			ID:          input.GoalID,
			Title:       b.Title,
			Description: b.Description,
			Domain:      b.Domain,
			Status:      b.Status,
			Priority:    b.Priority,
			OwnerUserID: b.OwnerUserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &goalBody{Body: g}, nil
	})
}

type boardBody struct {
	Body domain.Board `json:"body"`
}

func registerBoards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-board",
		Method:        http.MethodPost,
		Path:          "/boards",
		Summary:       "Create board",
		DefaultStatus: http.StatusCreated,
		Errors:        commonErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateBoardRequest `json:"body"`
	}) (*boardBody, error) {
		b := input.Body
		board, err := e.CreateBoard(ctx, engine.BoardCreateOptions{
			Name:        b.Name,
			Description: b.Description,
			GoalID:      b.GoalID,
			Kind:        b.Kind,
			Columns:     b.Columns,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &boardBody{Body: board}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List boards",
	}, func(ctx context.Context, input *struct {
		GoalID string `query:"goal_id"`
	}) (*struct {
		Body BoardList `json:"body"`
	}, error) {
		items, err := e.ListBoards(ctx, input.GoalID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BoardList `json:"body"`
		}{Body: BoardList{Items: nonNil(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{board_id}",
		Summary:     "Get board",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BoardID string `path:"board_id"`
	}) (*boardBody, error) {
		b, err := e.GetBoard(ctx, input.BoardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &boardBody{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-board",
		Method:      http.MethodPatch,
		Path:        "/boards/{board_id}",
		Summary:     "Patch board fields",
		Errors:      commonErrors,
	}, func(ctx context.Context, input *struct {
		BoardID string             `path:"board_id"`
		Body    UpdateBoardRequest `json:"body"`
	}) (*boardBody, error) {
		b := input.Body
		board, err := e.UpdateBoard(ctx, engine.BoardUpdateOptions{
			ID:          input.BoardID,
			Name:        b.Name,
			Description: b.Description,
			GoalID:      b.GoalID,
			Kind:        b.Kind,
			Columns:     b.Columns,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &boardBody{Body: board}, nil
	})
}
