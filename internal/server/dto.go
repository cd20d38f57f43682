package server

import (
	"opsconsole/internal/domain"
)

// Request payloads

type CreateUserRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

type CreateGoalRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Domain      string          `json:"domain,omitempty" enum:"work,personal"`
	Status      string          `json:"status,omitempty" enum:"active,paused,completed,archived"`
	Priority    domain.Priority `json:"priority,omitempty" enum:"p1,p2,p3"`
	OwnerUserID string          `json:"owner_user_id,omitempty"`
}

type UpdateGoalRequest struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Domain      *string          `json:"domain,omitempty" enum:"work,personal"`
	Status      *string          `json:"status,omitempty" enum:"active,paused,completed,archived"`
	Priority    *domain.Priority `json:"priority,omitempty" enum:"p1,p2,p3"`
	OwnerUserID *string          `json:"owner_user_id,omitempty"`
}

type CreateBoardRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	GoalID      string   `json:"goal_id,omitempty"`
	Kind        string   `json:"kind,omitempty" enum:"generic,content_pipeline,software_pipeline,custom"`
	Columns     []string `json:"columns,omitempty"`
}

type UpdateBoardRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	GoalID      *string   `json:"goal_id,omitempty"`
	Kind        *string   `json:"kind,omitempty" enum:"generic,content_pipeline,software_pipeline,custom"`
	Columns     *[]string `json:"columns,omitempty"`
}

type CreateTaskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	GoalID      string              `json:"goal_id"`
	BoardID     string              `json:"board_id,omitempty"`
	Status      domain.TaskStatus   `json:"status,omitempty" enum:"todo,in_progress,blocked,waiting_decision,done,canceled"`
	Priority    domain.Priority     `json:"priority,omitempty" enum:"p1,p2,p3"`
	DueAt       string              `json:"due_at,omitempty"`
	Assignee    *domain.AssigneeRef `json:"assignee,omitempty"`
}

type UpdateTaskRequest struct {
	Title         *string             `json:"title,omitempty"`
	Description   *string             `json:"description,omitempty"`
	GoalID        *string             `json:"goal_id,omitempty"`
	BoardID       *string             `json:"board_id,omitempty"`
	Status        *domain.TaskStatus  `json:"status,omitempty" enum:"todo,in_progress,blocked,waiting_decision,done,canceled"`
	Priority      *domain.Priority    `json:"priority,omitempty" enum:"p1,p2,p3"`
	DueAt         *string             `json:"due_at,omitempty"`
	Assignee      *domain.AssigneeRef `json:"assignee,omitempty"`
	ClearAssignee bool                `json:"clear_assignee,omitempty"`
}

type TransitionTaskRequest struct {
	Status        domain.TaskStatus `json:"status" enum:"todo,in_progress,blocked,waiting_decision,done,canceled"`
	BlockedReason string            `json:"blocked_reason,omitempty"`
	DecisionTitle string            `json:"decision_title,omitempty"`
}

type MoveTaskRequest struct {
	Status domain.TaskStatus `json:"status" enum:"todo,in_progress,blocked,waiting_decision,done,canceled"`
}

type CreateDecisionRequest struct {
	Type             domain.DecisionType      `json:"type" enum:"execution_approval,decision_needed,clarification,risk_exception,merge_review"`
	Title            string                   `json:"title"`
	Description      string                   `json:"description,omitempty"`
	GoalID           string                   `json:"goal_id,omitempty"`
	TaskID           string                   `json:"task_id,omitempty"`
	RunID            string                   `json:"run_id,omitempty"`
	AgentID          string                   `json:"agent_id,omitempty"`
	Options          []domain.DecisionOption  `json:"options,omitempty"`
	Recommendation   string                   `json:"recommendation,omitempty"`
	ExecutionPreview *domain.ExecutionPreview `json:"execution_preview,omitempty"`
}

type ResolveDecisionRequest struct {
	Action domain.ResolveAction `json:"action" enum:"approve,reject,request_changes"`
	UserID string               `json:"user_id,omitempty" doc:"Resolving user; defaults to the local user"`
	Note   string               `json:"note,omitempty"`
}

type CreateComplianceRequest struct {
	Severity        domain.ComplianceSeverity `json:"severity" enum:"info,warn,high,critical"`
	Message         string                    `json:"message"`
	AttemptedAction string                    `json:"attempted_action,omitempty"`
	PolicyRule      string                    `json:"policy_rule,omitempty"`
	GoalID          string                    `json:"goal_id,omitempty"`
	TaskID          string                    `json:"task_id,omitempty"`
	RunID           string                    `json:"run_id,omitempty"`
	AgentID         string                    `json:"agent_id,omitempty"`
	GatewayID       string                    `json:"gateway_id,omitempty"`
}

type ResolveComplianceRequest struct {
	Note string `json:"note,omitempty"`
}

type CreateRunRequest struct {
	AgentID           string `json:"agent_id"`
	TaskID            string `json:"task_id,omitempty"`
	GoalID            string `json:"goal_id,omitempty"`
	GatewayID         string `json:"gateway_id,omitempty"`
	Objective         string `json:"objective,omitempty"`
	RelatedDecisionID string `json:"related_decision_id,omitempty"`
}

type SetRunStatusRequest struct {
	Status  domain.RunStatus `json:"status" enum:"queued,running,waiting_decision,succeeded,failed,canceled"`
	Summary string           `json:"summary,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type CreateOutputRequest struct {
	Title     string            `json:"title"`
	Type      domain.OutputType `json:"type" enum:"research,doc,code_diff,summary,linkset,image,video,architecture,decision,other"`
	GoalID    string            `json:"goal_id,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Artifacts []domain.Artifact `json:"artifacts,omitempty"`
}

// Responses

// TaskResponse flattens the assignee sum type into its tagged wire shape.
type TaskResponse struct {
	ID               string              `json:"id"`
	Title            string              `json:"title"`
	Description      string              `json:"description,omitempty"`
	GoalID           string              `json:"goal_id"`
	BoardID          *string             `json:"board_id,omitempty"`
	Status           domain.TaskStatus   `json:"status" enum:"todo,in_progress,blocked,waiting_decision,done,canceled"`
	Priority         domain.Priority     `json:"priority" enum:"p1,p2,p3"`
	DueAt            *string             `json:"due_at,omitempty" format:"date-time"`
	Assignee         *domain.AssigneeRef `json:"assignee,omitempty"`
	LatestDecisionID *string             `json:"latest_decision_id,omitempty"`
	CreatedAt        string              `json:"created_at" format:"date-time"`
	UpdatedAt        string              `json:"updated_at" format:"date-time"`
}

type TransitionResponse struct {
	TaskID     string  `json:"task_id"`
	DecisionID *string `json:"decision_id,omitempty"`
}

type UserList struct {
	Items []domain.User `json:"items"`
}

type GoalList struct {
	Items []domain.Goal `json:"items"`
}

type BoardList struct {
	Items []domain.Board `json:"items"`
}

type TaskList struct {
	Items []TaskResponse `json:"items"`
}

type DecisionList struct {
	Items []domain.Decision `json:"items"`
}

type RunList struct {
	Items []domain.Run `json:"items"`
}

type OutputList struct {
	Items []domain.Output `json:"items"`
}

type ComplianceList struct {
	Items []domain.ComplianceEvent `json:"items"`
}

type ActivityPage struct {
	Items      []domain.ActivityEvent `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		GoalID:           t.GoalID,
		BoardID:          t.BoardID,
		Status:           t.Status,
		Priority:         t.Priority,
		DueAt:            t.DueAt,
		Assignee:         domain.RefOf(t.Assignee),
		LatestDecisionID: t.LatestDecisionID,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
