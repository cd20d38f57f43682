package domain

import "encoding/json"

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type Goal struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Domain      string   `json:"domain" enum:"work,personal"`
	Status      string   `json:"status" enum:"active,paused,completed,archived"`
	Priority    Priority `json:"priority" enum:"p1,p2,p3"`
	OwnerUserID *string  `json:"owner_user_id,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

type Board struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	GoalID      *string  `json:"goal_id,omitempty"`
	Kind        string   `json:"kind,omitempty" enum:"generic,content_pipeline,software_pipeline,custom"`
	Columns     []string `json:"columns,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	GoalID           string     `json:"goal_id"`
	BoardID          *string    `json:"board_id,omitempty"`
	Status           TaskStatus `json:"status"`
	Priority         Priority   `json:"priority"`
	DueAt            *string    `json:"due_at,omitempty" format:"date-time"`
	Assignee         Assignee   `json:"-"`
	LatestDecisionID *string    `json:"latest_decision_id,omitempty"`
	CreatedAt        string     `json:"created_at" format:"date-time"`
	UpdatedAt        string     `json:"updated_at" format:"date-time"`
}

// MarshalJSON renders the assignee sum type in its wire shape.
func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	return json.Marshal(struct {
		plain
		Assignee *AssigneeRef `json:"assignee,omitempty"`
	}{plain: plain(t), Assignee: RefOf(t.Assignee)})
}

type DecisionOption struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Details string `json:"details,omitempty"`
	Risk    string `json:"risk,omitempty"`
}

type FileWrite struct {
	Path string `json:"path"`
	Note string `json:"note,omitempty"`
}

type ExternalAction struct {
	Kind string `json:"kind"`
	Note string `json:"note,omitempty"`
}

// ExecutionPreview describes what an approval would let an agent do. It is
// informational only; nothing here is executed.
type ExecutionPreview struct {
	Commands        []string         `json:"commands,omitempty"`
	FileWrites      []FileWrite      `json:"file_writes,omitempty"`
	ExternalActions []ExternalAction `json:"external_actions,omitempty"`
}

type Decision struct {
	ID               string            `json:"id"`
	Type             DecisionType      `json:"type"`
	Status           DecisionStatus    `json:"status"`
	Title            string            `json:"title"`
	Description      string            `json:"description,omitempty"`
	GoalID           *string           `json:"goal_id,omitempty"`
	TaskID           *string           `json:"task_id,omitempty"`
	RunID            *string           `json:"run_id,omitempty"`
	AgentID          *string           `json:"agent_id,omitempty"`
	Options          []DecisionOption  `json:"options,omitempty"`
	Recommendation   string            `json:"recommendation,omitempty"`
	ExecutionPreview *ExecutionPreview `json:"execution_preview,omitempty"`
	ResolvedByUserID *string           `json:"resolved_by_user_id,omitempty"`
	ResolutionNote   *string           `json:"resolution_note,omitempty"`
	ResolvedAt       *string           `json:"resolved_at,omitempty" format:"date-time"`
	CreatedAt        string            `json:"created_at" format:"date-time"`
	UpdatedAt        string            `json:"updated_at" format:"date-time"`
}

// Run is one execution attempt by an agent. Agent and gateway ids are
// opaque references owned by the agent runtime.
type Run struct {
	ID                string    `json:"id"`
	AgentID           string    `json:"agent_id"`
	TaskID            *string   `json:"task_id,omitempty"`
	GoalID            *string   `json:"goal_id,omitempty"`
	GatewayID         *string   `json:"gateway_id,omitempty"`
	Status            RunStatus `json:"status" enum:"queued,running,waiting_decision,succeeded,failed,canceled"`
	Objective         string    `json:"objective,omitempty"`
	RelatedDecisionID *string   `json:"related_decision_id,omitempty"`
	Summary           string    `json:"summary,omitempty"`
	Error             string    `json:"error,omitempty"`
	StartedAt         *string   `json:"started_at,omitempty" format:"date-time"`
	FinishedAt        *string   `json:"finished_at,omitempty" format:"date-time"`
	CreatedAt         string    `json:"created_at" format:"date-time"`
	UpdatedAt         string    `json:"updated_at" format:"date-time"`
}

type Artifact struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
	Note string `json:"note,omitempty"`
}

// Output is a deliverable produced for a goal or task.
type Output struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Type      OutputType `json:"type" enum:"research,doc,code_diff,summary,linkset,image,video,architecture,decision,other"`
	GoalID    *string    `json:"goal_id,omitempty"`
	TaskID    *string    `json:"task_id,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	CreatedAt string     `json:"created_at" format:"date-time"`
	UpdatedAt string     `json:"updated_at" format:"date-time"`
}

// ActivityEvent is an append-only audit entry. Only ID and CreatedAt are
// always set; references are filled per event type.
type ActivityEvent struct {
	ID         int64        `json:"id"`
	Type       ActivityType `json:"type"`
	Message    string       `json:"message,omitempty"`
	GoalID     string       `json:"goal_id,omitempty"`
	TaskID     string       `json:"task_id,omitempty"`
	DecisionID string       `json:"decision_id,omitempty"`
	RunID      string       `json:"run_id,omitempty"`
	OutputID   string       `json:"output_id,omitempty"`
	AgentID    string       `json:"agent_id,omitempty"`
	GatewayID  string       `json:"gateway_id,omitempty"`
	CreatedAt  string       `json:"created_at" format:"date-time"`
}

type ComplianceEvent struct {
	ID              string             `json:"id"`
	Severity        ComplianceSeverity `json:"severity"`
	Message         string             `json:"message"`
	GoalID          *string            `json:"goal_id,omitempty"`
	TaskID          *string            `json:"task_id,omitempty"`
	RunID           *string            `json:"run_id,omitempty"`
	AgentID         *string            `json:"agent_id,omitempty"`
	GatewayID       *string            `json:"gateway_id,omitempty"`
	AttemptedAction string             `json:"attempted_action,omitempty"`
	PolicyRule      string             `json:"policy_rule,omitempty"`
	Resolved        bool               `json:"resolved"`
	ResolvedAt      *string            `json:"resolved_at,omitempty" format:"date-time"`
	ResolvedNote    *string            `json:"resolved_note,omitempty"`
	CreatedAt       string             `json:"created_at" format:"date-time"`
}

// StatusSummary is the console's at-a-glance view.
type StatusSummary struct {
	TaskCounts           map[TaskStatus]int `json:"task_counts"`
	PendingDecisions     int                `json:"pending_decisions"`
	UnresolvedCompliance int                `json:"unresolved_compliance_events"`
}
