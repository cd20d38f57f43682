package domain

import "strings"

// Assignee is either a HumanAssignee or an AgentAssignee. The unexported
// marker method keeps the set closed to this package.
type Assignee interface {
	assignee()
	Kind() string
	Ref() string
}

type HumanAssignee struct {
	UserID string
}

type AgentAssignee struct {
	AgentID string
}

func (HumanAssignee) assignee() {}
func (HumanAssignee) Kind() string  { return "human" }
func (h HumanAssignee) Ref() string { return h.UserID }
func (AgentAssignee) assignee() {}
func (AgentAssignee) Kind() string  { return "agent" }
func (a AgentAssignee) Ref() string { return a.AgentID }

// AssigneeRef is the wire and storage shape of an Assignee: a type tag plus
// exactly one populated id field.
type AssigneeRef struct {
	Type    string `json:"type" enum:"human,agent"`
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
}

// Assignee converts the tagged reference into the sum type, rejecting tag/id
// mismatches.
func (r AssigneeRef) Assignee() (Assignee, error) {
	userID := strings.TrimSpace(r.UserID)
	agentID := strings.TrimSpace(r.AgentID)
	switch r.Type {
	case "human":
		if userID == "" {
			return nil, ValidationError{Field: "assignee.user_id", Reason: "required for human assignee"}
		}
		if agentID != "" {
			return nil, ValidationError{Field: "assignee.agent_id", Reason: "must not be set for human assignee"}
		}
		return HumanAssignee{UserID: userID}, nil
	case "agent":
		if agentID == "" {
			return nil, ValidationError{Field: "assignee.agent_id", Reason: "required for agent assignee"}
		}
		if userID != "" {
			return nil, ValidationError{Field: "assignee.user_id", Reason: "must not be set for agent assignee"}
		}
		return AgentAssignee{AgentID: agentID}, nil
	}
	return nil, ValidationError{Field: "assignee.type", Reason: "must be human or agent"}
}

// RefOf is the inverse of AssigneeRef.Assignee; nil stays nil.
func RefOf(a Assignee) *AssigneeRef {
	switch v := a.(type) {
	case HumanAssignee:
		return &AssigneeRef{Type: "human", UserID: v.UserID}
	case AgentAssignee:
		return &AssigneeRef{Type: "agent", AgentID: v.AgentID}
	}
	return nil
}
