package domain

import (
	"fmt"
	"strings"
)

// TaskStatus is the closed set of task lifecycle states.
type TaskStatus string

const (
	TaskTodo            TaskStatus = "todo"
	TaskInProgress      TaskStatus = "in_progress"
	TaskBlocked         TaskStatus = "blocked"
	TaskWaitingDecision TaskStatus = "waiting_decision"
	TaskDone            TaskStatus = "done"
	TaskCanceled        TaskStatus = "canceled"
)

// TaskStatuses lists every task status in board-column order.
var TaskStatuses = []TaskStatus{
	TaskTodo, TaskInProgress, TaskBlocked, TaskWaitingDecision, TaskDone, TaskCanceled,
}

// AllowedTransitions returns the destinations reachable from s through the
// validated lifecycle. The returned slice is freshly allocated.
func AllowedTransitions(s TaskStatus) []TaskStatus {
	switch s {
	case TaskTodo:
		return []TaskStatus{TaskInProgress, TaskBlocked, TaskCanceled}
	case TaskInProgress:
		return []TaskStatus{TaskTodo, TaskBlocked, TaskWaitingDecision, TaskDone, TaskCanceled}
	case TaskBlocked:
		return []TaskStatus{TaskTodo, TaskInProgress, TaskCanceled}
	case TaskWaitingDecision:
		return []TaskStatus{TaskInProgress, TaskBlocked, TaskDone, TaskCanceled}
	case TaskDone, TaskCanceled:
		// reopening only
		return []TaskStatus{TaskTodo}
	}
	return nil
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to TaskStatus) bool {
	for _, s := range AllowedTransitions(from) {
		if s == to {
			return true
		}
	}
	return false
}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskBlocked, TaskWaitingDecision, TaskDone, TaskCanceled:
		return true
	}
	return false
}

// ParseTaskStatus validates raw input.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", ValidationError{Field: "status", Reason: fmt.Sprintf("unknown task status %q", raw)}
	}
	return s, nil
}

type Priority string

const (
	PriorityP1 Priority = "p1"
	PriorityP2 Priority = "p2"
	PriorityP3 Priority = "p3"
)

func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.TrimSpace(raw)); p {
	case PriorityP1, PriorityP2, PriorityP3:
		return p, nil
	}
	return "", ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", raw)}
}

type DecisionType string

const (
	DecisionExecutionApproval DecisionType = "execution_approval"
	DecisionNeeded            DecisionType = "decision_needed"
	DecisionClarification     DecisionType = "clarification"
	DecisionRiskException     DecisionType = "risk_exception"
	DecisionMergeReview       DecisionType = "merge_review"
)

func ParseDecisionType(raw string) (DecisionType, error) {
	switch t := DecisionType(strings.TrimSpace(raw)); t {
	case DecisionExecutionApproval, DecisionNeeded, DecisionClarification, DecisionRiskException, DecisionMergeReview:
		return t, nil
	}
	return "", ValidationError{Field: "type", Reason: fmt.Sprintf("unknown decision type %q", raw)}
}

// DecisionStatus starts at pending and moves exactly once to a terminal value.
type DecisionStatus string

const (
	DecisionPending          DecisionStatus = "pending"
	DecisionApproved         DecisionStatus = "approved"
	DecisionRejected         DecisionStatus = "rejected"
	DecisionChangesRequested DecisionStatus = "changes_requested"
	DecisionCanceled         DecisionStatus = "canceled"
)

func (s DecisionStatus) Terminal() bool {
	switch s {
	case DecisionApproved, DecisionRejected, DecisionChangesRequested, DecisionCanceled:
		return true
	}
	return false
}

func ParseDecisionStatus(raw string) (DecisionStatus, error) {
	s := DecisionStatus(strings.TrimSpace(raw))
	if s == DecisionPending || s.Terminal() {
		return s, nil
	}
	return "", ValidationError{Field: "status", Reason: fmt.Sprintf("unknown decision status %q", raw)}
}

// ResolveAction is what a human does with a pending decision.
type ResolveAction string

const (
	ActionApprove        ResolveAction = "approve"
	ActionReject         ResolveAction = "reject"
	ActionRequestChanges ResolveAction = "request_changes"
)

// Outcome maps an action to the terminal decision status it produces.
func (a ResolveAction) Outcome() (DecisionStatus, bool) {
	switch a {
	case ActionApprove:
		return DecisionApproved, true
	case ActionReject:
		return DecisionRejected, true
	case ActionRequestChanges:
		return DecisionChangesRequested, true
	}
	return "", false
}

func ParseResolveAction(raw string) (ResolveAction, error) {
	a := ResolveAction(strings.TrimSpace(raw))
	if _, ok := a.Outcome(); !ok {
		return "", ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q (want approve, reject or request_changes)", raw)}
	}
	return a, nil
}

type ActivityType string

const (
	ActivityGoalCreated       ActivityType = "goal_created"
	ActivityGoalUpdated       ActivityType = "goal_updated"
	ActivityTaskCreated       ActivityType = "task_created"
	ActivityTaskUpdated       ActivityType = "task_updated"
	ActivityTaskMoved         ActivityType = "task_moved"
	ActivityDecisionCreated   ActivityType = "decision_created"
	ActivityDecisionResolved  ActivityType = "decision_resolved"
	ActivityRunCreated        ActivityType = "run_created"
	ActivityRunStatusChanged  ActivityType = "run_status_changed"
	ActivityOutputCreated     ActivityType = "output_created"
	ActivityComplianceCreated ActivityType = "compliance_created"
	ActivitySystemSeed        ActivityType = "system_seed"
)

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityGoalCreated, ActivityGoalUpdated, ActivityTaskCreated, ActivityTaskUpdated, ActivityTaskMoved,
		ActivityDecisionCreated, ActivityDecisionResolved, ActivityRunCreated, ActivityRunStatusChanged,
		ActivityOutputCreated, ActivityComplianceCreated, ActivitySystemSeed:
		return true
	}
	return false
}

type RunStatus string

const (
	RunQueued          RunStatus = "queued"
	RunRunning         RunStatus = "running"
	RunWaitingDecision RunStatus = "waiting_decision"
	RunSucceeded       RunStatus = "succeeded"
	RunFailed          RunStatus = "failed"
	RunCanceled        RunStatus = "canceled"
)

// Finished reports whether the run has stopped for good.
func (s RunStatus) Finished() bool {
	return s == RunSucceeded || s == RunFailed || s == RunCanceled
}

func ParseRunStatus(raw string) (RunStatus, error) {
	switch s := RunStatus(strings.TrimSpace(raw)); s {
	case RunQueued, RunRunning, RunWaitingDecision, RunSucceeded, RunFailed, RunCanceled:
		return s, nil
	}
	return "", ValidationError{Field: "status", Reason: fmt.Sprintf("unknown run status %q", raw)}
}

type OutputType string

var OutputTypes = []OutputType{"research", "doc", "code_diff", "summary", "linkset", "image", "video", "architecture", "decision", "other"}

func ParseOutputType(raw string) (OutputType, error) {
	t := OutputType(strings.TrimSpace(raw))
	for _, known := range OutputTypes {
		if t == known {
			return t, nil
		}
	}
	return "", ValidationError{Field: "type", Reason: fmt.Sprintf("unknown output type %q", raw)}
}

type ComplianceSeverity string

const (
	SeverityInfo     ComplianceSeverity = "info"
	SeverityWarn     ComplianceSeverity = "warn"
	SeverityHigh     ComplianceSeverity = "high"
	SeverityCritical ComplianceSeverity = "critical"
)

func ParseSeverity(raw string) (ComplianceSeverity, error) {
	switch s := ComplianceSeverity(strings.TrimSpace(raw)); s {
	case SeverityInfo, SeverityWarn, SeverityHigh, SeverityCritical:
		return s, nil
	}
	return "", ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", raw)}
}

// JoinStatuses renders statuses as "[a, b, c]".
func JoinStatuses(in []TaskStatus) string {
	parts := make([]string, len(in))
	for i, s := range in {
		parts[i] = string(s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
