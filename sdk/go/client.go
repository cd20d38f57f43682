package opsconsolesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Ops Console HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Assignee is the tagged assignee shape: type is "human" or "agent".
type Assignee struct {
	Type    string `json:"type"`
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
}

// Task represents the API task model.
type Task struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	GoalID           string    `json:"goal_id"`
	BoardID          string    `json:"board_id,omitempty"`
	Status           string    `json:"status"`
	Priority         string    `json:"priority"`
	DueAt            string    `json:"due_at,omitempty"`
	Assignee         *Assignee `json:"assignee,omitempty"`
	LatestDecisionID string    `json:"latest_decision_id,omitempty"`
	CreatedAt        string    `json:"created_at"`
	UpdatedAt        string    `json:"updated_at"`
}

// CreateTaskInput mirrors the create-task request body.
type CreateTaskInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	GoalID      string    `json:"goal_id"`
	BoardID     string    `json:"board_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	DueAt       string    `json:"due_at,omitempty"`
	Assignee    *Assignee `json:"assignee,omitempty"`
}

// TransitionInput carries the target status and its optional side inputs.
type TransitionInput struct {
	Status        string `json:"status"`
	BlockedReason string `json:"blocked_reason,omitempty"`
	DecisionTitle string `json:"decision_title,omitempty"`
}

// TransitionResult reports the decision opened by entering waiting_decision.
type TransitionResult struct {
	TaskID     string `json:"task_id"`
	DecisionID string `json:"decision_id,omitempty"`
}

type DecisionOption struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Details string `json:"details,omitempty"`
	Risk    string `json:"risk,omitempty"`
}

// Decision represents the API decision model.
type Decision struct {
	ID               string           `json:"id"`
	Type             string           `json:"type"`
	Status           string           `json:"status"`
	Title            string           `json:"title"`
	Description      string           `json:"description,omitempty"`
	GoalID           string           `json:"goal_id,omitempty"`
	TaskID           string           `json:"task_id,omitempty"`
	Options          []DecisionOption `json:"options,omitempty"`
	Recommendation   string           `json:"recommendation,omitempty"`
	ResolvedByUserID string           `json:"resolved_by_user_id,omitempty"`
	ResolutionNote   string           `json:"resolution_note,omitempty"`
	ResolvedAt       string           `json:"resolved_at,omitempty"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
}

// ActivityEvent is one audit log entry.
type ActivityEvent struct {
	ID         int64  `json:"id"`
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	GoalID     string `json:"goal_id,omitempty"`
	TaskID     string `json:"task_id,omitempty"`
	DecisionID string `json:"decision_id,omitempty"`
	AgentID    string `json:"agent_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ActivityPage wraps the audit feed with its cursor.
type ActivityPage struct {
	Items      []ActivityEvent `json:"items"`
	NextCursor string          `json:"next_cursor"`
}

// ActivityQuery filters Activity. Zero fields are omitted.
type ActivityQuery struct {
	GoalID     string
	TaskID     string
	DecisionID string
	Type       string
	Limit      int
	Cursor     string
}

// APIError wraps non-2xx responses, decoded from the error envelope when
// the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Allowed returns details.allowed of an invalid_transition error.
func (e *APIError) Allowed() []string {
	raw, _ := e.Details["allowed"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in CreateTaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", in, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// TransitionTask applies a validated status transition.
func (c *Client) TransitionTask(ctx context.Context, id string, in TransitionInput) (TransitionResult, error) {
	var resp TransitionResult
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(id)+"/transition", in, &resp)
	return resp, err
}

// MoveTask moves a board task to another column without transition checks.
func (c *Client) MoveTask(ctx context.Context, id, status string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(id)+"/move", map[string]string{"status": status}, &resp)
	return resp, err
}

// GetDecision fetches a decision by id.
func (c *Client) GetDecision(ctx context.Context, id string) (Decision, error) {
	var resp Decision
	err := c.do(ctx, http.MethodGet, "decisions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ResolveDecision approves, rejects or requests changes on a pending
// decision. An empty userID resolves as the server's local user.
func (c *Client) ResolveDecision(ctx context.Context, id, action, userID, note string) (Decision, error) {
	body := map[string]string{"action": action}
	if userID != "" {
		body["user_id"] = userID
	}
	if note != "" {
		body["note"] = note
	}
	var resp Decision
	err := c.do(ctx, http.MethodPost, "decisions/"+url.PathEscape(id)+"/resolve", body, &resp)
	return resp, err
}

// Activity returns one page of the audit feed.
func (c *Client) Activity(ctx context.Context, q ActivityQuery) (ActivityPage, error) {
	params := url.Values{}
	for k, v := range map[string]string{
		"goal_id":     q.GoalID,
		"task_id":     q.TaskID,
		"decision_id": q.DecisionID,
		"type":        q.Type,
		"cursor":      q.Cursor,
	} {
		if v != "" {
			params.Set(k, v)
		}
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	endpoint := "activity"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp ActivityPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
