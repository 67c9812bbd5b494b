package models

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// Message is one turn's contribution to a conversation. Role is set at
// creation and never mutated afterwards.
type Message struct {
	ID          string                 `json:"id"`
	Role        Role                   `json:"role"`
	Content     string                 `json:"content"`
	Timestamp   time.Time              `json:"timestamp"`
	ToolCalls   []ToolCall             `json:"tool_calls,omitempty"`
	ToolResults []ToolResult           `json:"tool_results,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ToolCall is a requested tool invocation.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult is the outcome of a tool invocation. Error is non-empty iff
// Success is false.
type ToolResult struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Result  interface{} `json:"result"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
}

// Session is one ongoing conversation. Message appends are serialized per
// session id by the store; UpdatedAt is bumped on every append.
type Session struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title,omitempty"`
	Status    SessionStatus          `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Messages  []Message              `json:"messages"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// IntentAnalysis is the result of classifying a user message against the
// conversation context.
type IntentAnalysis struct {
	RequiresTooling     bool     `json:"requires_tooling"`
	Intent              string   `json:"intent"`
	SuggestedOperations []string `json:"suggested_operations"`
	Confidence          float64  `json:"confidence"`
}

// ClusterContext is a point-in-time snapshot of the cluster used to ground
// response synthesis.
type ClusterContext struct {
	Namespace   string         `json:"namespace"`
	Nodes       int            `json:"nodes"`
	ReadyNodes  int            `json:"ready_nodes"`
	PodsByPhase map[string]int `json:"pods_by_phase"`
	Deployments int            `json:"deployments"`
	CollectedAt time.Time      `json:"collected_at"`
}

// TurnResult is the aggregated output of one durably-executed turn. It is
// produced exactly once per turn: on failure Error is populated and Response
// carries a user-facing explanation instead of being left empty.
type TurnResult struct {
	ConversationID string                `json:"conversation_id"`
	IntentAnalysis IntentAnalysis        `json:"intent_analysis"`
	ClusterContext *ClusterContext       `json:"cluster_context,omitempty"`
	ToolResults    map[string]ToolResult `json:"tool_results,omitempty"`
	Response       string                `json:"response"`
	Error          string                `json:"error,omitempty"`
}
