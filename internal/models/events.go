package models

// EventType is the tagged discriminator of the streaming protocol. The wire
// names are stable; clients key on them.
type EventType string

const (
	EventSessionStart    EventType = "session_start"
	EventTyping          EventType = "typing"
	EventMessageDelta    EventType = "message_delta"
	EventToolCall        EventType = "tool_call"
	EventToolResult      EventType = "tool_result"
	EventMessageComplete EventType = "message_complete"
	EventError           EventType = "error"
)

// Event is one unit of the per-turn streaming protocol. Events for a turn
// are totally ordered and end with exactly one of message_complete or error;
// anything after a terminal event is a protocol violation.
type Event struct {
	Type       EventType   `json:"type"`
	SessionID  string      `json:"session_id,omitempty"`
	MessageID  string      `json:"message_id,omitempty"`
	Delta      string      `json:"delta,omitempty"`
	Content    string      `json:"content,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Message    *Message    `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Terminal reports whether no further events may follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventMessageComplete || e.Type == EventError
}

func NewSessionStartEvent(sessionID string) Event {
	return Event{Type: EventSessionStart, SessionID: sessionID}
}

func NewTypingEvent(sessionID string) Event {
	return Event{Type: EventTyping, SessionID: sessionID}
}

func NewMessageDeltaEvent(sessionID, messageID, delta string) Event {
	return Event{Type: EventMessageDelta, SessionID: sessionID, MessageID: messageID, Delta: delta}
}

func NewToolCallEvent(sessionID, messageID string, call ToolCall) Event {
	return Event{Type: EventToolCall, SessionID: sessionID, MessageID: messageID, ToolCall: &call}
}

func NewToolResultEvent(sessionID, messageID string, result ToolResult) Event {
	return Event{Type: EventToolResult, SessionID: sessionID, MessageID: messageID, ToolResult: &result}
}

func NewMessageCompleteEvent(sessionID string, message Message) Event {
	return Event{
		Type:      EventMessageComplete,
		SessionID: sessionID,
		MessageID: message.ID,
		Content:   message.Content,
		Message:   &message,
	}
}

func NewErrorEvent(sessionID, errMsg string) Event {
	return Event{Type: EventError, SessionID: sessionID, Error: errMsg}
}
