// Package domain defines the conversation data model shared by the engine,
// the session store, and the gateway.
package domain

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Message is one entry in a conversation history. ToolCalls is present only
// on assistant messages that request tools; ToolCallID and Failed are present
// only on tool messages and link a result back to the request it answers.
type Message struct {
	Role       Role              `json:"role"`
	Text       string            `json:"text,omitempty"`
	ToolCalls  []ToolCallRequest `json:"toolCalls,omitempty"`
	ToolCallID string            `json:"toolCallId,omitempty"`
	Failed     bool              `json:"failed,omitempty"`
}

// RequestsTools reports whether the message asks for tool execution.
func (m Message) RequestsTools() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// ToolCallRequest is a model-issued request to invoke one tool. IDs are
// unique within a turn.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolCallResult is the dispatcher's answer to one ToolCallRequest.
type ToolCallResult struct {
	ToolCallID string `json:"toolCallId"`
	OutputText string `json:"outputText"`
	Failed     bool   `json:"failed"`
}

// ToolInvocation records one request/result pair for the turn summary.
type ToolInvocation struct {
	ToolName   string         `json:"toolName"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	OutputText string         `json:"outputText"`
	Failed     bool           `json:"failed"`
}

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	FinalText    string           `json:"finalText"`
	ToolsInvoked []ToolInvocation `json:"toolsInvoked,omitempty"`
	Interactive  bool             `json:"interactive"`
}

// NewUserMessage builds a user message carrying text.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// NewToolMessage converts a dispatcher result into a tool-role message.
func NewToolMessage(res ToolCallResult) Message {
	return Message{Role: RoleTool, Text: res.OutputText, ToolCallID: res.ToolCallID, Failed: res.Failed}
}

// CloneMessages deep-copies a history so callers can mutate their copy
// without aliasing stored state.
func CloneMessages(history []Message) []Message {
	if history == nil {
		return nil
	}
	out := make([]Message, len(history))
	for i, m := range history {
		out[i] = cloneMessage(m)
	}
	return out
}

func cloneMessage(m Message) Message {
	if len(m.ToolCalls) == 0 {
		return m
	}
	calls := make([]ToolCallRequest, len(m.ToolCalls))
	for i, c := range m.ToolCalls {
		calls[i] = ToolCallRequest{ID: c.ID, ToolName: c.ToolName, Arguments: cloneArguments(c.Arguments)}
	}
	m.ToolCalls = calls
	return m
}

func cloneArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
