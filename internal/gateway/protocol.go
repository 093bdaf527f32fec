package gateway

import (
	"time"

	"github.com/parleyhq/parley/internal/domain"
)

// Frame types for outbound WebSocket messages.
const (
	FrameTypeResponse = "response"
	FrameTypeError    = "error"
)

// ChatRequest is the inbound frame clients send over the WebSocket.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the outbound frame for a completed turn. ToolExecution
// is populated only when the turn invoked tools.
type ChatResponse struct {
	Type          string          `json:"type"`
	Message       string          `json:"message"`
	ToolsUsed     []string        `json:"tools_used"`
	Timestamp     string          `json:"timestamp"`
	Interactive   bool            `json:"interactive"`
	ToolExecution []ToolExecution `json:"tool_execution,omitempty"`
}

// ToolExecution describes one tool invocation within a turn.
type ToolExecution struct {
	ToolName string         `json:"tool_name"`
	ToolArgs map[string]any `json:"tool_args"`
	Result   string         `json:"result"`
	Failed   bool           `json:"failed"`
}

// ChatError is the outbound frame for input the server could not process.
// The connection stays open after it is sent.
type ChatError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewChatResponse maps a turn result onto the wire format, stamping the
// response with the current time.
func NewChatResponse(result domain.TurnResult) ChatResponse {
	used := make([]string, 0, len(result.ToolsInvoked))
	execs := make([]ToolExecution, 0, len(result.ToolsInvoked))
	for _, inv := range result.ToolsInvoked {
		used = append(used, inv.ToolName)
		execs = append(execs, ToolExecution{
			ToolName: inv.ToolName,
			ToolArgs: inv.Arguments,
			Result:   inv.OutputText,
			Failed:   inv.Failed,
		})
	}

	resp := ChatResponse{
		Type:        FrameTypeResponse,
		Message:     result.FinalText,
		ToolsUsed:   used,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Interactive: result.Interactive,
	}
	if result.Interactive {
		resp.ToolExecution = execs
	}
	return resp
}

// NewChatError builds an error frame.
func NewChatError(message string) ChatError {
	return ChatError{Type: FrameTypeError, Error: message}
}
