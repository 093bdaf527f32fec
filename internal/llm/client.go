// Package llm defines the reasoning client interface and the provider
// adapters behind it. Providers translate parley's conversation model into
// their native wire format and back, so the engine never sees API-specific
// message shapes.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/domain"
)

// ToolDefinition describes a tool the model can invoke.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"` // JSON Schema object
}

// CompletionRequest is the input to a Complete call. An empty Model uses
// the provider's default.
type CompletionRequest struct {
	Model       string           `json:"model,omitempty"`
	System      string           `json:"system,omitempty"`
	Messages    []domain.Message `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"maxTokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Text       string                   `json:"text"`
	ToolCalls  []domain.ToolCallRequest `json:"toolCalls,omitempty"`
	StopReason string                   `json:"stopReason,omitempty"`
	Usage      Usage                    `json:"usage"`
	Model      string                   `json:"model,omitempty"`
	Duration   time.Duration            `json:"duration,omitempty"`
}

// RequestsTools reports whether the model asked for tool execution.
func (r *CompletionResponse) RequestsTools() bool {
	return len(r.ToolCalls) > 0
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface all reasoning providers must implement.
type Client interface {
	// Complete sends a request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "anthropic", "ollama").
	Name() string
}

// ProviderError is returned when a reasoning provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
