package agent

import (
	"context"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/hooks"
	"github.com/parleyhq/parley/internal/llm"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testLLMRegistry(mock llm.Client) *llm.Registry {
	reg := llm.NewRegistry(silentLog())
	reg.Register("mock", mock)
	reg.SetFallback("mock")
	return reg
}

func newTestEngine(mock llm.Client, toolReg *tools.Registry, cfg EngineConfig) *Engine {
	log := silentLog()
	fc := NewFailoverClient(testLLMRegistry(mock), "mock", nil, log)
	dispatcher := NewDispatcher(toolReg, time.Second, log)
	return NewEngine(cfg, fc, dispatcher, toolReg, hooks.NewManager(log), log)
}

func calculatorRegistry() *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.NewCalculator())
	return reg
}

func TestEngineDirectResponse(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			assert.NotEmpty(t, req.System)
			last := req.Messages[len(req.Messages)-1]
			assert.Equal(t, domain.RoleUser, last.Role)
			assert.Equal(t, "hello", last.Text)
			return &llm.CompletionResponse{Text: "Hi there!", StopReason: "end_turn"}, nil
		},
	}

	engine := newTestEngine(mock, tools.NewRegistry(), EngineConfig{AgentName: "Test"})

	updated, result, err := engine.RunTurn(context.Background(), nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", result.FinalText)
	assert.False(t, result.Interactive)
	assert.Empty(t, result.ToolsInvoked)

	require.Len(t, updated, 2)
	assert.Equal(t, domain.RoleUser, updated[0].Role)
	assert.Equal(t, "hello", updated[0].Text)
	assert.Equal(t, domain.RoleAssistant, updated[1].Role)
	assert.Equal(t, "Hi there!", updated[1].Text)
}

func TestEngineToolTurn(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			if calls == 1 {
				assert.NotEmpty(t, req.Tools)
				return &llm.CompletionResponse{
					ToolCalls: []domain.ToolCallRequest{
						{ID: "call_1", ToolName: "calculate", Arguments: map[string]any{"expression": "2+2"}},
					},
					StopReason: "tool_use",
				}, nil
			}

			// Second round sees the tool result appended to the history.
			last := req.Messages[len(req.Messages)-1]
			assert.Equal(t, domain.RoleTool, last.Role)
			assert.Equal(t, "call_1", last.ToolCallID)
			assert.Equal(t, "Result: 4", last.Text)
			return &llm.CompletionResponse{Text: "The answer is 4.", StopReason: "end_turn"}, nil
		},
	}

	engine := newTestEngine(mock, calculatorRegistry(), EngineConfig{AgentName: "Test"})

	updated, result, err := engine.RunTurn(context.Background(), nil, "What is 2 + 2?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 4.", result.FinalText)
	assert.True(t, result.Interactive)
	require.Len(t, result.ToolsInvoked, 1)
	assert.Equal(t, "calculate", result.ToolsInvoked[0].ToolName)
	assert.Equal(t, "Result: 4", result.ToolsInvoked[0].OutputText)
	assert.False(t, result.ToolsInvoked[0].Failed)

	// user, assistant tool request, tool result, final assistant
	require.Len(t, updated, 4)
	assert.True(t, updated[1].RequestsTools())
	assert.Equal(t, domain.RoleTool, updated[2].Role)
	assert.Equal(t, "The answer is 4.", updated[3].Text)
}

func TestEngineMultipleToolRounds(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			switch calls {
			case 1:
				return &llm.CompletionResponse{ToolCalls: []domain.ToolCallRequest{
					{ID: "c1", ToolName: "calculate", Arguments: map[string]any{"expression": "2+2"}},
				}}, nil
			case 2:
				return &llm.CompletionResponse{ToolCalls: []domain.ToolCallRequest{
					{ID: "c2", ToolName: "calculate", Arguments: map[string]any{"expression": "4*10"}},
				}}, nil
			default:
				return &llm.CompletionResponse{Text: "4 and 40."}, nil
			}
		},
	}

	engine := newTestEngine(mock, calculatorRegistry(), EngineConfig{})

	_, result, err := engine.RunTurn(context.Background(), nil, "chain some math")
	require.NoError(t, err)
	assert.Equal(t, "4 and 40.", result.FinalText)
	require.Len(t, result.ToolsInvoked, 2)
	assert.Equal(t, "Result: 4", result.ToolsInvoked[0].OutputText)
	assert.Equal(t, "Result: 40", result.ToolsInvoked[1].OutputText)
	assert.Equal(t, 3, calls)
}

func TestEngineRoundBound(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			// Always asks for another tool round.
			return &llm.CompletionResponse{ToolCalls: []domain.ToolCallRequest{
				{ID: "loop", ToolName: "calculate", Arguments: map[string]any{"expression": "1+1"}},
			}}, nil
		},
	}

	engine := newTestEngine(mock, calculatorRegistry(), EngineConfig{MaxToolRounds: 2})

	updated, result, err := engine.RunTurn(context.Background(), nil, "loop forever")
	require.NoError(t, err)
	assert.Equal(t, roundLimitText, result.FinalText)
	assert.True(t, result.Interactive)
	assert.Len(t, result.ToolsInvoked, 2, "partial tool results are still reported")
	assert.Equal(t, 3, calls, "two executed rounds plus the bounded third request")

	// user + 2×(assistant request, tool result) + closing assistant text;
	// the dangling third request is not persisted.
	require.Len(t, updated, 6)
	last := updated[len(updated)-1]
	assert.Equal(t, domain.RoleAssistant, last.Role)
	assert.Equal(t, roundLimitText, last.Text)
	assert.Empty(t, last.ToolCalls)
}

func TestEngineReasoningFailure(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "mock", Message: "bad request", Code: 400}
		},
	}

	engine := newTestEngine(mock, tools.NewRegistry(), EngineConfig{})

	prior := []domain.Message{
		domain.NewUserMessage("earlier question"),
		{Role: domain.RoleAssistant, Text: "earlier answer"},
	}

	updated, result, err := engine.RunTurn(context.Background(), prior, "does this work?")
	require.Error(t, err)
	assert.Contains(t, result.FinalText, "Sorry, I encountered an error:")
	assert.False(t, result.Interactive)
	assert.Empty(t, result.ToolsInvoked)

	// History comes back exactly as it went in.
	require.Len(t, updated, 2)
	assert.Equal(t, "earlier question", updated[0].Text)
	assert.Equal(t, "earlier answer", updated[1].Text)
}

func TestEngineReasoningTimeout(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &llm.CompletionResponse{Text: "too late"}, nil
			}
		},
	}

	engine := newTestEngine(mock, tools.NewRegistry(), EngineConfig{ReasoningTimeout: 20 * time.Millisecond})

	updated, result, err := engine.RunTurn(context.Background(), nil, "hello")
	require.Error(t, err)
	assert.Contains(t, result.FinalText, "Sorry, I encountered an error:")
	assert.Empty(t, updated)
}

func TestEngineEmptyFinalTextFallback(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Text: "", StopReason: "end_turn"}, nil
		},
	}

	engine := newTestEngine(mock, tools.NewRegistry(), EngineConfig{})

	_, result, err := engine.RunTurn(context.Background(), nil, "say nothing")
	require.NoError(t, err)
	assert.Equal(t, "I've processed your request.", result.FinalText)
}

func TestEngineDoesNotAliasInputHistory(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Text: "done"}, nil
		},
	}

	engine := newTestEngine(mock, tools.NewRegistry(), EngineConfig{})

	prior := []domain.Message{domain.NewUserMessage("first")}
	updated, _, err := engine.RunTurn(context.Background(), prior, "second")
	require.NoError(t, err)

	assert.Len(t, prior, 1, "input history stays untouched")
	assert.Len(t, updated, 3)
}

func TestEngineFailedToolResultFlowsBack(t *testing.T) {
	calls := 0
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			calls++
			if calls == 1 {
				return &llm.CompletionResponse{ToolCalls: []domain.ToolCallRequest{
					{ID: "c1", ToolName: "no_such_tool", Arguments: map[string]any{}},
				}}, nil
			}
			last := req.Messages[len(req.Messages)-1]
			assert.True(t, last.Failed)
			assert.Contains(t, last.Text, "unknown tool")
			return &llm.CompletionResponse{Text: "That tool does not exist."}, nil
		},
	}

	engine := newTestEngine(mock, tools.NewRegistry(), EngineConfig{})

	_, result, err := engine.RunTurn(context.Background(), nil, "use a bogus tool")
	require.NoError(t, err)
	assert.Equal(t, "That tool does not exist.", result.FinalText)
	require.Len(t, result.ToolsInvoked, 1)
	assert.True(t, result.ToolsInvoked[0].Failed)
}
