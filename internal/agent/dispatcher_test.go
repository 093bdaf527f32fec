package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name     string
	required []string
	fn       func(ctx context.Context, args map[string]any) (string, error)
}

func (s *stubTool) Name() string                 { return s.name }
func (s *stubTool) Description() string          { return "stub " + s.name }
func (s *stubTool) InputSchema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (s *stubTool) RequiredParameters() []string { return s.required }
func (s *stubTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	return s.fn(ctx, args)
}

func newTestDispatcher(timeout time.Duration, stubs ...tools.Tool) *Dispatcher {
	reg := tools.NewRegistry()
	for _, s := range stubs {
		reg.Register(s)
	}
	return NewDispatcher(reg, timeout, silentLog())
}

func echoStub(name string) *stubTool {
	return &stubTool{
		name:     name,
		required: []string{"text"},
		fn: func(_ context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf("%v", args["text"]), nil
		},
	}
}

func TestDispatchEmptyBatch(t *testing.T) {
	d := newTestDispatcher(time.Second)

	results := d.Dispatch(context.Background(), nil)
	assert.Empty(t, results)
}

func TestDispatchSingleCall(t *testing.T) {
	d := newTestDispatcher(time.Second, echoStub("echo"))

	results := d.Dispatch(context.Background(), []domain.ToolCallRequest{
		{ID: "c1", ToolName: "echo", Arguments: map[string]any{"text": "hello"}},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ToolCallID)
	assert.Equal(t, "hello", results[0].OutputText)
	assert.False(t, results[0].Failed)
}

func TestDispatchPreservesRequestOrder(t *testing.T) {
	// Later requests finish first; assembly must still follow request order.
	slow := &stubTool{
		name: "slow",
		fn: func(ctx context.Context, args map[string]any) (string, error) {
			delay := time.Duration(args["ms"].(int)) * time.Millisecond
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			return fmt.Sprintf("slept %v", args["ms"]), nil
		},
	}
	d := newTestDispatcher(time.Second, slow)

	requests := []domain.ToolCallRequest{
		{ID: "c1", ToolName: "slow", Arguments: map[string]any{"ms": 60}},
		{ID: "c2", ToolName: "slow", Arguments: map[string]any{"ms": 30}},
		{ID: "c3", ToolName: "slow", Arguments: map[string]any{"ms": 1}},
	}

	results := d.Dispatch(context.Background(), requests)
	require.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].ToolCallID)
	assert.Equal(t, "c2", results[1].ToolCallID)
	assert.Equal(t, "c3", results[2].ToolCallID)
	assert.Equal(t, "slept 60", results[0].OutputText)
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(time.Second, echoStub("echo"))

	results := d.Dispatch(context.Background(), []domain.ToolCallRequest{
		{ID: "c1", ToolName: "missing", Arguments: map[string]any{}},
		{ID: "c2", ToolName: "echo", Arguments: map[string]any{"text": "still works"}},
	})

	require.Len(t, results, 2)
	assert.True(t, results[0].Failed)
	assert.Contains(t, results[0].OutputText, "unknown tool: missing")
	assert.False(t, results[1].Failed, "sibling calls complete despite a failed one")
	assert.Equal(t, "still works", results[1].OutputText)
}

func TestDispatchMissingRequiredParameter(t *testing.T) {
	d := newTestDispatcher(time.Second, echoStub("echo"))

	results := d.Dispatch(context.Background(), []domain.ToolCallRequest{
		{ID: "c1", ToolName: "echo", Arguments: map[string]any{"wrong": "key"}},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Failed)
	assert.Contains(t, results[0].OutputText, "missing required parameter: text")
}

func TestDispatchToolErrorBecomesFailedResult(t *testing.T) {
	boom := &stubTool{
		name: "boom",
		fn: func(context.Context, map[string]any) (string, error) {
			return "", fmt.Errorf("exploded mid-flight")
		},
	}
	d := newTestDispatcher(time.Second, boom)

	results := d.Dispatch(context.Background(), []domain.ToolCallRequest{
		{ID: "c1", ToolName: "boom"},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Failed)
	assert.Equal(t, "exploded mid-flight", results[0].OutputText)
}

func TestDispatchTimeout(t *testing.T) {
	hang := &stubTool{
		name: "hang",
		fn: func(ctx context.Context, _ map[string]any) (string, error) {
			// Ignores cancellation on purpose.
			time.Sleep(500 * time.Millisecond)
			return "finally", nil
		},
	}
	d := newTestDispatcher(30*time.Millisecond, hang)

	start := time.Now()
	results := d.Dispatch(context.Background(), []domain.ToolCallRequest{
		{ID: "c1", ToolName: "hang"},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Failed)
	assert.Contains(t, results[0].OutputText, "tool execution aborted")
	assert.Less(t, time.Since(start), 400*time.Millisecond, "dispatch returns before the hung tool does")
}

func TestDispatchCalculator(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.NewCalculator())
	d := NewDispatcher(reg, time.Second, silentLog())

	results := d.Dispatch(context.Background(), []domain.ToolCallRequest{
		{ID: "c1", ToolName: "calculate", Arguments: map[string]any{"expression": "6 * 7"}},
		{ID: "c2", ToolName: "calculate", Arguments: map[string]any{"expression": "1 / 0"}},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "Result: 42", results[0].OutputText)
	assert.False(t, results[0].Failed)
	assert.True(t, results[1].Failed)
	assert.Contains(t, results[1].OutputText, "division by zero")
}
