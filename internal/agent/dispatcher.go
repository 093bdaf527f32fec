package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/tools"
)

// Dispatcher executes batches of tool call requests against the tool
// registry. Failures stay inside their own result slot and never abort
// sibling calls or the enclosing turn.
type Dispatcher struct {
	registry *tools.Registry
	timeout  time.Duration
	log      *logging.Logger
}

// NewDispatcher creates a dispatcher. A timeout of zero disables the
// per-call deadline.
func NewDispatcher(registry *tools.Registry, timeout time.Duration, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		timeout:  timeout,
		log:      log.Sub("dispatch"),
	}
}

// Dispatch runs every request and returns exactly one result per request,
// in request order. Calls execute concurrently; each writes only its own
// result slot.
func (d *Dispatcher) Dispatch(ctx context.Context, requests []domain.ToolCallRequest) []domain.ToolCallResult {
	results := make([]domain.ToolCallResult, len(requests))
	if len(requests) == 0 {
		return results
	}

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req domain.ToolCallRequest) {
			defer wg.Done()
			results[i] = d.dispatchOne(ctx, req)
		}(i, req)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, req domain.ToolCallRequest) domain.ToolCallResult {
	tool, ok := d.registry.Get(req.ToolName)
	if !ok {
		d.log.Warn().Str("tool", req.ToolName).Msg("unknown tool requested")
		return failedResult(req.ID, fmt.Sprintf("unknown tool: %s", req.ToolName))
	}

	for _, param := range tool.RequiredParameters() {
		if _, present := req.Arguments[param]; !present {
			return failedResult(req.ID, fmt.Sprintf("missing required parameter: %s", param))
		}
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := invoke(callCtx, tool, req.Arguments)
	if err != nil {
		d.log.Warn().
			Str("tool", req.ToolName).
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("tool call failed")
		return failedResult(req.ID, err.Error())
	}

	d.log.Debug().
		Str("tool", req.ToolName).
		Dur("duration", time.Since(start)).
		Msg("tool call completed")

	return domain.ToolCallResult{ToolCallID: req.ID, OutputText: output}
}

// invoke runs the tool in its own goroutine so a tool that ignores context
// cancellation still times out from the dispatcher's point of view.
func invoke(ctx context.Context, tool tools.Tool, args map[string]any) (string, error) {
	type outcome struct {
		output string
		err    error
	}

	done := make(chan outcome, 1)
	go func() {
		output, err := tool.Invoke(ctx, args)
		done <- outcome{output: output, err: err}
	}()

	select {
	case out := <-done:
		return out.output, out.err
	case <-ctx.Done():
		return "", fmt.Errorf("tool execution aborted: %w", ctx.Err())
	}
}

func failedResult(id, message string) domain.ToolCallResult {
	return domain.ToolCallResult{ToolCallID: id, OutputText: message, Failed: true}
}
