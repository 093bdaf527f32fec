package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/hooks"
	"github.com/parleyhq/parley/internal/llm"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/tools"
)

// DefaultMaxToolRounds bounds the reasoning/tool-execution cycle per turn.
const DefaultMaxToolRounds = 5

const (
	// fallbackFinalText stands in when the model returns an empty final
	// message.
	fallbackFinalText = "I've processed your request."

	// roundLimitText is returned when a turn exceeds the tool round bound.
	roundLimitText = "I was unable to complete the request within the allowed number of tool rounds."
)

// EngineConfig configures the orchestration engine.
type EngineConfig struct {
	AgentName        string
	SystemPrompt     string
	MaxTokens        int
	Temperature      *float64
	MaxToolRounds    int
	ReasoningTimeout time.Duration
}

// Engine is the orchestration state machine: it alternates between asking
// the model what to do next and executing the tools it requested, until a
// terminal answer is produced.
type Engine struct {
	cfg        EngineConfig
	client     *FailoverClient
	dispatcher *Dispatcher
	tools      *tools.Registry
	hooks      *hooks.Manager
	log        *logging.Logger
}

// NewEngine creates an orchestration engine.
func NewEngine(
	cfg EngineConfig,
	client *FailoverClient,
	dispatcher *Dispatcher,
	registry *tools.Registry,
	hm *hooks.Manager,
	log *logging.Logger,
) *Engine {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	return &Engine{
		cfg:        cfg,
		client:     client,
		dispatcher: dispatcher,
		tools:      registry,
		hooks:      hm,
		log:        log.Sub("engine"),
	}
}

// RunTurn drives one complete turn: append the user text, loop between
// reasoning and tool execution, and produce the updated history plus a
// TurnResult. On a reasoning failure the returned history is the input
// unchanged, the result carries an apology, and the error is non-nil so
// the caller can skip persisting.
func (e *Engine) RunTurn(ctx context.Context, history []domain.Message, userText string) ([]domain.Message, domain.TurnResult, error) {
	start := time.Now()
	log := e.log.Turn(uuid.NewString()[:8])

	working := domain.CloneMessages(history)
	working = append(working, domain.NewUserMessage(userText))

	defs := e.tools.Definitions()
	system := BuildSystemPrompt(PromptConfig{
		AgentName:   e.cfg.AgentName,
		Tools:       defs,
		ExtraPrompt: e.cfg.SystemPrompt,
	})

	var invoked []domain.ToolInvocation
	finalText := ""
	rounds := 0

	for {
		resp, err := e.complete(ctx, system, working, defs)
		if err != nil {
			log.Error().Err(err).Int("rounds", rounds).Msg("reasoning failed")
			result := domain.TurnResult{
				FinalText: fmt.Sprintf("Sorry, I encountered an error: %s", err),
			}
			return history, result, err
		}

		assistant := domain.Message{
			Role:      domain.RoleAssistant,
			Text:      resp.Text,
			ToolCalls: resp.ToolCalls,
		}
		working = append(working, assistant)

		if !assistant.RequestsTools() {
			finalText = assistant.Text
			break
		}

		if rounds >= e.cfg.MaxToolRounds {
			log.Warn().
				Int("maxRounds", e.cfg.MaxToolRounds).
				Msg("tool round bound exceeded")
			// Drop the dangling tool request so no stored request is ever
			// missing its results, and close the turn with a fixed text.
			working = working[:len(working)-1]
			working = append(working, domain.Message{Role: domain.RoleAssistant, Text: roundLimitText})
			finalText = roundLimitText
			break
		}
		rounds++

		log.Info().
			Int("round", rounds).
			Int("toolCalls", len(assistant.ToolCalls)).
			Msg("executing tool calls")

		results := e.dispatcher.Dispatch(ctx, assistant.ToolCalls)
		for i, res := range results {
			req := assistant.ToolCalls[i]
			invoked = append(invoked, domain.ToolInvocation{
				ToolName:   req.ToolName,
				Arguments:  req.Arguments,
				OutputText: res.OutputText,
				Failed:     res.Failed,
			})
			working = append(working, domain.NewToolMessage(res))

			e.hooks.EmitAsync(ctx, hooks.EventToolInvoked, map[string]any{
				"tool":   req.ToolName,
				"failed": res.Failed,
			})
		}
	}

	if finalText == "" {
		finalText = fallbackFinalText
	}

	result := domain.TurnResult{
		FinalText:    finalText,
		ToolsInvoked: invoked,
		Interactive:  len(invoked) > 0,
	}

	log.Info().
		Int("rounds", rounds).
		Int("toolsInvoked", len(invoked)).
		Int("historyLen", len(working)).
		Dur("duration", time.Since(start)).
		Msg("turn completed")

	return working, result, nil
}

// complete invokes the reasoning client with the per-call timeout applied.
func (e *Engine) complete(ctx context.Context, system string, history []domain.Message, defs []llm.ToolDefinition) (*llm.CompletionResponse, error) {
	if e.cfg.ReasoningTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ReasoningTimeout)
		defer cancel()
	}

	req := llm.CompletionRequest{
		System:      system,
		Messages:    history,
		Tools:       defs,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	}
	return e.client.Complete(ctx, req)
}
