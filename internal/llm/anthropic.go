package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain"
)

const defaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a client for the Anthropic API. An empty API
// key defers to the SDK's ANTHROPIC_API_KEY lookup.
func NewAnthropicClient(cfg *config.AnthropicConfig) *AnthropicClient {
	var opts []option.RequestOption
	if cfg != nil && cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg != nil && cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicClient{
		client: &client,
		model:  defaultAnthropicModel,
	}
}

// Name returns the provider name.
func (a *AnthropicClient) Name() string {
	return "anthropic"
}

// Complete sends a non-streaming completion request.
func (a *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = a.model
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  buildAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = buildAnthropicTools(req.Tools)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapAnthropicError(err)
	}

	out := &CompletionResponse{
		StopReason: string(resp.StopReason),
		Model:      model,
		Duration:   time.Since(start),
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			out.ToolCalls = append(out.ToolCalls, domain.ToolCallRequest{
				ID:        tu.ID,
				ToolName:  tu.Name,
				Arguments: decodeToolInput(tu.Input),
			})
		}
	}
	out.Text = text.String()

	return out, nil
}

// buildAnthropicMessages converts conversation history to the Anthropic
// message format. Tool results travel as user-role tool_result blocks;
// system text is carried on the request, not in the history.
func buildAnthropicMessages(history []domain.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	for _, m := range history {
		switch m.Role {
		case domain.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))

		case domain.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Text))
			}
			for _, call := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, call.Arguments, call.ToolName))
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}

		case domain.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Text, m.Failed)))
		}
	}

	return messages
}

// buildAnthropicTools converts tool definitions to the Anthropic tool format.
func buildAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		var raw map[string]any
		if err := json.Unmarshal(t.InputSchema, &raw); err == nil {
			if props, ok := raw["properties"]; ok {
				schema.Properties = props
			}
			if req, ok := raw["required"].([]any); ok {
				for _, r := range req {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		}
		out[i] = anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		}}
	}
	return out
}

// decodeToolInput parses a tool_use input payload into named arguments.
func decodeToolInput(input any) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return map[string]any{}
	}
	args := map[string]any{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{}
	}
	return args
}

func wrapAnthropicError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &ProviderError{Provider: "anthropic", Code: apierr.StatusCode, Message: err.Error()}
	}
	return &ProviderError{Provider: "anthropic", Message: err.Error()}
}
