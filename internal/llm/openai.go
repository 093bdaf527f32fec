package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain"
)

// OpenAIClient talks to the OpenAI Chat Completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a client for the OpenAI API. An empty API key
// defers to the SDK's OPENAI_API_KEY lookup.
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	var opts []option.RequestOption
	if cfg != nil && cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg != nil && cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIClient{
		client: &client,
		model:  openai.ChatModelGPT4o,
	}
}

// Name returns the provider name.
func (o *OpenAIClient) Name() string {
	return "openai"
}

// Complete sends a non-streaming completion request.
func (o *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = o.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: buildOpenAIMessages(req.System, req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = buildOpenAITools(req.Tools)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	out := &CompletionResponse{
		Text:       choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Model:      model,
		Duration:   time.Since(start),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = map[string]any{}
			}
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCallRequest{
			ID:        tc.ID,
			ToolName:  tc.Function.Name,
			Arguments: args,
		})
	}

	return out, nil
}

// buildOpenAIMessages converts conversation history to OpenAI chat messages.
// System text becomes the leading system message.
func buildOpenAIMessages(system string, history []domain.Message) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}

	for _, m := range history {
		switch m.Role {
		case domain.RoleUser:
			messages = append(messages, openai.UserMessage(m.Text))

		case domain.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(m.Text))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, call := range m.ToolCalls {
				args, err := json.Marshal(call.Arguments)
				if err != nil {
					args = []byte("{}")
				}
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   call.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.ToolName,
						Arguments: string(args),
					},
				}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})

		case domain.RoleTool:
			messages = append(messages, openai.ToolMessage(m.Text, m.ToolCallID))

		case domain.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Text))
		}
	}

	return messages
}

// buildOpenAITools converts tool definitions to the OpenAI function format.
func buildOpenAITools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		var params openai.FunctionParameters
		if err := json.Unmarshal(t.InputSchema, &params); err != nil {
			params = openai.FunctionParameters{"type": "object"}
		}
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		}
	}
	return out
}

func wrapOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &ProviderError{Provider: "openai", Code: apierr.StatusCode, Message: err.Error()}
	}
	return &ProviderError{Provider: "openai", Message: err.Error()}
}
