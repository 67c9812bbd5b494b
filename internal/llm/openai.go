package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/models"
)

// OpenAIProvider implements Provider using the Chat Completions API.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI provider for the given model.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) buildParams(request Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: p.buildMessages(request),
	}
	if request.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(request.MaxTokens))
	}
	if request.Temperature > 0 {
		params.Temperature = openai.Float(request.Temperature)
	}
	if len(request.Tools) > 0 {
		params.Tools = p.buildTools(request.Tools)
	}
	return params
}

// Complete sends a blocking completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, request Request) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(request))
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeUpstream, "openai completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.New(apperrors.ErrCodeUpstream, "openai returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// StreamComplete streams deltas and assembled tool calls.
func (p *OpenAIProvider) StreamComplete(ctx context.Context, request Request) (<-chan StreamChunk, <-chan error) {
	out := make(chan StreamChunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(request))

		type pendingCall struct {
			id      string
			name    string
			jsonBuf strings.Builder
		}
		pending := make(map[int]*pendingCall)
		var order []int

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				out <- StreamChunk{Content: choice.Delta.Content, Delta: true}
			}

			for _, tc := range choice.Delta.ToolCalls {
				idx := int(tc.Index)
				if _, exists := pending[idx]; !exists {
					pending[idx] = &pendingCall{}
					order = append(order, idx)
				}
				pc := pending[idx]
				if tc.ID != "" {
					pc.id = tc.ID
				}
				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					pc.jsonBuf.WriteString(tc.Function.Arguments)
				}
			}

			if choice.FinishReason != "" {
				final := StreamChunk{FinishReason: string(choice.FinishReason)}
				for _, idx := range order {
					pc := pending[idx]
					args := map[string]interface{}{}
					if pc.jsonBuf.Len() > 0 {
						_ = json.Unmarshal([]byte(pc.jsonBuf.String()), &args)
					}
					final.ToolCalls = append(final.ToolCalls, models.ToolCall{
						ID:        pc.id,
						Name:      pc.name,
						Arguments: args,
					})
				}
				out <- final
				return
			}
		}

		if err := stream.Err(); err != nil {
			errCh <- apperrors.New(apperrors.ErrCodeUpstream, "openai streaming failed", err)
		}
	}()

	return out, errCh
}

func (p *OpenAIProvider) buildMessages(request Request) []openai.ChatCompletionMessageParamUnion {
	var params []openai.ChatCompletionMessageParamUnion

	if request.System != "" {
		params = append(params, openai.SystemMessage(request.System))
	}

	for _, msg := range request.Messages {
		switch msg.Role {
		case models.RoleUser:
			if msg.Content != "" {
				params = append(params, openai.UserMessage(msg.Content))
			}

		case models.RoleAssistant:
			var toolCalls []openai.ChatCompletionMessageToolCallParam
			for _, call := range msg.ToolCalls {
				args, err := json.Marshal(call.Arguments)
				if err != nil {
					args = []byte("{}")
				}
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   call.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(msg.Content)},
				ToolCalls: toolCalls,
			}
			params = append(params, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

			for _, result := range msg.ToolResults {
				params = append(params, openai.ToolMessage(toolResultText(result), result.ID))
			}
		}
	}
	return params
}

func (p *OpenAIProvider) buildTools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, t := range tools {
		parameters := shared.FunctionParameters{"type": "object"}
		if t.Schema != nil {
			if properties, ok := t.Schema["properties"]; ok {
				parameters["properties"] = properties
			}
			if required, ok := t.Schema["required"]; ok {
				parameters["required"] = required
			}
		}
		result = append(result, openai.ChatCompletionToolParam{
			Type: "function",
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  parameters,
			},
		})
	}
	return result
}
