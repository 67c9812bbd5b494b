package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/models"
)

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates an Anthropic provider for the given model.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = string(anthropic.ModelClaude3_5Sonnet20241022)
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) buildParams(request Request) anthropic.MessageNewParams {
	maxTokens := int64(request.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  p.buildMessages(request.Messages),
		MaxTokens: maxTokens,
	}
	if request.Temperature > 0 {
		params.Temperature = anthropic.Float(request.Temperature)
	}
	if request.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: request.System}}
	}
	if len(request.Tools) > 0 {
		params.Tools = p.buildTools(request.Tools)
	}
	return params
}

// Complete sends a blocking completion request.
func (p *AnthropicProvider) Complete(ctx context.Context, request Request) (string, error) {
	resp, err := p.client.Messages.New(ctx, p.buildParams(request))
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeUpstream, "anthropic completion failed", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return sb.String(), nil
}

// StreamComplete streams deltas and assembled tool calls.
func (p *AnthropicProvider) StreamComplete(ctx context.Context, request Request) (<-chan StreamChunk, <-chan error) {
	out := make(chan StreamChunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := p.client.Messages.NewStreaming(ctx, p.buildParams(request))
		defer stream.Close()

		type pendingCall struct {
			id      string
			name    string
			jsonBuf strings.Builder
		}
		pending := make(map[int64]*pendingCall)
		var order []int64

		for stream.Next() {
			event := stream.Current()

			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				if variant.ContentBlock.Type == "tool_use" {
					toolUse := variant.ContentBlock.AsToolUse()
					pending[variant.Index] = &pendingCall{id: toolUse.ID, name: toolUse.Name}
					order = append(order, variant.Index)
				}

			case anthropic.ContentBlockDeltaEvent:
				switch d := variant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					out <- StreamChunk{Content: d.Text, Delta: true}
				case anthropic.InputJSONDelta:
					if pc, ok := pending[variant.Index]; ok {
						pc.jsonBuf.WriteString(d.PartialJSON)
					}
				}

			case anthropic.MessageDeltaEvent:
				final := StreamChunk{FinishReason: string(variant.Delta.StopReason)}
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
			errCh <- apperrors.New(apperrors.ErrCodeUpstream, "anthropic streaming failed", err)
		}
	}()

	return out, errCh
}

func (p *AnthropicProvider) buildMessages(messages []models.Message) []anthropic.MessageParam {
	var params []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			if msg.Content != "" {
				params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}

		case models.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				input := interface{}(call.Arguments)
				if input == nil {
					input = map[string]interface{}{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(blocks) > 0 {
				params = append(params, anthropic.NewAssistantMessage(blocks...))
			}

			// Tool results follow their calls as a user turn.
			if len(msg.ToolResults) > 0 {
				var resultBlocks []anthropic.ContentBlockParamUnion
				for _, result := range msg.ToolResults {
					resultBlocks = append(resultBlocks,
						anthropic.NewToolResultBlock(result.ID, toolResultText(result), !result.Success))
				}
				params = append(params, anthropic.NewUserMessage(resultBlocks...))
			}
		}
	}
	return params
}

func (p *AnthropicProvider) buildTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	var result []anthropic.ToolUnionParam
	for _, t := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if t.Schema != nil {
			if properties, ok := t.Schema["properties"]; ok {
				schema.Properties = properties
			}
			if required, ok := t.Schema["required"].([]string); ok {
				schema.Required = required
			}
		}
		result = append(result, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return result
}

func toolResultText(result models.ToolResult) string {
	if !result.Success {
		return result.Error
	}
	switch v := result.Result.(type) {
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
