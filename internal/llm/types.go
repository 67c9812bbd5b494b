// Package llm abstracts the completion providers behind a single interface
// with blocking and streaming paths.
package llm

import (
	"context"

	"github.com/kubechat-dev/kubechat/internal/models"
)

// ToolDefinition describes one tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// Request is a provider-independent completion request. Messages carry the
// conversation so far, including prior tool calls and their results.
type Request struct {
	System      string
	Messages    []models.Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}

// StreamChunk represents a chunk of streaming response.
type StreamChunk struct {
	Content      string
	ToolCalls    []models.ToolCall
	FinishReason string
	Delta        bool // true if this is a delta update, false if complete
}

// Provider is an interface for LLM providers.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Complete sends a request and returns the full response text.
	Complete(ctx context.Context, request Request) (string, error)

	// StreamComplete sends a request and streams the response. The chunk
	// channel is closed when the stream ends; a stream failure is reported
	// on the error channel.
	StreamComplete(ctx context.Context, request Request) (<-chan StreamChunk, <-chan error)
}
