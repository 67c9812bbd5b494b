package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubechat-dev/kubechat/internal/config"
)

type fakeProvider struct{ name string }

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Complete(ctx context.Context, request Request) (string, error) {
	return "", nil
}

func (p *fakeProvider) StreamComplete(ctx context.Context, request Request) (<-chan StreamChunk, <-chan error) {
	out := make(chan StreamChunk)
	errCh := make(chan error)
	close(out)
	close(errCh)
	return out, errCh
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&fakeProvider{name: "anthropic"}))
	require.NoError(t, r.Register(&fakeProvider{name: "openai"}))
	assert.Error(t, r.Register(&fakeProvider{name: "anthropic"}), "duplicate registration must fail")

	p, err := r.Get("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, err = r.Get("vertex")
	assert.Error(t, err)

	assert.ElementsMatch(t, []string{"anthropic", "openai"}, r.List())
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.LLMConfig{Provider: "anthropic", APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	p, err = NewProvider(config.LLMConfig{Provider: "openai", APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = NewProvider(config.LLMConfig{Provider: "vertex"})
	assert.Error(t, err)
}
