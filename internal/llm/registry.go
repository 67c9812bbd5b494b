package llm

import (
	"fmt"
	"sync"

	"github.com/kubechat-dev/kubechat/internal/config"
)

// Registry manages LLM providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register registers a provider under its own name.
func (r *Registry) Register(provider Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	r.providers[name] = provider
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return provider, nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// NewProvider registers every supported provider and selects the configured
// one by name.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	registry := NewRegistry()
	if err := registry.Register(NewAnthropicProvider(cfg.APIKey, cfg.Model)); err != nil {
		return nil, err
	}
	if err := registry.Register(NewOpenAIProvider(cfg.APIKey, cfg.Model)); err != nil {
		return nil, err
	}

	provider, err := registry.Get(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("unsupported llm provider %q: %w", cfg.Provider, err)
	}
	return provider, nil
}
