package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Registry owns the registered tool instances. Registration happens once at
// startup; lookups afterwards are concurrent.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool under its own name, replacing any previous instance
// with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name()]; exists {
		r.logger.Warn("replacing registered tool", zap.String("tool", tool.Name()))
	}
	r.tools[tool.Name()] = tool
}

// Resolve returns the tool registered under name, if any.
func (r *Registry) Resolve(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// HealthStatus is one tool's health probe result.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Health probes every tool that supports health checks and reports per-tool
// status. A probe failure (or panic) marks that tool unhealthy; it never
// takes the registry down.
func (r *Registry) Health(ctx context.Context) map[string]HealthStatus {
	statuses := make(map[string]HealthStatus)
	for _, tool := range r.List() {
		checker, ok := tool.(HealthChecker)
		if !ok {
			statuses[tool.Name()] = HealthStatus{Healthy: true}
			continue
		}
		statuses[tool.Name()] = r.probe(ctx, tool.Name(), checker)
	}
	return statuses
}

func (r *Registry) probe(ctx context.Context, name string, checker HealthChecker) (status HealthStatus) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool health check panicked", zap.String("tool", name), zap.Any("panic", rec))
			status = HealthStatus{Healthy: false, Detail: "health check panicked"}
		}
	}()

	if err := checker.Health(ctx); err != nil {
		return HealthStatus{Healthy: false, Detail: err.Error()}
	}
	return HealthStatus{Healthy: true}
}

// Healthy reports overall registry health, aggregating every failing probe.
func (r *Registry) Healthy(ctx context.Context) error {
	var result *multierror.Error
	for name, status := range r.Health(ctx) {
		if !status.Healthy {
			result = multierror.Append(result, &toolUnhealthyError{name: name, detail: status.Detail})
		}
	}
	return result.ErrorOrNil()
}

type toolUnhealthyError struct {
	name   string
	detail string
}

func (e *toolUnhealthyError) Error() string {
	return "tool " + e.name + " unhealthy: " + e.detail
}
