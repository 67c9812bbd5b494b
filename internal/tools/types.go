// Package tools defines the cluster tool layer: the Tool interface, the
// registry that owns tool instances, and the safety gate every invocation
// must pass through.
package tools

import "context"

// Tool defines the interface for cluster tools.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON schema of the tool's arguments, in the shape
	// completion providers expect for tool definitions.
	Schema() map[string]interface{}
	Invoke(ctx context.Context, args map[string]interface{}) (string, error)
}

// HealthChecker is implemented by tools whose backing dependency can be
// probed without side effects.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// BaseTool provides common functionality for tools.
type BaseTool struct {
	name        string
	description string
}

// NewBaseTool creates a new BaseTool.
func NewBaseTool(name, description string) BaseTool {
	return BaseTool{
		name:        name,
		description: description,
	}
}

// Name returns the tool name.
func (b *BaseTool) Name() string {
	return b.name
}

// Description returns the tool description.
func (b *BaseTool) Description() string {
	return b.description
}
