package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kubechat-dev/kubechat/internal/config"
	"github.com/kubechat-dev/kubechat/internal/models"
	"github.com/kubechat-dev/kubechat/internal/safety"
)

type stubTool struct {
	BaseTool
	invoked int
	output  string
	err     error
}

func (t *stubTool) Schema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *stubTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	t.invoked++
	return t.output, t.err
}

// spyRegistry records every resolve so tests can assert the gate's
// resolution order.
type spyRegistry struct {
	inner    *Registry
	resolves []string
}

func (s *spyRegistry) Resolve(name string) (Tool, bool) {
	s.resolves = append(s.resolves, name)
	return s.inner.Resolve(name)
}

func newTestGate(t *testing.T, tools ...Tool) (*Gate, *spyRegistry, map[string]*stubTool) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	registry := NewRegistry(logger)
	stubs := make(map[string]*stubTool)
	for _, tool := range tools {
		registry.Register(tool)
		if stub, ok := tool.(*stubTool); ok {
			stubs[tool.Name()] = stub
		}
	}

	classifier := safety.NewClassifier(config.SafetyConfig{
		SafeOperations:      []string{"get_pods"},
		ConfirmOperations:   []string{"scale_deployment"},
		ForbiddenOperations: []string{"delete"},
	})

	spy := &spyRegistry{inner: registry}
	return newGate(spy, classifier, logger), spy, stubs
}

func TestGate_ExecutesSafeTool(t *testing.T) {
	tool := &stubTool{BaseTool: NewBaseTool("get_pods", "lists pods"), output: "3 pods"}
	gate, _, _ := newTestGate(t, tool)

	outcome, result := gate.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "get_pods"}, false)

	require.Equal(t, OutcomeExecuted, outcome)
	assert.True(t, result.Success)
	assert.Equal(t, "3 pods", result.Result)
	assert.Equal(t, "c1", result.ID)
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, tool.invoked)
}

func TestGate_DeniedCallsNeverInvoke(t *testing.T) {
	scale := &stubTool{BaseTool: NewBaseTool("scale_deployment", "scales a deployment")}
	del := &stubTool{BaseTool: NewBaseTool("delete", "deletes a resource")}
	unlisted := &stubTool{BaseTool: NewBaseTool("exec", "runs a command in a container")}
	gate, _, stubs := newTestGate(t, scale, del, unlisted)

	tests := []struct {
		name    string
		call    string
		confirm bool
	}{
		{"unconfirmed write", "scale_deployment", false},
		{"forbidden", "delete", true},
		{"not in any safety set", "exec", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, result := gate.Execute(context.Background(), models.ToolCall{ID: "c1", Name: tt.call}, tt.confirm)

			assert.Equal(t, OutcomeDenied, outcome)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
			assert.Equal(t, 0, stubs[tt.call].invoked, "denied call must never invoke the tool")
		})
	}
}

// An unregistered name is NotFound even when its classification would deny
// it; resolution runs before the classifier.
func TestGate_ResolutionRunsFirst(t *testing.T) {
	gate, spy, _ := newTestGate(t)

	outcome, result := gate.Execute(context.Background(), models.ToolCall{Name: "delete"}, false)

	assert.Equal(t, OutcomeNotFound, outcome)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not registered")
	assert.Equal(t, []string{"delete"}, spy.resolves)
}

func TestGate_ConfirmedWriteExecutes(t *testing.T) {
	tool := &stubTool{BaseTool: NewBaseTool("scale_deployment", "scales a deployment"), output: "scaled"}
	gate, _, _ := newTestGate(t, tool)

	outcome, result := gate.Execute(context.Background(), models.ToolCall{Name: "scale_deployment"}, true)

	require.Equal(t, OutcomeExecuted, outcome)
	assert.True(t, result.Success)
	assert.Equal(t, 1, tool.invoked)
}

func TestGate_UnregisteredToolIsNotFound(t *testing.T) {
	gate, spy, _ := newTestGate(t)

	outcome, result := gate.Execute(context.Background(), models.ToolCall{Name: "get_pods"}, false)

	assert.Equal(t, OutcomeNotFound, outcome)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not registered")
	assert.Equal(t, []string{"get_pods"}, spy.resolves)
}

func TestGate_ToolErrorIsFailed(t *testing.T) {
	tool := &stubTool{BaseTool: NewBaseTool("get_pods", "lists pods"), err: errors.New("api server unreachable")}
	gate, _, _ := newTestGate(t, tool)

	outcome, result := gate.Execute(context.Background(), models.ToolCall{Name: "get_pods"}, false)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.False(t, result.Success)
	assert.Equal(t, "api server unreachable", result.Error)
}
