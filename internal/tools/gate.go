package tools

import (
	"context"

	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/metrics"
	"github.com/kubechat-dev/kubechat/internal/models"
	"github.com/kubechat-dev/kubechat/internal/safety"
)

// Outcome is the gate's disposition of one invocation request.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeDenied   Outcome = "denied"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailed   Outcome = "failed"
)

// resolver is the slice of the registry the gate needs.
type resolver interface {
	Resolve(name string) (Tool, bool)
}

// Gate is the single choke point between callers that want a tool executed
// and the registry that executes it. Resolution runs first, so an unknown
// name is NotFound rather than Denied; every resolved call is then
// classified, and nothing is invoked without a safe verdict.
type Gate struct {
	registry   resolver
	classifier *safety.Classifier
	logger     *zap.Logger
}

// NewGate wires the gate in front of a registry.
func NewGate(registry *Registry, classifier *safety.Classifier, logger *zap.Logger) *Gate {
	return newGate(registry, classifier, logger)
}

func newGate(registry resolver, classifier *safety.Classifier, logger *zap.Logger) *Gate {
	return &Gate{
		registry:   registry,
		classifier: classifier,
		logger:     logger,
	}
}

// Execute resolves the requested tool, classifies the call, and invokes the
// tool only on a safe verdict. The returned result is always populated:
// denials and failures surface as unsuccessful results with the reason in
// Error, never as a panic or a missing entry.
func (g *Gate) Execute(ctx context.Context, call models.ToolCall, confirm bool) (Outcome, models.ToolResult) {
	result := models.ToolResult{ID: call.ID, Name: call.Name}

	tool, ok := g.registry.Resolve(call.Name)
	if !ok {
		g.logger.Warn("tool not registered", zap.String("tool", call.Name))
		metrics.ToolInvocationsTotal.WithLabelValues(call.Name, string(OutcomeNotFound)).Inc()

		result.Error = "tool " + call.Name + " is not registered"
		return OutcomeNotFound, result
	}

	verdict := g.classifier.Classify(call.Name, confirm)
	if !verdict.Allowed() {
		g.logger.Warn("tool invocation denied",
			zap.String("tool", call.Name),
			zap.String("decision", string(verdict.Decision)),
			zap.String("reason", verdict.Reason))
		metrics.ToolInvocationsTotal.WithLabelValues(call.Name, string(OutcomeDenied)).Inc()

		result.Error = verdict.Reason
		return OutcomeDenied, result
	}

	output, err := tool.Invoke(ctx, call.Arguments)
	if err != nil {
		g.logger.Error("tool invocation failed", zap.String("tool", call.Name), zap.Error(err))
		metrics.ToolInvocationsTotal.WithLabelValues(call.Name, string(OutcomeFailed)).Inc()

		result.Error = err.Error()
		return OutcomeFailed, result
	}

	metrics.ToolInvocationsTotal.WithLabelValues(call.Name, string(OutcomeExecuted)).Inc()
	result.Result = output
	result.Success = true
	return OutcomeExecuted, result
}
