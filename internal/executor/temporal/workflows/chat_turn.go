// Package workflows defines the durable chat turn workflow.
package workflows

import (
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/kubechat-dev/kubechat/internal/models"
)

const (
	ChatTurnWorkflowName = "ChatTurnWorkflow"
)

// Timeouts are the per-step start-to-close timeouts, carried in the input so
// the workflow stays deterministic under config changes.
type Timeouts struct {
	Intent    time.Duration
	Context   time.Duration
	Tool      time.Duration
	Synthesis time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Intent <= 0 {
		t.Intent = 30 * time.Second
	}
	if t.Context <= 0 {
		t.Context = time.Minute
	}
	if t.Tool <= 0 {
		t.Tool = time.Minute
	}
	if t.Synthesis <= 0 {
		t.Synthesis = time.Minute
	}
	return t
}

// ChatTurnInput is the input to the chat turn workflow.
type ChatTurnInput struct {
	ConversationID string
	UserMessage    string
	History        []models.Message
	Confirm        bool
	Namespace      string
	Timeouts       Timeouts
}

// AnalyzeIntentInput is the input to the intent analysis activity.
type AnalyzeIntentInput struct {
	Message string
	History []models.Message
}

// ExecuteOperationInput is the input to the gated tool execution activity.
type ExecuteOperationInput struct {
	Call    models.ToolCall
	Confirm bool
}

// SynthesizeInput is the input to the response synthesis activity.
type SynthesizeInput struct {
	Message        string
	History        []models.Message
	ClusterContext *models.ClusterContext
	ToolResults    map[string]models.ToolResult
}

// Activity names, matched by the worker registration.
const (
	AnalyzeIntentActivity         = "AnalyzeIntent"
	CollectClusterContextActivity = "CollectClusterContext"
	ExecuteOperationActivity      = "ExecuteOperation"
	SynthesizeResponseActivity    = "SynthesizeResponse"
)

// ChatTurn processes one user message durably: analyze intent, optionally
// gather cluster context and execute the suggested operations, then
// synthesize the response. The workflow always completes with a TurnResult;
// post-analysis failures set Error and an apologetic Response instead of
// failing the execution.
func ChatTurn(ctx workflow.Context, input ChatTurnInput) (*models.TurnResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting chat turn workflow", "conversationID", input.ConversationID)

	timeouts := input.Timeouts.withDefaults()

	result := &models.TurnResult{
		ConversationID: input.ConversationID,
	}

	// Step 1: intent analysis. The activity falls back to a keyword
	// heuristic internally; if the activity itself fails, the same
	// heuristic runs here so the turn keeps going.
	analysisCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeouts.Intent,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
			InitialInterval: time.Second,
			MaximumInterval: 10 * time.Second,
		},
	})

	var analysis models.IntentAnalysis
	err := workflow.ExecuteActivity(analysisCtx, AnalyzeIntentActivity, AnalyzeIntentInput{
		Message: input.UserMessage,
		History: input.History,
	}).Get(ctx, &analysis)
	if err != nil {
		logger.Warn("Intent analysis activity failed, using heuristic", "error", err)
		analysis = HeuristicIntent(input.UserMessage)
	}
	result.IntentAnalysis = analysis

	if analysis.RequiresTooling {
		logger.Info("Cluster operations required", "operations", analysis.SuggestedOperations)

		// Step 2: cluster context snapshot.
		contextCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: timeouts.Context,
			RetryPolicy: &temporal.RetryPolicy{
				MaximumAttempts: 3,
				InitialInterval: time.Second,
			},
		})

		var clusterContext models.ClusterContext
		err := workflow.ExecuteActivity(contextCtx, CollectClusterContextActivity, input.Namespace).
			Get(ctx, &clusterContext)
		if err != nil {
			logger.Error("Failed to collect cluster context", "error", err)
			return apologize(result, err), nil
		}
		result.ClusterContext = &clusterContext

		// Step 3: suggested operations, one activity each. A failing
		// operation is recorded and its siblings still run.
		for _, operation := range analysis.SuggestedOperations {
			opCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
				StartToCloseTimeout: timeouts.Tool,
				RetryPolicy: &temporal.RetryPolicy{
					MaximumAttempts: 2,
					InitialInterval: time.Second,
				},
			})

			call := models.ToolCall{
				ID:        operation,
				Name:      operation,
				Arguments: map[string]interface{}{},
			}

			var toolResult models.ToolResult
			err := workflow.ExecuteActivity(opCtx, ExecuteOperationActivity, ExecuteOperationInput{
				Call:    call,
				Confirm: input.Confirm,
			}).Get(ctx, &toolResult)
			if err != nil {
				logger.Error("Operation activity failed", "operation", operation, "error", err)
				toolResult = models.ToolResult{
					ID:      operation,
					Name:    operation,
					Success: false,
					Error:   err.Error(),
				}
			}

			if result.ToolResults == nil {
				result.ToolResults = make(map[string]models.ToolResult)
			}
			result.ToolResults[operation] = toolResult
		}
	}

	// Step 4: synthesize the response with everything gathered.
	synthesisCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeouts.Synthesis,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
			InitialInterval: time.Second,
			MaximumInterval: 10 * time.Second,
		},
	})

	var response string
	err = workflow.ExecuteActivity(synthesisCtx, SynthesizeResponseActivity, SynthesizeInput{
		Message:        input.UserMessage,
		History:        input.History,
		ClusterContext: result.ClusterContext,
		ToolResults:    result.ToolResults,
	}).Get(ctx, &response)
	if err != nil {
		logger.Error("Response synthesis failed", "error", err)
		return apologize(result, err), nil
	}
	result.Response = response

	logger.Info("Chat turn workflow completed",
		"conversationID", input.ConversationID,
		"requiresTooling", analysis.RequiresTooling,
		"operations", len(result.ToolResults))
	return result, nil
}

func apologize(result *models.TurnResult, err error) *models.TurnResult {
	result.Error = err.Error()
	result.Response = "I encountered an error while processing your request: " + err.Error()
	return result
}

// HeuristicIntent is the keyword fallback used when model-based analysis is
// unavailable. Pure and deterministic, safe inside workflow code.
func HeuristicIntent(message string) models.IntentAnalysis {
	lower := strings.ToLower(message)
	requires := strings.Contains(lower, "kubectl") ||
		strings.Contains(lower, "pod") ||
		strings.Contains(lower, "deployment")

	ops := []string{}
	if requires {
		ops = append(ops, "cluster_info")
	}
	return models.IntentAnalysis{
		RequiresTooling:     requires,
		Intent:              "General inquiry",
		SuggestedOperations: ops,
		Confidence:          0.5,
	}
}
