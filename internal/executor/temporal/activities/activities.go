// Package activities implements the chat turn workflow's activities. All
// cluster access goes through the safety gate; no activity touches a tool
// directly.
package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/kubechat-dev/kubechat/internal/chat"
	"github.com/kubechat-dev/kubechat/internal/cluster"
	"github.com/kubechat-dev/kubechat/internal/executor/temporal/workflows"
	"github.com/kubechat-dev/kubechat/internal/llm"
	"github.com/kubechat-dev/kubechat/internal/models"
	"github.com/kubechat-dev/kubechat/internal/tools"
)

// Activities holds the activity dependencies.
type Activities struct {
	provider  llm.Provider
	gate      *tools.Gate
	cluster   *cluster.Client
	maxTokens int
}

// NewActivities creates the activity set.
func NewActivities(provider llm.Provider, gate *tools.Gate, clusterClient *cluster.Client, maxTokens int) *Activities {
	return &Activities{
		provider:  provider,
		gate:      gate,
		cluster:   clusterClient,
		maxTokens: maxTokens,
	}
}

// AnalyzeIntent classifies the user message. Analysis never fails the turn:
// a malformed or failed completion degrades to the keyword heuristic.
func (a *Activities) AnalyzeIntent(ctx context.Context, input workflows.AnalyzeIntentInput) (models.IntentAnalysis, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Analyzing user intent", "messageLength", len(input.Message))

	activity.RecordHeartbeat(ctx, "analyzing intent")

	response, err := a.provider.Complete(ctx, llm.Request{
		System: chat.IntentSystemPrompt,
		Messages: []models.Message{{
			Role:    models.RoleUser,
			Content: chat.IntentPrompt(input.Message, input.History),
		}},
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		logger.Warn("Intent completion failed, using heuristic", "error", err)
		return workflows.HeuristicIntent(input.Message), nil
	}

	analysis, err := parseIntent(response)
	if err != nil {
		logger.Warn("Intent response was not valid JSON, using heuristic", "error", err)
		return workflows.HeuristicIntent(input.Message), nil
	}
	return analysis, nil
}

func parseIntent(response string) (models.IntentAnalysis, error) {
	var analysis models.IntentAnalysis

	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return models.IntentAnalysis{}, err
	}
	return analysis, nil
}

// CollectClusterContext snapshots the cluster for response grounding.
func (a *Activities) CollectClusterContext(ctx context.Context, namespace string) (*models.ClusterContext, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Collecting cluster context", "namespace", namespace)

	activity.RecordHeartbeat(ctx, "collecting cluster context")

	snapshot, err := a.cluster.Snapshot(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("cluster snapshot failed: %w", err)
	}

	logger.Info("Cluster context collected",
		"nodes", snapshot.Nodes, "deployments", snapshot.Deployments)
	return snapshot, nil
}

// ExecuteOperation runs one suggested operation through the safety gate.
// Denials and tool failures come back as unsuccessful results, not activity
// errors, so sibling operations keep running.
func (a *Activities) ExecuteOperation(ctx context.Context, input workflows.ExecuteOperationInput) (models.ToolResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Executing operation", "operation", input.Call.Name, "confirm", input.Confirm)

	activity.RecordHeartbeat(ctx, fmt.Sprintf("executing %s", input.Call.Name))

	outcome, result := a.gate.Execute(ctx, input.Call, input.Confirm)
	logger.Info("Operation finished", "operation", input.Call.Name, "outcome", string(outcome))
	return result, nil
}

// SynthesizeResponse produces the assistant's reply grounded in the
// collected cluster context and tool results.
func (a *Activities) SynthesizeResponse(ctx context.Context, input workflows.SynthesizeInput) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Synthesizing response",
		"historyLength", len(input.History), "toolResults", len(input.ToolResults))

	activity.RecordHeartbeat(ctx, "synthesizing response")

	messages := make([]models.Message, 0, len(input.History)+2)
	messages = append(messages, input.History...)

	if contextText := buildContext(input.ClusterContext, input.ToolResults); contextText != "" {
		messages = append(messages, models.Message{
			Role:      models.RoleUser,
			Content:   contextText,
			Timestamp: time.Now().UTC(),
		})
	}
	messages = append(messages, models.Message{
		Role:      models.RoleUser,
		Content:   input.Message,
		Timestamp: time.Now().UTC(),
	})

	response, err := a.provider.Complete(ctx, llm.Request{
		System:    chat.SystemPrompt,
		Messages:  messages,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return response, nil
}

func buildContext(clusterContext *models.ClusterContext, toolResults map[string]models.ToolResult) string {
	if clusterContext == nil && len(toolResults) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Current Kubernetes cluster context:\n\n")

	if clusterContext != nil {
		encoded, err := json.Marshal(clusterContext)
		if err == nil {
			fmt.Fprintf(&sb, "Cluster status: %s\n\n", encoded)
		}
	}

	if len(toolResults) > 0 {
		sb.WriteString("Tool results:\n")
		for name, result := range toolResults {
			if result.Success {
				fmt.Fprintf(&sb, "- %s: %v\n", name, result.Result)
			} else {
				fmt.Fprintf(&sb, "- %s failed: %s\n", name, result.Error)
			}
		}
	}
	return sb.String()
}
