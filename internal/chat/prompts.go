// Package chat runs conversation turns: the event streamer for the direct
// path and the service that picks between direct and durable execution.
package chat

import (
	"fmt"
	"strings"

	"github.com/kubechat-dev/kubechat/internal/models"
)

// SystemPrompt grounds the assistant in its cluster role. Shared by the
// direct streamer and the synthesis activity.
const SystemPrompt = `You are KubeChat, an AI assistant specialized in Kubernetes operations and management.

You have access to a Kubernetes cluster through a set of tools that provide real-time cluster information and the ability to run kubectl commands.

Your capabilities include:
- Viewing cluster resources (pods, services, deployments, nodes)
- Running read-only kubectl commands
- Scaling and restarting deployments when the user has confirmed the change
- Analyzing cluster state and health
- Helping with troubleshooting
- Explaining Kubernetes concepts and best practices

When performing operations, explain what you are doing and why. Destructive operations require explicit user confirmation; if an operation was declined, tell the user what confirmation is needed instead of guessing. If you are unsure about something, ask for clarification rather than making assumptions that could impact the cluster.

Be conversational but professional. Format responses clearly, using code blocks for commands and YAML/JSON where appropriate.`

// IntentSystemPrompt steers the intent-analysis completion.
const IntentSystemPrompt = `You are an intent analysis assistant. Analyze user messages to determine if they require Kubernetes operations.`

// IntentPrompt builds the analysis request for one user message plus the
// tail of the conversation.
func IntentPrompt(message string, history []models.Message) string {
	var ctx strings.Builder
	tail := history
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	if len(tail) == 0 {
		ctx.WriteString("None")
	} else {
		for _, msg := range tail {
			fmt.Fprintf(&ctx, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	return fmt.Sprintf(`Analyze this user message and determine if it requires Kubernetes operations:

User message: %q

Previous conversation context: %s

Respond with a JSON object containing:
- requires_tooling: boolean (true if Kubernetes operations are needed)
- intent: string (description of what the user wants)
- suggested_operations: array of strings (which tools might be needed)
- confidence: number (0-1, how confident you are about the intent)

Example response:
{"requires_tooling": true, "intent": "list all pods", "suggested_operations": ["get_pods"], "confidence": 0.9}`,
		message, ctx.String())
}
