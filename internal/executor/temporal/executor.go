// Package temporal runs chat turns through Temporal: the Executor starts
// workflows on behalf of the chat service, the Worker hosts them.
package temporal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/config"
	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/executor/temporal/workflows"
	"github.com/kubechat-dev/kubechat/internal/logging"
	"github.com/kubechat-dev/kubechat/internal/models"
)

// Dial connects to the Temporal frontend using the service logger.
func Dial(cfg config.TemporalConfig, logger *zap.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    logging.NewTemporalAdapter(logger),
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to connect to temporal", err)
	}
	return c, nil
}

// Executor starts chat turn workflows and waits for their results. It is the
// chat service's durable execution path.
type Executor struct {
	temporalClient client.Client
	taskQueue      string
	namespace      string
	timeouts       workflows.Timeouts
	logger         *zap.Logger
}

// NewExecutor creates an executor bound to a task queue.
func NewExecutor(temporalClient client.Client, cfg config.TemporalConfig, workflowCfg config.WorkflowConfig, kubeNamespace string, logger *zap.Logger) *Executor {
	return &Executor{
		temporalClient: temporalClient,
		taskQueue:      cfg.TaskQueue,
		namespace:      kubeNamespace,
		timeouts: workflows.Timeouts{
			Intent:    workflowCfg.IntentTimeout,
			Context:   workflowCfg.ContextTimeout,
			Tool:      workflowCfg.ToolTimeout,
			Synthesis: workflowCfg.SynthesisTimeout,
		},
		logger: logger,
	}
}

// ExecuteTurn runs one turn durably and blocks until the workflow completes.
func (e *Executor) ExecuteTurn(ctx context.Context, sess *models.Session, userMessage string, confirm bool) (*models.TurnResult, error) {
	workflowOptions := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("chat-turn-%s-%s", sess.ID, uuid.NewString()),
		TaskQueue: e.taskQueue,
	}

	input := workflows.ChatTurnInput{
		ConversationID: sess.ID,
		UserMessage:    userMessage,
		History:        sess.Messages,
		Confirm:        confirm,
		Namespace:      e.namespace,
		Timeouts:       e.timeouts,
	}

	run, err := e.temporalClient.ExecuteWorkflow(ctx, workflowOptions, workflows.ChatTurnWorkflowName, input)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to start chat turn workflow", err)
	}

	e.logger.Debug("chat turn workflow started",
		zap.String("workflow_id", run.GetID()),
		zap.String("session_id", sess.ID))

	var result models.TurnResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "chat turn workflow failed", err)
	}
	return &result, nil
}

// CancelTurn cancels a running turn workflow.
func (e *Executor) CancelTurn(ctx context.Context, workflowID string) error {
	if err := e.temporalClient.CancelWorkflow(ctx, workflowID, ""); err != nil {
		return apperrors.New(apperrors.ErrCodeUpstream, "failed to cancel chat turn workflow", err)
	}
	return nil
}
