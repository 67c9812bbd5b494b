package temporal

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/executor/temporal/activities"
	"github.com/kubechat-dev/kubechat/internal/executor/temporal/workflows"
)

// Worker hosts the chat turn workflow and its activities.
type Worker struct {
	worker    worker.Worker
	taskQueue string
	logger    *zap.Logger
}

// NewWorker registers the workflow and activities on the task queue.
func NewWorker(temporalClient client.Client, taskQueue string, acts *activities.Activities, logger *zap.Logger) *Worker {
	w := worker.New(temporalClient, taskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(workflows.ChatTurn, workflow.RegisterOptions{Name: workflows.ChatTurnWorkflowName})

	w.RegisterActivityWithOptions(acts.AnalyzeIntent, activity.RegisterOptions{Name: workflows.AnalyzeIntentActivity})
	w.RegisterActivityWithOptions(acts.CollectClusterContext, activity.RegisterOptions{Name: workflows.CollectClusterContextActivity})
	w.RegisterActivityWithOptions(acts.ExecuteOperation, activity.RegisterOptions{Name: workflows.ExecuteOperationActivity})
	w.RegisterActivityWithOptions(acts.SynthesizeResponse, activity.RegisterOptions{Name: workflows.SynthesizeResponseActivity})

	return &Worker{worker: w, taskQueue: taskQueue, logger: logger}
}

// Run starts the worker and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("starting temporal worker", zap.String("task_queue", w.taskQueue))
	if err := w.worker.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	w.logger.Info("stopping temporal worker")
	w.worker.Stop()
	return ctx.Err()
}
