package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/cluster"
	"github.com/kubechat-dev/kubechat/internal/config"
	"github.com/kubechat-dev/kubechat/internal/controlplane"
	"github.com/kubechat-dev/kubechat/internal/executor/temporal"
	"github.com/kubechat-dev/kubechat/internal/executor/temporal/activities"
	"github.com/kubechat-dev/kubechat/internal/llm"
	"github.com/kubechat-dev/kubechat/internal/logging"
	"github.com/kubechat-dev/kubechat/internal/safety"
	"github.com/kubechat-dev/kubechat/internal/tools"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the Temporal worker hosting chat turn workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runWorker(cmd.Context(), configPath)
		},
	}
}

func runWorker(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.Temporal.Enabled {
		return errors.New("temporal is disabled in configuration; the worker has nothing to do")
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting kubechat worker",
		zap.String("temporal_host", cfg.Temporal.HostPort),
		zap.String("task_queue", cfg.Temporal.TaskQueue))

	classifier := safety.NewClassifier(cfg.Safety)

	clusterClient, err := cluster.NewClient(cfg.Kubernetes, logger)
	if err != nil {
		return fmt.Errorf("failed to build cluster client: %w", err)
	}

	var delegate controlplane.Delegate
	if cfg.ControlPlane.URL != "" {
		cp, err := controlplane.NewClient(ctx, cfg.ControlPlane, logger)
		if err != nil {
			logger.Warn("control plane unavailable, using local cluster access only", zap.Error(err))
		} else {
			defer cp.Close()
			delegate = cp
		}
	}

	registry := tools.NewDefaultRegistry(classifier, delegate, clusterClient, cfg.Kubernetes, logger)
	gate := tools.NewGate(registry, classifier, logger)

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	temporalClient, err := temporal.Dial(cfg.Temporal, logger)
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	acts := activities.NewActivities(provider, gate, clusterClient, cfg.LLM.MaxTokens)
	worker := temporal.NewWorker(temporalClient, cfg.Temporal.TaskQueue, acts, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := worker.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
