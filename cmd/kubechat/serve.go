package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/api"
	"github.com/kubechat-dev/kubechat/internal/chat"
	"github.com/kubechat-dev/kubechat/internal/cluster"
	"github.com/kubechat-dev/kubechat/internal/config"
	"github.com/kubechat-dev/kubechat/internal/controlplane"
	"github.com/kubechat-dev/kubechat/internal/executor/temporal"
	"github.com/kubechat-dev/kubechat/internal/llm"
	"github.com/kubechat-dev/kubechat/internal/logging"
	"github.com/kubechat-dev/kubechat/internal/safety"
	"github.com/kubechat-dev/kubechat/internal/session"
	"github.com/kubechat-dev/kubechat/internal/tools"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the KubeChat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runServe(cmd.Context(), configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting kubechat server",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		zap.String("llm_provider", cfg.LLM.Provider))

	classifier := safety.NewClassifier(cfg.Safety)

	clusterClient, err := cluster.NewClient(cfg.Kubernetes, logger)
	if err != nil {
		return fmt.Errorf("failed to build cluster client: %w", err)
	}

	// The control plane is optional; without it query tools use the local
	// client-go path only.
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

	archive, err := session.NewArchive(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open session archive: %w", err)
	}

	store := session.NewStore(cfg.Session.Timeout, archive, logger)
	streamer := chat.NewStreamer(provider, gate, registry, store, cfg.Chat.MaxToolRounds, cfg.LLM.MaxTokens, logger)

	// The execution path is selected once, at startup: durable when Temporal
	// is enabled and reachable, direct otherwise. Turns never switch paths.
	var executor chat.TurnExecutor
	if cfg.Temporal.Enabled {
		temporalClient, err := temporal.Dial(cfg.Temporal, logger)
		if err != nil {
			logger.Warn("temporal unreachable at startup, running turns in-process", zap.Error(err))
		} else {
			defer temporalClient.Close()
			executor = temporal.NewExecutor(temporalClient, cfg.Temporal, cfg.Workflow, cfg.Kubernetes.Namespace, logger)
		}
	}

	chatService := chat.NewService(store, streamer, executor, logger)
	server := api.NewServer(chatService, store, registry, logger).Build(cfg.Server)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
