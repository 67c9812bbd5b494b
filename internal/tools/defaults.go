package tools

import (
	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/cluster"
	"github.com/kubechat-dev/kubechat/internal/config"
	"github.com/kubechat-dev/kubechat/internal/controlplane"
	"github.com/kubechat-dev/kubechat/internal/safety"
)

// NewDefaultRegistry registers the full tool set: the kubectl passthrough,
// the read-only query tools, and the gated deployment mutations.
func NewDefaultRegistry(
	classifier *safety.Classifier,
	delegate controlplane.Delegate,
	clusterClient *cluster.Client,
	kubeCfg config.KubernetesConfig,
	logger *zap.Logger,
) *Registry {
	registry := NewRegistry(logger)

	registry.Register(NewKubectlTool(classifier, kubeCfg, logger))
	for _, tool := range NewQueryTools(delegate, clusterClient, logger) {
		registry.Register(tool)
	}
	registry.Register(NewScaleDeploymentTool(clusterClient, logger))
	registry.Register(NewRestartDeploymentTool(clusterClient, logger))
	registry.Register(NewDeleteDeploymentTool(clusterClient, logger))

	return registry
}
