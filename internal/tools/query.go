package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/cluster"
	"github.com/kubechat-dev/kubechat/internal/controlplane"
	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
)

// QueryTool answers a read-only cluster question. When a control plane
// delegate is configured it is tried first; on failure the tool falls back
// to direct cluster access and logs the degradation.
type QueryTool struct {
	BaseTool
	delegate controlplane.Delegate
	fetch    func(ctx context.Context, namespace string) (interface{}, error)
	cluster  *cluster.Client
	logger   *zap.Logger
}

func newQueryTool(
	name, description string,
	delegate controlplane.Delegate,
	clusterClient *cluster.Client,
	logger *zap.Logger,
	fetch func(ctx context.Context, namespace string) (interface{}, error),
) *QueryTool {
	return &QueryTool{
		BaseTool: NewBaseTool(name, description),
		delegate: delegate,
		fetch:    fetch,
		cluster:  clusterClient,
		logger:   logger,
	}
}

// NewQueryTools builds the read-only tool set backed by the cluster client
// and the optional control plane delegate.
func NewQueryTools(delegate controlplane.Delegate, clusterClient *cluster.Client, logger *zap.Logger) []Tool {
	return []Tool{
		newQueryTool("get_pods", "List pods in a namespace with phase and readiness",
			delegate, clusterClient, logger,
			func(ctx context.Context, ns string) (interface{}, error) {
				return clusterClient.ListPods(ctx, ns)
			}),
		newQueryTool("get_deployments", "List deployments in a namespace with replica counts",
			delegate, clusterClient, logger,
			func(ctx context.Context, ns string) (interface{}, error) {
				return clusterClient.ListDeployments(ctx, ns)
			}),
		newQueryTool("get_services", "List services in a namespace with type and ports",
			delegate, clusterClient, logger,
			func(ctx context.Context, ns string) (interface{}, error) {
				return clusterClient.ListServices(ctx, ns)
			}),
		newQueryTool("get_nodes", "List cluster nodes with readiness and version",
			delegate, clusterClient, logger,
			func(ctx context.Context, ns string) (interface{}, error) {
				return clusterClient.ListNodes(ctx)
			}),
		newQueryTool("cluster_info", "Summarize cluster health: nodes, pods by phase, deployments",
			delegate, clusterClient, logger,
			func(ctx context.Context, ns string) (interface{}, error) {
				return clusterClient.Snapshot(ctx, ns)
			}),
	}
}

func (t *QueryTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"namespace": map[string]interface{}{
				"type":        "string",
				"description": "namespace to query; defaults to the configured namespace",
			},
		},
	}
}

func (t *QueryTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	if t.delegate != nil {
		out, err := t.delegate.CallTool(ctx, t.Name(), args)
		if err == nil {
			return out, nil
		}
		t.logger.Warn("control plane call failed, falling back to direct cluster access",
			zap.String("tool", t.Name()), zap.Error(err))
	}

	namespace, _ := args["namespace"].(string)
	data, err := t.fetch(ctx, namespace)
	if err != nil {
		return "", err
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeInternal,
			fmt.Sprintf("failed to encode %s result", t.Name()), err)
	}
	return string(encoded), nil
}

// Health reports the reachability of the tool's active backend. The direct
// cluster path is the one that matters: delegation failures degrade, they do
// not disable the tool.
func (t *QueryTool) Health(ctx context.Context) error {
	return t.cluster.Healthy(ctx)
}
