package tools

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/cluster"
	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
)

// deploymentArgs are shared by every deployment mutation.
func deploymentArgs(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"name": map[string]interface{}{
			"type":        "string",
			"description": "deployment name",
		},
		"namespace": map[string]interface{}{
			"type":        "string",
			"description": "namespace of the deployment; defaults to the configured namespace",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   []string{"name"},
	}
}

func requireName(args map[string]interface{}) (name, namespace string, err error) {
	name, _ = args["name"].(string)
	if name == "" {
		return "", "", apperrors.New(apperrors.ErrCodeValidation, "deployment name is required", nil)
	}
	namespace, _ = args["namespace"].(string)
	return name, namespace, nil
}

// ScaleDeploymentTool sets a deployment's replica count.
type ScaleDeploymentTool struct {
	BaseTool
	cluster *cluster.Client
	logger  *zap.Logger
}

func NewScaleDeploymentTool(clusterClient *cluster.Client, logger *zap.Logger) *ScaleDeploymentTool {
	return &ScaleDeploymentTool{
		BaseTool: NewBaseTool("scale_deployment", "Scale a deployment to a given replica count"),
		cluster:  clusterClient,
		logger:   logger,
	}
}

func (t *ScaleDeploymentTool) Schema() map[string]interface{} {
	return deploymentArgs(map[string]interface{}{
		"replicas": map[string]interface{}{
			"type":        "integer",
			"description": "desired replica count",
			"minimum":     0,
		},
	})
}

func (t *ScaleDeploymentTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	name, namespace, err := requireName(args)
	if err != nil {
		return "", err
	}
	replicas, err := intArg(args, "replicas")
	if err != nil {
		return "", err
	}

	if err := t.cluster.ScaleDeployment(ctx, namespace, name, replicas); err != nil {
		return "", err
	}
	return fmt.Sprintf("scaled deployment %s to %d replicas", name, replicas), nil
}

func (t *ScaleDeploymentTool) Health(ctx context.Context) error {
	return t.cluster.Healthy(ctx)
}

// intArg extracts an integer argument that may arrive as float64 (JSON
// decoding) or int.
func intArg(args map[string]interface{}, key string) (int32, error) {
	switch v := args[key].(type) {
	case float64:
		if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
			return 0, apperrors.New(apperrors.ErrCodeValidation,
				fmt.Sprintf("%s must be a non-negative integer", key), nil)
		}
		return int32(v), nil
	case int:
		if v < 0 || v > math.MaxInt32 {
			return 0, apperrors.New(apperrors.ErrCodeValidation,
				fmt.Sprintf("%s must be a non-negative integer", key), nil)
		}
		return int32(v), nil
	default:
		return 0, apperrors.New(apperrors.ErrCodeValidation,
			fmt.Sprintf("%s is required", key), nil)
	}
}

// RestartDeploymentTool triggers a rolling restart of a deployment.
type RestartDeploymentTool struct {
	BaseTool
	cluster *cluster.Client
	logger  *zap.Logger
}

func NewRestartDeploymentTool(clusterClient *cluster.Client, logger *zap.Logger) *RestartDeploymentTool {
	return &RestartDeploymentTool{
		BaseTool: NewBaseTool("restart_deployment", "Trigger a rolling restart of a deployment"),
		cluster:  clusterClient,
		logger:   logger,
	}
}

func (t *RestartDeploymentTool) Schema() map[string]interface{} {
	return deploymentArgs(nil)
}

func (t *RestartDeploymentTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	name, namespace, err := requireName(args)
	if err != nil {
		return "", err
	}
	if err := t.cluster.RestartDeployment(ctx, namespace, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("restarted deployment %s", name), nil
}

func (t *RestartDeploymentTool) Health(ctx context.Context) error {
	return t.cluster.Healthy(ctx)
}

// DeleteDeploymentTool removes a deployment.
type DeleteDeploymentTool struct {
	BaseTool
	cluster *cluster.Client
	logger  *zap.Logger
}

func NewDeleteDeploymentTool(clusterClient *cluster.Client, logger *zap.Logger) *DeleteDeploymentTool {
	return &DeleteDeploymentTool{
		BaseTool: NewBaseTool("delete_deployment", "Delete a deployment from the cluster"),
		cluster:  clusterClient,
		logger:   logger,
	}
}

func (t *DeleteDeploymentTool) Schema() map[string]interface{} {
	return deploymentArgs(nil)
}

func (t *DeleteDeploymentTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	name, namespace, err := requireName(args)
	if err != nil {
		return "", err
	}
	if err := t.cluster.DeleteDeployment(ctx, namespace, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("deleted deployment %s", name), nil
}

func (t *DeleteDeploymentTool) Health(ctx context.Context) error {
	return t.cluster.Healthy(ctx)
}
