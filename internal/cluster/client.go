// Package cluster wraps the Kubernetes API access used by the tool layer:
// read-only listings, the context snapshot, and the three gated deployment
// mutations.
package cluster

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kubechat-dev/kubechat/internal/config"
	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/models"
)

// PodInfo is a compact pod listing entry.
type PodInfo struct {
	Name     string `json:"name"`
	Phase    string `json:"phase"`
	Ready    string `json:"ready"`
	Restarts int32  `json:"restarts"`
	Node     string `json:"node,omitempty"`
}

// DeploymentInfo is a compact deployment listing entry.
type DeploymentInfo struct {
	Name              string `json:"name"`
	Replicas          int32  `json:"replicas"`
	ReadyReplicas     int32  `json:"ready_replicas"`
	AvailableReplicas int32  `json:"available_replicas"`
}

// ServiceInfo is a compact service listing entry.
type ServiceInfo struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	ClusterIP string  `json:"cluster_ip"`
	Ports     []int32 `json:"ports,omitempty"`
}

// NodeInfo is a compact node listing entry.
type NodeInfo struct {
	Name    string `json:"name"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
}

// Client provides the cluster operations backed by a Kubernetes clientset.
type Client struct {
	clientset        kubernetes.Interface
	defaultNamespace string
	logger           *zap.Logger
}

// NewClient builds a client from kubeconfig, falling back to in-cluster
// config when no kubeconfig is reachable.
func NewClient(cfg config.KubernetesConfig, logger *zap.Logger) (*Client, error) {
	restCfg, err := buildRestConfig(cfg)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to load kubernetes config", err)
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to create kubernetes client", err)
	}

	return NewClientForClientset(clientset, cfg.Namespace, logger), nil
}

// NewClientForClientset wraps an existing clientset. Tests use this with a
// fake clientset.
func NewClientForClientset(clientset kubernetes.Interface, namespace string, logger *zap.Logger) *Client {
	if namespace == "" {
		namespace = "default"
	}
	return &Client{
		clientset:        clientset,
		defaultNamespace: namespace,
		logger:           logger,
	}
}

func buildRestConfig(cfg config.KubernetesConfig) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.Kubeconfig != "" {
		rules.ExplicitPath = cfg.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: cfg.Context}

	restCfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err == nil {
		return restCfg, nil
	}
	if inCluster, inErr := rest.InClusterConfig(); inErr == nil {
		return inCluster, nil
	}
	return nil, err
}

// Namespace resolves an explicit namespace against the configured default.
func (c *Client) Namespace(ns string) string {
	if ns == "" {
		return c.defaultNamespace
	}
	return ns
}

// ListPods lists pods in the namespace.
func (c *Client) ListPods(ctx context.Context, namespace string) ([]PodInfo, error) {
	pods, err := c.clientset.CoreV1().Pods(c.Namespace(namespace)).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to list pods", err)
	}

	out := make([]PodInfo, 0, len(pods.Items))
	for _, pod := range pods.Items {
		out = append(out, summarizePod(pod))
	}
	return out, nil
}

func summarizePod(pod corev1.Pod) PodInfo {
	ready := 0
	var restarts int32
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.Ready {
			ready++
		}
		restarts += cs.RestartCount
	}
	return PodInfo{
		Name:     pod.Name,
		Phase:    string(pod.Status.Phase),
		Ready:    fmt.Sprintf("%d/%d", ready, len(pod.Spec.Containers)),
		Restarts: restarts,
		Node:     pod.Spec.NodeName,
	}
}

// ListDeployments lists deployments in the namespace.
func (c *Client) ListDeployments(ctx context.Context, namespace string) ([]DeploymentInfo, error) {
	deps, err := c.clientset.AppsV1().Deployments(c.Namespace(namespace)).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to list deployments", err)
	}

	out := make([]DeploymentInfo, 0, len(deps.Items))
	for _, dep := range deps.Items {
		replicas := int32(0)
		if dep.Spec.Replicas != nil {
			replicas = *dep.Spec.Replicas
		}
		out = append(out, DeploymentInfo{
			Name:              dep.Name,
			Replicas:          replicas,
			ReadyReplicas:     dep.Status.ReadyReplicas,
			AvailableReplicas: dep.Status.AvailableReplicas,
		})
	}
	return out, nil
}

// ListServices lists services in the namespace.
func (c *Client) ListServices(ctx context.Context, namespace string) ([]ServiceInfo, error) {
	svcs, err := c.clientset.CoreV1().Services(c.Namespace(namespace)).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to list services", err)
	}

	out := make([]ServiceInfo, 0, len(svcs.Items))
	for _, svc := range svcs.Items {
		ports := make([]int32, 0, len(svc.Spec.Ports))
		for _, p := range svc.Spec.Ports {
			ports = append(ports, p.Port)
		}
		out = append(out, ServiceInfo{
			Name:      svc.Name,
			Type:      string(svc.Spec.Type),
			ClusterIP: svc.Spec.ClusterIP,
			Ports:     ports,
		})
	}
	return out, nil
}

// ListNodes lists cluster nodes.
func (c *Client) ListNodes(ctx context.Context) ([]NodeInfo, error) {
	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUpstream, "failed to list nodes", err)
	}

	out := make([]NodeInfo, 0, len(nodes.Items))
	for _, node := range nodes.Items {
		out = append(out, NodeInfo{
			Name:    node.Name,
			Ready:   nodeReady(node),
			Version: node.Status.NodeInfo.KubeletVersion,
		})
	}
	return out, nil
}

func nodeReady(node corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// Snapshot collects the point-in-time cluster context used to ground
// response synthesis.
func (c *Client) Snapshot(ctx context.Context, namespace string) (*models.ClusterContext, error) {
	ns := c.Namespace(namespace)

	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	pods, err := c.ListPods(ctx, ns)
	if err != nil {
		return nil, err
	}
	deps, err := c.ListDeployments(ctx, ns)
	if err != nil {
		return nil, err
	}

	ready := 0
	for _, node := range nodes {
		if node.Ready {
			ready++
		}
	}
	phases := make(map[string]int)
	for _, pod := range pods {
		phases[pod.Phase]++
	}

	return &models.ClusterContext{
		Namespace:   ns,
		Nodes:       len(nodes),
		ReadyNodes:  ready,
		PodsByPhase: phases,
		Deployments: len(deps),
		CollectedAt: time.Now().UTC(),
	}, nil
}

// ScaleDeployment sets the deployment's replica count through the scale
// subresource.
func (c *Client) ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error {
	deployments := c.clientset.AppsV1().Deployments(c.Namespace(namespace))

	scale, err := deployments.GetScale(ctx, name, metav1.GetOptions{})
	if err != nil {
		return apperrors.New(apperrors.ErrCodeUpstream, fmt.Sprintf("failed to read scale of deployment %s", name), err)
	}

	scale.Spec.Replicas = replicas
	if _, err := deployments.UpdateScale(ctx, name, scale, metav1.UpdateOptions{}); err != nil {
		return apperrors.New(apperrors.ErrCodeUpstream, fmt.Sprintf("failed to scale deployment %s", name), err)
	}

	c.logger.Info("scaled deployment",
		zap.String("namespace", c.Namespace(namespace)),
		zap.String("deployment", name),
		zap.Int32("replicas", replicas))
	return nil
}

// RestartDeployment triggers a rolling restart by stamping the pod template,
// the same mechanism kubectl rollout restart uses.
func (c *Client) RestartDeployment(ctx context.Context, namespace, name string) error {
	patch := fmt.Sprintf(
		`{"spec":{"template":{"metadata":{"annotations":{"kubectl.kubernetes.io/restartedAt":%q}}}}}`,
		time.Now().UTC().Format(time.RFC3339))

	_, err := c.clientset.AppsV1().Deployments(c.Namespace(namespace)).
		Patch(ctx, name, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{})
	if err != nil {
		return apperrors.New(apperrors.ErrCodeUpstream, fmt.Sprintf("failed to restart deployment %s", name), err)
	}

	c.logger.Info("restarted deployment",
		zap.String("namespace", c.Namespace(namespace)),
		zap.String("deployment", name))
	return nil
}

// DeleteDeployment removes the deployment.
func (c *Client) DeleteDeployment(ctx context.Context, namespace, name string) error {
	err := c.clientset.AppsV1().Deployments(c.Namespace(namespace)).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil {
		return apperrors.New(apperrors.ErrCodeUpstream, fmt.Sprintf("failed to delete deployment %s", name), err)
	}

	c.logger.Warn("deleted deployment",
		zap.String("namespace", c.Namespace(namespace)),
		zap.String("deployment", name))
	return nil
}

// Healthy probes the API server.
func (c *Client) Healthy(ctx context.Context) error {
	if _, err := c.clientset.Discovery().ServerVersion(); err != nil {
		return apperrors.New(apperrors.ErrCodeUpstream, "kubernetes api server unreachable", err)
	}
	return nil
}
