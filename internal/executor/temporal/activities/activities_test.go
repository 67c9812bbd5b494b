package activities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kubechat-dev/kubechat/internal/cluster"
	"github.com/kubechat-dev/kubechat/internal/config"
	"github.com/kubechat-dev/kubechat/internal/executor/temporal/workflows"
	"github.com/kubechat-dev/kubechat/internal/llm"
	"github.com/kubechat-dev/kubechat/internal/models"
	"github.com/kubechat-dev/kubechat/internal/safety"
	"github.com/kubechat-dev/kubechat/internal/tools"
)

type fakeProvider struct {
	response string
	err      error
	requests []llm.Request
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, request llm.Request) (string, error) {
	p.requests = append(p.requests, request)
	return p.response, p.err
}

func (p *fakeProvider) StreamComplete(ctx context.Context, request llm.Request) (<-chan llm.StreamChunk, <-chan error) {
	out := make(chan llm.StreamChunk)
	errCh := make(chan error)
	close(out)
	close(errCh)
	return out, errCh
}

type fixedTool struct {
	tools.BaseTool
	output string
}

func (t *fixedTool) Schema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *fixedTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	return t.output, nil
}

func newFixture(t *testing.T, provider llm.Provider) (*Activities, *testsuite.TestActivityEnvironment) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	registry := tools.NewRegistry(logger)
	registry.Register(&fixedTool{BaseTool: tools.NewBaseTool("get_pods", "lists pods"), output: "[]"})
	registry.Register(&fixedTool{BaseTool: tools.NewBaseTool("delete_deployment", "deletes a deployment"), output: "deleted"})

	classifier := safety.NewClassifier(config.SafetyConfig{
		SafeOperations:    []string{"get_pods"},
		ConfirmOperations: []string{"delete_deployment"},
	})
	gate := tools.NewGate(registry, classifier, logger)

	clientset := fake.NewClientset(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "default"},
		Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "app"}}},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	})
	clusterClient := cluster.NewClientForClientset(clientset, "default", logger)

	acts := NewActivities(provider, gate, clusterClient, 1024)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	env.RegisterActivity(acts.AnalyzeIntent)
	env.RegisterActivity(acts.CollectClusterContext)
	env.RegisterActivity(acts.ExecuteOperation)
	env.RegisterActivity(acts.SynthesizeResponse)
	return acts, env
}

func TestAnalyzeIntent_ParsesModelJSON(t *testing.T) {
	provider := &fakeProvider{response: `{"requires_tooling": true, "intent": "list pods", "suggested_operations": ["get_pods"], "confidence": 0.9}`}
	acts, env := newFixture(t, provider)

	val, err := env.ExecuteActivity(acts.AnalyzeIntent, workflows.AnalyzeIntentInput{Message: "what pods are running?"})
	require.NoError(t, err)

	var analysis models.IntentAnalysis
	require.NoError(t, val.Get(&analysis))
	assert.True(t, analysis.RequiresTooling)
	assert.Equal(t, []string{"get_pods"}, analysis.SuggestedOperations)
	assert.InDelta(t, 0.9, analysis.Confidence, 0.001)
}

func TestAnalyzeIntent_StripsCodeFences(t *testing.T) {
	provider := &fakeProvider{response: "```json\n{\"requires_tooling\": false, \"intent\": \"smalltalk\", \"suggested_operations\": [], \"confidence\": 0.7}\n```"}
	acts, env := newFixture(t, provider)

	val, err := env.ExecuteActivity(acts.AnalyzeIntent, workflows.AnalyzeIntentInput{Message: "hi"})
	require.NoError(t, err)

	var analysis models.IntentAnalysis
	require.NoError(t, val.Get(&analysis))
	assert.False(t, analysis.RequiresTooling)
	assert.Equal(t, "smalltalk", analysis.Intent)
}

func TestAnalyzeIntent_HeuristicOnGarbage(t *testing.T) {
	provider := &fakeProvider{response: "I think you want to see your pods!"}
	acts, env := newFixture(t, provider)

	val, err := env.ExecuteActivity(acts.AnalyzeIntent, workflows.AnalyzeIntentInput{Message: "show my pods"})
	require.NoError(t, err, "malformed analysis must not fail the activity")

	var analysis models.IntentAnalysis
	require.NoError(t, val.Get(&analysis))
	assert.True(t, analysis.RequiresTooling)
	assert.InDelta(t, 0.5, analysis.Confidence, 0.001)
}

func TestAnalyzeIntent_HeuristicOnProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}
	acts, env := newFixture(t, provider)

	val, err := env.ExecuteActivity(acts.AnalyzeIntent, workflows.AnalyzeIntentInput{Message: "tell me a joke"})
	require.NoError(t, err)

	var analysis models.IntentAnalysis
	require.NoError(t, val.Get(&analysis))
	assert.False(t, analysis.RequiresTooling)
}

func TestCollectClusterContext(t *testing.T) {
	acts, env := newFixture(t, &fakeProvider{})

	val, err := env.ExecuteActivity(acts.CollectClusterContext, "default")
	require.NoError(t, err)

	var snapshot models.ClusterContext
	require.NoError(t, val.Get(&snapshot))
	assert.Equal(t, "default", snapshot.Namespace)
	assert.Equal(t, map[string]int{"Running": 1}, snapshot.PodsByPhase)
}

func TestExecuteOperation_GateApplies(t *testing.T) {
	acts, env := newFixture(t, &fakeProvider{})

	val, err := env.ExecuteActivity(acts.ExecuteOperation, workflows.ExecuteOperationInput{
		Call: models.ToolCall{ID: "op", Name: "get_pods", Arguments: map[string]interface{}{}},
	})
	require.NoError(t, err)

	var result models.ToolResult
	require.NoError(t, val.Get(&result))
	assert.True(t, result.Success)

	val, err = env.ExecuteActivity(acts.ExecuteOperation, workflows.ExecuteOperationInput{
		Call:    models.ToolCall{ID: "op", Name: "delete_deployment", Arguments: map[string]interface{}{}},
		Confirm: false,
	})
	require.NoError(t, err, "denial is a result, not an activity failure")
	require.NoError(t, val.Get(&result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "confirmation")
}

func TestSynthesizeResponse_InjectsContext(t *testing.T) {
	provider := &fakeProvider{response: "Everything looks healthy."}
	acts, env := newFixture(t, provider)

	val, err := env.ExecuteActivity(acts.SynthesizeResponse, workflows.SynthesizeInput{
		Message:        "how is the cluster?",
		ClusterContext: &models.ClusterContext{Namespace: "default", Nodes: 3},
		ToolResults: map[string]models.ToolResult{
			"get_pods": {Name: "get_pods", Result: "[]", Success: true},
		},
	})
	require.NoError(t, err)

	var response string
	require.NoError(t, val.Get(&response))
	assert.Equal(t, "Everything looks healthy.", response)

	require.Len(t, provider.requests, 1)
	request := provider.requests[0]
	require.Len(t, request.Messages, 2, "context message plus the user message")
	assert.Contains(t, request.Messages[0].Content, "cluster context")
	assert.Contains(t, request.Messages[0].Content, "get_pods")
	assert.Equal(t, "how is the cluster?", request.Messages[1].Content)
}

func TestSynthesizeResponse_FailurePropagates(t *testing.T) {
	provider := &fakeProvider{err: errors.New("overloaded")}
	acts, env := newFixture(t, provider)

	_, err := env.ExecuteActivity(acts.SynthesizeResponse, workflows.SynthesizeInput{Message: "hi"})
	require.Error(t, err)
}
