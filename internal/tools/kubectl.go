package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/kubechat-dev/kubechat/internal/config"
	apperrors "github.com/kubechat-dev/kubechat/internal/errors"
	"github.com/kubechat-dev/kubechat/internal/safety"
)

// CommandRunner executes an external command and returns its combined
// output. Injected so tests never shell out.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// clusterlessCommands do not take a namespace flag.
var clusterlessCommands = map[string]struct{}{
	"version":       {},
	"cluster-info":  {},
	"config":        {},
	"api-resources": {},
	"api-versions":  {},
}

// KubectlTool runs kubectl subcommands. The subcommand is re-classified
// against the same safety sets as tool names, so a caller cleared to run
// "kubectl" still cannot smuggle a forbidden subcommand through it. Write
// subcommands run only with the confirm argument set.
type KubectlTool struct {
	BaseTool
	classifier *safety.Classifier
	kubeCfg    config.KubernetesConfig
	runner     CommandRunner
	logger     *zap.Logger
}

// NewKubectlTool creates the kubectl passthrough tool.
func NewKubectlTool(classifier *safety.Classifier, kubeCfg config.KubernetesConfig, logger *zap.Logger) *KubectlTool {
	return &KubectlTool{
		BaseTool:   NewBaseTool("kubectl", "Run a kubectl command against the cluster; write subcommands require confirm"),
		classifier: classifier,
		kubeCfg:    kubeCfg,
		runner:     execRunner,
		logger:     logger,
	}
}

// WithRunner replaces the command runner. Test hook.
func (t *KubectlTool) WithRunner(runner CommandRunner) *KubectlTool {
	t.runner = runner
	return t
}

func (t *KubectlTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "kubectl subcommand, e.g. get, describe, logs",
			},
			"args": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "arguments after the subcommand, e.g. [\"pods\", \"web-1\"]",
			},
			"namespace": map[string]interface{}{
				"type":        "string",
				"description": "namespace to run against; defaults to the configured namespace",
			},
			"output": map[string]interface{}{
				"type":        "string",
				"description": "output format passed to -o, e.g. json, yaml, wide",
			},
			"confirm": map[string]interface{}{
				"type":        "boolean",
				"description": "set true to run a write subcommand such as scale or apply",
			},
		},
		"required": []string{"command"},
	}
}

// Invoke builds the kubectl argv and runs it. Arguments never pass through a
// shell.
func (t *KubectlTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	subcommand, _ := args["command"].(string)
	subcommand = strings.TrimSpace(subcommand)
	if subcommand == "" {
		return "", apperrors.New(apperrors.ErrCodeValidation, "kubectl requires a command argument", nil)
	}

	confirm, _ := args["confirm"].(bool)
	verdict := t.classifier.Classify(subcommand, confirm)
	if !verdict.Allowed() {
		return "", apperrors.New(apperrors.ErrCodeDenied,
			fmt.Sprintf("kubectl %s denied: %s", subcommand, verdict.Reason), nil)
	}

	argv := t.buildArgv(subcommand, args)
	t.logger.Debug("running kubectl", zap.Strings("argv", argv))

	out, err := t.runner(ctx, "kubectl", argv...)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeUpstream,
			fmt.Sprintf("kubectl %s failed: %s", subcommand, strings.TrimSpace(string(out))), err)
	}
	return string(out), nil
}

func (t *KubectlTool) buildArgv(subcommand string, args map[string]interface{}) []string {
	argv := []string{subcommand}

	if rest, ok := args["args"].([]interface{}); ok {
		for _, a := range rest {
			if s, ok := a.(string); ok && s != "" {
				argv = append(argv, s)
			}
		}
	}

	if _, clusterless := clusterlessCommands[subcommand]; !clusterless {
		namespace, _ := args["namespace"].(string)
		if namespace == "" {
			namespace = t.kubeCfg.Namespace
		}
		if namespace != "" {
			argv = append(argv, "-n", namespace)
		}
	}

	// Output formatting applies to read commands only.
	if output, _ := args["output"].(string); output != "" && t.classifier.Classify(subcommand, false).Allowed() {
		argv = append(argv, "-o", output)
	}

	if t.kubeCfg.Context != "" {
		argv = append(argv, "--context", t.kubeCfg.Context)
	}
	if t.kubeCfg.Kubeconfig != "" {
		argv = append(argv, "--kubeconfig", t.kubeCfg.Kubeconfig)
	}
	return argv
}
