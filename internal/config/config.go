// Package config loads the service configuration from file and environment
// via viper. Every tunable the orchestration engine depends on (timeouts,
// safety sets, provider credentials) is defined here, not scattered.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root service configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	LLM          LLMConfig          `mapstructure:"llm"`
	Temporal     TemporalConfig     `mapstructure:"temporal"`
	Session      SessionConfig      `mapstructure:"session"`
	Chat         ChatConfig         `mapstructure:"chat"`
	Safety       SafetyConfig       `mapstructure:"safety"`
	ControlPlane ControlPlaneConfig `mapstructure:"control_plane"`
	Kubernetes   KubernetesConfig   `mapstructure:"kubernetes"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LLMConfig holds completion provider settings.
type LLMConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	APIKey    string `mapstructure:"api_key"`
}

// TemporalConfig holds durable-execution settings. When Enabled is false the
// service runs turns in-process only.
type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// SessionConfig holds session lifecycle settings.
type SessionConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChatConfig holds streaming-turn settings.
type ChatConfig struct {
	MaxToolRounds int `mapstructure:"max_tool_rounds"`
}

// SafetyConfig defines the three disjoint operation name sets consumed by the
// command classifier. Names absent from all three fail closed.
type SafetyConfig struct {
	SafeOperations      []string `mapstructure:"safe_operations"`
	ConfirmOperations   []string `mapstructure:"confirm_operations"`
	ForbiddenOperations []string `mapstructure:"forbidden_operations"`
}

// ControlPlaneConfig holds the optional remote MCP control-plane endpoint.
// An empty URL disables delegation; query tools then use the local path only.
type ControlPlaneConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KubernetesConfig holds cluster access settings.
type KubernetesConfig struct {
	Namespace  string `mapstructure:"namespace"`
	Context    string `mapstructure:"context"`
	Kubeconfig string `mapstructure:"kubeconfig"`
}

// StorageConfig holds the closed-session archive settings.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`
}

// WorkflowConfig holds the per-step activity timeouts of the chat workflow.
type WorkflowConfig struct {
	IntentTimeout    time.Duration `mapstructure:"intent_timeout"`
	ContextTimeout   time.Duration `mapstructure:"context_timeout"`
	ToolTimeout      time.Duration `mapstructure:"tool_timeout"`
	SynthesisTimeout time.Duration `mapstructure:"synthesis_timeout"`
}

// Load reads configuration from the given file (optional) and the KUBECHAT_*
// environment, applying defaults for everything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KUBECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)

	v.SetDefault("log.level", "info")

	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("llm.max_tokens", 4096)

	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "kubechat-turns")

	v.SetDefault("session.timeout", time.Hour)

	v.SetDefault("chat.max_tool_rounds", 4)

	// The classifier's default policy mirrors the kubectl command tiers plus
	// the registered tool names.
	v.SetDefault("safety.safe_operations", []string{
		"get", "describe", "logs", "top", "version", "cluster-info",
		"config", "explain", "api-resources", "api-versions",
		"kubectl", "get_pods", "get_deployments", "get_services",
		"get_nodes", "cluster_info",
	})
	v.SetDefault("safety.confirm_operations", []string{
		"apply", "create", "replace", "patch", "edit", "scale", "autoscale",
		"expose", "set", "label", "annotate",
		"scale_deployment", "restart_deployment", "delete_deployment",
	})
	v.SetDefault("safety.forbidden_operations", []string{
		"delete", "rollout", "drain", "cordon", "uncordon", "taint",
	})

	v.SetDefault("control_plane.url", "")
	v.SetDefault("control_plane.timeout", 30*time.Second)

	v.SetDefault("kubernetes.namespace", "default")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "kubechat.db")

	v.SetDefault("workflow.intent_timeout", 30*time.Second)
	v.SetDefault("workflow.context_timeout", time.Minute)
	v.SetDefault("workflow.tool_timeout", time.Minute)
	v.SetDefault("workflow.synthesis_timeout", time.Minute)
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (KUBECHAT_LLM_API_KEY)")
	}
	if c.LLM.Provider != "anthropic" && c.LLM.Provider != "openai" {
		return fmt.Errorf("unsupported llm.provider: %s", c.LLM.Provider)
	}
	if c.Temporal.Enabled && c.Temporal.HostPort == "" {
		return fmt.Errorf("temporal.host_port is required when temporal is enabled")
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session.timeout must be positive")
	}
	if c.Storage.Driver != "sqlite" && c.Storage.Driver != "postgres" {
		return fmt.Errorf("unsupported storage.driver: %s", c.Storage.Driver)
	}

	sets := map[string]bool{}
	for _, group := range [][]string{
		c.Safety.SafeOperations, c.Safety.ConfirmOperations, c.Safety.ForbiddenOperations,
	} {
		for _, op := range group {
			if sets[op] {
				return fmt.Errorf("operation %q appears in more than one safety set", op)
			}
			sets[op] = true
		}
	}
	return nil
}
