package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.False(t, cfg.Temporal.Enabled)
	assert.Equal(t, time.Hour, cfg.Session.Timeout)
	assert.Contains(t, cfg.Safety.SafeOperations, "get_pods")
	assert.Contains(t, cfg.Safety.ConfirmOperations, "scale_deployment")
	assert.Contains(t, cfg.Safety.ForbiddenOperations, "delete")
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kubechat.yaml")
	content := []byte(`
server:
  port: 9090
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: test-key
temporal:
  enabled: true
session:
  timeout: 10m
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.True(t, cfg.Temporal.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Session.Timeout)
	// Defaults survive partial files.
	assert.Equal(t, "kubechat-turns", cfg.Temporal.TaskQueue)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err, "missing api key must fail validation")

	cfg.LLM.APIKey = "key"
	require.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "mystery"
	require.Error(t, cfg.Validate())
	cfg.LLM.Provider = "anthropic"

	cfg.Safety.SafeOperations = append(cfg.Safety.SafeOperations, "delete")
	err = cfg.Validate()
	require.Error(t, err, "overlapping safety sets must fail validation")
}
