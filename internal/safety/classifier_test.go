package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubechat-dev/kubechat/internal/config"
)

func testConfig() config.SafetyConfig {
	return config.SafetyConfig{
		SafeOperations:      []string{"get", "describe", "get_pods", "cluster_info"},
		ConfirmOperations:   []string{"scale", "scale_deployment", "delete_deployment"},
		ForbiddenOperations: []string{"delete", "drain"},
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(testConfig())

	tests := []struct {
		name      string
		operation string
		confirm   bool
		want      Decision
	}{
		{"safe read", "get_pods", false, DecisionSafe},
		{"safe read ignores confirm", "get", true, DecisionSafe},
		{"write without confirmation", "scale_deployment", false, DecisionNeedsConfirmation},
		{"write with confirmation", "scale_deployment", true, DecisionSafe},
		{"forbidden", "delete", false, DecisionForbidden},
		{"forbidden ignores confirm", "delete", true, DecisionForbidden},
		{"unknown fails closed", "exec", false, DecisionUnknown},
		{"unknown ignores confirm", "exec", true, DecisionUnknown},
		{"empty name fails closed", "", true, DecisionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.operation, tt.confirm)
			assert.Equal(t, tt.want, v.Decision)
			assert.Equal(t, tt.want == DecisionSafe, v.Allowed())
			if !v.Allowed() {
				assert.NotEmpty(t, v.Reason)
			}
		})
	}
}

func TestClassify_ForbiddenWinsOverConfirm(t *testing.T) {
	// A name placed in both sets by misconfiguration must stay forbidden.
	cfg := testConfig()
	cfg.ConfirmOperations = append(cfg.ConfirmOperations, "drain")
	c := NewClassifier(cfg)

	v := c.Classify("drain", true)
	require.Equal(t, DecisionForbidden, v.Decision)
	assert.False(t, v.Allowed())
}

func TestClassify_EmptySets(t *testing.T) {
	c := NewClassifier(config.SafetyConfig{})

	v := c.Classify("get_pods", false)
	assert.Equal(t, DecisionUnknown, v.Decision)
}
