// Package metrics registers the Prometheus instruments shared by the chat
// service and the tool layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts completed turns by execution mode (direct|workflow)
	// and outcome (completed|error).
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kubechat",
		Name:      "turns_total",
		Help:      "Completed chat turns by execution mode and outcome.",
	}, []string{"mode", "outcome"})

	// TurnDuration observes end-to-end turn latency per execution mode.
	TurnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kubechat",
		Name:      "turn_duration_seconds",
		Help:      "End-to-end chat turn latency.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"mode"})

	// ToolInvocationsTotal counts safety-gate outcomes per tool. Denials and
	// not-found lookups are counted here too so the gate's decisions are
	// observable without log scraping.
	ToolInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kubechat",
		Name:      "tool_invocations_total",
		Help:      "Tool invocations by tool name and gate outcome.",
	}, []string{"tool", "outcome"})

	// ActiveSessions tracks sessions currently held by the store.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kubechat",
		Name:      "active_sessions",
		Help:      "Sessions currently active in the store.",
	})
)
