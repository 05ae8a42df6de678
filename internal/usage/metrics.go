package usage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus counters mirroring the running cost/token totals across all
// trackers in the process. Cumulative rather than per-cycle, so an
// operator's dashboard shows the agent's lifetime spend.
var (
	costTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentloop",
		Subsystem: "usage",
		Name:      "cost_usd_total",
		Help:      "Cumulative estimated cost in USD, by phase and model.",
	}, []string{"phase", "model"})

	tokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentloop",
		Subsystem: "usage",
		Name:      "tokens_total",
		Help:      "Cumulative tokens consumed, by phase, model, and kind.",
	}, []string{"phase", "model", "kind"})

	callsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentloop",
		Subsystem: "usage",
		Name:      "calls_total",
		Help:      "Number of LLM calls recorded, by phase, model, and sync/batch.",
	}, []string{"phase", "model", "mode"})
)

func init() {
	prometheus.MustRegister(costTotal, tokensTotal, callsTotal)
}

func recordMetrics(e Entry) {
	costTotal.WithLabelValues(e.Phase, e.Model).Add(e.Cost)

	mode := "sync"
	if e.Batch {
		mode = "batch"
	}
	callsTotal.WithLabelValues(e.Phase, e.Model, mode).Inc()

	tokensTotal.WithLabelValues(e.Phase, e.Model, "input").Add(float64(e.Usage.InputTokens))
	tokensTotal.WithLabelValues(e.Phase, e.Model, "output").Add(float64(e.Usage.OutputTokens))
	tokensTotal.WithLabelValues(e.Phase, e.Model, "cache_write_5m").Add(float64(e.Usage.CacheWrite5mTokens))
	tokensTotal.WithLabelValues(e.Phase, e.Model, "cache_write_1h").Add(float64(e.Usage.CacheWrite1hTokens))
	tokensTotal.WithLabelValues(e.Phase, e.Model, "cache_read").Add(float64(e.Usage.CacheReadTokens))
}
