package metrics

import (
	"time"

	"valhalla-hq/heimdall/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// GuardMetrics tracks action authorization.
//
// Metrics:
//   - heimdall_governance_guard_decisions_total: decisions by action, outcome and block code
//   - heimdall_governance_guard_evaluation_duration_seconds: time to read state and decide
//   - heimdall_governance_guard_revalidations_total: clearance revalidations by result
type GuardMetrics struct {
	decisionsTotal     *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	revalidationsTotal *prometheus.CounterVec
}

// NewGuardMetrics creates and registers guard metrics with the provided registry.
func NewGuardMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *GuardMetrics {
	gm := &GuardMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "guard_decisions_total",
				Help:      "Total number of guarded action decisions",
			},
			[]string{"action", "outcome", "code"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "guard_evaluation_duration_seconds",
				Help:      "Duration of guard evaluation including state reads",
				// State reads hit SQLite: 10µs to ~80ms
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
			},
			[]string{"action"},
		),

		revalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "guard_revalidations_total",
				Help:      "Total number of clearance revalidations",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		gm.decisionsTotal,
		gm.evaluationDuration,
		gm.revalidationsTotal,
	)

	return gm
}

// RecordDecision records one decision. code is empty for allowed actions.
func (gm *GuardMetrics) RecordDecision(action, outcome, code string, duration time.Duration) {
	gm.decisionsTotal.WithLabelValues(action, outcome, code).Inc()
	gm.evaluationDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordRevalidation records a revalidation result ("valid", "stale", "blocked").
func (gm *GuardMetrics) RecordRevalidation(result string) {
	gm.revalidationsTotal.WithLabelValues(result).Inc()
}
