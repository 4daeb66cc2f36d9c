package metrics

import (
	"valhalla-hq/heimdall/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks engine lifecycle state.
//
// Metrics:
//   - heimdall_governance_engine_state: 1 for the engine's current state, 0 otherwise
//   - heimdall_governance_engine_transitions_total: applied transitions by from/to state
//   - heimdall_governance_engine_transition_errors_total: rejected transitions by reason
type EngineMetrics struct {
	state              *prometheus.GaugeVec
	transitionsTotal   *prometheus.CounterVec
	transitionErrTotal *prometheus.CounterVec
}

// NewEngineMetrics creates and registers engine metrics with the provided registry.
func NewEngineMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_state",
				Help:      "Current lifecycle state per engine (1 = current state)",
			},
			[]string{"engine", "state"},
		),

		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_transitions_total",
				Help:      "Total number of applied engine transitions",
			},
			[]string{"from", "to"},
		),

		transitionErrTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "engine_transition_errors_total",
				Help:      "Total number of rejected engine transitions",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		em.state,
		em.transitionsTotal,
		em.transitionErrTotal,
	)

	return em
}

// SetState marks current as the engine's state among all states.
func (em *EngineMetrics) SetState(engineKey, current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		em.state.WithLabelValues(engineKey, s).Set(v)
	}
}

// RecordTransition records an applied transition.
func (em *EngineMetrics) RecordTransition(from, to string) {
	em.transitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordTransitionError records a rejected transition ("invalid", "conflict", "storage").
func (em *EngineMetrics) RecordTransitionError(reason string) {
	em.transitionErrTotal.WithLabelValues(reason).Inc()
}
