package metrics

import (
	"valhalla-hq/heimdall/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks the audit trail and tripwire sweeps.
//
// Metrics:
//   - heimdall_governance_audit_records_total: records written by kind
//   - heimdall_governance_audit_write_errors_total: failed audit writes
//   - heimdall_governance_audit_pruned_total: records removed by retention
//   - heimdall_governance_tripwire_evaluations_total: evaluations by domain, metric and result
//   - heimdall_governance_tripwire_triggers_total: fired tripwires by action
type AuditMetrics struct {
	recordsTotal     *prometheus.CounterVec
	writeErrorsTotal prometheus.Counter
	prunedTotal      prometheus.Counter
	tripwireEvals    *prometheus.CounterVec
	tripwireTriggers *prometheus.CounterVec
}

// NewAuditMetrics creates and registers audit metrics with the provided registry.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_records_total",
				Help:      "Total number of audit records written",
			},
			[]string{"kind"},
		),

		writeErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_write_errors_total",
				Help:      "Total number of failed audit writes",
			},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "audit_pruned_total",
				Help:      "Total number of audit records removed by retention",
			},
		),

		tripwireEvals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tripwire_evaluations_total",
				Help:      "Total number of tripwire evaluations",
			},
			[]string{"domain", "metric", "result"},
		),

		tripwireTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tripwire_triggers_total",
				Help:      "Total number of fired tripwires",
			},
			[]string{"action"},
		),
	}

	registry.MustRegister(
		am.recordsTotal,
		am.writeErrorsTotal,
		am.prunedTotal,
		am.tripwireEvals,
		am.tripwireTriggers,
	)

	return am
}

// RecordWrite counts a stored audit record.
func (am *AuditMetrics) RecordWrite(kind string) {
	am.recordsTotal.WithLabelValues(kind).Inc()
}

// RecordWriteError counts a failed audit write.
func (am *AuditMetrics) RecordWriteError() {
	am.writeErrorsTotal.Inc()
}

// RecordPruned adds n removed records.
func (am *AuditMetrics) RecordPruned(n int64) {
	if n > 0 {
		am.prunedTotal.Add(float64(n))
	}
}

// RecordTripwireEvaluation counts an evaluation ("ok", "triggered", "skipped").
func (am *AuditMetrics) RecordTripwireEvaluation(domain, metric, result string) {
	am.tripwireEvals.WithLabelValues(domain, metric, result).Inc()
}

// RecordTripwireTrigger counts a fired tripwire.
func (am *AuditMetrics) RecordTripwireTrigger(action string) {
	am.tripwireTriggers.WithLabelValues(action).Inc()
}
