package metrics

import (
	"valhalla-hq/heimdall/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// GateMetrics tracks the go-live record and execution-class blocking.
//
// Metrics:
//   - heimdall_governance_go_live_enabled: 1 when production execution is enabled
//   - heimdall_governance_kill_switch_engaged: 1 when the kill switch is engaged
//   - heimdall_governance_gate_changes_total: gate mutations by kind
//   - heimdall_governance_exec_class_blocks_total: HTTP requests refused by class and code
type GateMetrics struct {
	goLiveEnabled     prometheus.Gauge
	killSwitchEngaged prometheus.Gauge
	changesTotal      *prometheus.CounterVec
	execBlocksTotal   *prometheus.CounterVec
}

// NewGateMetrics creates and registers gate metrics with the provided registry.
func NewGateMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *GateMetrics {
	gm := &GateMetrics{
		goLiveEnabled: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "go_live_enabled",
				Help:      "Whether production execution is enabled (1) or not (0)",
			},
		),

		killSwitchEngaged: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "kill_switch_engaged",
				Help:      "Whether the emergency kill switch is engaged (1) or not (0)",
			},
		),

		changesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "gate_changes_total",
				Help:      "Total number of go-live and kill switch changes",
			},
			[]string{"change"},
		),

		execBlocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "exec_class_blocks_total",
				Help:      "Total number of HTTP requests refused by execution class",
			},
			[]string{"class", "code"},
		),
	}

	registry.MustRegister(
		gm.goLiveEnabled,
		gm.killSwitchEngaged,
		gm.changesTotal,
		gm.execBlocksTotal,
	)

	return gm
}

// SetState publishes the current gate flags.
func (gm *GateMetrics) SetState(goLive, killSwitch bool) {
	gm.goLiveEnabled.Set(boolToFloat(goLive))
	gm.killSwitchEngaged.Set(boolToFloat(killSwitch))
}

// RecordChange counts a gate mutation ("go_live_enabled", "go_live_disabled",
// "kill_switch_engaged", "kill_switch_disengaged").
func (gm *GateMetrics) RecordChange(change string) {
	gm.changesTotal.WithLabelValues(change).Inc()
}

// RecordExecClassBlock counts a refused HTTP request.
func (gm *GateMetrics) RecordExecClassBlock(class, code string) {
	gm.execBlocksTotal.WithLabelValues(class, code).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
