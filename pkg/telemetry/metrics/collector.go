package metrics

import (
	"sync"
	"time"

	"valhalla-hq/heimdall/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// maxEngineLabels bounds distinct engine label values. Engine keys arrive
// from API callers, so unknown keys must not grow series without limit.
const maxEngineLabels = 1000

// Collector owns every Heimdall metric. A nil *Collector, or one built with
// metrics disabled, accepts all calls and records nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	guardMetrics  *GuardMetrics
	engineMetrics *EngineMetrics
	gateMetrics   *GateMetrics
	httpMetrics   *HTTPMetrics
	auditMetrics  *AuditMetrics

	engineLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering into registry. A nil registry
// gets a fresh one with Go runtime and process collectors.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}
	}

	return &Collector{
		config:        cfg,
		registry:      registry,
		guardMetrics:  NewGuardMetrics(cfg, registry),
		engineMetrics: NewEngineMetrics(cfg, registry),
		gateMetrics:   NewGateMetrics(cfg, registry),
		httpMetrics:   NewHTTPMetrics(cfg, registry),
		auditMetrics:  NewAuditMetrics(cfg, registry),
		engineLimiter: NewCardinalityLimiter(maxEngineLabels),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordGuardDecision records an authorization outcome ("allowed" or
// "blocked") with the block code, if any.
func (c *Collector) RecordGuardDecision(action, outcome, code string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.guardMetrics.RecordDecision(action, outcome, code, duration)
}

// RecordRevalidation records a clearance revalidation result.
func (c *Collector) RecordRevalidation(result string) {
	if !c.enabled() {
		return
	}
	c.guardMetrics.RecordRevalidation(result)
}

// RecordTransition records an applied transition and publishes the engine's
// new state.
func (c *Collector) RecordTransition(engineKey, from, to string, states []string) {
	if !c.enabled() {
		return
	}
	c.engineMetrics.RecordTransition(from, to)
	c.engineMetrics.SetState(c.engineLabel(engineKey), to, states)
}

// SetEngineState publishes an engine's current state without counting a
// transition. Used when loading state at startup.
func (c *Collector) SetEngineState(engineKey, state string, states []string) {
	if !c.enabled() {
		return
	}
	c.engineMetrics.SetState(c.engineLabel(engineKey), state, states)
}

// RecordTransitionError records a rejected transition.
func (c *Collector) RecordTransitionError(reason string) {
	if !c.enabled() {
		return
	}
	c.engineMetrics.RecordTransitionError(reason)
}

// SetGateState publishes the go-live and kill switch flags.
func (c *Collector) SetGateState(goLive, killSwitch bool) {
	if !c.enabled() {
		return
	}
	c.gateMetrics.SetState(goLive, killSwitch)
}

// RecordGateChange counts a gate mutation.
func (c *Collector) RecordGateChange(change string) {
	if !c.enabled() {
		return
	}
	c.gateMetrics.RecordChange(change)
}

// RecordExecClassBlock counts an HTTP request refused by the gate.
func (c *Collector) RecordExecClassBlock(class, code string) {
	if !c.enabled() {
		return
	}
	c.gateMetrics.RecordExecClassBlock(class, code)
}

// RecordHTTPRequest records a served HTTP request.
func (c *Collector) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.httpMetrics.RecordRequest(route, method, status, duration)
}

// RecordAuditWrite counts a stored audit record.
func (c *Collector) RecordAuditWrite(kind string) {
	if !c.enabled() {
		return
	}
	c.auditMetrics.RecordWrite(kind)
}

// RecordAuditWriteError counts a failed audit write.
func (c *Collector) RecordAuditWriteError() {
	if !c.enabled() {
		return
	}
	c.auditMetrics.RecordWriteError()
}

// RecordAuditPruned counts records removed by retention.
func (c *Collector) RecordAuditPruned(n int64) {
	if !c.enabled() {
		return
	}
	c.auditMetrics.RecordPruned(n)
}

// RecordTripwireEvaluation counts a tripwire evaluation.
func (c *Collector) RecordTripwireEvaluation(domain, metric, result string) {
	if !c.enabled() {
		return
	}
	c.auditMetrics.RecordTripwireEvaluation(domain, metric, result)
}

// RecordTripwireTrigger counts a fired tripwire.
func (c *Collector) RecordTripwireTrigger(action string) {
	if !c.enabled() {
		return
	}
	c.auditMetrics.RecordTripwireTrigger(action)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) engineLabel(engineKey string) string {
	if c.engineLimiter.Allow(engineKey) {
		return engineKey
	}
	return "other"
}

// CardinalityLimiter caps the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is already tracked or still fits under the
// limit, tracking it in the latter case.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
