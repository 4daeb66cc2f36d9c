// Package metrics provides Prometheus metrics for Heimdall.
//
// # Metrics Categories
//
//   - Guard: decisions by action, outcome and block code; evaluation latency;
//     clearance revalidations
//   - Engines: current state gauge per engine, transitions, rejected transitions
//   - Gate: go-live and kill switch gauges, gate changes, execution-class blocks
//   - HTTP: admin API requests and latency by route
//   - Audit: records written, write errors, pruned records, tripwire sweeps
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordGuardDecision("OUTREACH", "blocked", "ENGINE_NOT_ACTIVE", d)
//	mux.Handle("/metrics", collector.Handler())
//
// All metric names are prefixed with namespace and subsystem, by default
// heimdall_governance_.
//
// A nil *Collector is valid and records nothing, so services can be built
// without metrics in tests.
//
// # Cardinality Management
//
// Engine keys come from callers. At most 1000 distinct engine label values
// are tracked; further engines are reported as "other".
package metrics
