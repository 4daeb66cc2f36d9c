// Package health provides liveness and readiness probes.
//
// Liveness only reports that the process serves HTTP. Readiness runs the
// registered dependency checks (state database, audit database) concurrently,
// each bounded by the configured timeout, and answers 503 when any fails.
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("state_store", store.Ping)
//	mux.Handle("GET /ready", checker.ReadinessHandler())
//
// An engaged kill switch is a governance state, not a health failure, and
// never affects readiness.
package health
