package server

import (
	"net/http"

	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/server/middleware"
	"valhalla-hq/heimdall/pkg/telemetry/health"
	"valhalla-hq/heimdall/pkg/telemetry/tracing"
)

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes(cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	hc := cfg.Telemetry.Health
	mux.Handle("GET "+hc.LivenessPath, s.deps.Health.LivenessHandler())
	mux.Handle("GET "+hc.ReadinessPath, s.deps.Health.ReadinessHandler())
	mux.Handle("GET /version", health.VersionHandler(s.deps.Version, s.deps.Commit, s.deps.BuildTime))
	if cfg.Telemetry.Metrics.Enabled && s.deps.Metrics != nil {
		mux.Handle("GET "+cfg.Telemetry.Metrics.Path, s.deps.Metrics.Handler())
	}

	// Gate
	mux.Handle("GET /api/admin/go-live", s.admin(s.handleGateState))
	mux.Handle("POST /api/admin/go-live", s.admin(s.handleToggleGoLive))
	mux.Handle("POST /api/admin/kill-switch/engage", s.admin(s.handleEngageKillSwitch))
	mux.Handle("POST /api/admin/kill-switch/disengage", s.admin(s.handleDisengageKillSwitch))
	if s.deps.Runbook != nil {
		mux.Handle("GET /api/admin/runbook", s.admin(s.handleRunbook))
	}

	// Engines
	mux.HandleFunc("GET /api/engines", s.handleListEngines)
	mux.HandleFunc("GET /api/engines/{key}", s.handleGetEngine)
	mux.HandleFunc("GET /api/engines/{key}/next", s.handleNextStates)
	mux.Handle("POST /api/engines/{key}/transition", s.admin(s.handleTransition))

	// Guard
	mux.HandleFunc("POST /api/guard/check", s.handleGuardCheck)
	mux.HandleFunc("POST /api/guard/revalidate", s.handleGuardRevalidate)

	// Audit
	if s.deps.AuditStorage != nil {
		mux.Handle("GET /api/audit", s.admin(s.handleAuditQuery))
		mux.Handle("GET /api/audit/verify", s.admin(s.handleAuditVerify))
	}

	// KPI tripwire
	if s.deps.Tripwire != nil {
		mux.HandleFunc("POST /api/kpi/events", s.handleRecordKPIEvent)
		mux.HandleFunc("GET /api/tripwire/policies", s.handleListPolicies)
		mux.Handle("POST /api/tripwire/evaluate", s.admin(s.handleEvaluateTripwire))
	}

	var handler http.Handler = mux

	handler = s.execGate.Handle(handler)

	if s.deps.Tracer != nil && s.deps.Tracer.Enabled() {
		handler = tracing.HTTPMiddleware(s.deps.Tracer)(handler)
	}

	if rl := cfg.Server.RateLimit; rl.Enabled {
		limiter := middleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst,
			hc.LivenessPath, hc.ReadinessPath, cfg.Telemetry.Metrics.Path)
		handler = limiter.Middleware(handler)
	}

	handler = middleware.LoggingMiddleware(s.deps.Metrics)(handler)
	handler = middleware.RequestIDMiddleware(handler)

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}
