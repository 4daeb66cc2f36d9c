// Package server provides the Heimdall admin HTTP API.
//
// It exposes the go-live gate, engine lifecycle, combined guard, audit trail
// and KPI tripwire over JSON, together with the health, readiness, version
// and Prometheus endpoints.
//
// # Middleware chain
//
// Outermost first:
//
//	Recovery -> RequestID -> Logging -> RateLimit -> Tracing -> ExecClass -> mux
//
// Admin routes additionally pass through API key authentication when
// security.authentication.enabled is set. The key's user id is the default
// changed_by of every state change.
//
// # Errors
//
// Every error is a JSON body of the form
//
//	{"error": {"code": "ENGINE_NOT_ACTIVE", "message": "engine not in ACTIVE state",
//	           "engine": "outreach", "action": "send_outreach", "state": "SANDBOX"}}
//
// Engine-state blocks are 403, gate blocks 503, invalid transitions, write
// conflicts and stale clearances 409, malformed requests 400 and missing or
// rejected API keys 401.
//
// # Reload
//
// ApplyConfig swaps execution-class settings, API keys and audit query
// limits without restarting the listener. Listener address, timeouts and
// rate limiting take effect on restart.
package server
