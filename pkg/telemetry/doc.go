// Package telemetry groups Heimdall's observability packages.
//
//   - logging: slog setup with context attributes and redaction
//   - metrics: Prometheus collectors for guard decisions, engine
//     transitions, gate changes, audit writes and tripwire evaluations
//   - tracing: OpenTelemetry spans around governance operations
//   - health: liveness and readiness probes
//
// Each subpackage is configured from the matching section of
// config.TelemetryConfig and can be used on its own.
package telemetry
