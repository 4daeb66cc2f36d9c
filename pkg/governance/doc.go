// Package governance is the single entry point for every Heimdall decision
// and mutation.
//
// A Service composes the engine Lifecycle, the go-live Gate and the Guard
// with the audit recorder, Prometheus metrics and OpenTelemetry tracing.
// The HTTP server, the CLI and the regression tripwire all go through it, so
// every toggle, transition and guard decision leaves the same audit record
// and metric regardless of where it came from.
//
// Audit writes are best effort: a mutation that was persisted is reported as
// successful even when its audit record could not be written. The failure is
// logged and counted in heimdall_governance_audit_write_errors_total.
package governance
