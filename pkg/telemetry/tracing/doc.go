// Package tracing provides OpenTelemetry tracing for Heimdall.
//
// Guard decisions, lifecycle transitions and gate changes each open a span
// carrying the engine, action, actor and outcome (see attributes.go). Spans
// are exported over OTLP/gRPC or, with exporter "log", written to the
// structured log at debug level.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "heimdall.guard.authorize")
//	defer span.End()
//
// # Sampling
//
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample sample_ratio of new traces by trace ID
//   - parent_based: follow the caller's decision, sample new roots
//
// always and ratio also respect a sampled parent.
//
// A disabled or nil *Tracer returns noop spans.
package tracing
