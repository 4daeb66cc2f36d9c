// Package logging configures log/slog for Heimdall.
//
// Setup builds a handler chain (JSON or text output, redaction, context
// fields) and installs it as slog's default. Packages keep logging through
// slog.Default().With("component", ...) and inherit the chain.
//
//	logger, err := logging.Setup(logging.FromConfig(cfg.Telemetry.Logging))
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	slog.InfoContext(ctx, "engine transitioned")  // includes request_id
//
// The level is held in a slog.LevelVar, so SetLevel applies to every derived
// logger. It is wired to configuration reloads.
//
// With redaction enabled, attributes named like credentials (token,
// api_key, authorization) are cut to a four character prefix, and bearer
// tokens and e-mail addresses inside strings are masked.
package logging
