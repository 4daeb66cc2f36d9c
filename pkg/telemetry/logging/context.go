package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ActorKey is the context key for the authenticated operator.
	ActorKey contextKey = "actor"

	// EngineKey is the context key for the engine being governed.
	EngineKey contextKey = "engine"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithActor adds the acting operator to the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActor retrieves the acting operator from the context.
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(ActorKey).(string); ok {
		return actor
	}
	return ""
}

// WithEngine adds an engine key to the context.
func WithEngine(ctx context.Context, engine string) context.Context {
	return context.WithValue(ctx, EngineKey, engine)
}

// GetEngine retrieves the engine key from the context.
func GetEngine(ctx context.Context) string {
	if engine, ok := ctx.Value(EngineKey).(string); ok {
		return engine
	}
	return ""
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if v := GetRequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(RequestIDKey), v))
	}
	if v := GetActor(ctx); v != "" {
		attrs = append(attrs, slog.String(string(ActorKey), v))
	}
	if v := GetEngine(ctx); v != "" {
		attrs = append(attrs, slog.String(string(EngineKey), v))
	}
	if v := GetTraceID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(TraceIDKey), v))
	}
	return attrs
}
