package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"valhalla-hq/heimdall/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})

	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		ServiceName: "heimdall-test",
	}, "test", exporter)
	if err != nil {
		t.Fatalf("NewWithExporter: %v", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer, exporter
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestNew_Disabled(t *testing.T) {
	tracer, err := New(&config.TracingConfig{Enabled: false}, "dev")
	if err != nil {
		t.Fatal(err)
	}
	if tracer.Enabled() {
		t.Error("expected disabled tracer")
	}

	_, span := tracer.Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("noop tracer produced a valid span")
	}
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, "dev"); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(&config.TracingConfig{Enabled: true, Exporter: "zipkin"}, "dev"); err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func TestNilTracer(t *testing.T) {
	var tracer *Tracer
	ctx, span := tracer.Start(context.Background(), "nil")
	span.End()
	if TraceID(ctx) != "" {
		t.Error("nil tracer should not produce a trace id")
	}
	if tracer.Enabled() || tracer.Shutdown(ctx) != nil || tracer.ForceFlush(ctx) != nil {
		t.Error("nil tracer should be inert")
	}
}

func TestTracer_SpansAndAttributes(t *testing.T) {
	tracer, exporter := newTestTracer(t)
	ctx := context.Background()

	ctx, parent := tracer.Start(ctx, "heimdall.guard.authorize")
	SetGuardAttributes(parent, "outreach", "OUTREACH", true, "ops")
	SetDecisionAttributes(parent, "SANDBOX", true, false, "blocked", "ENGINE_NOT_ACTIVE")

	_, child := tracer.Start(ctx, "heimdall.engine.read")
	child.End()

	SetError(parent, errors.New("engine not in ACTIVE state"))
	parent.End()

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	var guardSpan tracetest.SpanStub
	for _, s := range spans {
		if s.Name == "heimdall.guard.authorize" {
			guardSpan = s
		}
	}
	if guardSpan.Name == "" {
		t.Fatal("guard span not exported")
	}
	if spans[0].Parent.SpanID() != guardSpan.SpanContext.SpanID() {
		t.Error("child span is not parented to the guard span")
	}

	attrs := attrMap(guardSpan.Attributes)
	if attrs[AttrEngine].AsString() != "outreach" || attrs[AttrBlockCode].AsString() != "ENGINE_NOT_ACTIVE" {
		t.Errorf("unexpected attributes: %v", guardSpan.Attributes)
	}
	if !attrs[AttrActionEffect].AsBool() || attrs[AttrKillSwitch].AsBool() {
		t.Errorf("unexpected bool attributes: %v", guardSpan.Attributes)
	}
	if guardSpan.Status.Code != codes.Error {
		t.Errorf("status = %v, want Error", guardSpan.Status.Code)
	}
	if len(guardSpan.Events) == 0 {
		t.Error("expected a recorded error event")
	}
}

func TestSetDecisionAttributes_AllowedOmitsCode(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, span := tracer.Start(context.Background(), "allowed")
	SetDecisionAttributes(span, "ACTIVE", true, false, "allowed", "")
	SetError(span, nil)
	span.End()
	_ = tracer.ForceFlush(context.Background())

	s := exporter.GetSpans()[0]
	if _, ok := attrMap(s.Attributes)[AttrBlockCode]; ok {
		t.Error("allowed decision should not carry a block code")
	}
	if s.Status.Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status.Code)
	}
}

func TestHTTPMiddleware_PropagatesContext(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	var innerTraceID string
	handler := HTTPMiddleware(tracer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerTraceID = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/guard/check", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if innerTraceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("handler trace id = %q", innerTraceID)
	}
	if rec.Header().Get("X-Trace-ID") != innerTraceID {
		t.Errorf("X-Trace-ID = %q", rec.Header().Get("X-Trace-ID"))
	}

	_ = tracer.ForceFlush(context.Background())
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "HTTP POST" {
		t.Fatalf("unexpected spans: %+v", spans)
	}

	out := http.Header{}
	Inject(Extract(context.Background(), req.Header), out)
	if !strings.Contains(out.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736") {
		t.Errorf("Inject lost the trace: %q", out.Get("traceparent"))
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.5, false},
		{SamplerParentBased, 0, false},
		{SamplerRatio, 1.5, true},
		{"sometimes", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler(%q, %v) error = %v", tt.strategy, tt.ratio, err)
			}
			if !tt.wantErr && s == nil {
				t.Error("expected sampler")
			}
		})
	}

	never, _ := createSampler(SamplerNever, 0)
	res := never.ShouldSample(sdktrace.SamplingParameters{ParentContext: context.Background()})
	if res.Decision != sdktrace.Drop {
		t.Errorf("never sampler decision = %v", res.Decision)
	}
}

func TestLogExporter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(logger)))
	defer provider.Shutdown(context.Background())

	_, span := provider.Tracer("test").Start(context.Background(), "heimdall.gate.toggle")
	span.SetAttributes(attribute.String(AttrActor, "ops"))
	span.End()

	out := buf.String()
	if !strings.Contains(out, `"msg":"heimdall.gate.toggle"`) || !strings.Contains(out, `"heimdall.actor":"ops"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}
