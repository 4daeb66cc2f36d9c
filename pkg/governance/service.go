package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/golive"
	"valhalla-hq/heimdall/pkg/guard"
	"valhalla-hq/heimdall/pkg/telemetry/logging"
	"valhalla-hq/heimdall/pkg/telemetry/metrics"
	"valhalla-hq/heimdall/pkg/telemetry/tracing"
)

// Recorder appends audit records. *recorder.Recorder implements it.
type Recorder interface {
	Record(ctx context.Context, rec *audit.Record) error
	RecordAsync(rec *audit.Record) error
}

// Options configures the observability side of a Service. Every field is
// optional.
type Options struct {
	Recorder Recorder
	Metrics  *metrics.Collector
	Tracer   *tracing.Tracer

	// RecordAllowed also audits guard decisions that passed. Blocked
	// decisions are always audited.
	RecordAllowed bool

	Clock func() time.Time
}

// Service runs governance operations with audit, metrics and tracing.
type Service struct {
	lifecycle *engine.Lifecycle
	gate      *golive.Gate
	guard     *guard.Guard

	recorder      Recorder
	metrics       *metrics.Collector
	tracer        *tracing.Tracer
	recordAllowed atomic.Bool
	logger        *slog.Logger
}

// New creates a Service over the engine and gate stores.
func New(engines engine.Store, gateStore golive.Store, opts Options) *Service {
	lc := engine.NewLifecycle(engines)
	gate := golive.NewGate(gateStore)
	g := guard.New(engines, gateStore)
	if opts.Clock != nil {
		lc.WithClock(opts.Clock)
		gate.WithClock(opts.Clock)
		g.WithClock(opts.Clock)
	}

	s := &Service{
		lifecycle: lc,
		gate:      gate,
		guard:     g,
		recorder:  opts.Recorder,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		logger:    slog.Default().With("component", "governance"),
	}
	s.recordAllowed.Store(opts.RecordAllowed)
	return s
}

// SetRecordAllowed toggles auditing of passing guard decisions, e.g. after a
// configuration reload.
func (s *Service) SetRecordAllowed(enabled bool) {
	s.recordAllowed.Store(enabled)
}

// Sync publishes the stored gate and engine states as metrics. It is called
// once at startup.
func (s *Service) Sync(ctx context.Context) error {
	st, err := s.gate.State(ctx)
	if err != nil {
		return err
	}
	s.metrics.SetGateState(st.GoLiveEnabled, st.KillSwitchEngaged)

	records, err := s.lifecycle.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list engines: %w", err)
	}
	for _, rec := range records {
		s.metrics.SetEngineState(rec.Key, string(rec.State), stateNames())
	}
	return nil
}

// record writes rec synchronously. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, rec *audit.Record) {
	if s.recorder == nil {
		return
	}
	rec.RequestID = logging.GetRequestID(ctx)
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.metrics.RecordAuditWriteError()
		s.logger.ErrorContext(ctx, "failed to write audit record",
			"kind", rec.Kind,
			"error", err,
		)
		return
	}
	s.metrics.RecordAuditWrite(string(rec.Kind))
}

// recordAsync enqueues rec for the recorder's background worker.
func (s *Service) recordAsync(ctx context.Context, rec *audit.Record) {
	if s.recorder == nil {
		return
	}
	rec.RequestID = logging.GetRequestID(ctx)
	if err := s.recorder.RecordAsync(rec); err != nil {
		s.metrics.RecordAuditWriteError()
		s.logger.ErrorContext(ctx, "failed to enqueue audit record",
			"kind", rec.Kind,
			"error", err,
		)
		return
	}
	s.metrics.RecordAuditWrite(string(rec.Kind))
}

func stateNames() []string {
	states := engine.States()
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}
	return names
}

// transitionErrorReason maps a transition failure to a metric label.
func transitionErrorReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, engine.ErrConflict):
		return "conflict"
	case errors.Is(err, engine.ErrChangedByRequired), errors.Is(err, engine.ErrEmptyKey):
		return "bad_request"
	default:
		return "storage"
	}
}
