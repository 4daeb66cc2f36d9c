package governance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/audit/recorder"
	auditstorage "valhalla-hq/heimdall/pkg/audit/storage"
	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/golive"
	"valhalla-hq/heimdall/pkg/guard"
	"valhalla-hq/heimdall/pkg/telemetry/metrics"
	"valhalla-hq/heimdall/pkg/telemetry/tracing"
	"valhalla-hq/heimdall/pkg/tripwire"
)

type fixture struct {
	svc      *Service
	audit    *auditstorage.MemoryStorage
	recorder *recorder.Recorder
	registry *prometheus.Registry
	spans    *tracetest.InMemoryExporter
	tracer   *tracing.Tracer
}

func newFixture(t *testing.T, recordAllowed bool) *fixture {
	t.Helper()

	auditStore := auditstorage.NewMemoryStorage()
	rec := recorder.NewRecorder(auditStore, recorder.DefaultConfig())
	t.Cleanup(func() { rec.Close() })

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{
		Enabled:   true,
		Namespace: "test",
		Subsystem: "gov",
	}, registry)

	spans := tracetest.NewInMemoryExporter()
	tracer, err := tracing.NewWithExporter(&config.TracingConfig{
		Enabled: true,
		Sampler: tracing.SamplerAlways,
	}, "test", spans)
	if err != nil {
		t.Fatalf("NewWithExporter: %v", err)
	}
	t.Cleanup(func() { tracer.Shutdown(context.Background()) })

	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	svc := New(engine.NewMemoryStore(), golive.NewMemoryStore(), Options{
		Recorder:      rec,
		Metrics:       collector,
		Tracer:        tracer,
		RecordAllowed: recordAllowed,
		Clock:         func() time.Time { return now },
	})

	return &fixture{svc: svc, audit: auditStore, recorder: rec, registry: registry, spans: spans, tracer: tracer}
}

// records flushes the async queue and returns the trail oldest first.
func (f *fixture) records(t *testing.T) []*audit.Record {
	t.Helper()
	f.recorder.Close()
	out, err := f.audit.Query(context.Background(), &audit.Query{SortOrder: "asc"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	return out
}

// metricValue returns the value of the series of name whose labels include
// every pair in labels.
func (f *fixture) metricValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue series
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func activate(t *testing.T, svc *Service, key string) {
	t.Helper()
	for _, target := range []engine.State{engine.StateDormant, engine.StateSandbox, engine.StateActive} {
		if _, err := svc.Transition(context.Background(), key, target, "ops", "rollout"); err != nil {
			t.Fatalf("Transition(%s): %v", target, err)
		}
	}
}

func blockCode(t *testing.T, err error) string {
	t.Helper()
	var blocked *guard.EngineBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *guard.EngineBlockedError, got %v", err)
	}
	return blocked.Code
}

func TestService_WholesaleOutreachScenario(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	const key = "wholesale-outreach"

	_, _, err := f.svc.Authorize(ctx, key, "OUTREACH", "dialer")
	if code := blockCode(t, err); code != guard.CodeEngineNotActive {
		t.Fatalf("unknown engine: code = %s", code)
	}

	if _, _, err := f.svc.Authorize(ctx, key, "READ_ONLY", "dialer"); err != nil {
		t.Fatalf("READ_ONLY must always pass: %v", err)
	}

	activate(t, f.svc, key)

	_, _, err = f.svc.Authorize(ctx, key, "OUTREACH", "dialer")
	if code := blockCode(t, err); code != golive.CodeGoLiveDisabled {
		t.Fatalf("go-live off: code = %s", code)
	}

	if _, err := f.svc.ToggleGoLive(ctx, true, "ops", "launch"); err != nil {
		t.Fatalf("ToggleGoLive: %v", err)
	}
	clearance, _, err := f.svc.Authorize(ctx, key, "OUTREACH", "dialer")
	if err != nil {
		t.Fatalf("expected clearance, got %v", err)
	}
	if clearance.EngineKey != key || clearance.Action != "OUTREACH" {
		t.Errorf("unexpected clearance %+v", clearance)
	}

	if err := f.svc.Revalidate(ctx, clearance); err != nil {
		t.Fatalf("Revalidate with nothing changed: %v", err)
	}

	// Re-enabling bumps the gate revision without changing the verdict.
	if _, err := f.svc.ToggleGoLive(ctx, true, "ops", "reaffirm"); err != nil {
		t.Fatalf("ToggleGoLive: %v", err)
	}
	if err := f.svc.Revalidate(ctx, clearance); blockCode(t, err) != guard.CodeClearanceStale {
		t.Fatalf("Revalidate after gate change: %v", err)
	}

	if _, err := f.svc.EngageKillSwitch(ctx, "ops", "incident"); err != nil {
		t.Fatalf("EngageKillSwitch: %v", err)
	}
	_, _, err = f.svc.Authorize(ctx, key, "OUTREACH", "dialer")
	if code := blockCode(t, err); code != golive.CodeKillSwitchEngaged {
		t.Fatalf("kill switch: code = %s", code)
	}

	st, err := f.svc.GateState(ctx)
	if err != nil {
		t.Fatalf("GateState: %v", err)
	}
	if !st.GoLiveEnabled || !st.KillSwitchEngaged {
		t.Errorf("kill switch must not clear go-live: %+v", st)
	}

	records := f.records(t)
	kinds := map[audit.Kind]int{}
	for _, r := range records {
		kinds[r.Kind]++
	}
	want := map[audit.Kind]int{
		audit.KindEngineTransitioned: 3,
		audit.KindGoLiveToggled:      2,
		audit.KindKillSwitchEngaged:  1,
		// three blocked authorizations plus the stale revalidation
		audit.KindActionGuarded: 4,
	}
	for kind, n := range want {
		if kinds[kind] != n {
			t.Errorf("%s records = %d, want %d", kind, kinds[kind], n)
		}
	}

	res, err := audit.Verify(ctx, f.audit)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.OK || res.Records != int64(len(records)) {
		t.Errorf("chain does not verify: %+v", res)
	}

	if v := f.metricValue(t, "test_gov_guard_decisions_total", map[string]string{"action": "OUTREACH", "outcome": "blocked", "code": golive.CodeKillSwitchEngaged}); v != 1 {
		t.Errorf("kill switch blocks = %v", v)
	}
	if v := f.metricValue(t, "test_gov_kill_switch_engaged", nil); v != 1 {
		t.Errorf("kill switch gauge = %v", v)
	}
	if v := f.metricValue(t, "test_gov_guard_revalidations_total", map[string]string{"result": "stale"}); v != 1 {
		t.Errorf("stale revalidations = %v", v)
	}
}

func TestService_RecordAllowed(t *testing.T) {
	for _, recordAllowed := range []bool{false, true} {
		f := newFixture(t, recordAllowed)
		if _, _, err := f.svc.Authorize(context.Background(), "scoring", "COMPUTE", "svc"); err != nil {
			t.Fatalf("COMPUTE: %v", err)
		}

		var allowed int
		for _, r := range f.records(t) {
			if r.Kind == audit.KindActionGuarded && r.Outcome == audit.OutcomeAllowed {
				allowed++
			}
		}
		want := 0
		if recordAllowed {
			want = 1
		}
		if allowed != want {
			t.Errorf("recordAllowed=%v: %d allowed records", recordAllowed, allowed)
		}
	}
}

func TestService_TransitionErrors(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Transition(ctx, "arbitrage", engine.StateActive, "ops", "")
	if !errors.Is(err, engine.ErrInvalidTransition) {
		t.Fatalf("DISABLED -> ACTIVE: %v", err)
	}
	_, err = f.svc.Transition(ctx, "arbitrage", engine.StateDormant, " ", "")
	if !errors.Is(err, engine.ErrChangedByRequired) {
		t.Fatalf("empty changed_by: %v", err)
	}

	if v := f.metricValue(t, "test_gov_engine_transition_errors_total", map[string]string{"reason": "invalid_transition"}); v != 1 {
		t.Errorf("invalid_transition errors = %v", v)
	}
	if v := f.metricValue(t, "test_gov_engine_transition_errors_total", map[string]string{"reason": "bad_request"}); v != 1 {
		t.Errorf("bad_request errors = %v", v)
	}
	if n := len(f.records(t)); n != 0 {
		t.Errorf("rejected transitions must not be audited, got %d records", n)
	}
}

func TestService_StepDown(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.StepDown(ctx, "dispo", "tripwire", "regression")
	if err != nil || res != nil {
		t.Fatalf("StepDown on DISABLED = (%v, %v), want no-op", res, err)
	}

	activate(t, f.svc, "dispo")
	res, err = f.svc.StepDown(ctx, "dispo", "tripwire", "regression")
	if err != nil {
		t.Fatalf("StepDown: %v", err)
	}
	if res.Previous.State != engine.StateActive || res.Current.State != engine.StateSandbox {
		t.Errorf("StepDown moved %s -> %s", res.Previous.State, res.Current.State)
	}
}

func TestService_TripwireLevers(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	activate(t, f.svc, "wholesale-outreach")

	store := tripwire.NewMemoryStore()
	tw := tripwire.New(store, f.svc.Levers(), []tripwire.Policy{{
		Domain:          "WHOLESALE",
		Metric:          "contract_rate",
		WindowEvents:    5,
		BaselineEvents:  5,
		MinEvents:       5,
		MaxDropFraction: 0.5,
		Action:          tripwire.ActionStepDown,
		Engine:          "wholesale-outreach",
		Enabled:         true,
	}}).WithObserver(f.svc.ObserveEvaluation)

	ts := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		ok := i < 5 // baseline all succeed, window all fail
		ts = ts.Add(time.Minute)
		if err := tw.Record(ctx, &tripwire.Event{Domain: "WHOLESALE", Metric: "contract_rate", Success: &ok, CreatedAt: ts}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	ev, err := tw.Evaluate(ctx, "wholesale", "contract_rate", "")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ev.Triggered {
		t.Fatalf("expected trigger, note %q", ev.Note)
	}

	rec, err := f.svc.Engine(ctx, "wholesale-outreach")
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	if rec.State != engine.StateSandbox || rec.ChangedBy != tripwire.DefaultActor {
		t.Errorf("engine after step down: %+v", rec)
	}

	if v := f.metricValue(t, "test_gov_tripwire_triggers_total", map[string]string{"action": "STEP_DOWN"}); v != 1 {
		t.Errorf("tripwire triggers = %v", v)
	}
	if v := f.metricValue(t, "test_gov_tripwire_evaluations_total", map[string]string{"result": "triggered"}); v != 1 {
		t.Errorf("tripwire evaluations = %v", v)
	}

	var triggered int
	for _, r := range f.records(t) {
		if r.Kind == audit.KindTripwireTriggered {
			triggered++
			if r.EngineKey != "wholesale-outreach" || r.Action != "STEP_DOWN" {
				t.Errorf("unexpected tripwire record %+v", r)
			}
		}
	}
	if triggered != 1 {
		t.Errorf("tripwire records = %d", triggered)
	}
}

func TestService_Spans(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.svc.Authorize(ctx, "outreach", "MONEY_MOVE", "svc")
	f.svc.ToggleGoLive(ctx, false, "ops", "")
	if err := f.tracer.ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}

	names := map[string]bool{}
	for _, s := range f.spans.GetSpans() {
		names[s.Name] = true
	}
	for _, want := range []string{"heimdall.guard.authorize", "heimdall.gate.toggle_go_live"} {
		if !names[want] {
			t.Errorf("missing span %q in %v", want, names)
		}
	}
}

func TestService_Sync(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	activate(t, f.svc, "outreach")
	if _, err := f.svc.ToggleGoLive(ctx, true, "ops", ""); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if v := f.metricValue(t, "test_gov_go_live_enabled", nil); v != 1 {
		t.Errorf("go_live gauge = %v", v)
	}
	if v := f.metricValue(t, "test_gov_engine_state", map[string]string{"engine": "outreach", "state": "ACTIVE"}); v != 1 {
		t.Errorf("engine_state ACTIVE = %v", v)
	}
}
