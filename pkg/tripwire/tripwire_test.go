package tripwire

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeLevers struct {
	killSwitch []string
	stepDowns  []string
	err        error
}

func (f *fakeLevers) EngageKillSwitch(ctx context.Context, changedBy, reason string) error {
	f.killSwitch = append(f.killSwitch, changedBy+": "+reason)
	return f.err
}

func (f *fakeLevers) StepDown(ctx context.Context, engineKey, changedBy, reason string) error {
	f.stepDowns = append(f.stepDowns, engineKey)
	return f.err
}

func testPolicy(action Action) Policy {
	return Policy{
		Domain:          "wholesale",
		Metric:          "Contract_Rate",
		WindowEvents:    10,
		BaselineEvents:  20,
		MinEvents:       10,
		MaxDropFraction: 0.2,
		Action:          action,
		Engine:          "wholesale-outreach",
		Enabled:         true,
	}
}

// seed records baseline events first, then window events, one second apart.
func seed(t *testing.T, tw *Tripwire, baseline, window []bool) {
	t.Helper()
	ts := time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)
	for _, outcomes := range [][]bool{baseline, window} {
		for _, ok := range outcomes {
			ts = ts.Add(time.Second)
			e := &Event{Domain: "WHOLESALE", Metric: "contract_rate", Success: &ok, CreatedAt: ts}
			if err := tw.Record(context.Background(), e); err != nil {
				t.Fatalf("Record() failed: %v", err)
			}
		}
	}
}

func outcomes(n, successes int) []bool {
	out := make([]bool, n)
	for i := 0; i < successes; i++ {
		out[i] = true
	}
	return out
}

func TestEvaluate_TriggersKillSwitch(t *testing.T) {
	levers := &fakeLevers{}
	tw := New(NewMemoryStore(), levers, []Policy{testPolicy(ActionKillSwitch)})
	seed(t, tw, outcomes(20, 20), outcomes(10, 5))

	ev, err := tw.Evaluate(context.Background(), "Wholesale", "CONTRACT_RATE", "alice")
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if !ev.Triggered {
		t.Fatalf("expected trigger, note=%q", ev.Note)
	}
	if *ev.Baseline != 1.0 || *ev.Current != 0.5 || *ev.DropFraction != 0.5 {
		t.Errorf("rates = %v/%v drop %v", *ev.Baseline, *ev.Current, *ev.DropFraction)
	}
	if ev.Note != "TRIGGERED drop=0.500 action=KILL_SWITCH" {
		t.Errorf("Note = %q", ev.Note)
	}
	if ev.LastTriggeredAt == nil {
		t.Error("LastTriggeredAt not set")
	}
	if len(levers.killSwitch) != 1 || !strings.HasPrefix(levers.killSwitch[0], "alice: Regression tripwire: WHOLESALE.contract_rate") {
		t.Errorf("kill switch calls = %v", levers.killSwitch)
	}
}

func TestEvaluate_StepDown(t *testing.T) {
	levers := &fakeLevers{}
	tw := New(NewMemoryStore(), levers, []Policy{testPolicy(ActionStepDown)})
	seed(t, tw, outcomes(20, 18), outcomes(10, 3))

	ev, err := tw.Evaluate(context.Background(), "WHOLESALE", "contract_rate", "")
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if !ev.Triggered {
		t.Fatalf("expected trigger, note=%q", ev.Note)
	}
	if len(levers.stepDowns) != 1 || levers.stepDowns[0] != "wholesale-outreach" {
		t.Errorf("step downs = %v", levers.stepDowns)
	}
	if len(levers.killSwitch) != 0 {
		t.Errorf("kill switch engaged by a STEP_DOWN policy")
	}
}

func TestEvaluate_Notes(t *testing.T) {
	disabled := testPolicy(ActionKillSwitch)
	disabled.Enabled = false

	tests := []struct {
		name     string
		policies []Policy
		baseline []bool
		window   []bool
		wantNote string
	}{
		{"missing policy", nil, outcomes(20, 20), outcomes(10, 0), NotePolicyMissing},
		{"disabled policy", []Policy{disabled}, outcomes(20, 20), outcomes(10, 0), NotePolicyMissing},
		{"insufficient events", []Policy{testPolicy(ActionKillSwitch)}, outcomes(5, 5), outcomes(10, 0), "insufficient_events(recent=10, baseline=5)"},
		{"zero baseline", []Policy{testPolicy(ActionKillSwitch)}, outcomes(20, 0), outcomes(10, 0), NoteCannotComputeRate},
		{"small drop", []Policy{testPolicy(ActionKillSwitch)}, outcomes(20, 20), outcomes(10, 9), "OK drop=0.100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levers := &fakeLevers{}
			tw := New(NewMemoryStore(), levers, tt.policies)
			seed(t, tw, tt.baseline, tt.window)

			ev, err := tw.Evaluate(context.Background(), "WHOLESALE", "contract_rate", "")
			if err != nil {
				t.Fatalf("Evaluate() failed: %v", err)
			}
			if ev.Triggered {
				t.Error("unexpected trigger")
			}
			if ev.Note != tt.wantNote {
				t.Errorf("Note = %q, want %q", ev.Note, tt.wantNote)
			}
			if len(levers.killSwitch)+len(levers.stepDowns) != 0 {
				t.Error("lever pulled without trigger")
			}
		})
	}
}

func TestEvaluate_PersistsEvaluation(t *testing.T) {
	store := NewMemoryStore()
	tw := New(store, &fakeLevers{}, []Policy{testPolicy(ActionKillSwitch)})
	seed(t, tw, outcomes(20, 20), outcomes(10, 10))

	if _, err := tw.Evaluate(context.Background(), "WHOLESALE", "contract_rate", ""); err != nil {
		t.Fatal(err)
	}

	ev, err := store.GetEvaluation(context.Background(), "WHOLESALE", "contract_rate")
	if err != nil || ev == nil {
		t.Fatalf("GetEvaluation() = %v, %v", ev, err)
	}
	if ev.Note != "OK drop=0.000" {
		t.Errorf("Note = %q", ev.Note)
	}
}

func TestEvaluate_LeverError(t *testing.T) {
	levers := &fakeLevers{err: errors.New("store down")}
	tw := New(NewMemoryStore(), levers, []Policy{testPolicy(ActionKillSwitch)})
	seed(t, tw, outcomes(20, 20), outcomes(10, 0))

	ev, err := tw.Evaluate(context.Background(), "WHOLESALE", "contract_rate", "")
	if err == nil {
		t.Fatal("expected lever error")
	}
	if ev == nil || !ev.Triggered {
		t.Errorf("evaluation should still report the trigger: %+v", ev)
	}
}

func TestEvaluateAll(t *testing.T) {
	other := testPolicy(ActionStepDown)
	other.Metric = "offer_accept_rate"

	levers := &fakeLevers{}
	tw := New(NewMemoryStore(), levers, []Policy{testPolicy(ActionKillSwitch), other})
	seed(t, tw, outcomes(20, 20), outcomes(10, 2))

	triggered := tw.EvaluateAll(context.Background(), "")
	if len(triggered) != 1 || triggered[0].Metric != "contract_rate" {
		t.Errorf("triggered = %+v", triggered)
	}
}

func TestPolicies_Ordered(t *testing.T) {
	var policies []Policy
	for _, dm := range [][2]string{
		{"wholesale", "offer_accept_rate"},
		{"Retail", "reply_rate"},
		{"wholesale", "Contract_Rate"},
		{"retail", "bounce_rate"},
		{"acquisitions", "close_rate"},
	} {
		p := testPolicy(ActionStepDown)
		p.Domain, p.Metric = dm[0], dm[1]
		policies = append(policies, p)
	}
	tw := New(NewMemoryStore(), &fakeLevers{}, policies)

	want := []string{
		"ACQUISITIONS/close_rate",
		"RETAIL/bounce_rate",
		"RETAIL/reply_rate",
		"WHOLESALE/contract_rate",
		"WHOLESALE/offer_accept_rate",
	}
	// Map iteration order varies, so repeat to catch an unsorted result.
	for i := 0; i < 20; i++ {
		got := tw.Policies()
		if len(got) != len(want) {
			t.Fatalf("got %d policies, want %d", len(got), len(want))
		}
		for j, p := range got {
			if key := p.Domain + "/" + p.Metric; key != want[j] {
				t.Fatalf("policy %d = %s, want %s", j, key, want[j])
			}
		}
	}
}

func TestRate(t *testing.T) {
	yes, no := true, false
	one, three := 1.0, 3.0

	tests := []struct {
		name   string
		events []*Event
		want   *float64
	}{
		{"empty", nil, nil},
		{"binary", []*Event{{Success: &yes}, {Success: &no}, {Success: &yes}, {Success: &yes}}, ptr(0.75)},
		{"numeric", []*Event{{Value: &one}, {Value: &three}}, ptr(2)},
		{"binary wins over numeric", []*Event{{Success: &no}, {Value: &three}}, ptr(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rate(tt.events)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("Rate() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("Rate() = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestRecord_Validation(t *testing.T) {
	tw := New(NewMemoryStore(), &fakeLevers{}, nil)

	if err := tw.Record(context.Background(), &Event{Domain: "x", Metric: "y"}); err == nil {
		t.Error("expected error for event without success or value")
	}
	if err := tw.Record(context.Background(), &Event{Metric: "y", Value: ptr(1)}); err == nil {
		t.Error("expected error for event without domain")
	}

	e := &Event{Domain: " capital ", Metric: "ROI_Event", Value: ptr(1)}
	if err := tw.Record(context.Background(), e); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() || e.Domain != "CAPITAL" || e.Metric != "roi_event" {
		t.Errorf("event not normalized: %+v", e)
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"every five minutes", "*/5 * * * *", true, false},
		{"empty schedule", "", false, false},
		{"invalid schedule", "not a cron", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := New(NewMemoryStore(), &fakeLevers{}, nil)
			s := NewScheduler(tw, tt.schedule)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning && s.NextRun() == nil {
				t.Error("NextRun() = nil for a running scheduler")
			}
			s.Stop()
			if s.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}

func ptr(f float64) *float64 { return &f }
