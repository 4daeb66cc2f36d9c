package golive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"valhalla-hq/heimdall/pkg/engine"
)

var (
	outreach = engine.ActionOutreach.EngineAction()
	readOnly = engine.ActionReadOnly.EngineAction()
)

func TestAssertProdEligible(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		action   engine.EngineAction
		wantCode string
	}{
		{"read only with everything off", State{}, readOnly, ""},
		{"read only with kill switch", State{KillSwitchEngaged: true}, readOnly, ""},
		{"effect with go-live off", State{}, outreach, CodeGoLiveDisabled},
		{"effect with go-live on", State{GoLiveEnabled: true}, outreach, ""},
		{"effect with kill switch", State{KillSwitchEngaged: true}, outreach, CodeKillSwitchEngaged},
		{"kill switch wins over go-live", State{GoLiveEnabled: true, KillSwitchEngaged: true}, outreach, CodeKillSwitchEngaged},
		{"unknown action is gated", State{}, engine.EngineAction{Name: "TELEPORT", RealWorldEffect: true}, CodeGoLiveDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AssertProdEligible(tt.state, tt.action)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("expected pass, got %v", err)
				}
				return
			}

			var blocked *ProdGateBlockedError
			if !errors.As(err, &blocked) {
				t.Fatalf("expected *ProdGateBlockedError, got %v", err)
			}
			if blocked.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", blocked.Code, tt.wantCode)
			}
			if blocked.Action != tt.action.Name {
				t.Errorf("Action = %s, want %s", blocked.Action, tt.action.Name)
			}
			if !errors.Is(err, ErrProdGateBlocked) {
				t.Error("errors.Is(err, ErrProdGateBlocked) = false")
			}
		})
	}
}

func TestGate_MissingRecordFailsClosed(t *testing.T) {
	gate := NewGate(NewMemoryStore())

	st, err := gate.State(context.Background())
	if err != nil {
		t.Fatalf("State() failed: %v", err)
	}
	if st.GoLiveEnabled || st.KillSwitchEngaged || st.Revision != 0 {
		t.Errorf("expected closed default, got %+v", st)
	}

	if err := gate.AssertProdEligible(context.Background(), outreach); err == nil {
		t.Error("effect-producing action passed with no gate record")
	}
}

func TestGate_ToggleDoesNotTouchKillSwitch(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGate(NewMemoryStore()).WithClock(func() time.Time { return now })

	if _, err := gate.EngageKillSwitch(ctx, "ops", "incident"); err != nil {
		t.Fatalf("EngageKillSwitch() failed: %v", err)
	}

	st, err := gate.ToggleGoLive(ctx, true, "alice", "launch")
	if err != nil {
		t.Fatalf("ToggleGoLive() failed: %v", err)
	}
	if !st.KillSwitchEngaged {
		t.Error("ToggleGoLive cleared the kill switch")
	}
	if !st.GoLiveEnabled {
		t.Error("GoLiveEnabled not set")
	}
	if st.ChangedBy != "alice" || st.Reason != "launch" || !st.UpdatedAt.Equal(now) {
		t.Errorf("audit fields not updated together: %+v", st)
	}
	if st.Revision != 2 {
		t.Errorf("Revision = %d, want 2", st.Revision)
	}
}

func TestGate_KillSwitchDoesNotTouchGoLive(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(NewMemoryStore())

	if _, err := gate.ToggleGoLive(ctx, true, "alice", ""); err != nil {
		t.Fatalf("ToggleGoLive() failed: %v", err)
	}

	st, err := gate.EngageKillSwitch(ctx, "bob", "regression")
	if err != nil {
		t.Fatalf("EngageKillSwitch() failed: %v", err)
	}
	if !st.GoLiveEnabled {
		t.Error("EngageKillSwitch cleared go-live")
	}

	st, err = gate.DisengageKillSwitch(ctx, "bob", "resolved")
	if err != nil {
		t.Fatalf("DisengageKillSwitch() failed: %v", err)
	}
	if st.KillSwitchEngaged || !st.GoLiveEnabled {
		t.Errorf("unexpected state after disengage: %+v", st)
	}
	if st.ChangedBy != "bob" || st.Reason != "resolved" {
		t.Errorf("audit fields = %q/%q", st.ChangedBy, st.Reason)
	}
}

func TestGate_ChangedByRequired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	gate := NewGate(store)

	calls := []func() (State, error){
		func() (State, error) { return gate.ToggleGoLive(ctx, true, "", "") },
		func() (State, error) { return gate.EngageKillSwitch(ctx, " ", "") },
		func() (State, error) { return gate.DisengageKillSwitch(ctx, "", "") },
	}
	for i, call := range calls {
		if _, err := call(); !errors.Is(err, ErrChangedByRequired) {
			t.Errorf("call %d: expected ErrChangedByRequired, got %v", i, err)
		}
	}

	if st, _ := store.LoadGate(ctx); st != nil {
		t.Errorf("rejected toggles persisted a record: %+v", st)
	}
}

func TestGate_ConcurrentTogglesSerialize(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(NewMemoryStore())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = gate.ToggleGoLive(ctx, true, "alice", "")
			} else {
				_, _ = gate.EngageKillSwitch(ctx, "bob", "")
			}
		}(i)
	}
	wg.Wait()

	st, err := gate.State(ctx)
	if err != nil {
		t.Fatalf("State() failed: %v", err)
	}
	if !st.GoLiveEnabled || !st.KillSwitchEngaged {
		t.Errorf("lost update: %+v", st)
	}
	if st.Revision != 20 {
		t.Errorf("Revision = %d, want 20", st.Revision)
	}
}

func TestGate_StateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(NewMemoryStore())
	if _, err := gate.ToggleGoLive(ctx, true, "alice", ""); err != nil {
		t.Fatal(err)
	}

	first, _ := gate.State(ctx)
	second, _ := gate.State(ctx)
	if first != second {
		t.Errorf("repeated reads differ: %+v vs %+v", first, second)
	}
}
