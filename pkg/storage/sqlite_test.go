package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/golive"
	"valhalla-hq/heimdall/pkg/guard"
	"valhalla-hq/heimdall/pkg/tripwire"
)

// createTempStore opens a store in a temporary directory.
func createTempStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "state.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open SQLite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, dbPath
}

func TestSQLiteStore_Open(t *testing.T) {
	store, dbPath := createTempStore(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}

	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSQLiteStore_GateSeededClosed(t *testing.T) {
	store, _ := createTempStore(t)

	st, err := store.LoadGate(context.Background())
	if err != nil {
		t.Fatalf("LoadGate() failed: %v", err)
	}
	if st == nil {
		t.Fatal("gate row was not seeded")
	}
	if st.GoLiveEnabled || st.KillSwitchEngaged || st.Revision != 0 {
		t.Errorf("expected closed gate at revision 0, got %+v", st)
	}
}

func TestSQLiteStore_GateToggles(t *testing.T) {
	store, _ := createTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 13, 10, 30, 0, 123, time.UTC)
	gate := golive.NewGate(store).WithClock(func() time.Time { return now })

	if _, err := gate.EngageKillSwitch(ctx, "ops", "incident"); err != nil {
		t.Fatalf("EngageKillSwitch() failed: %v", err)
	}
	st, err := gate.ToggleGoLive(ctx, true, "alice", "launch")
	if err != nil {
		t.Fatalf("ToggleGoLive() failed: %v", err)
	}

	loaded, err := gate.State(ctx)
	if err != nil {
		t.Fatalf("State() failed: %v", err)
	}
	if loaded != st {
		t.Errorf("loaded %+v, toggled %+v", loaded, st)
	}
	if !loaded.GoLiveEnabled || !loaded.KillSwitchEngaged {
		t.Errorf("flags lost: %+v", loaded)
	}
	if loaded.ChangedBy != "alice" || loaded.Reason != "launch" || !loaded.UpdatedAt.Equal(now) {
		t.Errorf("audit fields: %+v", loaded)
	}
	if loaded.Revision != 2 {
		t.Errorf("Revision = %d, want 2", loaded.Revision)
	}
}

func TestSQLiteStore_UpdateGateRollsBackOnError(t *testing.T) {
	store, _ := createTempStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := store.UpdateGate(ctx, func(st golive.State) (golive.State, error) {
		st.GoLiveEnabled = true
		return st, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	st, _ := store.LoadGate(ctx)
	if st.GoLiveEnabled || st.Revision != 0 {
		t.Errorf("failed update was persisted: %+v", st)
	}
}

func TestSQLiteStore_ConcurrentGateUpdates(t *testing.T) {
	store, _ := createTempStore(t)
	ctx := context.Background()
	gate := golive.NewGate(store)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = gate.ToggleGoLive(ctx, true, "alice", "")
			} else {
				_, err = gate.EngageKillSwitch(ctx, "bob", "")
			}
			if err != nil {
				t.Errorf("toggle %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	st, err := gate.State(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.GoLiveEnabled || !st.KillSwitchEngaged || st.Revision != 10 {
		t.Errorf("lost update: %+v", st)
	}
}

func TestSQLiteStore_Engines(t *testing.T) {
	store, _ := createTempStore(t)
	ctx := context.Background()
	lc := engine.NewLifecycle(store)

	rec, err := store.GetEngine(ctx, "outreach")
	if err != nil {
		t.Fatalf("GetEngine() failed: %v", err)
	}
	if rec.State != engine.StateDisabled || rec.Revision != 0 {
		t.Errorf("unknown engine = %+v, want DISABLED/0", rec)
	}

	for _, s := range []engine.State{engine.StateDormant, engine.StateSandbox, engine.StateActive} {
		if _, err := lc.Transition(ctx, "outreach", s, "alice", "rollout"); err != nil {
			t.Fatalf("Transition(%s) failed: %v", s, err)
		}
	}
	if _, err := lc.Transition(ctx, "arbitrage", engine.StateDormant, "bob", ""); err != nil {
		t.Fatal(err)
	}

	rec, err = store.GetEngine(ctx, "outreach")
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != engine.StateActive || rec.Revision != 3 || rec.ChangedBy != "alice" || rec.Reason != "rollout" {
		t.Errorf("unexpected record: %+v", rec)
	}

	list, err := store.ListEngines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Key != "arbitrage" || list[1].Key != "outreach" {
		t.Errorf("ListEngines() = %+v", list)
	}
}

func TestSQLiteStore_CompareAndSetConflict(t *testing.T) {
	store, _ := createTempStore(t)
	ctx := context.Background()

	next := &engine.Record{Key: "x", State: engine.StateDormant, ChangedBy: "a", UpdatedAt: time.Now()}
	if _, err := store.CompareAndSetEngine(ctx, next, 0); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := store.CompareAndSetEngine(ctx, next, 0); !errors.Is(err, engine.ErrConflict) {
		t.Errorf("second insert: expected ErrConflict, got %v", err)
	}
	if _, err := store.CompareAndSetEngine(ctx, next, 5); !errors.Is(err, engine.ErrConflict) {
		t.Errorf("stale update: expected ErrConflict, got %v", err)
	}
	stored, err := store.CompareAndSetEngine(ctx, &engine.Record{Key: "x", State: engine.StateSandbox, UpdatedAt: time.Now()}, 1)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if stored.Revision != 2 {
		t.Errorf("Revision = %d, want 2", stored.Revision)
	}
}

func TestSQLiteStore_GuardEndToEnd(t *testing.T) {
	store, _ := createTempStore(t)
	ctx := context.Background()
	lc := engine.NewLifecycle(store)
	gate := golive.NewGate(store)
	g := guard.New(store, store)

	for _, s := range []engine.State{engine.StateDormant, engine.StateSandbox, engine.StateActive} {
		if _, err := lc.Transition(ctx, "wholesale-outreach", s, "alice", ""); err != nil {
			t.Fatal(err)
		}
	}

	if _, _, err := g.Authorize(ctx, "wholesale-outreach", "CONTRACT_SEND", "bot"); !errors.Is(err, golive.ErrProdGateBlocked) {
		t.Fatalf("expected gate block, got %v", err)
	}
	if _, err := gate.ToggleGoLive(ctx, true, "alice", "launch"); err != nil {
		t.Fatal(err)
	}
	c, _, err := g.Authorize(ctx, "wholesale-outreach", "CONTRACT_SEND", "bot")
	if err != nil {
		t.Fatalf("Authorize() failed: %v", err)
	}
	if err := g.Revalidate(ctx, c); err != nil {
		t.Errorf("Revalidate() failed: %v", err)
	}
}

func TestSQLiteStore_KPIEvents(t *testing.T) {
	store, _ := createTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ok := i%2 == 0
		e := &tripwire.Event{
			ID:        string(rune('a' + i)),
			Domain:    "WHOLESALE",
			Metric:    "contract_rate",
			Success:   &ok,
			Actor:     "bot",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent() failed: %v", err)
		}
	}
	v := 4.5
	if err := store.AppendEvent(ctx, &tripwire.Event{ID: "z", Domain: "CAPITAL", Metric: "roi_event", Value: &v, CreatedAt: base}); err != nil {
		t.Fatal(err)
	}

	events, err := store.RecentEvents(ctx, "WHOLESALE", "contract_rate", 1, 2)
	if err != nil {
		t.Fatalf("RecentEvents() failed: %v", err)
	}
	if len(events) != 2 || events[0].ID != "d" || events[1].ID != "c" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Success == nil || *events[0].Success {
		t.Errorf("event d success = %v, want false", events[0].Success)
	}
	if events[0].Value != nil || events[0].Actor != "bot" {
		t.Errorf("unexpected fields: %+v", events[0])
	}

	capital, err := store.RecentEvents(ctx, "CAPITAL", "roi_event", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(capital) != 1 || capital[0].Value == nil || *capital[0].Value != 4.5 || capital[0].Success != nil {
		t.Errorf("unexpected capital events: %+v", capital)
	}
}

func TestSQLiteStore_Evaluations(t *testing.T) {
	store, _ := createTempStore(t)
	ctx := context.Background()

	if ev, err := store.GetEvaluation(ctx, "WHOLESALE", "contract_rate"); err != nil || ev != nil {
		t.Fatalf("GetEvaluation() on empty store = %v, %v", ev, err)
	}

	drop := 0.5
	triggeredAt := time.Date(2026, 1, 13, 12, 0, 0, 0, time.UTC)
	ev := &tripwire.Evaluation{
		Domain:          "WHOLESALE",
		Metric:          "contract_rate",
		Triggered:       true,
		DropFraction:    &drop,
		Action:          tripwire.ActionKillSwitch,
		Note:            "TRIGGERED drop=0.500 action=KILL_SWITCH",
		LastCheckedAt:   triggeredAt,
		LastTriggeredAt: &triggeredAt,
	}
	if err := store.SaveEvaluation(ctx, ev); err != nil {
		t.Fatalf("SaveEvaluation() failed: %v", err)
	}

	ev.Triggered = false
	ev.Note = "OK drop=0.000"
	if err := store.SaveEvaluation(ctx, ev); err != nil {
		t.Fatalf("SaveEvaluation() upsert failed: %v", err)
	}

	got, err := store.GetEvaluation(ctx, "WHOLESALE", "contract_rate")
	if err != nil {
		t.Fatal(err)
	}
	if got.Triggered || got.Note != "OK drop=0.000" || got.Action != tripwire.ActionKillSwitch {
		t.Errorf("unexpected evaluation: %+v", got)
	}
	if got.DropFraction == nil || *got.DropFraction != 0.5 || got.Baseline != nil {
		t.Errorf("unexpected rates: %+v", got)
	}
	if got.LastTriggeredAt == nil || !got.LastTriggeredAt.Equal(triggeredAt) {
		t.Errorf("LastTriggeredAt = %v", got.LastTriggeredAt)
	}
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	store, _ := createTempStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("first Close() failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}
