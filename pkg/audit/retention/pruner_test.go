package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/audit/export"
	"valhalla-hq/heimdall/pkg/audit/recorder"
	"valhalla-hq/heimdall/pkg/audit/storage"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// buildTrail records old records at now-10d followed by fresh ones at now.
func buildTrail(t *testing.T, old, fresh int) *storage.MemoryStorage {
	t.Helper()

	store := storage.NewMemoryStorage()
	clock := now.AddDate(0, 0, -10)
	rec := recorder.NewRecorder(store, nil).WithClock(func() time.Time { return clock })
	defer rec.Close()

	ctx := context.Background()
	for i := 0; i < old+fresh; i++ {
		if i == old {
			clock = now
		}
		err := rec.Record(ctx, &audit.Record{Kind: audit.KindActionGuarded, Outcome: audit.OutcomeAllowed})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	return store
}

func verify(t *testing.T, store audit.Storage) *audit.VerifyResult {
	t.Helper()

	res, err := audit.Verify(context.Background(), store)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !res.OK {
		t.Fatalf("chain broken after pruning: %v", res.Broken)
	}
	return res
}

func TestPruner_ByAge(t *testing.T) {
	store := buildTrail(t, 5, 3)
	archiveDir := t.TempDir()

	p := NewPruner(store, &Config{
		RetentionDays:       7,
		ArchiveBeforeDelete: true,
		ArchivePath:         archiveDir,
	}).WithClock(func() time.Time { return now })

	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 5 {
		t.Errorf("deleted = %d, want 5", deleted)
	}

	res := verify(t, store)
	if res.FirstSeq != 6 || res.Records != 3 {
		t.Errorf("got %+v, want 3 records from seq 6", res)
	}

	f, err := os.Open(filepath.Join(archiveDir, "audit-age-1-5.json"))
	if err != nil {
		t.Fatalf("archive file missing: %v", err)
	}
	defer f.Close()

	archived, err := export.ReadJSON(f)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if len(archived) != 5 || archived[0].Seq != 1 {
		t.Errorf("archived %d records starting at %d, want 5 from seq 1", len(archived), archived[0].Seq)
	}
}

func TestPruner_ByCount(t *testing.T) {
	store := buildTrail(t, 0, 8)

	p := NewPruner(store, &Config{MaxRecords: 3})
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 5 {
		t.Errorf("deleted = %d, want 5", deleted)
	}

	res := verify(t, store)
	if res.FirstSeq != 6 || res.LastSeq != 8 {
		t.Errorf("got %+v, want seqs 6..8", res)
	}
}

func TestPruner_KeepsHead(t *testing.T) {
	store := buildTrail(t, 4, 0)

	p := NewPruner(store, &Config{RetentionDays: 1}).WithClock(func() time.Time { return now })
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	last, err := store.Last(context.Background())
	if err != nil || last == nil || last.Seq != 4 {
		t.Fatalf("Last = %v, %v; want seq 4", last, err)
	}
}

func TestPruner_NothingToDo(t *testing.T) {
	tests := []struct {
		name   string
		store  *storage.MemoryStorage
		config *Config
	}{
		{"empty trail", storage.NewMemoryStorage(), &Config{RetentionDays: 1, MaxRecords: 1}},
		{"retention disabled", buildTrail(t, 5, 0), &Config{}},
		{"under max records", buildTrail(t, 0, 3), &Config{MaxRecords: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPruner(tt.store, tt.config).WithClock(func() time.Time { return now })
			deleted, err := p.Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune failed: %v", err)
			}
			if deleted != 0 {
				t.Errorf("deleted = %d, want 0", deleted)
			}
		})
	}
}

func TestScheduler(t *testing.T) {
	t.Run("empty schedule stays idle", func(t *testing.T) {
		p := NewPruner(storage.NewMemoryStorage(), &Config{})
		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if p.scheduler.IsRunning() {
			t.Error("scheduler running without a schedule")
		}
		if p.NextPruning() != nil {
			t.Error("NextPruning should be nil when idle")
		}
	})

	t.Run("invalid schedule", func(t *testing.T) {
		p := NewPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: "not a cron"})
		if err := p.Start(context.Background()); err == nil {
			t.Error("expected error for invalid schedule")
		}
	})

	t.Run("start and stop", func(t *testing.T) {
		p := NewPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: "0 3 * * *"})
		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if !p.scheduler.IsRunning() {
			t.Fatal("scheduler not running")
		}
		next := p.NextPruning()
		if next == nil || next.Hour() != 3 {
			t.Errorf("NextPruning = %v, want a 3 AM run", next)
		}

		p.Stop()
		if p.scheduler.IsRunning() {
			t.Error("scheduler still running after Stop")
		}
	})

	t.Run("stops with context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := NewPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: "@hourly"})
		if err := p.Start(ctx); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		cancel()

		deadline := time.Now().Add(2 * time.Second)
		for p.scheduler.IsRunning() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if p.scheduler.IsRunning() {
			t.Error("scheduler did not stop after context cancellation")
		}
	})
}
