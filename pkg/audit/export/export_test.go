package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/audit/storage"
)

func sampleRecords() []*audit.Record {
	first := &audit.Record{
		Seq:        1,
		ID:         "a",
		Kind:       audit.KindKillSwitchEngaged,
		Outcome:    audit.OutcomeApplied,
		Actor:      "ops",
		Reason:     "regression, see dashboard",
		RecordedAt: time.Date(2026, 2, 1, 8, 0, 0, 5000, time.UTC),
	}
	first.Hash = audit.MustComputeHash(first)

	second := &audit.Record{
		Seq:        2,
		ID:         "b",
		Kind:       audit.KindActionGuarded,
		Outcome:    audit.OutcomeBlocked,
		EngineKey:  "WHOLESALE",
		Action:     "send_outreach",
		BlockCode:  "KILL_SWITCH_ENGAGED",
		Detail:     "kill switch engaged",
		RecordedAt: time.Date(2026, 2, 1, 8, 1, 0, 0, time.UTC),
		PrevHash:   first.Hash,
	}
	second.Hash = audit.MustComputeHash(second)

	return []*audit.Record{first, second}
}

func TestJSONExporter(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewJSONExporter(false).Export(ctx, nil, &buf); err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if buf.String() != "[]" {
			t.Errorf("got %q, want []", buf.String())
		}
	})

	t.Run("single record is an array", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewJSONExporter(false).Export(ctx, sampleRecords()[:1], &buf); err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if !strings.HasPrefix(buf.String(), "[") {
			t.Errorf("single record not wrapped in an array: %s", buf.String())
		}
	})

	t.Run("round trip verifies", func(t *testing.T) {
		var buf bytes.Buffer
		if err := NewJSONExporter(true).Export(ctx, sampleRecords(), &buf); err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		records, err := ReadJSON(&buf)
		if err != nil {
			t.Fatalf("ReadJSON failed: %v", err)
		}

		store := storage.NewMemoryStorage()
		for _, r := range records {
			if err := store.Store(ctx, r); err != nil {
				t.Fatalf("Store failed: %v", err)
			}
		}

		res, err := audit.Verify(ctx, store)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if !res.OK || res.Records != 2 {
			t.Errorf("got %+v, want 2 verified records", res)
		}
	})
}

func TestCSVExporter(t *testing.T) {
	tests := []struct {
		name     string
		header   bool
		wantRows int
	}{
		{"with header", true, 3},
		{"without header", false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewCSVExporter(tt.header).Export(context.Background(), sampleRecords(), &buf); err != nil {
				t.Fatalf("Export failed: %v", err)
			}

			rows, err := csv.NewReader(&buf).ReadAll()
			if err != nil {
				t.Fatalf("output is not valid CSV: %v", err)
			}
			if len(rows) != tt.wantRows {
				t.Fatalf("got %d rows, want %d", len(rows), tt.wantRows)
			}

			last := rows[len(rows)-1]
			if last[0] != "2" || last[11] != "KILL_SWITCH_ENGAGED" {
				t.Errorf("unexpected last row: %v", last)
			}
			if tt.header && rows[0][0] != "seq" {
				t.Errorf("header = %v", rows[0])
			}
		})
	}
}
