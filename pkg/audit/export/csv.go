package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"valhalla-hq/heimdall/pkg/audit"
)

// CSVExporter exports audit records as CSV, one row per record.
type CSVExporter struct {
	// IncludeHeader writes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes records to w.
func (e *CSVExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
		if err := writer.Write(recordToRow(record)); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError("csv", len(records), err)
	}
	return nil
}

func headerRow() []string {
	return []string{
		"seq", "id", "kind", "outcome",
		"actor", "reason", "request_id",
		"engine", "from_state", "to_state",
		"action", "block_code", "detail",
		"recorded_at", "prev_hash", "hash",
	}
}

func recordToRow(r *audit.Record) []string {
	recordedAt := ""
	if !r.RecordedAt.IsZero() {
		recordedAt = r.RecordedAt.UTC().Format(time.RFC3339Nano)
	}

	return []string{
		strconv.FormatInt(r.Seq, 10),
		r.ID,
		string(r.Kind),
		string(r.Outcome),
		r.Actor,
		r.Reason,
		r.RequestID,
		r.EngineKey,
		r.FromState,
		r.ToState,
		r.Action,
		r.BlockCode,
		r.Detail,
		recordedAt,
		r.PrevHash,
		r.Hash,
	}
}
