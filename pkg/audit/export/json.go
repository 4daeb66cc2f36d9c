package export

import (
	"context"
	"encoding/json"
	"io"

	"valhalla-hq/heimdall/pkg/audit"
)

// JSONExporter exports audit records as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records to w. The output is always an array, even for zero
// or one record, so that archives can be read back uniformly.
func (e *JSONExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	if records == nil {
		records = []*audit.Record{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return audit.NewExportError("json", len(records), err)
	}

	if _, err := w.Write(data); err != nil {
		return audit.NewExportError("json", len(records), err)
	}
	return nil
}

// ReadJSON decodes an array written by JSONExporter.
func ReadJSON(r io.Reader) ([]*audit.Record, error) {
	var records []*audit.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, audit.NewExportError("json", 0, err)
	}
	return records, nil
}
