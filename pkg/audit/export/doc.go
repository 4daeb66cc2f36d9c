// Package export writes audit records as JSON or CSV.
//
//	exporter := export.NewJSONExporter(true)
//	err := exporter.Export(ctx, records, os.Stdout)
//
// JSON output is always an array and preserves every field, so an exported
// trail can be read back with ReadJSON and checked with audit.Verify over a
// memory backend. CSV output is flat and meant for spreadsheets.
package export
