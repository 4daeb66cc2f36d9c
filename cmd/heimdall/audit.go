package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/audit/export"
	"valhalla-hq/heimdall/pkg/audit/retention"
	"valhalla-hq/heimdall/pkg/cli"
)

var auditFlags struct {
	timeRange string
	kind      string
	engine    string
	actor     string
	outcome   string
	limit     int
	offset    int
	order     string
	file      string
	dryRun    bool
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query, verify and prune the audit trail",
	Long: `Query, verify and prune the hash-chained audit trail.

Every go-live toggle, kill switch change, engine transition, guard refusal
and tripwire trigger is recorded. Each record carries the hash of its
predecessor, so any edit or removal in the middle of the trail is detected
by verify.`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List audit records",
	Long: `List audit records, newest first.

Examples:
  # Refusals for one engine
  heimdall audit query --engine outreach --outcome blocked

  # Everything in a window, as CSV
  heimdall audit query --time-range "2026-10-01T00:00:00Z/2026-10-02T00:00:00Z" -o csv

  # Write JSON to a file
  heimdall audit query --kind kill_switch_engaged -o json --file ks.json`,
	Args: cobra.NoArgs,
	RunE: queryAudit,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit hash chain",
	Long: `Walk the trail in sequence order and check every hash and link.

The command exits with status 4 when the chain is broken.`,
	Args: cobra.NoArgs,
	RunE: verifyAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy now",
	Long: `Delete records older than audit.retention.days and beyond
audit.retention.max_records, archiving them first when configured. Pruning
removes the oldest records, so the remaining chain still verifies.`,
	Args: cobra.NoArgs,
	RunE: pruneAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditVerifyCmd, auditPruneCmd)

	f := auditQueryCmd.Flags()
	f.StringVar(&auditFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
	f.StringVar(&auditFlags.kind, "kind", "", "filter by record kind (e.g. engine_transitioned)")
	f.StringVar(&auditFlags.engine, "engine", "", "filter by engine key")
	f.StringVar(&auditFlags.actor, "actor", "", "filter by actor")
	f.StringVar(&auditFlags.outcome, "outcome", "", "filter by outcome (allowed, blocked, applied)")
	f.IntVar(&auditFlags.limit, "limit", 0, "max results (default: audit.query.default_limit)")
	f.IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
	f.StringVar(&auditFlags.order, "order", "desc", "sort order by sequence: asc, desc")
	f.StringVar(&auditFlags.file, "file", "", "output file (default: stdout)")

	auditPruneCmd.Flags().BoolVar(&auditFlags.dryRun, "dry-run", false, "report the trail size without deleting")
}

func queryAudit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := buildAuditQuery(a.cfg.Audit.Query.DefaultLimit, a.cfg.Audit.Query.MaxLimit)
	if err != nil {
		return cli.Exit(cli.ExitFailure, err)
	}

	records, err := a.auditStore.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}

	out := cmd.OutOrStdout()
	if auditFlags.file != "" {
		file, err := os.Create(auditFlags.file)
		if err != nil {
			return cli.NewCommandError("audit query", fmt.Errorf("failed to create output file: %w", err))
		}
		defer file.Close()
		out = file
	}

	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return cli.Exit(cli.ExitFailure, err)
	}

	switch format {
	case cli.FormatJSON:
		err = export.NewJSONExporter(a.cfg.Audit.Export.JSONPretty).Export(cmd.Context(), records, out)
	case cli.FormatCSV:
		err = export.NewCSVExporter(a.cfg.Audit.Export.CSVIncludeHeader).Export(cmd.Context(), records, out)
	default:
		table := &cli.Table{Headers: []string{"SEQ", "RECORDED_AT", "KIND", "OUTCOME", "ENGINE", "ACTION", "ACTOR", "DETAIL"}}
		for _, r := range records {
			detail := r.BlockCode
			if r.FromState != "" || r.ToState != "" {
				detail = strings.TrimSuffix(r.FromState+" -> "+r.ToState, " -> ")
			}
			if detail == "" {
				detail = r.Detail
			}
			table.Append(
				strconv.FormatInt(r.Seq, 10),
				formatTime(r.RecordedAt),
				string(r.Kind),
				string(r.Outcome),
				r.EngineKey,
				r.Action,
				r.Actor,
				detail,
			)
		}
		err = (&cli.TextFormatter{}).FormatTo(out, table)
	}
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}

	if auditFlags.file != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %d records to %s\n", len(records), auditFlags.file)
	}
	return nil
}

// buildAuditQuery turns the query flags into an audit.Query. A zero limit
// takes defaultLimit and any limit is clamped to maxLimit.
func buildAuditQuery(defaultLimit, maxLimit int) (*audit.Query, error) {
	q := &audit.Query{
		Kind:      audit.Kind(strings.TrimSpace(auditFlags.kind)),
		EngineKey: strings.TrimSpace(auditFlags.engine),
		Actor:     strings.TrimSpace(auditFlags.actor),
		Outcome:   audit.Outcome(strings.TrimSpace(auditFlags.outcome)),
		Limit:     auditFlags.limit,
		Offset:    auditFlags.offset,
	}

	if auditFlags.timeRange != "" {
		start, end, err := parseTimeRange(auditFlags.timeRange)
		if err != nil {
			return nil, err
		}
		q.StartTime, q.EndTime = &start, &end
	}

	switch order := strings.ToLower(auditFlags.order); order {
	case "", "desc":
		q.SortOrder = "desc"
	case "asc":
		q.SortOrder = "asc"
	default:
		return nil, fmt.Errorf("invalid order %q (expected asc or desc)", auditFlags.order)
	}

	if q.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative")
	}
	if q.Offset < 0 {
		return nil, fmt.Errorf("offset must not be negative")
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q, nil
}

// parseTimeRange parses an RFC 3339 interval "start/end".
func parseTimeRange(s string) (time.Time, time.Time, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range format (expected: start/end)")
	}

	start, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("time range ends before it starts")
	}
	return start, end, nil
}

func verifyAudit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := audit.Verify(cmd.Context(), a.auditStore)
	if err != nil {
		return cli.NewCommandError("audit verify", err)
	}

	format, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return cli.Exit(cli.ExitFailure, err)
	}
	if format == cli.FormatJSON {
		if err := writeOutput(cmd, res); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		if res.OK {
			fmt.Fprintf(out, "✓ Audit chain intact (%d records, seq %d-%d)\n", res.Records, res.FirstSeq, res.LastSeq)
		} else {
			fmt.Fprintf(out, "✗ Audit chain broken at seq %d: %s\n", res.Broken.Seq, res.Broken.Reason)
			fmt.Fprintf(out, "  %d records verified before the break\n", res.Records)
		}
	}

	if !res.OK {
		return cli.Exit(cli.ExitTampered, res.Broken)
	}
	return nil
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	before, err := a.auditStore.Count(cmd.Context(), &audit.Query{})
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}

	rc := a.cfg.Audit.Retention
	if auditFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d records stored (retention: %d days, max records: %d)\n", before, rc.Days, rc.MaxRecords)
		return nil
	}

	pruner := retention.NewPruner(a.auditStore, &retention.Config{
		RetentionDays:       rc.Days,
		ArchiveBeforeDelete: rc.ArchiveBeforeDelete,
		ArchivePath:         rc.ArchivePath,
		MaxRecords:          rc.MaxRecords,
	})
	deleted, err := pruner.Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d of %d records\n", deleted, before)
	return nil
}
