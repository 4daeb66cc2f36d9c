package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"valhalla-hq/heimdall/pkg/cli"
	"valhalla-hq/heimdall/pkg/tripwire"
)

var tripwireFlags struct {
	all         bool
	actor       string
	recordActor string
	success     string
	value       float64
	detail      string
}

var tripwireCmd = &cobra.Command{
	Use:   "tripwire",
	Short: "Record KPI events and evaluate regression tripwires",
	Long: `Record KPI events and evaluate regression tripwires.

A policy compares the rate over the most recent events with the rate over
the events before them. When the relative drop reaches the policy's
threshold, the kill switch is engaged or the policy's engine is stepped
down from ACTIVE to SANDBOX.`,
}

var tripwirePoliciesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List configured policies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		policies := a.tripwire.Policies()
		table := &cli.Table{
			Headers: []string{"DOMAIN", "METRIC", "WINDOW", "BASELINE", "MIN", "MAX_DROP", "ACTION", "ENGINE", "ENABLED"},
			Objects: policies,
		}
		for _, p := range policies {
			table.Append(
				p.Domain,
				p.Metric,
				strconv.Itoa(p.WindowEvents),
				strconv.Itoa(p.BaselineEvents),
				strconv.Itoa(p.MinEvents),
				strconv.FormatFloat(p.MaxDropFraction, 'f', 2, 64),
				string(p.Action),
				p.Engine,
				strconv.FormatBool(p.Enabled),
			)
		}
		return writeOutput(cmd, table)
	},
}

var tripwireRecordCmd = &cobra.Command{
	Use:   "record <domain> <metric>",
	Short: "Record one KPI event",
	Long: `Record one KPI event. Pass --success for binary outcomes or --value
for numeric observations.

Examples:
  heimdall tripwire record OUTREACH reply_rate --success true
  heimdall tripwire record DISPO days_to_close --value 12.5`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := &tripwire.Event{
			Domain: args[0],
			Metric: args[1],
			Actor:  tripwireFlags.recordActor,
			Detail: tripwireFlags.detail,
		}
		if tripwireFlags.success != "" {
			ok, err := strconv.ParseBool(tripwireFlags.success)
			if err != nil {
				return cli.Exit(cli.ExitFailure, fmt.Errorf("invalid --success: %w", err))
			}
			e.Success = &ok
		}
		if cmd.Flags().Changed("value") {
			v := tripwireFlags.value
			e.Value = &v
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.tripwire.Record(cmd.Context(), e); err != nil {
			return cli.NewCommandError("tripwire record", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Recorded %s.%s (%s)\n", e.Domain, e.Metric, e.ID)
		return nil
	},
}

var tripwireEvaluateCmd = &cobra.Command{
	Use:   "evaluate [domain metric]",
	Short: "Evaluate one policy, or every enabled policy with --all",
	Long: `Evaluate a regression policy now. A triggered policy pulls its lever
exactly as a scheduled sweep would.

Examples:
  heimdall tripwire evaluate OUTREACH reply_rate
  heimdall tripwire evaluate --all --actor alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tripwireFlags.all != (len(args) == 0) {
			return cli.Exit(cli.ExitFailure, fmt.Errorf("pass either <domain> <metric> or --all"))
		}
		if !tripwireFlags.all && len(args) != 2 {
			return cli.Exit(cli.ExitFailure, fmt.Errorf("expected <domain> <metric>, got %d argument(s)", len(args)))
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var evals []*tripwire.Evaluation
		if tripwireFlags.all {
			evals, err = evaluateAll(cmd, a.tripwire)
		} else {
			var ev *tripwire.Evaluation
			ev, err = a.tripwire.Evaluate(cmd.Context(), args[0], args[1], tripwireFlags.actor)
			if ev != nil {
				evals = append(evals, ev)
			}
		}

		if perr := printEvaluations(cmd, evals); perr != nil {
			return perr
		}
		if err != nil {
			return cli.NewCommandError("tripwire evaluate", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tripwireCmd)
	tripwireCmd.AddCommand(tripwirePoliciesCmd, tripwireRecordCmd, tripwireEvaluateCmd)

	tripwireRecordCmd.Flags().StringVar(&tripwireFlags.success, "success", "", "binary outcome (true or false)")
	tripwireRecordCmd.Flags().Float64Var(&tripwireFlags.value, "value", 0, "numeric observation")
	tripwireRecordCmd.Flags().StringVar(&tripwireFlags.recordActor, "actor", "", "reporting service")
	tripwireRecordCmd.Flags().StringVar(&tripwireFlags.detail, "detail", "", "free-form detail")

	tripwireEvaluateCmd.Flags().BoolVar(&tripwireFlags.all, "all", false, "evaluate every enabled policy")
	tripwireEvaluateCmd.Flags().StringVar(&tripwireFlags.actor, "actor", tripwire.DefaultActor, "operator recorded if a lever is pulled")
}

// evaluateAll evaluates enabled policies one by one so progress can be
// reported. Every evaluation is returned; the first error is returned after
// the sweep completes.
func evaluateAll(cmd *cobra.Command, tw *tripwire.Tripwire) ([]*tripwire.Evaluation, error) {
	var enabled []tripwire.Policy
	for _, p := range tw.Policies() {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}

	progress := cli.NewProgress(cmd.ErrOrStderr(), "evaluate")
	progress.Start(len(enabled))

	var evals []*tripwire.Evaluation
	var firstErr error
	for _, p := range enabled {
		progress.Step(p.Domain + "." + p.Metric)
		ev, err := tw.Evaluate(cmd.Context(), p.Domain, p.Metric, tripwireFlags.actor)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s.%s: %w", p.Domain, p.Metric, err)
		}
		if ev != nil {
			evals = append(evals, ev)
		}
	}

	if firstErr != nil {
		progress.Fail(firstErr)
	} else {
		progress.Done()
	}
	return evals, firstErr
}

func printEvaluations(cmd *cobra.Command, evals []*tripwire.Evaluation) error {
	table := &cli.Table{
		Headers: []string{"DOMAIN", "METRIC", "TRIGGERED", "BASELINE", "CURRENT", "DROP", "ACTION", "NOTE"},
		Objects: evals,
	}
	for _, ev := range evals {
		table.Append(
			ev.Domain,
			ev.Metric,
			strconv.FormatBool(ev.Triggered),
			formatRate(ev.Baseline),
			formatRate(ev.Current),
			formatRate(ev.DropFraction),
			string(ev.Action),
			ev.Note,
		)
	}
	return writeOutput(cmd, table)
}

func formatRate(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}
