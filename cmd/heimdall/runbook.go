package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"valhalla-hq/heimdall/pkg/cli"
	"valhalla-hq/heimdall/pkg/runbook"
)

var runbookFlags struct {
	markdown bool
}

var runbookCmd = &cobra.Command{
	Use:   "runbook",
	Short: "Check whether it is safe to enable go-live",
	Long: `Evaluate the go-live readiness checks and print the runbook.

Blockers must be resolved before go-live is enabled; warnings should be
reviewed. The command exits with status 2 when any blocker is open.

Examples:
  heimdall runbook
  heimdall runbook --markdown > RUNBOOK.md
  heimdall runbook -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report := a.runbook().Build(cmd.Context())

		format, err := cli.ParseFormat(outputFormat)
		if err != nil {
			return cli.Exit(cli.ExitFailure, err)
		}

		switch {
		case runbookFlags.markdown:
			fmt.Fprint(cmd.OutOrStdout(), report.Markdown())
		case format == cli.FormatJSON:
			if err := writeOutput(cmd, report); err != nil {
				return err
			}
		default:
			table := &cli.Table{Headers: []string{"SEVERITY", "CHECK", "OK", "MESSAGE"}}
			for _, group := range [][]runbook.Item{report.Blockers, report.Warnings, report.Info} {
				for _, it := range group {
					table.Append(string(it.Severity), it.ID, strconv.FormatBool(it.OK), it.Message)
				}
			}
			if err := writeOutput(cmd, table); err != nil {
				return err
			}
			if report.OKToEnableGoLive {
				fmt.Fprintln(cmd.OutOrStdout(), "\n✓ OK to enable go-live")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "\n✗ %d blocker(s) open\n", len(report.Blockers))
			}
		}

		if !report.OKToEnableGoLive {
			return cli.Exit(cli.ExitBlocked, errors.New("go-live blockers are open"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runbookCmd)
	runbookCmd.Flags().BoolVar(&runbookFlags.markdown, "markdown", false, "print the runbook as Markdown")
}
