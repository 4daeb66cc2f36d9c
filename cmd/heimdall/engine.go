package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"valhalla-hq/heimdall/pkg/cli"
	"valhalla-hq/heimdall/pkg/engine"
)

var engineFlags changeFlags

var engineCmd = &cobra.Command{
	Use:     "engine",
	Aliases: []string{"engines"},
	Short:   "Inspect and transition engine lifecycle states",
	Long: `Inspect and transition engine lifecycle states.

Engines move DISABLED -> DORMANT -> SANDBOX -> ACTIVE. ACTIVE may only step
down to SANDBOX and SANDBOX may return to DORMANT. Engines that were never
stored are DISABLED.

Examples:
  heimdall engine list
  heimdall engine get outreach
  heimdall engine next outreach
  heimdall engine transition outreach DORMANT --by alice
  heimdall engine transition outreach SANDBOX --by alice --reason "dry run"`,
}

var engineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored engines",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.svc.Engines(cmd.Context())
		if err != nil {
			return cli.NewCommandError("engine list", err)
		}
		return printEngines(cmd, records)
	},
}

var engineGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.svc.Engine(cmd.Context(), args[0])
		if err != nil {
			return cli.NewCommandError("engine get", err)
		}
		return printEngines(cmd, []*engine.Record{rec})
	},
}

var engineNextCmd = &cobra.Command{
	Use:   "next <key>",
	Short: "Show the states an engine may move to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.svc.Engine(cmd.Context(), args[0])
		if err != nil {
			return cli.NewCommandError("engine next", err)
		}

		next := engine.AllowedNextStates(rec.State)
		table := &cli.Table{
			Headers: []string{"KEY", "STATE", "ALLOWED"},
			Objects: map[string]any{"key": rec.Key, "state": rec.State, "allowed": next},
		}
		names := make([]string, len(next))
		for i, st := range next {
			names[i] = string(st)
		}
		table.Append(rec.Key, string(rec.State), strings.Join(names, ","))
		return writeOutput(cmd, table)
	},
}

var engineTransitionCmd = &cobra.Command{
	Use:   "transition <key> <state>",
	Short: "Move an engine to another lifecycle state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := engine.ParseState(args[1])
		if err != nil {
			return cli.Exit(cli.ExitFailure, err)
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Transition(cmd.Context(), args[0], target, engineFlags.by, engineFlags.reason)
		if err != nil {
			return cli.NewCommandError("engine transition", err)
		}
		return printEngines(cmd, []*engine.Record{res.Current})
	},
}

func init() {
	rootCmd.AddCommand(engineCmd)
	engineCmd.AddCommand(engineListCmd, engineGetCmd, engineNextCmd, engineTransitionCmd)

	engineFlags.register(engineTransitionCmd)
}

func printEngines(cmd *cobra.Command, records []*engine.Record) error {
	table := &cli.Table{
		Headers: []string{"KEY", "STATE", "REVISION", "CHANGED_BY", "REASON", "UPDATED_AT"},
		Objects: records,
	}
	for _, rec := range records {
		table.Append(
			rec.Key,
			string(rec.State),
			strconv.FormatInt(rec.Revision, 10),
			rec.ChangedBy,
			rec.Reason,
			formatTime(rec.UpdatedAt),
		)
	}
	return writeOutput(cmd, table)
}
