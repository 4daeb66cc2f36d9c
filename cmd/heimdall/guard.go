package main

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"valhalla-hq/heimdall/pkg/cli"
	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/guard"
)

var guardFlags struct {
	actor string
}

type guardResult struct {
	Allowed   bool             `json:"allowed"`
	Engine    string           `json:"engine"`
	Action    string           `json:"action"`
	State     engine.State     `json:"engine_state,omitempty"`
	Code      string           `json:"code,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Clearance *guard.Clearance `json:"clearance,omitempty"`
}

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Check actions against the engine guard",
}

var guardCheckCmd = &cobra.Command{
	Use:   "check <engine> <action>",
	Short: "Ask whether an engine may perform an action",
	Long: `Run the combined guard for an engine and action.

The engine must be ACTIVE, and effect-producing actions additionally need
go-live enabled with the kill switch released. The decision is audited like
any other guard call. The command exits with status 2 when the action is
refused.

Examples:
  heimdall guard check outreach OUTREACH
  heimdall guard check pricing COMPUTE --output json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		clearance, _, err := a.svc.Authorize(cmd.Context(), args[0], args[1], guardFlags.actor)

		var blocked *guard.EngineBlockedError
		switch {
		case errors.As(err, &blocked):
			res := guardResult{
				Engine: blocked.EngineName,
				Action: blocked.Action,
				State:  blocked.State,
				Code:   blocked.Code,
				Reason: blocked.Reason,
			}
			if err := printGuardResult(cmd, res); err != nil {
				return err
			}
			return cli.Exit(cli.ExitBlocked, err)
		case err != nil:
			return cli.NewCommandError("guard check", err)
		}

		return printGuardResult(cmd, guardResult{
			Allowed:   true,
			Engine:    clearance.EngineKey,
			Action:    clearance.Action,
			State:     clearance.EngineState,
			Clearance: clearance,
		})
	},
}

var guardActionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List registered actions and whether they affect the real world",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		type actionRow struct {
			Name            string `json:"name"`
			RealWorldEffect bool   `json:"real_world_effect"`
		}

		actions := engine.Actions()
		rows := make([]actionRow, 0, len(actions))
		table := &cli.Table{Headers: []string{"ACTION", "REAL_WORLD_EFFECT"}}
		for _, act := range actions {
			rows = append(rows, actionRow{Name: string(act), RealWorldEffect: act.RealWorldEffect()})
			table.Append(string(act), strconv.FormatBool(act.RealWorldEffect()))
		}
		table.Objects = rows
		return writeOutput(cmd, table)
	},
}

func init() {
	rootCmd.AddCommand(guardCmd)
	guardCmd.AddCommand(guardCheckCmd, guardActionsCmd)

	guardCheckCmd.Flags().StringVar(&guardFlags.actor, "actor", "cli", "calling service recorded on the decision")
}

func printGuardResult(cmd *cobra.Command, res guardResult) error {
	table := &cli.Table{
		Headers: []string{"ENGINE", "ACTION", "STATE", "ALLOWED", "CODE", "REASON"},
		Objects: res,
	}
	table.Append(res.Engine, res.Action, string(res.State), strconv.FormatBool(res.Allowed), res.Code, res.Reason)
	return writeOutput(cmd, table)
}
