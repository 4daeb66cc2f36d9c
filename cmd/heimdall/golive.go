package main

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"valhalla-hq/heimdall/pkg/cli"
	"valhalla-hq/heimdall/pkg/golive"
)

// changeFlags are shared by every command that changes governance state.
type changeFlags struct {
	by     string
	reason string
}

func (f *changeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.by, "by", os.Getenv("USER"), "operator recorded as changed_by")
	cmd.Flags().StringVar(&f.reason, "reason", "", "justification recorded with the change")
}

var goLiveFlags changeFlags

var goLiveCmd = &cobra.Command{
	Use:   "golive",
	Short: "Inspect and toggle the go-live flag",
	Long: `Inspect and toggle the global go-live flag.

Effect-producing actions are cleared only while go-live is enabled and the
kill switch is released. Enabling go-live does not release the kill switch.

Examples:
  # Show the gate
  heimdall golive status

  # Enable production execution
  heimdall golive enable --by alice --reason "runbook green"

  # Disable it again
  heimdall golive disable --by alice`,
}

var goLiveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the go-live flag and kill switch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.svc.GateState(cmd.Context())
		if err != nil {
			return cli.NewCommandError("golive status", err)
		}
		return printGate(cmd, st)
	},
}

var goLiveEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable production execution",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleGoLive(cmd, true)
	},
}

var goLiveDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable production execution",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleGoLive(cmd, false)
	},
}

func init() {
	rootCmd.AddCommand(goLiveCmd)
	goLiveCmd.AddCommand(goLiveStatusCmd, goLiveEnableCmd, goLiveDisableCmd)

	goLiveFlags.register(goLiveEnableCmd)
	goLiveFlags.register(goLiveDisableCmd)
}

func toggleGoLive(cmd *cobra.Command, enabled bool) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.svc.ToggleGoLive(cmd.Context(), enabled, goLiveFlags.by, goLiveFlags.reason)
	if err != nil {
		return cli.NewCommandError(cmd.CommandPath(), err)
	}
	return printGate(cmd, st)
}

func printGate(cmd *cobra.Command, st golive.State) error {
	table := &cli.Table{
		Headers: []string{"GO_LIVE", "KILL_SWITCH", "REVISION", "CHANGED_BY", "REASON", "UPDATED_AT"},
		Objects: st,
	}
	table.Append(
		onOff(st.GoLiveEnabled),
		engagedReleased(st.KillSwitchEngaged),
		strconv.FormatInt(st.Revision, 10),
		st.ChangedBy,
		st.Reason,
		formatTime(st.UpdatedAt),
	)
	return writeOutput(cmd, table)
}

// writeOutput renders data in the --output format.
func writeOutput(cmd *cobra.Command, data any) error {
	f, err := cli.NewFormatterFor(outputFormat)
	if err != nil {
		return cli.Exit(cli.ExitFailure, err)
	}
	return f.FormatTo(cmd.OutOrStdout(), data)
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func engagedReleased(b bool) string {
	if b {
		return "ENGAGED"
	}
	return "released"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
