package main

import (
	"github.com/spf13/cobra"

	"valhalla-hq/heimdall/pkg/cli"
)

var killSwitchFlags changeFlags

var killSwitchCmd = &cobra.Command{
	Use:     "killswitch",
	Aliases: []string{"kill-switch"},
	Short:   "Engage or release the global kill switch",
	Long: `Engage or release the global kill switch.

While engaged, every effect-producing action is refused regardless of the
go-live flag or engine state. Releasing it leaves go-live unchanged.

Examples:
  heimdall killswitch engage --by alice --reason "reply rate collapsed"
  heimdall killswitch disengage --by alice`,
}

var killSwitchEngageCmd = &cobra.Command{
	Use:   "engage",
	Short: "Engage the kill switch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.svc.EngageKillSwitch(cmd.Context(), killSwitchFlags.by, killSwitchFlags.reason)
		if err != nil {
			return cli.NewCommandError("killswitch engage", err)
		}
		return printGate(cmd, st)
	},
}

var killSwitchDisengageCmd = &cobra.Command{
	Use:     "disengage",
	Aliases: []string{"release"},
	Short:   "Release the kill switch",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.svc.DisengageKillSwitch(cmd.Context(), killSwitchFlags.by, killSwitchFlags.reason)
		if err != nil {
			return cli.NewCommandError("killswitch disengage", err)
		}
		return printGate(cmd, st)
	},
}

func init() {
	rootCmd.AddCommand(killSwitchCmd)
	killSwitchCmd.AddCommand(killSwitchEngageCmd, killSwitchDisengageCmd)

	killSwitchFlags.register(killSwitchEngageCmd)
	killSwitchFlags.register(killSwitchDisengageCmd)
}
