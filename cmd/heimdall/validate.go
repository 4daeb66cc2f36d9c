package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file with environment overrides applied and
check every setting. The command exits with status 3 when the configuration
is invalid.

Examples:
  heimdall validate
  HEIMDALL_ENVIRONMENT=production heimdall validate --config prod.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Configuration valid (%s)\n", cfgFile)
		fmt.Fprintf(out, "  environment:     %s\n", cfg.Environment)
		fmt.Fprintf(out, "  listen address:  %s\n", cfg.Server.ListenAddress)
		fmt.Fprintf(out, "  state database:  %s\n", cfg.Storage.Path)
		fmt.Fprintf(out, "  audit backend:   %s (enabled: %t)\n", cfg.Audit.Backend, cfg.Audit.Enabled)
		fmt.Fprintf(out, "  gate enforced:   %t\n", cfg.Gate.Enforce && cfg.IsProduction())
		fmt.Fprintf(out, "  admin auth:      %t\n", cfg.Security.Authentication.Enabled)
		fmt.Fprintf(out, "  tripwire:        %d policies (scheduled: %t)\n", len(cfg.Tripwire.Policies), cfg.Tripwire.Enabled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
