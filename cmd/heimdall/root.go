package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"valhalla-hq/heimdall/pkg/cli"
	"valhalla-hq/heimdall/pkg/config"
)

const defaultConfigFile = "config.yaml"

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "heimdall",
	Short: "Heimdall - governance control plane for execution engines",
	Long: `Heimdall decides whether an execution engine may act.

Each engine moves from DISABLED through DORMANT and SANDBOX to ACTIVE.
Actions that touch the real world are cleared only when the engine is
ACTIVE, go-live is enabled and the kill switch is released. Heimdall provides:
  - Engine lifecycle transitions with optimistic concurrency
  - The go-live flag and the global kill switch
  - Action clearances and revalidation before side effects
  - A hash-chained audit trail of every governance event
  - KPI regression tripwires that pull the kill switch or step engines down
  - A go-live readiness runbook`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code the error maps to.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, csv")
}

// loadConfig reads cfgFile with environment overrides. When the default file
// is absent, the built-in defaults are used instead.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err == nil {
		return cfg, nil
	}
	if cfgFile == defaultConfigFile && errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.LoadDefaultsWithEnvOverrides()
		if err == nil {
			return cfg, nil
		}
	}
	return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
}
