/*
Package cli provides command-line helpers for the heimdall command.

Output Formatting:

Command results are rendered as text, JSON or CSV. Tabular results use
Table so that every format can render them:

	formatter, err := cli.NewFormatterFor(flagFormat)
	if err != nil {
		return err
	}
	table := &cli.Table{Headers: []string{"ENGINE", "STATE"}}
	table.Append("outreach", "ACTIVE")
	return formatter.FormatTo(os.Stdout, table)

Exit Codes:

Commands return an *ExitError when the process should exit with a specific
code, for example when the runbook is not OK or a guard check is blocked.
ExitCode maps any error to the process exit code.

Progress Reporting:

Multi-policy tripwire sweeps print one line per policy to stderr:

	progress := cli.NewProgress(cmd.ErrOrStderr(), "evaluate")
	progress.Start(len(policies))
	for _, p := range policies {
		progress.Step(p.Domain + "." + p.Metric)
		...
	}
	progress.Done()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
