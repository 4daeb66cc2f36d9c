// Package runbook builds the go-live readiness report.
//
// A report is a list of checks, each with a severity. Failing BLOCKER
// checks make OKToEnableGoLive false; failing WARN checks are surfaced but do
// not block. Build never returns an error: a source that fails or panics
// becomes a failing blocker of its own.
//
//	report := runbook.New(sources).Build(ctx)
//	if !report.OKToEnableGoLive {
//	    fmt.Print(report.Markdown())
//	}
package runbook
