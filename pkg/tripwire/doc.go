// Package tripwire detects KPI regressions and pulls a safety lever when one
// is found.
//
// Engines report KPI events per (domain, metric). A Policy compares the rate
// over the most recent WindowEvents events with the rate over the
// BaselineEvents events before them. For binary events the rate is the
// success ratio; otherwise it is the mean value. When
//
//	(baseline - current) / baseline >= MaxDropFraction
//
// the policy triggers and either engages the kill switch (KILL_SWITCH) or
// steps its engine down from ACTIVE to SANDBOX (STEP_DOWN).
//
// Every evaluation is stored with a note: policy_missing_or_disabled,
// insufficient_events(...), cannot_compute_rate, OK drop=... or
// TRIGGERED drop=... action=....
//
// Scheduler sweeps all enabled policies on a cron schedule.
package tripwire
