// Package recorder appends governance events to the audit chain.
//
// The recorder owns the chain head. Each append assigns ID, Seq,
// RecordedAt, PrevHash and Hash under a mutex, so concurrent callers still
// produce a gapless chain. Record writes synchronously and is used for
// operator actions; RecordAsync queues guard decisions for a background
// worker that Close drains.
//
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig())
//	defer rec.Close()
//
//	err := rec.Record(ctx, &audit.Record{
//	    Kind:    audit.KindKillSwitchEngaged,
//	    Outcome: audit.OutcomeApplied,
//	    Actor:   "ops@example.com",
//	})
package recorder
