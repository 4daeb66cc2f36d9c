// Package audit defines the governance audit trail.
//
// Every go-live toggle, kill-switch change, engine transition, guard
// decision and tripwire trigger becomes a Record. Records form a hash chain:
// each carries a gapless Seq, the Hash of its predecessor (PrevHash) and its
// own Hash over every other field. Verify walks a Storage and reports the
// first broken link, so edits and deletions in the middle of the trail are
// detectable.
//
// Subpackages:
//
//   - recorder: assigns chain fields and appends records, sync or async
//   - storage: memory and SQLite backends
//   - retention: age and size based pruning of the chain prefix
//   - export: JSON and CSV writers
package audit
