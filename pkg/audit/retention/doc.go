// Package retention prunes old audit records on a cron schedule.
//
// Pruning removes a prefix of the hash chain by age (RetentionDays) and by
// size (MaxRecords). The newest record is never removed. Pruned records can
// be archived as JSON before deletion.
package retention
