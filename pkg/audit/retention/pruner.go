package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"valhalla-hq/heimdall/pkg/audit"
	"valhalla-hq/heimdall/pkg/audit/export"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain records.
	// 0 keeps records forever.
	RetentionDays int

	// PruneSchedule is a cron expression for scheduled pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string

	// ArchiveBeforeDelete exports pruned records to ArchivePath first.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory for archive files.
	ArchivePath string

	// MaxRecords is the maximum number of records to keep.
	// 0 means unlimited.
	MaxRecords int64
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays:       365,
		PruneSchedule:       "0 3 * * *",
		ArchiveBeforeDelete: true,
		ArchivePath:         "data/archives/",
		MaxRecords:          0,
	}
}

// Pruner removes the oldest audit records. It only ever cuts a prefix of
// the chain and always keeps the newest record, so the remaining trail
// still verifies and new appends keep linking to it.
type Pruner struct {
	storage   audit.Storage
	config    *Config
	clock     func() time.Time
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a new retention pruner.
func NewPruner(storage audit.Storage, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		storage: storage,
		config:  config,
		clock:   time.Now,
		logger:  slog.Default().With("component", "audit.retention"),
	}
	p.scheduler = NewScheduler(p)

	return p
}

// WithClock overrides the clock used to compute the age cutoff.
func (p *Pruner) WithClock(clock func() time.Time) *Pruner {
	p.clock = clock
	return p
}

// Prune deletes records older than RetentionDays, then the oldest records
// beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	last, err := p.storage.Last(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load chain head: %w", err)
	}
	if last == nil {
		p.logger.Debug("audit trail empty, nothing to prune")
		return 0, nil
	}

	var totalDeleted int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx, last.Seq)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by age failed: %w", err)
		}
		totalDeleted += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx, last.Seq)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by count failed: %w", err)
		}
		totalDeleted += deleted
	}

	if totalDeleted > 0 {
		p.logger.Info("audit pruning completed",
			"total_deleted", totalDeleted,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Debug("no audit records pruned")
	}

	return totalDeleted, nil
}

func (p *Pruner) pruneByAge(ctx context.Context, headSeq int64) (int64, error) {
	cutoff := p.clock().AddDate(0, 0, -p.config.RetentionDays)
	query := &audit.Query{EndTime: &cutoff, MaxSeq: headSeq - 1}
	if query.MaxSeq <= 0 {
		return 0, nil
	}

	deleted, err := p.deletePrefix(ctx, query, "age")
	if err != nil {
		return 0, audit.NewRetentionError(p.config.RetentionDays, err)
	}
	return deleted, nil
}

func (p *Pruner) pruneByCount(ctx context.Context, headSeq int64) (int64, error) {
	count, err := p.storage.Count(ctx, &audit.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	// Seq is gapless after the pruned prefix, so the newest MaxRecords
	// records are exactly those above this bound.
	bound := headSeq - p.config.MaxRecords
	if bound <= 0 {
		return 0, nil
	}

	return p.deletePrefix(ctx, &audit.Query{MaxSeq: bound}, "count")
}

func (p *Pruner) deletePrefix(ctx context.Context, query *audit.Query, reason string) (int64, error) {
	if p.config.ArchiveBeforeDelete {
		if err := p.archive(ctx, query, reason); err != nil {
			return 0, err
		}
	}

	deleted, err := p.storage.Delete(ctx, query)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		p.logger.Info("pruned audit records",
			"reason", reason,
			"deleted_count", deleted,
		)
	}
	return deleted, nil
}

// archive exports the records matched by query to a JSON file.
func (p *Pruner) archive(ctx context.Context, query *audit.Query, reason string) error {
	var records []*audit.Record
	for offset := 0; ; offset += 500 {
		page, err := p.storage.Query(ctx, &audit.Query{
			EndTime:   query.EndTime,
			MaxSeq:    query.MaxSeq,
			Limit:     500,
			Offset:    offset,
			SortOrder: "asc",
		})
		if err != nil {
			return fmt.Errorf("failed to query records for archiving: %w", err)
		}
		records = append(records, page...)
		if len(page) < 500 {
			break
		}
	}

	if len(records) == 0 {
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("audit-%s-%d-%d.json", reason, records[0].Seq, records[len(records)-1].Seq)
	archiveFile := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return fmt.Errorf("failed to export records to archive: %w", err)
	}

	p.logger.Info("audit records archived",
		"archive_file", archiveFile,
		"record_count", len(records),
	)
	return nil
}

// Start starts the pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
