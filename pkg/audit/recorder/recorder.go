package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"valhalla-hq/heimdall/pkg/audit"
)

// Config contains configuration for the audit recorder.
type Config struct {
	// Enabled enables audit recording.
	Enabled bool

	// AsyncBuffer is the size of the channel used by RecordAsync.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds a single storage write and how long RecordAsync
	// waits for buffer space.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder appends hash-chained records to an audit.Storage. Appends are
// serialized so that each record links to the one stored before it.
type Recorder struct {
	storage    audit.Storage
	config     *Config
	clock      func() time.Time
	recordChan chan *audit.Record
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger

	mu       sync.Mutex
	loaded   bool
	lastSeq  int64
	lastHash string
}

// NewRecorder creates a recorder over storage and starts its async worker.
func NewRecorder(storage audit.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		clock:      time.Now,
		recordChan: make(chan *audit.Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// WithClock overrides the clock used for RecordedAt.
func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	r.clock = clock
	return r
}

// Record appends rec synchronously. ID, Seq, RecordedAt, PrevHash and Hash
// are assigned here.
func (r *Recorder) Record(ctx context.Context, rec *audit.Record) error {
	if !r.config.Enabled {
		return nil
	}
	return r.append(ctx, rec)
}

// RecordAsync enqueues rec for the background worker. It is meant for
// high-volume events such as guard decisions.
func (r *Recorder) RecordAsync(rec *audit.Record) error {
	if !r.config.Enabled {
		return nil
	}

	select {
	case <-r.done:
		return audit.NewRecorderError(rec.ID, context.Canceled)
	default:
	}

	select {
	case r.recordChan <- rec:
		return nil
	case <-time.After(r.config.WriteTimeout):
		r.logger.Error("audit channel full, dropping record",
			"kind", rec.Kind,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return audit.NewRecorderError(rec.ID, context.DeadlineExceeded)
	case <-r.done:
		return audit.NewRecorderError(rec.ID, context.Canceled)
	}
}

// Close drains pending async records and stops the worker. It is idempotent.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.logger.Info("audit recorder shut down")
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	write := func(rec *audit.Record) {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
		defer cancel()
		if err := r.append(ctx, rec); err != nil {
			r.logger.Error("failed to store audit record",
				"kind", rec.Kind,
				"error", err,
			)
		}
	}

	for {
		select {
		case rec := <-r.recordChan:
			write(rec)
		case <-r.done:
			for {
				select {
				case rec := <-r.recordChan:
					write(rec)
				default:
					return
				}
			}
		}
	}
}

// maxConflictRetries bounds how often append reloads the chain head after
// another writer took the next seq.
const maxConflictRetries = 3

func (r *Recorder) append(ctx context.Context, rec *audit.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.RecordedAt = r.clock().UTC().Truncate(time.Microsecond)

	for attempt := 0; ; attempt++ {
		if !r.loaded {
			if err := r.loadHead(ctx); err != nil {
				return audit.NewRecorderError(rec.ID, err)
			}
		}

		rec.Seq = r.lastSeq + 1
		rec.PrevHash = r.lastHash
		hash, err := audit.ComputeHash(rec)
		if err != nil {
			return audit.NewRecorderError(rec.ID, err)
		}
		rec.Hash = hash

		err = r.storage.Store(ctx, rec)
		if err == nil {
			break
		}
		// The head may have moved under another writer; reload next time.
		r.loaded = false
		if !errors.Is(err, audit.ErrSeqConflict) || attempt >= maxConflictRetries {
			return audit.NewRecorderError(rec.ID, err)
		}
		r.logger.Debug("audit seq taken by another writer, reloading head",
			"seq", rec.Seq,
			"attempt", attempt+1,
		)
	}

	r.lastSeq = rec.Seq
	r.lastHash = rec.Hash

	r.logger.Debug("audit record stored",
		"seq", rec.Seq,
		"kind", rec.Kind,
		"outcome", rec.Outcome,
	)
	return nil
}

func (r *Recorder) loadHead(ctx context.Context) error {
	last, err := r.storage.Last(ctx)
	if err != nil {
		return err
	}
	r.lastSeq, r.lastHash = 0, ""
	if last != nil {
		r.lastSeq = last.Seq
		r.lastHash = last.Hash
	}
	r.loaded = true
	return nil
}
