package audit

import (
	"context"
	"io"
	"time"
)

// Kind identifies the governance event an audit record describes.
type Kind string

const (
	KindGoLiveToggled        Kind = "go_live_toggled"
	KindKillSwitchEngaged    Kind = "kill_switch_engaged"
	KindKillSwitchDisengaged Kind = "kill_switch_disengaged"
	KindEngineTransitioned   Kind = "engine_transitioned"
	KindActionGuarded        Kind = "action_guarded"
	KindTripwireTriggered    Kind = "tripwire_triggered"
)

// Outcome is the result recorded for an event.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeBlocked Outcome = "blocked"
	OutcomeApplied Outcome = "applied"
)

// Record is one entry of the governance audit trail. Records are chained:
// Hash covers every other field including PrevHash, the Hash of the record
// with the preceding Seq.
type Record struct {
	// Chain position
	Seq int64  `json:"seq"` // 1-based, gapless until pruned
	ID  string `json:"id"`  // UUID v4

	Kind    Kind    `json:"kind"`
	Outcome Outcome `json:"outcome"`

	// Operator or calling service
	Actor     string `json:"actor,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// Engine events
	EngineKey string `json:"engine,omitempty"`
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state,omitempty"`

	// Guard events
	Action    string `json:"action,omitempty"`
	BlockCode string `json:"block_code,omitempty"`

	// Free-form detail, e.g. the verbatim block reason or tripwire note
	Detail string `json:"detail,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`

	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// Query defines filter parameters for querying audit records.
type Query struct {
	// Time range (inclusive)
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Filters
	Kind      Kind    `json:"kind,omitempty"`
	EngineKey string  `json:"engine,omitempty"`
	Actor     string  `json:"actor,omitempty"`
	Outcome   Outcome `json:"outcome,omitempty"`

	// MaxSeq restricts matches to Seq <= MaxSeq when positive.
	MaxSeq int64 `json:"max_seq,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max records to return, 0 means the backend default
	Offset int `json:"offset,omitempty"` // Skip N records

	// SortOrder is "asc" or "desc" by Seq. Default: "desc"
	SortOrder string `json:"sort_order,omitempty"`
}

// Storage defines the interface for audit storage backends.
// Implementations must be thread-safe.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the filters. Returns an empty slice
	// if nothing matches.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Last returns the record with the highest Seq, or nil on an empty trail.
	Last(ctx context.Context) (*Record, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the filters and returns how many
	// were removed. Used for retention.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Exporter writes audit records in a specific format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
