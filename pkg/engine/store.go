package engine

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Record is the persisted lifecycle state of one engine.
type Record struct {
	// Key is the opaque engine identity (e.g. "outreach").
	Key string `json:"key"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// Revision increments on every persisted transition. Zero means the
	// engine has never been stored and is at DefaultState.
	Revision int64 `json:"revision"`

	// ChangedBy identifies the operator of the last transition.
	ChangedBy string `json:"changed_by,omitempty"`

	// Reason is the optional justification for the last transition.
	Reason string `json:"reason,omitempty"`

	// UpdatedAt is when the last transition was persisted.
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultRecord returns the record assumed for a key with nothing stored.
func DefaultRecord(key string) *Record {
	return &Record{Key: key, State: DefaultState}
}

// Store persists engine records. Implementations must be safe for
// concurrent use.
type Store interface {
	// GetEngine returns the record for key. A missing key yields
	// DefaultRecord(key) and no error.
	GetEngine(ctx context.Context, key string) (*Record, error)

	// ListEngines returns every stored record ordered by key.
	ListEngines(ctx context.Context) ([]*Record, error)

	// CompareAndSetEngine stores next if the stored revision still equals
	// expectedRevision, and returns the stored record with Revision set to
	// expectedRevision+1. It returns ErrConflict otherwise.
	CompareAndSetEngine(ctx context.Context, next *Record, expectedRevision int64) (*Record, error)
}

// MemoryStore is an in-memory Store intended for tests and single-process use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// GetEngine implements Store.
func (s *MemoryStore) GetEngine(ctx context.Context, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return DefaultRecord(key), nil
	}
	return &rec, nil
}

// ListEngines implements Store.
func (s *MemoryStore) ListEngines(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// CompareAndSetEngine implements Store.
func (s *MemoryStore) CompareAndSetEngine(ctx context.Context, next *Record, expectedRevision int64) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[next.Key].Revision != expectedRevision {
		return nil, ErrConflict
	}

	stored := *next
	stored.Revision = expectedRevision + 1
	s.records[next.Key] = stored
	return &stored, nil
}
