package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"valhalla-hq/heimdall/pkg/audit"
)

// MemoryStorage implements audit.Storage in memory. It is intended for tests
// and for running without a database.
type MemoryStorage struct {
	records map[int64]*audit.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[int64]*audit.Record)}
}

// Store implements audit.Storage. Seq must be unique.
func (s *MemoryStorage) Store(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.Seq]; exists {
		return audit.NewStorageError("memory", "store", fmt.Errorf("%w: %d", audit.ErrSeqConflict, record.Seq))
	}

	cp := *record
	s.records[record.Seq] = &cp
	return nil
}

// Query implements audit.Storage. A zero Limit returns every match.
func (s *MemoryStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := s.matching(query)

	start := query.Offset
	if start > len(results) {
		return []*audit.Record{}, nil
	}
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}

	out := make([]*audit.Record, len(results))
	for i, r := range results {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

// Last implements audit.Storage.
func (s *MemoryStorage) Last(ctx context.Context) (*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *audit.Record
	for _, r := range s.records {
		if last == nil || r.Seq > last.Seq {
			last = r
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

// Count implements audit.Storage.
func (s *MemoryStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.matching(query))), nil
}

// Delete implements audit.Storage.
func (s *MemoryStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for seq, r := range s.records {
		if matches(r, query) {
			delete(s.records, seq)
			deleted++
		}
	}
	return deleted, nil
}

// Close implements audit.Storage.
func (s *MemoryStorage) Close() error {
	return nil
}

// Tamper replaces the stored record with the same Seq. It exists so that
// chain verification can be exercised.
func (s *MemoryStorage) Tamper(record *audit.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	s.records[record.Seq] = &cp
}

// matching returns filtered records sorted per query.SortOrder. Callers
// hold the lock.
func (s *MemoryStorage) matching(query *audit.Query) []*audit.Record {
	var results []*audit.Record
	for _, r := range s.records {
		if matches(r, query) {
			results = append(results, r)
		}
	}

	asc := query.SortOrder == "asc"
	sort.Slice(results, func(i, j int) bool {
		if asc {
			return results[i].Seq < results[j].Seq
		}
		return results[i].Seq > results[j].Seq
	})
	return results
}

func matches(r *audit.Record, q *audit.Query) bool {
	if q.StartTime != nil && r.RecordedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.RecordedAt.After(*q.EndTime) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.EngineKey != "" && r.EngineKey != q.EngineKey {
		return false
	}
	if q.Actor != "" && r.Actor != q.Actor {
		return false
	}
	if q.Outcome != "" && r.Outcome != q.Outcome {
		return false
	}
	if q.MaxSeq > 0 && r.Seq > q.MaxSeq {
		return false
	}
	return true
}
