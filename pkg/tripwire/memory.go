package tripwire

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu          sync.RWMutex
	events      []*Event
	evaluations map[string]Evaluation
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{evaluations: make(map[string]Evaluation)}
}

// AppendEvent implements Store.
func (s *MemoryStore) AppendEvent(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.events = append(s.events, &cp)
	return nil
}

// RecentEvents implements Store.
func (s *MemoryStore) RecentEvents(ctx context.Context, domain, metric string, offset, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Event
	for _, e := range s.events {
		if e.Domain == domain && e.Metric == metric {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return []*Event{}, nil
	}
	matched = matched[offset:]
	if limit >= 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*Event, len(matched))
	for i, e := range matched {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// SaveEvaluation implements Store.
func (s *MemoryStore) SaveEvaluation(ctx context.Context, ev *Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evaluations[policyKey(ev.Domain, ev.Metric)] = *ev
	return nil
}

// GetEvaluation implements Store.
func (s *MemoryStore) GetEvaluation(ctx context.Context, domain, metric string) (*Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.evaluations[policyKey(domain, metric)]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}
