package compliance

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps compliance records in a map. Default for local runs and
// unit tests; production uses the Postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[Key]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[Key]*Record)}
}

func (s *InMemoryStore) Get(_ context.Context, key Key) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, key Key, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	if existing, ok := s.records[key]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.records[key] = &cp
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Summarize(_ context.Context, now time.Time) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum Summary
	for _, rec := range s.records {
		sum.Total++
		if rec.Status == StatusCompleted {
			sum.Completed++
			continue
		}
		if rec.DaysLeft(now) < 0 {
			sum.Overdue++
		}
	}
	return sum, nil
}
