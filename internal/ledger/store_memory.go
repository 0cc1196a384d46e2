package ledger

import (
	"context"
	"sync"
	"time"
)

type ledgerKey struct {
	accountID string
	eventID   string
}

// InMemoryStore is the map-backed ledger for local runs and tests. The single
// mutex gives Admit its insert-if-absent atomicity.
type InMemoryStore struct {
	mu    sync.Mutex
	rows  map[ledgerKey]*Envelope
	order []ledgerKey
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[ledgerKey]*Envelope)}
}

func (s *InMemoryStore) Admit(_ context.Context, env Envelope) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ledgerKey{accountID: env.AccountID, eventID: env.EventID}
	if _, exists := s.rows[key]; exists {
		return false, nil
	}
	if env.CreatedAt.IsZero() {
		env.CreatedAt = time.Now().UTC()
	}
	s.rows[key] = &env
	s.order = append(s.order, key)
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(_ context.Context, accountID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env, ok := s.rows[ledgerKey{accountID: accountID, eventID: eventID}]; ok {
		env.Processed = true
	}
	return nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Envelope, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.rows[s.order[i]])
	}
	return out, nil
}
