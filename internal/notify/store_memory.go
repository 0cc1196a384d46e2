package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps the reminder queue in memory for local runs and tests.
type InMemoryStore struct {
	mu        sync.Mutex
	reminders []Reminder
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Add(_ context.Context, reminders ...Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, reminders...)
	return nil
}

func (s *InMemoryStore) CancelPending(_ context.Context, phone string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancelled := 0
	for i := range s.reminders {
		if s.reminders[i].Phone == phone && s.reminders[i].Status == StatusPending {
			s.reminders[i].Status = StatusCancelled
			cancelled++
		}
	}
	return cancelled, nil
}

func (s *InMemoryStore) ListDue(_ context.Context, now time.Time) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Reminder
	for _, r := range s.reminders {
		if r.Status == StatusPending && !r.ScheduledFor.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	return due, nil
}

func (s *InMemoryStore) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reminders {
		if s.reminders[i].ID == id {
			s.reminders[i].Status = StatusSent
			t := sentAt
			s.reminders[i].SentAt = &t
			return nil
		}
	}
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reminder{}, s.reminders...), nil
}
