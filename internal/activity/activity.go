// Package activity is the append-only human-readable audit trail: one
// timestamped line per significant processing action (admission, transition,
// scheduling, anomaly).
package activity

import (
	"context"
	"sync"
	"time"
)

// Sink appends one entry to the trail. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(ctx context.Context, message string) error
}

// Entry pairs a message with the time it was recorded.
type Entry struct {
	At      time.Time
	Message string
}

// InMemorySink collects entries for tests and assertions.
type InMemorySink struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func NewInMemorySink() *InMemorySink {
	return &InMemorySink{now: time.Now}
}

func (s *InMemorySink) Append(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{At: s.now().UTC(), Message: message})
	return nil
}

// Entries returns a copy of everything appended so far.
func (s *InMemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry{}, s.entries...)
}

// Messages returns just the message lines, in append order.
func (s *InMemorySink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Message
	}
	return out
}
