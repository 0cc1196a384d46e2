package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// reminderOffsets are the days-before-deadline tiers, most distant first.
var reminderOffsets = []int{7, 3, 1}

// Scheduler derives reminder entries from enrollments and cancels them in
// bulk. The phone derivation is injected: the default synthesizes a stable
// demo number from the user ID, and a production deploy swaps in a directory
// lookup without touching the scheduling contract.
type Scheduler struct {
	store        Store
	deadlineDays int
	phoneFor     func(userID string) string
	newID        func() string
	now          func() time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithPhoneDerivation overrides how a user ID resolves to a target number.
func WithPhoneDerivation(phoneFor func(userID string) string) SchedulerOption {
	return func(s *Scheduler) { s.phoneFor = phoneFor }
}

// WithIDGenerator overrides reminder ID generation.
func WithIDGenerator(newID func() string) SchedulerOption {
	return func(s *Scheduler) { s.newID = newID }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler builds a Scheduler over the given queue store.
func NewScheduler(store Store, deadlineDays int, opts ...SchedulerOption) *Scheduler {
	if deadlineDays <= 0 {
		deadlineDays = 30
	}
	s := &Scheduler{
		store:        store,
		deadlineDays: deadlineDays,
		phoneFor:     DerivePhone,
		newID:        uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DerivePhone synthesizes a stable demo contact number from a user ID: a
// one-way hash truncated to seven digits behind a fixed prefix. Placeholder
// contact resolution only; see WithPhoneDerivation.
func DerivePhone(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return "+1555" + hex.EncodeToString(sum[:])[:7]
}

// Schedule creates the tiered reminder entries for one enrollment: for each
// offset, a reminder at enrolledAt + (deadline − offset) days with an
// urgency-matched message.
func (s *Scheduler) Schedule(ctx context.Context, userID, courseID string, enrolledAt time.Time) ([]Reminder, error) {
	phone := s.phoneFor(userID)
	created := s.now().UTC()

	reminders := make([]Reminder, 0, len(reminderOffsets))
	for _, offset := range reminderOffsets {
		reminders = append(reminders, Reminder{
			ID:           s.newID(),
			Phone:        phone,
			Message:      reminderMessage(userID, courseID, offset),
			ScheduledFor: enrolledAt.AddDate(0, 0, s.deadlineDays-offset),
			Status:       StatusPending,
			CreatedAt:    created,
		})
	}
	if err := s.store.Add(ctx, reminders...); err != nil {
		return nil, fmt.Errorf("schedule reminders: %w", err)
	}
	return reminders, nil
}

// CancelAll cancels every pending reminder targeting the given user and
// returns the count. Matching goes through the same phone derivation used at
// scheduling time; entries already sent stay sent.
func (s *Scheduler) CancelAll(ctx context.Context, userID string) (int, error) {
	n, err := s.store.CancelPending(ctx, s.phoneFor(userID))
	if err != nil {
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}
	return n, nil
}

// reminderMessage picks the message tier for an offset. The default arm only
// fires for offsets outside the fixed 7/3/1 set, kept for when the tiers
// become configurable.
func reminderMessage(userID, courseID string, daysBefore int) string {
	switch daysBefore {
	case 7:
		return fmt.Sprintf("Reminder: User %s has 7 days to complete compliance training (%s)", userID, courseID)
	case 3:
		return fmt.Sprintf("URGENT: User %s has 3 days left for compliance training (%s)", userID, courseID)
	case 1:
		return fmt.Sprintf("FINAL WARNING: User %s must complete training by tomorrow! (%s)", userID, courseID)
	default:
		return fmt.Sprintf("Compliance reminder for User %s (%s)", userID, courseID)
	}
}
