// Package notify owns the reminder queue derived from enrollments: three
// tiered reminders ahead of the completion deadline, cancelled in bulk when
// the learner completes or unenrolls. Actual delivery is a collaborator
// behind the Sender interface; this core only schedules.
package notify

import (
	"context"
	"time"
)

// ReminderStatus is the lifecycle of one queue entry.
type ReminderStatus string

const (
	StatusPending   ReminderStatus = "pending"
	StatusSent      ReminderStatus = "sent"
	StatusCancelled ReminderStatus = "cancelled"
)

// Reminder is one row of the notification queue (sms_queue).
type Reminder struct {
	ID           string         `json:"id"`
	Phone        string         `json:"phone"`
	Message      string         `json:"message"`
	ScheduledFor time.Time      `json:"scheduled_for"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	Status       ReminderStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Store is the durable reminder queue.
//
// CancelPending marks every pending entry for the given phone cancelled and
// returns the count; sent entries are untouched. ListDue returns pending
// entries whose scheduled time has passed.
type Store interface {
	Add(ctx context.Context, reminders ...Reminder) error
	CancelPending(ctx context.Context, phone string) (int, error)
	ListDue(ctx context.Context, now time.Time) ([]Reminder, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	List(ctx context.Context) ([]Reminder, error)
}

// Sender delivers a reminder. Delivery is out of scope for the gateway; the
// default implementation only logs.
type Sender interface {
	Send(ctx context.Context, reminder Reminder) error
}
