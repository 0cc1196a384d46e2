// Package compliance owns the per-learner training compliance records and the
// state machine that mutates them.
package compliance

import (
	"math"
	"time"
)

// Status is the lifecycle state of one compliance record. Status only moves
// forward: completed and unenrolled are terminal, and unenrolled is reachable
// from any non-terminal state.
type Status string

const (
	StatusEnrolled   Status = "enrolled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusUnenrolled Status = "unenrolled"
)

// Terminal reports whether no further transitions are allowed from s, apart
// from idempotent re-enrollment which replaces the record outright.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusUnenrolled
}

// Key identifies one compliance record. InstanceID participates only when the
// deploy opts in; the upstream platform is ambiguous about whether progress
// events distinguish concurrent course instances.
type Key struct {
	AccountID  string
	UserID     string
	CourseID   string
	InstanceID string
}

// Record is the durable compliance state for one (account, user, course)
// tuple. Records are created by enrollment events and soft-terminated by
// completion or unenrollment; they are never physically deleted.
type Record struct {
	AccountID        string
	UserID           string
	CourseID         string
	InstanceID       string
	EventID          string
	EventName        string
	EnrollmentSource string
	EnrollmentDate   time.Time
	// DeadlineDate is fixed at enrollment time and never recomputed.
	DeadlineDate   time.Time
	CompletionDate *time.Time
	Progress       int
	Status         Status
	AlertsSent     []string
	RawEvent       []byte
	CreatedAt      time.Time
}

// DaysLeft is the whole days remaining until the deadline, evaluated at read
// time and never stored. Floor semantics: an overdue record reads negative
// even when less than a day past the deadline.
func (r Record) DaysLeft(now time.Time) int {
	return int(math.Floor(r.DeadlineDate.Sub(now).Hours() / 24))
}

// Summary aggregates the dashboard counters.
type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}
