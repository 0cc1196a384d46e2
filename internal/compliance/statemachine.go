package compliance

import (
	"fmt"
	"time"

	"compliance-gateway/internal/event"
	dErrors "compliance-gateway/pkg/domain-errors"
)

// CommandKind tells the processor what the scheduler must do after a
// transition is persisted.
type CommandKind string

const (
	CommandSchedule  CommandKind = "schedule"
	CommandCancelAll CommandKind = "cancel_all"
)

// Command is a scheduler side effect emitted by the state machine. The
// machine itself never touches the notification queue; keeping side effects
// as data makes transitions pure and testable.
type Command struct {
	Kind       CommandKind
	UserID     string
	CourseID   string
	EnrolledAt time.Time
}

// Outcome reports what applying one event did. Record is nil when nothing was
// created or mutated. Err carries the domain code for rejected events
// (invalid transition, unknown kind, missing record); the event is still
// acknowledged upstream.
type Outcome struct {
	Record   *Record
	Commands []Command
	Note     string
	Err      error
}

// Machine applies normalized events to compliance records. It is pure: the
// caller loads the current record, Apply computes the next one plus scheduler
// commands, and the caller persists both.
type Machine struct {
	deadlineDays int
}

// NewMachine builds a Machine with the given deadline policy in days.
func NewMachine(deadlineDays int) *Machine {
	if deadlineDays <= 0 {
		deadlineDays = 30
	}
	return &Machine{deadlineDays: deadlineDays}
}

// DeadlineFor returns the fixed completion deadline for an enrollment date.
func (m *Machine) DeadlineFor(enrolledAt time.Time) time.Time {
	return enrolledAt.AddDate(0, 0, m.deadlineDays)
}

// Apply computes the transition for one event. rec is the current record for
// the event's compliance key, or nil when none exists. Missing dates default
// to the event's own timestamp, which the normalizer has already pinned.
func (m *Machine) Apply(rec *Record, accountID string, ev event.RawEvent) Outcome {
	switch ev.Kind() {
	case event.KindEnrollment:
		return m.applyEnrollment(accountID, ev)
	case event.KindProgress:
		return m.applyProgress(rec, ev)
	case event.KindCompletion:
		return m.applyCompletion(rec, ev)
	case event.KindUnenrollment:
		return m.applyUnenrollment(rec, ev)
	default:
		return Outcome{
			Note: fmt.Sprintf("unknown event type: %s", ev.Name),
			Err:  dErrors.New(dErrors.CodeUnknownEvent, fmt.Sprintf("no transition for event name %q", ev.Name)),
		}
	}
}

// applyEnrollment creates a fresh record, replacing any existing one for the
// key. Re-enrollment is a modeled upsert, not a transition out of a terminal
// state: prior enrollment metadata is overwritten wholesale.
func (m *Machine) applyEnrollment(accountID string, ev event.RawEvent) Outcome {
	enrolledAt := ev.EnrolledAt()
	rec := &Record{
		AccountID:        accountID,
		UserID:           ev.UserID(),
		CourseID:         ev.CourseID(),
		InstanceID:       ev.InstanceID(),
		EventID:          ev.ID,
		EventName:        ev.Name,
		EnrollmentSource: ev.EnrollmentSource(),
		EnrollmentDate:   enrolledAt,
		DeadlineDate:     m.DeadlineFor(enrolledAt),
		Progress:         0,
		Status:           StatusEnrolled,
		RawEvent:         ev.RawJSON(),
	}
	return Outcome{
		Record: rec,
		Commands: []Command{{
			Kind:       CommandSchedule,
			UserID:     rec.UserID,
			CourseID:   rec.CourseID,
			EnrolledAt: enrolledAt,
		}},
		Note: fmt.Sprintf("ENROLLED: User %s in course %s (Instance: %s). Source: %s. Deadline: %s",
			rec.UserID, rec.CourseID, rec.InstanceID, rec.EnrollmentSource,
			rec.DeadlineDate.Format(time.DateTime)),
	}
}

func (m *Machine) applyProgress(rec *Record, ev event.RawEvent) Outcome {
	if rec == nil {
		return Outcome{
			Note: fmt.Sprintf("PROGRESS for unknown record: user %s course %s", ev.UserID(), ev.CourseID()),
			Err:  dErrors.New(dErrors.CodeNotFound, "progress event without enrollment"),
		}
	}

	progress := clamp(ev.Progress())
	next := *rec
	next.Progress = progress
	// Completed and unenrolled are sticky against late progress updates.
	if !next.Status.Terminal() {
		next.Status = StatusInProgress
	}
	return Outcome{
		Record: &next,
		Note:   fmt.Sprintf("PROGRESS: User %s at %d%% for course %s", next.UserID, progress, next.CourseID),
	}
}

func (m *Machine) applyCompletion(rec *Record, ev event.RawEvent) Outcome {
	if rec == nil {
		return Outcome{
			Note: fmt.Sprintf("COMPLETION for unknown record: user %s course %s", ev.UserID(), ev.CourseID()),
			Err:  dErrors.New(dErrors.CodeNotFound, "completion event without enrollment"),
		}
	}

	completedAt := ev.CompletedAt()
	next := *rec
	next.Status = StatusCompleted
	next.Progress = 100
	next.CompletionDate = &completedAt
	return Outcome{
		Record: &next,
		Commands: []Command{{
			Kind:     CommandCancelAll,
			UserID:   next.UserID,
			CourseID: next.CourseID,
		}},
		Note: fmt.Sprintf("COMPLETED: User %s completed course %s", next.UserID, next.CourseID),
	}
}

func (m *Machine) applyUnenrollment(rec *Record, ev event.RawEvent) Outcome {
	if rec == nil {
		return Outcome{
			Note: fmt.Sprintf("UNENROLLMENT for unknown record: user %s course %s", ev.UserID(), ev.CourseID()),
			Err:  dErrors.New(dErrors.CodeNotFound, "unenrollment event without enrollment"),
		}
	}
	if rec.Status == StatusCompleted {
		return Outcome{
			Note: fmt.Sprintf("REJECTED: unenrollment after completion for user %s course %s", rec.UserID, rec.CourseID),
			Err:  dErrors.New(dErrors.CodeInvalidTransition, "cannot unenroll a completed record"),
		}
	}

	next := *rec
	next.Status = StatusUnenrolled
	return Outcome{
		Record: &next,
		Commands: []Command{{
			Kind:     CommandCancelAll,
			UserID:   next.UserID,
			CourseID: next.CourseID,
		}},
		Note: fmt.Sprintf("UNENROLLED: User %s from course %s", next.UserID, next.CourseID),
	}
}

// clamp bounds a reported percentage to [0,100]. Out-of-range input is data
// noise from the platform, not an error.
func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
