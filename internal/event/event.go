// Package event defines the canonical form of webhook events and the
// normalizer that produces it. All payload-dialect knowledge (field aliases,
// batch vs. legacy single-event shape, defaulting) lives here so the state
// machine only ever sees one event shape.
package event

import (
	"encoding/json"
	"strconv"
	"time"
)

// Kind is the closed classification of external event names. The upstream
// platform emits several names per logical action; the alias table collapses
// them so dispatch stays exhaustive and "unknown" is a single fallback arm.
type Kind string

const (
	KindEnrollment   Kind = "enrollment"
	KindProgress     Kind = "progress"
	KindCompletion   Kind = "completion"
	KindUnenrollment Kind = "unenrollment"
	KindUnknown      Kind = "unknown"
)

// kindAliases maps external event names to canonical kinds.
var kindAliases = map[string]Kind{
	"COURSE_ENROLLMENT":       KindEnrollment,
	"COURSE_ENROLLMENT_BATCH": KindEnrollment,
	"LEARNER_ENROLLMENT":      KindEnrollment,
	"LEARNER_PROGRESS":        KindProgress,
	"COURSE_PROGRESS":         KindProgress,
	"COURSE_COMPLETION":       KindCompletion,
	"LEARNER_COMPLETION":      KindCompletion,
	"COURSE_UNENROLLMENT":     KindUnenrollment,
	"LEARNER_UNENROLLMENT":    KindUnenrollment,
}

// KindOf classifies an external event name. Unrecognized names map to
// KindUnknown; the original name stays on the RawEvent for audit.
func KindOf(name string) Kind {
	if k, ok := kindAliases[name]; ok {
		return k
	}
	return KindUnknown
}

// UnknownName is the sentinel event name for payloads that omit one.
const UnknownName = "UNKNOWN"

// RawEvent is one normalized webhook event. Immutable once parsed; the Data
// map is the platform's payload snapshot and is persisted verbatim in the
// ledger.
type RawEvent struct {
	ID          string
	Name        string
	TimestampMS int64
	Info        string
	Data        map[string]any
}

// Kind returns the canonical classification of this event.
func (e RawEvent) Kind() Kind {
	return KindOf(e.Name)
}

// Timestamp returns the event time in UTC.
func (e RawEvent) Timestamp() time.Time {
	return time.UnixMilli(e.TimestampMS).UTC()
}

// RawJSON marshals the payload snapshot for ledger storage.
func (e RawEvent) RawJSON() []byte {
	b, err := json.Marshal(e.Data)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// UserID extracts the learner identifier. Defaults to "unknown" like the
// upstream platform does, so malformed events still produce auditable rows.
func (e RawEvent) UserID() string {
	return e.str("userId", "unknown")
}

// CourseID extracts the learning-object identifier, accepting both dialect
// spellings.
func (e RawEvent) CourseID() string {
	if v, ok := e.lookup("loId"); ok {
		return v
	}
	return e.str("learningObjectId", "unknown")
}

// InstanceID extracts the course-instance identifier, empty when absent.
func (e RawEvent) InstanceID() string {
	return e.str("loInstanceId", "")
}

// EnrollmentSource reports how the learner was enrolled.
func (e RawEvent) EnrollmentSource() string {
	return e.str("enrollmentSource", "UNKNOWN")
}

// Progress extracts the reported completion percentage, accepting both
// dialect spellings. Range enforcement is the state machine's job.
func (e RawEvent) Progress() int {
	if v, ok := e.num("progress"); ok {
		return v
	}
	if v, ok := e.num("percentComplete"); ok {
		return v
	}
	return 0
}

// EnrolledAt extracts the enrollment time (epoch seconds in the payload),
// falling back to the event's own timestamp when absent.
func (e RawEvent) EnrolledAt() time.Time {
	if v, ok := e.num64("dateEnrolled"); ok {
		return time.Unix(v, 0).UTC()
	}
	return e.Timestamp()
}

// CompletedAt extracts the completion time, falling back to the event's own
// timestamp when absent.
func (e RawEvent) CompletedAt() time.Time {
	if v, ok := e.num64("dateCompleted"); ok {
		return time.Unix(v, 0).UTC()
	}
	return e.Timestamp()
}

func (e RawEvent) lookup(key string) (string, bool) {
	if v, ok := e.Data[key].(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func (e RawEvent) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e RawEvent) num(key string) (int, bool) {
	v, ok := e.num64(key)
	return int(v), ok
}

// num64 reads a numeric payload field. encoding/json decodes numbers into
// float64; some platform dialects quote them as strings.
func (e RawEvent) num64(key string) (int64, bool) {
	switch v := e.Data[key].(type) {
	case float64:
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
