package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"compliance-gateway/internal/activity"
	"compliance-gateway/internal/compliance"
	"compliance-gateway/internal/event"
	"compliance-gateway/internal/keylock"
	"compliance-gateway/internal/ledger"
	"compliance-gateway/internal/notify"
	"compliance-gateway/internal/platform/metrics"
	"compliance-gateway/internal/stream"
	dErrors "compliance-gateway/pkg/domain-errors"
)

const testSecret = "test-secret"

type capturePublisher struct {
	messages []stream.Message
}

func (c *capturePublisher) Publish(_ context.Context, msg stream.Message) error {
	c.messages = append(c.messages, msg)
	return nil
}

type ProcessorSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	records   *compliance.InMemoryStore
	events    *ledger.InMemoryStore
	reminders *notify.InMemoryStore
	trail     *activity.InMemorySink
	publisher *capturePublisher
	processor *Processor
}

func (s *ProcessorSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.records = compliance.NewInMemoryStore()
	s.events = ledger.NewInMemoryStore()
	s.reminders = notify.NewInMemoryStore()
	s.trail = activity.NewInMemorySink()
	s.publisher = &capturePublisher{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.processor = NewProcessor(
		NewSignatureValidator(testSecret, false),
		event.NewNormalizer(event.WithClock(func() time.Time { return s.now })),
		compliance.NewMachine(30),
		s.records,
		s.events,
		notify.NewScheduler(s.reminders, 30, notify.WithClock(func() time.Time { return s.now })),
		keylock.NewMemory(),
		s.trail,
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
		WithPublisher(s.publisher),
	)
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}

func (s *ProcessorSuite) payload(events ...map[string]any) []byte {
	body, err := json.Marshal(map[string]any{"accountId": "acct-1", "events": events})
	require.NoError(s.T(), err)
	return body
}

func (s *ProcessorSuite) process(body []byte) Receipt {
	receipt, err := s.processor.Process(s.ctx, body, sign(testSecret, body))
	require.NoError(s.T(), err)
	return receipt
}

func enrollEvent(id string) map[string]any {
	return map[string]any{
		"eventId":   id,
		"eventName": "COURSE_ENROLLMENT",
		"timestamp": 1704100000000,
		"data": map[string]any{
			"userId":           "u1",
			"loId":             "course:101",
			"enrollmentSource": "ADMIN_ENROLL",
			"dateEnrolled":     1704100000,
		},
	}
}

func (s *ProcessorSuite) TestEnrollmentLifecycle() {
	receipt := s.process(s.payload(enrollEvent("e1")))
	s.Equal(Receipt{Admitted: 1}, receipt)

	key := compliance.Key{AccountID: "acct-1", UserID: "u1", CourseID: "course:101"}
	rec, err := s.records.Get(s.ctx, key)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), rec)
	s.Equal(compliance.StatusEnrolled, rec.Status)
	s.Equal(rec.EnrollmentDate.AddDate(0, 0, 30), rec.DeadlineDate)

	queued, err := s.reminders.List(s.ctx)
	require.NoError(s.T(), err)
	s.Len(queued, 3)

	recent, err := s.events.ListRecent(s.ctx, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), recent, 1)
	s.True(recent[0].Processed)

	require.Len(s.T(), s.publisher.messages, 1)
	s.Equal("enrolled", s.publisher.messages[0].Status)

	// Progress moves the record forward.
	receipt = s.process(s.payload(map[string]any{
		"eventId":   "e2",
		"eventName": "LEARNER_PROGRESS",
		"timestamp": 1704200000000,
		"data":      map[string]any{"userId": "u1", "loId": "course:101", "progress": 60},
	}))
	s.Equal(Receipt{Admitted: 1}, receipt)

	rec, err = s.records.Get(s.ctx, key)
	require.NoError(s.T(), err)
	s.Equal(compliance.StatusInProgress, rec.Status)
	s.Equal(60, rec.Progress)

	// Completion finishes it and cancels the pending reminders.
	receipt = s.process(s.payload(map[string]any{
		"eventId":   "e3",
		"eventName": "COURSE_COMPLETION",
		"timestamp": 1704300000000,
		"data":      map[string]any{"userId": "u1", "loId": "course:101", "dateCompleted": 1704300000},
	}))
	s.Equal(Receipt{Admitted: 1}, receipt)

	rec, err = s.records.Get(s.ctx, key)
	require.NoError(s.T(), err)
	s.Equal(compliance.StatusCompleted, rec.Status)
	s.Equal(100, rec.Progress)
	require.NotNil(s.T(), rec.CompletionDate)

	queued, err = s.reminders.List(s.ctx)
	require.NoError(s.T(), err)
	for _, rem := range queued {
		s.Equal(notify.StatusCancelled, rem.Status)
	}
}

func (s *ProcessorSuite) TestDuplicateDeliveryIsNoOp() {
	s.process(s.payload(enrollEvent("e1")))

	key := compliance.Key{AccountID: "acct-1", UserID: "u1", CourseID: "course:101"}
	before, err := s.records.Get(s.ctx, key)
	require.NoError(s.T(), err)

	receipt := s.process(s.payload(enrollEvent("e1")))
	s.Equal(Receipt{Duplicates: 1}, receipt)

	after, err := s.records.Get(s.ctx, key)
	require.NoError(s.T(), err)
	s.Equal(before, after)

	// No extra reminders were scheduled.
	queued, err := s.reminders.List(s.ctx)
	require.NoError(s.T(), err)
	s.Len(queued, 3)
}

func (s *ProcessorSuite) TestChallengeWritesNothing() {
	body := []byte(`{"challenge":"verify-me","events":[{"eventId":"e1","eventName":"COURSE_ENROLLMENT"}]}`)

	receipt, err := s.processor.Process(s.ctx, body, sign(testSecret, body))
	require.NoError(s.T(), err)
	s.Equal("verify-me", receipt.Challenge)
	s.Zero(receipt.Admitted)

	recent, err := s.events.ListRecent(s.ctx, 10)
	require.NoError(s.T(), err)
	s.Empty(recent)

	recs, err := s.records.List(s.ctx)
	require.NoError(s.T(), err)
	s.Empty(recs)
}

func (s *ProcessorSuite) TestSignatureRejection() {
	body := s.payload(enrollEvent("e1"))

	_, err := s.processor.Process(s.ctx, body, "forged")
	s.True(dErrors.Is(err, dErrors.CodeSignatureMismatch))

	recent, lerr := s.events.ListRecent(s.ctx, 10)
	require.NoError(s.T(), lerr)
	s.Empty(recent)
}

func (s *ProcessorSuite) TestProgressWithoutEnrollmentIsAnomalous() {
	receipt := s.process(s.payload(map[string]any{
		"eventId":   "e1",
		"eventName": "LEARNER_PROGRESS",
		"timestamp": 1704100000000,
		"data":      map[string]any{"userId": "ghost", "loId": "course:101", "progress": 50},
	}))
	s.Equal(Receipt{Anomalies: 1}, receipt)

	// The delivery is still on the ledger, unprocessed, for audit.
	recent, err := s.events.ListRecent(s.ctx, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), recent, 1)
	s.False(recent[0].Processed)
}

func (s *ProcessorSuite) TestUnenrollmentAfterCompletionRejected() {
	s.process(s.payload(enrollEvent("e1")))
	s.process(s.payload(map[string]any{
		"eventId":   "e2",
		"eventName": "COURSE_COMPLETION",
		"timestamp": 1704200000000,
		"data":      map[string]any{"userId": "u1", "loId": "course:101"},
	}))

	receipt := s.process(s.payload(map[string]any{
		"eventId":   "e3",
		"eventName": "COURSE_UNENROLLMENT",
		"timestamp": 1704300000000,
		"data":      map[string]any{"userId": "u1", "loId": "course:101"},
	}))
	s.Equal(Receipt{Anomalies: 1}, receipt)

	rec, err := s.records.Get(s.ctx, compliance.Key{AccountID: "acct-1", UserID: "u1", CourseID: "course:101"})
	require.NoError(s.T(), err)
	s.Equal(compliance.StatusCompleted, rec.Status)

	s.Contains(fmt.Sprint(s.trail.Messages()), "REJECTED")
}

func (s *ProcessorSuite) TestBatchOrderingWithinPayload() {
	receipt := s.process(s.payload(
		enrollEvent("e1"),
		map[string]any{
			"eventId":   "e2",
			"eventName": "LEARNER_PROGRESS",
			"timestamp": 1704100001000,
			"data":      map[string]any{"userId": "u1", "loId": "course:101", "progress": 30},
		},
		map[string]any{
			"eventId":   "e3",
			"eventName": "COURSE_COMPLETION",
			"timestamp": 1704100002000,
			"data":      map[string]any{"userId": "u1", "loId": "course:101"},
		},
	))
	s.Equal(Receipt{Admitted: 3}, receipt)

	rec, err := s.records.Get(s.ctx, compliance.Key{AccountID: "acct-1", UserID: "u1", CourseID: "course:101"})
	require.NoError(s.T(), err)
	s.Equal(compliance.StatusCompleted, rec.Status)

	require.Len(s.T(), s.publisher.messages, 3)
	s.Equal("enrolled", s.publisher.messages[0].Status)
	s.Equal("in_progress", s.publisher.messages[1].Status)
	s.Equal("completed", s.publisher.messages[2].Status)
}

func TestRawPayloadLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	processor := NewProcessor(
		NewSignatureValidator(testSecret, false),
		event.NewNormalizer(),
		compliance.NewMachine(30),
		compliance.NewInMemoryStore(),
		ledger.NewInMemoryStore(),
		notify.NewScheduler(notify.NewInMemoryStore(), 30),
		keylock.NewMemory(),
		activity.NewInMemorySink(),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
	)

	// Malformed payloads produce no events but their content must still be
	// on record.
	body := []byte(`{"unexpected":"forensic-marker"}`)
	_, err := processor.Process(context.Background(), body, sign(testSecret, body))
	require.NoError(t, err)
	require.Contains(t, buf.String(), "raw payload received")
	require.Contains(t, buf.String(), "forensic-marker")

	// Challenge handshakes are recorded too.
	buf.Reset()
	body = []byte(`{"challenge":"challenge-marker"}`)
	_, err = processor.Process(context.Background(), body, sign(testSecret, body))
	require.NoError(t, err)
	require.Contains(t, buf.String(), "challenge-marker")

	// Unauthenticated bodies are not.
	buf.Reset()
	_, err = processor.Process(context.Background(), []byte(`{"x":"rejected-marker"}`), "forged")
	require.Error(t, err)
	require.NotContains(t, buf.String(), "rejected-marker")
}

func (s *ProcessorSuite) TestUnknownEventKindIsAnomalous() {
	receipt := s.process(s.payload(map[string]any{
		"eventId":   "e1",
		"eventName": "COURSE_RATED",
		"timestamp": 1704100000000,
		"data":      map[string]any{"userId": "u1", "loId": "course:101"},
	}))
	s.Equal(Receipt{Anomalies: 1}, receipt)
	s.Contains(fmt.Sprint(s.trail.Messages()), "unknown event type")
}
