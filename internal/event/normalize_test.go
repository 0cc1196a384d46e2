package event

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type NormalizerSuite struct {
	suite.Suite
	now        time.Time
	normalizer *Normalizer
	idSeq      int
}

func (s *NormalizerSuite) SetupTest() {
	s.now = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s.idSeq = 0
	s.normalizer = NewNormalizer(
		WithClock(func() time.Time { return s.now }),
		WithIDGenerator(func() string {
			s.idSeq++
			return fmt.Sprintf("gen-%d", s.idSeq)
		}),
	)
}

func TestNormalizerSuite(t *testing.T) {
	suite.Run(t, new(NormalizerSuite))
}

func (s *NormalizerSuite) TestChallengeWinsOverEvents() {
	body := []byte(`{"challenge":"abc","events":[{"eventId":"e1","eventName":"COURSE_ENROLLMENT"}]}`)

	result := s.normalizer.Normalize(body)

	s.True(result.IsChallenge())
	s.Equal("abc", result.Challenge)
	s.Empty(result.Events)
}

func (s *NormalizerSuite) TestBatchForm() {
	body := []byte(`{
		"accountId": "acct-7",
		"events": [
			{"eventId":"e1","eventName":"COURSE_ENROLLMENT","timestamp":1704100000000,"data":{"userId":"u1"}},
			{"eventId":"e2","eventName":"LEARNER_PROGRESS","eventTime":1704100001000,"eventData":{"userId":"u1","progress":40}}
		]
	}`)

	result := s.normalizer.Normalize(body)

	s.False(result.IsChallenge())
	s.Equal("acct-7", result.AccountID)
	require.Len(s.T(), result.Events, 2)

	s.Equal("e1", result.Events[0].ID)
	s.Equal(KindEnrollment, result.Events[0].Kind())
	s.Equal(int64(1704100000000), result.Events[0].TimestampMS)
	s.Equal("u1", result.Events[0].UserID())

	s.Equal("e2", result.Events[1].ID)
	s.Equal(KindProgress, result.Events[1].Kind())
	s.Equal(int64(1704100001000), result.Events[1].TimestampMS)
	s.Equal(40, result.Events[1].Progress())
}

func (s *NormalizerSuite) TestMissingFieldsGetDefaults() {
	body := []byte(`{"events":[{}]}`)

	result := s.normalizer.Normalize(body)

	require.Len(s.T(), result.Events, 1)
	s.Equal("unknown", result.AccountID)
	s.Equal("gen-1", result.Events[0].ID)
	s.Equal(UnknownName, result.Events[0].Name)
	s.Equal(KindUnknown, result.Events[0].Kind())
	s.Equal(s.now.UnixMilli(), result.Events[0].TimestampMS)
	s.NotNil(result.Events[0].Data)
}

func (s *NormalizerSuite) TestDistinctIDsForEventsWithoutIDs() {
	body := []byte(`{"events":[{"eventName":"COURSE_ENROLLMENT"},{"eventName":"COURSE_ENROLLMENT"}]}`)

	result := s.normalizer.Normalize(body)

	require.Len(s.T(), result.Events, 2)
	s.NotEqual(result.Events[0].ID, result.Events[1].ID)
}

func (s *NormalizerSuite) TestLegacyFlattenedForm() {
	body := []byte(`{"eventName":"COURSE_COMPLETION","userId":"u9","loId":"course:42"}`)

	result := s.normalizer.Normalize(body)

	require.Len(s.T(), result.Events, 1)
	s.Equal("unknown", result.AccountID)
	s.Equal(KindCompletion, result.Events[0].Kind())
	s.Equal("u9", result.Events[0].UserID())
	s.Equal("course:42", result.Events[0].CourseID())
}

func (s *NormalizerSuite) TestMalformedBodyYieldsEmpty() {
	for _, body := range [][]byte{
		[]byte(`not json`),
		[]byte(``),
		[]byte(`{}`),
		[]byte(`{"events":[]}`),
	} {
		result := s.normalizer.Normalize(body)
		s.True(result.IsEmpty(), "body %q should normalize to empty", body)
	}
}

func TestKindAliases(t *testing.T) {
	cases := map[string]Kind{
		"COURSE_ENROLLMENT":       KindEnrollment,
		"COURSE_ENROLLMENT_BATCH": KindEnrollment,
		"LEARNER_ENROLLMENT":      KindEnrollment,
		"LEARNER_PROGRESS":        KindProgress,
		"COURSE_PROGRESS":         KindProgress,
		"COURSE_COMPLETION":       KindCompletion,
		"LEARNER_COMPLETION":      KindCompletion,
		"COURSE_UNENROLLMENT":     KindUnenrollment,
		"LEARNER_UNENROLLMENT":    KindUnenrollment,
		"SOMETHING_ELSE":          KindUnknown,
		"":                        KindUnknown,
	}
	for name, want := range cases {
		require.Equal(t, want, KindOf(name), "event name %q", name)
	}
}

func TestRawEventAccessorDefaults(t *testing.T) {
	ev := RawEvent{ID: "e1", Name: "LEARNER_PROGRESS", TimestampMS: 1704100000000, Data: map[string]any{}}

	require.Equal(t, "unknown", ev.UserID())
	require.Equal(t, "unknown", ev.CourseID())
	require.Equal(t, "", ev.InstanceID())
	require.Equal(t, "UNKNOWN", ev.EnrollmentSource())
	require.Equal(t, 0, ev.Progress())
	require.Equal(t, time.UnixMilli(1704100000000).UTC(), ev.Timestamp())
	require.Equal(t, ev.Timestamp(), ev.EnrolledAt())
	require.Equal(t, ev.Timestamp(), ev.CompletedAt())
}

func TestRawEventNumericCoercion(t *testing.T) {
	ev := RawEvent{
		Name:        "COURSE_ENROLLMENT",
		TimestampMS: 1,
		Data: map[string]any{
			"progress":     "55",
			"dateEnrolled": float64(1704067200),
		},
	}

	require.Equal(t, 55, ev.Progress())
	require.Equal(t, time.Unix(1704067200, 0).UTC(), ev.EnrolledAt())
}
