//go:build integration

package compliance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"compliance-gateway/internal/compliance"
	"compliance-gateway/pkg/testutil/containers"
)

type PostgresRecordSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *compliance.PostgresStore
}

func TestPostgresRecordSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRecordSuite))
}

func (s *PostgresRecordSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = compliance.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresRecordSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "compliance_tracking"))
}

func (s *PostgresRecordSuite) record(userID string, status compliance.Status) (compliance.Key, *compliance.Record) {
	enrolled := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	key := compliance.Key{AccountID: "acct-1", UserID: userID, CourseID: "course:101"}
	return key, &compliance.Record{
		AccountID:        key.AccountID,
		UserID:           key.UserID,
		CourseID:         key.CourseID,
		EventID:          "e1",
		EventName:        "COURSE_ENROLLMENT",
		EnrollmentSource: "ADMIN_ENROLL",
		EnrollmentDate:   enrolled,
		DeadlineDate:     enrolled.AddDate(0, 0, 30),
		Status:           status,
		RawEvent:         []byte(`{"userId":"u1"}`),
	}
}

func (s *PostgresRecordSuite) TestGetMissingReturnsNil() {
	rec, err := s.store.Get(context.Background(), compliance.Key{AccountID: "a", UserID: "u", CourseID: "c"})
	s.Require().NoError(err)
	s.Nil(rec)
}

func (s *PostgresRecordSuite) TestUpsertRoundTrip() {
	ctx := context.Background()
	key, rec := s.record("u1", compliance.StatusEnrolled)

	s.Require().NoError(s.store.Upsert(ctx, key, rec))

	loaded, err := s.store.Get(ctx, key)
	s.Require().NoError(err)
	s.Require().NotNil(loaded)
	s.Equal(compliance.StatusEnrolled, loaded.Status)
	s.Equal("ADMIN_ENROLL", loaded.EnrollmentSource)
	s.True(loaded.DeadlineDate.Equal(rec.DeadlineDate))
	s.Nil(loaded.CompletionDate)

	// Second upsert on the same key replaces, not duplicates.
	completed := time.Date(2024, 1, 20, 16, 0, 0, 0, time.UTC)
	rec.Status = compliance.StatusCompleted
	rec.Progress = 100
	rec.CompletionDate = &completed
	s.Require().NoError(s.store.Upsert(ctx, key, rec))

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(compliance.StatusCompleted, all[0].Status)
	s.Require().NotNil(all[0].CompletionDate)
	s.True(all[0].CompletionDate.Equal(completed))
}

func (s *PostgresRecordSuite) TestSummarize() {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	key1, rec1 := s.record("u1", compliance.StatusCompleted)
	s.Require().NoError(s.store.Upsert(ctx, key1, rec1))

	// Overdue: deadline long before now, not completed.
	key2, rec2 := s.record("u2", compliance.StatusInProgress)
	s.Require().NoError(s.store.Upsert(ctx, key2, rec2))

	// Still in the window.
	key3, rec3 := s.record("u3", compliance.StatusEnrolled)
	rec3.DeadlineDate = now.AddDate(0, 0, 10)
	s.Require().NoError(s.store.Upsert(ctx, key3, rec3))

	sum, err := s.store.Summarize(ctx, now)
	s.Require().NoError(err)
	s.Equal(compliance.Summary{Total: 3, Completed: 1, Overdue: 1}, sum)
}
