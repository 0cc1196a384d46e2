package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	txcontext "compliance-gateway/pkg/platform/tx"
)

// PostgresStore persists compliance records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed compliance store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// EnsureSchema creates the compliance_tracking table when missing. The
// original deployment bootstrapped its schema on first request; keeping that
// behaviour makes fresh environments zero-step.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS compliance_tracking (
			id BIGSERIAL PRIMARY KEY,
			account_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			event_name TEXT NOT NULL,
			user_id TEXT NOT NULL,
			course_id TEXT NOT NULL,
			instance_id TEXT NOT NULL DEFAULT '',
			enrollment_source TEXT,
			enrollment_date TIMESTAMPTZ,
			deadline_date TIMESTAMPTZ,
			completion_date TIMESTAMPTZ,
			progress INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'enrolled',
			alerts_sent JSONB NOT NULL DEFAULT '[]',
			raw_event JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (account_id, user_id, course_id, instance_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure compliance_tracking schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (*Record, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT account_id, event_id, event_name, user_id, course_id, instance_id,
		       enrollment_source, enrollment_date, deadline_date, completion_date,
		       progress, status, alerts_sent, raw_event, created_at
		FROM compliance_tracking
		WHERE account_id = $1 AND user_id = $2 AND course_id = $3 AND instance_id = $4
	`, key.AccountID, key.UserID, key.CourseID, key.InstanceID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get compliance record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, key Key, rec *Record) error {
	alerts, err := json.Marshal(rec.AlertsSent)
	if err != nil {
		return fmt.Errorf("marshal alerts_sent: %w", err)
	}
	raw := rec.RawEvent
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO compliance_tracking (
			account_id, event_id, event_name, user_id, course_id, instance_id,
			enrollment_source, enrollment_date, deadline_date, completion_date,
			progress, status, alerts_sent, raw_event, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		ON CONFLICT (account_id, user_id, course_id, instance_id) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			event_name = EXCLUDED.event_name,
			enrollment_source = EXCLUDED.enrollment_source,
			enrollment_date = EXCLUDED.enrollment_date,
			deadline_date = EXCLUDED.deadline_date,
			completion_date = EXCLUDED.completion_date,
			progress = EXCLUDED.progress,
			status = EXCLUDED.status,
			alerts_sent = EXCLUDED.alerts_sent,
			raw_event = EXCLUDED.raw_event
	`,
		key.AccountID, rec.EventID, rec.EventName, key.UserID, key.CourseID, key.InstanceID,
		rec.EnrollmentSource, rec.EnrollmentDate, rec.DeadlineDate, nullTime(rec.CompletionDate),
		rec.Progress, string(rec.Status), alerts, raw,
	)
	if err != nil {
		return fmt.Errorf("upsert compliance record: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, event_id, event_name, user_id, course_id, instance_id,
		       enrollment_source, enrollment_date, deadline_date, completion_date,
		       progress, status, alerts_sent, raw_event, created_at
		FROM compliance_tracking
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list compliance records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compliance record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compliance records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Summarize(ctx context.Context, now time.Time) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status != 'completed' AND deadline_date < $1)
		FROM compliance_tracking
	`, now).Scan(&sum.Total, &sum.Completed, &sum.Overdue)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize compliance records: %w", err)
	}
	return sum, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec        Record
		source     sql.NullString
		completion sql.NullTime
		alerts     []byte
		status     string
	)
	err := row.Scan(
		&rec.AccountID, &rec.EventID, &rec.EventName, &rec.UserID, &rec.CourseID, &rec.InstanceID,
		&source, &rec.EnrollmentDate, &rec.DeadlineDate, &completion,
		&rec.Progress, &status, &alerts, &rec.RawEvent, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.EnrollmentSource = source.String
	rec.Status = Status(status)
	if completion.Valid {
		t := completion.Time
		rec.CompletionDate = &t
	}
	if len(alerts) > 0 {
		_ = json.Unmarshal(alerts, &rec.AlertsSent)
	}
	return &rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
