package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	txcontext "compliance-gateway/pkg/platform/tx"
)

// PostgresStore persists the reminder queue in PostgreSQL (sms_queue).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed reminder queue.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// EnsureSchema creates the sms_queue table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sms_queue (
			id TEXT PRIMARY KEY,
			phone TEXT NOT NULL,
			message TEXT NOT NULL,
			scheduled_for TIMESTAMPTZ NOT NULL,
			sent_at TIMESTAMPTZ,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure sms_queue schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Add(ctx context.Context, reminders ...Reminder) error {
	for _, r := range reminders {
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO sms_queue (id, phone, message, scheduled_for, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, r.ID, r.Phone, r.Message, r.ScheduledFor, string(r.Status), r.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert reminder: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CancelPending(ctx context.Context, phone string) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE sms_queue SET status = 'cancelled'
		WHERE phone = $1 AND status = 'pending'
	`, phone)
	if err != nil {
		return 0, fmt.Errorf("cancel pending reminders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel pending rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) ListDue(ctx context.Context, now time.Time) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, message, scheduled_for, sent_at, status, created_at
		FROM sms_queue
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *PostgresStore) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE sms_queue SET status = 'sent', sent_at = $2 WHERE id = $1
	`, id, sentAt)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone, message, scheduled_for, sent_at, status, created_at
		FROM sms_queue
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	var reminders []Reminder
	for rows.Next() {
		var (
			r      Reminder
			sentAt sql.NullTime
			status string
		)
		if err := rows.Scan(&r.ID, &r.Phone, &r.Message, &r.ScheduledFor, &sentAt, &status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.Status = ReminderStatus(status)
		if sentAt.Valid {
			t := sentAt.Time
			r.SentAt = &t
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return reminders, nil
}
