package ledger

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "compliance-gateway/pkg/platform/tx"
)

// PostgresStore persists the event ledger in PostgreSQL. The unique
// constraint on (account_id, event_id) is what makes Admit atomic under
// concurrent duplicate deliveries.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger.
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

// EnsureSchema creates the webhook_events table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS webhook_events (
			id BIGSERIAL PRIMARY KEY,
			account_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			event_name TEXT NOT NULL,
			event_timestamp TIMESTAMPTZ,
			event_info TEXT,
			raw_payload JSONB,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (account_id, event_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure webhook_events schema: %w", err)
	}
	return nil
}

// Admit inserts the envelope, reporting false when the (account, event) pair
// was already admitted. ON CONFLICT DO NOTHING keeps the losing insert of a
// concurrent duplicate delivery from surfacing as an error.
func (s *PostgresStore) Admit(ctx context.Context, env Envelope) (bool, error) {
	raw := env.RawPayload
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO webhook_events (account_id, event_id, event_name, event_timestamp, event_info, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, event_id) DO NOTHING
	`, env.AccountID, env.EventID, env.EventName, env.EventTime, env.EventInfo, raw)
	if err != nil {
		return false, fmt.Errorf("admit event: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("admit event rows affected: %w", err)
	}
	return inserted == 1, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, accountID, eventID string) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE webhook_events SET processed = TRUE
		WHERE account_id = $1 AND event_id = $2
	`, accountID, eventID)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Envelope, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, event_id, event_name, event_timestamp, COALESCE(event_info, ''),
		       raw_payload, processed, created_at
		FROM webhook_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	defer rows.Close()

	var envelopes []Envelope
	for rows.Next() {
		var env Envelope
		var eventTime sql.NullTime
		if err := rows.Scan(&env.AccountID, &env.EventID, &env.EventName, &eventTime,
			&env.EventInfo, &env.RawPayload, &env.Processed, &env.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event envelope: %w", err)
		}
		env.EventTime = eventTime.Time
		envelopes = append(envelopes, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event envelopes: %w", err)
	}
	return envelopes, nil
}
