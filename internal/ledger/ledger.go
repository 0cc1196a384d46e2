// Package ledger is the deduplication record of every distinct event
// identifier ever admitted. One row per (account, event) pair; the row doubles
// as the raw-event audit trail.
package ledger

import (
	"context"
	"time"
)

// Envelope is one ledger row. Processed flips true only after the state
// machine ran for the event, so unprocessed rows are visible failure state.
type Envelope struct {
	AccountID  string    `json:"account_id"`
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	EventTime  time.Time `json:"event_timestamp"`
	EventInfo  string    `json:"event_info,omitempty"`
	RawPayload []byte    `json:"raw_payload,omitempty"`
	Processed  bool      `json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the dedup gate and event audit log.
//
// Admit inserts the envelope if no row exists for (AccountID, EventID) and
// reports whether the event was admitted. The insert must be atomic with
// respect to concurrent duplicate deliveries: a losing insert is "already
// admitted", never an error.
type Store interface {
	Admit(ctx context.Context, env Envelope) (bool, error)
	MarkProcessed(ctx context.Context, accountID, eventID string) error
	ListRecent(ctx context.Context, limit int) ([]Envelope, error)
}
