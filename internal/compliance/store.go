package compliance

import (
	"context"
	"time"
)

// Store is the durable repository for compliance records. Get returns
// (nil, nil) when no record exists for the key; Upsert replaces any existing
// record for the same key.
type Store interface {
	Get(ctx context.Context, key Key) (*Record, error)
	Upsert(ctx context.Context, key Key, rec *Record) error
	List(ctx context.Context) ([]*Record, error)
	Summarize(ctx context.Context, now time.Time) (Summary, error)
}
