package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Result is the outcome of normalizing one inbound payload body. Exactly one
// of the three shapes applies: a verification challenge, a batch of events,
// or nothing (malformed or empty input).
type Result struct {
	Challenge string
	AccountID string
	Events    []RawEvent
}

// IsChallenge reports whether the payload was a verification handshake.
func (r Result) IsChallenge() bool { return r.Challenge != "" }

// IsEmpty reports whether normalization produced nothing to process.
func (r Result) IsEmpty() bool { return r.Challenge == "" && len(r.Events) == 0 }

// Normalizer parses raw payload bodies into canonical event sequences. The
// clock and ID generator are injected so tests are deterministic.
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClock overrides the wall clock used for missing timestamps.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) { n.now = now }
}

// WithIDGenerator overrides the generator for synthesized event IDs.
func WithIDGenerator(newID func() string) NormalizerOption {
	return func(n *Normalizer) { n.newID = newID }
}

// NewNormalizer builds a Normalizer with real time and UUID defaults.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// rawPayload covers every dialect the platform sends: the challenge
// handshake, the batch form, and the legacy flattened single-event form.
type rawPayload struct {
	Challenge string          `json:"challenge"`
	AccountID string          `json:"accountId"`
	Events    []rawBatchEvent `json:"events"`

	// Legacy single-event form carries the event fields at the top level.
	EventName string `json:"eventName"`
}

type rawBatchEvent struct {
	EventID   string         `json:"eventId"`
	EventName string         `json:"eventName"`
	Timestamp int64          `json:"timestamp"`
	EventTime int64          `json:"eventTime"`
	Data      map[string]any `json:"data"`
	EventData map[string]any `json:"eventData"`
	EventInfo string         `json:"eventInfo"`
}

// Normalize parses a raw body into a canonical event sequence. Malformed
// input yields an empty Result, never an error: the boundary acknowledges
// receipt regardless, and the activity log is where failures surface.
//
// The verification challenge takes priority over everything else in the
// payload, including a populated events list.
func (n *Normalizer) Normalize(body []byte) Result {
	var payload rawPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}
	}

	if payload.Challenge != "" {
		return Result{Challenge: payload.Challenge}
	}

	accountID := payload.AccountID
	if accountID == "" {
		accountID = "unknown"
	}

	if len(payload.Events) > 0 {
		events := make([]RawEvent, 0, len(payload.Events))
		for _, raw := range payload.Events {
			events = append(events, n.normalizeOne(raw))
		}
		return Result{AccountID: accountID, Events: events}
	}

	// Legacy flattened form: the whole object is one event with its data
	// fields at the top level.
	if payload.EventName != "" {
		var data map[string]any
		if err := json.Unmarshal(body, &data); err != nil {
			return Result{}
		}
		return Result{
			AccountID: accountID,
			Events: []RawEvent{{
				ID:          n.newID(),
				Name:        payload.EventName,
				TimestampMS: n.now().UnixMilli(),
				Data:        data,
			}},
		}
	}

	return Result{}
}

func (n *Normalizer) normalizeOne(raw rawBatchEvent) RawEvent {
	id := raw.EventID
	if id == "" {
		// Never collapse distinct events into one ledger row just because
		// the platform omitted an ID.
		id = n.newID()
	}

	name := raw.EventName
	if name == "" {
		name = UnknownName
	}

	ts := raw.Timestamp
	if ts == 0 {
		ts = raw.EventTime
	}
	if ts == 0 {
		ts = n.now().UnixMilli()
	}

	data := raw.Data
	if data == nil {
		data = raw.EventData
	}
	if data == nil {
		data = map[string]any{}
	}

	return RawEvent{ID: id, Name: name, TimestampMS: ts, Info: raw.EventInfo, Data: data}
}
