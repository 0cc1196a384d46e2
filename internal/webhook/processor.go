// Package webhook orchestrates inbound payload processing: signature check,
// normalization, deduplication, the compliance state machine, and scheduler
// side effects, with every step leaving a line in the activity trail.
package webhook

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"compliance-gateway/internal/activity"
	"compliance-gateway/internal/compliance"
	"compliance-gateway/internal/event"
	"compliance-gateway/internal/keylock"
	"compliance-gateway/internal/ledger"
	"compliance-gateway/internal/notify"
	"compliance-gateway/internal/platform/metrics"
	"compliance-gateway/internal/stream"
	dErrors "compliance-gateway/pkg/domain-errors"
	txcontext "compliance-gateway/pkg/platform/tx"
	"compliance-gateway/pkg/requestcontext"
)

// Receipt summarizes what one payload did. The HTTP layer renders it; the
// external platform only ever sees the ack or the challenge echo.
type Receipt struct {
	Challenge  string
	Admitted   int
	Duplicates int
	Anomalies  int
}

// EventPublisher streams applied transitions to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, msg stream.Message) error
}

// Processor is the event-processing engine behind the webhook endpoint.
type Processor struct {
	validator  *SignatureValidator
	normalizer *event.Normalizer
	machine    *compliance.Machine
	records    compliance.Store
	events     ledger.Store
	scheduler  *notify.Scheduler
	locks      keylock.Locker
	trail      activity.Sink
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer

	// db enables one transaction per event across the Postgres stores.
	// Nil for in-memory deploys.
	db *sql.DB
	// publisher is optional; nil when Kafka is not configured.
	publisher EventPublisher

	keyIncludesInstance bool
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithDB enables per-event transactions over the given database.
func WithDB(db *sql.DB) ProcessorOption {
	return func(p *Processor) { p.db = db }
}

// WithPublisher streams applied transitions to Kafka.
func WithPublisher(pub EventPublisher) ProcessorOption {
	return func(p *Processor) { p.publisher = pub }
}

// WithInstanceScopedKeys widens the compliance key with the course instance.
func WithInstanceScopedKeys(enabled bool) ProcessorOption {
	return func(p *Processor) { p.keyIncludesInstance = enabled }
}

// NewProcessor wires the engine. All collaborators are required except the
// options.
func NewProcessor(
	validator *SignatureValidator,
	normalizer *event.Normalizer,
	machine *compliance.Machine,
	records compliance.Store,
	events ledger.Store,
	scheduler *notify.Scheduler,
	locks keylock.Locker,
	trail activity.Sink,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...ProcessorOption,
) *Processor {
	p := &Processor{
		validator:  validator,
		normalizer: normalizer,
		machine:    machine,
		records:    records,
		events:     events,
		scheduler:  scheduler,
		locks:      locks,
		trail:      trail,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("compliance-gateway/webhook"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one payload end to end. The returned error is non-nil only
// for signature rejection; every processing failure past that point is
// absorbed, logged, and reflected in the Receipt, because the platform
// expects an unconditional fast acknowledgement.
func (p *Processor) Process(ctx context.Context, body []byte, signature string) (Receipt, error) {
	ctx, span := p.tracer.Start(ctx, "webhook.Process")
	defer span.End()
	start := time.Now()
	defer func() { p.metrics.ProcessDuration.Observe(time.Since(start).Seconds()) }()

	if err := p.validator.Validate(body, signature); err != nil {
		p.logger.WarnContext(ctx, "payload signature rejected",
			"code", string(dErrors.CodeOf(err)),
			"request_id", requestcontext.RequestID(ctx),
		)
		return Receipt{}, err
	}

	// Forensic copy of every authenticated body, recorded ahead of parsing
	// so malformed and challenge payloads still leave their content behind.
	p.logger.InfoContext(ctx, "raw payload received",
		"bytes", len(body),
		"body", string(body),
		"request_id", requestcontext.RequestID(ctx),
	)

	result := p.normalizer.Normalize(body)
	if result.IsChallenge() {
		// Verification handshake: echo and do nothing else, not even a
		// ledger row.
		p.appendTrail(ctx, "Verification challenge received")
		return Receipt{Challenge: result.Challenge}, nil
	}
	if result.IsEmpty() {
		p.appendTrail(ctx, "Ignored payload: malformed or no events")
		return Receipt{}, nil
	}

	ctx = requestcontext.WithAccountID(ctx, result.AccountID)
	span.SetAttributes(
		attribute.String("webhook.account_id", result.AccountID),
		attribute.Int("webhook.event_count", len(result.Events)),
	)

	var receipt Receipt
	for _, ev := range result.Events {
		outcome, err := p.processEvent(ctx, ev)
		if err != nil {
			// Repository failure: fatal for the rest of this payload, but
			// the ack still goes out. The ledger's processed flags and the
			// trail carry the evidence.
			p.logger.ErrorContext(ctx, "payload processing aborted",
				"account_id", result.AccountID,
				"event_id", ev.ID,
				"error", err.Error(),
				"request_id", requestcontext.RequestID(ctx),
			)
			p.appendTrail(ctx, fmt.Sprintf("STORE FAILURE processing event %s: %v", ev.ID, err))
			break
		}
		switch outcome {
		case eventAdmitted:
			receipt.Admitted++
		case eventDuplicate:
			receipt.Duplicates++
		case eventAnomalous:
			receipt.Anomalies++
		}
	}
	return receipt, nil
}

type eventOutcome int

const (
	eventAdmitted eventOutcome = iota
	eventDuplicate
	eventAnomalous
)

// processEvent runs the gate, the state machine, and scheduler commands for
// one event. The payload's account comes from the context, where Process
// pinned it. The returned error is reserved for repository failures; domain
// rejections (duplicate, unknown kind, invalid transition) are outcomes.
func (p *Processor) processEvent(ctx context.Context, ev event.RawEvent) (eventOutcome, error) {
	accountID := requestcontext.AccountID(ctx)
	ctx, span := p.tracer.Start(ctx, "webhook.processEvent",
		trace.WithAttributes(
			attribute.String("event.id", ev.ID),
			attribute.String("event.kind", string(ev.Kind())),
		))
	defer span.End()

	admitted, err := p.events.Admit(ctx, ledger.Envelope{
		AccountID:  accountID,
		EventID:    ev.ID,
		EventName:  ev.Name,
		EventTime:  ev.Timestamp(),
		EventInfo:  ev.Info,
		RawPayload: ev.RawJSON(),
	})
	if err != nil {
		return eventAnomalous, dErrors.Wrap(err, dErrors.CodeUnavailable, "event ledger unavailable")
	}
	if !admitted {
		p.metrics.EventsDuplicate.Inc()
		p.appendTrail(ctx, fmt.Sprintf("DUPLICATE: event %s for account %s already admitted", ev.ID, accountID))
		return eventDuplicate, nil
	}
	p.metrics.EventsReceived.WithLabelValues(string(ev.Kind())).Inc()

	key := p.complianceKey(accountID, ev)

	// Serialize per compliance key so a progress event and a concurrent
	// completion cannot interleave their read-apply-write cycles.
	unlock, err := p.locks.Lock(ctx, lockKey(key))
	if err != nil {
		return eventAnomalous, dErrors.Wrap(err, dErrors.CodeUnavailable, "key lock unavailable")
	}
	defer unlock()

	return p.applyLocked(ctx, key, accountID, ev)
}

// applyLocked runs the state machine and persists its effects, inside one
// SQL transaction when a database is wired.
func (p *Processor) applyLocked(ctx context.Context, key compliance.Key, accountID string, ev event.RawEvent) (eventOutcome, error) {
	var sqlTx *sql.Tx
	if p.db != nil {
		var err error
		sqlTx, err = p.db.BeginTx(ctx, nil)
		if err != nil {
			return eventAnomalous, dErrors.Wrap(err, dErrors.CodeUnavailable, "begin transaction")
		}
		ctx = txcontext.With(ctx, sqlTx)
		// No-op once committed.
		defer func() { _ = sqlTx.Rollback() }()
	}

	rec, err := p.records.Get(ctx, key)
	if err != nil {
		return eventAnomalous, dErrors.Wrap(err, dErrors.CodeUnavailable, "load compliance record")
	}

	outcome := p.machine.Apply(rec, accountID, ev)
	if outcome.Note != "" {
		p.appendTrail(ctx, outcome.Note)
	}
	if outcome.Err != nil {
		// Rejected events write nothing; the admitted ledger row already
		// sits outside this transaction and survives the rollback.
		p.metrics.EventsAnomalous.WithLabelValues(string(dErrors.CodeOf(outcome.Err))).Inc()
		return eventAnomalous, nil
	}

	if outcome.Record != nil {
		if err := p.records.Upsert(ctx, key, outcome.Record); err != nil {
			return eventAnomalous, dErrors.Wrap(err, dErrors.CodeUnavailable, "persist compliance record")
		}
		p.metrics.Transitions.WithLabelValues(string(outcome.Record.Status)).Inc()
	}

	if err := p.runCommands(ctx, outcome.Commands); err != nil {
		return eventAnomalous, err
	}

	if err := p.events.MarkProcessed(ctx, accountID, ev.ID); err != nil {
		return eventAnomalous, dErrors.Wrap(err, dErrors.CodeUnavailable, "mark event processed")
	}

	if sqlTx != nil {
		if err := sqlTx.Commit(); err != nil {
			return eventAnomalous, dErrors.Wrap(err, dErrors.CodeUnavailable, "commit transaction")
		}
	}

	p.publish(ctx, accountID, ev, outcome.Record)
	return eventAdmitted, nil
}

func (p *Processor) runCommands(ctx context.Context, commands []compliance.Command) error {
	for _, cmd := range commands {
		switch cmd.Kind {
		case compliance.CommandSchedule:
			reminders, err := p.scheduler.Schedule(ctx, cmd.UserID, cmd.CourseID, cmd.EnrolledAt)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "schedule reminders")
			}
			for range reminders {
				p.metrics.RemindersScheduled.Inc()
			}
			p.appendTrail(ctx, fmt.Sprintf("Scheduled %d reminders for user %s course %s", len(reminders), cmd.UserID, cmd.CourseID))
		case compliance.CommandCancelAll:
			n, err := p.scheduler.CancelAll(ctx, cmd.UserID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "cancel reminders")
			}
			p.metrics.RemindersCancelled.Add(float64(n))
			p.appendTrail(ctx, fmt.Sprintf("Cancelled %d pending reminders for user %s", n, cmd.UserID))
		}
	}
	return nil
}

func (p *Processor) publish(ctx context.Context, accountID string, ev event.RawEvent, rec *compliance.Record) {
	if p.publisher == nil || rec == nil {
		return
	}
	msg := stream.Message{
		AccountID:  accountID,
		EventID:    ev.ID,
		EventName:  ev.Name,
		Kind:       string(ev.Kind()),
		UserID:     rec.UserID,
		CourseID:   rec.CourseID,
		Status:     string(rec.Status),
		Progress:   rec.Progress,
		OccurredAt: ev.Timestamp(),
	}
	if err := p.publisher.Publish(ctx, msg); err != nil {
		p.logger.WarnContext(ctx, "transition publish failed", "event_id", ev.ID, "error", err.Error())
	}
}

func (p *Processor) complianceKey(accountID string, ev event.RawEvent) compliance.Key {
	key := compliance.Key{
		AccountID: accountID,
		UserID:    ev.UserID(),
		CourseID:  ev.CourseID(),
	}
	if p.keyIncludesInstance {
		key.InstanceID = ev.InstanceID()
	}
	return key
}

func (p *Processor) appendTrail(ctx context.Context, message string) {
	if err := p.trail.Append(ctx, message); err != nil {
		p.logger.WarnContext(ctx, "activity trail append failed", "error", err.Error())
	}
}

func lockKey(key compliance.Key) string {
	return strings.Join([]string{key.AccountID, key.UserID, key.CourseID, key.InstanceID}, "|")
}
