package notify

import (
	"context"
	"log/slog"
	"time"
)

// Dispatcher periodically hands due pending reminders to the Sender and marks
// them sent. It keeps background processing testable without wiring a real
// delivery provider: RunOnce is the whole cycle, Run just drives it on a
// ticker.
type Dispatcher struct {
	store    Store
	sender   Sender
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	onSent   func()
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherClock overrides the wall clock.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithSentCallback registers a hook fired per dispatched reminder, used for
// metrics.
func WithSentCallback(onSent func()) DispatcherOption {
	return func(d *Dispatcher) { d.onSent = onSent }
}

// NewDispatcher builds a Dispatcher over the queue store.
func NewDispatcher(store Store, sender Sender, logger *slog.Logger, interval time.Duration, opts ...DispatcherOption) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	d := &Dispatcher{
		store:    store,
		sender:   sender,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunOnce dispatches every currently-due pending reminder. A failing send
// leaves the entry pending for the next cycle; a failing MarkSent is logged
// and the entry may be delivered again, which the demo sender tolerates.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	now := d.now().UTC()
	due, err := d.store.ListDue(ctx, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, reminder := range due {
		if err := d.sender.Send(ctx, reminder); err != nil {
			d.logger.WarnContext(ctx, "reminder send failed",
				"reminder_id", reminder.ID,
				"error", err.Error(),
			)
			continue
		}
		if err := d.store.MarkSent(ctx, reminder.ID, now); err != nil {
			d.logger.ErrorContext(ctx, "reminder sent but not marked",
				"reminder_id", reminder.ID,
				"error", err.Error(),
			)
			continue
		}
		sent++
		if d.onSent != nil {
			d.onSent()
		}
	}
	return sent, nil
}

// Run drives RunOnce until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				d.logger.ErrorContext(ctx, "reminder dispatch cycle failed", "error", err.Error())
			}
		}
	}
}

// LogSender is the default delivery collaborator: it records the handoff and
// nothing more. Real SMS delivery is explicitly out of scope here.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, reminder Reminder) error {
	s.Logger.InfoContext(ctx, "reminder dispatched",
		"phone", reminder.Phone,
		"scheduled_for", reminder.ScheduledFor,
		"message", reminder.Message,
	)
	return nil
}
