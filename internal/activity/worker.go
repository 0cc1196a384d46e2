package activity

import (
	"context"
	"log/slog"
)

// AsyncSink decouples the request path from trail writes: Append enqueues and
// returns, the Worker drains into the underlying sink. A full inbox drops the
// entry rather than stalling webhook acknowledgement.
type AsyncSink struct {
	inbox  chan string
	logger *slog.Logger
}

// NewAsyncSink builds an AsyncSink with the given buffer size.
func NewAsyncSink(buffer int, logger *slog.Logger) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &AsyncSink{inbox: make(chan string, buffer), logger: logger}
}

func (s *AsyncSink) Append(ctx context.Context, message string) error {
	select {
	case s.inbox <- message:
	default:
		s.logger.WarnContext(ctx, "activity trail entry dropped", "message", message)
	}
	return nil
}

// Worker drains an AsyncSink into a durable sink.
type Worker struct {
	sink   Sink
	src    *AsyncSink
	logger *slog.Logger
}

func NewWorker(sink Sink, src *AsyncSink, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, src: src, logger: logger}
}

// Run consumes entries until the context is cancelled. Write failures are
// logged, not fatal: losing a trail line is preferable to stopping ingestion.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-w.src.inbox:
			if err := w.sink.Append(ctx, message); err != nil {
				w.logger.ErrorContext(ctx, "activity trail append failed", "error", err.Error())
			}
		}
	}
}
