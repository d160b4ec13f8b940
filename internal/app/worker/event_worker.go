package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"taskmaster/internal/platform/events"
)

const (
	idleBackoff  = time.Second
	errorBackoff = 5 * time.Second
)

// EventWorker drains the event queue into a Publisher. Events that fail to
// publish go back on the queue until they have been tried maxAttempts times.
type EventWorker struct {
	queue       events.Queue
	publisher   events.Publisher
	maxAttempts int
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration)
}

func NewEventWorker(queue events.Queue, publisher events.Publisher, maxAttempts int, logger *slog.Logger) *EventWorker {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventWorker{
		queue:       queue,
		publisher:   publisher,
		maxAttempts: maxAttempts,
		logger:      logger.With("module", "worker"),
		sleep:       sleepCtx,
	}
}

func (w *EventWorker) Start(ctx context.Context) {
	w.logger.Info("event worker started", "max_attempts", w.maxAttempts)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("event worker stopping")
			return
		default:
		}

		e, err := w.queue.Dequeue(ctx)
		if err != nil {
			switch {
			case errors.Is(err, events.ErrQueueEmpty):
				// Dequeue already waited for its poll timeout.
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				w.sleep(ctx, idleBackoff)
			default:
				w.logger.Error("failed to dequeue event", "error", err)
				w.sleep(ctx, errorBackoff)
			}
			continue
		}
		w.process(ctx, e)
	}
}

// Drain publishes whatever is still queued, without backoff, until the
// queue reports empty or ctx ends. It returns how many events it handled.
// Call it after Start has returned.
func (w *EventWorker) Drain(ctx context.Context) int {
	handled := 0
	for ctx.Err() == nil {
		e, err := w.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, events.ErrQueueEmpty) && ctx.Err() == nil {
				w.logger.Error("failed to dequeue event while draining", "error", err)
			}
			break
		}
		w.process(ctx, e)
		handled++
	}
	return handled
}

func (w *EventWorker) process(ctx context.Context, e events.Event) {
	e.Attempts++
	err := w.publisher.Publish(ctx, e)
	if err == nil {
		w.logger.Debug("event published", "event_id", e.ID, "type", e.Type, "attempt", e.Attempts)
		return
	}

	if e.Attempts >= w.maxAttempts {
		w.logger.Error("dropping event after max attempts",
			"event_id", e.ID, "type", e.Type, "attempts", e.Attempts, "error", err)
		return
	}
	w.logger.Warn("publish failed, re-queueing event",
		"event_id", e.ID, "type", e.Type, "attempt", e.Attempts, "error", err)
	if qerr := w.queue.Enqueue(context.WithoutCancel(ctx), e); qerr != nil {
		w.logger.Error("failed to re-queue event", "event_id", e.ID, "error", qerr)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
