package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Bus turns domain changes into queued events. A nil *Bus drops everything,
// and enqueue failures are logged rather than returned so that a full queue
// never fails a request.
type Bus struct {
	queue  Queue
	logger *slog.Logger
	now    func() time.Time
}

func NewBus(queue Queue, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{queue: queue, logger: logger.With("module", "events"), now: time.Now}
}

func (b *Bus) Emit(ctx context.Context, eventType, aggregateID, actorID string, payload interface{}) {
	if b == nil || b.queue == nil {
		return
	}
	e := Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		ActorID:     actorID,
		OccurredAt:  b.now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			b.logger.WarnContext(ctx, "event payload not serializable", "type", eventType, "error", err)
		} else {
			e.Payload = raw
		}
	}
	// The request context may be cancelled as soon as the handler returns.
	if err := b.queue.Enqueue(context.WithoutCancel(ctx), e); err != nil {
		b.logger.WarnContext(ctx, "failed to enqueue event", "type", eventType, "aggregate_id", aggregateID, "error", err)
	}
}
