package events

import (
	"context"
	"time"
)

const defaultPollTimeout = time.Second

type MemoryQueue struct {
	ch          chan Event
	pollTimeout time.Duration
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan Event, size), pollTimeout: defaultPollTimeout}
}

// Enqueue never blocks; it fails with ErrQueueFull when the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, e Event) error {
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Event, error) {
	timer := time.NewTimer(q.pollTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case e := <-q.ch:
		return e, nil
	case <-timer.C:
		return Event{}, ErrQueueEmpty
	}
}

func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
