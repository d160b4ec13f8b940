package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a FIFO list: producers LPUSH, the worker BRPOPs.
type RedisQueue struct {
	rdb         *redis.Client
	name        string
	pollTimeout time.Duration
}

func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: name, pollTimeout: defaultPollTimeout}
}

func (q *RedisQueue) Enqueue(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("push event to %s: %w", q.name, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Event, error) {
	res, err := q.rdb.BRPop(ctx, q.pollTimeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Event{}, ErrQueueEmpty
		}
		return Event{}, err
	}
	// res is [queueName, value]
	if len(res) < 2 || res[1] == "" {
		return Event{}, ErrQueueEmpty
	}
	var e Event
	if err := json.Unmarshal([]byte(res[1]), &e); err != nil {
		return Event{}, fmt.Errorf("decode event from %s: %w", q.name, err)
	}
	return e, nil
}
