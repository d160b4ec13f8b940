package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("module", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.InfoContext(ctx, "domain event",
		"event_id", e.ID,
		"type", e.Type,
		"aggregate_id", e.AggregateID,
		"actor_id", e.ActorID,
		"occurred_at", e.OccurredAt,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// KafkaPublisher writes each event to "<prefix>.<aggregate>" keyed by the
// aggregate id, so events of one project or task stay ordered.
type KafkaPublisher struct {
	writer      *kafka.Writer
	topicPrefix string
}

func NewKafkaPublisher(brokers []string, topicPrefix string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
		},
		topicPrefix: topicPrefix,
	}, nil
}

// TopicFor maps "task.created" to "<prefix>.task".
func (p *KafkaPublisher) TopicFor(eventType string) string {
	aggregate, _, _ := strings.Cut(eventType, ".")
	if p.topicPrefix == "" {
		return aggregate
	}
	return p.topicPrefix + "." + aggregate
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.TopicFor(e.Type),
		Key:   []byte(e.AggregateID),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(e.ID)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
