package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/proplex/searchd/pkg/config"
	"github.com/proplex/searchd/pkg/logger"
)

// Writer tuning. kafka-go groups writes into batches of up to
// producerBatchSize messages, flushing after producerBatchTimeout.
const (
	producerBatchSize    = 100
	producerBatchTimeout = 10 * time.Millisecond
	producerMaxAttempts  = 3
)

// Event is one record bound for Kafka. Key picks the partition via hashing
// and Value is serialised as JSON.
type Event struct {
	Key   string
	Value any
}

// Producer publishes JSON-encoded events to a single topic.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewProducer returns a synchronous producer for the given topic. Writes
// are snappy-compressed and require acks from all in-sync replicas.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    producerBatchSize,
			BatchTimeout: producerBatchTimeout,
			MaxAttempts:  producerMaxAttempts,
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
		},
		logger: logger.WithComponent("kafka-producer").With("topic", topic),
	}
}

// Publish serialises the given events and writes them to Kafka in a single
// call. Publishing zero events is a no-op.
func (p *Producer) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		value, err := json.Marshal(ev.Value)
		if err != nil {
			return fmt.Errorf("marshaling event %q: %w", ev.Key, err)
		}
		msgs[i] = kafka.Message{Key: []byte(ev.Key), Value: value}
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("publish failed", "events", len(msgs), "error", err)
		return fmt.Errorf("publishing to kafka: %w", err)
	}
	p.logger.Debug("events published", "count", len(msgs))
	return nil
}

// Close flushes pending writes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
