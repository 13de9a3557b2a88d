// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer serialises events as JSON, while the
// consumer decodes them via a pluggable MessageHandler callback. searchd
// uses it for the document-updates reload stream and the analytics event
// stream.
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

const (
	// fetchBackoff is how long the consume loop waits after a failed
	// fetch before retrying, so broker trouble does not turn into a
	// hot loop.
	fetchBackoff = time.Second

	fetchMinBytes = 1 << 10
	fetchMaxBytes = 10 << 20
)

// MessageHandler processes one fetched message. Returning an error
// leaves the offset uncommitted, so the message is delivered again.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads one topic as part of a consumer group and hands each
// message to a MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
}

// NewConsumer creates a Consumer for the given topic and handler. It
// joins the consumer group named in cfg and starts at the newest offset.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	log := logger.WithComponent("kafka-consumer").With("topic", topic)
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    fetchMinBytes,
			MaxBytes:    fetchMaxBytes,
			StartOffset: kafka.LastOffset,
			ErrorLogger: kafka.LoggerFunc(func(format string, args ...any) {
				log.Error(fmt.Sprintf(format, args...))
			}),
		}),
		logger:  log,
		handler: handler,
	}
}

// Start runs the consume loop until ctx is cancelled, then closes the
// reader and returns.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-time.After(fetchBackoff):
			case <-ctx.Done():
			}
			continue
		}
		c.process(ctx, msg)
	}
	c.logger.Info("consumer stopping", "reason", ctx.Err())
	return c.reader.Close()
}

// process dispatches one message and commits its offset on success.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("message fetched", "partition", msg.Partition, "offset", msg.Offset)
	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		c.logger.Error("handler failed",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("commit failed",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
