// Package analytics tracks query and load events. A Collector batches events
// to Kafka, an Aggregator consumes the topic into rolling in-memory stats,
// and the snapshot subpackage persists periodic snapshots to PostgreSQL.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/proplex/searchd/pkg/config"
	"github.com/proplex/searchd/pkg/kafka"
	"github.com/proplex/searchd/pkg/logger"
)

const eventKey = "analytics"

// Collector accumulates events and flushes them to Kafka in batches, either
// when the buffer reaches the configured size or on an interval. Track never
// blocks the caller; events are dropped with a warning when the channel
// backs up.
type Collector struct {
	producer      *kafka.Producer
	eventCh       chan any
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

// NewCollector creates a Collector sized by the analytics config.
func NewCollector(producer *kafka.Producer, cfg config.AnalyticsConfig) *Collector {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		producer:      producer,
		eventCh:       make(chan any, batchSize*10),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger.WithComponent("analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		buffer := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.flush(ctx, buffer)
					return
				}
				buffer = append(buffer, kafka.Event{Key: eventKey, Value: event})
				if len(buffer) >= c.batchSize {
					c.flush(ctx, buffer)
					buffer = buffer[:0]
				}
			case <-ticker.C:
				c.flush(ctx, buffer)
				buffer = buffer[:0]
			case <-ctx.Done():
				// Final flush with a short deadline.
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				buffer = c.drainRemaining(buffer)
				c.flush(flushCtx, buffer)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track queues an event for publication.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the flush loop to finish.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.producer.Publish(ctx, batch...); err != nil {
		c.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		return
	}
	c.logger.Debug("batch flushed", "events", len(batch))
}

func (c *Collector) drainRemaining(buffer []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return buffer
			}
			buffer = append(buffer, kafka.Event{Key: eventKey, Value: event})
		default:
			return buffer
		}
	}
}
