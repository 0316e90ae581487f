package kafkax

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/melcdl/melcdl-backend/internal/logging"
	"github.com/segmentio/kafka-go"
)

// consumer lifecycle states
const (
	stateCreated = iota
	stateRunning
	stateStopped
)

// recordPreviewLen bounds how much of a failed record is logged.
const recordPreviewLen = 100

// ConsumerConfig carries broker connection settings for the receive loop.
type ConsumerConfig struct {
	Brokers []string
	// GroupID names the consumer group; redeployment resumes from the
	// group's committed offset.
	GroupID string
	// CommitInterval is the broker-side auto-commit period. Offsets are not
	// committed per message, so a crash between receipt and commit causes
	// redelivery; handlers must tolerate at-least-once delivery.
	CommitInterval time.Duration
}

// recordReader is the slice of *kafka.Reader the loop needs; injected in tests.
type recordReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer owns one broker connection, subscribes to every topic in its
// registry and dispatches received records sequentially: a handler finishes
// before the next record is read, preserving partition order.
type Consumer struct {
	cfg      ConsumerConfig
	registry *Registry
	logger   logging.Logger

	mu     sync.Mutex
	state  int
	reader recordReader
	done   chan struct{}

	// newReader builds the broker connection; replaced in tests.
	newReader func(topics []string) recordReader
}

func NewConsumer(cfg ConsumerConfig, registry *Registry, logger logging.Logger) *Consumer {
	c := &Consumer{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With("component", "kafka-consumer"),
		done:     make(chan struct{}),
	}
	c.newReader = func(topics []string) recordReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			GroupID:        cfg.GroupID,
			GroupTopics:    topics,
			CommitInterval: cfg.CommitInterval,
			StartOffset:    kafka.LastOffset,
		})
	}
	return c
}

// Start opens the broker connection and runs the receive loop until Stop is
// called or ctx is cancelled. It must not be called twice.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateCreated {
		c.mu.Unlock()
		return errors.New("consumer already started or stopped")
	}
	topics := c.registry.Topics()
	if len(topics) == 0 {
		c.mu.Unlock()
		return errors.New("no topics registered")
	}
	c.reader = c.newReader(topics)
	c.state = stateRunning
	c.mu.Unlock()

	c.logger.Info(ctx, "consumer started", "topics", topics, "group", c.cfg.GroupID)

	defer close(c.done)
	return c.run(ctx)
}

// run reads records one at a time. A handler error is logged and the loop
// continues; a single bad message never kills the consumer.
func (c *Consumer) run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
				// reader closed by Stop, or shutdown requested
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		handler, err := c.registry.Handler(msg.Topic)
		if err != nil {
			c.logger.Error(ctx, "no handler for record", "topic", msg.Topic, "error", err)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			c.logger.Error(ctx, "error while processing record",
				"topic", msg.Topic, "offset", msg.Offset, "value", preview(msg.Value), "error", err)
			continue
		}
	}
}

// Stop releases the broker connection and waits for the in-flight handler
// to finish. No new records are received after Stop returns. Stopping a
// consumer that never started marks it STOPPED, so a racing Start refuses
// to run the loop.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateCreated {
		c.state = stateStopped
		c.mu.Unlock()
		return nil
	}
	if c.state == stateStopped {
		c.mu.Unlock()
		return nil
	}
	c.state = stateStopped
	reader := c.reader
	c.mu.Unlock()

	if err := reader.Close(); err != nil {
		return fmt.Errorf("close reader: %w", err)
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func preview(value []byte) string {
	if len(value) > recordPreviewLen {
		value = value[:recordPreviewLen]
	}
	return string(value)
}
