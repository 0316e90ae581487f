package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the slice of *kafka.Writer the producer needs; injected
// in tests.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer is a scoped connection to the broker for publishing. Callers
// open one per logical unit of work (Start, defer Stop) rather than holding
// a long-lived producer across requests.
type Producer struct {
	brokers []string
	writer  messageWriter

	// newWriter builds the broker connection; replaced in tests.
	newWriter func() messageWriter
}

func NewProducer(brokers []string) *Producer {
	p := &Producer{brokers: brokers}
	p.newWriter = func() messageWriter {
		return &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		}
	}
	return p
}

// Start opens the broker connection.
func (p *Producer) Start() error {
	if p.writer != nil {
		return errors.New("producer already started")
	}
	p.writer = p.newWriter()
	return nil
}

// Stop closes the connection, flushing buffered messages.
func (p *Producer) Stop() error {
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}

// Send publishes value to topic. Fails if the producer is not started or
// the broker is unreachable.
func (p *Producer) Send(ctx context.Context, topic string, value []byte) error {
	if p.writer == nil {
		return errors.New("producer is not started")
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Value: value}); err != nil {
		return fmt.Errorf("write message to %s: %w", topic, err)
	}
	return nil
}
