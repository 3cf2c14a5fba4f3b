// Package kafka provides a Kafka-backed event stream publisher.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/eventstream"
)

// DefaultTopic is the default topic for memory lifecycle events.
const DefaultTopic = "engram.memory.events"

// Publisher implements eventstream.Publisher on Kafka. Messages are keyed by
// owner key so all events for one owner land on the same partition in order.
type Publisher struct {
	writer *kafkago.Writer
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic defaults to DefaultTopic if empty.
	Topic string
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(c Config, logger *zap.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}

	logger.Info("kafka event publisher initialized",
		zap.Strings("brokers", c.Brokers),
		zap.String("topic", topic),
	)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// Publish sends one event, keyed by owner.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.Event) error {
	if event == nil || event.EventType == "" || event.OwnerKey == "" {
		return eventstream.ErrInvalidEvent
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return eventstream.ErrPublisherClosed
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", event.EventID, err)
	}

	if err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.OwnerKey),
		Value: value,
	}); err != nil {
		return fmt.Errorf("writing event %s: %w", event.EventID, err)
	}

	p.logger.Debug("published event",
		zap.String("event_type", event.EventType),
		zap.String("owner_key", event.OwnerKey),
	)

	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
