// Package kafka publishes search events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/eventstream"
)

const (
	// DefaultTopic is the topic search events are written to.
	DefaultTopic = "sleeves.searches"

	defaultBatchTimeout = 50 * time.Millisecond
	defaultWriteTimeout = 10 * time.Second
)

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap brokers ("host:port").
	Brokers []string

	// Topic defaults to DefaultTopic if empty.
	Topic string
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes JSON encoded events keyed by embedding space, so events
// of one space stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewPublisher creates a publisher writing to the configured brokers.
func NewPublisher(c Config, logger *zap.Logger) (*Publisher, error) {
	var brokers []string
	for _, b := range c.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           defaultBatchTimeout,
		WriteTimeout:           defaultWriteTimeout,
		AllowAutoTopicCreation: true,
	}

	return newPublisher(w, topic, logger), nil
}

func newPublisher(w messageWriter, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{writer: w, topic: topic, logger: logger}
}

// PublishSearch writes one event.
func (p *Publisher) PublishSearch(ctx context.Context, event *eventstream.SearchPerformedEvent) error {
	if event == nil {
		return eventstream.ErrNilSearchEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling search event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Space),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing search event to %s: %w", p.topic, err)
	}

	p.logger.Debug("search event published",
		zap.String("topic", p.topic),
		zap.String("event_id", event.EventID),
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
