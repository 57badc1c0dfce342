// Package kafka provides an eventstream.Publisher backed by a Kafka topic.
// Events are keyed by user id so one user's usage stays ordered within a
// partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	segkafka "github.com/segmentio/kafka-go"

	"github.com/rotaworks/rotachat/pkg/eventstream"
)

// Publisher writes usage events to a Kafka topic.
type Publisher struct {
	writer *segkafka.Writer
}

// NewPublisher creates a publisher writing to the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &segkafka.Writer{
			Addr:     segkafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &segkafka.Hash{},

			// The worker pool already decouples publishing from the request
			// path, so synchronous writes keep delivery errors observable.
			Async: false,
		},
	}
}

func (p *Publisher) PublishUsage(ctx context.Context, event *eventstream.UsageRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilUsageEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, segkafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("write usage event: %w", err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
