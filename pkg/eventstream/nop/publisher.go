// Package nop provides a no-op eventstream.Publisher for deployments
// without an event stream backend.
package nop

import (
	"context"

	"github.com/rotaworks/rotachat/pkg/eventstream"
)

// Publisher discards all events.
type Publisher struct{}

// NewPublisher creates a no-op publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishUsage(_ context.Context, event *eventstream.UsageRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilUsageEvent
	}
	return nil
}

func (p *Publisher) Close() error {
	return nil
}
