package pubsub

import (
	"context"
	"fmt"

	shared "github.com/agentflow/onboarding/pkg"
)

// EventDispatcher turns onboarding notifications into CloudEvents on the
// notification topic. Delivery to devices happens in the subscriber.
type EventDispatcher struct {
	Publisher shared.Publisher
	Topic     string
	Source    string
}

func NewEventDispatcher(p shared.Publisher, topic string) *EventDispatcher {
	return &EventDispatcher{Publisher: p, Topic: topic, Source: shared.CloudEventSource}
}

func (d *EventDispatcher) Send(ctx context.Context, eventType string, payload map[string]interface{}) error {
	e, err := NewCloudEvent(d.Source, EventType(eventType), payload)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	if _, err := d.Publisher.PublishCloudEvent(ctx, d.Topic, e); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}
