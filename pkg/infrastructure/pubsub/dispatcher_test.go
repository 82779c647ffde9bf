package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/onboarding/pkg/testing/mocks"
)

func TestEventDispatcherPublishesCloudEvent(t *testing.T) {
	var gotTopic string
	var got event.Event
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			gotTopic, got = topic, e
			return "id-1", nil
		},
	}
	d := NewEventDispatcher(pub, "topic-onboarding-notifications")

	err := d.Send(context.Background(), "stage_advanced", map[string]interface{}{"agentId": "agent-x", "to": "appointed"})
	require.NoError(t, err)

	assert.Equal(t, "topic-onboarding-notifications", gotTopic)
	assert.Equal(t, "com.agentflow.onboarding.stage_advanced", got.Type())
	assert.Equal(t, "/agentflow/onboarding", got.Source())
	assert.NotEmpty(t, got.ID())

	var payload map[string]string
	require.NoError(t, got.DataAs(&payload))
	assert.Equal(t, "agent-x", payload["agentId"])
}

func TestEventDispatcherWrapsPublishError(t *testing.T) {
	boom := errors.New("pubsub down")
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			return "", boom
		},
	}
	err := NewEventDispatcher(pub, "t").Send(context.Background(), "needs_info", nil)
	assert.ErrorIs(t, err, boom)
}
