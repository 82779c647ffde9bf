package notificationsender

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/onboarding/pkg/framework"
	infrapubsub "github.com/agentflow/onboarding/pkg/infrastructure/pubsub"
	"github.com/agentflow/onboarding/pkg/testing/mocks"
)

type fakeTokens map[string][]string

func (f fakeTokens) GetDeviceTokens(ctx context.Context, userID string) ([]string, error) {
	if userID == "broken" {
		return nil, errors.New("firestore unavailable")
	}
	return f[userID], nil
}

func fwCtx() *framework.FrameworkContext {
	return &framework.FrameworkContext{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func published(t *testing.T, name string, payload map[string]interface{}) event.Event {
	t.Helper()
	inner, err := infrapubsub.NewCloudEvent("/agentflow/onboarding", infrapubsub.EventType(name), payload)
	require.NoError(t, err)
	raw, err := json.Marshal(inner)
	require.NoError(t, err)

	var msg framework.PubSubMessage
	msg.Message.Data = raw
	outer := event.New()
	outer.SetID("push-1")
	outer.SetType("google.cloud.pubsub.topic.v1.messagePublished")
	outer.SetSource("//pubsub.googleapis.com/projects/p/topics/topic-onboarding-notifications")
	require.NoError(t, outer.SetData("application/json", msg))
	return outer
}

func TestStageAdvancedPushesAgentAndManager(t *testing.T) {
	push := &mocks.MockNotificationService{}
	s := &Sender{Tokens: fakeTokens{"agent-x": {"tok-a"}, "mgr-1": {"tok-m1", "tok-m2"}}, Push: push}

	out, err := s.Handle(context.Background(), published(t, "stage_advanced", map[string]interface{}{
		"agentId": "agent-x", "managerId": "mgr-1", "from": "surelc_setup", "to": "bundle_selected",
	}), fwCtx())
	require.NoError(t, err)
	assert.Equal(t, 2, out.(map[string]interface{})["recipients"])

	require.Len(t, push.Sent, 2)
	assert.Equal(t, []string{"tok-a"}, push.Sent[0].Tokens)
	assert.Equal(t, []string{"tok-m1", "tok-m2"}, push.Sent[1].Tokens)
}

func TestDirectCloudEventIsAccepted(t *testing.T) {
	push := &mocks.MockNotificationService{}
	s := &Sender{Tokens: fakeTokens{"agent-x": {"tok-a"}}, Push: push}

	e, err := infrapubsub.NewCloudEvent("/agentflow/onboarding", infrapubsub.EventType("needs_info"), map[string]interface{}{
		"agentId": "agent-x", "message": "Please re-upload",
	})
	require.NoError(t, err)

	_, err = s.Handle(context.Background(), e, fwCtx())
	require.NoError(t, err)
	require.Len(t, push.Sent, 1)
	assert.Equal(t, "Please re-upload", push.Sent[0].Body)
}

func TestRecipientFailureDoesNotStopOthers(t *testing.T) {
	push := &mocks.MockNotificationService{}
	s := &Sender{Tokens: fakeTokens{"mgr-1": {"tok-m"}}, Push: push}

	_, err := s.Handle(context.Background(), published(t, "onboarding_completed", map[string]interface{}{
		"agentId": "broken", "managerId": "mgr-1",
	}), fwCtx())
	require.Error(t, err)
	require.Len(t, push.Sent, 1)
	assert.Equal(t, "mgr-1", push.Sent[0].UserID)
}

func TestUnknownNotificationIsSkipped(t *testing.T) {
	push := &mocks.MockNotificationService{}
	s := &Sender{Tokens: fakeTokens{}, Push: push}

	out, err := s.Handle(context.Background(), published(t, "status_changed", map[string]interface{}{"agentId": "agent-x"}), fwCtx())
	require.NoError(t, err)
	assert.Equal(t, "skipped", out.(map[string]interface{})["status"])
	assert.Empty(t, push.Sent)
}
