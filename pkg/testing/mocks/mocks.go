package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/agentflow/onboarding/pkg/types"
)

// --- Mock Publisher ---
type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}

// --- Mock Storage ---
type MockBlobStore struct {
	PutFunc func(ctx context.Context, path string, data []byte) (string, error)
	GetFunc func(ctx context.Context, ref string) ([]byte, error)

	mu      sync.Mutex
	objects map[string][]byte
}

// Put stores in memory unless PutFunc overrides it.
func (m *MockBlobStore) Put(ctx context.Context, path string, data []byte) (string, error) {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, path, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	ref := "mem://" + path
	m.objects[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (m *MockBlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[ref]
	if !ok {
		return nil, fmt.Errorf("object %s not found", ref)
	}
	return data, nil
}

func (m *MockBlobStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// --- Mock Dispatcher ---
type SentNotification struct {
	EventType string
	Payload   map[string]interface{}
}

type MockDispatcher struct {
	SendFunc func(ctx context.Context, eventType string, payload map[string]interface{}) error

	mu   sync.Mutex
	Sent []SentNotification
}

func (m *MockDispatcher) Send(ctx context.Context, eventType string, payload map[string]interface{}) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentNotification{EventType: eventType, Payload: payload})
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, eventType, payload)
	}
	return nil
}

// Types returns the event types sent so far, in order.
func (m *MockDispatcher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Sent))
	for i, n := range m.Sent {
		out[i] = n.EventType
	}
	return out
}

// --- Mock Identity ---
type MockIdentityAdmin struct {
	SetLoginActiveFunc func(ctx context.Context, accountID string, active bool) error

	mu     sync.Mutex
	Active map[string]bool
	Calls  int
}

func (m *MockIdentityAdmin) SetLoginActive(ctx context.Context, accountID string, active bool) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.SetLoginActiveFunc != nil {
		if err := m.SetLoginActiveFunc(ctx, accountID, active); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Active == nil {
		m.Active = make(map[string]bool)
	}
	m.Active[accountID] = active
	return nil
}

type MockTokenVerifier struct {
	VerifyActorFunc func(ctx context.Context, idToken string) (types.Actor, error)
}

func (m *MockTokenVerifier) VerifyActor(ctx context.Context, idToken string) (types.Actor, error) {
	if m.VerifyActorFunc != nil {
		return m.VerifyActorFunc(ctx, idToken)
	}
	return types.Actor{}, fmt.Errorf("invalid token")
}

// --- Mock Notifications ---
type PushRecord struct {
	UserID string
	Title  string
	Body   string
	Tokens []string
	Data   map[string]string
}

type MockNotificationService struct {
	SendFunc func(ctx context.Context, userID, title, body string, tokens []string, data map[string]string) error
	Sent     []PushRecord
}

func (m *MockNotificationService) SendPushNotification(ctx context.Context, userID string, title, body string, tokens []string, data map[string]string) error {
	m.Sent = append(m.Sent, PushRecord{UserID: userID, Title: title, Body: body, Tokens: tokens, Data: data})
	if m.SendFunc != nil {
		return m.SendFunc(ctx, userID, title, body, tokens, data)
	}
	return nil
}
