package shared

import (
	"context"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/agentflow/onboarding/pkg/types"
)

// --- Persistence Interfaces ---

type AgentStore interface {
	// CreateAgent returns types.ErrAlreadyExists when the ID is taken.
	CreateAgent(ctx context.Context, agent *types.Agent) error
	GetAgent(ctx context.Context, id string) (*types.Agent, error)
	// ListAgentsByManager lists every agent when managerID is empty.
	ListAgentsByManager(ctx context.Context, managerID string) ([]*types.Agent, error)
	// UpdateAgent persists agent only if the stored version equals
	// expectedVersion, and stores it with Version = expectedVersion+1.
	// A mismatch returns types.ErrVersionConflict.
	UpdateAgent(ctx context.Context, agent *types.Agent, expectedVersion int64) error
}

type StepRecordStore interface {
	// CompleteStepRecord upserts the record as completed. It reports false
	// without writing when the record is already completed.
	CompleteStepRecord(ctx context.Context, record *types.StepRecord) (bool, error)
	GetStepRecord(ctx context.Context, agentID, stepID string) (*types.StepRecord, error)
	ListStepRecords(ctx context.Context, agentID string) ([]*types.StepRecord, error)
}

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, agentID, docID string) (*types.Document, error)
	ListDocuments(ctx context.Context, agentID string) ([]*types.Document, error)
	HasDocument(ctx context.Context, agentID, stepID string) (bool, error)
}

type ActivityStore interface {
	AppendActivity(ctx context.Context, entry *types.ActivityLogEntry) error
	// ListActivity returns newest first. limit <= 0 means no limit.
	ListActivity(ctx context.Context, agentID string, limit int) ([]*types.ActivityLogEntry, error)
}

type MessageStore interface {
	// AppendMessage assigns msg.Seq within the thread.
	AppendMessage(ctx context.Context, msg *types.Message) error
	// ListMessages returns the thread ordered by CreatedAt, then Seq.
	ListMessages(ctx context.Context, threadID string) ([]*types.Message, error)
}

type AgreementStore interface {
	// CreateAgreement returns types.ErrAlreadyExists if one is stored.
	CreateAgreement(ctx context.Context, agreement *types.Agreement) error
	GetAgreement(ctx context.Context, agentID string) (*types.Agreement, error)
}

type Store interface {
	AgentStore
	StepRecordStore
	DocumentStore
	ActivityStore
	MessageStore
	AgreementStore
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}

// Dispatcher delivers outbound notifications. Callers treat it as
// fire-and-forget.
type Dispatcher interface {
	Send(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// --- Storage Interfaces ---

type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// --- Identity Interfaces ---

// IdentityAdmin toggles login for an account. Implementations hold a
// privileged credential that ordinary request actors never see.
type IdentityAdmin interface {
	SetLoginActive(ctx context.Context, accountID string, active bool) error
}

type TokenVerifier interface {
	VerifyActor(ctx context.Context, idToken string) (types.Actor, error)
}

// --- Notification Interfaces ---

type NotificationService interface {
	SendPushNotification(ctx context.Context, userID string, title, body string, tokens []string, data map[string]string) error
}
