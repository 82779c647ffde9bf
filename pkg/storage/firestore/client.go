package firestore

import (
	"cloud.google.com/go/firestore"

	shared "github.com/agentflow/onboarding/pkg"
	"github.com/agentflow/onboarding/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

// Raw exposes the underlying client for transactions.
func (c *Client) Raw() *firestore.Client {
	return c.fs
}

func (c *Client) Close() error {
	return c.fs.Close()
}

// Agents is a top-level collection: agents/{agentId}
func (c *Client) Agents() *Collection[types.Agent] {
	return &Collection[types.Agent]{
		Ref:           c.fs.Collection(shared.CollectionAgents),
		ToFirestore:   AgentToFirestore,
		FromFirestore: FirestoreToAgent,
	}
}

// AgentSteps are sub-collections of Agents: agents/{agentId}/steps/{stepId}
func (c *Client) AgentSteps(agentID string) *Collection[types.StepRecord] {
	return &Collection[types.StepRecord]{
		Ref:           c.fs.Collection(shared.CollectionAgents).Doc(agentID).Collection(shared.SubcollectionSteps),
		ToFirestore:   StepRecordToFirestore,
		FromFirestore: FirestoreToStepRecord,
	}
}

// AgentDocuments are sub-collections of Agents: agents/{agentId}/documents/{docId}
// Only metadata lives here; the bytes are in the document bucket.
func (c *Client) AgentDocuments(agentID string) *Collection[types.Document] {
	return &Collection[types.Document]{
		Ref:           c.fs.Collection(shared.CollectionAgents).Doc(agentID).Collection(shared.SubcollectionDocuments),
		ToFirestore:   DocumentToFirestore,
		FromFirestore: FirestoreToDocument,
	}
}

// AgentActivity are sub-collections of Agents: agents/{agentId}/activity/{entryId}
func (c *Client) AgentActivity(agentID string) *Collection[types.ActivityLogEntry] {
	return &Collection[types.ActivityLogEntry]{
		Ref:           c.fs.Collection(shared.CollectionAgents).Doc(agentID).Collection(shared.SubcollectionActivity),
		ToFirestore:   ActivityToFirestore,
		FromFirestore: FirestoreToActivity,
	}
}

// Threads is a top-level collection keyed by agent ID: threads/{agentId}
// The thread document carries the message sequence counter.
func (c *Client) Threads() *firestore.CollectionRef {
	return c.fs.Collection(shared.CollectionThreads)
}

// ThreadMessages are sub-collections of Threads: threads/{agentId}/messages/{messageId}
func (c *Client) ThreadMessages(threadID string) *Collection[types.Message] {
	return &Collection[types.Message]{
		Ref:           c.Threads().Doc(threadID).Collection(shared.SubcollectionMessages),
		ToFirestore:   MessageToFirestore,
		FromFirestore: FirestoreToMessage,
	}
}

// Agreements is a top-level collection keyed by agent ID: agreements/{agentId}
func (c *Client) Agreements() *Collection[types.Agreement] {
	return &Collection[types.Agreement]{
		Ref:           c.fs.Collection(shared.CollectionAgreements),
		ToFirestore:   AgreementToFirestore,
		FromFirestore: FirestoreToAgreement,
	}
}

// Users is a top-level collection: users/{uid}
// Read by the notification sender for device tokens.
func (c *Client) Users() *Collection[UserDevices] {
	return &Collection[UserDevices]{
		Ref:           c.fs.Collection(shared.CollectionUsers),
		ToFirestore:   UserDevicesToFirestore,
		FromFirestore: FirestoreToUserDevices,
	}
}
