package database

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storage "github.com/agentflow/onboarding/pkg/storage/firestore"
	"github.com/agentflow/onboarding/pkg/types"
)

// FirestoreAdapter implements shared.Store on Firestore.
// It wraps our typed storage client
type FirestoreAdapter struct {
	Client  *firestore.Client
	storage *storage.Client // internal typed wrapper
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{
		Client:  client,
		storage: storage.NewClient(client),
	}
}

// translate maps gRPC status codes onto the store sentinels. Aborted is what
// a transaction returns once its retries are exhausted.
func translate(err error) error {
	switch status.Code(err) {
	case codes.OK:
		return err
	case codes.NotFound:
		return fmt.Errorf("%w: %v", types.ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", types.ErrAlreadyExists, err)
	case codes.Aborted:
		return fmt.Errorf("%w: %v", types.ErrVersionConflict, err)
	}
	return err
}

// --- Agents ---

func (a *FirestoreAdapter) CreateAgent(ctx context.Context, agent *types.Agent) error {
	return translate(a.storage.Agents().Doc(agent.ID).Create(ctx, agent))
}

func (a *FirestoreAdapter) GetAgent(ctx context.Context, id string) (*types.Agent, error) {
	agent, err := a.storage.Agents().Doc(id).Get(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return agent, nil
}

func (a *FirestoreAdapter) ListAgentsByManager(ctx context.Context, managerID string) ([]*types.Agent, error) {
	coll := a.storage.Agents()
	q := coll.Ref.Query
	if managerID != "" {
		q = q.Where("manager_id", "==", managerID)
	}
	return coll.All(ctx, q.OrderBy("created_at", firestore.Asc))
}

// UpdateAgent is a version compare-and-swap run in a transaction.
func (a *FirestoreAdapter) UpdateAgent(ctx context.Context, agent *types.Agent, expectedVersion int64) error {
	ref := a.storage.Agents().Doc(agent.ID)
	next := agent.Clone()
	next.Version = expectedVersion + 1

	err := a.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := ref.TxGet(tx)
		if err != nil {
			return translate(err)
		}
		if current.Version != expectedVersion {
			return types.ErrVersionConflict
		}
		return ref.TxSet(tx, next)
	})
	if err != nil {
		return translate(err)
	}
	agent.Version = next.Version
	return nil
}

// --- Step records ---

func (a *FirestoreAdapter) CompleteStepRecord(ctx context.Context, record *types.StepRecord) (bool, error) {
	ref := a.storage.AgentSteps(record.AgentID).Doc(record.StepID)

	var created bool
	err := a.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		existing, err := ref.TxGet(tx)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if existing != nil && existing.Status == types.StepStatusCompleted {
			return nil
		}
		created = true
		return ref.TxSet(tx, record)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (a *FirestoreAdapter) GetStepRecord(ctx context.Context, agentID, stepID string) (*types.StepRecord, error) {
	rec, err := a.storage.AgentSteps(agentID).Doc(stepID).Get(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return rec, nil
}

func (a *FirestoreAdapter) ListStepRecords(ctx context.Context, agentID string) ([]*types.StepRecord, error) {
	coll := a.storage.AgentSteps(agentID)
	return coll.All(ctx, coll.Ref.Query)
}

// --- Documents ---

func (a *FirestoreAdapter) CreateDocument(ctx context.Context, doc *types.Document) error {
	return translate(a.storage.AgentDocuments(doc.AgentID).Doc(doc.ID).Create(ctx, doc))
}

func (a *FirestoreAdapter) GetDocument(ctx context.Context, agentID, docID string) (*types.Document, error) {
	doc, err := a.storage.AgentDocuments(agentID).Doc(docID).Get(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return doc, nil
}

func (a *FirestoreAdapter) ListDocuments(ctx context.Context, agentID string) ([]*types.Document, error) {
	coll := a.storage.AgentDocuments(agentID)
	return coll.All(ctx, coll.Ref.OrderBy("uploaded_at", firestore.Asc))
}

func (a *FirestoreAdapter) HasDocument(ctx context.Context, agentID, stepID string) (bool, error) {
	coll := a.storage.AgentDocuments(agentID)
	docs, err := coll.All(ctx, coll.Ref.Where("step_id", "==", stepID).Limit(1))
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// --- Activity ---

func (a *FirestoreAdapter) AppendActivity(ctx context.Context, entry *types.ActivityLogEntry) error {
	return translate(a.storage.AgentActivity(entry.AgentID).Doc(entry.ID).Create(ctx, entry))
}

func (a *FirestoreAdapter) ListActivity(ctx context.Context, agentID string, limit int) ([]*types.ActivityLogEntry, error) {
	coll := a.storage.AgentActivity(agentID)
	q := coll.Ref.OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return coll.All(ctx, q)
}

// --- Messages ---

// AppendMessage bumps the thread's message counter and writes the message in
// one transaction, so Seq is gap-free per thread.
func (a *FirestoreAdapter) AppendMessage(ctx context.Context, msg *types.Message) error {
	threadRef := a.storage.Threads().Doc(msg.ThreadID)
	msgRef := a.storage.ThreadMessages(msg.ThreadID).Doc(msg.ID)

	var seq int64
	err := a.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		seq = 1
		snap, err := tx.Get(threadRef)
		switch {
		case err == nil:
			if n, ok := snap.Data()["message_count"].(int64); ok {
				seq = n + 1
			}
		case status.Code(err) != codes.NotFound:
			return err
		}

		if err := tx.Set(threadRef, map[string]interface{}{
			"agent_id":        msg.ThreadID,
			"message_count":   seq,
			"last_message_at": msg.CreatedAt,
		}, firestore.MergeAll); err != nil {
			return err
		}
		stored := *msg
		stored.Seq = seq
		return msgRef.TxCreate(tx, &stored)
	})
	if err != nil {
		return translate(err)
	}
	msg.Seq = seq
	return nil
}

func (a *FirestoreAdapter) ListMessages(ctx context.Context, threadID string) ([]*types.Message, error) {
	coll := a.storage.ThreadMessages(threadID)
	return coll.All(ctx, coll.Ref.OrderBy("created_at", firestore.Asc).OrderBy("seq", firestore.Asc))
}

// --- Agreements ---

func (a *FirestoreAdapter) CreateAgreement(ctx context.Context, agreement *types.Agreement) error {
	return translate(a.storage.Agreements().Doc(agreement.AgentID).Create(ctx, agreement))
}

func (a *FirestoreAdapter) GetAgreement(ctx context.Context, agentID string) (*types.Agreement, error) {
	ag, err := a.storage.Agreements().Doc(agentID).Get(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return ag, nil
}

// --- Users ---

// GetDeviceTokens returns the push tokens registered for a user. A missing
// profile yields no tokens.
func (a *FirestoreAdapter) GetDeviceTokens(ctx context.Context, userID string) ([]string, error) {
	u, err := a.storage.Users().Doc(userID).Get(ctx)
	if err != nil {
		if errors.Is(translate(err), types.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u.FCMTokens, nil
}
