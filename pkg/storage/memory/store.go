// Package memory is an in-process implementation of shared.Store used by
// tests and by the standalone server when STORE=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/agentflow/onboarding/pkg/types"
)

type stepKey struct {
	agentID string
	stepID  string
}

type Store struct {
	mu         sync.RWMutex
	agents     map[string]*types.Agent
	steps      map[stepKey]*types.StepRecord
	documents  map[string][]*types.Document
	activity   map[string][]*types.ActivityLogEntry
	messages   map[string][]*types.Message
	agreements map[string]*types.Agreement
}

func New() *Store {
	return &Store{
		agents:     make(map[string]*types.Agent),
		steps:      make(map[stepKey]*types.StepRecord),
		documents:  make(map[string][]*types.Document),
		activity:   make(map[string][]*types.ActivityLogEntry),
		messages:   make(map[string][]*types.Message),
		agreements: make(map[string]*types.Agreement),
	}
}

// --- Agents ---

func (s *Store) CreateAgent(ctx context.Context, agent *types.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agent.ID]; ok {
		return types.ErrAlreadyExists
	}
	s.agents[agent.ID] = agent.Clone()
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*types.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *Store) ListAgentsByManager(ctx context.Context, managerID string) ([]*types.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Agent
	for _, a := range s.agents {
		if managerID == "" || a.ManagerID == managerID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateAgent(ctx context.Context, agent *types.Agent, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.agents[agent.ID]
	if !ok {
		return types.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return types.ErrVersionConflict
	}
	next := agent.Clone()
	next.Version = expectedVersion + 1
	s.agents[agent.ID] = next
	agent.Version = next.Version
	return nil
}

// --- Step records ---

func (s *Store) CompleteStepRecord(ctx context.Context, record *types.StepRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := stepKey{record.AgentID, record.StepID}
	if cur, ok := s.steps[k]; ok && cur.Status == types.StepStatusCompleted {
		return false, nil
	}
	rec := *record
	rec.Status = types.StepStatusCompleted
	s.steps[k] = &rec
	return true, nil
}

func (s *Store) GetStepRecord(ctx context.Context, agentID, stepID string) (*types.StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.steps[stepKey{agentID, stepID}]
	if !ok {
		return nil, types.ErrNotFound
	}
	c := *rec
	return &c, nil
}

func (s *Store) ListStepRecords(ctx context.Context, agentID string) ([]*types.StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.StepRecord
	for k, rec := range s.steps {
		if k.agentID == agentID {
			c := *rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepID < out[j].StepID })
	return out, nil
}

// --- Documents ---

func (s *Store) CreateDocument(ctx context.Context, doc *types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *doc
	s.documents[doc.AgentID] = append(s.documents[doc.AgentID], &c)
	return nil
}

func (s *Store) GetDocument(ctx context.Context, agentID, docID string) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.documents[agentID] {
		if d.ID == docID {
			c := *d
			return &c, nil
		}
	}
	return nil, types.ErrNotFound
}

func (s *Store) ListDocuments(ctx context.Context, agentID string) ([]*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Document, 0, len(s.documents[agentID]))
	for _, d := range s.documents[agentID] {
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) HasDocument(ctx context.Context, agentID, stepID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.documents[agentID] {
		if d.StepID == stepID {
			return true, nil
		}
	}
	return false, nil
}

// --- Activity ---

func (s *Store) AppendActivity(ctx context.Context, entry *types.ActivityLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *entry
	s.activity[entry.AgentID] = append(s.activity[entry.AgentID], &c)
	return nil
}

func (s *Store) ListActivity(ctx context.Context, agentID string, limit int) ([]*types.ActivityLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.activity[agentID]
	out := make([]*types.ActivityLogEntry, 0, len(entries))
	// Newest first; later appends win ties.
	for i := len(entries) - 1; i >= 0; i-- {
		c := *entries[i]
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Messages ---

func (s *Store) AppendMessage(ctx context.Context, msg *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := s.messages[msg.ThreadID]
	msg.Seq = int64(len(thread)) + 1
	c := *msg
	s.messages[msg.ThreadID] = append(thread, &c)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, threadID string) ([]*types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread := s.messages[threadID]
	out := make([]*types.Message, 0, len(thread))
	for _, m := range thread {
		c := *m
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// --- Agreements ---

func (s *Store) CreateAgreement(ctx context.Context, agreement *types.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agreements[agreement.AgentID]; ok {
		return types.ErrAlreadyExists
	}
	c := *agreement
	s.agreements[agreement.AgentID] = &c
	return nil
}

func (s *Store) GetAgreement(ctx context.Context, agentID string) (*types.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agreements[agentID]
	if !ok {
		return nil, types.ErrNotFound
	}
	c := *a
	return &c, nil
}
