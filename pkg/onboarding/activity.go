package onboarding

import (
	"context"

	shared "github.com/agentflow/onboarding/pkg"
	"github.com/agentflow/onboarding/pkg/eventbus"
	"github.com/agentflow/onboarding/pkg/types"
)

// recordActivity appends one audit entry. It is best-effort: a failed write
// is logged and reported but never returned.
func (s *Service) recordActivity(ctx context.Context, agent *types.Agent, action types.ActivityAction, performedBy, description string, metadata map[string]interface{}) {
	entry := &types.ActivityLogEntry{
		ID:          s.newID(),
		AgentID:     agent.ID,
		Action:      action,
		Description: description,
		PerformedBy: performedBy,
		Metadata:    metadata,
		CreatedAt:   s.now(),
	}

	if err := s.store.AppendActivity(ctx, entry); err != nil {
		s.swallow(err, "append activity", map[string]interface{}{
			"agent_id": agent.ID,
			"action":   string(action),
		})
		return
	}

	s.publish(eventbus.EventActivityAdded, agent, entry)
}

// ListActivity returns the agent's audit trail, newest first.
func (s *Service) ListActivity(ctx context.Context, actor types.Actor, agentID string, limit int) ([]*types.ActivityLogEntry, error) {
	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = shared.DefaultActivityPageSize
	}
	entries, err := s.store.ListActivity(ctx, agentID, limit)
	if err != nil {
		return nil, storageErr("list activity", err)
	}
	return entries, nil
}
