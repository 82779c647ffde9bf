package onboarding

import (
	"context"
	"errors"

	"github.com/agentflow/onboarding/pkg/eventbus"
	"github.com/agentflow/onboarding/pkg/types"
)

// ErrApprovalUnavailable means the service was built without the privileged
// identity client.
var ErrApprovalUnavailable = errors.New("approval gate not configured")

// ApproveAgent activates the agent's portal login. It needs an actor holding
// the approval capability and the privileged identity client; ordinary
// manager visibility is neither required nor sufficient. Approving an
// already-active agent is a no-op. If the agent write fails after the login
// was activated, the error is returned and calling ApproveAgent again
// completes the approval.
func (s *Service) ApproveAgent(ctx context.Context, actor types.Actor, agentID string) (*types.Agent, error) {
	if !actor.CanApprove || !actor.IsStaff() {
		return nil, ErrForbidden
	}
	if s.identity == nil {
		return nil, ErrApprovalUnavailable
	}

	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.PortalActive {
		return agent, nil
	}

	logger := s.logger.With("agent_id", agentID, "actor_id", actor.ID)

	if err := s.identity.SetLoginActive(ctx, agent.ID, true); err != nil {
		logger.Error("Failed to activate login", "error", err)
		return nil, storageErr("activate login", err)
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if attempt > 0 {
			if agent, err = s.loadAgent(ctx, agentID); err != nil {
				return nil, err
			}
		}
		if agent.PortalActive {
			// A concurrent approval landed first and owns the audit entry.
			return agent, nil
		}

		next := agent.Clone()
		next.PortalActive = true
		next.UpdatedAt = s.now()
		err = s.store.UpdateAgent(ctx, next, agent.Version)
		if errors.Is(err, types.ErrVersionConflict) {
			continue
		}
		if err != nil {
			logger.Error("Login activated but agent write failed", "error", err)
			return nil, storageErr("update agent", err)
		}

		logger.Info("Agent approved for portal access")
		s.publish(eventbus.EventAgentUpdated, next, next)
		s.recordActivity(ctx, next, types.ActionAgentApproved, actor.ID, "Portal access approved", nil)
		s.notify(ctx, "agent_approved", map[string]interface{}{
			"agentId":    next.ID,
			"managerId":  next.ManagerID,
			"approvedBy": actor.ID,
		})
		return next, nil
	}

	// The login stays active. A later approval re-reads, finds the flag still
	// unset and repeats the idempotent activation before writing it.
	if latest, err := s.loadAgent(ctx, agentID); err == nil && latest.PortalActive {
		return latest, nil
	}
	s.swallow(types.ErrVersionConflict, "approve agent", map[string]interface{}{"agent_id": agentID, "login_active": true})
	return nil, storageErr("update agent", types.ErrVersionConflict)
}
