package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agentflow/onboarding/pkg/eventbus"
	"github.com/agentflow/onboarding/pkg/types"
)

type NewAgent struct {
	// ID is the agent's identity-provider account ID.
	ID        string
	ManagerID string
	Name      string
	Email     string
}

// CreateAgent registers an agent at intake. Managers create agents under
// themselves; admins must name the manager.
func (s *Service) CreateAgent(ctx context.Context, actor types.Actor, in NewAgent) (*types.Agent, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, invalid("id", "required")
	}
	managerID := strings.TrimSpace(in.ManagerID)
	if actor.Role == types.RoleManager {
		if managerID == "" {
			managerID = actor.ID
		}
		if managerID != actor.ID {
			return nil, ErrForbidden
		}
	}
	if managerID == "" {
		return nil, invalid("managerId", "required")
	}

	now := s.now()
	agent := &types.Agent{
		ID:           id,
		ManagerID:    managerID,
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		CurrentStage: s.registry.FirstStage(),
		Status:       types.AgentStatusInProgress,
		ProgressPct:  0,
		PortalActive: false,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.store.CreateAgent(ctx, agent)
	if errors.Is(err, types.ErrAlreadyExists) {
		return nil, &ValidationError{Field: "id", Reason: fmt.Sprintf("agent %q already exists", id), Err: err}
	}
	if err != nil {
		return nil, storageErr("create agent", err)
	}

	s.logger.Info("Agent created", "agent_id", agent.ID, "manager_id", managerID, "actor_id", actor.ID)
	s.publish(eventbus.EventAgentUpdated, agent, agent)
	s.recordActivity(ctx, agent, types.ActionAgentCreated, actor.ID, "Intake submitted", nil)
	return agent, nil
}

func (s *Service) GetAgent(ctx context.Context, actor types.Actor, agentID string) (*types.Agent, error) {
	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// ListAgents lists the agents visible to actor. managerID narrows the list;
// managers may only ask for their own.
func (s *Service) ListAgents(ctx context.Context, actor types.Actor, managerID string) ([]*types.Agent, error) {
	switch actor.Role {
	case types.RoleAgent:
		agent, err := s.GetAgent(ctx, actor, actor.ID)
		if err != nil {
			return nil, err
		}
		return []*types.Agent{agent}, nil
	case types.RoleManager:
		if managerID != "" && managerID != actor.ID {
			return nil, ErrForbidden
		}
		managerID = actor.ID
	case types.RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	agents, err := s.store.ListAgentsByManager(ctx, managerID)
	if err != nil {
		return nil, storageErr("list agents", err)
	}
	return agents, nil
}

// SetHold pauses or resumes an agent. Step completions are still recorded
// while on hold but the stage does not advance; resuming re-evaluates the
// current stage.
func (s *Service) SetHold(ctx context.Context, actor types.Actor, agentID string, hold bool, reason string) (*types.Agent, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, err
	}

	want := types.AgentStatusInProgress
	if hold {
		want = types.AgentStatusOnHold
	}

	for attempt := 0; ; attempt++ {
		if agent.Status == types.AgentStatusCompleted {
			return nil, invalid("agentId", "agent has completed onboarding")
		}
		if agent.Status == want {
			return agent, nil
		}
		if attempt == maxCASAttempts {
			return nil, storageErr("update agent", types.ErrVersionConflict)
		}

		next := agent.Clone()
		next.Status = want
		next.UpdatedAt = s.now()
		err := s.store.UpdateAgent(ctx, next, agent.Version)
		if errors.Is(err, types.ErrVersionConflict) {
			if agent, err = s.loadAgent(ctx, agentID); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, storageErr("update agent", err)
		}
		agent = next
		break
	}

	s.logger.Info("Agent status changed", "agent_id", agentID, "status", want, "actor_id", actor.ID)
	s.publish(eventbus.EventAgentUpdated, agent, agent)
	meta := map[string]interface{}{"status": string(want)}
	if reason = strings.TrimSpace(reason); reason != "" {
		meta["reason"] = reason
	}
	s.recordActivity(ctx, agent, types.ActionStatusChanged, actor.ID, fmt.Sprintf("Status set to %s", want), meta)

	if !hold {
		updated, hops, err := s.reconcile(ctx, agentID)
		if err != nil {
			return nil, err
		}
		s.afterAdvance(ctx, updated, hops, actor.ID)
		agent = updated
	}
	return agent, nil
}
