package onboarding

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	shared "github.com/agentflow/onboarding/pkg"
	"github.com/agentflow/onboarding/pkg/types"
)

type NeedsInfoRequest struct {
	Message string
	// StepID optionally points the agent at the step that needs attention.
	StepID string
}

// SendNeedsInfo notifies the agent that more information is required. It is
// advisory: the agent's stage, status, progress and step records are left
// untouched, and it does not post to the message thread.
func (s *Service) SendNeedsInfo(ctx context.Context, actor types.Actor, agentID string, req NeedsInfoRequest) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return invalid("message", "required")
	}
	if utf8.RuneCountInString(msg) > shared.MaxNeedsInfoLength {
		return invalid("message", fmt.Sprintf("longer than %d characters", shared.MaxNeedsInfoLength))
	}
	if req.StepID != "" {
		if _, ok := s.registry.Step(req.StepID); !ok {
			return invalid("stepId", fmt.Sprintf("unknown step %q", req.StepID))
		}
	}

	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return err
	}
	if err := authorize(actor, agent); err != nil {
		return err
	}

	payload := map[string]interface{}{
		"agentId":     agent.ID,
		"managerId":   agent.ManagerID,
		"requestedBy": actor.ID,
		"message":     msg,
	}
	meta := map[string]interface{}{"message": msg}
	if req.StepID != "" {
		payload["stepId"] = req.StepID
		meta["stepId"] = req.StepID
	}

	s.logger.Info("Needs-info request sent", "agent_id", agent.ID, "actor_id", actor.ID, "step_id", req.StepID)
	s.notify(ctx, "needs_info", payload)
	s.recordActivity(ctx, agent, types.ActionNeedsInfoSent, actor.ID, "Requested more information", meta)
	return nil
}
