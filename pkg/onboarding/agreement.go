package onboarding

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agentflow/onboarding/pkg/domain/pipeline"
	"github.com/agentflow/onboarding/pkg/types"
)

type SignatureInput struct {
	// SignatureRef is the artifact reference produced by signature capture.
	SignatureRef string
	Initials     string
}

// SignAgreement records the agent's signed contractor agreement and completes
// the signature-gated step. Only the agent may sign. Signing again returns
// the stored agreement.
func (s *Service) SignAgreement(ctx context.Context, actor types.Actor, agentID string, in SignatureInput) (*types.Agreement, *types.Agent, error) {
	if actor.Role != types.RoleAgent || actor.ID != agentID {
		return nil, nil, ErrForbidden
	}
	sig := strings.TrimSpace(in.SignatureRef)
	if sig == "" {
		return nil, nil, invalid("signature", "required")
	}
	initials := strings.ToUpper(strings.TrimSpace(in.Initials))
	if n := utf8.RuneCountInString(initials); n == 0 || n > 4 || strings.IndexFunc(initials, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
		return nil, nil, invalid("initials", "must be 1-4 letters")
	}

	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}
	if s.registry.Compare(agent.CurrentStage, pipeline.StageAgreementPending) < 0 {
		return nil, nil, invalid("agentId", "agreement is not yet available at stage "+agent.CurrentStage)
	}

	agreement, err := s.store.GetAgreement(ctx, agentID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, nil, storageErr("get agreement", err)
	}

	if agreement == nil || agreement.Status != types.AgreementStatusSigned {
		candidate := &types.Agreement{
			AgentID:   agentID,
			Signature: sig,
			Initials:  initials,
			SignedAt:  s.now(),
			Status:    types.AgreementStatusSigned,
		}
		err := s.store.CreateAgreement(ctx, candidate)
		switch {
		case err == nil:
			agreement = candidate
			s.logger.Info("Agreement signed", "agent_id", agentID)
			s.recordActivity(ctx, agent, types.ActionAgreementSigned, actor.ID, "Signed contractor agreement",
				map[string]interface{}{"initials": initials})
		case errors.Is(err, types.ErrAlreadyExists):
			if agreement, err = s.store.GetAgreement(ctx, agentID); err != nil {
				return nil, nil, storageErr("get agreement", err)
			}
		default:
			return nil, nil, storageErr("create agreement", err)
		}
	}

	step, ok := s.registry.Step(pipeline.StepSignAgreement)
	if !ok {
		return agreement, agent, nil
	}
	agent, _, err = s.completeStep(ctx, actor, agent, step, types.ActionStepCompleted, nil)
	if err != nil {
		return agreement, nil, err
	}
	return agreement, agent, nil
}

func (s *Service) GetAgreement(ctx context.Context, actor types.Actor, agentID string) (*types.Agreement, error) {
	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, err
	}
	ag, err := s.store.GetAgreement(ctx, agentID)
	if errors.Is(err, types.ErrNotFound) {
		return &types.Agreement{AgentID: agentID, Status: types.AgreementStatusPending}, nil
	}
	if err != nil {
		return nil, storageErr("get agreement", err)
	}
	return ag, nil
}
