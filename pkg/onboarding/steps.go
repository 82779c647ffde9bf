package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentflow/onboarding/pkg/domain/pipeline"
	"github.com/agentflow/onboarding/pkg/eventbus"
	"github.com/agentflow/onboarding/pkg/types"
)

// advancement is one stage transition applied by reconcile. Completed is set
// when the terminal stage was satisfied and To is empty.
type advancement struct {
	From      string
	To        string
	Completed bool
}

// CompleteStep marks stepID complete for the agent and advances the agent's
// stage when every required step of the current stage is satisfied.
// Completing an already-completed step records nothing new.
func (s *Service) CompleteStep(ctx context.Context, actor types.Actor, agentID, stepID string) (*types.Agent, error) {
	step, ok := s.registry.Step(stepID)
	if !ok {
		return nil, invalid("stepId", fmt.Sprintf("unknown step %q", stepID))
	}

	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, err
	}
	if err := s.checkReachable(actor, agent, step); err != nil {
		return nil, err
	}

	agent, _, err = s.completeStep(ctx, actor, agent, step, types.ActionStepCompleted, nil)
	return agent, err
}

// checkReachable stops agents from working ahead of their current stage.
// Staff may complete any step as a corrective override.
func (s *Service) checkReachable(actor types.Actor, agent *types.Agent, step pipeline.Step) error {
	if actor.IsStaff() {
		return nil
	}
	if s.registry.Compare(step.Stage, agent.CurrentStage) > 0 {
		return invalid("stepId", fmt.Sprintf("step %q belongs to stage %q which is not yet reachable", step.ID, step.Stage))
	}
	return nil
}

// completeStep performs the write path shared by CompleteStep, uploads and
// agreement signing. action names the audit entry for the completion itself.
// The returned bool reports whether this call transitioned the record.
func (s *Service) completeStep(ctx context.Context, actor types.Actor, agent *types.Agent, step pipeline.Step, action types.ActivityAction, metadata map[string]interface{}) (*types.Agent, bool, error) {
	logger := s.logger.With("agent_id", agent.ID, "step_id", step.ID, "actor_id", actor.ID)

	existing, err := s.store.GetStepRecord(ctx, agent.ID, step.ID)
	switch {
	case err == nil && existing.Status == types.StepStatusCompleted:
		logger.Debug("Step already completed")
		// Nothing new is recorded, but an agent left on an already
		// satisfied stage is moved on.
		updated, hops, err := s.reconcile(ctx, agent.ID)
		if err != nil {
			return nil, false, err
		}
		s.afterAdvance(ctx, updated, hops, actor.ID)
		return updated, false, nil
	case err != nil && !errors.Is(err, types.ErrNotFound):
		return nil, false, storageErr("get step record", err)
	}

	if err := s.checkEvidence(ctx, agent.ID, step); err != nil {
		return nil, false, err
	}

	record := &types.StepRecord{
		AgentID:     agent.ID,
		StepID:      step.ID,
		Status:      types.StepStatusCompleted,
		CompletedAt: s.now(),
		CompletedBy: actor.ID,
	}
	created, err := s.store.CompleteStepRecord(ctx, record)
	if err != nil {
		return nil, false, storageErr("complete step record", err)
	}
	if !created {
		// A concurrent call completed the same step first.
		current, err := s.loadAgent(ctx, agent.ID)
		return current, false, err
	}
	s.publish(eventbus.EventStepCompleted, agent, record)

	updated, hops, err := s.reconcile(ctx, agent.ID)
	if err != nil {
		return nil, true, err
	}

	logger.Info("Step completed", "stage", updated.CurrentStage, "progress_pct", updated.ProgressPct)

	meta := map[string]interface{}{"stepId": step.ID, "stage": step.Stage}
	for k, v := range metadata {
		meta[k] = v
	}
	description := fmt.Sprintf("Completed step: %s", step.Title)
	if action == types.ActionDocumentUpload {
		description = fmt.Sprintf("Uploaded document for step: %s", step.Title)
	}
	s.recordActivity(ctx, updated, action, actor.ID, description, meta)
	s.afterAdvance(ctx, updated, hops, actor.ID)

	return updated, true, nil
}

// checkEvidence enforces upload- and signature-gated steps.
func (s *Service) checkEvidence(ctx context.Context, agentID string, step pipeline.Step) error {
	if step.RequiresUpload {
		ok, err := s.store.HasDocument(ctx, agentID, step.ID)
		if err != nil {
			return storageErr("check document", err)
		}
		if !ok {
			return invalid("stepId", fmt.Sprintf("step %q requires an uploaded document", step.ID))
		}
	}
	if step.RequiresSignature {
		ag, err := s.store.GetAgreement(ctx, agentID)
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			return storageErr("get agreement", err)
		}
		if ag == nil || ag.Status != types.AgreementStatusSigned {
			return invalid("stepId", fmt.Sprintf("step %q requires a signed agreement", step.ID))
		}
	}
	return nil
}

// reconcile recomputes the agent's derived state from its step records and
// writes it with a version compare-and-swap. The stage keeps advancing while
// the new current stage is satisfied, so steps completed ahead of time are
// honoured when the agent arrives. A writer that loses the swap re-reads and
// derives again from the winner's state, so each transition is applied once.
func (s *Service) reconcile(ctx context.Context, agentID string) (*types.Agent, []advancement, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		agent, err := s.loadAgent(ctx, agentID)
		if err != nil {
			return nil, nil, err
		}

		records, err := s.store.ListStepRecords(ctx, agentID)
		if err != nil {
			return nil, nil, storageErr("list step records", err)
		}
		completed := s.completedSet(records)

		next := agent.Clone()
		if pct := s.registry.ProgressPct(len(completed)); pct > next.ProgressPct {
			next.ProgressPct = pct
		}

		var hops []advancement
		if agent.Status == types.AgentStatusInProgress {
			hops = s.advance(next, completed)
		}

		if next.ProgressPct == agent.ProgressPct && len(hops) == 0 {
			return agent, nil, nil
		}

		next.UpdatedAt = s.now()
		err = s.store.UpdateAgent(ctx, next, agent.Version)
		if errors.Is(err, types.ErrVersionConflict) {
			s.logger.Debug("Agent write lost race, re-reading", "agent_id", agentID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, nil, storageErr("update agent", err)
		}

		s.publish(eventbus.EventAgentUpdated, next, next)
		return next, hops, nil
	}

	// Persistent contention: someone else keeps writing. Their writes carry
	// the same derivation, so report the latest state rather than failing.
	s.logger.Warn("Agent reconcile gave up after repeated conflicts", "agent_id", agentID)
	agent, err := s.loadAgent(ctx, agentID)
	return agent, nil, err
}

// advance moves agent through every consecutive satisfied stage, stopping
// at the first stage that still has required work (or none at all).
func (s *Service) advance(agent *types.Agent, completed map[string]bool) []advancement {
	var hops []advancement
	for s.stageSatisfied(agent.CurrentStage, completed) {
		to, ok := s.registry.NextStage(agent.CurrentStage)
		if !ok {
			agent.Status = types.AgentStatusCompleted
			return append(hops, advancement{From: agent.CurrentStage, Completed: true})
		}
		hops = append(hops, advancement{From: agent.CurrentStage, To: to})
		agent.CurrentStage = to
	}
	return hops
}

func (s *Service) completedSet(records []*types.StepRecord) map[string]bool {
	done := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Status != types.StepStatusCompleted {
			continue
		}
		if _, ok := s.registry.Step(r.StepID); ok {
			done[r.StepID] = true
		}
	}
	return done
}

// stageSatisfied requires at least one required step: a stage with nothing
// required never advances on its own.
func (s *Service) stageSatisfied(stage string, completed map[string]bool) bool {
	required := s.registry.RequiredSteps(stage)
	if len(required) == 0 {
		return false
	}
	for _, st := range required {
		if !completed[st.ID] {
			return false
		}
	}
	return true
}

// afterAdvance writes one stage_advanced audit entry and notification per
// applied transition, in order.
func (s *Service) afterAdvance(ctx context.Context, agent *types.Agent, hops []advancement, performedBy string) {
	for _, adv := range hops {
		if adv.Completed {
			s.logger.Info("Onboarding completed", "agent_id", agent.ID, "stage", adv.From)
			s.recordActivity(ctx, agent, types.ActionStageAdvanced, performedBy,
				"Onboarding completed",
				map[string]interface{}{"from": adv.From, "completed": true})
			s.notify(ctx, "onboarding_completed", map[string]interface{}{
				"agentId":   agent.ID,
				"managerId": agent.ManagerID,
				"stage":     adv.From,
			})
			continue
		}

		label := adv.To
		if st, ok := s.registry.Stage(adv.To); ok {
			label = st.Label
		}
		s.logger.Info("Stage advanced", "agent_id", agent.ID, "from", adv.From, "to", adv.To)
		s.recordActivity(ctx, agent, types.ActionStageAdvanced, performedBy,
			fmt.Sprintf("Advanced to %s", label),
			map[string]interface{}{"from": adv.From, "to": adv.To})
		s.notify(ctx, "stage_advanced", map[string]interface{}{
			"agentId":   agent.ID,
			"managerId": agent.ManagerID,
			"from":      adv.From,
			"to":        adv.To,
		})
	}
}

// ListStepRecords returns the agent's step records, including those of
// stages already passed.
func (s *Service) ListStepRecords(ctx context.Context, actor types.Actor, agentID string) ([]*types.StepRecord, error) {
	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, err
	}
	records, err := s.store.ListStepRecords(ctx, agentID)
	if err != nil {
		return nil, storageErr("list step records", err)
	}
	return records, nil
}
