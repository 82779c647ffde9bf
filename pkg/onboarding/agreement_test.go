package onboarding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/onboarding/pkg/domain/pipeline"
	"github.com/agentflow/onboarding/pkg/types"
)

func TestSignAgreementCompletesStepAndAdvances(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "agent-x")
	h.placeAt(t, "agent-x", pipeline.StageAgreementPending)
	ctx := context.Background()

	ag, agent, err := h.svc.SignAgreement(ctx, agentX, "agent-x", SignatureInput{SignatureRef: "sig://abc", Initials: " jd "})
	require.NoError(t, err)
	assert.Equal(t, types.AgreementStatusSigned, ag.Status)
	assert.Equal(t, "JD", ag.Initials)
	assert.Equal(t, pipeline.StageSureLCSetup, agent.CurrentStage)

	tail := h.actions(t, "agent-x")
	assert.Equal(t, []types.ActivityAction{
		types.ActionAgreementSigned, types.ActionStepCompleted, types.ActionStageAdvanced,
	}, tail[len(tail)-3:])

	again, agent2, err := h.svc.SignAgreement(ctx, agentX, "agent-x", SignatureInput{SignatureRef: "sig://other", Initials: "XY"})
	require.NoError(t, err)
	assert.Equal(t, "sig://abc", again.Signature)
	assert.Equal(t, agent.Version, agent2.Version)
	assert.Equal(t, 1, h.count(t, "agent-x", types.ActionAgreementSigned))
}

func TestSignAgreementRejections(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "agent-x")
	ctx := context.Background()
	good := SignatureInput{SignatureRef: "sig://abc", Initials: "JD"}

	_, _, err := h.svc.SignAgreement(ctx, manager, "agent-x", good)
	assert.ErrorIs(t, err, ErrForbidden, "staff cannot sign on the agent's behalf")

	_, _, err = h.svc.SignAgreement(ctx, agentX, "agent-x", good)
	assert.True(t, IsValidation(err), "agreement is not available at intake")

	h.placeAt(t, "agent-x", pipeline.StageAgreementPending)
	for _, initials := range []string{"", "ABCDE", "J1"} {
		_, _, err = h.svc.SignAgreement(ctx, agentX, "agent-x", SignatureInput{SignatureRef: "sig://abc", Initials: initials})
		assert.True(t, IsValidation(err), initials)
	}
	_, _, err = h.svc.SignAgreement(ctx, agentX, "agent-x", SignatureInput{Initials: "JD"})
	assert.True(t, IsValidation(err))

	_, err = h.svc.CompleteStep(ctx, manager, "agent-x", pipeline.StepSignAgreement)
	assert.True(t, IsValidation(err), "signature-gated step needs a signed agreement")
}

func TestGetAgreementPendingPlaceholder(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "agent-x")

	ag, err := h.svc.GetAgreement(context.Background(), manager, "agent-x")
	require.NoError(t, err)
	assert.Equal(t, types.AgreementStatusPending, ag.Status)
	assert.Equal(t, "agent-x", ag.AgentID)
}
