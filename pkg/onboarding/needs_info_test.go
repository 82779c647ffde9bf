package onboarding

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/onboarding/pkg/domain/pipeline"
	"github.com/agentflow/onboarding/pkg/types"
)

func TestScenarioB_NeedsInfoLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "agent-x")
	h.placeAt(t, "agent-x", pipeline.StageContractingSubmitted)
	ctx := context.Background()

	before, err := h.store.GetAgent(ctx, "agent-x")
	require.NoError(t, err)
	recordsBefore, _ := h.store.ListStepRecords(ctx, "agent-x")

	err = h.svc.SendNeedsInfo(ctx, manager, "agent-x", NeedsInfoRequest{
		Message: "Please re-upload your E&O certificate; the expiry date is cut off.",
		StepID:  "upload_eo_certificate",
	})
	require.NoError(t, err)
	h.svc.Wait()

	after, err := h.store.GetAgent(ctx, "agent-x")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	recordsAfter, _ := h.store.ListStepRecords(ctx, "agent-x")
	assert.Equal(t, recordsBefore, recordsAfter)

	require.Equal(t, []string{"needs_info"}, h.dispatch.Types())
	payload := h.dispatch.Sent[0].Payload
	assert.Equal(t, "agent-x", payload["agentId"])
	assert.Equal(t, "upload_eo_certificate", payload["stepId"])

	assert.Equal(t, 1, h.count(t, "agent-x", types.ActionNeedsInfoSent))

	msgs, _ := h.store.ListMessages(ctx, "agent-x")
	assert.Empty(t, msgs, "needs-info does not post to the thread")
}

func TestNeedsInfoRejections(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "agent-x")
	ctx := context.Background()

	err := h.svc.SendNeedsInfo(ctx, agentX, "agent-x", NeedsInfoRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)

	err = h.svc.SendNeedsInfo(ctx, other, "agent-x", NeedsInfoRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)

	err = h.svc.SendNeedsInfo(ctx, manager, "agent-x", NeedsInfoRequest{Message: ""})
	assert.True(t, IsValidation(err))

	err = h.svc.SendNeedsInfo(ctx, manager, "agent-x", NeedsInfoRequest{Message: strings.Repeat("a", 2001)})
	assert.True(t, IsValidation(err))

	err = h.svc.SendNeedsInfo(ctx, manager, "agent-x", NeedsInfoRequest{Message: "hi", StepID: "nope"})
	assert.True(t, IsValidation(err))

	h.svc.Wait()
	assert.Empty(t, h.dispatch.Types())
}
