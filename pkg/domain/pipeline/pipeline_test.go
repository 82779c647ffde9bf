package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	stages := r.Stages()
	require.Len(t, stages, 8)
	assert.Equal(t, StageIntakeSubmitted, r.FirstStage())
	assert.Equal(t, StageOnboardingComplete, stages[len(stages)-1].Key)
	assert.Equal(t, len(defaultSteps), r.TotalSteps())

	for _, s := range stages {
		assert.NotEmpty(t, r.RequiredSteps(s.Key), "stage %s should gate on at least one required step", s.Key)
	}
}

func TestNextStage(t *testing.T) {
	r := Default()

	next, ok := r.NextStage(StageSureLCSetup)
	require.True(t, ok)
	assert.Equal(t, StageBundleSelected, next)

	_, ok = r.NextStage(StageOnboardingComplete)
	assert.False(t, ok, "terminal stage has no successor")

	_, ok = r.NextStage("nope")
	assert.False(t, ok)
}

func TestStepsForStageOrdered(t *testing.T) {
	r := Default()

	steps := r.StepsForStage(StageAgreementPending)
	require.Len(t, steps, 2)
	assert.Equal(t, "review_agreement", steps[0].ID)
	assert.Equal(t, StepSignAgreement, steps[1].ID)
	assert.True(t, steps[1].RequiresSignature)

	// Mutating the returned slice must not leak into the registry.
	steps[0].ID = "mutated"
	assert.Equal(t, "review_agreement", r.StepsForStage(StageAgreementPending)[0].ID)
}

func TestCompare(t *testing.T) {
	r := Default()
	assert.Less(t, r.Compare(StageIntakeSubmitted, StageAppointed), 0)
	assert.Greater(t, r.Compare(StageAppointed, StageSureLCSetup), 0)
	assert.Zero(t, r.Compare(StageBundleSelected, StageBundleSelected))
}

func TestProgressPct(t *testing.T) {
	r, err := NewRegistry(
		[]Stage{{Key: "a", Order: 1}},
		[]Step{{ID: "1", Stage: "a"}, {ID: "2", Stage: "a"}, {ID: "3", Stage: "a"}},
	)
	require.NoError(t, err)

	assert.Equal(t, 0, r.ProgressPct(0))
	assert.Equal(t, 33, r.ProgressPct(1))
	assert.Equal(t, 66, r.ProgressPct(2))
	assert.Equal(t, 100, r.ProgressPct(3))
	assert.Equal(t, 100, r.ProgressPct(7))
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
		steps  []Step
	}{
		{
			name: "no stages",
		},
		{
			name:   "step references unknown stage",
			stages: []Stage{{Key: "a", Order: 1}},
			steps:  []Step{{ID: "s", Stage: "b"}},
		},
		{
			name:   "duplicate stage",
			stages: []Stage{{Key: "a", Order: 1}, {Key: "a", Order: 2}},
		},
		{
			name:   "shared order",
			stages: []Stage{{Key: "a", Order: 1}, {Key: "b", Order: 1}},
		},
		{
			name:   "duplicate step",
			stages: []Stage{{Key: "a", Order: 1}},
			steps:  []Step{{ID: "s", Stage: "a"}, {ID: "s", Stage: "a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.stages, tt.steps)
			assert.Error(t, err)
		})
	}
}

func TestNewRegistrySortsByOrder(t *testing.T) {
	r, err := NewRegistry(
		[]Stage{{Key: "second", Order: 2}, {Key: "first", Order: 1}},
		[]Step{{ID: "y", Stage: "first", Order: 2}, {ID: "x", Stage: "first", Order: 1}},
	)
	require.NoError(t, err)

	assert.Equal(t, "first", r.FirstStage())
	next, ok := r.NextStage("first")
	require.True(t, ok)
	assert.Equal(t, "second", next)
	assert.Equal(t, "x", r.StepsForStage("first")[0].ID)
	assert.Empty(t, r.RequiredSteps("second"))
}
