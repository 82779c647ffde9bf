// Package pipeline defines the static contracting pipeline: the ordered
// stages an agent moves through and the steps that gate each stage.
package pipeline

import (
	"fmt"
	"sort"
)

const (
	StageIntakeSubmitted        = "intake_submitted"
	StageAgreementPending       = "agreement_pending"
	StageSureLCSetup            = "surelc_setup"
	StageBundleSelected         = "bundle_selected"
	StageContractingSubmitted   = "contracting_submitted"
	StageCarrierApprovalPending = "carrier_approval_pending"
	StageAppointed              = "appointed"
	StageOnboardingComplete     = "onboarding_complete"
)

// Step IDs referenced from code paths outside the generic step tracker.
const (
	StepSignAgreement    = "sign_agreement"
	StepSureLCScreenshot = "surelc_screenshot"
)

type Stage struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

type Step struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Stage             string `json:"stage"`
	Order             int    `json:"order"`
	IsRequired        bool   `json:"isRequired"`
	RequiresUpload    bool   `json:"requiresUpload"`
	RequiresSignature bool   `json:"requiresSignature,omitempty"`
}

var defaultStages = []Stage{
	{Key: StageIntakeSubmitted, Label: "Intake Submitted", Order: 1},
	{Key: StageAgreementPending, Label: "Agreement Pending", Order: 2},
	{Key: StageSureLCSetup, Label: "SureLC Setup", Order: 3},
	{Key: StageBundleSelected, Label: "Carrier Bundle Selected", Order: 4},
	{Key: StageContractingSubmitted, Label: "Contracting Submitted", Order: 5},
	{Key: StageCarrierApprovalPending, Label: "Carrier Approval Pending", Order: 6},
	{Key: StageAppointed, Label: "Appointed", Order: 7},
	{Key: StageOnboardingComplete, Label: "Onboarding Complete", Order: 8},
}

var defaultSteps = []Step{
	{ID: "confirm_profile", Title: "Confirm contact details", Stage: StageIntakeSubmitted, Order: 1, IsRequired: true},
	{ID: "upload_license", Title: "Upload resident insurance license", Stage: StageIntakeSubmitted, Order: 2, IsRequired: true, RequiresUpload: true},

	{ID: "review_agreement", Title: "Review independent contractor agreement", Stage: StageAgreementPending, Order: 1},
	{ID: StepSignAgreement, Title: "Sign agreement", Stage: StageAgreementPending, Order: 2, IsRequired: true, RequiresSignature: true},

	{ID: "create_surelc_account", Title: "Create SureLC account", Stage: StageSureLCSetup, Order: 1},
	{ID: StepSureLCScreenshot, Title: "Upload SureLC profile screenshot", Stage: StageSureLCSetup, Order: 2, IsRequired: true, RequiresUpload: true},

	{ID: "review_bundle", Title: "Review assigned carrier bundle", Stage: StageBundleSelected, Order: 1, IsRequired: true},

	{ID: "submit_contracting", Title: "Submit carrier contracting packet", Stage: StageContractingSubmitted, Order: 1, IsRequired: true},
	{ID: "upload_eo_certificate", Title: "Upload E&O certificate", Stage: StageContractingSubmitted, Order: 2, IsRequired: true, RequiresUpload: true},

	{ID: "carrier_approvals_received", Title: "Carrier approvals received", Stage: StageCarrierApprovalPending, Order: 1, IsRequired: true},

	{ID: "watch_product_training", Title: "Watch product training", Stage: StageAppointed, Order: 1},
	{ID: "kickoff_call", Title: "Attend kickoff call with manager", Stage: StageAppointed, Order: 2, IsRequired: true},

	{ID: "complete_orientation", Title: "Complete agency orientation", Stage: StageOnboardingComplete, Order: 1, IsRequired: true},
}

// Registry is read-only after construction.
type Registry struct {
	stages     []Stage
	stageIndex map[string]int
	steps      map[string]Step
	byStage    map[string][]Step
	totalSteps int
}

// NewRegistry validates the definitions and builds a registry. A step that
// references an unknown stage, duplicate keys, or duplicate step IDs are
// configuration errors.
func NewRegistry(stages []Stage, steps []Step) (*Registry, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline: no stages defined")
	}

	ordered := make([]Stage, len(stages))
	copy(ordered, stages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	r := &Registry{
		stages:     ordered,
		stageIndex: make(map[string]int, len(ordered)),
		steps:      make(map[string]Step, len(steps)),
		byStage:    make(map[string][]Step, len(ordered)),
		totalSteps: len(steps),
	}

	for i, s := range ordered {
		if s.Key == "" {
			return nil, fmt.Errorf("pipeline: stage at order %d has empty key", s.Order)
		}
		if _, dup := r.stageIndex[s.Key]; dup {
			return nil, fmt.Errorf("pipeline: duplicate stage %q", s.Key)
		}
		if i > 0 && ordered[i-1].Order == s.Order {
			return nil, fmt.Errorf("pipeline: stages %q and %q share order %d", ordered[i-1].Key, s.Key, s.Order)
		}
		r.stageIndex[s.Key] = i
	}

	for _, st := range steps {
		if st.ID == "" {
			return nil, fmt.Errorf("pipeline: step %q has empty id", st.Title)
		}
		if _, ok := r.stageIndex[st.Stage]; !ok {
			return nil, fmt.Errorf("pipeline: step %q references unknown stage %q", st.ID, st.Stage)
		}
		if _, dup := r.steps[st.ID]; dup {
			return nil, fmt.Errorf("pipeline: duplicate step %q", st.ID)
		}
		r.steps[st.ID] = st
		r.byStage[st.Stage] = append(r.byStage[st.Stage], st)
	}

	for key := range r.byStage {
		list := r.byStage[key]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Order < list[j].Order })
	}

	return r, nil
}

// Default returns the built-in contracting pipeline. It panics if the
// built-in definitions are invalid, which is a programming error.
func Default() *Registry {
	r, err := NewRegistry(defaultStages, defaultSteps)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Stages() []Stage {
	out := make([]Stage, len(r.stages))
	copy(out, r.stages)
	return out
}

func (r *Registry) FirstStage() string {
	return r.stages[0].Key
}

func (r *Registry) Stage(key string) (Stage, bool) {
	i, ok := r.stageIndex[key]
	if !ok {
		return Stage{}, false
	}
	return r.stages[i], true
}

func (r *Registry) Step(id string) (Step, bool) {
	s, ok := r.steps[id]
	return s, ok
}

// StepsForStage returns the steps of a stage in display order.
func (r *Registry) StepsForStage(stageKey string) []Step {
	list := r.byStage[stageKey]
	out := make([]Step, len(list))
	copy(out, list)
	return out
}

// RequiredSteps returns only the required steps of a stage.
func (r *Registry) RequiredSteps(stageKey string) []Step {
	var out []Step
	for _, s := range r.byStage[stageKey] {
		if s.IsRequired {
			out = append(out, s)
		}
	}
	return out
}

// NextStage returns the stage after stageKey; ok is false for the terminal
// stage and for unknown keys.
func (r *Registry) NextStage(stageKey string) (next string, ok bool) {
	i, found := r.stageIndex[stageKey]
	if !found || i+1 >= len(r.stages) {
		return "", false
	}
	return r.stages[i+1].Key, true
}

// Compare orders two stage keys: negative if a precedes b, zero if equal.
// Unknown keys sort before every known stage.
func (r *Registry) Compare(a, b string) int {
	ia, ok := r.stageIndex[a]
	if !ok {
		ia = -1
	}
	ib, ok := r.stageIndex[b]
	if !ok {
		ib = -1
	}
	return ia - ib
}

// TotalSteps is the fixed denominator for global progress.
func (r *Registry) TotalSteps() int {
	return r.totalSteps
}

// ProgressPct converts a completed step count into a whole percentage.
func (r *Registry) ProgressPct(completed int) int {
	if r.totalSteps == 0 {
		return 0
	}
	if completed > r.totalSteps {
		completed = r.totalSteps
	}
	return completed * 100 / r.totalSteps
}
