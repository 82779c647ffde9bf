package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shared "github.com/agentflow/onboarding/pkg"
	"github.com/agentflow/onboarding/pkg/domain/pipeline"
	"github.com/agentflow/onboarding/pkg/storage/memory"
	"github.com/agentflow/onboarding/pkg/types"
)

type failingDocumentStore struct{ *memory.Store }

func (failingDocumentStore) CreateDocument(ctx context.Context, d *types.Document) error {
	return errors.New("metadata write failed")
}

type failingAgentWriteStore struct{ *memory.Store }

func (failingAgentWriteStore) UpdateAgent(ctx context.Context, a *types.Agent, expected int64) error {
	return errors.New("agent write failed")
}

func TestScenarioA_UploadAdvancesStage(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "agent-x")
	h.placeAt(t, "agent-x", pipeline.StageSureLCSetup)
	ctx := context.Background()
	before := len(h.actions(t, "agent-x"))

	doc, agent, err := h.svc.UploadDocument(ctx, agentX, "agent-x", Upload{
		StepID:   pipeline.StepSureLCScreenshot,
		FileName: "screenshot.png",
		Data:     []byte("\x89PNG..."),
	})
	require.NoError(t, err)

	assert.Equal(t, "screenshot.png", doc.FileName)
	assert.Equal(t, pipeline.StepSureLCScreenshot, doc.StepID)
	assert.NotEmpty(t, doc.FileRef)

	rec, err := h.store.GetStepRecord(ctx, "agent-x", pipeline.StepSureLCScreenshot)
	require.NoError(t, err)
	assert.Equal(t, types.StepStatusCompleted, rec.Status)

	assert.Equal(t, pipeline.StageBundleSelected, agent.CurrentStage)
	assert.Equal(t, h.svc.Registry().ProgressPct(1), agent.ProgressPct)

	added := h.actions(t, "agent-x")[before:]
	assert.Equal(t, []types.ActivityAction{types.ActionDocumentUpload, types.ActionStageAdvanced}, added)
}

func TestUploadToAlreadyCompletedStepStillAudited(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "agent-x")
	ctx := context.Background()

	up := Upload{StepID: "upload_license", FileName: "license.pdf", Data: []byte("v1")}
	_, _, err := h.svc.UploadDocument(ctx, agentX, "agent-x", up)
	require.NoError(t, err)

	up.Data = []byte("v2")
	_, _, err = h.svc.UploadDocument(ctx, agentX, "agent-x", up)
	require.NoError(t, err)

	assert.Equal(t, 2, h.count(t, "agent-x", types.ActionDocumentUpload))
	assert.Equal(t, 0, h.count(t, "agent-x", types.ActionStepCompleted))

	docs, err := h.svc.ListDocuments(ctx, manager, "agent-x")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestUploadOnNonGatedStepDoesNotComplete(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "agent-x")
	ctx := context.Background()

	_, _, err := h.svc.UploadDocument(ctx, agentX, "agent-x", Upload{StepID: "confirm_profile", FileName: "id.jpg", Data: []byte("jpg")})
	require.NoError(t, err)

	_, err = h.store.GetStepRecord(ctx, "agent-x", "confirm_profile")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 1, h.count(t, "agent-x", types.ActionDocumentUpload))
}

func TestUploadBlobFailureRecordsNothing(t *testing.T) {
	h := newHarness(t)
	h.blobs.PutFunc = func(ctx context.Context, path string, data []byte) (string, error) {
		return "", errors.New("bucket unavailable")
	}
	h.createAgent(t, "agent-x")
	ctx := context.Background()

	_, _, err := h.svc.UploadDocument(ctx, agentX, "agent-x", Upload{StepID: "upload_license", FileName: "license.pdf", Data: []byte("pdf")})
	require.Error(t, err)
	assert.True(t, IsStorage(err))

	docs, _ := h.store.ListDocuments(ctx, "agent-x")
	assert.Empty(t, docs)
	_, err = h.store.GetStepRecord(ctx, "agent-x", "upload_license")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUploadMetadataFailureLeavesStepIncomplete(t *testing.T) {
	h := newHarness(t, withStore(func(m *memory.Store) shared.Store { return failingDocumentStore{m} }))
	h.createAgent(t, "agent-x")
	ctx := context.Background()

	_, _, err := h.svc.UploadDocument(ctx, agentX, "agent-x", Upload{StepID: "upload_license", FileName: "license.pdf", Data: []byte("pdf")})
	require.Error(t, err)
	assert.True(t, IsStorage(err))

	assert.Equal(t, 1, h.blobs.Count(), "blob is left orphaned")
	_, err = h.store.GetStepRecord(ctx, "agent-x", "upload_license")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUploadStillAuditedWhenAgentWriteFails(t *testing.T) {
	h := newHarness(t, withStore(func(m *memory.Store) shared.Store { return failingAgentWriteStore{m} }))
	h.createAgent(t, "agent-x")
	ctx := context.Background()

	doc, agent, err := h.svc.UploadDocument(ctx, agentX, "agent-x", Upload{StepID: "upload_license", FileName: "license.pdf", Data: []byte("pdf")})
	require.Error(t, err)
	assert.True(t, IsStorage(err))
	assert.Nil(t, agent)
	require.NotNil(t, doc)

	docs, _ := h.store.ListDocuments(ctx, "agent-x")
	assert.Len(t, docs, 1)
	assert.Equal(t, 1, h.count(t, "agent-x", types.ActionDocumentUpload))

	entries, err := h.store.ListActivity(ctx, "agent-x", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, doc.ID, entries[0].Metadata["documentId"])
	assert.Equal(t, "upload_license", entries[0].Metadata["stepId"])
}

func TestUploadValidation(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MaxUploadBytes = 4 })
	h.createAgent(t, "agent-x")
	ctx := context.Background()

	tests := []struct {
		name string
		up   Upload
	}{
		{"unknown step", Upload{StepID: "nope", FileName: "a.pdf", Data: []byte("x")}},
		{"empty file", Upload{StepID: "upload_license", FileName: "a.pdf"}},
		{"too large", Upload{StepID: "upload_license", FileName: "a.pdf", Data: []byte("12345")}},
		{"missing name", Upload{StepID: "upload_license", FileName: "  ", Data: []byte("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.svc.UploadDocument(ctx, agentX, "agent-x", tt.up)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
	assert.Zero(t, h.blobs.Count())
}

func TestReadDocumentRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "agent-x")
	ctx := context.Background()

	doc, _, err := h.svc.UploadDocument(ctx, agentX, "agent-x", Upload{StepID: "upload_license", FileName: "../../etc/license.pdf", Data: []byte("pdf-bytes")})
	require.NoError(t, err)
	assert.Equal(t, "license.pdf", doc.FileName)

	got, data, err := h.svc.ReadDocument(ctx, manager, "agent-x", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, []byte("pdf-bytes"), data)

	_, _, err = h.svc.ReadDocument(ctx, other, "agent-x", doc.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", sanitizeFileName(`C:\Users\me\report.pdf`))
	assert.Equal(t, "a.png", sanitizeFileName("dir/a.png"))
	assert.Equal(t, "", sanitizeFileName(".."))
	assert.Equal(t, "tab.txt", sanitizeFileName("ta\tb.txt"))
	// Decomposed e + combining acute becomes the precomposed form.
	assert.Equal(t, "caf\u00e9.jpg", sanitizeFileName("cafe\u0301.jpg"))
}
