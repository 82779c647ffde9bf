package onboarding

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/agentflow/onboarding/pkg/types"
)

// Upload is a file submitted as evidence for a step.
type Upload struct {
	StepID   string
	FileName string
	Data     []byte
}

// UploadDocument stores the file, records its Document row and, for
// upload-gated steps, completes the step. The blob is written first; if the
// metadata write then fails the blob is left orphaned and the upload fails.
func (s *Service) UploadDocument(ctx context.Context, actor types.Actor, agentID string, up Upload) (*types.Document, *types.Agent, error) {
	step, ok := s.registry.Step(up.StepID)
	if !ok {
		return nil, nil, invalid("stepId", fmt.Sprintf("unknown step %q", up.StepID))
	}
	name := sanitizeFileName(up.FileName)
	if name == "" {
		return nil, nil, invalid("fileName", "required")
	}
	if len(up.Data) == 0 {
		return nil, nil, invalid("file", "empty file")
	}
	if int64(len(up.Data)) > s.maxUpload {
		return nil, nil, invalid("file", fmt.Sprintf("file exceeds %d bytes", s.maxUpload))
	}
	if s.blobs == nil {
		return nil, nil, storageErr("put blob", errors.New("blob store not configured"))
	}

	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, nil, err
	}
	if err := s.checkReachable(actor, agent, step); err != nil {
		return nil, nil, err
	}

	logger := s.logger.With("agent_id", agentID, "step_id", step.ID, "actor_id", actor.ID)

	docID := s.newID()
	blobPath := path.Join("agents", agentID, step.ID, docID+"-"+name)
	ref, err := s.blobs.Put(ctx, blobPath, up.Data)
	if err != nil {
		logger.Error("Blob upload failed", "error", err)
		return nil, nil, storageErr("put blob", err)
	}

	doc := &types.Document{
		ID:         docID,
		AgentID:    agentID,
		StepID:     step.ID,
		FileName:   name,
		FileRef:    ref,
		Size:       int64(len(up.Data)),
		UploadedBy: actor.ID,
		UploadedAt: s.now(),
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		logger.Error("Document metadata write failed, blob orphaned", "error", err, "file_ref", ref)
		return nil, nil, storageErr("create document", err)
	}
	logger.Info("Document uploaded", "document_id", doc.ID, "size", doc.Size)

	meta := map[string]interface{}{
		"documentId": doc.ID,
		"fileName":   doc.FileName,
		"size":       doc.Size,
	}

	completedNow := false
	if step.RequiresUpload {
		updated, done, err := s.completeStep(ctx, actor, agent, step, types.ActionDocumentUpload, meta)
		if err != nil {
			// The document is stored either way and must appear in the log.
			meta["stepId"] = step.ID
			s.recordActivity(ctx, agent, types.ActionDocumentUpload, actor.ID,
				fmt.Sprintf("Uploaded document for step: %s", step.Title), meta)
			return doc, nil, err
		}
		agent, completedNow = updated, done
	}
	if !completedNow {
		meta["stepId"] = step.ID
		s.recordActivity(ctx, agent, types.ActionDocumentUpload, actor.ID,
			fmt.Sprintf("Uploaded document for step: %s", step.Title), meta)
	}

	return doc, agent, nil
}

func (s *Service) ListDocuments(ctx context.Context, actor types.Actor, agentID string) ([]*types.Document, error) {
	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, agentID)
	if err != nil {
		return nil, storageErr("list documents", err)
	}
	return docs, nil
}

// ReadDocument returns a document's metadata and its stored bytes.
func (s *Service) ReadDocument(ctx context.Context, actor types.Actor, agentID, docID string) (*types.Document, []byte, error) {
	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, nil, err
	}
	doc, err := s.store.GetDocument(ctx, agentID, docID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil, &ValidationError{Field: "documentId", Reason: fmt.Sprintf("unknown document %q", docID), Err: err}
	}
	if err != nil {
		return nil, nil, storageErr("get document", err)
	}
	if s.blobs == nil {
		return nil, nil, storageErr("get blob", errors.New("blob store not configured"))
	}
	data, err := s.blobs.Get(ctx, doc.FileRef)
	if err != nil {
		return nil, nil, storageErr("get blob", err)
	}
	return doc, data, nil
}

// sanitizeFileName reduces a client-supplied name to a single NFC-normalised
// path segment without control characters.
func sanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	if r := []rune(name); len(r) > 200 {
		name = string(r[:200])
	}
	return name
}
