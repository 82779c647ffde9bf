package firestore

import (
	"time"

	"github.com/agentflow/onboarding/pkg/types"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to safely get bool from map
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Helper to safely get an integer. Firestore returns int64, but values
// written by other clients may come back as float64.
func getInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Helper to safely get time from map (handles time.Time from Firestore)
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
	}
	return time.Time{}
}

func getStringSlice(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// --- Agent Converters ---

func AgentToFirestore(a *types.Agent) map[string]interface{} {
	return map[string]interface{}{
		"id":            a.ID,
		"manager_id":    a.ManagerID,
		"name":          a.Name,
		"email":         a.Email,
		"current_stage": a.CurrentStage,
		"status":        string(a.Status),
		"progress_pct":  int64(a.ProgressPct),
		"portal_active": a.PortalActive,
		"version":       a.Version,
		"created_at":    a.CreatedAt,
		"updated_at":    a.UpdatedAt,
	}
}

func FirestoreToAgent(m map[string]interface{}) *types.Agent {
	return &types.Agent{
		ID:           getString(m, "id"),
		ManagerID:    getString(m, "manager_id"),
		Name:         getString(m, "name"),
		Email:        getString(m, "email"),
		CurrentStage: getString(m, "current_stage"),
		Status:       types.AgentStatus(getString(m, "status")),
		ProgressPct:  int(getInt64(m, "progress_pct")),
		PortalActive: getBool(m, "portal_active"),
		Version:      getInt64(m, "version"),
		CreatedAt:    getTime(m, "created_at"),
		UpdatedAt:    getTime(m, "updated_at"),
	}
}

// --- StepRecord Converters ---

func StepRecordToFirestore(r *types.StepRecord) map[string]interface{} {
	m := map[string]interface{}{
		"agent_id":     r.AgentID,
		"step_id":      r.StepID,
		"status":       string(r.Status),
		"completed_by": r.CompletedBy,
	}
	if !r.CompletedAt.IsZero() {
		m["completed_at"] = r.CompletedAt
	}
	return m
}

func FirestoreToStepRecord(m map[string]interface{}) *types.StepRecord {
	return &types.StepRecord{
		AgentID:     getString(m, "agent_id"),
		StepID:      getString(m, "step_id"),
		Status:      types.StepStatus(getString(m, "status")),
		CompletedAt: getTime(m, "completed_at"),
		CompletedBy: getString(m, "completed_by"),
	}
}

// --- Document Converters ---

func DocumentToFirestore(d *types.Document) map[string]interface{} {
	return map[string]interface{}{
		"id":          d.ID,
		"agent_id":    d.AgentID,
		"step_id":     d.StepID,
		"file_name":   d.FileName,
		"file_ref":    d.FileRef,
		"size":        d.Size,
		"uploaded_by": d.UploadedBy,
		"uploaded_at": d.UploadedAt,
	}
}

func FirestoreToDocument(m map[string]interface{}) *types.Document {
	return &types.Document{
		ID:         getString(m, "id"),
		AgentID:    getString(m, "agent_id"),
		StepID:     getString(m, "step_id"),
		FileName:   getString(m, "file_name"),
		FileRef:    getString(m, "file_ref"),
		Size:       getInt64(m, "size"),
		UploadedBy: getString(m, "uploaded_by"),
		UploadedAt: getTime(m, "uploaded_at"),
	}
}

// --- ActivityLogEntry Converters ---

func ActivityToFirestore(e *types.ActivityLogEntry) map[string]interface{} {
	m := map[string]interface{}{
		"id":           e.ID,
		"agent_id":     e.AgentID,
		"action":       string(e.Action),
		"description":  e.Description,
		"performed_by": e.PerformedBy,
		"created_at":   e.CreatedAt,
	}
	if len(e.Metadata) > 0 {
		m["metadata"] = e.Metadata
	}
	return m
}

func FirestoreToActivity(m map[string]interface{}) *types.ActivityLogEntry {
	e := &types.ActivityLogEntry{
		ID:          getString(m, "id"),
		AgentID:     getString(m, "agent_id"),
		Action:      types.ActivityAction(getString(m, "action")),
		Description: getString(m, "description"),
		PerformedBy: getString(m, "performed_by"),
		CreatedAt:   getTime(m, "created_at"),
	}
	if meta, ok := m["metadata"].(map[string]interface{}); ok {
		e.Metadata = meta
	}
	return e
}

// --- Message Converters ---

func MessageToFirestore(msg *types.Message) map[string]interface{} {
	return map[string]interface{}{
		"id":         msg.ID,
		"thread_id":  msg.ThreadID,
		"sender_id":  msg.SenderID,
		"content":    msg.Content,
		"seq":        msg.Seq,
		"created_at": msg.CreatedAt,
	}
}

func FirestoreToMessage(m map[string]interface{}) *types.Message {
	return &types.Message{
		ID:        getString(m, "id"),
		ThreadID:  getString(m, "thread_id"),
		SenderID:  getString(m, "sender_id"),
		Content:   getString(m, "content"),
		Seq:       getInt64(m, "seq"),
		CreatedAt: getTime(m, "created_at"),
	}
}

// --- Agreement Converters ---

func AgreementToFirestore(a *types.Agreement) map[string]interface{} {
	return map[string]interface{}{
		"agent_id":  a.AgentID,
		"signature": a.Signature,
		"initials":  a.Initials,
		"signed_at": a.SignedAt,
		"status":    string(a.Status),
	}
}

func FirestoreToAgreement(m map[string]interface{}) *types.Agreement {
	return &types.Agreement{
		AgentID:   getString(m, "agent_id"),
		Signature: getString(m, "signature"),
		Initials:  getString(m, "initials"),
		SignedAt:  getTime(m, "signed_at"),
		Status:    types.AgreementStatus(getString(m, "status")),
	}
}

// --- User Converters ---

// UserDevices is the slice of a user profile the notification sender needs.
type UserDevices struct {
	UserID    string
	FCMTokens []string
}

func UserDevicesToFirestore(u *UserDevices) map[string]interface{} {
	tokens := make([]interface{}, len(u.FCMTokens))
	for i, t := range u.FCMTokens {
		tokens[i] = t
	}
	return map[string]interface{}{
		"user_id":    u.UserID,
		"fcm_tokens": tokens,
	}
}

func FirestoreToUserDevices(m map[string]interface{}) *UserDevices {
	return &UserDevices{
		UserID:    getString(m, "user_id"),
		FCMTokens: getStringSlice(m, "fcm_tokens"),
	}
}
