// Package types holds the onboarding data model shared by the service,
// the storage adapters and the API.
package types

import (
	"errors"
	"time"
)

// Store sentinels. Adapters translate their native errors into these so the
// service layer can branch with errors.Is regardless of backend.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")
)

type AgentStatus string

const (
	AgentStatusInProgress AgentStatus = "in_progress"
	AgentStatusOnHold     AgentStatus = "on_hold"
	AgentStatusCompleted  AgentStatus = "completed"
)

// Agent is the onboarding subject. Version increments on every write and is
// the compare-and-swap token for the derived fields.
type Agent struct {
	ID           string      `json:"id"`
	ManagerID    string      `json:"managerId"`
	Name         string      `json:"name,omitempty"`
	Email        string      `json:"email,omitempty"`
	CurrentStage string      `json:"currentStage"`
	Status       AgentStatus `json:"status"`
	ProgressPct  int         `json:"progressPct"`
	PortalActive bool        `json:"portalActive"`
	Version      int64       `json:"version"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Clone returns a copy safe to mutate.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusCompleted StepStatus = "completed"
)

// StepRecord is unique per (AgentID, StepID) and never deleted.
type StepRecord struct {
	AgentID     string     `json:"agentId"`
	StepID      string     `json:"stepId"`
	Status      StepStatus `json:"status"`
	CompletedAt time.Time  `json:"completedAt"`
	CompletedBy string     `json:"completedBy"`
}

type Document struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agentId"`
	StepID     string    `json:"stepId"`
	FileName   string    `json:"fileName"`
	FileRef    string    `json:"fileRef"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type ActivityAction string

const (
	ActionAgentCreated    ActivityAction = "agent_created"
	ActionStepCompleted   ActivityAction = "step_completed"
	ActionStageAdvanced   ActivityAction = "stage_advanced"
	ActionDocumentUpload  ActivityAction = "document_uploaded"
	ActionMessageSent     ActivityAction = "message_sent"
	ActionNeedsInfoSent   ActivityAction = "needs_info_sent"
	ActionAgentApproved   ActivityAction = "agent_approved"
	ActionAgreementSigned ActivityAction = "agreement_signed"
	ActionStatusChanged   ActivityAction = "status_changed"
)

// ActivityLogEntry is append-only and never mutated.
type ActivityLogEntry struct {
	ID          string                 `json:"id"`
	AgentID     string                 `json:"agentId"`
	Action      ActivityAction         `json:"action"`
	Description string                 `json:"description"`
	PerformedBy string                 `json:"performedBy"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Message belongs to the thread keyed by the agent ID. Seq is assigned by the
// store at append time and breaks CreatedAt ties.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"createdAt"`
}

type AgreementStatus string

const (
	AgreementStatusPending AgreementStatus = "pending"
	AgreementStatusSigned  AgreementStatus = "signed"
)

type Agreement struct {
	AgentID   string          `json:"agentId"`
	Signature string          `json:"signature"`
	Initials  string          `json:"initials"`
	SignedAt  time.Time       `json:"signedAt"`
	Status    AgreementStatus `json:"status"`
}

type Role string

const (
	RoleAgent   Role = "agent"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Actor is the authenticated caller of an operation. CanApprove is a separate
// capability from Role: it comes from its own token claim.
type Actor struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	CanApprove bool   `json:"canApprove,omitempty"`
}

// IsStaff reports whether the actor acts on behalf of the agency.
func (a Actor) IsStaff() bool {
	return a.Role == RoleManager || a.Role == RoleAdmin
}
