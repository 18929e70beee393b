package models

import "time"

type WorkflowStatus string

const (
	DraftWorkflowStatus     WorkflowStatus = "draft"
	PublishedWorkflowStatus WorkflowStatus = "published"
)

type WorkflowKind string

const (
	OnboardingWorkflowKind  WorkflowKind = "onboarding"
	OffboardingWorkflowKind WorkflowKind = "offboarding"
	CustomWorkflowKind      WorkflowKind = "custom"
)

// Workflow is a tenant-scoped process definition container. The engine never
// deletes workflows and only moves status forward (draft -> published).
type Workflow struct {
	ID              int64          `json:"id" db:"id"`
	TenantID        int64          `json:"tenant_id" db:"tenant_id"`
	Name            string         `json:"name" db:"name"`
	Slug            string         `json:"slug" db:"slug"` // unique per tenant
	Kind            WorkflowKind   `json:"kind" db:"kind"`
	Status          WorkflowStatus `json:"status" db:"status"`
	ActiveVersionID *int64         `json:"active_version_id,omitempty" db:"active_version_id"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}
