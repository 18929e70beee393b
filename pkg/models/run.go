package models

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	PendingRunStatus    RunStatus = "pending"
	InProgressRunStatus RunStatus = "in_progress"
	CompletedRunStatus  RunStatus = "completed"
	FailedRunStatus     RunStatus = "failed"
)

// Terminal reports whether the run status is final.
func (s RunStatus) Terminal() bool {
	return s == CompletedRunStatus || s == FailedRunStatus
}

// WorkflowRun is one execution of a workflow version for a trigger context.
type WorkflowRun struct {
	ID            int64           `json:"id" db:"id"`
	WorkflowID    int64           `json:"workflow_id" db:"workflow_id"`
	VersionID     int64           `json:"version_id" db:"version_id"`
	TenantID      int64           `json:"tenant_id" db:"tenant_id"`
	EmployeeID    *int64          `json:"employee_id,omitempty" db:"employee_id"`
	TriggerSource string          `json:"trigger_source" db:"trigger_source"`
	Context       json.RawMessage `json:"context,omitempty" db:"context"`
	Status        RunStatus       `json:"status" db:"status"`
	LastError     string          `json:"last_error,omitempty" db:"last_error"`
	StartedAt     *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt      *time.Time      `json:"failed_at,omitempty" db:"failed_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
