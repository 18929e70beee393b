package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

type StepStatus string

const (
	PendingStepStatus      StepStatus = "pending"
	InProgressStepStatus   StepStatus = "in_progress"
	WaitingInputStepStatus StepStatus = "waiting_input"
	QueuedStepStatus       StepStatus = "queued"
	CompletedStepStatus    StepStatus = "completed"
	FailedStepStatus       StepStatus = "failed"
	CanceledStepStatus     StepStatus = "canceled"
)

// Terminal reports whether the step status is final. A run completes once
// every one of its steps is terminal.
func (s StepStatus) Terminal() bool {
	return s == CompletedStepStatus || s == FailedStepStatus || s == CanceledStepStatus
}

// Assignee identifies who must act on a human-in-the-loop step.
type Assignee struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

func (a Assignee) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Assignee) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.Errorf("cannot scan %T into Assignee", src)
	}
}

// WorkflowRunStep is the execution record of one node within one run.
// At most one row exists per (run_id, node_id).
type WorkflowRunStep struct {
	ID         int64           `json:"id" db:"id"`
	RunID      int64           `json:"run_id" db:"run_id"`
	NodeID     int64           `json:"node_id" db:"node_id"`
	Status     StepStatus      `json:"status" db:"status"`
	AssignedTo *Assignee       `json:"assigned_to,omitempty" db:"assigned_to"`
	DueAt      *time.Time      `json:"due_at,omitempty" db:"due_at"`
	Payload    json.RawMessage `json:"payload,omitempty" db:"payload"`
	Result     json.RawMessage `json:"result,omitempty" db:"result"`
	ErrorMsg   string          `json:"error,omitempty" db:"error_msg"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}
