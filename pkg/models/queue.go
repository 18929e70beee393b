package models

import (
	"encoding/json"
	"time"
)

// QueueEntry is a delayed-resumption ticket: resume node NodeID of run RunID
// once ResumeAt has passed. Created by delay nodes, consumed and deleted by
// the queue processor, re-armed with backoff on transient failure.
type QueueEntry struct {
	ID        int64           `json:"id" db:"id"`
	RunID     int64           `json:"run_id" db:"run_id"`
	NodeID    int64           `json:"node_id" db:"node_id"`
	ResumeAt  time.Time       `json:"resume_at" db:"resume_at"`
	Attempts  int             `json:"attempts" db:"attempts"`
	Metadata  json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	LastError string          `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Journey is the human-facing view of a run, shared via a random token.
// Upserted once per run when the run has an employee attached.
type Journey struct {
	RunID      int64     `json:"run_id" db:"run_id"`
	EmployeeID int64     `json:"employee_id" db:"employee_id"`
	ShareToken string    `json:"share_token" db:"share_token"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
