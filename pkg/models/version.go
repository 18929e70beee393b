package models

import (
	"encoding/json"
	"time"
)

// WorkflowVersion is an immutable snapshot of a workflow graph. Versions are
// append-only; at most one is active (published) per workflow at a time.
type WorkflowVersion struct {
	ID         int64           `json:"id" db:"id"`
	WorkflowID int64           `json:"workflow_id" db:"workflow_id"`
	Version    int             `json:"version" db:"version"`
	Definition json.RawMessage `json:"definition" db:"definition"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// WorkflowNode is the persisted mirror of one definition node, created lazily
// the first time a run touches its version. Keyed by (version_id, node_key).
type WorkflowNode struct {
	ID        int64           `json:"id" db:"id"`
	VersionID int64           `json:"version_id" db:"version_id"`
	NodeKey   string          `json:"node_key" db:"node_key"`
	NodeType  NodeType        `json:"node_type" db:"node_type"`
	Config    json.RawMessage `json:"config" db:"config"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
