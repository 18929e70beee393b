package storage

import (
	"encoding/json"
	"time"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the storage operations for the workflow engine.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Workflow operations
	SaveWorkflow(w models.Workflow) (int64, error)
	GetWorkflow(id int64) (models.Workflow, error)
	ListWorkflows(tenantID int64) ([]models.Workflow, error)
	ListPublishedWorkflows(tenantID int64) ([]models.Workflow, error)
	PublishWorkflow(id, versionID int64) error

	// Version operations
	SaveVersion(v models.WorkflowVersion) (int64, error)
	GetVersion(id int64) (models.WorkflowVersion, error)

	// Materialized node operations
	SaveNode(n models.WorkflowNode) (int64, error) // idempotent by (version_id, node_key)
	GetNode(versionID int64, nodeKey string) (models.WorkflowNode, error)
	GetNodeByID(id int64) (models.WorkflowNode, error)
	ListNodes(versionID int64) ([]models.WorkflowNode, error)

	// Run operations
	SaveRun(r models.WorkflowRun) (int64, error)
	GetRun(id int64) (models.WorkflowRun, error)
	UpdateRunStatus(id int64, status models.RunStatus, lastError string) error

	// Step operations
	UpsertStep(s models.WorkflowRunStep) (int64, error) // keyed by (run_id, node_id)
	GetStep(runID, nodeID int64) (models.WorkflowRunStep, error)
	GetStepByID(id int64) (models.WorkflowRunStep, error)
	ListSteps(runID int64) ([]models.WorkflowRunStep, error)
	UpdateStepStatus(id int64, status models.StepStatus, result json.RawMessage, errorMsg string) error

	// Delay queue operations
	SaveQueueEntry(e models.QueueEntry) (int64, error)
	DueQueueEntries(now time.Time, limit int) ([]models.QueueEntry, error)
	RearmQueueEntry(id int64, resumeAt time.Time, attempts int, lastError string) error
	DeleteQueueEntry(id int64) error

	// Journey operations
	UpsertJourney(j models.Journey) error
}
