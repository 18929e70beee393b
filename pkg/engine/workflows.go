package engine

import (
	"encoding/json"
	"time"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/pkg/errors"
)

// CreateWorkflow creates a draft workflow container for a tenant.
func (e *Engine) CreateWorkflow(tenantID int64, name, slug string, kind models.WorkflowKind) (id int64, err error) {
	if name == "" {
		return 0, errors.New("workflow name cannot be empty")
	}
	if len(name) > 100 {
		return 0, errors.New("workflow name too long (max 100 characters)")
	}
	if slug == "" {
		return 0, errors.New("workflow slug cannot be empty")
	}
	switch kind {
	case models.OnboardingWorkflowKind, models.OffboardingWorkflowKind, models.CustomWorkflowKind:
	default:
		return 0, errors.Errorf("invalid workflow kind '%s'", kind)
	}

	txStore, err := e.store.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				e.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			e.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	id, err = txStore.SaveWorkflow(models.Workflow{
		TenantID:  tenantID,
		Name:      name,
		Slug:      slug,
		Kind:      kind,
		Status:    models.DraftWorkflowStatus,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return 0, err
	}
	e.logger.Infof("Created workflow '%s' with ID %d for tenant %d", name, id, tenantID)
	return id, nil
}

// AddVersion appends an immutable graph snapshot to a workflow. The
// definition must parse; versions are never modified afterwards.
func (e *Engine) AddVersion(workflowID int64, version int, definition json.RawMessage) (id int64, err error) {
	if _, err := models.ParseDefinition(definition); err != nil {
		return 0, err
	}

	txStore, err := e.store.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				e.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			e.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	if _, err = txStore.GetWorkflow(workflowID); err != nil {
		return 0, errors.Wrapf(err, "workflow %d", workflowID)
	}
	id, err = txStore.SaveVersion(models.WorkflowVersion{
		WorkflowID: workflowID,
		Version:    version,
		Definition: definition,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		return 0, err
	}
	e.logger.Infof("Added version %d (ID %d) to workflow %d", version, id, workflowID)
	return id, nil
}

// Publish marks a workflow published with the given version as its active
// one. Status only moves forward; a published workflow stays published.
func (e *Engine) Publish(workflowID, versionID int64) error {
	version, err := e.store.GetVersion(versionID)
	if err != nil {
		return errors.Wrapf(err, "version %d", versionID)
	}
	if version.WorkflowID != workflowID {
		return errors.Errorf("version %d does not belong to workflow %d", versionID, workflowID)
	}
	if err := e.store.PublishWorkflow(workflowID, versionID); err != nil {
		return errors.Wrapf(err, "publish workflow %d", workflowID)
	}
	e.logger.Infof("Published workflow %d with active version %d", workflowID, versionID)
	return nil
}

// ListWorkflows returns every workflow of a tenant.
func (e *Engine) ListWorkflows(tenantID int64) ([]models.Workflow, error) {
	return e.store.ListWorkflows(tenantID)
}

// RunDetail is a run together with its step rows, for inspection.
type RunDetail struct {
	Run   models.WorkflowRun       `json:"run"`
	Steps []models.WorkflowRunStep `json:"steps"`
}

// GetRun fetches a run with its steps.
func (e *Engine) GetRun(runID int64) (RunDetail, error) {
	run, err := e.store.GetRun(runID)
	if err != nil {
		return RunDetail{}, errors.Wrapf(err, "run %d", runID)
	}
	steps, err := e.store.ListSteps(runID)
	if err != nil {
		return RunDetail{}, errors.Wrapf(err, "steps of run %d", runID)
	}
	return RunDetail{Run: run, Steps: steps}, nil
}
