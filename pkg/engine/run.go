package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TriggerSourceManual marks runs started explicitly rather than by an event.
const TriggerSourceManual = "manual"

// StartRun instantiates a run of a workflow version: it inserts the run row,
// materializes the version's nodes, marks the run in progress and executes
// every trigger node. The run insert propagates failure to the caller; any
// later failure still leaves the run row behind, marked failed.
func (e *Engine) StartRun(ctx context.Context, in StartRunInput) (int64, error) {
	runID, err := e.store.SaveRun(models.WorkflowRun{
		WorkflowID:    in.WorkflowID,
		VersionID:     in.VersionID,
		TenantID:      in.TenantID,
		EmployeeID:    in.EmployeeID,
		TriggerSource: in.TriggerSource,
		Context:       in.Context,
		Status:        models.PendingRunStatus,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		return 0, errors.Wrap(err, "create run")
	}

	version, err := e.store.GetVersion(in.VersionID)
	if err != nil {
		return runID, e.failRun(runID, errors.Wrapf(err, "load version %d", in.VersionID))
	}
	def, err := models.ParseDefinition(version.Definition)
	if err != nil {
		return runID, e.failRun(runID, err)
	}

	nodeIDs := e.materializeNodes(in.VersionID, def)

	if in.EmployeeID != nil {
		journey := models.Journey{
			RunID:      runID,
			EmployeeID: *in.EmployeeID,
			ShareToken: uuid.NewString(),
		}
		// side effect only, never a control-flow dependency
		if err := e.store.UpsertJourney(journey); err != nil {
			e.logger.Errorf("Failed to upsert journey for run %d: %v", runID, err)
		}
	}

	if err := e.store.UpdateRunStatus(runID, models.InProgressRunStatus, ""); err != nil {
		return runID, e.failRun(runID, errors.Wrapf(err, "mark run %d in progress", runID))
	}

	for _, n := range def.TriggerNodes() {
		nodeID, ok := nodeIDs[n.ID]
		if !ok {
			e.logger.Errorf("Run %d: trigger node '%s' was not materialized, skipping", runID, n.ID)
			continue
		}
		if err := e.ExecuteStep(ctx, runID, nodeID); err != nil {
			e.logger.Errorf("Run %d: trigger node '%s': %v", runID, n.ID, err)
		}
	}

	e.logger.Infof("Started run %d of workflow %d (version %d)", runID, in.WorkflowID, in.VersionID)
	return runID, nil
}

// StartWorkflow starts a run of a specific published workflow on demand,
// e.g. a manual "start onboarding" action for an employee.
func (e *Engine) StartWorkflow(ctx context.Context, workflowID, tenantID int64, employeeID *int64, runContext json.RawMessage) (int64, error) {
	wf, err := e.store.GetWorkflow(workflowID)
	if err != nil {
		return 0, errors.Wrapf(err, "workflow %d", workflowID)
	}
	if wf.TenantID != tenantID {
		return 0, errors.Errorf("workflow %d does not belong to tenant %d", workflowID, tenantID)
	}
	if wf.Status != models.PublishedWorkflowStatus || wf.ActiveVersionID == nil {
		return 0, errors.Errorf("workflow %d has no published version", workflowID)
	}
	return e.StartRun(ctx, StartRunInput{
		WorkflowID:    wf.ID,
		VersionID:     *wf.ActiveVersionID,
		TenantID:      tenantID,
		EmployeeID:    employeeID,
		TriggerSource: TriggerSourceManual,
		Context:       runContext,
	})
}

// materializeNodes ensures every definition node has a persisted row and
// returns the definitionNodeID -> persistedNodeID mapping. Materialization is
// best-effort per node: a failure is logged and that node is left out of the
// mapping; downstream execution skips unmapped nodes.
func (e *Engine) materializeNodes(versionID int64, def models.Definition) map[string]int64 {
	mapping := make(map[string]int64, len(def.Nodes))
	for _, n := range def.Nodes {
		if existing, err := e.store.GetNode(versionID, n.ID); err == nil {
			mapping[n.ID] = existing.ID
			continue
		}
		cfg, err := json.Marshal(n.Config)
		if err != nil {
			e.logger.Errorf("Version %d: cannot encode config of node '%s': %v", versionID, n.ID, err)
			continue
		}
		id, err := e.store.SaveNode(models.WorkflowNode{
			VersionID: versionID,
			NodeKey:   n.ID,
			NodeType:  n.Type,
			Config:    cfg,
			CreatedAt: time.Now(),
		})
		if err != nil {
			e.logger.Errorf("Version %d: failed to materialize node '%s': %v", versionID, n.ID, err)
			continue
		}
		mapping[n.ID] = id
	}
	return mapping
}

// failRun marks the run failed with the given cause and returns the cause.
func (e *Engine) failRun(runID int64, cause error) error {
	if err := e.store.UpdateRunStatus(runID, models.FailedRunStatus, cause.Error()); err != nil {
		e.logger.Errorf("Failed to mark run %d as failed: %v (original error: %v)", runID, err, cause)
	}
	return cause
}
