package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/deinJoni/artemis-hr-app-sub000/pkg/storage"
	"github.com/pkg/errors"
)

// DefaultDelay applies when a delay node carries no duration config.
const DefaultDelay = 24 * time.Hour

var emptyResult = json.RawMessage(`{}`)

// ExecuteStep executes one graph node for one run. Trigger and logic nodes
// complete immediately, delay nodes suspend into the action queue, action
// nodes dispatch on their kind. A dispatch failure marks both the step and
// the whole run failed; only delay-queue resumption ever retries.
func (e *Engine) ExecuteStep(ctx context.Context, runID, nodeID int64) error {
	run, err := e.store.GetRun(runID)
	if err != nil {
		return errors.Wrapf(err, "load run %d", runID)
	}
	node, err := e.store.GetNodeByID(nodeID)
	if err != nil {
		return errors.Wrapf(err, "load node %d", nodeID)
	}
	version, err := e.store.GetVersion(node.VersionID)
	if err != nil {
		return e.failStep(run, nodeID, errors.Wrapf(err, "load version %d", node.VersionID))
	}
	def, err := models.ParseDefinition(version.Definition)
	if err != nil {
		return e.failStep(run, nodeID, err)
	}
	defNode := def.Node(node.NodeKey)
	if defNode == nil {
		return e.failStep(run, nodeID, errors.Errorf("definition node '%s' not found", node.NodeKey))
	}

	// re-entrant continuation calls must be no-ops on finished steps
	if existing, err := e.store.GetStep(runID, nodeID); err == nil {
		if existing.Status == models.CompletedStepStatus || existing.Status == models.CanceledStepStatus {
			return nil
		}
	}

	switch defNode.Type {
	case models.TriggerNodeType, models.LogicNodeType:
		// triggers represent "this already happened"; logic nodes are a
		// no-op passthrough, branching is not evaluated
		return e.completeStep(ctx, run, nodeID, emptyResult)
	case models.DelayNodeType:
		return e.executeDelay(run, nodeID, defNode)
	case models.ActionNodeType:
		return e.executeAction(ctx, run, nodeID, defNode)
	default:
		return e.failStep(run, nodeID, errors.Errorf("unknown node type '%s'", defNode.Type))
	}
}

// ResumeStep is the re-entry point for the delay-queue processor: it
// completes the queued step and continues the run. A missing or non-queued
// step falls back to regular execution.
func (e *Engine) ResumeStep(ctx context.Context, runID, nodeID int64) error {
	step, err := e.store.GetStep(runID, nodeID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return errors.Wrapf(err, "load step run=%d node=%d", runID, nodeID)
	}
	if err == nil && step.Status == models.QueuedStepStatus {
		result, _ := json.Marshal(map[string]string{"resumed_at": time.Now().Format(time.RFC3339)})
		if err := e.store.UpdateStepStatus(step.ID, models.CompletedStepStatus, result, ""); err != nil {
			return errors.Wrapf(err, "complete queued step %d", step.ID)
		}
		return e.Continue(ctx, runID)
	}
	return e.ExecuteStep(ctx, runID, nodeID)
}

func (e *Engine) executeDelay(run models.WorkflowRun, nodeID int64, defNode *models.DefinitionNode) error {
	// already queued: the run is suspended here, nothing to do until the
	// processor resumes it
	if existing, err := e.store.GetStep(run.ID, nodeID); err == nil && existing.Status == models.QueuedStepStatus {
		return nil
	}

	resumeAt := time.Now().Add(delayDuration(defNode.Config.Duration))
	payload, _ := json.Marshal(map[string]string{"resume_at": resumeAt.Format(time.RFC3339)})
	if _, err := e.store.UpsertStep(models.WorkflowRunStep{
		RunID:   run.ID,
		NodeID:  nodeID,
		Status:  models.QueuedStepStatus,
		Payload: payload,
	}); err != nil {
		return e.failStep(run, nodeID, err)
	}
	if _, err := e.store.SaveQueueEntry(models.QueueEntry{
		RunID:     run.ID,
		NodeID:    nodeID,
		ResumeAt:  resumeAt,
		CreatedAt: time.Now(),
	}); err != nil {
		return e.failStep(run, nodeID, err)
	}
	e.logger.Infof("Run %d: delay node '%s' queued until %s", run.ID, defNode.ID, resumeAt.Format(time.RFC3339))
	return nil
}

func (e *Engine) executeAction(ctx context.Context, run models.WorkflowRun, nodeID int64, defNode *models.DefinitionNode) error {
	cfg := defNode.Config
	switch cfg.Kind {
	case models.EmailActionKind:
		// best-effort hook; a failed send never fails the step
		if err := e.notifier.SendTemplate(ctx, run.TenantID, run.EmployeeID, cfg.Template, run.Context); err != nil {
			e.logger.Errorf("Run %d: notification '%s' failed: %v", run.ID, cfg.Template, err)
		}
		result, _ := json.Marshal(map[string]string{"template": cfg.Template})
		return e.completeStep(ctx, run, nodeID, result)

	case models.AssignTaskActionKind:
		if len(cfg.Tasks) == 0 {
			return e.failStep(run, nodeID, errors.Errorf("assign_task node '%s' has no tasks", defNode.ID))
		}
		due := dueAt(cfg.DueDate, time.Now())
		for _, task := range cfg.Tasks {
			payload, err := json.Marshal(map[string]string{
				"task_type":    "task",
				"title":        task.Title,
				"description":  task.Description,
				"instructions": task.Instructions,
				"priority":     task.Priority,
			})
			if err != nil {
				return e.failStep(run, nodeID, err)
			}
			if _, err := e.store.UpsertStep(models.WorkflowRunStep{
				RunID:      run.ID,
				NodeID:     nodeID,
				Status:     models.WaitingInputStepStatus,
				AssignedTo: defaultAssignee(run),
				DueAt:      due,
				Payload:    payload,
			}); err != nil {
				return e.failStep(run, nodeID, err)
			}
		}
		return nil

	case models.CreateDocumentActionKind:
		if len(cfg.Documents) == 0 {
			return e.failStep(run, nodeID, errors.Errorf("create_document node '%s' has no documents", defNode.ID))
		}
		// all requested document types share one step row
		payload, err := json.Marshal(map[string]interface{}{
			"task_type": "document",
			"documents": cfg.Documents,
		})
		if err != nil {
			return e.failStep(run, nodeID, err)
		}
		if _, err := e.store.UpsertStep(models.WorkflowRunStep{
			RunID:      run.ID,
			NodeID:     nodeID,
			Status:     models.WaitingInputStepStatus,
			AssignedTo: defaultAssignee(run),
			DueAt:      dueAt(cfg.DueDate, time.Now()),
			Payload:    payload,
		}); err != nil {
			return e.failStep(run, nodeID, err)
		}
		return nil

	case models.FillFormActionKind:
		if len(cfg.Form) == 0 {
			return e.failStep(run, nodeID, errors.Errorf("fill_form node '%s' has no form schema", defNode.ID))
		}
		payload, err := json.Marshal(map[string]interface{}{
			"task_type":   "form",
			"form_schema": cfg.Form,
		})
		if err != nil {
			return e.failStep(run, nodeID, err)
		}
		if _, err := e.store.UpsertStep(models.WorkflowRunStep{
			RunID:      run.ID,
			NodeID:     nodeID,
			Status:     models.WaitingInputStepStatus,
			AssignedTo: defaultAssignee(run),
			DueAt:      dueAt(cfg.DueDate, time.Now()),
			Payload:    payload,
		}); err != nil {
			return e.failStep(run, nodeID, err)
		}
		return nil

	default:
		return e.failStep(run, nodeID, errors.Errorf("action node '%s' has unsupported kind '%s'", defNode.ID, cfg.Kind))
	}
}

// completeStep records the step as completed and continues the run.
func (e *Engine) completeStep(ctx context.Context, run models.WorkflowRun, nodeID int64, result json.RawMessage) error {
	if _, err := e.store.UpsertStep(models.WorkflowRunStep{
		RunID:  run.ID,
		NodeID: nodeID,
		Status: models.CompletedStepStatus,
		Result: result,
	}); err != nil {
		return e.failStep(run, nodeID, err)
	}
	return e.Continue(ctx, run.ID)
}

// failStep records the failure on both the step and the run, then returns
// the cause. Action-level failures are terminal; nothing retries them.
func (e *Engine) failStep(run models.WorkflowRun, nodeID int64, cause error) error {
	if _, err := e.store.UpsertStep(models.WorkflowRunStep{
		RunID:    run.ID,
		NodeID:   nodeID,
		Status:   models.FailedStepStatus,
		ErrorMsg: cause.Error(),
	}); err != nil {
		e.logger.Errorf("Run %d: failed to record step failure for node %d: %v", run.ID, nodeID, err)
	}
	return e.failRun(run.ID, cause)
}

func defaultAssignee(run models.WorkflowRun) *models.Assignee {
	if run.EmployeeID == nil {
		return nil
	}
	return &models.Assignee{Type: "employee", ID: *run.EmployeeID}
}

func delayDuration(spec *models.DurationSpec) time.Duration {
	if spec == nil || spec.Value <= 0 {
		return DefaultDelay
	}
	switch spec.Unit {
	case "minute":
		return time.Duration(spec.Value) * time.Minute
	case "hour":
		return time.Duration(spec.Value) * time.Hour
	case "day":
		return time.Duration(spec.Value) * 24 * time.Hour
	}
	return DefaultDelay
}

// dueAt resolves a due-date spec: an absolute RFC3339 timestamp wins, else a
// relative expression like "day -3" is resolved against now (only the day
// unit is honored), else there is no due date.
func dueAt(spec *models.DueDateSpec, now time.Time) *time.Time {
	if spec == nil {
		return nil
	}
	if spec.Absolute != "" {
		t, err := time.Parse(time.RFC3339, spec.Absolute)
		if err != nil {
			return nil
		}
		return &t
	}
	fields := strings.Fields(spec.Relative)
	if len(fields) == 2 && fields[0] == "day" {
		if offset, err := strconv.Atoi(fields[1]); err == nil {
			t := now.AddDate(0, 0, offset)
			return &t
		}
	}
	return nil
}
