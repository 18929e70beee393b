package engine

import (
	"context"
	"encoding/json"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/pkg/errors"
)

// Continue walks the run's edges after a step completion: every edge whose
// source node completed makes its target a candidate, and candidates that
// have not completed yet are executed. Gating is per-edge ("any" semantics):
// a node with several incoming edges fires as soon as the first one is
// satisfied - there is no AND-join. Once at least one step exists and every
// step is terminal, the run completes. Calling Continue on a terminal run is
// a no-op.
func (e *Engine) Continue(ctx context.Context, runID int64) error {
	run, err := e.store.GetRun(runID)
	if err != nil {
		return errors.Wrapf(err, "load run %d", runID)
	}
	if run.Status.Terminal() {
		return nil
	}

	version, err := e.store.GetVersion(run.VersionID)
	if err != nil {
		return errors.Wrapf(err, "load version %d", run.VersionID)
	}
	def, err := models.ParseDefinition(version.Definition)
	if err != nil {
		return errors.Wrapf(err, "run %d", runID)
	}

	nodes, err := e.store.ListNodes(run.VersionID)
	if err != nil {
		return errors.Wrapf(err, "list nodes for version %d", run.VersionID)
	}
	idByKey := make(map[string]int64, len(nodes))
	keyByID := make(map[int64]string, len(nodes))
	for _, n := range nodes {
		idByKey[n.NodeKey] = n.ID
		keyByID[n.ID] = n.NodeKey
	}

	steps, err := e.store.ListSteps(runID)
	if err != nil {
		return errors.Wrapf(err, "list steps for run %d", runID)
	}
	completed := make(map[string]bool)
	for _, st := range steps {
		if st.Status == models.CompletedStepStatus {
			completed[keyByID[st.NodeID]] = true
		}
	}

	for _, edge := range def.Edges {
		if !completed[edge.Source] || completed[edge.Target] {
			continue
		}
		targetID, ok := idByKey[edge.Target]
		if !ok {
			e.logger.Errorf("Run %d: edge target '%s' has no materialized node, skipping", runID, edge.Target)
			continue
		}
		// ExecuteStep short-circuits on finished steps, so a target reached
		// through several satisfied edges executes once
		if err := e.ExecuteStep(ctx, runID, targetID); err != nil {
			e.logger.Errorf("Run %d: continuation of node '%s': %v", runID, edge.Target, err)
		}
	}

	return e.finishRunIfDone(runID)
}

// CompleteStep resolves a human-actioned step (waiting_input) with its result
// and continues the run. This is the entry point the task-completion API
// calls when an assignee finishes a task, uploads a document or submits a
// form.
func (e *Engine) CompleteStep(ctx context.Context, stepID int64, result json.RawMessage) error {
	step, err := e.store.GetStepByID(stepID)
	if err != nil {
		return errors.Wrapf(err, "load step %d", stepID)
	}
	if step.Status == models.CompletedStepStatus {
		return nil
	}
	if err := e.store.UpdateStepStatus(stepID, models.CompletedStepStatus, result, ""); err != nil {
		return errors.Wrapf(err, "complete step %d", stepID)
	}
	e.logger.Infof("Step %d of run %d completed", stepID, step.RunID)
	return e.Continue(ctx, step.RunID)
}

// finishRunIfDone transitions the run to completed once every step it has
// created reached a terminal status.
func (e *Engine) finishRunIfDone(runID int64) error {
	run, err := e.store.GetRun(runID)
	if err != nil {
		return errors.Wrapf(err, "load run %d", runID)
	}
	// recursion through ExecuteStep may already have finished or failed it
	if run.Status.Terminal() {
		return nil
	}
	steps, err := e.store.ListSteps(runID)
	if err != nil {
		return errors.Wrapf(err, "list steps for run %d", runID)
	}
	if len(steps) == 0 {
		return nil
	}
	for _, st := range steps {
		if !st.Status.Terminal() {
			return nil
		}
	}
	if err := e.store.UpdateRunStatus(runID, models.CompletedRunStatus, ""); err != nil {
		return errors.Wrapf(err, "mark run %d completed", runID)
	}
	e.logger.Infof("Run %d completed", runID)
	return nil
}
