package engine

import (
	"context"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/pkg/errors"
)

// HandleTrigger matches a domain event against every published workflow of
// the tenant and starts a run per match. Matches are processed independently:
// a failure in one workflow is collected and the scan moves on, so orchestration
// can never break the business operation that raised the event. Callers decide
// what to do with the partial failures (typically log them).
func (e *Engine) HandleTrigger(ctx context.Context, ev Event) ([]int64, []error) {
	workflows, err := e.store.ListPublishedWorkflows(ev.TenantID)
	if err != nil {
		return nil, []error{errors.Wrap(err, "list published workflows")}
	}

	var runIDs []int64
	var errs []error
	for _, wf := range workflows {
		if wf.ActiveVersionID == nil {
			continue
		}
		version, err := e.store.GetVersion(*wf.ActiveVersionID)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "workflow %d: load active version", wf.ID))
			continue
		}
		def, err := models.ParseDefinition(version.Definition)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "workflow %d", wf.ID))
			continue
		}
		if !matchesEvent(def, ev.Type) {
			continue
		}

		runID, err := e.StartRun(ctx, StartRunInput{
			WorkflowID:    wf.ID,
			VersionID:     version.ID,
			TenantID:      ev.TenantID,
			EmployeeID:    ev.EmployeeID,
			TriggerSource: ev.Type,
			Context:       ev.Payload,
		})
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "workflow %d: start run", wf.ID))
			continue
		}
		e.logger.Infof("Event '%s' started run %d of workflow %d", ev.Type, runID, wf.ID)
		runIDs = append(runIDs, runID)
	}
	return runIDs, errs
}

// matchesEvent reports whether any trigger node in the definition is
// configured for the given event type.
func matchesEvent(def models.Definition, eventType string) bool {
	for _, n := range def.TriggerNodes() {
		if n.Config.Event == eventType {
			return true
		}
	}
	return false
}
