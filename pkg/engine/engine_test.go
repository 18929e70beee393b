package engine_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/engine"
	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/deinJoni/artemis-hr-app-sub000/pkg/storage"
	"github.com/stretchr/testify/assert"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{}) {
	// no-op
}

func (l logger) Errorf(format string, args ...interface{}) {
	// no-op
}

const triggerOnlyDef = `{
	"nodes": [
		{"id": "start", "type": "trigger", "label": "Employee created", "config": {"event": "employee.created"}}
	],
	"edges": []
}`

const linearDef = `{
	"nodes": [
		{"id": "start", "type": "trigger", "config": {"event": "employee.created"}},
		{"id": "laptop", "type": "action", "label": "Prepare laptop", "config": {
			"kind": "assign_task",
			"tasks": [{"title": "Prepare laptop", "description": "Order and image the laptop", "priority": "high"}],
			"due_date": {"relative": "day 3"}
		}},
		{"id": "welcome", "type": "action", "label": "Welcome email", "config": {"kind": "email", "template": "welcome"}}
	],
	"edges": [
		{"source": "start", "target": "laptop"},
		{"source": "laptop", "target": "welcome"}
	]
}`

func newEngine() (*engine.Engine, storage.Store) {
	store := storage.NewMockStore()
	return engine.NewEngine(store, nil, logger{}), store
}

func publish(t *testing.T, eng *engine.Engine, tenantID int64, slug, def string) (workflowID, versionID int64) {
	t.Helper()
	workflowID, err := eng.CreateWorkflow(tenantID, "Test "+slug, slug, models.OnboardingWorkflowKind)
	assert.NoError(t, err)
	versionID, err = eng.AddVersion(workflowID, 1, json.RawMessage(def))
	assert.NoError(t, err)
	assert.NoError(t, eng.Publish(workflowID, versionID))
	return workflowID, versionID
}

func int64Ptr(v int64) *int64 { return &v }

func TestHandleTrigger(t *testing.T) {
	ctx := context.Background()

	t.Run("UnmatchedEventCreatesNoRun", func(t *testing.T) {
		eng, _ := newEngine()
		publish(t, eng, 1, "onboarding", triggerOnlyDef)

		runIDs, errs := eng.HandleTrigger(ctx, engine.Event{Type: "foo.bar", TenantID: 1})
		assert.Empty(t, runIDs)
		assert.Empty(t, errs)
	})

	t.Run("OtherTenantDoesNotMatch", func(t *testing.T) {
		eng, _ := newEngine()
		publish(t, eng, 1, "onboarding", triggerOnlyDef)

		runIDs, errs := eng.HandleTrigger(ctx, engine.Event{Type: "employee.created", TenantID: 2})
		assert.Empty(t, runIDs)
		assert.Empty(t, errs)
	})

	t.Run("DraftWorkflowDoesNotMatch", func(t *testing.T) {
		eng, _ := newEngine()
		workflowID, err := eng.CreateWorkflow(1, "Draft", "draft", models.OnboardingWorkflowKind)
		assert.NoError(t, err)
		_, err = eng.AddVersion(workflowID, 1, json.RawMessage(triggerOnlyDef))
		assert.NoError(t, err)

		runIDs, errs := eng.HandleTrigger(ctx, engine.Event{Type: "employee.created", TenantID: 1})
		assert.Empty(t, runIDs)
		assert.Empty(t, errs)
	})

	t.Run("EveryMatchingWorkflowStartsARun", func(t *testing.T) {
		eng, _ := newEngine()
		publish(t, eng, 1, "onboarding-a", triggerOnlyDef)
		publish(t, eng, 1, "onboarding-b", triggerOnlyDef)

		runIDs, errs := eng.HandleTrigger(ctx, engine.Event{Type: "employee.created", TenantID: 1})
		assert.Len(t, runIDs, 2)
		assert.Empty(t, errs)
	})

	t.Run("SingleTriggerGraphCompletesImmediately", func(t *testing.T) {
		eng, _ := newEngine()
		publish(t, eng, 1, "onboarding", triggerOnlyDef)

		runIDs, errs := eng.HandleTrigger(ctx, engine.Event{Type: "employee.created", TenantID: 1})
		assert.Empty(t, errs)
		assert.Len(t, runIDs, 1)

		detail, err := eng.GetRun(runIDs[0])
		assert.NoError(t, err)
		assert.Equal(t, models.CompletedRunStatus, detail.Run.Status)
		assert.NotNil(t, detail.Run.CompletedAt)
		assert.Len(t, detail.Steps, 1)
		assert.Equal(t, models.CompletedStepStatus, detail.Steps[0].Status)
	})
}

func TestLinearGraphScenario(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine()
	publish(t, eng, 1, "onboarding", linearDef)

	runIDs, errs := eng.HandleTrigger(ctx, engine.Event{
		Type:       "employee.created",
		TenantID:   1,
		EmployeeID: int64Ptr(42),
		Payload:    json.RawMessage(`{"employee_name": "Ada"}`),
	})
	assert.Empty(t, errs)
	assert.Len(t, runIDs, 1)
	runID := runIDs[0]

	// the trigger completed and continuation reached the task node, which
	// now waits for a human
	detail, err := eng.GetRun(runID)
	assert.NoError(t, err)
	assert.Equal(t, models.InProgressRunStatus, detail.Run.Status)
	assert.NotNil(t, detail.Run.StartedAt)
	assert.Len(t, detail.Steps, 2)

	var taskStep models.WorkflowRunStep
	for _, st := range detail.Steps {
		if st.Status == models.WaitingInputStepStatus {
			taskStep = st
		}
	}
	assert.NotZero(t, taskStep.ID)
	assert.NotNil(t, taskStep.AssignedTo)
	assert.Equal(t, models.Assignee{Type: "employee", ID: 42}, *taskStep.AssignedTo)
	assert.Contains(t, string(taskStep.Payload), "Prepare laptop")

	// due date resolved from "day 3"
	assert.NotNil(t, taskStep.DueAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 3), *taskStep.DueAt, time.Minute)

	// resolving the task advances to the email node, which completes the run
	assert.NoError(t, eng.CompleteStep(ctx, taskStep.ID, json.RawMessage(`{"done": true}`)))

	detail, err = eng.GetRun(runID)
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedRunStatus, detail.Run.Status)
	assert.Len(t, detail.Steps, 3)
	for _, st := range detail.Steps {
		assert.Equal(t, models.CompletedStepStatus, st.Status)
	}
}

func TestDuplicateMaterialization(t *testing.T) {
	ctx := context.Background()
	eng, store := newEngine()
	workflowID, versionID := publish(t, eng, 1, "onboarding", linearDef)

	input := engine.StartRunInput{
		WorkflowID:    workflowID,
		VersionID:     versionID,
		TenantID:      1,
		TriggerSource: "employee.created",
	}
	_, err := eng.StartRun(ctx, input)
	assert.NoError(t, err)
	_, err = eng.StartRun(ctx, input)
	assert.NoError(t, err)

	nodes, err := store.ListNodes(versionID)
	assert.NoError(t, err)
	assert.Len(t, nodes, 3) // one persisted row per definition node, not per run
}

func TestContinuationIdempotence(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine()
	publish(t, eng, 1, "onboarding", triggerOnlyDef)

	runIDs, errs := eng.HandleTrigger(ctx, engine.Event{Type: "employee.created", TenantID: 1})
	assert.Empty(t, errs)
	assert.Len(t, runIDs, 1)

	before, err := eng.GetRun(runIDs[0])
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedRunStatus, before.Run.Status)

	assert.NoError(t, eng.Continue(ctx, runIDs[0]))
	assert.NoError(t, eng.Continue(ctx, runIDs[0]))

	after, err := eng.GetRun(runIDs[0])
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedRunStatus, after.Run.Status)
	assert.Len(t, after.Steps, len(before.Steps))
}

func TestCompleteStepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine()
	publish(t, eng, 1, "onboarding", linearDef)

	runIDs, _ := eng.HandleTrigger(ctx, engine.Event{Type: "employee.created", TenantID: 1, EmployeeID: int64Ptr(7)})
	assert.Len(t, runIDs, 1)

	detail, err := eng.GetRun(runIDs[0])
	assert.NoError(t, err)
	var taskStep models.WorkflowRunStep
	for _, st := range detail.Steps {
		if st.Status == models.WaitingInputStepStatus {
			taskStep = st
		}
	}

	assert.NoError(t, eng.CompleteStep(ctx, taskStep.ID, nil))
	assert.NoError(t, eng.CompleteStep(ctx, taskStep.ID, nil))

	after, err := eng.GetRun(runIDs[0])
	assert.NoError(t, err)
	assert.Len(t, after.Steps, 3)
	assert.Equal(t, models.CompletedRunStatus, after.Run.Status)
}

func TestStartWorkflow(t *testing.T) {
	ctx := context.Background()

	t.Run("ManualStart", func(t *testing.T) {
		eng, _ := newEngine()
		workflowID, _ := publish(t, eng, 1, "onboarding", triggerOnlyDef)

		runID, err := eng.StartWorkflow(ctx, workflowID, 1, int64Ptr(42), nil)
		assert.NoError(t, err)

		detail, err := eng.GetRun(runID)
		assert.NoError(t, err)
		assert.Equal(t, engine.TriggerSourceManual, detail.Run.TriggerSource)
		assert.Equal(t, models.CompletedRunStatus, detail.Run.Status)
	})

	t.Run("UnpublishedWorkflowRefuses", func(t *testing.T) {
		eng, _ := newEngine()
		workflowID, err := eng.CreateWorkflow(1, "Draft", "draft", models.CustomWorkflowKind)
		assert.NoError(t, err)

		_, err = eng.StartWorkflow(ctx, workflowID, 1, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no published version")
	})

	t.Run("WrongTenantRefuses", func(t *testing.T) {
		eng, _ := newEngine()
		workflowID, _ := publish(t, eng, 1, "onboarding", triggerOnlyDef)

		_, err := eng.StartWorkflow(ctx, workflowID, 2, nil, nil)
		assert.Error(t, err)
	})
}

func TestActionFailureFailsRun(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine()

	// the action node has no kind and no marker fields, so dispatch fails
	badDef := `{
		"nodes": [
			{"id": "start", "type": "trigger", "config": {"event": "employee.created"}},
			{"id": "broken", "type": "action", "config": {}}
		],
		"edges": [{"source": "start", "target": "broken"}]
	}`
	publish(t, eng, 1, "broken", badDef)

	runIDs, errs := eng.HandleTrigger(ctx, engine.Event{Type: "employee.created", TenantID: 1})
	assert.Empty(t, errs) // instantiation itself succeeded
	assert.Len(t, runIDs, 1)

	detail, err := eng.GetRun(runIDs[0])
	assert.NoError(t, err)
	assert.Equal(t, models.FailedRunStatus, detail.Run.Status)
	assert.NotEmpty(t, detail.Run.LastError)
	assert.NotNil(t, detail.Run.FailedAt)

	var failed bool
	for _, st := range detail.Steps {
		if st.Status == models.FailedStepStatus {
			failed = true
			assert.NotEmpty(t, st.ErrorMsg)
		}
	}
	assert.True(t, failed)
}

func TestAbsoluteDueDate(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine()

	def := `{
		"nodes": [
			{"id": "start", "type": "trigger", "config": {"event": "employee.created"}},
			{"id": "docs", "type": "action", "config": {
				"kind": "create_document",
				"documents": ["passport", "work_permit"],
				"due_date": {"absolute": "2026-12-01T00:00:00Z"}
			}}
		],
		"edges": [{"source": "start", "target": "docs"}]
	}`
	publish(t, eng, 1, "docs", def)

	runIDs, errs := eng.HandleTrigger(ctx, engine.Event{Type: "employee.created", TenantID: 1, EmployeeID: int64Ptr(9)})
	assert.Empty(t, errs)
	assert.Len(t, runIDs, 1)

	detail, err := eng.GetRun(runIDs[0])
	assert.NoError(t, err)

	var docStep models.WorkflowRunStep
	for _, st := range detail.Steps {
		if st.Status == models.WaitingInputStepStatus {
			docStep = st
		}
	}
	assert.NotZero(t, docStep.ID)
	assert.NotNil(t, docStep.DueAt)
	assert.True(t, docStep.DueAt.Equal(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)))
	// both document types aggregate into the single step payload
	assert.Contains(t, string(docStep.Payload), "passport")
	assert.Contains(t, string(docStep.Payload), "work_permit")
}

func TestLogicNodePassesThrough(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine()

	def := `{
		"nodes": [
			{"id": "start", "type": "trigger", "config": {"event": "employee.created"}},
			{"id": "gate", "type": "logic", "config": {}},
			{"id": "notify", "type": "action", "config": {"kind": "email", "template": "hello"}}
		],
		"edges": [
			{"source": "start", "target": "gate"},
			{"source": "gate", "target": "notify"}
		]
	}`
	publish(t, eng, 1, "logic", def)

	runIDs, errs := eng.HandleTrigger(ctx, engine.Event{Type: "employee.created", TenantID: 1})
	assert.Empty(t, errs)
	assert.Len(t, runIDs, 1)

	detail, err := eng.GetRun(runIDs[0])
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedRunStatus, detail.Run.Status)
	assert.Len(t, detail.Steps, 3)
}
