package engine

import (
	"context"
	"encoding/json"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/storage"
)

// Logger defines the logging interface for the engine.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Notifier is the outbound side-effect hook invoked by email action nodes.
// Delivery is best-effort: a failed send never fails the step.
type Notifier interface {
	SendTemplate(ctx context.Context, tenantID int64, employeeID *int64, template string, payload json.RawMessage) error
}

// LogNotifier is the default Notifier; it only records the send.
type LogNotifier struct {
	Logger Logger
}

func (n LogNotifier) SendTemplate(_ context.Context, tenantID int64, employeeID *int64, template string, _ json.RawMessage) error {
	if employeeID != nil {
		n.Logger.Infof("Notify tenant %d employee %d with template '%s'", tenantID, *employeeID, template)
	} else {
		n.Logger.Infof("Notify tenant %d with template '%s'", tenantID, template)
	}
	return nil
}

// Event is a domain event raised by a business operation (employee created,
// offboarding scheduled, ...). The engine matches it against published
// workflow triggers.
type Event struct {
	Type       string          `json:"type"`
	TenantID   int64           `json:"tenant_id"`
	EmployeeID *int64          `json:"employee_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// StartRunInput identifies the (workflow, version, trigger context) tuple a
// run is instantiated for.
type StartRunInput struct {
	WorkflowID    int64
	VersionID     int64
	TenantID      int64
	EmployeeID    *int64
	TriggerSource string
	Context       json.RawMessage
}

// Engine orchestrates workflow runs: it matches trigger events, instantiates
// runs, executes graph nodes and propagates completion. All state lives in
// the relational store; engine operations are individual statements, so the
// engine itself is callable from HTTP handlers and the queue processor alike.
type Engine struct {
	store    storage.Store
	notifier Notifier
	logger   Logger
}

func NewEngine(store storage.Store, notifier Notifier, logger Logger) *Engine {
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}
