package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/deinJoni/artemis-hr-app-sub000/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveWorkflow creates a new workflow container and returns its ID.
func (s *PostgresStore) SaveWorkflow(w models.Workflow) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflows (tenant_id, name, slug, kind, status, active_version_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		w.TenantID, w.Name, w.Slug, w.Kind, w.Status, w.ActiveVersionID, w.CreatedAt, w.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save workflow: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetWorkflow(id int64) (models.Workflow, error) {
	var w models.Workflow
	err := s.db.Get(&w, "SELECT * FROM workflows WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Workflow{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Workflow{}, fmt.Errorf("get workflow %d: %w", id, err)
	}
	return w, nil
}

func (s *PostgresStore) ListWorkflows(tenantID int64) ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	err := s.db.Select(&workflows,
		"SELECT * FROM workflows WHERE tenant_id = $1 ORDER BY created_at DESC", tenantID)
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

func (s *PostgresStore) ListPublishedWorkflows(tenantID int64) ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	err := s.db.Select(&workflows, `
		SELECT * FROM workflows
		WHERE tenant_id = $1 AND status = 'published' AND active_version_id IS NOT NULL
		ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

// PublishWorkflow marks a workflow published and points it at the given
// version. Status only ever moves forward.
func (s *PostgresStore) PublishWorkflow(id, versionID int64) error {
	_, err := s.db.Exec(`
		UPDATE workflows SET status = 'published', active_version_id = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`, versionID, id)
	return err
}

func (s *PostgresStore) SaveVersion(v models.WorkflowVersion) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflow_versions (workflow_id, version, definition, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		v.WorkflowID, v.Version, v.Definition, v.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save version: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetVersion(id int64) (models.WorkflowVersion, error) {
	var v models.WorkflowVersion
	err := s.db.Get(&v, "SELECT * FROM workflow_versions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.WorkflowVersion{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowVersion{}, fmt.Errorf("get version %d: %w", id, err)
	}
	return v, nil
}

// SaveNode materializes a definition node. Idempotent under concurrent
// creation: ON CONFLICT DO NOTHING followed by a reselect of the winner.
func (s *PostgresStore) SaveNode(n models.WorkflowNode) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflow_nodes (version_id, node_key, node_type, config, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (version_id, node_key) DO NOTHING
		RETURNING id`,
		n.VersionID, n.NodeKey, n.NodeType, n.Config, n.CreatedAt).Scan(&id)
	if err == sql.ErrNoRows {
		existing, getErr := s.GetNode(n.VersionID, n.NodeKey)
		if getErr != nil {
			return 0, fmt.Errorf("save node %s: %w", n.NodeKey, getErr)
		}
		return existing.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("save node %s: %w", n.NodeKey, err)
	}
	return id, nil
}

func (s *PostgresStore) GetNode(versionID int64, nodeKey string) (models.WorkflowNode, error) {
	var n models.WorkflowNode
	err := s.db.Get(&n, "SELECT * FROM workflow_nodes WHERE version_id = $1 AND node_key = $2", versionID, nodeKey)
	if err == sql.ErrNoRows {
		return models.WorkflowNode{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowNode{}, err
	}
	return n, nil
}

func (s *PostgresStore) GetNodeByID(id int64) (models.WorkflowNode, error) {
	var n models.WorkflowNode
	err := s.db.Get(&n, "SELECT * FROM workflow_nodes WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.WorkflowNode{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowNode{}, err
	}
	return n, nil
}

func (s *PostgresStore) ListNodes(versionID int64) ([]models.WorkflowNode, error) {
	nodes := []models.WorkflowNode{}
	err := s.db.Select(&nodes, "SELECT * FROM workflow_nodes WHERE version_id = $1 ORDER BY id", versionID)
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (s *PostgresStore) SaveRun(r models.WorkflowRun) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflow_runs (workflow_id, version_id, tenant_id, employee_id, trigger_source, context, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		r.WorkflowID, r.VersionID, r.TenantID, r.EmployeeID, r.TriggerSource, r.Context, r.Status, r.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetRun(id int64) (models.WorkflowRun, error) {
	var r models.WorkflowRun
	err := s.db.Get(&r, "SELECT * FROM workflow_runs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.WorkflowRun{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowRun{}, fmt.Errorf("get run %d: %w", id, err)
	}
	return r, nil
}

// UpdateRunStatus updates a run's status and stamps the matching lifecycle
// timestamp in the same statement.
func (s *PostgresStore) UpdateRunStatus(id int64, status models.RunStatus, lastError string) error {
	_, err := s.db.Exec(`
		UPDATE workflow_runs
		SET status = $1,
		last_error = $2,
		started_at = CASE WHEN $3 = 'in_progress' THEN CURRENT_TIMESTAMP ELSE started_at END,
		completed_at = CASE WHEN $4 = 'completed' THEN CURRENT_TIMESTAMP ELSE completed_at END,
		failed_at = CASE WHEN $5 = 'failed' THEN CURRENT_TIMESTAMP ELSE failed_at END
		WHERE id = $6`,
		// PostgreSQL treats parameters inside CASE clauses as separate, so the status is passed once per clause
		status, lastError, status, status, status, id)
	return err
}

// UpsertStep writes the single step row for a (run, node) pair, tolerating
// re-entrant continuation calls.
func (s *PostgresStore) UpsertStep(st models.WorkflowRunStep) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflow_run_steps (run_id, node_id, status, assigned_to, due_at, payload, result, error_msg, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (run_id, node_id) DO UPDATE
		SET status = EXCLUDED.status,
		    assigned_to = EXCLUDED.assigned_to,
		    due_at = EXCLUDED.due_at,
		    payload = EXCLUDED.payload,
		    result = EXCLUDED.result,
		    error_msg = EXCLUDED.error_msg,
		    updated_at = CURRENT_TIMESTAMP
		RETURNING id`,
		st.RunID, st.NodeID, st.Status, st.AssignedTo, st.DueAt, st.Payload, st.Result, st.ErrorMsg).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert step run=%d node=%d: %w", st.RunID, st.NodeID, err)
	}
	return id, nil
}

func (s *PostgresStore) GetStep(runID, nodeID int64) (models.WorkflowRunStep, error) {
	var st models.WorkflowRunStep
	err := s.db.Get(&st, "SELECT * FROM workflow_run_steps WHERE run_id = $1 AND node_id = $2", runID, nodeID)
	if err == sql.ErrNoRows {
		return models.WorkflowRunStep{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowRunStep{}, err
	}
	return st, nil
}

func (s *PostgresStore) GetStepByID(id int64) (models.WorkflowRunStep, error) {
	var st models.WorkflowRunStep
	err := s.db.Get(&st, "SELECT * FROM workflow_run_steps WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.WorkflowRunStep{}, storage.ErrNotFound
	}
	if err != nil {
		return models.WorkflowRunStep{}, err
	}
	return st, nil
}

func (s *PostgresStore) ListSteps(runID int64) ([]models.WorkflowRunStep, error) {
	steps := []models.WorkflowRunStep{}
	err := s.db.Select(&steps, "SELECT * FROM workflow_run_steps WHERE run_id = $1 ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("list steps for run %d: %w", runID, err)
	}
	return steps, nil
}

func (s *PostgresStore) UpdateStepStatus(id int64, status models.StepStatus, result json.RawMessage, errorMsg string) error {
	_, err := s.db.Exec(`
		UPDATE workflow_run_steps
		SET status = $1, result = $2, error_msg = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`,
		status, result, errorMsg, id)
	return err
}

func (s *PostgresStore) SaveQueueEntry(e models.QueueEntry) (int64, error) {
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO workflow_action_queue (run_id, node_id, resume_at, attempts, metadata, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		e.RunID, e.NodeID, e.ResumeAt, e.Attempts, e.Metadata, e.LastError, e.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save queue entry: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) DueQueueEntries(now time.Time, limit int) ([]models.QueueEntry, error) {
	entries := []models.QueueEntry{}
	err := s.db.Select(&entries, `
		SELECT * FROM workflow_action_queue
		WHERE resume_at <= $1
		ORDER BY resume_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due queue entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) RearmQueueEntry(id int64, resumeAt time.Time, attempts int, lastError string) error {
	_, err := s.db.Exec(`
		UPDATE workflow_action_queue
		SET resume_at = $1, attempts = $2, last_error = $3
		WHERE id = $4`,
		resumeAt, attempts, lastError, id)
	return err
}

func (s *PostgresStore) DeleteQueueEntry(id int64) error {
	_, err := s.db.Exec("DELETE FROM workflow_action_queue WHERE id = $1", id)
	return err
}

func (s *PostgresStore) UpsertJourney(j models.Journey) error {
	_, err := s.db.Exec(`
		INSERT INTO workflow_journeys (run_id, employee_id, share_token, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (run_id) DO NOTHING`,
		j.RunID, j.EmployeeID, j.ShareToken)
	return err
}
