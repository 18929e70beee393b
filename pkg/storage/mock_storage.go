package storage

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/pkg/errors"
)

// mockStore implements Store with in-memory slices. Begin returns the store
// itself; Commit/Rollback are no-ops since engine tests exercise behavior,
// not transactional rollback.
type mockStore struct {
	workflows []models.Workflow
	versions  []models.WorkflowVersion
	nodes     []models.WorkflowNode
	runs      []models.WorkflowRun
	steps     []models.WorkflowRunStep
	queue     []models.QueueEntry
	journeys  []models.Journey
	nextID    int64
}

func NewMockStore() Store {
	return &mockStore{}
}

func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *mockStore) SaveWorkflow(w models.Workflow) (int64, error) {
	for _, existing := range m.workflows {
		if existing.TenantID == w.TenantID && existing.Slug == w.Slug {
			return 0, errors.Errorf("workflow slug %q already exists for tenant %d", w.Slug, w.TenantID)
		}
	}
	w.ID = m.id()
	m.workflows = append(m.workflows, w)
	return w.ID, nil
}

func (m *mockStore) GetWorkflow(id int64) (models.Workflow, error) {
	for _, w := range m.workflows {
		if w.ID == id {
			return w, nil
		}
	}
	return models.Workflow{}, ErrNotFound
}

func (m *mockStore) ListWorkflows(tenantID int64) ([]models.Workflow, error) {
	var out []models.Workflow
	for _, w := range m.workflows {
		if w.TenantID == tenantID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *mockStore) ListPublishedWorkflows(tenantID int64) ([]models.Workflow, error) {
	var out []models.Workflow
	for _, w := range m.workflows {
		if w.TenantID == tenantID && w.Status == models.PublishedWorkflowStatus && w.ActiveVersionID != nil {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *mockStore) PublishWorkflow(id, versionID int64) error {
	for i, w := range m.workflows {
		if w.ID == id {
			m.workflows[i].Status = models.PublishedWorkflowStatus
			m.workflows[i].ActiveVersionID = &versionID
			m.workflows[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveVersion(v models.WorkflowVersion) (int64, error) {
	v.ID = m.id()
	m.versions = append(m.versions, v)
	return v.ID, nil
}

func (m *mockStore) GetVersion(id int64) (models.WorkflowVersion, error) {
	for _, v := range m.versions {
		if v.ID == id {
			return v, nil
		}
	}
	return models.WorkflowVersion{}, ErrNotFound
}

func (m *mockStore) SaveNode(n models.WorkflowNode) (int64, error) {
	for _, existing := range m.nodes {
		if existing.VersionID == n.VersionID && existing.NodeKey == n.NodeKey {
			return existing.ID, nil
		}
	}
	n.ID = m.id()
	m.nodes = append(m.nodes, n)
	return n.ID, nil
}

func (m *mockStore) GetNode(versionID int64, nodeKey string) (models.WorkflowNode, error) {
	for _, n := range m.nodes {
		if n.VersionID == versionID && n.NodeKey == nodeKey {
			return n, nil
		}
	}
	return models.WorkflowNode{}, ErrNotFound
}

func (m *mockStore) GetNodeByID(id int64) (models.WorkflowNode, error) {
	for _, n := range m.nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return models.WorkflowNode{}, ErrNotFound
}

func (m *mockStore) ListNodes(versionID int64) ([]models.WorkflowNode, error) {
	var out []models.WorkflowNode
	for _, n := range m.nodes {
		if n.VersionID == versionID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockStore) SaveRun(r models.WorkflowRun) (int64, error) {
	r.ID = m.id()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.runs = append(m.runs, r)
	return r.ID, nil
}

func (m *mockStore) GetRun(id int64) (models.WorkflowRun, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return models.WorkflowRun{}, ErrNotFound
}

func (m *mockStore) UpdateRunStatus(id int64, status models.RunStatus, lastError string) error {
	for i, r := range m.runs {
		if r.ID != id {
			continue
		}
		now := time.Now()
		m.runs[i].Status = status
		m.runs[i].LastError = lastError
		switch status {
		case models.InProgressRunStatus:
			m.runs[i].StartedAt = &now
		case models.CompletedRunStatus:
			m.runs[i].CompletedAt = &now
		case models.FailedRunStatus:
			m.runs[i].FailedAt = &now
		}
		return nil
	}
	return ErrNotFound
}

func (m *mockStore) UpsertStep(s models.WorkflowRunStep) (int64, error) {
	for i, existing := range m.steps {
		if existing.RunID == s.RunID && existing.NodeID == s.NodeID {
			s.ID = existing.ID
			s.CreatedAt = existing.CreatedAt
			s.UpdatedAt = time.Now()
			m.steps[i] = s
			return s.ID, nil
		}
	}
	s.ID = m.id()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.steps = append(m.steps, s)
	return s.ID, nil
}

func (m *mockStore) GetStep(runID, nodeID int64) (models.WorkflowRunStep, error) {
	for _, s := range m.steps {
		if s.RunID == runID && s.NodeID == nodeID {
			return s, nil
		}
	}
	return models.WorkflowRunStep{}, ErrNotFound
}

func (m *mockStore) GetStepByID(id int64) (models.WorkflowRunStep, error) {
	for _, s := range m.steps {
		if s.ID == id {
			return s, nil
		}
	}
	return models.WorkflowRunStep{}, ErrNotFound
}

func (m *mockStore) ListSteps(runID int64) ([]models.WorkflowRunStep, error) {
	var out []models.WorkflowRunStep
	for _, s := range m.steps {
		if s.RunID == runID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateStepStatus(id int64, status models.StepStatus, result json.RawMessage, errorMsg string) error {
	for i, s := range m.steps {
		if s.ID == id {
			m.steps[i].Status = status
			m.steps[i].Result = result
			m.steps[i].ErrorMsg = errorMsg
			m.steps[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveQueueEntry(e models.QueueEntry) (int64, error) {
	e.ID = m.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.queue = append(m.queue, e)
	return e.ID, nil
}

func (m *mockStore) DueQueueEntries(now time.Time, limit int) ([]models.QueueEntry, error) {
	var out []models.QueueEntry
	for _, e := range m.queue {
		if !e.ResumeAt.After(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResumeAt.Before(out[j].ResumeAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) RearmQueueEntry(id int64, resumeAt time.Time, attempts int, lastError string) error {
	for i, e := range m.queue {
		if e.ID == id {
			m.queue[i].ResumeAt = resumeAt
			m.queue[i].Attempts = attempts
			m.queue[i].LastError = lastError
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) DeleteQueueEntry(id int64) error {
	for i, e := range m.queue {
		if e.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) UpsertJourney(j models.Journey) error {
	for i, existing := range m.journeys {
		if existing.RunID == j.RunID {
			j.CreatedAt = existing.CreatedAt
			j.ShareToken = existing.ShareToken
			m.journeys[i] = j
			return nil
		}
	}
	j.CreatedAt = time.Now()
	m.journeys = append(m.journeys, j)
	return nil
}
