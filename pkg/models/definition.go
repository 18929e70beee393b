package models

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type NodeType string

const (
	TriggerNodeType NodeType = "trigger"
	LogicNodeType   NodeType = "logic"
	DelayNodeType   NodeType = "delay"
	ActionNodeType  NodeType = "action"
)

// ActionKind tags the behavior of an action node. It is decided at authoring
// time; the executor dispatches on the tag alone.
type ActionKind string

const (
	EmailActionKind          ActionKind = "email"
	AssignTaskActionKind     ActionKind = "assign_task"
	CreateDocumentActionKind ActionKind = "create_document"
	FillFormActionKind       ActionKind = "fill_form"
)

// Definition is the nodes+edges graph inside a workflow version. Pure data,
// no I/O; parsed once per version access.
type Definition struct {
	Nodes    []DefinitionNode       `json:"nodes"`
	Edges    []DefinitionEdge       `json:"edges"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type DefinitionNode struct {
	ID     string     `json:"id"`
	Type   NodeType   `json:"type"`
	Label  string     `json:"label,omitempty"`
	Config NodeConfig `json:"config"`
}

// DefinitionEdge connects a source node to a target node. Continuation uses
// "any" gating: a target fires as soon as any one incoming edge's source
// completes. Graphs needing AND-joins are not supported.
type DefinitionEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type NodeConfig struct {
	Event      string          `json:"event,omitempty"`
	Kind       ActionKind      `json:"kind,omitempty"`
	Template   string          `json:"template,omitempty"`
	Tasks      []TaskSpec      `json:"tasks,omitempty"`
	Documents  []string        `json:"documents,omitempty"`
	Form       json.RawMessage `json:"form,omitempty"`
	FormSchema json.RawMessage `json:"form_schema,omitempty"`
	Duration   *DurationSpec   `json:"duration,omitempty"`
	DueDate    *DueDateSpec    `json:"due_date,omitempty"`
}

type TaskSpec struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Priority     string `json:"priority,omitempty"`
}

type DurationSpec struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"` // minute, hour or day
}

// DueDateSpec carries either an absolute RFC3339 timestamp or a relative
// expression like "day -3".
type DueDateSpec struct {
	Absolute string `json:"absolute,omitempty"`
	Relative string `json:"relative,omitempty"`
}

// ParseDefinition decodes a version's definition blob and normalizes it.
// Action nodes authored without an explicit kind get one inferred from the
// legacy marker fields (template, tasks, documents, form - in that order), so
// that everything downstream dispatches on the tag only.
func ParseDefinition(raw []byte) (Definition, error) {
	if len(raw) == 0 {
		return Definition{}, errors.New("empty workflow definition")
	}
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return Definition{}, errors.Wrap(err, "parse workflow definition")
	}
	for i := range def.Nodes {
		n := &def.Nodes[i]
		if n.ID == "" {
			return Definition{}, errors.Errorf("definition node at index %d has no id", i)
		}
		if len(n.Config.Form) == 0 && len(n.Config.FormSchema) > 0 {
			n.Config.Form = n.Config.FormSchema
		}
		if n.Type == ActionNodeType && n.Config.Kind == "" {
			n.Config.Kind = inferActionKind(n.Config)
		}
	}
	return def, nil
}

func inferActionKind(cfg NodeConfig) ActionKind {
	switch {
	case cfg.Template != "":
		return EmailActionKind
	case len(cfg.Tasks) > 0:
		return AssignTaskActionKind
	case len(cfg.Documents) > 0:
		return CreateDocumentActionKind
	case len(cfg.Form) > 0:
		return FillFormActionKind
	}
	return ""
}

// Node returns the definition node with the given id, or nil.
func (d Definition) Node(id string) *DefinitionNode {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// TriggerNodes returns every node of type trigger.
func (d Definition) TriggerNodes() []DefinitionNode {
	var out []DefinitionNode
	for _, n := range d.Nodes {
		if n.Type == TriggerNodeType {
			out = append(out, n)
		}
	}
	return out
}

// Outgoing returns the targets of every edge leaving the given node.
func (d Definition) Outgoing(sourceID string) []string {
	var out []string
	for _, e := range d.Edges {
		if e.Source == sourceID {
			out = append(out, e.Target)
		}
	}
	return out
}
