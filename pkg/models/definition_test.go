package models_test

import (
	"testing"

	"github.com/deinJoni/artemis-hr-app-sub000/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestParseDefinition(t *testing.T) {
	t.Run("EmptyBlobFails", func(t *testing.T) {
		_, err := models.ParseDefinition(nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "empty workflow definition")
	})

	t.Run("InvalidJSONFails", func(t *testing.T) {
		_, err := models.ParseDefinition([]byte(`{nodes:`))
		assert.Error(t, err)
	})

	t.Run("NodeWithoutIDFails", func(t *testing.T) {
		_, err := models.ParseDefinition([]byte(`{"nodes": [{"type": "trigger"}]}`))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "has no id")
	})

	t.Run("ExplicitKindIsKept", func(t *testing.T) {
		def, err := models.ParseDefinition([]byte(`{
			"nodes": [{"id": "a", "type": "action", "config": {"kind": "fill_form", "template": "welcome"}}]
		}`))
		assert.NoError(t, err)
		assert.Equal(t, models.FillFormActionKind, def.Nodes[0].Config.Kind)
	})

	t.Run("FormSchemaAlias", func(t *testing.T) {
		def, err := models.ParseDefinition([]byte(`{
			"nodes": [{"id": "a", "type": "action", "config": {"form_schema": {"fields": []}}}]
		}`))
		assert.NoError(t, err)
		assert.JSONEq(t, `{"fields": []}`, string(def.Nodes[0].Config.Form))
		assert.Equal(t, models.FillFormActionKind, def.Nodes[0].Config.Kind)
	})

	t.Run("NonActionNodesGetNoKind", func(t *testing.T) {
		def, err := models.ParseDefinition([]byte(`{
			"nodes": [{"id": "a", "type": "trigger", "config": {"event": "x", "template": "welcome"}}]
		}`))
		assert.NoError(t, err)
		assert.Empty(t, def.Nodes[0].Config.Kind)
	})
}

func TestInferActionKind(t *testing.T) {
	cases := []struct {
		name   string
		config string
		want   models.ActionKind
	}{
		{"Template", `{"template": "welcome"}`, models.EmailActionKind},
		{"Tasks", `{"tasks": [{"title": "t"}]}`, models.AssignTaskActionKind},
		{"Documents", `{"documents": ["passport"]}`, models.CreateDocumentActionKind},
		{"Form", `{"form": {"fields": []}}`, models.FillFormActionKind},
		// template wins over every other marker, tasks over documents and form
		{"TemplateBeatsTasks", `{"template": "welcome", "tasks": [{"title": "t"}]}`, models.EmailActionKind},
		{"TasksBeatDocuments", `{"tasks": [{"title": "t"}], "documents": ["passport"]}`, models.AssignTaskActionKind},
		{"DocumentsBeatForm", `{"documents": ["passport"], "form": {"fields": []}}`, models.CreateDocumentActionKind},
		{"NoMarkers", `{}`, models.ActionKind("")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def, err := models.ParseDefinition([]byte(`{
				"nodes": [{"id": "a", "type": "action", "config": ` + tc.config + `}]
			}`))
			assert.NoError(t, err)
			assert.Equal(t, tc.want, def.Nodes[0].Config.Kind)
		})
	}
}

func TestDefinitionHelpers(t *testing.T) {
	def, err := models.ParseDefinition([]byte(`{
		"nodes": [
			{"id": "start", "type": "trigger", "config": {"event": "employee.created"}},
			{"id": "also", "type": "trigger", "config": {"event": "employee.updated"}},
			{"id": "notify", "type": "action", "config": {"template": "welcome"}}
		],
		"edges": [
			{"source": "start", "target": "notify"},
			{"source": "also", "target": "notify"}
		]
	}`))
	assert.NoError(t, err)

	t.Run("Node", func(t *testing.T) {
		assert.NotNil(t, def.Node("notify"))
		assert.Nil(t, def.Node("missing"))
	})

	t.Run("TriggerNodes", func(t *testing.T) {
		triggers := def.TriggerNodes()
		assert.Len(t, triggers, 2)
		assert.Equal(t, "start", triggers[0].ID)
		assert.Equal(t, "also", triggers[1].ID)
	})

	t.Run("Outgoing", func(t *testing.T) {
		assert.Equal(t, []string{"notify"}, def.Outgoing("start"))
		assert.Empty(t, def.Outgoing("notify"))
	})
}
