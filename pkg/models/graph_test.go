package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func validDefinition() *WorkflowDefinition {
	return &WorkflowDefinition{
		ID:       "wf-1",
		TenantID: "tenant-1",
		Name:     "Demo triage",
		Trigger:  TriggerEmailReceived,
		Nodes: []*Node{
			{ID: "start", Kind: NodeTrigger, Config: &TriggerNodeConfig{}},
			{ID: "classify", Kind: NodeAIClassify, Config: &ClassifyConfig{Input: "{{trigger.body}}"}},
			{ID: "check", Kind: NodeCondition, Config: &ConditionConfig{
				Field:    "{{classify.classification}}",
				Operator: OperatorEquals,
				Value:    "Lead Inquiry",
			}},
			{ID: "lead", Kind: NodeCreateLead, Config: &CreateLeadConfig{Title: "{{trigger.subject}}"}},
		},
		Edges: []*Edge{
			{ID: "e1", Source: "start", Target: "classify"},
			{ID: "e2", Source: "classify", Target: "check"},
			{ID: "e3", Source: "check", Target: "lead", Branch: boolPtr(true)},
		},
	}
}

func TestValidateGraph_Valid(t *testing.T) {
	require.NoError(t, ValidateGraph(validDefinition()))
}

func TestValidateGraph_TwoTriggerNodes(t *testing.T) {
	def := validDefinition()
	def.Nodes = append(def.Nodes, &Node{ID: "start2", Kind: NodeTrigger, Config: &TriggerNodeConfig{}})

	err := ValidateGraph(def)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), "exactly one trigger node")
}

func TestValidateGraph_DanglingEdge(t *testing.T) {
	def := validDefinition()
	def.Edges = append(def.Edges, &Edge{ID: "e4", Source: "lead", Target: "missing"})

	err := ValidateGraph(def)
	require.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), `target "missing" does not exist`)
}

func TestValidateGraph_Cycle(t *testing.T) {
	def := validDefinition()
	def.Edges = append(def.Edges, &Edge{ID: "e4", Source: "lead", Target: "classify"})

	err := ValidateGraph(def)
	require.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidateGraph_TriggerWithIncomingEdge(t *testing.T) {
	def := validDefinition()
	def.Edges = append(def.Edges, &Edge{ID: "e4", Source: "lead", Target: "start"})

	err := ValidateGraph(def)
	require.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), "no incoming edges")
}

func TestValidateGraph_ConditionEdgeWithoutBranchTag(t *testing.T) {
	def := validDefinition()
	def.Edges[2].Branch = nil

	err := ValidateGraph(def)
	require.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), "require a branch tag")
}

func TestValidateGraph_BranchTagOnPlainEdge(t *testing.T) {
	def := validDefinition()
	def.Edges[0].Branch = boolPtr(false)

	err := ValidateGraph(def)
	require.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), "only valid on condition-node edges")
}

func TestValidateGraph_DuplicateBranchTags(t *testing.T) {
	def := validDefinition()
	def.Edges = append(def.Edges, &Edge{ID: "e4", Source: "check", Target: "classify", Branch: boolPtr(true)})

	// The extra edge also creates a cycle; both problems should be present.
	err := ValidateGraph(def)
	require.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), "edges tagged branch=true")
}

func TestValidateGraph_InvalidNodeConfig(t *testing.T) {
	def := validDefinition()
	def.Nodes[3].Config = &CreateLeadConfig{}

	err := ValidateGraph(def)
	require.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), "title template is required")
}

func TestValidateGraph_ConfigKindMismatch(t *testing.T) {
	def := validDefinition()
	def.Nodes[3].Config = &SummarizeConfig{Input: "{{trigger.body}}"}

	err := ValidateGraph(def)
	require.ErrorIs(t, err, ErrDefinitionInvalid)
	assert.Contains(t, err.Error(), "config is for kind")
}
