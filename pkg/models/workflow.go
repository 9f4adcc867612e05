// Package models defines the core domain models for the workflow automation engine.
package models

import "time"

// TriggerKind identifies the business event a workflow definition reacts to.
type TriggerKind string

const (
	TriggerEmailReceived TriggerKind = "email_received"
	TriggerLeadCreated   TriggerKind = "lead_created"
	TriggerScheduled     TriggerKind = "scheduled"
	TriggerManual        TriggerKind = "manual"
)

// KnownTriggerKinds lists every trigger kind a definition may declare.
var KnownTriggerKinds = []TriggerKind{
	TriggerEmailReceived,
	TriggerLeadCreated,
	TriggerScheduled,
	TriggerManual,
}

// WorkflowDefinition is a stored, reusable automation graph. Nodes and edges
// are only ever replaced as a whole; there is no in-place patching of the
// graph, which keeps a half-edited definition from being executable.
type WorkflowDefinition struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"      validate:"required"`
	Name           string         `json:"name"           validate:"required,min=3"`
	Description    string         `json:"description"`
	Trigger        TriggerKind    `json:"trigger"        validate:"required"`
	TriggerConfig  map[string]any `json:"trigger_config,omitempty"`
	Nodes          []*Node        `json:"nodes"`
	Edges          []*Edge        `json:"edges"`
	IsActive       bool           `json:"is_active"`
	IsTemplate     bool           `json:"is_template"`
	ExecutionCount int64          `json:"execution_count"`
	LastExecutedAt *time.Time     `json:"last_executed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

// NodeByID returns the node with the given id, or nil.
func (d *WorkflowDefinition) NodeByID(id string) *Node {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// TriggerNode returns the definition's single trigger node, or nil when the
// graph is malformed. Callers that need a guarantee run graph validation first.
func (d *WorkflowDefinition) TriggerNode() *Node {
	for _, n := range d.Nodes {
		if n.Kind == NodeTrigger {
			return n
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving the given node, in declaration order.
func (d *WorkflowDefinition) OutgoingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0, 2)

	for _, e := range d.Edges {
		if e.Source == nodeID {
			edges = append(edges, e)
		}
	}

	return edges
}

// IncomingCount returns the number of edges pointing at the given node.
func (d *WorkflowDefinition) IncomingCount(nodeID string) int {
	count := 0

	for _, e := range d.Edges {
		if e.Target == nodeID {
			count++
		}
	}

	return count
}
