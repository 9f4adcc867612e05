package models

import (
	"sync"
	"time"
)

// ExecutionStatus is the lifecycle state of a workflow execution. The only
// legal transitions are running -> succeeded and running -> failed.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ExecutionError describes the fatal error that failed an execution.
type ExecutionError struct {
	NodeID  string `json:"node_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes recorded on failed executions.
const (
	ErrorCodeActionDispatch = "action_dispatch_error"
	ErrorCodeTimeout        = "node_timeout"
	ErrorCodeCancelled      = "cancelled"
	ErrorCodeStaleExecution = "stale_execution"
)

// NodeOutput is the persisted per-node result of one execution step.
type NodeOutput struct {
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	FinishedAt time.Time      `json:"finished_at"`
}

// WorkflowExecution is one run of a definition against a trigger payload.
// Executions are retained for audit and never deleted automatically.
type WorkflowExecution struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflow_id"`
	TenantID    string                 `json:"tenant_id"`
	Status      ExecutionStatus        `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	NodeOutputs map[string]*NodeOutput `json:"node_outputs"`
	Error       *ExecutionError        `json:"error,omitempty"`
}

// Terminal reports whether the execution has left the running state.
func (e *WorkflowExecution) Terminal() bool {
	return e.Status == ExecutionStatusSucceeded || e.Status == ExecutionStatusFailed
}

// TriggerKey is the reserved execution-context key holding the payload of
// the event that started the run.
const TriggerKey = "trigger"

// ExecutionContext accumulates per-node outputs during a single traversal.
// It grows monotonically: outputs are written once per node and only read by
// downstream nodes, so concurrent branches share read access while writing
// disjoint keys. The context is discarded after the execution record is
// finalized.
type ExecutionContext struct {
	ExecutionID string
	WorkflowID  string
	TenantID    string

	mu      sync.RWMutex
	outputs map[string]map[string]any
}

// NewExecutionContext creates a context seeded with the trigger payload
// under the reserved trigger key.
func NewExecutionContext(executionID, workflowID, tenantID string, triggerPayload map[string]any) *ExecutionContext {
	if triggerPayload == nil {
		triggerPayload = map[string]any{}
	}

	return &ExecutionContext{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		TenantID:    tenantID,
		outputs: map[string]map[string]any{
			TriggerKey: triggerPayload,
		},
	}
}

// Set records a node's output. The engine calls this exactly once per node,
// after the node's dispatch has returned.
func (c *ExecutionContext) Set(nodeID string, output map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outputs[nodeID] = output
}

// Get returns the recorded output for a node id (or the trigger key).
func (c *ExecutionContext) Get(nodeID string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	output, ok := c.outputs[nodeID]

	return output, ok
}

// Snapshot returns a shallow copy of the node-id -> output map, safe to
// iterate while branches keep writing.
func (c *ExecutionContext) Snapshot() map[string]map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]map[string]any, len(c.outputs))
	for id, output := range c.outputs {
		snapshot[id] = output
	}

	return snapshot
}
