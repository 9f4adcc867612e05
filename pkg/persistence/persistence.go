// Package persistence provides the storage abstraction for workflow
// definitions, workflow templates and execution records.
package persistence

import (
	"context"
	"time"

	"github.com/relaycrm/relay/pkg/models"
)

// ListWorkflowsOptions filters and scopes workflow listing.
type ListWorkflowsOptions struct {
	TenantID   string
	Trigger    models.TriggerKind
	ActiveOnly bool
}

// Persistence bundles the repositories of a single storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	TemplateRepository() TemplateRepository
	ExecutionRepository() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions. Soft-deleted
// definitions are invisible to every read operation.
type WorkflowRepository interface {
	List(ctx context.Context, opts ListWorkflowsOptions) ([]*models.WorkflowDefinition, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)

	// Save persists the definition together with its full node and edge
	// set as a single atomic replacement.
	Save(ctx context.Context, definition *models.WorkflowDefinition) error

	// Delete soft-deletes the definition. The definition's execution
	// records are removed by the caller via ExecutionRepository.
	Delete(ctx context.Context, id string, deletedAt time.Time) error
}

// TemplateRepository stores the read-mostly workflow template catalog.
type TemplateRepository interface {
	List(ctx context.Context) ([]*models.WorkflowTemplate, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowTemplate, error)
	Save(ctx context.Context, template *models.WorkflowTemplate) error
}

// ExecutionRepository stores execution records.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.WorkflowExecution) error
	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error)

	// RecordStep appends one node output to a running execution. Appending
	// to a finalized execution returns ErrExecutionFinalized.
	RecordStep(ctx context.Context, executionID, nodeID string, output *models.NodeOutput) error

	// Finalize transitions a running execution to a terminal status and,
	// in the same operation, bumps the owning definition's execution
	// counter and last-executed timestamp. Finalizing an already terminal
	// execution returns ErrExecutionFinalized.
	Finalize(ctx context.Context, executionID string, status models.ExecutionStatus, execErr *models.ExecutionError, completedAt time.Time) error

	// ListStaleRunning returns executions still marked running that
	// started before the cutoff. Used by the stale-execution sweep.
	ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*models.WorkflowExecution, error)

	// DeleteByWorkflow removes all execution records of a workflow. Used
	// when a definition is deleted.
	DeleteByWorkflow(ctx context.Context, workflowID string) error
}
