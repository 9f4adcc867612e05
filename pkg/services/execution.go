package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// Execution is the run-facing service: manual runs, execution history and
// operator cancellation.
type Execution struct {
	persistence persistence.Persistence
	engine      *engine.Engine
}

// NewExecution creates a new execution service.
func NewExecution(p persistence.Persistence, eng *engine.Engine) *Execution {
	return &Execution{
		persistence: p,
		engine:      eng,
	}
}

// Execute runs a definition against a caller-supplied sample payload.
// Inactive definitions may be executed this way; it is how a draft is
// test-run before activation.
func (e *Execution) Execute(ctx context.Context, workflowID string, samplePayload map[string]any) (*models.WorkflowExecution, error) {
	definition, err := e.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	execution, err := e.engine.Run(ctx, definition, samplePayload)
	if err != nil {
		return nil, fmt.Errorf("failed to run workflow %s: %w", workflowID, err)
	}

	return execution, nil
}

// Get returns one execution record.
func (e *Execution) Get(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return e.persistence.ExecutionRepository().GetByID(ctx, executionID)
}

// List returns a workflow's execution history, newest first. The workflow
// must exist; listing a deleted workflow's history is a not-found.
func (e *Execution) List(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	if _, err := e.persistence.WorkflowRepository().GetByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return e.persistence.ExecutionRepository().ListByWorkflow(ctx, workflowID)
}

// Cancel flags a running execution so the walker stops scheduling nodes.
func (e *Execution) Cancel(ctx context.Context, executionID string) error {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Terminal() {
		return fmt.Errorf("%w: execution %s is %s", ErrExecutionNotRunning, executionID, execution.Status)
	}

	if err := e.engine.Cancel(executionID); err != nil {
		if errors.Is(err, engine.ErrExecutionUnknown) {
			// Still marked running but not in flight here: an orphan the
			// stale sweep will reconcile.
			return fmt.Errorf("%w: execution %s is not in flight in this process", ErrExecutionNotRunning, executionID)
		}

		return err
	}

	return nil
}
