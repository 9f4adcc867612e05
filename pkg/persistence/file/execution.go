package file

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// ExecutionRepository handles execution record file operations.
type ExecutionRepository struct {
	store *Persistence
}

// Create persists a new execution record.
func (er *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	if err := er.store.writeDocument(executionsDir, execution.ID, execution); err != nil {
		return persistence.NewExecutionRecordError("Create", execution.ID, err)
	}

	return nil
}

// GetByID returns the execution record with the given identifier.
func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	er.store.mu.RLock()
	defer er.store.mu.RUnlock()

	return er.load(id)
}

// ListByWorkflow returns all executions of a workflow, newest first.
func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	er.store.mu.RLock()
	defer er.store.mu.RUnlock()

	executions, err := er.loadAll()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.WorkflowExecution, 0)

	for _, execution := range executions {
		if execution.WorkflowID == workflowID {
			matched = append(matched, execution)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	return matched, nil
}

// RecordStep appends one node output to a running execution.
func (er *ExecutionRepository) RecordStep(ctx context.Context, executionID, nodeID string, output *models.NodeOutput) error {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	execution, err := er.load(executionID)
	if err != nil {
		return err
	}

	if execution.Terminal() {
		return persistence.NewExecutionRecordError("RecordStep", executionID, persistence.ErrExecutionFinalized)
	}

	if execution.NodeOutputs == nil {
		execution.NodeOutputs = make(map[string]*models.NodeOutput)
	}

	execution.NodeOutputs[nodeID] = output

	if err := er.store.writeDocument(executionsDir, executionID, execution); err != nil {
		return persistence.NewExecutionRecordError("RecordStep", executionID, err)
	}

	return nil
}

// Finalize transitions the execution to a terminal status and bumps the
// owning definition's run statistics.
func (er *ExecutionRepository) Finalize(ctx context.Context, executionID string, status models.ExecutionStatus, execErr *models.ExecutionError, completedAt time.Time) error {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	execution, err := er.load(executionID)
	if err != nil {
		return err
	}

	if execution.Terminal() {
		return persistence.NewExecutionRecordError("Finalize", executionID, persistence.ErrExecutionFinalized)
	}

	execution.Status = status
	execution.CompletedAt = &completedAt
	execution.Error = execErr

	if err := er.store.writeDocument(executionsDir, executionID, execution); err != nil {
		return persistence.NewExecutionRecordError("Finalize", executionID, err)
	}

	// Definition may have been deleted while the execution ran; losing the
	// counter bump in that case is acceptable.
	definition, err := er.store.workflowRepo.load(execution.WorkflowID)
	if err != nil {
		if errors.Is(err, persistence.ErrWorkflowNotFound) {
			return nil
		}

		return persistence.NewExecutionRecordError("Finalize", executionID, err)
	}

	definition.ExecutionCount++
	definition.LastExecutedAt = &completedAt

	if err := er.store.writeDocument(workflowsDir, definition.ID, definition); err != nil {
		return persistence.NewExecutionRecordError("Finalize", executionID, err)
	}

	return nil
}

// ListStaleRunning returns executions still marked running that started before the cutoff.
func (er *ExecutionRepository) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*models.WorkflowExecution, error) {
	er.store.mu.RLock()
	defer er.store.mu.RUnlock()

	executions, err := er.loadAll()
	if err != nil {
		return nil, err
	}

	stale := make([]*models.WorkflowExecution, 0)

	for _, execution := range executions {
		if execution.Status == models.ExecutionStatusRunning && execution.StartedAt.Before(cutoff) {
			stale = append(stale, execution)
		}
	}

	return stale, nil
}

// DeleteByWorkflow removes all execution records of a workflow.
func (er *ExecutionRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	er.store.mu.Lock()
	defer er.store.mu.Unlock()

	executions, err := er.loadAll()
	if err != nil {
		return err
	}

	for _, execution := range executions {
		if execution.WorkflowID != workflowID {
			continue
		}

		if err := er.store.removeDocument(executionsDir, execution.ID); err != nil {
			return persistence.NewExecutionRecordError("DeleteByWorkflow", execution.ID, err)
		}
	}

	return nil
}

func (er *ExecutionRepository) load(id string) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	err := er.store.readDocument(executionsDir, id, &execution)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewExecutionRecordError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionRecordError("GetByID", id, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) loadAll() ([]*models.WorkflowExecution, error) {
	ids, err := er.store.listIDs(executionsDir)
	if err != nil {
		return nil, err
	}

	executions := make([]*models.WorkflowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := er.load(id)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, nil
}
