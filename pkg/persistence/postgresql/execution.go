package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
)

// ExecutionRepository handles execution record database operations.
type ExecutionRepository struct {
	db *sql.DB
}

const executionColumns = `id, workflow_id, tenant_id, status, started_at, completed_at, node_outputs, error`

// Create persists a new execution record.
func (er *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	outputs, err := json.Marshal(outputsOrEmpty(execution.NodeOutputs))
	if err != nil {
		return persistence.NewExecutionRecordError("Create", execution.ID, err)
	}

	execErr, err := marshalExecutionError(execution.Error)
	if err != nil {
		return persistence.NewExecutionRecordError("Create", execution.ID, err)
	}

	_, err = er.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (`+executionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		execution.ID, execution.WorkflowID, execution.TenantID, string(execution.Status),
		execution.StartedAt, execution.CompletedAt, outputs, execErr)
	if err != nil {
		return persistence.NewExecutionRecordError("Create", execution.ID, err)
	}

	return nil
}

// GetByID returns the execution record with the given identifier.
func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := er.db.QueryRowContext(ctx,
		"SELECT "+executionColumns+" FROM workflow_executions WHERE id = $1", id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionRecordError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionRecordError("GetByID", id, err)
	}

	return execution, nil
}

// ListByWorkflow returns all executions of a workflow, newest first.
func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	rows, err := er.db.QueryContext(ctx,
		"SELECT "+executionColumns+" FROM workflow_executions WHERE workflow_id = $1 ORDER BY started_at DESC",
		workflowID)
	if err != nil {
		return nil, persistence.NewExecutionRecordError("ListByWorkflow", workflowID, err)
	}
	defer func() { _ = rows.Close() }()

	return collectExecutions(rows)
}

// RecordStep appends one node output to a running execution. The JSONB
// merge keeps concurrent branch writers from clobbering each other.
func (er *ExecutionRepository) RecordStep(ctx context.Context, executionID, nodeID string, output *models.NodeOutput) error {
	encoded, err := json.Marshal(output)
	if err != nil {
		return persistence.NewExecutionRecordError("RecordStep", executionID, err)
	}

	result, err := er.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET node_outputs = jsonb_set(node_outputs, ARRAY[$2::text], $3::jsonb)
		WHERE id = $1 AND status = $4`,
		executionID, nodeID, encoded, string(models.ExecutionStatusRunning))
	if err != nil {
		return persistence.NewExecutionRecordError("RecordStep", executionID, err)
	}

	return er.checkRunningWrite(ctx, "RecordStep", executionID, result)
}

// Finalize transitions the execution to a terminal status and bumps the
// owning definition's run statistics in the same transaction.
func (er *ExecutionRepository) Finalize(ctx context.Context, executionID string, status models.ExecutionStatus, execErr *models.ExecutionError, completedAt time.Time) error {
	encodedErr, err := marshalExecutionError(execErr)
	if err != nil {
		return persistence.NewExecutionRecordError("Finalize", executionID, err)
	}

	tx, err := er.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewExecutionRecordError("Finalize", executionID, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = $2, completed_at = $3, error = $4
		WHERE id = $1 AND status = $5`,
		executionID, string(status), completedAt, encodedErr, string(models.ExecutionStatusRunning))
	if err != nil {
		return persistence.NewExecutionRecordError("Finalize", executionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionRecordError("Finalize", executionID, err)
	}

	if affected == 0 {
		return er.missingOrFinalized(ctx, "Finalize", executionID)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workflows
		SET execution_count = execution_count + 1, last_executed_at = $2
		WHERE id = (SELECT workflow_id FROM workflow_executions WHERE id = $1)`,
		executionID, completedAt)
	if err != nil {
		return persistence.NewExecutionRecordError("Finalize", executionID, err)
	}

	if err := tx.Commit(); err != nil {
		return persistence.NewExecutionRecordError("Finalize", executionID, err)
	}

	return nil
}

// ListStaleRunning returns executions still marked running that started before the cutoff.
func (er *ExecutionRepository) ListStaleRunning(ctx context.Context, cutoff time.Time) ([]*models.WorkflowExecution, error) {
	rows, err := er.db.QueryContext(ctx,
		"SELECT "+executionColumns+" FROM workflow_executions WHERE status = $1 AND started_at < $2",
		string(models.ExecutionStatusRunning), cutoff)
	if err != nil {
		return nil, persistence.NewExecutionRecordError("ListStaleRunning", "", err)
	}
	defer func() { _ = rows.Close() }()

	return collectExecutions(rows)
}

// DeleteByWorkflow removes all execution records of a workflow.
func (er *ExecutionRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	_, err := er.db.ExecContext(ctx,
		"DELETE FROM workflow_executions WHERE workflow_id = $1", workflowID)
	if err != nil {
		return persistence.NewExecutionRecordError("DeleteByWorkflow", workflowID, err)
	}

	return nil
}

// checkRunningWrite distinguishes a missing execution from a finalized one
// after a conditional update matched no rows.
func (er *ExecutionRepository) checkRunningWrite(ctx context.Context, op, executionID string, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionRecordError(op, executionID, err)
	}

	if affected == 0 {
		return er.missingOrFinalized(ctx, op, executionID)
	}

	return nil
}

func (er *ExecutionRepository) missingOrFinalized(ctx context.Context, op, executionID string) error {
	var exists bool

	err := er.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM workflow_executions WHERE id = $1)", executionID).Scan(&exists)
	if err != nil {
		return persistence.NewExecutionRecordError(op, executionID, err)
	}

	if !exists {
		return persistence.NewExecutionRecordError(op, executionID, persistence.ErrExecutionNotFound)
	}

	return persistence.NewExecutionRecordError(op, executionID, persistence.ErrExecutionFinalized)
}

func collectExecutions(rows *sql.Rows) ([]*models.WorkflowExecution, error) {
	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

func scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		execution models.WorkflowExecution
		status    string
		outputs   []byte
		execErr   []byte
	)

	err := row.Scan(&execution.ID, &execution.WorkflowID, &execution.TenantID, &status,
		&execution.StartedAt, &execution.CompletedAt, &outputs, &execErr)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatus(status)

	if err := json.Unmarshal(outputs, &execution.NodeOutputs); err != nil {
		return nil, fmt.Errorf("failed to decode node outputs of execution %s: %w", execution.ID, err)
	}

	if len(execErr) > 0 {
		execution.Error = &models.ExecutionError{}
		if err := json.Unmarshal(execErr, execution.Error); err != nil {
			return nil, fmt.Errorf("failed to decode error of execution %s: %w", execution.ID, err)
		}
	}

	return &execution, nil
}

func outputsOrEmpty(outputs map[string]*models.NodeOutput) map[string]*models.NodeOutput {
	if outputs == nil {
		return map[string]*models.NodeOutput{}
	}

	return outputs
}

func marshalExecutionError(execErr *models.ExecutionError) (any, error) {
	if execErr == nil {
		return nil, nil
	}

	return json.Marshal(execErr)
}
