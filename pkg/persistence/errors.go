// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow definition was not found by
	// the given identifier, or that it has been soft-deleted.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrTemplateNotFound indicates a workflow template was not found in
	// the catalog.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionFinalized indicates a write against an execution record
	// that already reached a terminal status.
	ErrExecutionFinalized = errors.New("execution already finalized")
)

// WorkflowError wraps workflow-related errors with operation context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// ExecutionRecordError wraps execution-record errors with operation context.
type ExecutionRecordError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *ExecutionRecordError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionRecordError) Unwrap() error {
	return e.Err
}

// NewExecutionRecordError creates a new execution record error with context.
func NewExecutionRecordError(op, executionID string, err error) *ExecutionRecordError {
	return &ExecutionRecordError{Op: op, ExecutionID: executionID, Err: err}
}

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrExecutionNotFound)
}
