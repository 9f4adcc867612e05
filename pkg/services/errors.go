// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"

	"github.com/relaycrm/relay/pkg/persistence"
)

// Business logic errors that map to client-facing 4xx responses.
var (
	// ErrInvalidRequest indicates a request failing field validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrWorkflowNotFound is returned when a workflow definition is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

	// ErrTemplateNotFound is returned when a catalog template is not found.
	ErrTemplateNotFound = persistence.ErrTemplateNotFound

	// ErrExecutionNotFound is returned when an execution record is not found.
	ErrExecutionNotFound = persistence.ErrExecutionNotFound

	// ErrExecutionNotRunning indicates a cancel against an execution that
	// already reached a terminal status or is not running in this process.
	ErrExecutionNotRunning = errors.New("execution is not running")
)

// IsClientError reports whether err should surface as a 4xx rather than a
// 5xx. DefinitionInvalid errors are included: a bad graph is the caller's
// problem.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrExecutionNotRunning) ||
		persistence.IsNotFound(err)
}
