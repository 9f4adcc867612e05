// Package protocol defines the contracts between the graph walker and the
// node handlers, and the interfaces of the external collaborators the
// handlers depend on. Handlers receive their collaborators explicitly; no
// handler reads ambient process state.
package protocol

import (
	"context"
	"time"

	"github.com/relaycrm/relay/pkg/models"
)

// Result is what a handler returns to the graph walker. Handlers never
// mutate the execution context themselves; the walker folds Output in under
// the node's id once the dispatch has returned.
type Result struct {
	// Output becomes the node's entry in the execution context.
	Output map[string]any

	// Branch is set only by condition handlers and selects the outgoing
	// edge carrying the matching branch tag.
	Branch *bool

	// Suspend is set only by delay handlers: the branch is parked and
	// resumed after the wait, without blocking the dispatching goroutine.
	Suspend *time.Duration

	// Warnings collects recoverable problems (unresolved placeholders,
	// condition evaluation errors, optional delivery failures). They are
	// recorded on the node's output, never dropped.
	Warnings []string
}

// Handler executes one node against the execution context. The ctx carries
// the node's wall-clock budget; a handler that outlives it reports a
// node-level timeout error.
type Handler interface {
	Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*Result, error)
}

// HandlerFactory builds handlers for one node kind.
type HandlerFactory interface {
	// Kind returns the node kind this factory serves.
	Kind() models.NodeKind

	// Create builds a handler bound to the given node and collaborators.
	Create(node *models.Node, collaborators Collaborators) (Handler, error)

	// Schema returns the JSON schema validated against the node's config
	// when a definition is saved.
	Schema() map[string]any

	// Timeout is the default wall-clock budget for one dispatch of this
	// kind. AI calls get materially more budget than record creation.
	Timeout() time.Duration
}
