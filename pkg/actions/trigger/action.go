// Package trigger provides the pass-through handler for trigger nodes.
package trigger

import (
	"context"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
)

// Factory builds trigger handlers.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Kind() models.NodeKind {
	return models.NodeTrigger
}

func (*Factory) Create(_ *models.Node, _ protocol.Collaborators) (protocol.Handler, error) {
	return &handler{}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
	}
}

func (*Factory) Timeout() time.Duration {
	return time.Second
}

// handler echoes the already-seeded trigger payload as the node's output,
// with no side effects.
type handler struct{}

func (h *handler) Execute(_ context.Context, executionCtx *models.ExecutionContext) (*protocol.Result, error) {
	payload, _ := executionCtx.Get(models.TriggerKey)

	return &protocol.Result{Output: payload}, nil
}
