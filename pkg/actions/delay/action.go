// Package delay provides the delay-node handler. It never sleeps: the
// handler computes the wake time and yields a suspension marker the graph
// walker's scheduling policy consumes.
package delay

import (
	"context"
	"fmt"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
)

// Factory builds delay handlers.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Kind() models.NodeKind {
	return models.NodeDelay
}

func (*Factory) Create(node *models.Node, _ protocol.Collaborators) (protocol.Handler, error) {
	config, ok := node.Config.(*models.DelayConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: expected delay config, got %T", node.ID, node.Config)
	}

	return &handler{config: config}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"days": map[string]any{
				"type":        "integer",
				"minimum":     0,
				"description": "Whole days to wait, matching the template-store convention.",
			},
			"duration": map[string]any{
				"type":        "string",
				"description": "Go duration string for sub-day waits.",
				"examples":    []string{"90s", "2h"},
			},
		},
	}
}

func (*Factory) Timeout() time.Duration {
	return time.Second
}

type handler struct {
	config *models.DelayConfig
}

func (h *handler) Execute(_ context.Context, _ *models.ExecutionContext) (*protocol.Result, error) {
	wait := h.config.Wait()
	wakeAt := time.Now().UTC().Add(wait)

	return &protocol.Result{
		Output: map[string]any{
			"waitSeconds": wait.Seconds(),
			"wakeAt":      wakeAt.Format(time.RFC3339),
		},
		Suspend: &wait,
	}, nil
}
