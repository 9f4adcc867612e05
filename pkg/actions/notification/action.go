// Package notification provides the send_notification handler.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
	"github.com/relaycrm/relay/pkg/template"
)

// Factory builds send_notification handlers.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Kind() models.NodeKind {
	return models.NodeSendNotification
}

func (*Factory) Create(node *models.Node, collaborators protocol.Collaborators) (protocol.Handler, error) {
	config, ok := node.Config.(*models.NotificationConfig)
	if !ok {
		return nil, fmt.Errorf("node %s: expected notification config, got %T", node.ID, node.Config)
	}

	return &handler{config: config, notifier: collaborators.Notifier}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"channel": map[string]any{
				"type": "string",
				"enum": []string{models.ChannelEmail, models.ChannelWebhook, models.ChannelFeed},
			},
			"message": map[string]any{
				"type":     "string",
				"examples": []string{"New lead created: {{lead.title}}"},
			},
			"target": map[string]any{
				"type":        "string",
				"description": "Recipient address, webhook URL or feed name, depending on channel.",
			},
			"required": map[string]any{
				"type":        "boolean",
				"description": "When true, a delivery error fails the branch.",
			},
		},
		"required": []string{"channel", "message"},
	}
}

func (*Factory) Timeout() time.Duration {
	return 10 * time.Second
}

type handler struct {
	config   *models.NotificationConfig
	notifier protocol.Notifier
}

// Execute resolves the message template and dispatches to the configured
// channel. A delivery error is recorded on the node output; it only fails
// the branch when the node is marked required.
func (h *handler) Execute(ctx context.Context, executionCtx *models.ExecutionContext) (*protocol.Result, error) {
	message, unresolvedMessage := template.Resolve(h.config.Message, executionCtx)
	target, unresolvedTarget := template.Resolve(h.config.Target, executionCtx)

	warnings := make([]string, 0)
	for _, path := range append(unresolvedMessage, unresolvedTarget...) {
		warnings = append(warnings, fmt.Sprintf("unresolved placeholder %q", path))
	}

	ack, err := h.notifier.Send(ctx, h.config.Channel, target, message)
	if err != nil {
		if h.config.Required {
			return nil, fmt.Errorf("required notification: %w", err)
		}

		return &protocol.Result{
			Output: map[string]any{
				"delivered": false,
				"channel":   h.config.Channel,
				"error":     err.Error(),
			},
			Warnings: append(warnings, "delivery failed: "+err.Error()),
		}, nil
	}

	return &protocol.Result{
		Output: map[string]any{
			"delivered": true,
			"channel":   h.config.Channel,
			"ack":       ack,
		},
		Warnings: warnings,
	}, nil
}
