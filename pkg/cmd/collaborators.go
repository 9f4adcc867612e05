package cmd

import (
	"log/slog"

	"github.com/relaycrm/relay/pkg/clients/ai"
	"github.com/relaycrm/relay/pkg/clients/crm"
	"github.com/relaycrm/relay/pkg/eventbus"
	"github.com/relaycrm/relay/pkg/notify"
	"github.com/relaycrm/relay/pkg/protocol"
)

// CollaboratorConfig is the external service wiring shared by every binary
// that dispatches nodes.
type CollaboratorConfig struct {
	AIServiceURL string
	AIAPIKey     string
	CRMAPIURL    string
	CRMToken     string
	MailRelayURL string
}

// NewCollaborators builds the collaborator bundle node handlers are
// dispatched with. The feed channel of the notifier publishes to the given
// bus.
func NewCollaborators(config CollaboratorConfig, bus eventbus.EventPublisher, logger *slog.Logger) protocol.Collaborators {
	return protocol.Collaborators{
		AI: ai.NewClient(ai.Config{
			BaseURL: config.AIServiceURL,
			APIKey:  config.AIAPIKey,
		}, logger),
		CRM: crm.NewClient(crm.Config{
			BaseURL: config.CRMAPIURL,
			Token:   config.CRMToken,
		}, logger),
		Notifier: notify.NewDispatcher(notify.Config{
			MailRelayURL: config.MailRelayURL,
		}, bus, logger),
	}
}
