package registry

import (
	"github.com/relaycrm/relay/pkg/actions/ai"
	"github.com/relaycrm/relay/pkg/actions/conditional"
	"github.com/relaycrm/relay/pkg/actions/delay"
	"github.com/relaycrm/relay/pkg/actions/notification"
	"github.com/relaycrm/relay/pkg/actions/record"
	"github.com/relaycrm/relay/pkg/actions/trigger"
)

// RegisterDefaults registers the built-in handler factory for every node
// kind the engine dispatches.
func (r *Registry) RegisterDefaults() {
	r.Register(trigger.NewFactory())
	r.Register(ai.NewClassifyFactory())
	r.Register(ai.NewSummarizeFactory())
	r.Register(ai.NewReplyFactory())
	r.Register(record.NewCreateLeadFactory())
	r.Register(record.NewCreateActivityFactory())
	r.Register(notification.NewFactory())
	r.Register(conditional.NewFactory())
	r.Register(delay.NewFactory())
}
