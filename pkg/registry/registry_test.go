package registry

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
)

func defaultRegistry() *Registry {
	r := NewRegistry(slog.Default())
	r.RegisterDefaults()

	return r
}

func TestRegistry_CoversEveryNodeKind(t *testing.T) {
	r := defaultRegistry()

	message, healthy := r.HealthCheck()
	assert.True(t, healthy, message)
	assert.Len(t, r.Kinds(), len(models.KnownNodeKinds))
}

func TestRegistry_UnknownKind(t *testing.T) {
	r := defaultRegistry()

	_, err := r.Factory(models.NodeKind("teleport"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistry_CreateHandler(t *testing.T) {
	r := defaultRegistry()

	node := &models.Node{
		ID:     "check",
		Kind:   models.NodeCondition,
		Config: &models.ConditionConfig{Field: "{{trigger.subject}}", Operator: models.OperatorContains, Value: "Demo"},
	}

	handler, err := r.CreateHandler(node, protocol.Collaborators{})
	require.NoError(t, err)
	assert.NotNil(t, handler)
}

func TestRegistry_ValidateNodeConfig(t *testing.T) {
	r := defaultRegistry()

	valid := &models.Node{
		ID:   "notify",
		Kind: models.NodeSendNotification,
		Config: &models.NotificationConfig{
			Channel: models.ChannelFeed,
			Message: "ping",
		},
	}
	require.NoError(t, r.ValidateNodeConfig(valid))

	// channel violates the schema enum
	invalid := &models.Node{
		ID:   "notify",
		Kind: models.NodeSendNotification,
		Config: &models.NotificationConfig{
			Channel: "carrier-pigeon",
			Message: "ping",
		},
	}
	err := r.ValidateNodeConfig(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}
