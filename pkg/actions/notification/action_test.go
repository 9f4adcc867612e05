package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/protocol"
)

type stubNotifier struct {
	ack string
	err error

	lastChannel string
	lastTarget  string
	lastMessage string
}

func (s *stubNotifier) Send(_ context.Context, channel, target, message string) (string, error) {
	s.lastChannel = channel
	s.lastTarget = target
	s.lastMessage = message

	return s.ack, s.err
}

func execContext() *models.ExecutionContext {
	execCtx := models.NewExecutionContext("exec-1", "wf-1", "acme", map[string]any{
		"subject": "Demo request",
	})
	execCtx.Set("lead", map[string]any{"title": "Demo request", "leadId": "lead-1"})

	return execCtx
}

func newHandler(t *testing.T, config *models.NotificationConfig, notifier protocol.Notifier) protocol.Handler {
	t.Helper()

	node := &models.Node{ID: "notify", Kind: models.NodeSendNotification, Config: config}

	handler, err := NewFactory().Create(node, protocol.Collaborators{Notifier: notifier})
	require.NoError(t, err)

	return handler
}

func TestSendResolvesMessageAndTarget(t *testing.T) {
	notifier := &stubNotifier{ack: "msg-9"}

	handler := newHandler(t, &models.NotificationConfig{
		Channel: models.ChannelEmail,
		Message: "New lead: {{lead.title}}",
		Target:  "sales@example.com",
	}, notifier)

	result, err := handler.Execute(context.Background(), execContext())
	require.NoError(t, err)

	assert.Equal(t, models.ChannelEmail, notifier.lastChannel)
	assert.Equal(t, "sales@example.com", notifier.lastTarget)
	assert.Equal(t, "New lead: Demo request", notifier.lastMessage)
	assert.Equal(t, true, result.Output["delivered"])
	assert.Equal(t, "msg-9", result.Output["ack"])
}

func TestOptionalDeliveryFailureDoesNotFailBranch(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("relay unreachable")}

	handler := newHandler(t, &models.NotificationConfig{
		Channel: models.ChannelWebhook,
		Message: "ping",
		Target:  "https://example.com/hook",
	}, notifier)

	result, err := handler.Execute(context.Background(), execContext())
	require.NoError(t, err)

	assert.Equal(t, false, result.Output["delivered"])
	assert.Contains(t, result.Output["error"], "relay unreachable")
	require.NotEmpty(t, result.Warnings)
}

func TestRequiredDeliveryFailureFailsBranch(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("relay unreachable")}

	handler := newHandler(t, &models.NotificationConfig{
		Channel:  models.ChannelEmail,
		Message:  "must arrive",
		Target:   "ops@example.com",
		Required: true,
	}, notifier)

	_, err := handler.Execute(context.Background(), execContext())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay unreachable")
}
