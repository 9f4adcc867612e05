package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/events"
	"github.com/relaycrm/relay/pkg/models"
)

type capturePublisher struct {
	published []events.Event
	err       error
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event events.Event) error {
	if p.err != nil {
		return p.err
	}

	p.published = append(p.published, event)

	return nil
}

func newDispatcher(relayURL string, bus *capturePublisher) *Dispatcher {
	return NewDispatcher(Config{MailRelayURL: relayURL}, bus, slog.New(slog.DiscardHandler))
}

func TestSendEmailPostsToMailRelay(t *testing.T) {
	var body map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	dispatcher := newDispatcher(server.URL, &capturePublisher{})

	ack, err := dispatcher.Send(context.Background(), models.ChannelEmail, "sales@example.com", "New lead")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ack, "mail-"))
	assert.Equal(t, "sales@example.com", body["to"])
	assert.Equal(t, "New lead", body["body"])
}

func TestSendEmailRelayErrorWrapsChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dispatcher := newDispatcher(server.URL, &capturePublisher{})

	_, err := dispatcher.Send(context.Background(), models.ChannelEmail, "sales@example.com", "hi")
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, models.ChannelEmail, deliveryErr.Channel)
}

func TestSendWebhookPostsToTarget(t *testing.T) {
	var body map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := newDispatcher("", &capturePublisher{})

	ack, err := dispatcher.Send(context.Background(), models.ChannelWebhook, server.URL, "ping")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ack, "hook-"))
	assert.Equal(t, "ping", body["text"])
}

func TestFeedChannelPublishesToBus(t *testing.T) {
	bus := &capturePublisher{}
	dispatcher := newDispatcher("", bus)

	ack, err := dispatcher.Send(context.Background(), models.ChannelFeed, "deals", "Lead won")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ack, "feed-"))
	require.Len(t, bus.published, 1)

	item, ok := bus.published[0].(events.FeedItemPosted)
	require.True(t, ok)
	assert.Equal(t, "deals", item.Target)
	assert.Equal(t, "Lead won", item.Message)
}

func TestFeedPublishErrorWrapsChannel(t *testing.T) {
	bus := &capturePublisher{err: errors.New("bus down")}
	dispatcher := newDispatcher("", bus)

	_, err := dispatcher.Send(context.Background(), models.ChannelFeed, "deals", "hi")
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, models.ChannelFeed, deliveryErr.Channel)
}

func TestUnknownChannelRejected(t *testing.T) {
	dispatcher := newDispatcher("", &capturePublisher{})

	_, err := dispatcher.Send(context.Background(), "pager", "oncall", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pager")
}
