// Package notify delivers workflow notifications to their channel: email
// through the mail relay, webhook by direct POST, feed through the event
// bus the CRM UI listens on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/relaycrm/relay/pkg/eventbus"
	"github.com/relaycrm/relay/pkg/events"
	"github.com/relaycrm/relay/pkg/models"
)

// DeliveryError wraps a failed delivery attempt. Whether it fails the
// branch is decided by the node's required flag, not here.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s channel failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Config configures the outbound channels.
type Config struct {
	MailRelayURL string
	Timeout      time.Duration
}

// Dispatcher implements protocol.Notifier by routing each message to its
// channel backend.
type Dispatcher struct {
	http     *resty.Client
	relayURL string
	bus      eventbus.EventPublisher
	logger   *slog.Logger
}

func NewDispatcher(config Config, bus eventbus.EventPublisher, logger *slog.Logger) *Dispatcher {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Dispatcher{
		http:     resty.New().SetTimeout(config.Timeout),
		relayURL: config.MailRelayURL,
		bus:      bus,
		logger:   logger.With("module", "notifier"),
	}
}

// Send delivers message to the named channel and returns a delivery ack id.
func (d *Dispatcher) Send(ctx context.Context, channel, target, message string) (string, error) {
	switch channel {
	case models.ChannelEmail:
		return d.sendEmail(ctx, target, message)
	case models.ChannelWebhook:
		return d.sendWebhook(ctx, target, message)
	case models.ChannelFeed:
		return d.postFeedItem(ctx, target, message)
	default:
		return "", &DeliveryError{Channel: channel, Err: fmt.Errorf("unknown channel %q", channel)}
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, target, message string) (string, error) {
	response, err := d.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"to": target, "body": message}).
		Post(d.relayURL + "/v1/messages")
	if err != nil {
		return "", &DeliveryError{Channel: models.ChannelEmail, Err: err}
	}

	if response.IsError() {
		return "", &DeliveryError{
			Channel: models.ChannelEmail,
			Err:     fmt.Errorf("mail relay returned %d", response.StatusCode()),
		}
	}

	ack := "mail-" + uuid.New().String()
	d.logger.Debug("Delivered email notification", "target", target, "ack", ack)

	return ack, nil
}

func (d *Dispatcher) sendWebhook(ctx context.Context, target, message string) (string, error) {
	response, err := d.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": message}).
		Post(target)
	if err != nil {
		return "", &DeliveryError{Channel: models.ChannelWebhook, Err: err}
	}

	if response.IsError() {
		return "", &DeliveryError{
			Channel: models.ChannelWebhook,
			Err:     fmt.Errorf("webhook returned %d", response.StatusCode()),
		}
	}

	ack := "hook-" + uuid.New().String()
	d.logger.Debug("Delivered webhook notification", "target", target, "ack", ack)

	return ack, nil
}

func (d *Dispatcher) postFeedItem(ctx context.Context, target, message string) (string, error) {
	id := "feed-" + uuid.New().String()

	event := events.FeedItemPosted{
		BaseEvent: events.BaseEvent{
			ID:        id,
			Type:      events.FeedItemPostedEvent,
			Timestamp: time.Now().UTC(),
		},
		Target:  target,
		Message: message,
	}

	if err := d.bus.Publish(ctx, id, event); err != nil {
		return "", &DeliveryError{Channel: models.ChannelFeed, Err: err}
	}

	return id, nil
}
