// Package crm implements the CRUD record store collaborator over the host
// application's internal HTTP API.
package crm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/relaycrm/relay/pkg/protocol"
)

// StoreError wraps a non-2xx record store response.
type StoreError struct {
	StatusCode int
	Body       string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("record store returned %d: %s", e.StatusCode, e.Body)
}

// Config configures the record store client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the record store. It implements protocol.CRMStore.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetAuthToken(config.Token)

	return &Client{
		http:   httpClient,
		logger: logger.With("module", "crm_client"),
	}
}

// CreateLead creates a lead record in the given tenant.
func (c *Client) CreateLead(ctx context.Context, tenantID string, fields protocol.LeadFields) (*protocol.Lead, error) {
	var lead protocol.Lead

	err := c.post(ctx, tenantID, "/internal/leads", fields, &lead)
	if err != nil {
		return nil, err
	}

	return &lead, nil
}

// CreateActivity creates an activity record in the given tenant.
func (c *Client) CreateActivity(ctx context.Context, tenantID string, fields protocol.ActivityFields) (*protocol.Activity, error) {
	var activity protocol.Activity

	err := c.post(ctx, tenantID, "/internal/activities", fields, &activity)
	if err != nil {
		return nil, err
	}

	return &activity, nil
}

func (c *Client) post(ctx context.Context, tenantID, path string, body, result any) error {
	response, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Tenant-ID", tenantID).
		SetBody(body).
		SetResult(result).
		Post(path)
	if err != nil {
		return fmt.Errorf("record store call failed: %w", err)
	}

	if response.IsError() {
		c.logger.Warn("record store error", "path", path, "tenant_id", tenantID, "status", response.StatusCode())

		return &StoreError{StatusCode: response.StatusCode(), Body: string(response.Body())}
	}

	return nil
}
