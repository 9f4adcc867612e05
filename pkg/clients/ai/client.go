// Package ai implements the AI service collaborator over the provider's
// HTTP API.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/relaycrm/relay/pkg/protocol"
)

// ErrRateLimited indicates the provider rejected the call with a rate
// limit. The dispatcher records it as a recoverable node error.
var ErrRateLimited = errors.New("ai provider rate limited")

// ProviderError wraps a non-2xx provider response.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ai provider returned %d: %s", e.StatusCode, e.Body)
}

// Config configures the AI client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retries int
}

// Client talks to the AI provider. It implements protocol.AIService.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates an AI client. The API key travels as a bearer token;
// retries apply to transport errors and rate limits only.
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetRetryCount(config.Retries).
		SetAuthToken(config.APIKey).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests
		})

	return &Client{
		http:   httpClient,
		logger: logger.With("module", "ai_client"),
	}
}

type classifyRequest struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels,omitempty"`
}

type summarizeRequest struct {
	Text string `json:"text"`
}

type replyRequest struct {
	Text    string `json:"text"`
	Tone    string `json:"tone,omitempty"`
	Context string `json:"context,omitempty"`
}

// Classify asks the provider to classify the given text.
func (c *Client) Classify(ctx context.Context, text string, labels []string) (*protocol.Classification, error) {
	var result protocol.Classification

	err := c.post(ctx, "/v1/classify", classifyRequest{Text: text, Labels: labels}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Summarize asks the provider for a summary of the given text.
func (c *Client) Summarize(ctx context.Context, text string) (*protocol.Summary, error) {
	var result protocol.Summary

	err := c.post(ctx, "/v1/summarize", summarizeRequest{Text: text}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// GenerateReply asks the provider to draft a reply to the given text.
func (c *Client) GenerateReply(ctx context.Context, text, tone, replyContext string) (*protocol.Reply, error) {
	var result protocol.Reply

	err := c.post(ctx, "/v1/reply", replyRequest{Text: text, Tone: tone, Context: replyContext}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	response, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		Post(path)
	if err != nil {
		return fmt.Errorf("ai provider call failed: %w", err)
	}

	if response.StatusCode() == http.StatusTooManyRequests {
		return ErrRateLimited
	}

	if response.IsError() {
		c.logger.Warn("AI provider error", "path", path, "status", response.StatusCode())

		return &ProviderError{StatusCode: response.StatusCode(), Body: string(response.Body())}
	}

	return nil
}
