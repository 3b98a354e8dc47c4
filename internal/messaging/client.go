// Package messaging sends templated notifications through the external
// messaging provider. The client performs a single attempt per call; the
// notification worker owns retries.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
	"github.com/jonesrussell/interview-orchestrator/internal/logger"
)

// Client sends messages over the provider's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	logger     logger.Logger
}

// NewClient creates a messaging client. timeout bounds every call.
func NewClient(baseURL, apiToken string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiToken:   apiToken,
		logger:     log,
	}
}

type sendRequest struct {
	Channel  string            `json:"channel"`
	To       string            `json:"to"`
	Template string            `json:"template"`
	Params   map[string]string `json:"params,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
}

// Send delivers one templated message and returns the provider message id.
func (c *Client) Send(ctx context.Context, channel domain.NotificationChannel, recipient, template string, params map[string]string) (string, error) {
	payload, err := json.Marshal(sendRequest{
		Channel:  string(channel),
		To:       recipient,
		Template: template,
		Params:   params,
	})
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("messaging provider request: %v: %w", err, domain.ErrProviderTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", classifyStatus(resp)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if result.MessageID == "" {
		return "", fmt.Errorf("send response missing message_id: %w", domain.ErrProviderPermanent)
	}

	c.logger.Debug("Message accepted by provider",
		logger.String("channel", string(channel)),
		logger.String("template", template),
		logger.String("message_id", result.MessageID),
	)
	return result.MessageID, nil
}

func classifyStatus(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("send message: status %d: %s: %w", resp.StatusCode, payload, domain.ErrProviderTransient)
	}
	return fmt.Errorf("send message: status %d: %s: %w", resp.StatusCode, payload, domain.ErrProviderPermanent)
}
