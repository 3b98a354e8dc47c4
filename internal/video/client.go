// Package video talks to the external video conferencing provider: room
// lifecycle via its REST API and room-scoped access tokens signed locally.
// The client never retries; callers own retry policy.
package video

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

// Client manages provider rooms over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serverURL  string
	issuer     *TokenIssuer
	logger     logger.Logger
}

// NewClient creates a provider client. timeout bounds every call.
func NewClient(baseURL, serverURL string, issuer *TokenIssuer, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		serverURL:  serverURL,
		issuer:     issuer,
		logger:     log,
	}
}

type roomResponse struct {
	Name string `json:"name"`
	SID  string `json:"sid"`
}

type createRoomRequest struct {
	Name            string `json:"name"`
	EmptyTimeout    int    `json:"empty_timeout_seconds,omitempty"`
	MaxParticipants int    `json:"max_participants,omitempty"`
	Metadata        string `json:"metadata,omitempty"`
}

const (
	roomEmptyTimeoutSeconds = 600
	roomMaxParticipants     = 4
)

// CreateRoom provisions a room with the given name. metadata is an opaque
// display bag the provider stores on the room. The call is idempotent: when
// the provider reports the room already exists, the existing room is fetched
// and returned.
func (c *Client) CreateRoom(ctx context.Context, roomName string, metadata map[string]string) (*domain.RoomHandle, error) {
	body := createRoomRequest{
		Name:            roomName,
		EmptyTimeout:    roomEmptyTimeoutSeconds,
		MaxParticipants: roomMaxParticipants,
	}
	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal room metadata: %w", err)
		}
		body.Metadata = string(encoded)
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/rooms", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return c.decodeRoom(resp.Body)
	case resp.StatusCode == http.StatusConflict:
		// Room already exists; someone provisioned it first.
		c.logger.Debug("Room already exists, fetching", logger.String("room", roomName))
		return c.GetRoom(ctx, roomName)
	default:
		return nil, classifyStatus("create room", resp)
	}
}

// GetRoom fetches an existing room by name.
func (c *Client) GetRoom(ctx context.Context, roomName string) (*domain.RoomHandle, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/rooms/"+roomName, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return c.decodeRoom(resp.Body)
	case http.StatusNotFound:
		return nil, fmt.Errorf("room %s: %w", roomName, domain.ErrNotFound)
	default:
		return nil, classifyStatus("get room", resp)
	}
}

// DeleteRoom removes a room. A provider 404 counts as success: the room is
// gone either way.
func (c *Client) DeleteRoom(ctx context.Context, roomName string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/rooms/"+roomName, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return classifyStatus("delete room", resp)
	}
}

// IssueToken mints a participant credential for a room. No provider call.
func (c *Client) IssueToken(roomName, identity, displayName string) (*domain.Credential, error) {
	return c.issuer.IssueParticipantToken(roomName, identity, displayName)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	adminToken, err := c.issuer.issueAdminToken()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures are retryable.
		return nil, fmt.Errorf("video provider request: %v: %w", err, domain.ErrProviderTransient)
	}
	return resp, nil
}

func (c *Client) decodeRoom(body io.Reader) (*domain.RoomHandle, error) {
	var room roomResponse
	if err := json.NewDecoder(body).Decode(&room); err != nil {
		return nil, fmt.Errorf("decode room response: %w", err)
	}
	return &domain.RoomHandle{
		Name:      room.Name,
		SID:       room.SID,
		ServerURL: c.serverURL,
	}, nil
}

// classifyStatus maps a non-success provider response onto the error
// taxonomy: 5xx and 429 are transient, other 4xx are permanent.
func classifyStatus(op string, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%s: status %d: %s: %w", op, resp.StatusCode, payload, domain.ErrProviderTransient)
	}
	return fmt.Errorf("%s: status %d: %s: %w", op, resp.StatusCode, payload, domain.ErrProviderPermanent)
}
