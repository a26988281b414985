// Package mux is a minimal client for the Mux Video REST API: direct upload
// creation, upload retrieval and asset retrieval, plus webhook signature
// verification. Only the fields this service reads are modeled.
package mux

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Upload statuses reported by Mux for a direct upload session.
const (
	UploadStatusWaiting      = "waiting"
	UploadStatusAssetCreated = "asset_created"
	UploadStatusErrored      = "errored"
	UploadStatusCancelled    = "cancelled"
	UploadStatusTimedOut     = "timed_out"
)

// AssetStatusReady is the asset status once transcoding finished.
const AssetStatusReady = "ready"

// Upload is a Mux direct upload session.
type Upload struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	URL     string `json:"url"`
	AssetID string `json:"asset_id"`
}

// TerminalFailure reports whether the upload ended without producing an asset.
func (u *Upload) TerminalFailure() bool {
	switch u.Status {
	case UploadStatusErrored, UploadStatusCancelled, UploadStatusTimedOut:
		return true
	}
	return false
}

// PlaybackID addresses playback of a finished asset.
type PlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

// Asset is a transcoded Mux video asset.
type Asset struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Passthrough string       `json:"passthrough"`
	PlaybackIDs []PlaybackID `json:"playback_ids"`
}

// FirstPlaybackID returns the first playback id, or "" when none exist yet.
func (a *Asset) FirstPlaybackID() string {
	if len(a.PlaybackIDs) == 0 {
		return ""
	}
	return a.PlaybackIDs[0].ID
}

// CreateUploadParams configures a new direct upload session.
type CreateUploadParams struct {
	CORSOrigin  string
	Passthrough string
}

// APIError is a non-2xx response from the Mux API.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("mux api: %d: %s", e.StatusCode, e.Messages[0])
	}
	return fmt.Sprintf("mux api: %d", e.StatusCode)
}

// Client calls the Mux Video API with basic auth credentials.
type Client struct {
	baseURL     string
	tokenID     string
	tokenSecret string
	httpClient  *http.Client
}

// NewClient creates a Mux API client. baseURL defaults to the public API when empty.
func NewClient(baseURL, tokenID, tokenSecret string) *Client {
	if baseURL == "" {
		baseURL = "https://api.mux.com"
	}
	return &Client{
		baseURL:     baseURL,
		tokenID:     tokenID,
		tokenSecret: tokenSecret,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool {
	return c.tokenID != "" && c.tokenSecret != ""
}

// CreateUpload creates a direct upload session. The passthrough string is
// echoed back on asset webhooks for correlation.
func (c *Client) CreateUpload(ctx context.Context, params CreateUploadParams) (*Upload, error) {
	corsOrigin := params.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	body := map[string]interface{}{
		"cors_origin": corsOrigin,
		"new_asset_settings": map[string]interface{}{
			"playback_policies": []string{"public"},
			"passthrough":       params.Passthrough,
		},
	}
	var out Upload
	if err := c.do(ctx, http.MethodPost, "/video/v1/uploads", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUpload retrieves a direct upload session by id.
func (c *Client) GetUpload(ctx context.Context, id string) (*Upload, error) {
	var out Upload
	if err := c.do(ctx, http.MethodGet, "/video/v1/uploads/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAsset retrieves an asset by id.
func (c *Client) GetAsset(ctx context.Context, id string) (*Asset, error) {
	var out Asset
	if err := c.do(ctx, http.MethodGet, "/video/v1/assets/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.tokenID, c.tokenSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mux request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Messages []string `json:"messages"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil {
			apiErr.Messages = envelope.Error.Messages
		}
		return apiErr
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
