package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/layer-3/tonbridge/core"
)

// Config configures the HTTP connector
type Config struct {
	// URL is the base URL of the TON Connect sidecar
	URL string

	// ManifestURL is forwarded so the sidecar can identify the app to wallets
	ManifestURL string

	// HTTPClient is the HTTP client to use
	HTTPClient *http.Client
}

// HTTPConnector talks to a TON Connect sidecar that runs the wallet SDK
type HTTPConnector struct {
	url         string
	manifestURL string
	httpClient  *http.Client
}

type connectRequest struct {
	ReturnURL    string   `json:"return_url"`
	State        string   `json:"state"`
	Items        []string `json:"items"`
	ProofPayload string   `json:"proof_payload,omitempty"`
	ManifestURL  string   `json:"manifest_url,omitempty"`
}

type connectResponse struct {
	ConnectURL string `json:"connect_url"`
}

// NewHTTPConnector creates a new connector client
func NewHTTPConnector(config Config) *HTTPConnector {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPConnector{
		url:         strings.TrimRight(config.URL, "/"),
		manifestURL: config.ManifestURL,
		httpClient:  httpClient,
	}
}

// Init checks that the sidecar is reachable and ready
func (c *HTTPConnector) Init(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach connector: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connector not ready: status %d", resp.StatusCode)
	}

	return nil
}

// BeginConnection asks the sidecar for a connect URL
func (c *HTTPConnector) BeginConnection(ctx context.Context, connect core.ConnectRequest) (string, error) {
	body, err := json.Marshal(connectRequest{
		ReturnURL:    connect.ReturnURL,
		State:        connect.State,
		Items:        connect.Items,
		ProofPayload: connect.ProofPayload,
		ManifestURL:  c.manifestURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal connect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/connect", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create connect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", core.ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: connect failed (%d): %s", core.ErrUpstream, resp.StatusCode, string(respBody))
	}

	var connectResp connectResponse
	if err := json.Unmarshal(respBody, &connectResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode connect response: %v", core.ErrUpstream, err)
	}
	if connectResp.ConnectURL == "" {
		return "", fmt.Errorf("%w: empty connect url", core.ErrUpstream)
	}

	return connectResp.ConnectURL, nil
}

// RestoreConnection fetches the most recently completed connection.
// A nil result with a nil error means no wallet has connected.
func (c *HTTPConnector) RestoreConnection(ctx context.Context) (*core.WalletInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/connection", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", core.ErrUpstream, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: restore failed (%d): %s", core.ErrUpstream, resp.StatusCode, string(respBody))
	}

	var wallet *core.WalletInfo
	if err := json.Unmarshal(respBody, &wallet); err != nil {
		return nil, fmt.Errorf("%w: failed to decode connection: %v", core.ErrUpstream, err)
	}

	return wallet, nil
}
