package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/layer-3/tonbridge/core"
	"github.com/layer-3/tonbridge/ports"
)

// maxErrorBody caps how much of a failed response is kept for logs
const maxErrorBody = 4096

// HTTPBackend forwards authenticated identities to the application backend
type HTTPBackend struct {
	url        string
	httpClient *http.Client
}

// NewHTTPBackend creates a new backend client
func NewHTTPBackend(baseURL string, httpClient *http.Client) ports.Backend {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &HTTPBackend{
		url:        strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// AuthCallback reports a completed handshake and returns the backend's JSON reply
func (b *HTTPBackend) AuthCallback(ctx context.Context, chatID, walletAddress string) (core.BackendResponse, error) {
	query := url.Values{}
	query.Set("chat_id", chatID)
	if walletAddress != "" {
		query.Set("wallet_address", walletAddress)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url+"/api/auth_callback?"+query.Encode(), nil)
	if err != nil {
		return core.BackendResponse{}, fmt.Errorf("failed to create backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return core.BackendResponse{}, fmt.Errorf("failed to call backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.BackendResponse{}, fmt.Errorf("failed to read backend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return core.BackendResponse{}, &core.BackendError{Status: resp.StatusCode, Body: string(body)}
	}

	if !json.Valid(body) {
		return core.BackendResponse{}, fmt.Errorf("backend response is not valid JSON")
	}

	return core.BackendResponse{Status: resp.StatusCode, Body: body}, nil
}
