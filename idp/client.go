// Package idp talks to the upstream identity provider that vouches for
// browser login sessions.
package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	qrgate "github.com/qrgate/qrgate"
)

// DefaultTimeout bounds a single exchange when no HTTP client is supplied.
const DefaultTimeout = 10 * time.Second

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the identity provider endpoint, without the
	// /session-data suffix. Required.
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with
	// DefaultTimeout is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client exchanges upstream session handles for profiles.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an identity provider client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("idp: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("idp: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Exchange redeems an upstream session handle for the profile it belongs
// to. Called once per login; the provider invalidates the handle after a
// short window, so the result must be persisted by the caller.
func (c *Client) Exchange(ctx context.Context, sessionID string) (*qrgate.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session-data", nil)
	if err != nil {
		return nil, fmt.Errorf("idp: create request: %w", err)
	}
	req.Header.Set("X-Session-ID", sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("identity provider unreachable", "error", err)
		return nil, fmt.Errorf("%w: %v", qrgate.ErrIdentityProviderFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", qrgate.ErrIdentityProviderFailure, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode.
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, qrgate.ErrIdentityProviderDenied
	default:
		c.logger.Warn("identity provider error", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", qrgate.ErrIdentityProviderFailure, resp.StatusCode)
	}

	var wire struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", qrgate.ErrIdentityProviderFailure, err)
	}
	if wire.Email == "" {
		return nil, fmt.Errorf("%w: response missing email", qrgate.ErrIdentityProviderFailure)
	}

	return &qrgate.Profile{
		Subject: wire.ID,
		Email:   wire.Email,
		Name:    wire.Name,
		Picture: wire.Picture,
	}, nil
}
