// Package render builds QR image URLs on an external rendering service
// and verifies the service will serve them.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	qrgate "github.com/qrgate/qrgate"
)

// DefaultBaseURL is the public qrserver.com endpoint.
const DefaultBaseURL = "https://api.qrserver.com/v1/create-qr-code/"

// DefaultTimeout bounds a single render probe when no HTTP client is
// supplied.
const DefaultTimeout = 10 * time.Second

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the rendering endpoint. If empty, DefaultBaseURL is used.
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with
	// DefaultTimeout is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client renders QR codes by delegating to the configured service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a render client.
func NewClient(config ClientConfig) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("render: invalid BaseURL %q: %w", baseURL, err)
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
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// ImageURL returns the rendering URL for the target without contacting
// the service. The URL itself is the stable artifact reference.
func (c *Client) ImageURL(target string, width, height int) string {
	q := url.Values{}
	q.Set("size", fmt.Sprintf("%dx%d", width, height))
	q.Set("data", target)
	return c.baseURL + "?" + q.Encode()
}

// Render builds the image URL and probes the service for it. On success
// the URL is returned as the image reference. Transport failures and
// non-2xx responses map to ErrRenderUnavailable; context cancellation is
// passed through untouched so callers can tell the two apart.
func (c *Client) Render(ctx context.Context, target string, width, height int) (string, error) {
	imageURL := c.ImageURL(target, width, height)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("render: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("render request failed", "error", err)
		return "", fmt.Errorf("%w: %v", qrgate.ErrRenderUnavailable, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("render service rejected request", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: status %d", qrgate.ErrRenderUnavailable, resp.StatusCode)
	}
	return imageURL, nil
}
