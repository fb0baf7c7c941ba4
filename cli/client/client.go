// Package client provides the HTTP client for a running bundlecost
// daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bundlecost/bundlecost/internal/importsig"
	"github.com/bundlecost/bundlecost/internal/sizecache"
)

// Client is the bundlecost daemon API client
type Client struct {
	// BaseURL is the daemon URL
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// Debug enables debug logging
	Debug bool

	// UserAgent to use for requests
	UserAgent string
}

// ClientOption configures the client
type ClientOption func(*Client)

// NewClient creates a new daemon client
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		UserAgent: "bundlecost-cli/1.0",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithDebug enables debug mode
func WithDebug(debug bool) ClientOption {
	return func(c *Client) {
		c.Debug = debug
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.HTTPClient.Timeout = timeout
	}
}

// MeasureResult mirrors the daemon's measure response.
type MeasureResult struct {
	CacheID  string                       `json:"cache_id"`
	State    sizecache.State              `json:"state"`
	Result   *sizecache.MeasurementResult `json:"result"`
	Minified string                       `json:"minified,omitempty"`
	Gzip     string                       `json:"gzip,omitempty"`
}

// Measure asks the daemon to measure one import signature.
func (c *Client) Measure(ctx context.Context, info importsig.ImportInfo, root string) (*MeasureResult, error) {
	var out MeasureResult
	if err := c.post(ctx, "/api/v1/measure", map[string]interface{}{
		"import":         info,
		"workspace_root": root,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// State asks the daemon for the cache state of one import signature
// without triggering work.
func (c *Client) State(ctx context.Context, info importsig.ImportInfo, root string) (*MeasureResult, error) {
	var out MeasureResult
	if err := c.post(ctx, "/api/v1/state", map[string]interface{}{
		"import":         info,
		"workspace_root": root,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearCache triggers a bulk cache invalidation on the daemon.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.post(ctx, "/api/v1/cache/clear", nil, nil)
}

// Available reports whether the daemon can bundle for the given root.
func (c *Client) Available(ctx context.Context, root string) (bool, error) {
	u, err := c.buildURL("/api/v1/available")
	if err != nil {
		return false, err
	}
	u.RawQuery = url.Values{"root": {root}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Available bool `json:"available"`
	}
	if err := decodeResponse(resp, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	u, err := c.buildURL(path)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	if c.Debug {
		fmt.Printf("DEBUG: POST %s\n", u.String())
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, out)
}

func (c *Client) buildURL(path string) (*url.URL, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon error: %s", resp.Status)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
