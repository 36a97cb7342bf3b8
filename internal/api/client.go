// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Configuration constants for the backend client.
const (
	// DefaultTimeout is the default timeout for API requests. Sends wait
	// on a model completion, so this is generous.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	// RequestIDHeader correlates client and server logs.
	RequestIDHeader = "X-Request-ID"

	userAgent = "parley/1"
)

// =============================================================================
// TOKEN SOURCE
// =============================================================================

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the platform backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient creates a client for baseURL, which includes the API prefix
// (e.g. http://localhost:8000/api/v1).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  StaticToken(""),
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			Timeout: DefaultTimeout,
		},
		logger: zerolog.Nop(),
	}
}

// WithToken sets the token source.
func (c *Client) WithToken(tokens TokenSource) *Client {
	if tokens != nil {
		c.tokens = tokens
	}
	return c
}

// WithTimeout sets the per-request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.http.Timeout = timeout
	}
	return c
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables throttling.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = nil
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the request logger.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger.With().Str("component", "api").Logger()
	return c
}

// WithHTTPClient replaces the underlying HTTP client, keeping the timeout
// already configured when hc has none.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc == nil {
		return c
	}
	if hc.Timeout == 0 {
		hc.Timeout = c.http.Timeout
	}
	c.http = hc
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do performs one request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded JSON response.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doURL(ctx, method, c.baseURL+path, path, body, out)
}

func (c *Client) doURL(ctx context.Context, method, fullURL, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s %s: rate limiter: %w", method, path, err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	if err := c.setHeaders(req, requestID, body != nil); err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)

	// SECURITY: Drop the token from the request before anything can log it.
	req.Header.Del("Authorization")

	if err != nil {
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Str("request_id", requestID).
			Dur("latency", time.Since(start)).
			Err(err).
			Msg("request failed")
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, readErr := readResponse(resp)
	c.logResponse(method, path, requestID, resp.StatusCode, time.Since(start))
	if readErr != nil {
		return readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(method, path, resp.StatusCode, data)
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response from %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, requestID string, hasBody bool) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// logResponse logs status and latency only. Headers may carry the token and
// bodies carry user content, so neither is logged.
func (c *Client) logResponse(method, path, requestID string, status int, latency time.Duration) {
	ev := c.logger.Debug()
	if status >= 400 {
		ev = c.logger.Warn()
	}
	ev.Str("method", method).
		Str("path", path).
		Int("status", status).
		Str("request_id", requestID).
		Dur("latency", latency).
		Msg("request completed")
}

// readResponse reads the body with a size limit.
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// =============================================================================
// HEALTH
// =============================================================================

// HealthStatus is the backend's health payload.
type HealthStatus struct {
	Status string `json:"status"`
}

// Health calls GET /health on the server root (outside the API prefix).
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""

	var out HealthStatus
	if err := c.doURL(ctx, http.MethodGet, u.String(), "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
