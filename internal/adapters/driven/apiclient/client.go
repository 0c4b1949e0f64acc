// Package apiclient is the HTTP plumbing shared by the model provider adapters:
// JSON requests, error decoding, 429 handling and proactive throttling.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/minutes/internal/core/domain"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Config configures a Client.
type Config struct {
	// Provider names the upstream in errors (e.g. "openai").
	Provider string

	// BaseURL is prefixed to every request path. A trailing slash is trimmed.
	BaseURL string

	// Timeout bounds each request. Zero means no client-side timeout,
	// which streaming callers rely on.
	Timeout time.Duration

	// Header is sent with every request.
	Header http.Header

	// RequestsPerSecond throttles requests when positive.
	RequestsPerSecond float64

	// HTTPClient overrides the underlying client.
	HTTPClient *http.Client
}

// Client sends requests to one provider.
type Client struct {
	provider string
	baseURL  string
	header   http.Header
	http     *http.Client
	limiter  *Limiter
}

// New creates a client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		provider: cfg.Provider,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		header:   cfg.Header.Clone(),
		http:     hc,
		limiter:  NewLimiter(cfg.RequestsPerSecond),
	}
}

// Provider returns the provider name.
func (c *Client) Provider() string {
	return c.provider
}

// BaseURL returns the base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response other than a rate limit.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, e.Message)
}

// Do sends a request and returns the response when the status is 2xx.
// Rate limits become *domain.RateLimitError and other failures *APIError;
// in both cases the body is consumed and closed.
func (c *Client) Do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: send request: %w", c.provider, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := ErrorMessage(raw)
	if resp.StatusCode == http.StatusTooManyRequests {
		retry := ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		c.limiter.Backoff(retry)
		return nil, &domain.RateLimitError{Provider: c.provider, RetryAfter: retry, Message: msg}
	}
	return nil, &APIError{Provider: c.provider, Status: resp.StatusCode, Message: msg}
}

// PostJSON sends in as JSON and decodes the response into out.
// out may be nil to discard the body.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	resp, err := c.PostJSONStream(ctx, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	return nil
}

// PostJSONStream sends in as JSON and returns the open response for the
// caller to read incrementally. The caller closes the body.
func (c *Client) PostJSONStream(ctx context.Context, path string, in any) (*http.Response, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", c.provider, err)
	}
	return c.Do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(payload))
}

// Get issues a GET and discards the body. It is used for health checks.
func (c *Client) Get(ctx context.Context, path string) error {
	resp, err := c.Do(ctx, http.MethodGet, path, "", http.NoBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ErrorMessage extracts a human-readable message from an error body.
// It understands {"error": {"message": ...}}, {"error": "..."} and
// {"message": ...}; anything else is returned trimmed.
func ErrorMessage(body []byte) string {
	var shaped struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil {
		if len(shaped.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(shaped.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			var s string
			if json.Unmarshal(shaped.Error, &s) == nil && s != "" {
				return s
			}
		}
		if shaped.Message != "" {
			return shaped.Message
		}
	}
	return strings.TrimSpace(string(body))
}

// IsUnavailable reports whether err means the provider could not be reached
// or failed on its side, as opposed to rejecting the request.
func IsUnavailable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Classify wraps err with unavailable when the provider could not serve it.
func Classify(err, unavailable error) error {
	if IsUnavailable(err) {
		return fmt.Errorf("%w: %w", unavailable, err)
	}
	return err
}
