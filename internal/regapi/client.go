package regapi

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
)

// Client consumes the registration service's auth endpoints.
type Client struct {
	baseURL    *url.URL
	clientID   string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client for API requests (e.g., for
// proxies or custom timeouts). If not provided, a client with a 30 second
// timeout is used.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the auth API rooted at baseURL.
func NewClient(baseURL, clientID string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %s", baseURL)
	}

	c := &Client{
		baseURL:  parsed,
		clientID: clientID,
		httpClient: &http.Client{
			// Bounds every exchange; a token refresh that never resolves
			// would block all session waiters.
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Origin returns the API origin (scheme://host) tokens are scoped to.
func (c *Client) Origin() *url.URL {
	return &url.URL{Scheme: c.baseURL.Scheme, Host: c.baseURL.Host}
}

// endpoint resolves a path relative to the base URL.
func (c *Client) endpoint(path string) string {
	ref := *c.baseURL
	ref.Path = strings.TrimSuffix(ref.Path, "/") + path
	return ref.String()
}

// APIError is a non-2xx response from the auth API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("auth API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("auth API returned status %d: %s", e.StatusCode, e.Body)
}

// doJSON performs a JSON request and decodes a JSON response into out.
// A nil body sends no payload; a nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Error bodies are small; bound the read regardless
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
