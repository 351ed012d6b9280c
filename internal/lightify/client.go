package lightify

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
)

const (
	// AuthorizationHeader carries the session token.
	AuthorizationHeader = "authorization"

	// defaultRequestTimeout bounds a request when none is configured.
	defaultRequestTimeout = 15 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 4 << 20
)

// Client executes requests against the Lightify service base URL.
//
// It is stateless apart from the underlying http.Client and safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Response is the raw result of one request.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// AuthFailure reports whether the status is 401 or 403.
func (r *Response) AuthFailure() bool {
	return r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden
}

// Decode unmarshals the body into v. Numbers decode as json.Number when v
// holds interface values, so they survive a round trip unchanged.
func (r *Response) Decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// NewClient creates a client for baseURL. A trailing slash is added if
// missing; timeout <= 0 selects the default of 15 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the service base the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes one request.
//
// Parameters:
//   - method: HTTP method
//   - endpoint: path relative to the base, e.g. "device/set"
//   - params: query parameters (may be nil)
//   - token: session token, sent as the authorization header when non-empty
//   - body: JSON-encoded as the request body when non-nil
//
// Returns the status and body for any response the server sends. An error
// is returned only when no response was received.
func (c *Client) Do(ctx context.Context, method, endpoint string, params url.Values, token string, body any) (*Response, error) {
	target := c.baseURL + strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding %s body: %w", ErrRequestFailed, endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: building %s: %w", ErrRequestFailed, endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(AuthorizationHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %w", ErrRequestFailed, endpoint, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
	}, nil
}
