package httpclient

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
)

const maxErrorBody = 64 << 10

// ErrInvalidBaseURL is returned by [New] for an unusable service URL.
var ErrInvalidBaseURL = errors.New("invalid base url")

// ResponseError is a classified non-2xx response.
type ResponseError struct {
	StatusCode int
	ErrorCode  string
	Message    string
}

func (e *ResponseError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("http %d: %s: %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	ErrorCode  string `json:"errorCode"`
	ErrorCode2 string `json:"error_code"`
	StatusCode int    `json:"statusCode"`
}

// Client sends JSON requests relative to a base URL.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option customizes a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http = &http.Client{Timeout: d}
		}
	}
}

// New returns a client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service URL the client is rooted at.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Post sends data as JSON and decodes the response into out when out is non-nil.
func (c *Client) Post(ctx context.Context, path, token string, data, out any) error {
	return c.do(ctx, http.MethodPost, path, token, data, out)
}

// Get decodes the response into out when out is non-nil.
func (c *Client) Get(ctx context.Context, path, token string, out any) error {
	return c.do(ctx, http.MethodGet, path, token, nil, out)
}

// Put sends data as JSON.
func (c *Client) Put(ctx context.Context, path, token string, data, out any) error {
	return c.do(ctx, http.MethodPut, path, token, data, out)
}

// Patch sends data as JSON.
func (c *Client) Patch(ctx context.Context, path, token string, data, out any) error {
	return c.do(ctx, http.MethodPatch, path, token, data, out)
}

// Del sends a DELETE request.
func (c *Client) Del(ctx context.Context, path, token string, data, out any) error {
	return c.do(ctx, http.MethodDelete, path, token, data, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, data, out any) error {
	target := c.base.JoinPath(path)

	var body io.Reader
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func classify(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	out := &ResponseError{StatusCode: resp.StatusCode}

	var parsed errorBody
	if len(raw) > 0 && json.Unmarshal(raw, &parsed) == nil {
		out.ErrorCode = parsed.ErrorCode
		if out.ErrorCode == "" {
			out.ErrorCode = parsed.ErrorCode2
		}
		out.Message = parsed.Message
		if out.Message == "" {
			out.Message = parsed.Error
		}
		if parsed.StatusCode != 0 {
			out.StatusCode = parsed.StatusCode
		}
	}
	if out.Message == "" {
		out.Message = http.StatusText(resp.StatusCode)
	}
	return out
}
