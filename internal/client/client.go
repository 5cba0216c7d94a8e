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
)

const (
	headerRequestedWith = "X-Requested-With"
	requestedWithXHR    = "XMLHttpRequest"
)

// Client is a JSON API client bound to one backend origin. It never sends
// cookies: it has no cookie jar and strips any Cookie header.
type Client struct {
	baseURL    *url.URL
	session    *Session
	httpClient *http.Client
	timeout    time.Duration
	headers    http.Header
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. It should not itself be
// wrapped in a Transport for the same Session. The client is never modified.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the overall timeout of each request, applied as a context
// deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHeader adds a default header sent with every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// New creates a client for the backend at baseURL
func New(baseURL string, session *Session, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL:    u,
		session:    session,
		httpClient: &http.Client{},
		timeout:    30 * time.Second,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend origin
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Session returns the client's session
func (c *Client) Session() *Session {
	return c.session
}

// RequestOption adjusts a single request
type RequestOption func(*http.Request)

// WithRequestHeader sets a header on one request. An Authorization header
// set this way is never replaced by the session token.
func WithRequestHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithQuery sets query parameters on one request
func WithQuery(values url.Values) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, v := range values {
			q[k] = v
		}
		r.URL.RawQuery = q.Encode()
	}
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, in, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, in, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, in, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, in, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do sends a JSON request. in is marshaled as the body when non-nil; a 2xx
// body is decoded into out when out is non-nil. Non-2xx responses return a
// *ResponseError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		opt(req)
	}

	// Prefixes are matched below the base URL's path
	rel := c.relativePath(req.URL.Path)
	c.session.prepare(req, rel)

	// Forced last so neither defaults nor callers can re-enable credentials
	req.Header.Set(headerRequestedWith, requestedWithXHR)
	req.Header.Del("Cookie")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ResponseError{
			Method:     method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       body,
			Redirected: c.session.observe(ctx, req, rel, resp.StatusCode),
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) relativePath(p string) string {
	rel := strings.TrimPrefix(p, strings.TrimRight(c.baseURL.Path, "/"))
	if rel == "" {
		return "/"
	}
	return rel
}

func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}
	if !strings.HasPrefix(ref.Path, "/") {
		ref.Path = "/" + ref.Path
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + ref.Path
	u.RawQuery = ref.RawQuery

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
