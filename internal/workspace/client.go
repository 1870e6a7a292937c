package workspace

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/workspace-migrate/internal/metrics"
)

// Client talks to the REST control plane of one workspace.
type Client struct {
	Host       string
	Token      string
	HTTPClient *http.Client

	// Name labels this tenant in logs and metrics ("source", "target").
	Name string

	logger  zerolog.Logger
	metrics *metrics.Run
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Run) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

func WithTLS(cfg *tls.Config) Option {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg
		c.HTTPClient.Transport = transport
	}
}

func New(name, host, token string, opts ...Option) *Client {
	c := &Client{
		Host:       strings.TrimRight(host, "/"),
		Token:      token,
		HTTPClient: &http.Client{},
		Name:       name,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "api-client").Str("tenant", name).Logger()
	return c
}

// Response is a successful (2xx) or failed API response.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Empty reports whether the response carried no body.
func (r *Response) Empty() bool {
	return len(bytes.TrimSpace(r.Body)) == 0
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r.Empty() {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// StatusError is returned for any response outside [200,300).
type StatusError struct {
	Method     Method
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*Response, error) {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.Do(ctx, MethodGet, endpoint, nil)
}

func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, MethodPost, endpoint, body)
}

func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, MethodPut, endpoint, body)
}

// URL returns the absolute URL of a versioned endpoint such as "2.0/clusters/list".
func (c *Client) URL(endpoint string) string {
	return c.Host + "/api/" + strings.TrimLeft(endpoint, "/")
}

// Do performs one request. A non-2xx response is logged and returned
// together with a *StatusError.
func (c *Client) Do(ctx context.Context, method Method, endpoint string, body any) (*Response, error) {
	if !method.valid() {
		return nil, fmt.Errorf("bad method: %q", method)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, string(method), c.URL(endpoint), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(c.Name, string(method), 0)
		c.logger.Warn().Err(err).Str("method", string(method)).Str("endpoint", endpoint).Msg("API request failed")
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveRequest(c.Name, string(method), resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	r := &Response{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(respBody),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().
			Str("method", string(method)).
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("body", string(respBody)).
			Msg("API request failed")
		return r, &StatusError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	c.logger.Debug().Str("method", string(method)).Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("API request")
	return r, nil
}
