package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"sharednotes/pkg/auth"
	"sharednotes/pkg/errors"
	"sharednotes/pkg/metrics"
)

const refreshPath = "/users/jwt/refresh/"

// Client talks to the notes backend. It attaches the access token to every
// request and refreshes it once when the backend answers 401.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *auth.TokenStore
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. A client without a cookie jar
// gets the default in-memory jar so the refresh cookie survives.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc.Jar == nil {
			hc.Jar = c.http.Jar
		}
		c.http = hc
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "api").Logger()
	}
}

// WithMetrics records every request in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a client for the backend at baseURL
func New(baseURL string, tokens *auth.TokenStore, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("api: token store is required")
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No timeout: callers bound work through the context.
		http:   &http.Client{Jar: jar},
		tokens: tokens,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request is one logical call. body is kept so a retry can resend it.
type request struct {
	endpoint string
	method   string
	path     string
	body     []byte
	retried  bool
	token    string
}

// do sends in as JSON and decodes the response into out when both are set
func (c *Client) do(ctx context.Context, endpoint, method, path string, in, out interface{}) error {
	req := &request{endpoint: endpoint, method: method, path: path}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		req.body = body
	}

	data, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// send runs the request and, on the first 401 outside the refresh endpoint,
// refreshes the token and re-issues it once. When the refresh fails the
// token is cleared and the original 401 is returned.
func (c *Client) send(ctx context.Context, req *request) ([]byte, error) {
	data, err := c.roundTrip(ctx, req)
	if err == nil {
		return data, nil
	}

	apiErr, ok := err.(*Error)
	if !ok || !apiErr.IsUnauthorized() || req.retried || strings.HasSuffix(req.path, refreshPath) {
		return nil, err
	}

	req.retried = true
	token, refreshErr := c.refresh(ctx)
	if refreshErr != nil {
		c.logger.Debug().Err(refreshErr).Str("endpoint", req.endpoint).Msg("token refresh failed")
		c.tokens.Clear()
		return nil, err
	}

	c.tokens.Set(token)
	req.token = token
	return c.roundTrip(ctx, req)
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	token, err := c.RefreshToken(ctx)
	c.metrics.ObserveRefresh(err == nil)
	return token, err
}

func (c *Client) roundTrip(ctx context.Context, req *request) ([]byte, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if req.retried {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	} else if token := c.tokens.Get(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(req.endpoint, req.method, "error", time.Since(start))
		c.logger.Debug().Err(err).Str("method", req.method).Str("path", req.path).Msg("request failed")
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.ObserveRequest(req.endpoint, req.method, fmt.Sprint(resp.StatusCode), elapsed)
	c.logger.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Bool("retry", req.retried).
		Dur("elapsed", elapsed).
		Msg("request")
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.endpoint, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &Error{
			Method:     req.method,
			Path:       req.path,
			StatusCode: resp.StatusCode,
			Body:       data,
			Fields:     errors.ParseFieldErrors(data),
		}
	}
	return data, nil
}
