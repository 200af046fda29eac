// Package backend is the HTTP client for the external order service, which
// owns orders, customer accounts and the product catalog.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/oppa-kitchen/storefront/internal/enum"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Client calls the order service. It is safe for concurrent use.
type Client struct {
	baseURL      string
	http         *http.Client
	timeout      time.Duration
	orderTimeout time.Duration
	log          *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the traced default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the service at baseURL. orderTimeout bounds
// order creation and status updates; timeout bounds every other call.
func New(baseURL string, timeout, orderTimeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:      baseURL,
		http:         &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:      timeout,
		orderTimeout: orderTimeout,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a well-formed JSON answer from the order service.
type Response struct {
	Status int
	Body   json.RawMessage
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Message returns the top-level "message" field, if any.
func (r *Response) Message() string {
	var env struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(r.Body, &env)
	return env.Message
}

// Fields returns the per-field validation messages under "errors", if any.
func (r *Response) Fields() map[string][]string {
	var env struct {
		Errors map[string][]string `json:"errors"`
	}
	_ = json.Unmarshal(r.Body, &env)
	return env.Errors
}

type call struct {
	method        string
	path          string
	query         url.Values
	authorization string
	admin         bool
	body          any
	timeout       time.Duration
}

// do performs c and returns the parsed JSON answer whatever its status.
// The returned error is always an *Error and only covers failures to get
// a usable JSON answer.
func (c *Client) do(ctx context.Context, cl call) (*Response, error) {
	timeout := cl.timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return nil, &Error{Kind: ErrInternal, Status: http.StatusInternalServerError, Code: enum.ErrorCodeInternal, Message: fmt.Sprintf("encode request: %v", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return nil, &Error{Kind: ErrInternal, Status: http.StatusInternalServerError, Code: enum.ErrorCodeInternal, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if cl.authorization != "" {
		req.Header.Set("Authorization", cl.authorization)
	}
	if cl.admin {
		req.Header.Set("X-Admin-Request", "true")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		be := transportError(err)
		c.log.Warn("order service call failed",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.String("code", be.Code),
			zap.Error(err))
		return nil, be
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	c.log.Debug("order service call",
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &Error{Kind: ErrUnavailable, Status: http.StatusBadGateway, Code: enum.ErrorCodeEmptyResponse, Message: "Empty response from order service"}
	}
	if !json.Valid(raw) {
		c.log.Warn("order service returned non-JSON",
			zap.String("path", cl.path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), 200)))
		return nil, &Error{Kind: ErrUnavailable, Status: http.StatusBadGateway, Code: enum.ErrorCodeInvalidJSON, Message: "Invalid JSON response from order service"}
	}
	return &Response{Status: resp.StatusCode, Body: raw}, nil
}

// MaskToken shortens a credential for logging.
func MaskToken(token string) string {
	if token == "" {
		return "null"
	}
	return truncate(token, 20) + "..."
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
