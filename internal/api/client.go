// Package api is the HTTP client for the Essence REST backend. Every data
// operation of the front-end is one call in this package.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBaseURL is the public Essence backend
const DefaultBaseURL = "https://hypo-backend-1.onrender.com/def"

// DefaultTimeout bounds every request
const DefaultTimeout = 10 * time.Second

var (
	// ErrRejected is returned for any non-2xx response
	ErrRejected = errors.New("request rejected by backend")
	// ErrTransport is returned when the backend could not be reached
	ErrTransport = errors.New("backend unreachable")
	// ErrNotFound is returned for 404 responses; it also matches ErrRejected
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx response
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed: %s %s: %s", e.Method, e.Path, e.Status)
}

// Is lets errors.Is match ErrRejected, and ErrNotFound for 404s
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return true
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Resolver yields the backend base URL for each request
type Resolver interface {
	BaseURL(ctx context.Context) (string, error)
}

// StaticURL is a fixed base URL
type StaticURL string

func (u StaticURL) BaseURL(context.Context) (string, error) {
	return strings.TrimRight(string(u), "/"), nil
}

// TokenSource yields the bearer token, if any
type TokenSource interface {
	Token() (string, bool)
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	resolver Resolver
	http     *http.Client
	tokens   TokenSource
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client without credentials
func NewClient(resolver Resolver, opts ...Option) *Client {
	c := &Client{
		resolver: resolver,
		http:     &http.Client{Timeout: DefaultTimeout},
		logger:   slog.Default(),
		tracer:   otel.Tracer("essence/internal/api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTokens returns a copy of c that authenticates with tokens
func (c *Client) WithTokens(tokens TokenSource) *Client {
	clone := *c
	clone.tokens = tokens
	return &clone
}

// do sends a JSON request and decodes a JSON response into out (if non-nil)
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	err := c.send(ctx, method, path, body, out, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body, out any, span trace.Span) error {
	base, err := c.resolver.BaseURL(ctx)
	if err != nil {
		return fmt.Errorf("%w: resolve backend: %v", ErrTransport, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed",
			"method", method,
			"path", path,
			"error", err,
		)
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("Backend request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
