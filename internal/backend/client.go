// Package backend calls the REST backend: JSON POSTs wrapped in the
// {code, message, data} envelope, guarded by a circuit breaker and retried
// with exponential backoff on transient failures.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/pitabwire/staffdesk/internal/config"
	"github.com/pitabwire/staffdesk/internal/observability"
	"github.com/pitabwire/staffdesk/model"
)

const maxResponseBytes = 10 << 20

// Caller is the interface query services and handlers depend on.
type Caller interface {
	Call(ctx context.Context, path string, body, out any) error
}

// Recorder receives backend call metrics. *observability.Metrics implements it.
type Recorder interface {
	RecordBackendRequest(path string, status int, duration time.Duration)
	RecordBackendRetry(path string)
	SetBackendCircuitBreakerState(state float64)
}

// Client posts JSON to the backend and unwraps the response envelope.
type Client struct {
	cfg      config.BackendConfig
	baseURL  string
	http     *http.Client
	breaker  *CircuitBreaker
	recorder Recorder
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// NewClient creates a Client. rt is the transport chain used for every call,
// typically AuthTransport wrapping CaseTransport; nil means a pooled default.
func NewClient(cfg config.BackendConfig, rt http.RoundTripper, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if rt == nil {
		rt = &http.Transport{
			MaxIdleConns:        100,
			MaxConnsPerHost:     50,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: rt},
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = NewCircuitBreaker(cfg.CircuitBreaker, func(s BreakerState) {
		if c.recorder != nil {
			c.recorder.SetBackendCircuitBreakerState(float64(s))
		}
	})
	return c
}

// Breaker exposes the client's circuit breaker for readiness checks.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// Call POSTs body as JSON to <baseURL>/<path> and decodes the envelope's data
// into out. out may be nil when the caller does not need the data. Failures
// are returned as *model.APIError.
func (c *Client) Call(ctx context.Context, path string, body, out any) (err error) {
	path = strings.TrimPrefix(path, "/")
	ctx, span := observability.StartSpan(ctx, "backend.call",
		observability.AttrBackendPath.String(path),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: marshal %s body: %w", path, err)
		}
	}

	raw, err := c.executeWithRetry(ctx, path, payload)
	if err != nil {
		return err
	}
	return c.unwrap(path, raw, out)
}

func (c *Client) executeWithRetry(ctx context.Context, path string, payload []byte) ([]byte, error) {
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts < 1 || !c.cfg.Retry.CanRetry(path) {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if c.recorder != nil {
				c.recorder.RecordBackendRetry(path)
			}
			if err := c.sleep(ctx, calculateBackoff(c.cfg.Retry, attempt)); err != nil {
				return nil, err
			}
		}

		raw, err := c.executeOnce(ctx, path, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		slog.Debug("backend: retrying after error",
			"path", path,
			"attempt", attempt+1,
			"max", maxAttempts,
			"error", err,
		)
	}
	return nil, lastErr
}

func (c *Client) executeOnce(ctx context.Context, path string, payload []byte) ([]byte, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, networkError(err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.breaker.RecordFailure()
		c.record(path, 0, start)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.record(path, resp.StatusCode, start)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, networkError(fmt.Errorf("backend: read response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		c.breaker.RecordFailure()
		return nil, httpError(resp.StatusCode)
	case resp.StatusCode >= 400:
		// 4xx is the caller's problem, not the backend's health.
		c.breaker.RecordSuccess()
		return nil, httpError(resp.StatusCode)
	}
	c.breaker.RecordSuccess()
	return raw, nil
}

func (c *Client) record(path string, status int, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordBackendRequest(path, status, time.Since(start))
	}
}

// unwrap decodes the envelope and checks its code against the success codes
// configured for path.
func (c *Client) unwrap(path string, raw []byte, out any) error {
	var env model.Envelope[json.RawMessage]
	if err := json.Unmarshal(raw, &env); err != nil {
		return decodeError(fmt.Errorf("backend: decode %s envelope: %w", path, err))
	}

	if !slices.Contains(c.cfg.SuccessCodesFor(path), env.Code) {
		slog.Warn("backend: application failure",
			"path", path,
			"code", env.Code,
			"message", env.Message,
		)
		return applicationError(env.Code, env.Message, nil)
	}

	if out == nil {
		return nil
	}
	if env.Data == nil || len(*env.Data) == 0 || string(*env.Data) == "null" {
		return applicationError(env.Code, env.Message, ErrNoData)
	}
	if err := json.Unmarshal(*env.Data, out); err != nil {
		return decodeError(fmt.Errorf("backend: decode %s data: %w", path, err))
	}
	return nil
}

func calculateBackoff(cfg config.RetryConfig, attempt int) time.Duration {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 100 * time.Millisecond
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}

	delay := cfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if delay > cfg.BackoffMax {
			return cfg.BackoffMax
		}
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
