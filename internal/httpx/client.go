// Package httpx provides the outbound HTTP client shared by the source
// fetchers: bounded connect/read timeouts, automatic retry with
// exponential backoff on 429 and 5xx responses, and optional client-side
// rate limiting.
//
// The client is constructed once at startup and passed in; there is no
// package-level singleton.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Defaults mirror the fetcher timeout policy: fail connects fast, allow
// slow reads from the big Atlassian payloads.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultMaxRetries     = 3
	defaultBackoffBase    = 500 * time.Millisecond
)

// StatusError is returned when the server answers with a non-2xx status
// after all retries are exhausted.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// Retryable reports whether the status is worth another attempt.
// Only rate limiting and server errors are idempotent-safe to retry.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Config controls client construction.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRetries     uint64

	// Limiter, when set, throttles every request (used for the GitHub
	// per-file commit lookups, which burn through rate limits quickly).
	Limiter *rate.Limiter
}

// Client wraps http.Client with the retry and throttling policy.
// It is safe for concurrent use.
type Client struct {
	hc         *http.Client
	maxRetries uint64
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a configured Client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   4,
	}

	return &Client{
		hc: &http.Client{
			Transport: transport,
			Timeout:   cfg.ReadTimeout + cfg.ConnectTimeout,
		},
		maxRetries: cfg.MaxRetries,
		limiter:    cfg.Limiter,
		logger:     logger,
	}
}

// Do executes the request with the retry policy. Requests must be
// idempotent; only GETs flow through here today. The response body is
// the caller's to close.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newExponentialBackoff(), c.maxRetries),
		req.Context(),
	)

	attempt := 0
	operation := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(req.Context()); err != nil {
				return backoff.Permanent(err)
			}
		}

		r, err := c.hc.Do(req.Clone(req.Context()))
		if err != nil {
			// Transport-level failures (timeouts, resets) are retryable.
			return err
		}

		if r.StatusCode >= 200 && r.StatusCode < 300 {
			resp = r
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
		_ = r.Body.Close()
		statusErr := &StatusError{StatusCode: r.StatusCode, Body: string(body)}
		if !statusErr.Retryable() {
			return backoff.Permanent(statusErr)
		}
		c.logger.Debug("retrying request",
			"url", req.URL.String(),
			"status", r.StatusCode,
			"attempt", attempt)
		return statusErr
	}

	if err := backoff.Retry(operation, policy); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Err
		}
		return nil, err
	}
	return resp, nil
}

// GetJSON performs a GET with the given headers and decodes the JSON
// response into out.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

func newExponentialBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultBackoffBase
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0 // retry count is the only bound
	return b
}
