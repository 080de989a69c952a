package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// The pipeline sees exactly three failure kinds from the provider:
// rate-limited, unavailable (network/timeout), and everything else
// (returned unwrapped). None are retried at this layer; a sync job that
// hits one is simply marked failed.
var (
	// ErrRateLimited indicates the provider rejected the call for quota.
	ErrRateLimited = errors.New("ai provider rate limited")

	// ErrUnavailable indicates the provider could not be reached in time.
	ErrUnavailable = errors.New("ai provider unavailable")
)

// classify translates a raw provider error into the uniform taxonomy.
// Provider-specific error types must not leak past this package.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out", ErrUnavailable, op)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return fmt.Errorf("%w: %s: %v", ErrRateLimited, op, err)
	case strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
