package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "dial tcp: connection reset" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

func TestClassifyRateLimit(t *testing.T) {
	err := classify("embedding", errors.New("API returned unexpected status code: 429"))
	assert.ErrorIs(t, err, ErrRateLimited)

	err = classify("completion", errors.New("rate limit exceeded, retry later"))
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestClassifyUnavailable(t *testing.T) {
	assert.ErrorIs(t, classify("embedding", context.DeadlineExceeded), ErrUnavailable)
	assert.ErrorIs(t, classify("embedding", fakeNetError{}), ErrUnavailable)
	assert.ErrorIs(t, classify("embedding", errors.New("connection refused")), ErrUnavailable)
	assert.ErrorIs(t, classify("embedding", errors.New("client timeout waiting for response")), ErrUnavailable)
}

func TestClassifyOtherErrorsPassThrough(t *testing.T) {
	base := errors.New("invalid request: model not found")
	err := classify("completion", base)

	assert.ErrorIs(t, err, base)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "completion")
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, classify("embedding", nil))
}

func TestClassifyKeepsOperationContext(t *testing.T) {
	err := classify("embedding", fmt.Errorf("status 429: too many requests"))
	assert.Contains(t, err.Error(), "embedding")
}
