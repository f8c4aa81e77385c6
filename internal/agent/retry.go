package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
)

const (
	maxRetries      = 3
	retryMultiplier = 2
)

// Package-level so tests can shrink the backoff.
var (
	retryInitialWait = 2 * time.Second
	retryMaxWait     = 30 * time.Second
)

// withRetry runs call, retrying rate limits, overloads and dropped
// connections with exponential backoff. Other errors return immediately.
func withRetry[T any](ctx context.Context, logf func(string, ...any), call func() (T, error)) (T, error) {
	wait := retryInitialWait
	var zero T

	for attempt := 0; ; attempt++ {
		v, err := call()
		if err == nil {
			return v, nil
		}
		if attempt >= maxRetries || !isRetryable(err) {
			return zero, err
		}

		if wait > retryMaxWait {
			wait = retryMaxWait
		}
		if logf != nil {
			logf("agent: %v; retrying in %s (attempt %d/%d)", err, wait, attempt+1, maxRetries)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		wait *= retryMultiplier
	}
}

// isRetryable reports whether err is worth another attempt.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 502, 503, 529:
			return true
		}
		return false
	}
	return isStreamError(err)
}

// isStreamError returns true for transient connection errors, e.g. a
// response dropped mid-body.
func isStreamError(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected EOF") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "HTTP/1.x transport connection broken")
}
