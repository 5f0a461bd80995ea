// Package retry classifies errors as recoverable or not and runs an
// operation with linear backoff until it succeeds, exhausts its retry
// budget, or hits a non-recoverable error.
package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseWait is the wait after the first failed attempt. Subsequent
// waits grow linearly: base, 2*base, 3*base.
const DefaultBaseWait = 500 * time.Millisecond

// Recoverable marks an error as explicitly retryable or not, overriding
// the type and message heuristics.
type Recoverable interface {
	error
	IsRecoverable() bool
}

// IsRecoverable reports whether an error is worth retrying. An explicit
// Recoverable implementation anywhere in the chain wins; otherwise the
// decision falls back to heuristics over common error types and messages.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var recoverable Recoverable
	if errors.As(err, &recoverable) {
		return recoverable.IsRecoverable()
	}
	return isRecoverableByType(err)
}

func isRecoverableByType(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, context.Canceled):
		// Cancellation is intentional.
		return false
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isRecoverableByType(urlErr.Err)
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"rate limit",
		"service unavailable",
		"internal server error",
		"bad gateway",
		"gateway timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string       { return e.err.Error() }
func (e *recoverableError) IsRecoverable() bool { return true }
func (e *recoverableError) Unwrap() error       { return e.err }

// NewRecoverableError wraps an error so IsRecoverable always reports true.
func NewRecoverableError(err error) error {
	return &recoverableError{err: err}
}

type nonRecoverableError struct {
	err error
}

func (e *nonRecoverableError) Error() string       { return e.err.Error() }
func (e *nonRecoverableError) IsRecoverable() bool { return false }
func (e *nonRecoverableError) Unwrap() error       { return e.err }

// NewNonRecoverableError wraps an error so it is never retried.
func NewNonRecoverableError(err error) error {
	return &nonRecoverableError{err: err}
}

// Option configures Do.
type Option func(*config)

type config struct {
	maxRetries int
	baseWait   time.Duration
	onRetry    func(attempt int, err error)
}

// WithMaxRetries sets how many times Do retries after the first attempt.
// Zero means a single attempt with no retries.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithBaseWait sets the wait after the first failure.
func WithBaseWait(d time.Duration) Option {
	return func(c *config) { c.baseWait = d }
}

// WithOnRetry registers a callback invoked before each retry with the
// upcoming attempt number (1-based) and the error that triggered it.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(c *config) { c.onRetry = fn }
}

// Do runs fn until it succeeds, returns a non-recoverable error, or uses
// up its retries. The wait between attempts grows linearly from the base
// wait and is cut short by context cancellation.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	cfg := config{baseWait: DefaultBaseWait}
	for _, opt := range opts {
		opt(&cfg)
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= cfg.maxRetries || !IsRecoverable(err) {
			return err
		}
		if cfg.onRetry != nil {
			cfg.onRetry(attempt+1, err)
		}
		wait := cfg.baseWait * time.Duration(attempt+1)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
