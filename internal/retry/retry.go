// Package retry classifies transient agent failures and re-runs them
// with linear backoff.
package retry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/agentic-quality-orchestrator/internal/domain"
)

// transientError marks a wrapped error as retryable regardless of its
// underlying type.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkTransient wraps err so IsTransient reports true for it. Callers
// use this for failures they know are flaky by construction, such as an
// agent replying with prose where JSON was required.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether an error is worth retrying. Truncated or
// malformed agent output and network-level interruptions are transient;
// configuration mistakes such as an unknown agent ID are not, and neither
// is anything unrecognized.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Configuration errors never resolve on retry.
	var unknownAgent *domain.UnknownAgentError
	if errors.As(err, &unknownAgent) {
		return false
	}

	var marked *transientError
	if errors.As(err, &marked) {
		return true
	}

	// Agent output cut off or garbled mid-stream.
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Subprocess failures surface network trouble only in message text.
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection reset",
		"connection refused",
		"timeout",
		"timed out",
		"temporarily unavailable",
		"rate limit",
		"overloaded",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// Policy controls how many times an operation is retried and how long to
// wait between attempts. The delay grows linearly: BaseDelay after the
// first failure, 2×BaseDelay after the second, and so on.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// BaseDelay is the wait after the first failed attempt.
	BaseDelay time.Duration

	// OnRetry, if non-nil, is called before each sleep with the attempt
	// number (1-based), the wait, and the error being retried.
	OnRetry func(attempt int, delay time.Duration, err error)

	// sleep is replaceable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPolicy creates a Policy with the given retry count and base delay.
func NewPolicy(maxRetries int, baseDelay time.Duration) Policy {
	return Policy{MaxRetries: maxRetries, BaseDelay: baseDelay}
}

func (p Policy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn, retrying transient failures up to MaxRetries times. It
// returns the first success, the first non-transient error, or the last
// transient error once retries are exhausted. Context cancellation stops
// the loop immediately.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt > p.MaxRetries {
			return err
		}

		delay := time.Duration(attempt) * p.BaseDelay
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if werr := p.wait(ctx, delay); werr != nil {
			return werr
		}
	}
}
