package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is wrapped by the error returned when every attempt failed
var ErrExhausted = errors.New("retry attempts exhausted")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type options struct {
	maxAttempts int
	backoff     Backoff
	immediate   func(err error) bool
	onRetry     func(attempt int, err error)
}

// Option configures Do
type Option func(*options)

// WithMaxAttempts sets the total number of attempts, including the first one
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithBackoff sets the wait strategy between attempts
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithImmediateRetry retries errors matched by fn without waiting
func WithImmediateRetry(fn func(err error) bool) Option {
	return func(o *options) {
		o.immediate = fn
	}
}

// WithOnRetry registers a hook called after every failed attempt
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}

// Do calls fn until it succeeds, returns a permanent error, the attempts run
// out or ctx is done. fn receives the zero-based attempt number.
func Do(ctx context.Context, fn func(attempt int) error, opts ...Option) error {
	o := options{
		maxAttempts: 3,
		backoff:     FixedBackoff(100 * time.Millisecond),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if o.onRetry != nil {
			o.onRetry(attempt, err)
		}

		if IsPermanent(err) {
			return err
		}

		// No wait after the last attempt
		if attempt == o.maxAttempts-1 {
			break
		}
		if o.immediate != nil && o.immediate(err) {
			continue
		}

		wait := o.backoff.NextBackoff(attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, o.maxAttempts, lastErr)
}
