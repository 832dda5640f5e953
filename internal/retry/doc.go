// Package retry runs an operation a bounded number of times, waiting between
// failed attempts according to a backoff strategy.
//
// Basic usage:
//
//	err := retry.Do(ctx, func(attempt int) error {
//	    return fetch()
//	},
//	    retry.WithMaxAttempts(4),
//	    retry.WithBackoff(retry.FixedBackoff(200*time.Millisecond)),
//	)
//
// Errors wrapped with Permanent stop the loop immediately. Errors matched by the
// WithImmediateRetry predicate are retried without waiting.
package retry
