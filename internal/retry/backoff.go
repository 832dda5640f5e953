package retry

import "time"

// Backoff computes the wait before the next attempt. attempt starts from 0.
type Backoff interface {
	NextBackoff(attempt int) time.Duration
}

type fixedBackoff time.Duration

// FixedBackoff waits the same duration after every failed attempt
func FixedBackoff(d time.Duration) Backoff {
	return fixedBackoff(d)
}

func (f fixedBackoff) NextBackoff(int) time.Duration {
	return time.Duration(f)
}
