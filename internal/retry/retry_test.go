package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(attempt int) error {
		assert.Equal(t, calls, attempt)
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithMaxAttempts(4), WithBackoff(FixedBackoff(time.Millisecond)))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	var hooked []int

	err := Do(context.Background(), func(int) error {
		calls++
		return boom
	},
		WithMaxAttempts(4),
		WithBackoff(FixedBackoff(time.Millisecond)),
		WithOnRetry(func(attempt int, err error) {
			hooked = append(hooked, attempt)
		}),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{0, 1, 2, 3}, hooked)
}

func TestDo_PermanentStops(t *testing.T) {
	fatal := errors.New("bad request")
	calls := 0

	err := Do(context.Background(), func(int) error {
		calls++
		return Permanent(fatal)
	}, WithMaxAttempts(4), WithBackoff(FixedBackoff(time.Millisecond)))

	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, fatal)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDo_ImmediateRetrySkipsWait(t *testing.T) {
	empty := errors.New("empty")
	calls := 0
	start := time.Now()

	err := Do(context.Background(), func(int) error {
		calls++
		return empty
	},
		WithMaxAttempts(4),
		WithBackoff(FixedBackoff(time.Second)),
		WithImmediateRetry(func(err error) bool { return errors.Is(err, empty) }),
	)

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDo_ContextCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func(int) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, func(int) error {
		calls++
		time.AfterFunc(10*time.Millisecond, cancel)
		return errors.New("fail")
	}, WithMaxAttempts(3), WithBackoff(FixedBackoff(time.Second)))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	fixed := FixedBackoff(200 * time.Millisecond)

	for attempt := 0; attempt < 4; attempt++ {
		assert.Equal(t, 200*time.Millisecond, fixed.NextBackoff(attempt))
	}
}
