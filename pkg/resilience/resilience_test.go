package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("search", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange: func(_ string, _, to State) {
			transitions = append(transitions, to)
		},
	})
	now := time.Unix(1000, 0)
	cb.now = func() time.Time { return now }

	fail := func() error { return errBoom }
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreakerHalfOpenAllowsSingleProbe(t *testing.T) {
	cb := NewCircuitBreaker("topn", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	now := time.Unix(0, 0)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errBoom })
	now = now.Add(time.Second)

	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error { <-release; return nil })
	}()
	assert.Eventually(t, func() bool { return cb.GetState() == StateHalfOpen }, time.Second, time.Millisecond)
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
	close(release)
	assert.NoError(t, <-done)
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	errBadInput := errors.New("bad input")
	cb := NewCircuitBreaker("related", CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, errBadInput) },
	})
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBadInput })
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "op", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errBoom
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "op", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return false },
	}, func() error {
		attempts++
		return errBoom
	})
	assert.Same(t, errBoom, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryExhausted(t *testing.T) {
	err := Retry(context.Background(), "op", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "all 2 attempts failed")
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "op", RetryConfig{MaxAttempts: 3, InitialDelay: time.Second}, func() error { return errBoom })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, ErrTimeout)

	err = WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) error { return errBoom })
	assert.Same(t, errBoom, err)

	assert.NoError(t, WithTimeout(context.Background(), 0, "none", func(ctx context.Context) error { return nil }))
}

func TestBackoffSchedule(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	assert.Equal(t, 2*time.Second, cfg.backoff(5))
	first := cfg.backoff(1)
	assert.GreaterOrEqual(t, first, 900*time.Millisecond)
	assert.LessOrEqual(t, first, 1100*time.Millisecond)

	defaults := RetryConfig{}.withDefaults()
	assert.Equal(t, 3, defaults.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, defaults.InitialDelay)
}
