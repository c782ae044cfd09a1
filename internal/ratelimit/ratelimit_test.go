package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestAllowConsumesAndRefills(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := newLimiter(time.Minute, clock.now)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1", 3), "request %d", i)
	}
	assert.False(t, l.Allow("10.0.0.1", 3))
	assert.True(t, l.Allow("10.0.0.2", 3), "other keys are independent")

	clock.t = clock.t.Add(20 * time.Second) // one token at 3/min
	assert.True(t, l.Allow("10.0.0.1", 3))
	assert.False(t, l.Allow("10.0.0.1", 3))
}

func TestAllowZeroLimitDisables(t *testing.T) {
	l := newLimiter(time.Minute, time.Now)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("k", 0))
	}
}

func TestResetAndSweep(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := newLimiter(time.Minute, clock.now)

	l.Allow("a", 1)
	assert.False(t, l.Allow("a", 1))
	l.Reset("a")
	assert.True(t, l.Allow("a", 1))

	clock.t = clock.t.Add(3 * time.Minute)
	l.sweep()
	assert.Empty(t, l.entries)
}

func TestStopIsIdempotent(t *testing.T) {
	l := New(time.Minute)
	l.Stop()
	l.Stop()
}
