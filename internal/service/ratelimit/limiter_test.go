package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEveryPerKey(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := Every(time.Minute, 1).WithClock(func() time.Time { return now })

	assert.True(t, l.Allow("BTC"))
	assert.False(t, l.Allow("BTC"))
	assert.True(t, l.Allow("ETH"), "keys are independent")

	now = now.Add(59 * time.Second)
	assert.False(t, l.Allow("BTC"))
	now = now.Add(2 * time.Second)
	assert.True(t, l.Allow("BTC"))
	assert.Equal(t, 2, l.Len())
}

func TestBurst(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, 3).WithClock(func() time.Time { return now })
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("quote"))
	}
	assert.False(t, l.Allow("quote"))
}

func TestRetryAfterDoesNotConsume(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := Every(time.Minute, 1).WithClock(func() time.Time { return now })

	assert.Equal(t, time.Duration(0), l.RetryAfter("BTC"))
	assert.True(t, l.Allow("BTC"))
	assert.InDelta(t, time.Minute.Seconds(), l.RetryAfter("BTC").Seconds(), 0.001)

	now = now.Add(30 * time.Second)
	assert.InDelta(t, 30, l.RetryAfter("BTC").Seconds(), 0.001)
	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("BTC"))
}
