package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPulse/internal/domain/models"
	pkgcache "RiskPulse/pkg/cache"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newCache(t *testing.T, clk *clock) *AssessmentCache {
	mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryClock(clk.Now), pkgcache.WithMemoryCleanup(time.Hour))
	t.Cleanup(func() { _ = mem.Close() })
	return NewAssessmentCache(pkgcache.NewLayeredCache(mem, nil), time.Minute, WithClock(clk.Now))
}

func TestKeyRounding(t *testing.T) {
	assert.Equal(t, "assess:BTC:r3:94000", Key("BTC", 3, 94000))
	assert.Equal(t, Key("BTC", 1, 0.1+0.2), Key("BTC", 1, 0.3))
	assert.NotEqual(t, Key("BTC", 1, 100), Key("BTC", 2, 100))
}

func TestPutGetWithinTTL(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := newCache(t, clk)

	a := models.Assessment{Symbol: "BTC", CurrentPrice: 94000, RiskValue: 0.496, Timestamp: clk.Now()}
	require.NoError(t, c.Put(ctx, "BTC", 1, 94000, a))

	got, ok, err := c.Get(ctx, "BTC", 1, 94000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a, got)

	_, ok, _ = c.Get(ctx, "BTC", 2, 94000)
	assert.False(t, ok, "other revision must miss")

	clk.Advance(time.Minute)
	_, ok, err = c.Get(ctx, "BTC", 1, 94000)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidateSymbol(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Now()}
	c := newCache(t, clk)

	require.NoError(t, c.Put(ctx, "BTC", 1, 1, models.Assessment{Symbol: "BTC"}))
	require.NoError(t, c.Put(ctx, "BTC", 2, 2, models.Assessment{Symbol: "BTC"}))
	require.NoError(t, c.Put(ctx, "ETH", 3, 1, models.Assessment{Symbol: "ETH"}))

	require.NoError(t, c.InvalidateSymbol(ctx, "BTC"))

	_, ok, _ := c.Get(ctx, "BTC", 1, 1)
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "BTC", 2, 2)
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "ETH", 3, 1)
	assert.True(t, ok)
}
