package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"RiskPulse/internal/domain/models"
	pkgcache "RiskPulse/pkg/cache"
)

const (
	keyPrefix = "assess"
	// PricePlaces is the decimal precision used to key prices.
	PricePlaces = 8
	DefaultTTL  = 5 * time.Minute
)

type entry struct {
	Assessment models.Assessment `json:"assessment"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// AssessmentCache memoizes (symbol, revision, price) → Assessment with a strict TTL.
type AssessmentCache struct {
	store pkgcache.Service
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*AssessmentCache)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *AssessmentCache) { c.now = now }
}

func NewAssessmentCache(store pkgcache.Service, ttl time.Duration, opts ...Option) *AssessmentCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &AssessmentCache{store: store, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key renders the cache key; price is rounded so float noise does not fragment entries.
func Key(symbol string, revision int64, price float64) string {
	p := decimal.NewFromFloat(price).Round(PricePlaces).String()
	return pkgcache.GenerateKey(keyPrefix, symbol, fmt.Sprintf("r%d", revision), p)
}

// Get returns the cached assessment. Backend errors are reported as misses alongside the error.
func (c *AssessmentCache) Get(ctx context.Context, symbol string, revision int64, price float64) (models.Assessment, bool, error) {
	var e entry
	if err := c.store.Get(ctx, Key(symbol, revision, price), &e); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return models.Assessment{}, false, nil
		}
		return models.Assessment{}, false, err
	}
	if !c.now().Before(e.ExpiresAt) {
		return models.Assessment{}, false, nil
	}
	return e.Assessment, true, nil
}

// Put stores a freshly computed assessment for the TTL window.
func (c *AssessmentCache) Put(ctx context.Context, symbol string, revision int64, price float64, a models.Assessment) error {
	e := entry{Assessment: a, ExpiresAt: c.now().Add(c.ttl)}
	return c.store.Set(ctx, Key(symbol, revision, price), e, c.ttl)
}

// InvalidateSymbol drops every cached assessment of symbol across revisions.
func (c *AssessmentCache) InvalidateSymbol(ctx context.Context, symbol string) error {
	return c.store.DeleteByPattern(ctx, pkgcache.BuildPattern(pkgcache.GenerateKey(keyPrefix, symbol, "")))
}

// TTL returns the configured entry lifetime.
func (c *AssessmentCache) TTL() time.Duration { return c.ttl }
