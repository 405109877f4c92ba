package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPulse/internal/domain"
	"RiskPulse/internal/domain/models"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	btc, ok := c.Get("btc")
	require.True(t, ok)
	assert.Equal(t, 30001.0, btc.MinPrice)
	assert.Equal(t, 299720.0, btc.MaxPrice)
	assert.Positive(t, btc.Revision)
	assert.Contains(t, c.Symbols(), "ETH")

	bands := c.Bands("BTC")
	require.Len(t, bands, models.BandCount)
	for _, b := range bands {
		assert.Greater(t, b.BandEnd, b.BandStart)
		assert.GreaterOrEqual(t, b.Coefficient, 1.0)
		assert.LessOrEqual(t, b.Coefficient, 1.6)
	}
}

func TestParseRejectsBadEntries(t *testing.T) {
	_, err := Parse([]byte("symbols:\n  - symbol: X\n    min_price: 10\n    max_price: 5\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("symbols:\n  - symbol: X\n    min_price: 1\n    max_price: 5\n  - symbol: x\n    min_price: 1\n    max_price: 5\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = Parse([]byte("symbols:\n  - min_price: 1\n    max_price: 5\n"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbols:\n  - symbol: abc\n    min_price: 1\n    max_price: 100\n    life_age_days: 0\n"), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	sb, ok := c.Get("ABC")
	require.True(t, ok)
	assert.Equal(t, "ABC", sb.Symbol)
	// zero life age falls back to the default distribution
	assert.Equal(t, 1.1, c.Coefficient("ABC", 4))
}

func TestSetBoundsBumpsRevision(t *testing.T) {
	c := New()
	first := c.Put(models.SymbolBounds{Symbol: "BTC", MinPrice: 1, MaxPrice: 10, LifeAgeDays: 100}, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 55})
	updated, err := c.SetBounds("BTC", 2, 20)
	require.NoError(t, err)
	assert.Greater(t, updated.Revision, first.Revision)
	assert.Equal(t, 2.0, updated.MinPrice)
	assert.Equal(t, 55, c.Bands("BTC")[9].DaysSpent)

	_, err = c.SetBounds("NOPE", 1, 2)
	assert.True(t, errors.Is(err, domain.ErrSymbolNotFound))
}

func TestCoefficientOverride(t *testing.T) {
	c := New()
	c.Put(models.SymbolBounds{Symbol: "BTC", MinPrice: 1, MaxPrice: 10}, nil)
	c.SetCoefficientOverride("BTC", 1.45)
	assert.Equal(t, 1.45, c.Coefficient("BTC", 0))
	assert.Equal(t, 1.45, c.Coefficient("BTC", 9))
	c.SetCoefficientOverride("BTC", 3)
	assert.Equal(t, 1.6, c.Coefficient("BTC", 2))
}

func TestBandsReturnsCopy(t *testing.T) {
	c := New()
	c.Put(models.SymbolBounds{Symbol: "BTC", MinPrice: 1, MaxPrice: 10, LifeAgeDays: 10}, []int{10})
	b := c.Bands("BTC")
	b[0].DaysSpent = 999
	assert.Equal(t, 10, c.Bands("BTC")[0].DaysSpent)
}

func TestValidateBounds(t *testing.T) {
	assert.NoError(t, ValidateBounds(1, 2))
	assert.Error(t, ValidateBounds(0, 2))
	assert.Error(t, ValidateBounds(2, 2))
}

func TestCoefficientOverrideBumpsRevision(t *testing.T) {
	c := New()
	before := c.Put(models.SymbolBounds{Symbol: "ETH", MinPrice: 100, MaxPrice: 10000}, nil)
	c.SetCoefficientOverride("eth", 1.2)
	after, ok := c.Get("ETH")
	require.True(t, ok)
	assert.Greater(t, after.Revision, before.Revision)
	v, ok := c.CoefficientOverride("ETH")
	require.True(t, ok)
	assert.Equal(t, 1.2, v)
}

func TestReplaceKeepsBandsWhenEmpty(t *testing.T) {
	c := New()
	c.Put(models.SymbolBounds{Symbol: "BTC", MinPrice: 1, MaxPrice: 10, LifeAgeDays: 10}, []int{10})
	sb := c.Replace(models.SymbolBounds{Symbol: "btc", MinPrice: 2, MaxPrice: 20, LifeAgeDays: 10}, nil)
	assert.Equal(t, "BTC", sb.Symbol)
	assert.Equal(t, 10, c.Bands("BTC")[0].DaysSpent)

	c.Replace(models.SymbolBounds{Symbol: "NEW", MinPrice: 1, MaxPrice: 2}, nil)
	assert.Len(t, c.Bands("NEW"), models.BandCount)
}
