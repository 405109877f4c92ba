package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPulse/internal/domain/models"
)

func TestCoefficientFor(t *testing.T) {
	cases := map[float64]float64{
		0:   1.6,
		0.5: 1.6,
		1:   1.5,
		3:   1.4,
		7:   1.3,
		12:  1.2,
		19:  1.1,
		20:  1.0,
		80:  1.0,
	}
	for pct, want := range cases {
		assert.Equal(t, want, CoefficientFor(pct), "pct %v", pct)
	}
}

func TestCoefficientNonIncreasing(t *testing.T) {
	prev := CoefficientFor(0)
	for pct := 0.0; pct <= 100; pct += 0.25 {
		c := CoefficientFor(pct)
		require.LessOrEqual(t, c, prev)
		require.GreaterOrEqual(t, c, MinCoefficient)
		require.LessOrEqual(t, c, MaxCoefficient)
		prev = c
	}
}

func TestBuildBandsAndLookup(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	days := []int{10, 50, 100, 200, 300, 150, 100, 60, 20, 10}
	bands := BuildBands("BTC", 1000, days, now)
	require.Len(t, bands, models.BandCount)
	assert.InDelta(t, 30.0, bands[4].PercentageOfLife, 1e-9)
	assert.Equal(t, 1.0, bands[4].Coefficient)
	assert.Equal(t, 1.5, bands[0].Coefficient)
	assert.Equal(t, models.Band(9), bands[9].Band())

	assert.Equal(t, 1.5, BandCoefficient(bands, 9))
	assert.Equal(t, 1.4, BandCoefficient(nil, 0), "default distribution band 0 is 3%")
	assert.Equal(t, 1.1, BandCoefficient(nil, 4))

	empty := BuildBands("NEW", 0, nil, now)
	assert.Equal(t, CoefficientFor(DefaultDistribution[1]), BandCoefficient(empty, 1))
}

func TestBuildBands_NoTrackedDaysUsesDefaultDistribution(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, days := range [][]int{nil, {}, {0, 0, 0}} {
		bands := BuildBands("ADA", 2930, days, now)
		require.Len(t, bands, models.BandCount)
		assert.False(t, HasHistory(bands))
		for i, b := range bands {
			want := CoefficientFor(DefaultDistribution[i])
			assert.Equal(t, want, b.Coefficient)
			assert.Equal(t, want, BandCoefficient(bands, models.Band(i)))
			assert.Equal(t, 2930, b.TotalDays)
			assert.Zero(t, b.PercentageOfLife)
		}
	}

	// rows persisted with a life age but no day counts
	stale := []models.BandTimeRecord{{BandStart: 0.4, BandEnd: 0.5, TotalDays: 2930}}
	assert.Equal(t, 1.1, BandCoefficient(stale, 4))
}

func TestScoreBoundsAndTradable(t *testing.T) {
	for r := 0.0; r <= 1.0; r += 0.01 {
		for c := MinCoefficient; c <= MaxCoefficient; c += 0.05 {
			s := Score(r, c)
			require.GreaterOrEqual(t, s, 0.0)
			require.LessOrEqual(t, s, 100.0)
			assert.Equal(t, s >= 80, Tradable(s))
		}
	}
}

func TestScoreFormula(t *testing.T) {
	assert.InDelta(t, 80.0, Score(0.1, 1.0), 1e-9)
	assert.InDelta(t, 45.0, Score(0.5, 1.0), 1e-9)
	assert.InDelta(t, 73.3, Score(0.8, 1.0), 1e-9)
	assert.Equal(t, 100.0, Score(0, 1.6))
}

func TestSignalTable(t *testing.T) {
	cases := []struct {
		risk, score float64
		want        models.Signal
	}{
		{0.1, 85, models.SignalStrongBuy},
		{0.5, 85, models.SignalOpportunity},
		{0.8, 85, models.SignalStrongSell},
		{0.1, 65, models.SignalBuy},
		{0.5, 65, models.SignalHold},
		{0.8, 65, models.SignalSell},
		{0.1, 10, models.SignalNeutral},
		{0.5, 59.99, models.SignalNeutral},
		{0.9, 0, models.SignalNeutral},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SignalOf(c.risk, c.score), "risk=%v score=%v", c.risk, c.score)
	}
}

func TestWinRate(t *testing.T) {
	assert.Equal(t, 0.85, WinRate(0))
	assert.Equal(t, 0.85, WinRate(0.19))
	assert.Equal(t, 0.75, WinRate(0.2))
	assert.Equal(t, 0.55, WinRate(0.45))
	assert.Equal(t, 0.25, WinRate(0.79))
	assert.Equal(t, 0.15, WinRate(0.8))
	assert.Equal(t, 0.15, WinRate(1))
	prev := 1.0
	for r := 0.0; r <= 1; r += 0.01 {
		w := WinRate(r)
		require.LessOrEqual(t, w, prev)
		prev = w
	}
}

func TestEvaluate(t *testing.T) {
	sb := models.SymbolBounds{Symbol: "BTC", MinPrice: btcMin, MaxPrice: btcMax}
	a := Evaluate(sb, 94000, 1.0)
	assert.Greater(t, a.RiskValue, 0.4)
	assert.Less(t, a.RiskValue, 0.6)
	assert.Contains(t, []models.Signal{models.SignalHold, models.SignalOpportunity, models.SignalNeutral}, a.Signal)
	assert.Equal(t, "0.4-0.5", a.RiskBand)
}
