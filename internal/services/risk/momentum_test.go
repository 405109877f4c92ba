package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"RiskPulse/internal/domain/models"
)

func outcomesAt(start time.Time, step time.Duration, risks ...float64) []models.Outcome {
	out := make([]models.Outcome, len(risks))
	for i, r := range risks {
		out[i] = models.Outcome{Symbol: "BTC", RiskValue: r, Timestamp: start.Add(time.Duration(i) * step)}
	}
	return out
}

func TestMomentumInsufficient(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := Momentum("BTC", 30, outcomesAt(start, time.Hour, 0.4))
	assert.Equal(t, models.TrendInsufficientData, m.Trend)
	assert.Zero(t, m.Slope)
	assert.Zero(t, m.Velocity)
	assert.Zero(t, m.RiskChange)
}

func TestMomentumIncreasing(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := Momentum("BTC", 30, outcomesAt(start, 24*time.Hour, 0.2, 0.25, 0.3, 0.35))
	assert.Equal(t, models.TrendIncreasing, m.Trend)
	assert.InDelta(t, 0.05, m.Slope, 1e-12)
	assert.InDelta(t, 0.15, m.RiskChange, 1e-12)
	assert.InDelta(t, 0.05, m.Velocity, 1e-12)
	assert.Equal(t, 4, m.Samples)
}

func TestMomentumOrdersByTimestamp(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	xs := outcomesAt(start, 24*time.Hour, 0.8, 0.6, 0.4)
	xs[0], xs[2] = xs[2], xs[0]
	m := Momentum("BTC", 30, xs)
	assert.Equal(t, models.TrendDecreasing, m.Trend)
	assert.InDelta(t, -0.4, m.RiskChange, 1e-12)
}

func TestMomentumNeutral(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m := Momentum("BTC", 7, outcomesAt(start, time.Hour, 0.5, 0.505, 0.5, 0.505))
	assert.Equal(t, models.TrendNeutral, m.Trend)
}
