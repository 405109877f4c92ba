package risk

import (
	"sort"

	"RiskPulse/internal/domain/models"
)

// TrendThreshold is the absolute slope beyond which risk is considered trending.
const TrendThreshold = 0.01

// Momentum fits an OLS line to risk over the time-ordered sample index.
// Fewer than two outcomes yields TrendInsufficientData with zero numbers.
func Momentum(symbol string, windowDays int, outcomes []models.Outcome) models.Momentum {
	m := models.Momentum{Symbol: symbol, WindowDays: windowDays, Samples: len(outcomes)}
	if len(outcomes) < 2 {
		m.Trend = models.TrendInsufficientData
		return m
	}
	xs := make([]models.Outcome, len(outcomes))
	copy(xs, outcomes)
	sort.SliceStable(xs, func(i, j int) bool { return xs[i].Timestamp.Before(xs[j].Timestamp) })

	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i, o := range xs {
		x := float64(i)
		sumX += x
		sumY += o.RiskValue
		sumXY += x * o.RiskValue
		sumXX += x * x
	}
	if den := n*sumXX - sumX*sumX; den != 0 {
		m.Slope = (n*sumXY - sumX*sumY) / den
	}

	first, last := xs[0], xs[len(xs)-1]
	m.RiskChange = last.RiskValue - first.RiskValue
	if days := last.Timestamp.Sub(first.Timestamp).Hours() / 24; days > 0 {
		m.Velocity = m.RiskChange / days
	}

	switch {
	case m.Slope > TrendThreshold:
		m.Trend = models.TrendIncreasing
	case m.Slope < -TrendThreshold:
		m.Trend = models.TrendDecreasing
	default:
		m.Trend = models.TrendNeutral
	}
	return m
}
