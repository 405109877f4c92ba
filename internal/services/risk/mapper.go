package risk

import (
	"math"

	"RiskPulse/internal/domain/models"
)

// RiskOf maps price onto [0,1] by its log position between min and max.
// Callers must ensure 0 < min < max.
func RiskOf(price, min, max float64) float64 {
	if price <= min {
		return 0
	}
	if price >= max {
		return 1
	}
	return clamp(RawRiskOf(price, min, max), 0, 1)
}

// RawRiskOf is the unclamped log position of price; values outside [0,1]
// mean the price lies outside the bounds.
func RawRiskOf(price, min, max float64) float64 {
	lmin := math.Log(min)
	return (math.Log(price) - lmin) / (math.Log(max) - lmin)
}

// PriceOf is the inverse of RiskOf.
func PriceOf(risk, min, max float64) float64 {
	if risk <= 0 {
		return min
	}
	if risk >= 1 {
		return max
	}
	lmin := math.Log(min)
	return math.Exp(lmin + risk*(math.Log(max)-lmin))
}

// BandOf returns the band containing risk; the last band is closed on both ends.
func BandOf(risk float64) models.Band {
	if risk <= 0 {
		return 0
	}
	idx := int(math.Floor(risk * models.BandCount))
	if idx >= models.BandCount {
		idx = models.BandCount - 1
	}
	return models.Band(idx)
}

func ZoneOf(risk float64) models.Zone {
	switch {
	case risk < 0.3:
		return models.ZoneAccumulation
	case risk < 0.5:
		return models.ZoneNeutral
	case risk < 0.7:
		return models.ZoneCaution
	default:
		return models.ZoneDistribution
	}
}

// Ladder returns the risk→price levels 0, step, 2*step, ..., 1 for the bounds.
func Ladder(symbol string, min, max, step float64) []models.RiskLevel {
	if step <= 0 || step > 1 {
		step = 0.1
	}
	out := make([]models.RiskLevel, 0, int(math.Ceil(1/step))+1)
	level := func(r float64) models.RiskLevel {
		return models.RiskLevel{
			Symbol:            symbol,
			RiskValue:         r,
			Price:             PriceOf(r, min, max),
			CalculationMethod: models.MethodLogarithmic,
		}
	}
	for i := 0; ; i++ {
		r := roundTo(float64(i)*step, 6)
		if r >= 1 {
			break
		}
		out = append(out, level(r))
	}
	out = append(out, level(1))
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
