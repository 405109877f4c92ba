package risk

import (
	"fmt"

	"RiskPulse/internal/domain/models"
)

// TradableScore is the minimum score at which a position is considered tradable.
const TradableScore = 80.0

// Score combines risk and coefficient into a 0..100 tradability score.
// The neutral band between 0.3 and 0.7 is deliberately scored low.
func Score(risk, coefficient float64) float64 {
	var base float64
	switch {
	case risk < 0.3:
		base = 90 - risk*100
	case risk > 0.7:
		base = 60 + (risk-0.7)*133
	default:
		base = 30 + (risk-0.3)*75
	}
	return clamp(base*coefficient, 0, 100)
}

type scoreTier int

const (
	tierStrong scoreTier = iota
	tierModerate
	tierWeak
)

type riskSide int

const (
	sideLow riskSide = iota
	sideMid
	sideHigh
)

func tierOf(score float64) scoreTier {
	switch {
	case score >= TradableScore:
		return tierStrong
	case score >= 60:
		return tierModerate
	default:
		return tierWeak
	}
}

func sideOf(risk float64) riskSide {
	switch {
	case risk < 0.3:
		return sideLow
	case risk > 0.7:
		return sideHigh
	default:
		return sideMid
	}
}

// SignalOf maps (risk, score) to a trading signal.
func SignalOf(risk, score float64) models.Signal {
	tier, side := tierOf(score), sideOf(risk)
	switch tier {
	case tierStrong:
		switch side {
		case sideLow:
			return models.SignalStrongBuy
		case sideHigh:
			return models.SignalStrongSell
		case sideMid:
			return models.SignalOpportunity
		}
	case tierModerate:
		switch side {
		case sideLow:
			return models.SignalBuy
		case sideHigh:
			return models.SignalSell
		case sideMid:
			return models.SignalHold
		}
	case tierWeak:
		return models.SignalNeutral
	}
	panic(fmt.Sprintf("risk: unhandled signal tier=%d side=%d", tier, side))
}

var winRateSteps = []struct {
	below float64
	rate  float64
}{
	{0.2, 0.85},
	{0.3, 0.75},
	{0.4, 0.65},
	{0.5, 0.55},
	{0.6, 0.45},
	{0.7, 0.35},
	{0.8, 0.25},
}

// WinRate is the historical heuristic probability of a favorable outcome at risk.
func WinRate(risk float64) float64 {
	for _, s := range winRateSteps {
		if risk < s.below {
			return s.rate
		}
	}
	return 0.15
}

// Tradable reports whether score clears the tradability threshold.
func Tradable(score float64) bool { return score >= TradableScore }

// Evaluate runs the full pure pipeline for one price.
func Evaluate(sb models.SymbolBounds, price, coefficient float64) models.Assessment {
	r := RiskOf(price, sb.MinPrice, sb.MaxPrice)
	score := Score(r, coefficient)
	return models.Assessment{
		Symbol:       sb.Symbol,
		CurrentPrice: price,
		MinPrice:     sb.MinPrice,
		MaxPrice:     sb.MaxPrice,
		RiskValue:    r,
		RiskBand:     BandOf(r).Label(),
		RiskZone:     ZoneOf(r),
		Coefficient:  coefficient,
		Score:        score,
		Signal:       SignalOf(r, score),
		Tradable:     Tradable(score),
		WinRate:      WinRate(r),
	}
}
