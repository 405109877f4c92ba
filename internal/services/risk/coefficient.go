package risk

import (
	"time"

	"RiskPulse/internal/domain/models"
)

const (
	MinCoefficient = 1.0
	MaxCoefficient = 1.6
)

// coefficientSteps maps an upper percentage bound (exclusive) to a coefficient.
var coefficientSteps = []struct {
	below float64
	coef  float64
}{
	{1, 1.6},
	{2, 1.5},
	{5, 1.4},
	{10, 1.3},
	{15, 1.2},
	{20, 1.1},
}

// DefaultDistribution is the percentage of life per band used when a symbol
// has no historical band records.
var DefaultDistribution = [models.BandCount]float64{3, 8, 12, 15, 18, 16, 12, 8, 5, 3}

// CoefficientFor converts a band's share of the symbol's life into a rarity weight.
func CoefficientFor(percentage float64) float64 {
	for _, s := range coefficientSteps {
		if percentage < s.below {
			return s.coef
		}
	}
	return MinCoefficient
}

// BuildBands derives the ten band records from per-band day counts.
// Without tracked days (zero life age or no day counts) the coefficients come
// from DefaultDistribution and the percentages stay zero.
func BuildBands(symbol string, lifeAgeDays int, daysPerBand []int, now time.Time) []models.BandTimeRecord {
	tracked := 0
	for i := 0; i < models.BandCount && i < len(daysPerBand); i++ {
		if daysPerBand[i] > 0 {
			tracked += daysPerBand[i]
		}
	}
	history := lifeAgeDays > 0 && tracked > 0

	out := make([]models.BandTimeRecord, 0, models.BandCount)
	for i := 0; i < models.BandCount; i++ {
		b := models.Band(i)
		days := 0
		if i < len(daysPerBand) && daysPerBand[i] > 0 {
			days = daysPerBand[i]
		}
		rec := models.BandTimeRecord{
			Symbol:      symbol,
			BandStart:   b.Start(),
			BandEnd:     b.End(),
			DaysSpent:   days,
			TotalDays:   lifeAgeDays,
			LastUpdated: now,
		}
		if history {
			rec.PercentageOfLife = float64(days) / float64(lifeAgeDays) * 100
			rec.Coefficient = CoefficientFor(rec.PercentageOfLife)
		} else {
			rec.Coefficient = CoefficientFor(DefaultDistribution[i])
		}
		out = append(out, rec)
	}
	return out
}

// HasHistory reports whether records carry tracked days against a known life age.
func HasHistory(records []models.BandTimeRecord) bool {
	for _, r := range records {
		if r.TotalDays > 0 && r.DaysSpent > 0 {
			return true
		}
	}
	return false
}

// BandCoefficient looks up the coefficient for band in the symbol's records,
// falling back to DefaultDistribution when the records carry no history.
func BandCoefficient(records []models.BandTimeRecord, band models.Band) float64 {
	if HasHistory(records) {
		for _, r := range records {
			if r.Band() == band {
				return CoefficientFor(r.PercentageOfLife)
			}
		}
	}
	return CoefficientFor(DefaultDistribution[band])
}

// ClampCoefficient bounds an externally supplied coefficient.
func ClampCoefficient(c float64) float64 {
	return clamp(c, MinCoefficient, MaxCoefficient)
}
