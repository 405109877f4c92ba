package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"RiskPulse/internal/domain/models"
)

const (
	ExtremeLowRisk  = 0.1
	LowRisk         = 0.2
	HighRisk        = 0.8
	ExtremeHighRisk = 0.9
	// RapidChangeDelta is the minimum jump between consecutive recorded risks
	// that raises a rapid_change alert.
	RapidChangeDelta = 0.1
)

// EvaluateAlerts applies the threshold rules to risk, emitting at most one
// level alert (the most severe that matches) plus an optional rapid_change
// alert computed from the last two entries of recent.
func EvaluateAlerts(symbol string, price, risk float64, recent []float64, now time.Time) []models.Alert {
	var out []models.Alert
	mk := func(t models.AlertType, sev models.Severity, msg string) models.Alert {
		return models.Alert{
			ID:        uuid.NewString(),
			Symbol:    symbol,
			Type:      t,
			Severity:  sev,
			RiskValue: risk,
			Price:     price,
			Message:   msg,
			CreatedAt: now,
		}
	}

	switch {
	case risk <= ExtremeLowRisk:
		out = append(out, mk(models.AlertExtremeLow, models.SeverityCritical,
			fmt.Sprintf("%s risk %.3f at or below %.1f: extreme accumulation", symbol, risk, ExtremeLowRisk)))
	case risk <= LowRisk:
		out = append(out, mk(models.AlertLow, models.SeverityWarning,
			fmt.Sprintf("%s risk %.3f at or below %.1f", symbol, risk, LowRisk)))
	case risk >= ExtremeHighRisk:
		out = append(out, mk(models.AlertExtremeHigh, models.SeverityCritical,
			fmt.Sprintf("%s risk %.3f at or above %.1f: extreme distribution", symbol, risk, ExtremeHighRisk)))
	case risk >= HighRisk:
		out = append(out, mk(models.AlertHigh, models.SeverityWarning,
			fmt.Sprintf("%s risk %.3f at or above %.1f", symbol, risk, HighRisk)))
	}

	if n := len(recent); n >= 2 {
		delta := recent[n-1] - recent[n-2]
		if math.Abs(delta) > RapidChangeDelta {
			a := mk(models.AlertRapidChange, models.SeverityWarning,
				fmt.Sprintf("%s risk moved %+.3f between the last two observations", symbol, delta))
			out = append(out, a)
		}
	}
	return out
}
