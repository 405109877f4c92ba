package models

import "time"

// Outcome is a recorded real-world price observation.
type Outcome struct {
	ID              int64     `json:"id" db:"id"`
	Symbol          string    `json:"symbol" db:"symbol"`
	ActualPrice     float64   `json:"actual_price" db:"actual_value"`
	RiskValue       float64   `json:"risk_value" db:"risk_value"`
	PredictedSignal Signal    `json:"predicted_signal" db:"predicted_signal"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
}

// Trend is the direction of risk over a momentum window.
type Trend string

const (
	TrendIncreasing       Trend = "increasing"
	TrendDecreasing       Trend = "decreasing"
	TrendNeutral          Trend = "neutral"
	TrendInsufficientData Trend = "insufficient_data"
)

// Momentum summarizes how a symbol's risk evolved over a window of outcomes.
type Momentum struct {
	Symbol     string  `json:"symbol"`
	WindowDays int     `json:"window_days"`
	Samples    int     `json:"samples"`
	Slope      float64 `json:"slope"`
	Velocity   float64 `json:"velocity"`
	Trend      Trend   `json:"trend"`
	RiskChange float64 `json:"risk_change"`
}
