package models

import "time"

type AlertType string

const (
	AlertExtremeLow  AlertType = "extreme_low"
	AlertLow         AlertType = "low"
	AlertHigh        AlertType = "high"
	AlertExtremeHigh AlertType = "extreme_high"
	AlertRapidChange AlertType = "rapid_change"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a value object produced by rule evaluation; delivery happens elsewhere.
type Alert struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Type      AlertType `json:"type"`
	Severity  Severity  `json:"severity"`
	RiskValue float64   `json:"risk_value"`
	Price     float64   `json:"price"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
