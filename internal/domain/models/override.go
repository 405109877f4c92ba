package models

import "time"

// OverrideType names the field a manual override changes.
type OverrideType string

const (
	OverrideMinPrice    OverrideType = "min_price"
	OverrideMaxPrice    OverrideType = "max_price"
	OverrideCoefficient OverrideType = "coefficient"
)

// Valid reports whether t is a known override type.
func (t OverrideType) Valid() bool {
	switch t {
	case OverrideMinPrice, OverrideMaxPrice, OverrideCoefficient:
		return true
	default:
		return false
	}
}

// ManualOverride is an append-only audit row. A newer override of the same
// (symbol, type) deactivates the previous one.
type ManualOverride struct {
	ID            int64        `json:"id" db:"id"`
	Symbol        string       `json:"symbol" db:"symbol"`
	OverrideType  OverrideType `json:"override_type" db:"override_type"`
	OverrideValue float64      `json:"override_value" db:"override_value"`
	PreviousValue float64      `json:"previous_value" db:"previous_value"`
	Reason        string       `json:"reason" db:"reason"`
	CreatedBy     string       `json:"created_by" db:"created_by"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	IsActive      bool         `json:"is_active" db:"is_active"`
}
