package models

// Requests for risk HTTP endpoints. Defined in domain for consistency and reuse.

// Price is nil when omitted; an explicit value is always validated by the engine.
type AssessRequest struct {
	Symbol string   `query:"symbol" json:"symbol" validate:"required"`
	Price  *float64 `query:"price" json:"price,omitempty"`
}

type BatchAssessRequest struct {
	Symbols []string           `json:"symbols" validate:"required,min=1,max=200,dive,required"`
	Prices  map[string]float64 `json:"prices"`
}

type UpdateBoundsRequest struct {
	Symbol    string  `json:"symbol" validate:"required"`
	MinPrice  float64 `json:"min_price" validate:"gt=0"`
	MaxPrice  float64 `json:"max_price" validate:"gtfield=MinPrice"`
	Reason    string  `json:"reason" validate:"required,max=500"`
	CreatedBy string  `json:"created_by" default:"api" validate:"max=100"`
}

type CoefficientOverrideRequest struct {
	Symbol    string  `json:"symbol" validate:"required"`
	Value     float64 `json:"value" validate:"gte=1,lte=1.6"`
	Reason    string  `json:"reason" validate:"required,max=500"`
	CreatedBy string  `json:"created_by" default:"api" validate:"max=100"`
}

type RecordOutcomeRequest struct {
	Symbol      string  `json:"symbol" validate:"required"`
	ActualPrice float64 `json:"actual_price" validate:"gt=0"`
	Timestamp   string  `json:"timestamp"`
}

type AlertsRequest struct {
	Symbol string   `query:"symbol" json:"symbol" validate:"required"`
	Price  *float64 `query:"price" json:"price,omitempty"`
}

type MomentumRequest struct {
	Symbol     string `query:"symbol" json:"symbol" validate:"required"`
	WindowDays int    `query:"window_days" json:"window_days" default:"30" validate:"gte=1,lte=3650"`
}

type SymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type RiskLevelsRequest struct {
	Symbol string  `query:"symbol" json:"symbol" validate:"required"`
	Step   float64 `query:"step" json:"step" default:"0.1" validate:"gt=0,lte=0.5"`
}

type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}
