package models

import (
	"strconv"
	"time"
)

// BandCount is the number of contiguous risk bands partitioning [0,1].
const BandCount = 10

// SymbolBounds is the per-symbol calibration of the log-scale risk mapping.
type SymbolBounds struct {
	Symbol        string    `json:"symbol" yaml:"symbol" db:"symbol"`
	MinPrice      float64   `json:"min_price" yaml:"min_price" db:"min_price"`
	MaxPrice      float64   `json:"max_price" yaml:"max_price" db:"max_price"`
	InceptionDate time.Time `json:"inception_date" yaml:"inception_date" db:"inception_date"`
	LifeAgeDays   int       `json:"life_age_days" yaml:"life_age_days" db:"life_age_days"`
	Tier          string    `json:"tier" yaml:"tier" db:"tier"`
	// Revision is bumped by the catalog on every accepted bounds change.
	Revision int64 `json:"revision" yaml:"-" db:"-"`
}

// Band identifies one of the ten 0.1-wide risk bands by index 0..9.
type Band int

func (b Band) Start() float64 { return float64(b) / BandCount }

func (b Band) End() float64 { return float64(b+1) / BandCount }

// Label renders the band as "0-0.1", "0.1-0.2", ..., "0.9-1".
func (b Band) Label() string {
	return strconv.FormatFloat(b.Start(), 'f', -1, 64) + "-" + strconv.FormatFloat(b.End(), 'f', -1, 64)
}

// BandTimeRecord is the historical time share of one band for a symbol.
type BandTimeRecord struct {
	Symbol           string    `json:"symbol" db:"symbol"`
	BandStart        float64   `json:"band_start" db:"band_start"`
	BandEnd          float64   `json:"band_end" db:"band_end"`
	DaysSpent        int       `json:"days_spent" db:"days_spent"`
	PercentageOfLife float64   `json:"percentage_of_life" db:"percentage"`
	Coefficient      float64   `json:"coefficient" db:"coefficient"`
	TotalDays        int       `json:"total_days" db:"total_days"`
	LastUpdated      time.Time `json:"last_updated" db:"last_updated"`
}

// Band returns the band index covered by the record.
func (r BandTimeRecord) Band() Band {
	return Band(int(r.BandStart*BandCount + 0.5))
}

// Zone is the coarse qualitative label over a risk value.
type Zone string

const (
	ZoneAccumulation Zone = "accumulation"
	ZoneNeutral      Zone = "neutral"
	ZoneCaution      Zone = "caution"
	ZoneDistribution Zone = "distribution"
)

// Signal is the discrete trading signal derived from risk and score.
type Signal string

const (
	SignalStrongBuy   Signal = "STRONG_BUY"
	SignalBuy         Signal = "BUY"
	SignalHold        Signal = "HOLD"
	SignalSell        Signal = "SELL"
	SignalStrongSell  Signal = "STRONG_SELL"
	SignalOpportunity Signal = "OPPORTUNITY"
	SignalNeutral     Signal = "NEUTRAL"
)

// PriceSourceKind records where the assessed price came from.
type PriceSourceKind string

const (
	PriceSupplied PriceSourceKind = "supplied"
	PriceLive     PriceSourceKind = "live"
	PriceFallback PriceSourceKind = "fallback"
)

// Assessment is the full output of the risk pipeline for one (symbol, price).
type Assessment struct {
	Symbol       string          `json:"symbol"`
	CurrentPrice float64         `json:"current_price"`
	MinPrice     float64         `json:"min_price"`
	MaxPrice     float64         `json:"max_price"`
	RiskValue    float64         `json:"risk_value"`
	RiskBand     string          `json:"risk_band"`
	RiskZone     Zone            `json:"risk_zone"`
	Coefficient  float64         `json:"coefficient"`
	Score        float64         `json:"score"`
	Signal       Signal          `json:"signal"`
	Tradable     bool            `json:"tradable"`
	WinRate      float64         `json:"win_rate"`
	PriceSource  PriceSourceKind `json:"price_source"`
	Timestamp    time.Time       `json:"timestamp"`
}

// RiskLevel is one point of a symbol's risk→price ladder.
type RiskLevel struct {
	Symbol            string    `json:"symbol" db:"symbol"`
	RiskValue         float64   `json:"risk_value" db:"risk_value"`
	Price             float64   `json:"price" db:"price"`
	CalculatedDate    time.Time `json:"calculated_date" db:"calculated_date"`
	CalculationMethod string    `json:"calculation_method" db:"calculation_method"`
}

// MethodLogarithmic tags risk levels produced by the log-scale mapping.
const MethodLogarithmic = "logarithmic"
