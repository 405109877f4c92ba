package repository

import (
	"context"
	"time"

	"RiskPulse/internal/domain/models"
)

// Store is the durable source of truth for bounds, bands, overrides, risk levels and outcomes.
type Store interface {
	Init(ctx context.Context) error // ensure tables/buckets

	LoadSymbols(ctx context.Context) ([]models.SymbolBounds, error)
	UpsertSymbol(ctx context.Context, sb models.SymbolBounds) error
	// UpdateBounds writes the new symbol row and its override audit rows atomically.
	UpdateBounds(ctx context.Context, sb models.SymbolBounds, overrides []models.ManualOverride) error

	LoadBands(ctx context.Context, symbol string) ([]models.BandTimeRecord, error)
	ReplaceBands(ctx context.Context, symbol string, bands []models.BandTimeRecord) error

	SaveRiskLevels(ctx context.Context, levels []models.RiskLevel) error
	LoadRiskLevels(ctx context.Context, symbol string) ([]models.RiskLevel, error)

	AppendOverride(ctx context.Context, o models.ManualOverride) (int64, error)
	ListOverrides(ctx context.Context, symbol string) ([]models.ManualOverride, error)

	AppendOutcome(ctx context.Context, o models.Outcome) (int64, error)
	ListOutcomes(ctx context.Context, symbol string, from, to time.Time) ([]models.Outcome, error)
	// RecentOutcomes returns up to n of the newest outcomes, oldest first.
	RecentOutcomes(ctx context.Context, symbol string, n int) ([]models.Outcome, error)

	Health(ctx context.Context) error
	Close() error
}

// Archive keeps an append-only history of computed assessments for analytics.
type Archive interface {
	Append(ctx context.Context, a models.Assessment) error
	History(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Assessment, error)
}

// PriceSource supplies current market prices. The engine never fetches prices itself.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, bool)
}

// AlertSink delivers alerts produced by the engine.
type AlertSink interface {
	Publish(ctx context.Context, alerts []models.Alert) error
}

type Metrics interface {
	RecordAssessment(symbol string, signal models.Signal)
	RecordCacheResult(hit bool)
	RecordError(kind string)
	RecordRisk(symbol string, risk float64)
	RecordLatency(op string, seconds float64)
}
