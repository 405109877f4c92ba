package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"RiskPulse/internal/domain"
	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	applogger "RiskPulse/pkg/logger"
)

// BreakerSettings tunes the circuit breaker around the store.
type BreakerSettings struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

// BreakerStore guards a Store with a circuit breaker. Every failure, including
// fast-fails while the breaker is open, is reported as ErrPersistenceUnavailable.
type BreakerStore struct {
	next domrepo.Store
	cb   *gobreaker.CircuitBreaker
}

var _ domrepo.Store = (*BreakerStore)(nil)

func NewBreakerStore(next domrepo.Store, s BreakerSettings, l *applogger.Logger) *BreakerStore {
	if s.Name == "" {
		s.Name = "store"
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenRequests == 0 {
		s.HalfOpenRequests = 1
	}
	if l == nil {
		l = applogger.Nop()
	}
	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("store breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// State exposes the breaker state for health reporting.
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

func unavailable(err error) error {
	if errors.Is(err, domain.ErrPersistenceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
}

func call[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		var zero T
		return zero, unavailable(err)
	}
	return v.(T), nil
}

func exec(b *BreakerStore, fn func() error) error {
	_, err := call(b, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func (b *BreakerStore) Init(ctx context.Context) error {
	return exec(b, func() error { return b.next.Init(ctx) })
}

func (b *BreakerStore) LoadSymbols(ctx context.Context) ([]models.SymbolBounds, error) {
	return call(b, func() ([]models.SymbolBounds, error) { return b.next.LoadSymbols(ctx) })
}

func (b *BreakerStore) UpsertSymbol(ctx context.Context, sb models.SymbolBounds) error {
	return exec(b, func() error { return b.next.UpsertSymbol(ctx, sb) })
}

func (b *BreakerStore) UpdateBounds(ctx context.Context, sb models.SymbolBounds, overrides []models.ManualOverride) error {
	return exec(b, func() error { return b.next.UpdateBounds(ctx, sb, overrides) })
}

func (b *BreakerStore) LoadBands(ctx context.Context, symbol string) ([]models.BandTimeRecord, error) {
	return call(b, func() ([]models.BandTimeRecord, error) { return b.next.LoadBands(ctx, symbol) })
}

func (b *BreakerStore) ReplaceBands(ctx context.Context, symbol string, bands []models.BandTimeRecord) error {
	return exec(b, func() error { return b.next.ReplaceBands(ctx, symbol, bands) })
}

func (b *BreakerStore) SaveRiskLevels(ctx context.Context, levels []models.RiskLevel) error {
	return exec(b, func() error { return b.next.SaveRiskLevels(ctx, levels) })
}

func (b *BreakerStore) LoadRiskLevels(ctx context.Context, symbol string) ([]models.RiskLevel, error) {
	return call(b, func() ([]models.RiskLevel, error) { return b.next.LoadRiskLevels(ctx, symbol) })
}

func (b *BreakerStore) AppendOverride(ctx context.Context, o models.ManualOverride) (int64, error) {
	return call(b, func() (int64, error) { return b.next.AppendOverride(ctx, o) })
}

func (b *BreakerStore) ListOverrides(ctx context.Context, symbol string) ([]models.ManualOverride, error) {
	return call(b, func() ([]models.ManualOverride, error) { return b.next.ListOverrides(ctx, symbol) })
}

func (b *BreakerStore) AppendOutcome(ctx context.Context, o models.Outcome) (int64, error) {
	return call(b, func() (int64, error) { return b.next.AppendOutcome(ctx, o) })
}

func (b *BreakerStore) ListOutcomes(ctx context.Context, symbol string, from, to time.Time) ([]models.Outcome, error) {
	return call(b, func() ([]models.Outcome, error) { return b.next.ListOutcomes(ctx, symbol, from, to) })
}

func (b *BreakerStore) RecentOutcomes(ctx context.Context, symbol string, n int) ([]models.Outcome, error) {
	return call(b, func() ([]models.Outcome, error) { return b.next.RecentOutcomes(ctx, symbol, n) })
}

func (b *BreakerStore) Health(ctx context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("%w: breaker open", domain.ErrPersistenceUnavailable)
	}
	return b.next.Health(ctx)
}

func (b *BreakerStore) Close() error {
	return b.next.Close()
}
