package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"RiskPulse/internal/catalog"
	"RiskPulse/internal/domain"
	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	rcache "RiskPulse/internal/service/cache"
	"RiskPulse/internal/services/risk"
	applogger "RiskPulse/pkg/logger"
)

// EngineConfig tunes the orchestrator.
type EngineConfig struct {
	// BoundsTolerance is how far outside [0,1] the last known price may map
	// under proposed bounds before the update is rejected.
	BoundsTolerance  float64
	PersistTimeout   time.Duration
	BatchConcurrency int
	OutcomeWindow    int
	LadderStep       float64
	// HydrateDays is how far back the in-memory outcome window is loaded from the store.
	HydrateDays int
}

func (c *EngineConfig) setDefaults() {
	if c.BoundsTolerance <= 0 {
		c.BoundsTolerance = 0.01
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 8
	}
	if c.OutcomeWindow <= 0 {
		c.OutcomeWindow = 256
	}
	if c.LadderStep <= 0 || c.LadderStep > 1 {
		c.LadderStep = 0.1
	}
	if c.HydrateDays <= 0 {
		c.HydrateDays = 30
	}
}

// Engine orchestrates mapping, scoring, caching and persistence for every
// risk operation. Pure math runs lock-free; per-symbol writes are serialized.
type Engine struct {
	cfg     EngineConfig
	cat     *catalog.Catalog
	cache   *rcache.AssessmentCache
	store   domrepo.Store
	archive domrepo.Archive
	prices  domrepo.PriceSource
	metrics domrepo.Metrics
	writer  *Writer
	l       *applogger.Logger
	now     func() time.Time
	locks   *keyedMutex

	winMu   sync.RWMutex
	windows map[string]*outcomeWindow
}

type outcomeWindow struct {
	loaded   bool
	outcomes []models.Outcome
}

type EngineOption func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithArchive enables the assessment archive.
func WithArchive(a domrepo.Archive) EngineOption {
	return func(e *Engine) { e.archive = a }
}

// WithPriceSource sets the live price collaborator used by AssessLive.
func WithPriceSource(p domrepo.PriceSource) EngineOption {
	return func(e *Engine) { e.prices = p }
}

func WithMetrics(m domrepo.Metrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.l = l
		}
	}
}

// NewEngine wires the orchestrator. writer may be nil, in which case
// best-effort writes run synchronously and their errors are only logged.
func NewEngine(cfg EngineConfig, cat *catalog.Catalog, cache *rcache.AssessmentCache, store domrepo.Store, writer *Writer, opts ...EngineOption) *Engine {
	cfg.setDefaults()
	e := &Engine{
		cfg:     cfg,
		cat:     cat,
		cache:   cache,
		store:   store,
		writer:  writer,
		metrics: NoopMetrics{},
		l:       applogger.Nop(),
		now:     time.Now,
		locks:   newKeyedMutex(),
		windows: make(map[string]*outcomeWindow),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog exposes the symbol catalog for read-only callers such as the CLI.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

func validPrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("%v: %w", price, domain.ErrInvalidPrice)
	}
	return nil
}

func (e *Engine) lookup(symbol string) (models.SymbolBounds, error) {
	sb, ok := e.cat.Get(symbol)
	if !ok {
		return models.SymbolBounds{}, fmt.Errorf("%s: %w", catalog.Normalize(symbol), domain.ErrSymbolNotFound)
	}
	return sb, nil
}

func persistErr(op string, err error) error {
	if errors.Is(err, domain.ErrPersistenceUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistenceUnavailable, err)
}

func (e *Engine) persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.PersistTimeout)
}

// submit hands a best-effort write to the writer. Writes for one symbol keep
// their submission order.
func (e *Engine) submit(kind, symbol string, fn func(ctx context.Context) error) {
	if e.writer != nil {
		e.writer.Submit(WriteJob{Kind: kind, Key: symbol, Fn: fn})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PersistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		e.metrics.RecordError("writer_" + kind)
		e.l.Warn("best-effort write failed", applogger.String("kind", kind), applogger.Error(err))
	}
}

func (e *Engine) invalidate(ctx context.Context, symbol string) {
	if err := e.cache.InvalidateSymbol(ctx, symbol); err != nil {
		e.metrics.RecordError("cache_invalidate")
		e.l.Warn("cache invalidation failed", applogger.String("symbol", symbol), applogger.Error(err))
	}
}

// compute runs the pure pipeline with the symbol's current coefficient.
func (e *Engine) compute(sb models.SymbolBounds, price float64) models.Assessment {
	band := risk.BandOf(risk.RiskOf(price, sb.MinPrice, sb.MaxPrice))
	return risk.Evaluate(sb, price, e.cat.Coefficient(sb.Symbol, band))
}

// Assess evaluates symbol at a caller-supplied price.
func (e *Engine) Assess(ctx context.Context, symbol string, price float64) (models.Assessment, error) {
	if err := validPrice(price); err != nil {
		e.metrics.RecordError("invalid_price")
		return models.Assessment{}, err
	}
	sb, err := e.lookup(symbol)
	if err != nil {
		e.metrics.RecordError("symbol_not_found")
		return models.Assessment{}, err
	}
	return e.assess(ctx, sb, price, models.PriceSupplied), nil
}

// AssessLive evaluates symbol at the live price, or at the geometric mean of
// its bounds when no live price is available.
func (e *Engine) AssessLive(ctx context.Context, symbol string) (models.Assessment, error) {
	sb, err := e.lookup(symbol)
	if err != nil {
		e.metrics.RecordError("symbol_not_found")
		return models.Assessment{}, err
	}
	price, source := e.livePrice(ctx, sb)
	return e.assess(ctx, sb, price, source), nil
}

func (e *Engine) livePrice(ctx context.Context, sb models.SymbolBounds) (float64, models.PriceSourceKind) {
	if e.prices != nil {
		if p, ok := e.prices.CurrentPrice(ctx, sb.Symbol); ok && validPrice(p) == nil {
			e.cat.ObservePrice(sb.Symbol, p)
			return p, models.PriceLive
		}
	}
	e.metrics.RecordError("price_fallback")
	return math.Sqrt(sb.MinPrice * sb.MaxPrice), models.PriceFallback
}

func (e *Engine) assess(ctx context.Context, sb models.SymbolBounds, price float64, source models.PriceSourceKind) models.Assessment {
	start := e.now()
	defer func() { e.metrics.RecordLatency("assess", e.now().Sub(start).Seconds()) }()

	cached, hit, err := e.cache.Get(ctx, sb.Symbol, sb.Revision, price)
	if err != nil {
		e.metrics.RecordError("cache_get")
		e.l.Warn("cache read failed", applogger.String("symbol", sb.Symbol), applogger.Error(err))
	}
	// an entry computed for another price source is recomputed, never relabelled
	hit = hit && cached.PriceSource == source
	e.metrics.RecordCacheResult(hit)
	if hit {
		return cached
	}

	a := e.compute(sb, price)
	a.PriceSource = source
	a.Timestamp = e.now().UTC()

	if err := e.cache.Put(ctx, sb.Symbol, sb.Revision, price, a); err != nil {
		e.metrics.RecordError("cache_put")
		e.l.Warn("cache write failed", applogger.String("symbol", sb.Symbol), applogger.Error(err))
	}
	e.metrics.RecordAssessment(a.Symbol, a.Signal)
	e.metrics.RecordRisk(a.Symbol, a.RiskValue)

	level := models.RiskLevel{
		Symbol:            a.Symbol,
		RiskValue:         a.RiskValue,
		Price:             price,
		CalculatedDate:    a.Timestamp,
		CalculationMethod: models.MethodLogarithmic,
	}
	e.submit("risk_level", a.Symbol, func(ctx context.Context) error {
		return e.store.SaveRiskLevels(ctx, []models.RiskLevel{level})
	})
	if e.archive != nil {
		e.submit("archive", a.Symbol, func(ctx context.Context) error {
			return e.archive.Append(ctx, a)
		})
	}
	return a
}

// BatchItem is one symbol's result in a batch; exactly one of Assessment and Error is set.
type BatchItem struct {
	Symbol     string             `json:"symbol"`
	Assessment *models.Assessment `json:"assessment,omitempty"`
	Error      string             `json:"error,omitempty"`
	Err        error              `json:"-"`
}

// BatchAssess assesses every symbol with bounded parallelism. Symbols with an
// entry in prices use that price; others are assessed live. A failing symbol
// never affects the others. Results keep the input order.
func (e *Engine) BatchAssess(ctx context.Context, symbols []string, prices map[string]float64) []BatchItem {
	out := make([]BatchItem, len(symbols))
	sem := make(chan struct{}, e.cfg.BatchConcurrency)
	var wg sync.WaitGroup

	for i, s := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			item := BatchItem{Symbol: catalog.Normalize(symbol)}
			var (
				a   models.Assessment
				err error
			)
			if err = ctx.Err(); err == nil {
				if p, ok := priceFor(prices, symbol); ok {
					a, err = e.Assess(ctx, symbol, p)
				} else {
					a, err = e.AssessLive(ctx, symbol)
				}
			}
			if err != nil {
				item.Err = err
				item.Error = err.Error()
			} else {
				item.Assessment = &a
			}
			out[i] = item
		}(i, s)
	}
	wg.Wait()
	return out
}

func priceFor(prices map[string]float64, symbol string) (float64, bool) {
	if p, ok := prices[symbol]; ok {
		return p, true
	}
	norm := catalog.Normalize(symbol)
	for k, p := range prices {
		if catalog.Normalize(k) == norm {
			return p, true
		}
	}
	return 0, false
}

// UpdateSymbolBounds persists new bounds with their override audit rows, then
// swaps them into the catalog, invalidates cached assessments and regenerates
// the risk-level ladder.
func (e *Engine) UpdateSymbolBounds(ctx context.Context, symbol string, min, max float64, reason, createdBy string) (models.SymbolBounds, error) {
	if err := catalog.ValidateBounds(min, max); err != nil {
		return models.SymbolBounds{}, fmt.Errorf("%w: %w", domain.ErrInvalidBounds, err)
	}
	symbol = catalog.Normalize(symbol)
	unlock := e.locks.Lock(symbol)
	defer unlock()

	sb, err := e.lookup(symbol)
	if err != nil {
		return models.SymbolBounds{}, err
	}
	if last, ok := e.cat.LastPrice(symbol); ok {
		raw := risk.RawRiskOf(last, min, max)
		if raw < -e.cfg.BoundsTolerance || raw > 1+e.cfg.BoundsTolerance {
			e.metrics.RecordError("invalid_bounds")
			return models.SymbolBounds{}, fmt.Errorf("%w: last price %v maps to risk %.4f under [%v, %v]",
				domain.ErrInvalidBounds, last, raw, min, max)
		}
	}
	if sb.MinPrice == min && sb.MaxPrice == max {
		return sb, nil
	}

	now := e.now().UTC()
	mk := func(t models.OverrideType, value, prev float64) models.ManualOverride {
		return models.ManualOverride{
			Symbol:        symbol,
			OverrideType:  t,
			OverrideValue: value,
			PreviousValue: prev,
			Reason:        reason,
			CreatedBy:     createdBy,
			CreatedAt:     now,
			IsActive:      true,
		}
	}
	var overrides []models.ManualOverride
	if sb.MinPrice != min {
		overrides = append(overrides, mk(models.OverrideMinPrice, min, sb.MinPrice))
	}
	if sb.MaxPrice != max {
		overrides = append(overrides, mk(models.OverrideMaxPrice, max, sb.MaxPrice))
	}

	next := sb
	next.MinPrice, next.MaxPrice = min, max
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	if err := e.store.UpdateBounds(pctx, next, overrides); err != nil {
		e.metrics.RecordError("persist_bounds")
		e.l.Error("bounds update not persisted", applogger.String("symbol", symbol), applogger.Error(err))
		return models.SymbolBounds{}, persistErr("update bounds "+symbol, err)
	}

	updated, err := e.cat.SetBounds(symbol, min, max)
	if err != nil {
		return models.SymbolBounds{}, err
	}
	e.invalidate(ctx, symbol)

	bands := e.cat.Bands(symbol)
	e.submit("bands", symbol, func(ctx context.Context) error {
		return e.store.ReplaceBands(ctx, symbol, bands)
	})
	ladder := e.ladder(updated, e.cfg.LadderStep)
	e.submit("ladder", symbol, func(ctx context.Context) error {
		return e.store.SaveRiskLevels(ctx, ladder)
	})

	e.l.Info("symbol bounds updated",
		applogger.String("symbol", symbol),
		applogger.Float64("min_price", min),
		applogger.Float64("max_price", max),
		applogger.Int64("revision", updated.Revision),
		applogger.String("created_by", createdBy),
	)
	return updated, nil
}

// SetCoefficientOverride records a durable coefficient override applied to every band of symbol.
func (e *Engine) SetCoefficientOverride(ctx context.Context, symbol string, value float64, reason, createdBy string) (models.ManualOverride, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < risk.MinCoefficient || value > risk.MaxCoefficient {
		return models.ManualOverride{}, fmt.Errorf("%w: coefficient %v outside [%v, %v]",
			domain.ErrInvalidBounds, value, risk.MinCoefficient, risk.MaxCoefficient)
	}
	symbol = catalog.Normalize(symbol)
	unlock := e.locks.Lock(symbol)
	defer unlock()

	if _, err := e.lookup(symbol); err != nil {
		return models.ManualOverride{}, err
	}
	prev, _ := e.cat.CoefficientOverride(symbol)
	o := models.ManualOverride{
		Symbol:        symbol,
		OverrideType:  models.OverrideCoefficient,
		OverrideValue: value,
		PreviousValue: prev,
		Reason:        reason,
		CreatedBy:     createdBy,
		CreatedAt:     e.now().UTC(),
		IsActive:      true,
	}
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	id, err := e.store.AppendOverride(pctx, o)
	if err != nil {
		e.metrics.RecordError("persist_override")
		return models.ManualOverride{}, persistErr("coefficient override "+symbol, err)
	}
	o.ID = id

	e.cat.SetCoefficientOverride(symbol, value)
	e.invalidate(ctx, symbol)
	e.l.Info("coefficient override set",
		applogger.String("symbol", symbol),
		applogger.Float64("value", value),
		applogger.String("created_by", createdBy),
	)
	return o, nil
}

// RecordOutcome stores a real price observation with the risk and signal the
// engine assigns to it under the current bounds.
func (e *Engine) RecordOutcome(ctx context.Context, symbol string, price float64, ts time.Time) (models.Outcome, error) {
	if err := validPrice(price); err != nil {
		return models.Outcome{}, err
	}
	sb, err := e.lookup(symbol)
	if err != nil {
		return models.Outcome{}, err
	}
	if ts.IsZero() {
		ts = e.now()
	}
	a := e.compute(sb, price)
	o := models.Outcome{
		Symbol:          sb.Symbol,
		ActualPrice:     price,
		RiskValue:       a.RiskValue,
		PredictedSignal: a.Signal,
		Timestamp:       ts.UTC(),
	}

	// hydrate before appending so the new outcome is not loaded twice
	e.window(ctx, sb.Symbol)

	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	id, err := e.store.AppendOutcome(pctx, o)
	if err != nil {
		e.metrics.RecordError("persist_outcome")
		return models.Outcome{}, persistErr("record outcome "+sb.Symbol, err)
	}
	o.ID = id

	e.remember(o)
	e.cat.ObservePrice(sb.Symbol, price)
	e.metrics.RecordRisk(sb.Symbol, o.RiskValue)
	return o, nil
}

// window returns a copy of the symbol's recent outcomes, loading them from
// the store on first use.
func (e *Engine) window(ctx context.Context, symbol string) []models.Outcome {
	e.winMu.RLock()
	w, ok := e.windows[symbol]
	if ok && w.loaded {
		out := append([]models.Outcome(nil), w.outcomes...)
		e.winMu.RUnlock()
		return out
	}
	e.winMu.RUnlock()

	now := e.now()
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	stored, err := e.store.ListOutcomes(pctx, symbol, now.AddDate(0, 0, -e.cfg.HydrateDays), now)

	e.winMu.Lock()
	defer e.winMu.Unlock()
	w, ok = e.windows[symbol]
	if !ok {
		w = &outcomeWindow{}
		e.windows[symbol] = w
	}
	if err != nil {
		e.l.Debug("outcome window not hydrated", applogger.String("symbol", symbol), applogger.Error(err))
	} else if !w.loaded {
		seen := make(map[int64]struct{}, len(stored))
		for _, o := range stored {
			seen[o.ID] = struct{}{}
		}
		for _, o := range w.outcomes {
			if _, dup := seen[o.ID]; !dup || o.ID == 0 {
				stored = append(stored, o)
			}
		}
		w.outcomes = stored
		if over := len(w.outcomes) - e.cfg.OutcomeWindow; over > 0 {
			w.outcomes = append([]models.Outcome(nil), w.outcomes[over:]...)
		}
		w.loaded = true
	}
	return append([]models.Outcome(nil), w.outcomes...)
}

func (e *Engine) remember(o models.Outcome) {
	e.winMu.Lock()
	defer e.winMu.Unlock()
	w, ok := e.windows[o.Symbol]
	if !ok {
		w = &outcomeWindow{}
		e.windows[o.Symbol] = w
	}
	w.outcomes = append(w.outcomes, o)
	if over := len(w.outcomes) - e.cfg.OutcomeWindow; over > 0 {
		w.outcomes = append([]models.Outcome(nil), w.outcomes[over:]...)
	}
}

// GetAlerts evaluates the alert thresholds for symbol at price. The rapid
// change rule compares the two most recently recorded outcomes, read from the
// store, or from the in-memory window when the store is unavailable.
func (e *Engine) GetAlerts(ctx context.Context, symbol string, price float64) ([]models.Alert, error) {
	if err := validPrice(price); err != nil {
		return nil, err
	}
	sb, err := e.lookup(symbol)
	if err != nil {
		return nil, err
	}
	r := risk.RiskOf(price, sb.MinPrice, sb.MaxPrice)
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	recent, err := e.store.RecentOutcomes(pctx, sb.Symbol, 2)
	if err != nil {
		e.metrics.RecordError("alerts_store")
		e.l.Warn("alerts fall back to in-memory window", applogger.String("symbol", sb.Symbol), applogger.Error(err))
		recent = e.window(ctx, sb.Symbol)
	}
	risks := make([]float64, 0, 2)
	for i := max(0, len(recent)-2); i < len(recent); i++ {
		risks = append(risks, recent[i].RiskValue)
	}
	alerts := risk.EvaluateAlerts(sb.Symbol, price, r, risks, e.now().UTC())
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}

// Momentum summarizes the risk trend over the last windowDays. Outcomes come
// from the store, or from the in-memory window when the store is unavailable.
func (e *Engine) Momentum(ctx context.Context, symbol string, windowDays int) (models.Momentum, error) {
	sb, err := e.lookup(symbol)
	if err != nil {
		return models.Momentum{}, err
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	now := e.now()
	from := now.AddDate(0, 0, -windowDays)

	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	outcomes, err := e.store.ListOutcomes(pctx, sb.Symbol, from, now)
	if err != nil {
		e.metrics.RecordError("momentum_store")
		e.l.Warn("momentum falls back to in-memory window", applogger.String("symbol", sb.Symbol), applogger.Error(err))
		outcomes = outcomes[:0]
		e.winMu.RLock()
		if w, ok := e.windows[sb.Symbol]; ok {
			for _, o := range w.outcomes {
				if !o.Timestamp.Before(from) && !o.Timestamp.After(now) {
					outcomes = append(outcomes, o)
				}
			}
		}
		e.winMu.RUnlock()
	}
	return risk.Momentum(sb.Symbol, windowDays, outcomes), nil
}

// RiskDistribution returns the symbol's band table.
func (e *Engine) RiskDistribution(_ context.Context, symbol string) ([]models.BandTimeRecord, error) {
	sb, err := e.lookup(symbol)
	if err != nil {
		return nil, err
	}
	return e.cat.Bands(sb.Symbol), nil
}

// RiskLevels returns the risk→price ladder for the current bounds.
func (e *Engine) RiskLevels(_ context.Context, symbol string, step float64) ([]models.RiskLevel, error) {
	sb, err := e.lookup(symbol)
	if err != nil {
		return nil, err
	}
	if step <= 0 {
		step = e.cfg.LadderStep
	}
	return e.ladder(sb, step), nil
}

func (e *Engine) ladder(sb models.SymbolBounds, step float64) []models.RiskLevel {
	levels := risk.Ladder(sb.Symbol, sb.MinPrice, sb.MaxPrice, step)
	now := e.now().UTC()
	for i := range levels {
		levels[i].CalculatedDate = now
	}
	return levels
}

// Overrides lists the symbol's override audit trail, oldest first.
func (e *Engine) Overrides(ctx context.Context, symbol string) ([]models.ManualOverride, error) {
	sb, err := e.lookup(symbol)
	if err != nil {
		return nil, err
	}
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	out, err := e.store.ListOverrides(pctx, sb.Symbol)
	if err != nil {
		return nil, persistErr("list overrides "+sb.Symbol, err)
	}
	if out == nil {
		out = []models.ManualOverride{}
	}
	return out, nil
}

// History reads archived assessments, newest first. A zero to means now and a
// zero from means one day before to.
func (e *Engine) History(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Assessment, error) {
	sb, err := e.lookup(symbol)
	if err != nil {
		return nil, err
	}
	if e.archive == nil {
		return []models.Assessment{}, nil
	}
	if to.IsZero() {
		to = e.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if limit <= 0 {
		limit = 500
	}
	out, err := e.archive.History(ctx, sb.Symbol, from, to, limit)
	if err != nil {
		e.metrics.RecordError("archive_history")
		return nil, fmt.Errorf("history %s: %w", sb.Symbol, err)
	}
	return out, nil
}

// Seed writes every catalog symbol, its band table and ladder to the store.
func (e *Engine) Seed(ctx context.Context) error {
	for _, sb := range e.cat.All() {
		if err := e.store.UpsertSymbol(ctx, sb); err != nil {
			return persistErr("seed symbol "+sb.Symbol, err)
		}
		if err := e.store.ReplaceBands(ctx, sb.Symbol, e.cat.Bands(sb.Symbol)); err != nil {
			return persistErr("seed bands "+sb.Symbol, err)
		}
		if err := e.store.SaveRiskLevels(ctx, e.ladder(sb, e.cfg.LadderStep)); err != nil {
			return persistErr("seed ladder "+sb.Symbol, err)
		}
	}
	e.l.Info("catalog seeded into store", applogger.Int("symbols", len(e.cat.Symbols())))
	return nil
}

// Bootstrap seeds an empty store from the catalog, then refreshes the catalog from the store.
func (e *Engine) Bootstrap(ctx context.Context) error {
	syms, err := e.store.LoadSymbols(ctx)
	if err != nil {
		return persistErr("bootstrap", err)
	}
	if len(syms) == 0 {
		if err := e.Seed(ctx); err != nil {
			return err
		}
	}
	_, err = e.RefreshCatalog(ctx)
	return err
}

// RefreshCatalog reloads bounds, bands and active coefficient overrides from
// the store. Symbols whose calibration changed get a new revision and their
// cached assessments dropped. It returns the changed symbols.
func (e *Engine) RefreshCatalog(ctx context.Context) ([]string, error) {
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	stored, err := e.store.LoadSymbols(pctx)
	if err != nil {
		e.metrics.RecordError("catalog_refresh")
		return nil, persistErr("refresh catalog", err)
	}

	var changed []string
	for _, sb := range stored {
		sym := catalog.Normalize(sb.Symbol)
		unlock := e.locks.Lock(sym)
		dirty, err := e.refreshSymbol(pctx, sb)
		unlock()
		if err != nil {
			e.metrics.RecordError("catalog_refresh")
			return changed, persistErr("refresh "+sym, err)
		}
		if dirty {
			changed = append(changed, sym)
			e.invalidate(ctx, sym)
		}
	}
	if len(changed) > 0 {
		e.l.Info("catalog refreshed", applogger.String("changed", strings.Join(changed, ",")))
	}
	return changed, nil
}

func (e *Engine) refreshSymbol(ctx context.Context, sb models.SymbolBounds) (bool, error) {
	sym := catalog.Normalize(sb.Symbol)
	bands, err := e.store.LoadBands(ctx, sym)
	if err != nil {
		return false, err
	}
	overrides, err := e.store.ListOverrides(ctx, sym)
	if err != nil {
		return false, err
	}

	dirty := false
	cur, ok := e.cat.Get(sym)
	if !ok || cur.MinPrice != sb.MinPrice || cur.MaxPrice != sb.MaxPrice || cur.LifeAgeDays != sb.LifeAgeDays {
		e.cat.Replace(sb, bands)
		dirty = true
	} else if len(bands) > 0 && !sameBands(e.cat.Bands(sym), bands) {
		e.cat.Replace(cur, bands)
		dirty = true
	}

	for i := len(overrides) - 1; i >= 0; i-- {
		o := overrides[i]
		if !o.IsActive || o.OverrideType != models.OverrideCoefficient {
			continue
		}
		if v, ok := e.cat.CoefficientOverride(sym); !ok || v != o.OverrideValue {
			e.cat.SetCoefficientOverride(sym, o.OverrideValue)
			dirty = true
		}
		break
	}
	return dirty, nil
}

func sameBands(a, b []models.BandTimeRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].BandStart != b[i].BandStart || a[i].DaysSpent != b[i].DaysSpent || a[i].Coefficient != b[i].Coefficient {
			return false
		}
	}
	return true
}

// Health reports whether the durable store answers.
func (e *Engine) Health(ctx context.Context) error {
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	return e.store.Health(pctx)
}
