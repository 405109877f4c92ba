package catalog

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"RiskPulse/internal/domain"
	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/risk"
)

//go:embed symbols.yaml
var defaultSymbols []byte

// Entry is one symbol as written in the catalog YAML.
type Entry struct {
	models.SymbolBounds `yaml:",inline"`
	BandDays            []int `yaml:"band_days"`
}

type file struct {
	Symbols []Entry `yaml:"symbols"`
}

// Normalize returns the canonical catalog key for a symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Catalog holds the per-symbol bounds, band tables and coefficient overrides.
// It is read-mostly; readers always receive copies.
type Catalog struct {
	mu        sync.RWMutex
	symbols   map[string]models.SymbolBounds
	bands     map[string][]models.BandTimeRecord
	coef      map[string]float64
	lastPrice map[string]float64
	revision  int64
	now       func() time.Time
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		symbols:   make(map[string]models.SymbolBounds),
		bands:     make(map[string][]models.BandTimeRecord),
		coef:      make(map[string]float64),
		lastPrice: make(map[string]float64),
		now:       time.Now,
	}
}

// Load builds a catalog from path, or from the embedded defaults when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultSymbols
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c := New()
	for _, e := range entries {
		c.Put(e.SymbolBounds, e.BandDays)
	}
	return c, nil
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) ([]Entry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Symbols))
	for i := range f.Symbols {
		e := &f.Symbols[i]
		e.Symbol = Normalize(e.Symbol)
		if e.Symbol == "" {
			return nil, fmt.Errorf("catalog entry %d: symbol is required", i)
		}
		if _, dup := seen[e.Symbol]; dup {
			return nil, fmt.Errorf("catalog: duplicate symbol %s", e.Symbol)
		}
		seen[e.Symbol] = struct{}{}
		if err := ValidateBounds(e.MinPrice, e.MaxPrice); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", e.Symbol, err)
		}
		if e.LifeAgeDays < 0 {
			return nil, fmt.Errorf("catalog %s: life_age_days must be >= 0", e.Symbol)
		}
		if len(e.BandDays) > models.BandCount {
			return nil, fmt.Errorf("catalog %s: band_days has %d entries, want at most %d", e.Symbol, len(e.BandDays), models.BandCount)
		}
	}
	return f.Symbols, nil
}

// ValidateBounds checks 0 < min < max with both finite.
func ValidateBounds(min, max float64) error {
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return fmt.Errorf("bounds must be finite")
	}
	if min <= 0 {
		return fmt.Errorf("min_price must be > 0")
	}
	if max <= min {
		return fmt.Errorf("max_price must be > min_price")
	}
	return nil
}

// Put inserts or replaces a symbol and derives its band table from bandDays.
// It returns the stored bounds with their new revision.
func (c *Catalog) Put(sb models.SymbolBounds, bandDays []int) models.SymbolBounds {
	sb.Symbol = Normalize(sb.Symbol)
	bands := risk.BuildBands(sb.Symbol, sb.LifeAgeDays, bandDays, c.now().UTC())
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revision++
	sb.Revision = c.revision
	c.symbols[sb.Symbol] = sb
	c.bands[sb.Symbol] = bands
	return sb
}

// SetBounds replaces min/max of an existing symbol and bumps its revision.
// Band day counts are preserved and percentages recomputed.
func (c *Catalog) SetBounds(symbol string, min, max float64) (models.SymbolBounds, error) {
	symbol = Normalize(symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	sb, ok := c.symbols[symbol]
	if !ok {
		return models.SymbolBounds{}, fmt.Errorf("%s: %w", symbol, domain.ErrSymbolNotFound)
	}
	c.revision++
	sb.MinPrice, sb.MaxPrice, sb.Revision = min, max, c.revision
	c.symbols[symbol] = sb
	c.bands[symbol] = risk.BuildBands(symbol, sb.LifeAgeDays, daysOf(c.bands[symbol]), c.now().UTC())
	return sb, nil
}

// Replace installs bounds and a stored band table as-is and bumps the revision.
// An empty band table keeps the current one.
func (c *Catalog) Replace(sb models.SymbolBounds, bands []models.BandTimeRecord) models.SymbolBounds {
	sb.Symbol = Normalize(sb.Symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revision++
	sb.Revision = c.revision
	c.symbols[sb.Symbol] = sb
	if len(bands) > 0 {
		c.bands[sb.Symbol] = append([]models.BandTimeRecord(nil), bands...)
	} else if _, ok := c.bands[sb.Symbol]; !ok {
		c.bands[sb.Symbol] = risk.BuildBands(sb.Symbol, sb.LifeAgeDays, nil, c.now().UTC())
	}
	return sb
}

// SetBands replaces the band table of a symbol, typically from the store.
func (c *Catalog) SetBands(symbol string, bands []models.BandTimeRecord) {
	symbol = Normalize(symbol)
	cp := make([]models.BandTimeRecord, len(bands))
	copy(cp, bands)
	c.mu.Lock()
	c.bands[symbol] = cp
	c.mu.Unlock()
}

// Get returns a copy of the symbol's bounds.
func (c *Catalog) Get(symbol string) (models.SymbolBounds, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sb, ok := c.symbols[Normalize(symbol)]
	return sb, ok
}

// Symbols lists known symbols in sorted order.
func (c *Catalog) Symbols() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// All returns every symbol's bounds sorted by symbol.
func (c *Catalog) All() []models.SymbolBounds {
	c.mu.RLock()
	out := make([]models.SymbolBounds, 0, len(c.symbols))
	for _, sb := range c.symbols {
		out = append(out, sb)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Bands returns a copy of the symbol's band table.
func (c *Catalog) Bands(symbol string) []models.BandTimeRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.bands[Normalize(symbol)]
	out := make([]models.BandTimeRecord, len(src))
	copy(out, src)
	return out
}

// Coefficient resolves the coefficient for a band, honoring an active override.
func (c *Catalog) Coefficient(symbol string, band models.Band) float64 {
	symbol = Normalize(symbol)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.coef[symbol]; ok {
		return risk.ClampCoefficient(v)
	}
	return risk.BandCoefficient(c.bands[symbol], band)
}

// SetCoefficientOverride installs a coefficient applied to every band of symbol
// and bumps the symbol's revision.
func (c *Catalog) SetCoefficientOverride(symbol string, v float64) {
	symbol = Normalize(symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coef[symbol] = v
	if sb, ok := c.symbols[symbol]; ok {
		c.revision++
		sb.Revision = c.revision
		c.symbols[symbol] = sb
	}
}

// CoefficientOverride returns the active coefficient override, if any.
func (c *Catalog) CoefficientOverride(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.coef[Normalize(symbol)]
	return v, ok
}

// ObservePrice remembers the most recent price seen for symbol.
func (c *Catalog) ObservePrice(symbol string, price float64) {
	c.mu.Lock()
	c.lastPrice[Normalize(symbol)] = price
	c.mu.Unlock()
}

// LastPrice returns the most recent observed price.
func (c *Catalog) LastPrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.lastPrice[Normalize(symbol)]
	return p, ok
}

func daysOf(bands []models.BandTimeRecord) []int {
	days := make([]int, models.BandCount)
	for _, b := range bands {
		if i := int(b.Band()); i >= 0 && i < models.BandCount {
			days[i] = b.DaysSpent
		}
	}
	return days
}
