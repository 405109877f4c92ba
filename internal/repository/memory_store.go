package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
)

// MemoryStore is a process-local Store used when no durable backend is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	symbols    map[string]models.SymbolBounds
	bands      map[string][]models.BandTimeRecord
	riskLevels map[string]map[float64]models.RiskLevel
	overrides  []models.ManualOverride
	outcomes   []models.Outcome
}

var _ domrepo.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		symbols:    make(map[string]models.SymbolBounds),
		bands:      make(map[string][]models.BandTimeRecord),
		riskLevels: make(map[string]map[float64]models.RiskLevel),
	}
}

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) LoadSymbols(context.Context) ([]models.SymbolBounds, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SymbolBounds, 0, len(s.symbols))
	for _, sb := range s.symbols {
		out = append(out, sb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *MemoryStore) UpsertSymbol(_ context.Context, sb models.SymbolBounds) error {
	sb.Revision = 0
	s.mu.Lock()
	s.symbols[sb.Symbol] = sb
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UpdateBounds(_ context.Context, sb models.SymbolBounds, overrides []models.ManualOverride) error {
	sb.Revision = 0
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range overrides {
		s.appendOverrideLocked(o)
	}
	s.symbols[sb.Symbol] = sb
	return nil
}

func (s *MemoryStore) LoadBands(_ context.Context, symbol string) ([]models.BandTimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.BandTimeRecord(nil), s.bands[symbol]...), nil
}

func (s *MemoryStore) ReplaceBands(_ context.Context, symbol string, bands []models.BandTimeRecord) error {
	cp := append([]models.BandTimeRecord(nil), bands...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].BandStart < cp[j].BandStart })
	s.mu.Lock()
	s.bands[symbol] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SaveRiskLevels(_ context.Context, levels []models.RiskLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lv := range levels {
		m := s.riskLevels[lv.Symbol]
		if m == nil {
			m = make(map[float64]models.RiskLevel)
			s.riskLevels[lv.Symbol] = m
		}
		m[lv.RiskValue] = lv
	}
	return nil
}

func (s *MemoryStore) LoadRiskLevels(_ context.Context, symbol string) ([]models.RiskLevel, error) {
	s.mu.RLock()
	out := make([]models.RiskLevel, 0, len(s.riskLevels[symbol]))
	for _, lv := range s.riskLevels[symbol] {
		out = append(out, lv)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RiskValue < out[j].RiskValue })
	return out, nil
}

func (s *MemoryStore) appendOverrideLocked(o models.ManualOverride) int64 {
	for i := range s.overrides {
		p := &s.overrides[i]
		if p.IsActive && p.Symbol == o.Symbol && p.OverrideType == o.OverrideType {
			p.IsActive = false
		}
	}
	o.ID = int64(len(s.overrides) + 1)
	o.IsActive = true
	s.overrides = append(s.overrides, o)
	return o.ID
}

func (s *MemoryStore) AppendOverride(_ context.Context, o models.ManualOverride) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendOverrideLocked(o), nil
}

func (s *MemoryStore) ListOverrides(_ context.Context, symbol string) ([]models.ManualOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ManualOverride
	for _, o := range s.overrides {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendOutcome(_ context.Context, o models.Outcome) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = int64(len(s.outcomes) + 1)
	s.outcomes = append(s.outcomes, o)
	return o.ID, nil
}

func (s *MemoryStore) ListOutcomes(_ context.Context, symbol string, from, to time.Time) ([]models.Outcome, error) {
	s.mu.RLock()
	var out []models.Outcome
	for _, o := range s.outcomes {
		if o.Symbol == symbol && !o.Timestamp.Before(from) && !o.Timestamp.After(to) {
			out = append(out, o)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) RecentOutcomes(_ context.Context, symbol string, n int) ([]models.Outcome, error) {
	s.mu.RLock()
	var out []models.Outcome
	for _, o := range s.outcomes {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if n >= 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
