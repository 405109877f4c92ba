package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
)

func btcBounds() models.SymbolBounds {
	return models.SymbolBounds{
		Symbol:        "BTC",
		MinPrice:      30001,
		MaxPrice:      299720,
		InceptionDate: time.Date(2009, 1, 3, 0, 0, 0, 0, time.UTC),
		LifeAgeDays:   5570,
		Tier:          "tier1",
	}
}

func newBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "risk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// runStoreContract exercises behaviour every Store backend must share.
func runStoreContract(t *testing.T, s domrepo.Store) {
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Health(ctx))

	t.Run("symbols upsert", func(t *testing.T) {
		sb := btcBounds()
		require.NoError(t, s.UpsertSymbol(ctx, sb))
		sb.MaxPrice = 300000
		require.NoError(t, s.UpsertSymbol(ctx, sb))
		require.NoError(t, s.UpsertSymbol(ctx, models.SymbolBounds{Symbol: "ADA", MinPrice: 0.1, MaxPrice: 3}))

		got, err := s.LoadSymbols(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "ADA", got[0].Symbol)
		assert.Equal(t, "BTC", got[1].Symbol)
		assert.Equal(t, 300000.0, got[1].MaxPrice)
		assert.True(t, got[1].InceptionDate.Equal(sb.InceptionDate))
	})

	t.Run("update bounds writes overrides atomically", func(t *testing.T) {
		sb := btcBounds()
		sb.MinPrice = 35000
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		err := s.UpdateBounds(ctx, sb, []models.ManualOverride{{
			Symbol: "BTC", OverrideType: models.OverrideMinPrice, OverrideValue: 35000,
			PreviousValue: 30001, Reason: "recalibration", CreatedBy: "ops", CreatedAt: now,
		}})
		require.NoError(t, err)

		syms, err := s.LoadSymbols(ctx)
		require.NoError(t, err)
		assert.Equal(t, 35000.0, syms[1].MinPrice)

		ovs, err := s.ListOverrides(ctx, "BTC")
		require.NoError(t, err)
		require.Len(t, ovs, 1)
		assert.True(t, ovs[0].IsActive)
		assert.Equal(t, 30001.0, ovs[0].PreviousValue)
	})

	t.Run("newer override supersedes older", func(t *testing.T) {
		o := models.ManualOverride{Symbol: "BTC", OverrideType: models.OverrideMinPrice, OverrideValue: 36000, PreviousValue: 35000, Reason: "again", CreatedBy: "ops", CreatedAt: time.Now().UTC()}
		id, err := s.AppendOverride(ctx, o)
		require.NoError(t, err)
		assert.Positive(t, id)
		_, err = s.AppendOverride(ctx, models.ManualOverride{Symbol: "BTC", OverrideType: models.OverrideCoefficient, OverrideValue: 1.3, Reason: "c", CreatedAt: time.Now().UTC()})
		require.NoError(t, err)

		ovs, err := s.ListOverrides(ctx, "BTC")
		require.NoError(t, err)
		require.Len(t, ovs, 3)
		active := map[models.OverrideType]int{}
		for _, ov := range ovs {
			if ov.IsActive {
				active[ov.OverrideType]++
			}
		}
		assert.Equal(t, 1, active[models.OverrideMinPrice])
		assert.Equal(t, 1, active[models.OverrideCoefficient])
		assert.False(t, ovs[0].IsActive)
		assert.Equal(t, id, ovs[1].ID)
	})

	t.Run("bands replace", func(t *testing.T) {
		rec := func(i, days int) models.BandTimeRecord {
			b := models.Band(i)
			return models.BandTimeRecord{Symbol: "BTC", BandStart: b.Start(), BandEnd: b.End(), DaysSpent: days, TotalDays: 100, Coefficient: 1.2, LastUpdated: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
		}
		require.NoError(t, s.ReplaceBands(ctx, "BTC", []models.BandTimeRecord{rec(1, 10), rec(0, 5)}))
		require.NoError(t, s.ReplaceBands(ctx, "BTC", []models.BandTimeRecord{rec(2, 7), rec(0, 3)}))
		got, err := s.LoadBands(ctx, "BTC")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 0.0, got[0].BandStart)
		assert.Equal(t, 3, got[0].DaysSpent)
		assert.Equal(t, models.Band(2), got[1].Band())
	})

	t.Run("risk levels upsert by risk value", func(t *testing.T) {
		at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.SaveRiskLevels(ctx, []models.RiskLevel{
			{Symbol: "BTC", RiskValue: 0.5, Price: 1, CalculatedDate: at, CalculationMethod: models.MethodLogarithmic},
			{Symbol: "BTC", RiskValue: 0, Price: 30001, CalculatedDate: at, CalculationMethod: models.MethodLogarithmic},
		}))
		require.NoError(t, s.SaveRiskLevels(ctx, []models.RiskLevel{
			{Symbol: "BTC", RiskValue: 0.5, Price: 94825.5, CalculatedDate: at, CalculationMethod: models.MethodLogarithmic},
		}))
		got, err := s.LoadRiskLevels(ctx, "BTC")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 0.0, got[0].RiskValue)
		assert.Equal(t, 94825.5, got[1].Price)
	})

	t.Run("outcomes window", func(t *testing.T) {
		base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		for i, d := range []int{3, 1, 2, 10} {
			_, err := s.AppendOutcome(ctx, models.Outcome{
				Symbol: "BTC", ActualPrice: float64(50000 + i), RiskValue: 0.1 * float64(i),
				PredictedSignal: models.SignalBuy, Timestamp: base.AddDate(0, 0, d),
			})
			require.NoError(t, err)
		}
		_, err := s.AppendOutcome(ctx, models.Outcome{Symbol: "ETH", ActualPrice: 1, Timestamp: base.AddDate(0, 0, 2)})
		require.NoError(t, err)

		got, err := s.ListOutcomes(ctx, "BTC", base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i-1].Timestamp.Before(got[i].Timestamp))
		}
		assert.Equal(t, "BTC", got[0].Symbol)
		assert.Positive(t, got[0].ID)

		recent, err := s.RecentOutcomes(ctx, "BTC", 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, base.AddDate(0, 0, 3), recent[0].Timestamp.UTC())
		assert.Equal(t, base.AddDate(0, 0, 10), recent[1].Timestamp.UTC())

		none, err := s.RecentOutcomes(ctx, "DOGE", 2)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestBoltStore_Contract(t *testing.T) {
	runStoreContract(t, newBoltStore(t))
}

func TestBoltStore_RequiresInit(t *testing.T) {
	s := newBoltStore(t)
	_, err := s.LoadSymbols(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call Init")
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.db")
	s, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.UpsertSymbol(context.Background(), btcBounds()))
	require.NoError(t, s.Close())

	s, err = OpenBolt(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 30001.0, got[0].MinPrice)
}
