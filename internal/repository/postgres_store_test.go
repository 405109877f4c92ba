package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPulse/internal/domain/models"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres"), time.Second, nil), mock
}

func TestPostgresStore_Init(t *testing.T) {
	s, mock := newMockPostgres(t)
	for range postgresSchema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InitReportsStatement(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec("CREATE").WillReturnError(errors.New("permission denied"))
	err := s.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 0")
}

func TestPostgresStore_LoadSymbols(t *testing.T) {
	s, mock := newMockPostgres(t)
	inception := time.Date(2009, 1, 3, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"symbol", "min_price", "max_price", "inception_date", "life_age_days", "tier"}).
		AddRow("BTC", 30001.0, 299720.0, inception, int64(5570), "tier1").
		AddRow("ETH", 800.0, 12000.0, inception, int64(3400), "tier1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT symbol, min_price, max_price, inception_date, life_age_days, tier FROM symbols ORDER BY symbol")).
		WillReturnRows(rows)

	got, err := s.LoadSymbols(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BTC", got[0].Symbol)
	assert.Equal(t, 299720.0, got[0].MaxPrice)
	assert.Equal(t, 5570, got[0].LifeAgeDays)
	assert.Equal(t, "tier1", got[1].Tier)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateBoundsCommits(t *testing.T) {
	s, mock := newMockPostgres(t)
	sb := btcBounds()
	sb.MinPrice = 35000

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE manual_overrides SET is_active = false")).
		WithArgs("BTC", "min_price").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO manual_overrides")).
		WithArgs("BTC", "min_price", 35000.0, 30001.0, "recalibration", "ops", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO symbols")).
		WithArgs("BTC", 35000.0, 299720.0, sqlmock.AnyArg(), int64(5570), "tier1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.UpdateBounds(context.Background(), sb, []models.ManualOverride{{
		Symbol: "BTC", OverrideType: models.OverrideMinPrice, OverrideValue: 35000,
		PreviousValue: 30001, Reason: "recalibration", CreatedBy: "ops", CreatedAt: time.Now(),
	}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateBoundsRollsBack(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE manual_overrides")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.UpdateBounds(context.Background(), btcBounds(), []models.ManualOverride{{
		Symbol: "BTC", OverrideType: models.OverrideMaxPrice, OverrideValue: 1, Reason: "x",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supersede override BTC/max_price")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceBands(t *testing.T) {
	s, mock := newMockPostgres(t)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bands := []models.BandTimeRecord{
		{BandStart: 0, BandEnd: 0.1, DaysSpent: 167, PercentageOfLife: 3, Coefficient: 1.4, TotalDays: 5570, LastUpdated: at},
		{BandStart: 0.1, BandEnd: 0.2, DaysSpent: 446, PercentageOfLife: 8, Coefficient: 1.3, TotalDays: 5570, LastUpdated: at},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM time_spent_bands WHERE symbol = $1")).
		WithArgs("BTC").WillReturnResult(sqlmock.NewResult(0, 10))
	for _, b := range bands {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO time_spent_bands")).
			WithArgs("BTC", b.BandStart, b.BandEnd, int64(b.DaysSpent), b.PercentageOfLife, b.Coefficient, int64(b.TotalDays), at).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.ReplaceBands(context.Background(), "BTC", bands))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRiskLevelsEmpty(t *testing.T) {
	s, mock := newMockPostgres(t)
	require.NoError(t, s.SaveRiskLevels(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendOutcome(t *testing.T) {
	s, mock := newMockPostgres(t)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO outcomes (symbol, actual_value, risk_value, predicted_signal, "timestamp")`)).
		WithArgs("BTC", 94825.5, 0.5, "HOLD", ts).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := s.AppendOutcome(context.Background(), models.Outcome{
		Symbol: "BTC", ActualPrice: 94825.5, RiskValue: 0.5, PredictedSignal: models.SignalHold, Timestamp: ts,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOutcomes(t *testing.T) {
	s, mock := newMockPostgres(t)
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	rows := sqlmock.NewRows([]string{"id", "symbol", "actual_value", "risk_value", "predicted_signal", "timestamp"}).
		AddRow(int64(1), "BTC", 50000.0, 0.22, "BUY", from.Add(time.Hour)).
		AddRow(int64(2), "BTC", 60000.0, 0.30, "BUY", from.Add(48*time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM outcomes")).
		WithArgs("BTC", from, to).
		WillReturnRows(rows)

	got, err := s.ListOutcomes(context.Background(), "BTC", from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.SignalBuy, got[0].PredictedSignal)
	assert.Equal(t, 60000.0, got[1].ActualPrice)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecentOutcomesOldestFirst(t *testing.T) {
	s, mock := newMockPostgres(t)
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "symbol", "actual_value", "risk_value", "predicted_signal", "timestamp"}).
		AddRow(int64(9), "BTC", 250000.0, 0.92, "SELL", at.Add(2*time.Hour)).
		AddRow(int64(8), "BTC", 40000.0, 0.13, "BUY", at.Add(time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY "timestamp" DESC, id DESC`)).
		WithArgs("BTC", 2).
		WillReturnRows(rows)

	got, err := s.RecentOutcomes(context.Background(), "BTC", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(8), got[0].ID)
	assert.Equal(t, 0.92, got[1].RiskValue)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryErrorWrapped(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery("FROM manual_overrides").WillReturnError(errors.New("timeout"))
	_, err := s.ListOverrides(context.Background(), "ETH")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list overrides ETH")
}
