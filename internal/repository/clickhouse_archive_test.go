package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskPulse/internal/domain/models"
	pkgch "RiskPulse/pkg/clickhouse"
)

func sampleAssessment(ts time.Time) models.Assessment {
	return models.Assessment{
		Symbol: "BTC", CurrentPrice: 50000, MinPrice: 30001, MaxPrice: 299720,
		RiskValue: 0.2221, RiskBand: "0.2-0.3", RiskZone: models.ZoneAccumulation,
		Coefficient: 1.3, Score: 93.5, Signal: models.SignalBuy, Tradable: true,
		WinRate: 0.75, PriceSource: models.PriceSupplied, Timestamp: ts,
	}
}

func TestArchiveSchema(t *testing.T) {
	stmts := ArchiveSchema("risk")
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS risk", stmts[0])
	assert.Contains(t, stmts[1], "risk.risk_assessments")
	assert.Contains(t, stmts[1], "ORDER BY (symbol, ts)")
}

func TestCHArchive_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	a := NewCHArchive(pkgch.NewClientWithDB(db, "risk"), nil)
	ts := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	insert := "INSERT INTO risk.risk_assessments (" + archiveColumns + ") VALUES (?"
	mock.ExpectExec(regexp.QuoteMeta(insert)).
		WithArgs(ts, "BTC", 50000.0, 30001.0, 299720.0, 0.2221, "0.2-0.3", "accumulation", 1.3, 93.5, "BUY", sqlmock.AnyArg(), 0.75, "supplied").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, a.Append(context.Background(), sampleAssessment(ts)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCHArchive_AppendError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	a := NewCHArchive(pkgch.NewClientWithDB(db, "risk"), nil)

	mock.ExpectExec("INSERT INTO risk.risk_assessments").WillReturnError(errors.New("too many parts"))
	err = a.Append(context.Background(), sampleAssessment(time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive insert")
}

func TestCHArchive_History(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	a := NewCHArchive(pkgch.NewClientWithDB(db, "risk"), nil)
	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	rows := sqlmock.NewRows([]string{"ts", "symbol", "price", "min_price", "max_price", "risk_value", "risk_band", "risk_zone", "coefficient", "score", "signal", "tradable", "win_rate", "price_source"}).
		AddRow(from.Add(time.Hour), "BTC", 50000.0, 30001.0, 299720.0, 0.2221, "0.2-0.3", "accumulation", 1.3, 93.5, "BUY", int64(1), 0.75, "live")
	mock.ExpectQuery(regexp.QuoteMeta("FROM risk.risk_assessments WHERE symbol = ?")).
		WithArgs("BTC", from, to, 10).
		WillReturnRows(rows)

	got, err := a.History(context.Background(), "BTC", from, to, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SignalBuy, got[0].Signal)
	assert.Equal(t, models.ZoneAccumulation, got[0].RiskZone)
	assert.Equal(t, models.PriceLive, got[0].PriceSource)
	assert.True(t, got[0].Tradable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryArchive_HistoryNewestFirst(t *testing.T) {
	m := NewMemoryArchive(3)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Append(ctx, sampleAssessment(base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, m.Append(ctx, models.Assessment{Symbol: "ETH", Timestamp: base}))

	got, err := m.History(ctx, "BTC", base, base.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.After(got[1].Timestamp))

	got, err = m.History(ctx, "BTC", base, base.Add(time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
