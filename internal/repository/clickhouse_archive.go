package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	pkgch "RiskPulse/pkg/clickhouse"
	applogger "RiskPulse/pkg/logger"
)

// ArchiveSchema returns the idempotent DDL for the assessment archive.
func ArchiveSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.risk_assessments
(
    ts            DateTime64(3, 'UTC'),
    symbol        LowCardinality(String),
    price         Float64,
    min_price     Float64,
    max_price     Float64,
    risk_value    Float64,
    risk_band     LowCardinality(String),
    risk_zone     LowCardinality(String),
    coefficient   Float64,
    score         Float64,
    signal        LowCardinality(String),
    tradable      UInt8,
    win_rate      Float64,
    price_source  LowCardinality(String)
)
ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (symbol, ts)`, database),
	}
}

const archiveColumns = "ts, symbol, price, min_price, max_price, risk_value, risk_band, risk_zone, coefficient, score, signal, tradable, win_rate, price_source"

// CHArchive keeps computed assessments in ClickHouse.
type CHArchive struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHArchive(ch *pkgch.Client, l *applogger.Logger) *CHArchive {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHArchive{db: ch.DB(), table: ch.Table("risk_assessments"), l: l}
}

func (s *CHArchive) Append(ctx context.Context, a models.Assessment) error {
	return s.AppendBatch(ctx, []models.Assessment{a})
}

// AppendBatch inserts rows with a single multi-row VALUES statement per chunk.
func (s *CHArchive) AppendBatch(ctx context.Context, batch []models.Assessment) error {
	const chunkSize = 2000
	for start := 0; start < len(batch); start += chunkSize {
		end := start + chunkSize
		if end > len(batch) {
			end = len(batch)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*14)
		for _, a := range batch[start:end] {
			if a.Symbol == "" {
				continue
			}
			var tradable uint8
			if a.Tradable {
				tradable = 1
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				a.Timestamp.UTC(),
				a.Symbol,
				a.CurrentPrice,
				a.MinPrice,
				a.MaxPrice,
				a.RiskValue,
				a.RiskBand,
				string(a.RiskZone),
				a.Coefficient,
				a.Score,
				string(a.Signal),
				tradable,
				a.WinRate,
				string(a.PriceSource),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, archiveColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse archive insert error",
				applogger.String("table", s.table),
				applogger.Int("rows", len(values)),
				applogger.Error(err),
			)
			return fmt.Errorf("archive insert: %w", err)
		}
	}
	return nil
}

// History returns archived assessments in [from, to], newest first.
func (s *CHArchive) History(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.Assessment, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?`, archiveColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC(), limit)
	if err != nil {
		s.l.Error("clickhouse history query error",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("archive history: %w", err)
	}
	defer rows.Close()

	out := make([]models.Assessment, 0, limit)
	for rows.Next() {
		var (
			a                      models.Assessment
			zone, signal, priceSrc string
			tradable               uint8
		)
		if err := rows.Scan(&a.Timestamp, &a.Symbol, &a.CurrentPrice, &a.MinPrice, &a.MaxPrice,
			&a.RiskValue, &a.RiskBand, &zone, &a.Coefficient, &a.Score, &signal, &tradable,
			&a.WinRate, &priceSrc); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		a.RiskZone = models.Zone(zone)
		a.Signal = models.Signal(signal)
		a.PriceSource = models.PriceSourceKind(priceSrc)
		a.Tradable = tradable == 1
		a.Timestamp = a.Timestamp.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse history ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// MemoryArchive is a bounded in-process Archive used when ClickHouse is disabled.
type MemoryArchive struct {
	mu   sync.Mutex
	rows []models.Assessment
	max  int
}

func NewMemoryArchive(max int) *MemoryArchive {
	if max <= 0 {
		max = 10000
	}
	return &MemoryArchive{max: max}
}

func (m *MemoryArchive) Append(_ context.Context, a models.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, a)
	if over := len(m.rows) - m.max; over > 0 {
		m.rows = append(m.rows[:0:0], m.rows[over:]...)
	}
	return nil
}

func (m *MemoryArchive) History(_ context.Context, symbol string, from, to time.Time, limit int) ([]models.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Assessment, 0)
	for i := len(m.rows) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		a := m.rows[i]
		if a.Symbol != symbol || a.Timestamp.Before(from) || a.Timestamp.After(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
