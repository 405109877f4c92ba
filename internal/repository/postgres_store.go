package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	applogger "RiskPulse/pkg/logger"
)

// PostgresStore implements Store on PostgreSQL through sqlx.
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
	l       *applogger.Logger
}

var _ domrepo.Store = (*PostgresStore)(nil)

// OpenPostgres connects with lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int, timeout time.Duration, l *applogger.Logger) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db, timeout, l), nil
}

func NewPostgresStore(db *sqlx.DB, timeout time.Duration, l *applogger.Logger) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &PostgresStore{db: db, timeout: timeout, l: l}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	for i, stmt := range postgresSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	s.l.Info("postgres schema ready", applogger.Int("statements", len(postgresSchema)))
	return nil
}

func (s *PostgresStore) LoadSymbols(ctx context.Context) ([]models.SymbolBounds, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.SymbolBounds
	const q = `SELECT symbol, min_price, max_price, inception_date, life_age_days, tier FROM symbols ORDER BY symbol`
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	return out, nil
}

const upsertSymbolSQL = `
	INSERT INTO symbols (symbol, min_price, max_price, inception_date, life_age_days, tier, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	ON CONFLICT (symbol) DO UPDATE SET
		min_price = EXCLUDED.min_price,
		max_price = EXCLUDED.max_price,
		inception_date = EXCLUDED.inception_date,
		life_age_days = EXCLUDED.life_age_days,
		tier = EXCLUDED.tier,
		updated_at = NOW()`

func (s *PostgresStore) UpsertSymbol(ctx context.Context, sb models.SymbolBounds) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, upsertSymbolSQL,
		sb.Symbol, sb.MinPrice, sb.MaxPrice, sb.InceptionDate, sb.LifeAgeDays, sb.Tier)
	if err != nil {
		return fmt.Errorf("upsert symbol %s: %w", sb.Symbol, err)
	}
	return nil
}

// UpdateBounds writes the override audit rows and the new symbol row in one transaction.
func (s *PostgresStore) UpdateBounds(ctx context.Context, sb models.SymbolBounds, overrides []models.ManualOverride) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update bounds: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, o := range overrides {
		if _, err := insertOverride(ctx, tx, o); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, upsertSymbolSQL,
		sb.Symbol, sb.MinPrice, sb.MaxPrice, sb.InceptionDate, sb.LifeAgeDays, sb.Tier); err != nil {
		return fmt.Errorf("update symbol %s: %w", sb.Symbol, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update bounds: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadBands(ctx context.Context, symbol string) ([]models.BandTimeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.BandTimeRecord
	const q = `
		SELECT symbol, band_start, band_end, days_spent, percentage, coefficient, total_days, last_updated
		FROM time_spent_bands
		WHERE symbol = $1
		ORDER BY band_start`
	if err := s.db.SelectContext(ctx, &out, q, symbol); err != nil {
		return nil, fmt.Errorf("load bands %s: %w", symbol, err)
	}
	return out, nil
}

func (s *PostgresStore) ReplaceBands(ctx context.Context, symbol string, bands []models.BandTimeRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace bands: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM time_spent_bands WHERE symbol = $1`, symbol); err != nil {
		return fmt.Errorf("clear bands %s: %w", symbol, err)
	}
	const ins = `
		INSERT INTO time_spent_bands
		(symbol, band_start, band_end, days_spent, percentage, coefficient, total_days, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, b := range bands {
		if _, err := tx.ExecContext(ctx, ins, symbol, b.BandStart, b.BandEnd, b.DaysSpent,
			b.PercentageOfLife, b.Coefficient, b.TotalDays, b.LastUpdated); err != nil {
			return fmt.Errorf("insert band %s/%v: %w", symbol, b.BandStart, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace bands: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRiskLevels(ctx context.Context, levels []models.RiskLevel) error {
	if len(levels) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save risk levels: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO risk_levels (symbol, risk_value, price, calculated_date, calculation_method)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, risk_value) DO UPDATE SET
			price = EXCLUDED.price,
			calculated_date = EXCLUDED.calculated_date,
			calculation_method = EXCLUDED.calculation_method`
	for _, lv := range levels {
		if _, err := tx.ExecContext(ctx, q, lv.Symbol, lv.RiskValue, lv.Price, lv.CalculatedDate, lv.CalculationMethod); err != nil {
			return fmt.Errorf("upsert risk level %s/%v: %w", lv.Symbol, lv.RiskValue, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit risk levels: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadRiskLevels(ctx context.Context, symbol string) ([]models.RiskLevel, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.RiskLevel
	const q = `
		SELECT symbol, risk_value, price, calculated_date, calculation_method
		FROM risk_levels WHERE symbol = $1 ORDER BY risk_value`
	if err := s.db.SelectContext(ctx, &out, q, symbol); err != nil {
		return nil, fmt.Errorf("load risk levels %s: %w", symbol, err)
	}
	return out, nil
}

func (s *PostgresStore) AppendOverride(ctx context.Context, o models.ManualOverride) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append override: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := insertOverride(ctx, tx, o)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit override: %w", err)
	}
	return id, nil
}

// insertOverride supersedes the active override of the same (symbol, type) and appends o.
func insertOverride(ctx context.Context, tx *sqlx.Tx, o models.ManualOverride) (int64, error) {
	const deactivate = `
		UPDATE manual_overrides SET is_active = false
		WHERE symbol = $1 AND override_type = $2 AND is_active`
	if _, err := tx.ExecContext(ctx, deactivate, o.Symbol, o.OverrideType); err != nil {
		return 0, fmt.Errorf("supersede override %s/%s: %w", o.Symbol, o.OverrideType, err)
	}
	const ins = `
		INSERT INTO manual_overrides
		(symbol, override_type, override_value, previous_value, reason, created_by, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING id`
	var id int64
	if err := tx.QueryRowxContext(ctx, ins, o.Symbol, o.OverrideType, o.OverrideValue,
		o.PreviousValue, o.Reason, o.CreatedBy, o.CreatedAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert override %s/%s: %w", o.Symbol, o.OverrideType, err)
	}
	return id, nil
}

func (s *PostgresStore) ListOverrides(ctx context.Context, symbol string) ([]models.ManualOverride, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.ManualOverride
	const q = `
		SELECT id, symbol, override_type, override_value, previous_value, reason, created_by, created_at, is_active
		FROM manual_overrides WHERE symbol = $1 ORDER BY id`
	if err := s.db.SelectContext(ctx, &out, q, symbol); err != nil {
		return nil, fmt.Errorf("list overrides %s: %w", symbol, err)
	}
	return out, nil
}

func (s *PostgresStore) AppendOutcome(ctx context.Context, o models.Outcome) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	const q = `
		INSERT INTO outcomes (symbol, actual_value, risk_value, predicted_signal, "timestamp")
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	var id int64
	if err := s.db.QueryRowxContext(ctx, q, o.Symbol, o.ActualPrice, o.RiskValue, o.PredictedSignal, o.Timestamp).Scan(&id); err != nil {
		return 0, fmt.Errorf("append outcome %s: %w", o.Symbol, err)
	}
	return id, nil
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, symbol string, from, to time.Time) ([]models.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.Outcome
	const q = `
		SELECT id, symbol, actual_value, risk_value, predicted_signal, "timestamp"
		FROM outcomes
		WHERE symbol = $1 AND "timestamp" >= $2 AND "timestamp" <= $3
		ORDER BY "timestamp", id`
	if err := s.db.SelectContext(ctx, &out, q, symbol, from, to); err != nil {
		return nil, fmt.Errorf("list outcomes %s: %w", symbol, err)
	}
	return out, nil
}

func (s *PostgresStore) RecentOutcomes(ctx context.Context, symbol string, n int) ([]models.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []models.Outcome
	const q = `
		SELECT id, symbol, actual_value, risk_value, predicted_signal, "timestamp"
		FROM outcomes
		WHERE symbol = $1
		ORDER BY "timestamp" DESC, id DESC
		LIMIT $2`
	if err := s.db.SelectContext(ctx, &out, q, symbol, n); err != nil {
		return nil, fmt.Errorf("recent outcomes %s: %w", symbol, err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
