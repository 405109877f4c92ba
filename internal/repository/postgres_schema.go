package repository

// postgresSchema is applied in order by PostgresStore.Init. Every statement is idempotent.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS symbols (
		symbol VARCHAR(20) PRIMARY KEY,
		min_price DOUBLE PRECISION NOT NULL CHECK (min_price > 0),
		max_price DOUBLE PRECISION NOT NULL,
		inception_date DATE NOT NULL DEFAULT CURRENT_DATE,
		life_age_days INTEGER NOT NULL DEFAULT 0 CHECK (life_age_days >= 0),
		tier VARCHAR(20) NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (max_price > min_price)
	)`,
	`CREATE TABLE IF NOT EXISTS risk_levels (
		symbol VARCHAR(20) NOT NULL,
		risk_value DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		calculated_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		calculation_method VARCHAR(20) NOT NULL DEFAULT 'logarithmic',
		PRIMARY KEY (symbol, risk_value)
	)`,
	`CREATE TABLE IF NOT EXISTS time_spent_bands (
		symbol VARCHAR(20) NOT NULL,
		band_start DOUBLE PRECISION NOT NULL,
		band_end DOUBLE PRECISION NOT NULL,
		days_spent INTEGER NOT NULL DEFAULT 0,
		percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
		coefficient DOUBLE PRECISION NOT NULL DEFAULT 1,
		total_days INTEGER NOT NULL DEFAULT 0,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (symbol, band_start),
		CHECK (band_end > band_start)
	)`,
	`CREATE TABLE IF NOT EXISTS manual_overrides (
		id BIGSERIAL PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		override_type VARCHAR(20) NOT NULL CHECK (override_type IN ('min_price', 'max_price', 'coefficient')),
		override_value DOUBLE PRECISION NOT NULL,
		previous_value DOUBLE PRECISION NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		created_by VARCHAR(100) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_active BOOLEAN NOT NULL DEFAULT true
	)`,
	`CREATE INDEX IF NOT EXISTS idx_manual_overrides_active ON manual_overrides (symbol, override_type) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS outcomes (
		id BIGSERIAL PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		actual_value DOUBLE PRECISION NOT NULL,
		risk_value DOUBLE PRECISION NOT NULL,
		predicted_signal VARCHAR(20) NOT NULL,
		"timestamp" TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outcomes_symbol_ts ON outcomes (symbol, "timestamp")`,
}
