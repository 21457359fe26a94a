package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rohankatakam/assetforge/internal/models"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS system_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT,
		data_type TEXT NOT NULL DEFAULT 'string',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS matrices (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT,
		type TEXT NOT NULL CHECK (type IN ('PRIMARY', 'SECONDARY')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		primary_matrix_id TEXT REFERENCES matrices(id),
		secondary_matrix_id TEXT REFERENCES matrices(id),
		sku_slug TEXT NOT NULL UNIQUE,
		drive_link TEXT,
		payhip_link TEXT,
		cached_traffic_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		cached_revenue_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		current_rarity TEXT DEFAULT 'COMMON',
		highest_rarity_achieved TEXT DEFAULT 'COMMON',
		lifecycle_state TEXT NOT NULL DEFAULT 'INCUBATION',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_synced_at TIMESTAMPTZ,
		is_retired BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS pins (
		id TEXT PRIMARY KEY,
		external_pin_id TEXT NOT NULL UNIQUE,
		asset_id TEXT REFERENCES assets(id),
		title TEXT,
		description TEXT,
		image_url TEXT,
		last_stats JSONB,
		is_active_on_platform BOOLEAN NOT NULL DEFAULT TRUE,
		last_synced_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_pins_asset_id ON pins(asset_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		payhip_transaction_id TEXT UNIQUE,
		asset_id TEXT NOT NULL REFERENCES assets(id),
		amount NUMERIC(14, 2) NOT NULL CHECK (amount >= 0),
		currency TEXT NOT NULL DEFAULT 'USD',
		source TEXT NOT NULL DEFAULT 'PAYHIP',
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_asset_id ON transactions(asset_id);
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS system_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT,
		data_type TEXT NOT NULL DEFAULT 'string',
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS matrices (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT,
		type TEXT NOT NULL CHECK (type IN ('PRIMARY', 'SECONDARY')),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_active BOOLEAN NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		primary_matrix_id TEXT REFERENCES matrices(id),
		secondary_matrix_id TEXT REFERENCES matrices(id),
		sku_slug TEXT NOT NULL UNIQUE,
		drive_link TEXT,
		payhip_link TEXT,
		cached_traffic_score REAL NOT NULL DEFAULT 0,
		cached_revenue_score REAL NOT NULL DEFAULT 0,
		current_rarity TEXT DEFAULT 'COMMON',
		highest_rarity_achieved TEXT DEFAULT 'COMMON',
		lifecycle_state TEXT NOT NULL DEFAULT 'INCUBATION',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_synced_at TIMESTAMP,
		is_retired BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pins (
		id TEXT PRIMARY KEY,
		external_pin_id TEXT NOT NULL UNIQUE,
		asset_id TEXT REFERENCES assets(id),
		title TEXT,
		description TEXT,
		image_url TEXT,
		last_stats TEXT,
		is_active_on_platform BOOLEAN NOT NULL DEFAULT 1,
		last_synced_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pins_asset_id ON pins(asset_id);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		payhip_transaction_id TEXT UNIQUE,
		asset_id TEXT NOT NULL REFERENCES assets(id),
		amount NUMERIC NOT NULL CHECK (amount >= 0),
		currency TEXT NOT NULL DEFAULT 'USD',
		source TEXT NOT NULL DEFAULT 'PAYHIP',
		occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_asset_id ON transactions(asset_id);
`

// Migrate creates the schema if it does not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == "postgres" {
		schema = postgresSchema
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate %s schema: %w", s.dialect, err)
	}

	s.logger.WithField("dialect", s.dialect).Info("schema ready")
	return nil
}

func strPtr(s string) *string { return &s }

// DefaultSettings are the scoring weights and thresholds a fresh install starts with
var DefaultSettings = []models.Setting{
	{Key: "WEIGHT_OUTBOUND", Value: "5.0", DataType: models.SettingFloat,
		Description: strPtr("Score points per outbound click")},
	{Key: "WEIGHT_DOLLAR_REVENUE", Value: "50.0", DataType: models.SettingFloat,
		Description: strPtr("Score points per unit of revenue")},
	{Key: "ORPHAN_VIRALITY_TRIGGER", Value: "50", DataType: models.SettingInteger,
		Description: strPtr("Orphan pins with more outbound clicks than this raise an alert")},
}

// SeedDefaults inserts DefaultSettings, leaving existing keys untouched
func (s *SQLStore) SeedDefaults(ctx context.Context) (int, error) {
	query := s.db.Rebind(`
		INSERT INTO system_settings (key, value, description, data_type, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO NOTHING`)

	inserted := 0
	now := time.Now().UTC()
	for _, setting := range DefaultSettings {
		res, err := s.db.ExecContext(ctx, query, setting.Key, setting.Value, setting.Description, setting.DataType, now)
		if err != nil {
			return inserted, fmt.Errorf("seed setting %s: %w", setting.Key, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}
