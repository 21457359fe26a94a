package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/sirupsen/logrus"
)

// SQLStore implements Store on top of sqlx. Queries are written with ?
// placeholders and rebound for the driver in use.
type SQLStore struct {
	db      *sqlx.DB
	dialect string
	logger  logrus.FieldLogger
}

// DB exposes the underlying handle for migrations and tests
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// Dialect returns "postgres" or "sqlite"
func (s *SQLStore) Dialect() string {
	return s.dialect
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks connectivity
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SQLStore) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...)
}

// isUniqueViolation recognizes unique-constraint failures from either driver
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Setting operations

func (s *SQLStore) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := s.get(ctx, &setting, `SELECT * FROM system_settings WHERE key = ?`, key); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return &setting, nil
}

func (s *SQLStore) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	var settings []*models.Setting
	if err := s.selectAll(ctx, &settings, `SELECT * FROM system_settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

func (s *SQLStore) PutSetting(ctx context.Context, setting *models.Setting) error {
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now().UTC()
	}
	if setting.DataType == "" {
		setting.DataType = models.SettingString
	}

	query := `
		INSERT INTO system_settings (key, value, description, data_type, updated_at)
		VALUES (:key, :value, :description, :data_type, :updated_at)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			description = COALESCE(excluded.description, system_settings.description),
			data_type = excluded.data_type,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("put setting %s: %w", setting.Key, err)
	}
	return nil
}

// Matrix operations

func (s *SQLStore) GetMatrixByCode(ctx context.Context, code string) (*models.Matrix, error) {
	var m models.Matrix
	if err := s.get(ctx, &m, `SELECT * FROM matrices WHERE code = ?`, code); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("get matrix %s: %w", code, err)
	}
	return &m, nil
}

func (s *SQLStore) SaveMatrix(ctx context.Context, m *models.Matrix) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO matrices (id, code, name, type, created_at, is_active)
		VALUES (:id, :code, :name, :type, :created_at, :is_active)
		ON CONFLICT (code) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			is_active = excluded.is_active
	`
	if _, err := s.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("save matrix %s: %w", m.Code, err)
	}
	return nil
}

// Asset operations

func (s *SQLStore) CreateAsset(ctx context.Context, a *models.Asset) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO assets (id, primary_matrix_id, secondary_matrix_id, sku_slug, drive_link, payhip_link,
			cached_traffic_score, cached_revenue_score, current_rarity, highest_rarity_achieved,
			lifecycle_state, created_at, last_synced_at, is_retired)
		VALUES (:id, :primary_matrix_id, :secondary_matrix_id, :sku_slug, :drive_link, :payhip_link,
			:cached_traffic_score, :cached_revenue_score, :current_rarity, :highest_rarity_achieved,
			:lifecycle_state, :created_at, :last_synced_at, :is_retired)
	`
	if _, err := s.db.NamedExecContext(ctx, query, a); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create asset %s: %w", a.SKUSlug, ErrConflict)
		}
		return fmt.Errorf("create asset %s: %w", a.SKUSlug, err)
	}
	a.ComputeTotal()
	return nil
}

func (s *SQLStore) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	var a models.Asset
	if err := s.get(ctx, &a, `SELECT * FROM assets WHERE id = ?`, id); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}
	a.ComputeTotal()
	return &a, nil
}

// FindAssetByPayhipLink returns the oldest asset whose payhip_link contains productLink,
// compared case-insensitively
func (s *SQLStore) FindAssetByPayhipLink(ctx context.Context, productLink string) (*models.Asset, error) {
	pattern := "%" + escapeLike(strings.ToLower(productLink)) + "%"

	var a models.Asset
	err := s.get(ctx, &a, `
		SELECT * FROM assets
		WHERE LOWER(payhip_link) LIKE ? ESCAPE '\'
		ORDER BY created_at
		LIMIT 1`, pattern)
	if err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find asset by payhip link: %w", err)
	}
	a.ComputeTotal()
	return &a, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *SQLStore) ListActiveAssets(ctx context.Context) ([]*models.Asset, error) {
	var assets []*models.Asset
	err := s.selectAll(ctx, &assets, `
		SELECT * FROM assets
		WHERE is_retired IS NULL OR is_retired = ?
		ORDER BY created_at, id`, false)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	for _, a := range assets {
		a.ComputeTotal()
	}
	return assets, nil
}

func (s *SQLStore) UpdateAssetScore(ctx context.Context, id string, expectedHighest models.Tier, u models.ScoreUpdate) error {
	sets := []string{
		"cached_revenue_score = ?",
		"current_rarity = ?",
		"highest_rarity_achieved = ?",
		"last_synced_at = ?",
	}
	args := []interface{}{u.RevenueScore, u.CurrentRarity, u.HighestRarityAchieved, u.LastSyncedAt}
	if u.TrafficScore != nil {
		sets = append(sets, "cached_traffic_score = ?")
		args = append(args, *u.TrafficScore)
	}
	args = append(args, id, expectedHighest.OrCommon())

	query := fmt.Sprintf(`
		UPDATE assets SET %s
		WHERE id = ? AND COALESCE(highest_rarity_achieved, 'COMMON') = ?`, strings.Join(sets, ", "))

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update asset %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	var count int
	if err := s.get(ctx, &count, `SELECT COUNT(1) FROM assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("update asset %s: %w", id, err)
	}
	if count == 0 {
		return ErrNotFound
	}

	s.logger.WithFields(logrus.Fields{
		"asset_id": id,
		"expected": expectedHighest,
	}).Debug("high-water mark moved underneath update")
	return ErrConflict
}

// Pin operations

func (s *SQLStore) GetPin(ctx context.Context, id string) (*models.Pin, error) {
	var p models.Pin
	if err := s.get(ctx, &p, `SELECT * FROM pins WHERE id = ?`, id); err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("get pin %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLStore) ListOrphanPins(ctx context.Context) ([]*models.Pin, error) {
	var pins []*models.Pin
	if err := s.selectAll(ctx, &pins, `SELECT * FROM pins WHERE asset_id IS NULL ORDER BY external_pin_id`); err != nil {
		return nil, fmt.Errorf("list orphan pins: %w", err)
	}
	return pins, nil
}

func (s *SQLStore) ListPinsByAsset(ctx context.Context, assetID string) ([]*models.Pin, error) {
	var pins []*models.Pin
	if err := s.selectAll(ctx, &pins, `SELECT * FROM pins WHERE asset_id = ? ORDER BY external_pin_id`, assetID); err != nil {
		return nil, fmt.Errorf("list pins for asset %s: %w", assetID, err)
	}
	return pins, nil
}

// LinkPin sets the single association field of a pin
func (s *SQLStore) LinkPin(ctx context.Context, pinID, assetID string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE pins SET asset_id = ? WHERE id = ?`), assetID, pinID)
	if err != nil {
		return fmt.Errorf("link pin %s: %w", pinID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link pin %s: %w", pinID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertPins inserts new pins as orphans and refreshes metadata on existing ones.
// asset_id is not part of the statement, so existing links survive.
func (s *SQLStore) UpsertPins(ctx context.Context, pins []*models.PinSync) error {
	if len(pins) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`
		INSERT INTO pins (id, external_pin_id, title, description, image_url, last_stats,
			is_active_on_platform, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_pin_id) DO UPDATE SET
			title = COALESCE(excluded.title, pins.title),
			description = COALESCE(excluded.description, pins.description),
			image_url = COALESCE(excluded.image_url, pins.image_url),
			last_stats = COALESCE(excluded.last_stats, pins.last_stats),
			is_active_on_platform = excluded.is_active_on_platform,
			last_synced_at = excluded.last_synced_at
	`)

	for _, p := range pins {
		_, err := tx.ExecContext(ctx, query,
			uuid.NewString(), p.ExternalPinID, p.Title, p.Description, p.ImageURL, p.LastStats,
			true, p.SyncedAt)
		if err != nil {
			return fmt.Errorf("upsert pin %s: %w", p.ExternalPinID, err)
		}
	}

	return tx.Commit()
}

// Transaction operations

func (s *SQLStore) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.OccurredAt.IsZero() {
		t.OccurredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions (id, payhip_transaction_id, asset_id, amount, currency, source, occurred_at)
		VALUES (:id, :payhip_transaction_id, :asset_id, :amount, :currency, :source, :occurred_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, t); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert transaction: %w", ErrConflict)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) ListTransactions(ctx context.Context, assetID string) ([]*models.Transaction, error) {
	var txs []*models.Transaction
	err := s.selectAll(ctx, &txs, `SELECT * FROM transactions WHERE asset_id = ? ORDER BY occurred_at, id`, assetID)
	if err != nil {
		return nil, fmt.Errorf("list transactions for asset %s: %w", assetID, err)
	}
	return txs, nil
}
