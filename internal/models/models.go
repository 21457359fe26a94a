package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LifecycleStage is the business stage of an asset, independent of its tier
type LifecycleStage string

const (
	StageIncubation   LifecycleStage = "INCUBATION"
	StageMonetization LifecycleStage = "MONETIZATION"
	StageDominance    LifecycleStage = "DOMINANCE"
)

// MatrixType is the classification axis a matrix code belongs to
type MatrixType string

const (
	MatrixPrimary   MatrixType = "PRIMARY"
	MatrixSecondary MatrixType = "SECONDARY"
)

// TransactionSource tags where a sale came from
type TransactionSource string

const (
	SourcePayhip TransactionSource = "PAYHIP"
	SourceManual TransactionSource = "MANUAL"
)

// Asset is a monetizable unit scored from pin traffic and sales
type Asset struct {
	ID                    string         `json:"id" db:"id"`
	PrimaryMatrixID       *string        `json:"primary_matrix_id" db:"primary_matrix_id"`
	SecondaryMatrixID     *string        `json:"secondary_matrix_id" db:"secondary_matrix_id"`
	SKUSlug               string         `json:"sku_slug" db:"sku_slug"`
	DriveLink             *string        `json:"drive_link" db:"drive_link"`
	PayhipLink            *string        `json:"payhip_link" db:"payhip_link"`
	CachedTrafficScore    float64        `json:"cached_traffic_score" db:"cached_traffic_score"`
	CachedRevenueScore    float64        `json:"cached_revenue_score" db:"cached_revenue_score"`
	TotalScore            float64        `json:"total_score" db:"-"`
	CurrentRarity         Tier           `json:"current_rarity" db:"current_rarity"`
	HighestRarityAchieved Tier           `json:"highest_rarity_achieved" db:"highest_rarity_achieved"`
	LifecycleState        LifecycleStage `json:"lifecycle_state" db:"lifecycle_state"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
	LastSyncedAt          *time.Time     `json:"last_synced_at" db:"last_synced_at"`
	IsRetired             bool           `json:"is_retired" db:"is_retired"`
}

// ComputeTotal refreshes the derived total from the two caches
func (a *Asset) ComputeTotal() {
	a.TotalScore = a.CachedTrafficScore + a.CachedRevenueScore
}

// ScoreUpdate is the set of asset fields a reconciliation pass writes.
// A nil TrafficScore leaves the traffic cache untouched.
type ScoreUpdate struct {
	RevenueScore          float64
	TrafficScore          *float64
	CurrentRarity         Tier
	HighestRarityAchieved Tier
	LastSyncedAt          time.Time
}

// Pin is a traffic record synced from Pinterest. A nil AssetID marks an orphan.
type Pin struct {
	ID                 string     `json:"id" db:"id"`
	ExternalPinID      string     `json:"external_pin_id" db:"external_pin_id"`
	AssetID            *string    `json:"asset_id" db:"asset_id"`
	Title              *string    `json:"title" db:"title"`
	Description        *string    `json:"description" db:"description"`
	ImageURL           *string    `json:"image_url" db:"image_url"`
	LastStats          JSONBlob   `json:"last_stats" db:"last_stats"`
	IsActiveOnPlatform bool       `json:"is_active_on_platform" db:"is_active_on_platform"`
	LastSyncedAt       *time.Time `json:"last_synced_at" db:"last_synced_at"`
}

// OutboundClicks returns the outbound click count from the stats blob
func (p *Pin) OutboundClicks() float64 {
	return OutboundClicks(p.LastStats)
}

// PinSync is the projection a sync run is allowed to write.
// It has no asset field, so an upsert can never detach or re-link a pin.
// Nil fields keep whatever the row already holds.
type PinSync struct {
	ExternalPinID string    `db:"external_pin_id"`
	Title         *string   `db:"title"`
	Description   *string   `db:"description"`
	ImageURL      *string   `db:"image_url"`
	LastStats     JSONBlob  `db:"last_stats"`
	SyncedAt      time.Time `db:"last_synced_at"`
}

// Transaction is an immutable sale event
type Transaction struct {
	ID         string            `json:"id" db:"id"`
	ExternalID *string           `json:"payhip_transaction_id" db:"payhip_transaction_id"`
	AssetID    string            `json:"asset_id" db:"asset_id"`
	Amount     decimal.Decimal   `json:"amount" db:"amount"`
	Currency   string            `json:"currency" db:"currency"`
	Source     TransactionSource `json:"source" db:"source"`
	OccurredAt time.Time         `json:"occurred_at" db:"occurred_at"`
}

// Matrix is a classification code on one axis
type Matrix struct {
	ID        string     `json:"id" db:"id"`
	Code      string     `json:"code" db:"code"`
	Name      *string    `json:"name" db:"name"`
	Type      MatrixType `json:"type" db:"type"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	IsActive  bool       `json:"is_active" db:"is_active"`
}

// SettingType is the declared type of a system setting value
type SettingType string

const (
	SettingInteger SettingType = "integer"
	SettingFloat   SettingType = "float"
	SettingBoolean SettingType = "boolean"
	SettingString  SettingType = "string"
)

// IsNumeric reports whether values of this type parse as numbers
func (t SettingType) IsNumeric() bool {
	return t == SettingInteger || t == SettingFloat
}

// Setting is a typed key-value configuration row
type Setting struct {
	Key         string      `json:"key" db:"key"`
	Value       string      `json:"value" db:"value"`
	Description *string     `json:"description" db:"description"`
	DataType    SettingType `json:"data_type" db:"data_type"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// JSONBlob holds raw JSON from a JSONB (Postgres) or TEXT (SQLite) column
type JSONBlob []byte

// Scan implements sql.Scanner
func (j *JSONBlob) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONBlob(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONBlob", src)
	}
	return nil
}

// Value implements driver.Valuer
func (j JSONBlob) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// MarshalJSON emits the blob verbatim, or null when empty
func (j JSONBlob) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON keeps the raw bytes
func (j *JSONBlob) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[:0], data...)
	return nil
}
