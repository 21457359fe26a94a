package storage

import (
	"context"
	"errors"

	"github.com/rohankatakam/assetforge/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Store defines the storage interface
type Store interface {
	// Setting operations
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	ListSettings(ctx context.Context) ([]*models.Setting, error)
	PutSetting(ctx context.Context, setting *models.Setting) error

	// Matrix operations
	GetMatrixByCode(ctx context.Context, code string) (*models.Matrix, error)
	SaveMatrix(ctx context.Context, matrix *models.Matrix) error

	// Asset operations
	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	FindAssetByPayhipLink(ctx context.Context, productLink string) (*models.Asset, error)
	ListActiveAssets(ctx context.Context) ([]*models.Asset, error)
	// UpdateAssetScore writes u only if the stored high-water mark still equals
	// expectedHighest; otherwise it returns ErrConflict.
	UpdateAssetScore(ctx context.Context, id string, expectedHighest models.Tier, u models.ScoreUpdate) error

	// Pin operations
	GetPin(ctx context.Context, id string) (*models.Pin, error)
	ListOrphanPins(ctx context.Context) ([]*models.Pin, error)
	ListPinsByAsset(ctx context.Context, assetID string) ([]*models.Pin, error)
	LinkPin(ctx context.Context, pinID, assetID string) error
	UpsertPins(ctx context.Context, pins []*models.PinSync) error

	// Transaction operations
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	ListTransactions(ctx context.Context, assetID string) ([]*models.Transaction, error)

	Ping(ctx context.Context) error
	Close() error
}
