// Package genesis creates new assets from a pair of matrix codes.
package genesis

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/rohankatakam/assetforge/internal/storage"
	"github.com/sirupsen/logrus"
)

// Request carries the inputs of a spawn
type Request struct {
	PrimaryCode   string  `json:"primary_matrix_code"`
	SecondaryCode string  `json:"secondary_matrix_code"`
	DriveLink     *string `json:"drive_link,omitempty"`
	PayhipLink    *string `json:"payhip_link,omitempty"`
}

// Spawner creates assets
type Spawner struct {
	store  storage.Store
	logger logrus.FieldLogger
}

// NewSpawner creates a spawner backed by store
func NewSpawner(store storage.Store, logger logrus.FieldLogger) *Spawner {
	return &Spawner{store: store, logger: logger.WithField("component", "genesis")}
}

// Slug builds the SKU for a code pair: SKU-{secondary}-{primary}, upper case
func Slug(primaryCode, secondaryCode string) string {
	return strings.ToUpper("SKU-" + secondaryCode + "-" + primaryCode)
}

// Spawn resolves both codes and inserts a fresh asset at the bottom of the ladder
func (s *Spawner) Spawn(ctx context.Context, req Request) (*models.Asset, error) {
	primaryCode := strings.TrimSpace(req.PrimaryCode)
	secondaryCode := strings.TrimSpace(req.SecondaryCode)
	if primaryCode == "" || secondaryCode == "" {
		return nil, errors.ValidationError("missing matrix codes: both primary and secondary codes are required")
	}

	primary, err := s.resolve(ctx, primaryCode, models.MatrixPrimary)
	if err != nil {
		return nil, err
	}
	secondary, err := s.resolve(ctx, secondaryCode, models.MatrixSecondary)
	if err != nil {
		return nil, err
	}

	asset := &models.Asset{
		PrimaryMatrixID:       &primary.ID,
		SecondaryMatrixID:     &secondary.ID,
		SKUSlug:               Slug(primaryCode, secondaryCode),
		DriveLink:             nonEmpty(req.DriveLink),
		PayhipLink:            nonEmpty(req.PayhipLink),
		CurrentRarity:         models.TierCommon,
		HighestRarityAchieved: models.TierCommon,
		LifecycleState:        models.StageIncubation,
	}

	if err := s.store.CreateAsset(ctx, asset); err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			return nil, errors.ConflictErrorf("asset already exists for this code pair: %s", asset.SKUSlug)
		}
		return nil, errors.StorageErrorf(err, "failed to create asset %s", asset.SKUSlug)
	}

	s.logger.WithFields(logrus.Fields{
		"asset_id": asset.ID,
		"sku_slug": asset.SKUSlug,
	}).Info("asset spawned")
	return asset, nil
}

func (s *Spawner) resolve(ctx context.Context, code string, axis models.MatrixType) (*models.Matrix, error) {
	m, err := s.store.GetMatrixByCode(ctx, code)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.NotFoundError(strings.ToLower(string(axis))+" matrix code", code)
	}
	if err != nil {
		return nil, errors.StorageErrorf(err, "matrix lookup failed for %s", code)
	}
	if m.Type != axis {
		return nil, errors.ValidationErrorf("matrix code %s is %s, expected %s", code, m.Type, axis)
	}
	return m, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
