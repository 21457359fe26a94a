// Package linking finds orphan pins with enough traffic to matter and
// attaches them to assets.
package linking

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/rohankatakam/assetforge/internal/reconcile"
	"github.com/rohankatakam/assetforge/internal/storage"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// KeyViralityTrigger is the click count an orphan must exceed to raise an alert
const KeyViralityTrigger = "ORPHAN_VIRALITY_TRIGGER"

// ThresholdSource reads required integer settings
type ThresholdSource interface {
	RequireInt(ctx context.Context, key string) (int, error)
}

// Rescorer recounts an asset's traffic and persists a fresh score
type Rescorer interface {
	RecountAndReconcile(ctx context.Context, assetID string) (*reconcile.Outcome, error)
}

// Workflow implements orphan scanning and adoption
type Workflow struct {
	store    storage.Store
	settings ThresholdSource
	rescorer Rescorer
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewWorkflow creates a linking workflow
func NewWorkflow(store storage.Store, settings ThresholdSource, rescorer Rescorer, logger logrus.FieldLogger) *Workflow {
	return &Workflow{
		store:    store,
		settings: settings,
		rescorer: rescorer,
		logger:   logger.WithField("component", "linking"),
		now:      time.Now,
	}
}

// Alert is an orphan pin over the virality trigger
type Alert struct {
	*models.Pin
	OutboundClicks float64 `json:"outbound_clicks"`
}

// ScanReport is the result of one orphan scan
type ScanReport struct {
	TriggerThreshold    int       `json:"trigger_threshold"`
	TotalOrphansScanned int       `json:"total_orphans_scanned"`
	RedAlertsFound      int       `json:"red_alerts_found"`
	Timestamp           time.Time `json:"timestamp"`
	Data                []Alert   `json:"-"`
}

// FindOrphans returns unlinked pins whose outbound clicks are strictly above
// threshold, busiest first, along with how many orphans were examined
func (w *Workflow) FindOrphans(ctx context.Context, threshold float64) ([]Alert, int, error) {
	orphans, err := w.store.ListOrphanPins(ctx)
	if err != nil {
		return nil, 0, errors.StorageError(err, "failed to scan orphan pins")
	}

	alerts := lo.FilterMap(orphans, func(p *models.Pin, _ int) (Alert, bool) {
		clicks := p.OutboundClicks()
		return Alert{Pin: p, OutboundClicks: clicks}, clicks > threshold
	})
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].OutboundClicks > alerts[j].OutboundClicks
	})
	return alerts, len(orphans), nil
}

// Scan reads the virality trigger and reports every orphan above it
func (w *Workflow) Scan(ctx context.Context) (*ScanReport, error) {
	trigger, err := w.settings.RequireInt(ctx, KeyViralityTrigger)
	if err != nil {
		return nil, err
	}

	alerts, scanned, err := w.FindOrphans(ctx, float64(trigger))
	if err != nil {
		return nil, err
	}

	report := &ScanReport{
		TriggerThreshold:    trigger,
		TotalOrphansScanned: scanned,
		RedAlertsFound:      len(alerts),
		Timestamp:           w.now().UTC(),
		Data:                alerts,
	}

	w.logger.WithFields(logrus.Fields{
		"trigger":    trigger,
		"scanned":    scanned,
		"red_alerts": len(alerts),
	}).Info("orphan scan completed")
	return report, nil
}

// AdoptResult describes an adoption and the rescore that followed it
type AdoptResult struct {
	PinID                 string      `json:"pin_id"`
	AssetID               string      `json:"asset_id"`
	PreviousRarity        models.Tier `json:"previous_rarity"`
	NewRarity             models.Tier `json:"new_rarity"`
	HighestRarityAchieved models.Tier `json:"highest_rarity_achieved"`
	// AddedTrafficMass is the traffic mass the asset holds after the
	// adoption, i.e. the resum of every linked pin. TotalTrafficMass carries
	// the same value.
	AddedTrafficMass      float64     `json:"added_traffic_mass"`
	TotalTrafficMass      float64     `json:"total_traffic_mass"`
	FormerAssetID         *string     `json:"former_asset_id,omitempty"`
}

// Adopt links pinID to assetID and rescores the asset with its recounted
// traffic. The link is committed before the rescore; if the rescore fails
// the link stays and the error is returned.
func (w *Workflow) Adopt(ctx context.Context, pinID, assetID string) (*AdoptResult, error) {
	if pinID == "" || assetID == "" {
		return nil, errors.ValidationError("missing required parameters: pin_id and asset_id")
	}

	var (
		pin   *models.Pin
		asset *models.Asset
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := w.store.GetPin(gctx, pinID)
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFoundError("pin", pinID)
		}
		if err != nil {
			return errors.StorageErrorf(err, "failed to load pin %s", pinID)
		}
		pin = p
		return nil
	})
	g.Go(func() error {
		a, err := w.store.GetAsset(gctx, assetID)
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFoundError("asset", assetID)
		}
		if err != nil {
			return errors.StorageErrorf(err, "failed to load asset %s", assetID)
		}
		asset = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log := w.logger.WithFields(logrus.Fields{
		"pin_id":          pinID,
		"external_pin_id": pin.ExternalPinID,
		"asset_id":        assetID,
	})

	var former *string
	if pin.AssetID != nil && *pin.AssetID != assetID {
		former = pin.AssetID
		log = log.WithField("former_asset_id", *former)
	}

	if err := w.store.LinkPin(ctx, pinID, assetID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFoundError("pin", pinID)
		}
		return nil, errors.StorageErrorf(err, "failed to link pin %s", pinID)
	}

	out, err := w.rescorer.RecountAndReconcile(ctx, assetID)
	if err != nil {
		log.WithError(err).Error("pin linked but asset rescore failed; asset stays stale until the next reconciliation")
		return nil, err
	}

	if former != nil {
		if _, err := w.rescorer.RecountAndReconcile(ctx, *former); err != nil {
			log.WithError(err).Warn("failed to recount former owner")
		}
	}

	log.WithFields(logrus.Fields{
		"previous_rarity": asset.CurrentRarity.OrCommon(),
		"new_rarity":      out.CurrentRarity,
		"total_traffic":   out.TrafficScore,
	}).Info("pin adopted")

	return &AdoptResult{
		PinID:                 pinID,
		AssetID:               assetID,
		PreviousRarity:        asset.CurrentRarity.OrCommon(),
		NewRarity:             out.CurrentRarity,
		HighestRarityAchieved: out.HighestRarityAchieved,
		AddedTrafficMass:      out.TrafficScore,
		TotalTrafficMass:      out.TrafficScore,
		FormerAssetID:         former,
	}, nil
}
