// Package reconcile loads an asset's inputs, runs the scoring kernel, and
// persists the outcome. It is the only writer of asset scores and tiers.
package reconcile

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/rohankatakam/assetforge/internal/scoring"
	"github.com/rohankatakam/assetforge/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxAttempts = 3
	DefaultWorkers     = 8
)

// Options tunes the orchestrator. Zero values pick the defaults.
type Options struct {
	MaxAttempts int
	Workers     int
	// TimeBudget bounds ReconcileAll; no asset is started after it elapses. 0 means unbounded.
	TimeBudget time.Duration
	Now        func() time.Time
}

// Orchestrator coordinates scoring passes against the store
type Orchestrator struct {
	store  storage.Store
	kernel *scoring.Kernel
	logger logrus.FieldLogger
	opts   Options
}

// NewOrchestrator creates a new reconciliation orchestrator
func NewOrchestrator(store storage.Store, kernel *scoring.Kernel, logger logrus.FieldLogger, opts Options) *Orchestrator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		store:  store,
		kernel: kernel,
		logger: logger.WithField("component", "reconcile"),
		opts:   opts,
	}
}

// Outcome is what a single-asset pass persisted
type Outcome struct {
	AssetID               string          `json:"asset_id"`
	PreviousRarity        models.Tier     `json:"previous_rarity"`
	CurrentRarity         models.Tier     `json:"current_rarity"`
	HighestRarityAchieved models.Tier     `json:"highest_rarity_achieved"`
	TrafficScore          float64         `json:"traffic_score"`
	RevenueScore          decimal.Decimal `json:"revenue_score"`
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
	FinalScore            decimal.Decimal `json:"final_score"`
	Promoted              bool            `json:"promoted"`
	Attempts              int             `json:"attempts"`
}

// Failure records one asset a bulk pass could not reconcile
type Failure struct {
	AssetID string `json:"asset_id"`
	SKUSlug string `json:"sku_slug"`
	Error   string `json:"error"`
}

// BulkResult summarizes a ReconcileAll pass
type BulkResult struct {
	Processed int           `json:"assets_processed"`
	Updated   int           `json:"assets_updated"`
	Failures  []Failure     `json:"failures"`
	Truncated bool          `json:"truncated"`
	Duration  time.Duration `json:"-"`
}

// ReconcileAsset rescores one asset from its cached traffic and full transaction history
func (o *Orchestrator) ReconcileAsset(ctx context.Context, assetID string) (*Outcome, error) {
	return o.reconcile(ctx, assetID, false)
}

// RecountAndReconcile resums the asset's traffic from its linked pins and
// persists the new traffic cache together with the kernel output
func (o *Orchestrator) RecountAndReconcile(ctx context.Context, assetID string) (*Outcome, error) {
	return o.reconcile(ctx, assetID, true)
}

// RecountTraffic returns the sum of outbound clicks over every pin linked to the asset
func (o *Orchestrator) RecountTraffic(ctx context.Context, assetID string) (float64, error) {
	pins, err := o.store.ListPinsByAsset(ctx, assetID)
	if err != nil {
		return 0, errors.StorageErrorf(err, "failed to load pins for asset %s", assetID)
	}

	var total float64
	for _, p := range pins {
		total += p.OutboundClicks()
	}
	return total, nil
}

func (o *Orchestrator) reconcile(ctx context.Context, assetID string, recount bool) (*Outcome, error) {
	log := o.logger.WithField("asset_id", assetID)

	for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.InternalErrorf("reconcile of asset %s interrupted: %v", assetID, err)
		}

		out, err := o.attempt(ctx, assetID, recount)
		if err == nil {
			out.Attempts = attempt
			return out, nil
		}
		if !stderrors.Is(err, storage.ErrConflict) {
			return nil, err
		}
		log.WithField("attempt", attempt).Debug("concurrent tier update, retrying")
	}

	log.WithField("attempts", o.opts.MaxAttempts).Warn("gave up after repeated write conflicts")
	return nil, errors.StorageErrorf(storage.ErrConflict, "asset %s kept changing during reconciliation", assetID)
}

// attempt runs one read-score-write cycle. A lost compare-and-swap is
// returned as storage.ErrConflict so the caller can retry.
func (o *Orchestrator) attempt(ctx context.Context, assetID string, recount bool) (*Outcome, error) {
	asset, err := o.store.GetAsset(ctx, assetID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.NotFoundError("asset", assetID)
	}
	if err != nil {
		return nil, errors.StorageErrorf(err, "failed to load asset %s", assetID)
	}

	txs, err := o.store.ListTransactions(ctx, assetID)
	if err != nil {
		return nil, errors.StorageErrorf(err, "failed to load transactions for asset %s", assetID)
	}

	var traffic *float64
	if recount {
		total, err := o.RecountTraffic(ctx, assetID)
		if err != nil {
			return nil, err
		}
		traffic = &total
		asset.CachedTrafficScore = total
	}

	result, err := o.kernel.Score(ctx, asset, txs)
	if err != nil {
		return nil, err
	}

	update := result.Update(o.opts.Now().UTC())
	update.TrafficScore = traffic

	err = o.store.UpdateAssetScore(ctx, assetID, asset.HighestRarityAchieved, update)
	switch {
	case err == nil:
	case stderrors.Is(err, storage.ErrConflict):
		return nil, err
	case stderrors.Is(err, storage.ErrNotFound):
		return nil, errors.NotFoundError("asset", assetID)
	default:
		return nil, errors.StorageErrorf(err, "failed to persist score for asset %s", assetID)
	}

	return &Outcome{
		AssetID:               assetID,
		PreviousRarity:        asset.CurrentRarity.OrCommon(),
		CurrentRarity:         result.CurrentTier,
		HighestRarityAchieved: result.HighestTierAchieved,
		TrafficScore:          asset.CachedTrafficScore,
		RevenueScore:          result.RevenueScorePart,
		TotalRevenue:          result.TotalRevenue,
		FinalScore:            result.FinalScore,
		Promoted:              result.Promoted,
	}, nil
}

// ReconcileAll rescores every non-retired asset with a bounded worker pool.
// A failing asset is recorded and the batch carries on. Once the time budget
// elapses or ctx is done, no further assets are started and the result is
// marked truncated.
func (o *Orchestrator) ReconcileAll(ctx context.Context) (*BulkResult, error) {
	start := o.opts.Now()
	assets, err := o.store.ListActiveAssets(ctx)
	if err != nil {
		return nil, errors.StorageError(err, "failed to list active assets")
	}

	o.logger.WithFields(logrus.Fields{
		"assets":  len(assets),
		"workers": o.opts.Workers,
		"budget":  o.opts.TimeBudget.String(),
	}).Info("starting bulk reconciliation")

	var deadline time.Time
	if o.opts.TimeBudget > 0 {
		deadline = start.Add(o.opts.TimeBudget)
	}

	expired := func() bool {
		return ctx.Err() != nil || (!deadline.IsZero() && !o.opts.Now().Before(deadline))
	}

	result := &BulkResult{Failures: []Failure{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	for _, a := range assets {
		if expired() {
			mu.Lock()
			result.Truncated = true
			mu.Unlock()
			break
		}

		a := a
		g.Go(func() error {
			// A worker slot may free up only after the budget is spent
			if expired() {
				mu.Lock()
				result.Truncated = true
				mu.Unlock()
				return nil
			}

			_, err := o.reconcile(ctx, a.ID, false)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if err != nil {
				o.logger.WithError(err).WithFields(logrus.Fields{
					"asset_id": a.ID,
					"sku_slug": a.SKUSlug,
				}).Error("asset reconciliation failed")
				result.Failures = append(result.Failures, Failure{AssetID: a.ID, SKUSlug: a.SKUSlug, Error: err.Error()})
				return nil
			}
			result.Updated++
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = o.opts.Now().Sub(start)
	if result.Truncated {
		o.logger.WithFields(logrus.Fields{
			"processed": result.Processed,
			"remaining": len(assets) - result.Processed,
		}).Warn("bulk reconciliation stopped early; remaining assets left for the next run")
	}
	o.logger.WithFields(logrus.Fields{
		"processed": result.Processed,
		"updated":   result.Updated,
		"failed":    len(result.Failures),
		"duration":  result.Duration.String(),
	}).Info("bulk reconciliation completed")

	return result, nil
}
