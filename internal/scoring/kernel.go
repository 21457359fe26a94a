// Package scoring turns an asset's traffic and revenue into a score, a rarity
// tier, and a high-water mark that never moves down.
package scoring

import (
	"context"
	"time"

	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Setting keys and their defaults
const (
	KeyWeightOutbound = "WEIGHT_OUTBOUND"
	KeyWeightRevenue  = "WEIGHT_DOLLAR_REVENUE"

	DefaultOutboundWeight = 5.0
	DefaultRevenueWeight  = 50.0
)

// thresholds is aligned with models.Ladder: thresholds[i] is the minimum score for Ladder[i]
var thresholds = [len(models.Ladder)]decimal.Decimal{
	decimal.NewFromInt(0),
	decimal.NewFromInt(100),
	decimal.NewFromInt(500),
	decimal.NewFromInt(2500),
	decimal.NewFromInt(10000),
}

// Threshold returns the minimum score for tier
func Threshold(tier models.Tier) decimal.Decimal {
	return thresholds[tier.Rank()]
}

// Weights are the multipliers applied to clicks and revenue
type Weights struct {
	Outbound float64 `json:"outbound"`
	Revenue  float64 `json:"revenue"`
}

// DefaultWeights returns the weights used when the store has no entries
func DefaultWeights() Weights {
	return Weights{Outbound: DefaultOutboundWeight, Revenue: DefaultRevenueWeight}
}

// WeightSource reads numeric settings with a default for absent keys
type WeightSource interface {
	Float(ctx context.Context, key string, def float64) (float64, error)
}

// LoadWeights reads both weights. Read failures and non-positive values are configuration errors.
func LoadWeights(ctx context.Context, src WeightSource) (Weights, error) {
	outbound, err := src.Float(ctx, KeyWeightOutbound, DefaultOutboundWeight)
	if err != nil {
		return Weights{}, err
	}
	revenue, err := src.Float(ctx, KeyWeightRevenue, DefaultRevenueWeight)
	if err != nil {
		return Weights{}, err
	}

	w := Weights{Outbound: outbound, Revenue: revenue}
	if w.Outbound <= 0 {
		return Weights{}, errors.ConfigErrorf("%s must be positive, got %v", KeyWeightOutbound, w.Outbound)
	}
	if w.Revenue <= 0 {
		return Weights{}, errors.ConfigErrorf("%s must be positive, got %v", KeyWeightRevenue, w.Revenue)
	}
	return w, nil
}

// Result is the output of one scoring pass
type Result struct {
	RevenueScorePart    decimal.Decimal `json:"revenue_score_part"`
	TrafficScorePart    decimal.Decimal `json:"traffic_score_part"`
	FinalScore          decimal.Decimal `json:"final_score"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	CurrentTier         models.Tier     `json:"current_tier"`
	HighestTierAchieved models.Tier     `json:"highest_tier_achieved"`
	Promoted            bool            `json:"promoted"`
}

// Update is the persistence payload for this result. The traffic cache is
// left out; callers that recounted traffic set it themselves.
func (r Result) Update(now time.Time) models.ScoreUpdate {
	return models.ScoreUpdate{
		RevenueScore:          r.RevenueScorePart.InexactFloat64(),
		CurrentRarity:         r.CurrentTier,
		HighestRarityAchieved: r.HighestTierAchieved,
		LastSyncedAt:          now,
	}
}

// Classify returns the highest tier whose threshold is <= score
func Classify(score decimal.Decimal) models.Tier {
	for i := len(models.Ladder) - 1; i >= 0; i-- {
		if tier := models.Ladder[i]; score.GreaterThanOrEqual(Threshold(tier)) {
			return tier
		}
	}
	return models.TierCommon
}

// Ratchet returns whichever of calculated and historical sits higher on the ladder
func Ratchet(calculated, historical models.Tier) models.Tier {
	if calculated.Rank() > historical.Rank() {
		return calculated
	}
	return historical.OrCommon()
}

// ComputeScore scores asset from its cached traffic and its full transaction history
func ComputeScore(asset *models.Asset, txs []*models.Transaction, w Weights) Result {
	totalRevenue := decimal.Zero
	for _, tx := range txs {
		totalRevenue = totalRevenue.Add(tx.Amount)
	}

	revenuePart := totalRevenue.Mul(decimal.NewFromFloat(w.Revenue))
	trafficPart := decimal.NewFromFloat(asset.CachedTrafficScore).Mul(decimal.NewFromFloat(w.Outbound))
	score := trafficPart.Add(revenuePart)

	calculated := Classify(score)
	highest := Ratchet(calculated, asset.HighestRarityAchieved)

	return Result{
		RevenueScorePart:    revenuePart,
		TrafficScorePart:    trafficPart,
		FinalScore:          score,
		TotalRevenue:        totalRevenue,
		CurrentTier:         calculated,
		HighestTierAchieved: highest,
		Promoted:            highest.Rank() > asset.HighestRarityAchieved.Rank(),
	}
}

// Kernel binds ComputeScore to the live weights
type Kernel struct {
	weights WeightSource
	logger  logrus.FieldLogger
}

// NewKernel creates a kernel reading weights from src
func NewKernel(src WeightSource, logger logrus.FieldLogger) *Kernel {
	return &Kernel{
		weights: src,
		logger:  logger.WithField("component", "scoring"),
	}
}

// Score loads the current weights and scores asset
func (k *Kernel) Score(ctx context.Context, asset *models.Asset, txs []*models.Transaction) (Result, error) {
	w, err := LoadWeights(ctx, k.weights)
	if err != nil {
		return Result{}, err
	}

	r := ComputeScore(asset, txs, w)

	entry := k.logger.WithFields(logrus.Fields{
		"asset_id":     asset.ID,
		"final_score":  r.FinalScore.String(),
		"current_tier": r.CurrentTier,
		"highest_tier": r.HighestTierAchieved,
	})
	if r.Promoted {
		entry.Info("asset promoted")
	} else {
		entry.Debug("asset scored")
	}
	return r, nil
}
