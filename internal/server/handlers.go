package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/genesis"
	"github.com/rohankatakam/assetforge/internal/linking"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/rohankatakam/assetforge/internal/reconcile"
	"github.com/rohankatakam/assetforge/internal/sales"
	"github.com/rohankatakam/assetforge/internal/trafficsync"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Spawner creates assets
type Spawner interface {
	Spawn(ctx context.Context, req genesis.Request) (*models.Asset, error)
}

// Linker scans and adopts orphan pins
type Linker interface {
	Scan(ctx context.Context) (*linking.ScanReport, error)
	Adopt(ctx context.Context, pinID, assetID string) (*linking.AdoptResult, error)
}

// Ledger books sales
type Ledger interface {
	RecordSale(ctx context.Context, sale sales.Sale) (*sales.Receipt, error)
	RecordManual(ctx context.Context, m sales.Manual) (*sales.Receipt, error)
}

// Syncer runs sync passes
type Syncer interface {
	Run(ctx context.Context, scope string) (*trafficsync.Report, error)
}

// Reconciler rescores a single asset
type Reconciler interface {
	ReconcileAsset(ctx context.Context, assetID string) (*reconcile.Outcome, error)
}

// HealthCheck is one named dependency probe
type HealthCheck func(ctx context.Context) error

// Handlers serves the function endpoints
type Handlers struct {
	spawner    Spawner
	linker     Linker
	ledger     Ledger
	syncer     Syncer
	reconciler Reconciler
	checks     map[string]HealthCheck
	logger     logrus.FieldLogger
}

func bind(c *gin.Context, target interface{}) error {
	if err := c.ShouldBindJSON(target); err != nil {
		return errors.ValidationErrorf("invalid request body: %v", err)
	}
	return nil
}

func (h *Handlers) GenesisSeed(c *gin.Context) {
	var req genesis.Request
	if err := bind(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	asset, err := h.spawner.Spawn(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"status":  "success",
		"message": "Asset successfully seeded.",
		"data":    asset,
	})
}

type adoptRequest struct {
	PinID   string `json:"pin_id"`
	AssetID string `json:"asset_id"`
}

func (h *Handlers) AdoptOrphan(c *gin.Context) {
	var req adoptRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	res, err := h.linker.Adopt(c.Request.Context(), req.PinID, req.AssetID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":                  "success",
		"message":                 "Pin adopted and asset metrics recalculated.",
		"previous_rarity":         res.PreviousRarity,
		"new_rarity":              res.NewRarity,
		"highest_rarity_achieved": res.HighestRarityAchieved,
		"added_traffic_mass":      res.AddedTrafficMass,
		"total_traffic_mass":      res.TotalTrafficMass,
	})
}

func (h *Handlers) ScanOrphans(c *gin.Context) {
	report, err := h.linker.Scan(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	data := report.Data
	if data == nil {
		data = []linking.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"meta":   report,
		"data":   data,
	})
}

type syncRequest struct {
	Scope string `json:"scope"`
}

func (h *Handlers) CronosSync(c *gin.Context) {
	var req syncRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	report, err := h.syncer.Run(c.Request.Context(), req.Scope)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handlers) PayhipWebhook(c *gin.Context) {
	var sale sales.Sale
	if err := bind(c, &sale); err != nil {
		respondError(c, h.logger, err)
		return
	}

	receipt, err := h.ledger.RecordSale(c.Request.Context(), sale)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// Ignored sales still answer 200 so the vendor stops retrying
	if receipt.Status == sales.StatusIgnored {
		c.JSON(http.StatusOK, gin.H{"status": receipt.Status, "reason": receipt.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        receipt.Status,
		"asset":         receipt.SKUSlug,
		"new_rarity":    receipt.NewRarity,
		"revenue_added": receipt.RevenueAdded.InexactFloat64(),
	})
}

type manualRequest struct {
	AssetID    string          `json:"asset_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OccurredAt *time.Time      `json:"occurred_at"`
}

func (h *Handlers) ManualTransaction(c *gin.Context) {
	var req manualRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	receipt, err := h.ledger.RecordManual(c.Request.Context(), sales.Manual{
		AssetID:    req.AssetID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		OccurredAt: req.OccurredAt,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"status":     receipt.Status,
		"data":       receipt.Transaction,
		"new_rarity": receipt.NewRarity,
	})
}

type reconcileRequest struct {
	AssetID string `json:"asset_id"`
}

func (h *Handlers) ReconcileAsset(c *gin.Context) {
	var req reconcileRequest
	if err := bind(c, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if req.AssetID == "" {
		respondError(c, h.logger, errors.ValidationError("asset_id is required"))
		return
	}

	out, err := h.reconciler.ReconcileAsset(c.Request.Context(), req.AssetID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":                  "success",
		"asset_id":                out.AssetID,
		"current_rarity":          out.CurrentRarity,
		"highest_rarity_achieved": out.HighestRarityAchieved,
		"final_score":             out.FinalScore.InexactFloat64(),
	})
}

func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WithError(err).WithField("check", name).Warn("health check failed")
			c.String(http.StatusServiceUnavailable, name+" unavailable")
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
