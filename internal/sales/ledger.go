// Package sales records sale events against assets and rescores them.
package sales

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/rohankatakam/assetforge/internal/reconcile"
	"github.com/rohankatakam/assetforge/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCurrency = "USD"

	StatusSuccess = "success"
	StatusIgnored = "ignored"

	ReasonNotLinked = "asset not linked"
	ReasonDuplicate = "duplicate transaction"

	manualPrefix = "MANUAL-"
)

// Reconciler rescores an asset after a sale lands
type Reconciler interface {
	ReconcileAsset(ctx context.Context, assetID string) (*reconcile.Outcome, error)
}

// Sale is a vendor notification for one purchase
type Sale struct {
	ID          string          `json:"id"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	ProductLink string          `json:"product_link"`
	Email       string          `json:"email,omitempty"`
}

// Manual is an operator-entered sale
type Manual struct {
	AssetID    string          `json:"asset_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	OccurredAt *time.Time      `json:"occurred_at,omitempty"`
}

// Receipt reports what happened to a sale
type Receipt struct {
	Status       string              `json:"status"`
	Reason       string              `json:"reason,omitempty"`
	AssetID      string              `json:"-"`
	SKUSlug      string              `json:"asset,omitempty"`
	NewRarity    models.Tier         `json:"new_rarity,omitempty"`
	RevenueAdded decimal.Decimal     `json:"revenue_added"`
	Transaction  *models.Transaction `json:"-"`
}

// Ledger appends transactions and triggers reconciliation
type Ledger struct {
	store      storage.Store
	reconciler Reconciler
	logger     logrus.FieldLogger
	now        func() time.Time
}

// NewLedger creates a sales ledger
func NewLedger(store storage.Store, reconciler Reconciler, logger logrus.FieldLogger) *Ledger {
	return &Ledger{
		store:      store,
		reconciler: reconciler,
		logger:     logger.WithField("component", "sales"),
		now:        time.Now,
	}
}

// RecordSale books a vendor sale. Sales for unknown products and replays of
// an already booked sale are ignored rather than failed, so the vendor stops
// retrying them.
func (l *Ledger) RecordSale(ctx context.Context, sale Sale) (*Receipt, error) {
	sale.ID = strings.TrimSpace(sale.ID)
	sale.ProductLink = strings.TrimSpace(sale.ProductLink)
	if sale.ID == "" || sale.ProductLink == "" || !sale.Price.IsPositive() {
		return nil, errors.ValidationError("invalid payload: missing required fields (id, price, product_link)")
	}

	log := l.logger.WithFields(logrus.Fields{
		"transaction_id": sale.ID,
		"product_link":   sale.ProductLink,
	})

	asset, err := l.store.FindAssetByPayhipLink(ctx, sale.ProductLink)
	if stderrors.Is(err, storage.ErrNotFound) {
		log.Warn("no asset found for product link, sale ignored")
		return &Receipt{Status: StatusIgnored, Reason: ReasonNotLinked, RevenueAdded: decimal.Zero}, nil
	}
	if err != nil {
		return nil, errors.StorageError(err, "asset search failed")
	}

	tx := &models.Transaction{
		ExternalID: &sale.ID,
		AssetID:    asset.ID,
		Amount:     sale.Price,
		Currency:   currencyOrDefault(sale.Currency),
		Source:     models.SourcePayhip,
		OccurredAt: l.now().UTC(),
	}
	if err := l.store.InsertTransaction(ctx, tx); err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			log.Info("sale already recorded, replay ignored")
			return &Receipt{Status: StatusIgnored, Reason: ReasonDuplicate, RevenueAdded: decimal.Zero}, nil
		}
		return nil, errors.StorageError(err, "transaction insert failed")
	}

	log.WithFields(logrus.Fields{
		"sku_slug": asset.SKUSlug,
		"amount":   sale.Price.String(),
	}).Info("sale confirmed")

	out, err := l.reconciler.ReconcileAsset(ctx, asset.ID)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		Status:       StatusSuccess,
		AssetID:      asset.ID,
		SKUSlug:      asset.SKUSlug,
		NewRarity:    out.CurrentRarity,
		RevenueAdded: sale.Price,
		Transaction:  tx,
	}, nil
}

// RecordManual books an operator-entered sale and rescores the asset
func (l *Ledger) RecordManual(ctx context.Context, m Manual) (*Receipt, error) {
	if strings.TrimSpace(m.AssetID) == "" {
		return nil, errors.ValidationError("asset_id is required")
	}
	if !m.Amount.IsPositive() {
		return nil, errors.ValidationErrorf("amount must be positive, got %s", m.Amount.String())
	}

	asset, err := l.store.GetAsset(ctx, m.AssetID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.NotFoundError("asset", m.AssetID)
	}
	if err != nil {
		return nil, errors.StorageErrorf(err, "failed to load asset %s", m.AssetID)
	}

	occurred := l.now().UTC()
	if m.OccurredAt != nil && !m.OccurredAt.IsZero() {
		occurred = m.OccurredAt.UTC()
	}
	externalID := manualPrefix + uuid.NewString()

	tx := &models.Transaction{
		ExternalID: &externalID,
		AssetID:    asset.ID,
		Amount:     m.Amount,
		Currency:   currencyOrDefault(m.Currency),
		Source:     models.SourceManual,
		OccurredAt: occurred,
	}
	if err := l.store.InsertTransaction(ctx, tx); err != nil {
		return nil, errors.StorageError(err, "transaction insert failed")
	}

	l.logger.WithFields(logrus.Fields{
		"asset_id": asset.ID,
		"amount":   m.Amount.String(),
	}).Info("manual transaction recorded")

	out, err := l.reconciler.ReconcileAsset(ctx, asset.ID)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		Status:       StatusSuccess,
		AssetID:      asset.ID,
		SKUSlug:      asset.SKUSlug,
		NewRarity:    out.CurrentRarity,
		RevenueAdded: m.Amount,
		Transaction:  tx,
	}, nil
}

func currencyOrDefault(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCurrency
	}
	return c
}
