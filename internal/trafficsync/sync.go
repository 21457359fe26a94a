// Package trafficsync pulls pin traffic from Pinterest into the store and
// runs bulk reconciliation.
package trafficsync

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rohankatakam/assetforge/internal/cache"
	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/rohankatakam/assetforge/internal/pinterest"
	"github.com/rohankatakam/assetforge/internal/reconcile"
	"github.com/rohankatakam/assetforge/internal/storage"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Scope selects what a run does
type Scope string

const (
	ScopeTopPins   Scope = "top_pins"
	ScopeFinancial Scope = "financial"
	ScopeFull      Scope = "full"
)

// ParseScope validates a scope name
func ParseScope(s string) (Scope, error) {
	switch scope := Scope(strings.ToLower(strings.TrimSpace(s))); scope {
	case ScopeTopPins, ScopeFinancial, ScopeFull:
		return scope, nil
	}
	return "", errors.ValidationErrorf("invalid scope %q: expected top_pins, financial or full", s)
}

// PinSource is the subset of the Pinterest API a run reads
type PinSource interface {
	TopPins(ctx context.Context, start, end time.Time, limit int) ([]pinterest.TopPin, error)
	ListPins(ctx context.Context, pageSize int, bookmark string) (*pinterest.Page, error)
}

// BulkReconciler rescores every active asset
type BulkReconciler interface {
	ReconcileAll(ctx context.Context) (*reconcile.BulkResult, error)
}

// Options tunes a Syncer. Zero values pick the defaults.
type Options struct {
	PageSize          int
	MaxPages          int
	TopPinsWindowDays int
	TopPinsLimit      int
	LeaseTTL          time.Duration
	Now               func() time.Time
}

func (o *Options) applyDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = 25
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 10
	}
	if o.TopPinsWindowDays <= 0 {
		o.TopPinsWindowDays = 30
	}
	if o.TopPinsLimit <= 0 {
		o.TopPinsLimit = 50
	}
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = 10 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Report is the outcome of one run
type Report struct {
	Status  string   `json:"status"`
	Logs    []string `json:"logs"`
	Results Results  `json:"results"`
}

// Results holds one entry per executed step
type Results struct {
	Financial *FinancialResult `json:"financial,omitempty"`
	TopPins   *TopPinsResult   `json:"top_pins,omitempty"`
	FullSync  *FullSyncResult  `json:"full_sync,omitempty"`
}

type FinancialResult struct {
	AssetsProcessed int                 `json:"assets_processed"`
	AssetsUpdated   int                 `json:"assets_updated"`
	Failures        []reconcile.Failure `json:"failures"`
	Truncated       bool                `json:"truncated"`
}

type TopPinsResult struct {
	Count int `json:"count"`
}

type FullSyncResult struct {
	TotalSynced int    `json:"total_synced"`
	Pages       int    `json:"pages"`
	Truncated   bool   `json:"truncated"`
	Resumed     bool   `json:"resumed"`
	Error       string `json:"error,omitempty"`
}

func (r *Report) logf(format string, args ...interface{}) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

// Syncer runs sync passes
type Syncer struct {
	store      storage.Store
	pins       PinSource
	reconciler BulkReconciler
	redis      *cache.Client // optional
	checkpoint *Checkpoint   // optional
	logger     logrus.FieldLogger
	opts       Options
}

// NewSyncer creates a syncer. redis and checkpoint may be nil: without redis
// no lease is taken, without a checkpoint the inventory scan always starts
// from the first page.
func NewSyncer(store storage.Store, pins PinSource, reconciler BulkReconciler, redis *cache.Client, checkpoint *Checkpoint, logger logrus.FieldLogger, opts Options) *Syncer {
	opts.applyDefaults()
	return &Syncer{
		store:      store,
		pins:       pins,
		reconciler: reconciler,
		redis:      redis,
		checkpoint: checkpoint,
		logger:     logger.WithField("component", "trafficsync"),
		opts:       opts,
	}
}

// LeaseKey is the Redis key guarding sync runs
var LeaseKey = cache.Key("lease", "sync")

// Run executes scope and returns its report
func (s *Syncer) Run(ctx context.Context, scopeName string) (*Report, error) {
	scope, err := ParseScope(scopeName)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		lease, err := s.redis.Acquire(ctx, LeaseKey, s.opts.LeaseTTL)
		if stderrors.Is(err, cache.ErrLeaseHeld) {
			return nil, errors.ConflictErrorf("a sync run is already in progress")
		}
		if err != nil {
			return nil, errors.ExternalError(err, "failed to acquire sync lease")
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WithError(err).Warn("failed to release sync lease")
			}
		}()
	}

	if scope != ScopeFinancial {
		if err := s.requirePins(); err != nil {
			return nil, err
		}
	}

	start := s.opts.Now()
	report := &Report{Status: "success", Logs: []string{}}
	report.logf("Starting sync with scope: %s", scope)
	s.logger.WithField("scope", scope).Info("sync started")

	if scope == ScopeFinancial || scope == ScopeFull {
		if err := s.financial(ctx, report); err != nil {
			return nil, err
		}
	}
	if scope == ScopeTopPins {
		if err := s.topPins(ctx, report); err != nil {
			return nil, err
		}
	}
	if scope == ScopeFull {
		// The financial pass is already persisted, so an inventory failure
		// downgrades the run instead of discarding its report.
		if err := s.inventory(ctx, report); err != nil {
			report.Status = "partial"
			report.logf("ERROR: inventory scan failed after %d pages: %v", report.Results.FullSync.Pages, err)
			s.logger.WithError(err).WithFields(logrus.Fields{
				"assets_processed": report.Results.Financial.AssetsProcessed,
				"assets_updated":   report.Results.Financial.AssetsUpdated,
				"pins_synced":      report.Results.FullSync.TotalSynced,
				"pages":            report.Results.FullSync.Pages,
			}).Error("inventory scan failed, financial reconciliation kept")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"scope":    scope,
		"status":   report.Status,
		"duration": s.opts.Now().Sub(start).String(),
	}).Info("sync completed")

	if s.redis != nil {
		if err := s.redis.Set(ctx, LastReportKey(scope), report); err != nil {
			s.logger.WithError(err).Warn("failed to store sync report")
		}
	}
	return report, nil
}

// LastReportKey is where the most recent report for scope is kept in Redis
func LastReportKey(scope Scope) string {
	return cache.Key("sync", "last", string(scope))
}

func (s *Syncer) financial(ctx context.Context, report *Report) error {
	report.logf(">>> Executing financial reconciliation")

	bulk, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		return err
	}

	report.Results.Financial = &FinancialResult{
		AssetsProcessed: bulk.Processed,
		AssetsUpdated:   bulk.Updated,
		Failures:        bulk.Failures,
		Truncated:       bulk.Truncated,
	}
	if len(bulk.Failures) > 0 {
		report.logf("WARNING: %d assets failed to reconcile", len(bulk.Failures))
	}
	if bulk.Truncated {
		report.logf("WARNING: time budget reached after %d assets; the rest are left for the next run", bulk.Processed)
	}
	return nil
}

func (s *Syncer) requirePins() error {
	if s.pins == nil {
		return errors.ConfigError("pinterest client is not configured")
	}
	return nil
}

func (s *Syncer) topPins(ctx context.Context, report *Report) error {
	report.logf(">>> Mode: TOP_PINS (analytics harvest)")

	end := s.opts.Now().UTC()
	begin := end.AddDate(0, 0, -s.opts.TopPinsWindowDays)
	dateRange := fmt.Sprintf("%dd", s.opts.TopPinsWindowDays)

	top, err := s.pins.TopPins(ctx, begin, end, s.opts.TopPinsLimit)
	if err != nil {
		return err
	}
	report.logf("Fetched %d top performing pins.", len(top))

	var encodeErr error
	rows := lo.FilterMap(top, func(p pinterest.TopPin, _ int) (*models.PinSync, bool) {
		if p.PinID == "" {
			return nil, false
		}
		stats, err := models.PinStats{
			OutboundClicks: p.OutboundClicks,
			Impressions:    p.Impressions,
			Saves:          p.Saves,
			DateRange:      dateRange,
		}.Encode()
		if err != nil {
			encodeErr = err
			return nil, false
		}
		return &models.PinSync{
			ExternalPinID: p.PinID,
			Title:         optional(p.Title),
			LastStats:     stats,
			SyncedAt:      end,
		}, true
	})
	if encodeErr != nil {
		return errors.InternalErrorf("failed to encode pin stats: %v", encodeErr)
	}

	if err := s.store.UpsertPins(ctx, rows); err != nil {
		return errors.StorageError(err, "pin upsert failed")
	}

	report.Results.TopPins = &TopPinsResult{Count: len(top)}
	return nil
}

func (s *Syncer) inventory(ctx context.Context, report *Report) error {
	report.logf(">>> Mode: FULL (deep inventory scan)")

	result := &FullSyncResult{}
	report.Results.FullSync = result
	bookmark := ""
	if s.checkpoint != nil {
		state, err := s.checkpoint.Inventory()
		if err != nil {
			s.logger.WithError(err).Warn("unreadable sync checkpoint, starting from the first page")
		} else if state != nil && state.Bookmark != "" {
			bookmark = state.Bookmark
			result.Resumed = true
			report.logf("Resuming inventory scan from checkpoint saved %s", state.UpdatedAt.Format(time.RFC3339))
		}
	}

	for {
		if result.Pages >= s.opts.MaxPages {
			result.Truncated = true
			report.logf("WARNING: pagination limit of %d pages reached; the next run resumes from here.", s.opts.MaxPages)
			s.logger.WithField("pages", result.Pages).Warn("inventory scan hit page ceiling")
			s.saveBookmark(bookmark, result.Pages)
			break
		}

		page, err := s.pins.ListPins(ctx, s.opts.PageSize, bookmark)
		if err != nil {
			// Keep the position reached so far
			s.saveBookmark(bookmark, result.Pages)
			result.Error = err.Error()
			return err
		}
		result.Pages++

		now := s.opts.Now().UTC()
		rows := lo.FilterMap(page.Items, func(p pinterest.Pin, _ int) (*models.PinSync, bool) {
			return &models.PinSync{
				ExternalPinID: p.ID,
				Title:         optional(p.Title),
				Description:   optional(p.Description),
				ImageURL:      optional(p.ImageURL),
				SyncedAt:      now,
			}, p.ID != ""
		})
		if err := s.store.UpsertPins(ctx, rows); err != nil {
			s.saveBookmark(bookmark, result.Pages-1)
			err = errors.StorageError(err, "pin upsert failed")
			result.Error = err.Error()
			return err
		}
		result.TotalSynced += len(rows)

		bookmark = page.Bookmark
		if bookmark == "" {
			if s.checkpoint != nil {
				if err := s.checkpoint.ClearInventory(); err != nil {
					s.logger.WithError(err).Warn("failed to clear sync checkpoint")
				}
			}
			break
		}
	}

	report.logf("Synced %d pins over %d pages.", result.TotalSynced, result.Pages)
	return nil
}

func (s *Syncer) saveBookmark(bookmark string, pages int) {
	if s.checkpoint == nil || bookmark == "" {
		return
	}
	state := InventoryState{Bookmark: bookmark, Pages: pages, UpdatedAt: s.opts.Now().UTC()}
	if err := s.checkpoint.SaveInventory(state); err != nil {
		s.logger.WithError(err).Warn("failed to save sync checkpoint")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
