package trafficsync

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rohankatakam/assetforge/internal/cache"
	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/rohankatakam/assetforge/internal/pinterest"
	"github.com/rohankatakam/assetforge/internal/reconcile"
	"github.com/rohankatakam/assetforge/internal/storage"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 30, 8, 0, 0, 0, time.UTC)

type fakePins struct {
	top       []pinterest.TopPin
	pages     map[string]*pinterest.Page // by bookmark
	calls     []string
	topStart  time.Time
	topLimit  int
	failAfter string
}

func (f *fakePins) TopPins(ctx context.Context, start, end time.Time, limit int) ([]pinterest.TopPin, error) {
	f.topStart, f.topLimit = start, limit
	return f.top, nil
}

func (f *fakePins) ListPins(ctx context.Context, pageSize int, bookmark string) (*pinterest.Page, error) {
	f.calls = append(f.calls, bookmark)
	if f.failAfter != "" && bookmark == f.failAfter {
		return nil, errors.ExternalErrorf("pinterest API error (500): boom")
	}
	page, ok := f.pages[bookmark]
	if !ok {
		return &pinterest.Page{}, nil
	}
	return page, nil
}

// chain builds n inventory pages linked by bookmarks b1..b(n-1)
func chain(n int) map[string]*pinterest.Page {
	pages := map[string]*pinterest.Page{}
	for i := 0; i < n; i++ {
		key := ""
		if i > 0 {
			key = fmt.Sprintf("b%d", i)
		}
		next := ""
		if i < n-1 {
			next = fmt.Sprintf("b%d", i+1)
		}
		pages[key] = &pinterest.Page{
			Items:    []pinterest.Pin{{ID: fmt.Sprintf("p%d", i), Title: fmt.Sprintf("Pin %d", i)}},
			Bookmark: next,
		}
	}
	return pages
}

type fakeReconciler struct {
	calls  int
	result *reconcile.BulkResult
}

func (f *fakeReconciler) ReconcileAll(ctx context.Context) (*reconcile.BulkResult, error) {
	f.calls++
	if f.result != nil {
		return f.result, nil
	}
	return &reconcile.BulkResult{Processed: 3, Updated: 3, Failures: []reconcile.Failure{}}, nil
}

type env struct {
	store      *storage.SQLStore
	pins       *fakePins
	reconciler *fakeReconciler
	redis      *cache.Client
	mr         *miniredis.Miniredis
	checkpoint *Checkpoint
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	logger, _ := test.NewNullLogger()

	store, err := storage.NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	mr := miniredis.RunT(t)
	redis, err := cache.NewClient(context.Background(), mr.Addr(), "", logger)
	require.NoError(t, err)
	t.Cleanup(func() { redis.Close() })

	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "state", "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cp.Close() })

	return &env{
		store:      store,
		pins:       &fakePins{},
		reconciler: &fakeReconciler{},
		redis:      redis,
		mr:         mr,
		checkpoint: cp,
	}
}

func (e *env) syncer(opts Options) *Syncer {
	logger, _ := test.NewNullLogger()
	opts.Now = func() time.Time { return fixedNow }
	return NewSyncer(e.store, e.pins, e.reconciler, e.redis, e.checkpoint, logger, opts)
}

func TestParseScope(t *testing.T) {
	for _, s := range []string{"top_pins", "financial", "full", " FULL "} {
		_, err := ParseScope(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseScope("everything")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRun_InvalidScope(t *testing.T) {
	e := setupEnv(t)
	_, err := e.syncer(Options{}).Run(context.Background(), "weekly")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.False(t, e.mr.Exists(LeaseKey))
}

func TestRun_Financial(t *testing.T) {
	e := setupEnv(t)

	report, err := e.syncer(Options{}).Run(context.Background(), "financial")
	require.NoError(t, err)
	assert.Equal(t, "success", report.Status)
	require.NotNil(t, report.Results.Financial)
	assert.Equal(t, 3, report.Results.Financial.AssetsProcessed)
	assert.Nil(t, report.Results.TopPins)
	assert.Nil(t, report.Results.FullSync)
	assert.Equal(t, 1, e.reconciler.calls)
	assert.Empty(t, e.pins.calls, "financial never calls the platform")

	assert.False(t, e.mr.Exists(LeaseKey), "lease released")
	assert.True(t, e.mr.Exists(LastReportKey(ScopeFinancial)))
}

func TestRun_TopPinsUpsertsStats(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.pins.top = []pinterest.TopPin{
		{PinID: "111", Title: "Beat pack", OutboundClicks: 75, Impressions: 4000, Saves: 12},
		{PinID: "222", OutboundClicks: 3},
		{PinID: ""},
	}

	report, err := e.syncer(Options{}).Run(ctx, "top_pins")
	require.NoError(t, err)
	require.NotNil(t, report.Results.TopPins)
	assert.Equal(t, 3, report.Results.TopPins.Count)
	assert.Zero(t, e.reconciler.calls)
	assert.Equal(t, fixedNow.AddDate(0, 0, -30), e.pins.topStart)
	assert.Equal(t, 50, e.pins.topLimit)

	orphans, err := e.store.ListOrphanPins(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 2)

	byID := map[string]*models.Pin{}
	for _, p := range orphans {
		byID[p.ExternalPinID] = p
	}
	assert.Equal(t, 75.0, byID["111"].OutboundClicks())
	assert.JSONEq(t, `{"outbound_clicks":75,"impressions":4000,"saves":12,"date_range":"30d"}`, string(byID["111"].LastStats))
	assert.Nil(t, byID["222"].Title)
}

func TestRun_TopPinsKeepsAssociation(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	asset := &models.Asset{SKUSlug: "SKU-A-B", CurrentRarity: models.TierCommon, HighestRarityAchieved: models.TierCommon, LifecycleState: models.StageIncubation}
	require.NoError(t, e.store.CreateAsset(ctx, asset))

	e.pins.top = []pinterest.TopPin{{PinID: "111", OutboundClicks: 5}}
	_, err := e.syncer(Options{}).Run(ctx, "top_pins")
	require.NoError(t, err)

	orphans, err := e.store.ListOrphanPins(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.NoError(t, e.store.LinkPin(ctx, orphans[0].ID, asset.ID))

	e.pins.top = []pinterest.TopPin{{PinID: "111", OutboundClicks: 9}}
	_, err = e.syncer(Options{}).Run(ctx, "top_pins")
	require.NoError(t, err)

	pin, err := e.store.GetPin(ctx, orphans[0].ID)
	require.NoError(t, err)
	require.NotNil(t, pin.AssetID)
	assert.Equal(t, asset.ID, *pin.AssetID)
	assert.Equal(t, 9.0, pin.OutboundClicks())
}

func TestRun_FullWalksEveryPage(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.pins.pages = chain(3)

	report, err := e.syncer(Options{}).Run(ctx, "full")
	require.NoError(t, err)
	require.NotNil(t, report.Results.Financial, "full includes the financial pass")
	require.NotNil(t, report.Results.FullSync)
	assert.Equal(t, 3, report.Results.FullSync.TotalSynced)
	assert.Equal(t, 3, report.Results.FullSync.Pages)
	assert.False(t, report.Results.FullSync.Truncated)
	assert.Equal(t, []string{"", "b1", "b2"}, e.pins.calls)

	state, err := e.checkpoint.Inventory()
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestRun_FullStopsAtPageCeilingAndResumes(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	e.pins.pages = chain(5)

	report, err := e.syncer(Options{MaxPages: 2}).Run(ctx, "full")
	require.NoError(t, err)
	full := report.Results.FullSync
	require.NotNil(t, full)
	assert.True(t, full.Truncated)
	assert.Equal(t, 2, full.Pages)
	assert.Equal(t, 2, full.TotalSynced)
	assert.Contains(t, report.Logs[len(report.Logs)-2], "pagination limit")

	state, err := e.checkpoint.Inventory()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "b2", state.Bookmark)

	e.pins.calls = nil
	report, err = e.syncer(Options{MaxPages: 10}).Run(ctx, "full")
	require.NoError(t, err)
	full = report.Results.FullSync
	assert.True(t, full.Resumed)
	assert.False(t, full.Truncated)
	assert.Equal(t, 3, full.TotalSynced)
	assert.Equal(t, []string{"b2", "b3", "b4"}, e.pins.calls)

	orphans, err := e.store.ListOrphanPins(ctx)
	require.NoError(t, err)
	assert.Len(t, orphans, 5)
}

func TestRun_FullNeverNullsStats(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	e.pins.top = []pinterest.TopPin{{PinID: "p0", OutboundClicks: 40}}
	_, err := e.syncer(Options{}).Run(ctx, "top_pins")
	require.NoError(t, err)

	e.pins.pages = chain(1)
	_, err = e.syncer(Options{}).Run(ctx, "full")
	require.NoError(t, err)

	orphans, err := e.store.ListOrphanPins(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, 40.0, orphans[0].OutboundClicks())
	require.NotNil(t, orphans[0].Title)
	assert.Equal(t, "Pin 0", *orphans[0].Title)
}

func TestRun_FullFailureKeepsPosition(t *testing.T) {
	e := setupEnv(t)
	e.pins.pages = chain(4)
	e.pins.failAfter = "b2"

	report, err := e.syncer(Options{}).Run(context.Background(), "full")
	require.NoError(t, err, "financial progress is reported, not discarded")
	assert.Equal(t, "partial", report.Status)

	require.NotNil(t, report.Results.Financial)
	assert.Equal(t, 3, report.Results.Financial.AssetsProcessed)
	require.NotNil(t, report.Results.FullSync)
	assert.Equal(t, 2, report.Results.FullSync.Pages)
	assert.Equal(t, 2, report.Results.FullSync.TotalSynced)
	assert.Contains(t, report.Results.FullSync.Error, "pinterest API error (500)")
	assert.Contains(t, report.Logs[len(report.Logs)-1], "inventory scan failed after 2 pages")

	var stored Report
	found, err := e.redis.Get(context.Background(), LastReportKey(ScopeFull), &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "partial", stored.Status)

	state, err := e.checkpoint.Inventory()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "b2", state.Bookmark)
	assert.False(t, e.mr.Exists(LeaseKey), "lease released on failure")
}

func TestRun_ConcurrentRunRejected(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	held, err := e.redis.Acquire(ctx, LeaseKey, time.Minute)
	require.NoError(t, err)

	_, err = e.syncer(Options{}).Run(ctx, "financial")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	assert.Zero(t, e.reconciler.calls)

	require.NoError(t, held.Release(ctx))
	_, err = e.syncer(Options{}).Run(ctx, "financial")
	require.NoError(t, err)
}

func TestRun_WithoutRedisOrPins(t *testing.T) {
	e := setupEnv(t)
	logger, _ := test.NewNullLogger()
	s := NewSyncer(e.store, nil, e.reconciler, nil, nil, logger, Options{})

	report, err := s.Run(context.Background(), "financial")
	require.NoError(t, err)
	assert.NotNil(t, report.Results.Financial)

	_, err = s.Run(context.Background(), "top_pins")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	calls := e.reconciler.calls
	_, err = s.Run(context.Background(), "full")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Equal(t, calls, e.reconciler.calls, "full scope fails before any work without a client")
}
