package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/genesis"
	"github.com/rohankatakam/assetforge/internal/linking"
	"github.com/rohankatakam/assetforge/internal/models"
	"github.com/rohankatakam/assetforge/internal/reconcile"
	"github.com/rohankatakam/assetforge/internal/sales"
	"github.com/rohankatakam/assetforge/internal/scoring"
	"github.com/rohankatakam/assetforge/internal/settings"
	"github.com/rohankatakam/assetforge/internal/storage"
	"github.com/rohankatakam/assetforge/internal/trafficsync"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "s3cret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type env struct {
	store  *storage.SQLStore
	router *gin.Engine
}

func setup(t *testing.T, checks map[string]HealthCheck) *env {
	t.Helper()
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))
	_, err = store.SeedDefaults(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SaveMatrix(ctx, &models.Matrix{Code: "anuel", Type: models.MatrixPrimary, IsActive: true}))
	require.NoError(t, store.SaveMatrix(ctx, &models.Matrix{Code: "trap26", Type: models.MatrixSecondary, IsActive: true}))

	acc := settings.NewAccessor(store, 0, logger)
	orch := reconcile.NewOrchestrator(store, scoring.NewKernel(acc, logger), logger, reconcile.Options{})

	router := NewRouter(Deps{
		Spawner:        genesis.NewSpawner(store, logger),
		Linker:         linking.NewWorkflow(store, acc, orch, logger),
		Ledger:         sales.NewLedger(store, orch, logger),
		Syncer:         trafficsync.NewSyncer(store, nil, orch, nil, nil, logger, trafficsync.Options{}),
		Reconciler:     orch,
		Checks:         checks,
		PayhipSecret:   secret,
		AllowedOrigins: []string{"*"},
		Logger:         logger,
	})
	return &env{store: store, router: router}
}

func (e *env) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (e *env) seedAsset(t *testing.T) string {
	t.Helper()
	w, body := e.do(t, http.MethodPost, "/functions/v1/genesis-seed",
		`{"primary_matrix_code":"anuel","secondary_matrix_code":"trap26","payhip_link":"https://payhip.com/b/xyz"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := body["data"].(map[string]interface{})
	return data["id"].(string)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.ValidationError("bad"), http.StatusBadRequest},
		{errors.NotFoundError("asset", "x"), http.StatusBadRequest},
		{errors.ConflictErrorf("dup"), http.StatusBadRequest},
		{errors.SecurityError("no"), http.StatusUnauthorized},
		{errors.ConfigError("missing"), http.StatusInternalServerError},
		{errors.StorageError(stderrors.New("disk"), "write failed"), http.StatusInternalServerError},
		{errors.ExternalErrorf("upstream"), http.StatusInternalServerError},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestGenesisSeed(t *testing.T) {
	e := setup(t, nil)

	w, body := e.do(t, http.MethodPost, "/functions/v1/genesis-seed",
		`{"primary_matrix_code":"anuel","secondary_matrix_code":"trap26"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Asset successfully seeded.", body["message"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "SKU-TRAP26-ANUEL", data["sku_slug"])
	assert.Equal(t, "COMMON", data["current_rarity"])

	t.Run("duplicate pair", func(t *testing.T) {
		w, body := e.do(t, http.MethodPost, "/functions/v1/genesis-seed",
			`{"primary_matrix_code":"anuel","secondary_matrix_code":"trap26"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["error"], "already exists")
	})

	t.Run("missing codes", func(t *testing.T) {
		w, body := e.do(t, http.MethodPost, "/functions/v1/genesis-seed", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing matrix codes: both primary and secondary codes are required", body["error"])
	})

	t.Run("malformed json", func(t *testing.T) {
		w, body := e.do(t, http.MethodPost, "/functions/v1/genesis-seed", `{"primary_matrix_code":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["error"], "invalid request body")
	})
}

func TestPayhipWebhook(t *testing.T) {
	e := setup(t, nil)
	assetID := e.seedAsset(t)
	sale := `{"id":"TX-1","price":10,"currency":"usd","product_link":"https://payhip.com/b/xyz"}`

	t.Run("missing token", func(t *testing.T) {
		w, body := e.do(t, http.MethodPost, "/functions/v1/payhip-webhook", sale)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", body["error"])
	})

	t.Run("wrong token", func(t *testing.T) {
		w, _ := e.do(t, http.MethodPost, "/functions/v1/payhip-webhook?token=nope", sale)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unlinked product is ignored", func(t *testing.T) {
		w, body := e.do(t, http.MethodPost, "/functions/v1/payhip-webhook?token="+secret,
			`{"id":"TX-0","price":10,"product_link":"https://payhip.com/b/other"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ignored", body["status"])
		assert.Equal(t, sales.ReasonNotLinked, body["reason"])
	})

	t.Run("sale rescores the asset", func(t *testing.T) {
		w, body := e.do(t, http.MethodPost, "/functions/v1/payhip-webhook?token="+secret, sale)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "success", body["status"])
		assert.Equal(t, "SKU-TRAP26-ANUEL", body["asset"])
		assert.Equal(t, "RARE", body["new_rarity"])
		assert.Equal(t, 10.0, body["revenue_added"])

		asset, err := e.store.GetAsset(context.Background(), assetID)
		require.NoError(t, err)
		assert.Equal(t, models.TierRare, asset.HighestRarityAchieved)
	})

	t.Run("redelivery is ignored", func(t *testing.T) {
		w, body := e.do(t, http.MethodPost, "/functions/v1/payhip-webhook?token="+secret, sale)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, sales.ReasonDuplicate, body["reason"])
	})

	t.Run("non-positive price", func(t *testing.T) {
		w, _ := e.do(t, http.MethodPost, "/functions/v1/payhip-webhook?token="+secret,
			`{"id":"TX-2","price":0,"product_link":"https://payhip.com/b/xyz"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPayhipWebhook_EmptySecretRejectsEverything(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := NewRouter(Deps{Logger: logger})

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/payhip-webhook?token=", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestManualTransactionAndReconcile(t *testing.T) {
	e := setup(t, nil)
	assetID := e.seedAsset(t)

	w, body := e.do(t, http.MethodPost, "/functions/v1/manual-transaction",
		`{"asset_id":"`+assetID+`","amount":"50.00"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "EPIC", body["new_rarity"])
	tx := body["data"].(map[string]interface{})
	assert.Equal(t, "MANUAL", tx["source"])
	assert.Equal(t, "USD", tx["currency"])

	w, body = e.do(t, http.MethodPost, "/functions/v1/reconcile-asset", `{"asset_id":"`+assetID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, assetID, body["asset_id"])
	assert.Equal(t, "EPIC", body["current_rarity"])
	assert.Equal(t, "EPIC", body["highest_rarity_achieved"])
	assert.Equal(t, 2500.0, body["final_score"])

	t.Run("unknown asset", func(t *testing.T) {
		w, body := e.do(t, http.MethodPost, "/functions/v1/reconcile-asset", `{"asset_id":"missing"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "asset not found: missing", body["error"])
	})

	t.Run("missing asset id", func(t *testing.T) {
		w, _ := e.do(t, http.MethodPost, "/functions/v1/reconcile-asset", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOrphanRoutes(t *testing.T) {
	e := setup(t, nil)
	assetID := e.seedAsset(t)
	ctx := context.Background()

	require.NoError(t, e.store.UpsertPins(ctx, []*models.PinSync{
		{ExternalPinID: "hot", LastStats: models.JSONBlob(`{"outbound_clicks": 120}`)},
		{ExternalPinID: "cold", LastStats: models.JSONBlob(`{"outbound_clicks": 3}`)},
	}))

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w, body := e.do(t, method, "/functions/v1/scan-orphans", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		meta := body["meta"].(map[string]interface{})
		assert.Equal(t, 50.0, meta["trigger_threshold"])
		assert.Equal(t, 2.0, meta["total_orphans_scanned"])
		assert.Equal(t, 1.0, meta["red_alerts_found"])
		data := body["data"].([]interface{})
		require.Len(t, data, 1)
		assert.Equal(t, "hot", data[0].(map[string]interface{})["external_pin_id"])
	}

	orphans, err := e.store.ListOrphanPins(ctx)
	require.NoError(t, err)
	var hotID string
	for _, p := range orphans {
		if p.ExternalPinID == "hot" {
			hotID = p.ID
		}
	}
	require.NotEmpty(t, hotID)

	w, body := e.do(t, http.MethodPost, "/functions/v1/adopt-orphan",
		`{"pin_id":"`+hotID+`","asset_id":"`+assetID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Pin adopted and asset metrics recalculated.", body["message"])
	assert.Equal(t, "COMMON", body["previous_rarity"])
	assert.Equal(t, "RARE", body["new_rarity"])
	assert.Equal(t, 120.0, body["added_traffic_mass"])
	assert.Equal(t, 120.0, body["total_traffic_mass"])

	w, body = e.do(t, http.MethodGet, "/functions/v1/scan-orphans", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, body["data"])

	t.Run("missing parameters", func(t *testing.T) {
		w, body := e.do(t, http.MethodPost, "/functions/v1/adopt-orphan", `{"pin_id":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["error"], "missing required parameters")
	})
}

func TestCronosSync(t *testing.T) {
	e := setup(t, nil)
	e.seedAsset(t)

	w, body := e.do(t, http.MethodPost, "/functions/v1/cronos-sync", `{"scope":"financial"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", body["status"])
	results := body["results"].(map[string]interface{})
	financial := results["financial"].(map[string]interface{})
	assert.Equal(t, 1.0, financial["assets_processed"])

	t.Run("invalid scope", func(t *testing.T) {
		w, _ := e.do(t, http.MethodPost, "/functions/v1/cronos-sync", `{"scope":"everything"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("pinterest scope without a client", func(t *testing.T) {
		w, body := e.do(t, http.MethodPost, "/functions/v1/cronos-sync", `{"scope":"top_pins"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, body["error"], "goroutine")
	})
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		e := setup(t, map[string]HealthCheck{"store": func(ctx context.Context) error { return nil }})
		w, _ := e.do(t, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("failing dependency", func(t *testing.T) {
		e := setup(t, map[string]HealthCheck{"redis": func(ctx context.Context) error { return stderrors.New("down") }})
		w, _ := e.do(t, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "redis unavailable", w.Body.String())
	})
}

func TestCORSPreflight(t *testing.T) {
	e := setup(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/adopt-orphan", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "apikey")
}
