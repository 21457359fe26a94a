// Package server exposes the asset workflows over HTTP.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Deps bundles what the router serves. Checks may be empty.
type Deps struct {
	Spawner        Spawner
	Linker         Linker
	Ledger         Ledger
	Syncer         Syncer
	Reconciler     Reconciler
	Checks         map[string]HealthCheck
	PayhipSecret   string
	AllowedOrigins []string
	Logger         logrus.FieldLogger
}

// NewRouter builds the gin engine with every function route
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger.WithField("component", "http")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(CORS(deps.AllowedOrigins))

	h := &Handlers{
		spawner:    deps.Spawner,
		linker:     deps.Linker,
		ledger:     deps.Ledger,
		syncer:     deps.Syncer,
		reconciler: deps.Reconciler,
		checks:     deps.Checks,
		logger:     logger,
	}

	r.GET("/healthz", h.Health)

	fn := r.Group("/functions/v1")
	{
		fn.POST("/genesis-seed", h.GenesisSeed)
		fn.POST("/adopt-orphan", h.AdoptOrphan)
		fn.GET("/scan-orphans", h.ScanOrphans)
		fn.POST("/scan-orphans", h.ScanOrphans)
		fn.POST("/cronos-sync", h.CronosSync)
		fn.POST("/payhip-webhook", RequireToken(deps.PayhipSecret, logger), h.PayhipWebhook)
		fn.POST("/manual-transaction", h.ManualTransaction)
		fn.POST("/reconcile-asset", h.ReconcileAsset)
	}

	return r
}
