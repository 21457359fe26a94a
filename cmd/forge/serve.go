package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rohankatakam/assetforge/internal/config"
	"github.com/rohankatakam/assetforge/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP function endpoints",
	Long: `Serve the /functions/v1 endpoints (genesis-seed, adopt-orphan, scan-orphans,
cronos-sync, payhip-webhook, manual-transaction, reconcile-asset) and /healthz.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.ValidationContextServe, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]server.HealthCheck{"database": a.store.Ping}
	if a.redis != nil {
		checks["redis"] = a.redis.HealthCheck
	}

	router := server.NewRouter(server.Deps{
		Spawner:        a.spawner,
		Linker:         a.linker,
		Ledger:         a.ledger,
		Syncer:         a.syncer,
		Reconciler:     a.reconciler,
		Checks:         checks,
		PayhipSecret:   cfg.Payhip.SecretToken,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return server.New(addr, router, logger).Run(ctx)
}

// commandContext is cancelled on SIGINT or SIGTERM
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
