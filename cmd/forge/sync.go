package main

import (
	"fmt"

	"github.com/rohankatakam/assetforge/internal/config"
	"github.com/spf13/cobra"
)

var syncScope string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull Pinterest traffic and run reconciliation",
	Long: `Run one sync pass.

Scopes:
  financial  rescore every active asset
  top_pins   harvest the last window's top pins by outbound click
  full       financial pass plus a paged inventory scan of every pin`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncScope, "scope", "financial", "top_pins, financial or full")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.ValidationContextSync, true)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.syncer.Run(ctx, syncScope)
	if err != nil {
		return err
	}
	return printer().Print(fmt.Sprintf("sync %s: %s", syncScope, report.Status), report)
}
