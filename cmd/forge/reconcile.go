package main

import (
	"fmt"

	"github.com/rohankatakam/assetforge/internal/config"
	"github.com/spf13/cobra"
)

var (
	reconcileAsset   string
	reconcileRecount bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rescore one asset or every active asset",
	Long: `Recompute scores and rarity tiers from stored traffic and revenue.

Without --asset every non-retired asset is processed within the configured
time budget; whatever is left over is picked up by the next run.

Examples:
  forge reconcile
  forge reconcile --asset 3f1c... --recount`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileAsset, "asset", "", "asset id to reconcile")
	reconcileCmd.Flags().BoolVar(&reconcileRecount, "recount", false, "resum linked pin clicks before scoring (requires --asset)")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	if reconcileRecount && reconcileAsset == "" {
		return fmt.Errorf("--recount requires --asset")
	}

	a, err := buildApp(ctx, config.ValidationContextStorage, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if reconcileAsset == "" {
		bulk, err := a.reconciler.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		summary := fmt.Sprintf("%d assets processed, %d updated, %d failed", bulk.Processed, bulk.Updated, len(bulk.Failures))
		if bulk.Truncated {
			summary += " (time budget reached)"
		}
		return printer().Print(summary, bulk)
	}

	reconcileOne := a.reconciler.ReconcileAsset
	if reconcileRecount {
		reconcileOne = a.reconciler.RecountAndReconcile
	}
	out, err := reconcileOne(ctx, reconcileAsset)
	if err != nil {
		return err
	}
	return printer().Print(fmt.Sprintf("%s: %s (best %s)", out.AssetID, out.CurrentRarity, out.HighestRarityAchieved), out)
}
