package main

import (
	"fmt"

	"github.com/rohankatakam/assetforge/internal/config"
	"github.com/spf13/cobra"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find and adopt unlinked pins",
}

var orphansScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List orphan pins above the virality trigger",
	RunE:  runOrphansScan,
}

var (
	adoptPin   string
	adoptAsset string
)

var orphansAdoptCmd = &cobra.Command{
	Use:   "adopt",
	Short: "Link an orphan pin to an asset and rescore it",
	Long: `Link a pin to an asset, recount the asset's traffic and persist a fresh score.
A pin already linked elsewhere is moved and its former asset is recounted.

Example:
  forge orphans adopt --pin 9a2e... --asset 3f1c...`,
	RunE: runOrphansAdopt,
}

func init() {
	orphansCmd.AddCommand(orphansScanCmd)
	orphansCmd.AddCommand(orphansAdoptCmd)

	orphansAdoptCmd.Flags().StringVar(&adoptPin, "pin", "", "pin id")
	orphansAdoptCmd.Flags().StringVar(&adoptAsset, "asset", "", "asset id")
	orphansAdoptCmd.MarkFlagRequired("pin")
	orphansAdoptCmd.MarkFlagRequired("asset")
}

func runOrphansScan(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.ValidationContextStorage, false)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.linker.Scan(ctx)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("%d of %d orphans above %d clicks",
		report.RedAlertsFound, report.TotalOrphansScanned, report.TriggerThreshold)
	return printer().Print(summary, struct {
		Meta interface{} `json:"meta"`
		Data interface{} `json:"data"`
	}{report, report.Data})
}

func runOrphansAdopt(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.ValidationContextStorage, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.linker.Adopt(ctx, adoptPin, adoptAsset)
	if err != nil {
		return err
	}
	return printer().Print(fmt.Sprintf("pin adopted: %s -> %s", res.PreviousRarity, res.NewRarity), res)
}
