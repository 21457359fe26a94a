package main

import (
	"fmt"

	"github.com/rohankatakam/assetforge/internal/config"
	"github.com/rohankatakam/assetforge/internal/genesis"
	"github.com/spf13/cobra"
)

var (
	spawnPrimary   string
	spawnSecondary string
	spawnDrive     string
	spawnPayhip    string
)

var spawnCmd = &cobra.Command{
	Use:   "spawn",
	Short: "Create an asset from a primary and a secondary matrix code",
	Long: `Create a COMMON asset in INCUBATION for a pair of matrix codes.
The SKU slug is SKU-<SECONDARY>-<PRIMARY>.

Example:
  forge spawn --primary anuel --secondary trap26 --payhip https://payhip.com/b/xyz`,
	RunE: runSpawn,
}

func init() {
	spawnCmd.Flags().StringVar(&spawnPrimary, "primary", "", "primary matrix code")
	spawnCmd.Flags().StringVar(&spawnSecondary, "secondary", "", "secondary matrix code")
	spawnCmd.Flags().StringVar(&spawnDrive, "drive", "", "drive link")
	spawnCmd.Flags().StringVar(&spawnPayhip, "payhip", "", "payhip product link")
	spawnCmd.MarkFlagRequired("primary")
	spawnCmd.MarkFlagRequired("secondary")
}

func runSpawn(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	a, err := buildApp(ctx, config.ValidationContextStorage, false)
	if err != nil {
		return err
	}
	defer a.Close()

	asset, err := a.spawner.Spawn(ctx, genesis.Request{
		PrimaryCode:   spawnPrimary,
		SecondaryCode: spawnSecondary,
		DriveLink:     &spawnDrive,
		PayhipLink:    &spawnPayhip,
	})
	if err != nil {
		return err
	}
	return printer().Print(fmt.Sprintf("Asset successfully seeded: %s (%s)", asset.SKUSlug, asset.ID), asset)
}
