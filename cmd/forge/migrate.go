package main

import (
	"fmt"

	"github.com/rohankatakam/assetforge/internal/config"
	"github.com/spf13/cobra"
)

var seedDefaults bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Long: `Create every table the service needs. Safe to run repeatedly.

With --seed-defaults the scoring weights and the orphan trigger are inserted
when missing; existing values are never overwritten.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&seedDefaults, "seed-defaults", false, "insert default settings that are missing")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	if result := cfg.Validate(config.ValidationContextStorage); result.HasErrors() {
		return fmt.Errorf("%s", result.Error())
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	fmt.Printf("Schema ready (%s)\n", store.Dialect())

	if seedDefaults {
		n, err := store.SeedDefaults(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d default settings\n", n)
	}
	return nil
}
