package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/rohankatakam/assetforge/internal/config"
	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/rohankatakam/assetforge/internal/logging"
	"github.com/rohankatakam/assetforge/internal/output"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile    string
	verbose    bool
	jsonOutput bool
	logger     *logging.Logger
	cfg        *config.Config
)

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		logger.Close()
	}
	if err != nil {
		var detailed *errors.Error
		if verbose && stderrors.As(err, &detailed) {
			fmt.Fprint(os.Stderr, detailed.DetailedString())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "AssetForge - rarity scoring for pin-driven digital assets",
	Long: `AssetForge tracks Pinterest traffic and Payhip sales per asset, scores
each asset into a rarity tier, and never lets an asset's best tier go down.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Logs go to stderr so command output stays pipeable
		logCfg := logging.Config{
			Level:      cfg.Log.Level,
			OutputFile: cfg.Log.File,
			JSONFormat: cfg.Log.JSON,
			Console:    os.Stderr,
		}
		if verbose {
			logCfg = logging.DebugConfig()
			logCfg.OutputFile = cfg.Log.File
			logCfg.Console = os.Stderr
		}
		logger, err = logging.New(logCfg)
		if err != nil {
			return err
		}

		config.NewCredentialManager(logger).Apply(cfg)
		return nil
	},
}

func printer() *output.Printer {
	mode := output.DefaultMode()
	if jsonOutput {
		mode = output.ModeJSON
	}
	return output.New(os.Stdout, mode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .assetforge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.SetVersionTemplate(`AssetForge {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(spawnCmd)
	rootCmd.AddCommand(saleCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(configCmd)
}
