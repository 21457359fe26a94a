package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect AssetForge configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML with secrets masked",
	RunE:  runConfigShow,
}

var configSavePath string

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration (without secrets) to a file",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&configSavePath, "path", ".assetforge/config.yaml", "file to write")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg.Redacted())
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configSavePath); err == nil {
		return fmt.Errorf("%s already exists", configSavePath)
	}
	// Secrets belong in the keychain, see "forge configure"
	out := *cfg
	out.Pinterest.AccessToken = ""
	out.Payhip.SecretToken = ""
	out.Cache.RedisPassword = ""
	if err := out.Save(configSavePath); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", configSavePath)
	return nil
}
