package main

import (
	"fmt"

	"github.com/rohankatakam/assetforge/internal/config"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store Pinterest and Payhip secrets securely",
	Long: `Prompt for the Pinterest access token and the Payhip webhook secret
without echoing them, then store them in the OS keychain. Systems without a
keychain fall back to a user-only credentials file.

Leave a prompt empty to keep the stored value.`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cm := config.NewCredentialManager(logger)

	fmt.Println("AssetForge credentials")
	fmt.Println()

	creds, err := cm.PromptCredentials()
	if err != nil {
		return err
	}
	if creds.PinterestAccessToken == "" && creds.PayhipSecretToken == "" {
		fmt.Println("Nothing entered, stored credentials left unchanged.")
		return nil
	}

	location, err := cm.SaveCredentials(creds)
	if err != nil {
		return err
	}

	fmt.Println()
	if creds.PinterestAccessToken != "" {
		fmt.Printf("Pinterest token %s saved to %s\n", config.MaskSecret(creds.PinterestAccessToken), location)
	}
	if creds.PayhipSecretToken != "" {
		fmt.Printf("Payhip secret %s saved to %s\n", config.MaskSecret(creds.PayhipSecretToken), location)
	}
	return nil
}
