package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rohankatakam/assetforge/internal/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// CredentialManager handles credential retrieval with priority chain
// Priority: Environment Variables → Keychain → Credentials File → Interactive Prompt
type CredentialManager struct {
	mode       DeploymentMode
	keyring    *KeyringManager
	configPath string
}

// Credentials holds all user credentials
type Credentials struct {
	PinterestAccessToken string `yaml:"pinterest_access_token"`
	PayhipSecretToken    string `yaml:"payhip_secret_token"`
}

// NewCredentialManager creates a new credential manager
func NewCredentialManager(logger logrus.FieldLogger) *CredentialManager {
	homeDir, _ := os.UserHomeDir()
	return &CredentialManager{
		mode:       DetectMode(),
		keyring:    NewKeyringManager(logger),
		configPath: filepath.Join(homeDir, ".config", "assetforge", "credentials.yaml"),
	}
}

// credential describes one secret and where to look for it
type credential struct {
	envVars   []string
	item      string
	fromFile  func(*Credentials) string
	promptMsg string
}

var (
	pinterestCredential = credential{
		envVars:   []string{"PINTEREST_ACCESS_TOKEN"},
		item:      KeyringPinterestItem,
		fromFile:  func(c *Credentials) string { return c.PinterestAccessToken },
		promptMsg: "Enter Pinterest access token (or press Enter to skip): ",
	}
	payhipCredential = credential{
		envVars:   []string{"PAYHIP_SECRET_TOKEN"},
		item:      KeyringPayhipItem,
		fromFile:  func(c *Credentials) string { return c.PayhipSecretToken },
		promptMsg: "Enter Payhip webhook secret (or press Enter to skip): ",
	}
)

// GetPinterestToken retrieves the Pinterest token using the priority chain
func (cm *CredentialManager) GetPinterestToken(interactive bool) string {
	return cm.resolve(pinterestCredential, interactive)
}

// GetPayhipSecret retrieves the Payhip webhook secret using the priority chain
func (cm *CredentialManager) GetPayhipSecret(interactive bool) string {
	return cm.resolve(payhipCredential, interactive)
}

// Apply fills empty secrets in cfg from the chain without prompting
func (cm *CredentialManager) Apply(cfg *Config) {
	if cfg.Pinterest.AccessToken == "" {
		cfg.Pinterest.AccessToken = cm.GetPinterestToken(false)
	}
	if cfg.Payhip.SecretToken == "" {
		cfg.Payhip.SecretToken = cm.GetPayhipSecret(false)
	}
}

func (cm *CredentialManager) resolve(c credential, interactive bool) string {
	// 1. Environment variable (highest priority)
	for _, envVar := range c.envVars {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
	}

	// 2. Keychain
	if cm.keyring.IsAvailable() {
		if v, err := cm.keyring.Get(c.item); err == nil && v != "" {
			return v
		}
	}

	// 3. Credentials file
	if creds, err := cm.loadConfigFile(); err == nil {
		if v := c.fromFile(creds); v != "" {
			return v
		}
	}

	// 4. Interactive prompt
	if interactive && cm.mode.AllowsInteractivePrompts() && isInteractive() {
		fmt.Print(c.promptMsg)
		v, _ := readSecurely()
		if v != "" {
			return v
		}
	}

	return ""
}

// SaveCredentials saves credentials to keychain (preferred) or config file (fallback)
func (cm *CredentialManager) SaveCredentials(creds Credentials) (string, error) {
	if cm.keyring.IsAvailable() {
		if creds.PinterestAccessToken != "" {
			if err := cm.keyring.Set(KeyringPinterestItem, creds.PinterestAccessToken); err != nil {
				return "", errors.WrapConfig(err, "failed to save Pinterest token to keychain")
			}
		}
		if creds.PayhipSecretToken != "" {
			if err := cm.keyring.Set(KeyringPayhipItem, creds.PayhipSecretToken); err != nil {
				return "", errors.WrapConfig(err, "failed to save Payhip secret to keychain")
			}
		}
		return "keychain", nil
	}

	existing, err := cm.loadConfigFile()
	if err != nil {
		existing = &Credentials{}
	}
	if creds.PinterestAccessToken != "" {
		existing.PinterestAccessToken = creds.PinterestAccessToken
	}
	if creds.PayhipSecretToken != "" {
		existing.PayhipSecretToken = creds.PayhipSecretToken
	}
	if err := cm.saveConfigFile(*existing); err != nil {
		return "", errors.WrapConfig(err, "failed to write %s", cm.configPath)
	}
	return cm.configPath, nil
}

// PromptCredentials asks for every secret without echoing input
func (cm *CredentialManager) PromptCredentials() (Credentials, error) {
	if !isInteractive() {
		return Credentials{}, errors.ValidationError("configure requires an interactive terminal")
	}

	var creds Credentials
	fmt.Print(pinterestCredential.promptMsg)
	token, err := readSecurely()
	if err != nil {
		return creds, err
	}
	creds.PinterestAccessToken = token

	fmt.Print(payhipCredential.promptMsg)
	secret, err := readSecurely()
	if err != nil {
		return creds, err
	}
	creds.PayhipSecretToken = secret

	return creds, nil
}

// loadConfigFile loads credentials from config file
func (cm *CredentialManager) loadConfigFile() (*Credentials, error) {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

// saveConfigFile writes credentials with user-only permissions
func (cm *CredentialManager) saveConfigFile(creds Credentials) error {
	dir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	return os.WriteFile(cm.configPath, data, 0600)
}

// readSecurely reads a secret from stdin without echoing
func readSecurely() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	// Piped input
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// isInteractive returns true if stdin is a terminal (not piped)
func isInteractive() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// ConfigPath returns the path to the credentials file
func (cm *CredentialManager) ConfigPath() string {
	return cm.configPath
}
