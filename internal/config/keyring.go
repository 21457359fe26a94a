package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "AssetForge"

	// KeyringPinterestItem holds the Pinterest API access token
	KeyringPinterestItem = "pinterest-access-token"

	// KeyringPayhipItem holds the Payhip webhook secret
	KeyringPayhipItem = "payhip-secret-token"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger logrus.FieldLogger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager(logger logrus.FieldLogger) *KeyringManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &KeyringManager{
		logger: logger.WithField("component", "keyring"),
	}
}

// Get reads an item. A missing item is not an error and yields "".
func (km *KeyringManager) Get(item string) (string, error) {
	value, err := keyring.Get(KeyringService, item)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.WithError(err).WithField("item", item).Error("failed to read from keychain")
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return value, nil
}

// Set stores an item
func (km *KeyringManager) Set(item, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", item)
	}

	if err := keyring.Set(KeyringService, item, value); err != nil {
		km.logger.WithError(err).WithField("item", item).Error("failed to save to keychain")
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.WithField("item", item).Info("secret saved to keychain")
	return nil
}

// Delete removes an item; deleting a missing item succeeds
func (km *KeyringManager) Delete(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// IsAvailable checks if OS keychain is available.
// Headless systems without a secret service report false.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.WithError(err).Debug("keychain not available")
		return false
	}
	return true
}
