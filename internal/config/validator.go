package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextServe - the HTTP server needs storage and the webhook secret
	ValidationContextServe ValidationContext = "serve"
	// ValidationContextSync - traffic sync needs storage and the Pinterest token
	ValidationContextSync ValidationContext = "sync"
	// ValidationContextStorage - commands that only touch the database
	ValidationContextStorage ValidationContext = "storage"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("warnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates configuration for the given context with auto-detected mode
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	return c.ValidateWithMode(ctx, DetectMode())
}

// ValidateWithMode validates configuration for the given context and deployment mode
func (c *Config) ValidateWithMode(ctx ValidationContext, mode DeploymentMode) *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateStorage(result, mode)
	c.validateSync(result)

	switch ctx {
	case ValidationContextServe:
		c.validateServer(result)
		if c.Payhip.SecretToken == "" {
			result.AddWarning("PAYHIP_SECRET_TOKEN is not set; the payhip webhook will reject every delivery")
		}
	case ValidationContextSync:
		if c.Pinterest.AccessToken == "" {
			result.AddWarning("PINTEREST_ACCESS_TOKEN is not set; only the financial scope can run")
		}
		if c.Pinterest.MaxPages <= 0 {
			result.AddError("pinterest.max_pages must be positive, got %d", c.Pinterest.MaxPages)
		}
		if c.Pinterest.PageSize <= 0 || c.Pinterest.PageSize > 250 {
			result.AddError("pinterest.page_size must be between 1 and 250, got %d", c.Pinterest.PageSize)
		}
		if _, err := url.ParseRequestURI(c.Pinterest.BaseURL); err != nil {
			result.AddError("pinterest.base_url is invalid: %v", err)
		}
	}

	return result
}

func (c *Config) validateStorage(result *ValidationResult, mode DeploymentMode) {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.LocalPath == "" {
			result.AddError("LOCAL_DB_PATH is required for sqlite storage")
		}
	case "postgres":
		dsn := c.Storage.PostgresDSN
		if dsn == "" {
			result.AddError("POSTGRES_DSN is required for postgres storage")
			return
		}
		if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
			result.AddError("POSTGRES_DSN must start with postgres:// or postgresql://")
		}
		if strings.Contains(dsn, "sslmode=disable") {
			if mode.RequiresSecureCredentials() {
				result.AddError("POSTGRES_DSN has sslmode=disable, which is not allowed in %s mode", mode)
			} else {
				result.AddWarning("POSTGRES_DSN has sslmode=disable")
			}
		}
	default:
		result.AddError("storage.type must be postgres or sqlite, got %q", c.Storage.Type)
	}
}

func (c *Config) validateServer(result *ValidationResult) {
	if c.Server.Addr == "" {
		result.AddError("server.addr is required")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		result.AddWarning("server.allowed_origins is empty; browsers will be refused")
	}
}

func (c *Config) validateSync(result *ValidationResult) {
	if c.Sync.BulkWorkers <= 0 {
		result.AddError("sync.bulk_workers must be positive, got %d", c.Sync.BulkWorkers)
	}
	if c.Sync.MaxReconcileAttempts <= 0 {
		result.AddError("sync.max_reconcile_attempts must be positive, got %d", c.Sync.MaxReconcileAttempts)
	}
	if c.Sync.BulkTimeBudget < 0 {
		result.AddError("sync.bulk_time_budget cannot be negative")
	}
}
