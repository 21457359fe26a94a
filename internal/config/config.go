package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Pinterest PinterestConfig `yaml:"pinterest" mapstructure:"pinterest"`
	Payhip    PayhipConfig    `yaml:"payhip" mapstructure:"payhip"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

type StorageConfig struct {
	Type         string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite"
	PostgresDSN  string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath    string `yaml:"local_path" mapstructure:"local_path"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type PinterestConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	AccessToken       string  `yaml:"access_token" mapstructure:"access_token"`
	RateLimit         float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // Requests per second
	PageSize          int     `yaml:"page_size" mapstructure:"page_size"`
	MaxPages          int     `yaml:"max_pages" mapstructure:"max_pages"`
	TopPinsWindowDays int     `yaml:"top_pins_window_days" mapstructure:"top_pins_window_days"`
	TopPinsLimit      int     `yaml:"top_pins_limit" mapstructure:"top_pins_limit"`
}

type PayhipConfig struct {
	SecretToken string `yaml:"secret_token" mapstructure:"secret_token"`
}

type CacheConfig struct {
	SettingsTTL   time.Duration `yaml:"settings_ttl" mapstructure:"settings_ttl"` // 0 disables the settings cache
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password"`
	LeaseTTL      time.Duration `yaml:"lease_ttl" mapstructure:"lease_ttl"`
}

type SyncConfig struct {
	BulkWorkers          int           `yaml:"bulk_workers" mapstructure:"bulk_workers"`
	BulkTimeBudget       time.Duration `yaml:"bulk_time_budget" mapstructure:"bulk_time_budget"`
	CheckpointPath       string        `yaml:"checkpoint_path" mapstructure:"checkpoint_path"`
	MaxReconcileAttempts int           `yaml:"max_reconcile_attempts" mapstructure:"max_reconcile_attempts"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:         "sqlite",
			LocalPath:    filepath.Join(homeDir, ".assetforge", "local.db"),
			MaxOpenConns: 25,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Pinterest: PinterestConfig{
			BaseURL:           "https://api.pinterest.com",
			RateLimit:         5,
			PageSize:          25,
			MaxPages:          10,
			TopPinsWindowDays: 30,
			TopPinsLimit:      50,
		},
		Cache: CacheConfig{
			SettingsTTL: 30 * time.Second,
			LeaseTTL:    10 * time.Minute,
		},
		Sync: SyncConfig{
			BulkWorkers:          8,
			BulkTimeBudget:       50 * time.Second,
			CheckpointPath:       filepath.Join(homeDir, ".assetforge", "sync.db"),
			MaxReconcileAttempts: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("server", cfg.Server)
	v.SetDefault("pinterest", cfg.Pinterest)
	v.SetDefault("payhip", cfg.Payhip)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("sync", cfg.Sync)
	v.SetDefault("log", cfg.Log)

	v.SetEnvPrefix("ASSETFORGE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".assetforge")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".assetforge"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".assetforge", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// Storage
	cfg.Storage.Type = GetString("STORAGE_TYPE", cfg.Storage.Type)
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	// Server
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}

	// Pinterest. Keychain lookup happens in the credential chain, not here.
	if token := os.Getenv("PINTEREST_ACCESS_TOKEN"); token != "" {
		cfg.Pinterest.AccessToken = token
	}
	cfg.Pinterest.MaxPages = GetInt("PINTEREST_MAX_PAGES", cfg.Pinterest.MaxPages)
	if rate := os.Getenv("PINTEREST_RATE_LIMIT"); rate != "" {
		if r, err := strconv.ParseFloat(rate, 64); err == nil {
			cfg.Pinterest.RateLimit = r
		}
	}

	// Payhip
	if token := os.Getenv("PAYHIP_SECRET_TOKEN"); token != "" {
		cfg.Payhip.SecretToken = token
	}

	// Cache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Cache.RedisPassword = password
	}
	if seconds := GetInt("SETTINGS_CACHE_TTL_SECONDS", -1); seconds >= 0 {
		cfg.Cache.SettingsTTL = time.Duration(seconds) * time.Second
	}

	// Sync
	cfg.Sync.BulkWorkers = GetInt("SYNC_BULK_WORKERS", cfg.Sync.BulkWorkers)
	if seconds := GetInt("SYNC_TIME_BUDGET_SECONDS", -1); seconds >= 0 {
		cfg.Sync.BulkTimeBudget = time.Duration(seconds) * time.Second
	}
	if path := os.Getenv("SYNC_CHECKPOINT_PATH"); path != "" {
		cfg.Sync.CheckpointPath = expandPath(path)
	}

	// Logging
	cfg.Log.Level = GetString("LOG_LEVEL", cfg.Log.Level)
	if file := os.Getenv("LOG_FILE"); file != "" {
		cfg.Log.File = expandPath(file)
	}
	cfg.Log.JSON = GetBool("LOG_JSON", cfg.Log.JSON)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Redacted returns a copy with secrets masked, suitable for display
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	out.Storage.PostgresDSN = MaskSecret(c.Storage.PostgresDSN)
	out.Pinterest.AccessToken = MaskSecret(c.Pinterest.AccessToken)
	out.Payhip.SecretToken = MaskSecret(c.Payhip.SecretToken)
	out.Cache.RedisPassword = MaskSecret(c.Cache.RedisPassword)
	return &out
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("storage", c.Storage)
	v.Set("server", c.Server)
	v.Set("pinterest", c.Pinterest)
	v.Set("cache", c.Cache)
	v.Set("sync", c.Sync)
	v.Set("log", c.Log)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
