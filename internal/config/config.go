package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath           = "CONFIG_PATH"
	EnvDBConnection         = "DB_CONNECTION"
	EnvJWTSecret            = "JWT_SECRET"
	EnvJWTExpiry            = "JWT_EXPIRY"
	EnvStripeSecretKey      = "STRIPE_SECRET_KEY"
	EnvStripePublishableKey = "STRIPE_PUBLISHABLE_KEY"
	EnvPort                 = "PORT"
	EnvLogLevel             = "LOG_LEVEL"
)

// Defaults applied when the config file and environment leave a value unset.
const (
	// DefaultPort is the HTTP listen port.
	DefaultPort = 3000
	// DefaultSQLitePath is the local database file used when no DSN is configured.
	DefaultSQLitePath = "simreseller.db"
	// DefaultTransactionTimeout bounds each store transaction.
	DefaultTransactionTimeout = 10 * time.Second
	// DefaultStripeAPIVersion is pinned for ephemeral key creation.
	DefaultStripeAPIVersion = "2025-03-31.basil"
)

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// ErrMissingJWTSecret indicates that no token signing secret is configured.
var ErrMissingJWTSecret = errors.New("missing jwt secret (set `jwt.secret` in config file or JWT_SECRET)")

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// Validate reports ErrMissingJWTSecret when the secret is blank.
func (c JWTConfig) Validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// StripeConfig holds payment provider credentials.
type StripeConfig struct {
	SecretKey      string `yaml:"secret-key"`
	PublishableKey string `yaml:"publishable-key"`
	APIVersion     string `yaml:"api-version"`
}

// Enabled reports whether a secret key is present.
func (c StripeConfig) Enabled() bool {
	return strings.TrimSpace(c.SecretKey) != ""
}

// RedisConfig configures the optional Redis rate limit backend.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RateLimitConfig configures per-client limits on the auth endpoints.
type RateLimitConfig struct {
	Limit  int           `yaml:"limit"`  // Requests per window, 0 disables.
	Window time.Duration `yaml:"window"` // Fixed window length.
	Redis  RedisConfig   `yaml:"redis"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Config is the fully resolved server configuration.
type Config struct {
	Port               int             `yaml:"port"`
	DatabaseDSN        string          `yaml:"database-dsn"`
	TransactionTimeout time.Duration   `yaml:"transaction-timeout"`
	JWT                JWTConfig       `yaml:"jwt"`
	Stripe             StripeConfig    `yaml:"stripe"`
	RateLimit          RateLimitConfig `yaml:"rate-limit"`
	Logging            LoggingConfig   `yaml:"logging"`
}

// Load reads the YAML config file when present and applies env overrides and defaults.
// A missing file is not an error.
func Load(configPath string) (Config, error) {
	var cfg Config

	data, errRead := os.ReadFile(configPath)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	case os.IsNotExist(errRead):
	default:
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}

	dsn, errDSN := LoadDatabaseDSN(configPath)
	if errDSN != nil && !errors.Is(errDSN, ErrMissingDatabaseDSN) {
		return Config{}, errDSN
	}
	cfg.DatabaseDSN = dsn

	jwtCfg, errJWT := LoadJWTConfig(configPath)
	if errJWT != nil {
		return Config{}, errJWT
	}
	cfg.JWT = jwtCfg

	if key := strings.TrimSpace(os.Getenv(EnvStripeSecretKey)); key != "" {
		cfg.Stripe.SecretKey = key
	}
	if key := strings.TrimSpace(os.Getenv(EnvStripePublishableKey)); key != "" {
		cfg.Stripe.PublishableKey = key
	}
	if strings.TrimSpace(cfg.Stripe.APIVersion) == "" {
		cfg.Stripe.APIVersion = DefaultStripeAPIVersion
	}

	if portRaw := strings.TrimSpace(os.Getenv(EnvPort)); portRaw != "" {
		if port, errParse := strconv.Atoi(portRaw); errParse == nil {
			cfg.Port = port
		}
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.TransactionTimeout <= 0 {
		cfg.TransactionTimeout = DefaultTransactionTimeout
	}
	if cfg.RateLimit.Limit < 0 {
		cfg.RateLimit.Limit = 0
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrMissingDatabaseDSN
		}
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}
