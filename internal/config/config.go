// Package config loads server settings with koanf: built-in defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// DevJWTSecret is used outside production when no secret is configured.
const DevJWTSecret = "your_secret_key_please_change_in_production"

// Config holds every setting of the server and the seeder.
type Config struct {
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	StoreDriver string `koanf:"store_driver"`
	DatabaseURL string `koanf:"database_url"`

	JWTSecret string        `koanf:"jwt_secret"`
	JWTTTL    time.Duration `koanf:"jwt_ttl"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// RedisURL enables the cross-instance feed relay when set.
	RedisURL string `koanf:"redis_url"`

	FlashHashKey  string `koanf:"flash_hash_key"`
	FlashBlockKey string `koanf:"flash_block_key"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	LoginRateLimit  int           `koanf:"login_rate_limit"`
	LoginRateWindow time.Duration `koanf:"login_rate_window"`

	OnlineTTL time.Duration `koanf:"online_ttl"`

	RankingIncludeUninterviewed bool `koanf:"ranking_include_uninterviewed"`

	AdminEmail string `koanf:"admin_email"`
}

// Validation errors.
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres store")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required in production")
	ErrInvalidPort        = errors.New("PORT must be between 1 and 65535")
	ErrInvalidStoreDriver = errors.New("STORE_DRIVER must be postgres or memory")
	ErrInvalidLogLevel    = errors.New("LOG_LEVEL is not a zerolog level")
	ErrInvalidLogFormat   = errors.New("LOG_FORMAT must be json or console")
	ErrInvalidRateLimit   = errors.New("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive")
	ErrInvalidFlashKey    = errors.New("FLASH_BLOCK_KEY must be 16, 24 or 32 bytes")
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Port:               8080,
		Env:                "development",
		StoreDriver:        DriverPostgres,
		JWTTTL:             24 * time.Hour,
		CORSAllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		LogLevel:           "info",
		LogFormat:          "console",
		LoginRateLimit:     10,
		LoginRateWindow:    time.Minute,
		OnlineTTL:          90 * time.Second,
	}
}

// envKeys maps accepted environment variables to config keys. Anything else is ignored.
var envKeys = map[string]string{
	"port":                          "port",
	"go_env":                        "env",
	"store_driver":                  "store_driver",
	"database_url":                  "database_url",
	"jwt_secret":                    "jwt_secret",
	"jwt_ttl":                       "jwt_ttl",
	"cors_allowed_origins":          "cors_allowed_origins",
	"redis_url":                     "redis_url",
	"flash_hash_key":                "flash_hash_key",
	"flash_block_key":               "flash_block_key",
	"log_level":                     "log_level",
	"log_format":                    "log_format",
	"login_rate_limit":              "login_rate_limit",
	"login_rate_window":             "login_rate_window",
	"online_ttl":                    "online_ttl",
	"ranking_include_uninterviewed": "ranking_include_uninterviewed",
	"admin_email":                   "admin_email",
}

func envTransform(key string) string {
	return envKeys[strings.ToLower(key)]
}

// Load merges defaults, configFile (skipped when empty) and the environment.
// The result is not validated; call Validate.
func Load(configFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, errors.Annotate(err, "load defaults")
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Annotatef(err, "load config file %s", configFile)
		}
	}
	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, errors.Annotate(err, "load environment")
	}
	if err := splitList(k, "cors_allowed_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Annotate(err, "unmarshal config")
	}
	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = DevJWTSecret
	}
	return cfg, nil
}

// splitList turns a comma-separated string from the environment into a slice.
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return errors.Annotatef(k.Set(path, parts), "set %s", path)
}

// IsProduction reports whether env is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate returns every problem found, empty when the config is usable.
func (c *Config) Validate() []error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	case DriverMemory:
	default:
		errs = append(errs, ErrInvalidStoreDriver)
	}
	if c.JWTSecret == "" || (c.IsProduction() && c.JWTSecret == DevJWTSecret) {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil || c.LogLevel == "" {
		errs = append(errs, ErrInvalidLogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, ErrInvalidLogFormat)
	}
	if c.LoginRateLimit <= 0 || c.LoginRateWindow <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	switch len(c.FlashBlockKey) {
	case 0, 16, 24, 32:
	default:
		errs = append(errs, ErrInvalidFlashKey)
	}
	return errs
}

// LogSummary lists the effective settings with secrets masked.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                          fmt.Sprint(c.Port),
		"env":                           c.Env,
		"store_driver":                  c.StoreDriver,
		"database_url":                  mask(c.DatabaseURL),
		"jwt_secret":                    mask(c.JWTSecret),
		"jwt_ttl":                       c.JWTTTL.String(),
		"cors_allowed_origins":          strings.Join(c.CORSAllowedOrigins, ","),
		"redis_url":                     mask(c.RedisURL),
		"log_level":                     c.LogLevel,
		"log_format":                    c.LogFormat,
		"online_ttl":                    c.OnlineTTL.String(),
		"ranking_include_uninterviewed": fmt.Sprint(c.RankingIncludeUninterviewed),
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
