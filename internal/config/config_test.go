package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 90*time.Second, cfg.OnlineTTL)
	assert.Equal(t, DevJWTSecret, cfg.JWTSecret)
	assert.False(t, cfg.RankingIncludeUninterviewed)
	assert.Contains(t, cfg.CORSAllowedOrigins, "http://localhost:5173")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
store_driver: memory
log_format: json
online_ttl: 2m
cors_allowed_origins:
  - https://a.example
  - https://b.example
`), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("GO_ENV", "test")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("RANKING_INCLUDE_UNINTERVIEWED", "true")
	t.Setenv("LOGIN_RATE_WINDOW", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 2*time.Minute, cfg.OnlineTTL)
	assert.Equal(t, 30*time.Second, cfg.LoginRateWindow)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.True(t, cfg.RankingIncludeUninterviewed)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.Validate())
}

func TestLoadCommaSeparatedOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://x.example, https://y.example,")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x.example", "https://y.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadIgnoresShellEnv(t *testing.T) {
	t.Setenv("ENV", "/home/someone/.shrc")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)

	t.Setenv("GO_ENV", "production")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.True(t, cfg.IsProduction())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.StoreDriver = DriverMemory
		c.JWTSecret = "secret"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"Bad port", func(c *Config) { c.Port = 0 }, ErrInvalidPort},
		{"Unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, ErrInvalidStoreDriver},
		{"Postgres without URL", func(c *Config) { c.StoreDriver = DriverPostgres }, ErrMissingDatabaseURL},
		{"Empty secret", func(c *Config) { c.JWTSecret = "" }, ErrMissingJWTSecret},
		{"Dev secret in production", func(c *Config) { c.Env = "production"; c.JWTSecret = DevJWTSecret }, ErrMissingJWTSecret},
		{"Bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
		{"Bad log format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidLogFormat},
		{"Zero rate limit", func(c *Config) { c.LoginRateLimit = 0 }, ErrInvalidRateLimit},
		{"Short block key", func(c *Config) { c.FlashBlockKey = "short" }, ErrInvalidFlashKey},
	}

	assert.Empty(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Contains(t, c.Validate(), tt.want)
		})
	}
}

func TestLogSummaryMasksSecrets(t *testing.T) {
	c := Default()
	c.JWTSecret = "topsecret"
	c.DatabaseURL = "postgres://u:p@db/x"
	s := c.LogSummary()
	assert.Equal(t, "****", s["jwt_secret"])
	assert.Equal(t, "****", s["database_url"])
	assert.Equal(t, "", s["redis_url"])
}
