// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the HS256 shared signing secret. Required unless JWT_EPHEMERAL_KEYS is set;
	// all instances of the service must share it or token verification breaks across instances.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTEphemeralKeys enables a per-process generated ES256 keypair instead of a shared secret.
	// Single-instance/dev mode only; refused when APP_ENV=production.
	JWTEphemeralKeys bool `mapstructure:"JWT_EPHEMERAL_KEYS"`
	// JWTIssuer is the iss claim set on issued tokens and validated on decode.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token lifetime (e.g. "10m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "24h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// MaxSessions is the per-user bound on concurrent sessions; admitting one more evicts the oldest.
	MaxSessions int `mapstructure:"MAX_SESSIONS"`
	// StoreTimeout bounds each session/user/ledger store call (e.g. "3s").
	StoreTimeout string `mapstructure:"STORE_TIMEOUT"`
	// LoginRatePerSec is the sustained per-client login attempt rate; 0 disables throttling.
	LoginRatePerSec float64 `mapstructure:"LOGIN_RATE_PER_SEC"`
	// LoginRateBurst is the per-client login attempt burst.
	LoginRateBurst int `mapstructure:"LOGIN_RATE_BURST"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint for traces and metrics; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EPHEMERAL_KEYS", false)
	v.SetDefault("JWT_ISSUER", "authgate")
	v.SetDefault("JWT_ACCESS_TTL", "10m")
	v.SetDefault("JWT_REFRESH_TTL", "24h")
	v.SetDefault("MAX_SESSIONS", 5)
	v.SetDefault("STORE_TIMEOUT", "3s")
	v.SetDefault("LOGIN_RATE_PER_SEC", 1.0)
	v.SetDefault("LOGIN_RATE_BURST", 5)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTSecret == "" && !cfg.JWTEphemeralKeys {
		return nil, errors.New("config: JWT_SECRET must be set (or JWT_EPHEMERAL_KEYS=true for single-instance dev)")
	}
	if cfg.JWTEphemeralKeys && cfg.Env == "production" {
		return nil, errors.New("config: JWT_EPHEMERAL_KEYS must not be true when APP_ENV=production")
	}
	if cfg.MaxSessions < 1 {
		return nil, errors.New("config: MAX_SESSIONS must be at least 1")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// StoreCallTimeout parses StoreTimeout as a time.Duration. Returns 3s if unset or invalid.
func (c *Config) StoreCallTimeout() time.Duration {
	d, err := time.ParseDuration(c.StoreTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}
