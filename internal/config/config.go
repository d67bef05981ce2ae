// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

// Package config loads Keygate configuration.
//
// Precedence, lowest to highest: built-in defaults, YAML config file,
// KEYGATE_* environment variables, command-line flags. Secrets (the signing
// secret, the database URL) are expected to arrive via the environment in
// production.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/keygate/keygate/internal/auth"
)

// envPrefix is the prefix for configuration environment variables,
// e.g. KEYGATE_DATABASE_URL.
const envPrefix = "KEYGATE_"

// Config holds all runtime configuration for the service.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `koanf:"database_url"`

	// JWTSecret keys the token HMAC. Loaded once at startup and never
	// rotated within a process lifetime.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTL is how long issued tokens stay valid.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// BcryptCost is the password hashing work factor.
	BcryptCost int `koanf:"bcrypt_cost"`

	// HTTPAddr is the listen address for the public API.
	HTTPAddr string `koanf:"http_addr"`

	// MetricsAddr is the listen address for metrics and health endpoints.
	// Empty disables the observability server.
	MetricsAddr string `koanf:"metrics_addr"`

	// RateLimitBurst is how many credential attempts a client may burst
	// before throttling. Zero disables throttling.
	RateLimitBurst int `koanf:"rate_limit_burst"`

	// RateLimitRate is the sustained credential attempts per second once
	// the burst is spent.
	RateLimitRate float64 `koanf:"rate_limit_rate"`

	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format"`

	// LogLevel is "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level"`
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		TokenTTL:       auth.DefaultTokenTTL,
		BcryptCost:     auth.DefaultBcryptCost,
		HTTPAddr:       ":8080",
		MetricsAddr:    "127.0.0.1:9100",
		RateLimitBurst: auth.DefaultBurstCapacity,
		RateLimitRate:  auth.DefaultSustainedRate,
		LogFormat:      "json",
		LogLevel:       "info",
	}
}

// Load builds the effective configuration. path may be empty (no config
// file); flags may be nil (no flag overrides).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if os.IsNotExist(err) {
				return nil, oops.Code("CONFIG_FILE_MISSING").
					With("path", path).
					Wrap(err)
			}
			return nil, oops.Code("CONFIG_FILE_INVALID").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if flags != nil {
		// Flag names use dashes; koanf keys use underscores. Unchanged
		// flags must not shadow values set by file or environment.
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !f.Changed && k.Exists(key) {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}
	return &cfg, nil
}

// Validate checks that everything the serve command needs is present and
// within bounds.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if c.JWTSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("jwt_secret is required")
	}
	if c.TokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("token_ttl must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return oops.Code("CONFIG_INVALID").
			With("bcrypt_cost", c.BcryptCost).
			Errorf("bcrypt_cost must be between 4 and 31")
	}
	if c.RateLimitBurst < 0 {
		return oops.Code("CONFIG_INVALID").
			With("rate_limit_burst", c.RateLimitBurst).
			Errorf("rate_limit_burst must not be negative")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("log_format must be json or text")
	}
	return nil
}
