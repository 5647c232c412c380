// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

// Package config loads PixelVault settings from defaults, an optional YAML
// file and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/pixelvault/pixelvault/internal/auth"
	"github.com/pixelvault/pixelvault/internal/logging"
)

// Storage drivers.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// SessionBackendRedis moves sessions to Redis. The empty backend keeps them
// in the storage driver.
const SessionBackendRedis = "redis"

// Environment variables consulted when the corresponding DSN is empty.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvRedisURL    = "REDIS_URL"
)

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" yaml:"server"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Metrics  MetricsConfig  `koanf:"metrics" yaml:"metrics"`
	Storage  StorageConfig  `koanf:"storage" yaml:"storage"`
	Sessions SessionsConfig `koanf:"sessions" yaml:"sessions"`
	Auth     AuthConfig     `koanf:"auth" yaml:"auth"`
}

// ServerConfig configures the API listener.
type ServerConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
	// APIRoot is the mount point of the API and the cookie path.
	APIRoot string `koanf:"api_root" yaml:"api_root"`
	// TrustProxy makes X-Forwarded-For and X-Forwarded-Proto authoritative.
	TrustProxy   bool          `koanf:"trust_proxy" yaml:"trust_proxy"`
	StoreTimeout time.Duration `koanf:"store_timeout" yaml:"store_timeout"`
	TLS          TLSConfig     `koanf:"tls" yaml:"tls"`
}

// TLSConfig enables HTTPS on the API listener. Either both files are set,
// or SelfSigned issues a development certificate, or the listener is plain
// HTTP.
type TLSConfig struct {
	CertFile   string `koanf:"cert_file" yaml:"cert_file"`
	KeyFile    string `koanf:"key_file" yaml:"key_file"`
	SelfSigned bool   `koanf:"self_signed" yaml:"self_signed"`
}

// Enabled reports whether the API listener serves TLS.
func (t TLSConfig) Enabled() bool {
	return t.SelfSigned || t.CertFile != ""
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// MetricsConfig configures the observability listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// StorageConfig selects where users (and by default sessions) live.
type StorageConfig struct {
	Driver      string `koanf:"driver" yaml:"driver"`
	DatabaseURL string `koanf:"database_url" yaml:"database_url"`
}

// SessionsConfig configures session storage and lifetime.
type SessionsConfig struct {
	Backend  string        `koanf:"backend" yaml:"backend"`
	RedisURL string        `koanf:"redis_url" yaml:"redis_url"`
	TTL      time.Duration `koanf:"ttl" yaml:"ttl"`
}

// AuthConfig configures login behavior.
type AuthConfig struct {
	PasswordLoginEnabled bool   `koanf:"password_login_enabled" yaml:"password_login_enabled"`
	PasswordMinLength    int    `koanf:"password_min_length" yaml:"password_min_length"`
	CookieSameSite       string `koanf:"cookie_same_site" yaml:"cookie_same_site"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			APIRoot:      "/api",
			StoreTimeout: 3 * time.Second,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
		Storage: StorageConfig{
			Driver: StorageDriverPostgres,
		},
		Sessions: SessionsConfig{
			TTL: auth.DefaultSessionTTL,
		},
		Auth: AuthConfig{
			PasswordLoginEnabled: true,
			PasswordMinLength:    auth.DefaultPasswordMinLength,
			CookieSameSite:       "strict",
		},
	}
}

// Load builds the configuration. path may be empty; flags may be nil.
// getenv defaults to os.Getenv.
func Load(path string, flags *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagValue(flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "decode").Wrap(err)
	}

	if cfg.Storage.DatabaseURL == "" {
		cfg.Storage.DatabaseURL = getenv(EnvDatabaseURL)
	}
	if cfg.Sessions.RedisURL == "" {
		cfg.Sessions.RedisURL = getenv(EnvRedisURL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once under the
// "fields" context key, keyed by config path.
func (c *Config) Validate() error {
	var dsnRules, redisRules, certRules, keyRules []validation.Rule
	if c.Storage.Driver == StorageDriverPostgres {
		dsnRules = append(dsnRules, validation.Required.Error("is required for the postgres driver (or set "+EnvDatabaseURL+")"))
	}
	if c.Sessions.Backend == SessionBackendRedis {
		redisRules = append(redisRules, validation.Required.Error("is required for the redis backend (or set "+EnvRedisURL+")"))
	}
	switch {
	case c.Server.TLS.SelfSigned:
		certRules = append(certRules, validation.By(emptyWithSelfSigned))
		keyRules = append(keyRules, validation.By(emptyWithSelfSigned))
	case c.Server.TLS.CertFile != "" || c.Server.TLS.KeyFile != "":
		certRules = append(certRules, validation.Required.Error("is required with key_file"))
		keyRules = append(keyRules, validation.Required.Error("is required with cert_file"))
	}

	err := validation.Errors{
		"server.addr":              validation.Validate(c.Server.Addr, validation.Required),
		"server.api_root":          validation.Validate(c.Server.APIRoot, validation.Required, validation.By(absolutePath)),
		"server.store_timeout":     validation.Validate(c.Server.StoreTimeout, validation.Required, validation.Min(10*time.Millisecond)),
		"server.tls.cert_file":     validation.Validate(c.Server.TLS.CertFile, certRules...),
		"server.tls.key_file":      validation.Validate(c.Server.TLS.KeyFile, keyRules...),
		"log.format":               validation.Validate(c.Log.Format, validation.In("json", "text")),
		"log.level":                validation.Validate(c.Log.Level, validation.By(logLevel)),
		"storage.driver":           validation.Validate(c.Storage.Driver, validation.Required, validation.In(StorageDriverPostgres, StorageDriverMemory)),
		"storage.database_url":     validation.Validate(c.Storage.DatabaseURL, dsnRules...),
		"sessions.backend":         validation.Validate(c.Sessions.Backend, validation.In(SessionBackendRedis)),
		"sessions.redis_url":       validation.Validate(c.Sessions.RedisURL, redisRules...),
		"sessions.ttl":             validation.Validate(c.Sessions.TTL, validation.Required, validation.Min(time.Minute)),
		"auth.password_min_length": validation.Validate(c.Auth.PasswordMinLength, validation.Required, validation.Min(1), validation.Max(auth.MaxPasswordBytes)),
		"auth.cookie_same_site":    validation.Validate(strings.ToLower(c.Auth.CookieSameSite), validation.In("strict", "lax")),
	}.Filter()
	if err == nil {
		return nil
	}

	fields := make(map[string]string)
	if errs, ok := err.(validation.Errors); ok {
		for key, fe := range errs {
			fields[key] = fe.Error()
		}
	}
	return oops.Code("CONFIG_INVALID").With("fields", fields).Errorf("invalid configuration: %v", err)
}

func absolutePath(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "/") || (len(s) > 1 && strings.HasSuffix(s, "/")) {
		return errors.New("must start with / and not end with /")
	}
	return nil
}

func emptyWithSelfSigned(value any) error {
	if s, _ := value.(string); s != "" {
		return errors.New("must be empty when self_signed is set")
	}
	return nil
}

func logLevel(value any) error {
	s, _ := value.(string)
	if _, err := logging.ParseLevel(s); err != nil {
		return errors.New("must be debug, info, warn or error")
	}
	return nil
}
