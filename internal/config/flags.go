// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package config

import (
	"github.com/knadh/koanf/providers/posflag"
	"github.com/spf13/pflag"
)

// flagKeys maps command-line flag names to config keys. Flags not listed
// here (such as --config itself) never reach the config tree.
var flagKeys = map[string]string{
	"listen-addr":         "server.addr",
	"api-root":            "server.api_root",
	"trust-proxy":         "server.trust_proxy",
	"store-timeout":       "server.store_timeout",
	"tls-cert":            "server.tls.cert_file",
	"tls-key":             "server.tls.key_file",
	"tls-self-signed":     "server.tls.self_signed",
	"log-format":          "log.format",
	"log-level":           "log.level",
	"metrics-addr":        "metrics.addr",
	"storage":             "storage.driver",
	"database-url":        "storage.database_url",
	"session-backend":     "sessions.backend",
	"redis-url":           "sessions.redis_url",
	"session-ttl":         "sessions.ttl",
	"password-login":      "auth.password_login_enabled",
	"password-min-length": "auth.password_min_length",
	"cookie-same-site":    "auth.cookie_same_site",
}

// RegisterFlags adds the config flags to fs. Flag defaults mirror Default()
// so an unset flag never masks a built-in value.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.String("listen-addr", d.Server.Addr, "API listen address")
	fs.String("api-root", d.Server.APIRoot, "API mount point and cookie path")
	fs.Bool("trust-proxy", d.Server.TrustProxy, "trust X-Forwarded-For and X-Forwarded-Proto")
	fs.Duration("store-timeout", d.Server.StoreTimeout, "per-request deadline for store calls")
	fs.String("tls-cert", d.Server.TLS.CertFile, "TLS certificate file for the API listener")
	fs.String("tls-key", d.Server.TLS.KeyFile, "TLS private key file for the API listener")
	fs.Bool("tls-self-signed", d.Server.TLS.SelfSigned, "serve TLS with a generated development certificate")

	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")

	fs.String("metrics-addr", d.Metrics.Addr, "observability listen address (empty disables)")

	fs.String("storage", d.Storage.Driver, "storage driver (postgres, memory)")
	fs.String("database-url", d.Storage.DatabaseURL, "PostgreSQL connection string (default $"+EnvDatabaseURL+")")

	fs.String("session-backend", d.Sessions.Backend, "session backend (empty uses the storage driver, redis)")
	fs.String("redis-url", d.Sessions.RedisURL, "Redis URL for the redis session backend (default $"+EnvRedisURL+")")
	fs.Duration("session-ttl", d.Sessions.TTL, "lifetime of issued sessions")

	fs.Bool("password-login", d.Auth.PasswordLoginEnabled, "allow email and password login")
	fs.Int("password-min-length", d.Auth.PasswordMinLength, "minimum password length in characters")
	fs.String("cookie-same-site", d.Auth.CookieSameSite, "SameSite attribute for auth cookies (strict, lax)")
}

func flagValue(fs *pflag.FlagSet) func(*pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}
