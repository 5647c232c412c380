package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pixelvault/pixelvault/internal/config"
	"github.com/pixelvault/pixelvault/internal/observability"
	"github.com/pixelvault/pixelvault/internal/store"
	"github.com/pixelvault/pixelvault/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoresFactory opens the repositories selected by the configuration.
	// Default: openStores
	StoresFactory func(ctx context.Context, cfg *config.Config) (*Stores, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readiness observability.ReadinessChecker, extra ...prometheus.Collector) ObservabilityServer

	// APIServerFactory creates the API server.
	// Default: web.NewServer
	APIServerFactory func(addr string, handler http.Handler, opts ...web.ServerOption) APIServer

	// CertsDir returns the directory for self-signed development certificates.
	// Default: xdg.CertsDir
	CertsDir func() string
}

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	// MigratorFactory creates a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// Getenv reads environment variables.
	// Default: os.Getenv
	Getenv func(string) string
}

// SessionsDeps contains injectable dependencies for the sessions command.
type SessionsDeps struct {
	// StoresFactory opens the repositories selected by the configuration.
	// Default: openStores
	StoresFactory func(ctx context.Context, cfg *config.Config) (*Stores, error)

	// Getenv reads environment variables.
	// Default: os.Getenv
	Getenv func(string) string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// APIServer interface wraps the methods used from web.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Migrator interface wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}
