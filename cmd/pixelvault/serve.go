// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pixelvault/pixelvault/internal/auth"
	"github.com/pixelvault/pixelvault/internal/config"
	"github.com/pixelvault/pixelvault/internal/logging"
	"github.com/pixelvault/pixelvault/internal/observability"
	pvtls "github.com/pixelvault/pixelvault/internal/tls"
	"github.com/pixelvault/pixelvault/internal/web"
	"github.com/pixelvault/pixelvault/internal/xdg"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API and, unless disabled, the observability server
with metrics and health probes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps runs the API until a signal, a server failure or ctx
// cancellation. If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoresFactory == nil {
		deps.StoresFactory = openStores
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readiness observability.ReadinessChecker, extra ...prometheus.Collector) ObservabilityServer {
			return observability.NewServer(addr, readiness, extra...)
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(addr string, handler http.Handler, opts ...web.ServerOption) APIServer {
			return web.NewServer(addr, handler, opts...)
		}
	}
	if deps.CertsDir == nil {
		deps.CertsDir = func() string { return xdg.CertsDir(nil) }
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logging.SetDefault(logging.Options{
		Service: "pixelvault",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})

	logger.Info("starting pixelvault",
		"addr", cfg.Server.Addr,
		"storage", cfg.Storage.Driver,
		"session_backend", cfg.Sessions.Backend)

	stores, err := deps.StoresFactory(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open stores").Wrap(err)
	}
	defer stores.Close()

	svc, codec, err := buildService(cfg, stores, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, stores.Ready, auth.Collectors()...)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
	}

	handler, err := web.NewRouter(svc, codec, web.Options{
		APIRoot:      cfg.Server.APIRoot,
		TrustProxy:   cfg.Server.TrustProxy,
		StoreTimeout: cfg.Server.StoreTimeout,
		SessionTTL:   cfg.Sessions.TTL,
		SameSite:     web.ParseSameSite(cfg.Auth.CookieSameSite),
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		stopObservability(obsServer)
		return err
	}

	var serverOpts []web.ServerOption
	if cfg.Server.TLS.Enabled() {
		tlsConfig, err := serverTLS(cfg.Server, deps.CertsDir)
		if err != nil {
			stopObservability(obsServer)
			return err
		}
		serverOpts = append(serverOpts, web.WithTLS(tlsConfig))
	}

	apiServer := deps.APIServerFactory(cfg.Server.Addr, handler, serverOpts...)
	apiErrChan, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer)
		return oops.With("operation", "start api server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	scheme := "http"
	if cfg.Server.TLS.Enabled() {
		scheme = "https"
	}
	cmd.Println("PixelVault started on " + scheme + "://" + apiServer.Addr())
	logger.Info("pixelvault ready", "addr", apiServer.Addr(), "api_root", cfg.Server.APIRoot)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// buildService assembles the auth components over stores.
func buildService(cfg *config.Config, stores *Stores, logger *slog.Logger) (*auth.Service, *auth.SessionCodec, error) {
	verifier, err := auth.NewCredentialVerifier(
		stores.Users,
		auth.NewArgon2idHasher(),
		auth.PasswordPolicy{MinLength: cfg.Auth.PasswordMinLength},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	codec, err := auth.NewSessionCodec(stores.Sessions, stores.Users,
		auth.WithSessionTTL(cfg.Sessions.TTL),
		auth.WithCodecLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	svc, err := auth.NewService(verifier, codec,
		auth.WithLogger(logger),
		auth.WithPasswordLogin(cfg.Auth.PasswordLoginEnabled))
	if err != nil {
		return nil, nil, err
	}
	return svc, codec, nil
}

// serverTLS loads the configured certificate pair, or issues a development
// certificate when self-signed TLS is requested.
func serverTLS(cfg config.ServerConfig, certsDir func() string) (*cryptotls.Config, error) {
	certFile, keyFile := cfg.TLS.CertFile, cfg.TLS.KeyFile
	if cfg.TLS.SelfSigned {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = ""
		}
		dir := certsDir()
		certFile, keyFile, err = pvtls.EnsureServerCert(dir, host)
		if err != nil {
			return nil, oops.With("operation", "issue development certificate").With("dir", dir).Wrap(err)
		}
		slog.Warn("serving a self-signed development certificate", "cert_file", certFile)
	}
	return pvtls.ServerConfig(certFile, keyFile)
}

func stopObservability(srv ObservabilityServer) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
