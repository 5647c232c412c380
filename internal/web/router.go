// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

// Package web exposes the auth service over HTTP: routing, the request
// guard, cookie transport and error mapping.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/pixelvault/pixelvault/internal/observability"
)

// Options configures the API router.
type Options struct {
	APIRoot      string
	TrustProxy   bool
	StoreTimeout time.Duration
	SessionTTL   time.Duration
	SameSite     http.SameSite
	// Routes overrides DefaultRoutes.
	Routes  []Route
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewRouter assembles the API handler.
func NewRouter(service AuthService, validator TokenValidator, opts Options) (http.Handler, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root := strings.TrimSuffix(opts.APIRoot, "/")
	if root == "" {
		return nil, oops.Code("ROUTER_INVALID_CONFIG").Errorf("api root must not be empty or /")
	}

	routes := opts.Routes
	if routes == nil {
		routes = DefaultRoutes(root)
	}
	table, err := NewRouteTable(routes...)
	if err != nil {
		return nil, err
	}
	guard, err := NewGuard(table, validator, opts.TrustProxy, logger)
	if err != nil {
		return nil, err
	}
	handler, err := NewAuthHandler(service, NewCookieTransport(root, opts.SameSite, opts.SessionTTL), logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(logger, opts.Metrics))
	r.Use(middleware.Recoverer)
	if opts.StoreTimeout > 0 {
		r.Use(storeDeadline(opts.StoreTimeout))
	}
	r.Use(guard.Middleware)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, logger, oops.Code(CodeNotFound).Errorf("route not found"))
	})

	r.Route(root, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", handler.Login)
			r.Post("/admin-sign-up", handler.AdminSignUp)
			r.Post("/validateToken", handler.ValidateToken)
			r.Post("/change-password", handler.ChangePassword)
			r.Post("/logout", handler.Logout)
			r.Get("/user", handler.GetMe)
		})
		r.Get("/sessions", handler.ListSessions)
		r.Delete("/sessions/{id}", handler.RevokeSession)
		r.Delete("/admin/users/{id}/sessions", handler.RevokeUserSessions)
	})

	return r, nil
}

// storeDeadline bounds every store call made while serving a request.
func storeDeadline(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestLogger writes one access log line per request and records the
// HTTP metrics when m is non-nil.
func requestLogger(logger *slog.Logger, m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			elapsed := time.Since(start)

			if m != nil {
				m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
				m.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
