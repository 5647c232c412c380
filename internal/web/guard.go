// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/pixelvault/pixelvault/internal/auth"
)

// TokenValidator resolves an access token to an identity.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.AuthContext, error)
}

// Guard enforces the route table on every request.
type Guard struct {
	routes     *RouteTable
	validator  TokenValidator
	trustProxy bool
	logger     *slog.Logger
}

// NewGuard creates a Guard.
func NewGuard(routes *RouteTable, validator TokenValidator, trustProxy bool, logger *slog.Logger) (*Guard, error) {
	if routes == nil {
		return nil, oops.Code("GUARD_INVALID_CONFIG").Errorf("route table is required")
	}
	if validator == nil {
		return nil, oops.Code("GUARD_INVALID_CONFIG").Errorf("token validator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{routes: routes, validator: validator, trustProxy: trustProxy, logger: logger}, nil
}

// Middleware attaches LoginDetails to every request and, for protected
// routes, the validated AuthContext. Only the access token is consulted;
// the is-authenticated cookie is a client hint and grants nothing.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithLoginDetails(r.Context(), LoginDetailsFromRequest(r, g.trustProxy))
		r = r.WithContext(ctx)

		route := g.routes.Match(r.Method, r.URL.Path)
		if route.Public {
			auth.RecordGuardDecision(auth.DecisionPublic)
			next.ServeHTTP(w, r)
			return
		}

		token := accessToken(r)
		if token == "" {
			auth.RecordGuardDecision(auth.DecisionRejected)
			writeError(w, r, g.logger, oops.Code(auth.CodeUnauthenticated).Errorf("authentication required"))
			return
		}

		ac, err := g.validator.Validate(ctx, token)
		if err != nil {
			if auth.IsTokenError(err) {
				auth.RecordGuardDecision(auth.DecisionRejected)
				g.logger.DebugContext(ctx, "access token rejected",
					"reason", auth.ErrorCode(err),
					"path", r.URL.Path)
				writeError(w, r, g.logger, oops.Code(auth.CodeUnauthenticated).
					With("reason", auth.ErrorCode(err)).
					Errorf("authentication required"))
				return
			}
			// STORE_UNAVAILABLE maps to 503; anything else is a 500.
			auth.RecordGuardDecision(auth.DecisionUnavailable)
			writeError(w, r, g.logger, err)
			return
		}

		if !ac.Can(route.Capability) {
			auth.RecordGuardDecision(auth.DecisionForbidden)
			g.logger.InfoContext(ctx, "request forbidden",
				"user_id", ac.User.ID.String(),
				"capability", route.Capability,
				"path", r.URL.Path)
			writeError(w, r, g.logger, oops.Code(auth.CodeForbidden).
				With("capability", route.Capability).
				Errorf("insufficient permissions"))
			return
		}

		auth.RecordGuardDecision(auth.DecisionAuthenticated)
		next.ServeHTTP(w, r.WithContext(auth.WithAuthContext(ctx, ac)))
	})
}

// accessToken reads the access token cookie, falling back to a bearer
// Authorization header.
func accessToken(r *http.Request) string {
	if c, err := r.Cookie(CookieAccessToken); err == nil && c.Value != "" {
		return c.Value
	}

	const bearer = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(bearer) && strings.EqualFold(header[:len(bearer)], bearer) {
		return strings.TrimSpace(header[len(bearer):])
	}
	return ""
}
