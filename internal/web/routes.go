// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package web

import (
	"net/http"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/pixelvault/pixelvault/internal/auth"
)

// Route is an access rule for requests matching Method and Pattern.
// Pattern is a glob over the request path with '/' as separator, so "*"
// matches one segment and "**" any number. An empty Method matches all.
type Route struct {
	Method     string
	Pattern    string
	Public     bool
	Capability string
}

type compiledRoute struct {
	Route
	glob glob.Glob
}

// RouteTable resolves the access rule for a request. The first matching
// route wins. Requests matching no route are protected.
type RouteTable struct {
	routes []compiledRoute
}

// NewRouteTable compiles routes in order.
func NewRouteTable(routes ...Route) (*RouteTable, error) {
	compiled := make([]compiledRoute, 0, len(routes))
	for _, r := range routes {
		g, err := glob.Compile(r.Pattern, '/')
		if err != nil {
			return nil, oops.In("web").
				Code("INVALID_ROUTE_PATTERN").
				With("method", r.Method).
				With("pattern", r.Pattern).
				Wrap(err)
		}
		compiled = append(compiled, compiledRoute{Route: r, glob: g})
	}
	return &RouteTable{routes: compiled}, nil
}

// Match returns the rule for method and path. The zero Route (protected,
// no capability) is returned when nothing matches.
func (t *RouteTable) Match(method, path string) Route {
	for _, r := range t.routes {
		if r.Method != "" && !strings.EqualFold(r.Method, method) {
			continue
		}
		if r.glob.Match(path) {
			return r.Route
		}
	}
	return Route{Method: method, Pattern: path}
}

// DefaultRoutes returns the access rules for the API mounted at apiRoot.
func DefaultRoutes(apiRoot string) []Route {
	root := strings.TrimSuffix(apiRoot, "/")
	return []Route{
		{Method: http.MethodPost, Pattern: root + "/auth/login", Public: true},
		{Method: http.MethodPost, Pattern: root + "/auth/admin-sign-up", Public: true},
		{Method: http.MethodPost, Pattern: root + "/auth/validateToken"},
		{Method: http.MethodPost, Pattern: root + "/auth/change-password", Capability: auth.CapabilitySelfWrite},
		{Method: http.MethodPost, Pattern: root + "/auth/logout"},
		{Method: http.MethodGet, Pattern: root + "/auth/user", Capability: auth.CapabilitySelfRead},
		{Method: http.MethodGet, Pattern: root + "/sessions", Capability: auth.CapabilitySessionsManage},
		{Method: http.MethodDelete, Pattern: root + "/sessions/*", Capability: auth.CapabilitySessionsManage},
		{Method: http.MethodDelete, Pattern: root + "/admin/users/*/sessions", Capability: auth.CapabilityAdminSessions},
	}
}
