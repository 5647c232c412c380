// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package web

import (
	"net/http"
	"strings"
	"time"
)

// Cookie names written on login and cleared on logout.
const (
	CookieAccessToken     = "pv_access_token"
	CookieAuthType        = "pv_auth_type"
	CookieIsAuthenticated = "pv_is_authenticated"
)

// AuthCookies lists every cookie owned by the auth endpoints.
var AuthCookies = []string{CookieAccessToken, CookieAuthType, CookieIsAuthenticated}

// CookieValue is a single cookie to write.
type CookieValue struct {
	Key   string
	Value string
}

// CookieTransport writes and clears auth cookies with uniform attributes.
type CookieTransport struct {
	path     string
	sameSite http.SameSite
	maxAge   time.Duration
	now      func() time.Time
}

// NewCookieTransport creates a CookieTransport scoped to path. Cookies live
// for maxAge, which should match the session TTL.
func NewCookieTransport(path string, sameSite http.SameSite, maxAge time.Duration) *CookieTransport {
	if path == "" {
		path = "/"
	}
	if sameSite == 0 {
		sameSite = http.SameSiteStrictMode
	}
	return &CookieTransport{
		path:     path,
		sameSite: sameSite,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// ParseSameSite maps a config value to http.SameSite. Anything other than
// "lax" is Strict.
func ParseSameSite(s string) http.SameSite {
	if strings.EqualFold(s, "lax") {
		return http.SameSiteLaxMode
	}
	return http.SameSiteStrictMode
}

// Write sets each cookie, replacing any cookie with the same name and path.
// secure must come from the request's LoginDetails.
func (t *CookieTransport) Write(w http.ResponseWriter, values []CookieValue, secure bool) {
	expires := t.now().Add(t.maxAge)
	for _, v := range values {
		http.SetCookie(w, &http.Cookie{
			Name:     v.Key,
			Value:    v.Value,
			Path:     t.path,
			MaxAge:   int(t.maxAge / time.Second),
			Expires:  expires,
			HttpOnly: true,
			Secure:   secure,
			SameSite: t.sameSite,
		})
	}
}

// Clear expires each named cookie.
func (t *CookieTransport) Clear(w http.ResponseWriter, keys []string, secure bool) {
	for _, key := range keys {
		http.SetCookie(w, &http.Cookie{
			Name:     key,
			Value:    "",
			Path:     t.path,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   secure,
			SameSite: t.sameSite,
		})
	}
}
