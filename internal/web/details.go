// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package web

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/pixelvault/pixelvault/internal/auth"
)

const (
	maxUserAgentLength     = 512
	maxClientAddressLength = 64
)

// LoginDetailsFromRequest derives transport metadata from r. Forwarded
// headers are honored only when trustProxy is set.
func LoginDetailsFromRequest(r *http.Request, trustProxy bool) auth.LoginDetails {
	secure := r.TLS != nil
	if trustProxy && !secure {
		proto := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0])
		secure = strings.EqualFold(proto, "https")
	}

	return auth.LoginDetails{
		IsSecure:      secure,
		ClientAddress: cleanHeaderText(clientAddress(r, trustProxy), maxClientAddressLength),
		UserAgent:     cleanHeaderText(r.UserAgent(), maxUserAgentLength),
	}
}

// cleanHeaderText makes header bytes safe to store as text. net/http lets
// obs-text (0x80-0xFF) through, so invalid sequences are replaced and the
// result is cut on a rune boundary at no more than limit bytes.
func cleanHeaderText(s string, limit int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func clientAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
