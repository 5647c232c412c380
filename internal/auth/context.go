// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth

import "context"

// LoginDetails is transport metadata derived once per request.
type LoginDetails struct {
	// IsSecure reports whether the client channel is encrypted. It drives
	// the Secure attribute of every cookie written for the request.
	IsSecure      bool
	ClientAddress string
	UserAgent     string
}

// AuthContext is the identity resolved for a single in-flight request.
type AuthContext struct {
	User        *User
	Session     *Session
	Permissions CapabilitySet
}

// Can reports whether the resolved identity holds capability.
func (a *AuthContext) Can(capability string) bool {
	if a == nil {
		return false
	}
	return a.Permissions.Has(capability)
}

type authContextKey struct{}

type loginDetailsKey struct{}

// WithAuthContext returns a copy of ctx carrying ac.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthContextFrom returns the AuthContext attached to ctx.
func AuthContextFrom(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return ac, ok && ac != nil
}

// WithLoginDetails returns a copy of ctx carrying details.
func WithLoginDetails(ctx context.Context, details LoginDetails) context.Context {
	return context.WithValue(ctx, loginDetailsKey{}, details)
}

// LoginDetailsFrom returns the LoginDetails attached to ctx. The zero value
// (insecure, anonymous) is returned when none are attached.
func LoginDetailsFrom(ctx context.Context) LoginDetails {
	details, _ := ctx.Value(loginDetailsKey{}).(LoginDetails)
	return details
}
