// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAdminExists is returned by UserRepository.Create when an admin user is
// already stored and the new user is also an admin.
var ErrAdminExists = errors.New("admin already exists")

// ErrEmailTaken is returned by UserRepository.Create when the email is
// already registered (case-insensitive).
var ErrEmailTaken = errors.New("email already registered")

// Error codes surfaced to callers. Transport layers map these to status codes.
const (
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeWeakPassword          = "AUTH_WEAK_PASSWORD"
	CodeAdminExists           = "AUTH_ADMIN_EXISTS"
	CodeEmailTaken            = "AUTH_EMAIL_TAKEN"
	CodeUnauthenticated       = "AUTH_UNAUTHENTICATED"
	CodeForbidden             = "AUTH_FORBIDDEN"
	CodeMalformedInput        = "AUTH_MALFORMED_INPUT"
	CodePasswordLoginDisabled = "AUTH_PASSWORD_LOGIN_DISABLED"
	CodeSessionInvalid        = "SESSION_INVALID"
	CodeSessionExpired        = "SESSION_EXPIRED"
	CodeSessionNotFound       = "SESSION_NOT_FOUND"
	CodeStoreUnavailable      = "STORE_UNAVAILABLE"
)

// ErrorCode returns the oops code attached to err, or "" when err carries none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// IsTokenError reports whether err describes a rejected session token
// (unknown, malformed or expired) as opposed to an infrastructure failure.
func IsTokenError(err error) bool {
	switch ErrorCode(err) {
	case CodeSessionInvalid, CodeSessionExpired, CodeUnauthenticated:
		return true
	}
	return false
}

// IsRetryable reports whether the caller may retry the request later.
func IsRetryable(err error) bool {
	return ErrorCode(err) == CodeStoreUnavailable
}

// errInvalidCredentials is the single failure shape for every login miss.
func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

// errUnauthenticated is returned when an operation needs a resolved identity.
func errUnauthenticated() error {
	return oops.Code(CodeUnauthenticated).Errorf("authentication required")
}

// errStoreUnavailable converts a collaborator failure into a retryable error.
// The cause is recorded as context rather than wrapped so that the
// STORE_UNAVAILABLE code is the one callers observe.
func errStoreUnavailable(operation string, cause error) error {
	b := oops.Code(CodeStoreUnavailable).With("operation", operation)
	if cause != nil {
		b = b.With("cause", cause.Error())
		if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
			b = b.With("deadline", true)
		}
	}
	return b.Errorf("store unavailable, retry later")
}
