// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/samber/oops"
)

// Credential is a login attempt. The password exists only for the call.
type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the credential shape. It does not check the password.
func (c Credential) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, validation.Length(3, 254)),
		validation.Field(&c.Password, validation.Required),
	)
}

// LogValue never includes the password.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", NormalizeEmail(c.Email)),
		slog.String("password", "[REDACTED]"),
	)
}

// SignUpDTO is the admin bootstrap request.
type SignUpDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Validate checks the sign-up shape. Password strength is the policy's job.
func (d SignUpDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&d.Name, validation.Length(0, 200)),
	)
}

// LogValue never includes the password.
func (d SignUpDTO) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("email", NormalizeEmail(d.Email)),
		slog.String("name", d.Name),
	)
}

// ChangePasswordDTO is the change-password request.
type ChangePasswordDTO struct {
	Password           string `json:"password"`
	NewPassword        string `json:"newPassword"`
	InvalidateSessions bool   `json:"invalidateSessions"`
}

// Validate requires the current password. An empty new password is left to
// the policy so it surfaces as a weak password.
func (d ChangePasswordDTO) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Password, validation.Required),
	)
}

// LogValue never includes either password.
func (d ChangePasswordDTO) LogValue() slog.Value {
	return slog.GroupValue(slog.Bool("invalidate_sessions", d.InvalidateSessions))
}

// LoginResult is returned by a successful login. The caller transports the
// token; the service never writes cookies.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	UserID      string    `json:"userId"`
	UserEmail   string    `json:"userEmail"`
	Name        string    `json:"name"`
	IsAdmin     bool      `json:"isAdmin"`
	AuthType    AuthType  `json:"authType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// LogoutResult is returned by Logout.
type LogoutResult struct {
	Success bool `json:"success"`
}

// SessionInfo is the response-safe view of a Session.
type SessionInfo struct {
	ID            string    `json:"id"`
	AuthType      AuthType  `json:"authType"`
	UserAgent     string    `json:"userAgent"`
	ClientAddress string    `json:"clientAddress"`
	CreatedAt     time.Time `json:"createdAt"`
	LastSeenAt    time.Time `json:"lastSeenAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Current       bool      `json:"current"`
}

func sessionInfo(s *Session, currentID string) SessionInfo {
	id := s.ID.String()
	return SessionInfo{
		ID:            id,
		AuthType:      s.AuthType,
		UserAgent:     s.UserAgent,
		ClientAddress: s.ClientAddress,
		CreatedAt:     s.CreatedAt,
		LastSeenAt:    s.LastSeenAt,
		ExpiresAt:     s.ExpiresAt,
		Current:       id == currentID,
	}
}

// errMalformedInput converts an ozzo validation failure into a coded error.
// Field messages are attached as the "fields" context entry.
func errMalformedInput(err error) error {
	b := oops.Code(CodeMalformedInput)
	if fieldErrs, ok := err.(validation.Errors); ok {
		fields := make(map[string]string, len(fieldErrs))
		for name, fe := range fieldErrs {
			fields[name] = fe.Error()
		}
		b = b.With("fields", fields)
	}
	return b.Errorf("malformed input")
}

// FieldErrors returns the per-field messages of a malformed-input error.
func FieldErrors(err error) map[string]string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	switch fields := oopsErr.Context()["fields"].(type) {
	case map[string]string:
		return fields
	case map[string]any:
		out := make(map[string]string, len(fields))
		for k, v := range fields {
			if msg, ok := v.(string); ok {
				out[k] = msg
			}
		}
		return out
	}
	return nil
}
