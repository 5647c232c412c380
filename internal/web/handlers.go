// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/pixelvault/pixelvault/internal/auth"
)

// AuthService is the subset of auth.Service the handlers call.
type AuthService interface {
	Login(ctx context.Context, cred auth.Credential, details auth.LoginDetails) (*auth.LoginResult, error)
	AdminSignUp(ctx context.Context, dto auth.SignUpDTO) (*auth.PublicUser, error)
	ValidateAccessToken(ctx context.Context, ac *auth.AuthContext) bool
	ChangePassword(ctx context.Context, ac *auth.AuthContext, dto auth.ChangePasswordDTO) (*auth.PublicUser, error)
	Logout(ctx context.Context, ac *auth.AuthContext, authType auth.AuthType) (*auth.LogoutResult, error)
	GetMe(ctx context.Context, ac *auth.AuthContext) (*auth.PublicUser, error)
	ListSessions(ctx context.Context, ac *auth.AuthContext) ([]auth.SessionInfo, error)
	RevokeSession(ctx context.Context, ac *auth.AuthContext, sessionID ulid.ULID) error
	RevokeUserSessions(ctx context.Context, ac *auth.AuthContext, userID ulid.ULID) (int64, error)
}

var _ AuthService = (*auth.Service)(nil)

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	AccessToken string        `json:"accessToken"`
	UserID      string        `json:"userId"`
	UserEmail   string        `json:"userEmail"`
	Name        string        `json:"name"`
	IsAdmin     bool          `json:"isAdmin"`
	AuthType    auth.AuthType `json:"authType"`
}

// ValidateTokenResponse is the body of a successful token check.
type ValidateTokenResponse struct {
	AuthStatus bool `json:"authStatus"`
}

// RevokedResponse reports how many sessions were revoked.
type RevokedResponse struct {
	Revoked int64 `json:"revoked"`
}

// AuthHandler serves the auth and session endpoints.
type AuthHandler struct {
	service AuthService
	cookies *CookieTransport
	logger  *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(service AuthService, cookies *CookieTransport, logger *slog.Logger) (*AuthHandler, error) {
	if service == nil {
		return nil, oops.Code("HANDLER_INVALID_CONFIG").Errorf("auth service is required")
	}
	if cookies == nil {
		return nil, oops.Code("HANDLER_INVALID_CONFIG").Errorf("cookie transport is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{service: service, cookies: cookies, logger: logger}, nil
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cred auth.Credential
	if err := decodeJSON(w, r, &cred); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	details := auth.LoginDetailsFrom(r.Context())
	result, err := h.service.Login(r.Context(), cred, details)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.cookies.Write(w, []CookieValue{
		{Key: CookieAccessToken, Value: result.AccessToken},
		{Key: CookieAuthType, Value: string(result.AuthType)},
		{Key: CookieIsAuthenticated, Value: "true"},
	}, details.IsSecure)

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		UserID:      result.UserID,
		UserEmail:   result.UserEmail,
		Name:        result.Name,
		IsAdmin:     result.IsAdmin,
		AuthType:    result.AuthType,
	})
}

// AdminSignUp handles POST /auth/admin-sign-up.
func (h *AuthHandler) AdminSignUp(w http.ResponseWriter, r *http.Request) {
	var dto auth.SignUpDTO
	if err := decodeJSON(w, r, &dto); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.service.AdminSignUp(r.Context(), dto)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// ValidateToken handles POST /auth/validateToken. The guard has already
// validated the token when this runs.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.AuthContextFrom(r.Context())
	writeJSON(w, http.StatusOK, ValidateTokenResponse{
		AuthStatus: h.service.ValidateAccessToken(r.Context(), ac),
	})
}

// ChangePassword handles POST /auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var dto auth.ChangePasswordDTO
	if err := decodeJSON(w, r, &dto); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ac, _ := auth.AuthContextFrom(r.Context())
	user, err := h.service.ChangePassword(r.Context(), ac, dto)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout handles POST /auth/logout. The current session is always revoked.
// The auth type cookie is passed along for logging; without it the
// session's own type is used. Cookies are cleared on success.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.AuthContextFrom(r.Context())

	var authType auth.AuthType
	if c, err := r.Cookie(CookieAuthType); err == nil {
		authType, _ = auth.ParseAuthType(c.Value)
	}
	if authType == "" && ac != nil && ac.Session != nil {
		authType = ac.Session.AuthType
	}

	result, err := h.service.Logout(r.Context(), ac, authType)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.cookies.Clear(w, AuthCookies, auth.LoginDetailsFrom(r.Context()).IsSecure)
	writeJSON(w, http.StatusOK, result)
}

// GetMe handles GET /auth/user.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.AuthContextFrom(r.Context())
	user, err := h.service.GetMe(r.Context(), ac)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListSessions handles GET /sessions.
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.AuthContextFrom(r.Context())
	sessions, err := h.service.ListSessions(r.Context(), ac)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// RevokeSession handles DELETE /sessions/{id}.
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	id, err := ulidParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ac, _ := auth.AuthContextFrom(r.Context())
	if err := h.service.RevokeSession(r.Context(), ac, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeUserSessions handles DELETE /admin/users/{id}/sessions.
func (h *AuthHandler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	id, err := ulidParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ac, _ := auth.AuthContextFrom(r.Context())
	n, err := h.service.RevokeUserSessions(r.Context(), ac, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RevokedResponse{Revoked: n})
}

func ulidParam(r *http.Request, name string) (ulid.ULID, error) {
	raw := chi.URLParam(r, name)
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code(auth.CodeMalformedInput).
			With("fields", map[string]string{name: "must be a valid ID"}).
			Errorf("malformed input")
	}
	return id, nil
}
