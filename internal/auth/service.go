// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pixelvault/auth")

// Service composes the verifier and the session codec into the user-facing
// auth operations. It never touches transport state such as cookies.
type Service struct {
	verifier      *CredentialVerifier
	codec         *SessionCodec
	passwordLogin bool
	logger        *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPasswordLogin enables or disables password login. Enabled by default.
func WithPasswordLogin(enabled bool) ServiceOption {
	return func(s *Service) {
		s.passwordLogin = enabled
	}
}

// NewService creates a Service.
func NewService(verifier *CredentialVerifier, codec *SessionCodec, opts ...ServiceOption) (*Service, error) {
	if verifier == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("credential verifier is required")
	}
	if codec == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session codec is required")
	}

	s := &Service{
		verifier:      verifier,
		codec:         codec,
		passwordLogin: true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Codec returns the session codec used by the service.
func (s *Service) Codec() *SessionCodec {
	return s.codec
}

// Login verifies cred and issues a password session.
func (s *Service) Login(ctx context.Context, cred Credential, details LoginDetails) (_ *LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer endSpan(span, &err)
	defer observeOperation("login", time.Now())

	if !s.passwordLogin {
		recordLogin(LoginResultDisabled)
		return nil, oops.Code(CodePasswordLoginDisabled).Errorf("password login is disabled")
	}

	user, err := s.verifier.VerifyLogin(ctx, cred)
	if err != nil {
		if ErrorCode(err) == CodeInvalidCredentials {
			recordLogin(LoginResultInvalid)
			s.logger.InfoContext(ctx, "login rejected", "client_address", details.ClientAddress)
		} else {
			recordLogin(LoginResultError)
		}
		return nil, err
	}

	session, token, err := s.codec.Issue(ctx, user, AuthTypePassword, details)
	if err != nil {
		recordLogin(LoginResultError)
		return nil, err
	}

	recordLogin(LoginResultSuccess)
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	s.logger.InfoContext(ctx, "login succeeded",
		"user_id", user.ID.String(),
		"session_id", session.ID.String())

	return &LoginResult{
		AccessToken: token,
		UserID:      user.ID.String(),
		UserEmail:   user.Email,
		Name:        user.Name,
		IsAdmin:     user.IsAdmin,
		AuthType:    session.AuthType,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

// AdminSignUp creates the first admin account.
func (s *Service) AdminSignUp(ctx context.Context, dto SignUpDTO) (_ *PublicUser, err error) {
	ctx, span := tracer.Start(ctx, "auth.admin_sign_up")
	defer endSpan(span, &err)
	defer observeOperation("admin_sign_up", time.Now())

	user, err := s.verifier.BootstrapAdmin(ctx, dto)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "admin account created", "user", user)
	return user.Public(), nil
}

// ValidateAccessToken reports that the presented credential is accepted.
// The guard has already validated it by the time this runs.
func (s *Service) ValidateAccessToken(_ context.Context, _ *AuthContext) bool {
	return true
}

// ChangePassword replaces the caller's password. With InvalidateSessions set,
// every other session of the caller is revoked on a best-effort basis; a
// revocation failure is logged and the change is still reported.
func (s *Service) ChangePassword(ctx context.Context, ac *AuthContext, dto ChangePasswordDTO) (_ *PublicUser, err error) {
	ctx, span := tracer.Start(ctx, "auth.change_password")
	defer endSpan(span, &err)
	defer observeOperation("change_password", time.Now())

	if ac == nil || ac.User == nil {
		return nil, errUnauthenticated()
	}

	user, err := s.verifier.VerifyAndChangePassword(ctx, ac.User, dto)
	if err != nil {
		return nil, err
	}

	// The new hash is committed at this point. A failed revocation must not
	// report the change as failed: a retry would present the old password.
	if dto.InvalidateSessions {
		var keep *ulid.ULID
		if ac.Session != nil {
			keep = &ac.Session.ID
		}
		n, revokeErr := s.codec.RevokeAllForUser(ctx, user.ID, keep, RevokeReasonPasswordChange)
		if revokeErr != nil {
			span.RecordError(revokeErr)
			s.logger.WarnContext(ctx, "password changed but other sessions were not revoked",
				"user_id", user.ID.String(),
				"error", revokeErr)
		} else {
			span.SetAttributes(attribute.Int64("sessions.revoked", n))
		}
	}

	s.logger.InfoContext(ctx, "password changed", "user_id", user.ID.String())
	return user.Public(), nil
}

// Logout revokes the caller's current session. authType is the client's
// view of how it signed in and only annotates the span and log; it never
// decides whether the session is revoked. A session that is already gone
// still reports success.
func (s *Service) Logout(ctx context.Context, ac *AuthContext, authType AuthType) (_ *LogoutResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.logout", trace.WithAttributes(
		attribute.String("auth.type", string(authType)),
	))
	defer endSpan(span, &err)
	defer observeOperation("logout", time.Now())

	if ac == nil || ac.Session == nil {
		return &LogoutResult{Success: true}, nil
	}
	if authType != "" && ac.Session.AuthType != authType {
		s.logger.DebugContext(ctx, "logout auth type does not match session",
			"session_id", ac.Session.ID.String(),
			"session_auth_type", string(ac.Session.AuthType),
			"requested_auth_type", string(authType))
	}

	if err := s.codec.Revoke(ctx, ac.Session.ID, RevokeReasonLogout); err != nil {
		return nil, err
	}
	return &LogoutResult{Success: true}, nil
}

// GetMe projects the resolved identity.
func (s *Service) GetMe(_ context.Context, ac *AuthContext) (*PublicUser, error) {
	if ac == nil || ac.User == nil {
		return nil, errUnauthenticated()
	}
	return ac.User.Public(), nil
}

// ListSessions returns the caller's live sessions.
func (s *Service) ListSessions(ctx context.Context, ac *AuthContext) ([]SessionInfo, error) {
	if ac == nil || ac.User == nil {
		return nil, errUnauthenticated()
	}

	sessions, err := s.codec.ListForUser(ctx, ac.User.ID)
	if err != nil {
		return nil, err
	}

	currentID := ""
	if ac.Session != nil {
		currentID = ac.Session.ID.String()
	}
	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionInfo(sess, currentID))
	}
	return out, nil
}

// RevokeSession revokes one of the caller's own sessions. Sessions owned by
// someone else are reported as not found.
func (s *Service) RevokeSession(ctx context.Context, ac *AuthContext, sessionID ulid.ULID) (err error) {
	ctx, span := tracer.Start(ctx, "auth.revoke_session")
	defer endSpan(span, &err)

	if ac == nil || ac.User == nil {
		return errUnauthenticated()
	}

	session, err := s.codec.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != ac.User.ID {
		return errSessionNotFound(sessionID)
	}
	return s.codec.Revoke(ctx, sessionID, RevokeReasonUser)
}

// RevokeUserSessions revokes every session of userID. Route policy restricts
// it to holders of CapabilityAdminSessions.
func (s *Service) RevokeUserSessions(ctx context.Context, ac *AuthContext, userID ulid.ULID) (_ int64, err error) {
	ctx, span := tracer.Start(ctx, "auth.revoke_user_sessions", trace.WithAttributes(
		attribute.String("target.user_id", userID.String()),
	))
	defer endSpan(span, &err)

	if ac == nil || ac.User == nil {
		return 0, errUnauthenticated()
	}

	n, err := s.codec.RevokeAllForUser(ctx, userID, nil, RevokeReasonAdmin)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "user sessions revoked",
		"admin_id", ac.User.ID.String(),
		"target_user_id", userID.String(),
		"count", n)
	return n, nil
}

func endSpan(span trace.Span, err *error) {
	if err != nil && *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
