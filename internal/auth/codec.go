// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	defaultReadRetryDelay   = 25 * time.Millisecond
	defaultLastSeenInterval = 5 * time.Minute
)

// SessionCodec issues and resolves opaque session tokens.
type SessionCodec struct {
	sessions         SessionRepository
	users            UserRepository
	roles            *Roles
	ttl              time.Duration
	retryDelay       time.Duration
	lastSeenInterval time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

// CodecOption configures a SessionCodec.
type CodecOption func(*SessionCodec)

// WithSessionTTL sets how long issued sessions stay valid.
func WithSessionTTL(ttl time.Duration) CodecOption {
	return func(c *SessionCodec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CodecOption {
	return func(c *SessionCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRoles sets the role definitions used to build permissions.
func WithRoles(roles *Roles) CodecOption {
	return func(c *SessionCodec) {
		if roles != nil {
			c.roles = roles
		}
	}
}

// WithReadRetryDelay sets the pause before the single read retry.
func WithReadRetryDelay(d time.Duration) CodecOption {
	return func(c *SessionCodec) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithLastSeenInterval sets how stale LastSeenAt may get before Validate
// writes a new value. Zero writes on every validation.
func WithLastSeenInterval(d time.Duration) CodecOption {
	return func(c *SessionCodec) {
		if d >= 0 {
			c.lastSeenInterval = d
		}
	}
}

// WithCodecLogger sets the logger for best-effort failures.
func WithCodecLogger(logger *slog.Logger) CodecOption {
	return func(c *SessionCodec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewSessionCodec creates a SessionCodec.
func NewSessionCodec(sessions SessionRepository, users UserRepository, opts ...CodecOption) (*SessionCodec, error) {
	if sessions == nil {
		return nil, oops.Code("CODEC_INVALID_CONFIG").Errorf("session repository is required")
	}
	if users == nil {
		return nil, oops.Code("CODEC_INVALID_CONFIG").Errorf("user repository is required")
	}

	c := &SessionCodec{
		sessions:         sessions,
		users:            users,
		roles:            DefaultRoles(),
		ttl:              DefaultSessionTTL,
		retryDelay:       defaultReadRetryDelay,
		lastSeenInterval: defaultLastSeenInterval,
		now:              func() time.Time { return time.Now().UTC() },
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the lifetime of newly issued sessions.
func (c *SessionCodec) TTL() time.Duration {
	return c.ttl
}

// Issue creates and persists a new session for user. The plaintext token is
// returned alongside the stored session and is not recoverable afterwards.
// Issue is never retried.
func (c *SessionCodec) Issue(ctx context.Context, user *User, authType AuthType, details LoginDetails) (*Session, string, error) {
	if user == nil {
		return nil, "", oops.Code("SESSION_ISSUE_FAILED").Errorf("user is required")
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", err
	}

	now := c.now()
	session, err := NewSession(user.ID, tokenHash, authType, details, now, now.Add(c.ttl))
	if err != nil {
		return nil, "", err
	}

	if err := c.sessions.Create(ctx, session); err != nil {
		return nil, "", errStoreUnavailable("create session", err)
	}

	sessionsIssued.WithLabelValues(string(authType)).Inc()
	return session, token, nil
}

// Validate resolves token to an AuthContext.
//
// Malformed and unknown tokens fail with SESSION_INVALID, expired ones with
// SESSION_EXPIRED. Store reads are retried once; a persistent failure is
// reported as STORE_UNAVAILABLE.
func (c *SessionCodec) Validate(ctx context.Context, token string) (*AuthContext, error) {
	if !WellFormedSessionToken(token) {
		return nil, errSessionInvalid()
	}

	var session *Session
	err := c.read(ctx, func(ctx context.Context) error {
		s, err := c.sessions.GetByTokenHash(ctx, HashSessionToken(token))
		session = s
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errSessionInvalid()
		}
		return nil, errStoreUnavailable("get session by token hash", err)
	}

	if !VerifySessionToken(token, session.TokenHash) {
		return nil, errSessionInvalid()
	}

	now := c.now()
	if session.IsExpiredAt(now) {
		return nil, oops.Code(CodeSessionExpired).
			With("session_id", session.ID.String()).
			Errorf("session has expired")
	}

	var user *User
	err = c.read(ctx, func(ctx context.Context) error {
		u, err := c.users.GetByID(ctx, session.UserID)
		user = u
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errSessionInvalid()
		}
		return nil, errStoreUnavailable("get user by id", err)
	}

	c.touch(ctx, session, now)

	return &AuthContext{
		User:        user,
		Session:     session,
		Permissions: c.roles.For(user),
	}, nil
}

// Revoke deletes a session. Revoking a missing session is not an error.
func (c *SessionCodec) Revoke(ctx context.Context, sessionID ulid.ULID, reason string) error {
	err := c.sessions.Delete(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errStoreUnavailable("delete session", err)
	}
	if err == nil {
		sessionsRevoked.WithLabelValues(reason).Inc()
	}
	return nil
}

// RevokeAllForUser deletes every session of userID except keep, if set.
func (c *SessionCodec) RevokeAllForUser(ctx context.Context, userID ulid.ULID, keep *ulid.ULID, reason string) (int64, error) {
	n, err := c.sessions.DeleteByUser(ctx, userID, keep)
	if err != nil {
		return 0, errStoreUnavailable("delete user sessions", err)
	}
	sessionsRevoked.WithLabelValues(reason).Add(float64(n))
	return n, nil
}

// ListForUser returns the live sessions of userID, newest first.
func (c *SessionCodec) ListForUser(ctx context.Context, userID ulid.ULID) ([]*Session, error) {
	var sessions []*Session
	err := c.read(ctx, func(ctx context.Context) error {
		s, err := c.sessions.ListByUser(ctx, userID)
		sessions = s
		return err
	})
	if err != nil {
		return nil, errStoreUnavailable("list user sessions", err)
	}

	now := c.now()
	live := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if !s.IsExpiredAt(now) {
			live = append(live, s)
		}
	}
	return live, nil
}

// Get returns a session by ID, or SESSION_NOT_FOUND.
func (c *SessionCodec) Get(ctx context.Context, sessionID ulid.ULID) (*Session, error) {
	var session *Session
	err := c.read(ctx, func(ctx context.Context) error {
		s, err := c.sessions.GetByID(ctx, sessionID)
		session = s
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errSessionNotFound(sessionID)
		}
		return nil, errStoreUnavailable("get session by id", err)
	}
	return session, nil
}

// PurgeExpired deletes sessions that expired before now.
func (c *SessionCodec) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := c.sessions.DeleteExpired(ctx, c.now())
	if err != nil {
		return 0, errStoreUnavailable("delete expired sessions", err)
	}
	sessionsRevoked.WithLabelValues(RevokeReasonExpired).Add(float64(n))
	return n, nil
}

// read runs an idempotent store read, retrying once on infrastructure errors.
func (c *SessionCodec) read(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(c.retryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (c *SessionCodec) touch(ctx context.Context, session *Session, now time.Time) {
	if now.Sub(session.LastSeenAt) < c.lastSeenInterval {
		return
	}
	if err := c.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		c.logger.DebugContext(ctx, "update session last seen failed",
			"session_id", session.ID.String(),
			"error", err)
		return
	}
	session.LastSeenAt = now
}

func errSessionInvalid() error {
	return oops.Code(CodeSessionInvalid).Errorf("invalid session token")
}

func errSessionNotFound(id ulid.ULID) error {
	return oops.Code(CodeSessionNotFound).
		With("session_id", id.String()).
		Errorf("session not found")
}
