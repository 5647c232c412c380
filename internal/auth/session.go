// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes     = 32 // 32 bytes = 64 hex chars
	SessionTokenLength    = SessionTokenBytes * 2
	DefaultSessionTTL     = 30 * 24 * time.Hour
	sessionTokenHashBytes = sha256.Size
)

// AuthType identifies how a session was established.
type AuthType string

// Known auth types. Only AuthTypePassword is issued by this module.
const (
	AuthTypePassword AuthType = "password"
	AuthTypeOAuth    AuthType = "oauth"
)

// ParseAuthType returns the AuthType for s, or false if s is unknown.
func ParseAuthType(s string) (AuthType, bool) {
	switch AuthType(s) {
	case AuthTypePassword, AuthTypeOAuth:
		return AuthType(s), true
	}
	return "", false
}

// Session binds a hashed token to a user.
type Session struct {
	ID            ulid.ULID
	UserID        ulid.ULID
	TokenHash     string
	AuthType      AuthType
	UserAgent     string
	ClientAddress string
	CreatedAt     time.Time
	LastSeenAt    time.Time
	ExpiresAt     time.Time
}

// NewSession creates a validated Session.
// UserAgent and ClientAddress are optional and may be empty.
func NewSession(userID ulid.ULID, tokenHash string, authType AuthType, details LoginDetails, createdAt, expiresAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if _, ok := ParseAuthType(string(authType)); !ok {
		return nil, oops.Code("SESSION_INVALID_AUTH_TYPE").
			With("auth_type", string(authType)).
			Errorf("unknown auth type")
	}
	if !expiresAt.After(createdAt) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry must be after creation time")
	}

	return &Session{
		ID:            ulid.Make(),
		UserID:        userID,
		TokenHash:     tokenHash,
		AuthType:      authType,
		UserAgent:     details.UserAgent,
		ClientAddress: details.ClientAddress,
		CreatedAt:     createdAt,
		LastSeenAt:    createdAt,
		ExpiresAt:     expiresAt,
	}, nil
}

// IsExpiredAt reports whether the session is expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; only the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the hex-encoded SHA256 of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// WellFormedSessionToken reports whether token has the shape produced by
// GenerateSessionToken. The check depends only on length and alphabet.
func WellFormedSessionToken(token string) bool {
	if len(token) != SessionTokenLength {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// VerifySessionToken checks the plaintext token against a stored hash in
// constant time.
func VerifySessionToken(token, hash string) bool {
	if token == "" || len(hash) != sessionTokenHashBytes*2 {
		return false
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session. Token hashes are unique.
	Create(ctx context.Context, session *Session) error

	// GetByID retrieves a session by its ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Session, error)

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// ListByUser returns all sessions for a user, newest first.
	ListByUser(ctx context.Context, userID ulid.ULID) ([]*Session, error)

	// UpdateLastSeen updates the LastSeenAt timestamp for a session.
	UpdateLastSeen(ctx context.Context, id ulid.ULID, lastSeen time.Time) error

	// Delete removes a session by ID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes every session of a user except keep (if non-nil)
	// and returns the number removed.
	DeleteByUser(ctx context.Context, userID ulid.ULID, keep *ulid.ULID) (int64, error)

	// DeleteExpired removes sessions expired at now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
