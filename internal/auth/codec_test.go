// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/pixelvault/internal/auth"
	"github.com/pixelvault/pixelvault/internal/auth/mocks"
	"github.com/pixelvault/pixelvault/pkg/errutil"
)

var errDBDown = errors.New("connection refused")

type codecFixture struct {
	codec    *auth.SessionCodec
	sessions *mocks.MockSessionRepository
	users    *mocks.MockUserRepository
	now      time.Time
}

func newCodecFixture(t *testing.T, opts ...auth.CodecOption) *codecFixture {
	t.Helper()
	f := &codecFixture{
		sessions: mocks.NewMockSessionRepository(t),
		users:    mocks.NewMockUserRepository(t),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	base := []auth.CodecOption{
		auth.WithClock(func() time.Time { return f.now }),
		auth.WithReadRetryDelay(time.Millisecond),
		auth.WithSessionTTL(time.Hour),
	}
	codec, err := auth.NewSessionCodec(f.sessions, f.users, append(base, opts...)...)
	require.NoError(t, err)
	f.codec = codec
	return f
}

// stored returns a token and the session a repository would hold for it.
func (f *codecFixture) stored(t *testing.T, user *auth.User, lastSeen time.Time) (string, *auth.Session) {
	t.Helper()
	token, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	s, err := auth.NewSession(user.ID, hash, auth.AuthTypePassword, auth.LoginDetails{}, f.now.Add(-time.Minute), f.now.Add(time.Hour))
	require.NoError(t, err)
	s.LastSeenAt = lastSeen
	return token, s
}

func testUser(t *testing.T, admin bool) *auth.User {
	t.Helper()
	u, err := auth.NewUser("user-"+ulid.Make().String()+"@example.com", "Test User", "$argon2id$stored", admin)
	require.NoError(t, err)
	return u
}

func TestNewSessionCodec_NilDependencies(t *testing.T) {
	_, err := auth.NewSessionCodec(nil, mocks.NewMockUserRepository(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session repository is required")

	_, err = auth.NewSessionCodec(mocks.NewMockSessionRepository(t), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user repository is required")
}

func TestSessionCodec_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("persists hashed token", func(t *testing.T) {
		f := newCodecFixture(t)
		user := testUser(t, false)
		details := auth.LoginDetails{ClientAddress: "198.51.100.4", UserAgent: "curl/8"}

		var created *auth.Session
		f.sessions.On("Create", ctx, mock.AnythingOfType("*auth.Session")).
			Run(func(args mock.Arguments) { created = args.Get(1).(*auth.Session) }).
			Return(nil).Once()

		session, token, err := f.codec.Issue(ctx, user, auth.AuthTypePassword, details)
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Same(t, created, session)
		assert.Len(t, token, 64)
		assert.Equal(t, auth.HashSessionToken(token), session.TokenHash)
		assert.NotContains(t, session.TokenHash, token)
		assert.Equal(t, user.ID, session.UserID)
		assert.Equal(t, f.now.Add(time.Hour), session.ExpiresAt)
		assert.Equal(t, "198.51.100.4", session.ClientAddress)
		assert.Equal(t, "curl/8", session.UserAgent)
	})

	t.Run("store failure is not retried", func(t *testing.T) {
		f := newCodecFixture(t)
		f.sessions.On("Create", ctx, mock.Anything).Return(errDBDown).Once()

		_, _, err := f.codec.Issue(ctx, testUser(t, false), auth.AuthTypePassword, auth.LoginDetails{})
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
		assert.True(t, auth.IsRetryable(err))
	})
}

func TestSessionCodec_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves user and permissions", func(t *testing.T) {
		f := newCodecFixture(t)
		user := testUser(t, true)
		token, session := f.stored(t, user, f.now)

		f.sessions.On("GetByTokenHash", mock.Anything, session.TokenHash).Return(session, nil).Once()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()

		ac, err := f.codec.Validate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, ac.User.ID)
		assert.Equal(t, session.ID, ac.Session.ID)
		assert.True(t, ac.Can(auth.CapabilityAdminSessions))
	})

	t.Run("malformed token never reaches the store", func(t *testing.T) {
		f := newCodecFixture(t)
		for _, token := range []string{"", "abc", "not-hex-" + string(make([]byte, 56))} {
			_, err := f.codec.Validate(ctx, token)
			errutil.AssertErrorCode(t, err, auth.CodeSessionInvalid)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newCodecFixture(t)
		token, _, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		f.sessions.On("GetByTokenHash", mock.Anything, auth.HashSessionToken(token)).Return(nil, auth.ErrNotFound).Once()

		_, err = f.codec.Validate(ctx, token)
		errutil.AssertErrorCode(t, err, auth.CodeSessionInvalid)
		assert.True(t, auth.IsTokenError(err))
	})

	t.Run("expired token", func(t *testing.T) {
		f := newCodecFixture(t)
		user := testUser(t, false)
		token, session := f.stored(t, user, f.now)
		session.ExpiresAt = f.now

		f.sessions.On("GetByTokenHash", mock.Anything, session.TokenHash).Return(session, nil).Once()

		_, err := f.codec.Validate(ctx, token)
		errutil.AssertErrorCode(t, err, auth.CodeSessionExpired)
		assert.True(t, auth.IsTokenError(err))
	})

	t.Run("deleted user invalidates session", func(t *testing.T) {
		f := newCodecFixture(t)
		user := testUser(t, false)
		token, session := f.stored(t, user, f.now)

		f.sessions.On("GetByTokenHash", mock.Anything, session.TokenHash).Return(session, nil).Once()
		f.users.On("GetByID", mock.Anything, user.ID).Return(nil, auth.ErrNotFound).Once()

		_, err := f.codec.Validate(ctx, token)
		errutil.AssertErrorCode(t, err, auth.CodeSessionInvalid)
	})

	t.Run("transient store error is retried once", func(t *testing.T) {
		f := newCodecFixture(t)
		user := testUser(t, false)
		token, session := f.stored(t, user, f.now)

		f.sessions.On("GetByTokenHash", mock.Anything, session.TokenHash).Return(nil, errDBDown).Once()
		f.sessions.On("GetByTokenHash", mock.Anything, session.TokenHash).Return(session, nil).Once()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()

		ac, err := f.codec.Validate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, ac.User.ID)
	})

	t.Run("persistent store error is unavailable", func(t *testing.T) {
		f := newCodecFixture(t)
		token, _, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		f.sessions.On("GetByTokenHash", mock.Anything, mock.Anything).Return(nil, errDBDown).Twice()

		_, err = f.codec.Validate(ctx, token)
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
		errutil.AssertErrorContext(t, err, "cause", errDBDown.Error())
		assert.False(t, auth.IsTokenError(err))
	})

	t.Run("deadline exceeded is unavailable without retry", func(t *testing.T) {
		f := newCodecFixture(t)
		token, _, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		dctx, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
		defer cancel()
		f.sessions.On("GetByTokenHash", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded).Maybe()

		_, err = f.codec.Validate(dctx, token)
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
		assert.LessOrEqual(t, len(f.sessions.Calls), 1)
	})

	t.Run("stale last seen is bumped", func(t *testing.T) {
		f := newCodecFixture(t)
		user := testUser(t, false)
		token, session := f.stored(t, user, f.now.Add(-10*time.Minute))

		f.sessions.On("GetByTokenHash", mock.Anything, session.TokenHash).Return(session, nil).Once()
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()
		f.sessions.On("UpdateLastSeen", ctx, session.ID, f.now).Return(errDBDown).Once()

		// A failed bump does not fail validation.
		_, err := f.codec.Validate(ctx, token)
		require.NoError(t, err)
	})
}

func TestSessionCodec_Revoke(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("missing session is not an error", func(t *testing.T) {
		f := newCodecFixture(t)
		f.sessions.On("Delete", ctx, id).Return(auth.ErrNotFound).Once()
		assert.NoError(t, f.codec.Revoke(ctx, id, auth.RevokeReasonLogout))
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		f := newCodecFixture(t)
		f.sessions.On("Delete", ctx, id).Return(errDBDown).Once()
		errutil.AssertErrorCode(t, f.codec.Revoke(ctx, id, auth.RevokeReasonLogout), auth.CodeStoreUnavailable)
	})
}

func TestSessionCodec_ListForUser(t *testing.T) {
	ctx := context.Background()
	f := newCodecFixture(t)
	user := testUser(t, false)
	_, live := f.stored(t, user, f.now)
	_, dead := f.stored(t, user, f.now)
	dead.ExpiresAt = f.now.Add(-time.Second)

	f.sessions.On("ListByUser", mock.Anything, user.ID).Return([]*auth.Session{live, dead}, nil).Once()

	list, err := f.codec.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, live.ID, list[0].ID)
}

func TestSessionCodec_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newCodecFixture(t)
	f.sessions.On("DeleteExpired", ctx, f.now).Return(int64(3), nil).Once()

	n, err := f.codec.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
