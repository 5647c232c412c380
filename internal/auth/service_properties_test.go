// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/pixelvault/internal/auth"
	"github.com/pixelvault/pixelvault/internal/auth/memory"
	"github.com/pixelvault/pixelvault/pkg/errutil"
)

type memoryHarness struct {
	svc   *auth.Service
	store *memory.Store
	codec *auth.SessionCodec
}

func newMemoryHarness(t *testing.T, opts ...auth.ServiceOption) *memoryHarness {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.DiscardHandler)

	verifier, err := auth.NewCredentialVerifier(store.Users(), auth.NewArgon2idHasher(), auth.DefaultPasswordPolicy(), logger)
	require.NoError(t, err)
	codec, err := auth.NewSessionCodec(store.Sessions(), store.Users(), auth.WithCodecLogger(logger))
	require.NoError(t, err)
	svc, err := auth.NewService(verifier, codec, append([]auth.ServiceOption{auth.WithLogger(logger)}, opts...)...)
	require.NoError(t, err)

	return &memoryHarness{svc: svc, store: store, codec: codec}
}

// seedUser stores a regular user with the given password.
func (h *memoryHarness) seedUser(t *testing.T, email, password string) *auth.User {
	t.Helper()
	hash, err := auth.NewArgon2idHasher().Hash(password)
	require.NoError(t, err)
	u, err := auth.NewUser(email, "Seeded", hash, false)
	require.NoError(t, err)
	require.NoError(t, h.store.Users().Create(context.Background(), u))
	return u
}

func TestService_LoginThenValidateResolvesSameUser(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness(t)

	for _, email := range []string{"a@x.com", "b@x.com", "MiXeD@x.com"} {
		user := h.seedUser(t, email, "correct-password")

		res, err := h.svc.Login(ctx, auth.Credential{Email: email, Password: "correct-password"}, auth.LoginDetails{})
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), res.UserID)
		assert.False(t, res.IsAdmin)
		assert.GreaterOrEqual(t, len(res.AccessToken), 64)

		ac, err := h.codec.Validate(ctx, res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, ac.User.ID)
	}
}

func TestService_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness(t)
	h.seedUser(t, "known@x.com", "correct-password")

	_, wrongErr := h.svc.Login(ctx, auth.Credential{Email: "known@x.com", Password: "wrong-password"}, auth.LoginDetails{})
	_, unknownErr := h.svc.Login(ctx, auth.Credential{Email: "unknown@x.com", Password: "wrong-password"}, auth.LoginDetails{})

	errutil.AssertErrorCode(t, wrongErr, auth.CodeInvalidCredentials)
	errutil.AssertErrorCode(t, unknownErr, auth.CodeInvalidCredentials)
	assert.Equal(t, wrongErr.Error(), unknownErr.Error())
}

func TestService_InvalidCredentialLatencyIsComparable(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	ctx := context.Background()
	h := newMemoryHarness(t)
	h.seedUser(t, "known@x.com", "correct-password")

	measure := func(email string) time.Duration {
		const rounds = 5
		var total time.Duration
		for range rounds {
			start := time.Now()
			_, _ = h.svc.Login(ctx, auth.Credential{Email: email, Password: "wrong-password"}, auth.LoginDetails{})
			total += time.Since(start)
		}
		return total / rounds
	}

	known := measure("known@x.com")
	unknown := measure("unknown@x.com")

	// Both paths run one argon2id derivation; allow generous scheduler noise.
	ratio := float64(unknown) / float64(known)
	assert.Greater(t, ratio, 0.33, "unknown=%s known=%s", unknown, known)
	assert.Less(t, ratio, 3.0, "unknown=%s known=%s", unknown, known)
}

func TestService_LogoutThenValidateFails(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness(t)
	h.seedUser(t, "a@x.com", "correct-password")

	res, err := h.svc.Login(ctx, auth.Credential{Email: "a@x.com", Password: "correct-password"}, auth.LoginDetails{})
	require.NoError(t, err)
	ac, err := h.codec.Validate(ctx, res.AccessToken)
	require.NoError(t, err)

	out, err := h.svc.Logout(ctx, ac, auth.AuthTypePassword)
	require.NoError(t, err)
	assert.True(t, out.Success)

	_, err = h.codec.Validate(ctx, res.AccessToken)
	errutil.AssertErrorCode(t, err, auth.CodeSessionInvalid)
	assert.True(t, auth.IsTokenError(err))

	// Idempotent: the same context logs out again without error.
	out, err = h.svc.Logout(ctx, ac, auth.AuthTypePassword)
	require.NoError(t, err)
	assert.True(t, out.Success)
}

func TestService_LogoutLeavesOtherSessionsAlone(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness(t)
	h.seedUser(t, "a@x.com", "correct-password")
	cred := auth.Credential{Email: "a@x.com", Password: "correct-password"}

	laptop, err := h.svc.Login(ctx, cred, auth.LoginDetails{UserAgent: "laptop"})
	require.NoError(t, err)
	phone, err := h.svc.Login(ctx, cred, auth.LoginDetails{UserAgent: "phone"})
	require.NoError(t, err)
	assert.NotEqual(t, laptop.AccessToken, phone.AccessToken)

	ac, err := h.codec.Validate(ctx, laptop.AccessToken)
	require.NoError(t, err)

	_, err = h.svc.Logout(ctx, ac, auth.AuthTypePassword)
	require.NoError(t, err)

	_, err = h.codec.Validate(ctx, laptop.AccessToken)
	require.Error(t, err)
	_, err = h.codec.Validate(ctx, phone.AccessToken)
	require.NoError(t, err)
}

func TestService_LogoutRevokesWhateverAuthTypeIsClaimed(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness(t)
	h.seedUser(t, "a@x.com", "correct-password")

	res, err := h.svc.Login(ctx, auth.Credential{Email: "a@x.com", Password: "correct-password"}, auth.LoginDetails{})
	require.NoError(t, err)
	ac, err := h.codec.Validate(ctx, res.AccessToken)
	require.NoError(t, err)

	for _, claimed := range []auth.AuthType{auth.AuthTypeOAuth, ""} {
		out, err := h.svc.Logout(ctx, ac, claimed)
		require.NoError(t, err)
		assert.True(t, out.Success)
	}

	_, err = h.codec.Validate(ctx, res.AccessToken)
	errutil.AssertErrorCode(t, err, auth.CodeSessionInvalid)
}

func TestService_ChangePasswordRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness(t)
	h.seedUser(t, "a@x.com", "old-password")

	res, err := h.svc.Login(ctx, auth.Credential{Email: "a@x.com", Password: "old-password"}, auth.LoginDetails{})
	require.NoError(t, err)
	ac, err := h.codec.Validate(ctx, res.AccessToken)
	require.NoError(t, err)

	pub, err := h.svc.ChangePassword(ctx, ac, auth.ChangePasswordDTO{Password: "old-password", NewPassword: "new-password"})
	require.NoError(t, err)
	assert.Equal(t, ac.User.ID.String(), pub.ID)

	_, err = h.svc.Login(ctx, auth.Credential{Email: "a@x.com", Password: "new-password"}, auth.LoginDetails{})
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, auth.Credential{Email: "a@x.com", Password: "old-password"}, auth.LoginDetails{})
	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
}

func TestService_ChangePasswordCanInvalidateOtherSessions(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness(t)
	h.seedUser(t, "a@x.com", "old-password")
	cred := auth.Credential{Email: "a@x.com", Password: "old-password"}

	current, err := h.svc.Login(ctx, cred, auth.LoginDetails{})
	require.NoError(t, err)
	other, err := h.svc.Login(ctx, cred, auth.LoginDetails{})
	require.NoError(t, err)

	ac, err := h.codec.Validate(ctx, current.AccessToken)
	require.NoError(t, err)
	_, err = h.svc.ChangePassword(ctx, ac, auth.ChangePasswordDTO{
		Password:           "old-password",
		NewPassword:        "new-password",
		InvalidateSessions: true,
	})
	require.NoError(t, err)

	_, err = h.codec.Validate(ctx, current.AccessToken)
	require.NoError(t, err)
	_, err = h.codec.Validate(ctx, other.AccessToken)
	errutil.AssertErrorCode(t, err, auth.CodeSessionInvalid)
}

func TestService_AdminSignUpSucceedsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness(t)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = h.svc.AdminSignUp(ctx, auth.SignUpDTO{
				Email:    "admin" + string(rune('a'+i)) + "@x.com",
				Password: "admin-password",
				Name:     "Admin",
			})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		errutil.AssertErrorCode(t, err, auth.CodeAdminExists)
	}
	assert.Equal(t, 1, succeeded)

	_, err := h.svc.AdminSignUp(ctx, auth.SignUpDTO{Email: "late@x.com", Password: "admin-password"})
	errutil.AssertErrorCode(t, err, auth.CodeAdminExists)
}

func TestService_AdminSignUpReturnsPublicView(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness(t)

	pub, err := h.svc.AdminSignUp(ctx, auth.SignUpDTO{Email: "Root@X.com", Password: "admin-password", Name: "Root"})
	require.NoError(t, err)
	assert.Equal(t, "root@x.com", pub.Email)
	assert.True(t, pub.IsAdmin)

	res, err := h.svc.Login(ctx, auth.Credential{Email: "root@x.com", Password: "admin-password"}, auth.LoginDetails{})
	require.NoError(t, err)
	assert.True(t, res.IsAdmin)
	assert.Equal(t, pub.ID, res.UserID)
}

func TestService_SessionManagement(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHarness(t)
	alice := h.seedUser(t, "alice@x.com", "alice-password")
	h.seedUser(t, "bob@x.com", "bob-password")

	a1, err := h.svc.Login(ctx, auth.Credential{Email: "alice@x.com", Password: "alice-password"}, auth.LoginDetails{UserAgent: "one"})
	require.NoError(t, err)
	a2, err := h.svc.Login(ctx, auth.Credential{Email: "alice@x.com", Password: "alice-password"}, auth.LoginDetails{UserAgent: "two"})
	require.NoError(t, err)
	b1, err := h.svc.Login(ctx, auth.Credential{Email: "bob@x.com", Password: "bob-password"}, auth.LoginDetails{})
	require.NoError(t, err)

	aliceCtx, err := h.codec.Validate(ctx, a1.AccessToken)
	require.NoError(t, err)
	bobCtx, err := h.codec.Validate(ctx, b1.AccessToken)
	require.NoError(t, err)

	list, err := h.svc.ListSessions(ctx, aliceCtx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	current := 0
	for _, s := range list {
		if s.Current {
			current++
			assert.Equal(t, aliceCtx.Session.ID.String(), s.ID)
		}
	}
	assert.Equal(t, 1, current)

	a2Ctx, err := h.codec.Validate(ctx, a2.AccessToken)
	require.NoError(t, err)

	t.Run("cannot revoke someone else's session", func(t *testing.T) {
		err := h.svc.RevokeSession(ctx, bobCtx, a2Ctx.Session.ID)
		errutil.AssertErrorCode(t, err, auth.CodeSessionNotFound)
	})

	t.Run("revoke own session", func(t *testing.T) {
		require.NoError(t, h.svc.RevokeSession(ctx, aliceCtx, a2Ctx.Session.ID))
		_, err := h.codec.Validate(ctx, a2.AccessToken)
		require.Error(t, err)
	})

	t.Run("revoke every session of a user", func(t *testing.T) {
		n, err := h.svc.RevokeUserSessions(ctx, bobCtx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = h.codec.Validate(ctx, a1.AccessToken)
		require.Error(t, err)
	})
}
