// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/pixelvault/internal/auth"
	"github.com/pixelvault/pixelvault/internal/auth/postgres"
)

func resetTables(ctx context.Context, t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(ctx, `TRUNCATE users CASCADE`)
	require.NoError(t, err)
}

func storedUser(ctx context.Context, t *testing.T, email string, admin bool) *auth.User {
	t.Helper()
	user, err := auth.NewUser(email, "Test", "hash", admin)
	require.NoError(t, err)
	require.NoError(t, postgres.NewUserRepository(testPool).Create(ctx, user))
	return user
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	resetTables(ctx, t)
	repo := postgres.NewUserRepository(testPool)

	user := storedUser(ctx, t, "Grace@Example.com", false)

	got, err := repo.GetByEmail(ctx, "GRACE@example.COM")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	dup, err := auth.NewUser("grace@example.com", "Other", "hash", false)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, dup), auth.ErrEmailTaken)

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "hash-2", time.Now().UTC()))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", got.PasswordHash)

	exists, err := repo.AdminExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUserRepository_SingleAdminUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	resetTables(ctx, t)
	repo := postgres.NewUserRepository(testPool)

	const attempts = 8
	var (
		wg      sync.WaitGroup
		created atomic.Int32
		refused atomic.Int32
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := auth.NewUser(ulid.Make().String()+"@example.com", "Admin", "hash", true)
			if err != nil {
				return
			}
			switch err := repo.Create(ctx, user); {
			case err == nil:
				created.Add(1)
			case assert.ErrorIs(t, err, auth.ErrAdminExists):
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(attempts-1), refused.Load())
}

func TestSessionRepository_Integration(t *testing.T) {
	ctx := context.Background()
	resetTables(ctx, t)
	repo := postgres.NewSessionRepository(testPool)
	user := storedUser(ctx, t, "linus@example.com", false)

	now := time.Now().UTC().Truncate(time.Microsecond)
	issue := func(expiresAt time.Time) *auth.Session {
		_, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		s, err := auth.NewSession(user.ID, hash, auth.AuthTypePassword, auth.LoginDetails{UserAgent: "test"}, now, expiresAt)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, s))
		return s
	}

	live := issue(now.Add(time.Hour))
	other := issue(now.Add(time.Hour))
	expired := issue(now.Add(time.Millisecond))

	got, err := repo.GetByTokenHash(ctx, live.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)
	assert.True(t, live.ExpiresAt.Equal(got.ExpiresAt))

	list, err := repo.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	n, err := repo.DeleteExpired(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetByID(ctx, expired.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	n, err = repo.DeleteByUser(ctx, user.ID, &live.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetByID(ctx, other.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, live.ID))
	assert.ErrorIs(t, repo.Delete(ctx, live.ID), auth.ErrNotFound)
}

func TestSessionRepository_CascadeOnUserDelete(t *testing.T) {
	ctx := context.Background()
	resetTables(ctx, t)
	repo := postgres.NewSessionRepository(testPool)
	user := storedUser(ctx, t, "cascade@example.com", false)

	_, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	now := time.Now().UTC()
	s, err := auth.NewSession(user.ID, hash, auth.AuthTypePassword, auth.LoginDetails{}, now, now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, s))

	_, err = testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID.String())
	require.NoError(t, err)

	_, err = repo.GetByTokenHash(ctx, hash)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSessionRepository_CreateForUnknownUser(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewSessionRepository(testPool)

	_, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	now := time.Now().UTC()
	s, err := auth.NewSession(ulid.Make(), hash, auth.AuthTypePassword, auth.LoginDetails{}, now, now.Add(time.Hour))
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Create(ctx, s), auth.ErrNotFound)
}
