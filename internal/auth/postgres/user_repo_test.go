// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/pixelvault/internal/auth"
	"github.com/pixelvault/pixelvault/internal/auth/postgres"
	"github.com/pixelvault/pixelvault/pkg/errutil"
)

var userCols = []string{"id", "email", "name", "password_hash", "is_admin", "created_at", "updated_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func sampleUser(t *testing.T, admin bool) *auth.User {
	t.Helper()
	user, err := auth.NewUser("Ada@Example.com", "Ada", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", admin)
	require.NoError(t, err)
	return user
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	user := sampleUser(t, true)

	tests := []struct {
		name    string
		execErr error
		wantIs  error
		wantErr string
	}{
		{name: "stored"},
		{
			name:    "second admin",
			execErr: &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_single_admin"},
			wantIs:  auth.ErrAdminExists,
		},
		{
			name:    "email taken",
			execErr: &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_lower_key"},
			wantIs:  auth.ErrEmailTaken,
		},
		{
			name:    "connection lost",
			execErr: errors.New("conn closed"),
			wantErr: "USER_CREATE_FAILED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			exp := mock.ExpectExec("INSERT INTO users").
				WithArgs(user.ID.String(), "ada@example.com", "Ada", user.PasswordHash, true, user.CreatedAt, user.UpdatedAt)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err := postgres.NewUserRepository(mock).Create(ctx, user)
			switch {
			case tt.wantIs != nil:
				assert.ErrorIs(t, err, tt.wantIs)
			case tt.wantErr != "":
				errutil.AssertErrorCode(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id := ulid.Make()

	t.Run("found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("SELECT .+ FROM users WHERE id = \\$1").
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow(id.String(), "ada@example.com", "Ada", "hash", false, now, now))

		user, err := postgres.NewUserRepository(mock).GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "ada@example.com", user.Email)
		assert.False(t, user.IsAdmin)
		assert.Equal(t, now, user.CreatedAt)
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("SELECT .+ FROM users WHERE id = \\$1").
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(userCols))

		_, err := postgres.NewUserRepository(mock).GetByID(ctx, id)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("SELECT .+ FROM users WHERE id = \\$1").
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow("not-a-ulid", "ada@example.com", "Ada", "hash", false, now, now))

		_, err := postgres.NewUserRepository(mock).GetByID(ctx, id)
		errutil.AssertErrorCode(t, err, "USER_INVALID_ID")
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	id := ulid.Make()

	t.Run("matches case-insensitively", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("WHERE lower\\(email\\) = lower\\(\\$1\\)").
			WithArgs("ada@example.com").
			WillReturnRows(pgxmock.NewRows(userCols).
				AddRow(id.String(), "ada@example.com", "Ada", "hash", true, now, now))

		user, err := postgres.NewUserRepository(mock).GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.True(t, user.IsAdmin)
	})

	t.Run("query fails", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery("WHERE lower\\(email\\)").
			WithArgs("ada@example.com").
			WillReturnError(errors.New("timeout"))

		_, err := postgres.NewUserRepository(mock).GetByEmail(ctx, "ada@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	at := time.Now().UTC()

	t.Run("updated", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec("UPDATE users SET password_hash").
			WithArgs(id.String(), "new-hash", at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, postgres.NewUserRepository(mock).UpdatePassword(ctx, id, "new-hash", at))
	})

	t.Run("no such user", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec("UPDATE users SET password_hash").
			WithArgs(id.String(), "new-hash", at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := postgres.NewUserRepository(mock).UpdatePassword(ctx, id, "new-hash", at)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_AdminExists(t *testing.T) {
	ctx := context.Background()

	for _, exists := range []bool{true, false} {
		mock := newMockPool(t)
		mock.ExpectQuery("SELECT EXISTS").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))

		got, err := postgres.NewUserRepository(mock).AdminExists(ctx)
		require.NoError(t, err)
		assert.Equal(t, exists, got)
	}

	mock := newMockPool(t)
	mock.ExpectQuery("SELECT EXISTS").WillReturnError(errors.New("down"))
	_, err := postgres.NewUserRepository(mock).AdminExists(ctx)
	errutil.AssertErrorCode(t, err, "USER_ADMIN_EXISTS_FAILED")
}
