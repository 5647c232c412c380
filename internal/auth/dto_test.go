// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pixelvault/pixelvault/internal/auth"
)

func TestCredentialsNeverLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("attempt",
		"credential", auth.Credential{Email: "a@x.com", Password: "hunter2-secret"},
		"signup", auth.SignUpDTO{Email: "b@x.com", Password: "signup-secret"},
		"change", auth.ChangePasswordDTO{Password: "old-secret", NewPassword: "new-secret"},
		"user", &auth.User{Email: "c@x.com", PasswordHash: "$argon2id$hash-secret"},
	)

	out := buf.String()
	for _, secret := range []string{"hunter2-secret", "signup-secret", "old-secret", "new-secret", "hash-secret"} {
		assert.NotContains(t, out, secret)
	}
	assert.Contains(t, out, "a@x.com")
}

func TestUser_PublicOmitsHash(t *testing.T) {
	u, err := auth.NewUser(" Someone@Example.COM ", " Someone ", "$argon2id$hash", false)
	assert.NoError(t, err)

	pub := u.Public()
	assert.Equal(t, "someone@example.com", pub.Email)
	assert.Equal(t, "Someone", pub.Name)
	assert.Equal(t, u.ID.String(), pub.ID)

	var nilUser *auth.User
	assert.Nil(t, nilUser.Public())
}

func TestErrorCode_NonOops(t *testing.T) {
	assert.Empty(t, auth.ErrorCode(auth.ErrNotFound))
	assert.Empty(t, auth.ErrorCode(nil))
	assert.False(t, auth.IsRetryable(auth.ErrNotFound))
	assert.Nil(t, auth.FieldErrors(auth.ErrNotFound))
}
