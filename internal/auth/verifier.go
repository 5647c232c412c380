// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// dummyPasswordHash is verified when the email is unknown so that a miss
// costs the same argon2id work as a wrong password. It matches no password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// CredentialVerifier checks passwords against stored hashes.
type CredentialVerifier struct {
	users  UserRepository
	hasher PasswordHasher
	policy PasswordPolicy
	logger *slog.Logger
}

// NewCredentialVerifier creates a CredentialVerifier.
func NewCredentialVerifier(users UserRepository, hasher PasswordHasher, policy PasswordPolicy, logger *slog.Logger) (*CredentialVerifier, error) {
	if users == nil {
		return nil, oops.Code("VERIFIER_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("VERIFIER_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVerifier{users: users, hasher: hasher, policy: policy, logger: logger}, nil
}

// VerifyLogin returns the user matching cred. Unknown email and wrong
// password fail identically with AUTH_INVALID_CREDENTIALS.
func (v *CredentialVerifier) VerifyLogin(ctx context.Context, cred Credential) (*User, error) {
	if err := cred.Validate(); err != nil {
		return nil, errMalformedInput(err)
	}

	user, lookupErr := v.users.GetByEmail(ctx, NormalizeEmail(cred.Email))

	targetHash := dummyPasswordHash
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, errStoreUnavailable("get user by email", lookupErr)
	}

	// Oversized input is rejected without hashing. The cap is far above any
	// accepted password, so this never distinguishes existing accounts.
	valid := false
	if len(cred.Password) <= MaxPasswordBytes {
		var verifyErr error
		valid, verifyErr = v.hasher.Verify(cred.Password, targetHash)
		if verifyErr != nil && userExists {
			v.logger.WarnContext(ctx, "stored password hash is unreadable",
				"user_id", user.ID.String(),
				"error", verifyErr)
		}
	}

	if !userExists || !valid {
		return nil, errInvalidCredentials()
	}

	v.upgradeHash(ctx, user, cred.Password)
	return user, nil
}

// VerifyAndChangePassword re-checks the current password, applies the
// policy to the new one and stores its hash.
func (v *CredentialVerifier) VerifyAndChangePassword(ctx context.Context, user *User, dto ChangePasswordDTO) (*User, error) {
	if user == nil {
		return nil, errUnauthenticated()
	}
	if err := dto.Validate(); err != nil {
		return nil, errMalformedInput(err)
	}

	valid, err := v.hasher.Verify(dto.Password, user.PasswordHash)
	if err != nil || !valid {
		return nil, errInvalidCredentials()
	}

	if err := v.policy.Check(dto.NewPassword); err != nil {
		return nil, err
	}

	hash, err := v.hasher.Hash(dto.NewPassword)
	if err != nil {
		return nil, oops.Code("AUTH_HASH_FAILED").With("user_id", user.ID.String()).Wrap(err)
	}

	now := time.Now().UTC()
	if err := v.users.UpdatePassword(ctx, user.ID, hash, now); err != nil {
		return nil, errStoreUnavailable("update password", err)
	}

	updated := *user
	updated.PasswordHash = hash
	updated.UpdatedAt = now
	return &updated, nil
}

// BootstrapAdmin creates the first admin. It fails with AUTH_ADMIN_EXISTS
// once any admin is stored, including when a concurrent call won the race.
func (v *CredentialVerifier) BootstrapAdmin(ctx context.Context, dto SignUpDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, errMalformedInput(err)
	}

	exists, err := v.users.AdminExists(ctx)
	if err != nil {
		return nil, errStoreUnavailable("check admin exists", err)
	}
	if exists {
		return nil, errAdminExists()
	}

	if err := v.policy.Check(dto.Password); err != nil {
		return nil, err
	}

	hash, err := v.hasher.Hash(dto.Password)
	if err != nil {
		return nil, oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	user, err := NewUser(dto.Email, dto.Name, hash, true)
	if err != nil {
		return nil, errMalformedInput(err)
	}

	if err := v.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrAdminExists):
			return nil, errAdminExists()
		case errors.Is(err, ErrEmailTaken):
			return nil, oops.Code(CodeEmailTaken).Errorf("email already registered")
		default:
			return nil, errStoreUnavailable("create user", err)
		}
	}
	return user, nil
}

// upgradeHash re-hashes legacy passwords after a successful login.
// Failures are logged and otherwise ignored.
func (v *CredentialVerifier) upgradeHash(ctx context.Context, user *User, password string) {
	if !v.hasher.NeedsUpgrade(user.PasswordHash) {
		return
	}
	hash, err := v.hasher.Hash(password)
	if err != nil {
		v.logger.WarnContext(ctx, "password hash upgrade failed", "user_id", user.ID.String(), "error", err)
		return
	}
	if err := v.users.UpdatePassword(ctx, user.ID, hash, time.Now().UTC()); err != nil {
		v.logger.WarnContext(ctx, "password hash upgrade not stored", "user_id", user.ID.String(), "error", err)
		return
	}
	user.PasswordHash = hash
}

func errAdminExists() error {
	return oops.Code(CodeAdminExists).Errorf("an admin account already exists")
}
