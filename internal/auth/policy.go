// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package auth

import (
	"unicode/utf8"

	"github.com/samber/oops"
)

// Password policy bounds.
const (
	DefaultPasswordMinLength = 8
	// MaxPasswordBytes bounds hashing cost for hostile input.
	MaxPasswordBytes = 1024
)

// PasswordPolicy decides whether a new password is acceptable.
type PasswordPolicy struct {
	MinLength int
}

// DefaultPasswordPolicy returns the policy used when none is configured.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: DefaultPasswordMinLength}
}

// Check returns an AUTH_WEAK_PASSWORD error when password is unacceptable.
func (p PasswordPolicy) Check(password string) error {
	minLen := p.MinLength
	if minLen < 1 {
		minLen = 1
	}

	switch {
	case password == "":
		return oops.Code(CodeWeakPassword).Errorf("password cannot be empty")
	case len(password) > MaxPasswordBytes:
		return oops.Code(CodeWeakPassword).
			With("max_bytes", MaxPasswordBytes).
			Errorf("password is too long")
	case utf8.RuneCountInString(password) < minLen:
		return oops.Code(CodeWeakPassword).
			With("min_length", minLen).
			Errorf("password must be at least %d characters", minLen)
	}
	return nil
}
