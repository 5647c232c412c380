// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package errutil_test

import (
	"fmt"
	"testing"

	"github.com/samber/oops"

	"github.com/pixelvault/pixelvault/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("SESSION_INVALID").Errorf("invalid session token")
	errutil.AssertErrorCode(t, err, "SESSION_INVALID")
}

func TestAssertErrorCode_WrappedOops(t *testing.T) {
	inner := oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	errutil.AssertErrorCode(t, fmt.Errorf("validate: %w", inner), "SESSION_EXPIRED")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("session_id", "01J0000000000000000000000").Errorf("session not found")
	errutil.AssertErrorContext(t, err, "session_id", "01J0000000000000000000000")
}
