// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package memory

import "github.com/samber/oops"

var errDuplicateToken = oops.Code("SESSION_DUPLICATE_TOKEN").Errorf("session token hash already exists")
