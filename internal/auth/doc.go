// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

// Package auth provides authentication and session primitives for PixelVault.
//
// # Domain Types
//
// User and Session should be created through their constructors:
//   - NewUser - normalizes the email and requires a password hash
//   - NewSession - validates owner, token hash, auth type and expiry
//
// Repository implementations receive pre-validated values and report
// missing rows with ErrNotFound.
//
// # Components
//
//   - SessionCodec - issues, validates and revokes opaque session tokens
//   - CredentialVerifier - checks passwords, changes them, bootstraps the admin
//   - Service - the user-facing operations composed from the two above
//
// Errors returned to callers carry an oops code (see the Code* constants).
// Transport layers map codes to status codes; they never inspect messages.
package auth
