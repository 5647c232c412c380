// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/pixelvault/internal/auth"
	"github.com/pixelvault/pixelvault/internal/auth/memory"
	"github.com/pixelvault/pixelvault/internal/config"
)

// testRoot mounts sub under a root carrying the global flags, the way
// NewRootCmd does.
func testRoot(sub *cobra.Command) (*cobra.Command, *bytes.Buffer) {
	root := &cobra.Command{Use: "pixelvault", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().String("config", "", "config file path")
	config.RegisterFlags(root.PersistentFlags())
	root.AddCommand(sub)

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	return root, buf
}

func envWith(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func memoryStores(t *testing.T) (*Stores, *memory.Store) {
	t.Helper()
	mem := memory.New()
	return &Stores{
		Users:    mem.Users(),
		Sessions: mem.Sessions(),
		Ready:    func(context.Context) error { return nil },
	}, mem
}

func seedUser(t *testing.T, users auth.UserRepository, email, password string) *auth.User {
	t.Helper()
	hash, err := auth.NewArgon2idHasher().Hash(password)
	require.NoError(t, err)
	u, err := auth.NewUser(email, "", hash, false)
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func seedSession(t *testing.T, sessions auth.SessionRepository, user *auth.User, expiresIn time.Duration) {
	t.Helper()
	_, hash, err := auth.GenerateSessionToken()
	require.NoError(t, err)
	now := time.Now().UTC()
	created := now.Add(-2 * time.Hour)
	s, err := auth.NewSession(user.ID, hash, auth.AuthTypePassword, auth.LoginDetails{}, created, now.Add(expiresIn))
	require.NoError(t, err)
	require.NoError(t, sessions.Create(context.Background(), s))
}
