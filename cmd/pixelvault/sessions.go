// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pixelvault/pixelvault/internal/auth"
)

// NewSessionsCmd creates the sessions subcommand.
func NewSessionsCmd() *cobra.Command {
	return newSessionsCmd(nil)
}

func newSessionsCmd(deps *SessionsDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain stored sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions",
		Long: `Delete every session whose expiry has passed. Expired sessions are
already rejected at validation; purging reclaims their storage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPurge(cmd.Context(), cmd, deps)
		},
	})

	return cmd
}

func runPurge(ctx context.Context, cmd *cobra.Command, deps *SessionsDeps) error {
	if deps == nil {
		deps = &SessionsDeps{}
	}
	if deps.StoresFactory == nil {
		deps.StoresFactory = openStores
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd, deps.Getenv)
	if err != nil {
		return err
	}

	stores, err := deps.StoresFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	codec, err := auth.NewSessionCodec(stores.Sessions, stores.Users)
	if err != nil {
		return err
	}

	n, err := codec.PurgeExpired(ctx)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "expired sessions purged", "count", n)
	cmd.Printf("Purged %d expired session(s)\n", n)
	return nil
}
