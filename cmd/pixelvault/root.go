package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pixelvault/pixelvault/internal/config"
	"github.com/pixelvault/pixelvault/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the PixelVault CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pixelvault",
		Short: "PixelVault - authentication and session service",
		Long: `PixelVault authenticates users with email and password, issues opaque
session tokens and guards the HTTP API with them.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/pixelvault/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig resolves the configuration for cmd from defaults, the config
// file and the command-line flags. Without --config, the XDG config file is
// used when present.
func loadConfig(cmd *cobra.Command, getenv func(string) string) (*config.Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path = configFile
	}
	if path == "" {
		if found, ok := xdg.FindConfigFile(getenv); ok {
			path = found
		}
	}
	return config.Load(path, cmd.Flags(), getenv)
}
