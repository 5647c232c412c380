package main

import (
	"github.com/spf13/cobra"

	"github.com/pixelvault/pixelvault/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Print the configuration that results from defaults, the config file,
flags and environment. Credentials in connection strings are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			return config.WriteYAML(cmd.OutOrStdout(), cfg.Redacted())
		},
	})

	return cmd
}
