package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"c"},
		Short:   "Configuration operations",
	}

	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.Info("Validating configuration")

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			log.Info("Configuration validation passed")
			cfg.LogConfig(log)
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
}
