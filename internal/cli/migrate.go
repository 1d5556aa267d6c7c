package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lewisedginton/whatsapp_session_manager/internal/credentials"
	"github.com/lewisedginton/whatsapp_session_manager/internal/server"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres credential store migrations",
		Long: "migrate applies pending auth_data schema migrations and exits. Use it when " +
			"CREDENTIALS_AUTO_MIGRATE is disabled for the server.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			pool, err := server.NewPostgresPool(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			mm := credentials.NewMigrationManager(pool, log)
			defer func() { _ = mm.Close() }()

			if err := mm.RunMigrations(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}
