package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lewisedginton/whatsapp_session_manager/internal/server"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session server (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.LogConfig(log)

	srv, err := server.New(cmd.Context(), cfg, log)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField(err))
		return err
	}
	return srv.Run(cmd.Context())
}
