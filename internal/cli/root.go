// Package cli implements the session-server command line.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	appconfig "github.com/lewisedginton/whatsapp_session_manager/internal/config"
	pkgconfig "github.com/lewisedginton/whatsapp_session_manager/pkg/config"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

const serviceName = "whatsapp-session-manager"

// version is overridden at build time with -ldflags "-X .../internal/cli.version=...".
var version = "dev"

var (
	cfgFile  string
	logLevel string

	// set up before any subcommand runs
	log    logger.Logger
	logOut io.Writer = os.Stderr
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session-server",
		Short: "WhatsApp session manager",
		Long: "session-server supervises long-lived WhatsApp sessions, persists their credentials " +
			"and exposes an HTTP API to add, restart and delete them.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			logOut = cmd.ErrOrStderr()
			log = logger.NewLogger(logger.Config{
				Level:   logger.ParseLevel(level),
				Format:  "json",
				Service: serviceName,
				Output:  logOut,
			})
			return nil
		},
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a YAML configuration file (default: environment only)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		cmd.PrintErrln("Error:", err)
		return err
	}
	return nil
}

// loadConfig reads and validates the configuration, then replaces the
// bootstrap logger with one built from it.
func loadConfig() (*appconfig.AppConfig, error) {
	var cfg appconfig.AppConfig
	if err := pkgconfig.GetConfig(&cfg, cfgFile, false); err != nil {
		log.Error("Failed to load configuration", logger.ErrorField(err))
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log = logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
		Output:  logOut,
	})
	return &cfg, nil
}
