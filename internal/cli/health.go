package cli

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// newHealthCmd probes a running server's health endpoint. Container
// healthchecks call it so the image needs no curl.
func newHealthCmd() *cobra.Command {
	var (
		url       string
		readiness bool
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the health endpoint of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if url == "" {
				path := cfg.Health.LivenessPath
				if readiness {
					path = cfg.Health.ReadinessPath
				}
				url = fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, path)
			}

			timeout := cfg.Health.Timeout
			if timeout <= 0 {
				timeout = 5 * time.Second
			}
			client := &http.Client{Timeout: timeout}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("invalid health url: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("health probe failed: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: %s: %s", resp.Status, body)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "health URL to probe (default: liveness path on HEALTH_PORT)")
	cmd.Flags().BoolVar(&readiness, "ready", false, "probe the readiness path instead of liveness")

	return cmd
}
