// ABOUTME: health command: checks GET /health on a running server
// ABOUTME: Derives the URL from the config unless --url is given

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/agent-server/internal/config"
)

func newHealthCmd(configPath *string) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that a running server is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				cfg, _, err := loadConfig(*configPath)
				if err != nil {
					return err
				}
				baseURL = serverURL(cfg.Server)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := checkHealth(ctx, http.DefaultClient, baseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "server base URL (default from config)")
	return cmd
}

// serverURL returns a URL a local client can reach. Wildcard hosts are
// replaced by loopback.
func serverURL(s config.ServerConfig) string {
	host := s.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}

func checkHealth(ctx context.Context, client *http.Client, baseURL string) error {
	url := strings.TrimRight(baseURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
