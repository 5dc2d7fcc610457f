// ABOUTME: serve command: prints the banner, builds the runtime and runs the server
// ABOUTME: --mode and --port override the config file for quick experiments

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/agent-server/internal/config"
	"github.com/2389/agent-server/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		mode string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.Server.Mode = mode
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			return runServe(cmd, cfg, path)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "server mode: runner, direct or comparison")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config, path string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	source := path
	if source == "" {
		source = "(built-in fallback agent)"
	}
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", source)
	green.Print("    ▶ ")
	fmt.Printf("Agent:     %s (%s)\n", cfg.Agent.Name, cfg.Agent.Model)
	green.Print("    ▶ ")
	fmt.Printf("Mode:      %s\n", cfg.Server.Mode)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.Addr())
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	if path == "" {
		logger.Warn("no configuration file found, using fallback agent", "agent", cfg.Agent.Name)
	}

	logger.Info("starting agent-server",
		"config", source,
		"mode", cfg.Server.Mode,
		"http_addr", cfg.Server.Addr(),
	)

	rt, err := server.NewRuntime(cfg, logger, server.WithConfigPath(path))
	if err != nil {
		return fmt.Errorf("creating runtime: %w", err)
	}
	defer rt.Close()

	srv, err := server.New(rt)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(cmd.Context())
}
