// ABOUTME: Entry point for agent-server
// ABOUTME: Cobra root command wiring serve, init, health, config, chat and version

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/agent-server/internal/config"
)

// Version is set at build time.
var version = "dev"

const banner = `
                        _
  __ _  __ _  ___ _ __ | |_      ___  ___ _ ____   _____ _ __
 / _' |/ _' |/ _ \ '_ \| __|____/ __|/ _ \ '__\ \ / / _ \ '__|
| (_| | (_| |  __/ | | | ||_____\__ \  __/ |   \ V /  __/ |
 \__,_|\__, |\___|_| |_|\__|    |___/\___|_|    \_/ \___|_|
       |___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "agent-server",
		Short: "Serve a configured LLM agent over HTTP",
		Long: `agent-server loads an agent definition from agent_config.yaml and exposes it
over HTTP, either statelessly or with per-conversation memory.

Config lookup order: --config, AGENT_SERVER_CONFIG, ./agent_config.yaml,
$XDG_CONFIG_HOME/agent-server/agent_config.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file (.yaml or .toml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newInitCmd(),
		newHealthCmd(&configPath),
		newConfigCmd(&configPath),
		newChatCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves and loads the config. path is "" when the built-in
// fallback agent is in use.
func loadConfig(flagPath string) (cfg *config.Config, path string, err error) {
	located, explicit := config.Locate(flagPath)
	cfg, found, err := config.LoadOrFallback(located, explicit)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	if !found {
		return cfg, "", nil
	}
	return cfg, located, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agent-server %s (%s)\n", version, runtime.Version())
		},
	}
}
