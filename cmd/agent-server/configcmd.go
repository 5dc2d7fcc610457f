// ABOUTME: config command: prints the effective configuration with secrets masked
// ABOUTME: Output is YAML by default or TOML with --format toml

package main

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/2389/agent-server/internal/config"
)

func newConfigCmd(configPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, ${VAR} expansion and
AGENT_SERVER_* environment overrides have been applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "# no config file found, showing the fallback agent")
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "# loaded from %s\n", path)
			}
			return writeConfig(cmd.OutOrStdout(), cfg.Redacted(), format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: yaml or toml")
	return cmd
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	case "toml":
		if err := toml.NewEncoder(w).Encode(cfg); err != nil {
			return fmt.Errorf("encoding TOML: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want yaml or toml)", format)
	}
}
