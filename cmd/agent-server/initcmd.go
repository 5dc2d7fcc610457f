// ABOUTME: init command: writes agent_config.yaml from interactive prompts
// ABOUTME: Answers are collected into a config.Config and marshalled with yaml.v3

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/2389/agent-server/internal/agent"
	"github.com/2389/agent-server/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a config file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "agent-server configuration setup")
	fmt.Fprintln(out, "================================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", config.DefaultFileName)

	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	cfg := config.Default()

	fmt.Fprintln(out, "\n--- Agent ---")
	cfg.Agent.Name = prompt(reader, out, "Agent name", cfg.Agent.Name)
	cfg.Agent.Model = prompt(reader, out, "Model", cfg.Agent.Model)
	cfg.Agent.Description = prompt(reader, out, "Description", cfg.Agent.Description)
	cfg.Agent.Instruction = prompt(reader, out, "Instruction", cfg.Agent.Instruction)
	if yes(prompt(reader, out, "Enable the "+agent.ToolCurrentTime+" tool?", "yes")) {
		cfg.Agent.Tools = []config.ToolConfig{{Name: agent.ToolCurrentTime, Enabled: true}}
	}

	fmt.Fprintln(out, "\n--- Server ---")
	cfg.Server.Host = prompt(reader, out, "Host", cfg.Server.Host)
	port, err := strconv.Atoi(prompt(reader, out, "Port", strconv.Itoa(cfg.Server.Port)))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	cfg.Server.Port = port
	cfg.Server.Mode = prompt(reader, out, "Mode (runner/direct/comparison)", cfg.Server.Mode)

	fmt.Fprintln(out, "\n--- Model ---")
	cfg.Model.Provider = prompt(reader, out, "Provider (echo/openai)", cfg.Model.Provider)
	if cfg.Model.Provider == config.ProviderOpenAI {
		cfg.Model.APIBase = prompt(reader, out, "API base URL", "https://api.openai.com/v1")
		cfg.Environment.APIKeyEnvVar = prompt(reader, out, "API key environment variable", "OPENAI_API_KEY")
	}

	fmt.Fprintln(out, "\n--- Logging ---")
	cfg.Logging.Level = prompt(reader, out, "Log level (debug/info/warn/error)", cfg.Logging.Level)
	cfg.Logging.Format = prompt(reader, out, "Log format (text/json)", cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid answers: %w", err)
	}

	data, err := renderConfigYAML(cfg)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintf(out, "  agent-server serve --config %s\n", outputFile)
	return nil
}

// renderConfigYAML writes the sections a user is expected to edit.
func renderConfigYAML(cfg *config.Config) ([]byte, error) {
	doc := struct {
		Agent       config.AgentConfig       `yaml:"agent"`
		Server      config.ServerConfig      `yaml:"server"`
		Model       config.ModelConfig       `yaml:"model"`
		Environment config.EnvironmentConfig `yaml:"environment"`
		Logging     config.LoggingConfig     `yaml:"logging"`
	}{cfg.Agent, cfg.Server, cfg.Model, cfg.Environment, cfg.Logging}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	var b strings.Builder
	b.WriteString("# agent-server configuration\n")
	b.WriteString("# Generated by agent-server init\n\n")
	b.Write(body)
	return []byte(b.String()), nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func yes(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return a == "yes" || a == "y"
}
