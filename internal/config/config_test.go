// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML/TOML loading, env var expansion, overrides, defaults and validation

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "agent_config.yaml", `
agent:
  name: "my_yaml_agent"
  model: "gemini-2.0-flash"
  description: "Agent loaded from YAML"
  instruction: "Be brief."
  tools:
    - name: get_current_time
      enabled: true
    - name: web_search
      enabled: false

server:
  host: "127.0.0.1"
  port: 8060
  title: "My Agent"
  description: "Served from YAML"
  mode: "comparison"

sessions:
  max_sessions: 50
  idle_ttl: "30m"

model:
  timeout: "45s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.Name != "my_yaml_agent" {
		t.Errorf("Agent.Name = %q, want %q", cfg.Agent.Name, "my_yaml_agent")
	}
	if cfg.Agent.Instruction != "Be brief." {
		t.Errorf("Agent.Instruction = %q", cfg.Agent.Instruction)
	}
	if len(cfg.Agent.Tools) != 2 {
		t.Fatalf("len(Agent.Tools) = %d, want 2", len(cfg.Agent.Tools))
	}
	if !cfg.Agent.Tools[0].Enabled || cfg.Agent.Tools[1].Enabled {
		t.Errorf("tool enabled flags not parsed: %+v", cfg.Agent.Tools)
	}
	if cfg.Server.Addr() != "127.0.0.1:8060" {
		t.Errorf("Server.Addr() = %q, want %q", cfg.Server.Addr(), "127.0.0.1:8060")
	}
	if cfg.Server.Mode != ModeComparison {
		t.Errorf("Server.Mode = %q, want %q", cfg.Server.Mode, ModeComparison)
	}
	if cfg.Sessions.MaxSessions != 50 {
		t.Errorf("Sessions.MaxSessions = %d, want 50", cfg.Sessions.MaxSessions)
	}
	if cfg.Sessions.IdleTTL != 30*time.Minute {
		t.Errorf("Sessions.IdleTTL = %v, want 30m", cfg.Sessions.IdleTTL)
	}
	if cfg.Model.Timeout != 45*time.Second {
		t.Errorf("Model.Timeout = %v, want 45s", cfg.Model.Timeout)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	configPath := writeConfig(t, "agent_config.yaml", `
agent:
  name: "minimal"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.Model != "gemini-2.0-flash" {
		t.Errorf("Agent.Model = %q, want default", cfg.Agent.Model)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8000 {
		t.Errorf("Server = %s, want 0.0.0.0:8000", cfg.Server.Addr())
	}
	if cfg.Server.Title != "YAML Configured Agent" {
		t.Errorf("Server.Title = %q", cfg.Server.Title)
	}
	if cfg.Server.Mode != ModeRunner {
		t.Errorf("Server.Mode = %q, want %q", cfg.Server.Mode, ModeRunner)
	}
	if cfg.Server.ErrorStatus != ErrorStatusLegacy {
		t.Errorf("Server.ErrorStatus = %q, want %q", cfg.Server.ErrorStatus, ErrorStatusLegacy)
	}
	// app name follows the agent name
	if cfg.Sessions.AppName != "minimal" {
		t.Errorf("Sessions.AppName = %q, want %q", cfg.Sessions.AppName, "minimal")
	}
	if cfg.Sessions.UserID != "default_user" {
		t.Errorf("Sessions.UserID = %q", cfg.Sessions.UserID)
	}
	if cfg.Environment.APIKeyEnvVar != "GOOGLE_API_KEY" {
		t.Errorf("Environment.APIKeyEnvVar = %q", cfg.Environment.APIKeyEnvVar)
	}
	if cfg.Model.Timeout != 120*time.Second {
		t.Errorf("Model.Timeout = %v, want 120s", cfg.Model.Timeout)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "agent.toml", `
[agent]
name = "toml_agent"
model = "gpt-4o-mini"

[[agent.tools]]
name = "get_current_time"
enabled = true

[server]
port = 9001
mode = "direct"

[model]
provider = "openai"
api_base = "http://localhost:11434/v1"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.Name != "toml_agent" {
		t.Errorf("Agent.Name = %q", cfg.Agent.Name)
	}
	if len(cfg.Agent.Tools) != 1 || cfg.Agent.Tools[0].Name != "get_current_time" {
		t.Errorf("Agent.Tools = %+v", cfg.Agent.Tools)
	}
	if cfg.Server.Port != 9001 || cfg.Server.Mode != ModeDirect {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Model.Provider != ProviderOpenAI {
		t.Errorf("Model.Provider = %q", cfg.Model.Provider)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_AGENT_INSTRUCTION", "Expanded instruction")

	configPath := writeConfig(t, "agent_config.yaml", `
agent:
  name: "expanding"
  instruction: "${TEST_AGENT_INSTRUCTION}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.Instruction != "Expanded instruction" {
		t.Errorf("Agent.Instruction = %q, want %q", cfg.Agent.Instruction, "Expanded instruction")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGENT_SERVER_PORT", "9100")
	t.Setenv("AGENT_SERVER_MODE", "direct")
	t.Setenv("AGENT_SERVER_AGENT_MODEL", "override-model")
	t.Setenv("AGENT_SERVER_LOG_LEVEL", "warn")

	configPath := writeConfig(t, "agent_config.yaml", `
agent:
  name: "overridden"
  model: "file-model"
server:
  port: 8000
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Server.Mode != ModeDirect {
		t.Errorf("Server.Mode = %q, want %q", cfg.Server.Mode, ModeDirect)
	}
	if cfg.Agent.Model != "override-model" {
		t.Errorf("Agent.Model = %q, want %q", cfg.Agent.Model, "override-model")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Load() error = %v, want ErrConfigNotFound", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "agent_config.yaml", "agent: [unterminated")

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("error = %v, want parsing error", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "agent_config.yaml", `
sessions:
  idle_ttl: "forever"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "idle_ttl") {
		t.Errorf("error = %v, want mention of idle_ttl", err)
	}
}

func TestLoadOrFallback(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "agent_config.yaml")

	t.Run("implicit missing path falls back", func(t *testing.T) {
		cfg, found, err := LoadOrFallback(missing, false)
		if err != nil {
			t.Fatalf("LoadOrFallback() error = %v", err)
		}
		if found {
			t.Error("found = true, want false")
		}
		if cfg.Agent.Name != "fallback_agent" {
			t.Errorf("Agent.Name = %q, want fallback_agent", cfg.Agent.Name)
		}
		if cfg.Sessions.AppName != "fallback_agent" {
			t.Errorf("Sessions.AppName = %q", cfg.Sessions.AppName)
		}
	})

	t.Run("explicit missing path is fatal", func(t *testing.T) {
		_, _, err := LoadOrFallback(missing, true)
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("invalid file is never replaced by fallback", func(t *testing.T) {
		bad := writeConfig(t, "agent_config.yaml", "server:\n  mode: \"sideways\"\n")
		_, _, err := LoadOrFallback(bad, false)
		if err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestLocate(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("AGENT_SERVER_CONFIG", "/from/env.yaml")
		path, explicit := Locate("/from/flag.yaml")
		if path != "/from/flag.yaml" || !explicit {
			t.Errorf("Locate() = %q, %v", path, explicit)
		}
	})

	t.Run("env var next", func(t *testing.T) {
		t.Setenv("AGENT_SERVER_CONFIG", "/from/env.yaml")
		path, explicit := Locate("")
		if path != "/from/env.yaml" || !explicit {
			t.Errorf("Locate() = %q, %v", path, explicit)
		}
	})

	t.Run("xdg default", func(t *testing.T) {
		t.Setenv("AGENT_SERVER_CONFIG", "")
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)
		t.Chdir(t.TempDir())

		path, explicit := Locate("")
		want := filepath.Join(xdg, "agent-server", DefaultFileName)
		if path != want || explicit {
			t.Errorf("Locate() = %q, %v; want %q, false", path, explicit, want)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid default", func(c *Config) {}, ""},
		{"missing agent name", func(c *Config) { c.Agent.Name = "" }, "agent.name"},
		{"missing model", func(c *Config) { c.Agent.Model = "" }, "agent.model"},
		{"unnamed tool", func(c *Config) { c.Agent.Tools = []ToolConfig{{Enabled: true}} }, "agent.tools[0].name"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"unknown mode", func(c *Config) { c.Server.Mode = "sideways" }, "server.mode"},
		{"unknown error status", func(c *Config) { c.Server.ErrorStatus = "loud" }, "server.error_status"},
		{"unknown provider", func(c *Config) { c.Model.Provider = "oracle" }, "model.provider"},
		{"openai without base", func(c *Config) { c.Model.Provider = ProviderOpenAI }, "model.api_base"},
		{"negative capacity", func(c *Config) { c.Sessions.MaxSessions = -1 }, "max_sessions"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true }, "tailscale.hostname"},
		{"tailscale ignores port", func(c *Config) {
			c.Tailscale.Enabled = true
			c.Tailscale.Hostname = "agent"
			c.Server.Port = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Tailscale.AuthKey = "tskey-secret"

	red := cfg.Redacted()
	if red.Tailscale.AuthKey != "[redacted]" {
		t.Errorf("AuthKey = %q, want redacted", red.Tailscale.AuthKey)
	}
	if cfg.Tailscale.AuthKey != "tskey-secret" {
		t.Error("Redacted() modified the original config")
	}
}
