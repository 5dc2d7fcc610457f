// ABOUTME: Configuration loading and parsing for agent-server
// ABOUTME: Supports YAML and TOML files with environment variable expansion, env overrides and duration parsing

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Server modes select which set of endpoints is exposed.
const (
	ModeRunner     = "runner"
	ModeDirect     = "direct"
	ModeComparison = "comparison"
)

// Error status policies for the HTTP boundary.
const (
	ErrorStatusLegacy = "legacy"
	ErrorStatusStrict = "strict"
)

// Model providers.
const (
	ProviderEcho   = "echo"
	ProviderOpenAI = "openai"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "agent_config.yaml"

// EnvPrefix prefixes every environment override (AGENT_SERVER_PORT, ...).
const EnvPrefix = "AGENT_SERVER_"

// ErrConfigNotFound is returned when an explicitly requested config file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Config represents the complete agent-server configuration
type Config struct {
	Agent       AgentConfig       `yaml:"agent" toml:"agent"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Model       ModelConfig       `yaml:"model" toml:"model"`
	Sessions    SessionsConfig    `yaml:"sessions" toml:"sessions"`
	Environment EnvironmentConfig `yaml:"environment" toml:"environment"`
	Tailscale   TailscaleConfig   `yaml:"tailscale" toml:"tailscale"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// AgentConfig describes the agent exposed by the server
type AgentConfig struct {
	Name        string       `yaml:"name" toml:"name" env:"AGENT_NAME"`
	Model       string       `yaml:"model" toml:"model" env:"AGENT_MODEL"`
	Description string       `yaml:"description" toml:"description"`
	Instruction string       `yaml:"instruction" toml:"instruction" env:"AGENT_INSTRUCTION"`
	Tools       []ToolConfig `yaml:"tools" toml:"tools"`
}

// ToolConfig enables or disables a builtin tool by name
type ToolConfig struct {
	Name    string `yaml:"name" toml:"name"`
	Enabled bool   `yaml:"enabled" toml:"enabled"`
}

// ServerConfig holds listener and presentation settings
type ServerConfig struct {
	Host        string `yaml:"host" toml:"host" env:"HOST"`
	Port        int    `yaml:"port" toml:"port" env:"PORT"`
	Title       string `yaml:"title" toml:"title"`
	Description string `yaml:"description" toml:"description"`
	Mode        string `yaml:"mode" toml:"mode" env:"MODE"`
	ErrorStatus string `yaml:"error_status" toml:"error_status" env:"ERROR_STATUS"`
	GRPCAddr    string `yaml:"grpc_addr" toml:"grpc_addr" env:"GRPC_ADDR"` // optional gRPC health endpoint
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ModelConfig selects and configures the model backend
type ModelConfig struct {
	Provider  string        `yaml:"provider" toml:"provider" env:"MODEL_PROVIDER"`
	APIBase   string        `yaml:"api_base" toml:"api_base" env:"MODEL_API_BASE"`
	MaxTokens int           `yaml:"max_tokens" toml:"max_tokens"`
	Timeout   time.Duration `yaml:"-" toml:"-"`

	// Raw string value for file unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout" env:"MODEL_TIMEOUT"`
}

// SessionsConfig controls the in-memory session store
type SessionsConfig struct {
	AppName     string        `yaml:"app_name" toml:"app_name"`
	UserID      string        `yaml:"user_id" toml:"user_id"`
	MaxSessions int           `yaml:"max_sessions" toml:"max_sessions" env:"MAX_SESSIONS"` // 0 = unbounded
	IdleTTL     time.Duration `yaml:"-" toml:"-"`

	IdleTTLRaw string `yaml:"idle_ttl" toml:"idle_ttl" env:"SESSION_IDLE_TTL"`
}

// EnvironmentConfig names environment variables the server depends on
type EnvironmentConfig struct {
	APIKeyEnvVar string `yaml:"api_key_env_var" toml:"api_key_env_var"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled" env:"TAILSCALE_ENABLED"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when no file is present.
// Values mirror the YAML loader's fallbacks.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:        "yaml_agent",
			Model:       "gemini-2.0-flash",
			Description: "YAML configured agent",
			Instruction: "You are a helpful assistant.",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			Title:       "YAML Configured Agent",
			Description: "Agent configured via YAML",
			Mode:        ModeRunner,
			ErrorStatus: ErrorStatusLegacy,
		},
		Model: ModelConfig{
			Provider:   ProviderEcho,
			TimeoutRaw: "120s",
		},
		Sessions: SessionsConfig{
			UserID: "default_user",
		},
		Environment: EnvironmentConfig{
			APIKeyEnvVar: "GOOGLE_API_KEY",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Fallback returns the built-in agent used when no configuration file exists.
func Fallback() *Config {
	cfg := Default()
	cfg.Agent.Name = "fallback_agent"
	cfg.Agent.Description = "Fallback agent when YAML config is missing."
	cfg.Agent.Instruction = "Answer user questions to the best of your knowledge"
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, then
// AGENT_SERVER_* overrides are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := decode(path, expandedData, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrFallback loads the file at path when it exists. When explicit is false
// and nothing exists at path, the fallback agent is returned together with
// found=false so the caller can warn.
func LoadOrFallback(path string, explicit bool) (cfg *Config, found bool, err error) {
	cfg, err = Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if explicit || !errors.Is(err, ErrConfigNotFound) {
		return nil, false, err
	}

	cfg = Fallback()
	if err := finalize(cfg); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Locate returns the config path to use.
// Priority: explicit flag > AGENT_SERVER_CONFIG > ./agent_config.yaml > XDG_CONFIG_HOME/agent-server/agent_config.yaml.
// The boolean reports whether the path was requested explicitly.
func Locate(flagPath string) (string, bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		return envPath, true
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName, false
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return DefaultFileName, false
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "agent-server", DefaultFileName), false
}

func decode(path, data string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(data, cfg)
		return err
	default:
		return yaml.Unmarshal([]byte(data), cfg)
	}
}

// finalize applies env overrides, derived defaults, durations and validation.
func finalize(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("applying environment overrides: %w", err)
	}

	if cfg.Sessions.AppName == "" {
		cfg.Sessions.AppName = cfg.Agent.Name
	}
	if cfg.Sessions.UserID == "" {
		cfg.Sessions.UserID = "default_user"
	}
	if cfg.Environment.APIKeyEnvVar == "" {
		cfg.Environment.APIKeyEnvVar = "GOOGLE_API_KEY"
	}

	if err := parseDurations(cfg); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Agent.Name == "" {
		return fmt.Errorf("agent.name is required")
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("agent.model is required")
	}
	for i, tool := range c.Agent.Tools {
		if tool.Name == "" {
			return fmt.Errorf("agent.tools[%d].name is required", i)
		}
	}

	if !c.Tailscale.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port %d out of range", c.Server.Port)
		}
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Server.Mode {
	case ModeRunner, ModeDirect, ModeComparison:
	default:
		return fmt.Errorf("server.mode must be one of runner, direct, comparison (got %q)", c.Server.Mode)
	}

	switch c.Server.ErrorStatus {
	case ErrorStatusLegacy, ErrorStatusStrict:
	default:
		return fmt.Errorf("server.error_status must be legacy or strict (got %q)", c.Server.ErrorStatus)
	}

	switch c.Model.Provider {
	case ProviderEcho:
	case ProviderOpenAI:
		if c.Model.APIBase == "" {
			return fmt.Errorf("model.api_base is required for provider %q", ProviderOpenAI)
		}
	default:
		return fmt.Errorf("model.provider must be echo or openai (got %q)", c.Model.Provider)
	}

	if c.Sessions.MaxSessions < 0 {
		return fmt.Errorf("sessions.max_sessions cannot be negative")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// Redacted returns a copy safe for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Agent.Tools = append([]ToolConfig(nil), c.Agent.Tools...)
	if out.Tailscale.AuthKey != "" {
		out.Tailscale.AuthKey = "[redacted]"
	}
	return &out
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Model.TimeoutRaw != "" {
		cfg.Model.Timeout, err = time.ParseDuration(cfg.Model.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing model.timeout %q: %w", cfg.Model.TimeoutRaw, err)
		}
	}

	if cfg.Sessions.IdleTTLRaw != "" {
		cfg.Sessions.IdleTTL, err = time.ParseDuration(cfg.Sessions.IdleTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing sessions.idle_ttl %q: %w", cfg.Sessions.IdleTTLRaw, err)
		}
	}

	return nil
}
