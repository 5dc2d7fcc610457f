// Package config handles configuration loading for agent-server.
//
// # Overview
//
// Configuration is loaded from YAML (or TOML) files with environment variable
// expansion and AGENT_SERVER_* overrides. The package provides validation and
// the same defaults the YAML agent loader has always used.
//
// # Configuration File
//
// Locations (in order):
//
//  1. Path from the --config flag
//  2. Path from AGENT_SERVER_CONFIG environment variable
//  3. ./agent_config.yaml (current directory)
//  4. ~/.config/agent-server/agent_config.yaml
//
// A file requested through 1 or 2 must exist. When nothing is found at 3 or 4
// the built-in fallback agent is served instead.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// # Environment Overrides
//
// A subset of fields can be overridden without touching the file:
//
//	AGENT_SERVER_HOST, AGENT_SERVER_PORT, AGENT_SERVER_MODE,
//	AGENT_SERVER_AGENT_MODEL, AGENT_SERVER_MODEL_PROVIDER,
//	AGENT_SERVER_MAX_SESSIONS, AGENT_SERVER_SESSION_IDLE_TTL,
//	AGENT_SERVER_LOG_LEVEL, AGENT_SERVER_LOG_FORMAT
//
// # Configuration Sections
//
// Agent:
//
//	agent:
//	  name: "my_yaml_agent"
//	  model: "gemini-2.0-flash"
//	  description: "YAML configured agent"
//	  instruction: "You are a helpful assistant."
//	  tools:
//	    - name: get_current_time
//	      enabled: true
//
// Server:
//
//	server:
//	  host: "0.0.0.0"
//	  port: 8000
//	  title: "YAML Configured Agent"
//	  mode: "runner"          # runner, direct, comparison
//	  error_status: "legacy"  # legacy (always 200), strict
//	  grpc_addr: ""           # optional gRPC health endpoint
//
// Model backend:
//
//	model:
//	  provider: "echo"        # echo, openai
//	  api_base: "https://api.openai.com/v1"
//	  timeout: "120s"
//
// Sessions:
//
//	sessions:
//	  app_name: ""            # defaults to agent.name
//	  user_id: "default_user"
//	  max_sessions: 0         # 0 = unbounded
//	  idle_ttl: "30m"         # empty = never expire
//
// Environment:
//
//	environment:
//	  api_key_env_var: "GOOGLE_API_KEY"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
