// ABOUTME: Tests for the CLI helpers: logging, init, config output, health and chat client
// ABOUTME: Network calls go to httptest servers; files go to t.TempDir()

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agent-server/internal/api"
	"github.com/2389/agent-server/internal/config"
)

func init() {
	color.NoColor = true
}

func TestSetupLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.With("component", "runner").Info("turn completed", "session_id", "test1")
	logger.Debug("hidden")
	logger.WithGroup("http").Warn("slow", "ms", 1200)

	out := buf.String()
	assert.Contains(t, out, "INF turn completed component=runner session_id=test1")
	assert.Contains(t, out, "WRN slow http.ms=1200")
	assert.NotContains(t, out, "hidden")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "v", rec["k"])
	assert.Equal(t, slog.LevelDebug.String(), rec["level"])
}

func TestRunInit_WritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agent_config.yaml")
	answers := strings.Join([]string{
		path,
		"my_agent",
		"", // model
		"", // description
		"", // instruction
		"", // enable tool
		"127.0.0.1",
		"9000",
		"comparison",
		"", // provider
		"debug",
		"", // format
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(answers), &out))
	assert.Contains(t, out.String(), "Config written to "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "my_agent", cfg.Agent.Name)
	assert.Equal(t, "gemini-2.0-flash", cfg.Agent.Model)
	require.Len(t, cfg.Agent.Tools, 1)
	assert.Equal(t, "get_current_time", cfg.Agent.Tools[0].Name)
	assert.True(t, cfg.Agent.Tools[0].Enabled)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, config.ModeComparison, cfg.Server.Mode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "my_agent", cfg.Sessions.AppName)
}

func TestRunInit_RejectsInvalidPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent_config.yaml")
	answers := strings.Join([]string{path, "", "", "", "", "", "", "eighty"}, "\n") + "\n"

	err := runInit(strings.NewReader(answers), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestWriteConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tailscale.AuthKey = "tskey-secret"

	var yamlOut bytes.Buffer
	require.NoError(t, writeConfig(&yamlOut, cfg.Redacted(), "yaml"))
	assert.Contains(t, yamlOut.String(), "name: yaml_agent")
	assert.NotContains(t, yamlOut.String(), "tskey-secret")

	var tomlOut bytes.Buffer
	require.NoError(t, writeConfig(&tomlOut, cfg.Redacted(), "toml"))
	assert.Contains(t, tomlOut.String(), "[agent]")
	assert.NotContains(t, tomlOut.String(), "tskey-secret")

	assert.Error(t, writeConfig(&bytes.Buffer{}, cfg, "xml"))
}

func TestServerURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{host: "0.0.0.0", want: "http://127.0.0.1:8000"},
		{host: "", want: "http://127.0.0.1:8000"},
		{host: "agent.local", want: "http://agent.local:8000"},
		{host: "::1", want: "http://[::1]:8000"},
	}
	for _, tt := range tests {
		if got := serverURL(config.ServerConfig{Host: tt.host, Port: 8000}); got != tt.want {
			t.Errorf("serverURL(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestEndpointForMode(t *testing.T) {
	assert.Equal(t, "/run", endpointForMode(config.ModeRunner))
	assert.Equal(t, "/chat", endpointForMode(config.ModeDirect))
	assert.Equal(t, "/runner", endpointForMode(config.ModeComparison))
}

func TestCheckHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte("OK"))
	}))
	defer healthy.Close()
	assert.NoError(t, checkHealth(context.Background(), healthy.Client(), healthy.URL+"/"))

	sick := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer sick.Close()
	err := checkHealth(context.Background(), sick.Client(), sick.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func newEchoAPI(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := api.ParseChatRequest(r.Body)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(api.ChatResponse{
			Response:  "got " + req.Text(),
			SessionID: req.SessionID,
		})
	}))
}

func TestChatClient_Send(t *testing.T) {
	srv := newEchoAPI(t, http.StatusOK)
	defer srv.Close()

	client := newChatClient(srv.URL, "run", "test1", 0)
	resp, err := client.Send(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, "got hello", resp.Response)
	assert.Equal(t, "test1", resp.SessionID)
}

func TestChatClient_StrictErrorKeepsEnvelope(t *testing.T) {
	srv := newEchoAPI(t, http.StatusBadGateway)
	defer srv.Close()

	resp, err := newChatClient(srv.URL, "/run", "default", 0).Send(context.Background(), "hello")

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "got hello", resp.Response)
}

func TestSimpleChat(t *testing.T) {
	srv := newEchoAPI(t, http.StatusOK)
	defer srv.Close()

	client := newChatClient(srv.URL, "/run", "default", 0)
	var out bytes.Buffer
	err := simpleChat(context.Background(), client, strings.NewReader("first\n\nsecond\nquit\nignored\n"), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "agent> got first")
	assert.Contains(t, out.String(), "agent> got second")
	assert.Contains(t, out.String(), "Goodbye!")
	assert.NotContains(t, out.String(), "ignored")
}

func TestSendOnce(t *testing.T) {
	srv := newEchoAPI(t, http.StatusOK)
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, sendOnce(context.Background(), newChatClient(srv.URL, "/chat", "default", 0), &out, "ping"))
	assert.Equal(t, "got ping\n", out.String())
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "agent-server dev"))
}
