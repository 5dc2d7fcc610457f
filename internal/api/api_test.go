// ABOUTME: Tests for request parsing and response envelope builders
// ABOUTME: Checks defaults, validation and the exact JSON field names clients rely on

package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agent-server/internal/agent"
	"github.com/2389/agent-server/internal/runner"
	"github.com/2389/agent-server/internal/session"
)

func TestParseChatRequest(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     error
		wantMessage string
		wantSession string
	}{
		{name: "defaults session", body: `{"message":"hi"}`, wantMessage: "hi", wantSession: "default"},
		{name: "explicit session", body: `{"message":"hi","session_id":"test1"}`, wantMessage: "hi", wantSession: "test1"},
		{name: "empty message allowed", body: `{"message":""}`, wantMessage: "", wantSession: "default"},
		{name: "missing message", body: `{"session_id":"x"}`, wantErr: ErrMissingMessage},
		{name: "null message", body: `{"message":null}`, wantErr: ErrMissingMessage},
		{name: "invalid json", body: `{not json`, wantErr: ErrInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseChatRequest(strings.NewReader(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMessage, req.Text())
			assert.Equal(t, tt.wantSession, req.SessionID)
		})
	}
}

func TestNewChatResponse_JSON(t *testing.T) {
	resp := NewChatResponse(runner.Result{Text: "T", Outcome: runner.OutcomeFinal}, "test1")

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"T","session_id":"test1"}`, string(data))
}

func TestNewDirectResponse_JSON(t *testing.T) {
	data, err := json.Marshal(NewDirectResponse(runner.Result{Text: "Error: boom"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"Error: boom"}`, string(data))
}

func TestNewComparisonResponse(t *testing.T) {
	direct := NewComparisonResponse(runner.Result{Text: "a"}, false, ApproachDirect)
	data, err := json.Marshal(direct)
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"a","has_memory":false,"approach":"direct_agent"}`, string(data))

	stateful := NewComparisonResponse(runner.Result{Text: "b"}, true, ApproachRunner)
	require.NotNil(t, stateful.HasMemory)
	assert.True(t, *stateful.HasMemory)
	assert.Equal(t, "runner_based", stateful.Approach)
}

func TestNewHealthResponse(t *testing.T) {
	spec := agent.NewSpec("yaml_agent", "m", "", "")
	data, err := json.Marshal(NewHealthResponse(spec, true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"healthy","agent":"yaml_agent","configured_via":"YAML","uses_runner":true}`, string(data))
}

func TestNewAppsResponse(t *testing.T) {
	spec := agent.NewSpec("root_agent", "gemini-2.0-flash-001", "A helpful assistant.", "")
	resp := NewAppsResponse(spec)

	require.Len(t, resp.Apps, 1)
	assert.Equal(t, AppInfo{Name: "root_agent", Description: "A helpful assistant.", Model: "gemini-2.0-flash-001"}, resp.Apps[0])
}

func TestNewConfigResponse(t *testing.T) {
	tools, _ := agent.BuildTools(nil)
	spec := agent.NewSpec("a", "m", "d", "i", tools...)

	resp := NewConfigResponse(spec, "", "runner")
	assert.Equal(t, 0, resp.ToolsEnabled)
	assert.NotNil(t, resp.Tools)
	assert.Equal(t, ConfigSource, resp.ConfigSource)
	assert.Equal(t, "runner", resp.Mode)

	resp = NewConfigResponse(spec, "/etc/agent.toml", "direct")
	assert.Equal(t, "/etc/agent.toml", resp.ConfigSource)
}

func TestNewComparisonInfo(t *testing.T) {
	info := NewComparisonInfo()
	assert.Len(t, info.TestInstructions, 5)
	assert.Contains(t, info.TestInstructions[4], "Direct forgets")
}

func TestNewSessionResponse(t *testing.T) {
	store := session.NewMemoryStore(session.Options{})
	sess := store.Create(session.Key{App: "app", User: "u", Conversation: "c"}, nil)
	sess.Append(agent.NewUserMessage("hello"))
	sess.Append(agent.NewAgentMessage("hi there"))

	resp := NewSessionResponse(sess)

	assert.Equal(t, "c", resp.SessionID)
	assert.Equal(t, "app", resp.App)
	assert.Equal(t, "u", resp.User)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "user", resp.Messages[0].Role)
	assert.Equal(t, "hello", resp.Messages[0].Text)
	assert.Equal(t, "agent", resp.Messages[1].Role)
	assert.NotEmpty(t, resp.CreatedAt)
}

func TestNewSessionListResponse(t *testing.T) {
	store := session.NewMemoryStore(session.Options{})
	older := store.Create(session.Key{App: "app", User: "u", Conversation: "older"}, nil)
	newer := store.Create(session.Key{App: "app", User: "u", Conversation: "newer"}, map[string]any{"turns": 1})
	older.Append(agent.NewUserMessage("first"))
	time.Sleep(time.Millisecond)
	newer.Append(agent.NewUserMessage("second"))
	newer.Append(agent.NewAgentMessage("reply"))

	resp := NewSessionListResponse("app", "u", store.List("app", "u"))

	assert.Equal(t, "app", resp.App)
	assert.Equal(t, "u", resp.User)
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, "newer", resp.Sessions[0].SessionID)
	assert.Equal(t, 2, resp.Sessions[0].Messages)
	assert.Equal(t, "older", resp.Sessions[1].SessionID)
	assert.False(t, resp.Sessions[1].InTurn)

	assert.Equal(t, map[string]any{"turns": 1}, NewSessionResponse(newer).State)
	assert.NotNil(t, NewSessionListResponse("app", "nobody", nil).Sessions, "an empty list encodes as []")
}
