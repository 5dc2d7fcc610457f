// ABOUTME: JSON request and response envelopes for the agent HTTP API
// ABOUTME: Builders are pure functions of a turn result and request echo fields

package api

import (
	"encoding/json"
	"errors"
	"io"
	"slices"
	"time"

	"github.com/2389/agent-server/internal/agent"
	"github.com/2389/agent-server/internal/runner"
	"github.com/2389/agent-server/internal/session"
)

// DefaultSessionID is used when a request names no conversation.
const DefaultSessionID = "default"

// Approach tags reported by the comparison endpoints.
const (
	ApproachDirect = "direct_agent"
	ApproachRunner = "runner_based"
)

// ConfigSource is reported by GET /config.
const ConfigSource = "agent_config.yaml"

var (
	ErrInvalidJSON    = errors.New("invalid JSON body")
	ErrMissingMessage = errors.New("message is required")
)

// ChatRequest is the body of POST /run, /chat, /direct and /runner.
type ChatRequest struct {
	Message   *string `json:"message"`
	SessionID string  `json:"session_id,omitempty"`
}

// Text returns the message, or "" when it is missing.
func (r *ChatRequest) Text() string {
	if r.Message == nil {
		return ""
	}
	return *r.Message
}

// ParseChatRequest decodes and validates a chat request, defaulting the
// session ID. An empty message is allowed; a missing one is not.
func ParseChatRequest(r io.Reader) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, ErrInvalidJSON
	}
	if req.Message == nil {
		return nil, ErrMissingMessage
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSessionID
	}
	return &req, nil
}

// ChatResponse is the reply envelope. SessionID is set on stateful
// endpoints, HasMemory and Approach on the comparison endpoints, Error only
// when the server reports errors strictly.
type ChatResponse struct {
	Response  string        `json:"response"`
	SessionID string        `json:"session_id,omitempty"`
	HasMemory *bool         `json:"has_memory,omitempty"`
	Approach  string        `json:"approach,omitempty"`
	Error     *runner.Error `json:"error,omitempty"`
}

// NewChatResponse builds the reply for a stateful endpoint.
func NewChatResponse(res runner.Result, sessionID string) ChatResponse {
	return ChatResponse{Response: res.Text, SessionID: sessionID}
}

// NewDirectResponse builds the reply for the stateless chat endpoint.
func NewDirectResponse(res runner.Result) ChatResponse {
	return ChatResponse{Response: res.Text}
}

// NewComparisonResponse builds the reply for /direct and /runner.
func NewComparisonResponse(res runner.Result, hasMemory bool, approach string) ChatResponse {
	return ChatResponse{
		Response:  res.Text,
		HasMemory: &hasMemory,
		Approach:  approach,
	}
}

// ErrorResponse is the body of 4xx and 5xx replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET / in runner and direct modes.
type HealthResponse struct {
	Status        string `json:"status"`
	Agent         string `json:"agent"`
	ConfiguredVia string `json:"configured_via,omitempty"`
	UsesRunner    *bool  `json:"uses_runner,omitempty"`
}

// NewHealthResponse reports the agent name and whether turns keep history.
func NewHealthResponse(spec agent.Spec, usesRunner bool) HealthResponse {
	return HealthResponse{
		Status:        "healthy",
		Agent:         spec.Name(),
		ConfiguredVia: "YAML",
		UsesRunner:    &usesRunner,
	}
}

// AppInfo describes one agent in GET /list-apps.
type AppInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Model       string `json:"model"`
}

// AppsResponse is the body of GET /list-apps.
type AppsResponse struct {
	Apps []AppInfo `json:"apps"`
}

// NewAppsResponse lists the single configured agent.
func NewAppsResponse(spec agent.Spec) AppsResponse {
	return AppsResponse{Apps: []AppInfo{{
		Name:        spec.Name(),
		Description: spec.Description(),
		Model:       spec.Model(),
	}}}
}

// ConfigResponse is the body of GET /config.
type ConfigResponse struct {
	AgentName    string   `json:"agent_name"`
	Model        string   `json:"model"`
	Description  string   `json:"description"`
	ToolsEnabled int      `json:"tools_enabled"`
	Tools        []string `json:"tools"`
	ConfigSource string   `json:"config_source"`
	Mode         string   `json:"mode"`
}

// NewConfigResponse reports the loaded agent. source is the config file in
// use, or "" for built-in defaults.
func NewConfigResponse(spec agent.Spec, source, mode string) ConfigResponse {
	if source == "" {
		source = ConfigSource
	}
	tools := spec.ToolNames()
	if tools == nil {
		tools = []string{}
	}
	return ConfigResponse{
		AgentName:    spec.Name(),
		Model:        spec.Model(),
		Description:  spec.Description(),
		ToolsEnabled: len(tools),
		Tools:        tools,
		ConfigSource: source,
		Mode:         mode,
	}
}

// InfoResponse is the body of GET / in comparison mode.
type InfoResponse struct {
	Message          string   `json:"message"`
	TestInstructions []string `json:"test_instructions"`
}

// NewComparisonInfo explains how to see the difference between the two
// comparison endpoints.
func NewComparisonInfo() InfoResponse {
	return InfoResponse{
		Message: "Compare /direct vs /runner endpoints",
		TestInstructions: []string{
			`1. POST to /direct with: {"message": "My name is John"}`,
			`2. POST to /direct with: {"message": "What is my name?"}`,
			`3. POST to /runner with: {"message": "My name is Jane", "session_id": "test1"}`,
			`4. POST to /runner with: {"message": "What is my name?", "session_id": "test1"}`,
			"Notice: Direct forgets, Runner remembers!",
		},
	}
}

// MessageView is one transcript entry in GET /sessions/{id}.
type MessageView struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// SessionResponse is the body of GET /sessions/{id}.
type SessionResponse struct {
	SessionID string         `json:"session_id"`
	App       string         `json:"app"`
	User      string         `json:"user"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
	State     map[string]any `json:"state"`
	Messages  []MessageView  `json:"messages"`
}

// NewSessionResponse renders a session's transcript.
func NewSessionResponse(sess *session.Session) SessionResponse {
	key := sess.Key()
	transcript := sess.Transcript()
	messages := make([]MessageView, 0, len(transcript))
	for _, msg := range transcript {
		messages = append(messages, MessageView{
			Role:      string(msg.Role),
			Text:      msg.Text(),
			CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return SessionResponse{
		SessionID: key.Conversation,
		App:       key.App,
		User:      key.User,
		CreatedAt: sess.CreatedAt().UTC().Format(time.RFC3339),
		UpdatedAt: sess.UpdatedAt().UTC().Format(time.RFC3339),
		State:     sess.State(),
		Messages:  messages,
	}
}

// SessionSummary is one entry of GET /sessions.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	Messages  int    `json:"messages"`
	InTurn    bool   `json:"in_turn"`
	UpdatedAt string `json:"updated_at"`
}

// SessionListResponse is the body of GET /sessions.
type SessionListResponse struct {
	App      string           `json:"app"`
	User     string           `json:"user"`
	Sessions []SessionSummary `json:"sessions"`
}

// NewSessionListResponse summarises sessions, most recently updated first.
func NewSessionListResponse(app, user string, sessions []*session.Session) SessionListResponse {
	sorted := slices.Clone(sessions)
	slices.SortStableFunc(sorted, func(a, b *session.Session) int {
		return b.UpdatedAt().Compare(a.UpdatedAt())
	})

	out := SessionListResponse{App: app, User: user, Sessions: make([]SessionSummary, 0, len(sorted))}
	for _, sess := range sorted {
		out.Sessions = append(out.Sessions, SessionSummary{
			SessionID: sess.Key().Conversation,
			Messages:  sess.Len(),
			InTurn:    sess.InTurn(),
			UpdatedAt: sess.UpdatedAt().UTC().Format(time.RFC3339),
		})
	}
	return out
}
