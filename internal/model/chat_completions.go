// ABOUTME: OpenAI-compatible /chat/completions backend
// ABOUTME: Sends the instruction and transcript, emits one final event with the reply

package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/agent-server/internal/agent"
)

const defaultHTTPTimeout = 120 * time.Second

// ChatCompletionsOptions configures the HTTP backend.
type ChatCompletionsOptions struct {
	APIBase    string
	APIKey     string
	MaxTokens  int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ChatCompletions talks to any OpenAI-compatible chat completions endpoint.
type ChatCompletions struct {
	apiBase    string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewChatCompletions creates the HTTP backend.
func NewChatCompletions(opts ChatCompletionsOptions) (*ChatCompletions, error) {
	apiBase := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("chat completions API base not configured")
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ChatCompletions{
		apiBase:    apiBase,
		apiKey:     opts.APIKey,
		maxTokens:  opts.MaxTokens,
		httpClient: client,
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatTool advertises one of the agent's tools as a function without
// parameters.
type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Tools     []chatTool    `json:"tools,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Invoke performs the HTTP call in the background. Transport and API
// failures are delivered as an EventError.
func (c *ChatCompletions) Invoke(ctx context.Context, req *Request) (<-chan *agent.Event, error) {
	if len(req.Transcript) == 0 {
		return nil, ErrEmptyTranscript
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	out := make(chan *agent.Event, eventBufferSize)
	go func() {
		defer close(out)

		reply, err := c.post(ctx, body)
		if err != nil {
			ev := newEvent(req, agent.EventError)
			ev.Err = err
			send(ctx, out, ev)
			return
		}

		c.logger.Debug("chat completion received",
			"invocation_id", req.InvocationID,
			"chars", len(reply))
		send(ctx, out, textEvent(req, agent.EventDone, reply, true))
	}()

	return out, nil
}

func (c *ChatCompletions) buildRequest(req *Request) chatRequest {
	messages := make([]chatMessage, 0, len(req.Transcript)+1)
	if instruction := req.Spec.Instruction(); instruction != "" {
		messages = append(messages, chatMessage{Role: "system", Content: instruction})
	}
	for _, msg := range req.Transcript {
		role := "user"
		if msg.Role == agent.RoleAgent {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: msg.Text()})
	}
	return chatRequest{
		Model:     req.Spec.Model(),
		Messages:  messages,
		Tools:     buildTools(req.Spec.Tools()),
		MaxTokens: c.maxTokens,
	}
}

func buildTools(tools []agent.Tool) []chatTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
		})
	}
	return out
}

func (c *ChatCompletions) post(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("chat completions request failed with status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("chat completions request failed with status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("chat completions request failed with status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completions response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
