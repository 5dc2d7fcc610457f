// ABOUTME: Model invocation contract and backend factory
// ABOUTME: Backends stream agent events over a channel in generation order

package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/2389/agent-server/internal/agent"
	"github.com/2389/agent-server/internal/config"
)

// ErrEmptyTranscript is returned when Invoke is called without any messages.
var ErrEmptyTranscript = errors.New("transcript is empty")

// eventBufferSize matches the buffer the gateway uses for response channels.
const eventBufferSize = 16

// Request is one model invocation.
type Request struct {
	InvocationID string
	Spec         agent.Spec
	Transcript   []agent.Message
}

// Invoker produces events for a transcript. Events are delivered in order on
// the returned channel, which is closed when the backend is done. Backends
// stop producing when ctx is cancelled. A failure before any event is
// produced is returned directly; a failure afterwards is delivered as an
// EventError carrying Err.
type Invoker interface {
	Invoke(ctx context.Context, req *Request) (<-chan *agent.Event, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req *Request) (<-chan *agent.Event, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, req *Request) (<-chan *agent.Event, error) {
	return f(ctx, req)
}

// New creates the backend selected by cfg.Model.Provider.
func New(cfg *config.Config, logger *slog.Logger) (Invoker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "model", "provider", cfg.Model.Provider)

	switch cfg.Model.Provider {
	case config.ProviderEcho:
		return NewEcho(EchoOptions{}), nil
	case config.ProviderOpenAI:
		apiKey := os.Getenv(cfg.Environment.APIKeyEnvVar)
		if apiKey == "" {
			logger.Warn("API key environment variable not set", "env_var", cfg.Environment.APIKeyEnvVar)
		}
		return NewChatCompletions(ChatCompletionsOptions{
			APIBase:   cfg.Model.APIBase,
			APIKey:    apiKey,
			MaxTokens: cfg.Model.MaxTokens,
			Timeout:   cfg.Model.Timeout,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

// newEvent stamps an event with an ID, invocation ID and time.
func newEvent(req *Request, kind agent.EventKind) *agent.Event {
	return &agent.Event{
		ID:           uuid.New().String(),
		InvocationID: req.InvocationID,
		Author:       req.Spec.Name(),
		Kind:         kind,
		Timestamp:    time.Now().UTC(),
	}
}

// textEvent builds a partial or final event carrying text.
func textEvent(req *Request, kind agent.EventKind, text string, final bool) *agent.Event {
	ev := newEvent(req, kind)
	msg := agent.NewAgentMessage(text)
	ev.Content = &msg
	ev.Final = final
	ev.Partial = !final
	return ev
}

// send delivers ev unless ctx is cancelled first.
func send(ctx context.Context, out chan<- *agent.Event, ev *agent.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// lastUserText returns the text of the most recent user message.
func lastUserText(transcript []agent.Message) (string, bool) {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == agent.RoleUser {
			return transcript[i].Text(), true
		}
	}
	return "", false
}
