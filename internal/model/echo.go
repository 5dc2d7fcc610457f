// ABOUTME: Offline echo backend that streams thinking, text chunks and a final reply.
// ABOUTME: Reads the whole transcript so conversation memory is observable without a real model.

package model

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/2389/agent-server/internal/agent"
)

var (
	nameStatement = regexp.MustCompile(`(?i)\bmy name is\s+([\p{L}][\p{L}'-]*)`)
	nameQuestion  = regexp.MustCompile(`(?i)\b(what is|what's|whats)\s+my name\b`)
	timeQuestion  = regexp.MustCompile(`(?i)\b(what time is it|what is the time|what's the time|current time)\b`)
)

// EchoOptions configures the echo backend.
type EchoOptions struct {
	ChunkWords int           // words per partial text event, default 4
	Delay      time.Duration // pause between events
}

// Echo is a deterministic backend for local use and demos.
type Echo struct {
	opts EchoOptions
}

// NewEcho creates an echo backend.
func NewEcho(opts EchoOptions) *Echo {
	if opts.ChunkWords <= 0 {
		opts.ChunkWords = 4
	}
	return &Echo{opts: opts}
}

// Invoke streams a thinking event, the reply in partial chunks, then the
// final event with the full reply.
func (e *Echo) Invoke(ctx context.Context, req *Request) (<-chan *agent.Event, error) {
	if len(req.Transcript) == 0 {
		return nil, ErrEmptyTranscript
	}

	reply := e.reply(ctx, req)
	out := make(chan *agent.Event, eventBufferSize)

	go func() {
		defer close(out)

		thinking := newEvent(req, agent.EventThinking)
		thinking.Partial = true
		if !e.emit(ctx, out, thinking) {
			return
		}

		words := strings.Fields(reply)
		for i := 0; i < len(words); i += e.opts.ChunkWords {
			end := min(i+e.opts.ChunkWords, len(words))
			chunk := strings.Join(words[i:end], " ")
			if end < len(words) {
				chunk += " "
			}
			if !e.emit(ctx, out, textEvent(req, agent.EventText, chunk, false)) {
				return
			}
		}

		e.emit(ctx, out, textEvent(req, agent.EventDone, reply, true))
	}()

	return out, nil
}

func (e *Echo) emit(ctx context.Context, out chan<- *agent.Event, ev *agent.Event) bool {
	if e.opts.Delay > 0 {
		select {
		case <-time.After(e.opts.Delay):
		case <-ctx.Done():
			return false
		}
	}
	return send(ctx, out, ev)
}

// reply answers time questions with the agent's clock tool when it has one
// and falls back to Reply otherwise.
func (e *Echo) reply(ctx context.Context, req *Request) string {
	text, ok := lastUserText(req.Transcript)
	if !ok || !timeQuestion.MatchString(text) {
		return Reply(req.Transcript)
	}
	for _, tool := range req.Spec.Tools() {
		if tool.Name != agent.ToolCurrentTime || tool.Call == nil {
			continue
		}
		result, err := tool.Call(ctx)
		if err != nil {
			return fmt.Sprintf("The %s tool failed: %v", tool.Name, err)
		}
		return fmt.Sprintf("The current time is %v (%v).", result["current_time"], result["timezone"])
	}
	return Reply(req.Transcript)
}

// Reply computes the echo backend's answer for a transcript.
func Reply(transcript []agent.Message) string {
	text, ok := lastUserText(transcript)
	if !ok {
		return "Nothing to reply to."
	}
	earlier := len(transcript) - 1

	if m := nameStatement.FindStringSubmatch(text); m != nil {
		return fmt.Sprintf("Nice to meet you, %s.", m[1])
	}

	if nameQuestion.MatchString(text) {
		if name := recallName(transcript[:len(transcript)-1]); name != "" {
			return fmt.Sprintf("Your name is %s.", name)
		}
		return "I don't know your name yet."
	}

	return fmt.Sprintf("You said: %q (%d earlier messages in this conversation)", text, earlier)
}

// recallName returns the most recent name the user stated.
func recallName(transcript []agent.Message) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role != agent.RoleUser {
			continue
		}
		if m := nameStatement.FindStringSubmatch(transcript[i].Text()); m != nil {
			return m[1]
		}
	}
	return ""
}
