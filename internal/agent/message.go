// ABOUTME: Conversation message and event types exchanged between sessions and model backends.
// ABOUTME: Messages are immutable once appended; events carry the Final flag that ends a turn.

package agent

import (
	"slices"
	"strings"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Part is one content part of a message. Only text is supported.
type Part struct {
	Text string `json:"text"`
}

// Message is a single transcript entry.
type Message struct {
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage builds a single-part user message.
func NewUserMessage(text string) Message {
	return Message{
		Role:      RoleUser,
		Parts:     []Part{{Text: text}},
		CreatedAt: time.Now().UTC(),
	}
}

// NewAgentMessage builds a single-part agent message.
func NewAgentMessage(text string) Message {
	return Message{
		Role:      RoleAgent,
		Parts:     []Part{{Text: text}},
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a copy that shares no slice storage with m.
func (m Message) Clone() Message {
	m.Parts = slices.Clone(m.Parts)
	return m
}

// Text joins the text of all parts.
func (m Message) Text() string {
	if len(m.Parts) == 1 {
		return m.Parts[0].Text
	}
	texts := make([]string, len(m.Parts))
	for i, p := range m.Parts {
		texts[i] = p.Text
	}
	return strings.Join(texts, "")
}

// EventKind indicates the type of an event.
type EventKind int

const (
	EventThinking EventKind = iota
	EventText
	EventDone
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventThinking:
		return "thinking"
	case EventText:
		return "text"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one unit of model output produced during a turn. Intermediate
// events are Partial; the event carrying the authoritative answer has Final set.
// Backends report a failure mid-stream with an EventError carrying Err.
type Event struct {
	ID           string
	InvocationID string
	Author       string
	Kind         EventKind
	Content      *Message
	Partial      bool
	Final        bool
	Err          error
	Timestamp    time.Time
}

// IsFinal reports whether e ends the turn.
func (e *Event) IsFinal() bool {
	return e != nil && e.Final
}

// HasParts reports whether e carries at least one content part.
func (e *Event) HasParts() bool {
	return e != nil && e.Content != nil && len(e.Content.Parts) > 0
}

// FirstText returns the text of the first content part, or "" if there is none.
func (e *Event) FirstText() string {
	if !e.HasParts() {
		return ""
	}
	return e.Content.Parts[0].Text
}
