// ABOUTME: Session holds one conversation's transcript and state bag
// ABOUTME: Transcript is append-only; a turn lock serialises writers per conversation

package session

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/agent-server/internal/agent"
)

// Key identifies a session. The triple is unique within a store.
type Key struct {
	App          string
	User         string
	Conversation string
}

func (k Key) String() string {
	return k.App + "/" + k.User + "/" + k.Conversation
}

// Session is an ordered transcript plus an opaque key/value state map.
// All methods are safe for concurrent use.
type Session struct {
	key       Key
	createdAt time.Time

	// turn is a one-slot lock held for the whole of a conversation turn so
	// concurrent requests on one conversation cannot interleave their
	// transcripts. A channel lets waiters give up when their context ends.
	turn chan struct{}

	// holds counts turns acquired through a store that are waiting or
	// running. The store keeps a held session reachable past eviction.
	holds   atomic.Int32
	removed atomic.Bool

	mu         sync.RWMutex
	transcript []agent.Message
	state      map[string]any
	updatedAt  time.Time
}

func newSession(key Key, state map[string]any) *Session {
	now := time.Now().UTC()
	st := make(map[string]any, len(state))
	maps.Copy(st, state)
	return &Session{
		key:       key,
		turn:      make(chan struct{}, 1),
		createdAt: now,
		updatedAt: now,
		state:     st,
	}
}

// Key returns the identifying triple.
func (s *Session) Key() Key {
	return s.key
}

// CreatedAt returns when the session was allocated.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt returns when the transcript or state last changed.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Append adds msg to the end of the transcript.
func (s *Session) Append(msg agent.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, msg.Clone())
	s.updatedAt = time.Now().UTC()
}

// Transcript returns a copy of the conversation history.
func (s *Session) Transcript() []agent.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]agent.Message, len(s.transcript))
	for i, msg := range s.transcript {
		copied[i] = msg.Clone()
	}
	return copied
}

// Len returns the number of transcript entries.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transcript)
}

// State returns a shallow copy of the state map.
func (s *Session) State() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.state)
}

// SetState stores value under key in the state map.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = value
	s.updatedAt = time.Now().UTC()
}

// BeginTurn blocks until no other turn is running on this session and
// returns the function that ends the turn. It returns ctx's error instead if
// ctx ends first.
func (s *Session) BeginTurn(ctx context.Context) (end func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-s.turn }) }, nil
}

// InTurn reports whether a store holds the session for a waiting or
// running turn.
func (s *Session) InTurn() bool {
	return s.holds.Load() > 0
}
