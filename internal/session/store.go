// ABOUTME: In-memory session store keyed by (app, user, conversation)
// ABOUTME: Capacity and idle TTL are enforced by an expirable LRU; sessions in a turn outlive eviction

package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store looks up and allocates sessions.
type Store interface {
	// Get is a pure lookup. It reports false when the key is unknown.
	Get(key Key) (*Session, bool)
	// Create allocates a session with an empty transcript and a copy of state.
	// Callers must have confirmed absence with Get; an existing session under
	// the same key is replaced.
	Create(key Key, state map[string]any) *Session
	// GetOrCreate atomically returns the session for key, creating it when
	// absent. The boolean reports whether a new session was created.
	GetOrCreate(key Key, state map[string]any) (*Session, bool)
	// Acquire is GetOrCreate followed by BeginTurn. Until release is called
	// the session stays the one stored under key, even if capacity or idle
	// expiry evicts it in the meantime.
	Acquire(ctx context.Context, key Key, state map[string]any) (sess *Session, created bool, release func(), err error)
	// Delete removes a session. It reports whether one was present.
	Delete(key Key) bool
	// List returns the sessions of one user of one app.
	List(app, user string) []*Session
	// Len returns the number of live sessions.
	Len() int
	// Close drops every session.
	Close()
}

// Options configures a MemoryStore.
type Options struct {
	MaxSessions int           // 0 = unbounded
	IdleTTL     time.Duration // 0 = never expire
	Logger      *slog.Logger
}

// MemoryStore is a process-local Store. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex // serialises creation, replacement and holds
	sessions *expirable.LRU[Key, *Session]
	logger   *slog.Logger
	closing  atomic.Bool

	// active holds sessions with a turn waiting or running. Lookups check it
	// before the LRU, so eviction or expiry mid-turn cannot split a
	// conversation into two sessions.
	active map[Key]*Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore. Least recently used sessions are
// evicted once MaxSessions is reached, and sessions idle for IdleTTL expire.
func NewMemoryStore(opts Options) *MemoryStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemoryStore{
		logger: logger.With("component", "session-store"),
		active: make(map[Key]*Session),
	}
	s.sessions = expirable.NewLRU[Key, *Session](opts.MaxSessions, s.onEvict, opts.IdleTTL)
	return s
}

// onEvict runs inside the LRU's lock and, for capacity evictions, under s.mu.
// It must not call back into either.
func (s *MemoryStore) onEvict(key Key, sess *Session) {
	if s.closing.Load() || sess.removed.Load() {
		return
	}
	attrs := []any{
		"app", key.App,
		"user", key.User,
		"conversation", key.Conversation,
		"messages", sess.Len(),
	}
	if sess.InTurn() {
		s.logger.Info("session evicted during a turn, kept until the turn ends", attrs...)
		return
	}
	s.logger.Info("session evicted", attrs...)
}

// Get returns the session for key without touching its recency or expiry.
func (s *MemoryStore) Get(key Key) (*Session, bool) {
	s.mu.Lock()
	sess, ok := s.active[key]
	s.mu.Unlock()
	if ok {
		return sess, true
	}
	return s.sessions.Peek(key)
}

// Create allocates a new session under key.
func (s *MemoryStore) Create(key Key, state map[string]any) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(key, state, false)
}

func (s *MemoryStore) createLocked(key Key, state map[string]any, hold bool) *Session {
	delete(s.active, key)

	sess := newSession(key, state)
	if hold {
		s.holdLocked(sess)
	}
	s.sessions.Add(key, sess)
	s.logger.Debug("session created", "key", key.String())
	return sess
}

// GetOrCreate returns the existing session for key, refreshing its idle
// timer, or creates one.
func (s *MemoryStore) GetOrCreate(key Key, state map[string]any) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(key, state, false)
}

func (s *MemoryStore) getOrCreateLocked(key Key, state map[string]any, hold bool) (*Session, bool) {
	sess, ok := s.active[key]
	if !ok {
		sess, ok = s.sessions.Get(key)
	}
	if !ok {
		return s.createLocked(key, state, hold), true
	}

	if hold {
		s.holdLocked(sess)
	}
	// Re-adding resets the expiry and moves the entry to the front. It also
	// brings back a held session that was evicted.
	s.sessions.Add(key, sess)
	return sess, false
}

func (s *MemoryStore) holdLocked(sess *Session) {
	sess.holds.Add(1)
	s.active[sess.key] = sess
}

// Acquire returns the session for key with a turn begun on it.
func (s *MemoryStore) Acquire(ctx context.Context, key Key, state map[string]any) (*Session, bool, func(), error) {
	s.mu.Lock()
	sess, created := s.getOrCreateLocked(key, state, true)
	s.mu.Unlock()

	end, err := sess.BeginTurn(ctx)
	if err != nil {
		s.unhold(sess)
		return nil, false, nil, err
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			end()
			s.unhold(sess)
		})
	}
	return sess, created, release, nil
}

// unhold drops one hold. With the last one gone the session is only
// reachable through the LRU, if it is still there.
func (s *MemoryStore) unhold(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.holds.Add(-1) > 0 {
		return
	}
	if s.active[sess.key] == sess {
		delete(s.active, sess.key)
	}
}

// Delete removes the session for key. A turn still running on it finishes
// against the removed session.
func (s *MemoryStore) Delete(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, found := s.active[key]
	if found {
		sess.removed.Store(true)
		delete(s.active, key)
	}
	if stored, ok := s.sessions.Peek(key); ok {
		stored.removed.Store(true)
		found = true
	}
	// Remove also drops an expired entry that Peek no longer reports.
	s.sessions.Remove(key)

	if found {
		s.logger.Info("session deleted", "key", key.String())
	}
	return found
}

// List returns the live sessions for app and user, oldest first. Sessions
// kept only for a running turn come last.
func (s *MemoryStore) List(app, user string) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Session
	for _, sess := range s.sessions.Values() {
		k := sess.Key()
		if k.App == app && k.User == user {
			out = append(out, sess)
		}
	}
	for key, sess := range s.active {
		if key.App == app && key.User == user && !s.sessions.Contains(key) {
			out = append(out, sess)
		}
	}
	return out
}

// Len returns the number of live sessions, including those kept for a
// running turn.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.sessions.Len()
	for key := range s.active {
		if !s.sessions.Contains(key) {
			n++
		}
	}
	return n
}

// Close purges every session without logging them as evictions.
func (s *MemoryStore) Close() {
	s.closing.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Purge()
	clear(s.active)
}
