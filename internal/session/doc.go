// Package session keeps conversation transcripts in process memory.
//
// # Keys
//
// A session is identified by the triple (app, user, conversation):
//
//	key := session.Key{App: "yaml_agent", User: "default_user", Conversation: "default"}
//
// # Store
//
// MemoryStore offers Get (pure lookup), Create (caller has checked absence)
// and GetOrCreate (atomic). Capacity and idle expiry are optional:
//
//	store := session.NewMemoryStore(session.Options{
//	    MaxSessions: 1000,
//	    IdleTTL:     30 * time.Minute,
//	})
//
// With both left at zero the store grows for the lifetime of the process.
//
// # Turns
//
// BeginTurn serialises writers on one session. Hold it from appending the
// user message until the reply has been recorded. It gives up when the
// caller's context ends.
//
// Acquire combines GetOrCreate and BeginTurn. A session acquired this way
// stays the one stored under its key until released, so an eviction during a
// slow turn cannot start a second, empty conversation under the same key:
//
//	sess, _, release, err := store.Acquire(ctx, key, nil)
//	if err != nil {
//	    return err
//	}
//	defer release()
package session
