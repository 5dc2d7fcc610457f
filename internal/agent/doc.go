// Package agent defines the agent served by agent-server and the values that
// flow between a conversation and a model backend.
//
// # Spec
//
// Spec is the immutable description of the agent (name, model, description,
// instruction, tools). It is built once at startup:
//
//	spec, unknown := agent.FromConfig(cfg.Agent)
//
// # Messages
//
// A transcript is a slice of Message values. Each message has a Role (user or
// agent) and an ordered list of text Parts.
//
// # Events
//
// Model backends stream Event values while producing a reply:
//
//   - EventThinking: intermediate, Partial
//   - EventText: text chunk, Partial
//   - EventDone: Final, carries the full reply
//   - EventError: backend failure, carries Err
//
// Consumers take the first Final event with content as the answer for the turn.
package agent
