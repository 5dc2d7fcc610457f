// Package runner drives conversation turns.
//
// Run appends the user's message to the conversation, hands the whole
// transcript to the model and resolves the turn to the first final event
// that carries content. RunDirect does the same for a single message with
// no session.
//
// Every call returns a Result. Failures never escape as Go errors: the
// Result text reads "Error: <description>" and Err says what kind of
// failure it was, so HTTP handlers can choose a status code.
package runner
