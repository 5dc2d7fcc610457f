// ABOUTME: Structured outcome of a conversation turn
// ABOUTME: Keeps the legacy "Error: " text alongside a typed error kind for the HTTP layer

package runner

import (
	"context"
	"errors"
	"fmt"
)

// NoResponseText is the reply when the model finishes without a final event.
const NoResponseText = "No response generated"

// ErrorPrefix starts the reply text of every failed turn.
const ErrorPrefix = "Error: "

// Outcome is how a turn ended.
type Outcome string

const (
	OutcomeFinal     Outcome = "final"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFailed    Outcome = "failed"
)

// ErrorKind classifies a failed turn.
type ErrorKind string

const (
	KindInvocation ErrorKind = "invocation" // the backend refused to start
	KindStream     ErrorKind = "stream"     // the backend failed mid-stream
	KindPanic      ErrorKind = "panic"
	KindCancelled  ErrorKind = "cancelled" // caller went away or deadline passed
)

// Error describes a failed turn.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Result is what a turn resolves to. Text is always populated, so callers
// that only want a string can ignore the rest.
type Result struct {
	Text    string
	Outcome Outcome
	Err     *Error
}

// Failed reports whether the turn ended in an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

func finalResult(text string) Result {
	return Result{Text: text, Outcome: OutcomeFinal}
}

func exhaustedResult() Result {
	return Result{Text: NoResponseText, Outcome: OutcomeExhausted}
}

func failedResult(kind ErrorKind, err error) Result {
	msg := err.Error()
	return Result{
		Text:    ErrorPrefix + msg,
		Outcome: OutcomeFailed,
		Err:     &Error{Kind: kind, Message: msg},
	}
}

func panicResult(p any) Result {
	return failedResult(KindPanic, fmt.Errorf("model backend panicked: %v", p))
}

// classify picks the kind for an error raised while scanning events.
func classify(ctx context.Context, err error) ErrorKind {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return KindCancelled
	}
	return KindStream
}
