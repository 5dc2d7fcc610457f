// ABOUTME: Conversation driver that replays a transcript into the model
// ABOUTME: Resolves each turn to the first final event and records it in the session

package runner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/agent-server/internal/agent"
	"github.com/2389/agent-server/internal/model"
	"github.com/2389/agent-server/internal/session"
)

// Options configures a Runner.
type Options struct {
	AppName string
	UserID  string
	Store   session.Store
	Invoker model.Invoker
	Spec    agent.Spec
	Logger  *slog.Logger
}

// Runner drives conversation turns for one agent.
type Runner struct {
	appName string
	userID  string
	store   session.Store
	invoker model.Invoker
	spec    agent.Spec
	logger  *slog.Logger
}

// New creates a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("runner requires a session store")
	}
	if opts.Invoker == nil {
		return nil, errors.New("runner requires a model invoker")
	}
	if opts.AppName == "" {
		opts.AppName = opts.Spec.Name()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		appName: opts.AppName,
		userID:  opts.UserID,
		store:   opts.Store,
		invoker: opts.Invoker,
		spec:    opts.Spec,
		logger:  logger.With("component", "runner", "app", opts.AppName),
	}, nil
}

// AppName returns the application name sessions are keyed under.
func (r *Runner) AppName() string { return r.appName }

// UserID returns the user sessions are keyed under.
func (r *Runner) UserID() string { return r.userID }

// Spec returns the agent the runner drives.
func (r *Runner) Spec() agent.Spec { return r.spec }

// SessionKey builds the store key for a conversation.
func (r *Runner) SessionKey(conversationID string) session.Key {
	return session.Key{App: r.appName, User: r.userID, Conversation: conversationID}
}

// Session looks up a conversation without creating it.
func (r *Runner) Session(conversationID string) (*session.Session, bool) {
	return r.store.Get(r.SessionKey(conversationID))
}

// Sessions returns the conversations of this runner's app and user.
func (r *Runner) Sessions() []*session.Session {
	return r.store.List(r.appName, r.userID)
}

// DeleteSession forgets a conversation. It reports whether it existed.
func (r *Runner) DeleteSession(conversationID string) bool {
	return r.store.Delete(r.SessionKey(conversationID))
}

// Session state keys written after every turn.
const (
	StateTurns       = "turns"
	StateLastOutcome = "last_outcome"
)

// recordTurn counts the turn in the session state. Callers hold the turn.
func recordTurn(sess *session.Session, res Result) {
	turns, _ := sess.State()[StateTurns].(int)
	sess.SetState(StateTurns, turns+1)
	sess.SetState(StateLastOutcome, string(res.Outcome))
}

// Run handles one turn on a conversation. The user message is appended
// before the model is invoked and stays in the transcript whatever the
// outcome. A final reply is appended with the agent role. Turns on the same
// conversation run one at a time.
func (r *Runner) Run(ctx context.Context, conversationID, text string) Result {
	return r.RunStream(ctx, conversationID, text, nil)
}

// Observer sees every event the runner consumes, in order, up to and
// including the one that resolves the turn.
type Observer func(ev *agent.Event)

// RunStream is Run with an observer for the events consumed along the way.
// observe may be nil.
func (r *Runner) RunStream(ctx context.Context, conversationID, text string, observe Observer) Result {
	logger := r.logger.With("conversation_id", conversationID)

	sess, created, release, err := r.store.Acquire(ctx, r.SessionKey(conversationID), nil)
	if err != nil {
		logger.Warn("turn abandoned while waiting for the session", "error", err)
		return failedResult(classify(ctx, err), err)
	}
	defer release()
	if created {
		logger.Info("created session")
	}
	logger.Debug("turn state", "state", "idle")

	sess.Append(agent.NewUserMessage(text))
	logger.Debug("turn state", "state", "message_appended", "transcript_len", sess.Len())

	res := r.invoke(ctx, logger, sess.Transcript(), observe)
	if res.Outcome == OutcomeFinal {
		sess.Append(agent.NewAgentMessage(res.Text))
	}
	recordTurn(sess, res)

	logger.Debug("turn state", "state", "resolved", "outcome", res.Outcome)
	return res
}

// RunDirect handles a message without a session. The model sees only this
// message.
func (r *Runner) RunDirect(ctx context.Context, text string) Result {
	logger := r.logger.With("direct", true)
	res := r.invoke(ctx, logger, []agent.Message{agent.NewUserMessage(text)}, nil)
	logger.Debug("turn state", "state", "resolved", "outcome", res.Outcome)
	return res
}

func (r *Runner) invoke(ctx context.Context, logger *slog.Logger, transcript []agent.Message, observe Observer) (res Result) {
	invocationID := uuid.New().String()
	logger = logger.With("invocation_id", invocationID)

	defer func() {
		if p := recover(); p != nil {
			logger.Error("model backend panicked", "panic", p)
			res = panicResult(p)
		}
	}()

	// Cancelled once the turn resolves so the backend stops producing.
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Debug("turn state", "state", "invoking")
	events, err := r.invoker.Invoke(scanCtx, &model.Request{
		InvocationID: invocationID,
		Spec:         r.spec,
		Transcript:   transcript,
	})
	if err != nil {
		logger.Warn("model invocation failed", "error", err)
		return failedResult(KindInvocation, err)
	}

	logger.Debug("turn state", "state", "scanning_events")
	text, found, err := resolve(scanCtx, events, observe)
	switch {
	case err != nil:
		kind := classify(ctx, err)
		logger.Warn("turn failed", "kind", kind, "error", err)
		logger.Debug("turn state", "state", "failed")
		return failedResult(kind, err)
	case !found:
		logger.Debug("turn state", "state", "exhausted")
		return exhaustedResult()
	default:
		logger.Debug("turn state", "state", "final")
		return finalResult(text)
	}
}

// Resolve consumes events in order until one is final and carries content,
// returning its first part's text. Later events are not read. found is false
// when the channel closes first. An event carrying Err, or cancellation of
// ctx, ends the scan with that error.
func Resolve(ctx context.Context, events <-chan *agent.Event) (text string, found bool, err error) {
	return resolve(ctx, events, nil)
}

func resolve(ctx context.Context, events <-chan *agent.Event, observe Observer) (string, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return "", false, nil
			}
			if ev == nil {
				continue
			}
			if observe != nil {
				observe(ev)
			}
			if ev.Err != nil {
				return "", false, ev.Err
			}
			if ev.IsFinal() && ev.HasParts() {
				return ev.FirstText(), true, nil
			}
		}
	}
}
