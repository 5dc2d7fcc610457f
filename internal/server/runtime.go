// ABOUTME: Process-wide runtime built once at startup and shared by handlers
// ABOUTME: Wires config into the agent spec, session store, model backend and runner

package server

import (
	"fmt"
	"log/slog"

	"github.com/2389/agent-server/internal/agent"
	"github.com/2389/agent-server/internal/config"
	"github.com/2389/agent-server/internal/model"
	"github.com/2389/agent-server/internal/runner"
	"github.com/2389/agent-server/internal/session"
)

// Runtime holds everything a request needs. It is built by NewRuntime, not
// modified afterwards and released by Close.
type Runtime struct {
	Config     *config.Config
	ConfigPath string // "" when running on built-in defaults
	Spec       agent.Spec
	Store      session.Store
	Runner     *runner.Runner
	Logger     *slog.Logger
}

// RuntimeOption customises NewRuntime.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	invoker    model.Invoker
	configPath string
}

// WithInvoker replaces the model backend chosen by config.
func WithInvoker(inv model.Invoker) RuntimeOption {
	return func(o *runtimeOptions) { o.invoker = inv }
}

// WithConfigPath records which file the config came from.
func WithConfigPath(path string) RuntimeOption {
	return func(o *runtimeOptions) { o.configPath = path }
}

// NewRuntime builds the agent, store and runner from cfg.
func NewRuntime(cfg *config.Config, logger *slog.Logger, opts ...RuntimeOption) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o runtimeOptions
	for _, opt := range opts {
		opt(&o)
	}

	spec, unknown := agent.FromConfig(cfg.Agent)
	for _, name := range unknown {
		logger.Warn("ignoring unknown tool", "tool", name)
	}

	inv := o.invoker
	if inv == nil {
		var err error
		inv, err = model.New(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating model backend: %w", err)
		}
	}

	store := session.NewMemoryStore(session.Options{
		MaxSessions: cfg.Sessions.MaxSessions,
		IdleTTL:     cfg.Sessions.IdleTTL,
		Logger:      logger,
	})

	r, err := runner.New(runner.Options{
		AppName: cfg.Sessions.AppName,
		UserID:  cfg.Sessions.UserID,
		Store:   store,
		Invoker: inv,
		Spec:    spec,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating runner: %w", err)
	}

	logger.Info("agent loaded",
		"agent", spec.Name(),
		"model", spec.Model(),
		"tools", spec.ToolNames(),
		"provider", cfg.Model.Provider)

	return &Runtime{
		Config:     cfg,
		ConfigPath: o.configPath,
		Spec:       spec,
		Store:      store,
		Runner:     r,
		Logger:     logger,
	}, nil
}

// Close releases the runtime's resources.
func (rt *Runtime) Close() error {
	rt.Logger.Info("releasing runtime", "sessions", rt.Store.Len())
	rt.Store.Close()
	return nil
}
