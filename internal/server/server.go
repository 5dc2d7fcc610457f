// ABOUTME: HTTP server exposing the agent, with optional gRPC health and tailscale listeners
// ABOUTME: Routes depend on the configured mode; all listeners share one errgroup lifecycle

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"tailscale.com/tsnet"

	"github.com/2389/agent-server/internal/config"
)

const (
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 1 << 20
)

// Server serves one Runtime over HTTP.
type Server struct {
	rt         *Runtime
	mode       string
	strict     bool
	helpHTML   []byte
	httpServer *http.Server
	logger     *slog.Logger

	// grpcServer and health are nil unless server.grpc_addr is set
	grpcServer *grpc.Server
	health     *health.Server

	tsnetServer *tsnet.Server

	mu       sync.Mutex
	httpAddr net.Addr
	grpcAddr net.Addr
}

// New builds the server and registers the routes for rt's mode.
func New(rt *Runtime) (*Server, error) {
	cfg := rt.Config
	s := &Server{
		rt:     rt,
		mode:   cfg.Server.Mode,
		strict: cfg.Server.ErrorStatus == config.ErrorStatusStrict,
		logger: rt.Logger.With("component", "server", "mode", cfg.Server.Mode),
	}

	helpHTML, err := renderHelp(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("rendering help page: %w", err)
	}
	s.helpHTML = helpHTML

	mux := http.NewServeMux()
	if err := s.registerRoutes(mux); err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Server.GRPCAddr != "" {
		s.grpcServer = grpc.NewServer(
			grpc.KeepaliveParams(keepalive.ServerParameters{
				Time:    15 * time.Second,
				Timeout: 5 * time.Second,
			}),
			grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
				MinTime:             5 * time.Second,
				PermitWithoutStream: true,
			}),
		)
		s.health = health.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
	}

	return s, nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) error {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /help", s.handleHelp)

	switch s.mode {
	case config.ModeRunner:
		mux.HandleFunc("GET /{$}", s.handleRoot)
		mux.HandleFunc("GET /list-apps", s.handleListApps)
		mux.HandleFunc("GET /config", s.handleConfig)
		mux.HandleFunc("POST /run", s.handleRun)
		mux.HandleFunc("POST /chat", s.handleRun)
		mux.HandleFunc("POST /run_sse", s.handleRunSSE)
		mux.HandleFunc("GET /sessions/{id}", s.handleSession)
		mux.HandleFunc("GET /sessions", s.handleListSessions)
		mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	case config.ModeDirect:
		mux.HandleFunc("GET /{$}", s.handleRoot)
		mux.HandleFunc("GET /config", s.handleConfig)
		mux.HandleFunc("POST /chat", s.handleDirectChat)
	case config.ModeComparison:
		mux.HandleFunc("GET /{$}", s.handleComparisonInfo)
		mux.HandleFunc("POST /direct", s.handleCompareDirect)
		mux.HandleFunc("POST /runner", s.handleCompareRunner)
		mux.HandleFunc("GET /sessions/{id}", s.handleSession)
		mux.HandleFunc("GET /sessions", s.handleListSessions)
		mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	default:
		return fmt.Errorf("unknown server mode %q", s.mode)
	}
	return nil
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPAddr returns the address the HTTP listener is bound to, or nil before
// Run has started listening.
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// GRPCAddr returns the address of the gRPC health listener, or nil.
func (s *Server) GRPCAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grpcAddr
}

// Run serves until ctx is cancelled or a listener fails, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpLn, grpcLn, err := s.setupListeners(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.httpAddr = httpLn.Addr()
	if grpcLn != nil {
		s.grpcAddr = grpcLn.Addr()
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := s.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if grpcLn != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(s.rt.Spec.Name(), healthpb.HealthCheckResponse_SERVING)
		g.Go(func() error {
			s.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := s.grpcServer.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("gRPC server error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.gracefulShutdown()
	})

	return g.Wait()
}

// gracefulShutdown uses a fresh context since the run context is already
// cancelled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the listeners and waits for in-flight requests until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))

	if s.grpcServer != nil {
		s.health.Shutdown()
		s.shutdownGRPCServer(ctx)
	}

	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// shutdownGRPCServer stops gracefully, or forcibly once ctx is done.
func (s *Server) shutdownGRPCServer(ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
}

func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func (s *Server) setupListeners(ctx context.Context) (httpLn, grpcLn net.Listener, err error) {
	if s.rt.Config.Tailscale.Enabled {
		return s.setupTailscaleListeners(ctx)
	}

	httpLn, err = net.Listen("tcp", s.rt.Config.Server.Addr())
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address %s: %w", s.rt.Config.Server.Addr(), err)
	}

	if s.grpcServer != nil {
		grpcLn, err = net.Listen("tcp", s.rt.Config.Server.GRPCAddr)
		if err != nil {
			_ = httpLn.Close()
			return nil, nil, fmt.Errorf("listening on gRPC address %s: %w", s.rt.Config.Server.GRPCAddr, err)
		}
	}
	return httpLn, grpcLn, nil
}
