// ABOUTME: Tailscale tsnet listeners so the agent can be served on a tailnet
// ABOUTME: Resolves state dir and auth key, then listens for HTTP (or Funnel) and gRPC

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
)

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "agent-server", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// grpcPort extracts the port from server.grpc_addr for use on the tailnet.
func grpcPort(addr string) (string, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("parsing gRPC address %q: %w", addr, err)
	}
	return port, nil
}

// setupTailscaleListeners starts a tsnet node and listens on it. HTTP goes
// to :80, or public :443 when Funnel is on. gRPC uses the port of
// server.grpc_addr.
func (s *Server) setupTailscaleListeners(ctx context.Context) (httpLn, grpcLn net.Listener, err error) {
	tsCfg := s.rt.Config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	if tsCfg.Funnel {
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		httpLn, err = s.tsnetServer.ListenFunnel("tcp", ":443")
	} else {
		httpLn, err = s.tsnetServer.Listen("tcp", ":80")
	}
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}

	if s.grpcServer != nil {
		port, err := grpcPort(s.rt.Config.Server.GRPCAddr)
		if err == nil {
			grpcLn, err = s.tsnetServer.Listen("tcp", ":"+port)
		}
		if err != nil {
			_ = httpLn.Close()
			_ = s.tsnetServer.Close()
			return nil, nil, fmt.Errorf("listening on tailscale gRPC port: %w", err)
		}
	}

	return httpLn, grpcLn, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}
