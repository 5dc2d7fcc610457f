// Package server exposes an agent over HTTP.
//
// # Runtime
//
// NewRuntime builds everything a request needs from configuration: the
// agent spec, the session store, the model backend and the runner. Handlers
// receive it through the Server rather than through package globals.
//
//	rt, err := server.NewRuntime(cfg, logger, server.WithConfigPath(path))
//	defer rt.Close()
//
// # Modes
//
// The routes depend on server.mode:
//
//   - runner: GET /, GET /list-apps, GET /config, POST /run, POST /chat,
//     GET /sessions/{id}
//   - direct: GET /, GET /config, POST /chat (stateless)
//   - comparison: GET /, POST /direct, POST /runner, GET /sessions/{id}
//
// GET /health and GET /help are always available.
//
// # Error status
//
// By default a failed turn is still a 200 whose response text starts with
// "Error: ". With server.error_status set to strict the server answers 502
// for model failures, 504 for cancelled turns and 500 for panics, and
// includes the structured error in the body.
//
// # Listeners
//
// Run serves HTTP on server.host:server.port, or on a tailnet through tsnet
// when tailscale.enabled is set. When server.grpc_addr is set it also serves
// the standard gRPC health service. Cancelling the context shuts everything
// down with a five second grace period.
package server
