// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

/*
Package services provides suture.Service wrappers for the status dashboard's
long-running components.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (ListenAndServe/Shutdown, Run-with-context to Serve)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections
  - Serves the dashboard's /metrics (promhttp) and /ws (upgrade) routes

WebSocket Hub (WebSocketHubService):
  - Wraps internal/websocket.Hub with context support
  - Handles client connection cleanup on shutdown
  - Broadcasts DUT state transitions, log lines, and escalations to
    connected dashboard clients

# Usage Example

Creating and registering services:

	import (
	    "net/http"
	    "time"

	    "github.com/tomtom215/beamwatch/internal/supervisor"
	    "github.com/tomtom215/beamwatch/internal/supervisor/services"
	)

	func setupSupervisor(server *http.Server, hub *websocket.Hub) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    httpSvc := services.NewHTTPServerService(server, 30*time.Second)
	    tree.AddAPIService(httpSvc)

	    wsSvc := services.NewWebSocketHubService(hub)
	    tree.AddMessagingService(wsSvc)

	    tree.Serve(ctx)
	}

# Lifecycle Patterns

The package handles two lifecycle patterns:

Run-with-context Pattern:

	type ContextHub interface {
	    RunWithContext(ctx context.Context) error // already Serve-shaped
	}

ListenAndServe Pattern:

	type HTTPServer interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *HTTPServerService) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Service Identification

Both services implement fmt.Stringer for logging:

	func (h *HTTPServerService) String() string { return "http-server" }
	func (w *WebSocketHubService) String() string { return "websocket-hub" }

# Thread Safety

All service wrappers are safe for concurrent use:
  - State is protected by mutexes where needed
  - Context cancellation is handled atomically
  - Multiple Serve calls are not supported (undefined behavior)

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - internal/websocket: WebSocket hub implementation
  - internal/dashboard: the chi router these services expose
*/
package services
