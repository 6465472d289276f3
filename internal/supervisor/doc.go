// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

/*
Package supervisor provides process supervision for the DUT fleet process
using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of every long-running service in the process: one DutSupervisor
per Device Under Test, plus the status dashboard's WebSocket hub and HTTP
server. It provides Erlang/OTP-style supervision with automatic restart,
failure isolation, and graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure isolation:

	RootSupervisor ("beamwatch")
	├── DataSupervisor ("data-layer")
	│   └── DutSupervisor, one per enabled DUT
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocketHubService (dashboard)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (/metrics, /ws)

This hierarchy ensures that:
  - A crash in one DUT's supervisor doesn't affect any other DUT
  - Dashboard failures don't impact the recovery ladder for any DUT
  - Each layer can restart independently

# Key Features

Automatic Restart:
  - Crashed services are automatically restarted
  - Exponential backoff prevents restart storms
  - Configurable failure thresholds and decay rates

Failure Isolation:
  - Services are organized into logical groups
  - Child supervisor failures don't propagate upward
  - Each layer has independent failure counting

Graceful Shutdown:
  - Context cancellation triggers orderly shutdown
  - Configurable shutdown timeout per service
  - UnstoppedServiceReport for debugging hangs

Structured Logging:
  - Integration with slog for structured events
  - Logs service starts, stops, failures, and restarts
  - Event hooks via sutureslog adapter

# Usage Example

Basic setup in main.go:

	import (
	    "log/slog"
	    "github.com/tomtom215/beamwatch/internal/supervisor"
	    "github.com/tomtom215/beamwatch/internal/supervisor/services"
	)

	func main() {
	    logger := slog.Default()
	    config := supervisor.DefaultTreeConfig()

	    tree, err := supervisor.NewSupervisorTree(logger, config)
	    if err != nil {
	        log.Fatal(err)
	    }

	    // Add services to appropriate layers
	    tree.AddAPIService(services.NewHTTPServerService(dashboardServer, timeout))
	    tree.AddMessagingService(services.NewWebSocketHubService(hub))
	    for _, dut := range enabledDuts {
	        tree.AddDataService(dut)
	    }

	    // Start the tree (blocks until context canceled)
	    ctx := context.Background()
	    if err := tree.Serve(ctx); err != nil {
	        log.Printf("Supervisor stopped: %v", err)
	    }
	}

Background operation:

	// Start in background
	errChan := tree.ServeBackground(ctx)

	// Do other setup...

	// Wait for shutdown
	if err := <-errChan; err != nil {
	    log.Printf("Supervisor error: %v", err)
	}

# Configuration

The TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,          // Failures before backoff
	    FailureDecay:     30.0,         // Seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // Backoff duration
	    ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

Default values match suture's production-ready defaults:
  - FailureThreshold: 5 failures
  - FailureDecay: 30 seconds
  - FailureBackoff: 15 seconds
  - ShutdownTimeout: 10 seconds

# Failure Handling

The supervisor uses a failure counter with exponential decay:

1. Each service failure increments the counter
2. Counter decays exponentially over time (FailureDecay seconds)
3. When counter exceeds FailureThreshold, supervisor enters backoff
4. During backoff, restarts are delayed by FailureBackoff duration
5. If failures continue, the child supervisor may be restarted by parent

Note that a DutSupervisor returning an error here is an uncaught fault:
Suture restarts it with the backoff above and the sutureslog event hook logs
the failure. Nothing else reacts to it: the shared cancellation signal is not
fired, the process does not exit, and the rest of the fleet keeps running.

# Service Interface

All services must implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: Service stopped cleanly, will not be restarted
  - Return error: Service crashed, will be restarted
  - Context canceled: Shutdown requested, return promptly

# Debugging Shutdown Issues

If services don't stop within the timeout:

	// Get report of unstopped services
	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("Service didn't stop: %v", svc)
	}

Common causes:
  - A DutSupervisor blocked on UDP receive without honoring the deadline
  - A ShellSession or SwitchDriver call not observing the cancel signal
  - Mutex deadlocks during shutdown

# Thread Safety

The SupervisorTree is safe for concurrent use:
  - Services can be added from any goroutine
  - Remove operations are synchronized
  - Multiple services can crash simultaneously

# See Also

  - internal/supervisor/services: Service wrappers
  - internal/orchestrator: builds the per-DUT service set added here
  - github.com/thejerf/suture/v4: Underlying library
*/
package supervisor
