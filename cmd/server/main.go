// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package main is the entry point for the beamwatch server.
//
// beamwatch is a long-running supervisor for a fleet of Devices Under Test
// (DUTs) in a radiation-beam experiment. Each DUT streams UDP telemetry
// while it runs a compute benchmark; beamwatch collects that telemetry into
// per-run log files and drives a graduated recovery ladder - restart the
// benchmark over a remote shell, reboot the DUT's OS, then hard-cycle its
// power through a network-controlled switch - whenever a DUT stops
// responding or exceeds its command execution window.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. CLI: parse -c/--config, defaulting to ./server_parameters.yaml
//  2. Configuration: load the server YAML via Koanf v2 (defaults -> file -> env)
//  3. Logging: initialize zerolog from the loaded log_level/log_format
//  4. Supervisor tree: one suture.Supervisor per layer (data/messaging/api)
//  5. Dashboard: WebSocket hub (messaging layer) + chi router (api layer)
//  6. Orchestrator: one DutSupervisor per enabled machines[] entry (data layer)
//  7. Signal handling: SIGINT/SIGTERM fire the shared cancellation context
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - BEAMWATCH_-prefixed environment variables
//   - The YAML file named by -c/--config
//   - Built-in struct defaults
//
// # Exit codes
//
// 0 on a normal, operator-requested shutdown; 130 on SIGINT/SIGTERM; 2 on
// configuration/startup failure; 3 reserved for an uncaught supervisor fault.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/beamwatch/internal/config"
	"github.com/tomtom215/beamwatch/internal/dashboard"
	"github.com/tomtom215/beamwatch/internal/logging"
	"github.com/tomtom215/beamwatch/internal/orchestrator"
	"github.com/tomtom215/beamwatch/internal/supervisor"
	"github.com/tomtom215/beamwatch/internal/supervisor/services"
	"github.com/tomtom215/beamwatch/internal/websocket"
)

// Exit codes per §6/§7 of the specification.
const (
	exitNormal      = 0
	exitInterrupt   = 130
	exitFault       = 2 // configuration/startup failure
	exitFaultWorker = 3 // uncaught supervisor-level fault
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("c", config.DefaultServerConfigPath, "path to the server YAML configuration file")
	flag.StringVar(configPath, "config", config.DefaultServerConfigPath, "path to the server YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		logging.Error().Err(err).Str("config", *configPath).Msg("failed to load server configuration")
		return exitFault
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logging.Info().Str("config", *configPath).Msg("starting beamwatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	if err != nil {
		logging.Error().Err(err).Msg("failed to create supervisor tree")
		return exitFault
	}

	hub := websocket.NewHub()
	tree.AddMessagingService(services.NewWebSocketHubService(hub))

	switch {
	case cfg.DashboardAddr != "":
		// The dashboard router already mounts /metrics alongside /ws, so a
		// separate metrics_addr is redundant once dashboard_addr is set.
		addAPIHTTPService(tree, cfg.DashboardAddr, dashboard.NewRouter(hub), cfg.ShutdownTimeout, "dashboard")
	case cfg.MetricsAddr != "":
		addAPIHTTPService(tree, cfg.MetricsAddr, promMetricsOnlyRouter(), cfg.ShutdownTimeout, "metrics")
	default:
		logging.Info().Msg("neither dashboard_addr nor metrics_addr set, running without an http surface")
	}

	orch := orchestrator.New(cfg, tree, hub)
	if err := orch.LoadAndRegister(); err != nil {
		logging.Error().Err(err).Msg("failed to load dut fleet configuration")
		return exitFault
	}
	logging.Info().Int("duts", orch.DutCount()).Msg("dut supervisors registered")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	interrupted := false
	go func() {
		sig := <-sigCh
		interrupted = true
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	faulted := false
	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor tree to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree exited with error")
			faulted = true
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree shutdown error")
			faulted = true
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	switch {
	case faulted:
		logging.Error().Msg("beamwatch stopped after an uncaught supervisor fault")
		return exitFaultWorker
	case interrupted:
		logging.Info().Msg("beamwatch stopped after operator interrupt")
		return exitInterrupt
	default:
		logging.Info().Msg("beamwatch stopped normally")
		return exitNormal
	}
}

// addAPIHTTPService wraps router behind an *http.Server and registers it on
// the tree's api layer, logging which surface (dashboard vs metrics-only)
// came up on which address.
func addAPIHTTPService(tree *supervisor.SupervisorTree, addr string, router chi.Router, shutdownTimeout time.Duration, kind string) {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(httpSrv, shutdownTimeout))
	logging.Info().Str("addr", addr).Str("kind", kind).Msg("http service added to supervisor tree")
}

// promMetricsOnlyRouter serves just /metrics, for operators who want
// Prometheus scraping without the WebSocket dashboard.
func promMetricsOnlyRouter() chi.Router {
	r := chi.NewRouter()
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}
