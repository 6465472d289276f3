// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package orchestrator

import (
	"fmt"
	"os"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/beamwatch/internal/config"
	"github.com/tomtom215/beamwatch/internal/dutsupervisor"
	"github.com/tomtom215/beamwatch/internal/logging"
	"github.com/tomtom215/beamwatch/internal/websocket"
)

// Tree is the subset of supervisor.SupervisorTree the orchestrator needs:
// one data-layer slot per DUT supervisor.
type Tree interface {
	AddDataService(svc suture.Service) suture.ServiceToken
}

// Orchestrator is C6: it turns a ServerConfig's enabled machine entries into
// one running dutsupervisor.Supervisor each, registered on the supervisor
// tree's data layer for fault-isolated restart.
type Orchestrator struct {
	cfg  config.ServerConfig
	tree Tree
	hub  *websocket.Hub

	duts []string // hostnames, in registration order, for status reporting
}

// New constructs an Orchestrator. hub may be nil if no dashboard is wired.
func New(cfg config.ServerConfig, tree Tree, hub *websocket.Hub) *Orchestrator {
	return &Orchestrator{cfg: cfg, tree: tree, hub: hub}
}

// LoadAndRegister ensures the log store directory exists, then loads and
// registers one DutSupervisor per enabled machines[] entry. A failure to
// load or validate any one DUT's configuration file is fatal to the whole
// orchestrator per §7's "Configuration errors at startup are fatal ... and
// cause a non-zero exit before any supervisor starts" - so errors here are
// returned before a single supervisor is added to the tree.
func (o *Orchestrator) LoadAndRegister() error {
	if err := os.MkdirAll(o.cfg.ServerLogStoreDir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: creating log store dir %s: %w", o.cfg.ServerLogStoreDir, err)
	}

	type built struct {
		cfg config.DutConfig
		sup *dutsupervisor.Supervisor
	}

	supervisors := make([]built, 0, len(o.cfg.Machines))
	for _, m := range o.cfg.Machines {
		if !m.Enabled {
			logging.Info().Str("cfg_file", m.CfgFile).Msg("dut entry disabled, skipping")
			continue
		}

		dutCfg, err := config.LoadDutConfig(m.CfgFile)
		if err != nil {
			return fmt.Errorf("orchestrator: loading dut config %s: %w", m.CfgFile, err)
		}

		sup, err := dutsupervisor.New(dutCfg, o.cfg.ServerLogStoreDir, o.hub)
		if err != nil {
			return fmt.Errorf("orchestrator: constructing supervisor for %s: %w", dutCfg.Hostname, err)
		}

		supervisors = append(supervisors, built{cfg: dutCfg, sup: sup})
	}

	if len(supervisors) == 0 {
		logging.Warn().Msg("no enabled dut entries, orchestrator has nothing to supervise")
	}

	for _, b := range supervisors {
		o.tree.AddDataService(b.sup)
		o.duts = append(o.duts, b.cfg.Hostname)
		logging.Info().
			Str("hostname", b.cfg.Hostname).
			Str("ip", b.cfg.IP).
			Int("receive_port", b.cfg.ReceivePort).
			Msg("dut supervisor registered")
	}

	return nil
}

// DutCount returns the number of DUT supervisors registered.
func (o *Orchestrator) DutCount() int {
	return len(o.duts)
}

// Hostnames returns the hostnames of registered DUTs, in registration order.
func (o *Orchestrator) Hostnames() []string {
	return append([]string(nil), o.duts...)
}
