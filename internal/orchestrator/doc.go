// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package orchestrator is C6 from the specification: it reads the server
// configuration, loads one DutConfig per enabled github.com/tomtom215/beamwatch/internal/config.MachineEntry,
// and instantiates one dutsupervisor.Supervisor per DUT under the shared
// suture.Supervisor data-layer tree. It owns no recovery-ladder logic of its
// own - loading the DUT configurations and registering one supervisor per
// enabled DUT is its entire responsibility; starting, cancelling and joining
// the supervisors is done by the tree that main serves.
package orchestrator
