// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package dashboard exposes the operator-facing read surface named in §2/C6
// and §6 of the specification: a Prometheus /metrics endpoint and a /ws
// endpoint that upgrades into the internal/websocket.Hub so a browser can
// watch state transitions, escalations, and live log lines for the fleet.
// The dashboard is a pure consumer of events the supervisors emit; it sits
// outside the recovery path entirely, per §5's "a separate worker may drive
// the optional status dashboard ... not on the recovery path".
package dashboard
