// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package metrics registers the Prometheus instrumentation for the DUT
// fleet supervisor: datagrams received, escalation-ladder transitions, log
// file lifecycle, and switch/shell/circuit-breaker outcomes. All metrics
// are process-global promauto registrations, matching the teacher's own
// metrics package convention.
package metrics
