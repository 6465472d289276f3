// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package dutsupervisor implements the per-DUT state machine (component
// C5): UDP telemetry ingestion in RUNNING, and the graduated soft-app ->
// soft-OS -> hard-power recovery ladder described in §4.5.
//
// A Supervisor owns exactly one DUT's UDP endpoint, shellsession.Dialer,
// switchdriver.Driver, rotator.Rotator and current dutlog.Log. It is not
// safe for concurrent use; the orchestrator runs one Supervisor per DUT
// under its own suture.Service slot, so there is never more than one
// goroutine driving a given Supervisor's state.
//
// Grounded on internal/supervisor/services/http_service.go's
// ctx-cancellation idiom (start the blocking half in a goroutine or select
// on ctx.Done() directly at every suspension point) generalised from "one
// HTTP server" to "one state machine with many suspension points" - a
// DutSupervisor sleeps far more often than an HTTP server waits, so every
// sleep in this package is its own small select against ctx.Done() rather
// than a single top-level one.
package dutsupervisor
