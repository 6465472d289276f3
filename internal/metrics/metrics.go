// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - UDP telemetry ingestion per DUT
// - DutLog file lifecycle
// - Recovery-ladder escalations (soft-app, soft-OS, hard power cycle)
// - ShellSession and SwitchDriver outcomes
// - The gobreaker circuit breakers wrapping both legs

var (
	// DatagramsReceived counts UDP datagrams accepted into a DUT's log.
	DatagramsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beamwatch_datagrams_received_total",
			Help: "Total number of UDP datagrams appended to a DUT log",
		},
		[]string{"hostname"},
	)

	// ReceiveTimeouts counts UDP receive timeouts per DUT.
	ReceiveTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beamwatch_receive_timeouts_total",
			Help: "Total number of UDP receive timeouts observed by a DUT supervisor",
		},
		[]string{"hostname"},
	)

	// SupervisorState reports the current DutSupervisor state as a gauge with
	// one active value per hostname (1 for the current state, 0 otherwise is
	// not tracked; instead the gauge holds a small integer code).
	SupervisorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beamwatch_supervisor_state",
			Help: "Current DutSupervisor state (0=BOOTING,1=RUNNING,2=SOFT_APP,3=SOFT_OS,4=HARD,5=STOPPED)",
		},
		[]string{"hostname"},
	)

	// EscalationsTotal counts every transition into a recovery rung.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beamwatch_escalations_total",
			Help: "Total number of recovery-ladder escalations by rung",
		},
		[]string{"hostname", "rung"}, // rung: soft_app, soft_os, hard
	)

	// HardCycleRestSeconds observes the rest actually spent between switch OFF
	// and ON in a hard power cycle (2s nominal, 1800s in overflow mode per §3;
	// shorter when the cycle is cancelled during the rest).
	HardCycleRestSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beamwatch_hard_cycle_rest_seconds",
			Help:    "Rest interval used between switch OFF and ON during a hard power cycle",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 300, 1800},
		},
	)

	// ActiveDuts reports the number of DUT supervisors currently running.
	ActiveDuts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beamwatch_active_duts",
			Help: "Current number of enabled DUT supervisors running",
		},
	)

	// LogFilesCreated counts DutLog files lazily created.
	LogFilesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beamwatch_log_files_created_total",
			Help: "Total number of DutLog files created",
		},
		[]string{"hostname"},
	)

	// LogFilesSealed counts DutLog files sealed, by end-status tag.
	LogFilesSealed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beamwatch_log_files_sealed_total",
			Help: "Total number of DutLog files sealed, by end-status reason",
		},
		[]string{"hostname", "reason"},
	)

	// ShellOutcomes counts ShellSession login/launch attempts by result kind.
	ShellOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beamwatch_shell_outcomes_total",
			Help: "Total number of ShellSession operations by outcome",
		},
		[]string{"hostname", "outcome"}, // success, host_unreachable, shell_error
	)

	// SwitchOutcomes counts SwitchDriver calls by result kind.
	SwitchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beamwatch_switch_outcomes_total",
			Help: "Total number of SwitchDriver operations by outcome",
		},
		[]string{"hostname", "op", "outcome"}, // op: off, on, cycle
	)

	// CircuitBreakerState reports the gobreaker state for each named
	// breaker (one per DUT shell leg, one per DUT switch leg).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beamwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerTransitions counts every circuit breaker state change.
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beamwatch_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// CircuitBreakerRequests counts requests passed through a breaker by
	// outcome (success, failure, rejected).
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beamwatch_circuit_breaker_requests_total",
			Help: "Total number of circuit breaker protected requests by outcome",
		},
		[]string{"name", "outcome"},
	)

	// CircuitBreakerConsecutiveFailures tracks the breaker's current
	// consecutive-failure streak, reset to 0 on any success or on
	// transition back to closed.
	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beamwatch_circuit_breaker_consecutive_failures",
			Help: "Current consecutive failure count observed by a circuit breaker",
		},
		[]string{"name"},
	)

	// WSConnections reports active dashboard WebSocket clients.
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beamwatch_websocket_connections",
			Help: "Current number of active dashboard WebSocket connections",
		},
	)
)

// supervisorStateCode maps a human-readable state name to the numeric code
// recorded in SupervisorState, per the encoding documented on the metric.
var supervisorStateCode = map[string]float64{
	"BOOTING":  0,
	"RUNNING":  1,
	"SOFT_APP": 2,
	"SOFT_OS":  3,
	"HARD":     4,
	"STOPPED":  5,
}

// RecordSupervisorState sets the SupervisorState gauge for hostname to the
// numeric code for state. Unknown state names are recorded as -1.
func RecordSupervisorState(hostname, state string) {
	code, ok := supervisorStateCode[state]
	if !ok {
		code = -1
	}
	SupervisorState.WithLabelValues(hostname).Set(code)
}

// RecordEscalation increments EscalationsTotal for one rung.
func RecordEscalation(hostname, rung string) {
	EscalationsTotal.WithLabelValues(hostname, rung).Inc()
}

// RecordHardCycleRest observes the rest interval used for a hard power cycle.
func RecordHardCycleRest(d time.Duration) {
	HardCycleRestSeconds.Observe(d.Seconds())
}

// RecordLogSealed increments LogFilesSealed for the given end-status reason.
func RecordLogSealed(hostname, reason string) {
	LogFilesSealed.WithLabelValues(hostname, reason).Inc()
}

// RecordShellOutcome increments ShellOutcomes for one ShellSession call.
func RecordShellOutcome(hostname, outcome string) {
	ShellOutcomes.WithLabelValues(hostname, outcome).Inc()
}

// RecordSwitchOutcome increments SwitchOutcomes for one SwitchDriver call.
func RecordSwitchOutcome(hostname, op, outcome string) {
	SwitchOutcomes.WithLabelValues(hostname, op, outcome).Inc()
}
