// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordSupervisorState tests the state-name-to-code mapping.
func TestRecordSupervisorState(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		state    string
		want     float64
	}{
		{"booting", "dut-01", "BOOTING", 0},
		{"running", "dut-01", "RUNNING", 1},
		{"soft app", "dut-01", "SOFT_APP", 2},
		{"soft os", "dut-01", "SOFT_OS", 3},
		{"hard", "dut-01", "HARD", 4},
		{"stopped", "dut-01", "STOPPED", 5},
		{"unknown state", "dut-01", "BOGUS", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordSupervisorState(tt.hostname, tt.state)
			got := testutil.ToFloat64(SupervisorState.WithLabelValues(tt.hostname))
			if got != tt.want {
				t.Errorf("RecordSupervisorState(%q, %q) = %v, want %v", tt.hostname, tt.state, got, tt.want)
			}
		})
	}
}

// TestRecordEscalation verifies the counter increments per rung.
func TestRecordEscalation(t *testing.T) {
	hostname := "dut-escalation-test"

	RecordEscalation(hostname, "soft_app")
	RecordEscalation(hostname, "soft_app")
	RecordEscalation(hostname, "hard")

	if got := testutil.ToFloat64(EscalationsTotal.WithLabelValues(hostname, "soft_app")); got != 2 {
		t.Errorf("soft_app escalations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(EscalationsTotal.WithLabelValues(hostname, "hard")); got != 1 {
		t.Errorf("hard escalations = %v, want 1", got)
	}
}

// TestRecordHardCycleRest verifies the observation does not panic across a
// range of rest intervals, including the overflow ladder's 1800s rest.
func TestRecordHardCycleRest(t *testing.T) {
	durations := []time.Duration{
		2 * time.Second,
		5 * time.Second,
		30 * time.Minute,
	}
	for _, d := range durations {
		RecordHardCycleRest(d)
	}
}

// TestRecordLogSealed verifies the counter increments per end-status reason.
func TestRecordLogSealed(t *testing.T) {
	hostname := "dut-log-test"

	RecordLogSealed(hostname, "#SERVER_END")
	RecordLogSealed(hostname, "#SERVER_DUE:power cycle")
	RecordLogSealed(hostname, "#SERVER_DUE:power cycle")

	if got := testutil.ToFloat64(LogFilesSealed.WithLabelValues(hostname, "#SERVER_END")); got != 1 {
		t.Errorf("#SERVER_END seals = %v, want 1", got)
	}
	if got := testutil.ToFloat64(LogFilesSealed.WithLabelValues(hostname, "#SERVER_DUE:power cycle")); got != 2 {
		t.Errorf("#SERVER_DUE:power cycle seals = %v, want 2", got)
	}
}

// TestRecordShellOutcome verifies the counter increments per outcome.
func TestRecordShellOutcome(t *testing.T) {
	hostname := "dut-shell-test"

	RecordShellOutcome(hostname, "success")
	RecordShellOutcome(hostname, "host_unreachable")
	RecordShellOutcome(hostname, "success")

	if got := testutil.ToFloat64(ShellOutcomes.WithLabelValues(hostname, "success")); got != 2 {
		t.Errorf("success outcomes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ShellOutcomes.WithLabelValues(hostname, "host_unreachable")); got != 1 {
		t.Errorf("host_unreachable outcomes = %v, want 1", got)
	}
}

// TestRecordSwitchOutcome verifies the counter increments per op/outcome pair.
func TestRecordSwitchOutcome(t *testing.T) {
	hostname := "dut-switch-test"

	RecordSwitchOutcome(hostname, "cycle", "success")
	RecordSwitchOutcome(hostname, "off", "switch_unreachable")

	if got := testutil.ToFloat64(SwitchOutcomes.WithLabelValues(hostname, "cycle", "success")); got != 1 {
		t.Errorf("cycle/success outcomes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(SwitchOutcomes.WithLabelValues(hostname, "off", "switch_unreachable")); got != 1 {
		t.Errorf("off/switch_unreachable outcomes = %v, want 1", got)
	}
}

// TestDatagramsReceived verifies the counter is independently addressable
// per hostname.
func TestDatagramsReceived(t *testing.T) {
	DatagramsReceived.WithLabelValues("dut-a").Inc()
	DatagramsReceived.WithLabelValues("dut-a").Inc()
	DatagramsReceived.WithLabelValues("dut-b").Inc()

	if got := testutil.ToFloat64(DatagramsReceived.WithLabelValues("dut-a")); got != 2 {
		t.Errorf("dut-a datagrams = %v, want 2", got)
	}
	if got := testutil.ToFloat64(DatagramsReceived.WithLabelValues("dut-b")); got != 1 {
		t.Errorf("dut-b datagrams = %v, want 1", got)
	}
}
