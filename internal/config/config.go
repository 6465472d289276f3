// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package config

import "time"

// MachineEntry names one per-DUT configuration file and whether it should be
// started by the orchestrator.
type MachineEntry struct {
	Enabled bool   `koanf:"enabled"`
	CfgFile string `koanf:"cfg_file"`
}

// CircuitBreakerConfig tunes the gobreaker wrapping around a DUT's shell and
// switch legs. Zero values are replaced with DefaultCircuitBreakerConfig by
// the structs.Provider defaults layer.
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// ServerConfig is the top-level process configuration: where to run the
// orchestrator, where DUT logs land, and which DUT configuration files to
// load.
type ServerConfig struct {
	ServerIP          string         `koanf:"server_ip"`
	ServerLogFile     string         `koanf:"server_log_file"`
	ServerLogStoreDir string         `koanf:"server_log_store_dir"`
	Machines          []MachineEntry `koanf:"machines"`

	LogLevel        string        `koanf:"log_level"`
	LogFormat       string        `koanf:"log_format"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	DashboardAddr   string        `koanf:"dashboard_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DutConfig is the per-DUT configuration record loaded from one of
// ServerConfig.Machines' CfgFile entries.
type DutConfig struct {
	IP       string `koanf:"ip"`
	Hostname string `koanf:"hostname"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	ReceivePort         int           `koanf:"receive_port"`
	BootWaitingTime     time.Duration `koanf:"boot_waiting_time"`
	MaxTimeoutTime      time.Duration `koanf:"max_timeout_time"`
	PowerSwitchIP       string        `koanf:"power_switch_ip"`
	PowerSwitchPort     int           `koanf:"power_switch_port"`
	PowerSwitchModel    string        `koanf:"power_switch_model"`
	PowerSwitchOutlet   int           `koanf:"power_switch_outlet"`
	JSONFiles           []string      `koanf:"json_files"`
	DisableOSSoftReboot bool          `koanf:"disable_os_soft_reboot"`

	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
}

// DefaultServerConfig returns the struct defaults fed to koanf's
// structs.Provider before the YAML file and environment overrides are
// layered on top.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ServerLogStoreDir: "./logs",
		LogLevel:          "info",
		LogFormat:         "console",
		ShutdownTimeout:   15 * time.Second,
	}
}

// DefaultDutConfig returns the struct defaults for a per-DUT record.
func DefaultDutConfig() DutConfig {
	return DutConfig{
		BootWaitingTime:   90 * time.Second,
		MaxTimeoutTime:    30 * time.Second,
		PowerSwitchModel:  "default",
		PowerSwitchOutlet: 1,
		CircuitBreaker:    DefaultCircuitBreakerConfig(),
	}
}

// DefaultCircuitBreakerConfig gives the shell/switch breakers a conservative
// starting point: 3 half-open probes, a 1 minute rolling window, a 2 minute
// open-state cooldown, tripping once 60% of requests in the window fail.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		FailureRatio: 0.6,
	}
}
