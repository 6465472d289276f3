// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package config

import "fmt"

// Validate checks the server configuration for the minimum set of fields
// the orchestrator needs before it can start any DUT supervisor.
func (c ServerConfig) Validate() error {
	if c.ServerLogStoreDir == "" {
		return fmt.Errorf("config: server_log_store_dir is required")
	}
	if len(c.Machines) == 0 {
		return fmt.Errorf("config: machines list must not be empty")
	}
	for i, m := range c.Machines {
		if m.CfgFile == "" {
			return fmt.Errorf("config: machines[%d].cfg_file is required", i)
		}
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: shutdown_timeout must be positive")
	}
	return nil
}

// Validate checks one DUT's configuration for the fields required to drive
// the UDP loop, the shell, and the power switch.
func (c DutConfig) Validate() error {
	if c.IP == "" {
		return fmt.Errorf("config: ip is required")
	}
	if c.Hostname == "" {
		return fmt.Errorf("config: hostname is required")
	}
	if c.ReceivePort <= 0 || c.ReceivePort > 65535 {
		return fmt.Errorf("config: receive_port %d out of range", c.ReceivePort)
	}
	if c.BootWaitingTime <= 0 {
		return fmt.Errorf("config: boot_waiting_time must be positive")
	}
	if c.MaxTimeoutTime <= 0 {
		return fmt.Errorf("config: max_timeout_time must be positive")
	}
	if c.PowerSwitchIP == "" {
		return fmt.Errorf("config: power_switch_ip is required")
	}
	if c.PowerSwitchPort <= 0 || c.PowerSwitchPort > 65535 {
		return fmt.Errorf("config: power_switch_port %d out of range", c.PowerSwitchPort)
	}
	if c.PowerSwitchModel == "" {
		return fmt.Errorf("config: power_switch_model is required")
	}
	if len(c.JSONFiles) == 0 {
		return fmt.Errorf("config: json_files must not be empty")
	}
	if c.CircuitBreaker.FailureRatio <= 0 || c.CircuitBreaker.FailureRatio > 1 {
		return fmt.Errorf("config: circuit_breaker.failure_ratio must be in (0,1]")
	}
	return nil
}
