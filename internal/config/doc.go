// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package config loads and validates the supervisor's server and per-DUT
// configuration records from layered YAML + environment sources.
//
// Layering follows the same koanf pattern throughout: struct defaults, then
// a YAML file, then BEAMWATCH_-prefixed environment variable overrides.
package config
