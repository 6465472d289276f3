// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package switchdriver implements the vendor-polymorphic power control
// capability (component C1): turning a numbered outlet on a
// network-controlled power switch OFF, ON, or cycling it with a rest
// interval.
//
// A Driver is selected at construction time by a vendor tag string
// ("lindy", "default", ...); an unrecognised tag fails construction with
// opstatus.UnknownSwitchModel. The vendor protocol itself is a thin,
// fire-and-forget TCP command - these switches expose no meaningful
// response body to parse, only connection success/failure.
//
// Every Driver talking to the same switch address (ip:port) shares one
// gobreaker.CircuitBreaker and one mutex, registered in a package-level
// table keyed by address. This satisfies §5's requirement that two
// supervisors addressing different outlets on the same physical chassis
// still serialise their calls to that chassis.
package switchdriver
