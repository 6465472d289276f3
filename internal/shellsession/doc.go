// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package shellsession implements the line-oriented interactive shell
// capability (component C2): login over a plaintext remote-terminal
// protocol, then write+drain against the DUT's console.
//
// The login handshake is fixed per §4.2: wait for a line ending in
// "ogin: ", send "<user>\n", wait for "assword: ", send "<pass>\n", wait
// for "$ ". All waits are bounded by the DUT's configured timeout. No
// particular terminal protocol is assumed beyond "plaintext, line
// oriented, reachable over TCP" - the original experiment's own shell
// logic was never finished in the source this was distilled from, so this
// package targets the handshake contract directly rather than porting a
// specific client library.
//
// A Dialer is constructed once per DUT and reused for every soft-app/
// soft-OS attempt; it wraps every dial+login attempt in a
// gobreaker.CircuitBreaker[*Session] keyed by DUT hostname, so a DUT whose
// shell is consistently failing stops burning dial timeouts on every
// retry until the breaker's cooldown elapses.
package shellsession
