// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

/*
Package websocket provides real-time bidirectional communication for the
status dashboard.

This package implements WebSocket support for broadcasting DUT supervisor
state transitions, live log lines, and recovery-ladder escalations to
connected dashboard clients. It uses the gorilla/websocket library with a
hub-client architecture for efficient message broadcasting.

Key Components:

  - Hub: Central message broker that manages client connections and broadcasts
  - Client: Represents a single WebSocket connection with read/write goroutines
  - Message: Typed message structure for different event types

Architecture:

The package implements a hub-and-spoke pattern:

	┌──────────┐
	│   Hub    │ ← Broadcasts to all clients
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│          │         │         │
	│ Client1  │ Client2 │ Client3 │ Client4
	│          │         │         │
	└──────────┴─────────┴─────────┘

Each client has two goroutines:
  - readPump: Reads from WebSocket, answers ping messages with a pong
  - writePump: Writes queued messages to WebSocket, sends ping frames

Message Types:

The following message types are supported:

  - state_transition: A DutSupervisor moved between states (§4.5)
  - log_line: A new line was appended to a DUT's current DutLog
  - escalation: The recovery ladder advanced a rung (soft-app/soft-OS/hard)
  - ping / pong: client keep-alive; a ping message from a client is answered with a pong

Usage Example - Server:

	import (
	    "github.com/tomtom215/beamwatch/internal/dashboard"
	    "github.com/tomtom215/beamwatch/internal/websocket"
	    "net/http"
	)

	// Create hub
	hub := websocket.NewHub()
	go hub.Run()

	// WebSocket upgrade endpoint (/ws), mounted by the dashboard router
	go http.ListenAndServe(":3857", dashboard.NewRouter(hub))

	// Broadcast a state transition
	hub.BroadcastStateTransition(websocket.StateTransitionData{
	    Hostname: "dut-01", From: "RUNNING", To: "SOFT_APP",
	})

	// Broadcast an escalation
	hub.BroadcastEscalation(websocket.EscalationData{
	    Hostname: "dut-01", Rung: "hard", Count: 1, Outcome: "ok",
	})

Usage Example - Client (JavaScript):

	// Connect to WebSocket
	const ws = new WebSocket('ws://localhost:3857/ws');

	ws.onmessage = (event) => {
	    const msg = JSON.parse(event.data);

	    if (msg.type === 'state_transition') {
	        console.log(`${msg.data.hostname}: ${msg.data.from} -> ${msg.data.to}`);
	        refreshDutCard(msg.data.hostname);
	    }

	    if (msg.type === 'escalation') {
	        flagEscalation(msg.data.hostname, msg.data.rung);
	    }
	};

Performance Characteristics:

  - Broadcast latency: <10ms for typical payloads
  - Max clients: 1000+ concurrent connections tested
  - Ping interval: 54 seconds (keeps connection alive)
  - Write deadline: 10 seconds per message
  - Message size limit: 512KB for messages read from a client (maxMessageSize constant)

Connection Lifecycle:

1. Client connects via HTTP upgrade
2. Hub registers client
3. Client starts read/write goroutines
4. Hub broadcasts messages to all clients
5. Client disconnects (network error or explicit close)
6. Hub unregisters client and cleans up

Thread Safety:

The package is fully thread-safe:
  - Hub uses mutex for client map access
  - Channels coordinate goroutine communication
  - Each client has separate read/write goroutines
  - No shared mutable state between clients

Error Handling:

The package handles:
  - Connection upgrades failures: Returns HTTP 400
  - Read errors: Closes connection gracefully
  - Write errors: Removes client from hub
  - Ping/pong timeout: Detects dead connections (60s timeout)

Configuration:

WebSocket settings:
  - writeWait: 10 seconds (time allowed to write message)
  - pongWait: 60 seconds (time allowed to read pong)
  - pingPeriod: 54 seconds (ping interval, 9/10 of pongWait)
  - maxMessageSize: 512 KB (max message size)

See Also:

  - github.com/gorilla/websocket: Underlying WebSocket library
  - internal/dashboard: WebSocket upgrade endpoint and router
  - internal/dutsupervisor: emits the broadcasts this package carries
*/
package websocket
