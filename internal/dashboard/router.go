// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package dashboard

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/beamwatch/internal/logging"
	beamws "github.com/tomtom215/beamwatch/internal/websocket"
)

// upgrader is deliberately permissive on Origin: the dashboard is meant to
// run on the trusted beam network alongside the DUTs it monitors (§1's
// Non-goals already exclude UDP sender authentication for the same reason).
var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(*http.Request) bool { return true },
}

// NewRouter builds the chi router serving /metrics (promhttp) and /ws
// (gorilla/websocket upgrade into hub), per §6's dashboard contract.
func NewRouter(hub *beamws.Hub) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/ws", serveWS(hub))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

// serveWS upgrades an HTTP request to a WebSocket connection and registers
// the resulting client with hub, mirroring the teacher's Handler.WebSocket.
func serveWS(hub *beamws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			http.Error(w, "dashboard hub unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Error().Err(err).Msg("dashboard websocket upgrade failed")
			return
		}

		client := beamws.NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}
}
