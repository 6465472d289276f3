// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package shellsession

import (
	"errors"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/beamwatch/internal/config"
	"github.com/tomtom215/beamwatch/internal/logging"
	"github.com/tomtom215/beamwatch/internal/metrics"
	"github.com/tomtom215/beamwatch/internal/opstatus"
)

// Dialer opens login sessions against one DUT, reusing a single
// gobreaker.CircuitBreaker[*Session] across every attempt for that host.
type Dialer struct {
	ip, username, password string
	hostname               string
	name                   string
	timeout                time.Duration

	mu sync.Mutex
	cb *gobreaker.CircuitBreaker[*Session]
}

// New constructs a Dialer for one DUT. timeout bounds every wait inside
// the login handshake (§4.2).
func New(ip, hostname, username, password string, timeout time.Duration, cbCfg config.CircuitBreakerConfig) *Dialer {
	name := "shell:" + hostname

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	failureRatio := cbCfg.FailureRatio
	cb := gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
		Name:        name,
		MaxRequests: cbCfg.MaxRequests,
		Interval:    cbCfg.Interval,
		Timeout:     cbCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= failureRatio
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("shell", cbName).Str("from", fromStr).Str("to", toStr).
				Msg("shell circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(cbName).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(cbName, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)
			}
		},
	})

	return &Dialer{
		ip:       ip,
		username: username,
		password: password,
		hostname: hostname,
		name:     name,
		timeout:  timeout,
		cb:       cb,
	}
}

// Open dials and logs into the DUT's shell, returning a ready Session.
// Every call is serialised per Dialer (one shell operation in flight per
// DUT at a time) and protected by the Dialer's circuit breaker.
func (d *Dialer) Open() (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sess, err := d.cb.Execute(func() (*Session, error) {
		return dial(d.ip, d.username, d.password, d.timeout)
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(d.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(d.name).Set(0)
		metrics.RecordShellOutcome(d.hostname, "success")
		return sess, nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(d.name, "rejected").Inc()
		logging.Warn().Str("hostname", d.hostname).Err(err).Msg("shell request rejected by circuit breaker")
		metrics.RecordShellOutcome(d.hostname, "host_unreachable")
		return nil, opstatus.New(opstatus.HostUnreachable, "shellsession.Open", err)
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(d.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(d.name).Set(float64(d.cb.Counts().ConsecutiveFailures))
		kind, _ := opstatus.KindOf(err)
		metrics.RecordShellOutcome(d.hostname, strings.ToLower(kind.String()))
		return nil, err
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// WithSession opens a session, invokes fn, and guarantees Close is called
// on every exit path - including a panic inside fn - per §4.2's scoped
// acquisition requirement.
func (d *Dialer) WithSession(fn func(*Session) error) error {
	sess, err := d.Open()
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}
