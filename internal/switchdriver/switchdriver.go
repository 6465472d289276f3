// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package switchdriver

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/beamwatch/internal/config"
	"github.com/tomtom215/beamwatch/internal/logging"
	"github.com/tomtom215/beamwatch/internal/metrics"
	"github.com/tomtom215/beamwatch/internal/opstatus"
)

// Driver is the capability a DutSupervisor uses to power-cycle its DUT.
// It is pure policy: it holds no state between calls beyond the shared,
// per-address circuit breaker.
type Driver struct {
	addr     string
	hostname string
	name     string
	proto    protocol
	shared   *addressState
}

// addressState is the per-switch-address mutex + circuit breaker shared by
// every Driver constructed against that address, regardless of which
// DutSupervisor owns it.
type addressState struct {
	mu sync.Mutex
	cb *gobreaker.CircuitBreaker[opstatus.Kind]
}

var (
	registryMu sync.Mutex
	registry   = map[string]*addressState{}
)

func stateFor(addr string, cbCfg config.CircuitBreakerConfig) *addressState {
	registryMu.Lock()
	defer registryMu.Unlock()

	if s, ok := registry[addr]; ok {
		return s
	}

	name := "switch:" + addr
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	failureRatio := cbCfg.FailureRatio
	cb := gobreaker.NewCircuitBreaker[opstatus.Kind](gobreaker.Settings{
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
			logging.Info().Str("switch", cbName).Str("from", fromStr).Str("to", toStr).
				Msg("switch circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(cbName).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(cbName, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)
			}
		},
	})

	s := &addressState{cb: cb}
	registry[addr] = s
	return s
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

// New constructs a Driver for the switch at ip:port, using the vendor
// protocol named by model. hostname identifies the owning DUT for metrics
// labelling only; the breaker itself is keyed by address, not hostname.
func New(ip string, port int, model, hostname string, cbCfg config.CircuitBreakerConfig) (*Driver, error) {
	proto, err := newProtocol(model)
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", ip, port)
	return &Driver{
		addr:     addr,
		hostname: hostname,
		name:     "switch:" + addr,
		proto:    proto,
		shared:   stateFor(addr, cbCfg),
	}, nil
}

// Off turns outlet off. restSeconds is accepted for API symmetry with
// §4.1's off(outlet, rest_seconds) but is not used directly by Off; only
// Cycle composes the interruptible rest between OFF and ON.
func (d *Driver) Off(outlet, restSeconds int) opstatus.Kind {
	_ = restSeconds
	return d.execute("off", func() error { return d.proto.off(d.addr, outlet) })
}

// On turns outlet on.
func (d *Driver) On(outlet int) opstatus.Kind {
	return d.execute("on", func() error { return d.proto.on(d.addr, outlet) })
}

// Cycle performs OFF, a cooperative sleep of restSeconds interruptible by
// cancel, then ON, returning both leg results per §4.1.
func (d *Driver) Cycle(outlet, restSeconds int, cancel <-chan struct{}) (offResult, onResult opstatus.Kind) {
	offResult = d.Off(outlet, restSeconds)

	started := time.Now()
	timer := time.NewTimer(time.Duration(restSeconds) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-cancel:
	}
	metrics.RecordHardCycleRest(time.Since(started))

	onResult = d.On(outlet)
	return offResult, onResult
}

func (d *Driver) execute(op string, fn func() error) opstatus.Kind {
	d.shared.mu.Lock()
	defer d.shared.mu.Unlock()

	_, err := d.shared.cb.Execute(func() (opstatus.Kind, error) {
		if innerErr := fn(); innerErr != nil {
			return opstatus.SwitchUnreachable, innerErr
		}
		return opstatus.Success, nil
	})

	kind := opstatus.Success
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(d.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(d.name).Set(0)
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		kind = opstatus.SwitchUnreachable
		metrics.CircuitBreakerRequests.WithLabelValues(d.name, "rejected").Inc()
		logging.Warn().Str("switch", d.addr).Str("op", op).Err(err).Msg("switch request rejected by circuit breaker")
	default:
		kind = opstatus.SwitchUnreachable
		metrics.CircuitBreakerRequests.WithLabelValues(d.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(d.name).Set(float64(d.shared.cb.Counts().ConsecutiveFailures))
		logging.Warn().Str("switch", d.addr).Str("op", op).Err(err).Msg("switch operation failed")
	}

	metrics.RecordSwitchOutcome(d.hostname, op, strings.ToLower(kind.String()))
	return kind
}
