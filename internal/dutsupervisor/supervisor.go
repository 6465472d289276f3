// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package dutsupervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/beamwatch/internal/config"
	"github.com/tomtom215/beamwatch/internal/dutlog"
	"github.com/tomtom215/beamwatch/internal/logging"
	"github.com/tomtom215/beamwatch/internal/metrics"
	"github.com/tomtom215/beamwatch/internal/opstatus"
	"github.com/tomtom215/beamwatch/internal/rotator"
	"github.com/tomtom215/beamwatch/internal/shellsession"
	"github.com/tomtom215/beamwatch/internal/switchdriver"
	"github.com/tomtom215/beamwatch/internal/websocket"
)

// Supervisor drives one DUT through §4.5's state machine. It implements
// suture.Service so the orchestrator can run one per enabled DutConfig
// entry under its data-layer supervision tree.
type Supervisor struct {
	cfg    config.DutConfig
	logDir string
	logger zerolog.Logger
	hub    *websocket.Hub // optional; nil-safe

	rotator *rotator.Rotator
	shell   *shellsession.Dialer
	switchd *switchdriver.Driver

	conn *net.UDPConn

	state state
	log   *dutlog.Log

	// pendingSeal and sealReason carry the reason the ladder left RUNNING
	// (or a more specific recovery action taken afterwards) forward across
	// however many SOFT_APP/SOFT_OS/HARD attempts it takes to recover; the
	// open log itself is not sealed until a soft-app relaunch actually
	// succeeds, per §4.5.4.
	pendingSeal bool
	sealReason  opstatus.EndStatus

	softAppTries int
	softOSTries  int
	hardCycles   int
}

// New constructs a Supervisor for one DUT. logDir is the directory its
// DutLog files are written into (§3's per-DUT log storage directory); hub
// may be nil if no dashboard is wired up.
func New(cfg config.DutConfig, logDir string, hub *websocket.Hub) (*Supervisor, error) {
	logger := logging.With().Str("dut_hostname", cfg.Hostname).Str("dut_ip", cfg.IP).
		Int("receive_port", cfg.ReceivePort).Str("component", "dutsupervisor").Logger()

	rot, err := rotator.Load(cfg.JSONFiles, logger)
	if err != nil {
		return nil, fmt.Errorf("dutsupervisor %s: %w", cfg.Hostname, err)
	}

	shell := shellsession.New(cfg.IP, cfg.Hostname, cfg.Username, cfg.Password, cfg.MaxTimeoutTime, cfg.CircuitBreaker)

	switchd, err := switchdriver.New(cfg.PowerSwitchIP, cfg.PowerSwitchPort, cfg.PowerSwitchModel, cfg.Hostname, cfg.CircuitBreaker)
	if err != nil {
		return nil, fmt.Errorf("dutsupervisor %s: %w", cfg.Hostname, err)
	}

	return &Supervisor{
		cfg:     cfg,
		logDir:  logDir,
		logger:  logger,
		hub:     hub,
		rotator: rot,
		shell:   shell,
		switchd: switchd,
	}, nil
}

// String identifies the service to suture and in log output.
func (s *Supervisor) String() string {
	return "dut:" + s.cfg.Hostname
}

// Serve runs the state machine until ctx is cancelled. It binds the DUT's
// UDP receive port once for the lifetime of the call and releases it on
// return. Per §5, every suspension point inside the state handlers selects
// against ctx.Done() so cancellation is observed within one wake-quantum.
func (s *Supervisor) Serve(ctx context.Context) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: s.cfg.ReceivePort})
	if err != nil {
		return fmt.Errorf("dutsupervisor %s: bind udp :%d: %w", s.cfg.Hostname, s.cfg.ReceivePort, err)
	}
	s.conn = conn

	// Unblocks a pending ReadFromUDP immediately on cancellation instead of
	// waiting out the read deadline.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	metrics.ActiveDuts.Inc()
	defer metrics.ActiveDuts.Dec()
	defer conn.Close()
	defer s.shutdown()

	s.setState(booting)

	for ctx.Err() == nil {
		switch s.state {
		case booting:
			s.runBooting(ctx)
		case softApp:
			s.runSoftApp(ctx)
		case softOS:
			s.runSoftOS(ctx)
		case hard:
			s.runHard(ctx)
		case running:
			s.runRunning(ctx)
		}
	}

	return ctx.Err()
}

// shutdown seals any still-open log with #SERVER_UNKNOWN per §4.4's
// safety net and marks the state machine STOPPED.
func (s *Supervisor) shutdown() {
	if s.log != nil {
		if err := s.log.Seal(opstatus.EndUnknown); err != nil {
			s.logger.Error().Err(err).Msg("failed to seal dut log on shutdown")
		} else {
			metrics.RecordLogSealed(s.cfg.Hostname, opstatus.EndUnknown.String())
		}
		s.log = nil
	}
	s.setState(stopped)
}

// setState records the transition in logs, metrics, and (if wired) the
// dashboard hub.
func (s *Supervisor) setState(next state) {
	prev := s.state
	s.state = next
	metrics.RecordSupervisorState(s.cfg.Hostname, next.String())

	if prev != next {
		s.logger.Info().Str("from", prev.String()).Str("to", next.String()).Msg("dut supervisor state transition")
		if s.hub != nil {
			s.hub.BroadcastStateTransition(websocket.StateTransitionData{
				Hostname: s.cfg.Hostname,
				IP:       s.cfg.IP,
				Port:     s.cfg.ReceivePort,
				From:     prev.String(),
				To:       next.String(),
			})
		}
	}
}

// enterSoftApp transitions to SOFT_APP and records reason as the tag the
// next successful launch must seal the currently open log with. Per
// §4.5.4 the log is not sealed here: it stays open across however many
// SOFT_APP/SOFT_OS/HARD attempts recovery takes, so that a more specific
// later reason (a soft-OS reboot or a power cycle that actually worked)
// overwrites an earlier, less specific one (a receive timeout or window
// expiry) instead of the log being sealed and reopened at every rung.
func (s *Supervisor) enterSoftApp(reason opstatus.EndStatus) {
	s.pendingSeal = true
	s.sealReason = reason
	s.setState(softApp)
}

// sleep blocks for d or until ctx is cancelled, reporting which happened.
func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// runBooting performs the initial switch-on. Per the transition table both
// a successful and a failed switch ON move on to SOFT_APP; a failure here
// is logged but never fatal, since the recovery ladder itself is what
// eventually forces a power cycle if the DUT stays unreachable.
func (s *Supervisor) runBooting(_ context.Context) {
	result := s.switchd.On(s.cfg.PowerSwitchOutlet)
	if result != opstatus.Success {
		s.logger.Error().Str("result", result.String()).Msg("initial switch-on failed, continuing to soft-app anyway")
	}
	s.setState(softApp)
}

// runSoftApp launches the current rotator entry's benchmark over the
// shell. Per §4.5.4, soft_app_tries increments only on a successful
// launch, so the budget check happens at entry - a DUT that has already
// exhausted its soft-app budget escalates straight to SOFT_OS without
// attempting another launch.
func (s *Supervisor) runSoftApp(ctx context.Context) {
	if s.softAppTries >= maxSoftApp {
		s.logger.Warn().Int("tries", s.softAppTries).Msg("soft-app budget exhausted, escalating to soft-os")
		s.setState(softOS)
		return
	}

	runBytes, killBytes, testName, testHeader := s.rotator.Next()

	var lastErr error
	succeeded := false
	for attempt := 1; attempt <= maxSoftAppLoginAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}

		err := s.shell.WithSession(func(sess *shellsession.Session) error {
			if werr := sess.Write(killBytes); werr != nil {
				return werr
			}
			sess.Drain()
			if !s.sleep(ctx, time.Second) {
				return ctx.Err()
			}
			if werr := sess.Write(runBytes); werr != nil {
				return werr
			}
			sess.Drain()
			if !s.sleep(ctx, time.Second) {
				return ctx.Err()
			}
			return nil
		})

		if err == nil {
			succeeded = true
			break
		}
		if ctx.Err() != nil {
			return
		}
		lastErr = err
		kind, _ := opstatus.KindOf(err)
		s.logger.Warn().Int("attempt", attempt).Str("kind", kind.String()).Msg("soft-app launch attempt failed")
	}

	if !succeeded {
		kind, _ := opstatus.KindOf(lastErr)
		s.logger.Error().Str("kind", kind.String()).Msg("soft-app launch failed after all attempts, escalating to soft-os")
		s.setState(softOS)
		return
	}

	// Seal the previous log (if any) with the reason the ladder carried
	// forward, per §4.5.4. On the very first launch s.log is nil and
	// pendingSeal is false, so this is a no-op and the previous-log check
	// is skipped entirely, matching the spec's "nil on very first launch".
	if s.pendingSeal && s.log != nil {
		if err := s.log.Seal(s.sealReason); err != nil {
			s.logger.Error().Err(err).Msg("failed to seal dut log")
		} else {
			metrics.RecordLogSealed(s.cfg.Hostname, s.sealReason.String())
		}
	}
	s.pendingSeal = false

	s.log = dutlog.New(s.logDir, testName, testHeader, s.cfg.Hostname, s.logger)
	metrics.LogFilesCreated.WithLabelValues(s.cfg.Hostname).Inc()
	s.softAppTries++
	metrics.RecordEscalation(s.cfg.Hostname, "soft_app")
	if s.hub != nil {
		s.hub.BroadcastEscalation(websocket.EscalationData{
			Hostname: s.cfg.Hostname, Rung: "soft_app", Count: s.softAppTries, Outcome: "ok",
		})
	}
	s.setState(running)
}

// runSoftOS issues the OS-level reboot command, per §4.5. Disabled or
// budget-exhausted DUTs escalate straight to HARD without attempting it.
func (s *Supervisor) runSoftOS(ctx context.Context) {
	if s.cfg.DisableOSSoftReboot || s.softOSTries >= maxSoftOS {
		s.logger.Warn().Bool("disabled", s.cfg.DisableOSSoftReboot).Int("tries", s.softOSTries).
			Msg("soft-os unavailable, escalating to hard")
		s.setState(hard)
		return
	}

	err := s.shell.WithSession(func(sess *shellsession.Session) error {
		return sess.Write([]byte("sudo /sbin/reboot\n"))
	})
	s.softOSTries++
	metrics.RecordEscalation(s.cfg.Hostname, "soft_os")

	if ctx.Err() != nil {
		return
	}

	if err != nil {
		kind, _ := opstatus.KindOf(err)
		s.logger.Error().Str("kind", kind.String()).Msg("soft-os reboot command failed, escalating to hard")
		if s.hub != nil {
			s.hub.BroadcastEscalation(websocket.EscalationData{
				Hostname: s.cfg.Hostname, Rung: "soft_os", Count: s.softOSTries, Outcome: "failed",
			})
		}
		s.setState(hard)
		return
	}

	s.waitForBoot(ctx)
	if ctx.Err() != nil {
		return
	}

	s.softAppTries = 0
	if s.hub != nil {
		s.hub.BroadcastEscalation(websocket.EscalationData{
			Hostname: s.cfg.Hostname, Rung: "soft_os", Count: s.softOSTries, Outcome: "ok",
		})
	}
	s.enterSoftApp(opstatus.EndDueSoftOSReboot)
}

// runHard power-cycles the DUT's outlet. Once hard_cycles has overflowed
// MAX_HARD, the next cycle uses the extended 1800s rest interval and
// resets the counter, per §3 and the overflow scenario in §8.
func (s *Supervisor) runHard(ctx context.Context) {
	rest := nominalRestSeconds
	if s.hardCycles > maxHard {
		rest = overflowRestSeconds
		s.hardCycles = 0
	}

	offResult, onResult := s.switchd.Cycle(s.cfg.PowerSwitchOutlet, rest, ctx.Done())
	s.hardCycles++
	metrics.RecordEscalation(s.cfg.Hostname, "hard")
	s.logger.Info().Str("off", offResult.String()).Str("on", onResult.String()).
		Int("rest_seconds", rest).Msg("hard power cycle complete")

	if ctx.Err() != nil {
		return
	}

	s.waitForBoot(ctx)
	if ctx.Err() != nil {
		return
	}

	s.softAppTries = 0
	s.softOSTries = 0
	if s.hub != nil {
		outcome := "ok"
		if offResult != opstatus.Success || onResult != opstatus.Success {
			outcome = "failed"
		}
		s.hub.BroadcastEscalation(websocket.EscalationData{
			Hostname: s.cfg.Hostname, Rung: "hard", Count: s.hardCycles, Outcome: outcome,
		})
	}
	s.enterSoftApp(opstatus.EndDuePowerCycle)
}

// waitForBoot polls the shell login every second, per §4.5.3, up to
// 1.3x the DUT's configured boot_waiting_time. It always returns - a
// window that times out still lets the caller proceed, since the recovery
// ladder itself is the backstop for a DUT that never comes back up.
func (s *Supervisor) waitForBoot(ctx context.Context) {
	deadline := time.Now().Add(time.Duration(float64(s.cfg.BootWaitingTime) * 1.3))

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}

		sess, err := s.shell.Open()
		if err == nil {
			sess.Close()
			return
		}

		kind, _ := opstatus.KindOf(err)
		s.logger.Debug().Str("kind", kind.String()).Msg("wait-for-boot: login not yet ready")

		if !s.sleep(ctx, bootPollInterval) {
			return
		}
	}

	s.logger.Warn().Msg("wait-for-boot window exhausted, proceeding anyway")
}

// runRunning ingests UDP telemetry until a receive timeout, a rotator
// window expiry, or cancellation ends the run. Per §4.5.5 each datagram is
// at most 1024 bytes: the first byte is the ECC status, the remainder is
// the ASCII payload appended as one DutLog line. Window expiry is checked
// only after a received datagram has been handled, whether or not its
// append succeeded (the on-receive-only policy resolved for
// §9's Open Question on rotation timing), never by a separate timer.
// Leaving RUNNING never seals the log directly - it records the seal
// reason and hands off to enterSoftApp, which only takes effect once a
// relaunch actually succeeds.
func (s *Supervisor) runRunning(ctx context.Context) {
	buf := make([]byte, 1024)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.MaxTimeoutTime)); err != nil {
			s.logger.Error().Err(err).Msg("failed to set udp read deadline")
		}

		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				metrics.ReceiveTimeouts.WithLabelValues(s.cfg.Hostname).Inc()
				s.logger.Warn().Msg("udp receive timeout, escalating to soft-app")
				s.enterSoftApp(opstatus.EndDueNotReceiving)
				return
			}
			s.logger.Error().Err(err).Msg("udp receive error")
			continue
		}
		if n < 1 {
			continue
		}

		ecc := buf[0]
		payload := append([]byte(nil), buf[1:n]...)

		if err := s.log.Append(ecc, payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to append datagram to dut log")
		} else {
			metrics.DatagramsReceived.WithLabelValues(s.cfg.Hostname).Inc()
			s.broadcastLogLine(string(payload))
		}

		s.hardCycles = 0
		if bytes.Contains(payload, []byte("#IT")) {
			s.softAppTries = 0
		}

		if s.rotator.WindowExpired() {
			s.enterSoftApp(opstatus.EndServerEnd)
			return
		}
	}
}

func (s *Supervisor) broadcastLogLine(line string) {
	if s.hub != nil {
		s.hub.BroadcastLogLine(s.cfg.Hostname, line)
	}
}
