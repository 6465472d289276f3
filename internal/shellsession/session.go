// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package shellsession

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tomtom215/beamwatch/internal/opstatus"
)

// telnetPortVar is the fixed port the DUT's plaintext remote-terminal
// protocol listens on. The DUT YAML (§6) recognises no shell-port key, so
// this is not configurable per §9's "any transport satisfying the
// handshake in §4.2 is acceptable" - the port itself is an implementation
// detail of that transport, not a DUT configuration concern. It is a var
// rather than a const solely so tests can point it at an ephemeral
// listener instead of the real well-known port.
var telnetPortVar = 23

const drainWindow = 50 * time.Millisecond

// Session is an established, logged-in shell connection to one DUT. It is
// not safe for concurrent use; the owning DutSupervisor serialises access
// by construction.
type Session struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

// Write sends b to the DUT's shell, bounded by the session's timeout.
func (s *Session) Write(b []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return opstatus.New(opstatus.ShellError, "shellsession.Write", err)
	}
	if _, err := s.conn.Write(b); err != nil {
		return opstatus.New(opstatus.ShellError, "shellsession.Write", err)
	}
	return nil
}

// Drain reads and discards whatever bytes are immediately available,
// per §4.2's write-then-drain pattern. It never blocks longer than
// drainWindow and never returns an error: a quiet shell is not a failure.
func (s *Session) Drain() {
	_ = s.conn.SetReadDeadline(time.Now().Add(drainWindow))
	buf := make([]byte, 4096)
	for {
		n, err := s.r.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}

// Close releases the underlying connection. Safe to call more than once.
func (s *Session) Close() error {
	return s.conn.Close()
}

func dial(ip, username, password string, timeout time.Duration) (*Session, error) {
	addr := fmt.Sprintf("%s:%d", ip, telnetPortVar)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, opstatus.New(opstatus.HostUnreachable, "shellsession.dial", err)
	}

	r := bufio.NewReader(conn)
	steps := []struct {
		wait  string
		write string
	}{
		{wait: "ogin: ", write: username + "\n"},
		{wait: "assword: ", write: password + "\n"},
		{wait: "$ ", write: ""},
	}

	for _, step := range steps {
		if err := waitFor(r, conn, step.wait, timeout); err != nil {
			conn.Close()
			return nil, err
		}
		if step.write == "" {
			continue
		}
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			conn.Close()
			return nil, opstatus.New(opstatus.ShellError, "shellsession.dial", err)
		}
		if _, err := conn.Write([]byte(step.write)); err != nil {
			conn.Close()
			return nil, opstatus.New(opstatus.ShellError, "shellsession.dial", err)
		}
	}

	return &Session{conn: conn, r: r, timeout: timeout}, nil
}

// waitFor blocks until the accumulated read buffer ends with suffix, the
// read deadline elapses (timeout waiting for a prompt -> SHELL_ERROR), or
// the connection fails (premature EOF -> SHELL_ERROR).
func waitFor(r *bufio.Reader, conn net.Conn, suffix string, timeout time.Duration) error {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return opstatus.New(opstatus.ShellError, "shellsession.waitFor", err)
	}

	var buf []byte
	one := make([]byte, 1)
	keep := len(suffix) + 64

	for {
		n, err := r.Read(one)
		if n > 0 {
			buf = append(buf, one[0])
			if len(buf) > keep {
				buf = buf[len(buf)-keep:]
			}
			if strings.HasSuffix(string(buf), suffix) {
				return nil
			}
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return opstatus.New(opstatus.ShellError, "shellsession.waitFor",
					fmt.Errorf("timeout waiting for %q", suffix))
			}
			return opstatus.New(opstatus.ShellError, "shellsession.waitFor", err)
		}
	}
}
