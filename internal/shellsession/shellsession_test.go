// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package shellsession

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/tomtom215/beamwatch/internal/config"
	"github.com/tomtom215/beamwatch/internal/opstatus"
)

// fakeDUT serves the fixed §4.2 login handshake over a listener bound to
// 127.0.0.1, standing in for the DUT's real plaintext shell.
type fakeDUT struct {
	ln net.Listener
}

func newFakeDUT(t *testing.T, wantUser, wantPass string) *fakeDUT {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fd := &fakeDUT{ln: ln}
	go fd.serve(wantUser, wantPass)
	t.Cleanup(func() { ln.Close() })
	return fd
}

func (fd *fakeDUT) serve(wantUser, wantPass string) {
	for {
		conn, err := fd.ln.Accept()
		if err != nil {
			return
		}
		go fd.handle(conn, wantUser, wantPass)
	}
}

func (fd *fakeDUT) handle(conn net.Conn, wantUser, wantPass string) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	conn.Write([]byte("login: "))
	user, err := r.ReadString('\n')
	if err != nil {
		return
	}
	if trimNewline(user) != wantUser {
		return
	}

	conn.Write([]byte("password: "))
	pass, err := r.ReadString('\n')
	if err != nil {
		return
	}
	if trimNewline(pass) != wantPass {
		return
	}

	conn.Write([]byte("$ "))

	// Echo anything further so Write+Drain has something to consume.
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return
		}
		conn.Write(buf[:n])
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func fakeDUTPort(fd *fakeDUT) int {
	_, portStr, _ := net.SplitHostPort(fd.ln.Addr().String())
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}
	return port
}

func testCBConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.6,
	}
}

// withPort temporarily overrides telnetPortVar so tests can point at the
// fake listener's ephemeral port instead of the real well-known one.
func withPort(t *testing.T, port int) {
	t.Helper()
	orig := telnetPortVar
	telnetPortVar = port
	t.Cleanup(func() { telnetPortVar = orig })
}

func TestDialer_LoginSuccess(t *testing.T) {
	fd := newFakeDUT(t, "root", "hunter2")
	withPort(t, fakeDUTPort(fd))

	d := New("127.0.0.1", "dut-01", "root", "hunter2", 2*time.Second, testCBConfig())
	sess, err := d.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sess.Close()

	if err := sess.Write([]byte("echo hi\n")); err != nil {
		t.Errorf("Write: %v", err)
	}
	sess.Drain()
}

func TestDialer_LoginBadCredentials(t *testing.T) {
	fd := newFakeDUT(t, "root", "hunter2")
	withPort(t, fakeDUTPort(fd))

	d := New("127.0.0.1", "dut-02", "root", "wrong-password", 500*time.Millisecond, testCBConfig())
	_, err := d.Open()
	if err == nil {
		t.Fatal("expected error for bad credentials")
	}
	kind, ok := opstatus.KindOf(err)
	if !ok || kind != opstatus.ShellError {
		t.Errorf("got kind %v (ok=%v), want ShellError", kind, ok)
	}
}

func TestDialer_HostUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := fakeDUTPort(&fakeDUT{ln: ln})
	ln.Close()
	withPort(t, port)

	d := New("127.0.0.1", "dut-03", "root", "pw", 500*time.Millisecond, testCBConfig())
	_, err = d.Open()
	if err == nil {
		t.Fatal("expected error dialing a closed port")
	}
	kind, ok := opstatus.KindOf(err)
	if !ok || kind != opstatus.HostUnreachable {
		t.Errorf("got kind %v (ok=%v), want HostUnreachable", kind, ok)
	}
}

func TestWithSession_ClosesOnSuccess(t *testing.T) {
	fd := newFakeDUT(t, "root", "hunter2")
	withPort(t, fakeDUTPort(fd))

	d := New("127.0.0.1", "dut-04", "root", "hunter2", 2*time.Second, testCBConfig())
	var called bool
	var held *Session
	err := d.WithSession(func(s *Session) error {
		called = true
		held = s
		return s.Write([]byte("kill\n"))
	})
	if err != nil {
		t.Fatalf("WithSession: %v", err)
	}
	if !called {
		t.Error("fn was not invoked")
	}
	if held != nil && held.Write([]byte("x\n")) == nil {
		t.Error("session still writable after WithSession returned")
	}
}

func TestWithSession_ClosesOnError(t *testing.T) {
	fd := newFakeDUT(t, "root", "hunter2")
	withPort(t, fakeDUTPort(fd))

	d := New("127.0.0.1", "dut-05", "root", "hunter2", 2*time.Second, testCBConfig())
	sentinel := opstatus.New(opstatus.ShellError, "test", nil)
	var held *Session
	err := d.WithSession(func(s *Session) error {
		held = s
		return sentinel
	})
	if err != sentinel {
		t.Errorf("WithSession returned %v, want the fn's own error", err)
	}
	if held != nil && held.Write([]byte("x\n")) == nil {
		t.Error("session still writable after WithSession returned")
	}
}
