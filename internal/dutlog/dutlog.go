// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package dutlog implements the per-run, lazily-created, sentinel-sealed
// log file for one DUT benchmark run (component C4).
package dutlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/beamwatch/internal/opstatus"
)

type state int

const (
	unopened state = iota
	open
	sealed
)

// Log is the append-only text artifact for one benchmark run of one DUT.
// It is not safe for concurrent use; callers (dutsupervisor) serialize
// access by construction.
type Log struct {
	dir        string
	testName   string
	testHeader string
	hostname   string
	logger     zerolog.Logger

	state state
	file  *os.File
	w     *bufio.Writer
	path  string
}

// New constructs a Log in the unopened state. No file is created until the
// first Append call.
func New(dir, testName, testHeader, hostname string, logger zerolog.Logger) *Log {
	return &Log{
		dir:        dir,
		testName:   testName,
		testHeader: testHeader,
		hostname:   hostname,
		logger:     logger,
		state:      unopened,
	}
}

// Path returns the filename the log was (or will be) created under. Empty
// until the first successful Append.
func (l *Log) Path() string { return l.path }

// eccTag returns ON or OFF for the filename, per §3: eccStatus 0 means OFF,
// any non-zero byte means ON.
func eccTag(eccStatus byte) string {
	if eccStatus == 0 {
		return "OFF"
	}
	return "ON"
}

// Append writes payload as the next line of the log, lazily creating the
// file (with header + begin lines) on the first call. File creation
// failures are logged and the Log stays unopened so the next Append retries
// creation.
func (l *Log) Append(eccStatus byte, payload []byte) error {
	if l.state == sealed {
		panic("dutlog: Append called after Seal")
	}
	if l.state == unopened {
		if err := l.create(eccStatus); err != nil {
			l.logger.Error().Err(err).Str("dir", l.dir).Msg("failed to create dut log file")
			return opstatus.New(opstatus.LogCreateFailed, "dutlog.Append", err)
		}
	}
	if _, err := l.w.Write(payload); err != nil {
		return fmt.Errorf("dutlog: write payload: %w", err)
	}
	if _, err := l.w.WriteString("\n"); err != nil {
		return fmt.Errorf("dutlog: write newline: %w", err)
	}
	return l.w.Flush()
}

func (l *Log) create(eccStatus byte) error {
	now := time.Now()
	name := fmt.Sprintf("%s_%s_ECC_%s_%s.log",
		now.Format("2006_01_02_15_04_05"), l.testName, eccTag(eccStatus), l.hostname)
	path := filepath.Join(l.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	if _, err := fmt.Fprintf(w, "#SERVER_HEADER %s\n", l.testHeader); err != nil {
		f.Close()
		return err
	}
	if _, err := fmt.Fprintf(w, "#SERVER_BEGIN Y:%d M:%d D:%d TIME:%d:%d:%d-%d\n",
		now.Year(), int(now.Month()), now.Day(),
		now.Hour(), now.Minute(), now.Second(), now.Nanosecond()/1000); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}

	l.file = f
	l.w = w
	l.path = path
	l.state = open
	return nil
}

// Seal writes the end-status sentinel line and transitions to sealed. A
// no-op if the log was never opened; idempotent once sealed.
func (l *Log) Seal(end opstatus.EndStatus) error {
	if l.state == unopened {
		return nil
	}
	if l.state == sealed {
		return nil
	}
	now := time.Now()
	if _, err := fmt.Fprintf(l.w, "%s TIME:%s\n", end.String(), now.Format("2006-01-02-15-04-05")); err != nil {
		return fmt.Errorf("dutlog: write seal line: %w", err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("dutlog: flush seal line: %w", err)
	}
	l.state = sealed
	return l.file.Close()
}

// Close is the safety net described in §4.4: if the log is still open it
// seals with EndUnknown before releasing the file handle.
func (l *Log) Close() error {
	if l.state == open {
		return l.Seal(opstatus.EndUnknown)
	}
	return nil
}

// IsOpen reports whether the log has a live file handle (the [open] state
// in §4.4's state machine).
func (l *Log) IsOpen() bool { return l.state == open }
