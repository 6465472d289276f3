// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package rotator implements the benchmark catalogue rotation policy
// (component C3): a round-robin cursor over one or more JSON catalogue
// files, tracking whether the current entry has exceeded its execution
// window.
package rotator

import (
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/beamwatch/internal/opstatus"
)

// entry mirrors one object in a catalogue JSON file.
type entry struct {
	Exec              string `json:"exec"`
	KillCmd           string `json:"killcmd"`
	TestName          string `json:"test_name"`
	TestHeader        string `json:"test_header"`
	ExecWindowSeconds int    `json:"exec_window_seconds"`
}

// Rotator cycles through a non-empty catalogue of benchmark entries. Not
// safe for concurrent use; the owning dutsupervisor serializes access.
type Rotator struct {
	entries []entry
	head    int // index of the next entry Next() will dispatch
	current int // index of the entry last dispatched by Next()
	started time.Time
	now     func() time.Time
}

// Load concatenates every readable catalogue file in paths (decoded with
// goccy/go-json) into a single ordered sequence. Missing files are logged
// and skipped. If the resulting sequence is empty, construction fails with
// opstatus.NoCommands.
func Load(paths []string, logger zerolog.Logger) (*Rotator, error) {
	var all []entry
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			logger.Error().Err(err).Str("path", p).Msg("skipping unreadable catalogue file")
			continue
		}
		var fileEntries []entry
		if err := json.Unmarshal(data, &fileEntries); err != nil {
			logger.Error().Err(err).Str("path", p).Msg("skipping unparsable catalogue file")
			continue
		}
		all = append(all, fileEntries...)
	}
	if len(all) == 0 {
		return nil, opstatus.New(opstatus.NoCommands, "rotator.Load", nil)
	}
	r := &Rotator{entries: all, now: time.Now}
	r.started = r.now()
	return r, nil
}

// Next returns the entry at the head, advances the head (wrapping), and
// resets the window start timestamp to now.
func (r *Rotator) Next() (runBytes, killBytes []byte, testName, testHeader string) {
	e := r.entries[r.head]
	r.current = r.head
	r.head = (r.head + 1) % len(r.entries)
	r.started = r.now()
	return []byte(e.Exec), []byte(e.KillCmd), e.TestName, e.TestHeader
}

// CurrentKill returns the kill command of the entry last dispatched by Next,
// without advancing the cursor.
func (r *Rotator) CurrentKill() []byte {
	return []byte(r.entries[r.current].KillCmd)
}

// WindowExpired reports whether the time elapsed since the last Next call
// has reached the configured execution window of the entry that call
// dispatched (not the entry that will be dispatched next).
func (r *Rotator) WindowExpired() bool {
	window := time.Duration(r.entries[r.current].ExecWindowSeconds) * time.Second
	return r.now().Sub(r.started) >= window
}

// Len returns the number of distinct entries in the catalogue.
func (r *Rotator) Len() int { return len(r.entries) }
