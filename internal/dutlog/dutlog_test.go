// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package dutlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/beamwatch/internal/opstatus"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	dir := t.TempDir()
	l := New(dir, "a", "hdr-a", "dut-5", zerolog.Nop())
	return l, dir
}

func TestLazyCreateOnFirstAppend(t *testing.T) {
	l, _ := newTestLog(t)
	require.False(t, l.IsOpen())

	require.NoError(t, l.Append(0, []byte("hello 1")))
	require.True(t, l.IsOpen())
	require.FileExists(t, l.Path())
	require.True(t, strings.Contains(filepath.Base(l.Path()), "_a_ECC_OFF_dut-5.log"))

	contents, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	require.Equal(t, "#SERVER_HEADER hdr-a", lines[0])
	require.Contains(t, lines[1], "#SERVER_BEGIN Y:")
	require.Equal(t, "hello 1", lines[2])
}

func TestAppendAccumulatesLines(t *testing.T) {
	l, _ := newTestLog(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Append(0, []byte("hello i")))
	}
	contents, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	// 2 header lines + 10 payload lines
	require.Len(t, lines, 12)
}

func TestSealWritesSentinelAndIsIdempotent(t *testing.T) {
	l, _ := newTestLog(t)
	require.NoError(t, l.Append(0, []byte("x")))

	require.NoError(t, l.Seal(opstatus.EndServerEnd))
	contents, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	last := lines[len(lines)-1]
	require.True(t, strings.HasPrefix(last, "#SERVER_END TIME:"))

	// sealing again is a no-op: file length doesn't change
	before, _ := os.Stat(l.Path())
	require.NoError(t, l.Seal(opstatus.EndDuePowerCycle))
	after, _ := os.Stat(l.Path())
	require.Equal(t, before.Size(), after.Size())
}

func TestSealOnUnopenedIsNoop(t *testing.T) {
	l, _ := newTestLog(t)
	require.NoError(t, l.Seal(opstatus.EndUnknown))
	require.Empty(t, l.Path())
}

func TestCloseSealsUnknownIfStillOpen(t *testing.T) {
	l, _ := newTestLog(t)
	require.NoError(t, l.Append(0, []byte("x")))
	require.NoError(t, l.Close())

	contents, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	require.Contains(t, string(contents), "#SERVER_UNKNOWN TIME:")
}

func TestAppendAfterSealPanics(t *testing.T) {
	l, _ := newTestLog(t)
	require.NoError(t, l.Append(0, []byte("x")))
	require.NoError(t, l.Seal(opstatus.EndServerEnd))

	require.Panics(t, func() {
		_ = l.Append(0, []byte("y"))
	})
}

func TestECCTagSelectsOnOff(t *testing.T) {
	require.Equal(t, "OFF", eccTag(0))
	require.Equal(t, "ON", eccTag(1))
	require.Equal(t, "ON", eccTag(0xFF))
}

func TestEmptyPayloadProducesEmptyLine(t *testing.T) {
	l, _ := newTestLog(t)
	require.NoError(t, l.Append(0, []byte{}))
	contents, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	// 2 header lines + one trailing newline from the empty payload line
	lines := strings.Split(string(contents), "\n")
	require.Len(t, lines, 4) // header, begin, "", "" (trailing split artifact)
	require.Equal(t, "", lines[2])
}
