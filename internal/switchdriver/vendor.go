// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package switchdriver

import (
	"fmt"
	"net"
	"time"

	"github.com/tomtom215/beamwatch/internal/opstatus"
)

const dialTimeout = 5 * time.Second

// protocol is the raw per-vendor wire behaviour: a single command sent over
// a freshly dialled TCP connection. Neither vendor in this table expects a
// meaningful reply; a successful write is the success condition.
type protocol interface {
	off(addr string, outlet int) error
	on(addr string, outlet int) error
}

// newProtocol resolves a power_switch_model tag to its wire protocol. An
// unrecognised tag is UNKNOWN_SWITCH_MODEL per §4.1, not a panic.
func newProtocol(tag string) (protocol, error) {
	switch tag {
	case "lindy":
		return lindyProtocol{}, nil
	case "default", "":
		return defaultProtocol{}, nil
	default:
		return nil, opstatus.New(opstatus.UnknownSwitchModel, "switchdriver.newProtocol",
			fmt.Errorf("unrecognised power_switch_model %q", tag))
	}
}

// lindyProtocol speaks the Lindy IP Power 8-Way's line-oriented outlet
// control command (outsNN=0/1 over a bare TCP connect).
type lindyProtocol struct{}

func (lindyProtocol) off(addr string, outlet int) error {
	return send(addr, fmt.Sprintf("outs%02d=0\r\n", outlet))
}

func (lindyProtocol) on(addr string, outlet int) error {
	return send(addr, fmt.Sprintf("outs%02d=1\r\n", outlet))
}

// defaultProtocol is the fallback vendor: a plain "OFF <n>"/"ON <n>" command
// line, used by the generic lab switches the original experiment ran
// against when no dedicated driver existed.
type defaultProtocol struct{}

func (defaultProtocol) off(addr string, outlet int) error {
	return send(addr, fmt.Sprintf("OFF %d\r\n", outlet))
}

func (defaultProtocol) on(addr string, outlet int) error {
	return send(addr, fmt.Sprintf("ON %d\r\n", outlet))
}

func send(addr, cmd string) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(dialTimeout)); err != nil {
		return err
	}
	_, err = conn.Write([]byte(cmd))
	return err
}
