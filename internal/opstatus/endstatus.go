// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package opstatus

// EndStatus is the closed set of sentinel tags written as the last line of
// a sealed DutLog.
type EndStatus int

const (
	EndServerEnd EndStatus = iota
	EndDuePowerCycle
	EndDueNotReceiving
	EndDueSoftAppReboot
	EndDueSoftOSReboot
	EndUnknown
)

// String produces the exact literal written to the log file, per §3 of the
// specification.
func (s EndStatus) String() string {
	switch s {
	case EndServerEnd:
		return "#SERVER_END"
	case EndDuePowerCycle:
		return "#SERVER_DUE:power cycle"
	case EndDueNotReceiving:
		return "#SERVER_DUE:not receiving messages"
	case EndDueSoftAppReboot:
		return "#SERVER_DUE:soft-app reboot"
	case EndDueSoftOSReboot:
		return "#SERVER_DUE:soft-OS reboot"
	case EndUnknown:
		return "#SERVER_UNKNOWN"
	default:
		return "#SERVER_UNKNOWN"
	}
}
