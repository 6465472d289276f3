// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

// Package opstatus is the closed error taxonomy shared by switchdriver,
// shellsession, dutlog, and dutsupervisor. Errors are values, never panics;
// the escalation ladder inspects a Kind via errors.As to decide the next
// state transition.
package opstatus

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed error categories a component can report.
type Kind int

const (
	// Success is not normally wrapped into an *Error; it exists so callers
	// can compare a Kind to a known-good zero value where that reads better
	// than a nil error check.
	Success Kind = iota
	HostUnreachable
	ShellError
	SwitchUnreachable
	UnknownSwitchModel
	MaxSoftAppReached
	MaxSoftOSReached
	DisabledSoftOS
	NoCommands
	LogCreateFailed
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "SUCCESS"
	case HostUnreachable:
		return "HOST_UNREACHABLE"
	case ShellError:
		return "SHELL_ERROR"
	case SwitchUnreachable:
		return "SWITCH_UNREACHABLE"
	case UnknownSwitchModel:
		return "UNKNOWN_SWITCH_MODEL"
	case MaxSoftAppReached:
		return "MAX_SOFT_APP_REACHED"
	case MaxSoftOSReached:
		return "MAX_SOFT_OS_REACHED"
	case DisabledSoftOS:
		return "DISABLED_SOFT_OS"
	case NoCommands:
		return "NO_COMMANDS"
	case LogCreateFailed:
		return "LOG_CREATE_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Error wraps a Kind with an optional underlying cause and component
// context, implementing the standard errors.Is/errors.As protocol.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, opstatus.New(SomeKind, "", nil)) match on Kind
// alone, independent of Op/Err.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error for op, optionally wrapping cause.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// KindOf extracts the Kind carried by err, if any, and whether it was
// found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Success, false
}

// Sentinel returns a bare *Error of kind k with no op/cause, suitable for
// use as a target in errors.Is(err, opstatus.Sentinel(opstatus.ShellError)).
func Sentinel(k Kind) *Error { return &Error{Kind: k} }
