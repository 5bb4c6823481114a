// Package grerr defines the POSIX errno-shaped error kinds the control
// plane returns to its callers, following the sentinel-plus-wrapped-struct
// pattern used throughout this codebase's error handling.
package grerr

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Error wraps a POSIX errno kind with the operation and target that
// produced it, so callers can both log a precise message and test the
// kind with errors.Is(err, unix.EEXIST).
type Error struct {
	Op     string // e.g. "port.reconfig", "vlan.fini"
	Target string // e.g. a devargs string, an interface name, an IP
	Kind   unix.Errno
	Detail string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Target, e.Kind.Error())
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }

// New builds an *Error for the given errno kind.
func New(kind unix.Errno, op, target string) *Error {
	return &Error{Op: op, Target: target, Kind: kind}
}

// Newf builds an *Error with a formatted detail message.
func Newf(kind unix.Errno, op, target, format string, args ...interface{}) *Error {
	return &Error{Op: op, Target: target, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Is reports whether err's chain carries the given errno kind.
func Is(err error, kind unix.Errno) bool {
	return errors.Is(err, kind)
}

// Kind extracts the errno kind from err's chain, or ok=false if err does
// not wrap one of ours.
func Kind(err error) (kind unix.Errno, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Common kinds referenced by name throughout the control plane (spec §7).
const (
	EEXIST      = unix.EEXIST
	ENODEV      = unix.ENODEV
	ENOENT      = unix.ENOENT
	EIDRM       = unix.EIDRM
	EMEDIUMTYPE = unix.EMEDIUMTYPE
	EADDRINUSE  = unix.EADDRINUSE
	EBUSY       = unix.EBUSY
	EINVAL      = unix.EINVAL
	ENOMEM      = unix.ENOMEM
	ENOTSUP     = unix.ENOTSUP
	ENOSYS      = unix.ENOSYS
)

// Tolerated reports whether kind is one of the errno values the spec
// explicitly allows callers to swallow (currently only VLAN filter
// enable, which not every device supports).
func Tolerated(kind unix.Errno) bool {
	return kind == ENOTSUP || kind == ENOSYS
}
