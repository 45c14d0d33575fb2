// Package driver defines the small capability trait the OpenIsobus core
// consumes to reach the physical (or simulated) CAN bus (spec.md §1 "Out of
// scope... consumes a small trait"). The driver itself — USB/PCAN,
// SocketCAN, mock — is an external collaborator; this package only
// specifies the interface and a couple of reference implementations used by
// tests (see Loopback) and by the mock used throughout the rest of the
// core's test suites.
package driver

import "github.com/OpenIsobus/OpenIsobus/frame"

// Driver is the capability set the data-link layer requires of whatever
// sits underneath it. Open/Close/Read/Write must never block (spec.md §5):
// Read returns immediately, reporting ok=false when no frame is pending.
type Driver interface {
	// Init prepares the driver (e.g. loads a kernel module, opens a
	// device handle) without yet bringing the bus online.
	Init() error

	// Open brings the bus online at the given baud rate, in bit/s (the
	// core passes isobus.Config.Baud, 250000 for ISOBUS, spec.md §1).
	Open(baud uint32) error

	// Close takes the bus back offline and releases any resources Open
	// acquired.
	Close() error

	// Read returns the next received frame, if one is queued. It must not
	// block; ok is false when the receive queue is empty.
	Read() (f frame.Frame, ok bool)

	// Write transmits f. It must not block; a driver backed by a bounded
	// hardware transmit queue should report an error rather than stall.
	Write(f frame.Frame) error
}
