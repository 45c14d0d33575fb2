package driver

import "github.com/OpenIsobus/OpenIsobus/frame"

// Loopback is an in-memory Driver used by tests and by SPEC_FULL.md's
// scenario S6 harness: every frame written to it is handed to the
// caller-installed Responder, if any, which may Inject reply frames (so a
// test can script a VT/peer echoing specific responses). Written frames
// are not themselves queued for reading back.
type Loopback struct {
	opened   bool
	baud     uint32
	inbound  []frame.Frame
	// Responder, if set, is invoked for every frame written and may
	// push zero or more synthesized response frames via Inject.
	Responder func(l *Loopback, written frame.Frame)
}

// NewLoopback creates an unopened Loopback driver.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Init implements Driver.
func (l *Loopback) Init() error {
	return nil
}

// Open implements Driver.
func (l *Loopback) Open(baud uint32) error {
	l.opened = true
	l.baud = baud
	return nil
}

// Close implements Driver.
func (l *Loopback) Close() error {
	l.opened = false
	l.inbound = nil
	return nil
}

// Read implements Driver.
func (l *Loopback) Read() (frame.Frame, bool) {
	if len(l.inbound) == 0 {
		return frame.Frame{}, false
	}
	f := l.inbound[0]
	l.inbound = l.inbound[1:]
	return f, true
}

// Write implements Driver.
func (l *Loopback) Write(f frame.Frame) error {
	if l.Responder != nil {
		l.Responder(l, f)
	}
	return nil
}

// Inject queues f as though it had arrived from the bus. Tests use this to
// feed synthesized RTS/CTS/DT sequences (spec.md §8 S4) or VT responses
// (S6) straight into the next process(now) call.
func (l *Loopback) Inject(f frame.Frame) {
	l.inbound = append(l.inbound, f)
}

// Pending reports how many frames are queued for Read.
func (l *Loopback) Pending() int {
	return len(l.inbound)
}
