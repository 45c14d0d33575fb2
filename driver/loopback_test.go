package driver

import (
	"testing"

	"github.com/OpenIsobus/OpenIsobus/frame"
)

func TestLoopbackReadEmpty(t *testing.T) {
	l := NewLoopback()
	if _, ok := l.Read(); ok {
		t.Error("Read() on empty Loopback ok = true, want false")
	}
}

func TestLoopbackInjectThenRead(t *testing.T) {
	l := NewLoopback()
	f := frame.New(frame.NewExtendedId(1), []byte{0xAA})
	l.Inject(f)
	if got := l.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}
	got, ok := l.Read()
	if !ok || got.Id.Raw() != f.Id.Raw() {
		t.Errorf("Read() = (%+v, %v), want (%+v, true)", got, ok, f)
	}
	if l.Pending() != 0 {
		t.Errorf("Pending() after drain = %d, want 0", l.Pending())
	}
}

func TestLoopbackResponderInvokedOnWrite(t *testing.T) {
	l := NewLoopback()
	var written []frame.Frame
	l.Responder = func(l *Loopback, f frame.Frame) {
		written = append(written, f)
		l.Inject(frame.New(frame.NewExtendedId(2), []byte{0xBB}))
	}

	if err := l.Write(frame.New(frame.NewExtendedId(1), []byte{0xAA})); err != nil {
		t.Fatalf("Write(...) = %v, want nil", err)
	}
	if len(written) != 1 {
		t.Fatalf("Responder called %d times, want 1", len(written))
	}
	if l.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1 (Responder-injected reply)", l.Pending())
	}
}

func TestLoopbackCloseClearsInbound(t *testing.T) {
	l := NewLoopback()
	l.Inject(frame.New(frame.NewExtendedId(1), nil))
	_ = l.Close()
	if l.Pending() != 0 {
		t.Errorf("Pending() after Close() = %d, want 0", l.Pending())
	}
}
