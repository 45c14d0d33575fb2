// Package candriver is an illustrative, non-core driver.Driver
// implementation reading and writing real SocketCAN frames on Linux
// (spec.md §1 "the CAN driver itself... is out of scope"; this package
// exists to exercise that trait against a real kernel interface, the way
// the teacher's link/tundev exercises types.LinkEndpoint against a real
// /dev/net/tun). Grounded on link/tundev/tundev.go's non-blocking,
// fixed-descriptor I/O shape and AlohaLuo-gnbsim-backup's use of
// vishvananda/netlink to bring an interface up before using it.
package candriver

import (
	"fmt"
	"unsafe"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/OpenIsobus/OpenIsobus/frame"
)

// canFrame mirrors struct can_frame from linux/can.h: a 32-bit id (with
// the EFF/RTR/ERR flag bits folded in), a length byte, 3 padding bytes,
// and up to 8 data bytes.
type canFrame struct {
	id     uint32
	length uint8
	_      [3]byte
	data   [8]byte
}

const canEFFFlag uint32 = 0x80000000
const canFrameSize = int(unsafe.Sizeof(canFrame{}))

// SocketCAN is a driver.Driver backed by a Linux AF_CAN, SOCK_RAW socket.
// Open/Read/Write never block: the socket is set non-blocking at Open
// time, and Read reports ok=false on EAGAIN rather than waiting (spec.md
// §5).
type SocketCAN struct {
	ifname string
	fd     int
}

// New creates a SocketCAN driver bound to the named interface (e.g.
// "can0"). Init/Open still need to be called before use.
func New(ifname string) *SocketCAN {
	return &SocketCAN{ifname: ifname, fd: -1}
}

// Init brings the interface administratively up via netlink, mirroring
// the teacher's habit of preparing the device before opening a data path
// to it (link/tundev.go's getmtu/open pairing).
func (s *SocketCAN) Init() error {
	link, err := netlink.LinkByName(s.ifname)
	if err != nil {
		return fmt.Errorf("candriver: Init: lookup %s: %w", s.ifname, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("candriver: Init: set %s up: %w", s.ifname, err)
	}
	return nil
}

// Open creates and binds the CAN_RAW socket. baud is accepted for
// interface-trait conformance; SocketCAN's bit rate is a property of the
// interface itself, configured out of band (e.g. via `ip link set can0
// type can bitrate <baud>`), not of the socket.
func (s *SocketCAN) Open(baud uint32) error {
	_ = baud
	link, err := netlink.LinkByName(s.ifname)
	if err != nil {
		return fmt.Errorf("candriver: Open: lookup %s: %w", s.ifname, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return fmt.Errorf("candriver: Open: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("candriver: Open: set non-blocking: %w", err)
	}

	addr := &unix.SockaddrCAN{Ifindex: link.Attrs().Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("candriver: Open: bind: %w", err)
	}

	s.fd = fd
	return nil
}

// Close releases the socket.
func (s *SocketCAN) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

// Read returns the next received frame without blocking; ok is false
// when the socket has nothing queued (EAGAIN/EWOULDBLOCK).
func (s *SocketCAN) Read() (frame.Frame, bool) {
	var buf [canFrameSize]byte
	n, err := unix.Read(s.fd, buf[:])
	if err != nil || n != canFrameSize {
		return frame.Frame{}, false
	}

	cf := (*canFrame)(unsafe.Pointer(&buf[0]))
	id := frame.NewExtendedId(cf.id &^ canEFFFlag)
	return frame.New(id, cf.data[:cf.length]), true
}

// Write transmits f. The socket is non-blocking; a full kernel transmit
// queue surfaces as an error rather than stalling (spec.md §5).
func (s *SocketCAN) Write(f frame.Frame) error {
	var cf canFrame
	cf.id = f.Id.Raw() | canEFFFlag
	cf.length = f.Dlc
	copy(cf.data[:], f.Data())

	buf := (*[canFrameSize]byte)(unsafe.Pointer(&cf))
	_, err := unix.Write(s.fd, buf[:])
	if err != nil {
		return fmt.Errorf("candriver: Write: %w", err)
	}
	return nil
}
