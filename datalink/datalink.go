// Package datalink implements the data-link layer (spec.md §4.2): draining
// the driver, filtering frames to what the local node may legitimately see,
// routing Transport/Extended Transport Protocol traffic to their managers,
// and dispatching outbound PDUs to a single frame, TP, or ETP by size.
// Grounded on stack/nic.go's DeliverNetworkPacket/DeliverTransportPacket
// split (protocol lookup, then a type-specific handler), generalized from
// a demultiplexing map of registered protocols to ISOBUS's small, fixed
// set of transport PGNs.
package datalink

import (
	"log"

	"github.com/OpenIsobus/OpenIsobus/driver"
	"github.com/OpenIsobus/OpenIsobus/metrics"
	"github.com/OpenIsobus/OpenIsobus/pdu"
	"github.com/OpenIsobus/OpenIsobus/transport/etp"
	"github.com/OpenIsobus/OpenIsobus/transport/tp"
)

// MaxFramesPerTick bounds how many frames process drains from the driver
// in a single call, so a burst of traffic cannot starve the rest of the
// tick (spec.md §4.2 "drain up to 255 frames").
const MaxFramesPerTick = 255

// Layer is the data-link layer: it owns the Transport and Extended
// Transport Protocol managers and mediates all driver I/O on their behalf
// (spec.md §3 "Data-Link Layer").
type Layer struct {
	Driver driver.Driver
	TP     *tp.Manager
	ETP    *etp.Manager

	// Deliver receives every fully-reassembled PDU addressed to us or
	// broadcast, in frame-arrival order (spec.md §4.2 step 3).
	Deliver func(p pdu.PDU, now uint64)
}

// NewLayer creates a Layer bound to drv, with fresh TP and ETP managers
// addressed as local.
func NewLayer(drv driver.Driver, local pdu.Address) *Layer {
	tpMgr := tp.NewManager()
	tpMgr.LocalAddr = local
	etpMgr := etp.NewManager()
	etpMgr.LocalAddr = local
	return &Layer{Driver: drv, TP: tpMgr, ETP: etpMgr}
}

// SetLocalAddress updates the address the TP and ETP managers stamp on
// outbound control and data frames and on reassembled PDUs, e.g. after a
// successful re-claim (spec.md §4.5). Inbound filtering uses the address
// passed to Process, not this one.
func (l *Layer) SetLocalAddress(a pdu.Address) {
	l.TP.LocalAddr = a
	l.ETP.LocalAddr = a
}

// Process drains and handles inbound frames, then lets the transport
// managers' timers advance, per spec.md §4.2:
//
//  1. Drain up to MaxFramesPerTick frames from the driver.
//  2. Decode each to a PDU and drop anything neither global nor ours.
//  3. Route TP/ETP control and data traffic to their managers; anything
//     else is delivered immediately as a single-frame PDU.
//  4. Call each transport manager once with no input, to let T1..=T4
//     time out even on a tick with no traffic.
func (l *Layer) Process(claimed pdu.Address, now uint64) {
	for i := 0; i < MaxFramesPerTick; i++ {
		f, ok := l.Driver.Read()
		if !ok {
			break
		}
		metrics.FramesIn.Inc()
		p := pdu.FromFrame(f)

		if !p.IsAddressGlobal() && !p.IsAddressSpecific(claimed) {
			metrics.FramesDropped.Inc()
			continue
		}

		l.route(p, now)
	}

	l.TP.Process(nil, now, l.Driver)
	l.ETP.Process(nil, now, l.Driver)
}

func (l *Layer) route(p pdu.PDU, now uint64) {
	switch p.PGN() {
	case pdu.PGNTPCM, pdu.PGNTPDT:
		reassembled, _ := l.TP.Process(&p, now, l.Driver)
		if reassembled != nil {
			l.deliver(*reassembled, now)
		}
	case pdu.PGNETPCM, pdu.PGNETPDT:
		l.ETP.Process(&p, now, l.Driver)
	default:
		l.deliver(p, now)
	}
}

func (l *Layer) deliver(p pdu.PDU, now uint64) {
	if l.Deliver != nil {
		l.Deliver(p, now)
	}
}

// Send dispatches p by size (spec.md §4.2 "size-based dispatch"): a
// payload that fits one frame goes straight to the driver, anything up to
// TP's 1785-byte ceiling goes through the Transport Protocol, and
// anything larger goes through the Extended Transport Protocol, up to
// pdu.MaxPduBytes. Oversized PDUs are logged and dropped with a counter
// increment (spec.md §4.2, §7).
func (l *Layer) Send(p pdu.PDU, now uint64) error {
	n := len(p.Data)
	switch {
	case n <= 8:
		metrics.FramesOut.Inc()
		return l.Driver.Write(p.ToFrame())
	case n <= 1785:
		return l.TP.Send(p, now, l.Driver)
	case n <= pdu.MaxPduBytes:
		return l.ETP.Send(p, now, l.Driver)
	default:
		metrics.PdusDroppedTooLarge.Inc()
		log.Printf("datalink: Send: dropping %d-byte PDU, exceeds ETP cap of %d", n, pdu.MaxPduBytes)
		return nil
	}
}
