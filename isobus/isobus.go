// Package isobus is the top-level facade (spec.md §9 "the working-set
// holds the Isobus facade, which owns the network manager"): it owns the
// driver, the data-link layer, and the Network Manager, and drives all
// three from a single process(now) tick. Grounded on stack/stack.go's role
// as the owning aggregate that wires a Nic to its protocol tables,
// generalized from a multi-NIC, multi-protocol registry down to the one
// driver and one address ISOBUS needs.
package isobus

import (
	"log"

	"github.com/OpenIsobus/OpenIsobus/datalink"
	"github.com/OpenIsobus/OpenIsobus/driver"
	"github.com/OpenIsobus/OpenIsobus/isoerr"
	"github.com/OpenIsobus/OpenIsobus/netmgr"
	"github.com/OpenIsobus/OpenIsobus/pdu"
)

// Config holds the construction-time parameters an embedding application
// supplies (spec.md §4.5, §1 "the core always calls this with 250000").
type Config struct {
	// Name is this node's 64-bit identity (spec.md §3 "Name").
	Name pdu.Name
	// PreferredAddress is tried first during address claim; it must lie
	// within pdu.ClaimRangeLow..=ClaimRangeHigh or the claim walk starts
	// at ClaimRangeLow instead (spec.md §4.5 step 2).
	PreferredAddress pdu.Address
	// Baud is the bit rate passed to Driver.Open (spec.md §1: 250000 for
	// ISOBUS).
	Baud uint32
}

// Isobus is the facade an embedding application drives. It is not safe
// for concurrent use: every method must be called from the single thread
// that owns process(now) (spec.md §5).
type Isobus struct {
	cfg    Config
	driver driver.Driver
	dll    *datalink.Layer
	net    *netmgr.Manager

	inbox []pdu.PDU
}

// New constructs an Isobus bound to drv, not yet connected to the bus.
// Callers must call Start before the first Process.
func New(cfg Config, drv driver.Driver) *Isobus {
	net := netmgr.NewManager(cfg.Name)
	dll := datalink.NewLayer(drv, pdu.AddressNull)
	ib := &Isobus{cfg: cfg, driver: drv, dll: dll, net: net}
	dll.Deliver = ib.onDeliver
	return ib
}

// Start initializes and opens the driver at the configured baud rate
// (spec.md §1). It must be called once before Process.
func (ib *Isobus) Start() error {
	if err := ib.driver.Init(); err != nil {
		return isoerr.ErrDriverUninitialised.WithCause(err)
	}
	if err := ib.driver.Open(ib.cfg.Baud); err != nil {
		return isoerr.ErrDriverNoDriver.WithCause(err)
	}
	return nil
}

// Stop closes the driver.
func (ib *Isobus) Stop() error {
	return ib.driver.Close()
}

// IsConnected reports whether address claim has completed (spec.md §4.6
// "underlying address claim is complete").
func (ib *Isobus) IsConnected() bool {
	return ib.net.IsConnected()
}

// ClaimedAddress returns this node's claimed bus address, valid only once
// IsConnected is true.
func (ib *Isobus) ClaimedAddress() pdu.Address {
	return ib.net.Claimed
}

// ClaimedName returns this node's 64-bit identity, as carried in its
// Address Claimed and Working Set Master messages.
func (ib *Isobus) ClaimedName() pdu.Name {
	return ib.cfg.Name
}

// Process advances address claim, drains and routes inbound frames, and
// lets TP/ETP timers fire, once per tick (spec.md §5 "process(now) entry
// point that the host calls as frequently as it can").
func (ib *Isobus) Process(now uint64) {
	wasConnected := ib.net.IsConnected()
	if !wasConnected {
		_, err := ib.net.Connect(ib.cfg.PreferredAddress, now, ib.driver)
		if err != nil && err != isoerr.ErrWouldBlock {
			log.Printf("isobus: Process: address claim failed: %v", err)
		}
	}

	claimed := ib.net.Claimed
	if !ib.net.IsConnected() {
		claimed = pdu.AddressNull
	} else if !wasConnected {
		ib.dll.SetLocalAddress(claimed)
	}

	ib.dll.Process(claimed, now)
}

// onDeliver routes a reassembled PDU: address-claim/request/commanded
// traffic goes to the Network Manager, everything else is queued for the
// application (or, once built atop Isobus, the working-set) to consume.
func (ib *Isobus) onDeliver(p pdu.PDU, now uint64) {
	switch p.PGN() {
	case pdu.PGNRequest, pdu.PGNAddressClaimed, pdu.PGNCommandedAddress:
		ib.net.Process(p, now, ib.driver)
	default:
		ib.inbox = append(ib.inbox, p)
	}
}

// NextPDU dequeues the next application-level PDU delivered this tick or
// a prior one, in arrival order, or ok=false if none are pending (spec.md
// §5 "Events delivered... appear in the order in which their source PDUs
// were seen on the wire").
func (ib *Isobus) NextPDU() (p pdu.PDU, ok bool) {
	if len(ib.inbox) == 0 {
		return pdu.PDU{}, false
	}
	p = ib.inbox[0]
	ib.inbox = ib.inbox[1:]
	return p, true
}

// Send dispatches p through the data-link layer's size-based classifier
// (spec.md §4.2).
func (ib *Isobus) Send(p pdu.PDU, now uint64) error {
	return ib.dll.Send(p, now)
}

// TransferInFlight reports whether a TP or ETP outbound session is still
// open, so a caller like the working-set can wait for a large send (e.g.
// an object pool) to finish before proceeding to its next step (spec.md
// §4.6 "loopback echo via TP/ETP completion").
func (ib *Isobus) TransferInFlight() bool {
	return ib.dll.TP.HasOutboundSession() || ib.dll.ETP.HasOutboundSession()
}
