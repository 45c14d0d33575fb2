// Package netmgr implements the Network Manager (spec.md §4.5): the
// address-claim state machine, the node table of known peers, and
// competing-claim arbitration. Grounded on stack/nic.go's endpoint table
// (a map kept current as packets arrive) and stack/register.go's
// init()-time protocol registration idiom, generalized to an arbitration
// state machine that the teacher's stack does not itself need.
package netmgr

import (
	"log"

	"github.com/OpenIsobus/OpenIsobus/driver"
	"github.com/OpenIsobus/OpenIsobus/internal/rng"
	"github.com/OpenIsobus/OpenIsobus/isoerr"
	"github.com/OpenIsobus/OpenIsobus/metrics"
	"github.com/OpenIsobus/OpenIsobus/pdu"
)

// State is the Network Manager's address-claim lifecycle (spec.md §4.5).
type State int

const (
	NotConnected State = iota
	RequestedClaimedAddresses
	ClaimingAddress
	AddressClaimed
	UnableToClaimAddress
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "NotConnected"
	case RequestedClaimedAddresses:
		return "RequestedClaimedAddresses"
	case ClaimingAddress:
		return "ClaimingAddress"
	case AddressClaimed:
		return "AddressClaimed"
	case UnableToClaimAddress:
		return "UnableToClaimAddress"
	default:
		return "Unknown"
	}
}

// claimDelayMs and claimJitterMs are the fixed 250 ms hold plus up to 10 ms
// of jitter spec.md §4.5 requires between claim steps.
const (
	claimDelayMs  = 250
	claimJitterMs = 10
)

// Manager runs address-claim arbitration and tracks the node table.
type Manager struct {
	Name     pdu.Name
	State    State
	Claimed  pdu.Address
	preferred pdu.Address
	start    uint64
	rng      *rng.Xorshift64

	nodes map[pdu.Name]pdu.Address
}

// seedXor spreads adjacent Names across very different xorshift states so
// two nodes with numerically close Names don't retry in lockstep
// (DESIGN.md Open Question resolution 2).
const seedXor = 0x2545F4914F6CDD1D

// NewManager creates a Manager for name, seeding its jitter source from
// name so retries are deterministic per node but not globally identical
// (DESIGN.md Open Question resolution 2).
func NewManager(name pdu.Name) *Manager {
	return &Manager{
		Name:  name,
		State: NotConnected,
		rng:   rng.NewXorshift64(uint64(name) ^ seedXor),
		nodes: make(map[pdu.Name]pdu.Address),
	}
}

// IsConnected reports whether the claim has completed (spec.md §4.6
// "underlying address claim is complete").
func (m *Manager) IsConnected() bool {
	return m.State == AddressClaimed
}

func (m *Manager) jitter() uint64 {
	return claimDelayMs + m.rng.Intn(claimJitterMs)
}

// Connect drives the address-claim state machine one step per call
// (spec.md §4.5 "connect(preferred, now)"). It returns the claimed address
// once AddressClaimed is reached, isoerr.ErrWouldBlock while still
// arbitrating, and isoerr.ErrUnableToClaimAddress if every candidate in
// the self-configurable range is taken.
func (m *Manager) Connect(preferred pdu.Address, now uint64, drv driver.Driver) (pdu.Address, error) {
	switch m.State {
	case NotConnected:
		m.preferred = preferred
		m.start = now
		writeFrame(drv, pdu.NewRequest(pdu.PGNAddressClaimed, pdu.AddressNull, pdu.AddressGlobal))
		m.State = RequestedClaimedAddresses
		return 0, isoerr.ErrWouldBlock

	case RequestedClaimedAddresses:
		if now < m.start+m.jitter() {
			return 0, isoerr.ErrWouldBlock
		}
		candidate, ok := m.firstFreeCandidate(m.preferred)
		if !ok {
			m.State = UnableToClaimAddress
			metrics.AddressClaimOutcomes.WithLabelValues("unable").Inc()
			return 0, isoerr.ErrUnableToClaimAddress
		}
		m.Claimed = candidate
		m.start = now
		writeFrame(drv, pdu.NewAddressClaimed(m.Name, candidate, pdu.AddressGlobal))
		m.State = ClaimingAddress
		return 0, isoerr.ErrWouldBlock

	case ClaimingAddress:
		if now < m.start+m.jitter() {
			return 0, isoerr.ErrWouldBlock
		}
		m.nodes[m.Name] = m.Claimed
		m.State = AddressClaimed
		metrics.AddressClaimOutcomes.WithLabelValues("claimed").Inc()
		return m.Claimed, nil

	case AddressClaimed:
		return m.Claimed, nil

	default: // UnableToClaimAddress
		return 0, isoerr.ErrUnableToClaimAddress
	}
}

// firstFreeCandidate walks the self-configurable range starting at
// preferred (or ClaimRangeLow if preferred is outside the range), wrapping
// around, and returns the first address absent from the node table
// (spec.md §4.5 step 2).
func (m *Manager) firstFreeCandidate(preferred pdu.Address) (pdu.Address, bool) {
	start := preferred
	if start < pdu.ClaimRangeLow || start > pdu.ClaimRangeHigh {
		start = pdu.ClaimRangeLow
	}
	span := int(pdu.ClaimRangeHigh) - int(pdu.ClaimRangeLow) + 1
	for i := 0; i < span; i++ {
		candidate := pdu.ClaimRangeLow + pdu.Address((int(start-pdu.ClaimRangeLow)+i)%span)
		if !m.addressTaken(candidate) {
			return candidate, true
		}
	}
	return 0, false
}

func (m *Manager) addressTaken(a pdu.Address) bool {
	for _, addr := range m.nodes {
		if addr == a {
			return true
		}
	}
	return false
}

// Process handles one inbound PDU relevant to address claim (spec.md §4.5
// "Steady state" and "Competing claim arbitration"). Callers route
// PGNRequest/PGNAddressClaimed/PGNCommandedAddress here; anything else is
// ignored.
func (m *Manager) Process(p pdu.PDU, now uint64, drv driver.Driver) {
	switch p.PGN() {
	case pdu.PGNRequest:
		if requested, ok := pdu.RequestedPGN(p); ok && requested == pdu.PGNAddressClaimed && m.IsConnected() {
			writeFrame(drv, pdu.NewAddressClaimed(m.Name, m.Claimed, pdu.AddressGlobal))
		}
	case pdu.PGNAddressClaimed:
		m.processAddressClaimed(p, now, drv)
	case pdu.PGNCommandedAddress:
		m.processCommandedAddress(p, now, drv)
	}
}

func (m *Manager) processAddressClaimed(p pdu.PDU, now uint64, drv driver.Driver) {
	peerName, ok := pdu.ClaimedName(p)
	if !ok {
		return
	}
	peerAddr := pdu.Address(p.SA)

	if peerAddr == pdu.AddressNull {
		// Peer announced "cannot claim"; nothing to arbitrate.
		return
	}

	if (m.State == ClaimingAddress || m.State == AddressClaimed) && peerAddr == m.Claimed && peerName != m.Name {
		m.arbitrate(peerName, now, drv)
		return
	}

	for name, addr := range m.nodes {
		if addr == peerAddr && name != peerName {
			delete(m.nodes, name)
		}
	}
	m.nodes[peerName] = peerAddr
}

// arbitrate resolves a competing claim for the address we are in the
// middle of claiming: lower Name wins (spec.md §4.5).
func (m *Manager) arbitrate(peerName pdu.Name, now uint64, drv driver.Driver) {
	if m.Name < peerName {
		writeFrame(drv, pdu.NewAddressClaimed(m.Name, m.Claimed, pdu.AddressGlobal))
		return
	}
	log.Printf("netmgr: arbitrate: lost address %#x to name %#x, re-claiming", m.Claimed, peerName)
	m.nodes[peerName] = m.Claimed
	candidate, ok := m.firstFreeCandidate(m.Claimed + 1)
	if !ok {
		writeFrame(drv, pdu.NewCannotClaim(m.Name))
		m.State = UnableToClaimAddress
		metrics.AddressClaimOutcomes.WithLabelValues("unable").Inc()
		return
	}
	m.Claimed = candidate
	m.start = now
	writeFrame(drv, pdu.NewAddressClaimed(m.Name, candidate, pdu.AddressGlobal))
	m.State = ClaimingAddress
	metrics.AddressClaimOutcomes.WithLabelValues("lost_arbitration").Inc()
}

// processCommandedAddress acts on a PGN-0xFED8 Commanded Address targeted
// at our Name by re-running address claim at the commanded value
// (DESIGN.md Open Question resolution 3: conforming, not a no-op).
func (m *Manager) processCommandedAddress(p pdu.PDU, now uint64, drv driver.Driver) {
	name, addr, ok := pdu.CommandedNameAndAddress(p)
	if !ok || name != m.Name {
		return
	}
	m.State = NotConnected
	m.preferred = addr
	_, _ = m.Connect(addr, now, drv)
}

func writeFrame(drv driver.Driver, p pdu.PDU) {
	if drv == nil {
		return
	}
	if err := drv.Write(p.ToFrame()); err != nil {
		log.Printf("netmgr: writeFrame: %v", err)
		return
	}
	metrics.FramesOut.Inc()
}
