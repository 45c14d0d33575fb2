// Package etp implements the Extended Transport Protocol (spec.md §4.4):
// directed-only segmented transfer up to MaxPduBytes, using a 24-bit
// packet-offset (DPO) per window of up to 255 DT packets. Grounded on
// transport/tp's Manager shape, generalized from TP's single CTS window to
// ETP's multi-window RTS/CTS/DPO handshake.
package etp

import (
	"log"

	"github.com/OpenIsobus/OpenIsobus/driver"
	"github.com/OpenIsobus/OpenIsobus/internal/backlog"
	"github.com/OpenIsobus/OpenIsobus/metrics"
	"github.com/OpenIsobus/OpenIsobus/pdu"
	tpi "github.com/OpenIsobus/OpenIsobus/transport/internal"
)

// Timeouts mirror TP's (spec.md §4.4 "identical timing to TP").
const (
	T1 = 750
	T2 = 1250
	T3 = 1750
	T4 = 1050
)

// Manager runs the Extended Transport Protocol's send state machine.
// Inbound reassembly is intentionally not implemented (spec.md §9 Open
// Question, resolved in DESIGN.md: ETP inbound stays optional/stubbed);
// Manager still answers any inbound RTS with a Connection Abort so a peer
// is not left hanging.
type Manager struct {
	LocalAddr pdu.Address

	out     *tpi.Session
	outDir  tpi.State
	backlog backlog.Backlog
}

// NewManager creates an idle Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Send queues p for directed ETP transfer. ETP has no broadcast form
// (spec.md §4.4 "directed only"); callers must not pass a PDU addressed
// to AddressGlobal.
func (m *Manager) Send(p pdu.PDU, now uint64, drv driver.Driver) error {
	if !p.IsPDU1() || p.IsAddressGlobal() {
		return errNotDirected
	}
	if m.outDir == tpi.Sending {
		m.backlog.PushBack(p)
		return nil
	}
	return m.openOutbound(p, now, drv)
}

func (m *Manager) openOutbound(p pdu.PDU, now uint64, drv driver.Driver) error {
	da, _ := p.DestinationAddress()
	total := uint32(len(p.Data))
	packets := (total + 6) / 7

	m.out = &tpi.Session{
		Peer: da, PGN: p.PGN(), TotalBytes: total, TotalPackets: packets,
		NextPacket: 1, Source: p, Deadline: now + T3,
	}
	m.outDir = tpi.Sending
	metrics.ETPSessionsOpened.Inc()

	rts := buildControl(controlRTS, uint8(p.SA), uint8(da), total, 0, 0xFFFF, p.PGN())
	return writeFrame(drv, rts)
}

// Process feeds one decoded ETP-CM/ETP-DT PDU (or nil, to advance
// timers) into the send state machine.
func (m *Manager) Process(in *pdu.PDU, now uint64, drv driver.Driver) (sent *pdu.PDU) {
	if in != nil && in.PGN() == pdu.PGNETPCM && len(in.Data) >= 8 {
		switch in.Data[0] {
		case controlRTS:
			m.handlePeerRTS(*in, now, drv)
		case controlCTS:
			m.handleCTS(*in, now, drv)
		case controlEoMA:
			sent = m.handleEoMA(*in, now, drv)
		case controlAbort:
			m.handleAbort(*in, now, drv)
		}
	}
	m.checkTimeouts(now, drv)
	return sent
}

// handlePeerRTS answers an inbound request: our own outbound/inbound
// session collides, or reassembly is unsupported, so the only correct
// reply is a Connection Abort (spec.md §9 Open Question resolution:
// ETP inbound stays stubbed rather than silently dropping the peer).
func (m *Manager) handlePeerRTS(p pdu.PDU, now uint64, drv driver.Driver) {
	reason := pdu.AbortNoResources
	if m.outDir == tpi.Sending {
		reason = pdu.AbortAlreadyConnected
	}
	writeFrame(drv, buildControl(controlAbort, uint8(m.LocalAddr), p.SA,
		uint32(reason), 0, 0xFFFF, decodePGN(p.Data)))
	log.Printf("etp: handlePeerRTS: rejecting inbound ETP request from %#x, reassembly unsupported", p.SA)
}

func (m *Manager) handleCTS(p pdu.PDU, now uint64, drv driver.Driver) {
	if m.outDir != tpi.Sending || m.out == nil || pdu.Address(p.SA) != m.out.Peer {
		return
	}
	nrPackets := uint32(p.Data[1])
	offsetPackets := le24(p.Data[2], p.Data[3], p.Data[4])
	if nrPackets == 0 {
		m.out.Deadline = now + T4
		return
	}
	dpo := buildControl(controlDPO, uint8(m.LocalAddr), uint8(m.out.Peer), nrPackets, offsetPackets, 0xFFFF, m.out.PGN)
	if err := writeFrame(drv, dpo); err != nil {
		return
	}
	for i := uint32(0); i < nrPackets; i++ {
		packetNum := offsetPackets + i + 1
		if packetNum > m.out.TotalPackets {
			break
		}
		writeFrame(drv, buildDT(uint8(m.LocalAddr), m.out.Peer, byte(i+1), dtPayload(m.out.Source.Data, packetNum)))
	}
	m.out.Deadline = now + T3
}

func (m *Manager) handleEoMA(p pdu.PDU, now uint64, drv driver.Driver) *pdu.PDU {
	if m.outDir != tpi.Sending || m.out == nil || pdu.Address(p.SA) != m.out.Peer {
		return nil
	}
	finished := m.out.Source
	m.out, m.outDir = nil, tpi.Idle
	metrics.ETPSessionsCompleted.Inc()
	m.drainBacklog(now, drv)
	return &finished
}

func (m *Manager) handleAbort(p pdu.PDU, now uint64, drv driver.Driver) {
	if m.outDir == tpi.Sending && m.out != nil && pdu.Address(p.SA) == m.out.Peer {
		m.backlog.PushFront(m.out.Source)
		m.out, m.outDir = nil, tpi.Idle
		metrics.ETPSessionsAborted.Inc()
		m.drainBacklog(now, drv)
	}
}

func (m *Manager) checkTimeouts(now uint64, drv driver.Driver) {
	if m.outDir == tpi.Sending && m.out != nil && now > m.out.Deadline {
		writeFrame(drv, buildControl(controlAbort, uint8(m.LocalAddr), uint8(m.out.Peer),
			uint32(pdu.AbortTimeout), 0, 0xFFFF, m.out.PGN))
		log.Printf("etp: checkTimeouts: outbound session to %#x timed out", m.out.Peer)
		m.out, m.outDir = nil, tpi.Idle
		metrics.ETPSessionsAborted.Inc()
		m.drainBacklog(now, drv)
	}
}

func (m *Manager) drainBacklog(now uint64, drv driver.Driver) {
	if m.outDir == tpi.Sending {
		return
	}
	if p, ok := m.backlog.PopFront(); ok {
		m.openOutbound(p, now, drv)
	}
}

// HasOutboundSession reports whether a send is currently in flight.
func (m *Manager) HasOutboundSession() bool {
	return m.outDir == tpi.Sending
}
