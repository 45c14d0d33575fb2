// Package tp implements the Transport Protocol (spec.md §4.3): segmented
// transfer of 9..=1785-byte PDUs, BAM broadcast and RTS/CTS directed,
// grounded on transport/tcp's connect/rcv/snd state-machine shape (timers,
// named states, resend-on-timeout) generalized from TCP's byte stream to
// ISOBUS's packet-counted RTS/CTS handshake.
package tp

import (
	"log"

	"github.com/OpenIsobus/OpenIsobus/driver"
	"github.com/OpenIsobus/OpenIsobus/internal/backlog"
	"github.com/OpenIsobus/OpenIsobus/metrics"
	"github.com/OpenIsobus/OpenIsobus/pdu"
	tpi "github.com/OpenIsobus/OpenIsobus/transport/internal"
)

// Timeouts (spec.md §4.3), in milliseconds.
const (
	T1 = 750  // gap between DTs during receive
	T2 = 1250 // waiting for first DT after CTS
	T3 = 1750 // waiting for CTS after RTS, or EoMA after last DT
	T4 = 1050 // hold during flow-control pause (CTS with 0 packets)
)

// MaxReassemblyBytes bounds an inbound session's buffer (spec.md §5
// "recommended: 64 KiB for TP"); TP's own 1785-byte ceiling is already far
// below this, so this mainly guards against a malformed RTS announcing an
// oversized count.
const MaxReassemblyBytes = 64 * 1024

// Manager runs the Transport Protocol's send and receive state machines.
// At most one outbound and one inbound session exist at any time (spec.md
// §3 "TP/ETP Session").
type Manager struct {
	LocalAddr pdu.Address

	out     *tpi.Session
	outDir  tpi.State // Idle or Sending
	in      *tpi.Session
	inDir   tpi.State // Idle or Receiving
	backlog backlog.Backlog
}

// NewManager creates an idle Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Send queues p for directed or broadcast transport (spec.md §4.3). If an
// outbound session is already open, p is appended to the FIFO backlog and
// opened once the current session closes (spec.md §5 "serialized").
func (m *Manager) Send(p pdu.PDU, now uint64, drv driver.Driver) error {
	if m.outDir == tpi.Sending {
		m.backlog.PushBack(p)
		return nil
	}
	return m.openOutbound(p, now, drv)
}

func (m *Manager) openOutbound(p pdu.PDU, now uint64, drv driver.Driver) error {
	total := uint32(len(p.Data))
	packets := tpi.PacketsFor(total)

	if p.IsAddressGlobal() {
		return m.sendBroadcast(p, total, packets, now, drv)
	}

	da, _ := p.DestinationAddress()
	m.out = &tpi.Session{
		Peer: da, PGN: p.PGN(), TotalBytes: total, TotalPackets: packets,
		NextPacket: 1, Source: p, Deadline: now + T3,
	}
	m.outDir = tpi.Sending
	metrics.TPSessionsOpened.Inc()

	rts := buildControl(pdu.TPControlRTS, p.SA, uint8(da), total, packets, 0xFF, p.PGN())
	return writeFrame(drv, rts)
}

func (m *Manager) sendBroadcast(p pdu.PDU, total, packets uint32, now uint64, drv driver.Driver) error {
	metrics.TPSessionsOpened.Inc()
	bam := buildControl(pdu.TPControlBAM, p.SA, uint8(pdu.AddressGlobal), total, packets, 0xFF, p.PGN())
	if err := writeFrame(drv, bam); err != nil {
		return err
	}
	for seq := uint32(1); seq <= packets; seq++ {
		if err := writeFrame(drv, buildDT(p.SA, pdu.AddressGlobal, seq, dtPayload(p.Data, seq))); err != nil {
			return err
		}
	}
	metrics.TPSessionsCompleted.Inc()
	m.drainBacklog(now, drv)
	return nil
}

// Process feeds one decoded TP-CM/TP-DT PDU (or nil, to let timers
// advance, spec.md §4.2 step 4) into the state machine. It returns a
// reassembled inbound PDU when a receive session completes, and the
// original outbound PDU when a send session completes (spec.md §4.3
// "return the finished PDU to the caller as a send-completed signal").
func (m *Manager) Process(in *pdu.PDU, now uint64, drv driver.Driver) (reassembled *pdu.PDU, sent *pdu.PDU) {
	if in != nil {
		switch in.PGN() {
		case pdu.PGNTPCM:
			reassembled, sent = m.processCM(*in, now, drv)
		case pdu.PGNTPDT:
			reassembled, sent = m.processDT(*in, now, drv)
		}
	}
	m.checkTimeouts(now, drv)
	return reassembled, sent
}

func (m *Manager) processCM(p pdu.PDU, now uint64, drv driver.Driver) (reassembled *pdu.PDU, sent *pdu.PDU) {
	if len(p.Data) < 8 {
		return nil, nil
	}
	control := p.Data[0]
	switch control {
	case pdu.TPControlRTS:
		return m.handleRTS(p, now, drv)
	case pdu.TPControlCTS:
		return nil, m.handleCTS(p, now, drv)
	case pdu.TPControlEoMA:
		return nil, m.handleEoMA(p, now, drv)
	case pdu.TPControlBAM:
		m.handleBAM(p, now)
	case pdu.TPControlAbort:
		m.handleAbort(p, now, drv)
	}
	return nil, nil
}

func (m *Manager) handleRTS(p pdu.PDU, now uint64, drv driver.Driver) (*pdu.PDU, *pdu.PDU) {
	if m.outDir == tpi.Sending || m.inDir == tpi.Receiving {
		// Collision policy (spec.md §4.3): reply Abort(AlreadyConnected)
		// for the new PGN, do not perturb the active session.
		writeFrame(drv, buildControl(pdu.TPControlAbort, uint8(m.LocalAddr), p.SA,
			uint32(pdu.AbortAlreadyConnected), 0, 0xFF, decodePGN(p.Data)))
		return nil, nil
	}
	total := le16(p.Data[1], p.Data[2])
	packets := uint32(p.Data[3])
	if total == 0 || packets == 0 || uint32(total) > MaxReassemblyBytes {
		log.Printf("tp: handleRTS: rejecting oversized/empty announcement (%d bytes, %d packets)", total, packets)
		return nil, nil
	}
	m.in = &tpi.Session{
		Peer: pdu.Address(p.SA), PGN: decodePGN(p.Data), TotalBytes: uint32(total),
		TotalPackets: packets, NextPacket: 1, Buffer: make([]byte, total), Deadline: now + T2,
	}
	m.inDir = tpi.Receiving
	metrics.TPSessionsOpened.Inc()

	cts := buildControl(pdu.TPControlCTS, uint8(m.LocalAddr), p.SA, 0, 0, 0, 0)
	cts.Data[1] = byte(packets)
	cts.Data[2] = 1
	writeFrame(drv, cts)
	return nil, nil
}

func (m *Manager) handleCTS(p pdu.PDU, now uint64, drv driver.Driver) *pdu.PDU {
	if m.outDir != tpi.Sending || m.out == nil || pdu.Address(p.SA) != m.out.Peer {
		return nil
	}
	nrPackets := uint32(p.Data[1])
	next := uint32(p.Data[2])
	if nrPackets == 0 {
		m.out.Deadline = now + T4
		return nil
	}
	m.out.NextPacket = next
	for i := uint32(0); i < nrPackets && m.out.NextPacket <= m.out.TotalPackets; i++ {
		seq := m.out.NextPacket
		writeFrame(drv, buildDT(uint8(m.LocalAddr), m.out.Peer, seq, dtPayload(m.out.Source.Data, seq)))
		m.out.NextPacket++
	}
	m.out.Deadline = now + T3
	return nil
}

func (m *Manager) handleEoMA(p pdu.PDU, now uint64, drv driver.Driver) *pdu.PDU {
	if m.outDir != tpi.Sending || m.out == nil || pdu.Address(p.SA) != m.out.Peer {
		return nil
	}
	finished := m.out.Source
	m.out, m.outDir = nil, tpi.Idle
	metrics.TPSessionsCompleted.Inc()
	m.drainBacklog(now, drv)
	return &finished
}

func (m *Manager) handleBAM(p pdu.PDU, now uint64) {
	if m.inDir == tpi.Receiving {
		log.Printf("tp: handleBAM: dropping BAM, inbound session already active")
		return
	}
	total := le16(p.Data[1], p.Data[2])
	packets := uint32(p.Data[3])
	if total == 0 || packets == 0 || uint32(total) > MaxReassemblyBytes {
		return
	}
	m.in = &tpi.Session{
		Peer: pdu.Address(p.SA), PGN: decodePGN(p.Data), TotalBytes: uint32(total),
		TotalPackets: packets, NextPacket: 1, Buffer: make([]byte, total),
		Deadline: now + T1, Broadcast: true,
	}
	m.inDir = tpi.Receiving
	metrics.TPSessionsOpened.Inc()
}

func (m *Manager) handleAbort(p pdu.PDU, now uint64, drv driver.Driver) {
	if m.outDir == tpi.Sending && m.out != nil && pdu.Address(p.SA) == m.out.Peer {
		m.backlog.PushFront(m.out.Source)
		m.out, m.outDir = nil, tpi.Idle
		metrics.TPSessionsAborted.Inc()
		m.drainBacklog(now, drv)
		return
	}
	if m.inDir == tpi.Receiving && m.in != nil && pdu.Address(p.SA) == m.in.Peer {
		m.in, m.inDir = nil, tpi.Idle
		metrics.TPSessionsAborted.Inc()
	}
}

func (m *Manager) processDT(p pdu.PDU, now uint64, drv driver.Driver) (*pdu.PDU, *pdu.PDU) {
	if m.inDir != tpi.Receiving || m.in == nil || pdu.Address(p.SA) != m.in.Peer || len(p.Data) < 8 {
		return nil, nil
	}
	seq := uint32(p.Data[0])
	if seq < 1 || seq > m.in.TotalPackets {
		return nil, nil // out-of-range: bounds-checked and silently dropped (spec.md §5)
	}
	offset := int(seq-1) * 7
	n := 7
	if offset+n > len(m.in.Buffer) {
		n = len(m.in.Buffer) - offset
	}
	if n > 0 {
		copy(m.in.Buffer[offset:offset+n], p.Data[1:1+n])
	}

	if seq == m.in.TotalPackets {
		finished := m.in
		m.in, m.inDir = nil, tpi.Idle
		metrics.TPSessionsCompleted.Inc()
		if !finished.Broadcast {
			eoma := buildControl(pdu.TPControlEoMA, uint8(m.LocalAddr), uint8(finished.Peer),
				finished.TotalBytes, finished.TotalPackets, 0xFF, finished.PGN)
			writeFrame(drv, eoma)
		}
		out := reconstructPDU(finished, m.LocalAddr)
		return &out, nil
	}
	m.in.Deadline = now + T1
	return nil, nil
}

func (m *Manager) checkTimeouts(now uint64, drv driver.Driver) {
	if m.outDir == tpi.Sending && m.out != nil && now > m.out.Deadline {
		writeFrame(drv, buildControl(pdu.TPControlAbort, uint8(m.LocalAddr), uint8(m.out.Peer),
			uint32(pdu.AbortTimeout), 0, 0xFF, m.out.PGN))
		log.Printf("tp: checkTimeouts: outbound session to %#x timed out", m.out.Peer)
		m.out, m.outDir = nil, tpi.Idle
		metrics.TPSessionsAborted.Inc()
		m.drainBacklog(now, drv)
	}
	if m.inDir == tpi.Receiving && m.in != nil && now > m.in.Deadline {
		writeFrame(drv, buildControl(pdu.TPControlAbort, uint8(m.LocalAddr), uint8(m.in.Peer),
			uint32(pdu.AbortTimeout), 0, 0xFF, m.in.PGN))
		log.Printf("tp: checkTimeouts: inbound session from %#x timed out", m.in.Peer)
		m.in, m.inDir = nil, tpi.Idle
		metrics.TPSessionsAborted.Inc()
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

// HasOutboundSession reports whether a send is currently in flight, for
// upper layers (the working-set) that need to know before queuing more
// work (spec.md §5 "serialized").
func (m *Manager) HasOutboundSession() bool {
	return m.outDir == tpi.Sending
}
