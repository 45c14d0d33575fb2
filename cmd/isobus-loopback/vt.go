package main

import (
	"log"

	"github.com/OpenIsobus/OpenIsobus/driver"
	"github.com/OpenIsobus/OpenIsobus/frame"
	"github.com/OpenIsobus/OpenIsobus/objectpool"
	"github.com/OpenIsobus/OpenIsobus/pdu"
)

// vtAddress is the fixed bus address the scripted virtual terminal claims
// in this demonstration; there is no real claim arbitration on its side,
// only on the ECU's.
const vtAddress = pdu.Address(0x26)

// virtualVT is a minimal, scripted VT peer for the loopback driver: it
// replies to each step of the working-set handshake with the response
// that step expects, and reassembles an inbound Transport Protocol
// session well enough to receive an object pool. It exists only to give
// the demo something to talk to; it is not a conformance reference.
type virtualVT struct {
	announced bool

	tpInProgress bool
	tpTotalBytes uint16
	tpNumPackets uint8
	tpReceived   []byte
}

func newVirtualVT() *virtualVT {
	return &virtualVT{}
}

// announce injects the VT Status broadcast that starts the handshake, the
// way a real VT does once it is itself ready (spec.md §4.6).
func (vt *virtualVT) announce(l *driver.Loopback) {
	if vt.announced {
		return
	}
	vt.announced = true
	status := pdu.PDU{
		Priority: pdu.PriorityVT,
		PF:       uint8(pdu.PGNVTToECU >> 8),
		PS:       uint8(pdu.AddressGlobal),
		SA:       uint8(vtAddress),
		Data:     []byte{pdu.VTFnVTStatusMessage, 0xFF, 0, 0, 0, 0, 0, 0},
	}
	l.Inject(status.ToFrame())
}

// respond is installed as the Loopback's Responder: for every frame the
// ECU writes, it decides whether the scripted VT has anything to say
// back.
func (vt *virtualVT) respond(l *driver.Loopback, written frame.Frame) {
	p := pdu.FromFrame(written)

	switch p.PGN() {
	case pdu.PGNTPCM:
		vt.handleTPCM(l, p)
	case pdu.PGNTPDT:
		vt.handleTPDT(l, p)
	case pdu.PGNECUToVT:
		vt.handleECUToVT(l, p)
	case pdu.PGNRequest:
		if requested, ok := pdu.RequestedPGN(p); ok && (requested == pdu.PGNLanguage || requested == pdu.PGNTimeDate) {
			r := pdu.PDU{
				Priority: pdu.PriorityVT,
				PF:       uint8(requested >> 8),
				PS:       uint8(requested),
				SA:       uint8(vtAddress),
				Data:     []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			}
			l.Inject(r.ToFrame())
		}
	}
}

func (vt *virtualVT) handleTPCM(l *driver.Loopback, p pdu.PDU) {
	if len(p.Data) < 8 || pdu.Address(p.PS) != vtAddress {
		return
	}
	switch p.Data[0] {
	case pdu.TPControlRTS:
		vt.tpTotalBytes = uint16(p.Data[1]) | uint16(p.Data[2])<<8
		vt.tpNumPackets = p.Data[3]
		vt.tpInProgress = true
		vt.tpReceived = vt.tpReceived[:0]
		cts := pdu.PDU{
			Priority: pdu.PriorityTransport,
			PF:       uint8(pdu.PGNTPCM >> 8),
			PS:       p.SA,
			SA:       uint8(vtAddress),
			Data:     []byte{pdu.TPControlCTS, vt.tpNumPackets, 1, 0xFF, 0xFF, p.Data[5], p.Data[6], p.Data[7]},
		}
		l.Inject(cts.ToFrame())
	}
}

func (vt *virtualVT) handleTPDT(l *driver.Loopback, p pdu.PDU) {
	if !vt.tpInProgress || len(p.Data) < 8 {
		return
	}
	n := len(p.Data) - 1
	if len(vt.tpReceived)+n > int(vt.tpTotalBytes) {
		n = int(vt.tpTotalBytes) - len(vt.tpReceived)
	}
	vt.tpReceived = append(vt.tpReceived, p.Data[1:1+n]...)

	if uint16(len(vt.tpReceived)) < vt.tpTotalBytes {
		return
	}
	vt.tpInProgress = false

	pool := vt.tpReceived
	if len(pool) > 0 && pool[0] == pdu.VTFnObjectPoolTransferMessage {
		pool = pool[1:]
	}
	if _, err := objectpool.DecodePool(pool); err != nil {
		log.Printf("isobus-loopback: virtualVT: object pool decode: %v", err)
	}

	eoma := pdu.PDU{
		Priority: pdu.PriorityTransport,
		PF:       uint8(pdu.PGNTPCM >> 8),
		PS:       p.SA,
		SA:       uint8(vtAddress),
		Data: []byte{
			pdu.TPControlEoMA,
			byte(vt.tpTotalBytes), byte(vt.tpTotalBytes >> 8),
			vt.tpNumPackets, 0xFF, 0xFF, 0xFF, 0xFF,
		},
	}
	l.Inject(eoma.ToFrame())
}

// handleECUToVT answers each single-frame handshake command with the
// canned response its sender expects next (spec.md §4.6's handshake
// chain).
func (vt *virtualVT) handleECUToVT(l *driver.Loopback, p pdu.PDU) {
	if len(p.Data) == 0 {
		return
	}
	ecu := p.SA

	reply := func(fn byte, payload ...byte) {
		data := append([]byte{fn}, payload...)
		r := pdu.PDU{
			Priority: pdu.PriorityVT,
			PF:       uint8(pdu.PGNVTToECU >> 8),
			PS:       uint8(ecu),
			SA:       uint8(vtAddress),
			Data:     data,
		}
		l.Inject(r.ToFrame())
	}

	switch p.Data[0] {
	case pdu.VTFnGetHardwareMessage:
		reply(pdu.VTFnGetHardwareMessage, 0, 0, 0, 0, 0, 0, 0)
	case pdu.VTFnGetNumberOfSoftKeysMessage:
		reply(pdu.VTFnGetNumberOfSoftKeysMessage, 0xFF, 0xFF, 6, 20, 20, 0xFF, 0xFF)
	case pdu.VTFnGetTextFontDataMessage:
		reply(pdu.VTFnGetTextFontDataMessage, 0xFF, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	case pdu.VTFnGetVersionsMessage:
		reply(pdu.VTFnGetVersionsResponse, 1, 0, 0, 0, 0, 0, 0)
	case pdu.VTFnGetMemoryMessage:
		reply(pdu.VTFnGetMemoryMessage, 1, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	case pdu.VTFnEndOfObjectPoolMessage:
		reply(pdu.VTFnEndOfObjectPoolMessage, 0, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	}
}

// newScriptedLoopback wires a driver.Loopback to a virtualVT and returns
// it ready for Isobus.New.
func newScriptedLoopback() *driver.Loopback {
	l := driver.NewLoopback()
	vt := newVirtualVT()
	l.Responder = func(l *driver.Loopback, written frame.Frame) {
		vt.announce(l)
		vt.respond(l, written)
	}
	return l
}

// buildSamplePool encodes a tiny two-object pool: a WorkingSet container
// object and a DataMask, enough to exercise the TP transfer and the
// scripted VT's EndOfObjectPool reply.
func buildSamplePool() []byte {
	objs := []objectpool.Object{
		{ID: 0, Type: objectpool.TypeWorkingSet, Payload: objectpool.EncodeContainer(objectpool.Container{
			Width: 480, Height: 270,
		})},
		{ID: 1, Type: objectpool.TypeDataMask, Payload: objectpool.EncodeMask(objectpool.Mask{
			BackgroundColour: 1,
		})},
	}
	return objectpool.EncodePool(objs)
}
