package etp

import (
	"github.com/OpenIsobus/OpenIsobus/driver"
	"github.com/OpenIsobus/OpenIsobus/isoerr"
	"github.com/OpenIsobus/OpenIsobus/metrics"
	"github.com/OpenIsobus/OpenIsobus/pdu"
)

// ETP-CM control bytes (spec.md §4.4, §6).
const (
	controlRTS   byte = pdu.ETPControlRTS
	controlCTS   byte = pdu.ETPControlCTS
	controlDPO   byte = pdu.ETPControlDPO
	controlEoMA  byte = pdu.ETPControlEoMA
	controlAbort byte = pdu.ETPControlAbort
)

var errNotDirected = isoerr.New("etp: Send: PDU must be directed, ETP has no broadcast form")

var (
	etpcmPF = uint8(pdu.PGNETPCM >> 8)
	etpdtPF = uint8(pdu.PGNETPDT >> 8)
)

// buildControl assembles an 8-byte ETP-CM payload. RTS/EoMA carry a
// 32-bit total message size in bytes 1..=4; DPO carries an 8-bit burst
// count and a 24-bit packet offset; Abort carries only a reason code
// (spec.md §4.4, §6).
func buildControl(control byte, sa, da uint8, field1, field2 uint32, reserved uint16, pgn pdu.PGN) pdu.PDU {
	data := make([]byte, 8)
	data[0] = control
	switch control {
	case controlAbort:
		data[1] = byte(field1)
		data[2], data[3], data[4] = 0xFF, 0xFF, 0xFF
	case controlRTS, controlEoMA:
		data[1] = byte(field1)
		data[2] = byte(field1 >> 8)
		data[3] = byte(field1 >> 16)
		data[4] = byte(field1 >> 24)
	case controlDPO:
		data[1] = byte(field1)
		data[2] = byte(field2)
		data[3] = byte(field2 >> 8)
		data[4] = byte(field2 >> 16)
	}
	data[5], data[6], data[7] = encodePGN(pgn)

	return pdu.PDU{
		Priority: pdu.PriorityTransport,
		PF:       etpcmPF,
		PS:       da,
		SA:       sa,
		Data:     data,
	}
}

// buildDT assembles an ETP.DT frame. seq is the 1-based sequence number
// within the current DPO-declared window (spec.md §4.4: it resets to 1 at
// the start of every burst, it does not accumulate across windows).
func buildDT(sa uint8, da pdu.Address, seq byte, payload [7]byte) pdu.PDU {
	data := make([]byte, 8)
	data[0] = seq
	copy(data[1:], payload[:])
	return pdu.PDU{
		Priority: pdu.PriorityTransport,
		PF:       etpdtPF,
		PS:       uint8(da),
		SA:       sa,
		Data:     data,
	}
}

// dtPayload slices out packet packetNum's 7 bytes, where packetNum is the
// packet's absolute 1-based index within the whole transfer (independent
// of where the current window starts).
func dtPayload(data []byte, packetNum uint32) [7]byte {
	var out [7]byte
	for i := range out {
		out[i] = 0xFF
	}
	offset := int(packetNum-1) * 7
	for i := 0; i < 7 && offset+i < len(data); i++ {
		out[i] = data[offset+i]
	}
	return out
}

func encodePGN(pgn pdu.PGN) (b5, b6, b7 byte) {
	pf := uint8((pgn >> 8) & 0xFF)
	var ps uint8
	if !pdu.IsPDU1(pf) {
		ps = uint8(pgn & 0xFF)
	}
	edp := uint8((pgn >> 17) & 1)
	dp := uint8((pgn >> 16) & 1)
	return ps, pf, (edp << 1) | dp
}

func decodePGN(data []byte) pdu.PGN {
	if len(data) < 8 {
		return 0
	}
	ps, pf, resv := data[5], data[6], data[7]
	edp := (resv >> 1) & 1
	dp := resv & 1
	return pdu.ComputePGN(edp, dp, pf, ps)
}

func le24(b2, b3, b4 byte) uint32 {
	return uint32(b2) | uint32(b3)<<8 | uint32(b4)<<16
}

func writeFrame(drv driver.Driver, p pdu.PDU) error {
	if drv == nil {
		return nil
	}
	if err := drv.Write(p.ToFrame()); err != nil {
		return err
	}
	metrics.FramesOut.Inc()
	return nil
}
