package tp

import (
	"github.com/OpenIsobus/OpenIsobus/driver"
	"github.com/OpenIsobus/OpenIsobus/metrics"
	"github.com/OpenIsobus/OpenIsobus/pdu"
	tpi "github.com/OpenIsobus/OpenIsobus/transport/internal"
)

var (
	tpcmPF = uint8(pdu.PGNTPCM >> 8)
	tpdtPF = uint8(pdu.PGNTPDT >> 8)
)

// buildControl assembles an 8-byte TP-CM payload. The layout depends on
// control: RTS/BAM/EoMA carry a 16-bit byte count and an 8-bit packet
// count in bytes 1..=3, Abort carries only a reason code in byte 1, and
// CTS's bytes 1..=2 are filled in by the caller after the fact (spec.md
// §6).
func buildControl(control byte, sa, da uint8, field1, field2 uint32, reserved byte, pgn pdu.PGN) pdu.PDU {
	data := make([]byte, 8)
	data[0] = control
	switch control {
	case pdu.TPControlAbort:
		data[1] = byte(field1)
		data[2], data[3], data[4] = 0xFF, 0xFF, 0xFF
	default:
		data[1] = byte(field1)
		data[2] = byte(field1 >> 8)
		data[3] = byte(field2)
		data[4] = reserved
	}
	data[5], data[6], data[7] = encodePGN(pgn)

	return pdu.PDU{
		Priority: pdu.PriorityTransport,
		PF:       tpcmPF,
		PS:       da,
		SA:       sa,
		Data:     data,
	}
}

// buildDT assembles a TP.DT frame: sequence number followed by up to 7
// payload bytes (spec.md §4.3).
func buildDT(sa uint8, da pdu.Address, seq uint32, payload [7]byte) pdu.PDU {
	data := make([]byte, 8)
	data[0] = byte(seq)
	copy(data[1:], payload[:])
	return pdu.PDU{
		Priority: pdu.PriorityTransport,
		PF:       tpdtPF,
		PS:       uint8(da),
		SA:       sa,
		Data:     data,
	}
}

// dtPayload extracts the 7 bytes belonging to DT packet seq (1-based),
// padding the final short packet with 0xFF (spec.md §3 "pad convention").
func dtPayload(data []byte, seq uint32) [7]byte {
	var out [7]byte
	for i := range out {
		out[i] = 0xFF
	}
	offset := int(seq-1) * 7
	for i := 0; i < 7 && offset+i < len(data); i++ {
		out[i] = data[offset+i]
	}
	return out
}

// encodePGN and decodePGN pack/unpack the 3-byte PGN field carried in
// bytes 5..=7 of a TP-CM/ETP-CM payload (spec.md §4.3 "3-byte PGN at
// bytes 5..=7"): PS, then PF, then a reserved byte holding EDP/DP so the
// field round-trips through ComputePGN exactly.
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

func le16(lo, hi byte) uint16 {
	return uint16(lo) | uint16(hi)<<8
}

// reconstructPDU rebuilds the logical PDU a completed inbound session
// carried, attributing the destination address back to localAddr for
// directed transfers (spec.md §4.3 "deliver the reassembled PDU").
func reconstructPDU(s *tpi.Session, localAddr pdu.Address) pdu.PDU {
	pf := uint8((s.PGN >> 8) & 0xFF)
	edp := uint8((s.PGN >> 17) & 1)
	dp := uint8((s.PGN >> 16) & 1)
	var ps uint8
	if !pdu.IsPDU1(pf) {
		ps = uint8(s.PGN & 0xFF)
	} else {
		ps = uint8(localAddr)
	}
	return pdu.PDU{EDP: edp, DP: dp, PF: pf, PS: ps, SA: uint8(s.Peer), Data: s.Buffer}
}

// writeFrame packs p into a single CAN frame and writes it via drv,
// counting the result (spec.md §7 counter increments).
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
