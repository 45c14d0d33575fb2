package workingset

import "github.com/OpenIsobus/OpenIsobus/pdu"

// newVTCommand builds an ECU→VT message (PGN 0xE700): VT function code fn
// in byte 0, followed by payload (spec.md §4.6; §6 byte layout is left to
// the implementer beyond the function-code byte).
func newVTCommand(fn byte, sa, vt pdu.Address, payload []byte) pdu.PDU {
	data := make([]byte, 0, 1+len(payload))
	data = append(data, fn)
	data = append(data, payload...)
	return pdu.PDU{
		Priority: pdu.PriorityVT,
		PF:       uint8(pdu.PGNECUToVT >> 8),
		PS:       uint8(vt),
		SA:       uint8(sa),
		Data:     data,
	}
}

// vtFunction returns the function code carried in a VT→ECU (PGN 0xE600)
// message, or ok=false if p isn't one or is too short to carry one.
func vtFunction(p pdu.PDU) (byte, bool) {
	if p.PGN() != pdu.PGNVTToECU || len(p.Data) == 0 {
		return 0, false
	}
	return p.Data[0], true
}

func newWorkingSetMaster(name pdu.Name, sa pdu.Address) pdu.PDU {
	b := name.Bytes()
	return pdu.PDU{
		Priority: pdu.PriorityVT,
		PF:       uint8(pdu.PGNWorkingSetMaster >> 8),
		PS:       uint8(pdu.PGNWorkingSetMaster),
		SA:       uint8(sa),
		Data:     b[:],
	}
}

// newMaintenance builds a Working-Set Maintenance message (PGN 0xFE0C);
// byte 0's low bit is the INITIATING flag, the rest of the payload is
// reserved (spec.md §4.6 "the first one carries the INITIATING bit").
func newMaintenance(sa pdu.Address, initiating bool) pdu.PDU {
	data := []byte{0, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if initiating {
		data[0] = 1
	}
	return pdu.PDU{
		Priority: pdu.PriorityVT,
		PF:       uint8(pdu.PGNWorkingSetMember >> 8),
		PS:       uint8(pdu.PGNWorkingSetMember),
		SA:       uint8(sa),
		Data:     data,
	}
}

func le16(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

func decodeLE16(b []byte) uint16 {
	if len(b) < 2 {
		return 0
	}
	return uint16(b[0]) | uint16(b[1])<<8
}
