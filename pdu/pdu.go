package pdu

import "github.com/OpenIsobus/OpenIsobus/frame"

// MaxPduBytes is ETP's hard cap on payload size (spec.md §1, §4.4):
// 117,440,505 bytes (the largest 24-bit packet count, 0xFFFFFF, times 7
// bytes/packet).
const MaxPduBytes = 117440505

// PDU is a decoded extended CAN identifier plus an unbounded payload
// (spec.md §3 "PDU"). Priority/EDP/DP/PF/PS/SA are carried separately from
// Data rather than as a single packed integer, mirroring the field-level
// accessors the teacher's header package exposes over a raw byte view.
type PDU struct {
	Priority uint8 // 0..=7
	EDP      uint8 // 0..=1, extended data page
	DP       uint8 // 0..=1, data page
	PF       uint8 // PDU Format
	PS       uint8 // PDU Specific
	SA       uint8 // Source Address
	Data     []byte
}

// IsPDU1 reports whether p is destination-specific (PF < 240); PS is then
// the destination address. Otherwise p is PDU2 (broadcast), and PS is a
// group extension folded into the PGN (spec.md §3 "Derived").
func (p PDU) IsPDU1() bool {
	return IsPDU1(p.PF)
}

// PGN computes the 18-bit semantic opcode for p (spec.md §3 "PGN").
func (p PDU) PGN() PGN {
	return ComputePGN(p.EDP, p.DP, p.PF, p.PS)
}

// IsAddressGlobal reports whether p is addressed to everyone: either it is
// PDU2 (broadcast format), or it is PDU1 explicitly addressed to
// AddressGlobal (spec.md §4.1).
func (p PDU) IsAddressGlobal() bool {
	return !p.IsPDU1() || Address(p.PS) == AddressGlobal
}

// IsAddressSpecific reports whether p is PDU1 addressed exactly to a
// (spec.md §4.1).
func (p PDU) IsAddressSpecific(a Address) bool {
	return p.IsPDU1() && Address(p.PS) == a
}

// IsAddressNull reports whether p is PDU1 addressed to AddressNull
// (spec.md §4.1).
func (p PDU) IsAddressNull() bool {
	return p.IsPDU1() && Address(p.PS) == AddressNull
}

// DestinationAddress returns p's destination address and true if p is
// PDU1 (and therefore has one); PDU2 traffic has no single destination.
func (p PDU) DestinationAddress() (Address, bool) {
	if !p.IsPDU1() {
		return 0, false
	}
	return Address(p.PS), true
}

// FromFrame unpacks a single CAN frame's 29-bit extended id into a PDU,
// per spec.md §4.1:
//
//	priority = (id>>26)&7; EDP=(id>>25)&1; DP=(id>>24)&1;
//	PF=(id>>16)&0xFF; PS=(id>>8)&0xFF; SA=id&0xFF
//
// The frame's data bytes become the PDU's payload verbatim. Multi-frame
// PDUs are instead produced by the TP/ETP reassembly managers.
func FromFrame(f frame.Frame) PDU {
	id := f.Id.Raw()
	return PDU{
		Priority: uint8((id >> 26) & 0x7),
		EDP:      uint8((id >> 25) & 0x1),
		DP:       uint8((id >> 24) & 0x1),
		PF:       uint8((id >> 16) & 0xFF),
		PS:       uint8((id >> 8) & 0xFF),
		SA:       uint8(id & 0xFF),
		Data:     append([]byte(nil), f.Data()...),
	}
}

// ToFrame packs p into a single CAN frame. It is only valid for p whose
// Data is <= frame.MaxDlc bytes (spec.md invariant 1); callers with a
// larger payload must go through TP/ETP instead.
func (p PDU) ToFrame() frame.Frame {
	raw := (uint32(p.Priority&0x7) << 26) |
		(uint32(p.EDP&0x1) << 25) |
		(uint32(p.DP&0x1) << 24) |
		(uint32(p.PF) << 16) |
		(uint32(p.PS) << 8) |
		uint32(p.SA)
	return frame.New(frame.NewExtendedId(raw), p.Data)
}
