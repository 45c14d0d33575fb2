package pdu

// NewRequest builds a PGN-0xEA00 Request PDU asking for requested, from sa
// to da (GLOBAL for a broadcast request, spec.md §4.5 step 1). The payload
// is the 3-byte little-endian requested PGN (spec.md §6).
func NewRequest(requested PGN, sa Address, da Address) PDU {
	return PDU{
		Priority: PriorityRequest,
		PF:       0xEA,
		PS:       uint8(da),
		SA:       uint8(sa),
		Data: []byte{
			byte(requested),
			byte(requested >> 8),
			byte(requested >> 16),
		},
	}
}

// RequestedPGN extracts the requested PGN from a PGN-0xEA00 Request PDU's
// payload, or ok=false if the payload is short.
func RequestedPGN(p PDU) (PGN, bool) {
	if len(p.Data) < 3 {
		return 0, false
	}
	return PGN(uint32(p.Data[0]) | uint32(p.Data[1])<<8 | uint32(p.Data[2])<<16), true
}

// IsRequest reports whether p is a PGN-0xEA00 Request PDU.
func IsRequest(p PDU) bool {
	return p.PGN() == PGNRequest
}

// NewAddressClaimed builds a PGN-0xEE00 Address Claimed PDU announcing
// name from sa (spec.md §4.5). da is normally AddressGlobal.
func NewAddressClaimed(name Name, sa Address, da Address) PDU {
	b := name.Bytes()
	return PDU{
		Priority: PriorityAddressClaim,
		PF:       0xEE,
		PS:       uint8(da),
		SA:       uint8(sa),
		Data:     b[:],
	}
}

// IsAddressClaimed reports whether p is a PGN-0xEE00 Address Claimed PDU.
func IsAddressClaimed(p PDU) bool {
	return p.PGN() == PGNAddressClaimed
}

// ClaimedName extracts the Name carried by an Address Claimed PDU.
func ClaimedName(p PDU) (Name, bool) {
	return NameFromBytes(p.Data)
}

// NewCannotClaim builds the "Cannot Claim Source Address" PDU: an Address
// Claimed PDU sent from AddressNull (spec.md §4.5 "no further candidate
// exists").
func NewCannotClaim(name Name) PDU {
	return NewAddressClaimed(name, AddressNull, AddressGlobal)
}

// IsCommandedAddress reports whether p is a PGN-0xFED8 Commanded Address
// PDU.
func IsCommandedAddress(p PDU) bool {
	return p.PGN() == PGNCommandedAddress
}

// CommandedNameAndAddress extracts the Name and new address from a
// Commanded Address PDU payload (8-byte Name followed by 1 address byte,
// spec.md §4.5).
func CommandedNameAndAddress(p PDU) (Name, Address, bool) {
	if len(p.Data) < 9 {
		return 0, 0, false
	}
	name, ok := NameFromBytes(p.Data[:8])
	if !ok {
		return 0, 0, false
	}
	return name, Address(p.Data[8]), true
}
