package pdu

// PGN is the 18-bit Parameter Group Number used as a semantic opcode
// (spec.md §3 "PGN"). It is the EDP/DP/PF/PS-derived value, not the raw
// 29-bit CAN id.
type PGN uint32

// Well-known PGN constants (spec.md §3), hex, 24-bit packing.
const (
	PGNRequest           PGN = 0xEA00
	PGNAddressClaimed    PGN = 0xEE00
	PGNCommandedAddress  PGN = 0xFED8
	PGNTPCM              PGN = 0xEC00
	PGNTPDT              PGN = 0xEB00
	PGNETPCM             PGN = 0xC800
	PGNETPDT             PGN = 0xC700
	PGNVTToECU           PGN = 0xE600
	PGNECUToVT           PGN = 0xE700
	PGNLanguage          PGN = 0xFE0F
	PGNTimeDate          PGN = 0xFEE6
	PGNWorkingSetMaster  PGN = 0xFE0D
	PGNWorkingSetMember  PGN = 0xFE0C
)

// IsPDU1 reports whether pf identifies a destination-specific (PDU1) group,
// i.e. pf < 240 (spec.md §3 "Derived").
func IsPDU1(pf uint8) bool {
	return pf < 240
}

// ComputePGN folds edp/dp/pf/ps into an 18-bit PGN per spec.md §3:
//
//	(EDP<<17) | (DP<<16) | (PF<<8) | (PS if PF>=240 else 0)
func ComputePGN(edp, dp, pf, ps uint8) PGN {
	v := (uint32(edp&1) << 17) | (uint32(dp&1) << 16) | (uint32(pf) << 8)
	if !IsPDU1(pf) {
		v |= uint32(ps)
	}
	return PGN(v)
}
