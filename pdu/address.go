package pdu

// Address is an ISOBUS source/destination byte (spec.md §3 "IsobusAddress").
type Address uint8

// Reserved address values.
const (
	AddressGlobal Address = 0xFF
	AddressNull   Address = 0xFE
)

// Self-configurable claim range (spec.md §3).
const (
	ClaimRangeLow  Address = 0x80
	ClaimRangeHigh Address = 0xF7
)
