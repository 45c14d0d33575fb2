// Package frame provides the typed CAN identifier and Frame that sit below
// the PDU/PGN codec (spec.md §3 "CAN Frame").
package frame

// Id is a CAN arbitration identifier. Standard ids occupy the low 11 bits;
// extended ids (the only kind ISOBUS/J1939 traffic uses, spec.md §6)
// occupy the low 29 bits and carry Extended=true.
type Id struct {
	raw      uint32
	extended bool
}

// StdMax is the highest legal 11-bit standard identifier.
const StdMax uint32 = 0x7FF

// ExtMax is the highest legal 29-bit extended identifier.
const ExtMax uint32 = 0x1FFFFFFF

// NewStandardId builds an 11-bit identifier. Out-of-range raws saturate to
// StdMax rather than silently wrapping, per spec.md §3's "typed
// constructors... reject out-of-range raws by saturating to MAX".
func NewStandardId(raw uint32) Id {
	if raw > StdMax {
		raw = StdMax
	}
	return Id{raw: raw, extended: false}
}

// NewExtendedId builds a 29-bit identifier, saturating out-of-range raws to
// ExtMax.
func NewExtendedId(raw uint32) Id {
	if raw > ExtMax {
		raw = ExtMax
	}
	return Id{raw: raw, extended: true}
}

// Raw returns the bare numeric identifier (11 or 29 significant bits).
func (id Id) Raw() uint32 {
	return id.raw
}

// IsExtended reports whether id is a 29-bit extended identifier.
func (id Id) IsExtended() bool {
	return id.extended
}
