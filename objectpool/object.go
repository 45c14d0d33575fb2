package objectpool

import (
	"encoding/binary"

	"github.com/OpenIsobus/OpenIsobus/isoerr"
)

// Object is one entry in a pool: a 2-byte id, a 1-byte type tag, and its
// type-specific payload (spec.md §6). The payload is kept as opaque bytes
// here; a handful of types with a shared, spec-named sub-structure
// (object references, macro references, colour entries) additionally
// parse through the decoders in references.go.
type Object struct {
	ID      uint16
	Type    ObjectType
	Payload []byte
}

// lengthPrefix is the 2-byte little-endian byte count OpenIsobus writes
// ahead of every object's payload. ISO 11783-6 computes each object's
// length implicitly from its type-specific fixed and variable parts;
// since the full per-type layout of all 37 object types is out of scope
// (spec.md §9 "giant hand-written enums... are data, not code"), an
// explicit length prefix lets one generic decoder parse the whole stream
// "object-by-object until input is exhausted" exactly as spec.md §6
// requires, while keeping every object's payload available for the
// handful of types that do get fuller parsing.
const lengthPrefix = 2

// DecodePool parses data into a sequence of Objects, stopping at the
// first short read (spec.md §7 "partial object pools are silently
// truncated").
func DecodePool(data []byte) ([]Object, error) {
	var objs []Object
	for len(data) > 0 {
		if len(data) < 2+1+lengthPrefix {
			return objs, isoerr.ErrShortRead
		}
		id := binary.LittleEndian.Uint16(data[0:2])
		tag := data[2]
		n := int(binary.LittleEndian.Uint16(data[3:5]))
		data = data[5:]
		if n > len(data) {
			return objs, isoerr.ErrShortRead
		}
		t, _ := FromU8(tag)
		objs = append(objs, Object{ID: id, Type: t, Payload: append([]byte(nil), data[:n]...)})
		data = data[n:]
	}
	return objs, nil
}

// EncodePool serializes objs back to the wire format DecodePool parses,
// symmetrically (spec.md §6 "serialize symmetrically").
func EncodePool(objs []Object) []byte {
	var out []byte
	for _, o := range objs {
		var hdr [5]byte
		binary.LittleEndian.PutUint16(hdr[0:2], o.ID)
		hdr[2] = ToU8(o.Type)
		binary.LittleEndian.PutUint16(hdr[3:5], uint16(len(o.Payload)))
		out = append(out, hdr[:]...)
		out = append(out, o.Payload...)
	}
	return out
}
