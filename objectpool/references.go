package objectpool

import (
	"encoding/binary"

	"github.com/OpenIsobus/OpenIsobus/isoerr"
)

// ObjectReference is a child-object placement entry: (id, x, y), shared
// by Container, WorkingSet, DataMask, AlarmMask, and SoftKeyMask (spec.md
// §6 "Object-reference entries are (id: u16, x: i16, y: i16)").
type ObjectReference struct {
	ID   uint16
	X, Y int16
}

const objectReferenceSize = 6

// DecodeObjectReferences parses a count-prefixed (1-byte count) run of
// ObjectReferences from the front of data, returning the references and
// the remaining bytes.
func DecodeObjectReferences(data []byte) ([]ObjectReference, []byte, error) {
	if len(data) < 1 {
		return nil, data, isoerr.ErrShortRead
	}
	n := int(data[0])
	data = data[1:]
	need := n * objectReferenceSize
	if len(data) < need {
		return nil, data, isoerr.ErrShortRead
	}
	refs := make([]ObjectReference, n)
	for i := 0; i < n; i++ {
		b := data[i*objectReferenceSize:]
		refs[i] = ObjectReference{
			ID: binary.LittleEndian.Uint16(b[0:2]),
			X:  int16(binary.LittleEndian.Uint16(b[2:4])),
			Y:  int16(binary.LittleEndian.Uint16(b[4:6])),
		}
	}
	return refs, data[need:], nil
}

// EncodeObjectReferences serializes refs with its 1-byte count prefix.
func EncodeObjectReferences(refs []ObjectReference) []byte {
	out := make([]byte, 1, 1+len(refs)*objectReferenceSize)
	out[0] = byte(len(refs))
	for _, r := range refs {
		var b [objectReferenceSize]byte
		binary.LittleEndian.PutUint16(b[0:2], r.ID)
		binary.LittleEndian.PutUint16(b[2:4], uint16(r.X))
		binary.LittleEndian.PutUint16(b[4:6], uint16(r.Y))
		out = append(out, b[:]...)
	}
	return out
}

// MacroReference binds a VT event to a macro object (spec.md §6
// "Macro-reference entries are (event_id: u8, macro_id: u8)").
type MacroReference struct {
	EventID byte
	MacroID byte
}

const macroReferenceSize = 2

// DecodeMacroReferences parses a count-prefixed (1-byte count) run of
// MacroReferences from the front of data.
func DecodeMacroReferences(data []byte) ([]MacroReference, []byte, error) {
	if len(data) < 1 {
		return nil, data, isoerr.ErrShortRead
	}
	n := int(data[0])
	data = data[1:]
	need := n * macroReferenceSize
	if len(data) < need {
		return nil, data, isoerr.ErrShortRead
	}
	refs := make([]MacroReference, n)
	for i := 0; i < n; i++ {
		refs[i] = MacroReference{EventID: data[i*2], MacroID: data[i*2+1]}
	}
	return refs, data[need:], nil
}

// EncodeMacroReferences serializes refs with its 1-byte count prefix.
func EncodeMacroReferences(refs []MacroReference) []byte {
	out := make([]byte, 1, 1+len(refs)*macroReferenceSize)
	out[0] = byte(len(refs))
	for _, r := range refs {
		out = append(out, r.EventID, r.MacroID)
	}
	return out
}

// Colour is one entry of a colour map or palette (spec.md §6 "Colour
// entries are (b, g, r, a) bytes").
type Colour struct {
	B, G, R, A byte
}

// DecodeColours reads exactly n Colour entries from the front of data.
func DecodeColours(data []byte, n int) ([]Colour, []byte, error) {
	if len(data) < n*4 {
		return nil, data, isoerr.ErrShortRead
	}
	cols := make([]Colour, n)
	for i := 0; i < n; i++ {
		b := data[i*4:]
		cols[i] = Colour{B: b[0], G: b[1], R: b[2], A: b[3]}
	}
	return cols, data[n*4:], nil
}

// EncodeColours serializes cols with no count prefix; callers that need
// one (e.g. ColourMap's fixed 256 entries) track the count themselves.
func EncodeColours(cols []Colour) []byte {
	out := make([]byte, 0, len(cols)*4)
	for _, c := range cols {
		out = append(out, c.B, c.G, c.R, c.A)
	}
	return out
}
