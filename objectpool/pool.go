package objectpool

import (
	"encoding/binary"
	"sort"

	"github.com/OpenIsobus/OpenIsobus/isoerr"
)

// Pool indexes a decoded object list by id for O(log n) lookup, rather
// than a linear scan per reference resolved while rendering a mask
// (spec.md §6 "the implementation must parse the stream object-by-object
// ... and serialize symmetrically"; lookup performance is left to the
// implementer).
type Pool struct {
	objs   []Object
	sorted []int // indices into objs, sorted by ID
}

// NewPool builds a Pool over objs, indexing by ID.
func NewPool(objs []Object) *Pool {
	idx := make([]int, len(objs))
	for i := range objs {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return objs[idx[a]].ID < objs[idx[b]].ID })
	return &Pool{objs: objs, sorted: idx}
}

// ParsePool decodes data and indexes the result.
func ParsePool(data []byte) (*Pool, error) {
	objs, err := DecodePool(data)
	if err != nil && len(objs) == 0 {
		return nil, err
	}
	return NewPool(objs), err
}

// Lookup finds the object with the given id via binary search over the
// ID-sorted index.
func (p *Pool) Lookup(id uint16) (Object, bool) {
	i := sort.Search(len(p.sorted), func(i int) bool {
		return p.objs[p.sorted[i]].ID >= id
	})
	if i < len(p.sorted) && p.objs[p.sorted[i]].ID == id {
		return p.objs[p.sorted[i]], true
	}
	return Object{}, false
}

// Len returns the number of objects in the pool.
func (p *Pool) Len() int {
	return len(p.objs)
}

// All returns every object in original stream order.
func (p *Pool) All() []Object {
	return p.objs
}

// Container is the parsed view of a Container object: a rectangular
// region hosting child objects (spec.md §6).
type Container struct {
	Width, Height uint16
	Hidden        bool
	Children      []ObjectReference
	Macros        []MacroReference
}

// DecodeContainer parses a Container's type-specific payload: width (u16),
// height (u16), hidden (1 byte), then the shared object-reference and
// macro-reference runs (spec.md §6).
func DecodeContainer(payload []byte) (Container, error) {
	if len(payload) < 5 {
		return Container{}, isoerr.ErrShortRead
	}
	c := Container{
		Width:  binary.LittleEndian.Uint16(payload[0:2]),
		Height: binary.LittleEndian.Uint16(payload[2:4]),
		Hidden: payload[4] != 0,
	}
	rest := payload[5:]
	refs, rest, err := DecodeObjectReferences(rest)
	if err != nil {
		return Container{}, err
	}
	c.Children = refs
	macros, _, err := DecodeMacroReferences(rest)
	if err != nil {
		return Container{}, err
	}
	c.Macros = macros
	return c, nil
}

// EncodeContainer serializes c back to a Container payload.
func EncodeContainer(c Container) []byte {
	out := make([]byte, 5)
	binary.LittleEndian.PutUint16(out[0:2], c.Width)
	binary.LittleEndian.PutUint16(out[2:4], c.Height)
	if c.Hidden {
		out[4] = 1
	}
	out = append(out, EncodeObjectReferences(c.Children)...)
	out = append(out, EncodeMacroReferences(c.Macros)...)
	return out
}

// Mask is the shared shape of DataMask, AlarmMask, and SoftKeyMask: a
// background colour plus child objects and macros (spec.md §6).
type Mask struct {
	BackgroundColour byte
	Children         []ObjectReference
	Macros           []MacroReference
}

// DecodeMask parses a mask-family payload: background colour index (1
// byte), then the shared object-reference and macro-reference runs.
func DecodeMask(payload []byte) (Mask, error) {
	if len(payload) < 1 {
		return Mask{}, isoerr.ErrShortRead
	}
	m := Mask{BackgroundColour: payload[0]}
	rest := payload[1:]
	refs, rest, err := DecodeObjectReferences(rest)
	if err != nil {
		return Mask{}, err
	}
	m.Children = refs
	macros, _, err := DecodeMacroReferences(rest)
	if err != nil {
		return Mask{}, err
	}
	m.Macros = macros
	return m, nil
}

// EncodeMask serializes m back to a mask-family payload.
func EncodeMask(m Mask) []byte {
	out := []byte{m.BackgroundColour}
	out = append(out, EncodeObjectReferences(m.Children)...)
	out = append(out, EncodeMacroReferences(m.Macros)...)
	return out
}

// ColourMapSize is the fixed palette size ISO 11783-6 defines for a
// ColourMap object.
const ColourMapSize = 256

// DecodeColourMap parses a ColourMap's 256-entry palette.
func DecodeColourMap(payload []byte) ([ColourMapSize]Colour, error) {
	var m [ColourMapSize]Colour
	cols, _, err := DecodeColours(payload, ColourMapSize)
	if err != nil {
		return m, err
	}
	copy(m[:], cols)
	return m, nil
}

// EncodeColourMap serializes a 256-entry palette back to a payload.
func EncodeColourMap(m [ColourMapSize]Colour) []byte {
	return EncodeColours(m[:])
}
