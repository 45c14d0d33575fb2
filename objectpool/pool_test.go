package objectpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolLookupFindsByID(t *testing.T) {
	objs := []Object{
		{ID: 50, Type: TypeWorkingSet},
		{ID: 10, Type: TypeDataMask},
		{ID: 30, Type: TypeContainer},
	}
	p := NewPool(objs)
	require.Equal(t, 3, p.Len())

	got, ok := p.Lookup(30)
	require.True(t, ok)
	assert.Equal(t, TypeContainer, got.Type)

	_, ok = p.Lookup(999)
	assert.False(t, ok)
}

func TestPoolAllPreservesStreamOrder(t *testing.T) {
	objs := []Object{
		{ID: 50, Type: TypeWorkingSet},
		{ID: 10, Type: TypeDataMask},
	}
	p := NewPool(objs)
	assert.Equal(t, objs, p.All())
}

func TestParsePoolDecodesAndIndexes(t *testing.T) {
	objs := []Object{
		{ID: 1, Type: TypeWorkingSet, Payload: []byte{1}},
		{ID: 2, Type: TypeContainer, Payload: []byte{2}},
	}
	wire := EncodePool(objs)

	p, err := ParsePool(wire)
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())

	got, ok := p.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, TypeContainer, got.Type)
}

func TestContainerRoundTrip(t *testing.T) {
	c := Container{
		Width:  100,
		Height: 200,
		Hidden: true,
		Children: []ObjectReference{
			{ID: 5, X: -1, Y: 2},
			{ID: 6, X: 3, Y: -4},
		},
		Macros: []MacroReference{{EventID: 1, MacroID: 9}},
	}
	payload := EncodeContainer(c)
	got, err := DecodeContainer(payload)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestDecodeContainerShortRead(t *testing.T) {
	_, err := DecodeContainer([]byte{1, 2})
	assert.Error(t, err)
}

func TestMaskRoundTrip(t *testing.T) {
	m := Mask{
		BackgroundColour: 7,
		Children:         []ObjectReference{{ID: 1, X: 0, Y: 0}},
		Macros:           []MacroReference{{EventID: 2, MacroID: 3}},
	}
	payload := EncodeMask(m)
	got, err := DecodeMask(payload)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeMaskShortRead(t *testing.T) {
	_, err := DecodeMask(nil)
	assert.Error(t, err)
}

func TestColourMapRoundTrip(t *testing.T) {
	var m [ColourMapSize]Colour
	for i := range m {
		m[i] = Colour{B: byte(i), G: byte(i + 1), R: byte(i + 2), A: 0xFF}
	}
	payload := EncodeColourMap(m)
	got, err := DecodeColourMap(payload)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeColourMapShortRead(t *testing.T) {
	_, err := DecodeColourMap(make([]byte, 10))
	assert.Error(t, err)
}
