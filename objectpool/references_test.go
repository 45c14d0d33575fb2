package objectpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenIsobus/OpenIsobus/isoerr"
)

func TestObjectReferencesRoundTrip(t *testing.T) {
	refs := []ObjectReference{
		{ID: 1, X: 10, Y: -10},
		{ID: 2, X: -5, Y: 5},
	}
	wire := EncodeObjectReferences(refs)

	got, rest, err := DecodeObjectReferences(wire)
	require.NoError(t, err)
	assert.Equal(t, refs, got)
	assert.Empty(t, rest)
}

func TestObjectReferencesLeavesTrailingBytes(t *testing.T) {
	refs := []ObjectReference{{ID: 1, X: 1, Y: 1}}
	wire := append(EncodeObjectReferences(refs), 0xAA, 0xBB)

	got, rest, err := DecodeObjectReferences(wire)
	require.NoError(t, err)
	assert.Equal(t, refs, got)
	assert.Equal(t, []byte{0xAA, 0xBB}, rest)
}

func TestObjectReferencesShortRead(t *testing.T) {
	_, _, err := DecodeObjectReferences([]byte{2, 1, 2, 3}) // count says 2, only one partial entry follows
	assert.ErrorIs(t, err, isoerr.ErrShortRead)
}

func TestObjectReferencesEmptyInputShortRead(t *testing.T) {
	_, _, err := DecodeObjectReferences(nil)
	assert.ErrorIs(t, err, isoerr.ErrShortRead)
}

func TestMacroReferencesRoundTrip(t *testing.T) {
	refs := []MacroReference{
		{EventID: 1, MacroID: 2},
		{EventID: 3, MacroID: 4},
	}
	wire := EncodeMacroReferences(refs)

	got, rest, err := DecodeMacroReferences(wire)
	require.NoError(t, err)
	assert.Equal(t, refs, got)
	assert.Empty(t, rest)
}

func TestMacroReferencesShortRead(t *testing.T) {
	_, _, err := DecodeMacroReferences([]byte{3, 1, 2})
	assert.ErrorIs(t, err, isoerr.ErrShortRead)
}

func TestColoursRoundTrip(t *testing.T) {
	cols := []Colour{
		{B: 1, G: 2, R: 3, A: 4},
		{B: 5, G: 6, R: 7, A: 8},
	}
	wire := EncodeColours(cols)

	got, rest, err := DecodeColours(wire, len(cols))
	require.NoError(t, err)
	assert.Equal(t, cols, got)
	assert.Empty(t, rest)
}

func TestDecodeColoursShortRead(t *testing.T) {
	_, _, err := DecodeColours([]byte{1, 2, 3}, 1)
	assert.ErrorIs(t, err, isoerr.ErrShortRead)
}
