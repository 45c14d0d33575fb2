package pdu

import "testing"

func TestRequestRoundTrip(t *testing.T) {
	p := NewRequest(PGNAddressClaimed, AddressNull, AddressGlobal)
	if !IsRequest(p) {
		t.Fatal("IsRequest(NewRequest(...)) = false, want true")
	}
	got, ok := RequestedPGN(p)
	if !ok || got != PGNAddressClaimed {
		t.Errorf("RequestedPGN(...) = (%#x, %v), want (%#x, true)", got, ok, PGNAddressClaimed)
	}
}

func TestRequestedPGNShortPayload(t *testing.T) {
	if _, ok := RequestedPGN(PDU{Data: []byte{1, 2}}); ok {
		t.Error("RequestedPGN(short) ok = true, want false")
	}
}

func TestAddressClaimedRoundTrip(t *testing.T) {
	name := NameBuilder{IdentityNumber: 42}.Build()
	p := NewAddressClaimed(name, 0x80, AddressGlobal)
	if !IsAddressClaimed(p) {
		t.Fatal("IsAddressClaimed(NewAddressClaimed(...)) = false, want true")
	}
	got, ok := ClaimedName(p)
	if !ok || got != name {
		t.Errorf("ClaimedName(...) = (%#x, %v), want (%#x, true)", got, ok, name)
	}
}

func TestCannotClaimSentFromNull(t *testing.T) {
	name := NameBuilder{IdentityNumber: 7}.Build()
	p := NewCannotClaim(name)
	if Address(p.SA) != AddressNull {
		t.Errorf("NewCannotClaim(...).SA = %#x, want AddressNull", p.SA)
	}
}

func TestCommandedAddressRoundTrip(t *testing.T) {
	name := NameBuilder{IdentityNumber: 9}.Build()
	b := name.Bytes()
	p := PDU{PF: uint8(PGNCommandedAddress >> 8), PS: uint8(PGNCommandedAddress & 0xFF), SA: 0x80, Data: append(b[:], 0x90)}
	if !IsCommandedAddress(p) {
		t.Fatal("IsCommandedAddress(...) = false, want true")
	}
	gotName, gotAddr, ok := CommandedNameAndAddress(p)
	if !ok || gotName != name || gotAddr != 0x90 {
		t.Errorf("CommandedNameAndAddress(...) = (%#x, %#x, %v), want (%#x, 0x90, true)", gotName, gotAddr, ok, name)
	}
}

func TestCommandedNameAndAddressShort(t *testing.T) {
	if _, _, ok := CommandedNameAndAddress(PDU{Data: make([]byte, 5)}); ok {
		t.Error("CommandedNameAndAddress(short) ok = true, want false")
	}
}
