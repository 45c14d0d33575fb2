package pdu

import "encoding/binary"

// Name is the 64-bit node identity used to arbitrate address claims
// (spec.md §3 "Name"). Lower numeric Name wins arbitration. On the wire it
// is encoded little-endian inside the 8-byte Address Claimed payload
// (spec.md §6).
type Name uint64

// Bit widths of each Name field, MSB first (spec.md §3).
const (
	bitsSelfConfigurable   = 1
	bitsIndustryGroup      = 3
	bitsDeviceClassInst    = 4
	bitsDeviceClass        = 7
	bitsReserved           = 1
	bitsFunction           = 8
	bitsFunctionInstance   = 5
	bitsEcuInstance        = 3
	bitsManufacturerCode   = 11
	bitsIdentityNumber     = 21
)

// Bit offsets (from bit 0, LSB) of each field within the 64-bit Name.
const (
	offIdentityNumber   = 0
	offManufacturerCode = offIdentityNumber + bitsIdentityNumber
	offEcuInstance      = offManufacturerCode + bitsManufacturerCode
	offFunctionInstance = offEcuInstance + bitsEcuInstance
	offFunction         = offFunctionInstance + bitsFunctionInstance
	offReserved         = offFunction + bitsFunction
	offDeviceClass      = offReserved + bitsReserved
	offDeviceClassInst  = offDeviceClass + bitsDeviceClass
	offIndustryGroup    = offDeviceClassInst + bitsDeviceClassInst
	offSelfConfigurable = offIndustryGroup + bitsIndustryGroup
)

func mask(bits uint) uint64 {
	return (uint64(1) << bits) - 1
}

// NameBuilder assembles a Name field-by-field; zero value is all-zero.
type NameBuilder struct {
	SelfConfigurable    bool
	IndustryGroup       uint8 // 3 bits
	DeviceClassInstance uint8 // 4 bits
	DeviceClass         uint8 // 7 bits
	Function            uint8 // 8 bits
	FunctionInstance    uint8 // 5 bits
	EcuInstance         uint8 // 3 bits
	ManufacturerCode    uint16 // 11 bits
	IdentityNumber      uint32 // 21 bits
}

// Build packs the fields into a Name, masking each field to its declared
// width so an over-wide value cannot corrupt adjacent fields.
func (b NameBuilder) Build() Name {
	var v uint64
	if b.SelfConfigurable {
		v |= 1 << offSelfConfigurable
	}
	v |= (uint64(b.IndustryGroup) & mask(bitsIndustryGroup)) << offIndustryGroup
	v |= (uint64(b.DeviceClassInstance) & mask(bitsDeviceClassInst)) << offDeviceClassInst
	v |= (uint64(b.DeviceClass) & mask(bitsDeviceClass)) << offDeviceClass
	v |= (uint64(b.Function) & mask(bitsFunction)) << offFunction
	v |= (uint64(b.FunctionInstance) & mask(bitsFunctionInstance)) << offFunctionInstance
	v |= (uint64(b.EcuInstance) & mask(bitsEcuInstance)) << offEcuInstance
	v |= (uint64(b.ManufacturerCode) & mask(bitsManufacturerCode)) << offManufacturerCode
	v |= (uint64(b.IdentityNumber) & mask(bitsIdentityNumber)) << offIdentityNumber
	return Name(v)
}

// Decompose unpacks a Name back into a NameBuilder, the inverse of Build.
func (n Name) Decompose() NameBuilder {
	v := uint64(n)
	return NameBuilder{
		SelfConfigurable:    (v>>offSelfConfigurable)&1 == 1,
		IndustryGroup:       uint8((v >> offIndustryGroup) & mask(bitsIndustryGroup)),
		DeviceClassInstance: uint8((v >> offDeviceClassInst) & mask(bitsDeviceClassInst)),
		DeviceClass:         uint8((v >> offDeviceClass) & mask(bitsDeviceClass)),
		Function:            uint8((v >> offFunction) & mask(bitsFunction)),
		FunctionInstance:    uint8((v >> offFunctionInstance) & mask(bitsFunctionInstance)),
		EcuInstance:         uint8((v >> offEcuInstance) & mask(bitsEcuInstance)),
		ManufacturerCode:    uint16((v >> offManufacturerCode) & mask(bitsManufacturerCode)),
		IdentityNumber:      uint32((v >> offIdentityNumber) & mask(bitsIdentityNumber)),
	}
}

// Bytes encodes n little-endian, as carried on the wire (spec.md §3, §6).
func (n Name) Bytes() [8]byte {
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], uint64(n))
	return out
}

// NameFromBytes decodes a little-endian 8-byte Name. ok is false if b is
// shorter than 8 bytes.
func NameFromBytes(b []byte) (Name, bool) {
	if len(b) < 8 {
		return 0, false
	}
	return Name(binary.LittleEndian.Uint64(b[:8])), true
}
