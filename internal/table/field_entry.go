package table

import "fmt"

// FieldEntry is the packed 16-bit value from spec §3.3/§4.7: for ordinary
// fields, the low 10 bits hold the byte offset into the record (≤ 1023) and
// the high 6 bits hold the has-bit index (≤ 63). For sub-message fields
// (Kind Message/Group/RepeatedMessage/RepeatedGroup) the whole 16 bits are
// instead an index into the owning DecodeTable's Aux array; the interpreter
// knows which interpretation applies because it already has the field's
// Kind in hand before it reads the entry.
type FieldEntry uint16

const (
	offsetBits = 10
	offsetMask = 1<<offsetBits - 1
	maxOffset  = offsetMask
	maxHasBit  = 1<<(16-offsetBits) - 1
)

// PackFieldEntry builds a scalar/bytes field entry.
func PackFieldEntry(hasBit, offset int) FieldEntry {
	if offset < 0 || offset > maxOffset {
		panic(fmt.Sprintf("tablepb: field offset %d exceeds %d-byte record envelope", offset, maxOffset+1))
	}
	if hasBit < 0 || hasBit > maxHasBit {
		panic(fmt.Sprintf("tablepb: has-bit index %d exceeds %d", hasBit, maxHasBit))
	}
	return FieldEntry(offset) | FieldEntry(hasBit)<<offsetBits
}

// HasBit returns the has-bit index packed into e.
func (e FieldEntry) HasBit() int {
	return int(e >> offsetBits)
}

// Offset returns the byte offset packed into e.
func (e FieldEntry) Offset() int {
	return int(e) & offsetMask
}

// AuxIndex reinterprets e as an index into an Aux array, for sub-message
// fields.
func (e FieldEntry) AuxIndex() int {
	return int(e)
}

// AuxFieldEntry packs a plain aux-table index, for sub-message fields.
func AuxFieldEntry(auxIndex int) FieldEntry {
	return FieldEntry(auxIndex)
}

// MaxRecordSize is the largest a generated record may be (spec §3.1).
const MaxRecordSize = 1024
