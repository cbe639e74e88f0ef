package compiler

import (
	"math/bits"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/tablepb/tablepb/internal/record"
	"github.com/tablepb/tablepb/internal/table"
)

// ptrSize is the pointer width this layout targets. Every offset this
// package assigns is one it invented itself (the record is a raw arena
// blob, not a Go struct laid out by the compiler), so the only place
// platform width matters is here, in how much room a pointer-shaped slot
// reserves. This repo's arena is already word-granular on this same
// assumption (internal/arena.MaxAlign); 32-bit targets are out of scope.
const ptrSize = 8

// SchemaError is the SchemaViolation error of spec §7: a generate-time
// diagnostic naming the offending message/field, never surfaced at runtime.
type SchemaError struct {
	Message protoreflect.FullName
	Field   protoreflect.Name
	Reason  string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return "tablepb: " + string(e.Message) + "." + string(e.Field) + ": " + e.Reason
	}
	return "tablepb: " + string(e.Message) + ": " + e.Reason
}

// fieldPlan is one field's layout decision.
type fieldPlan struct {
	fd     protoreflect.FieldDescriptor
	kind   table.Kind
	hasBit int // -1 if this field carries no has-bit (repeated, or a sub-message)
	offset int
}

func sizeOf(k table.Kind) int {
	switch k {
	case table.KindBool:
		return 1
	case table.KindVarint32, table.KindZigZag32, table.KindEnum, table.KindFixed32:
		return 4
	case table.KindVarint64, table.KindZigZag64, table.KindFixed64:
		return 8
	case table.KindBytes, table.KindString:
		return bytesHeaderSize
	case table.KindMessage, table.KindGroup:
		return ptrSize
	default:
		// Every Repeated*/Packed* kind, singular or not, is backed by a
		// record.Repeated[T] header: (ptr, len, cap), regardless of T.
		return ptrSize + 4 + 4
	}
}

func alignOf(k table.Kind) int {
	switch k {
	case table.KindBool:
		return 1
	case table.KindVarint32, table.KindZigZag32, table.KindEnum, table.KindFixed32:
		return 4
	default:
		return ptrSize
	}
}

// bytesHeaderSize is the size of a record.Bytes ([]byte) header: three
// machine words (pointer, len, cap).
const bytesHeaderSize = ptrSize * 3

// layoutMessage assigns has-bits and offsets to md's fields in declaration
// order (spec §4.7) and reports the resulting record size. It does not
// build tables; that is compileMessage's job, once every field's kind and
// offset are known.
func layoutMessage(md protoreflect.MessageDescriptor) ([]fieldPlan, int, int, error) {
	fields := md.Fields()

	var plans []fieldPlan
	hasBitCount := 0

	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Number() > 2047 {
			return nil, 0, 0, &SchemaError{Message: md.FullName(), Field: fd.Name(), Reason: "field number exceeds 2047"}
		}

		kind, err := fieldKind(fd)
		if err != nil {
			return nil, 0, 0, &SchemaError{Message: md.FullName(), Field: fd.Name(), Reason: err.Error()}
		}

		hasBit := -1
		if !kind.IsRepeated() && !kind.IsSubMessage() {
			hasBit = hasBitCount
			hasBitCount++
		}

		plans = append(plans, fieldPlan{fd: fd, kind: kind, hasBit: hasBit})
	}

	if hasBitCount > record.MaxHasBits {
		return nil, 0, 0, &SchemaError{Message: md.FullName(), Reason: "more than 64 has-bit-bearing fields"}
	}

	hasBitWords := record.HasBitWords(hasBitCount)
	offset := roundUp(hasBitWords*4, ptrSize)

	for i := range plans {
		align := alignOf(plans[i].kind)
		offset = roundUp(offset, align)
		plans[i].offset = offset
		offset += sizeOf(plans[i].kind)
	}

	recordSize := roundUp(offset, ptrSize)
	if recordSize == 0 {
		recordSize = ptrSize
	}
	if recordSize > table.MaxRecordSize {
		return nil, 0, 0, &SchemaError{Message: md.FullName(), Reason: "record exceeds 1024-byte envelope"}
	}

	return plans, recordSize, hasBitCount, nil
}

func roundUp(n, align int) int {
	return (n + align - 1) / align * align
}

// maskBits computes b = max(4, ceil(log2(maxFieldNumber)) + 2), spec §4.7's
// decoding mask/kind-array sizing formula.
func maskBits(maxFieldNumber protoreflect.FieldNumber) int {
	if maxFieldNumber <= 1 {
		return 4
	}
	ceilLog2 := bits.Len(uint(maxFieldNumber - 1))
	b := ceilLog2 + 2
	if b < 4 {
		b = 4
	}
	return b
}

// fitMaskBits starts from maskBits' formula and grows the mask until every
// field number in plans lands in a distinct slot, so the caller never has
// to rebuild a DecodeTable mid-population (spec §4.7 only gives the
// starting formula; collisions are resolved by widening the mask, same as
// any open-addressed table would).
func fitMaskBits(plans []fieldPlan, maxFN protoreflect.FieldNumber) int {
	bits := maskBits(maxFN)
	for {
		seen := make(map[uint64]protoreflect.FieldNumber, len(plans))
		mask := uint64(1<<uint(bits)) - 1
		ok := true
		for _, p := range plans {
			idx := uint64(p.fd.Number()) & mask
			if other, exists := seen[idx]; exists && other != p.fd.Number() {
				ok = false
				break
			}
			seen[idx] = p.fd.Number()
		}
		if ok {
			return bits
		}
		bits++
	}
}

func maxFieldNumber(fields protoreflect.FieldDescriptors) protoreflect.FieldNumber {
	var max protoreflect.FieldNumber
	for i := 0; i < fields.Len(); i++ {
		if n := fields.Get(i).Number(); n > max {
			max = n
		}
	}
	return max
}
