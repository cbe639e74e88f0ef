package tablepb

import (
	"fmt"
	"math"
	"unsafe"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/tablepb/tablepb/internal/arena"
	"github.com/tablepb/tablepb/internal/record"
	"github.com/tablepb/tablepb/internal/table"
)

// unrepeatKind maps a Repeated*/Packed* kind to its scalar base kind,
// mirroring internal/vm's own unrepeat (spec §3.5: packed and unpacked
// repeated fields share one storage representation).
func unrepeatKind(k table.Kind) table.Kind {
	switch k {
	case table.KindRepeatedBool, table.KindPackedBool:
		return table.KindBool
	case table.KindRepeatedVarint32, table.KindPackedVarint32:
		return table.KindVarint32
	case table.KindRepeatedVarint64, table.KindPackedVarint64:
		return table.KindVarint64
	case table.KindRepeatedZigZag32, table.KindPackedZigZag32:
		return table.KindZigZag32
	case table.KindRepeatedZigZag64, table.KindPackedZigZag64:
		return table.KindZigZag64
	case table.KindRepeatedFixed32, table.KindPackedFixed32:
		return table.KindFixed32
	case table.KindRepeatedFixed64, table.KindPackedFixed64:
		return table.KindFixed64
	case table.KindRepeatedEnum, table.KindPackedEnum:
		return table.KindEnum
	default:
		return k
	}
}

// readRawScalar reads the storage representation at offset: the same Go
// type internal/vm's storeScalar writes there (bool, int32, int64, uint32,
// or uint64), with zigzag already undone but fixed32/64 still raw bits.
func readRawScalar(rec unsafe.Pointer, offset int, base table.Kind) any {
	switch base {
	case table.KindBool:
		return *(*bool)(unsafe.Add(rec, offset))
	case table.KindVarint32, table.KindZigZag32, table.KindEnum:
		return *(*int32)(unsafe.Add(rec, offset))
	case table.KindVarint64, table.KindZigZag64:
		return *(*int64)(unsafe.Add(rec, offset))
	case table.KindFixed32:
		return *(*uint32)(unsafe.Add(rec, offset))
	case table.KindFixed64:
		return *(*uint64)(unsafe.Add(rec, offset))
	default:
		return nil
	}
}

func writeRawScalar(rec unsafe.Pointer, offset int, base table.Kind, raw any) {
	switch base {
	case table.KindBool:
		*(*bool)(unsafe.Add(rec, offset)) = raw.(bool)
	case table.KindVarint32, table.KindZigZag32, table.KindEnum:
		*(*int32)(unsafe.Add(rec, offset)) = raw.(int32)
	case table.KindVarint64, table.KindZigZag64:
		*(*int64)(unsafe.Add(rec, offset)) = raw.(int64)
	case table.KindFixed32:
		*(*uint32)(unsafe.Add(rec, offset)) = raw.(uint32)
	case table.KindFixed64:
		*(*uint64)(unsafe.Add(rec, offset)) = raw.(uint64)
	}
}

func appendRawScalar(a *arena.Arena, rec unsafe.Pointer, offset int, base table.Kind, raw any) {
	switch base {
	case table.KindBool:
		(*record.Repeated[bool])(unsafe.Add(rec, offset)).Append(a, raw.(bool))
	case table.KindVarint32, table.KindZigZag32, table.KindEnum:
		(*record.Repeated[int32])(unsafe.Add(rec, offset)).Append(a, raw.(int32))
	case table.KindVarint64, table.KindZigZag64:
		(*record.Repeated[int64])(unsafe.Add(rec, offset)).Append(a, raw.(int64))
	case table.KindFixed32:
		(*record.Repeated[uint32])(unsafe.Add(rec, offset)).Append(a, raw.(uint32))
	case table.KindFixed64:
		(*record.Repeated[uint64])(unsafe.Add(rec, offset)).Append(a, raw.(uint64))
	}
}

func repeatedScalarLen(rec unsafe.Pointer, offset int, base table.Kind) int {
	switch base {
	case table.KindBool:
		return (*record.Repeated[bool])(unsafe.Add(rec, offset)).Len()
	case table.KindVarint32, table.KindZigZag32, table.KindEnum:
		return (*record.Repeated[int32])(unsafe.Add(rec, offset)).Len()
	case table.KindVarint64, table.KindZigZag64:
		return (*record.Repeated[int64])(unsafe.Add(rec, offset)).Len()
	case table.KindFixed32:
		return (*record.Repeated[uint32])(unsafe.Add(rec, offset)).Len()
	case table.KindFixed64:
		return (*record.Repeated[uint64])(unsafe.Add(rec, offset)).Len()
	default:
		return 0
	}
}

func repeatedScalarAt(rec unsafe.Pointer, offset int, base table.Kind, i int) any {
	switch base {
	case table.KindBool:
		return (*record.Repeated[bool])(unsafe.Add(rec, offset)).At(i)
	case table.KindVarint32, table.KindZigZag32, table.KindEnum:
		return (*record.Repeated[int32])(unsafe.Add(rec, offset)).At(i)
	case table.KindVarint64, table.KindZigZag64:
		return (*record.Repeated[int64])(unsafe.Add(rec, offset)).At(i)
	case table.KindFixed32:
		return (*record.Repeated[uint32])(unsafe.Add(rec, offset)).At(i)
	case table.KindFixed64:
		return (*record.Repeated[uint64])(unsafe.Add(rec, offset)).At(i)
	default:
		return nil
	}
}

// refineScalar converts a raw storage value into the Go type a caller of
// [Message.Get] expects for properKind: reinterpreting fixed32/64 bits as
// float32/float64 for FloatKind/DoubleKind, and re-signing varint/fixed
// storage for the unsigned and signed-fixed proto kinds that share a wire
// representation with a differently-signed one.
func refineScalar(raw any, properKind protoreflect.Kind) any {
	switch properKind {
	case protoreflect.Uint32Kind:
		return uint32(raw.(int32))
	case protoreflect.Sfixed32Kind:
		return int32(raw.(uint32))
	case protoreflect.FloatKind:
		return math.Float32frombits(raw.(uint32))
	case protoreflect.Uint64Kind:
		return uint64(raw.(int64))
	case protoreflect.Sfixed64Kind:
		return int64(raw.(uint64))
	case protoreflect.DoubleKind:
		return math.Float64frombits(raw.(uint64))
	default:
		return raw
	}
}

// unrefineScalar is refineScalar's inverse, used by [Message.Set] and
// [Message.AppendScalar] to turn a caller-supplied Go value back into the
// storage representation for properKind.
func unrefineScalar(v any, properKind protoreflect.Kind) (any, error) {
	switch properKind {
	case protoreflect.BoolKind:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.EnumKind:
		n, ok := v.(int32)
		if !ok {
			return nil, fmt.Errorf("expected int32, got %T", v)
		}
		return n, nil
	case protoreflect.Uint32Kind:
		n, ok := v.(uint32)
		if !ok {
			return nil, fmt.Errorf("expected uint32, got %T", v)
		}
		return int32(n), nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("expected int64, got %T", v)
		}
		return n, nil
	case protoreflect.Uint64Kind:
		n, ok := v.(uint64)
		if !ok {
			return nil, fmt.Errorf("expected uint64, got %T", v)
		}
		return int64(n), nil
	case protoreflect.Fixed32Kind:
		n, ok := v.(uint32)
		if !ok {
			return nil, fmt.Errorf("expected uint32, got %T", v)
		}
		return n, nil
	case protoreflect.Sfixed32Kind:
		n, ok := v.(int32)
		if !ok {
			return nil, fmt.Errorf("expected int32, got %T", v)
		}
		return uint32(n), nil
	case protoreflect.FloatKind:
		f, ok := v.(float32)
		if !ok {
			return nil, fmt.Errorf("expected float32, got %T", v)
		}
		return math.Float32bits(f), nil
	case protoreflect.Fixed64Kind:
		n, ok := v.(uint64)
		if !ok {
			return nil, fmt.Errorf("expected uint64, got %T", v)
		}
		return n, nil
	case protoreflect.Sfixed64Kind:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("expected int64, got %T", v)
		}
		return uint64(n), nil
	case protoreflect.DoubleKind:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("expected float64, got %T", v)
		}
		return math.Float64bits(f), nil
	default:
		return nil, fmt.Errorf("unsupported field kind %v", properKind)
	}
}
