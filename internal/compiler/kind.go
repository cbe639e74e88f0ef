// Package compiler implements the descriptor-to-table compiler of spec
// §4.7 (component G): has-bit assignment, offset layout, packed field-entry
// construction, mask/kind-array sizing, and aux-table wiring. It is the one
// place that walks a protoreflect.MessageDescriptor graph and decides how a
// record is shaped; both the dynamic runtime path (root package Compile)
// and the source-generating CLI (cmd/tablepb-gen) call into it, so a schema
// compiles to the identical table whichever path is used.
package compiler

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/tablepb/tablepb/internal/table"
)

// fieldKind resolves a field descriptor to its dispatch Kind, folding in
// cardinality (singular/repeated) and the packed option (spec §4.7,
// "populate by walking field numbers and their wire kinds").
func fieldKind(fd protoreflect.FieldDescriptor) (table.Kind, error) {
	base, err := baseKind(fd)
	if err != nil {
		return table.KindUnknown, err
	}

	if fd.Cardinality() != protoreflect.Repeated {
		return base, nil
	}
	if fd.IsPacked() && isPackable(base) {
		return packedKind(base), nil
	}
	return repeatedKind(base), nil
}

func baseKind(fd protoreflect.FieldDescriptor) (table.Kind, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return table.KindBool, nil
	case protoreflect.Int32Kind, protoreflect.Uint32Kind:
		return table.KindVarint32, nil
	case protoreflect.Sint32Kind:
		return table.KindZigZag32, nil
	case protoreflect.Int64Kind, protoreflect.Uint64Kind:
		return table.KindVarint64, nil
	case protoreflect.Sint64Kind:
		return table.KindZigZag64, nil
	case protoreflect.Sfixed32Kind, protoreflect.Fixed32Kind, protoreflect.FloatKind:
		return table.KindFixed32, nil
	case protoreflect.Sfixed64Kind, protoreflect.Fixed64Kind, protoreflect.DoubleKind:
		return table.KindFixed64, nil
	case protoreflect.EnumKind:
		return table.KindEnum, nil
	case protoreflect.StringKind:
		return table.KindString, nil
	case protoreflect.BytesKind:
		return table.KindBytes, nil
	case protoreflect.MessageKind:
		return table.KindMessage, nil
	case protoreflect.GroupKind:
		return table.KindGroup, nil
	default:
		return table.KindUnknown, fmt.Errorf("tablepb: unsupported field kind %v on %s", fd.Kind(), fd.FullName())
	}
}

func isPackable(base table.Kind) bool {
	switch base {
	case table.KindBool, table.KindVarint32, table.KindVarint64,
		table.KindZigZag32, table.KindZigZag64,
		table.KindFixed32, table.KindFixed64, table.KindEnum:
		return true
	default:
		return false
	}
}

func repeatedKind(base table.Kind) table.Kind {
	switch base {
	case table.KindBool:
		return table.KindRepeatedBool
	case table.KindVarint32:
		return table.KindRepeatedVarint32
	case table.KindVarint64:
		return table.KindRepeatedVarint64
	case table.KindZigZag32:
		return table.KindRepeatedZigZag32
	case table.KindZigZag64:
		return table.KindRepeatedZigZag64
	case table.KindFixed32:
		return table.KindRepeatedFixed32
	case table.KindFixed64:
		return table.KindRepeatedFixed64
	case table.KindEnum:
		return table.KindRepeatedEnum
	case table.KindBytes:
		return table.KindRepeatedBytes
	case table.KindString:
		return table.KindRepeatedString
	case table.KindMessage:
		return table.KindRepeatedMessage
	case table.KindGroup:
		return table.KindRepeatedGroup
	default:
		return base
	}
}

func packedKind(base table.Kind) table.Kind {
	switch base {
	case table.KindBool:
		return table.KindPackedBool
	case table.KindVarint32:
		return table.KindPackedVarint32
	case table.KindVarint64:
		return table.KindPackedVarint64
	case table.KindZigZag32:
		return table.KindPackedZigZag32
	case table.KindZigZag64:
		return table.KindPackedZigZag64
	case table.KindFixed32:
		return table.KindPackedFixed32
	case table.KindFixed64:
		return table.KindPackedFixed64
	case table.KindEnum:
		return table.KindPackedEnum
	default:
		return base
	}
}
