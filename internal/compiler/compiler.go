package compiler

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/tablepb/tablepb/internal/table"
	"github.com/tablepb/tablepb/internal/wire"
)

// Type is a compiled message type: its decoding/encoding tables plus the
// bookkeeping the dynamic API and the code generator both need (field
// names, record size) that the tables themselves don't carry.
type Type struct {
	Descriptor  protoreflect.MessageDescriptor
	Decode      *table.DecodeTable
	Encode      *table.EncodeTable
	RecordSize  int
	HasBitCount int

	// FieldNames maps each field's number to a keyword-safe, exported Go
	// identifier, for the dynamic stringer and the generator (spec §4.7,
	// "keyword-safe naming").
	FieldNames map[protoreflect.FieldNumber]string
}

// Library is every message type reachable from a root descriptor, keyed by
// full name, so that a generator can emit one record/table per type exactly
// once even when the schema graph has cycles or diamonds (spec §9, "static
// cyclic table graphs").
type Library struct {
	Types map[protoreflect.FullName]*Type
	// Order lists full names in first-visited order, for deterministic
	// codegen output.
	Order []protoreflect.FullName
}

// Compile walks md's transitive message graph and compiles a Library
// containing every message type reachable from it (including md itself).
// It returns the SchemaError for the first message that violates the
// generator's envelope (spec §4.7's failure list), if any.
func Compile(md protoreflect.MessageDescriptor) (*Library, error) {
	lib := &Library{Types: make(map[protoreflect.FullName]*Type)}
	if err := lib.compileMessage(md); err != nil {
		return nil, err
	}
	return lib, nil
}

// Root returns the Type for md from a Library built by Compile(md, ...).
func (lib *Library) Root(md protoreflect.MessageDescriptor) *Type {
	return lib.Types[md.FullName()]
}

func (lib *Library) compileMessage(md protoreflect.MessageDescriptor) error {
	name := md.FullName()
	if _, ok := lib.Types[name]; ok {
		return nil // already compiled, or in progress
	}

	plans, recordSize, hasBitCount, err := layoutMessage(md)
	if err != nil {
		return err
	}

	maxFN := maxFieldNumber(md.Fields())
	bits := fitMaskBits(plans, maxFN)

	dt := table.NewDecodeTable(bits, int32(maxFN))
	dt.RecordSize = recordSize
	dt.HasBitCount = hasBitCount
	et := &table.EncodeTable{RecordSize: recordSize}

	ty := &Type{
		Descriptor:  md,
		Decode:      dt,
		Encode:      et,
		RecordSize:  recordSize,
		HasBitCount: hasBitCount,
		FieldNames:  make(map[protoreflect.FieldNumber]string),
	}
	// Register before recursing into sub-messages, so a cyclic schema's
	// self-reference (or a diamond) finds this entry already present.
	lib.Types[name] = ty
	lib.Order = append(lib.Order, name)

	for _, plan := range plans {
		fd := plan.fd
		ty.FieldNames[fd.Number()] = keywordSafe(goExportedName(string(fd.Name())))

		dt.SetKind(int32(fd.Number()), plan.kind)

		encEntry := table.EncodeEntry{
			Kind:   plan.kind,
			HasBit: max(plan.hasBit, 0),
			Offset: plan.offset,
			Tag:    wire.MakeTag(int32(fd.Number()), wireTypeForKind(plan.kind)),
		}

		if plan.kind.IsSubMessage() {
			childMD := fd.Message()
			if err := lib.compileMessage(childMD); err != nil {
				return err
			}
			child := lib.Types[childMD.FullName()]

			auxIdx := len(dt.Aux)
			dt.Aux = append(dt.Aux, table.DecodeAux{Offset: plan.offset, Child: child.Decode})
			dt.Fields[fd.Number()] = table.AuxFieldEntry(auxIdx)

			encAuxIdx := len(et.Aux)
			et.Aux = append(et.Aux, table.EncodeAux{Offset: plan.offset, Child: child.Encode})
			encEntry.AuxIndex = encAuxIdx
		} else {
			dt.Fields[fd.Number()] = table.PackFieldEntry(max(plan.hasBit, 0), plan.offset)
		}

		et.Entries = append(et.Entries, encEntry)
	}

	return nil
}

// wireTypeForKind returns the wire type a field's tag is encoded with. For
// non-packed repeated scalars this is the element's own wire type (each
// occurrence gets its own tag); for packed repeated and for bytes/
// string/message fields it is always length-delimited.
func wireTypeForKind(k table.Kind) wire.Type {
	switch k {
	case table.KindBool, table.KindVarint32, table.KindVarint64, table.KindZigZag32, table.KindZigZag64, table.KindEnum,
		table.KindRepeatedBool, table.KindRepeatedVarint32, table.KindRepeatedVarint64,
		table.KindRepeatedZigZag32, table.KindRepeatedZigZag64, table.KindRepeatedEnum:
		return wire.Varint
	case table.KindFixed32, table.KindRepeatedFixed32:
		return wire.Fixed32
	case table.KindFixed64, table.KindRepeatedFixed64:
		return wire.Fixed64
	case table.KindGroup, table.KindRepeatedGroup:
		return wire.StartGroup
	default:
		// Bytes, String, Message and every Repeated{Bytes,String,Message}
		// and every Packed* kind are length-delimited.
		return wire.Bytes
	}
}
