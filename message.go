package tablepb

import (
	"fmt"
	"unsafe"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/tablepb/tablepb/internal/arena"
	"github.com/tablepb/tablepb/internal/record"
	"github.com/tablepb/tablepb/internal/table"
	"github.com/tablepb/tablepb/internal/vm"
)

// Message is a dynamic handle over an arena-backed record: field access by
// number, with no generated accessor methods required (grounded on the
// teacher's internal/tdp/dynamic package, which offers the same capability
// for callers without a compiled-in message type).
type Message struct {
	a   *arena.Arena
	rec unsafe.Pointer
	ty  *Type
}

// Arena returns the arena this message's record, and any sub-messages or
// byte/string containers it references, are allocated from.
func (m *Message) Arena() *arena.Arena { return m.a }

// Type returns the compiled Type describing this message's layout.
func (m *Message) Type() *Type { return m.ty }

func (m *Message) fieldDescriptor(n protoreflect.FieldNumber) protoreflect.FieldDescriptor {
	return m.ty.compiled.Descriptor.Fields().ByNumber(n)
}

// Get returns the decoded value of the field numbered n, and whether it was
// present. Scalar fields return their natural Go type (bool, int32, int64,
// uint32, uint64, float32, float64, string, []byte); a singular sub-message
// field returns a *Message; a repeated field of any kind returns a slice,
// and counts as present only when that slice is non-empty.
func (m *Message) Get(n protoreflect.FieldNumber) (any, bool) {
	dt := m.ty.compiled.Decode
	kind := dt.Lookup(int32(n))
	if kind == table.KindUnknown {
		return nil, false
	}
	entry, _ := dt.Entry(int32(n))
	fd := m.fieldDescriptor(n)

	if kind.IsSubMessage() {
		aux := dt.Aux[entry.AuxIndex()]
		if kind.IsRepeated() {
			r := (*record.Repeated[unsafe.Pointer])(unsafe.Add(m.rec, aux.Offset))
			ct := m.ty.childType(fd)
			out := make([]*Message, r.Len())
			for i := 0; i < r.Len(); i++ {
				out[i] = &Message{a: m.a, rec: r.At(i), ty: ct}
			}
			return out, len(out) > 0
		}
		child := *(*unsafe.Pointer)(unsafe.Add(m.rec, aux.Offset))
		if child == nil {
			return nil, false
		}
		return &Message{a: m.a, rec: child, ty: m.ty.childType(fd)}, true
	}

	offset := entry.Offset()
	hasBit := entry.HasBit()

	switch kind {
	case table.KindBytes:
		if !record.HasBit(m.rec, hasBit) {
			return nil, false
		}
		return *(*record.Bytes)(unsafe.Add(m.rec, offset)), true
	case table.KindString:
		if !record.HasBit(m.rec, hasBit) {
			return nil, false
		}
		return string(*(*record.Bytes)(unsafe.Add(m.rec, offset))), true
	case table.KindRepeatedBytes:
		r := (*record.Repeated[record.Bytes])(unsafe.Add(m.rec, offset))
		out := make([][]byte, r.Len())
		for i := range out {
			out[i] = r.At(i)
		}
		return out, len(out) > 0
	case table.KindRepeatedString:
		r := (*record.Repeated[record.Bytes])(unsafe.Add(m.rec, offset))
		out := make([]string, r.Len())
		for i := range out {
			out[i] = string(r.At(i))
		}
		return out, len(out) > 0
	}

	base := unrepeatKind(kind)
	if kind.IsRepeated() {
		out := m.getRepeatedScalar(offset, base, fd.Kind())
		return out, len(out) > 0
	}
	if !record.HasBit(m.rec, hasBit) {
		return nil, false
	}
	return refineScalar(readRawScalar(m.rec, offset, base), fd.Kind()), true
}

func (m *Message) getRepeatedScalar(offset int, base table.Kind, properKind protoreflect.Kind) []any {
	n := repeatedScalarLen(m.rec, offset, base)
	out := make([]any, n)
	for i := 0; i < n; i++ {
		out[i] = refineScalar(repeatedScalarAt(m.rec, offset, base, i), properKind)
	}
	return out
}

// Set assigns a singular scalar, bytes, or string field and sets its
// has-bit (spec §4.3's merge policy: last-write-wins for singular fields).
func (m *Message) Set(n protoreflect.FieldNumber, v any) error {
	dt := m.ty.compiled.Decode
	kind := dt.Lookup(int32(n))
	if kind == table.KindUnknown {
		return fmt.Errorf("tablepb: unknown field %d", n)
	}
	if kind.IsSubMessage() || kind.IsRepeated() {
		return fmt.Errorf("tablepb: field %d is not a singular scalar field", n)
	}
	entry, _ := dt.Entry(int32(n))
	offset, hasBit := entry.Offset(), entry.HasBit()
	fd := m.fieldDescriptor(n)

	switch kind {
	case table.KindBytes, table.KindString:
		var b []byte
		switch s := v.(type) {
		case string:
			b = []byte(s)
		case []byte:
			b = s
		default:
			return fmt.Errorf("tablepb: field %d expects string or []byte, got %T", n, v)
		}
		dst := (*record.Bytes)(unsafe.Add(m.rec, offset))
		record.SetCopy(dst, m.a, b)
	default:
		raw, err := unrefineScalar(v, fd.Kind())
		if err != nil {
			return fmt.Errorf("tablepb: field %d: %w", n, err)
		}
		writeRawScalar(m.rec, offset, kind, raw)
	}
	record.SetHasBit(m.rec, hasBit)
	return nil
}

// AppendScalar appends one element to a repeated scalar, bytes, or string
// field (spec §4.3's merge policy: append, never replace).
func (m *Message) AppendScalar(n protoreflect.FieldNumber, v any) error {
	dt := m.ty.compiled.Decode
	kind := dt.Lookup(int32(n))
	if kind == table.KindUnknown || !kind.IsRepeated() || kind.IsSubMessage() {
		return fmt.Errorf("tablepb: field %d is not a repeated scalar field", n)
	}
	entry, _ := dt.Entry(int32(n))
	offset := entry.Offset()
	fd := m.fieldDescriptor(n)

	if kind == table.KindRepeatedBytes || kind == table.KindRepeatedString {
		var b []byte
		switch s := v.(type) {
		case string:
			b = []byte(s)
		case []byte:
			b = s
		default:
			return fmt.Errorf("tablepb: field %d expects string or []byte, got %T", n, v)
		}
		r := (*record.Repeated[record.Bytes])(unsafe.Add(m.rec, offset))
		var copied record.Bytes
		record.SetCopy(&copied, m.a, b)
		r.Append(m.a, copied)
		return nil
	}

	raw, err := unrefineScalar(v, fd.Kind())
	if err != nil {
		return fmt.Errorf("tablepb: field %d: %w", n, err)
	}
	appendRawScalar(m.a, m.rec, offset, unrepeatKind(kind), raw)
	return nil
}

// NewChild allocates a new sub-message, wires it into the singular
// sub-message field numbered n, and returns a handle to it.
func (m *Message) NewChild(n protoreflect.FieldNumber) (*Message, error) {
	dt := m.ty.compiled.Decode
	kind := dt.Lookup(int32(n))
	if kind != table.KindMessage && kind != table.KindGroup {
		return nil, fmt.Errorf("tablepb: field %d is not a singular sub-message field", n)
	}
	entry, _ := dt.Entry(int32(n))
	aux := dt.Aux[entry.AuxIndex()]
	ct := m.ty.childType(m.fieldDescriptor(n))

	child := m.a.Alloc(aux.Child.RecordSize, arena.MaxAlign)
	*(*unsafe.Pointer)(unsafe.Add(m.rec, aux.Offset)) = child
	return &Message{a: m.a, rec: child, ty: ct}, nil
}

// AppendChild allocates a new sub-message, appends it to the repeated
// sub-message field numbered n, and returns a handle to it.
func (m *Message) AppendChild(n protoreflect.FieldNumber) (*Message, error) {
	dt := m.ty.compiled.Decode
	kind := dt.Lookup(int32(n))
	if kind != table.KindRepeatedMessage && kind != table.KindRepeatedGroup {
		return nil, fmt.Errorf("tablepb: field %d is not a repeated sub-message field", n)
	}
	entry, _ := dt.Entry(int32(n))
	aux := dt.Aux[entry.AuxIndex()]
	ct := m.ty.childType(m.fieldDescriptor(n))

	child := m.a.Alloc(aux.Child.RecordSize, arena.MaxAlign)
	r := (*record.Repeated[unsafe.Pointer])(unsafe.Add(m.rec, aux.Offset))
	r.Append(m.a, child)
	return &Message{a: m.a, rec: child, ty: ct}, nil
}

// Marshal serializes m to a flat byte slice (spec §4.5's degenerate case).
func (m *Message) Marshal() []byte {
	return vm.Marshal(m.rec, m.ty.compiled.Encode)
}

// MarshalTo serializes m to sink, retrying any short write (spec §4.5/§6).
func (m *Message) MarshalTo(sink vm.Sink) error {
	return wrapError(vm.NewEncoder(sink).Marshal(m.rec, m.ty.compiled.Encode))
}
