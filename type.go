package tablepb

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/tablepb/tablepb/internal/arena"
	"github.com/tablepb/tablepb/internal/compiler"
)

// Type is a compiled message type (spec §4.7's "record definition... one
// decoding-table constant, and one encoding-table constant"): everything
// needed to mint, decode, and encode records of one message shape.
type Type struct {
	lib      *compiler.Library
	compiled *compiler.Type
	opts     compileOptions
}

// Descriptor returns the protobuf descriptor t was compiled from.
func (t *Type) Descriptor() protoreflect.MessageDescriptor {
	return t.compiled.Descriptor
}

// NewMessage allocates a zeroed record of this type on a, returning a
// handle over it. The handle is only valid for as long as a is.
func (t *Type) NewMessage(a *arena.Arena) *Message {
	rec := a.Alloc(t.compiled.RecordSize, arena.MaxAlign)
	return &Message{a: a, rec: rec, ty: t}
}

// childType returns the compiled Type for a sub-message field, sharing this
// Type's library and options.
func (t *Type) childType(fd protoreflect.FieldDescriptor) *Type {
	child := t.lib.Types[fd.Message().FullName()]
	if child == nil {
		return nil
	}
	return &Type{lib: t.lib, compiled: child, opts: t.opts}
}

// Stats reports introspective counts about a compiled Type, useful for
// diagnostics and tests without reopening any closed validation/reflection
// scope.
type Stats struct {
	FieldCount  int
	HasBitCount int
	RecordSize  int
}

// Stats returns t's field count, has-bit count, and record size.
func (t *Type) Stats() Stats {
	return Stats{
		FieldCount:  t.compiled.Descriptor.Fields().Len(),
		HasBitCount: t.compiled.HasBitCount,
		RecordSize:  t.compiled.RecordSize,
	}
}
