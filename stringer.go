package tablepb

import (
	"fmt"
	"strings"
)

// String returns s as "fields=N has-bits=N record=N bytes", for diagnostics
// and test output.
func (s Stats) String() string {
	return fmt.Sprintf("fields=%d has-bits=%d record=%d bytes", s.FieldCount, s.HasBitCount, s.RecordSize)
}

// String renders m's populated fields by number, recursing into
// sub-messages. It is meant for debugging and test failure output, not as a
// stable serialization: field names come from the descriptor, not from a
// generated accessor.
func (m *Message) String() string {
	var b strings.Builder
	m.writeTo(&b, 0)
	return b.String()
}

func (m *Message) writeTo(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fields := m.ty.compiled.Descriptor.Fields()
	b.WriteString(string(m.ty.compiled.Descriptor.Name()))
	b.WriteString(" {\n")
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		v, ok := m.Get(fd.Number())
		if !ok {
			continue
		}
		fmt.Fprintf(b, "%s  %s(%d): ", indent, fd.Name(), fd.Number())
		writeValue(b, v, depth+1)
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "%s}", indent)
}

func writeValue(b *strings.Builder, v any, depth int) {
	switch x := v.(type) {
	case *Message:
		x.writeTo(b, depth)
	case []*Message:
		b.WriteString("[\n")
		for _, child := range x {
			b.WriteString(strings.Repeat("  ", depth+1))
			child.writeTo(b, depth+1)
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "%s]", strings.Repeat("  ", depth))
	default:
		fmt.Fprintf(b, "%v", x)
	}
}
