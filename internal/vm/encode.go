package vm

import (
	"io"
	"unsafe"

	"github.com/tablepb/tablepb/internal/record"
	"github.com/tablepb/tablepb/internal/table"
	"github.com/tablepb/tablepb/internal/wire"
	"github.com/tablepb/tablepb/internal/zigzag"
)

// Sink is the byte-sink interface of spec §4.5/§6. It is exactly
// io.Writer: a short write (n < len(p)) with a nil error is the idiomatic
// Go spelling of "accept a chunk and report a short-write indication," and
// Encoder retries the unwritten tail exactly as spec §6 requires.
type Sink = io.Writer

// Encoder serializes records through an EncodeTable to a Sink (spec §4.5).
// It never holds more than one message's serialized bytes in memory at a
// time; emitting to the sink happens only once a message (or sub-message)
// is fully assembled.
type Encoder struct {
	sink Sink
}

// NewEncoder returns an Encoder that writes to sink.
func NewEncoder(sink Sink) *Encoder {
	return &Encoder{sink: sink}
}

// Marshal serializes the record at rec, described by et, and writes it to
// the Encoder's sink.
func (e *Encoder) Marshal(rec unsafe.Pointer, et *table.EncodeTable) error {
	buf := AppendMessage(nil, rec, et)
	return e.writeAll(buf)
}

func (e *Encoder) writeAll(buf []byte) error {
	for len(buf) > 0 {
		n, err := e.sink.Write(buf)
		if n < 0 || n > len(buf) {
			return newErr(CodeSinkShort, 0, "sink reported an impossible write count")
		}
		buf = buf[n:]
		if err != nil {
			return newErr(CodeSinkShort, 0, err.Error())
		}
		if n == 0 && len(buf) > 0 {
			return newErr(CodeSinkShort, 0, "sink accepted zero bytes")
		}
	}
	return nil
}

// Marshal is a convenience wrapper for the common case of serializing
// straight to an in-memory buffer — the flat-buffer encode, mirroring the
// flat-buffer decode degenerate case of spec §4.6.
func Marshal(rec unsafe.Pointer, et *table.EncodeTable) []byte {
	return AppendMessage(nil, rec, et)
}

// AppendMessage appends the wire-format encoding of the record at rec to
// buf and returns the extended slice. Each sub-message is encoded exactly
// once, into its own freshly appended region, whose length is then known
// before the parent's tag+length header is written — the spec §4.5 "size
// precomputation" goal, realized here as one recursive pass per
// sub-message rather than the teacher's separate size-then-write passes.
func AppendMessage(buf []byte, rec unsafe.Pointer, et *table.EncodeTable) []byte {
	for i := range et.Entries {
		entry := &et.Entries[i]
		buf = appendEntry(buf, rec, entry, et)
	}
	return buf
}

func appendEntry(buf []byte, rec unsafe.Pointer, entry *table.EncodeEntry, et *table.EncodeTable) []byte {
	kind := entry.Kind

	if kind.IsSubMessage() {
		return appendSubMessage(buf, rec, entry, et)
	}

	if kind == table.KindBytes || kind == table.KindString {
		v := *(*record.Bytes)(unsafe.Add(rec, entry.Offset))
		if !record.HasBit(rec, entry.HasBit) {
			return buf
		}
		buf = wire.AppendVarint(buf, entry.Tag)
		buf = wire.AppendVarint(buf, uint64(len(v)))
		return append(buf, v...)
	}
	if kind == table.KindRepeatedBytes || kind == table.KindRepeatedString {
		r := (*record.Repeated[record.Bytes])(unsafe.Add(rec, entry.Offset))
		for i := 0; i < r.Len(); i++ {
			v := r.At(i)
			buf = wire.AppendVarint(buf, entry.Tag)
			buf = wire.AppendVarint(buf, uint64(len(v)))
			buf = append(buf, v...)
		}
		return buf
	}

	if kind.IsPacked() {
		return appendPacked(buf, rec, entry)
	}
	if kind.IsRepeated() {
		return appendRepeatedScalar(buf, rec, entry)
	}

	if !record.HasBit(rec, entry.HasBit) {
		return buf
	}
	return appendScalarTagged(buf, rec, entry.Offset, entry.Tag, kind)
}

func appendSubMessage(buf []byte, rec unsafe.Pointer, entry *table.EncodeEntry, et *table.EncodeTable) []byte {
	aux := et.Aux[entry.AuxIndex]
	kind := entry.Kind

	emitOne := func(buf []byte, child unsafe.Pointer) []byte {
		if kind.IsGroup() {
			buf = wire.AppendVarint(buf, entry.Tag) // start-group tag
			buf = AppendMessage(buf, child, aux.Child)
			endTag := (entry.Tag &^ 0x7) | uint64(wire.EndGroup)
			return wire.AppendVarint(buf, endTag)
		}
		body := AppendMessage(nil, child, aux.Child)
		buf = wire.AppendVarint(buf, entry.Tag)
		buf = wire.AppendVarint(buf, uint64(len(body)))
		return append(buf, body...)
	}

	if kind.IsRepeated() {
		r := (*record.Repeated[unsafe.Pointer])(unsafe.Add(rec, aux.Offset))
		for i := 0; i < r.Len(); i++ {
			buf = emitOne(buf, r.At(i))
		}
		return buf
	}

	child := *(*unsafe.Pointer)(unsafe.Add(rec, aux.Offset))
	if child == nil {
		return buf
	}
	return emitOne(buf, child)
}

func appendPacked(buf []byte, rec unsafe.Pointer, entry *table.EncodeEntry) []byte {
	base := unrepeat(entry.Kind)
	n := repeatedLen(rec, entry.Offset, base)
	if n == 0 {
		return buf
	}

	payload := appendPackedElements(nil, rec, entry.Offset, base, n)
	buf = wire.AppendVarint(buf, entry.Tag)
	buf = wire.AppendVarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

func appendRepeatedScalar(buf []byte, rec unsafe.Pointer, entry *table.EncodeEntry) []byte {
	base := unrepeat(entry.Kind)
	n := repeatedLen(rec, entry.Offset, base)
	for i := 0; i < n; i++ {
		buf = wire.AppendVarint(buf, entry.Tag)
		buf = appendScalarElementAt(buf, rec, entry.Offset, base, i)
	}
	return buf
}

func repeatedLen(rec unsafe.Pointer, offset int, base table.Kind) int {
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

func appendPackedElements(buf []byte, rec unsafe.Pointer, offset int, base table.Kind, n int) []byte {
	for i := 0; i < n; i++ {
		buf = appendScalarElementAt(buf, rec, offset, base, i)
	}
	return buf
}

func appendScalarElementAt(buf []byte, rec unsafe.Pointer, offset int, base table.Kind, i int) []byte {
	switch base {
	case table.KindBool:
		v := (*record.Repeated[bool])(unsafe.Add(rec, offset)).At(i)
		u := uint64(0)
		if v {
			u = 1
		}
		return wire.AppendVarint(buf, u)
	case table.KindVarint32:
		v := (*record.Repeated[int32])(unsafe.Add(rec, offset)).At(i)
		return wire.AppendVarint(buf, uint64(int64(v)))
	case table.KindVarint64:
		v := (*record.Repeated[int64])(unsafe.Add(rec, offset)).At(i)
		return wire.AppendVarint(buf, uint64(v))
	case table.KindZigZag32:
		v := (*record.Repeated[int32])(unsafe.Add(rec, offset)).At(i)
		return wire.AppendVarint(buf, uint64(zigzag.Encode32(v)))
	case table.KindZigZag64:
		v := (*record.Repeated[int64])(unsafe.Add(rec, offset)).At(i)
		return wire.AppendVarint(buf, zigzag.Encode(v))
	case table.KindEnum:
		v := (*record.Repeated[int32])(unsafe.Add(rec, offset)).At(i)
		return wire.AppendVarint(buf, uint64(int64(v)))
	case table.KindFixed32:
		v := (*record.Repeated[uint32])(unsafe.Add(rec, offset)).At(i)
		return wire.AppendFixed32(buf, v)
	case table.KindFixed64:
		v := (*record.Repeated[uint64])(unsafe.Add(rec, offset)).At(i)
		return wire.AppendFixed64(buf, v)
	default:
		return buf
	}
}

// appendScalarTagged appends a tag followed by one singular scalar value.
func appendScalarTagged(buf []byte, rec unsafe.Pointer, offset int, tag uint64, kind table.Kind) []byte {
	buf = wire.AppendVarint(buf, tag)
	switch kind {
	case table.KindBool:
		v := *(*bool)(unsafe.Add(rec, offset))
		u := uint64(0)
		if v {
			u = 1
		}
		return wire.AppendVarint(buf, u)
	case table.KindVarint32:
		v := *(*int32)(unsafe.Add(rec, offset))
		return wire.AppendVarint(buf, uint64(int64(v)))
	case table.KindVarint64:
		v := *(*int64)(unsafe.Add(rec, offset))
		return wire.AppendVarint(buf, uint64(v))
	case table.KindZigZag32:
		v := *(*int32)(unsafe.Add(rec, offset))
		return wire.AppendVarint(buf, uint64(zigzag.Encode32(v)))
	case table.KindZigZag64:
		v := *(*int64)(unsafe.Add(rec, offset))
		return wire.AppendVarint(buf, zigzag.Encode(v))
	case table.KindEnum:
		v := *(*int32)(unsafe.Add(rec, offset))
		return wire.AppendVarint(buf, uint64(int64(v)))
	case table.KindFixed32:
		v := *(*uint32)(unsafe.Add(rec, offset))
		return wire.AppendFixed32(buf, v)
	case table.KindFixed64:
		v := *(*uint64)(unsafe.Add(rec, offset))
		return wire.AppendFixed64(buf, v)
	default:
		return buf
	}
}
