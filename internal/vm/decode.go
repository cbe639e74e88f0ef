package vm

import (
	"errors"
	"math"
	"unsafe"

	"github.com/tablepb/tablepb/internal/arena"
	"github.com/tablepb/tablepb/internal/debug"
	"github.com/tablepb/tablepb/internal/record"
	"github.com/tablepb/tablepb/internal/table"
	"github.com/tablepb/tablepb/internal/wire"
	"github.com/tablepb/tablepb/internal/zigzag"
)

// DefaultMaxDepth bounds the decoder's frame stack (spec §7,
// LimitExceeded: "stack depth... exceeded configured bounds").
const DefaultMaxDepth = 1000

// ProgressKind is the tag of a Progress value (spec §4.6).
type ProgressKind uint8

const (
	ProgressNeedMore ProgressKind = iota
	ProgressDone
	ProgressFailed
)

// Progress is the result of a single Push call.
type Progress struct {
	Kind     ProgressKind
	Consumed int
	Err      error
}

// frame is one level of the parser's nesting stack (spec §4.4): a record
// pointer, its decoding table, and whether/where it closes.
type frame struct {
	rec      unsafe.Pointer
	table    *table.DecodeTable
	isGroup  bool
	groupNum int32
	limit    int64 // absolute stream position at which this frame closes; -1 if unbounded (root, or an open group)
}

var errMismatchedEndGroup = errors.New("mismatched end group marker")

// Parser is the push-mode decoder state of spec §4.4/§4.6. It never blocks:
// Push consumes as much of its argument as it can and returns control to
// the caller, recording whatever partial state remains in the Parser
// itself.
type Parser struct {
	arena    *arena.Arena
	frames   []frame
	pending  []byte
	pos      int64
	maxDepth int
	done     bool
	err      error

	// TraceID correlates the chunk deliveries of one push-mode session in
	// debug logs; it is cosmetic and never consulted by the parser itself.
	TraceID string
}

// NewParser starts a parse of a message described by rootTable into the
// record at root, using a arena for all allocation. maxDepth <= 0 selects
// DefaultMaxDepth.
func NewParser(a *arena.Arena, root unsafe.Pointer, rootTable *table.DecodeTable, maxDepth int) *Parser {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Parser{
		arena:    a,
		maxDepth: maxDepth,
		frames:   []frame{{rec: root, table: rootTable, limit: -1}},
	}
}

// Push consumes chunk, per spec §4.6. It always absorbs every byte handed
// to it into its own pending buffer before attempting to interpret any of
// it, so Consumed is always len(chunk) unless the parser has already
// failed or finished.
func (p *Parser) Push(chunk []byte) Progress {
	if p.err != nil {
		return Progress{Kind: ProgressFailed, Err: p.err}
	}
	if p.done {
		return Progress{Kind: ProgressFailed, Err: newErr(CodeMalformed, int(p.pos), "push after finish")}
	}

	p.pending = append(p.pending, chunk...)
	consumed := len(chunk)
	debug.Log("parser", "%s: push %d bytes (%d pending)", p.TraceID, consumed, len(p.pending))

	if err := p.run(); err != nil {
		p.err = err
		debug.Log("parser", "%s: failed: %v", p.TraceID, err)
		return Progress{Kind: ProgressFailed, Consumed: consumed, Err: err}
	}

	if len(p.frames) == 1 && len(p.pending) == 0 {
		return Progress{Kind: ProgressDone, Consumed: consumed}
	}
	return Progress{Kind: ProgressNeedMore, Consumed: consumed}
}

// Finish reports success iff the frame stack has unwound back to the root
// and no partial field remains pending (spec §4.6).
func (p *Parser) Finish() error {
	if p.err != nil {
		return p.err
	}
	if len(p.frames) != 1 || len(p.pending) != 0 {
		return newErr(CodeTruncated, int(p.pos), "stream ended mid-message")
	}
	p.done = true
	return nil
}

func (p *Parser) advance(n int) {
	p.pending = p.pending[n:]
	p.pos += int64(n)
}

// run interprets as much of p.pending as possible, stopping (without
// consuming a partial field) whenever more bytes are needed.
func (p *Parser) run() error {
	for {
		top := &p.frames[len(p.frames)-1]
		if top.limit >= 0 && p.pos >= top.limit {
			p.frames = p.frames[:len(p.frames)-1]
			continue
		}

		if len(p.pending) == 0 {
			return nil
		}

		tag, n, err := wire.ConsumeTag(p.pending)
		if err != nil {
			return p.classify(err)
		}
		fieldNumber, wireType := wire.DecodeTag(tag)

		if wireType == wire.EndGroup {
			if !top.isGroup || fieldNumber != top.groupNum {
				return newErr(CodeMalformed, int(p.pos), errMismatchedEndGroup.Error())
			}
			p.advance(n)
			p.frames = p.frames[:len(p.frames)-1]
			continue
		}

		kind := top.table.Lookup(fieldNumber)
		if kind == table.KindUnknown {
			consumed, err := skipValue(p.pending[n:], wireType, fieldNumber)
			if err != nil {
				return p.classify(err)
			}
			p.advance(n + consumed)
			continue
		}

		entry, ok := top.table.Entry(fieldNumber)
		if !ok {
			// The fast-path kind array and the field-entry table disagree;
			// this can only happen for a corrupt/hand-built table, not for
			// one produced by the compiler.
			return newErr(CodeMalformed, int(p.pos), "field entry out of range")
		}

		consumed, err := p.applyField(top, kind, entry, fieldNumber, wireType, p.pending[n:])
		if err != nil {
			return p.classify(err)
		}
		p.advance(n + consumed)
	}
}

// classify turns an internal error into either "need more input" (nil, and
// the caller should stop and wait) or a terminal *Error.
func (p *Parser) classify(err error) error {
	if errors.Is(err, wire.ErrTruncated) {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return newErr(CodeMalformed, int(p.pos), err.Error())
}

// skipValue consumes and discards a single field's payload by wire type
// (spec §4.4, "unknown tags"). For StartGroup it recurses until the
// matching EndGroup.
func skipValue(data []byte, wireType wire.Type, fieldNumber int32) (int, error) {
	switch wireType {
	case wire.Varint:
		_, n, err := wire.ConsumeVarint(data)
		return n, err
	case wire.Fixed32:
		_, n, err := wire.ConsumeFixed32(data)
		return n, err
	case wire.Fixed64:
		_, n, err := wire.ConsumeFixed64(data)
		return n, err
	case wire.Bytes:
		_, n, err := wire.ConsumeLengthPrefix(data)
		return n, err
	case wire.StartGroup:
		return skipGroup(data, fieldNumber)
	default:
		return 0, errors.New("cannot parse reserved wire type")
	}
}

func skipGroup(data []byte, fieldNumber int32) (int, error) {
	total := 0
	for {
		tag, n, err := wire.ConsumeTag(data[total:])
		if err != nil {
			return 0, err
		}
		total += n
		num, wt := wire.DecodeTag(tag)
		if wt == wire.EndGroup {
			if num != fieldNumber {
				return 0, errMismatchedEndGroup
			}
			return total, nil
		}
		consumed, err := skipValue(data[total:], wt, num)
		if err != nil {
			return 0, err
		}
		total += consumed
	}
}

// applyField decodes one field's value (data is positioned just past the
// tag) and writes it into the record, pushing a new frame for sub-messages.
// It returns the number of bytes of data consumed.
func (p *Parser) applyField(f *frame, kind table.Kind, entry table.FieldEntry, fieldNumber int32, wireType wire.Type, data []byte) (int, error) {
	if kind.IsSubMessage() {
		return p.applySubMessage(f, kind, entry, fieldNumber, wireType, data)
	}

	offset := entry.Offset()
	hasBit := entry.HasBit()
	repeated := kind.IsRepeated()

	if kind == table.KindBytes || kind == table.KindString ||
		kind == table.KindRepeatedBytes || kind == table.KindRepeatedString {
		if wireType != wire.Bytes {
			return 0, errors.New("invalid wire-type for declared kind")
		}
		payload, n, err := wire.ConsumeLengthPrefix(data)
		if err != nil {
			return 0, err
		}
		if (kind == table.KindString || kind == table.KindRepeatedString) && !record.ValidUTF8(payload) {
			return 0, errors.New("invalid UTF-8 in string")
		}
		if repeated {
			r := (*record.Repeated[record.Bytes])(unsafe.Add(f.rec, offset))
			var v record.Bytes
			record.SetCopy(&v, p.arena, payload)
			r.Append(p.arena, v)
		} else {
			dst := (*record.Bytes)(unsafe.Add(f.rec, offset))
			record.SetCopy(dst, p.arena, payload)
			record.SetHasBit(f.rec, hasBit)
		}
		return n, nil
	}

	// Packed wire encoding is accepted for any repeated numeric field,
	// regardless of whether the schema declared it Packed or plain
	// repeated (spec §4.4, matching real-world encoder leniency).
	if repeated && wireType == wire.Bytes {
		payload, n, err := wire.ConsumeLengthPrefix(data)
		if err != nil {
			return 0, err
		}
		if err := p.unpackInto(f.rec, offset, kind, payload); err != nil {
			return 0, err
		}
		return n, nil
	}

	return p.applyScalar(f.rec, offset, hasBit, kind, repeated, wireType, data)
}

func (p *Parser) applySubMessage(f *frame, kind table.Kind, entry table.FieldEntry, fieldNumber int32, wireType wire.Type, data []byte) (int, error) {
	aux := f.table.Aux[entry.AuxIndex()]
	repeated := kind.IsRepeated()
	isGroup := kind.IsGroup()

	if isGroup && wireType != wire.StartGroup {
		return 0, errors.New("invalid wire-type for declared kind")
	}
	if !isGroup && wireType != wire.Bytes {
		return 0, errors.New("invalid wire-type for declared kind")
	}

	if len(p.frames) >= p.maxDepth {
		return 0, newErr(CodeLimitExceeded, int(p.pos), "recursion depth exceeded")
	}

	var child unsafe.Pointer
	if repeated {
		child = p.arena.Alloc(aux.Child.RecordSize, arena.MaxAlign)
	} else {
		// A singular sub-message field can legitimately arrive more than
		// once on the wire; spec §4.3 merges these field-wise rather than
		// letting the second occurrence clobber the first, so an existing
		// child record is decoded into in place instead of being replaced.
		slot := (*unsafe.Pointer)(unsafe.Add(f.rec, aux.Offset))
		if *slot != nil {
			child = *slot
		} else {
			child = p.arena.Alloc(aux.Child.RecordSize, arena.MaxAlign)
			*slot = child
		}
	}

	var headerLen int64
	var limit int64 = -1
	if !isGroup {
		length, n, err := wire.ConsumeVarint(data)
		if err != nil {
			return 0, err
		}
		headerLen = int64(n)
		tagLen := int64(len(p.pending) - len(data))
		limit = p.pos + tagLen + headerLen + int64(length)
	}

	if repeated {
		r := (*record.Repeated[unsafe.Pointer])(unsafe.Add(f.rec, aux.Offset))
		r.Append(p.arena, child)
	}

	p.frames = append(p.frames, frame{
		rec:      child,
		table:    aux.Child,
		isGroup:  isGroup,
		groupNum: fieldNumber,
		limit:    limit,
	})
	debug.Log("parser", "%s: pushed frame for field %d, depth now %d", p.TraceID, fieldNumber, len(p.frames))

	return int(headerLen), nil
}

// applyScalar decodes a single (non length-delimited) scalar value and
// writes it to the record, per spec §3.1/§4.4.
func (p *Parser) applyScalar(rec unsafe.Pointer, offset, hasBit int, kind table.Kind, repeated bool, wireType wire.Type, data []byte) (int, error) {
	base := kind
	if repeated {
		base = unrepeat(kind)
	}

	switch base {
	case table.KindBool, table.KindVarint32, table.KindVarint64, table.KindZigZag32, table.KindZigZag64, table.KindEnum:
		if wireType != wire.Varint {
			return 0, errors.New("invalid wire-type for declared kind")
		}
		v, n, err := wire.ConsumeVarint(data)
		if err != nil {
			return 0, err
		}
		storeScalar(rec, offset, base, v, p.arena, repeated)
		if !repeated {
			record.SetHasBit(rec, hasBit)
		}
		return n, nil

	case table.KindFixed32:
		if wireType != wire.Fixed32 {
			return 0, errors.New("invalid wire-type for declared kind")
		}
		v, n, err := wire.ConsumeFixed32(data)
		if err != nil {
			return 0, err
		}
		storeScalar(rec, offset, base, uint64(v), p.arena, repeated)
		if !repeated {
			record.SetHasBit(rec, hasBit)
		}
		return n, nil

	case table.KindFixed64:
		if wireType != wire.Fixed64 {
			return 0, errors.New("invalid wire-type for declared kind")
		}
		v, n, err := wire.ConsumeFixed64(data)
		if err != nil {
			return 0, err
		}
		storeScalar(rec, offset, base, v, p.arena, repeated)
		if !repeated {
			record.SetHasBit(rec, hasBit)
		}
		return n, nil
	}
	return 0, errors.New("unsupported field kind")
}

// unpackInto decodes a packed payload into the repeated container at
// offset (spec §4.4, "Packed repeated").
func (p *Parser) unpackInto(rec unsafe.Pointer, offset int, kind table.Kind, payload []byte) error {
	base := unrepeat(kind)
	for len(payload) > 0 {
		var n int
		var err error
		switch base {
		case table.KindBool, table.KindVarint32, table.KindVarint64, table.KindZigZag32, table.KindZigZag64, table.KindEnum:
			var v uint64
			v, n, err = wire.ConsumeVarint(payload)
			if err == nil {
				storeScalar(rec, offset, base, v, p.arena, true)
			}
		case table.KindFixed32:
			var v uint32
			v, n, err = wire.ConsumeFixed32(payload)
			if err == nil {
				storeScalar(rec, offset, base, uint64(v), p.arena, true)
			}
		case table.KindFixed64:
			var v uint64
			v, n, err = wire.ConsumeFixed64(payload)
			if err == nil {
				storeScalar(rec, offset, base, v, p.arena, true)
			}
		default:
			return errors.New("kind cannot be packed")
		}
		if err != nil {
			if errors.Is(err, wire.ErrTruncated) {
				return errors.New("packed payload length mismatch")
			}
			return err
		}
		payload = payload[n:]
	}
	return nil
}

// unrepeat maps a Repeated*/Packed* kind to its scalar base kind.
func unrepeat(k table.Kind) table.Kind {
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

// storeScalar writes a raw decoded value v (already wire-decoded, but not
// yet zigzag-transformed) into the scalar slot at offset, or appends it to
// the repeated container there.
func storeScalar(rec unsafe.Pointer, offset int, base table.Kind, v uint64, a *arena.Arena, repeated bool) {
	switch base {
	case table.KindBool:
		val := v != 0
		if repeated {
			(*record.Repeated[bool])(unsafe.Add(rec, offset)).Append(a, val)
		} else {
			*(*bool)(unsafe.Add(rec, offset)) = val
		}
	case table.KindVarint32:
		val := int32(v)
		if repeated {
			(*record.Repeated[int32])(unsafe.Add(rec, offset)).Append(a, val)
		} else {
			*(*int32)(unsafe.Add(rec, offset)) = val
		}
	case table.KindVarint64:
		val := int64(v)
		if repeated {
			(*record.Repeated[int64])(unsafe.Add(rec, offset)).Append(a, val)
		} else {
			*(*int64)(unsafe.Add(rec, offset)) = val
		}
	case table.KindZigZag32:
		val := zigzag.Decode32(uint32(v))
		if repeated {
			(*record.Repeated[int32])(unsafe.Add(rec, offset)).Append(a, val)
		} else {
			*(*int32)(unsafe.Add(rec, offset)) = val
		}
	case table.KindZigZag64:
		val := zigzag.Decode(v)
		if repeated {
			(*record.Repeated[int64])(unsafe.Add(rec, offset)).Append(a, val)
		} else {
			*(*int64)(unsafe.Add(rec, offset)) = val
		}
	case table.KindEnum:
		val := int32(v)
		if repeated {
			(*record.Repeated[int32])(unsafe.Add(rec, offset)).Append(a, val)
		} else {
			*(*int32)(unsafe.Add(rec, offset)) = val
		}
	case table.KindFixed32:
		if repeated {
			(*record.Repeated[uint32])(unsafe.Add(rec, offset)).Append(a, uint32(v))
		} else {
			*(*uint32)(unsafe.Add(rec, offset)) = uint32(v)
		}
	case table.KindFixed64:
		if repeated {
			(*record.Repeated[uint64])(unsafe.Add(rec, offset)).Append(a, v)
		} else {
			*(*uint64)(unsafe.Add(rec, offset)) = v
		}
	}
}

// Float32Bits and Float64Bits convert the raw fixed-width storage produced
// by storeScalar into IEEE-754 floats, for float/double accessor use.
func Float32Bits(raw uint32) float32 { return math.Float32frombits(raw) }
func Float64Bits(raw uint64) float64 { return math.Float64frombits(raw) }
