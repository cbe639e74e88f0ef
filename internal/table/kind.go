// Package table defines the compact, per-message decoding and encoding
// tables of spec §3.5-§3.6: the generator (internal/compiler) builds them,
// and the interpreter/serializer (internal/vm) is the single piece of code
// that walks them for every message type.
package table

// Kind is the wire-level dispatch tag a field resolves to, combining wire
// format with physical storage width so that the interpreter never needs a
// second switch once it has one (spec §3.5: "kind array... mapping masked
// tag bits to a wire-kind tag (varint, zigzag, fixed32/64, length-delimited,
// message, group, repeated variants, unknown)").
type Kind uint8

const (
	KindUnknown Kind = iota

	// Singular scalars.
	KindBool
	KindVarint32
	KindVarint64
	KindZigZag32
	KindZigZag64
	KindFixed32
	KindFixed64
	KindEnum
	KindBytes
	KindString

	// Singular sub-messages.
	KindMessage
	KindGroup

	// Repeated, non-packed.
	KindRepeatedBool
	KindRepeatedVarint32
	KindRepeatedVarint64
	KindRepeatedZigZag32
	KindRepeatedZigZag64
	KindRepeatedFixed32
	KindRepeatedFixed64
	KindRepeatedEnum
	KindRepeatedBytes
	KindRepeatedString
	KindRepeatedMessage
	KindRepeatedGroup

	// Packed repeated scalars: these are encoded as one length-delimited
	// payload (the decoder also accepts unpacked elements for them), and
	// unpack into the same backing run as their non-packed counterpart
	// (spec §4.3: "packed repeated fields append in order").
	// Bytes/string/message/group fields are never packable, per the wire
	// format itself.
	KindPackedBool
	KindPackedVarint32
	KindPackedVarint64
	KindPackedZigZag32
	KindPackedZigZag64
	KindPackedFixed32
	KindPackedFixed64
	KindPackedEnum
)

// IsPacked reports whether k is one of the Packed* kinds.
func (k Kind) IsPacked() bool {
	return k >= KindPackedBool && k <= KindPackedEnum
}

// IsRepeated reports whether k is a repeated (packed or unpacked) kind.
func (k Kind) IsRepeated() bool {
	return (k >= KindRepeatedBool && k <= KindRepeatedGroup) || k.IsPacked()
}

// IsSubMessage reports whether k addresses a child message via the aux
// table rather than a direct scalar slot.
func (k Kind) IsSubMessage() bool {
	switch k {
	case KindMessage, KindGroup, KindRepeatedMessage, KindRepeatedGroup:
		return true
	default:
		return false
	}
}

// IsGroup reports whether k decodes using start/end-group framing instead
// of a length-delimited payload.
func (k Kind) IsGroup() bool {
	return k == KindGroup || k == KindRepeatedGroup
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

var kindNames = [...]string{
	KindUnknown:         "Unknown",
	KindBool:            "Bool",
	KindVarint32:        "Varint32",
	KindVarint64:        "Varint64",
	KindZigZag32:        "ZigZag32",
	KindZigZag64:        "ZigZag64",
	KindFixed32:         "Fixed32",
	KindFixed64:         "Fixed64",
	KindEnum:            "Enum",
	KindBytes:           "Bytes",
	KindString:          "String",
	KindMessage:         "Message",
	KindGroup:           "Group",
	KindRepeatedBool:    "RepeatedBool",
	KindRepeatedVarint32: "RepeatedVarint32",
	KindRepeatedVarint64: "RepeatedVarint64",
	KindRepeatedZigZag32: "RepeatedZigZag32",
	KindRepeatedZigZag64: "RepeatedZigZag64",
	KindRepeatedFixed32:  "RepeatedFixed32",
	KindRepeatedFixed64:  "RepeatedFixed64",
	KindRepeatedEnum:     "RepeatedEnum",
	KindRepeatedBytes:    "RepeatedBytes",
	KindRepeatedString:   "RepeatedString",
	KindRepeatedMessage:  "RepeatedMessage",
	KindRepeatedGroup:    "RepeatedGroup",
	KindPackedBool:       "PackedBool",
	KindPackedVarint32:   "PackedVarint32",
	KindPackedVarint64:   "PackedVarint64",
	KindPackedZigZag32:   "PackedZigZag32",
	KindPackedZigZag64:   "PackedZigZag64",
	KindPackedFixed32:    "PackedFixed32",
	KindPackedFixed64:    "PackedFixed64",
	KindPackedEnum:       "PackedEnum",
}
