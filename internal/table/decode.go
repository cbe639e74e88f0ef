package table

// DecodeAux is the second-tier entry for sub-message fields (spec §3.5):
// the byte offset of the child pointer slot in the parent record, and a
// pointer to the child's own DecodeTable. Child tables are referenced by
// pointer so that cyclic schemas (a message containing itself, transitively)
// work: internal/compiler registers each message's table before compiling
// its sub-messages, so a back-reference points at the already-allocated
// table (spec §9, "static cyclic table graphs").
type DecodeAux struct {
	Offset int
	Child  *DecodeTable
}

// kindSlot is one entry of the fast-path kind array. FieldNumber guards
// against mask collisions: an incoming tag whose masked bits alias a
// declared field's slot, but whose field number does not actually match,
// is treated as Unknown rather than misdecoded into the wrong slot. The
// generator is expected to choose Mask so that no two declared fields
// collide (spec §4.7), which makes this check succeed unconditionally for
// any schema-conformant input; it only ever fires on malicious or
// coincidentally-colliding unknown field numbers.
type kindSlot struct {
	Kind        Kind
	FieldNumber int32
}

// DecodeTable is the per-message-type decoding table of spec §3.5.
type DecodeTable struct {
	// Mask selects the low bits of a decoded tag that index kinds.
	Mask uint64

	// kinds is the fast-path kind array, of length Mask+1.
	kinds []kindSlot

	// Fields is indexed by field number (1..MaxFieldNumber); Fields[0] is
	// unused filler so that field number can index directly.
	Fields []FieldEntry

	// Aux holds one entry per sub-message field.
	Aux []DecodeAux

	// RecordSize is the size, in bytes, of a record of this message type,
	// including its has-bits prefix.
	RecordSize int

	// HasBitCount is the number of presence-bearing fields (K in spec
	// §3.2). It is informational; the decoder does not read it.
	HasBitCount int
}

// NewDecodeTable allocates a DecodeTable with a kind array sized to 2^bits
// entries, per the generator's sizing formula (spec §4.7).
func NewDecodeTable(bits int, maxFieldNumber int32) *DecodeTable {
	size := 1 << uint(bits)
	return &DecodeTable{
		Mask:   uint64(size - 1),
		kinds:  make([]kindSlot, size),
		Fields: make([]FieldEntry, maxFieldNumber+1),
	}
}

// SetKind populates the fast-path slot for a field number/kind pair. It
// reports false if the slot is already occupied by a different field
// number. internal/compiler widens the mask with fitMaskBits before
// populating a table, so its own tables never hit this case.
func (t *DecodeTable) SetKind(fieldNumber int32, k Kind) bool {
	idx := uint64(fieldNumber) & t.Mask
	slot := &t.kinds[idx]
	if slot.FieldNumber != 0 && slot.FieldNumber != fieldNumber {
		return false
	}
	slot.Kind = k
	slot.FieldNumber = fieldNumber
	return true
}

// Lookup resolves a field number to its Kind via the fast-path array,
// verifying the field number actually matches the slot occupant. It
// returns KindUnknown for anything not present.
func (t *DecodeTable) Lookup(fieldNumber int32) Kind {
	idx := uint64(fieldNumber) & t.Mask
	if int(idx) >= len(t.kinds) {
		return KindUnknown
	}
	slot := t.kinds[idx]
	if slot.FieldNumber != fieldNumber {
		return KindUnknown
	}
	return slot.Kind
}

// Entry returns the packed FieldEntry for fieldNumber, or (0, false) if it
// is out of range.
func (t *DecodeTable) Entry(fieldNumber int32) (FieldEntry, bool) {
	if fieldNumber <= 0 || int(fieldNumber) >= len(t.Fields) {
		return 0, false
	}
	return t.Fields[fieldNumber], true
}
