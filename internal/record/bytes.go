package record

import (
	"unicode/utf8"

	"github.com/tablepb/tablepb/internal/arena"
)

// Bytes is a bytes/string field slot (spec §3.1). It is a plain Go []byte:
// either a static slice (the zero value, or a generator-emitted constant
// default) or an arena-owned run. Because arena memory is always backed by
// a pointer-scanned block (internal/arena), storing a slice header directly
// inside an arena-allocated record is safe without any special GC tricks.
type Bytes = []byte

// SetCopy copies src into arena-owned memory and stores it at *dst, the copy
// half of spec §4.3's assignment policy. It does not touch the has-bit;
// callers set it themselves.
func SetCopy(dst *Bytes, a *arena.Arena, src []byte) {
	*dst = a.AllocBytes(src)
}

// SetStatic aliases a caller-owned slice without copying. Used for
// generator-emitted constant defaults, which outlive any arena.
func SetStatic(dst *Bytes, src []byte) {
	*dst = src
}

// ValidUTF8 reports whether b is well-formed UTF-8, the validation contract
// spec §3.1 attaches to string-typed fields at the decode boundary.
func ValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}
