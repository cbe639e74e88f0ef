// Package zigzag implements the zigzag transform used by sint32/sint64
// wire fields, kept separate from the plain varint codec because the two
// must never be confused: a zigzag value is only meaningful once decoded
// through this transform.
package zigzag

// Encode maps a signed value onto the zigzag-encoded unsigned domain, so
// that small-magnitude negative values still encode as small varints.
func Encode(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// Encode32 is the 32-bit counterpart of Encode.
func Encode32(v int32) uint32 {
	return uint32(v<<1) ^ uint32(v>>31)
}

// Decode reverses Encode.
func Decode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// Decode32 reverses Encode32.
func Decode32(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}
