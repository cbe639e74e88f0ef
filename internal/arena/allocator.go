package arena

import "unsafe"

// Allocator is the pluggable backing allocator contract from spec §4.2/§6.
// An Arena calls into it only at block boundaries; per-object allocation
// inside a block never touches the Allocator.
//
// Blocks are slices of unsafe.Pointer-sized words, not bytes. An Arena must
// be able to mint singular sub-message pointers, repeated-element runs of
// pointers, and byte/string slice headers, all of which contain real Go
// pointers; backing those allocations with a pointer-typed slice is what
// makes the garbage collector scan (and correctly keep alive) everything
// reachable from a record, at the cost of treating plain scalar words as
// "possibly a pointer" too. Go's garbage collector is non-moving, so a
// scalar word that happens to look like a pointer only risks over-retention,
// never corruption — the same tradeoff the teacher's arena design doc
// (internal/arena/arena.go) calls out, traded here for a much simpler
// implementation than the teacher's self-referential chunk layout.
type Allocator interface {
	// AllocateBlock returns a fresh block of at least minWords words.
	AllocateBlock(minWords int) []unsafe.Pointer
	// Release returns a block previously handed out by AllocateBlock. It is
	// called at most once per block, when the arena that owns it is freed.
	Release(block []unsafe.Pointer)
}

// heapAllocator is the default Allocator, backed by the Go heap. Release is
// a no-op: the garbage collector reclaims the block once nothing in the
// arena (or KeepAlive'd around it) still references it.
type heapAllocator struct{}

func (heapAllocator) AllocateBlock(minWords int) []unsafe.Pointer {
	return make([]unsafe.Pointer, minWords)
}

func (heapAllocator) Release([]unsafe.Pointer) {}

// DefaultAllocator is the zero-configuration Allocator used when an Arena is
// constructed without an explicit one.
var DefaultAllocator Allocator = heapAllocator{}
