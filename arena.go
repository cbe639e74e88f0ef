package tablepb

import "github.com/tablepb/tablepb/internal/arena"

// Arena is a bump allocator that every [Type], [Message], and generated
// binding mints records and variable-length payloads from (spec §3.4/§4.2).
// It is re-exported here as an alias so that callers, including generated
// code, can spell the type without reaching into an internal package.
type Arena = arena.Arena

// Allocator is the pluggable backing allocator an [Arena] draws blocks from
// (spec §4.2/§6).
type Allocator = arena.Allocator

// DefaultAllocator is the heap-backed Allocator used when NewArena is given
// a nil one.
var DefaultAllocator = arena.DefaultAllocator

// NewArena constructs an Arena backed by allocator (DefaultAllocator if
// nil). initialBytes, if positive, overrides the size of the arena's first
// block.
func NewArena(allocator Allocator, initialBytes int) *Arena {
	return arena.New(allocator, initialBytes)
}
