package arena_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/tablepb/tablepb/internal/arena"
)

func TestAllocZeroed(t *testing.T) {
	a := arena.New(nil, 64)
	p := a.Alloc(8, 8)
	b := unsafe.Slice((*byte)(p), 8)
	for _, v := range b {
		require.Zero(t, v)
	}
}

func TestAllocDistinct(t *testing.T) {
	a := arena.New(nil, 16) // force multiple blocks quickly
	ptrs := make([]unsafe.Pointer, 0, 64)
	for i := 0; i < 64; i++ {
		p := a.Alloc(8, 8)
		*(*int64)(p) = int64(i)
		ptrs = append(ptrs, p)
	}
	for i, p := range ptrs {
		require.Equal(t, int64(i), *(*int64)(p))
	}
}

func TestAllocBytesCopies(t *testing.T) {
	a := arena.New(nil, 0)
	src := []byte("hello")
	dst := a.AllocBytes(src)
	require.Equal(t, src, dst)
	src[0] = 'H'
	require.Equal(t, "hello", string(dst), "arena copy must not alias caller memory")
}

func TestAllocBytesEmpty(t *testing.T) {
	a := arena.New(nil, 0)
	require.Nil(t, a.AllocBytes(nil))
	require.Nil(t, a.AllocBytes([]byte{}))
}

func TestAllocLargerThanBlock(t *testing.T) {
	a := arena.New(nil, 8)
	p := a.Alloc(4096, 8)
	b := unsafe.Slice((*byte)(p), 4096)
	b[4095] = 0xAB
	require.Equal(t, byte(0xAB), b[4095])
}

func TestAllocPointerSurvivesGrowth(t *testing.T) {
	a := arena.New(nil, 8)
	type node struct {
		child unsafe.Pointer
		val   int64
	}
	first := arena.NewValue[node](a)
	first.val = 1
	for i := 0; i < 128; i++ {
		_ = arena.NewValue[node](a) // force several block growths
	}
	require.Equal(t, int64(1), first.val, "growth must not invalidate prior allocations")
}

func TestFreeAllowsReuse(t *testing.T) {
	a := arena.New(nil, 64)
	_ = a.Alloc(32, 8)
	a.Free()
	p := a.Alloc(8, 8)
	require.NotNil(t, p)
}

type countingAllocator struct {
	allocated, released int
}

func (c *countingAllocator) AllocateBlock(minWords int) []unsafe.Pointer {
	c.allocated++
	return make([]unsafe.Pointer, minWords)
}

func (c *countingAllocator) Release([]unsafe.Pointer) {
	c.released++
}

func TestCustomAllocatorReleasedOnFree(t *testing.T) {
	c := &countingAllocator{}
	a := arena.New(c, 16)
	for i := 0; i < 10; i++ {
		a.Alloc(8, 8)
	}
	require.Greater(t, c.allocated, 1)
	a.Free()
	require.Equal(t, c.allocated, c.released)
}
