package record_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/tablepb/tablepb/internal/arena"
	"github.com/tablepb/tablepb/internal/record"
)

func TestHasBits(t *testing.T) {
	var words [2]uint32
	base := unsafe.Pointer(&words[0])

	require.False(t, record.HasBit(base, 0))
	record.SetHasBit(base, 0)
	require.True(t, record.HasBit(base, 0))

	record.SetHasBit(base, 40) // second word
	require.True(t, record.HasBit(base, 40))
	require.False(t, record.HasBit(base, 41))

	record.ClearHasBit(base, 0)
	require.False(t, record.HasBit(base, 0))
	require.True(t, record.HasBit(base, 40))
}

func TestHasBitWords(t *testing.T) {
	require.Equal(t, 1, record.HasBitWords(1))
	require.Equal(t, 1, record.HasBitWords(32))
	require.Equal(t, 2, record.HasBitWords(33))
	require.Equal(t, 2, record.HasBitWords(64))
}

func TestRepeatedAppendAndGrow(t *testing.T) {
	a := arena.New(nil, 0)
	var r record.Repeated[int32]
	for i := int32(0); i < 100; i++ {
		r.Append(a, i)
	}
	require.Equal(t, 100, r.Len())
	for i := 0; i < 100; i++ {
		require.Equal(t, int32(i), r.At(i))
	}
	require.Equal(t, 100, len(r.Slice()))
}

func TestRepeatedOfPointers(t *testing.T) {
	a := arena.New(nil, 0)
	var r record.Repeated[unsafe.Pointer]
	type child struct{ v int32 }
	for i := int32(0); i < 10; i++ {
		c := arena.NewValue[child](a)
		c.v = i
		r.Append(a, unsafe.Pointer(c))
	}
	require.Equal(t, 10, r.Len())
	for i := 0; i < 10; i++ {
		c := (*child)(r.At(i))
		require.Equal(t, int32(i), c.v)
	}
}

func TestBytesSetCopy(t *testing.T) {
	a := arena.New(nil, 0)
	var b record.Bytes
	src := []byte("payload")
	record.SetCopy(&b, a, src)
	require.Equal(t, src, b)
	src[0] = 'P'
	require.Equal(t, "payload", string(b))
}

func TestBytesSetStaticAliases(t *testing.T) {
	var b record.Bytes
	src := []byte("const")
	record.SetStatic(&b, src)
	require.Same(t, &src[0], &b[0])
}

func TestValidUTF8(t *testing.T) {
	require.True(t, record.ValidUTF8([]byte("hello")))
	require.False(t, record.ValidUTF8([]byte{0xff, 0xfe}))
}
