package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablepb/tablepb/internal/wire"
)

func TestVarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 35, ^uint64(0)} {
		buf := wire.AppendVarint(nil, v)
		require.Len(t, buf, wire.SizeVarint(v))
		got, n, err := wire.ConsumeVarint(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestVarintTruncated(t *testing.T) {
	_, _, err := wire.ConsumeVarint([]byte{0x80, 0x80})
	require.ErrorIs(t, err, wire.ErrTruncated)
}

func TestVarintOverflow(t *testing.T) {
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0x80
	}
	_, _, err := wire.ConsumeVarint(buf)
	require.ErrorIs(t, err, wire.ErrOverflow)
}

func TestTagRoundTrip(t *testing.T) {
	buf := wire.AppendTag(nil, 42, wire.Bytes)
	require.Equal(t, 2, len(buf))
	tag, n, err := wire.ConsumeTag(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	num, ty := wire.DecodeTag(tag)
	require.Equal(t, int32(42), num)
	require.Equal(t, wire.Bytes, ty)
}

func TestScenario1SingleVarint(t *testing.T) {
	// Schema: message M { int32 x = 1; }. Input 0x08 0x2A.
	buf := []byte{0x08, 0x2A}
	tag, n, err := wire.ConsumeTag(buf)
	require.NoError(t, err)
	num, ty := wire.DecodeTag(tag)
	require.Equal(t, int32(1), num)
	require.Equal(t, wire.Varint, ty)
	v, vn, err := wire.ConsumeVarint(buf[n:])
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)
	require.Equal(t, 1, vn)
}

func TestFixed32RoundTrip(t *testing.T) {
	buf := wire.AppendFixed32(nil, 0xDEADBEEF)
	v, n, err := wire.ConsumeFixed32(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, uint32(0xDEADBEEF), v)
}

func TestFixed64RoundTrip(t *testing.T) {
	buf := wire.AppendFixed64(nil, 0x0123456789ABCDEF)
	v, n, err := wire.ConsumeFixed64(buf)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, uint64(0x0123456789ABCDEF), v)
}

func TestLengthPrefixRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3}
	buf := wire.AppendVarint(nil, uint64(len(payload)))
	buf = append(buf, payload...)
	got, n, err := wire.ConsumeLengthPrefix(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, payload, got)
}

func TestLengthPrefixTruncated(t *testing.T) {
	buf := []byte{0x05, 1, 2}
	_, _, err := wire.ConsumeLengthPrefix(buf)
	require.ErrorIs(t, err, wire.ErrTruncated)
}
