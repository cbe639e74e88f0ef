package zigzag_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablepb/tablepb/internal/zigzag"
)

func TestRoundTrip64(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 2, -2, 1<<62 - 1, -(1 << 62)} {
		require.Equal(t, v, zigzag.Decode(zigzag.Encode(v)), "v=%d", v)
	}
}

func TestRoundTrip32(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 2, -2, 1<<30 - 1, -(1 << 30)} {
		require.Equal(t, v, zigzag.Decode32(zigzag.Encode32(v)), "v=%d", v)
	}
}

func TestKnownValues(t *testing.T) {
	// Values from the protobuf spec's zigzag table.
	cases := []struct {
		plain  int64
		zigzag uint64
	}{
		{0, 0},
		{-1, 1},
		{1, 2},
		{-2, 3},
		{2147483647, 4294967294},
		{-2147483648, 4294967295},
	}
	for _, c := range cases {
		require.Equal(t, c.zigzag, zigzag.Encode(c.plain))
		require.Equal(t, c.plain, zigzag.Decode(c.zigzag))
	}
}
