package table_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablepb/tablepb/internal/table"
)

func TestFieldEntryPacking(t *testing.T) {
	e := table.PackFieldEntry(5, 100)
	require.Equal(t, 5, e.HasBit())
	require.Equal(t, 100, e.Offset())
}

func TestFieldEntryBounds(t *testing.T) {
	require.Panics(t, func() { table.PackFieldEntry(0, table.MaxRecordSize) })
	require.Panics(t, func() { table.PackFieldEntry(64, 0) })
	// Max legal values should not panic.
	require.NotPanics(t, func() { table.PackFieldEntry(63, 1023) })
}

func TestDecodeTableFastPath(t *testing.T) {
	dt := table.NewDecodeTable(4, 5)
	require.True(t, dt.SetKind(1, table.KindVarint32))
	require.True(t, dt.SetKind(5, table.KindMessage))

	require.Equal(t, table.KindVarint32, dt.Lookup(1))
	require.Equal(t, table.KindMessage, dt.Lookup(5))
	require.Equal(t, table.KindUnknown, dt.Lookup(99))
}

func TestDecodeTableCollisionDetected(t *testing.T) {
	dt := table.NewDecodeTable(2, 20) // mask = 3, so field 1 and 5 collide
	require.True(t, dt.SetKind(1, table.KindVarint32))
	require.False(t, dt.SetKind(5, table.KindMessage), "field 5 aliases field 1's slot")
}

func TestDecodeTableEntryBounds(t *testing.T) {
	dt := table.NewDecodeTable(4, 5)
	dt.Fields[3] = table.PackFieldEntry(0, 8)
	e, ok := dt.Entry(3)
	require.True(t, ok)
	require.Equal(t, 8, e.Offset())

	_, ok = dt.Entry(0)
	require.False(t, ok)
	_, ok = dt.Entry(999)
	require.False(t, ok)
}

func TestKindHelpers(t *testing.T) {
	require.True(t, table.KindPackedVarint32.IsPacked())
	require.True(t, table.KindPackedVarint32.IsRepeated())
	require.True(t, table.KindRepeatedBytes.IsRepeated())
	require.False(t, table.KindRepeatedBytes.IsPacked())
	require.True(t, table.KindMessage.IsSubMessage())
	require.True(t, table.KindRepeatedMessage.IsSubMessage())
	require.False(t, table.KindBytes.IsSubMessage())
	require.True(t, table.KindGroup.IsGroup())
}
