package vm_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/tablepb/tablepb/internal/arena"
	"github.com/tablepb/tablepb/internal/record"
	"github.com/tablepb/tablepb/internal/table"
	"github.com/tablepb/tablepb/internal/vm"
)

// messageMDecodeTable builds the decode table for message M { int32 x = 1; }
// with a record layout of: has-bits word at offset 0, x at offset 8.
func messageMDecodeTable() *table.DecodeTable {
	dt := table.NewDecodeTable(2, 1)
	dt.SetKind(1, table.KindVarint32)
	dt.Fields[1] = table.PackFieldEntry(0, 8)
	return dt
}

func messageMEncodeTable() *table.EncodeTable {
	return &table.EncodeTable{
		Entries: []table.EncodeEntry{
			{Kind: table.KindVarint32, HasBit: 0, Offset: 8, Tag: uint64(1<<3 | 0)},
		},
		RecordSize: 16,
	}
}

func TestScenario1SingleVarint(t *testing.T) {
	a := arena.New(nil, 0)
	root := a.Alloc(16, arena.MaxAlign)
	dt := messageMDecodeTable()

	p := vm.NewParser(a, root, dt, 0)
	prog := p.Push([]byte{0x08, 0x2A})
	require.Equal(t, vm.ProgressDone, prog.Kind)
	require.NoError(t, p.Finish())

	require.True(t, record.HasBit(root, 0))
	require.EqualValues(t, 42, *(*int32)(unsafe.Add(root, 8)))
}

// messageXsDecodeTable builds message M { repeated int32 xs = 2 [packed=true]; }
// with xs (a Repeated[int32]) at offset 8.
func messageXsDecodeTable() *table.DecodeTable {
	dt := table.NewDecodeTable(2, 2)
	dt.SetKind(2, table.KindPackedVarint32)
	dt.Fields[2] = table.PackFieldEntry(0, 8)
	return dt
}

func TestScenario2PackedRepeated(t *testing.T) {
	a := arena.New(nil, 0)
	root := a.Alloc(24, arena.MaxAlign)
	dt := messageXsDecodeTable()

	p := vm.NewParser(a, root, dt, 0)
	prog := p.Push([]byte{0x12, 0x03, 0x01, 0x02, 0x03})
	require.Equal(t, vm.ProgressDone, prog.Kind)
	require.NoError(t, p.Finish())

	xs := (*record.Repeated[int32])(unsafe.Add(root, 8))
	require.Equal(t, []int32{1, 2, 3}, xs.Slice())
}

// nested message tables for Inner { int32 v = 1; } and Outer { Inner n = 1; }.
func innerDecodeTable() *table.DecodeTable {
	dt := table.NewDecodeTable(2, 1)
	dt.SetKind(1, table.KindVarint32)
	dt.Fields[1] = table.PackFieldEntry(0, 8)
	return dt
}

func outerDecodeTable() *table.DecodeTable {
	inner := innerDecodeTable()
	dt := table.NewDecodeTable(2, 1)
	dt.SetKind(1, table.KindMessage)
	dt.Fields[1] = table.AuxFieldEntry(0)
	dt.Aux = []table.DecodeAux{{Offset: 8, Child: inner}}
	return dt
}

func TestScenario3NestedMessage(t *testing.T) {
	a := arena.New(nil, 0)
	root := a.Alloc(16, arena.MaxAlign)
	dt := outerDecodeTable()

	p := vm.NewParser(a, root, dt, 0)
	prog := p.Push([]byte{0x0A, 0x02, 0x08, 0x07})
	require.Equal(t, vm.ProgressDone, prog.Kind)
	require.NoError(t, p.Finish())

	child := *(*unsafe.Pointer)(unsafe.Add(root, 8))
	require.NotNil(t, child)
	require.EqualValues(t, 7, *(*int32)(unsafe.Add(child, 8)))
}

func TestScenario4ChunkedDecodeMatchesScenario3(t *testing.T) {
	a := arena.New(nil, 0)
	root := a.Alloc(16, arena.MaxAlign)
	dt := outerDecodeTable()

	p := vm.NewParser(a, root, dt, 0)
	chunks := [][]byte{{0x0A}, {0x02}, {0x08}, {0x07}}

	var progressions []vm.ProgressKind
	for _, c := range chunks {
		prog := p.Push(c)
		progressions = append(progressions, prog.Kind)
	}
	require.NoError(t, p.Finish())

	require.Len(t, progressions, 4)
	require.Equal(t, []vm.ProgressKind{vm.ProgressNeedMore, vm.ProgressNeedMore, vm.ProgressNeedMore, vm.ProgressDone}, progressions)

	child := *(*unsafe.Pointer)(unsafe.Add(root, 8))
	require.NotNil(t, child)
	require.EqualValues(t, 7, *(*int32)(unsafe.Add(child, 8)))
}

func TestScenario5UnknownFieldDropped(t *testing.T) {
	a := arena.New(nil, 0)
	root := a.Alloc(16, arena.MaxAlign)
	dt := messageMDecodeTable()

	p := vm.NewParser(a, root, dt, 0)
	prog := p.Push([]byte{0x08, 0x01, 0x10, 0x63})
	require.Equal(t, vm.ProgressDone, prog.Kind)
	require.NoError(t, p.Finish())

	require.True(t, record.HasBit(root, 0))
	require.EqualValues(t, 1, *(*int32)(unsafe.Add(root, 8)))
}

// messageMXsDecodeTable combines x (field 1) and packed xs (field 2) in one
// record, for the merge scenario: has-bits at 0, x at 8, xs at 16.
func messageMXsDecodeTable() *table.DecodeTable {
	dt := table.NewDecodeTable(2, 2)
	dt.SetKind(1, table.KindVarint32)
	dt.SetKind(2, table.KindPackedVarint32)
	dt.Fields[1] = table.PackFieldEntry(0, 8)
	dt.Fields[2] = table.PackFieldEntry(0, 16)
	return dt
}

func TestScenario6MergeLastWinsAndAppend(t *testing.T) {
	a := arena.New(nil, 0)
	root := a.Alloc(32, arena.MaxAlign)
	dt := messageMXsDecodeTable()

	*(*int32)(unsafe.Add(root, 8)) = 99
	record.SetHasBit(root, 0)
	xs := (*record.Repeated[int32])(unsafe.Add(root, 16))
	xs.Append(a, 9)

	p1 := vm.NewParser(a, root, dt, 0)
	require.Equal(t, vm.ProgressDone, p1.Push([]byte{0x08, 0x2A}).Kind)
	require.NoError(t, p1.Finish())
	require.EqualValues(t, 42, *(*int32)(unsafe.Add(root, 8)))

	p2 := vm.NewParser(a, root, dt, 0)
	require.Equal(t, vm.ProgressDone, p2.Push([]byte{0x12, 0x03, 0x01, 0x02, 0x03}).Kind)
	require.NoError(t, p2.Finish())
	require.Equal(t, []int32{9, 1, 2, 3}, xs.Slice())
}

func TestRoundTripEncodeDecode(t *testing.T) {
	a := arena.New(nil, 0)
	root := a.Alloc(16, arena.MaxAlign)
	*(*int32)(unsafe.Add(root, 8)) = 123
	record.SetHasBit(root, 0)

	buf := vm.Marshal(root, messageMEncodeTable())
	require.Equal(t, []byte{0x08, 0x7B}, buf)

	out := a.Alloc(16, arena.MaxAlign)
	p := vm.NewParser(a, out, messageMDecodeTable(), 0)
	require.Equal(t, vm.ProgressDone, p.Push(buf).Kind)
	require.NoError(t, p.Finish())
	require.EqualValues(t, 123, *(*int32)(unsafe.Add(out, 8)))
	require.True(t, record.HasBit(out, 0))
}

func TestChunkInvariance(t *testing.T) {
	full := []byte{0x0A, 0x02, 0x08, 0x07}

	a1 := arena.New(nil, 0)
	root1 := a1.Alloc(16, arena.MaxAlign)
	p1 := vm.NewParser(a1, root1, outerDecodeTable(), 0)
	require.Equal(t, vm.ProgressDone, p1.Push(full).Kind)
	require.NoError(t, p1.Finish())

	for split := 1; split < len(full); split++ {
		a2 := arena.New(nil, 0)
		root2 := a2.Alloc(16, arena.MaxAlign)
		p2 := vm.NewParser(a2, root2, outerDecodeTable(), 0)
		p2.Push(full[:split])
		p2.Push(full[split:])
		require.NoError(t, p2.Finish())

		child1 := *(*unsafe.Pointer)(unsafe.Add(root1, 8))
		child2 := *(*unsafe.Pointer)(unsafe.Add(root2, 8))
		require.Equal(t, *(*int32)(unsafe.Add(child1, 8)), *(*int32)(unsafe.Add(child2, 8)))
	}
}

func TestEncodeIsIdempotent(t *testing.T) {
	a := arena.New(nil, 0)
	root := a.Alloc(16, arena.MaxAlign)
	*(*int32)(unsafe.Add(root, 8)) = 7
	record.SetHasBit(root, 0)

	et := messageMEncodeTable()
	first := vm.Marshal(root, et)
	second := vm.Marshal(root, et)
	require.Equal(t, first, second)
}

func TestUnsetFieldsAreOmittedFromEncoding(t *testing.T) {
	a := arena.New(nil, 0)
	root := a.Alloc(16, arena.MaxAlign)

	buf := vm.Marshal(root, messageMEncodeTable())
	require.Empty(t, buf)
}

func TestNoPanicOnGarbageInput(t *testing.T) {
	dt := messageMXsDecodeTable()
	garbage := [][]byte{
		{},
		{0xFF},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
		{0x08},
		{0x0A, 0x7F},
		{0x12, 0x05, 0x01},
	}
	for _, g := range garbage {
		a := arena.New(nil, 0)
		root := a.Alloc(32, arena.MaxAlign)
		p := vm.NewParser(a, root, dt, 0)
		require.NotPanics(t, func() {
			prog := p.Push(g)
			if prog.Kind != vm.ProgressFailed {
				_ = p.Finish()
			}
		})
	}
}

func TestNegativeVarint32EncodesCanonically(t *testing.T) {
	a := arena.New(nil, 0)
	root := a.Alloc(16, arena.MaxAlign)
	*(*int32)(unsafe.Add(root, 8)) = -2
	record.SetHasBit(root, 0)

	buf := vm.Marshal(root, messageMEncodeTable())
	// protoc encodes a negative int32 by sign-extending to 64 bits first, so
	// -2 takes the full 10-byte varint, not the 5 bytes a 32-bit
	// zero-extension would produce.
	require.Equal(t, []byte{0x08, 0xFE, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}, buf)

	out := a.Alloc(16, arena.MaxAlign)
	p := vm.NewParser(a, out, messageMDecodeTable(), 0)
	require.Equal(t, vm.ProgressDone, p.Push(buf).Kind)
	require.NoError(t, p.Finish())
	require.EqualValues(t, -2, *(*int32)(unsafe.Add(out, 8)))
}

func TestSingularSubMessageMergesFieldWise(t *testing.T) {
	// Inner { int32 v = 1; int32 w = 2; }, Outer { Inner n = 1; } sent as two
	// separate occurrences of field 1, one setting v and the other w.
	inner := table.NewDecodeTable(2, 2)
	inner.SetKind(1, table.KindVarint32)
	inner.SetKind(2, table.KindVarint32)
	inner.Fields[1] = table.PackFieldEntry(0, 8)
	inner.Fields[2] = table.PackFieldEntry(1, 16)

	dt := table.NewDecodeTable(2, 1)
	dt.SetKind(1, table.KindMessage)
	dt.Fields[1] = table.AuxFieldEntry(0)
	dt.Aux = []table.DecodeAux{{Offset: 8, Child: inner}}

	a := arena.New(nil, 0)
	root := a.Alloc(16, arena.MaxAlign)
	p := vm.NewParser(a, root, dt, 0)

	// field 1 (Inner.v = 5), then a second, separate field-1 occurrence
	// (Inner.w = 6): both must land on the same child record.
	require.Equal(t, vm.ProgressDone, p.Push([]byte{0x0A, 0x02, 0x08, 0x05, 0x0A, 0x02, 0x10, 0x06}).Kind)
	require.NoError(t, p.Finish())

	child := *(*unsafe.Pointer)(unsafe.Add(root, 8))
	require.NotNil(t, child)
	require.EqualValues(t, 5, *(*int32)(unsafe.Add(child, 8)))
	require.EqualValues(t, 6, *(*int32)(unsafe.Add(child, 16)))
}

func TestMaxDepthExceeded(t *testing.T) {
	// A self-referential schema: message Rec { Rec child = 1; }.
	dt := table.NewDecodeTable(2, 1)
	dt.SetKind(1, table.KindMessage)
	dt.Fields[1] = table.AuxFieldEntry(0)
	dt.Aux = []table.DecodeAux{{Offset: 8, Child: dt}}

	a := arena.New(nil, 0)
	root := a.Alloc(16, arena.MaxAlign)
	p := vm.NewParser(a, root, dt, 3)

	var input []byte
	for i := 0; i < 5; i++ {
		input = append(input, 0x0A, 0x02)
	}
	prog := p.Push(input)
	require.Equal(t, vm.ProgressFailed, prog.Kind)
	require.Error(t, prog.Err)
}
