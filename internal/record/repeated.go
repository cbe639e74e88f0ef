package record

import (
	"unsafe"

	"github.com/tablepb/tablepb/internal/arena"
)

// Repeated is the growable, arena-owned run described in spec §3.1/§4.3: a
// (pointer, length, capacity) triple. Growth is doubling, and a regrown
// run's old backing is simply abandoned into the arena rather than
// returned to any free list (spec §9, "repeated growth leaking into the
// arena") — reclaiming it is the arena's job on Free, not this container's.
//
// T is instantiated with scalar element types for plain repeated scalar
// fields, and with unsafe.Pointer for repeated sub-message fields (each
// element is itself an arena pointer, spec §3.1).
type Repeated[T any] struct {
	ptr unsafe.Pointer
	len int32
	cap int32
}

// Len returns the number of elements currently appended.
func (r *Repeated[T]) Len() int {
	return int(r.len)
}

// At returns the element at index i. It panics if i is out of range.
func (r *Repeated[T]) At(i int) T {
	if i < 0 || i >= int(r.len) {
		panic("tablepb: repeated field index out of range")
	}
	return *r.elem(i)
}

// Set overwrites the element at index i.
func (r *Repeated[T]) Set(i int, v T) {
	if i < 0 || i >= int(r.len) {
		panic("tablepb: repeated field index out of range")
	}
	*r.elem(i) = v
}

// Slice returns a []T view over the current backing run. The returned
// slice is only valid as long as nothing appends to r (which may relocate
// the backing run into fresh arena memory).
func (r *Repeated[T]) Slice() []T {
	if r.len == 0 {
		return nil
	}
	return unsafe.Slice((*T)(r.ptr), int(r.len))
}

// Append grows the run by one element, backed by a, per the doubling
// policy of spec §4.3.
func (r *Repeated[T]) Append(a *arena.Arena, v T) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))

	if r.len == r.cap {
		newCap := r.cap * 2
		if newCap < 4 {
			newCap = 4
		}
		newPtr := a.AllocN(elemSize, arena.MaxAlign, int(newCap))
		if r.len > 0 {
			dst := unsafe.Slice((*T)(newPtr), int(r.len))
			copy(dst, r.Slice())
		}
		r.ptr = newPtr
		r.cap = newCap
	}

	*r.elem(int(r.len)) = v
	r.len++
}

// AppendAll appends every element of vs, in order — the behavior packed
// repeated fields need when unpacking a length-delimited payload in one
// shot (spec §4.4, "packed repeated").
func (r *Repeated[T]) AppendAll(a *arena.Arena, vs []T) {
	for _, v := range vs {
		r.Append(a, v)
	}
}

func (r *Repeated[T]) elem(i int) *T {
	var zero T
	elemSize := unsafe.Sizeof(zero)
	return (*T)(unsafe.Add(r.ptr, uintptr(i)*elemSize))
}
