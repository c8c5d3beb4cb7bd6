package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// TypedArrayWitness is a snapshot of a view's buffer bounds taken at a
// specific memory order. Because a buffer may be detached, resized, or (for
// shared growable buffers) grown concurrently, every observation of a typed
// array's length is a pure function of a witness sampled at a known point:
// sequentially consistent for user-observable operations, unordered for
// internal bookkeeping.
type TypedArrayWitness struct {
	Object           types.Value
	CachedByteLength int64
	Detached         bool
}

// MakeTypedArrayWitness samples the view's buffer at the requested order.
func (a *Agent) MakeTypedArrayWitness(n heap.NoGC, ta types.Value, order heap.Ordering) TypedArrayWitness {
	rec := a.heap.TypedArray(n, ta.Index())
	buf := a.heap.Buffer(n, rec.Buffer.Index())
	if buf.Detached {
		return TypedArrayWitness{Object: ta, Detached: true}
	}
	return TypedArrayWitness{Object: ta, CachedByteLength: buf.ByteLength(order)}
}

// IsTypedArrayOutOfBounds reports whether the view's byte range falls
// outside the witnessed buffer length.
func (a *Agent) IsTypedArrayOutOfBounds(n heap.NoGC, w TypedArrayWitness) bool {
	if w.Detached {
		return true
	}
	rec := a.heap.TypedArray(n, w.Object.Index())
	if rec.IsLengthTracking() {
		return rec.ByteOffset > w.CachedByteLength
	}
	return rec.ByteOffset > w.CachedByteLength ||
		rec.ByteOffset+rec.ByteLength > w.CachedByteLength
}

// TypedArrayLength returns the element count observable under the witness.
// Out-of-bounds views observe as empty.
func (a *Agent) TypedArrayLength(n heap.NoGC, w TypedArrayWitness) int64 {
	if a.IsTypedArrayOutOfBounds(n, w) {
		return 0
	}
	rec := a.heap.TypedArray(n, w.Object.Index())
	if rec.IsLengthTracking() {
		return (w.CachedByteLength - rec.ByteOffset) / int64(rec.Kind.Size())
	}
	return rec.ArrayLength
}

// TypedArrayByteLength returns the byte span observable under the witness.
func (a *Agent) TypedArrayByteLength(n heap.NoGC, w TypedArrayWitness) int64 {
	if a.IsTypedArrayOutOfBounds(n, w) {
		return 0
	}
	rec := a.heap.TypedArray(n, w.Object.Index())
	if rec.IsLengthTracking() {
		return a.TypedArrayLength(n, w) * int64(rec.Kind.Size())
	}
	return rec.ByteLength
}

// ValidateTypedArray requires v to be an in-bounds typed array and returns
// its witness sampled at the given order.
func (a *Agent) ValidateTypedArray(v types.Value, order heap.Ordering, gc *heap.Scope) (TypedArrayWitness, *Thrown) {
	if !v.IsTypedArray() {
		return TypedArrayWitness{}, a.Throw(gc, heap.TypeError, "this is not a typed array")
	}
	n := gc.NoGC()
	w := a.MakeTypedArrayWitness(n, v, order)
	if a.IsTypedArrayOutOfBounds(n, w) {
		return TypedArrayWitness{}, a.Throw(gc, heap.TypeError, "typed array is out of bounds")
	}
	return w, nil
}

// isValidIntegerIndex implements IsValidIntegerIndex: an unordered witness
// bounds check for internal element probes.
func (a *Agent) isValidIntegerIndex(n heap.NoGC, ta types.Value, index int64) bool {
	w := a.MakeTypedArrayWitness(n, ta, heap.Unordered)
	if a.IsTypedArrayOutOfBounds(n, w) {
		return false
	}
	return index >= 0 && index < a.TypedArrayLength(n, w)
}
