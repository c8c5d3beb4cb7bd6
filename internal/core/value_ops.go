package core

import (
	"math"

	"starling/internal/heap"
	"starling/internal/types"
)

// Specification equality operators. Value identity (== on the struct) is
// representation identity; these resolve heap content where the
// specification demands it.

// sameValueRaw compares under SameValue semantics without a scope; it is
// allocation-free.
func (a *Agent) sameValueRaw(n heap.NoGC, x, y types.Value) bool {
	if x == y {
		// Identical representation: same tag and payload. NaN sentinel
		// equals itself, which is what SameValue wants.
		return true
	}
	xt, yt := x.Tag(), y.Tag()
	if x.IsNumber() && y.IsNumber() {
		xf := a.heap.NumberFloat(n, x)
		yf := a.heap.NumberFloat(n, y)
		if math.IsNaN(xf) && math.IsNaN(yf) {
			return true
		}
		if xf == 0 && yf == 0 {
			return math.Signbit(xf) == math.Signbit(yf)
		}
		return xf == yf
	}
	if x.IsString() && y.IsString() {
		return a.heap.StringContent(n, x) == a.heap.StringContent(n, y)
	}
	if xt == types.TagBigInt && yt == types.TagBigInt {
		return a.heap.BigInt(n, x.Index()).Data.Cmp(a.heap.BigInt(n, y.Index()).Data) == 0
	}
	return false
}

// SameValue is the specification's SameValue: NaN equals NaN, +0 and -0
// differ.
func (a *Agent) SameValue(n heap.NoGC, x, y types.Value) bool {
	return a.sameValueRaw(n, x, y)
}

// SameValueZero is SameValue except +0 and -0 are equal.
func (a *Agent) SameValueZero(n heap.NoGC, x, y types.Value) bool {
	if x.IsNumber() && y.IsNumber() {
		xf := a.heap.NumberFloat(n, x)
		yf := a.heap.NumberFloat(n, y)
		if math.IsNaN(xf) && math.IsNaN(yf) {
			return true
		}
		return xf == yf
	}
	return a.sameValueRaw(n, x, y)
}

// IsStrictlyEqual is the language's === on already-evaluated operands: like
// SameValueZero for numbers except NaN is unequal to everything.
func (a *Agent) IsStrictlyEqual(n heap.NoGC, x, y types.Value) bool {
	if x.IsNumber() && y.IsNumber() {
		return a.heap.NumberFloat(n, x) == a.heap.NumberFloat(n, y)
	}
	if x.IsNumber() != y.IsNumber() {
		return false
	}
	return a.sameValueRaw(n, x, y)
}

// IsCallable reports whether v is a function object.
func (a *Agent) IsCallable(v types.Value) bool {
	switch v.Tag() {
	case types.TagBuiltinFunction, types.TagBoundFunction:
		return true
	}
	return false
}

// IsConstructor reports whether v can be used with Construct.
func (a *Agent) IsConstructor(n heap.NoGC, v types.Value) bool {
	switch v.Tag() {
	case types.TagBuiltinFunction:
		return a.heap.Builtin(n, v.Index()).IsConstructor
	case types.TagBoundFunction:
		return a.IsConstructor(n, a.heap.Bound(n, v.Index()).Target)
	}
	return false
}
