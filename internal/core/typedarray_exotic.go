package core

import (
	"sort"

	"starling/internal/heap"
	"starling/internal/types"
)

// Integer-indexed (typed array) exotic internal methods: canonical numeric
// indices resolve against the view's witnessed bounds with element-kind
// coercion; everything else falls through to the ordinary algorithms on the
// embedded shape.

func (a *Agent) typedArrayGetOwnProperty(o types.Value, k types.PropertyKey, gc *heap.Scope) (types.PropertyDescriptor, bool, *Thrown) {
	if k.IsInteger() {
		v, ok := a.typedArrayElementGet(o, k.Integer(), gc)
		if !ok {
			return types.PropertyDescriptor{}, false, nil
		}
		return types.DataDescriptor(v, true, true, true), true, nil
	}
	desc, found := ordinaryGetOwnProperty(a.heap.ObjectShape(gc.NoGC(), o), k)
	return desc, found, nil
}

func (a *Agent) typedArrayDefineOwnProperty(o types.Value, k types.PropertyKey, desc types.PropertyDescriptor, gc *heap.Scope) (bool, *Thrown) {
	if k.IsInteger() {
		n := gc.NoGC()
		if !a.isValidIntegerIndex(n, o, k.Integer()) {
			return false, nil
		}
		if desc.IsAccessorDescriptor() {
			return false, nil
		}
		if desc.Configurable != nil && !*desc.Configurable {
			return false, nil
		}
		if desc.Enumerable != nil && !*desc.Enumerable {
			return false, nil
		}
		if desc.Writable != nil && !*desc.Writable {
			return false, nil
		}
		if desc.Value != nil {
			if thrown := a.typedArrayElementSet(o, k.Integer(), *desc.Value, gc); thrown != nil {
				return false, thrown
			}
		}
		return true, nil
	}
	n := gc.NoGC()
	return a.ordinaryDefineOwnProperty(n, o, k, desc), nil
}

func (a *Agent) typedArrayOwnPropertyKeys(o types.Value, n heap.NoGC) []types.PropertyKey {
	w := a.MakeTypedArrayWitness(n, o, heap.Unordered)
	length := a.TypedArrayLength(n, w)
	shape := a.heap.ObjectShape(n, o)

	out := make([]types.PropertyKey, 0, int(length)+len(shape.Keys))
	for i := int64(0); i < length; i++ {
		out = append(out, types.IntegerKey(i))
	}
	strings := make([]types.PropertyKey, 0, len(shape.Keys))
	symbols := make([]types.PropertyKey, 0)
	extraInts := make([]types.PropertyKey, 0)
	for _, k := range shape.Keys {
		switch {
		case k.IsInteger():
			extraInts = append(extraInts, k)
		case k.IsSymbol():
			if a.heap.Symbol(n, k.SymbolIndex()).Internal {
				continue
			}
			symbols = append(symbols, k)
		default:
			strings = append(strings, k)
		}
	}
	sort.SliceStable(extraInts, func(i, j int) bool {
		return extraInts[i].Integer() < extraInts[j].Integer()
	})
	out = append(out, extraInts...)
	out = append(out, strings...)
	out = append(out, symbols...)
	return out
}
