package core

import (
	"sort"

	"starling/internal/heap"
	"starling/internal/types"
)

// Array exotic object internal methods. The element store is a dense slice
// with hole sentinels; integer-keyed properties defined with non-default
// attributes (or accessors) are demoted into the spill shape, which keeps
// the dense store simple: every element slot is an ordinary
// writable/enumerable/configurable data property.

var lengthKey = types.StringKey("length")

const maxArrayIndex = int64(1)<<32 - 2

// denseExtendLimit bounds how far a define may grow the dense store past its
// current end before the slot is spilled instead.
const denseExtendLimit = 1024

func (a *Agent) arrayGetOwnProperty(o types.Value, k types.PropertyKey, gc *heap.Scope) (types.PropertyDescriptor, bool, *Thrown) {
	desc, found, _ := a.tryArrayGetOwnProperty(o, k, gc.NoGC())
	return desc, found, nil
}

func (a *Agent) tryArrayGetOwnProperty(o types.Value, k types.PropertyKey, n heap.NoGC) (types.PropertyDescriptor, bool, bool) {
	rec := a.heap.Array(n, o.Index())
	if k == lengthKey {
		return types.DataDescriptor(types.IntegerValue(int64(rec.Length)), rec.LengthWritable, false, false), true, true
	}
	if k.IsInteger() {
		idx := k.Integer()
		if idx < int64(len(rec.Elements)) && !rec.Elements[idx].IsHole() {
			return types.DataDescriptor(rec.Elements[idx], true, true, true), true, true
		}
	}
	desc, found := ordinaryGetOwnProperty(&rec.ObjectRecord, k)
	return desc, found, true
}

// tryArrayElement resolves an own element or the length property without
// touching the spill shape.
func (a *Agent) tryArrayElement(o types.Value, k types.PropertyKey, n heap.NoGC) (types.Value, bool) {
	rec := a.heap.Array(n, o.Index())
	if k == lengthKey {
		return types.IntegerValue(int64(rec.Length)), true
	}
	if k.IsInteger() {
		idx := k.Integer()
		if idx < int64(len(rec.Elements)) && !rec.Elements[idx].IsHole() {
			return rec.Elements[idx], true
		}
	}
	return types.Undefined(), false
}

func (a *Agent) arrayHasOwn(o types.Value, k types.PropertyKey, n heap.NoGC) bool {
	rec := a.heap.Array(n, o.Index())
	if k == lengthKey {
		return true
	}
	if k.IsInteger() {
		idx := k.Integer()
		if idx < int64(len(rec.Elements)) && !rec.Elements[idx].IsHole() {
			return true
		}
	}
	return rec.FindKey(k) >= 0
}

// plainDataDescriptor reports that desc can live in the dense element store:
// a data descriptor whose flags are absent or all true.
func plainDataDescriptor(desc types.PropertyDescriptor) bool {
	if desc.IsAccessorDescriptor() {
		return false
	}
	allTrue := func(b *bool) bool { return b == nil || *b }
	return allTrue(desc.Writable) && allTrue(desc.Enumerable) && allTrue(desc.Configurable)
}

func (a *Agent) arrayDefineOwnProperty(o types.Value, k types.PropertyKey, desc types.PropertyDescriptor, gc *heap.Scope) (bool, *Thrown) {
	n := gc.NoGC()
	if k == lengthKey {
		return a.arraySetLength(o, desc, gc)
	}
	if !k.IsInteger() || k.Integer() > maxArrayIndex {
		rec := a.heap.Array(n, o.Index())
		var current *heap.Property
		if i := rec.FindKey(k); i >= 0 {
			current = &rec.Props[i]
		}
		return a.validateAndApplyPropertyDescriptor(n, &rec.ObjectRecord, k, rec.Extensible, desc, current), nil
	}

	rec := a.heap.Array(n, o.Index())
	idx := k.Integer()
	inElements := idx < int64(len(rec.Elements)) && !rec.Elements[idx].IsHole()

	if inElements {
		if plainDataDescriptor(desc) {
			if desc.Value != nil {
				rec.Elements[idx] = *desc.Value
			}
			return true, nil
		}
		// Demote the element into the spill shape, then merge there.
		current := heap.Property{
			Value: rec.Elements[idx],
			Attrs: heap.AttrWritable | heap.AttrEnumerable | heap.AttrConfigurable,
		}
		if !a.validateAndApplyPropertyDescriptor(n, nil, k, rec.Extensible, desc, &current) {
			return false, nil
		}
		rec.Elements[idx] = types.Hole()
		rec.SetProperty(k, current)
		a.validateAndApplyPropertyDescriptor(n, &rec.ObjectRecord, k, rec.Extensible, desc, a.spillSlot(rec, k))
		return true, nil
	}

	if i := rec.FindKey(k); i >= 0 {
		return a.validateAndApplyPropertyDescriptor(n, &rec.ObjectRecord, k, rec.Extensible, desc, &rec.Props[i]), nil
	}

	// Absent: creation.
	if !rec.Extensible {
		return false, nil
	}
	if idx >= int64(rec.Length) && !rec.LengthWritable {
		return false, nil
	}

	if plainDataDescriptor(desc) && idx-int64(len(rec.Elements)) < denseExtendLimit {
		for int64(len(rec.Elements)) < idx {
			rec.Elements = append(rec.Elements, types.Hole())
		}
		v := types.Undefined()
		if desc.Value != nil {
			v = *desc.Value
		}
		if idx < int64(len(rec.Elements)) {
			rec.Elements[idx] = v
		} else {
			rec.Elements = append(rec.Elements, v)
		}
	} else {
		if !a.validateAndApplyPropertyDescriptor(n, &rec.ObjectRecord, k, rec.Extensible, desc, nil) {
			return false, nil
		}
	}
	if idx >= int64(rec.Length) {
		rec.Length = uint32(idx + 1)
	}
	return true, nil
}

func (a *Agent) spillSlot(rec *heap.ArrayRecord, k types.PropertyKey) *heap.Property {
	if i := rec.FindKey(k); i >= 0 {
		return &rec.Props[i]
	}
	return nil
}

// arraySetLength implements the length define: value writes truncate or
// grow, and writable:false freezes the length.
func (a *Agent) arraySetLength(o types.Value, desc types.PropertyDescriptor, gc *heap.Scope) (bool, *Thrown) {
	n := gc.NoGC()
	rec := a.heap.Array(n, o.Index())
	if desc.IsAccessorDescriptor() {
		return false, nil
	}
	if desc.Configurable != nil && *desc.Configurable {
		return false, nil
	}
	if desc.Enumerable != nil && *desc.Enumerable {
		return false, nil
	}
	if desc.Value != nil {
		if !desc.Value.IsNumber() {
			return false, a.Throw(gc, heap.TypeError, "array length must be a number")
		}
		f := a.heap.NumberFloat(n, *desc.Value)
		newLen := uint32(f)
		if float64(newLen) != f {
			return false, a.Throw(gc, heap.RangeError, "invalid array length")
		}
		if newLen != rec.Length && !rec.LengthWritable {
			return false, nil
		}
		if newLen < rec.Length {
			if int64(len(rec.Elements)) > int64(newLen) {
				rec.Elements = rec.Elements[:newLen]
			}
			// Drop spilled integer keys at or above the new length.
			for i := len(rec.Keys) - 1; i >= 0; i-- {
				if rec.Keys[i].IsInteger() && rec.Keys[i].Integer() >= int64(newLen) {
					rec.RemoveKey(i)
				}
			}
		}
		rec.Length = newLen
	}
	if desc.Writable != nil && !*desc.Writable {
		rec.LengthWritable = false
	}
	return true, nil
}

func (a *Agent) arrayDelete(o types.Value, k types.PropertyKey, n heap.NoGC) bool {
	rec := a.heap.Array(n, o.Index())
	if k == lengthKey {
		return false
	}
	if k.IsInteger() {
		idx := k.Integer()
		if idx < int64(len(rec.Elements)) && !rec.Elements[idx].IsHole() {
			rec.Elements[idx] = types.Hole()
			return true
		}
	}
	i := rec.FindKey(k)
	if i < 0 {
		return true
	}
	if !rec.Props[i].Configurable() {
		return false
	}
	rec.RemoveKey(i)
	return true
}

func (a *Agent) arrayOwnPropertyKeys(o types.Value, n heap.NoGC) []types.PropertyKey {
	rec := a.heap.Array(n, o.Index())
	integers := make([]types.PropertyKey, 0, len(rec.Elements))
	for i, e := range rec.Elements {
		if !e.IsHole() {
			integers = append(integers, types.IntegerKey(int64(i)))
		}
	}
	strings := []types.PropertyKey{lengthKey}
	symbols := make([]types.PropertyKey, 0)
	for _, k := range rec.Keys {
		switch {
		case k.IsInteger():
			integers = append(integers, k)
		case k.IsSymbol():
			if a.heap.Symbol(n, k.SymbolIndex()).Internal {
				continue
			}
			symbols = append(symbols, k)
		default:
			strings = append(strings, k)
		}
	}
	sort.SliceStable(integers, func(i, j int) bool {
		return integers[i].Integer() < integers[j].Integer()
	})
	out := make([]types.PropertyKey, 0, len(integers)+len(strings)+len(symbols))
	out = append(out, integers...)
	out = append(out, strings...)
	out = append(out, symbols...)
	return out
}
