package core

import (
	"sort"

	"starling/internal/heap"
	"starling/internal/types"
)

// This file implements the object meta-protocol: the eleven internal methods
// with the ordinary-object algorithms, dispatched on the value tag. Array
// and typed-array overrides live in array_exotic.go and
// typedarray_exotic.go. Each fallible method has a Try variant that runs
// under a NoGc token and reports suspension (ok=false) when completing would
// require allocation or a call into user code.

// GetPrototypeOf returns the object's prototype (an object value or null).
func (a *Agent) GetPrototypeOf(o types.Value, n heap.NoGC) types.Value {
	return a.heap.ObjectShape(n, o).Prototype
}

// SetPrototypeOf performs cycle-free prototype assignment. It fails (returns
// false) when the object is non-extensible and the prototype would change.
func (a *Agent) SetPrototypeOf(o, proto types.Value, n heap.NoGC) bool {
	if !proto.IsObject() && !proto.IsNull() {
		panic("starling: internal error: SetPrototypeOf with non-object prototype")
	}
	shape := a.heap.ObjectShape(n, o)
	if a.sameValueRaw(n, shape.Prototype, proto) {
		return true
	}
	if !shape.Extensible {
		return false
	}
	// Walk the new chain to reject cycles.
	p := proto
	for p.IsObject() {
		if a.sameValueRaw(n, p, o) {
			return false
		}
		p = a.heap.ObjectShape(n, p).Prototype
	}
	shape.Prototype = proto
	return true
}

// IsExtensible reports the extensible flag.
func (a *Agent) IsExtensible(o types.Value, n heap.NoGC) bool {
	return a.heap.ObjectShape(n, o).Extensible
}

// PreventExtensions clears the extensible flag. Idempotent; never fails for
// the kinds this core implements.
func (a *Agent) PreventExtensions(o types.Value, n heap.NoGC) bool {
	a.heap.ObjectShape(n, o).Extensible = false
	return true
}

// GetOwnProperty returns the fully populated own descriptor for k, or
// found=false. Typed-array element reads may allocate a boxed number, which
// is why the slow path takes a Scope.
func (a *Agent) GetOwnProperty(o types.Value, k types.PropertyKey, gc *heap.Scope) (types.PropertyDescriptor, bool, *Thrown) {
	switch {
	case o.Tag() == types.TagArray:
		return a.arrayGetOwnProperty(o, k, gc)
	case o.IsTypedArray():
		return a.typedArrayGetOwnProperty(o, k, gc)
	}
	desc, found := ordinaryGetOwnProperty(a.heap.ObjectShape(gc.NoGC(), o), k)
	return desc, found, nil
}

// TryGetOwnProperty is the NoGc fast path; it suspends on typed-array
// element slots (their values may need boxing).
func (a *Agent) TryGetOwnProperty(o types.Value, k types.PropertyKey, n heap.NoGC) (types.PropertyDescriptor, bool, bool) {
	switch {
	case o.Tag() == types.TagArray:
		return a.tryArrayGetOwnProperty(o, k, n)
	case o.IsTypedArray():
		if k.IsInteger() {
			return types.PropertyDescriptor{}, false, false
		}
	}
	desc, found := ordinaryGetOwnProperty(a.heap.ObjectShape(n, o), k)
	return desc, found, true
}

func ordinaryGetOwnProperty(shape *heap.ObjectRecord, k types.PropertyKey) (types.PropertyDescriptor, bool) {
	i := shape.FindKey(k)
	if i < 0 {
		return types.PropertyDescriptor{}, false
	}
	return descriptorOf(shape.Props[i]), true
}

// DefineOwnProperty validates desc against any existing slot and applies the
// merge, enforcing the configurable/writable transition rules.
func (a *Agent) DefineOwnProperty(o types.Value, k types.PropertyKey, desc types.PropertyDescriptor, gc *heap.Scope) (bool, *Thrown) {
	switch {
	case o.Tag() == types.TagArray:
		return a.arrayDefineOwnProperty(o, k, desc, gc)
	case o.IsTypedArray():
		return a.typedArrayDefineOwnProperty(o, k, desc, gc)
	}
	n := gc.NoGC()
	return a.ordinaryDefineOwnProperty(n, o, k, desc), nil
}

func (a *Agent) ordinaryDefineOwnProperty(n heap.NoGC, o types.Value, k types.PropertyKey, desc types.PropertyDescriptor) bool {
	shape := a.heap.ObjectShape(n, o)
	var current *heap.Property
	if i := shape.FindKey(k); i >= 0 {
		current = &shape.Props[i]
	}
	return a.validateAndApplyPropertyDescriptor(n, shape, k, shape.Extensible, desc, current)
}

// HasProperty walks the own-then-prototype chain.
func (a *Agent) HasProperty(o types.Value, k types.PropertyKey, gc *heap.Scope) (bool, *Thrown) {
	n := gc.NoGC()
	has, ok := a.TryHasProperty(o, k, n)
	if ok {
		return has, nil
	}
	// The only suspension source is a typed-array element probe, which is
	// in fact allocation-free; reaching here is a dispatch bug.
	panic("starling: internal error: HasProperty suspended")
}

// TryHasProperty is the NoGc fast path; it never suspends for the kinds
// this core implements.
func (a *Agent) TryHasProperty(o types.Value, k types.PropertyKey, n heap.NoGC) (bool, bool) {
	cur := o
	for {
		switch {
		case cur.Tag() == types.TagArray:
			if a.arrayHasOwn(cur, k, n) {
				return true, true
			}
		case cur.IsTypedArray():
			if k.IsInteger() {
				return a.isValidIntegerIndex(n, cur, k.Integer()), true
			}
			if found := a.heap.ObjectShape(n, cur).FindKey(k) >= 0; found {
				return true, true
			}
		default:
			if a.heap.ObjectShape(n, cur).FindKey(k) >= 0 {
				return true, true
			}
		}
		proto := a.heap.ObjectShape(n, cur).Prototype
		if proto.IsNull() {
			return false, true
		}
		cur = proto
	}
}

// Get performs property lookup with the receiver bound for accessor
// invocation.
func (a *Agent) Get(o types.Value, k types.PropertyKey, receiver types.Value, gc *heap.Scope) (types.Value, *Thrown) {
	if v, ok := a.TryGet(o, k, receiver, gc.NoGC()); ok {
		return v, nil
	}
	return a.getSlow(o, k, receiver, gc)
}

// TryGet is the NoGc fast path: it resolves data properties along the
// prototype chain and suspends on accessors and typed-array element slots.
func (a *Agent) TryGet(o types.Value, k types.PropertyKey, receiver types.Value, n heap.NoGC) (types.Value, bool) {
	cur := o
	for {
		switch {
		case cur.Tag() == types.TagArray:
			if v, found := a.tryArrayElement(cur, k, n); found {
				return v, true
			}
			if i := a.heap.ObjectShape(n, cur).FindKey(k); i >= 0 {
				p := a.heap.ObjectShape(n, cur).Props[i]
				if p.IsAccessor() {
					return types.Undefined(), false
				}
				return p.Value, true
			}
		case cur.IsTypedArray():
			if k.IsInteger() {
				return types.Undefined(), false
			}
			if i := a.heap.ObjectShape(n, cur).FindKey(k); i >= 0 {
				p := a.heap.ObjectShape(n, cur).Props[i]
				if p.IsAccessor() {
					return types.Undefined(), false
				}
				return p.Value, true
			}
		default:
			if i := a.heap.ObjectShape(n, cur).FindKey(k); i >= 0 {
				p := a.heap.ObjectShape(n, cur).Props[i]
				if p.IsAccessor() {
					return types.Undefined(), false
				}
				return p.Value, true
			}
		}
		proto := a.heap.ObjectShape(n, cur).Prototype
		if proto.IsNull() {
			return types.Undefined(), true
		}
		cur = proto
	}
}

// getSlow handles the suspended cases: accessor invocation and typed-array
// element boxing.
func (a *Agent) getSlow(o types.Value, k types.PropertyKey, receiver types.Value, gc *heap.Scope) (types.Value, *Thrown) {
	cur := o
	for {
		if cur.IsTypedArray() && k.IsInteger() {
			v, _ := a.typedArrayElementGet(cur, k.Integer(), gc)
			return v, nil
		}
		desc, found, thrown := a.GetOwnProperty(cur, k, gc)
		if thrown != nil {
			return types.Undefined(), thrown
		}
		if found {
			if desc.IsAccessorDescriptor() {
				getter := types.Undefined()
				if desc.Get != nil {
					getter = *desc.Get
				}
				if getter.IsUndefined() {
					return types.Undefined(), nil
				}
				return a.Call(getter, receiver, nil, gc)
			}
			return *desc.Value, nil
		}
		proto := a.GetPrototypeOf(cur, gc.NoGC())
		if proto.IsNull() {
			return types.Undefined(), nil
		}
		cur = proto
	}
}

// Set performs property assignment with receiver semantics: accessor set is
// invoked on the receiver, and an absent property becomes a data property on
// the receiver.
func (a *Agent) Set(o types.Value, k types.PropertyKey, v, receiver types.Value, gc *heap.Scope) (bool, *Thrown) {
	if ok, done := a.TrySet(o, k, v, receiver, gc.NoGC()); done {
		return ok, nil
	}
	return a.setSlow(o, k, v, receiver, gc)
}

// TrySet is the NoGc fast path: plain data writes on the receiver itself.
// Anything involving accessors, typed arrays, or prototype-chain walks that
// end in receiver mutation suspends.
func (a *Agent) TrySet(o types.Value, k types.PropertyKey, v, receiver types.Value, n heap.NoGC) (bool, bool) {
	if o.IsTypedArray() || o.Tag() == types.TagArray {
		return false, false
	}
	if !a.sameValueRaw(n, o, receiver) {
		return false, false
	}
	shape := a.heap.ObjectShape(n, o)
	if i := shape.FindKey(k); i >= 0 {
		p := &shape.Props[i]
		if p.IsAccessor() {
			return false, false
		}
		if !p.Writable() {
			return false, true
		}
		p.Value = v
		return true, true
	}
	// Absent on the object: a prototype-chain accessor or read-only data
	// property could still intercept; only a null-prototype miss is safe to
	// complete here.
	if shape.Prototype.IsNull() {
		if !shape.Extensible {
			return false, true
		}
		shape.SetProperty(k, heap.Property{Value: v, Attrs: heap.AttrWritable | heap.AttrEnumerable | heap.AttrConfigurable})
		return true, true
	}
	return false, false
}

func (a *Agent) setSlow(o types.Value, k types.PropertyKey, v, receiver types.Value, gc *heap.Scope) (bool, *Thrown) {
	if o.IsTypedArray() && k.IsInteger() {
		if thrown := a.typedArrayElementSet(o, k.Integer(), v, gc); thrown != nil {
			return false, thrown
		}
		return true, nil
	}

	ownDesc, found, thrown := a.GetOwnProperty(o, k, gc)
	if thrown != nil {
		return false, thrown
	}
	if !found {
		parent := a.GetPrototypeOf(o, gc.NoGC())
		if !parent.IsNull() {
			return a.Set(parent, k, v, receiver, gc)
		}
		ownDesc = types.DataDescriptor(types.Undefined(), true, true, true)
	}

	if ownDesc.IsDataDescriptor() {
		if ownDesc.Writable != nil && !*ownDesc.Writable {
			return false, nil
		}
		if !receiver.IsObject() {
			return false, nil
		}
		existing, existingFound, thrown := a.GetOwnProperty(receiver, k, gc)
		if thrown != nil {
			return false, thrown
		}
		if existingFound {
			if existing.IsAccessorDescriptor() {
				return false, nil
			}
			if existing.Writable != nil && !*existing.Writable {
				return false, nil
			}
			return a.DefineOwnProperty(receiver, k, types.PropertyDescriptor{Value: &v}, gc)
		}
		return a.CreateDataProperty(receiver, k, v, gc)
	}

	setter := types.Undefined()
	if ownDesc.Set != nil {
		setter = *ownDesc.Set
	}
	if setter.IsUndefined() {
		return false, nil
	}
	if _, thrown := a.Call(setter, receiver, []types.Value{v}, gc); thrown != nil {
		return false, thrown
	}
	return true, nil
}

// Delete removes an own property; it fails only for non-configurable own
// properties. No implemented kind allocates here.
func (a *Agent) Delete(o types.Value, k types.PropertyKey, n heap.NoGC) bool {
	switch {
	case o.Tag() == types.TagArray:
		return a.arrayDelete(o, k, n)
	case o.IsTypedArray():
		if k.IsInteger() {
			return !a.isValidIntegerIndex(n, o, k.Integer())
		}
	}
	shape := a.heap.ObjectShape(n, o)
	i := shape.FindKey(k)
	if i < 0 {
		return true
	}
	if !shape.Props[i].Configurable() {
		return false
	}
	shape.RemoveKey(i)
	return true
}

// OwnPropertyKeys returns the own keys in specification order: integer
// indices ascending, then strings in insertion order, then symbols in
// insertion order. Internal symbols never appear.
func (a *Agent) OwnPropertyKeys(o types.Value, n heap.NoGC) []types.PropertyKey {
	switch {
	case o.Tag() == types.TagArray:
		return a.arrayOwnPropertyKeys(o, n)
	case o.IsTypedArray():
		return a.typedArrayOwnPropertyKeys(o, n)
	}
	return a.ordinaryOwnPropertyKeys(a.heap.ObjectShape(n, o), n)
}

func (a *Agent) ordinaryOwnPropertyKeys(shape *heap.ObjectRecord, n heap.NoGC) []types.PropertyKey {
	integers := make([]types.PropertyKey, 0, len(shape.Keys))
	strings := make([]types.PropertyKey, 0, len(shape.Keys))
	symbols := make([]types.PropertyKey, 0)
	for _, k := range shape.Keys {
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
