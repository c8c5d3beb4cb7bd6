package core

import (
	"starling/internal/heap"
	"starling/internal/logging"
	"starling/internal/types"
)

// Call invokes a function value with a bound this and argument list. This is
// the call_function primitive the interpreter layer is assumed to provide:
// builtins and bound functions dispatch here; frontend-compiled functions
// are routed through the installed Frontend's own calling machinery.
func (a *Agent) Call(f, thisArg types.Value, args []types.Value, gc *heap.Scope) (types.Value, *Thrown) {
	if a.Interrupted() {
		return types.Undefined(), a.Throw(gc, heap.PlainError, "execution interrupted by host")
	}
	switch f.Tag() {
	case types.TagBuiltinFunction:
		behaviour, ok := a.heap.Builtin(gc.NoGC(), f.Index()).Behaviour.(NativeFunction)
		if !ok {
			panic("starling: internal error: builtin behaviour has wrong type")
		}
		a.pushContext(f)
		child := gc.Reborrow()
		completion := behaviour(a, thisArg, ArgumentsList(args), types.Undefined(), child)
		child.Release()
		a.popContext()
		if completion.IsAbrupt() {
			return types.Undefined(), &Thrown{Value: completion.Value()}
		}
		return completion.Value(), nil
	case types.TagBoundFunction:
		n := gc.NoGC()
		rec := a.heap.Bound(n, f.Index())
		combined := make([]types.Value, 0, len(rec.BoundArgs)+len(args))
		combined = append(combined, rec.BoundArgs...)
		combined = append(combined, args...)
		return a.Call(rec.Target, rec.BoundThis, combined, gc)
	}
	return types.Undefined(), a.Throw(gc, heap.TypeError, "%s is not a function", f.Tag())
}

// Construct invokes a constructor. newTarget of undefined defaults to f.
func (a *Agent) Construct(f types.Value, args []types.Value, newTarget types.Value, gc *heap.Scope) (types.Value, *Thrown) {
	if !a.IsConstructor(gc.NoGC(), f) {
		return types.Undefined(), a.Throw(gc, heap.TypeError, "%s is not a constructor", f.Tag())
	}
	if newTarget.IsUndefined() {
		newTarget = f
	}
	switch f.Tag() {
	case types.TagBuiltinFunction:
		behaviour := a.heap.Builtin(gc.NoGC(), f.Index()).Behaviour.(NativeFunction)
		a.pushContext(f)
		child := gc.Reborrow()
		completion := behaviour(a, types.Undefined(), ArgumentsList(args), newTarget, child)
		child.Release()
		a.popContext()
		if completion.IsAbrupt() {
			return types.Undefined(), &Thrown{Value: completion.Value()}
		}
		if !completion.Value().IsObject() {
			panic("starling: internal error: constructor returned a non-object")
		}
		return completion.Value(), nil
	case types.TagBoundFunction:
		n := gc.NoGC()
		rec := a.heap.Bound(n, f.Index())
		combined := make([]types.Value, 0, len(rec.BoundArgs)+len(args))
		combined = append(combined, rec.BoundArgs...)
		combined = append(combined, args...)
		return a.Construct(rec.Target, combined, newTarget, gc)
	}
	panic("starling: internal error: IsConstructor admitted " + f.Tag().String())
}

// GetV reads a property off any value, boxing primitives for the prototype
// walk with the original value as receiver.
func (a *Agent) GetV(v types.Value, k types.PropertyKey, gc *heap.Scope) (types.Value, *Thrown) {
	if v.IsObject() {
		return a.Get(v, k, v, gc)
	}
	vScoped := gc.Scope(v)
	o, thrown := a.ToObject(v, gc)
	if thrown != nil {
		return types.Undefined(), thrown
	}
	return a.Get(o, k, vScoped.Get(gc.NoGC()), gc)
}

// GetMethod reads k off v, returning undefined for absent/undefined/null and
// throwing when the property exists but is not callable.
func (a *Agent) GetMethod(v types.Value, k types.PropertyKey, gc *heap.Scope) (types.Value, *Thrown) {
	fn, thrown := a.GetV(v, k, gc)
	if thrown != nil {
		return types.Undefined(), thrown
	}
	if fn.IsUndefined() || fn.IsNull() {
		return types.Undefined(), nil
	}
	if !a.IsCallable(fn) {
		return types.Undefined(), a.Throw(gc, heap.TypeError, "property is not callable")
	}
	return fn, nil
}

// CreateDataProperty defines a writable/enumerable/configurable data
// property via the object's own DefineOwnProperty.
func (a *Agent) CreateDataProperty(o types.Value, k types.PropertyKey, v types.Value, gc *heap.Scope) (bool, *Thrown) {
	return a.DefineOwnProperty(o, k, types.DataDescriptor(v, true, true, true), gc)
}

// CreateDataPropertyOrThrow is CreateDataProperty with a TypeError on
// refusal.
func (a *Agent) CreateDataPropertyOrThrow(o types.Value, k types.PropertyKey, v types.Value, gc *heap.Scope) *Thrown {
	ok, thrown := a.CreateDataProperty(o, k, v, gc)
	if thrown != nil {
		return thrown
	}
	if !ok {
		return a.Throw(gc, heap.TypeError, "cannot create property on object")
	}
	return nil
}

// DefinePropertyOrThrow wraps DefineOwnProperty with a TypeError on refusal.
func (a *Agent) DefinePropertyOrThrow(o types.Value, k types.PropertyKey, desc types.PropertyDescriptor, gc *heap.Scope) *Thrown {
	ok, thrown := a.DefineOwnProperty(o, k, desc, gc)
	if thrown != nil {
		return thrown
	}
	if !ok {
		return a.Throw(gc, heap.TypeError, "cannot define property on object")
	}
	return nil
}

// HasOwnProperty is the own-key membership query.
func (a *Agent) HasOwnProperty(o types.Value, k types.PropertyKey, gc *heap.Scope) (bool, *Thrown) {
	_, found, thrown := a.GetOwnProperty(o, k, gc)
	return found, thrown
}

// LengthOfArrayLike reads and clamps the length property.
func (a *Agent) LengthOfArrayLike(o types.Value, gc *heap.Scope) (int64, *Thrown) {
	oScoped := gc.Scope(o)
	v, thrown := a.Get(oScoped.Get(gc.NoGC()), lengthKey, oScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		return 0, thrown
	}
	return a.ToLength(v, gc)
}

// OrdinaryObjectCreate allocates an ordinary object with the given
// prototype (an object value or null).
func (a *Agent) OrdinaryObjectCreate(prototype types.Value, gc *heap.Scope) types.Value {
	return a.heap.NewOrdinaryObject(gc, prototype)
}

// CreateArrayFromList allocates a dense array from a value list.
func (a *Agent) CreateArrayFromList(values []types.Value, gc *heap.Scope) types.Value {
	elements := make([]types.Value, len(values))
	copy(elements, values)
	return a.heap.NewArray(gc, a.realm.Intrinsic(IntrArrayPrototype), elements)
}

// EnumKind selects what EnumerableOwnProperties materializes.
type EnumKind uint8

const (
	EnumKey EnumKind = iota
	EnumValue
	EnumKeyValue
)

// EnumerableOwnProperties walks own keys in order, filters to enumerable
// string-keyed properties, and produces keys, values, or [key, value] pairs.
func (a *Agent) EnumerableOwnProperties(o types.Value, kind EnumKind, gc *heap.Scope) ([]types.Value, *Thrown) {
	child := gc.Reborrow()
	defer child.Release()
	oScoped := child.Scope(o)
	keys := a.OwnPropertyKeys(o, child.NoGC())

	results := make([]heap.Scoped, 0, len(keys))
	for _, k := range keys {
		if k.IsSymbol() {
			continue
		}
		desc, found, thrown := a.GetOwnProperty(oScoped.Get(child.NoGC()), k, child)
		if thrown != nil {
			return nil, thrown
		}
		if !found || desc.Enumerable == nil || !*desc.Enumerable {
			continue
		}
		switch kind {
		case EnumKey:
			results = append(results, child.Scope(a.heap.NewString(child, k.StringContent())))
		case EnumValue:
			v, thrown := a.Get(oScoped.Get(child.NoGC()), k, oScoped.Get(child.NoGC()), child)
			if thrown != nil {
				return nil, thrown
			}
			results = append(results, child.Scope(v))
		case EnumKeyValue:
			vScoped := func() (heap.Scoped, *Thrown) {
				v, thrown := a.Get(oScoped.Get(child.NoGC()), k, oScoped.Get(child.NoGC()), child)
				if thrown != nil {
					return heap.Scoped{}, thrown
				}
				return child.Scope(v), nil
			}
			vs, thrown := vScoped()
			if thrown != nil {
				return nil, thrown
			}
			keyStr := a.heap.NewString(child, k.StringContent())
			pair := a.CreateArrayFromList([]types.Value{keyStr, vs.Get(child.NoGC())}, child)
			results = append(results, child.Scope(pair))
		}
	}

	n := child.NoGC()
	out := make([]types.Value, len(results))
	for i, s := range results {
		out[i] = s.Get(n)
	}
	return out, nil
}

// IntegrityLevel selects sealed or frozen.
type IntegrityLevel uint8

const (
	Sealed IntegrityLevel = iota
	Frozen
)

// SetIntegrityLevel prevents extensions and tightens every own descriptor:
// non-configurable for sealed, additionally non-writable (data slots) for
// frozen. It returns false only when PreventExtensions fails.
func (a *Agent) SetIntegrityLevel(o types.Value, level IntegrityLevel, gc *heap.Scope) (bool, *Thrown) {
	child := gc.Reborrow()
	defer child.Release()
	oScoped := child.Scope(o)
	n := child.NoGC()
	if !a.PreventExtensions(o, n) {
		return false, nil
	}
	keys := a.OwnPropertyKeys(o, n)
	for _, k := range keys {
		if level == Sealed {
			if thrown := a.DefinePropertyOrThrow(oScoped.Get(child.NoGC()), k, types.PropertyDescriptor{Configurable: types.BoolPtr(false)}, child); thrown != nil {
				return false, thrown
			}
			continue
		}
		desc, found, thrown := a.GetOwnProperty(oScoped.Get(child.NoGC()), k, child)
		if thrown != nil {
			return false, thrown
		}
		if !found {
			continue
		}
		next := types.PropertyDescriptor{Configurable: types.BoolPtr(false)}
		if !desc.IsAccessorDescriptor() {
			next.Writable = types.BoolPtr(false)
		}
		if thrown := a.DefinePropertyOrThrow(oScoped.Get(child.NoGC()), k, next, child); thrown != nil {
			return false, thrown
		}
	}
	logging.Get(logging.CategoryObject).Debug("integrity level applied: %d keys", len(keys))
	return true, nil
}

// TestIntegrityLevel is the dual query.
func (a *Agent) TestIntegrityLevel(o types.Value, level IntegrityLevel, gc *heap.Scope) (bool, *Thrown) {
	child := gc.Reborrow()
	defer child.Release()
	oScoped := child.Scope(o)
	n := child.NoGC()
	if a.IsExtensible(o, n) {
		return false, nil
	}
	for _, k := range a.OwnPropertyKeys(o, n) {
		desc, found, thrown := a.GetOwnProperty(oScoped.Get(child.NoGC()), k, child)
		if thrown != nil {
			return false, thrown
		}
		if !found {
			continue
		}
		if desc.Configurable != nil && *desc.Configurable {
			return false, nil
		}
		if level == Frozen && desc.IsDataDescriptor() && desc.Writable != nil && *desc.Writable {
			return false, nil
		}
	}
	return true, nil
}
