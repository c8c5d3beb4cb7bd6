package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// descriptorOf converts a stored property slot into a fully populated
// specification descriptor.
func descriptorOf(p heap.Property) types.PropertyDescriptor {
	if p.IsAccessor() {
		return types.AccessorDescriptor(p.Get, p.Set, p.Enumerable(), p.Configurable())
	}
	return types.DataDescriptor(p.Value, p.Writable(), p.Enumerable(), p.Configurable())
}

// propertyOf converts a fully populated descriptor into a storage slot.
func propertyOf(d types.PropertyDescriptor) heap.Property {
	var p heap.Property
	if d.IsAccessorDescriptor() {
		p.Attrs |= heap.AttrAccessor
		p.Get = types.Undefined()
		p.Set = types.Undefined()
		if d.Get != nil {
			p.Get = *d.Get
		}
		if d.Set != nil {
			p.Set = *d.Set
		}
	} else {
		p.Value = types.Undefined()
		if d.Value != nil {
			p.Value = *d.Value
		}
		if d.Writable != nil && *d.Writable {
			p.Attrs |= heap.AttrWritable
		}
	}
	if d.Enumerable != nil && *d.Enumerable {
		p.Attrs |= heap.AttrEnumerable
	}
	if d.Configurable != nil && *d.Configurable {
		p.Attrs |= heap.AttrConfigurable
	}
	return p
}

// validateAndApplyPropertyDescriptor implements the specification's
// descriptor merge: it validates desc against the current slot (if any)
// under the object's extensibility, and applies the merged result to shape
// when validation succeeds. A nil shape runs validation only.
func (a *Agent) validateAndApplyPropertyDescriptor(n heap.NoGC, shape *heap.ObjectRecord, k types.PropertyKey, extensible bool, desc types.PropertyDescriptor, current *heap.Property) bool {
	if current == nil {
		// No current property: creation requires extensibility.
		if !extensible {
			return false
		}
		if shape == nil {
			return true
		}
		complete := desc.CompletePropertyDescriptor()
		shape.SetProperty(k, propertyOf(complete))
		return true
	}

	if desc.Value == nil && desc.Get == nil && desc.Set == nil &&
		desc.Writable == nil && desc.Enumerable == nil && desc.Configurable == nil {
		return true
	}

	cur := *current
	if !cur.Configurable() {
		if desc.Configurable != nil && *desc.Configurable {
			return false
		}
		if desc.Enumerable != nil && *desc.Enumerable != cur.Enumerable() {
			return false
		}
		// Kind changes are barred on non-configurable slots.
		if desc.IsAccessorDescriptor() && !cur.IsAccessor() {
			return false
		}
		if desc.IsDataDescriptor() && cur.IsAccessor() {
			return false
		}
		if cur.IsAccessor() {
			if desc.Get != nil && !a.sameValueRaw(n, *desc.Get, cur.Get) {
				return false
			}
			if desc.Set != nil && !a.sameValueRaw(n, *desc.Set, cur.Set) {
				return false
			}
		} else if !cur.Writable() {
			if desc.Writable != nil && *desc.Writable {
				return false
			}
			if desc.Value != nil && !a.sameValueRaw(n, *desc.Value, cur.Value) {
				return false
			}
		}
	}

	if shape == nil {
		return true
	}

	// Apply: merge desc into the current slot.
	next := cur
	if desc.IsDataDescriptor() && cur.IsAccessor() {
		// Accessor -> data conversion resets the slot.
		next = heap.Property{Value: types.Undefined()}
		next.Attrs = cur.Attrs &^ (heap.AttrAccessor | heap.AttrWritable)
	} else if desc.IsAccessorDescriptor() && !cur.IsAccessor() {
		next = heap.Property{Get: types.Undefined(), Set: types.Undefined(), Attrs: heap.AttrAccessor}
		next.Attrs |= cur.Attrs & (heap.AttrEnumerable | heap.AttrConfigurable)
	}
	if desc.Value != nil {
		next.Value = *desc.Value
	}
	if desc.Get != nil {
		next.Get = *desc.Get
	}
	if desc.Set != nil {
		next.Set = *desc.Set
	}
	if desc.Writable != nil {
		next.Attrs = setAttr(next.Attrs, heap.AttrWritable, *desc.Writable)
	}
	if desc.Enumerable != nil {
		next.Attrs = setAttr(next.Attrs, heap.AttrEnumerable, *desc.Enumerable)
	}
	if desc.Configurable != nil {
		next.Attrs = setAttr(next.Attrs, heap.AttrConfigurable, *desc.Configurable)
	}
	shape.SetProperty(k, next)
	return true
}

func setAttr(attrs heap.PropertyAttrs, bit heap.PropertyAttrs, on bool) heap.PropertyAttrs {
	if on {
		return attrs | bit
	}
	return attrs &^ bit
}

// FromPropertyDescriptor materializes a descriptor object from a descriptor
// record (the round-trip counterpart of ToPropertyDescriptor).
func (a *Agent) FromPropertyDescriptor(desc types.PropertyDescriptor, found bool, gc *heap.Scope) types.Value {
	if !found {
		return types.Undefined()
	}
	// Root the descriptor's value fields across the result allocation.
	reroot := func(p **types.Value) heap.Scoped {
		if *p == nil {
			return heap.Scoped{}
		}
		return gc.Scope(**p)
	}
	valueS, getS, setS := reroot(&desc.Value), reroot(&desc.Get), reroot(&desc.Set)
	obj := gc.Scope(a.heap.NewOrdinaryObject(gc, a.realm.Intrinsic(IntrObjectPrototype)))
	n0 := gc.NoGC()
	if desc.Value != nil {
		desc.Value = types.ValuePtr(valueS.Get(n0))
	}
	if desc.Get != nil {
		desc.Get = types.ValuePtr(getS.Get(n0))
	}
	if desc.Set != nil {
		desc.Set = types.ValuePtr(setS.Get(n0))
	}
	put := func(name string, v types.Value) {
		shape := a.heap.ObjectShape(gc.NoGC(), obj.Get(gc.NoGC()))
		shape.SetProperty(types.StringKey(name), heap.Property{
			Value: v,
			Attrs: heap.AttrWritable | heap.AttrEnumerable | heap.AttrConfigurable,
		})
	}
	if desc.Value != nil {
		put("value", *desc.Value)
	}
	if desc.Writable != nil {
		put("writable", types.BooleanValue(*desc.Writable))
	}
	if desc.Get != nil {
		put("get", *desc.Get)
	}
	if desc.Set != nil {
		put("set", *desc.Set)
	}
	if desc.Enumerable != nil {
		put("enumerable", types.BooleanValue(*desc.Enumerable))
	}
	if desc.Configurable != nil {
		put("configurable", types.BooleanValue(*desc.Configurable))
	}
	return obj.Get(gc.NoGC())
}

// ToPropertyDescriptor reads a descriptor object into a descriptor record,
// validating the accessor/data exclusivity rule.
func (a *Agent) ToPropertyDescriptor(obj types.Value, gc *heap.Scope) (types.PropertyDescriptor, *Thrown) {
	var desc types.PropertyDescriptor
	if !obj.IsObject() {
		return desc, a.Throw(gc, heap.TypeError, "property descriptor must be an object")
	}
	o := gc.Scope(obj)

	readFlag := func(name string, dst **bool) *Thrown {
		k := types.StringKey(name)
		has, thrown := a.HasProperty(o.Get(gc.NoGC()), k, gc)
		if thrown != nil {
			return thrown
		}
		if !has {
			return nil
		}
		v, thrown := a.Get(o.Get(gc.NoGC()), k, o.Get(gc.NoGC()), gc)
		if thrown != nil {
			return thrown
		}
		*dst = types.BoolPtr(a.ToBoolean(v))
		return nil
	}
	// Value-carrying fields are kept in scoped handles while the remaining
	// reads run user code; the descriptor is materialized at the end under
	// a fresh token.
	readValue := func(name string, dst **heap.Scoped, mustBeCallable bool) *Thrown {
		k := types.StringKey(name)
		has, thrown := a.HasProperty(o.Get(gc.NoGC()), k, gc)
		if thrown != nil {
			return thrown
		}
		if !has {
			return nil
		}
		v, thrown := a.Get(o.Get(gc.NoGC()), k, o.Get(gc.NoGC()), gc)
		if thrown != nil {
			return thrown
		}
		if mustBeCallable && !v.IsUndefined() && !a.IsCallable(v) {
			return a.Throw(gc, heap.TypeError, "%s must be callable or undefined", name)
		}
		s := gc.Scope(v)
		*dst = &s
		return nil
	}

	var valueS, getS, setS *heap.Scoped
	if thrown := readFlag("enumerable", &desc.Enumerable); thrown != nil {
		return desc, thrown
	}
	if thrown := readFlag("configurable", &desc.Configurable); thrown != nil {
		return desc, thrown
	}
	if thrown := readValue("value", &valueS, false); thrown != nil {
		return desc, thrown
	}
	if thrown := readFlag("writable", &desc.Writable); thrown != nil {
		return desc, thrown
	}
	if thrown := readValue("get", &getS, true); thrown != nil {
		return desc, thrown
	}
	if thrown := readValue("set", &setS, true); thrown != nil {
		return desc, thrown
	}

	n := gc.NoGC()
	if valueS != nil {
		desc.Value = types.ValuePtr(valueS.Get(n))
	}
	if getS != nil {
		desc.Get = types.ValuePtr(getS.Get(n))
	}
	if setS != nil {
		desc.Set = types.ValuePtr(setS.Get(n))
	}

	if (desc.Get != nil || desc.Set != nil) && (desc.Value != nil || desc.Writable != nil) {
		return desc, a.Throw(gc, heap.TypeError, "property descriptor cannot be both a data and an accessor descriptor")
	}
	return desc, nil
}
