package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// The Object constructor surface. Each behaviour follows its ECMA-262
// algorithm; fast paths bail to the generic algorithm the moment a
// precondition fails.

func objectConstructorBehaviour(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	value := args.Get(0)
	if value.IsUndefined() || value.IsNull() {
		return types.NormalCompletion(a.OrdinaryObjectCreate(a.realm.Intrinsic(IntrObjectPrototype), gc))
	}
	obj, thrown := a.ToObject(value, gc)
	return completionOf(obj, thrown)
}

// Object.assign
func objectAssign(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	to, thrown := a.ToObject(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	toScoped := gc.Scope(to)
	for i := 1; i < len(args); i++ {
		source := args.Get(i)
		if source.IsUndefined() || source.IsNull() {
			continue
		}
		from, thrown := a.ToObject(source, gc)
		if thrown != nil {
			return thrown.Completion()
		}
		fromScoped := gc.Scope(from)
		keys := a.OwnPropertyKeys(from, gc.NoGC())
		for _, k := range keys {
			k := a.rerootKey(k, gc)
			desc, found, thrown := a.GetOwnProperty(fromScoped.Get(gc.NoGC()), k.Key(gc.NoGC()), gc)
			if thrown != nil {
				return thrown.Completion()
			}
			if !found || desc.Enumerable == nil || !*desc.Enumerable {
				continue
			}
			propValue, thrown := a.Get(fromScoped.Get(gc.NoGC()), k.Key(gc.NoGC()), fromScoped.Get(gc.NoGC()), gc)
			if thrown != nil {
				return thrown.Completion()
			}
			ok, thrown := a.Set(toScoped.Get(gc.NoGC()), k.Key(gc.NoGC()), propValue, toScoped.Get(gc.NoGC()), gc)
			if thrown != nil {
				return thrown.Completion()
			}
			if !ok {
				return a.Throw(gc, heap.TypeError, "cannot assign property").Completion()
			}
		}
	}
	return types.NormalCompletion(toScoped.Get(gc.NoGC()))
}

// rootedKey keeps a symbol key valid across user-code safepoints; string and
// integer keys are content-based and GC-immune.
type rootedKey struct {
	key types.PropertyKey
	sym heap.Scoped
}

func (a *Agent) rerootKey(k types.PropertyKey, gc *heap.Scope) rootedKey {
	if k.IsSymbol() {
		return rootedKey{key: k, sym: gc.Scope(types.HeapValue(types.TagSymbol, k.SymbolIndex()))}
	}
	return rootedKey{key: k}
}

func (r rootedKey) Key(n heap.NoGC) types.PropertyKey {
	if r.key.IsSymbol() {
		return types.SymbolKey(r.sym.Get(n).Index())
	}
	return r.key
}

// Object.create
func objectCreate(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	proto := args.Get(0)
	if !proto.IsObject() && !proto.IsNull() {
		return a.Throw(gc, heap.TypeError, "Object prototype may only be an object or null").Completion()
	}
	props := args.Get(1)
	propsScoped := gc.Scope(props)
	obj := a.OrdinaryObjectCreate(proto, gc)
	if propsScoped.Get(gc.NoGC()).IsUndefined() {
		return types.NormalCompletion(obj)
	}
	objScoped := gc.Scope(obj)
	thrown := a.objectDefineProperties(objScoped.Get(gc.NoGC()), propsScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	return types.NormalCompletion(objScoped.Get(gc.NoGC()))
}

// Object.defineProperties
func objectDefinePropertiesBehaviour(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	o := args.Get(0)
	if !o.IsObject() {
		return a.Throw(gc, heap.TypeError, "Object.defineProperties called on non-object").Completion()
	}
	oScoped := gc.Scope(o)
	if thrown := a.objectDefineProperties(o, args.Get(1), gc); thrown != nil {
		return thrown.Completion()
	}
	return types.NormalCompletion(oScoped.Get(gc.NoGC()))
}

// objectDefineProperties reads every enumerable own descriptor object off
// props first (user getters may run), then applies them in order.
func (a *Agent) objectDefineProperties(o, properties types.Value, gc *heap.Scope) *Thrown {
	child := gc.Reborrow()
	defer child.Release()
	oScoped := child.Scope(o)
	props, thrown := a.ToObject(properties, child)
	if thrown != nil {
		return thrown
	}
	propsScoped := child.Scope(props)
	keys := a.OwnPropertyKeys(props, child.NoGC())

	type pending struct {
		key  rootedKey
		desc types.PropertyDescriptor
		val  heap.Scoped
		get  heap.Scoped
		set  heap.Scoped
	}
	var descriptors []pending
	for _, k := range keys {
		rk := a.rerootKey(k, child)
		desc, found, thrown := a.GetOwnProperty(propsScoped.Get(child.NoGC()), rk.Key(child.NoGC()), child)
		if thrown != nil {
			return thrown
		}
		if !found || desc.Enumerable == nil || !*desc.Enumerable {
			continue
		}
		descObj, thrown := a.Get(propsScoped.Get(child.NoGC()), rk.Key(child.NoGC()), propsScoped.Get(child.NoGC()), child)
		if thrown != nil {
			return thrown
		}
		d, thrown := a.ToPropertyDescriptor(descObj, child)
		if thrown != nil {
			return thrown
		}
		p := pending{key: rk, desc: d}
		if d.Value != nil {
			p.val = child.Scope(*d.Value)
		}
		if d.Get != nil {
			p.get = child.Scope(*d.Get)
		}
		if d.Set != nil {
			p.set = child.Scope(*d.Set)
		}
		descriptors = append(descriptors, p)
	}

	for _, p := range descriptors {
		n := child.NoGC()
		d := p.desc
		if d.Value != nil {
			d.Value = types.ValuePtr(p.val.Get(n))
		}
		if d.Get != nil {
			d.Get = types.ValuePtr(p.get.Get(n))
		}
		if d.Set != nil {
			d.Set = types.ValuePtr(p.set.Get(n))
		}
		if thrown := a.DefinePropertyOrThrow(oScoped.Get(n), p.key.Key(n), d, child); thrown != nil {
			return thrown
		}
	}
	return nil
}

// Object.defineProperty
func objectDefineProperty(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	o := args.Get(0)
	if !o.IsObject() {
		return a.Throw(gc, heap.TypeError, "Object.defineProperty called on non-object").Completion()
	}
	oScoped := gc.Scope(o)
	attrScoped := gc.Scope(args.Get(2))
	key, thrown := a.ToPropertyKey(args.Get(1), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	rk := a.rerootKey(key, gc)
	desc, thrown := a.ToPropertyDescriptor(attrScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	if thrown := a.DefinePropertyOrThrow(oScoped.Get(gc.NoGC()), rk.Key(gc.NoGC()), desc, gc); thrown != nil {
		return thrown.Completion()
	}
	return types.NormalCompletion(oScoped.Get(gc.NoGC()))
}

// Object.entries / Object.keys / Object.values
func objectEnumerableBehaviour(kind EnumKind) NativeFunction {
	return func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		obj, thrown := a.ToObject(args.Get(0), gc)
		if thrown != nil {
			return thrown.Completion()
		}
		list, thrown := a.EnumerableOwnProperties(obj, kind, gc)
		if thrown != nil {
			return thrown.Completion()
		}
		return types.NormalCompletion(a.CreateArrayFromList(list, gc))
	}
}

// Object.freeze / Object.seal
func objectIntegrityBehaviour(level IntegrityLevel) NativeFunction {
	return func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		o := args.Get(0)
		if !o.IsObject() {
			return types.NormalCompletion(o)
		}
		oScoped := gc.Scope(o)
		ok, thrown := a.SetIntegrityLevel(o, level, gc)
		if thrown != nil {
			return thrown.Completion()
		}
		if !ok {
			return a.Throw(gc, heap.TypeError, "cannot prevent extensions on object").Completion()
		}
		return types.NormalCompletion(oScoped.Get(gc.NoGC()))
	}
}

// Object.isFrozen / Object.isSealed
func objectIntegrityQueryBehaviour(level IntegrityLevel) NativeFunction {
	return func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		o := args.Get(0)
		if !o.IsObject() {
			return types.NormalCompletion(types.BooleanValue(true))
		}
		ok, thrown := a.TestIntegrityLevel(o, level, gc)
		if thrown != nil {
			return thrown.Completion()
		}
		return types.NormalCompletion(types.BooleanValue(ok))
	}
}

// Object.getOwnPropertyDescriptor
func objectGetOwnPropertyDescriptor(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	obj, thrown := a.ToObject(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	objScoped := gc.Scope(obj)
	key, thrown := a.ToPropertyKey(args.Get(1), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	desc, found, thrown := a.GetOwnProperty(objScoped.Get(gc.NoGC()), key, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	return types.NormalCompletion(a.FromPropertyDescriptor(desc, found, gc))
}

// Object.getOwnPropertyDescriptors
func objectGetOwnPropertyDescriptors(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	obj, thrown := a.ToObject(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	objScoped := gc.Scope(obj)
	result := gc.Scope(a.OrdinaryObjectCreate(a.realm.Intrinsic(IntrObjectPrototype), gc))
	for _, k := range a.OwnPropertyKeys(objScoped.Get(gc.NoGC()), gc.NoGC()) {
		rk := a.rerootKey(k, gc)
		desc, found, thrown := a.GetOwnProperty(objScoped.Get(gc.NoGC()), rk.Key(gc.NoGC()), gc)
		if thrown != nil {
			return thrown.Completion()
		}
		if !found {
			continue
		}
		descObj := a.FromPropertyDescriptor(desc, true, gc)
		if thrown := a.CreateDataPropertyOrThrow(result.Get(gc.NoGC()), rk.Key(gc.NoGC()), descObj, gc); thrown != nil {
			return thrown.Completion()
		}
	}
	return types.NormalCompletion(result.Get(gc.NoGC()))
}

// Object.getOwnPropertyNames / Object.getOwnPropertySymbols
func objectGetOwnPropertyNames(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	obj, thrown := a.ToObject(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	child := gc.Reborrow()
	defer child.Release()
	keys := a.OwnPropertyKeys(obj, child.NoGC())
	names := make([]heap.Scoped, 0, len(keys))
	for _, k := range keys {
		if k.IsSymbol() {
			continue
		}
		names = append(names, child.Scope(a.heap.NewString(child, k.StringContent())))
	}
	n := child.NoGC()
	values := make([]types.Value, len(names))
	for i, s := range names {
		values[i] = s.Get(n)
	}
	return types.NormalCompletion(a.CreateArrayFromList(values, child))
}

func objectGetOwnPropertySymbols(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	obj, thrown := a.ToObject(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	keys := a.OwnPropertyKeys(obj, gc.NoGC())
	symbols := make([]types.Value, 0)
	for _, k := range keys {
		if k.IsSymbol() {
			symbols = append(symbols, types.HeapValue(types.TagSymbol, k.SymbolIndex()))
		}
	}
	return types.NormalCompletion(a.CreateArrayFromList(symbols, gc))
}

// Object.getPrototypeOf
func objectGetPrototypeOf(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	obj, thrown := a.ToObject(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	return types.NormalCompletion(a.GetPrototypeOf(obj, gc.NoGC()))
}

// Object.setPrototypeOf
func objectSetPrototypeOf(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	o := args.Get(0)
	proto := args.Get(1)
	if thrown := a.RequireObjectCoercible(o, gc); thrown != nil {
		return thrown.Completion()
	}
	if !proto.IsObject() && !proto.IsNull() {
		return a.Throw(gc, heap.TypeError, "Object prototype may only be an object or null").Completion()
	}
	if !o.IsObject() {
		return types.NormalCompletion(o)
	}
	if !a.SetPrototypeOf(o, proto, gc.NoGC()) {
		return a.Throw(gc, heap.TypeError, "cannot set prototype of this object").Completion()
	}
	return types.NormalCompletion(o)
}

// Object.groupBy
func objectGroupBy(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	child := gc.Reborrow()
	defer child.Release()
	groups, thrown := a.GroupBy(args.Get(0), args.Get(1), GroupByProperty, child)
	if thrown != nil {
		return thrown.Completion()
	}
	obj := child.Scope(a.OrdinaryObjectCreate(types.Null(), child))
	for _, g := range groups {
		n := child.NoGC()
		elements := make([]types.Value, len(g.Elements))
		for i, s := range g.Elements {
			elements[i] = s.Get(n)
		}
		arr := a.CreateArrayFromList(elements, child)
		if thrown := a.CreateDataPropertyOrThrow(obj.Get(child.NoGC()), g.Key(child.NoGC()), arr, child); thrown != nil {
			return thrown.Completion()
		}
	}
	return types.NormalCompletion(obj.Get(child.NoGC()))
}

// Object.hasOwn
func objectHasOwn(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	obj, thrown := a.ToObject(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	objScoped := gc.Scope(obj)
	key, thrown := a.ToPropertyKey(args.Get(1), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	found, thrown := a.HasOwnProperty(objScoped.Get(gc.NoGC()), key, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	return types.NormalCompletion(types.BooleanValue(found))
}

// Object.is
func objectIs(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	return types.NormalCompletion(types.BooleanValue(a.SameValue(gc.NoGC(), args.Get(0), args.Get(1))))
}

// Object.isExtensible
func objectIsExtensible(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	o := args.Get(0)
	if !o.IsObject() {
		return types.NormalCompletion(types.BooleanValue(false))
	}
	return types.NormalCompletion(types.BooleanValue(a.IsExtensible(o, gc.NoGC())))
}

// Object.preventExtensions
func objectPreventExtensions(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	o := args.Get(0)
	if !o.IsObject() {
		return types.NormalCompletion(o)
	}
	if !a.PreventExtensions(o, gc.NoGC()) {
		return a.Throw(gc, heap.TypeError, "cannot prevent extensions on object").Completion()
	}
	return types.NormalCompletion(o)
}

// createObjectIntrinsics installs the Object constructor and its statics.
func createObjectIntrinsics(a *Agent, r *Realm, gc *heap.Scope) {
	ctor := a.CreateBuiltinFunction(gc, BuiltinDef{
		Name: "Object", Length: 1, Behaviour: objectConstructorBehaviour, IsConstructor: true,
	})
	r.intrinsics[IntrObjectConstructor] = ctor
	a.installConstructor(gc, ctor, r.intrinsics[IntrObjectPrototype])

	statics := []BuiltinDef{
		{Name: "assign", Length: 2, Behaviour: objectAssign},
		{Name: "create", Length: 2, Behaviour: objectCreate},
		{Name: "defineProperties", Length: 2, Behaviour: objectDefinePropertiesBehaviour},
		{Name: "defineProperty", Length: 3, Behaviour: objectDefineProperty},
		{Name: "entries", Length: 1, Behaviour: objectEnumerableBehaviour(EnumKeyValue)},
		{Name: "freeze", Length: 1, Behaviour: objectIntegrityBehaviour(Frozen)},
		{Name: "fromEntries", Length: 1, Behaviour: objectFromEntries},
		{Name: "getOwnPropertyDescriptor", Length: 2, Behaviour: objectGetOwnPropertyDescriptor},
		{Name: "getOwnPropertyDescriptors", Length: 1, Behaviour: objectGetOwnPropertyDescriptors},
		{Name: "getOwnPropertyNames", Length: 1, Behaviour: objectGetOwnPropertyNames},
		{Name: "getOwnPropertySymbols", Length: 1, Behaviour: objectGetOwnPropertySymbols},
		{Name: "getPrototypeOf", Length: 1, Behaviour: objectGetPrototypeOf},
		{Name: "groupBy", Length: 2, Behaviour: objectGroupBy},
		{Name: "hasOwn", Length: 2, Behaviour: objectHasOwn},
		{Name: "is", Length: 2, Behaviour: objectIs},
		{Name: "isExtensible", Length: 1, Behaviour: objectIsExtensible},
		{Name: "isFrozen", Length: 1, Behaviour: objectIntegrityQueryBehaviour(Frozen)},
		{Name: "isSealed", Length: 1, Behaviour: objectIntegrityQueryBehaviour(Sealed)},
		{Name: "keys", Length: 1, Behaviour: objectEnumerableBehaviour(EnumKey)},
		{Name: "preventExtensions", Length: 1, Behaviour: objectPreventExtensions},
		{Name: "seal", Length: 1, Behaviour: objectIntegrityBehaviour(Sealed)},
		{Name: "setPrototypeOf", Length: 2, Behaviour: objectSetPrototypeOf},
		{Name: "values", Length: 1, Behaviour: objectEnumerableBehaviour(EnumValue)},
	}
	for _, def := range statics {
		a.installMethod(gc, ctor, def)
	}
}
