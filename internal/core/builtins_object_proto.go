package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// Object.prototype.hasOwnProperty
func objectProtoHasOwnProperty(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	thisScoped := gc.Scope(this)
	key, thrown := a.ToPropertyKey(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	rk := a.rerootKey(key, gc)
	obj, thrown := a.ToObject(thisScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	found, thrown := a.HasOwnProperty(obj, rk.Key(gc.NoGC()), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	return types.NormalCompletion(types.BooleanValue(found))
}

// Object.prototype.toString
func objectProtoToString(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if this.IsUndefined() {
		return types.NormalCompletion(a.heap.NewString(gc, "[object Undefined]"))
	}
	if this.IsNull() {
		return types.NormalCompletion(a.heap.NewString(gc, "[object Null]"))
	}
	obj, thrown := a.ToObject(this, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	objScoped := gc.Scope(obj)

	builtinTag := "Object"
	switch {
	case obj.Tag() == types.TagArray:
		builtinTag = "Array"
	case obj.Tag() == types.TagArguments:
		builtinTag = "Arguments"
	case a.IsCallable(obj):
		builtinTag = "Function"
	case obj.Tag() == types.TagError:
		builtinTag = "Error"
	}

	tag, thrown := a.Get(objScoped.Get(gc.NoGC()), types.SymbolKey(a.wellKnown.ToStringTag.Index()), objScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	if tag.IsString() {
		builtinTag = a.heap.StringContent(gc.NoGC(), tag)
	}
	return types.NormalCompletion(a.heap.NewString(gc, "[object "+builtinTag+"]"))
}

// Object.prototype.valueOf
func objectProtoValueOf(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	obj, thrown := a.ToObject(this, gc)
	return completionOf(obj, thrown)
}

// Object.prototype.isPrototypeOf
func objectProtoIsPrototypeOf(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	v := args.Get(0)
	if !v.IsObject() {
		return types.NormalCompletion(types.BooleanValue(false))
	}
	obj, thrown := a.ToObject(this, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	n := gc.NoGC()
	for {
		v = a.GetPrototypeOf(v, n)
		if v.IsNull() {
			return types.NormalCompletion(types.BooleanValue(false))
		}
		if a.sameValueRaw(n, v, obj) {
			return types.NormalCompletion(types.BooleanValue(true))
		}
	}
}

// Object.prototype.propertyIsEnumerable
func objectProtoPropertyIsEnumerable(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	thisScoped := gc.Scope(this)
	key, thrown := a.ToPropertyKey(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	rk := a.rerootKey(key, gc)
	obj, thrown := a.ToObject(thisScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	desc, found, thrown := a.GetOwnProperty(obj, rk.Key(gc.NoGC()), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	enumerable := found && desc.Enumerable != nil && *desc.Enumerable
	return types.NormalCompletion(types.BooleanValue(enumerable))
}

func createObjectPrototypeMethods(a *Agent, r *Realm, gc *heap.Scope) {
	proto := r.intrinsics[IntrObjectPrototype]
	a.installMethod(gc, proto, BuiltinDef{Name: "hasOwnProperty", Length: 1, Behaviour: objectProtoHasOwnProperty})
	a.installMethod(gc, proto, BuiltinDef{Name: "isPrototypeOf", Length: 1, Behaviour: objectProtoIsPrototypeOf})
	a.installMethod(gc, proto, BuiltinDef{Name: "propertyIsEnumerable", Length: 1, Behaviour: objectProtoPropertyIsEnumerable})
	a.installMethod(gc, proto, BuiltinDef{Name: "toString", Length: 0, Behaviour: objectProtoToString})
	a.installMethod(gc, proto, BuiltinDef{Name: "valueOf", Length: 0, Behaviour: objectProtoValueOf})
}
