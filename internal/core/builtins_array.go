package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// Minimal array intrinsics: the array prototype (itself an array exotic
// object) and the keys/values/entries iterator surface. The intrinsic
// identity of %Array.prototype.values% is load-bearing: the
// Object.fromEntries fast path is only valid when iterating an array would
// run exactly that function.

func arrayIterationBehaviour(kind EnumKind) NativeFunction {
	return func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		obj, thrown := a.ToObject(this, gc)
		if thrown != nil {
			return thrown.Completion()
		}
		return types.NormalCompletion(a.CreateArrayIterator(obj, kind, gc))
	}
}

func createArrayIntrinsics(a *Agent, r *Realm, gc *heap.Scope) {
	h := a.heap
	arrayProto := h.NewArray(gc, r.intrinsics[IntrObjectPrototype], nil)
	r.intrinsics[IntrArrayPrototype] = arrayProto

	values := a.installMethod(gc, arrayProto, BuiltinDef{Name: "values", Length: 0, Behaviour: arrayIterationBehaviour(EnumValue)})
	r.intrinsics[IntrArrayPrototypeValues] = values
	a.installMethod(gc, arrayProto, BuiltinDef{Name: "keys", Length: 0, Behaviour: arrayIterationBehaviour(EnumKey)})
	a.installMethod(gc, arrayProto, BuiltinDef{Name: "entries", Length: 0, Behaviour: arrayIterationBehaviour(EnumKeyValue)})

	// @@iterator is the values function itself.
	a.installData(gc, arrayProto, types.SymbolKey(a.wellKnown.Iterator.Index()), values,
		heap.AttrWritable|heap.AttrConfigurable)
}
