package core

import (
	"starling/internal/heap"
	"starling/internal/logging"
	"starling/internal/types"
)

// Intrinsic names one slot of the realm's intrinsic table.
type Intrinsic int

const (
	IntrObjectPrototype Intrinsic = iota
	IntrObjectConstructor
	IntrFunctionPrototype
	IntrIteratorPrototype
	IntrArrayIteratorPrototype
	IntrArrayPrototype
	IntrArrayPrototypeValues
	IntrErrorPrototype
	IntrErrorConstructor
	IntrTypeErrorPrototype
	IntrTypeErrorConstructor
	IntrRangeErrorPrototype
	IntrRangeErrorConstructor
	IntrSyntaxErrorPrototype
	IntrSyntaxErrorConstructor
	IntrReferenceErrorPrototype
	IntrReferenceErrorConstructor
	IntrURIErrorPrototype
	IntrURIErrorConstructor
	IntrEvalErrorPrototype
	IntrEvalErrorConstructor
	IntrArrayBufferPrototype
	IntrArrayBufferConstructor
	IntrTypedArrayPrototype
	IntrTypedArrayConstructor
	IntrWeakRefPrototype
	IntrWeakRefConstructor
	IntrFinalizationRegistryPrototype
	IntrFinalizationRegistryConstructor

	intrinsicCount
)

// Realm owns a set of intrinsics and a global object. Code loaded into the
// realm shares them. Per-element-kind typed-array intrinsics live in their
// own tables, indexed by types.ElementKind.
type Realm struct {
	agent      *Agent
	intrinsics [intrinsicCount]types.Value

	taPrototypes   [types.NumElementKinds]types.Value
	taConstructors [types.NumElementKinds]types.Value

	global types.Value
}

// Intrinsic returns the intrinsic value in the named slot.
func (r *Realm) Intrinsic(i Intrinsic) types.Value { return r.intrinsics[i] }

// TypedArrayPrototype returns the per-kind typed-array prototype.
func (r *Realm) TypedArrayPrototype(k types.ElementKind) types.Value { return r.taPrototypes[k] }

// TypedArrayConstructor returns the per-kind typed-array constructor.
func (r *Realm) TypedArrayConstructor(k types.ElementKind) types.Value { return r.taConstructors[k] }

// GlobalObject returns the realm's global object.
func (r *Realm) GlobalObject() types.Value { return r.global }

// errorPrototype maps an error kind to its intrinsic prototype.
func (r *Realm) errorPrototype(kind heap.ErrorKind) types.Value {
	switch kind {
	case heap.TypeError:
		return r.intrinsics[IntrTypeErrorPrototype]
	case heap.RangeError:
		return r.intrinsics[IntrRangeErrorPrototype]
	case heap.SyntaxError:
		return r.intrinsics[IntrSyntaxErrorPrototype]
	case heap.ReferenceError:
		return r.intrinsics[IntrReferenceErrorPrototype]
	case heap.URIError:
		return r.intrinsics[IntrURIErrorPrototype]
	case heap.EvalError:
		return r.intrinsics[IntrEvalErrorPrototype]
	default:
		return r.intrinsics[IntrErrorPrototype]
	}
}

// newRealm creates a realm and installs every intrinsic. It runs during
// agent bootstrap with automatic collection disabled, which is what licenses
// the direct record manipulation the installers use.
func newRealm(a *Agent, gc *heap.Scope) *Realm {
	timer := logging.StartTimer(logging.CategoryRealm, "realm bootstrap")
	r := &Realm{agent: a}
	a.realm = r
	h := a.heap

	r.intrinsics[IntrObjectPrototype] = h.NewOrdinaryObject(gc, types.Null())
	r.intrinsics[IntrFunctionPrototype] = a.CreateBuiltinFunction(gc, BuiltinDef{
		Name:      "",
		Length:    0,
		Behaviour: functionPrototypeBehaviour,
		Prototype: types.ValuePtr(r.intrinsics[IntrObjectPrototype]),
	})

	createIteratorIntrinsics(a, r, gc)
	createArrayIntrinsics(a, r, gc)
	createErrorIntrinsics(a, r, gc)
	createObjectIntrinsics(a, r, gc)
	createObjectPrototypeMethods(a, r, gc)
	createArrayBufferIntrinsics(a, r, gc)
	createTypedArrayIntrinsics(a, r, gc)
	createWeakRefIntrinsics(a, r, gc)
	createFinalizationRegistryIntrinsics(a, r, gc)
	createGlobalObject(a, r, gc)

	timer.Stop()
	return r
}

// functionPrototypeBehaviour: %Function.prototype% is callable and returns
// undefined for any arguments.
func functionPrototypeBehaviour(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	return types.NormalCompletion(types.Undefined())
}

// createGlobalObject builds the global and exposes the constructor surface.
func createGlobalObject(a *Agent, r *Realm, gc *heap.Scope) {
	h := a.heap
	r.global = h.NewOrdinaryObject(gc, r.intrinsics[IntrObjectPrototype])

	installData := func(name string, v types.Value, attrs heap.PropertyAttrs) {
		shape := h.ObjectShape(gc.NoGC(), r.global)
		shape.SetProperty(types.StringKey(name), heap.Property{Value: v, Attrs: attrs})
	}
	stdAttrs := heap.AttrWritable | heap.AttrConfigurable

	installData("globalThis", r.global, stdAttrs)
	installData("undefined", types.Undefined(), 0)
	installData("NaN", types.NaNValue(), 0)
	installData("Infinity", h.NewNumber(gc, posInf), 0)

	installData("Object", r.intrinsics[IntrObjectConstructor], stdAttrs)
	installData("Error", r.intrinsics[IntrErrorConstructor], stdAttrs)
	installData("TypeError", r.intrinsics[IntrTypeErrorConstructor], stdAttrs)
	installData("RangeError", r.intrinsics[IntrRangeErrorConstructor], stdAttrs)
	installData("SyntaxError", r.intrinsics[IntrSyntaxErrorConstructor], stdAttrs)
	installData("ReferenceError", r.intrinsics[IntrReferenceErrorConstructor], stdAttrs)
	installData("URIError", r.intrinsics[IntrURIErrorConstructor], stdAttrs)
	installData("EvalError", r.intrinsics[IntrEvalErrorConstructor], stdAttrs)
	installData("ArrayBuffer", r.intrinsics[IntrArrayBufferConstructor], stdAttrs)
	installData("WeakRef", r.intrinsics[IntrWeakRefConstructor], stdAttrs)
	installData("FinalizationRegistry", r.intrinsics[IntrFinalizationRegistryConstructor], stdAttrs)

	for _, kind := range types.ElementKinds {
		if kind == types.Float16Element && !a.features.Float16Array {
			continue
		}
		installData(kind.ConstructorName(), r.taConstructors[kind], stdAttrs)
	}
}
