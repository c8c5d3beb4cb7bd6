package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// BuiltinDef is the declarative description every builtin supplies: its
// NAME, LENGTH, optional KEY override (for symbol-keyed methods), and
// BEHAVIOUR. The builder fills the function object's name/length properties
// with the specification's default attributes.
type BuiltinDef struct {
	Name   string
	Length int
	// Key overrides the property key the function is installed under;
	// nil derives it from Name.
	Key       *types.PropertyKey
	Behaviour NativeFunction
	// IsConstructor marks the function as constructable.
	IsConstructor bool
	// Prototype overrides the function object's prototype; nil selects
	// %Function.prototype%.
	Prototype *types.Value
}

// CreateBuiltinFunction allocates a native function object and installs its
// standard name and length own properties (non-writable, non-enumerable,
// configurable).
func (a *Agent) CreateBuiltinFunction(gc *heap.Scope, def BuiltinDef) types.Value {
	proto := types.Undefined()
	if def.Prototype != nil {
		proto = *def.Prototype
	} else if a.realm != nil {
		proto = a.realm.Intrinsic(IntrFunctionPrototype)
	}
	rec := heap.BuiltinFunctionRecord{
		ObjectRecord:  heap.NewObjectRecord(proto),
		Name:          def.Name,
		Length:        def.Length,
		Behaviour:     def.Behaviour,
		IsConstructor: def.IsConstructor,
	}
	child := gc.Reborrow()
	defer child.Release()
	f := child.Scope(a.heap.NewBuiltinFunction(child, rec))
	nameValue := a.heap.NewString(child, def.Name)

	n := child.NoGC()
	fn := f.Get(n)
	shape := a.heap.ObjectShape(n, fn)
	shape.SetProperty(types.StringKey("length"),
		heap.Property{Value: types.IntegerValue(int64(def.Length)), Attrs: heap.AttrConfigurable})
	shape.SetProperty(types.StringKey("name"),
		heap.Property{Value: nameValue, Attrs: heap.AttrConfigurable})
	return fn
}

// ============================================================================
// BOOTSTRAP INSTALLERS
//
// These run only during realm construction, with automatic collection
// disabled; they manipulate object records directly instead of going through
// DefinePropertyOrThrow.
// ============================================================================

// installMethod creates a builtin from def and installs it on target under
// def.Key (or def.Name) with method attributes: writable, non-enumerable,
// configurable.
func (a *Agent) installMethod(gc *heap.Scope, target types.Value, def BuiltinDef) types.Value {
	f := a.CreateBuiltinFunction(gc, def)
	key := types.StringKey(def.Name)
	if def.Key != nil {
		key = *def.Key
	}
	shape := a.heap.ObjectShape(gc.NoGC(), target)
	shape.SetProperty(key, heap.Property{Value: f, Attrs: heap.AttrWritable | heap.AttrConfigurable})
	return f
}

// installGetter installs an accessor property whose getter is a builtin
// named "get <name>" per the specification's accessor naming.
func (a *Agent) installGetter(gc *heap.Scope, target types.Value, name string, key *types.PropertyKey, behaviour NativeFunction) {
	getter := a.CreateBuiltinFunction(gc, BuiltinDef{Name: "get " + name, Length: 0, Behaviour: behaviour})
	k := types.StringKey(name)
	if key != nil {
		k = *key
	}
	shape := a.heap.ObjectShape(gc.NoGC(), target)
	shape.SetProperty(k, heap.Property{
		Get:   getter,
		Set:   types.Undefined(),
		Attrs: heap.AttrAccessor | heap.AttrConfigurable,
	})
}

// installData installs a plain data property during bootstrap.
func (a *Agent) installData(gc *heap.Scope, target types.Value, key types.PropertyKey, v types.Value, attrs heap.PropertyAttrs) {
	shape := a.heap.ObjectShape(gc.NoGC(), target)
	shape.SetProperty(key, heap.Property{Value: v, Attrs: attrs})
}

// installConstructor wires the constructor/prototype pair: ctor.prototype
// (non-writable, non-enumerable, non-configurable) and
// proto.constructor (writable, non-enumerable, configurable).
func (a *Agent) installConstructor(gc *heap.Scope, ctor, proto types.Value) {
	a.installData(gc, ctor, types.StringKey("prototype"), proto, 0)
	a.installData(gc, proto, types.StringKey("constructor"), ctor, heap.AttrWritable|heap.AttrConfigurable)
}
