package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"starling/internal/heap"
	"starling/internal/types"
)

// readInt reads an own data property as an int64.
func readInt(t *testing.T, a *Agent, gc *heap.Scope, obj types.Value, name string) int64 {
	t.Helper()
	v, thrown := a.Get(obj, types.StringKey(name), obj, gc)
	if thrown != nil {
		t.Fatalf("reading %s: %v", name, thrown)
	}
	if !v.IsNumber() {
		t.Fatalf("%s is %s, not a number", name, v.Tag())
	}
	return int64(a.heap.NumberFloat(gc.NoGC(), v))
}

func TestObjectAssignScenario(t *testing.T) {
	// Object.assign({a:1}, {a:2, b:3}, null, {b:4}) -> {a:2, b:4}
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	target := gc.Scope(newPlainObject(t, a, gc, "a", 1))
	s1 := gc.Scope(newPlainObject(t, a, gc, "a", 2, "b", 3))
	s2 := gc.Scope(newPlainObject(t, a, gc, "b", 4))

	objectCtor := gc.Scope(mustGlobal(t, a, "Object"))
	assign, thrown := a.Get(objectCtor.Get(gc.NoGC()), types.StringKey("assign"), objectCtor.Get(gc.NoGC()), gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	n := gc.NoGC()
	result, thrown := a.Call(assign, types.Undefined(),
		[]types.Value{target.Get(n), s1.Get(n), types.Null(), s2.Get(n)}, gc)
	if thrown != nil {
		t.Fatalf("assign threw: %v", thrown)
	}
	if !a.SameValue(gc.NoGC(), result, target.Get(gc.NoGC())) {
		t.Fatal("assign did not return the target")
	}
	if got := readInt(t, a, gc, result, "a"); got != 2 {
		t.Fatalf("a = %d, want 2", got)
	}
	if got := readInt(t, a, gc, target.Get(gc.NoGC()), "b"); got != 4 {
		t.Fatalf("b = %d, want 4", got)
	}
}

func TestFreezeScenario(t *testing.T) {
	// Object.freeze(o); Object.isFrozen(o) -> true; o.p = 1 fails.
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	obj := gc.Scope(newPlainObject(t, a, gc, "p", 10))
	ok, thrown := a.SetIntegrityLevel(obj.Get(gc.NoGC()), Frozen, gc)
	if thrown != nil || !ok {
		t.Fatalf("freeze failed: %v", thrown)
	}

	frozen, thrown := a.TestIntegrityLevel(obj.Get(gc.NoGC()), Frozen, gc)
	if thrown != nil || !frozen {
		t.Fatal("TestIntegrityLevel(frozen) is false after freeze")
	}

	// Writes fail (strict-mode assignment would throw on this false).
	okSet, thrown := a.Set(obj.Get(gc.NoGC()), types.StringKey("p"), types.IntegerValue(99), obj.Get(gc.NoGC()), gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	if okSet {
		t.Fatal("write to frozen object succeeded")
	}
	if got := readInt(t, a, gc, obj.Get(gc.NoGC()), "p"); got != 10 {
		t.Fatalf("frozen value changed to %d", got)
	}

	// New properties cannot appear.
	okCreate, _ := a.CreateDataProperty(obj.Get(gc.NoGC()), types.StringKey("q"), types.IntegerValue(1), gc)
	if okCreate {
		t.Fatal("property created on frozen object")
	}

	// Deletes fail.
	if a.Delete(obj.Get(gc.NoGC()), types.StringKey("p"), gc.NoGC()) {
		t.Fatal("delete succeeded on frozen object")
	}
}

func TestSealedVersusFrozen(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	obj := gc.Scope(newPlainObject(t, a, gc, "p", 1))
	if ok, thrown := a.SetIntegrityLevel(obj.Get(gc.NoGC()), Sealed, gc); thrown != nil || !ok {
		t.Fatalf("seal failed: %v", thrown)
	}
	sealed, _ := a.TestIntegrityLevel(obj.Get(gc.NoGC()), Sealed, gc)
	if !sealed {
		t.Fatal("sealed object fails the sealed query")
	}
	frozen, _ := a.TestIntegrityLevel(obj.Get(gc.NoGC()), Frozen, gc)
	if frozen {
		t.Fatal("sealed object with a writable slot reports frozen")
	}
	// Sealed objects still take writes to existing properties.
	okSet, thrown := a.Set(obj.Get(gc.NoGC()), types.StringKey("p"), types.IntegerValue(2), obj.Get(gc.NoGC()), gc)
	if thrown != nil || !okSet {
		t.Fatal("write to sealed object's writable slot failed")
	}
}

func TestSetPrototypeOfPreventExtensionsScenario(t *testing.T) {
	// Object.setPrototypeOf(Object.preventExtensions({}), {}) -> TypeError
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	objectCtor := gc.Scope(mustGlobal(t, a, "Object"))
	empty := gc.Scope(a.OrdinaryObjectCreate(a.Realm().Intrinsic(IntrObjectPrototype), gc))
	newProto := gc.Scope(a.OrdinaryObjectCreate(a.Realm().Intrinsic(IntrObjectPrototype), gc))

	prevented, thrown := callMethod(a, gc, objectCtor.Get(gc.NoGC()), "preventExtensions", empty.Get(gc.NoGC()))
	if thrown != nil {
		t.Fatal(thrown)
	}
	preventedScoped := gc.Scope(prevented)

	setProto, thrown := a.Get(objectCtor.Get(gc.NoGC()), types.StringKey("setPrototypeOf"), objectCtor.Get(gc.NoGC()), gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	_, thrown = a.Call(setProto, types.Undefined(),
		[]types.Value{preventedScoped.Get(gc.NoGC()), newProto.Get(gc.NoGC())}, gc)
	if kind := errorKindOf(t, a, thrown); kind != heap.TypeError {
		t.Fatalf("error kind = %s, want TypeError", kind.Name())
	}
}

func TestEnumerableOwnPropertiesKinds(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	obj := gc.Scope(newPlainObject(t, a, gc, "x", 1, "y", 2))
	// A non-enumerable property must be filtered out.
	if thrown := a.DefinePropertyOrThrow(obj.Get(gc.NoGC()), types.StringKey("hidden"),
		types.DataDescriptor(types.IntegerValue(3), true, false, true), gc); thrown != nil {
		t.Fatal(thrown)
	}

	keys, thrown := a.EnumerableOwnProperties(obj.Get(gc.NoGC()), EnumKey, gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	n := gc.NoGC()
	var names []string
	for _, k := range keys {
		names = append(names, a.heap.StringContent(n, k))
	}
	if diff := cmp.Diff([]string{"x", "y"}, names); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}

	values, thrown := a.EnumerableOwnProperties(obj.Get(gc.NoGC()), EnumValue, gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	if len(values) != 2 || values[0].Integer() != 1 || values[1].Integer() != 2 {
		t.Fatalf("values = %v", values)
	}

	pairs, thrown := a.EnumerableOwnProperties(obj.Get(gc.NoGC()), EnumKeyValue, gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	if len(pairs) != 2 {
		t.Fatalf("pair count = %d", len(pairs))
	}
	first := pairs[0]
	if first.Tag() != types.TagArray {
		t.Fatalf("pair is %s", first.Tag())
	}
	rec := a.heap.Array(gc.NoGC(), first.Index())
	if a.heap.StringContent(gc.NoGC(), rec.Elements[0]) != "x" || rec.Elements[1].Integer() != 1 {
		t.Fatal("first pair content wrong")
	}
}

func TestObjectDefinePropertiesBehaviour(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	target := gc.Scope(a.OrdinaryObjectCreate(a.Realm().Intrinsic(IntrObjectPrototype), gc))
	descObj := gc.Scope(newPlainObject(t, a, gc, "value", 5))
	props := gc.Scope(a.OrdinaryObjectCreate(a.Realm().Intrinsic(IntrObjectPrototype), gc))
	if thrown := a.CreateDataPropertyOrThrow(props.Get(gc.NoGC()), types.StringKey("answer"), descObj.Get(gc.NoGC()), gc); thrown != nil {
		t.Fatal(thrown)
	}

	if thrown := a.objectDefineProperties(target.Get(gc.NoGC()), props.Get(gc.NoGC()), gc); thrown != nil {
		t.Fatal(thrown)
	}
	n := gc.NoGC()
	desc, found, _ := a.TryGetOwnProperty(target.Get(n), types.StringKey("answer"), n)
	if !found {
		t.Fatal("defined property missing")
	}
	if desc.Value.Integer() != 5 {
		t.Fatalf("value = %v", *desc.Value)
	}
	// Absent fields default to false.
	if *desc.Writable || *desc.Enumerable || *desc.Configurable {
		t.Fatal("descriptor defaults should be false")
	}

	// Non-object target throws TypeError through the builtin surface.
	objectCtor := gc.Scope(mustGlobal(t, a, "Object"))
	defineProps, thrown := a.Get(objectCtor.Get(gc.NoGC()), types.StringKey("defineProperties"), objectCtor.Get(gc.NoGC()), gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	_, thrown = a.Call(defineProps, types.Undefined(), []types.Value{types.IntegerValue(1), props.Get(gc.NoGC())}, gc)
	if kind := errorKindOf(t, a, thrown); kind != heap.TypeError {
		t.Fatalf("error kind = %s, want TypeError", kind.Name())
	}
}

func TestDescriptorObjectRoundTrip(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	obj := gc.Scope(newPlainObject(t, a, gc, "p", 7))
	desc, found, thrown := a.GetOwnProperty(obj.Get(gc.NoGC()), types.StringKey("p"), gc)
	if thrown != nil || !found {
		t.Fatalf("own property missing: %v", thrown)
	}
	descObj := gc.Scope(a.FromPropertyDescriptor(desc, true, gc))

	back, thrown := a.ToPropertyDescriptor(descObj.Get(gc.NoGC()), gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	if back.Value == nil || back.Value.Integer() != 7 {
		t.Fatal("value lost in round trip")
	}
	if back.Writable == nil || !*back.Writable || back.Enumerable == nil || !*back.Enumerable || back.Configurable == nil || !*back.Configurable {
		t.Fatal("flags lost in round trip")
	}
}
