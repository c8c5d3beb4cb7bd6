package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"starling/internal/heap"
	"starling/internal/types"
)

// renderKeys flattens a key list for comparison: integers render decimal,
// strings literal, symbols by description.
func renderKeys(a *Agent, keys []types.PropertyKey) []string {
	out := make([]string, len(keys))
	n := a.TopScope().NoGC()
	for i, k := range keys {
		if k.IsSymbol() {
			out[i] = "@@" + a.heap.Symbol(n, k.SymbolIndex()).Description
		} else {
			out[i] = k.StringContent()
		}
	}
	return out
}

func TestOwnKeyOrdering(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	obj := gc.Scope(a.OrdinaryObjectCreate(a.Realm().Intrinsic(IntrObjectPrototype), gc))
	sym := gc.Scope(a.heap.NewSymbol(gc, "marker", true))

	define := func(k types.PropertyKey) {
		ok, thrown := a.DefineOwnProperty(obj.Get(gc.NoGC()), k,
			types.DataDescriptor(types.IntegerValue(1), true, true, true), gc)
		if thrown != nil || !ok {
			t.Fatalf("define %v failed (ok=%v, thrown=%v)", k, ok, thrown)
		}
	}

	// Interleave integer, string and symbol keys; integers must come out
	// ascending, strings and symbols in insertion order.
	define(types.StringKey("b"))
	define(types.IntegerKey(10))
	define(types.SymbolKey(sym.Get(gc.NoGC()).Index()))
	define(types.StringKey("a"))
	define(types.IntegerKey(2))
	define(types.StringKey("0")) // canonical integer string normalizes
	define(types.StringKey("c"))

	got := renderKeys(a, a.OwnPropertyKeys(obj.Get(gc.NoGC()), gc.NoGC()))
	want := []string{"0", "2", "10", "b", "a", "c", "@@marker"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("own key order mismatch (-want +got):\n%s", diff)
	}
}

func TestOwnKeyOrderingSurvivesDeletes(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	obj := gc.Scope(a.OrdinaryObjectCreate(a.Realm().Intrinsic(IntrObjectPrototype), gc))
	define := func(name string) {
		if thrown := a.CreateDataPropertyOrThrow(obj.Get(gc.NoGC()), types.StringKey(name), types.IntegerValue(0), gc); thrown != nil {
			t.Fatal(thrown)
		}
	}
	define("x")
	define("y")
	define("z")
	if !a.Delete(obj.Get(gc.NoGC()), types.StringKey("y"), gc.NoGC()) {
		t.Fatal("delete y failed")
	}
	define("w")

	got := renderKeys(a, a.OwnPropertyKeys(obj.Get(gc.NoGC()), gc.NoGC()))
	want := []string{"x", "z", "w"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("order after delete (-want +got):\n%s", diff)
	}
}

func TestDefineOwnPropertyTransitions(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	obj := gc.Scope(a.OrdinaryObjectCreate(types.Null(), gc))
	k := types.StringKey("p")

	// Non-configurable, non-writable data property.
	ok, thrown := a.DefineOwnProperty(obj.Get(gc.NoGC()), k,
		types.DataDescriptor(types.IntegerValue(1), false, false, false), gc)
	if thrown != nil || !ok {
		t.Fatalf("initial define failed: %v", thrown)
	}

	// Same value redefinition is permitted.
	ok, _ = a.DefineOwnProperty(obj.Get(gc.NoGC()), k,
		types.PropertyDescriptor{Value: types.ValuePtr(types.IntegerValue(1))}, gc)
	if !ok {
		t.Fatal("same-value redefinition rejected")
	}

	// Value change on a non-writable slot is rejected.
	ok, _ = a.DefineOwnProperty(obj.Get(gc.NoGC()), k,
		types.PropertyDescriptor{Value: types.ValuePtr(types.IntegerValue(2))}, gc)
	if ok {
		t.Fatal("non-writable value change accepted")
	}

	// Configurable:true resurrection is rejected.
	ok, _ = a.DefineOwnProperty(obj.Get(gc.NoGC()), k,
		types.PropertyDescriptor{Configurable: types.BoolPtr(true)}, gc)
	if ok {
		t.Fatal("configurable transition false->true accepted")
	}

	// Data -> accessor flip on a non-configurable slot is rejected.
	fn := mustGlobal(t, a, "Object")
	ok, _ = a.DefineOwnProperty(obj.Get(gc.NoGC()), k,
		types.PropertyDescriptor{Get: types.ValuePtr(fn)}, gc)
	if ok {
		t.Fatal("data->accessor flip accepted on non-configurable slot")
	}

	// Writable true -> false is allowed; false -> true is not.
	k2 := types.StringKey("q")
	if _, thrown := a.DefineOwnProperty(obj.Get(gc.NoGC()), k2,
		types.DataDescriptor(types.IntegerValue(1), true, true, false), gc); thrown != nil {
		t.Fatal(thrown)
	}
	ok, _ = a.DefineOwnProperty(obj.Get(gc.NoGC()), k2,
		types.PropertyDescriptor{Writable: types.BoolPtr(false)}, gc)
	if !ok {
		t.Fatal("writable true->false rejected")
	}
	ok, _ = a.DefineOwnProperty(obj.Get(gc.NoGC()), k2,
		types.PropertyDescriptor{Writable: types.BoolPtr(true)}, gc)
	if ok {
		t.Fatal("writable false->true accepted on non-configurable slot")
	}
}

func TestPrototypeCycleRejected(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	x := gc.Scope(a.OrdinaryObjectCreate(types.Null(), gc))
	y := gc.Scope(a.OrdinaryObjectCreate(x.Get(gc.NoGC()), gc))
	n := gc.NoGC()
	if a.SetPrototypeOf(x.Get(n), y.Get(n), n) {
		t.Fatal("prototype cycle accepted")
	}
	if !a.SetPrototypeOf(x.Get(n), types.Null(), n) {
		t.Fatal("null prototype assignment rejected")
	}
}

func TestSetPrototypeOfNonExtensible(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	x := gc.Scope(a.OrdinaryObjectCreate(types.Null(), gc))
	other := gc.Scope(a.OrdinaryObjectCreate(types.Null(), gc))
	n := gc.NoGC()
	a.PreventExtensions(x.Get(n), n)
	if a.SetPrototypeOf(x.Get(n), other.Get(n), n) {
		t.Fatal("prototype change on non-extensible object accepted")
	}
	// Same-prototype assignment stays permitted.
	if !a.SetPrototypeOf(x.Get(n), types.Null(), n) {
		t.Fatal("identity prototype assignment rejected on non-extensible object")
	}
}

func TestGetWalksPrototypeChain(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	proto := gc.Scope(newPlainObject(t, a, gc, "inherited", 41))
	obj := gc.Scope(a.OrdinaryObjectCreate(proto.Get(gc.NoGC()), gc))

	v, thrown := a.Get(obj.Get(gc.NoGC()), types.StringKey("inherited"), obj.Get(gc.NoGC()), gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	if v.Integer() != 41 {
		t.Fatalf("inherited read = %v", v)
	}

	// Fast path agrees.
	fast, ok := a.TryGet(obj.Get(gc.NoGC()), types.StringKey("inherited"), obj.Get(gc.NoGC()), gc.NoGC())
	if !ok || fast.Integer() != 41 {
		t.Fatalf("TryGet = %v, ok=%v", fast, ok)
	}
}

func TestTryGetSuspendsOnAccessor(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	obj := gc.Scope(a.OrdinaryObjectCreate(types.Null(), gc))
	getter := a.CreateBuiltinFunction(gc, BuiltinDef{Name: "get p", Behaviour: func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		return types.NormalCompletion(types.IntegerValue(99))
	}})
	if thrown := a.DefinePropertyOrThrow(obj.Get(gc.NoGC()), types.StringKey("p"),
		types.PropertyDescriptor{Get: types.ValuePtr(getter)}, gc); thrown != nil {
		t.Fatal(thrown)
	}

	if _, ok := a.TryGet(obj.Get(gc.NoGC()), types.StringKey("p"), obj.Get(gc.NoGC()), gc.NoGC()); ok {
		t.Fatal("TryGet completed through an accessor")
	}
	v, thrown := a.Get(obj.Get(gc.NoGC()), types.StringKey("p"), obj.Get(gc.NoGC()), gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	if v.Integer() != 99 {
		t.Fatalf("accessor get = %v", v)
	}
}

func TestSetCreatesDataPropertyOnReceiver(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	proto := gc.Scope(newPlainObject(t, a, gc, "p", 1))
	obj := gc.Scope(a.OrdinaryObjectCreate(proto.Get(gc.NoGC()), gc))

	ok, thrown := a.Set(obj.Get(gc.NoGC()), types.StringKey("p"), types.IntegerValue(2), obj.Get(gc.NoGC()), gc)
	if thrown != nil || !ok {
		t.Fatalf("set failed: %v", thrown)
	}
	n := gc.NoGC()
	desc, found, _ := a.TryGetOwnProperty(obj.Get(n), types.StringKey("p"), n)
	if !found || desc.Value.Integer() != 2 {
		t.Fatal("set did not create an own data property on the receiver")
	}
	protoDesc, _, _ := a.TryGetOwnProperty(proto.Get(n), types.StringKey("p"), n)
	if protoDesc.Value.Integer() != 1 {
		t.Fatal("prototype property mutated by receiver write")
	}
}

func TestDeleteRespectsConfigurability(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	obj := gc.Scope(a.OrdinaryObjectCreate(types.Null(), gc))
	if _, thrown := a.DefineOwnProperty(obj.Get(gc.NoGC()), types.StringKey("stuck"),
		types.DataDescriptor(types.IntegerValue(1), true, true, false), gc); thrown != nil {
		t.Fatal(thrown)
	}
	n := gc.NoGC()
	if a.Delete(obj.Get(n), types.StringKey("stuck"), n) {
		t.Fatal("non-configurable property deleted")
	}
	if !a.Delete(obj.Get(n), types.StringKey("absent"), n) {
		t.Fatal("deleting an absent key must succeed")
	}
}
