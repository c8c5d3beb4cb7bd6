package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"starling/internal/heap"
	"starling/internal/types"
)

// pairArray builds [key, value] as a dense two-element array.
func pairArray(a *Agent, gc *heap.Scope, key string, value int64) types.Value {
	k := a.heap.NewString(gc, key)
	return a.CreateArrayFromList([]types.Value{k, types.IntegerValue(value)}, gc)
}

// entriesArray builds a dense array of [key, value] pairs.
func entriesArray(a *Agent, gc *heap.Scope, pairs [][2]interface{}) types.Value {
	child := gc.Reborrow()
	defer child.Release()
	scoped := make([]heap.Scoped, len(pairs))
	for i, p := range pairs {
		scoped[i] = child.Scope(pairArray(a, child, p[0].(string), int64(p[1].(int))))
	}
	n := child.NoGC()
	values := make([]types.Value, len(scoped))
	for i, s := range scoped {
		values[i] = s.Get(n)
	}
	return a.CreateArrayFromList(values, child)
}

func callFromEntries(t *testing.T, a *Agent, gc *heap.Scope, iterable types.Value) types.Value {
	t.Helper()
	iterScoped := gc.Scope(iterable)
	objectCtor := gc.Scope(mustGlobal(t, a, "Object"))
	fromEntries, thrown := a.Get(objectCtor.Get(gc.NoGC()), types.StringKey("fromEntries"), objectCtor.Get(gc.NoGC()), gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	result, thrown := a.Call(fromEntries, types.Undefined(), []types.Value{iterScoped.Get(gc.NoGC())}, gc)
	if thrown != nil {
		t.Fatalf("fromEntries threw: %v", thrown)
	}
	return result
}

func objectSnapshot(t *testing.T, a *Agent, gc *heap.Scope, obj types.Value) map[string]int64 {
	t.Helper()
	objScoped := gc.Scope(obj)
	out := make(map[string]int64)
	for _, k := range a.OwnPropertyKeys(obj, gc.NoGC()) {
		if k.IsSymbol() {
			continue
		}
		v, thrown := a.Get(objScoped.Get(gc.NoGC()), k, objScoped.Get(gc.NoGC()), gc)
		if thrown != nil {
			t.Fatal(thrown)
		}
		out[k.StringContent()] = int64(a.heap.NumberFloat(gc.NoGC(), v))
	}
	return out
}

func orderedKeys(a *Agent, obj types.Value, n heap.NoGC) []string {
	var out []string
	for _, k := range a.OwnPropertyKeys(obj, n) {
		if !k.IsSymbol() {
			out = append(out, k.StringContent())
		}
	}
	return out
}

func TestFromEntriesDuplicateKeyScenario(t *testing.T) {
	// Object.fromEntries([["x",1],["y",2],["x",3]]) -> keys ["x","y"],
	// values 3, 2.
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	entries := entriesArray(a, gc, [][2]interface{}{{"x", 1}, {"y", 2}, {"x", 3}})
	result := gc.Scope(callFromEntries(t, a, gc, entries))

	if diff := cmp.Diff([]string{"x", "y"}, orderedKeys(a, result.Get(gc.NoGC()), gc.NoGC())); diff != "" {
		t.Fatalf("key order (-want +got):\n%s", diff)
	}
	snap := objectSnapshot(t, a, gc, result.Get(gc.NoGC()))
	if snap["x"] != 3 || snap["y"] != 2 {
		t.Fatalf("snapshot = %v", snap)
	}
}

func TestFromEntriesFastAndSlowPathsAgree(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	pairs := [][2]interface{}{{"alpha", 1}, {"beta", 2}, {"alpha", 7}, {"42", 9}}

	// Fast path: a simple dense array of simple dense pair arrays.
	fastIn := gc.Scope(entriesArray(a, gc, pairs))
	if ta, ok := a.fromEntriesFastPath(fastIn.Get(gc.NoGC()), gc); !ok {
		t.Fatal("fast path preconditions unexpectedly failed")
	} else if !ta.IsObject() {
		t.Fatal("fast path returned a non-object")
	}
	fastOut := gc.Scope(callFromEntries(t, a, gc, fastIn.Get(gc.NoGC())))

	// Slow path: force the bailout by giving the entries array a spilled
	// (non-default-attribute) element, making it non-simple.
	slowIn := gc.Scope(entriesArray(a, gc, pairs))
	pair := gc.Scope(pairArray(a, gc, "alpha", 1))
	if ok, thrown := a.DefineOwnProperty(slowIn.Get(gc.NoGC()), types.IntegerKey(0),
		types.PropertyDescriptor{
			Value:      types.ValuePtr(pair.Get(gc.NoGC())),
			Enumerable: types.BoolPtr(false),
		}, gc); thrown != nil || !ok {
		t.Fatalf("spill define failed: %v", thrown)
	}
	if _, ok := a.fromEntriesFastPath(slowIn.Get(gc.NoGC()), gc); ok {
		t.Fatal("fast path accepted a non-simple entries array")
	}
	slowOut := gc.Scope(callFromEntries(t, a, gc, slowIn.Get(gc.NoGC())))

	n := gc.NoGC()
	if diff := cmp.Diff(orderedKeys(a, fastOut.Get(n), n), orderedKeys(a, slowOut.Get(n), n)); diff != "" {
		t.Fatalf("fast/slow key order diverged (-fast +slow):\n%s", diff)
	}
	fastSnap := objectSnapshot(t, a, gc, fastOut.Get(gc.NoGC()))
	slowSnap := objectSnapshot(t, a, gc, slowOut.Get(gc.NoGC()))
	if diff := cmp.Diff(fastSnap, slowSnap); diff != "" {
		t.Fatalf("fast/slow values diverged (-fast +slow):\n%s", diff)
	}
	// Both paths produce %Object.prototype%-backed objects.
	if a.GetPrototypeOf(fastOut.Get(n), n) != a.Realm().Intrinsic(IntrObjectPrototype) {
		t.Fatal("fast path prototype wrong")
	}
	if a.GetPrototypeOf(slowOut.Get(n), n) != a.Realm().Intrinsic(IntrObjectPrototype) {
		t.Fatal("slow path prototype wrong")
	}
}

func TestFromEntriesIntegerKeysComeFirst(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	entries := entriesArray(a, gc, [][2]interface{}{{"z", 1}, {"3", 2}, {"1", 3}})
	result := gc.Scope(callFromEntries(t, a, gc, entries))
	got := orderedKeys(a, result.Get(gc.NoGC()), gc.NoGC())
	if diff := cmp.Diff([]string{"1", "3", "z"}, got); diff != "" {
		t.Fatalf("integer-first ordering (-want +got):\n%s", diff)
	}
}

func TestFromEntriesRejectsNonObjectEntry(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	// An array containing a primitive entry bails from the fast path
	// (element is not an array) and then fails the generic path's
	// entry-must-be-object check.
	bad := gc.Scope(a.CreateArrayFromList([]types.Value{types.IntegerValue(1)}, gc))
	iterScoped := bad
	objectCtor := gc.Scope(mustGlobal(t, a, "Object"))
	fromEntries, thrown := a.Get(objectCtor.Get(gc.NoGC()), types.StringKey("fromEntries"), objectCtor.Get(gc.NoGC()), gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	_, thrown = a.Call(fromEntries, types.Undefined(), []types.Value{iterScoped.Get(gc.NoGC())}, gc)
	if kind := errorKindOf(t, a, thrown); kind != heap.TypeError {
		t.Fatalf("error kind = %s, want TypeError", kind.Name())
	}
}
