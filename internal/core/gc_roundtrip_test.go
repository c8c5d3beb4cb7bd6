package core

import (
	"fmt"
	"testing"

	"starling/internal/types"
)

// Property: for every allocation then collection, every scoped handle's
// observable identity (SameValue) is preserved. The stress agent collects
// at every safepoint, so each allocation below relocates the whole heap.
func TestScopedHandleIdentitySurvivesCollections(t *testing.T) {
	a := newStressAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	obj := gc.Scope(a.OrdinaryObjectCreate(a.Realm().Intrinsic(IntrObjectPrototype), gc))
	str := gc.Scope(a.heap.NewString(gc, "a long-lived string that must survive relocation"))

	if thrown := a.CreateDataPropertyOrThrow(obj.Get(gc.NoGC()), types.StringKey("s"), str.Get(gc.NoGC()), gc); thrown != nil {
		t.Fatal(thrown)
	}

	for round := 0; round < 64; round++ {
		// Churn: every one of these allocations triggers a collection.
		a.heap.NewString(gc, fmt.Sprintf("garbage churn round %d padding padding", round))
		a.OrdinaryObjectCreate(types.Null(), gc)

		n := gc.NoGC()
		got, thrown := a.Get(obj.Get(n), types.StringKey("s"), obj.Get(n), gc)
		if thrown != nil {
			t.Fatal(thrown)
		}
		if !a.SameValue(gc.NoGC(), got, str.Get(gc.NoGC())) {
			t.Fatalf("round %d: property identity diverged from scoped handle", round)
		}
		if a.heap.StringContent(gc.NoGC(), str.Get(gc.NoGC())) != "a long-lived string that must survive relocation" {
			t.Fatalf("round %d: string content corrupted", round)
		}
	}
	if a.Heap().Statistics().Collections < 64 {
		t.Fatalf("stress agent collected only %d times", a.Heap().Statistics().Collections)
	}
}

// The builtin surface itself must stay rooting-correct under stress: this
// re-runs key end-to-end scenarios with collect-at-every-safepoint.
func TestBuiltinsUnderStressGC(t *testing.T) {
	a := newStressAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	t.Run("fromEntries", func(t *testing.T) {
		entries := gc.Scope(entriesArray(a, gc, [][2]interface{}{{"x", 1}, {"y", 2}, {"x", 3}}))
		result := gc.Scope(callFromEntries(t, a, gc, entries.Get(gc.NoGC())))
		snap := objectSnapshot(t, a, gc, result.Get(gc.NoGC()))
		if snap["x"] != 3 || snap["y"] != 2 || len(snap) != 2 {
			t.Fatalf("snapshot = %v", snap)
		}
	})

	t.Run("freeze", func(t *testing.T) {
		obj := gc.Scope(newPlainObject(t, a, gc, "p", 10))
		if ok, thrown := a.SetIntegrityLevel(obj.Get(gc.NoGC()), Frozen, gc); thrown != nil || !ok {
			t.Fatalf("freeze under stress failed: %v", thrown)
		}
		frozen, thrown := a.TestIntegrityLevel(obj.Get(gc.NoGC()), Frozen, gc)
		if thrown != nil || !frozen {
			t.Fatal("frozen query failed under stress")
		}
	})

	t.Run("typedArrayJoin", func(t *testing.T) {
		buf := gc.Scope(newBuffer(t, a, gc, 4))
		ta := gc.Scope(constructTypedArray(t, a, gc, "Int16Array", buf.Get(gc.NoGC())))
		joined, thrown := callMethod(a, gc, ta.Get(gc.NoGC()), "join", a.heap.NewString(gc, "-"))
		if thrown != nil {
			t.Fatal(thrown)
		}
		if got := taString(t, a, gc, joined); got != "0-0" {
			t.Fatalf("join under stress = %q", got)
		}
	})

	t.Run("weakRefClearing", func(t *testing.T) {
		// An unrooted target dies at the next safepoint's collection.
		target := a.OrdinaryObjectCreate(types.Null(), gc)
		ref := gc.Scope(a.heap.NewWeakRef(gc, a.Realm().Intrinsic(IntrWeakRefPrototype), target))
		a.CollectGarbage()
		deref, thrown := callMethod(a, gc, ref.Get(gc.NoGC()), "deref", types.Undefined())
		if thrown != nil {
			t.Fatal(thrown)
		}
		if !deref.IsUndefined() {
			t.Fatal("dead weak target still observable after collection")
		}
	})
}
