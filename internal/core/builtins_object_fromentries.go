package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// Object.fromEntries. The fast path covers a simple, dense array of
// two-element simple, dense arrays whose keys convert without running user
// code, and whose iteration would use the intrinsic array values iterator.
// Duplicate keys replace in place, preserving first-insertion order. Any
// failed precondition falls back to the generic AddEntriesFromIterable path.
func objectFromEntries(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	iterable := args.Get(0)

	if iterable.Tag() == types.TagArray {
		if obj, ok := a.fromEntriesFastPath(iterable, gc); ok {
			return types.NormalCompletion(obj)
		}
	}

	if thrown := a.RequireObjectCoercible(iterable, gc); thrown != nil {
		return thrown.Completion()
	}
	iterScoped := gc.Scope(iterable)
	obj := a.OrdinaryObjectCreate(a.realm.Intrinsic(IntrObjectPrototype), gc)

	// The adder is the inlined Object.fromEntries specialization: it
	// defines a data property on the closed-over result object, re-read
	// from its root on every call.
	objScoped := gc.Scope(obj)
	result, thrown := a.AddEntriesFromIterable(objScoped.Get(gc.NoGC()), iterScoped.Get(gc.NoGC()),
		func(a *Agent, key, value types.Value, gc *heap.Scope) *Thrown {
			vScoped := gc.Scope(value)
			propertyKey, thrown := a.ToPropertyKey(key, gc)
			if thrown != nil {
				return thrown
			}
			return a.CreateDataPropertyOrThrow(objScoped.Get(gc.NoGC()), propertyKey, vScoped.Get(gc.NoGC()), gc)
		}, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	return types.NormalCompletion(result)
}

// fromEntriesFastPath builds the result object with direct heap entry
// insertion. It reports ok=false whenever the generic path must run instead.
func (a *Agent) fromEntriesFastPath(entriesArray types.Value, gc *heap.Scope) (types.Value, bool) {
	n := gc.NoGC()

	// The fast path is only sound if iterating the array would use the
	// intrinsic array values iterator: no own @@iterator, the intrinsic
	// array prototype, and an unmodified @@iterator slot on it.
	iterKey := types.SymbolKey(a.wellKnown.Iterator.Index())
	method, ok := a.TryGet(entriesArray, iterKey, entriesArray, n)
	if !ok || method != a.realm.Intrinsic(IntrArrayPrototypeValues) {
		return types.Undefined(), false
	}

	rec := a.heap.Array(n, entriesArray.Index())
	if !rec.IsSimple() || !rec.IsDense() {
		return types.Undefined(), false
	}

	// Separate key vector to detect duplicates; replacement keeps the
	// original position.
	entryKeys := make([]types.PropertyKey, 0, len(rec.Elements))
	entryValues := make([]types.Value, 0, len(rec.Elements))
	for _, entry := range rec.Elements {
		if entry.Tag() != types.TagArray {
			return types.Undefined(), false
		}
		entryRec := a.heap.Array(n, entry.Index())
		if entryRec.Length != 2 || !entryRec.IsSimple() || !entryRec.IsDense() {
			return types.Undefined(), false
		}
		key, ok := a.ToPropertyKeySimple(entryRec.Elements[0], n)
		if !ok || key.IsSymbol() {
			// Symbol keys take the generic path: the pre-filled object
			// constructor does not carry symbol keys through relocation.
			return types.Undefined(), false
		}
		value := entryRec.Elements[1]
		replaced := false
		for i, existing := range entryKeys {
			if existing == key {
				entryValues[i] = value
				replaced = true
				break
			}
		}
		if !replaced {
			entryKeys = append(entryKeys, key)
			entryValues = append(entryValues, value)
		}
	}

	obj := a.heap.NewOrdinaryObjectWithEntries(gc, a.realm.Intrinsic(IntrObjectPrototype), entryKeys, entryValues)
	return obj, true
}
