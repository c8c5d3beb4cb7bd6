package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// GroupKeyCoercion selects how GroupBy coerces group keys: to property keys
// for object-shaped grouping, to value identity (SameValue with -0
// normalized) for collection-shaped grouping.
type GroupKeyCoercion uint8

const (
	GroupByProperty GroupKeyCoercion = iota
	GroupByCollection
)

// GroupEntry is one key with its ordered elements. Keys and elements are
// rooted for the life of the caller's scope: grouping necessarily crosses a
// user callback per element.
type GroupEntry struct {
	keyIsSymbol   bool
	key           types.PropertyKey
	symKey        heap.Scoped
	collectionKey heap.Scoped
	Elements      []heap.Scoped
}

// Key returns the property key of a property-coerced group.
func (g *GroupEntry) Key(n heap.NoGC) types.PropertyKey {
	if g.keyIsSymbol {
		return types.SymbolKey(g.symKey.Get(n).Index())
	}
	return g.key
}

// CollectionKey returns the identity key of a collection-coerced group.
func (g *GroupEntry) CollectionKey(n heap.NoGC) types.Value {
	return g.collectionKey.Get(n)
}

// GroupBy iterates items, invokes callback with (value, index), coerces the
// returned key per the requested coercion, and accumulates ordered element
// lists per key.
func (a *Agent) GroupBy(items, callback types.Value, coercion GroupKeyCoercion, gc *heap.Scope) ([]*GroupEntry, *Thrown) {
	if thrown := a.RequireObjectCoercible(items, gc); thrown != nil {
		return nil, thrown
	}
	if !a.IsCallable(callback) {
		return nil, a.Throw(gc, heap.TypeError, "callback is not a function")
	}
	callbackScoped := gc.Scope(callback)

	rec, thrown := a.GetIterator(items, SyncIterator, gc)
	if thrown != nil {
		return nil, thrown
	}

	var groups []*GroupEntry
	for k := int64(0); ; k++ {
		if a.Interrupted() {
			return nil, a.IteratorClose(rec, a.Throw(gc, heap.PlainError, "execution interrupted by host"), gc)
		}
		if k >= types.MaxIntegerKey {
			return nil, a.IteratorClose(rec, a.Throw(gc, heap.TypeError, "grouping exceeded the maximum element count"), gc)
		}
		value, got, thrown := a.IteratorStepValue(rec, gc)
		if thrown != nil {
			return nil, thrown
		}
		if !got {
			return groups, nil
		}
		valueScoped := gc.Scope(value)

		keyResult, thrown := a.Call(callbackScoped.Get(gc.NoGC()), types.Undefined(),
			[]types.Value{valueScoped.Get(gc.NoGC()), types.IntegerValue(k)}, gc)
		if thrown = a.IfAbruptCloseIterator(thrown, rec, gc); thrown != nil {
			return nil, thrown
		}

		switch coercion {
		case GroupByProperty:
			propertyKey, thrown := a.ToPropertyKey(keyResult, gc)
			if thrown = a.IfAbruptCloseIterator(thrown, rec, gc); thrown != nil {
				return nil, thrown
			}
			groups = a.addToPropertyGroup(groups, propertyKey, valueScoped, gc)
		case GroupByCollection:
			// CanonicalizeKeyedCollectionKey: -0 folds into +0.
			if keyResult.Tag() == types.TagNegativeZero {
				keyResult = types.PositiveZero()
			}
			groups = a.addToCollectionGroup(groups, keyResult, valueScoped, gc)
		}
	}
}

func (a *Agent) addToPropertyGroup(groups []*GroupEntry, key types.PropertyKey, value heap.Scoped, gc *heap.Scope) []*GroupEntry {
	n := gc.NoGC()
	for _, g := range groups {
		if g.collectionKey != (heap.Scoped{}) {
			continue
		}
		if g.Key(n) == key {
			g.Elements = append(g.Elements, value)
			return groups
		}
	}
	entry := &GroupEntry{Elements: []heap.Scoped{value}}
	if key.IsSymbol() {
		entry.keyIsSymbol = true
		entry.symKey = gc.Scope(types.HeapValue(types.TagSymbol, key.SymbolIndex()))
	} else {
		entry.key = key
	}
	return append(groups, entry)
}

func (a *Agent) addToCollectionGroup(groups []*GroupEntry, key types.Value, value heap.Scoped, gc *heap.Scope) []*GroupEntry {
	n := gc.NoGC()
	for _, g := range groups {
		if g.collectionKey == (heap.Scoped{}) {
			continue
		}
		if a.SameValue(n, g.collectionKey.Get(n), key) {
			g.Elements = append(g.Elements, value)
			return groups
		}
	}
	return append(groups, &GroupEntry{collectionKey: gc.Scope(key), Elements: []heap.Scoped{value}})
}

// EntryAdder consumes one (key, value) pair of AddEntriesFromIterable.
type EntryAdder func(a *Agent, key, value types.Value, gc *heap.Scope) *Thrown

// AddEntriesFromIterable iterates entry objects, reading keys "0" and "1"
// from each, and feeds the adder. Entry failures close the iterator with the
// original completion preserved.
func (a *Agent) AddEntriesFromIterable(target, iterable types.Value, adder EntryAdder, gc *heap.Scope) (types.Value, *Thrown) {
	targetScoped := gc.Scope(target)
	rec, thrown := a.GetIterator(iterable, SyncIterator, gc)
	if thrown != nil {
		return types.Undefined(), thrown
	}
	for {
		next, got, thrown := a.IteratorStepValue(rec, gc)
		if thrown != nil {
			return types.Undefined(), thrown
		}
		if !got {
			return targetScoped.Get(gc.NoGC()), nil
		}
		if !next.IsObject() {
			thrown := a.Throw(gc, heap.TypeError, "iterator entry is not an object")
			return types.Undefined(), a.IteratorClose(rec, thrown, gc)
		}
		nextScoped := gc.Scope(next)
		k, thrown := a.Get(nextScoped.Get(gc.NoGC()), types.IntegerKey(0), nextScoped.Get(gc.NoGC()), gc)
		if thrown = a.IfAbruptCloseIterator(thrown, rec, gc); thrown != nil {
			return types.Undefined(), thrown
		}
		kScoped := gc.Scope(k)
		v, thrown := a.Get(nextScoped.Get(gc.NoGC()), types.IntegerKey(1), nextScoped.Get(gc.NoGC()), gc)
		if thrown = a.IfAbruptCloseIterator(thrown, rec, gc); thrown != nil {
			return types.Undefined(), thrown
		}
		thrown = adder(a, kScoped.Get(gc.NoGC()), v, gc)
		if thrown = a.IfAbruptCloseIterator(thrown, rec, gc); thrown != nil {
			return types.Undefined(), thrown
		}
	}
}
