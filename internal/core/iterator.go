package core

import (
	"starling/internal/heap"
	"starling/internal/logging"
	"starling/internal/types"
)

// IteratorHint selects the sync or async iteration protocol.
type IteratorHint uint8

const (
	SyncIterator IteratorHint = iota
	AsyncIterator
)

// IteratorRecord is the {iterator, next, done} triple. Both values are
// scoped into the caller's GC scope, so the record stays valid across the
// user-code safepoints iteration necessarily crosses.
type IteratorRecord struct {
	Iterator heap.Scoped
	Next     heap.Scoped
	Done     bool
}

// GetIterator reads @@iterator (or @@asyncIterator), calls it, verifies the
// result is an object, and captures the next method.
func (a *Agent) GetIterator(v types.Value, hint IteratorHint, gc *heap.Scope) (*IteratorRecord, *Thrown) {
	vScoped := gc.Scope(v)
	key := a.wellKnown.Iterator
	if hint == AsyncIterator {
		key = a.wellKnown.AsyncIterator
	}
	method, thrown := a.GetMethod(vScoped.Get(gc.NoGC()), types.SymbolKey(key.Index()), gc)
	if thrown != nil {
		return nil, thrown
	}
	if method.IsUndefined() {
		return nil, a.Throw(gc, heap.TypeError, "value is not iterable")
	}
	iterator, thrown := a.Call(method, vScoped.Get(gc.NoGC()), nil, gc)
	if thrown != nil {
		return nil, thrown
	}
	if !iterator.IsObject() {
		return nil, a.Throw(gc, heap.TypeError, "iterator is not an object")
	}
	itScoped := gc.Scope(iterator)
	next, thrown := a.GetV(itScoped.Get(gc.NoGC()), types.StringKey("next"), gc)
	if thrown != nil {
		return nil, thrown
	}
	return &IteratorRecord{Iterator: itScoped, Next: gc.Scope(next)}, nil
}

// IteratorNext invokes the captured next method and returns the raw result
// object; a non-object result closes the iterator and reports the protocol
// violation.
func (a *Agent) IteratorNext(rec *IteratorRecord, gc *heap.Scope) (types.Value, *Thrown) {
	n := gc.NoGC()
	result, thrown := a.Call(rec.Next.Get(n), rec.Iterator.Get(n), nil, gc)
	if thrown != nil {
		rec.Done = true
		return types.Undefined(), thrown
	}
	if !result.IsObject() {
		rec.Done = true
		thrown = a.Throw(gc, heap.TypeError, "iterator result is not an object")
		return types.Undefined(), a.IteratorClose(rec, thrown, gc)
	}
	return result, nil
}

// IteratorStepValue advances the iterator. It returns the step's value and
// true, or false on exhaustion. Failures mark the record done.
func (a *Agent) IteratorStepValue(rec *IteratorRecord, gc *heap.Scope) (types.Value, bool, *Thrown) {
	result, thrown := a.IteratorNext(rec, gc)
	if thrown != nil {
		return types.Undefined(), false, thrown
	}
	resScoped := gc.Scope(result)
	doneV, thrown := a.Get(resScoped.Get(gc.NoGC()), types.StringKey("done"), resScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		rec.Done = true
		return types.Undefined(), false, thrown
	}
	if a.ToBoolean(doneV) {
		rec.Done = true
		return types.Undefined(), false, nil
	}
	value, thrown := a.Get(resScoped.Get(gc.NoGC()), types.StringKey("value"), resScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		rec.Done = true
		return types.Undefined(), false, thrown
	}
	return value, true, nil
}

// IteratorClose invokes return (when present) and propagates the prior
// completion preferentially over anything return itself throws.
func (a *Agent) IteratorClose(rec *IteratorRecord, prior *Thrown, gc *heap.Scope) *Thrown {
	n := gc.NoGC()
	returnFn, thrown := a.GetMethod(rec.Iterator.Get(n), types.StringKey("return"), gc)
	if thrown != nil {
		if prior != nil {
			return prior
		}
		return thrown
	}
	if returnFn.IsUndefined() {
		return prior
	}
	result, thrown := a.Call(returnFn, rec.Iterator.Get(gc.NoGC()), nil, gc)
	if prior != nil {
		return prior
	}
	if thrown != nil {
		return thrown
	}
	if !result.IsObject() {
		return a.Throw(gc, heap.TypeError, "iterator return result is not an object")
	}
	return nil
}

// IfAbruptCloseIterator short-circuits on error after closing the iterator.
func (a *Agent) IfAbruptCloseIterator(thrown *Thrown, rec *IteratorRecord, gc *heap.Scope) *Thrown {
	if thrown == nil {
		return nil
	}
	return a.IteratorClose(rec, thrown, gc)
}

// CreateIterResultObject builds the {value, done} step result.
func (a *Agent) CreateIterResultObject(value types.Value, done bool, gc *heap.Scope) types.Value {
	vScoped := gc.Scope(value)
	obj := a.heap.NewOrdinaryObject(gc, a.realm.Intrinsic(IntrObjectPrototype))
	n := gc.NoGC()
	shape := a.heap.ObjectShape(n, obj)
	attrs := heap.AttrWritable | heap.AttrEnumerable | heap.AttrConfigurable
	shape.SetProperty(types.StringKey("value"), heap.Property{Value: vScoped.Get(n), Attrs: attrs})
	shape.SetProperty(types.StringKey("done"), heap.Property{Value: types.BooleanValue(done), Attrs: attrs})
	return obj
}

// ============================================================================
// ARRAY ITERATOR
// ============================================================================

// CreateArrayIterator builds an iterator object over an array or typed
// array, driving keys/values/entries.
func (a *Agent) CreateArrayIterator(array types.Value, kind EnumKind, gc *heap.Scope) types.Value {
	child := gc.Reborrow()
	defer child.Release()
	arrScoped := child.Scope(array)
	obj := a.heap.NewOrdinaryObject(child, a.realm.Intrinsic(IntrArrayIteratorPrototype))
	n := child.NoGC()
	shape := a.heap.ObjectShape(n, obj)
	shape.SetProperty(types.SymbolKey(a.internalSyms.iteratedObject.Index()),
		heap.Property{Value: arrScoped.Get(n)})
	shape.SetProperty(types.SymbolKey(a.internalSyms.iteratorIndex.Index()),
		heap.Property{Value: types.IntegerValue(0)})
	shape.SetProperty(types.SymbolKey(a.internalSyms.iteratorKind.Index()),
		heap.Property{Value: types.IntegerValue(int64(kind))})
	return obj
}

func (a *Agent) arrayIteratorSlot(n heap.NoGC, iter types.Value, sym types.Value) (types.Value, bool) {
	if !iter.IsObject() {
		return types.Undefined(), false
	}
	shape := a.heap.ObjectShape(n, iter)
	i := shape.FindKey(types.SymbolKey(sym.Index()))
	if i < 0 {
		return types.Undefined(), false
	}
	return shape.Props[i].Value, true
}

func (a *Agent) setArrayIteratorSlot(n heap.NoGC, iter types.Value, sym types.Value, v types.Value) {
	shape := a.heap.ObjectShape(n, iter)
	shape.SetProperty(types.SymbolKey(sym.Index()), heap.Property{Value: v})
}

// arrayIteratorNext is %ArrayIteratorPrototype%.next.
func arrayIteratorNext(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	n := gc.NoGC()
	target, ok := a.arrayIteratorSlot(n, this, a.internalSyms.iteratedObject)
	if !ok {
		return a.Throw(gc, heap.TypeError, "this is not an array iterator").Completion()
	}
	if target.IsUndefined() {
		return types.NormalCompletion(a.CreateIterResultObject(types.Undefined(), true, gc))
	}
	indexV, _ := a.arrayIteratorSlot(n, this, a.internalSyms.iteratorIndex)
	kindV, _ := a.arrayIteratorSlot(n, this, a.internalSyms.iteratorKind)
	index := indexV.Integer()
	kind := EnumKind(kindV.Integer())

	thisScoped := gc.Scope(this)
	targetScoped := gc.Scope(target)

	var length int64
	switch {
	case target.IsTypedArray():
		w := a.MakeTypedArrayWitness(n, target, heap.SeqCst)
		if a.IsTypedArrayOutOfBounds(n, w) {
			return a.Throw(gc, heap.TypeError, "typed array is out of bounds").Completion()
		}
		length = a.TypedArrayLength(n, w)
	case target.Tag() == types.TagArray:
		length = int64(a.heap.Array(n, target.Index()).Length)
	default:
		var thrown *Thrown
		length, thrown = a.LengthOfArrayLike(targetScoped.Get(gc.NoGC()), gc)
		if thrown != nil {
			return thrown.Completion()
		}
	}

	if index >= length {
		a.setArrayIteratorSlot(gc.NoGC(), thisScoped.Get(gc.NoGC()), a.internalSyms.iteratedObject, types.Undefined())
		return types.NormalCompletion(a.CreateIterResultObject(types.Undefined(), true, gc))
	}
	a.setArrayIteratorSlot(gc.NoGC(), thisScoped.Get(gc.NoGC()), a.internalSyms.iteratorIndex, types.IntegerValue(index+1))

	if kind == EnumKey {
		return types.NormalCompletion(a.CreateIterResultObject(types.IntegerValue(index), false, gc))
	}

	element, thrown := a.Get(targetScoped.Get(gc.NoGC()), types.IntegerKey(index), targetScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	if kind == EnumValue {
		return types.NormalCompletion(a.CreateIterResultObject(element, false, gc))
	}
	elemScoped := gc.Scope(element)
	pair := a.CreateArrayFromList([]types.Value{types.IntegerValue(index), elemScoped.Get(gc.NoGC())}, gc)
	return types.NormalCompletion(a.CreateIterResultObject(pair, false, gc))
}

// createIteratorIntrinsics installs %Iterator.prototype% and
// %ArrayIterator.prototype%.
func createIteratorIntrinsics(a *Agent, r *Realm, gc *heap.Scope) {
	h := a.heap
	iterProto := h.NewOrdinaryObject(gc, r.intrinsics[IntrObjectPrototype])
	r.intrinsics[IntrIteratorPrototype] = iterProto

	// %Iterator.prototype%[@@iterator] returns this.
	iterKey := types.SymbolKey(a.wellKnown.Iterator.Index())
	a.installMethod(gc, iterProto, BuiltinDef{
		Name: "[Symbol.iterator]", Length: 0, Key: &iterKey,
		Behaviour: func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
			return types.NormalCompletion(this)
		},
	})

	arrayIterProto := h.NewOrdinaryObject(gc, r.intrinsics[IntrIteratorPrototype])
	r.intrinsics[IntrArrayIteratorPrototype] = arrayIterProto
	a.installMethod(gc, arrayIterProto, BuiltinDef{Name: "next", Length: 0, Behaviour: arrayIteratorNext})

	logging.Get(logging.CategoryIterator).Debug("iterator intrinsics installed")
}
