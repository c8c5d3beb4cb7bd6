package core

import (
	"starling/internal/heap"
	"starling/internal/logging"
	"starling/internal/types"
)

// %TypedArray% and the per-element-kind concrete constructors. The
// intrinsic constructor is abstract: concrete constructors delegate their
// prototype chain here but construction of %TypedArray% itself throws.

func typedArrayAbstractConstructor(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	return a.Throw(gc, heap.TypeError, "Abstract class TypedArray not directly constructable").Completion()
}

// allocateTypedArray builds a view of the given kind over a fresh
// fixed-length buffer.
func (a *Agent) allocateTypedArray(kind types.ElementKind, length int64, gc *heap.Scope) (types.Value, *Thrown) {
	size := int64(kind.Size())
	buffer, err := a.heap.NewArrayBuffer(gc, a.realm.Intrinsic(IntrArrayBufferPrototype), length*size, -1, false)
	if err != nil {
		return types.Undefined(), a.Throw(gc, heap.RangeError, "invalid typed array length")
	}
	rec := heap.TypedArrayRecord{
		ObjectRecord: heap.NewObjectRecord(a.realm.TypedArrayPrototype(kind)),
		Buffer:       buffer,
		ByteOffset:   0,
		ByteLength:   length * size,
		ArrayLength:  length,
		Kind:         kind,
	}
	return a.heap.NewTypedArray(gc, rec), nil
}

// typedArrayKindConstructor builds the behaviour of one concrete
// constructor.
func typedArrayKindConstructor(kind types.ElementKind) NativeFunction {
	return func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		if newTarget.IsUndefined() {
			return a.Throw(gc, heap.TypeError, "Constructor %s requires 'new'", kind.ConstructorName()).Completion()
		}
		arg0 := args.Get(0)
		switch {
		case arg0.IsTypedArray():
			return a.initializeTypedArrayFromTypedArray(kind, arg0, gc)
		case arg0.Tag() == types.TagArrayBuffer || arg0.Tag() == types.TagSharedArrayBuffer:
			return a.initializeTypedArrayFromBuffer(kind, arg0, args.Get(1), args.Get(2), gc)
		case arg0.IsObject():
			return a.initializeTypedArrayFromObject(kind, arg0, gc)
		default:
			length, thrown := a.ToIndex(arg0, gc)
			if thrown != nil {
				return thrown.Completion()
			}
			ta, thrown := a.allocateTypedArray(kind, length, gc)
			return completionOf(ta, thrown)
		}
	}
}

func (a *Agent) initializeTypedArrayFromTypedArray(kind types.ElementKind, src types.Value, gc *heap.Scope) types.Completion {
	n := gc.NoGC()
	srcRec := a.heap.TypedArray(n, src.Index())
	srcKind := srcRec.Kind
	if srcKind.IsBigInt() != kind.IsBigInt() {
		return a.Throw(gc, heap.TypeError, "cannot mix BigInt and number typed arrays").Completion()
	}
	w := a.MakeTypedArrayWitness(n, src, heap.SeqCst)
	if a.IsTypedArrayOutOfBounds(n, w) {
		return a.Throw(gc, heap.TypeError, "source typed array is out of bounds").Completion()
	}
	length := a.TypedArrayLength(n, w)

	srcScoped := gc.Scope(src)
	ta, thrown := a.allocateTypedArray(kind, length, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	n = gc.NoGC()
	src = srcScoped.Get(n)
	srcRec = a.heap.TypedArray(n, src.Index())
	dstRec := a.heap.TypedArray(n, ta.Index())
	srcBuf := a.heap.Buffer(n, srcRec.Buffer.Index())
	dstBuf := a.heap.Buffer(n, dstRec.Buffer.Index())

	if srcKind == kind {
		copy(dstBuf.Data, srcBuf.Data[srcRec.ByteOffset:srcRec.ByteOffset+length*int64(kind.Size())])
		return types.NormalCompletion(ta)
	}
	srcSize, dstSize := int64(srcKind.Size()), int64(kind.Size())
	for i := int64(0); i < length; i++ {
		sb := srcBuf.Data[srcRec.ByteOffset+i*srcSize : srcRec.ByteOffset+(i+1)*srcSize]
		db := dstBuf.Data[i*dstSize : (i+1)*dstSize]
		if kind.IsBigInt() {
			bigIntToRawBytes(kind, rawBytesToBigInt(srcKind, sb), db)
		} else {
			floatToRawBytes(kind, rawBytesToFloat(srcKind, sb), db)
		}
	}
	return types.NormalCompletion(ta)
}

func (a *Agent) initializeTypedArrayFromBuffer(kind types.ElementKind, buffer, offsetArg, lengthArg types.Value, gc *heap.Scope) types.Completion {
	bufScoped := gc.Scope(buffer)
	lenScoped := gc.Scope(lengthArg)
	size := int64(kind.Size())

	offset, thrown := a.ToIndex(offsetArg, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	if offset%size != 0 {
		return a.Throw(gc, heap.RangeError, "start offset of %s must be a multiple of %d", kind.ConstructorName(), size).Completion()
	}

	explicitLength := int64(-1)
	if !lenScoped.Get(gc.NoGC()).IsUndefined() {
		explicitLength, thrown = a.ToIndex(lenScoped.Get(gc.NoGC()), gc)
		if thrown != nil {
			return thrown.Completion()
		}
	}

	n := gc.NoGC()
	buffer = bufScoped.Get(n)
	bufRec := a.heap.Buffer(n, buffer.Index())
	if bufRec.Detached {
		return a.Throw(gc, heap.TypeError, "cannot construct a typed array from a detached buffer").Completion()
	}
	bufferByteLength := bufRec.ByteLength(heap.SeqCst)

	rec := heap.TypedArrayRecord{
		ObjectRecord: heap.NewObjectRecord(a.realm.TypedArrayPrototype(kind)),
		Buffer:       buffer,
		ByteOffset:   offset,
		Kind:         kind,
	}
	switch {
	case explicitLength < 0 && bufRec.IsResizable():
		// Length-tracking view over a resizable/growable buffer.
		if offset > bufferByteLength {
			return a.Throw(gc, heap.RangeError, "start offset is outside the buffer").Completion()
		}
		rec.ByteLength = -1
		rec.ArrayLength = -1
	case explicitLength < 0:
		if bufferByteLength%size != 0 {
			return a.Throw(gc, heap.RangeError, "buffer length must be a multiple of %d", size).Completion()
		}
		newByteLength := bufferByteLength - offset
		if newByteLength < 0 {
			return a.Throw(gc, heap.RangeError, "start offset is outside the buffer").Completion()
		}
		rec.ByteLength = newByteLength
		rec.ArrayLength = newByteLength / size
	default:
		newByteLength := explicitLength * size
		if offset+newByteLength > bufferByteLength {
			return a.Throw(gc, heap.RangeError, "view extends past the end of the buffer").Completion()
		}
		rec.ByteLength = newByteLength
		rec.ArrayLength = explicitLength
	}
	return types.NormalCompletion(a.heap.NewTypedArray(gc, rec))
}

func (a *Agent) initializeTypedArrayFromObject(kind types.ElementKind, src types.Value, gc *heap.Scope) types.Completion {
	child := gc.Reborrow()
	defer child.Release()
	srcScoped := child.Scope(src)

	usingIterator, thrown := a.GetMethod(src, types.SymbolKey(a.wellKnown.Iterator.Index()), child)
	if thrown != nil {
		return thrown.Completion()
	}
	if !usingIterator.IsUndefined() {
		// Exhaust the iterator first; the collected values are rooted.
		rec, thrown := a.GetIterator(srcScoped.Get(child.NoGC()), SyncIterator, child)
		if thrown != nil {
			return thrown.Completion()
		}
		var values []heap.Scoped
		for {
			v, got, thrown := a.IteratorStepValue(rec, child)
			if thrown != nil {
				return thrown.Completion()
			}
			if !got {
				break
			}
			values = append(values, child.Scope(v))
		}
		ta, thrown := a.allocateTypedArray(kind, int64(len(values)), child)
		if thrown != nil {
			return thrown.Completion()
		}
		taScoped := child.Scope(ta)
		for i, vs := range values {
			if thrown := a.typedArrayElementSet(taScoped.Get(child.NoGC()), int64(i), vs.Get(child.NoGC()), child); thrown != nil {
				return thrown.Completion()
			}
		}
		return types.NormalCompletion(taScoped.Get(child.NoGC()))
	}

	length, thrown := a.LengthOfArrayLike(srcScoped.Get(child.NoGC()), child)
	if thrown != nil {
		return thrown.Completion()
	}
	ta, thrown := a.allocateTypedArray(kind, length, child)
	if thrown != nil {
		return thrown.Completion()
	}
	taScoped := child.Scope(ta)
	for i := int64(0); i < length; i++ {
		v, thrown := a.Get(srcScoped.Get(child.NoGC()), types.IntegerKey(i), srcScoped.Get(child.NoGC()), child)
		if thrown != nil {
			return thrown.Completion()
		}
		if thrown := a.typedArrayElementSet(taScoped.Get(child.NoGC()), i, v, child); thrown != nil {
			return thrown.Completion()
		}
	}
	return types.NormalCompletion(taScoped.Get(child.NoGC()))
}

// createTypedArrayIntrinsics installs %TypedArray%, its prototype, and the
// per-kind constructor/prototype pairs.
func createTypedArrayIntrinsics(a *Agent, r *Realm, gc *heap.Scope) {
	h := a.heap
	taProto := h.NewOrdinaryObject(gc, r.intrinsics[IntrObjectPrototype])
	r.intrinsics[IntrTypedArrayPrototype] = taProto

	taCtor := a.CreateBuiltinFunction(gc, BuiltinDef{
		Name: "TypedArray", Length: 0, Behaviour: typedArrayAbstractConstructor, IsConstructor: true,
	})
	r.intrinsics[IntrTypedArrayConstructor] = taCtor
	a.installConstructor(gc, taCtor, taProto)

	speciesKey := types.SymbolKey(a.wellKnown.Species.Index())
	a.installGetter(gc, taCtor, "[Symbol.species]", &speciesKey,
		func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
			return types.NormalCompletion(this)
		})

	installTypedArrayPrototypeMethods(a, r, gc)

	for _, kind := range types.ElementKinds {
		if kind == types.Float16Element && !a.features.Float16Array {
			continue
		}
		proto := h.NewOrdinaryObject(gc, taProto)
		r.taPrototypes[kind] = proto
		ctor := a.CreateBuiltinFunction(gc, BuiltinDef{
			Name: kind.ConstructorName(), Length: 3,
			Behaviour: typedArrayKindConstructor(kind), IsConstructor: true,
			Prototype: types.ValuePtr(taCtor),
		})
		r.taConstructors[kind] = ctor
		a.installConstructor(gc, ctor, proto)

		bpe := types.IntegerValue(int64(kind.Size()))
		a.installData(gc, ctor, types.StringKey("BYTES_PER_ELEMENT"), bpe, 0)
		a.installData(gc, proto, types.StringKey("BYTES_PER_ELEMENT"), bpe, 0)
	}

	logging.Get(logging.CategoryTypedArray).Debug("typed array intrinsics installed (float16=%v)", a.features.Float16Array)
}
