package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// ArrayBuffer: the minimum surface the typed-array layer observes -
// construction (fixed and resizable), byteLength, resize, isView, and the
// host detach hook on Agent.

func arrayBufferConstructor(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if newTarget.IsUndefined() {
		return a.Throw(gc, heap.TypeError, "Constructor ArrayBuffer requires 'new'").Completion()
	}
	optionsScoped := gc.Scope(args.Get(1))
	byteLength, thrown := a.ToIndex(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	maxByteLength := int64(-1)
	options := optionsScoped.Get(gc.NoGC())
	if options.IsObject() {
		maxV, thrown := a.Get(options, types.StringKey("maxByteLength"), options, gc)
		if thrown != nil {
			return thrown.Completion()
		}
		if !maxV.IsUndefined() {
			maxByteLength, thrown = a.ToIndex(maxV, gc)
			if thrown != nil {
				return thrown.Completion()
			}
			if byteLength > maxByteLength {
				return a.Throw(gc, heap.RangeError, "byteLength exceeds maxByteLength").Completion()
			}
		}
	}
	buf, err := a.heap.NewArrayBuffer(gc, a.realm.Intrinsic(IntrArrayBufferPrototype), byteLength, maxByteLength, false)
	if err != nil {
		return a.Throw(gc, heap.RangeError, "invalid array buffer length").Completion()
	}
	return types.NormalCompletion(buf)
}

func arrayBufferByteLengthGetter(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	i, err := bufferIndex(this)
	if err != nil {
		return a.Throw(gc, heap.TypeError, "this is not an ArrayBuffer").Completion()
	}
	rec := a.heap.Buffer(gc.NoGC(), i)
	return types.NormalCompletion(a.heap.NewNumber(gc, float64(rec.ByteLength(heap.SeqCst))))
}

func arrayBufferMaxByteLengthGetter(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	i, err := bufferIndex(this)
	if err != nil {
		return a.Throw(gc, heap.TypeError, "this is not an ArrayBuffer").Completion()
	}
	rec := a.heap.Buffer(gc.NoGC(), i)
	if !rec.IsResizable() {
		return types.NormalCompletion(a.heap.NewNumber(gc, float64(rec.ByteLength(heap.SeqCst))))
	}
	return types.NormalCompletion(a.heap.NewNumber(gc, float64(rec.MaxByteLength)))
}

func arrayBufferResizableGetter(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	i, err := bufferIndex(this)
	if err != nil {
		return a.Throw(gc, heap.TypeError, "this is not an ArrayBuffer").Completion()
	}
	return types.NormalCompletion(types.BooleanValue(a.heap.Buffer(gc.NoGC(), i).IsResizable()))
}

func arrayBufferResize(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if _, err := this.IndexFor(types.TagArrayBuffer); err != nil {
		return a.Throw(gc, heap.TypeError, "this is not a resizable ArrayBuffer").Completion()
	}
	thisScoped := gc.Scope(this)
	newLength, thrown := a.ToIndex(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	rec := a.heap.Buffer(gc.NoGC(), thisScoped.Get(gc.NoGC()).Index())
	if !rec.IsResizable() {
		return a.Throw(gc, heap.TypeError, "this is not a resizable ArrayBuffer").Completion()
	}
	if rec.Detached {
		return a.Throw(gc, heap.TypeError, "ArrayBuffer is detached").Completion()
	}
	if newLength > rec.MaxByteLength {
		return a.Throw(gc, heap.RangeError, "resize beyond maxByteLength").Completion()
	}
	old := rec.ByteLength(heap.Unordered)
	rec.Data = rec.Data[:newLength]
	if newLength > old {
		for j := old; j < newLength; j++ {
			rec.Data[j] = 0
		}
	}
	rec.SetByteLength(newLength)
	return types.NormalCompletion(types.Undefined())
}

func arrayBufferIsView(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	v := args.Get(0)
	isView := v.IsTypedArray() || v.Tag() == types.TagDataView
	return types.NormalCompletion(types.BooleanValue(isView))
}

func bufferIndex(v types.Value) (uint32, error) {
	if i, err := v.IndexFor(types.TagArrayBuffer); err == nil {
		return i, nil
	}
	return v.IndexFor(types.TagSharedArrayBuffer)
}

func createArrayBufferIntrinsics(a *Agent, r *Realm, gc *heap.Scope) {
	h := a.heap
	proto := h.NewOrdinaryObject(gc, r.intrinsics[IntrObjectPrototype])
	r.intrinsics[IntrArrayBufferPrototype] = proto

	ctor := a.CreateBuiltinFunction(gc, BuiltinDef{
		Name: "ArrayBuffer", Length: 1, Behaviour: arrayBufferConstructor, IsConstructor: true,
	})
	r.intrinsics[IntrArrayBufferConstructor] = ctor
	a.installConstructor(gc, ctor, proto)
	a.installMethod(gc, ctor, BuiltinDef{Name: "isView", Length: 1, Behaviour: arrayBufferIsView})

	a.installGetter(gc, proto, "byteLength", nil, arrayBufferByteLengthGetter)
	a.installGetter(gc, proto, "maxByteLength", nil, arrayBufferMaxByteLengthGetter)
	a.installGetter(gc, proto, "resizable", nil, arrayBufferResizableGetter)
	a.installMethod(gc, proto, BuiltinDef{Name: "resize", Length: 1, Behaviour: arrayBufferResize})

	tagKey := types.SymbolKey(a.wellKnown.ToStringTag.Index())
	a.installData(gc, proto, tagKey, h.NewString(gc, "ArrayBuffer"), heap.AttrConfigurable)
}
