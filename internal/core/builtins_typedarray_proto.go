package core

import (
	"math"
	"math/big"
	"strings"

	"starling/internal/heap"
	"starling/internal/types"
)

// %TypedArray.prototype% methods. Every method samples a seq-cst witness on
// entry and re-witnesses whenever a user callback or conversion may have
// detached or resized the buffer; element access revalidates per element.

func requireTypedArray(a *Agent, this types.Value, gc *heap.Scope) (TypedArrayWitness, *Thrown) {
	return a.ValidateTypedArray(this, heap.SeqCst, gc)
}

// get %TypedArray.prototype%.length
func typedArrayLengthGetter(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if !this.IsTypedArray() {
		return a.Throw(gc, heap.TypeError, "this is not a typed array").Completion()
	}
	n := gc.NoGC()
	w := a.MakeTypedArrayWitness(n, this, heap.SeqCst)
	return types.NormalCompletion(types.IntegerValue(a.TypedArrayLength(n, w)))
}

// get %TypedArray.prototype%.byteLength
func typedArrayByteLengthGetter(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if !this.IsTypedArray() {
		return a.Throw(gc, heap.TypeError, "this is not a typed array").Completion()
	}
	n := gc.NoGC()
	w := a.MakeTypedArrayWitness(n, this, heap.SeqCst)
	return types.NormalCompletion(types.IntegerValue(a.TypedArrayByteLength(n, w)))
}

// get %TypedArray.prototype%.byteOffset
func typedArrayByteOffsetGetter(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if !this.IsTypedArray() {
		return a.Throw(gc, heap.TypeError, "this is not a typed array").Completion()
	}
	n := gc.NoGC()
	w := a.MakeTypedArrayWitness(n, this, heap.SeqCst)
	if a.IsTypedArrayOutOfBounds(n, w) {
		return types.NormalCompletion(types.PositiveZero())
	}
	return types.NormalCompletion(types.IntegerValue(a.heap.TypedArray(n, this.Index()).ByteOffset))
}

// get %TypedArray.prototype%.buffer
func typedArrayBufferGetter(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if !this.IsTypedArray() {
		return a.Throw(gc, heap.TypeError, "this is not a typed array").Completion()
	}
	return types.NormalCompletion(a.heap.TypedArray(gc.NoGC(), this.Index()).Buffer)
}

// get %TypedArray.prototype%[@@toStringTag]
func typedArrayToStringTagGetter(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if !this.IsTypedArray() {
		return types.NormalCompletion(types.Undefined())
	}
	kind := types.ElementKindOf(this.Tag())
	return types.NormalCompletion(a.heap.NewString(gc, kind.ConstructorName()))
}

// %TypedArray.prototype%.at
func typedArrayAt(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	w, thrown := requireTypedArray(a, this, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	length := a.TypedArrayLength(gc.NoGC(), w)
	thisScoped := gc.Scope(this)
	rel, thrown := a.ToIntegerOrInfinity(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	if math.IsInf(rel, 0) {
		return types.NormalCompletion(types.Undefined())
	}
	k := int64(rel)
	if rel < 0 {
		k = length + int64(rel)
	}
	if k < 0 || k >= length {
		return types.NormalCompletion(types.Undefined())
	}
	v, _ := a.typedArrayElementGet(thisScoped.Get(gc.NoGC()), k, gc)
	return types.NormalCompletion(v)
}

// %TypedArray.prototype%.keys / values / entries
func typedArrayIterationBehaviour(kind EnumKind) NativeFunction {
	return func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		if _, thrown := requireTypedArray(a, this, gc); thrown != nil {
			return thrown.Completion()
		}
		return types.NormalCompletion(a.CreateArrayIterator(this, kind, gc))
	}
}

// %TypedArray.prototype%.every / some / forEach
func typedArrayCallbackBehaviour(mode string) NativeFunction {
	return func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		w, thrown := requireTypedArray(a, this, gc)
		if thrown != nil {
			return thrown.Completion()
		}
		length := a.TypedArrayLength(gc.NoGC(), w)
		callback := args.Get(0)
		if !a.IsCallable(callback) {
			return a.Throw(gc, heap.TypeError, "callback is not a function").Completion()
		}
		thisScoped := gc.Scope(this)
		callbackScoped := gc.Scope(callback)
		thisArgScoped := gc.Scope(args.Get(1))
		for k := int64(0); k < length; k++ {
			if a.Interrupted() {
				return a.Throw(gc, heap.PlainError, "execution interrupted by host").Completion()
			}
			kValue, _ := a.typedArrayElementGet(thisScoped.Get(gc.NoGC()), k, gc)
			result, thrown := a.Call(callbackScoped.Get(gc.NoGC()), thisArgScoped.Get(gc.NoGC()),
				[]types.Value{kValue, types.IntegerValue(k), thisScoped.Get(gc.NoGC())}, gc)
			if thrown != nil {
				return thrown.Completion()
			}
			switch mode {
			case "every":
				if !a.ToBoolean(result) {
					return types.NormalCompletion(types.BooleanValue(false))
				}
			case "some":
				if a.ToBoolean(result) {
					return types.NormalCompletion(types.BooleanValue(true))
				}
			}
		}
		switch mode {
		case "every":
			return types.NormalCompletion(types.BooleanValue(true))
		case "some":
			return types.NormalCompletion(types.BooleanValue(false))
		}
		return types.NormalCompletion(types.Undefined())
	}
}

// %TypedArray.prototype%.includes
func typedArrayIncludes(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	w, thrown := requireTypedArray(a, this, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	length := a.TypedArrayLength(gc.NoGC(), w)
	if length == 0 {
		return types.NormalCompletion(types.BooleanValue(false))
	}
	thisScoped := gc.Scope(this)
	searchScoped := gc.Scope(args.Get(0))
	fromIndex, thrown := a.ToIntegerOrInfinity(args.Get(1), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	if math.IsInf(fromIndex, 1) {
		return types.NormalCompletion(types.BooleanValue(false))
	}
	k := int64(0)
	switch {
	case math.IsInf(fromIndex, -1):
		k = 0
	case fromIndex >= 0:
		k = int64(fromIndex)
	default:
		k = length + int64(fromIndex)
		if k < 0 {
			k = 0
		}
	}
	for ; k < length; k++ {
		element, _ := a.typedArrayElementGet(thisScoped.Get(gc.NoGC()), k, gc)
		if a.SameValueZero(gc.NoGC(), searchScoped.Get(gc.NoGC()), element) {
			return types.NormalCompletion(types.BooleanValue(true))
		}
	}
	return types.NormalCompletion(types.BooleanValue(false))
}

// %TypedArray.prototype%.indexOf / lastIndexOf
func typedArrayIndexSearch(last bool) NativeFunction {
	return func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		w, thrown := requireTypedArray(a, this, gc)
		if thrown != nil {
			return thrown.Completion()
		}
		length := a.TypedArrayLength(gc.NoGC(), w)
		if length == 0 {
			return types.NormalCompletion(types.IntegerValue(-1))
		}
		thisScoped := gc.Scope(this)
		searchScoped := gc.Scope(args.Get(0))

		var k int64
		if last {
			k = length - 1
			if len(args) > 1 {
				fromIndex, thrown := a.ToIntegerOrInfinity(args.Get(1), gc)
				if thrown != nil {
					return thrown.Completion()
				}
				if math.IsInf(fromIndex, -1) {
					return types.NormalCompletion(types.IntegerValue(-1))
				}
				if fromIndex >= 0 {
					if int64(fromIndex) < k {
						k = int64(fromIndex)
					}
				} else {
					k = length + int64(fromIndex)
				}
			}
			for ; k >= 0; k-- {
				element, ok := a.typedArrayElementGet(thisScoped.Get(gc.NoGC()), k, gc)
				if ok && a.IsStrictlyEqual(gc.NoGC(), searchScoped.Get(gc.NoGC()), element) {
					return types.NormalCompletion(types.IntegerValue(k))
				}
			}
			return types.NormalCompletion(types.IntegerValue(-1))
		}

		fromIndex, thrown := a.ToIntegerOrInfinity(args.Get(1), gc)
		if thrown != nil {
			return thrown.Completion()
		}
		if math.IsInf(fromIndex, 1) {
			return types.NormalCompletion(types.IntegerValue(-1))
		}
		switch {
		case math.IsInf(fromIndex, -1):
			k = 0
		case fromIndex >= 0:
			k = int64(fromIndex)
		default:
			k = length + int64(fromIndex)
			if k < 0 {
				k = 0
			}
		}
		for ; k < length; k++ {
			element, ok := a.typedArrayElementGet(thisScoped.Get(gc.NoGC()), k, gc)
			if ok && a.IsStrictlyEqual(gc.NoGC(), searchScoped.Get(gc.NoGC()), element) {
				return types.NormalCompletion(types.IntegerValue(k))
			}
		}
		return types.NormalCompletion(types.IntegerValue(-1))
	}
}

// %TypedArray.prototype%.join
//
// A view over a detached or shrunk buffer observes as empty rather than
// throwing: the witness length collapses to zero and every element renders
// as the empty string.
func typedArrayJoin(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if !this.IsTypedArray() {
		return a.Throw(gc, heap.TypeError, "this is not a typed array").Completion()
	}
	n := gc.NoGC()
	w := a.MakeTypedArrayWitness(n, this, heap.SeqCst)
	length := a.TypedArrayLength(n, w)
	thisScoped := gc.Scope(this)

	sep := ","
	separator := args.Get(0)
	var thrown *Thrown
	if !separator.IsUndefined() {
		sep, thrown = a.ToStringContent(separator, gc)
		if thrown != nil {
			return thrown.Completion()
		}
	}
	if length == 0 {
		return types.NormalCompletion(a.heap.NewString(gc, ""))
	}

	var b strings.Builder
	for k := int64(0); k < length; k++ {
		if k > 0 {
			b.WriteString(sep)
		}
		n := gc.NoGC()
		bytes := a.typedArrayElementBytes(n, thisScoped.Get(n), k)
		if bytes == nil {
			continue // detached or shrunk under the conversion: element renders empty
		}
		kind := a.heap.TypedArray(n, thisScoped.Get(n).Index()).Kind
		if kind.IsBigInt() {
			b.WriteString(rawBytesToBigInt(kind, bytes).String())
		} else {
			b.WriteString(numberToString(rawBytesToFloat(kind, bytes)))
		}
	}
	return types.NormalCompletion(a.heap.NewString(gc, b.String()))
}

// %TypedArray.prototype%.fill
func typedArrayFill(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	w, thrown := requireTypedArray(a, this, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	length := a.TypedArrayLength(gc.NoGC(), w)
	thisScoped := gc.Scope(this)
	kind := a.heap.TypedArray(gc.NoGC(), this.Index()).Kind

	var fillBig *big.Int
	var fillFloat float64
	if kind.IsBigInt() {
		fillBig, thrown = a.ToBigInt(args.Get(0), gc)
	} else {
		fillFloat, thrown = a.ToNumber(args.Get(0), gc)
	}
	if thrown != nil {
		return thrown.Completion()
	}

	start, thrown := a.ToIntegerOrInfinity(args.Get(1), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	k := relativeIndex(start, length)
	end := length
	if !args.Get(2).IsUndefined() {
		e, thrown := a.ToIntegerOrInfinity(args.Get(2), gc)
		if thrown != nil {
			return thrown.Completion()
		}
		end = relativeIndex(e, length)
	}

	// Conversions may have resized or detached the buffer: re-witness and
	// clamp before the raw writes.
	n := gc.NoGC()
	ta := thisScoped.Get(n)
	w = a.MakeTypedArrayWitness(n, ta, heap.SeqCst)
	if a.IsTypedArrayOutOfBounds(n, w) {
		return a.Throw(gc, heap.TypeError, "typed array is out of bounds").Completion()
	}
	if l := a.TypedArrayLength(n, w); l < end {
		end = l
	}
	for ; k < end; k++ {
		b := a.typedArrayElementBytes(n, ta, k)
		if b == nil {
			break
		}
		if kind.IsBigInt() {
			bigIntToRawBytes(kind, fillBig, b)
		} else {
			floatToRawBytes(kind, fillFloat, b)
		}
	}
	return types.NormalCompletion(ta)
}

// relativeIndex clamps a relative position into [0, length].
func relativeIndex(rel float64, length int64) int64 {
	if math.IsInf(rel, -1) {
		return 0
	}
	if math.IsInf(rel, 1) {
		return length
	}
	var k int64
	if rel >= 0 {
		k = int64(rel)
	} else {
		k = length + int64(rel)
		if k < 0 {
			k = 0
		}
	}
	if k > length {
		k = length
	}
	return k
}

// %TypedArray.prototype%.reverse
func typedArrayReverse(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	w, thrown := requireTypedArray(a, this, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	n := gc.NoGC()
	length := a.TypedArrayLength(n, w)
	size := int64(a.heap.TypedArray(n, this.Index()).Kind.Size())
	tmp := make([]byte, size)
	for lo, hi := int64(0), length-1; lo < hi; lo, hi = lo+1, hi-1 {
		lb := a.typedArrayElementBytes(n, this, lo)
		hb := a.typedArrayElementBytes(n, this, hi)
		if lb == nil || hb == nil {
			break
		}
		copy(tmp, lb)
		copy(lb, hb)
		copy(hb, tmp)
	}
	return types.NormalCompletion(this)
}

// %TypedArray.prototype%.set
func typedArraySet(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if !this.IsTypedArray() {
		return a.Throw(gc, heap.TypeError, "this is not a typed array").Completion()
	}
	thisScoped := gc.Scope(this)
	sourceScoped := gc.Scope(args.Get(0))
	offset, thrown := a.ToIntegerOrInfinity(args.Get(1), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	if offset < 0 || math.IsInf(offset, 1) {
		return a.Throw(gc, heap.RangeError, "offset is out of bounds").Completion()
	}

	n := gc.NoGC()
	target := thisScoped.Get(n)
	source := sourceScoped.Get(n)
	w := a.MakeTypedArrayWitness(n, target, heap.SeqCst)
	if a.IsTypedArrayOutOfBounds(n, w) {
		return a.Throw(gc, heap.TypeError, "typed array is out of bounds").Completion()
	}
	targetLength := a.TypedArrayLength(n, w)

	if source.IsTypedArray() {
		srcW := a.MakeTypedArrayWitness(n, source, heap.SeqCst)
		if a.IsTypedArrayOutOfBounds(n, srcW) {
			return a.Throw(gc, heap.TypeError, "source typed array is out of bounds").Completion()
		}
		srcLength := a.TypedArrayLength(n, srcW)
		if srcLength+int64(offset) > targetLength {
			return a.Throw(gc, heap.RangeError, "source is too large").Completion()
		}
		srcKind := a.heap.TypedArray(n, source.Index()).Kind
		dstKind := a.heap.TypedArray(n, target.Index()).Kind
		if srcKind.IsBigInt() != dstKind.IsBigInt() {
			return a.Throw(gc, heap.TypeError, "cannot mix BigInt and number typed arrays").Completion()
		}
		for i := int64(0); i < srcLength; i++ {
			sb := a.typedArrayElementBytes(n, source, i)
			db := a.typedArrayElementBytes(n, target, int64(offset)+i)
			if sb == nil || db == nil {
				break
			}
			if srcKind == dstKind {
				copy(db, sb)
			} else if dstKind.IsBigInt() {
				bigIntToRawBytes(dstKind, rawBytesToBigInt(srcKind, sb), db)
			} else {
				floatToRawBytes(dstKind, rawBytesToFloat(srcKind, sb), db)
			}
		}
		return types.NormalCompletion(types.Undefined())
	}

	src, thrown := a.ToObject(source, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	srcObjScoped := gc.Scope(src)
	srcLength, thrown := a.LengthOfArrayLike(src, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	if srcLength+int64(offset) > targetLength {
		return a.Throw(gc, heap.RangeError, "source is too large").Completion()
	}
	for i := int64(0); i < srcLength; i++ {
		v, thrown := a.Get(srcObjScoped.Get(gc.NoGC()), types.IntegerKey(i), srcObjScoped.Get(gc.NoGC()), gc)
		if thrown != nil {
			return thrown.Completion()
		}
		if thrown := a.typedArrayElementSet(thisScoped.Get(gc.NoGC()), int64(offset)+i, v, gc); thrown != nil {
			return thrown.Completion()
		}
	}
	return types.NormalCompletion(types.Undefined())
}

// %TypedArray.prototype%.slice
func typedArraySlice(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	w, thrown := requireTypedArray(a, this, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	length := a.TypedArrayLength(gc.NoGC(), w)
	thisScoped := gc.Scope(this)
	kind := a.heap.TypedArray(gc.NoGC(), this.Index()).Kind

	start, thrown := a.ToIntegerOrInfinity(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	k := relativeIndex(start, length)
	final := length
	if !args.Get(1).IsUndefined() {
		e, thrown := a.ToIntegerOrInfinity(args.Get(1), gc)
		if thrown != nil {
			return thrown.Completion()
		}
		final = relativeIndex(e, length)
	}
	count := final - k
	if count < 0 {
		count = 0
	}
	result, thrown := a.allocateTypedArray(kind, count, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	n := gc.NoGC()
	ta := thisScoped.Get(n)
	for i := int64(0); i < count; i++ {
		sb := a.typedArrayElementBytes(n, ta, k+i)
		db := a.typedArrayElementBytes(n, result, i)
		if sb == nil || db == nil {
			break
		}
		copy(db, sb)
	}
	return types.NormalCompletion(result)
}

// %TypedArray.prototype%.subarray
func typedArraySubarray(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if !this.IsTypedArray() {
		return a.Throw(gc, heap.TypeError, "this is not a typed array").Completion()
	}
	thisScoped := gc.Scope(this)
	endScoped := gc.Scope(args.Get(1))
	n := gc.NoGC()
	w := a.MakeTypedArrayWitness(n, this, heap.SeqCst)
	srcLength := a.TypedArrayLength(n, w)
	tracking := a.heap.TypedArray(n, this.Index()).IsLengthTracking()

	// Both range conversions run before any heap-relative field is read:
	// they can call user code and relocate the buffer record.
	begin, thrown := a.ToIntegerOrInfinity(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	startIndex := relativeIndex(begin, srcLength)

	endIsUndefined := endScoped.Get(gc.NoGC()).IsUndefined()
	endIndex := srcLength
	if !endIsUndefined {
		e, thrown := a.ToIntegerOrInfinity(endScoped.Get(gc.NoGC()), gc)
		if thrown != nil {
			return thrown.Completion()
		}
		endIndex = relativeIndex(e, srcLength)
	}

	n = gc.NoGC()
	rec := a.heap.TypedArray(n, thisScoped.Get(n).Index())
	kind := rec.Kind
	size := int64(kind.Size())
	newRec := heap.TypedArrayRecord{
		ObjectRecord: heap.NewObjectRecord(a.realm.TypedArrayPrototype(kind)),
		Buffer:       rec.Buffer,
		ByteOffset:   rec.ByteOffset + startIndex*size,
		Kind:         kind,
	}
	if endIsUndefined && tracking {
		newRec.ByteLength = -1
		newRec.ArrayLength = -1
	} else {
		newLength := endIndex - startIndex
		if newLength < 0 {
			newLength = 0
		}
		newRec.ArrayLength = newLength
		newRec.ByteLength = newLength * size
	}
	return types.NormalCompletion(a.heap.NewTypedArray(gc, newRec))
}

// %TypedArray.prototype%.with
func typedArrayWith(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	w, thrown := requireTypedArray(a, this, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	length := a.TypedArrayLength(gc.NoGC(), w)
	thisScoped := gc.Scope(this)
	kind := a.heap.TypedArray(gc.NoGC(), this.Index()).Kind

	rel, thrown := a.ToIntegerOrInfinity(args.Get(0), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	if math.IsInf(rel, 0) {
		return a.Throw(gc, heap.RangeError, "invalid index").Completion()
	}
	index := int64(rel)
	if rel < 0 {
		index = length + int64(rel)
	}

	var newBig *big.Int
	var newFloat float64
	if kind.IsBigInt() {
		newBig, thrown = a.ToBigInt(args.Get(1), gc)
	} else {
		newFloat, thrown = a.ToNumber(args.Get(1), gc)
	}
	if thrown != nil {
		return thrown.Completion()
	}
	// The value conversion can detach or shrink the buffer; the index is
	// validated against a fresh witness, not the entry length.
	if !a.isValidIntegerIndex(gc.NoGC(), thisScoped.Get(gc.NoGC()), index) {
		return a.Throw(gc, heap.RangeError, "invalid index").Completion()
	}

	result, thrown := a.allocateTypedArray(kind, length, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	n := gc.NoGC()
	ta := thisScoped.Get(n)
	for i := int64(0); i < length; i++ {
		db := a.typedArrayElementBytes(n, result, i)
		if db == nil {
			break
		}
		if i == index {
			if kind.IsBigInt() {
				bigIntToRawBytes(kind, newBig, db)
			} else {
				floatToRawBytes(kind, newFloat, db)
			}
			continue
		}
		if sb := a.typedArrayElementBytes(n, ta, i); sb != nil {
			copy(db, sb)
		}
	}
	return types.NormalCompletion(result)
}

// %TypedArray.prototype%.toReversed
func typedArrayToReversed(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	w, thrown := requireTypedArray(a, this, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	length := a.TypedArrayLength(gc.NoGC(), w)
	thisScoped := gc.Scope(this)
	kind := a.heap.TypedArray(gc.NoGC(), this.Index()).Kind

	result, thrown := a.allocateTypedArray(kind, length, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	n := gc.NoGC()
	ta := thisScoped.Get(n)
	for i := int64(0); i < length; i++ {
		sb := a.typedArrayElementBytes(n, ta, length-1-i)
		db := a.typedArrayElementBytes(n, result, i)
		if sb == nil || db == nil {
			break
		}
		copy(db, sb)
	}
	return types.NormalCompletion(result)
}

func installTypedArrayPrototypeMethods(a *Agent, r *Realm, gc *heap.Scope) {
	proto := r.intrinsics[IntrTypedArrayPrototype]

	a.installGetter(gc, proto, "buffer", nil, typedArrayBufferGetter)
	a.installGetter(gc, proto, "byteLength", nil, typedArrayByteLengthGetter)
	a.installGetter(gc, proto, "byteOffset", nil, typedArrayByteOffsetGetter)
	a.installGetter(gc, proto, "length", nil, typedArrayLengthGetter)
	tagKey := types.SymbolKey(a.wellKnown.ToStringTag.Index())
	a.installGetter(gc, proto, "[Symbol.toStringTag]", &tagKey, typedArrayToStringTagGetter)

	methods := []BuiltinDef{
		{Name: "at", Length: 1, Behaviour: typedArrayAt},
		{Name: "entries", Length: 0, Behaviour: typedArrayIterationBehaviour(EnumKeyValue)},
		{Name: "every", Length: 1, Behaviour: typedArrayCallbackBehaviour("every")},
		{Name: "fill", Length: 1, Behaviour: typedArrayFill},
		{Name: "forEach", Length: 1, Behaviour: typedArrayCallbackBehaviour("forEach")},
		{Name: "includes", Length: 1, Behaviour: typedArrayIncludes},
		{Name: "indexOf", Length: 1, Behaviour: typedArrayIndexSearch(false)},
		{Name: "join", Length: 1, Behaviour: typedArrayJoin},
		{Name: "keys", Length: 0, Behaviour: typedArrayIterationBehaviour(EnumKey)},
		{Name: "lastIndexOf", Length: 1, Behaviour: typedArrayIndexSearch(true)},
		{Name: "reverse", Length: 0, Behaviour: typedArrayReverse},
		{Name: "set", Length: 1, Behaviour: typedArraySet},
		{Name: "slice", Length: 2, Behaviour: typedArraySlice},
		{Name: "some", Length: 1, Behaviour: typedArrayCallbackBehaviour("some")},
		{Name: "subarray", Length: 2, Behaviour: typedArraySubarray},
		{Name: "toReversed", Length: 0, Behaviour: typedArrayToReversed},
		{Name: "with", Length: 2, Behaviour: typedArrayWith},
	}
	for _, def := range methods {
		a.installMethod(gc, proto, def)
	}

	// values + @@iterator share one function object.
	values := a.installMethod(gc, proto, BuiltinDef{Name: "values", Length: 0, Behaviour: typedArrayIterationBehaviour(EnumValue)})
	iterKey := types.SymbolKey(a.wellKnown.Iterator.Index())
	a.installData(gc, proto, iterKey, values, heap.AttrWritable|heap.AttrConfigurable)
}
