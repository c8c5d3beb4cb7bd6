package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"starling/internal/heap"
	"starling/internal/types"
)

// newBuffer allocates a fixed ArrayBuffer of n bytes through the intrinsic
// prototype chain.
func newBuffer(t *testing.T, a *Agent, gc *heap.Scope, n int64) types.Value {
	t.Helper()
	buf, err := a.Heap().NewArrayBuffer(gc, a.Realm().Intrinsic(IntrArrayBufferPrototype), n, -1, false)
	require.NoError(t, err)
	return buf
}

// constructTypedArray invokes the real constructor through Construct.
func constructTypedArray(t *testing.T, a *Agent, gc *heap.Scope, name string, args ...types.Value) types.Value {
	t.Helper()
	ctor := mustGlobal(t, a, name)
	ta, thrown := a.Construct(ctor, args, types.Undefined(), gc)
	if thrown != nil {
		t.Fatalf("new %s threw: %v", name, thrown)
	}
	return ta
}

func taString(t *testing.T, a *Agent, gc *heap.Scope, v types.Value) string {
	t.Helper()
	s, thrown := a.ToStringContent(v, gc)
	if thrown != nil {
		t.Fatal(thrown)
	}
	return s
}

func TestInt16JoinScenario(t *testing.T) {
	// let a = new Int16Array(new ArrayBuffer(4)); a.join("-") -> "0-0";
	// after detaching, a.join("-") -> "".
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	buf := gc.Scope(newBuffer(t, a, gc, 4))
	ta := gc.Scope(constructTypedArray(t, a, gc, "Int16Array", buf.Get(gc.NoGC())))

	sep := a.heap.NewString(gc, "-")
	joined, thrown := callMethod(a, gc, ta.Get(gc.NoGC()), "join", sep)
	if thrown != nil {
		t.Fatal(thrown)
	}
	assert.Equal(t, "0-0", taString(t, a, gc, joined))

	require.NoError(t, a.DetachArrayBuffer(buf.Get(gc.NoGC())))

	joined, thrown = callMethod(a, gc, ta.Get(gc.NoGC()), "join", a.heap.NewString(gc, "-"))
	if thrown != nil {
		t.Fatal(thrown)
	}
	assert.Equal(t, "", taString(t, a, gc, joined))
}

func TestDetachedBufferObservations(t *testing.T) {
	// Property: over a detached buffer, length observes 0, byteOffset +0,
	// indexed reads undefined, indexed writes are no-ops.
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	buf := gc.Scope(newBuffer(t, a, gc, 8))
	ta := gc.Scope(constructTypedArray(t, a, gc, "Int16Array",
		buf.Get(gc.NoGC()), types.IntegerValue(2), types.IntegerValue(2)))

	n := gc.NoGC()
	w := a.MakeTypedArrayWitness(n, ta.Get(n), heap.SeqCst)
	require.EqualValues(t, 2, a.TypedArrayLength(n, w))

	require.NoError(t, a.DetachArrayBuffer(buf.Get(gc.NoGC())))

	length, thrown := a.Get(ta.Get(gc.NoGC()), types.StringKey("length"), ta.Get(gc.NoGC()), gc)
	require.Nil(t, thrown)
	assert.EqualValues(t, 0, length.Integer())

	byteOffset, thrown := a.Get(ta.Get(gc.NoGC()), types.StringKey("byteOffset"), ta.Get(gc.NoGC()), gc)
	require.Nil(t, thrown)
	assert.Equal(t, types.TagPositiveZero, byteOffset.Tag())

	elem, thrown := a.Get(ta.Get(gc.NoGC()), types.IntegerKey(0), ta.Get(gc.NoGC()), gc)
	require.Nil(t, thrown)
	assert.True(t, elem.IsUndefined())

	ok, thrown := a.Set(ta.Get(gc.NoGC()), types.IntegerKey(0), types.IntegerValue(5), ta.Get(gc.NoGC()), gc)
	require.Nil(t, thrown)
	assert.True(t, ok, "detached write is a silent no-op, not a failure")
}

func TestTypedArrayElementCoercion(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	ta := gc.Scope(constructTypedArray(t, a, gc, "Uint8ClampedArray", types.IntegerValue(3)))

	cases := []struct {
		in   types.Value
		want int64
	}{
		{types.IntegerValue(300), 255},
		{types.IntegerValue(-5), 0},
		{a.heap.NewNumber(gc, 2.5), 2}, // round half to even
	}
	for i, tc := range cases {
		ok, thrown := a.Set(ta.Get(gc.NoGC()), types.IntegerKey(int64(i)), tc.in, ta.Get(gc.NoGC()), gc)
		require.Nil(t, thrown)
		require.True(t, ok)
	}
	for i, tc := range cases {
		v, thrown := a.Get(ta.Get(gc.NoGC()), types.IntegerKey(int64(i)), ta.Get(gc.NoGC()), gc)
		require.Nil(t, thrown)
		assert.EqualValues(t, tc.want, int64(a.heap.NumberFloat(gc.NoGC(), v)), "element %d", i)
	}
}

func TestInt8WrapAround(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	ta := gc.Scope(constructTypedArray(t, a, gc, "Int8Array", types.IntegerValue(1)))
	_, thrown := a.Set(ta.Get(gc.NoGC()), types.IntegerKey(0), types.IntegerValue(130), ta.Get(gc.NoGC()), gc)
	require.Nil(t, thrown)
	v, thrown := a.Get(ta.Get(gc.NoGC()), types.IntegerKey(0), ta.Get(gc.NoGC()), gc)
	require.Nil(t, thrown)
	assert.EqualValues(t, -126, int64(a.heap.NumberFloat(gc.NoGC(), v)))
}

func TestTypedArrayFromArrayLike(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	src := gc.Scope(a.CreateArrayFromList([]types.Value{
		types.IntegerValue(1), types.IntegerValue(2), types.IntegerValue(3),
	}, gc))
	ta := gc.Scope(constructTypedArray(t, a, gc, "Int32Array", src.Get(gc.NoGC())))

	n := gc.NoGC()
	w := a.MakeTypedArrayWitness(n, ta.Get(n), heap.SeqCst)
	require.EqualValues(t, 3, a.TypedArrayLength(n, w))
	for i := int64(0); i < 3; i++ {
		v, thrown := a.Get(ta.Get(gc.NoGC()), types.IntegerKey(i), ta.Get(gc.NoGC()), gc)
		require.Nil(t, thrown)
		assert.EqualValues(t, i+1, int64(a.heap.NumberFloat(gc.NoGC(), v)))
	}
}

func TestTypedArrayIncludesAndAt(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	src := gc.Scope(a.CreateArrayFromList([]types.Value{
		types.IntegerValue(5), types.IntegerValue(6), types.IntegerValue(7),
	}, gc))
	ta := gc.Scope(constructTypedArray(t, a, gc, "Float64Array", src.Get(gc.NoGC())))

	got, thrown := callMethod(a, gc, ta.Get(gc.NoGC()), "includes", types.IntegerValue(6))
	require.Nil(t, thrown)
	assert.True(t, got.Boolean())

	got, thrown = callMethod(a, gc, ta.Get(gc.NoGC()), "includes", types.IntegerValue(8))
	require.Nil(t, thrown)
	assert.False(t, got.Boolean())

	got, thrown = callMethod(a, gc, ta.Get(gc.NoGC()), "at", types.IntegerValue(-1))
	require.Nil(t, thrown)
	assert.EqualValues(t, 7, int64(a.heap.NumberFloat(gc.NoGC(), got)))

	got, thrown = callMethod(a, gc, ta.Get(gc.NoGC()), "at", types.IntegerValue(3))
	require.Nil(t, thrown)
	assert.True(t, got.IsUndefined())
}

func TestTypedArrayForEachRewitnessesAfterCallback(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	buf := gc.Scope(newBuffer(t, a, gc, 4))
	ta := gc.Scope(constructTypedArray(t, a, gc, "Int16Array", buf.Get(gc.NoGC())))

	// The callback detaches the buffer mid-iteration; subsequent element
	// reads observe undefined and the walk still terminates.
	seen := []types.Tag{}
	callback := gc.Scope(a.CreateBuiltinFunction(gc, BuiltinDef{Name: "detacher", Length: 3,
		Behaviour: func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
			seen = append(seen, args.Get(0).Tag())
			if err := a.DetachArrayBuffer(buf.Get(gc.NoGC())); err != nil {
				return a.Throw(gc, heap.TypeError, "detach failed: %v", err).Completion()
			}
			return types.NormalCompletion(types.BooleanValue(true))
		}}))

	forEach, thrown := a.Get(ta.Get(gc.NoGC()), types.StringKey("forEach"), ta.Get(gc.NoGC()), gc)
	require.Nil(t, thrown)
	_, thrown = a.Call(forEach, ta.Get(gc.NoGC()), []types.Value{callback.Get(gc.NoGC())}, gc)
	require.Nil(t, thrown)

	require.Len(t, seen, 2)
	assert.NotEqual(t, types.TagUndefined, seen[0], "first element read before detach")
	assert.Equal(t, types.TagUndefined, seen[1], "post-detach element observes undefined")
}

func TestTypedArrayFillAndReverse(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	ta := gc.Scope(constructTypedArray(t, a, gc, "Int32Array", types.IntegerValue(4)))
	_, thrown := callMethod(a, gc, ta.Get(gc.NoGC()), "fill", types.IntegerValue(9), types.IntegerValue(1), types.IntegerValue(3))
	require.Nil(t, thrown)

	join := func() string {
		v, thrown := callMethod(a, gc, ta.Get(gc.NoGC()), "join", types.Undefined())
		require.Nil(t, thrown)
		return taString(t, a, gc, v)
	}
	assert.Equal(t, "0,9,9,0", join())

	_, thrown = callMethod(a, gc, ta.Get(gc.NoGC()), "with", types.IntegerValue(0), types.IntegerValue(5))
	require.Nil(t, thrown)
	// with() does not mutate the receiver.
	assert.Equal(t, "0,9,9,0", join())

	_, thrown = callMethod(a, gc, ta.Get(gc.NoGC()), "reverse", types.Undefined())
	require.Nil(t, thrown)
	assert.Equal(t, "0,9,9,0", join()) // palindrome stays fixed

	ok, thrown := a.Set(ta.Get(gc.NoGC()), types.IntegerKey(0), types.IntegerValue(1), ta.Get(gc.NoGC()), gc)
	require.Nil(t, thrown)
	require.True(t, ok)
	_, thrown = callMethod(a, gc, ta.Get(gc.NoGC()), "reverse", types.Undefined())
	require.Nil(t, thrown)
	assert.Equal(t, "0,9,9,1", join())
}

func TestTypedArraySubarrayTracksBuffer(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	src := gc.Scope(a.CreateArrayFromList([]types.Value{
		types.IntegerValue(1), types.IntegerValue(2), types.IntegerValue(3), types.IntegerValue(4),
	}, gc))
	ta := gc.Scope(constructTypedArray(t, a, gc, "Uint8Array", src.Get(gc.NoGC())))

	sub, thrown := callMethod(a, gc, ta.Get(gc.NoGC()), "subarray", types.IntegerValue(1), types.IntegerValue(3))
	require.Nil(t, thrown)
	subScoped := gc.Scope(sub)

	// Writes through the subarray land in the shared buffer.
	_, thrown = a.Set(subScoped.Get(gc.NoGC()), types.IntegerKey(0), types.IntegerValue(99), subScoped.Get(gc.NoGC()), gc)
	require.Nil(t, thrown)
	v, thrown := a.Get(ta.Get(gc.NoGC()), types.IntegerKey(1), ta.Get(gc.NoGC()), gc)
	require.Nil(t, thrown)
	assert.EqualValues(t, 99, int64(a.heap.NumberFloat(gc.NoGC(), v)))
}

func TestTypedArrayConstructorErrors(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()

	// %TypedArray% is abstract.
	taCtor := a.Realm().Intrinsic(IntrTypedArrayConstructor)
	_, thrown := a.Construct(taCtor, nil, types.Undefined(), gc)
	assert.Equal(t, heap.TypeError, errorKindOf(t, a, thrown))

	// Misaligned byte offset.
	buf := gc.Scope(newBuffer(t, a, gc, 8))
	ctor := mustGlobal(t, a, "Int32Array")
	_, thrown = a.Construct(ctor, []types.Value{buf.Get(gc.NoGC()), types.IntegerValue(2)}, types.Undefined(), gc)
	assert.Equal(t, heap.RangeError, errorKindOf(t, a, thrown))

	// View extending past the buffer end.
	ctor = mustGlobal(t, a, "Int32Array")
	_, thrown = a.Construct(ctor, []types.Value{buf.Get(gc.NoGC()), types.IntegerValue(4), types.IntegerValue(4)}, types.Undefined(), gc)
	assert.Equal(t, heap.RangeError, errorKindOf(t, a, thrown))

	// Construction from a detached buffer.
	require.NoError(t, a.DetachArrayBuffer(buf.Get(gc.NoGC())))
	ctor = mustGlobal(t, a, "Int32Array")
	_, thrown = a.Construct(ctor, []types.Value{buf.Get(gc.NoGC())}, types.Undefined(), gc)
	assert.Equal(t, heap.TypeError, errorKindOf(t, a, thrown))

	// Calling a concrete constructor without new.
	fn := mustGlobal(t, a, "Int8Array")
	_, thrown = a.Call(fn, types.Undefined(), []types.Value{types.IntegerValue(1)}, gc)
	assert.Equal(t, heap.TypeError, errorKindOf(t, a, thrown))
}

func TestFloat16FeatureGate(t *testing.T) {
	a := newTestAgent(t)
	v, err := a.Global("Float16Array")
	require.NoError(t, err)
	assert.True(t, v.IsUndefined(), "Float16Array must stay gated by default")
}
