package types

import (
	"math"
	"testing"
)

func TestValueZeroIsUndefined(t *testing.T) {
	var v Value
	if !v.IsUndefined() {
		t.Fatalf("zero Value tag = %s, want undefined", v.Tag())
	}
	if v != Undefined() {
		t.Fatal("zero Value differs from Undefined()")
	}
}

func TestBooleanRoundTrip(t *testing.T) {
	if !BooleanValue(true).Boolean() {
		t.Fatal("BooleanValue(true) lost its payload")
	}
	if BooleanValue(false).Boolean() {
		t.Fatal("BooleanValue(false) reads as true")
	}
}

func TestIntegerRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 42, -42, MaxSmallInteger, MinSmallInteger}
	for _, i := range cases {
		v := IntegerValue(i)
		if got := v.Integer(); got != i {
			t.Errorf("IntegerValue(%d).Integer() = %d", i, got)
		}
	}
}

func TestIntegerOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("IntegerValue(MaxSmallInteger+1) did not panic")
		}
	}()
	IntegerValue(MaxSmallInteger + 1)
}

func TestSmallStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "abc", "abcdef", "\x00\xff"} {
		v, ok := SmallStringValue(s)
		if !ok {
			t.Fatalf("SmallStringValue(%q) rejected", s)
		}
		if got := v.SmallString(); got != s {
			t.Errorf("SmallString round trip %q -> %q", s, got)
		}
	}
	if _, ok := SmallStringValue("toolong"); ok {
		t.Fatal("seven-byte string accepted as small string")
	}
}

func TestFloatSentinels(t *testing.T) {
	if f := PositiveZero().ImmediateNumber(); f != 0 || math.Signbit(f) {
		t.Fatalf("PositiveZero reads as %v", f)
	}
	if f := NegativeZero().ImmediateNumber(); f != 0 || !math.Signbit(f) {
		t.Fatalf("NegativeZero reads as %v", f)
	}
	if f := NaNValue().ImmediateNumber(); !math.IsNaN(f) {
		t.Fatalf("NaNValue reads as %v", f)
	}
}

func TestImmediateNumberValue(t *testing.T) {
	cases := []struct {
		in   float64
		tag  Tag
		want bool
	}{
		{0, TagPositiveZero, true},
		{math.Copysign(0, -1), TagNegativeZero, true},
		{math.NaN(), TagNaN, true},
		{42, TagInteger, true},
		{-7, TagInteger, true},
		{1.5, TagUndefined, false},
		{math.Inf(1), TagUndefined, false},
		{1e100, TagUndefined, false},
	}
	for _, tc := range cases {
		v, ok := ImmediateNumberValue(tc.in)
		if ok != tc.want {
			t.Errorf("ImmediateNumberValue(%v) ok = %v, want %v", tc.in, ok, tc.want)
			continue
		}
		if ok && v.Tag() != tc.tag {
			t.Errorf("ImmediateNumberValue(%v) tag = %s, want %s", tc.in, v.Tag(), tc.tag)
		}
	}
}

func TestHeapValueKindMismatch(t *testing.T) {
	v := HeapValue(TagString, 7)
	if i, err := v.IndexFor(TagString); err != nil || i != 7 {
		t.Fatalf("IndexFor(TagString) = %d, %v", i, err)
	}
	if _, err := v.IndexFor(TagSymbol); err == nil {
		t.Fatal("IndexFor with wrong kind did not fail")
	}
}

func TestWithIndexRewrites(t *testing.T) {
	v := HeapValue(TagObject, 3)
	moved := v.WithIndex(9)
	if moved.Tag() != TagObject || moved.Index() != 9 {
		t.Fatalf("WithIndex produced %s/%d", moved.Tag(), moved.Index())
	}
}

func TestObjectTagRanges(t *testing.T) {
	if !TagObject.IsObjectTag() || !TagFloat64Array.IsObjectTag() {
		t.Fatal("object tag range endpoints misclassified")
	}
	if TagString.IsObjectTag() {
		t.Fatal("string classified as object")
	}
	if !TagInt8Array.IsTypedArrayTag() || TagArrayBuffer.IsTypedArrayTag() {
		t.Fatal("typed array range misclassified")
	}
	for _, k := range ElementKinds {
		if ElementKindOf(k.Tag()) != k {
			t.Errorf("ElementKindOf(%s.Tag()) mismatch", k.ConstructorName())
		}
	}
}
