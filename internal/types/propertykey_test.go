package types

import "testing"

func TestStringKeyCanonicalization(t *testing.T) {
	cases := []struct {
		in      string
		integer bool
		num     int64
	}{
		{"0", true, 0},
		{"1", true, 1},
		{"42", true, 42},
		{"9007199254740991", true, MaxIntegerKey},
		{"01", false, 0},
		{"-1", false, 0},
		{"1.0", false, 0},
		{"", false, 0},
		{"length", false, 0},
		{"9007199254740992", false, 0}, // 2^53 is out of integer-key range
	}
	for _, tc := range cases {
		k := StringKey(tc.in)
		if k.IsInteger() != tc.integer {
			t.Errorf("StringKey(%q).IsInteger() = %v, want %v", tc.in, k.IsInteger(), tc.integer)
			continue
		}
		if tc.integer && k.Integer() != tc.num {
			t.Errorf("StringKey(%q).Integer() = %d, want %d", tc.in, k.Integer(), tc.num)
		}
	}
}

func TestKeyEqualityIsRepresentational(t *testing.T) {
	if StringKey("7") != IntegerKey(7) {
		t.Fatal("canonical numeric string key differs from integer key")
	}
	if StringKey("abc") != StringKey("abc") {
		t.Fatal("identical string keys differ")
	}
	if StringKey("abc") == StringKey("abd") {
		t.Fatal("distinct string keys compare equal")
	}
	if SymbolKey(1) == SymbolKey(2) {
		t.Fatal("distinct symbol keys compare equal")
	}
}

func TestStringContentRendersCanonicalForm(t *testing.T) {
	if got := IntegerKey(42).StringContent(); got != "42" {
		t.Fatalf("IntegerKey(42).StringContent() = %q", got)
	}
	if got := StringKey("x").StringContent(); got != "x" {
		t.Fatalf("StringKey(x).StringContent() = %q", got)
	}
}

func TestFloatToIndex(t *testing.T) {
	if i, ok := FloatToIndex(0); !ok || i != 0 {
		t.Fatal("FloatToIndex(0) rejected")
	}
	if i, ok := FloatToIndex(negZero); !ok || i != 0 {
		t.Fatal("FloatToIndex(-0) should normalize to 0")
	}
	if _, ok := FloatToIndex(1.5); ok {
		t.Fatal("FloatToIndex(1.5) accepted")
	}
	if _, ok := FloatToIndex(-1); ok {
		t.Fatal("FloatToIndex(-1) accepted")
	}
	if _, ok := FloatToIndex(nan); ok {
		t.Fatal("FloatToIndex(NaN) accepted")
	}
}

func TestDescriptorKinds(t *testing.T) {
	var generic PropertyDescriptor
	if !generic.IsGenericDescriptor() {
		t.Fatal("empty descriptor is not generic")
	}
	data := DataDescriptor(Undefined(), true, true, true)
	if !data.IsDataDescriptor() || data.IsAccessorDescriptor() {
		t.Fatal("data descriptor misclassified")
	}
	acc := AccessorDescriptor(Undefined(), Undefined(), false, false)
	if !acc.IsAccessorDescriptor() || acc.IsDataDescriptor() {
		t.Fatal("accessor descriptor misclassified")
	}
	completed := PropertyDescriptor{}.CompletePropertyDescriptor()
	if completed.Value == nil || completed.Writable == nil || completed.Enumerable == nil || completed.Configurable == nil {
		t.Fatal("CompletePropertyDescriptor left fields absent")
	}
}
