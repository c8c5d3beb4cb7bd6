package core

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"starling/internal/heap"
	"starling/internal/types"
)

var posInf = math.Inf(1)

// PrimitiveHint selects the ToPrimitive preference.
type PrimitiveHint uint8

const (
	HintDefault PrimitiveHint = iota
	HintNumber
	HintString
)

func (h PrimitiveHint) name() string {
	switch h {
	case HintNumber:
		return "number"
	case HintString:
		return "string"
	default:
		return "default"
	}
}

// ToBoolean follows the specification table; it never allocates.
func (a *Agent) ToBoolean(v types.Value) bool {
	switch v.Tag() {
	case types.TagUndefined, types.TagNull:
		return false
	case types.TagBoolean:
		return v.Boolean()
	case types.TagInteger:
		return v.Integer() != 0
	case types.TagPositiveZero, types.TagNegativeZero, types.TagNaN:
		return false
	case types.TagSmallString:
		return v.SmallString() != ""
	case types.TagString:
		return a.heap.StringData(a.topScope.NoGC(), v.Index()) != ""
	case types.TagNumber:
		f := a.heap.NumberData(a.topScope.NoGC(), v.Index())
		return f != 0 && !math.IsNaN(f)
	case types.TagBigInt:
		return a.heap.BigInt(a.topScope.NoGC(), v.Index()).Data.Sign() != 0
	}
	return true // symbols and every object kind
}

// RequireObjectCoercible throws for undefined and null and otherwise passes
// the value through.
func (a *Agent) RequireObjectCoercible(v types.Value, gc *heap.Scope) *Thrown {
	if v.IsUndefined() || v.IsNull() {
		return a.Throw(gc, heap.TypeError, "value is not object-coercible: %s", v.Tag())
	}
	return nil
}

// ToObject boxes primitives into their wrapper objects; undefined and null
// throw.
func (a *Agent) ToObject(v types.Value, gc *heap.Scope) (types.Value, *Thrown) {
	if v.IsObject() {
		return v, nil
	}
	switch v.Tag() {
	case types.TagUndefined, types.TagNull:
		return types.Undefined(), a.Throw(gc, heap.TypeError, "cannot convert %s to object", v.Tag())
	}
	proto := a.realm.Intrinsic(IntrObjectPrototype)
	return a.heap.NewPrimitiveObject(gc, proto, v), nil
}

// OrdinaryToPrimitive tries the method names the hint selects (valueOf /
// toString order) and returns the first primitive result.
func (a *Agent) OrdinaryToPrimitive(o types.Value, hint PrimitiveHint, gc *heap.Scope) (types.Value, *Thrown) {
	names := []string{"valueOf", "toString"}
	if hint == HintString {
		names = []string{"toString", "valueOf"}
	}
	oScoped := gc.Scope(o)
	for _, name := range names {
		method, thrown := a.Get(oScoped.Get(gc.NoGC()), types.StringKey(name), oScoped.Get(gc.NoGC()), gc)
		if thrown != nil {
			return types.Undefined(), thrown
		}
		if !a.IsCallable(method) {
			continue
		}
		result, thrown := a.Call(method, oScoped.Get(gc.NoGC()), nil, gc)
		if thrown != nil {
			return types.Undefined(), thrown
		}
		if !result.IsObject() {
			return result, nil
		}
	}
	return types.Undefined(), a.Throw(gc, heap.TypeError, "cannot convert object to primitive value")
}

// ToPrimitive consults @@toPrimitive before the ordinary fallback.
func (a *Agent) ToPrimitive(v types.Value, hint PrimitiveHint, gc *heap.Scope) (types.Value, *Thrown) {
	if !v.IsObject() {
		return v, nil
	}
	vScoped := gc.Scope(v)
	exotic, thrown := a.GetMethod(v, types.SymbolKey(a.wellKnown.ToPrimitive.Index()), gc)
	if thrown != nil {
		return types.Undefined(), thrown
	}
	if !exotic.IsUndefined() {
		exoticScoped := gc.Scope(exotic)
		hintStr := a.heap.NewString(gc, hint.name())
		result, thrown := a.Call(exoticScoped.Get(gc.NoGC()), vScoped.Get(gc.NoGC()), []types.Value{hintStr}, gc)
		if thrown != nil {
			return types.Undefined(), thrown
		}
		if result.IsObject() {
			return types.Undefined(), a.Throw(gc, heap.TypeError, "@@toPrimitive must return a primitive value")
		}
		return result, nil
	}
	if hint == HintDefault {
		hint = HintNumber
	}
	return a.OrdinaryToPrimitive(vScoped.Get(gc.NoGC()), hint, gc)
}

// ToNumber follows the specification bit-for-bit for the primitive table and
// recurses through ToPrimitive for objects.
func (a *Agent) ToNumber(v types.Value, gc *heap.Scope) (float64, *Thrown) {
	switch v.Tag() {
	case types.TagUndefined:
		return math.NaN(), nil
	case types.TagNull:
		return 0, nil
	case types.TagBoolean:
		if v.Boolean() {
			return 1, nil
		}
		return 0, nil
	case types.TagInteger, types.TagPositiveZero, types.TagNegativeZero, types.TagNaN:
		return v.ImmediateNumber(), nil
	case types.TagNumber:
		return a.heap.NumberData(gc.NoGC(), v.Index()), nil
	case types.TagSmallString, types.TagString:
		return stringToNumber(a.heap.StringContent(gc.NoGC(), v)), nil
	case types.TagSymbol:
		return 0, a.Throw(gc, heap.TypeError, "cannot convert a symbol to a number")
	case types.TagBigInt:
		return 0, a.Throw(gc, heap.TypeError, "cannot convert a bigint to a number")
	}
	prim, thrown := a.ToPrimitive(v, HintNumber, gc)
	if thrown != nil {
		return 0, thrown
	}
	return a.ToNumber(prim, gc)
}

// ToBigInt accepts bigints, booleans and decimal strings (an unparsable
// string is a SyntaxError); numbers and the remaining types throw.
func (a *Agent) ToBigInt(v types.Value, gc *heap.Scope) (*big.Int, *Thrown) {
	if v.IsObject() {
		prim, thrown := a.ToPrimitive(v, HintNumber, gc)
		if thrown != nil {
			return nil, thrown
		}
		v = prim
	}
	switch v.Tag() {
	case types.TagBigInt:
		return a.heap.BigInt(gc.NoGC(), v.Index()).Data, nil
	case types.TagBoolean:
		if v.Boolean() {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case types.TagSmallString, types.TagString:
		s := strings.TrimSpace(a.heap.StringContent(gc.NoGC(), v))
		x, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, a.Throw(gc, heap.SyntaxError, "cannot convert %q to a bigint", s)
		}
		return x, nil
	}
	return nil, a.Throw(gc, heap.TypeError, "cannot convert %s to a bigint", v.Tag())
}

// ToIntegerOrInfinity truncates toward zero, mapping NaN to +0.
func (a *Agent) ToIntegerOrInfinity(v types.Value, gc *heap.Scope) (float64, *Thrown) {
	f, thrown := a.ToNumber(v, gc)
	if thrown != nil {
		return 0, thrown
	}
	if math.IsNaN(f) || f == 0 {
		return 0, nil
	}
	if math.IsInf(f, 0) {
		return f, nil
	}
	return math.Trunc(f), nil
}

// ToLength clamps to [0, 2^53-1].
func (a *Agent) ToLength(v types.Value, gc *heap.Scope) (int64, *Thrown) {
	f, thrown := a.ToIntegerOrInfinity(v, gc)
	if thrown != nil {
		return 0, thrown
	}
	if f <= 0 {
		return 0, nil
	}
	if f > float64(types.MaxIntegerKey) {
		return types.MaxIntegerKey, nil
	}
	return int64(f), nil
}

// ToIndex validates a buffer/view length argument: integral, non-negative,
// within 2^53-1.
func (a *Agent) ToIndex(v types.Value, gc *heap.Scope) (int64, *Thrown) {
	f, thrown := a.ToIntegerOrInfinity(v, gc)
	if thrown != nil {
		return 0, thrown
	}
	if f < 0 || f > float64(types.MaxIntegerKey) {
		return 0, a.Throw(gc, heap.RangeError, "index out of range")
	}
	return int64(f), nil
}

// ToString returns a string value, allocating only when the rendering
// exceeds the inline budget.
func (a *Agent) ToString(v types.Value, gc *heap.Scope) (types.Value, *Thrown) {
	switch v.Tag() {
	case types.TagSmallString, types.TagString:
		return v, nil
	case types.TagUndefined:
		return a.heap.NewString(gc, "undefined"), nil
	case types.TagNull:
		return a.heap.NewString(gc, "null"), nil
	case types.TagBoolean:
		if v.Boolean() {
			return a.heap.NewString(gc, "true"), nil
		}
		return a.heap.NewString(gc, "false"), nil
	case types.TagInteger, types.TagPositiveZero, types.TagNegativeZero, types.TagNaN, types.TagNumber:
		return a.heap.NewString(gc, numberToString(a.heap.NumberFloat(gc.NoGC(), v))), nil
	case types.TagBigInt:
		return a.heap.NewString(gc, a.heap.BigInt(gc.NoGC(), v.Index()).Data.String()), nil
	case types.TagSymbol:
		return types.Undefined(), a.Throw(gc, heap.TypeError, "cannot convert a symbol to a string")
	}
	prim, thrown := a.ToPrimitive(v, HintString, gc)
	if thrown != nil {
		return types.Undefined(), thrown
	}
	return a.ToString(prim, gc)
}

// ToStringContent is ToString resolved to Go string content.
func (a *Agent) ToStringContent(v types.Value, gc *heap.Scope) (string, *Thrown) {
	sv, thrown := a.ToString(v, gc)
	if thrown != nil {
		return "", thrown
	}
	return a.heap.StringContent(gc.NoGC(), sv), nil
}

// ToPropertyKeySimple is the NoGc fast path: strings, numbers, symbols and
// the remaining primitives convert without allocation; objects suspend
// (their conversion can run user code).
func (a *Agent) ToPropertyKeySimple(v types.Value, n heap.NoGC) (types.PropertyKey, bool) {
	switch v.Tag() {
	case types.TagSmallString, types.TagString:
		return types.StringKey(a.heap.StringContent(n, v)), true
	case types.TagSymbol:
		return types.SymbolKey(v.Index()), true
	case types.TagInteger, types.TagPositiveZero, types.TagNegativeZero, types.TagNaN, types.TagNumber:
		f := a.heap.NumberFloat(n, v)
		if i, ok := types.FloatToIndex(f); ok {
			return types.IntegerKey(i), true
		}
		return types.StringKey(numberToString(f)), true
	case types.TagUndefined:
		return types.StringKey("undefined"), true
	case types.TagNull:
		return types.StringKey("null"), true
	case types.TagBoolean:
		if v.Boolean() {
			return types.StringKey("true"), true
		}
		return types.StringKey("false"), true
	case types.TagBigInt:
		return types.StringKey(a.heap.BigInt(n, v.Index()).Data.String()), true
	}
	return types.PropertyKey{}, false
}

// ToPropertyKey converts via ToPrimitive(string), then to a string key, or
// passes symbols through.
func (a *Agent) ToPropertyKey(v types.Value, gc *heap.Scope) (types.PropertyKey, *Thrown) {
	if k, ok := a.ToPropertyKeySimple(v, gc.NoGC()); ok {
		return k, nil
	}
	prim, thrown := a.ToPrimitive(v, HintString, gc)
	if thrown != nil {
		return types.PropertyKey{}, thrown
	}
	if k, ok := a.ToPropertyKeySimple(prim, gc.NoGC()); ok {
		return k, nil
	}
	// ToPrimitive returned a symbol-free primitive; simple conversion is
	// total over primitives, so reaching here is a bug.
	panic("starling: internal error: ToPropertyKey on primitive failed")
}

// ============================================================================
// NUMBER <-> STRING
// ============================================================================

// numberToString implements Number::toString(10): shortest round-trip
// decimal, with the specification's exponential thresholds.
func numberToString(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if f == 0 {
		return "0"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// Go pads single-digit exponents ("1e-07"); the specification's
		// rendering does not ("1e-7").
		if i := strings.IndexAny(s, "eE"); i >= 0 && i+2 < len(s) {
			sign := s[i+1]
			digits := strings.TrimLeft(s[i+2:], "0")
			if digits == "" {
				digits = "0"
			}
			s = s[:i+1] + string(sign) + digits
		}
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// stringToNumber implements the StringToNumber grammar: trimmed decimal,
// hex/octal/binary prefixes, Infinity, empty string is zero.
func stringToNumber(s string) float64 {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0
	}
	switch t {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(t) > 2 && t[0] == '0' {
		switch t[1] {
		case 'x', 'X':
			if u, err := strconv.ParseUint(t[2:], 16, 64); err == nil {
				return float64(u)
			}
			return math.NaN()
		case 'o', 'O':
			if u, err := strconv.ParseUint(t[2:], 8, 64); err == nil {
				return float64(u)
			}
			return math.NaN()
		case 'b', 'B':
			if u, err := strconv.ParseUint(t[2:], 2, 64); err == nil {
				return float64(u)
			}
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
