package core

import (
	"encoding/binary"
	"math"
	"math/big"

	"starling/internal/heap"
	"starling/internal/types"
)

// Raw element codecs over array-buffer bytes. All access is little-endian,
// matching the platform typed-array layout the rest of the engine assumes.

// rawBytesToFloat decodes a number-kind element.
func rawBytesToFloat(kind types.ElementKind, b []byte) float64 {
	switch kind {
	case types.Int8Element:
		return float64(int8(b[0]))
	case types.Uint8Element, types.Uint8ClampedElement:
		return float64(b[0])
	case types.Int16Element:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case types.Uint16Element:
		return float64(binary.LittleEndian.Uint16(b))
	case types.Int32Element:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case types.Uint32Element:
		return float64(binary.LittleEndian.Uint32(b))
	case types.Float16Element:
		return float64(float16ToFloat32(binary.LittleEndian.Uint16(b)))
	case types.Float32Element:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case types.Float64Element:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	panic("starling: internal error: rawBytesToFloat on bigint kind")
}

// floatToRawBytes encodes a number-kind element with the specification's
// integer coercions (modular wrap; clamped rounding for Uint8Clamped).
func floatToRawBytes(kind types.ElementKind, f float64, b []byte) {
	switch kind {
	case types.Int8Element:
		b[0] = byte(int8(toIntN(f, 8)))
	case types.Uint8Element:
		b[0] = byte(toUintN(f, 8))
	case types.Uint8ClampedElement:
		b[0] = clampUint8(f)
	case types.Int16Element:
		binary.LittleEndian.PutUint16(b, uint16(toIntN(f, 16)))
	case types.Uint16Element:
		binary.LittleEndian.PutUint16(b, uint16(toUintN(f, 16)))
	case types.Int32Element:
		binary.LittleEndian.PutUint32(b, uint32(toIntN(f, 32)))
	case types.Uint32Element:
		binary.LittleEndian.PutUint32(b, uint32(toUintN(f, 32)))
	case types.Float16Element:
		binary.LittleEndian.PutUint16(b, float32ToFloat16(float32(f)))
	case types.Float32Element:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(f)))
	case types.Float64Element:
		binary.LittleEndian.PutUint64(b, math.Float64bits(f))
	default:
		panic("starling: internal error: floatToRawBytes on bigint kind")
	}
}

// rawBytesToBigInt decodes a bigint-kind element.
func rawBytesToBigInt(kind types.ElementKind, b []byte) *big.Int {
	bits := binary.LittleEndian.Uint64(b)
	if kind == types.BigInt64Element {
		return big.NewInt(int64(bits))
	}
	return new(big.Int).SetUint64(bits)
}

// bigIntToRawBytes encodes a bigint-kind element (modular wrap to 64 bits).
func bigIntToRawBytes(kind types.ElementKind, x *big.Int, b []byte) {
	var bits uint64
	mod := new(big.Int).And(x, maxUint64Mask)
	bits = mod.Uint64()
	_ = kind // the signed/unsigned distinction matters only on decode
	binary.LittleEndian.PutUint64(b, bits)
}

var maxUint64Mask = new(big.Int).SetUint64(math.MaxUint64)

// toIntN truncates per ToIntN modular semantics.
func toIntN(f float64, bits uint) int64 {
	u := toUintN(f, bits)
	sign := uint64(1) << (bits - 1)
	if u >= sign {
		return int64(u) - (int64(1) << bits)
	}
	return int64(u)
}

// toUintN truncates per ToUintN modular semantics.
func toUintN(f float64, bits uint) uint64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f == 0 {
		return 0
	}
	t := math.Trunc(f)
	m := math.Exp2(float64(bits))
	r := math.Mod(t, m)
	if r < 0 {
		r += m
	}
	return uint64(r)
}

// clampUint8 implements the Uint8Clamped conversion: clamp to [0,255] with
// round-half-to-even.
func clampUint8(f float64) byte {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	r := math.RoundToEven(f)
	return byte(r)
}

// float16ToFloat32 and float32ToFloat16 implement the IEEE 754 binary16
// conversions the Float16Array proposal requires.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 1
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff
	var bits uint32
	switch exp {
	case 0:
		if frac == 0 {
			bits = sign << 31
		} else {
			// Subnormal: normalize.
			e := uint32(127 - 15 + 1)
			for frac&0x400 == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3ff
			bits = sign<<31 | e<<23 | frac<<13
		}
	case 0x1f:
		bits = sign<<31 | 0xff<<23 | frac<<13
	default:
		bits = sign<<31 | (exp+127-15)<<23 | frac<<13
	}
	return math.Float32frombits(bits)
}

func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23) & 0xff
	frac := bits & 0x7fffff
	switch {
	case exp == 0xff: // Inf/NaN
		if frac != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp-127+15 >= 0x1f: // overflow -> Inf
		return sign | 0x7c00
	case exp-127+15 <= 0: // subnormal or zero
		shift := uint32(126 - exp)
		if shift > 24 {
			return sign
		}
		frac |= 0x800000
		half := frac >> shift
		// Round to nearest even.
		rem := frac & ((1 << shift) - 1)
		mid := uint32(1) << (shift - 1)
		if rem > mid || (rem == mid && half&1 == 1) {
			half++
		}
		return sign | uint16(half)
	default:
		h := sign | uint16(exp-127+15)<<10 | uint16(frac>>13)
		rem := frac & 0x1fff
		if rem > 0x1000 || (rem == 0x1000 && h&1 == 1) {
			h++
		}
		return h
	}
}

// typedArrayElementBytes returns the byte slice of element index under an
// unordered validity check, or nil when the index is invalid.
func (a *Agent) typedArrayElementBytes(n heap.NoGC, ta types.Value, index int64) []byte {
	if !a.isValidIntegerIndex(n, ta, index) {
		return nil
	}
	rec := a.heap.TypedArray(n, ta.Index())
	buf := a.heap.Buffer(n, rec.Buffer.Index())
	size := int64(rec.Kind.Size())
	off := rec.ByteOffset + index*size
	return buf.Data[off : off+size]
}

// typedArrayElementGet reads element index, boxing the result. Invalid
// indices observe as undefined (detached and out-of-bounds reads included).
func (a *Agent) typedArrayElementGet(ta types.Value, index int64, gc *heap.Scope) (types.Value, bool) {
	n := gc.NoGC()
	b := a.typedArrayElementBytes(n, ta, index)
	if b == nil {
		return types.Undefined(), false
	}
	rec := a.heap.TypedArray(n, ta.Index())
	if rec.Kind.IsBigInt() {
		x := rawBytesToBigInt(rec.Kind, b)
		return a.heap.NewBigInt(gc, x), true
	}
	f := rawBytesToFloat(rec.Kind, b)
	return a.heap.NewNumber(gc, f), true
}

// typedArrayElementSet coerces v per the element's content type and writes
// it. An invalid index after coercion is a silent no-op, per the
// integer-indexed [[Set]] semantics.
func (a *Agent) typedArrayElementSet(ta types.Value, index int64, v types.Value, gc *heap.Scope) *Thrown {
	child := gc.Reborrow()
	defer child.Release()
	taScoped := child.Scope(ta)
	kind := a.heap.TypedArray(child.NoGC(), ta.Index()).Kind
	if kind.IsBigInt() {
		x, thrown := a.ToBigInt(v, child)
		if thrown != nil {
			return thrown
		}
		n := child.NoGC()
		b := a.typedArrayElementBytes(n, taScoped.Get(n), index)
		if b == nil {
			return nil
		}
		bigIntToRawBytes(kind, x, b)
		return nil
	}
	f, thrown := a.ToNumber(v, child)
	if thrown != nil {
		return thrown
	}
	n := child.NoGC()
	b := a.typedArrayElementBytes(n, taScoped.Get(n), index)
	if b == nil {
		return nil
	}
	floatToRawBytes(kind, f, b)
	return nil
}
