// Package heap implements the typed-arena heap: one arena per object kind,
// allocation, tri-color mark-compact collection, and the scope/rooting
// discipline host code uses to hold references across safepoints.
//
// Every inter-record edge is a types.Value carrying an arena index, never a
// Go pointer. The collector relocates records during compaction and rewrites
// indices on every surviving edge and every root, so any index held by a
// caller across an allocation point is invalid unless it was scoped.
package heap

import (
	"math/big"
	"sync/atomic"

	"starling/internal/types"
)

// PropertyAttrs packs the descriptor flags of a stored property.
type PropertyAttrs uint8

const (
	AttrWritable PropertyAttrs = 1 << iota
	AttrEnumerable
	AttrConfigurable
	// AttrAccessor marks the slot as an accessor property; Get/Set are
	// meaningful and Value is not.
	AttrAccessor
)

// Property is a stored, fully populated property slot.
type Property struct {
	Value types.Value // data value; undefined for accessor slots
	Get   types.Value // accessor getter or undefined
	Set   types.Value // accessor setter or undefined
	Attrs PropertyAttrs
}

// Writable, Enumerable, Configurable and IsAccessor read the packed flags.
func (p Property) Writable() bool     { return p.Attrs&AttrWritable != 0 }
func (p Property) Enumerable() bool   { return p.Attrs&AttrEnumerable != 0 }
func (p Property) Configurable() bool { return p.Attrs&AttrConfigurable != 0 }
func (p Property) IsAccessor() bool   { return p.Attrs&AttrAccessor != 0 }

// ObjectRecord is the ordinary-object shape: prototype, extensibility, and
// the ordered key sequence with its parallel property store. Exotic records
// embed it for their non-indexed properties.
type ObjectRecord struct {
	Prototype  types.Value // an object value or null
	Extensible bool
	Keys       []types.PropertyKey
	Props      []Property
}

// NewObjectRecord returns an extensible record with the given prototype.
func NewObjectRecord(prototype types.Value) ObjectRecord {
	return ObjectRecord{Prototype: prototype, Extensible: true}
}

// FindKey returns the position of k in the key sequence, or -1.
func (o *ObjectRecord) FindKey(k types.PropertyKey) int {
	for i, key := range o.Keys {
		if key == k {
			return i
		}
	}
	return -1
}

// SetProperty inserts or replaces the slot for k, preserving the position of
// an existing key (duplicate definition replaces in place).
func (o *ObjectRecord) SetProperty(k types.PropertyKey, p Property) {
	if i := o.FindKey(k); i >= 0 {
		o.Props[i] = p
		return
	}
	o.Keys = append(o.Keys, k)
	o.Props = append(o.Props, p)
}

// RemoveKey deletes the slot at position i.
func (o *ObjectRecord) RemoveKey(i int) {
	o.Keys = append(o.Keys[:i], o.Keys[i+1:]...)
	o.Props = append(o.Props[:i], o.Props[i+1:]...)
}

// StringRecord is a heap string.
type StringRecord struct {
	Data string
}

// SymbolRecord is a symbol with an optional description. Internal symbols
// back engine-private slots (iterator state) and are filtered out of
// OwnPropertyKeys so they never become user-observable keys.
type SymbolRecord struct {
	Description    string
	HasDescription bool
	Internal       bool
}

// BigIntRecord is an arbitrary-precision integer.
type BigIntRecord struct {
	Data *big.Int
}

// NumberRecord is a heap-boxed float64 (doubles that fit no immediate tag).
type NumberRecord struct {
	Data float64
}

// ArrayRecord is the array exotic object: a dense element store (holes are
// the internal hole sentinel), the mutable length, and an embedded ordinary
// record for non-index properties.
type ArrayRecord struct {
	ObjectRecord
	Elements       []types.Value
	Length         uint32
	LengthWritable bool
}

// IsSimple reports that no element slot needs a prototype-chain or accessor
// lookup: the record has no own index-keyed properties outside Elements.
// Together with IsDense this licenses direct element access.
func (a *ArrayRecord) IsSimple() bool {
	for _, k := range a.Keys {
		if k.IsInteger() {
			return false
		}
	}
	return true
}

// IsDense reports that every slot below Length is present.
func (a *ArrayRecord) IsDense() bool {
	if uint32(len(a.Elements)) != a.Length {
		return false
	}
	for _, e := range a.Elements {
		if e.IsHole() {
			return false
		}
	}
	return true
}

// BuiltinFunctionRecord is a native function: its behaviour, arity and name,
// plus the ordinary record for any extra properties. Behaviour is opaque to
// the heap (internal/core defines the signature); it must not capture heap
// indices, which would escape the collector's rewrite pass.
type BuiltinFunctionRecord struct {
	ObjectRecord
	Name          string
	Length        int
	Behaviour     any
	IsConstructor bool
	RealmID       int
}

// BoundFunctionRecord is a function produced by Function.prototype.bind.
type BoundFunctionRecord struct {
	ObjectRecord
	Target    types.Value
	BoundThis types.Value
	BoundArgs []types.Value
	Name      string
	Length    int
}

// ErrorRecord is an error object: its kind tag plus the message value.
type ErrorRecord struct {
	ObjectRecord
	Kind    ErrorKind
	Message types.Value // string value or undefined
}

// ErrorKind tags the ECMAScript error constructor an error belongs to.
type ErrorKind uint8

const (
	PlainError ErrorKind = iota
	TypeError
	RangeError
	SyntaxError
	ReferenceError
	URIError
	EvalError
)

// Name returns the constructor name of the kind.
func (k ErrorKind) Name() string {
	switch k {
	case TypeError:
		return "TypeError"
	case RangeError:
		return "RangeError"
	case SyntaxError:
		return "SyntaxError"
	case ReferenceError:
		return "ReferenceError"
	case URIError:
		return "URIError"
	case EvalError:
		return "EvalError"
	default:
		return "Error"
	}
}

// PrimitiveObjectRecord boxes a primitive (Boolean/Number/String/Symbol/
// BigInt wrapper objects created by ToObject and the wrapper constructors).
type PrimitiveObjectRecord struct {
	ObjectRecord
	Data types.Value
}

// ArrayBufferRecord owns a byte region. Fixed buffers have MaxByteLength -1;
// growable/resizable buffers carry their limit. Shared buffers are the only
// cross-agent resource; their current length is read seq-cst.
type ArrayBufferRecord struct {
	ObjectRecord
	Data          []byte
	byteLength    int64
	MaxByteLength int64 // -1 when not resizable/growable
	Shared        bool
	Detached      bool
}

// Ordering selects the memory order for a buffer-length observation:
// sequentially consistent for user-observable operations, unordered for
// internal bookkeeping.
type Ordering uint8

const (
	Unordered Ordering = iota
	SeqCst
)

// ByteLength samples the current byte length at the requested order.
func (b *ArrayBufferRecord) ByteLength(order Ordering) int64 {
	if b.Detached {
		return 0
	}
	if b.Shared && order == SeqCst {
		return atomic.LoadInt64(&b.byteLength)
	}
	return b.byteLength
}

// SetByteLength stores a new byte length (resize/grow paths).
func (b *ArrayBufferRecord) SetByteLength(n int64) {
	if b.Shared {
		atomic.StoreInt64(&b.byteLength, n)
		return
	}
	b.byteLength = n
}

// IsResizable reports whether the buffer was created with a max length.
func (b *ArrayBufferRecord) IsResizable() bool { return b.MaxByteLength >= 0 }

// Detach releases the byte region. Only non-shared buffers detach.
func (b *ArrayBufferRecord) Detach() {
	b.Data = nil
	b.byteLength = 0
	b.Detached = true
}

// TypedArrayRecord is a typed view over an array buffer. ByteLength and
// ArrayLength of -1 mark a length-tracking view; observable bounds are
// always computed through a witness record in internal/core.
type TypedArrayRecord struct {
	ObjectRecord
	Buffer      types.Value
	ByteOffset  int64
	ByteLength  int64 // -1: length-tracking
	ArrayLength int64 // -1: length-tracking
	Kind        types.ElementKind
}

// IsLengthTracking reports whether the view auto-tracks its buffer's length.
func (t *TypedArrayRecord) IsLengthTracking() bool { return t.ArrayLength < 0 }

// DataViewRecord is an untyped view over an array buffer.
type DataViewRecord struct {
	ObjectRecord
	Buffer     types.Value
	ByteOffset int64
	ByteLength int64 // -1: length-tracking
}

// WeakRefRecord holds a weak edge to its target: the collector clears
// Target (to undefined) when the target does not survive a collection.
type WeakRefRecord struct {
	ObjectRecord
	Target types.Value
}

// FinalizationCell is one registered target of a finalization registry.
// Target and Token are weak edges; Held is strong.
type FinalizationCell struct {
	Target types.Value
	Held   types.Value
	Token  types.Value // undefined: no unregister token
}

// FinalizationRegistryRecord tracks cells whose targets, once collected,
// queue their held values for a host-driven cleanup pass.
type FinalizationRegistryRecord struct {
	ObjectRecord
	CleanupCallback types.Value
	Cells           []FinalizationCell
	PendingHeld     []types.Value
}
