package heap

import (
	"fmt"
	"math/big"

	"starling/internal/logging"
	"starling/internal/types"
)

// Options tune allocation and collection behaviour. The zero value is
// usable; NewHeap fills defaults.
type Options struct {
	// GCThreshold is the number of allocations between automatic
	// collections. Zero selects the default.
	GCThreshold int
	// StressGC forces a collection at every safepoint. Test/debug only.
	StressGC bool
	// DisableGC suppresses automatic collection entirely (debug only);
	// explicit Collect calls still run.
	DisableGC bool
	// DebugChecks enables safepoint-epoch validation on handle access.
	DebugChecks bool
	// MaxArrayBufferBytes bounds a single allocation request. Zero selects
	// the default (2^31 - 1).
	MaxArrayBufferBytes int64
}

const (
	defaultGCThreshold    = 8192
	defaultMaxBufferBytes = int64(1)<<31 - 1
)

// Stats reports collector activity for the inspect surface.
type Stats struct {
	Collections     uint64
	AllocationCount uint64
	LiveRecords     int
}

// Heap is the collection of typed arenas plus the root set. A heap belongs
// to exactly one agent and is never shared across goroutines; only shared
// array-buffer byte regions cross agents.
type Heap struct {
	opts  Options
	epoch uint64

	allocsSinceGC int
	stats         Stats

	strings     arena[StringRecord]
	symbols     arena[SymbolRecord]
	bigints     arena[BigIntRecord]
	numbers     arena[NumberRecord]
	objects     arena[ObjectRecord]
	arrays      arena[ArrayRecord]
	builtins    arena[BuiltinFunctionRecord]
	bounds      arena[BoundFunctionRecord]
	errors      arena[ErrorRecord]
	primitives  arena[PrimitiveObjectRecord]
	buffers     arena[ArrayBufferRecord]
	typedArrays arena[TypedArrayRecord]
	dataViews   arena[DataViewRecord]
	weakRefs    arena[WeakRefRecord]
	registries  arena[FinalizationRegistryRecord]

	// rootSlots backs scoped handles; providers expose agent-owned values
	// (intrinsics, the exception slot, execution contexts) for scanning and
	// in-place rewriting.
	rootSlots []types.Value
	providers []RootProvider

	log *logging.Logger
}

// RootProvider returns pointers to values the collector must treat as roots
// and rewrite in place after compaction.
type RootProvider func() []*types.Value

// NewHeap builds an empty heap.
func NewHeap(opts Options) *Heap {
	if opts.GCThreshold <= 0 {
		opts.GCThreshold = defaultGCThreshold
	}
	if opts.MaxArrayBufferBytes <= 0 {
		opts.MaxArrayBufferBytes = defaultMaxBufferBytes
	}
	return &Heap{opts: opts, log: logging.Get(logging.CategoryGC)}
}

// AddRootProvider registers an additional root source. Providers are
// consulted on every collection.
func (h *Heap) AddRootProvider(p RootProvider) {
	h.providers = append(h.providers, p)
}

// SetStressGC toggles collect-at-every-safepoint mode.
func (h *Heap) SetStressGC(on bool) { h.opts.StressGC = on }

// SetDisableGC toggles automatic collection (debug only).
func (h *Heap) SetDisableGC(off bool) { h.opts.DisableGC = off }

// Epoch returns the current safepoint epoch; it advances on every
// collection.
func (h *Heap) Epoch() uint64 { return h.epoch }

// Statistics returns a snapshot of collector activity.
func (h *Heap) Statistics() Stats {
	s := h.stats
	s.LiveRecords = h.strings.size() + h.symbols.size() + h.bigints.size() +
		h.numbers.size() + h.objects.size() + h.arrays.size() +
		h.builtins.size() + h.bounds.size() + h.errors.size() +
		h.primitives.size() + h.buffers.size() + h.typedArrays.size() +
		h.dataViews.size() + h.weakRefs.size() + h.registries.size()
	return s
}

// safepoint runs before every allocation: it may trigger a collection, after
// which all unrooted handles held by callers are invalid.
func (h *Heap) safepoint(gc *Scope) {
	if gc == nil || gc.h != h {
		panic("starling: internal error: allocation without a matching gc scope")
	}
	if h.opts.DisableGC {
		return
	}
	if h.opts.StressGC || h.allocsSinceGC >= h.opts.GCThreshold {
		h.Collect()
	}
}

func (h *Heap) noteAllocation() {
	h.allocsSinceGC++
	h.stats.AllocationCount++
}

// allocSafepoint is the protocol every allocator follows for heap-valued
// inputs: root them, cross the safepoint, rebind them through the supplied
// pointers, pop the temporary roots. Callers may therefore pass live handles
// straight into allocation without pre-scoping them; only values they hold
// beyond the call need their own scoping.
func (h *Heap) allocSafepoint(gc *Scope, vals ...*types.Value) {
	base := len(h.rootSlots)
	for _, p := range vals {
		h.rootSlots = append(h.rootSlots, *p)
	}
	h.safepoint(gc)
	for i, p := range vals {
		*p = h.rootSlots[base+i]
	}
	h.rootSlots = h.rootSlots[:base]
	h.noteAllocation()
}

// allocSafepointSlice additionally roots and rebinds a slice of values in
// place (array elements, bound arguments).
func (h *Heap) allocSafepointSlice(gc *Scope, slice []types.Value, vals ...*types.Value) {
	base := len(h.rootSlots)
	for _, p := range vals {
		h.rootSlots = append(h.rootSlots, *p)
	}
	for _, v := range slice {
		h.rootSlots = append(h.rootSlots, v)
	}
	h.safepoint(gc)
	for i, p := range vals {
		*p = h.rootSlots[base+i]
	}
	for i := range slice {
		slice[i] = h.rootSlots[base+len(vals)+i]
	}
	h.rootSlots = h.rootSlots[:base]
	h.noteAllocation()
}

// ============================================================================
// ALLOCATION
// ============================================================================

// NewString returns a string value: inline when it fits, heap otherwise.
func (h *Heap) NewString(gc *Scope, s string) types.Value {
	if v, ok := types.SmallStringValue(s); ok {
		return v
	}
	h.safepoint(gc)
	h.noteAllocation()
	return types.HeapValue(types.TagString, h.strings.allocate(StringRecord{Data: s}))
}

// NewSymbol allocates a symbol.
func (h *Heap) NewSymbol(gc *Scope, description string, hasDescription bool) types.Value {
	h.safepoint(gc)
	h.noteAllocation()
	i := h.symbols.allocate(SymbolRecord{Description: description, HasDescription: hasDescription})
	return types.HeapValue(types.TagSymbol, i)
}

// NewBigInt boxes a big integer.
func (h *Heap) NewBigInt(gc *Scope, v *big.Int) types.Value {
	h.safepoint(gc)
	h.noteAllocation()
	return types.HeapValue(types.TagBigInt, h.bigints.allocate(BigIntRecord{Data: v}))
}

// NewNumber returns a numeric value, immediate when representable.
func (h *Heap) NewNumber(gc *Scope, f float64) types.Value {
	if v, ok := types.ImmediateNumberValue(f); ok {
		return v
	}
	h.safepoint(gc)
	h.noteAllocation()
	return types.HeapValue(types.TagNumber, h.numbers.allocate(NumberRecord{Data: f}))
}

// NewOrdinaryObject allocates an extensible ordinary object.
func (h *Heap) NewOrdinaryObject(gc *Scope, prototype types.Value) types.Value {
	h.allocSafepoint(gc, &prototype)
	return types.HeapValue(types.TagObject, h.objects.allocate(NewObjectRecord(prototype)))
}

// NewOrdinaryObjectWithEntries allocates an ordinary object pre-filled with
// data properties (writable/enumerable/configurable). Keys must be distinct
// and must not be symbols (symbol keys need their own relocation handling;
// no caller of the pre-filled path uses them).
func (h *Heap) NewOrdinaryObjectWithEntries(gc *Scope, prototype types.Value, keys []types.PropertyKey, values []types.Value) types.Value {
	for _, k := range keys {
		if k.IsSymbol() {
			panic("starling: internal error: symbol key in pre-filled object entries")
		}
	}
	h.allocSafepointSlice(gc, values, &prototype)
	rec := NewObjectRecord(prototype)
	rec.Keys = keys
	rec.Props = make([]Property, len(values))
	for i, v := range values {
		rec.Props[i] = Property{Value: v, Attrs: AttrWritable | AttrEnumerable | AttrConfigurable}
	}
	return types.HeapValue(types.TagObject, h.objects.allocate(rec))
}

// NewArray allocates a dense array holding the given elements.
func (h *Heap) NewArray(gc *Scope, prototype types.Value, elements []types.Value) types.Value {
	h.allocSafepointSlice(gc, elements, &prototype)
	rec := ArrayRecord{
		ObjectRecord:   NewObjectRecord(prototype),
		Elements:       elements,
		Length:         uint32(len(elements)),
		LengthWritable: true,
	}
	return types.HeapValue(types.TagArray, h.arrays.allocate(rec))
}

// NewBuiltinFunction allocates a native function record. The record must
// arrive with an empty property store; properties are installed afterwards
// through the meta-protocol.
func (h *Heap) NewBuiltinFunction(gc *Scope, rec BuiltinFunctionRecord) types.Value {
	if len(rec.Props) != 0 {
		panic("starling: internal error: builtin record allocated with properties")
	}
	h.allocSafepoint(gc, &rec.Prototype)
	return types.HeapValue(types.TagBuiltinFunction, h.builtins.allocate(rec))
}

// NewBoundFunction allocates a bound-function record.
func (h *Heap) NewBoundFunction(gc *Scope, rec BoundFunctionRecord) types.Value {
	h.allocSafepointSlice(gc, rec.BoundArgs, &rec.Prototype, &rec.Target, &rec.BoundThis)
	return types.HeapValue(types.TagBoundFunction, h.bounds.allocate(rec))
}

// NewError allocates an error object of the given kind.
func (h *Heap) NewError(gc *Scope, prototype types.Value, kind ErrorKind, message types.Value) types.Value {
	h.allocSafepoint(gc, &prototype, &message)
	rec := ErrorRecord{ObjectRecord: NewObjectRecord(prototype), Kind: kind, Message: message}
	return types.HeapValue(types.TagError, h.errors.allocate(rec))
}

// NewPrimitiveObject allocates a primitive wrapper object.
func (h *Heap) NewPrimitiveObject(gc *Scope, prototype, data types.Value) types.Value {
	h.allocSafepoint(gc, &prototype, &data)
	rec := PrimitiveObjectRecord{ObjectRecord: NewObjectRecord(prototype), Data: data}
	return types.HeapValue(types.TagPrimitiveObject, h.primitives.allocate(rec))
}

// NewArrayBuffer allocates a buffer of byteLength bytes. maxByteLength of -1
// means fixed-length. Returns an error for lengths beyond the configured
// limit; the caller surfaces it as a RangeError.
func (h *Heap) NewArrayBuffer(gc *Scope, prototype types.Value, byteLength, maxByteLength int64, shared bool) (types.Value, error) {
	reserve := byteLength
	if maxByteLength >= 0 {
		reserve = maxByteLength
	}
	if byteLength < 0 || reserve > h.opts.MaxArrayBufferBytes || (maxByteLength >= 0 && byteLength > maxByteLength) {
		return types.Undefined(), fmt.Errorf("array buffer allocation of %d bytes rejected", byteLength)
	}
	h.allocSafepoint(gc, &prototype)
	rec := ArrayBufferRecord{
		ObjectRecord:  NewObjectRecord(prototype),
		Data:          make([]byte, byteLength, reserve),
		MaxByteLength: maxByteLength,
		Shared:        shared,
	}
	rec.byteLength = byteLength
	tag := types.TagArrayBuffer
	if shared {
		tag = types.TagSharedArrayBuffer
	}
	return types.HeapValue(tag, h.buffers.allocate(rec)), nil
}

// NewTypedArray allocates a typed-array view record; the value tag follows
// the element kind.
func (h *Heap) NewTypedArray(gc *Scope, rec TypedArrayRecord) types.Value {
	h.allocSafepoint(gc, &rec.Prototype, &rec.Buffer)
	return types.HeapValue(rec.Kind.Tag(), h.typedArrays.allocate(rec))
}

// NewDataView allocates a data-view record.
func (h *Heap) NewDataView(gc *Scope, rec DataViewRecord) types.Value {
	h.allocSafepoint(gc, &rec.Prototype, &rec.Buffer)
	return types.HeapValue(types.TagDataView, h.dataViews.allocate(rec))
}

// NewWeakRef allocates a weak reference to target.
func (h *Heap) NewWeakRef(gc *Scope, prototype, target types.Value) types.Value {
	h.allocSafepoint(gc, &prototype, &target)
	rec := WeakRefRecord{ObjectRecord: NewObjectRecord(prototype), Target: target}
	return types.HeapValue(types.TagWeakRef, h.weakRefs.allocate(rec))
}

// NewFinalizationRegistry allocates a registry with the given cleanup
// callback.
func (h *Heap) NewFinalizationRegistry(gc *Scope, prototype, cleanup types.Value) types.Value {
	h.allocSafepoint(gc, &prototype, &cleanup)
	rec := FinalizationRegistryRecord{ObjectRecord: NewObjectRecord(prototype), CleanupCallback: cleanup}
	return types.HeapValue(types.TagFinalizationRegistry, h.registries.allocate(rec))
}

// ============================================================================
// ACCESS
// ============================================================================

func (h *Heap) check(n NoGC) {
	if h.opts.DebugChecks && (n.h != h || n.epoch != h.epoch) {
		panic("starling: internal error: unrooted handle used across a safepoint")
	}
}

// StringData returns the content of a heap string.
func (h *Heap) StringData(n NoGC, i uint32) string {
	h.check(n)
	return h.strings.get(i).Data
}

// StringContent resolves any string value (inline or heap) to its content.
func (h *Heap) StringContent(n NoGC, v types.Value) string {
	switch v.Tag() {
	case types.TagSmallString:
		return v.SmallString()
	case types.TagString:
		return h.StringData(n, v.Index())
	}
	panic("starling: internal error: StringContent on " + v.Tag().String())
}

// Symbol returns a symbol record.
func (h *Heap) Symbol(n NoGC, i uint32) *SymbolRecord {
	h.check(n)
	return h.symbols.get(i)
}

// BigInt returns a big-integer record.
func (h *Heap) BigInt(n NoGC, i uint32) *BigIntRecord {
	h.check(n)
	return h.bigints.get(i)
}

// NumberData returns the float of a heap-boxed number.
func (h *Heap) NumberData(n NoGC, i uint32) float64 {
	h.check(n)
	return h.numbers.get(i).Data
}

// NumberFloat resolves any numeric value (immediate or heap) to a float64.
func (h *Heap) NumberFloat(n NoGC, v types.Value) float64 {
	if v.Tag() == types.TagNumber {
		return h.NumberData(n, v.Index())
	}
	return v.ImmediateNumber()
}

// Object returns an ordinary-object record.
func (h *Heap) Object(n NoGC, i uint32) *ObjectRecord {
	h.check(n)
	return h.objects.get(i)
}

// Array returns an array record.
func (h *Heap) Array(n NoGC, i uint32) *ArrayRecord {
	h.check(n)
	return h.arrays.get(i)
}

// Builtin returns a builtin-function record.
func (h *Heap) Builtin(n NoGC, i uint32) *BuiltinFunctionRecord {
	h.check(n)
	return h.builtins.get(i)
}

// Bound returns a bound-function record.
func (h *Heap) Bound(n NoGC, i uint32) *BoundFunctionRecord {
	h.check(n)
	return h.bounds.get(i)
}

// Error returns an error record.
func (h *Heap) Error(n NoGC, i uint32) *ErrorRecord {
	h.check(n)
	return h.errors.get(i)
}

// Primitive returns a primitive-wrapper record.
func (h *Heap) Primitive(n NoGC, i uint32) *PrimitiveObjectRecord {
	h.check(n)
	return h.primitives.get(i)
}

// Buffer returns an array-buffer record.
func (h *Heap) Buffer(n NoGC, i uint32) *ArrayBufferRecord {
	h.check(n)
	return h.buffers.get(i)
}

// TypedArray returns a typed-array record.
func (h *Heap) TypedArray(n NoGC, i uint32) *TypedArrayRecord {
	h.check(n)
	return h.typedArrays.get(i)
}

// DataView returns a data-view record.
func (h *Heap) DataView(n NoGC, i uint32) *DataViewRecord {
	h.check(n)
	return h.dataViews.get(i)
}

// WeakRef returns a weak-reference record.
func (h *Heap) WeakRef(n NoGC, i uint32) *WeakRefRecord {
	h.check(n)
	return h.weakRefs.get(i)
}

// Registry returns a finalization-registry record.
func (h *Heap) Registry(n NoGC, i uint32) *FinalizationRegistryRecord {
	h.check(n)
	return h.registries.get(i)
}

// RegistryCount returns the number of live finalization registries; the
// host cleanup pass iterates them by index.
func (h *Heap) RegistryCount() int { return h.registries.size() }

// ObjectShape returns the embedded ordinary-object record of any implemented
// object kind; the meta-protocol's ordinary algorithms run against it.
func (h *Heap) ObjectShape(n NoGC, v types.Value) *ObjectRecord {
	h.check(n)
	i := v.Index()
	switch v.Tag() {
	case types.TagObject:
		return h.objects.get(i)
	case types.TagArray:
		return &h.arrays.get(i).ObjectRecord
	case types.TagBuiltinFunction:
		return &h.builtins.get(i).ObjectRecord
	case types.TagBoundFunction:
		return &h.bounds.get(i).ObjectRecord
	case types.TagError:
		return &h.errors.get(i).ObjectRecord
	case types.TagPrimitiveObject:
		return &h.primitives.get(i).ObjectRecord
	case types.TagArrayBuffer, types.TagSharedArrayBuffer:
		return &h.buffers.get(i).ObjectRecord
	case types.TagDataView:
		return &h.dataViews.get(i).ObjectRecord
	case types.TagWeakRef:
		return &h.weakRefs.get(i).ObjectRecord
	case types.TagFinalizationRegistry:
		return &h.registries.get(i).ObjectRecord
	}
	if v.IsTypedArray() {
		return &h.typedArrays.get(i).ObjectRecord
	}
	panic("starling: internal error: ObjectShape on unimplemented kind " + v.Tag().String())
}
