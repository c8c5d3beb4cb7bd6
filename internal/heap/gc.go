package heap

import (
	"time"

	"starling/internal/types"
)

// relocations bundles the per-arena old->new index tables produced by
// compaction.
type relocations struct {
	strings     []uint32
	symbols     []uint32
	bigints     []uint32
	numbers     []uint32
	objects     []uint32
	arrays      []uint32
	builtins    []uint32
	bounds      []uint32
	errors      []uint32
	primitives  []uint32
	buffers     []uint32
	typedArrays []uint32
	dataViews   []uint32
	weakRefs    []uint32
	registries  []uint32
}

// Collect runs a full stop-the-world mark-compact cycle: root scan,
// transitive mark, weak-edge clearing, per-arena compaction, and index
// rewriting on every surviving edge and every root. The safepoint epoch
// advances, invalidating all unrooted handles.
func (h *Heap) Collect() {
	start := time.Now()

	h.strings.beginMark()
	h.symbols.beginMark()
	h.bigints.beginMark()
	h.numbers.beginMark()
	h.objects.beginMark()
	h.arrays.beginMark()
	h.builtins.beginMark()
	h.bounds.beginMark()
	h.errors.beginMark()
	h.primitives.beginMark()
	h.buffers.beginMark()
	h.typedArrays.beginMark()
	h.dataViews.beginMark()
	h.weakRefs.beginMark()
	h.registries.beginMark()

	work := make([]types.Value, 0, 128)
	for _, v := range h.rootSlots {
		h.markValue(&work, v)
	}
	for _, provider := range h.providers {
		for _, ptr := range provider() {
			h.markValue(&work, *ptr)
		}
	}
	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]
		h.trace(&work, v)
	}

	h.clearWeakEdges()

	reloc := relocations{
		strings:     h.strings.compact(),
		symbols:     h.symbols.compact(),
		bigints:     h.bigints.compact(),
		numbers:     h.numbers.compact(),
		objects:     h.objects.compact(),
		arrays:      h.arrays.compact(),
		builtins:    h.builtins.compact(),
		bounds:      h.bounds.compact(),
		errors:      h.errors.compact(),
		primitives:  h.primitives.compact(),
		buffers:     h.buffers.compact(),
		typedArrays: h.typedArrays.compact(),
		dataViews:   h.dataViews.compact(),
		weakRefs:    h.weakRefs.compact(),
		registries:  h.registries.compact(),
	}

	h.rewriteAll(&reloc)

	h.epoch++
	h.allocsSinceGC = 0
	h.stats.Collections++
	h.log.Debug("collection %d: %d live records, pause %v",
		h.stats.Collections, h.Statistics().LiveRecords, time.Since(start))
}

// markValue sets the mark bit for an indirect value and queues it for
// tracing when its kind has outgoing edges.
func (h *Heap) markValue(work *[]types.Value, v types.Value) {
	if !v.IsIndirect() {
		return
	}
	i := v.Index()
	var newly, hasEdges bool
	switch v.Tag() {
	case types.TagString:
		newly = h.strings.mark(i)
	case types.TagSymbol:
		newly = h.symbols.mark(i)
	case types.TagBigInt:
		newly = h.bigints.mark(i)
	case types.TagNumber:
		newly = h.numbers.mark(i)
	case types.TagObject:
		newly, hasEdges = h.objects.mark(i), true
	case types.TagArray:
		newly, hasEdges = h.arrays.mark(i), true
	case types.TagBuiltinFunction:
		newly, hasEdges = h.builtins.mark(i), true
	case types.TagBoundFunction:
		newly, hasEdges = h.bounds.mark(i), true
	case types.TagError:
		newly, hasEdges = h.errors.mark(i), true
	case types.TagPrimitiveObject:
		newly, hasEdges = h.primitives.mark(i), true
	case types.TagArrayBuffer, types.TagSharedArrayBuffer:
		newly, hasEdges = h.buffers.mark(i), true
	case types.TagDataView:
		newly, hasEdges = h.dataViews.mark(i), true
	case types.TagWeakRef:
		newly, hasEdges = h.weakRefs.mark(i), true
	case types.TagFinalizationRegistry:
		newly, hasEdges = h.registries.mark(i), true
	default:
		if v.IsTypedArray() {
			newly, hasEdges = h.typedArrays.mark(i), true
			break
		}
		panic("starling: internal error: marking unimplemented kind " + v.Tag().String())
	}
	if newly && hasEdges {
		*work = append(*work, v)
	}
}

func (h *Heap) isMarkedValue(v types.Value) bool {
	if !v.IsIndirect() {
		return true
	}
	i := v.Index()
	switch v.Tag() {
	case types.TagString:
		return h.strings.isMarked(i)
	case types.TagSymbol:
		return h.symbols.isMarked(i)
	case types.TagBigInt:
		return h.bigints.isMarked(i)
	case types.TagNumber:
		return h.numbers.isMarked(i)
	case types.TagObject:
		return h.objects.isMarked(i)
	case types.TagArray:
		return h.arrays.isMarked(i)
	case types.TagBuiltinFunction:
		return h.builtins.isMarked(i)
	case types.TagBoundFunction:
		return h.bounds.isMarked(i)
	case types.TagError:
		return h.errors.isMarked(i)
	case types.TagPrimitiveObject:
		return h.primitives.isMarked(i)
	case types.TagArrayBuffer, types.TagSharedArrayBuffer:
		return h.buffers.isMarked(i)
	case types.TagDataView:
		return h.dataViews.isMarked(i)
	case types.TagWeakRef:
		return h.weakRefs.isMarked(i)
	case types.TagFinalizationRegistry:
		return h.registries.isMarked(i)
	default:
		if v.IsTypedArray() {
			return h.typedArrays.isMarked(i)
		}
		panic("starling: internal error: mark query on unimplemented kind " + v.Tag().String())
	}
}

// trace pushes every strong outgoing edge of v. Weak edges (weak-ref
// targets, registry cell targets and unregister tokens) are skipped here and
// handled by clearWeakEdges.
func (h *Heap) trace(work *[]types.Value, v types.Value) {
	i := v.Index()
	switch v.Tag() {
	case types.TagObject:
		h.traceShape(work, h.objects.get(i))
	case types.TagArray:
		rec := h.arrays.get(i)
		h.traceShape(work, &rec.ObjectRecord)
		for _, e := range rec.Elements {
			if !e.IsHole() {
				h.markValue(work, e)
			}
		}
	case types.TagBuiltinFunction:
		h.traceShape(work, &h.builtins.get(i).ObjectRecord)
	case types.TagBoundFunction:
		rec := h.bounds.get(i)
		h.traceShape(work, &rec.ObjectRecord)
		h.markValue(work, rec.Target)
		h.markValue(work, rec.BoundThis)
		for _, a := range rec.BoundArgs {
			h.markValue(work, a)
		}
	case types.TagError:
		rec := h.errors.get(i)
		h.traceShape(work, &rec.ObjectRecord)
		h.markValue(work, rec.Message)
	case types.TagPrimitiveObject:
		rec := h.primitives.get(i)
		h.traceShape(work, &rec.ObjectRecord)
		h.markValue(work, rec.Data)
	case types.TagArrayBuffer, types.TagSharedArrayBuffer:
		h.traceShape(work, &h.buffers.get(i).ObjectRecord)
	case types.TagDataView:
		rec := h.dataViews.get(i)
		h.traceShape(work, &rec.ObjectRecord)
		h.markValue(work, rec.Buffer)
	case types.TagWeakRef:
		// Target is weak: the shape survives, the referent only if
		// reachable elsewhere.
		h.traceShape(work, &h.weakRefs.get(i).ObjectRecord)
	case types.TagFinalizationRegistry:
		rec := h.registries.get(i)
		h.traceShape(work, &rec.ObjectRecord)
		h.markValue(work, rec.CleanupCallback)
		for _, cell := range rec.Cells {
			h.markValue(work, cell.Held)
		}
		for _, held := range rec.PendingHeld {
			h.markValue(work, held)
		}
	default:
		if v.IsTypedArray() {
			rec := h.typedArrays.get(i)
			h.traceShape(work, &rec.ObjectRecord)
			h.markValue(work, rec.Buffer)
			break
		}
		panic("starling: internal error: tracing unimplemented kind " + v.Tag().String())
	}
}

func (h *Heap) traceShape(work *[]types.Value, o *ObjectRecord) {
	h.markValue(work, o.Prototype)
	for _, k := range o.Keys {
		if k.IsSymbol() {
			h.symbols.mark(k.SymbolIndex())
		}
	}
	for _, p := range o.Props {
		h.markValue(work, p.Value)
		h.markValue(work, p.Get)
		h.markValue(work, p.Set)
	}
}

// clearWeakEdges runs after marking: weak-ref targets that did not survive
// are cleared, and registry cells with dead targets queue their held values
// for a later host-driven cleanup pass.
func (h *Heap) clearWeakEdges() {
	for i := range h.weakRefs.items {
		if !h.weakRefs.marks[i] {
			continue
		}
		rec := &h.weakRefs.items[i]
		if rec.Target.IsIndirect() && !h.isMarkedValue(rec.Target) {
			rec.Target = types.Undefined()
		}
	}
	for i := range h.registries.items {
		if !h.registries.marks[i] {
			continue
		}
		rec := &h.registries.items[i]
		kept := rec.Cells[:0]
		for _, cell := range rec.Cells {
			if cell.Target.IsIndirect() && !h.isMarkedValue(cell.Target) {
				rec.PendingHeld = append(rec.PendingHeld, cell.Held)
				continue
			}
			if cell.Token.IsIndirect() && !h.isMarkedValue(cell.Token) {
				cell.Token = types.Undefined()
			}
			kept = append(kept, cell)
		}
		rec.Cells = kept
	}
}

// remap rewrites one value through the relocation tables.
func (r *relocations) remap(v types.Value) types.Value {
	if !v.IsIndirect() {
		return v
	}
	var table []uint32
	switch v.Tag() {
	case types.TagString:
		table = r.strings
	case types.TagSymbol:
		table = r.symbols
	case types.TagBigInt:
		table = r.bigints
	case types.TagNumber:
		table = r.numbers
	case types.TagObject:
		table = r.objects
	case types.TagArray:
		table = r.arrays
	case types.TagBuiltinFunction:
		table = r.builtins
	case types.TagBoundFunction:
		table = r.bounds
	case types.TagError:
		table = r.errors
	case types.TagPrimitiveObject:
		table = r.primitives
	case types.TagArrayBuffer, types.TagSharedArrayBuffer:
		table = r.buffers
	case types.TagDataView:
		table = r.dataViews
	case types.TagWeakRef:
		table = r.weakRefs
	case types.TagFinalizationRegistry:
		table = r.registries
	default:
		if v.IsTypedArray() {
			table = r.typedArrays
			break
		}
		panic("starling: internal error: remapping unimplemented kind " + v.Tag().String())
	}
	ni := table[v.Index()]
	if ni == unrelocated {
		panic("starling: internal error: strong edge to unmarked record survived collection")
	}
	return v.WithIndex(ni)
}

func (r *relocations) rewriteShape(o *ObjectRecord) {
	o.Prototype = r.remap(o.Prototype)
	for i, k := range o.Keys {
		if k.IsSymbol() {
			o.Keys[i] = k.WithSymbolIndex(r.symbols[k.SymbolIndex()])
		}
	}
	for i := range o.Props {
		o.Props[i].Value = r.remap(o.Props[i].Value)
		o.Props[i].Get = r.remap(o.Props[i].Get)
		o.Props[i].Set = r.remap(o.Props[i].Set)
	}
}

// rewriteAll walks every surviving record, every root slot, and every
// provider-owned value, rewriting indices in place.
func (h *Heap) rewriteAll(r *relocations) {
	for i := range h.objects.items {
		r.rewriteShape(&h.objects.items[i])
	}
	for i := range h.arrays.items {
		rec := &h.arrays.items[i]
		r.rewriteShape(&rec.ObjectRecord)
		for j, e := range rec.Elements {
			if !e.IsHole() {
				rec.Elements[j] = r.remap(e)
			}
		}
	}
	for i := range h.builtins.items {
		r.rewriteShape(&h.builtins.items[i].ObjectRecord)
	}
	for i := range h.bounds.items {
		rec := &h.bounds.items[i]
		r.rewriteShape(&rec.ObjectRecord)
		rec.Target = r.remap(rec.Target)
		rec.BoundThis = r.remap(rec.BoundThis)
		for j := range rec.BoundArgs {
			rec.BoundArgs[j] = r.remap(rec.BoundArgs[j])
		}
	}
	for i := range h.errors.items {
		rec := &h.errors.items[i]
		r.rewriteShape(&rec.ObjectRecord)
		rec.Message = r.remap(rec.Message)
	}
	for i := range h.primitives.items {
		rec := &h.primitives.items[i]
		r.rewriteShape(&rec.ObjectRecord)
		rec.Data = r.remap(rec.Data)
	}
	for i := range h.buffers.items {
		r.rewriteShape(&h.buffers.items[i].ObjectRecord)
	}
	for i := range h.typedArrays.items {
		rec := &h.typedArrays.items[i]
		r.rewriteShape(&rec.ObjectRecord)
		rec.Buffer = r.remap(rec.Buffer)
	}
	for i := range h.dataViews.items {
		rec := &h.dataViews.items[i]
		r.rewriteShape(&rec.ObjectRecord)
		rec.Buffer = r.remap(rec.Buffer)
	}
	for i := range h.weakRefs.items {
		rec := &h.weakRefs.items[i]
		r.rewriteShape(&rec.ObjectRecord)
		rec.Target = r.remap(rec.Target)
	}
	for i := range h.registries.items {
		rec := &h.registries.items[i]
		r.rewriteShape(&rec.ObjectRecord)
		rec.CleanupCallback = r.remap(rec.CleanupCallback)
		for j := range rec.Cells {
			rec.Cells[j].Target = r.remap(rec.Cells[j].Target)
			rec.Cells[j].Held = r.remap(rec.Cells[j].Held)
			rec.Cells[j].Token = r.remap(rec.Cells[j].Token)
		}
		for j := range rec.PendingHeld {
			rec.PendingHeld[j] = r.remap(rec.PendingHeld[j])
		}
	}
	for i := range h.rootSlots {
		h.rootSlots[i] = r.remap(h.rootSlots[i])
	}
	for _, provider := range h.providers {
		for _, ptr := range provider() {
			*ptr = r.remap(*ptr)
		}
	}
}
