package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// WeakRef and FinalizationRegistry. The heap's weak tracing pass clears
// targets that did not survive a collection; cleared state becomes
// observable on the next deref or host-driven cleanup pass.

// canBeHeldWeakly: objects and symbols qualify as weak targets.
func canBeHeldWeakly(v types.Value) bool {
	return v.IsObject() || v.IsSymbol()
}

func weakRefConstructor(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if newTarget.IsUndefined() {
		return a.Throw(gc, heap.TypeError, "Constructor WeakRef requires 'new'").Completion()
	}
	target := args.Get(0)
	if !canBeHeldWeakly(target) {
		return a.Throw(gc, heap.TypeError, "WeakRef target must be an object or an unregistered symbol").Completion()
	}
	ref := a.heap.NewWeakRef(gc, a.realm.Intrinsic(IntrWeakRefPrototype), target)
	return types.NormalCompletion(ref)
}

// WeakRef.prototype.deref
func weakRefDeref(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	i, err := this.IndexFor(types.TagWeakRef)
	if err != nil {
		return a.Throw(gc, heap.TypeError, "this is not a WeakRef").Completion()
	}
	return types.NormalCompletion(a.heap.WeakRef(gc.NoGC(), i).Target)
}

func createWeakRefIntrinsics(a *Agent, r *Realm, gc *heap.Scope) {
	h := a.heap
	proto := h.NewOrdinaryObject(gc, r.intrinsics[IntrObjectPrototype])
	r.intrinsics[IntrWeakRefPrototype] = proto

	ctor := a.CreateBuiltinFunction(gc, BuiltinDef{
		Name: "WeakRef", Length: 1, Behaviour: weakRefConstructor, IsConstructor: true,
	})
	r.intrinsics[IntrWeakRefConstructor] = ctor
	a.installConstructor(gc, ctor, proto)

	a.installMethod(gc, proto, BuiltinDef{Name: "deref", Length: 0, Behaviour: weakRefDeref})
	tagKey := types.SymbolKey(a.wellKnown.ToStringTag.Index())
	a.installData(gc, proto, tagKey, h.NewString(gc, "WeakRef"), heap.AttrConfigurable)
}

// ============================================================================
// FINALIZATION REGISTRY
// ============================================================================

func finalizationRegistryConstructor(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if newTarget.IsUndefined() {
		return a.Throw(gc, heap.TypeError, "Constructor FinalizationRegistry requires 'new'").Completion()
	}
	cleanup := args.Get(0)
	if !a.IsCallable(cleanup) {
		return a.Throw(gc, heap.TypeError, "cleanup callback is not a function").Completion()
	}
	registry := a.heap.NewFinalizationRegistry(gc, a.realm.Intrinsic(IntrFinalizationRegistryPrototype), cleanup)
	return types.NormalCompletion(registry)
}

// FinalizationRegistry.prototype.register
func finalizationRegistryRegister(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	i, err := this.IndexFor(types.TagFinalizationRegistry)
	if err != nil {
		return a.Throw(gc, heap.TypeError, "this is not a FinalizationRegistry").Completion()
	}
	target := args.Get(0)
	held := args.Get(1)
	token := args.Get(2)
	n := gc.NoGC()
	if !canBeHeldWeakly(target) {
		return a.Throw(gc, heap.TypeError, "target must be an object or an unregistered symbol").Completion()
	}
	if a.SameValue(n, target, held) {
		return a.Throw(gc, heap.TypeError, "target and held value must differ").Completion()
	}
	if !token.IsUndefined() && !canBeHeldWeakly(token) {
		return a.Throw(gc, heap.TypeError, "unregister token must be an object or an unregistered symbol").Completion()
	}
	rec := a.heap.Registry(n, i)
	rec.Cells = append(rec.Cells, heap.FinalizationCell{Target: target, Held: held, Token: token})
	return types.NormalCompletion(types.Undefined())
}

// FinalizationRegistry.prototype.unregister
func finalizationRegistryUnregister(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	i, err := this.IndexFor(types.TagFinalizationRegistry)
	if err != nil {
		return a.Throw(gc, heap.TypeError, "this is not a FinalizationRegistry").Completion()
	}
	token := args.Get(0)
	if !canBeHeldWeakly(token) {
		return a.Throw(gc, heap.TypeError, "unregister token must be an object or an unregistered symbol").Completion()
	}
	n := gc.NoGC()
	rec := a.heap.Registry(n, i)
	removed := false
	kept := rec.Cells[:0]
	for _, cell := range rec.Cells {
		if a.SameValue(n, cell.Token, token) {
			removed = true
			continue
		}
		kept = append(kept, cell)
	}
	rec.Cells = kept
	return types.NormalCompletion(types.BooleanValue(removed))
}

// FinalizationRegistry.prototype.cleanupSome drains the held values queued
// by the collector's weak pass, invoking the provided callback (or the
// registry's own).
func finalizationRegistryCleanupSome(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	_, err := this.IndexFor(types.TagFinalizationRegistry)
	if err != nil {
		return a.Throw(gc, heap.TypeError, "this is not a FinalizationRegistry").Completion()
	}
	callback := args.Get(0)
	if !callback.IsUndefined() && !a.IsCallable(callback) {
		return a.Throw(gc, heap.TypeError, "callback is not a function").Completion()
	}
	thisScoped := gc.Scope(this)
	callbackScoped := gc.Scope(callback)
	for {
		n := gc.NoGC()
		rec := a.heap.Registry(n, thisScoped.Get(n).Index())
		if len(rec.PendingHeld) == 0 {
			return types.NormalCompletion(types.Undefined())
		}
		held := rec.PendingHeld[0]
		rec.PendingHeld = rec.PendingHeld[1:]
		fn := callbackScoped.Get(n)
		if fn.IsUndefined() {
			fn = rec.CleanupCallback
		}
		if _, thrown := a.Call(fn, types.Undefined(), []types.Value{held}, gc); thrown != nil {
			return thrown.Completion()
		}
	}
}

// RunFinalizationCleanup is the host hook standing in for the microtask
// that drives registry cleanup after a collection: it drains every
// registry's pending queue through its cleanup callback.
func (a *Agent) RunFinalizationCleanup() *Thrown {
	gc := a.topScope.Reborrow()
	defer gc.Release()
	for {
		n := gc.NoGC()
		var registry types.Value
		found := false
		for i := 0; i < a.heap.RegistryCount(); i++ {
			if len(a.heap.Registry(n, uint32(i)).PendingHeld) > 0 {
				registry = types.HeapValue(types.TagFinalizationRegistry, uint32(i))
				found = true
				break
			}
		}
		if !found {
			return nil
		}
		regScoped := gc.Scope(registry)
		for {
			n := gc.NoGC()
			rec := a.heap.Registry(n, regScoped.Get(n).Index())
			if len(rec.PendingHeld) == 0 {
				break
			}
			held := rec.PendingHeld[0]
			rec.PendingHeld = rec.PendingHeld[1:]
			if _, thrown := a.Call(rec.CleanupCallback, types.Undefined(), []types.Value{held}, gc); thrown != nil {
				return thrown
			}
		}
	}
}

func createFinalizationRegistryIntrinsics(a *Agent, r *Realm, gc *heap.Scope) {
	h := a.heap
	proto := h.NewOrdinaryObject(gc, r.intrinsics[IntrObjectPrototype])
	r.intrinsics[IntrFinalizationRegistryPrototype] = proto

	ctor := a.CreateBuiltinFunction(gc, BuiltinDef{
		Name: "FinalizationRegistry", Length: 1, Behaviour: finalizationRegistryConstructor, IsConstructor: true,
	})
	r.intrinsics[IntrFinalizationRegistryConstructor] = ctor
	a.installConstructor(gc, ctor, proto)

	a.installMethod(gc, proto, BuiltinDef{Name: "register", Length: 2, Behaviour: finalizationRegistryRegister})
	a.installMethod(gc, proto, BuiltinDef{Name: "unregister", Length: 1, Behaviour: finalizationRegistryUnregister})
	a.installMethod(gc, proto, BuiltinDef{Name: "cleanupSome", Length: 0, Behaviour: finalizationRegistryCleanupSome})
	tagKey := types.SymbolKey(a.wellKnown.ToStringTag.Index())
	a.installData(gc, proto, tagKey, h.NewString(gc, "FinalizationRegistry"), heap.AttrConfigurable)
}
