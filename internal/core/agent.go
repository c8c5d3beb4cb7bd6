// Package core implements the engine's execution substrate: the Agent and
// Realm machinery, the ordinary-object meta-protocol with its fast and slow
// paths, the ECMAScript abstract operations, and the builtin object library
// (Object, TypedArray, WeakRef and their supporting intrinsics).
//
// Everything in this package takes the owning *Agent explicitly. There are
// no ambient globals: multiple agents in one process are fully independent,
// and only shared array-buffer byte regions may cross them.
package core

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"starling/internal/config"
	"starling/internal/heap"
	"starling/internal/logging"
	"starling/internal/types"
)

// ArgumentsList is the argument vector a builtin receives. Out-of-range
// access yields undefined, matching specification argument coercion.
type ArgumentsList []types.Value

// Get returns the i-th argument or undefined.
func (l ArgumentsList) Get(i int) types.Value {
	if i < 0 || i >= len(l) {
		return types.Undefined()
	}
	return l[i]
}

// NativeFunction is the standard behaviour signature every builtin and every
// installed host function implements.
type NativeFunction func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion

// Frontend is the narrow interface to the out-of-scope parser/compiler/
// interpreter stack. Evaluate runs source inside the agent and returns a
// completion.
type Frontend interface {
	Evaluate(a *Agent, source string, gc *heap.Scope) types.Completion
}

// ExecutionContext is one frame of the agent's context stack.
type ExecutionContext struct {
	Function types.Value
	Realm    *Realm
}

// WellKnownSymbols holds the agent-wide well-known symbol values.
type WellKnownSymbols struct {
	Iterator      types.Value
	AsyncIterator types.Value
	Species       types.Value
	ToPrimitive   types.Value
	ToStringTag   types.Value
}

// Agent owns a single-threaded JavaScript execution environment: the heap,
// the root set, the exception channel, the execution-context stack, and the
// default realm. An Agent must only ever be used from one goroutine.
type Agent struct {
	id       uuid.UUID
	heap     *heap.Heap
	realm    *Realm
	topScope *heap.Scope
	features config.FeatureConfig

	wellKnown WellKnownSymbols
	// internalSyms back the iterator state slots; they are invisible to
	// OwnPropertyKeys.
	internalSyms internalSymbols

	lastException types.Value
	contexts      []ExecutionContext
	interrupt     atomic.Bool
	frontend      Frontend

	log *logging.Logger
}

type internalSymbols struct {
	iteratedObject types.Value
	iteratorIndex  types.Value
	iteratorKind   types.Value
}

// NewAgent creates an agent with a fresh heap and a default realm whose
// intrinsics are fully installed. The configuration selects heap behaviour
// and feature gates; nil selects defaults.
func NewAgent(cfg *config.Config) (*Agent, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	h := heap.NewHeap(heap.Options{
		GCThreshold:         cfg.Heap.GCThreshold,
		StressGC:            false, // enabled after bootstrap
		DisableGC:           true,  // bootstrap runs without relocation
		DebugChecks:         cfg.Heap.DebugChecks,
		MaxArrayBufferBytes: cfg.Heap.MaxArrayBufferBytes,
	})
	a := &Agent{
		id:       uuid.New(),
		heap:     h,
		features: cfg.Features,
		log:      logging.Get(logging.CategoryBoot),
	}
	a.topScope = h.NewTopScope()
	h.AddRootProvider(a.rootValues)

	gc := a.topScope
	a.createWellKnownSymbols(gc)
	a.realm = newRealm(a, gc)

	h.SetDisableGC(cfg.Heap.DisableGC)
	h.SetStressGC(cfg.Heap.StressGC)

	a.log.Info("agent %s ready (realm intrinsics installed)", a.id)
	return a, nil
}

// rootValues exposes every agent-owned value to the collector for scanning
// and in-place rewriting: intrinsics, the global, well-known symbols, the
// pending exception, and the context stack.
func (a *Agent) rootValues() []*types.Value {
	out := make([]*types.Value, 0, int(intrinsicCount)+2*types.NumElementKinds+12+len(a.contexts))
	if a.realm != nil {
		for i := range a.realm.intrinsics {
			out = append(out, &a.realm.intrinsics[i])
		}
		for i := range a.realm.taPrototypes {
			out = append(out, &a.realm.taPrototypes[i])
		}
		for i := range a.realm.taConstructors {
			out = append(out, &a.realm.taConstructors[i])
		}
		out = append(out, &a.realm.global)
	}
	out = append(out,
		&a.wellKnown.Iterator, &a.wellKnown.AsyncIterator, &a.wellKnown.Species,
		&a.wellKnown.ToPrimitive, &a.wellKnown.ToStringTag,
		&a.internalSyms.iteratedObject, &a.internalSyms.iteratorIndex, &a.internalSyms.iteratorKind,
		&a.lastException,
	)
	for i := range a.contexts {
		out = append(out, &a.contexts[i].Function)
	}
	return out
}

func (a *Agent) createWellKnownSymbols(gc *heap.Scope) {
	a.wellKnown.Iterator = a.newInternalSymbol(gc, "Symbol.iterator", false)
	a.wellKnown.AsyncIterator = a.newInternalSymbol(gc, "Symbol.asyncIterator", false)
	a.wellKnown.Species = a.newInternalSymbol(gc, "Symbol.species", false)
	a.wellKnown.ToPrimitive = a.newInternalSymbol(gc, "Symbol.toPrimitive", false)
	a.wellKnown.ToStringTag = a.newInternalSymbol(gc, "Symbol.toStringTag", false)
	a.internalSyms.iteratedObject = a.newInternalSymbol(gc, "[[IteratedObject]]", true)
	a.internalSyms.iteratorIndex = a.newInternalSymbol(gc, "[[ArrayIteratorNextIndex]]", true)
	a.internalSyms.iteratorKind = a.newInternalSymbol(gc, "[[ArrayIterationKind]]", true)
}

func (a *Agent) newInternalSymbol(gc *heap.Scope, description string, internal bool) types.Value {
	v := a.heap.NewSymbol(gc, description, true)
	if internal {
		a.heap.Symbol(gc.NoGC(), v.Index()).Internal = true
	}
	return v
}

// ID returns the agent's correlation id.
func (a *Agent) ID() string { return a.id.String() }

// Heap returns the agent-owned heap.
func (a *Agent) Heap() *heap.Heap { return a.heap }

// Realm returns the default realm.
func (a *Agent) Realm() *Realm { return a.realm }

// TopScope returns the agent's root GC scope. Host entry points reborrow
// from it.
func (a *Agent) TopScope() *heap.Scope { return a.topScope }

// WellKnown returns the well-known symbol table.
func (a *Agent) WellKnown() WellKnownSymbols { return a.wellKnown }

// Features returns the feature gates the agent was created with.
func (a *Agent) Features() config.FeatureConfig { return a.features }

// RequestInterrupt sets the embedder interrupt flag; iteration-heavy
// operations poll it at loop heads.
func (a *Agent) RequestInterrupt() { a.interrupt.Store(true) }

// ClearInterrupt resets the flag.
func (a *Agent) ClearInterrupt() { a.interrupt.Store(false) }

// Interrupted reports the flag.
func (a *Agent) Interrupted() bool { return a.interrupt.Load() }

// CollectGarbage forces a full collection (debug surface).
func (a *Agent) CollectGarbage() { a.heap.Collect() }

// LastException returns the most recently thrown error value, or undefined.
func (a *Agent) LastException() types.Value { return a.lastException }

// ClearException resets the exception channel.
func (a *Agent) ClearException() { a.lastException = types.Undefined() }

func (a *Agent) pushContext(fn types.Value) {
	a.contexts = append(a.contexts, ExecutionContext{Function: fn, Realm: a.realm})
}

func (a *Agent) popContext() {
	a.contexts = a.contexts[:len(a.contexts)-1]
}

// ContextDepth returns the execution-context stack depth (diagnostics).
func (a *Agent) ContextDepth() int { return len(a.contexts) }

// SetFrontend installs the source evaluator the embedding provides.
func (a *Agent) SetFrontend(f Frontend) { a.frontend = f }

// Evaluate runs a source string through the installed frontend. Without a
// frontend it throws a SyntaxError: the parser stack is an external
// collaborator, not part of this core.
func (a *Agent) Evaluate(source string) types.Completion {
	gc := a.topScope.Reborrow()
	defer gc.Release()
	if a.frontend == nil {
		t := a.Throw(gc, heap.SyntaxError, "no frontend installed: cannot evaluate source")
		return t.Completion()
	}
	logging.Get(logging.CategoryHost).Debug("agent %s evaluating %d bytes", a.id, len(source))
	return a.frontend.Evaluate(a, source, gc)
}

// Global looks up a property on the global object by name.
func (a *Agent) Global(name string) (types.Value, error) {
	gc := a.topScope.Reborrow()
	defer gc.Release()
	v, thrown := a.Get(a.realm.global, types.StringKey(name), a.realm.global, gc)
	if thrown != nil {
		return types.Undefined(), fmt.Errorf("global lookup %q: %w", name, thrown)
	}
	return v, nil
}

// InstallHostFunction registers a native callback as a data property of the
// global object under the given name.
func (a *Agent) InstallHostFunction(name string, fn NativeFunction, length int) error {
	gc := a.topScope.Reborrow()
	defer gc.Release()
	f := a.CreateBuiltinFunction(gc, BuiltinDef{Name: name, Length: length, Behaviour: fn})
	global := gc.Scope(a.realm.global)
	fScoped := gc.Scope(f)
	thrown := a.CreateDataPropertyOrThrow(global.Get(gc.NoGC()), types.StringKey(name), fScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		return fmt.Errorf("installing host function %q: %w", name, thrown)
	}
	logging.Get(logging.CategoryHost).Info("host function %q installed", name)
	return nil
}

// DetachArrayBuffer is the host hook that releases a non-shared buffer's
// byte region. Passing a shared buffer (or any non-ArrayBuffer value)
// returns an error.
func (a *Agent) DetachArrayBuffer(buffer types.Value) error {
	gc := a.topScope.Reborrow()
	defer gc.Release()
	i, err := buffer.IndexFor(types.TagArrayBuffer)
	if err != nil {
		return fmt.Errorf("DetachArrayBuffer: %w", err)
	}
	rec := a.heap.Buffer(gc.NoGC(), i)
	if rec.Shared {
		return fmt.Errorf("DetachArrayBuffer: cannot detach a shared buffer")
	}
	rec.Detach()
	return nil
}
