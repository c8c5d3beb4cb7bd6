package core

import (
	"testing"

	"go.uber.org/goleak"

	"starling/internal/config"
	"starling/internal/heap"
	"starling/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestAgent builds an agent with debug handle checking and a high
// collection threshold: semantics tests should not hit incidental
// collections.
func newTestAgent(t *testing.T) *Agent {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Heap.DebugChecks = true
	cfg.Heap.GCThreshold = 1 << 20
	a, err := NewAgent(cfg)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	return a
}

// newStressAgent collects at every safepoint; rooting mistakes surface as
// corrupted values or debug-check panics.
func newStressAgent(t *testing.T) *Agent {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Heap.DebugChecks = true
	cfg.Heap.StressGC = true
	a, err := NewAgent(cfg)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	return a
}

// mustGlobal resolves a global binding or fails the test.
func mustGlobal(t *testing.T, a *Agent, name string) types.Value {
	t.Helper()
	v, err := a.Global(name)
	if err != nil {
		t.Fatalf("Global(%q) error = %v", name, err)
	}
	if v.IsUndefined() {
		t.Fatalf("Global(%q) is undefined", name)
	}
	return v
}

// callMethod reads name off recv and calls it with recv as this.
func callMethod(a *Agent, gc *heap.Scope, recv types.Value, name string, args ...types.Value) (types.Value, *Thrown) {
	recvScoped := gc.Scope(recv)
	method, thrown := a.Get(recv, types.StringKey(name), recv, gc)
	if thrown != nil {
		return types.Undefined(), thrown
	}
	return a.Call(method, recvScoped.Get(gc.NoGC()), args, gc)
}

// errorKindOf extracts the error kind of a thrown value.
func errorKindOf(t *testing.T, a *Agent, thrown *Thrown) heap.ErrorKind {
	t.Helper()
	if thrown == nil {
		t.Fatal("expected a thrown completion")
	}
	i, err := thrown.Value.IndexFor(types.TagError)
	if err != nil {
		t.Fatalf("thrown value is %s, not an error object", thrown.Value.Tag())
	}
	return a.Heap().Error(a.TopScope().NoGC(), i).Kind
}

// newPlainObject builds an ordinary object with the given data properties.
func newPlainObject(t *testing.T, a *Agent, gc *heap.Scope, pairs ...interface{}) types.Value {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatal("newPlainObject needs key/value pairs")
	}
	obj := gc.Scope(a.OrdinaryObjectCreate(a.Realm().Intrinsic(IntrObjectPrototype), gc))
	for i := 0; i < len(pairs); i += 2 {
		key := types.StringKey(pairs[i].(string))
		var v types.Value
		switch x := pairs[i+1].(type) {
		case int:
			v = types.IntegerValue(int64(x))
		case string:
			v = a.heap.NewString(gc, x)
		case types.Value:
			v = x
		default:
			t.Fatalf("unsupported value %T", x)
		}
		if thrown := a.CreateDataPropertyOrThrow(obj.Get(gc.NoGC()), key, v, gc); thrown != nil {
			t.Fatalf("seeding %v failed: %v", pairs[i], thrown)
		}
	}
	return obj.Get(gc.NoGC())
}

func TestEvaluateWithoutFrontendThrowsSyntaxError(t *testing.T) {
	a := newTestAgent(t)
	completion := a.Evaluate("1 + 1")
	if !completion.IsAbrupt() {
		t.Fatal("Evaluate without a frontend completed normally")
	}
	i, err := completion.Value().IndexFor(types.TagError)
	if err != nil {
		t.Fatalf("thrown value is %s", completion.Value().Tag())
	}
	if kind := a.Heap().Error(a.TopScope().NoGC(), i).Kind; kind != heap.SyntaxError {
		t.Fatalf("error kind = %s, want SyntaxError", kind.Name())
	}
}

type recordingFrontend struct {
	lastSource string
}

func (f *recordingFrontend) Evaluate(a *Agent, source string, gc *heap.Scope) types.Completion {
	f.lastSource = source
	return types.NormalCompletion(types.IntegerValue(int64(len(source))))
}

func TestEvaluateDelegatesToFrontend(t *testing.T) {
	a := newTestAgent(t)
	fe := &recordingFrontend{}
	a.SetFrontend(fe)
	completion := a.Evaluate("var x = 1")
	if completion.IsAbrupt() {
		t.Fatalf("frontend evaluation threw: %s", completion.Value().Tag())
	}
	if fe.lastSource != "var x = 1" {
		t.Fatalf("frontend saw %q", fe.lastSource)
	}
	if completion.Value().Integer() != int64(len("var x = 1")) {
		t.Fatal("frontend completion value lost")
	}
}

func TestInstallHostFunction(t *testing.T) {
	a := newTestAgent(t)
	called := 0
	err := a.InstallHostFunction("hostEcho", func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		called++
		return types.NormalCompletion(args.Get(0))
	}, 1)
	if err != nil {
		t.Fatalf("InstallHostFunction() error = %v", err)
	}

	gc := a.TopScope().Reborrow()
	defer gc.Release()
	fn := mustGlobal(t, a, "hostEcho")
	out, thrown := a.Call(fn, types.Undefined(), []types.Value{types.IntegerValue(7)}, gc)
	if thrown != nil {
		t.Fatalf("host call threw: %v", thrown)
	}
	if out.Integer() != 7 || called != 1 {
		t.Fatalf("host function echo = %v, called = %d", out, called)
	}
}

func TestAgentsAreIndependent(t *testing.T) {
	a1 := newTestAgent(t)
	a2 := newTestAgent(t)
	if a1.ID() == a2.ID() {
		t.Fatal("agents share an id")
	}
	gc := a1.TopScope().Reborrow()
	defer gc.Release()
	newPlainObject(t, a1, gc, "only", 1)
	if a2.Heap().Statistics().AllocationCount == a1.Heap().Statistics().AllocationCount {
		t.Log("allocation counters may coincide; heaps must still be distinct")
	}
	if a1.Heap() == a2.Heap() {
		t.Fatal("agents share a heap")
	}
}

func TestInterruptSurfacesInCall(t *testing.T) {
	a := newTestAgent(t)
	gc := a.TopScope().Reborrow()
	defer gc.Release()
	fn := mustGlobal(t, a, "Object")
	a.RequestInterrupt()
	defer a.ClearInterrupt()
	_, thrown := a.Call(fn, types.Undefined(), nil, gc)
	if thrown == nil {
		t.Fatal("interrupted call completed")
	}
}
