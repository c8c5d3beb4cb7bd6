package core

import (
	"fmt"

	"starling/internal/heap"
	"starling/internal/types"
)

// Thrown is the abrupt arm of the engine's two-arm result: a JavaScript
// error value in flight. Operations return (result, *Thrown) and callers
// inspect it at every call site; there is no unwinding. Thrown implements
// error for the host boundary.
type Thrown struct {
	Value types.Value
}

// Error satisfies the error interface for host-side reporting. The message
// is generic on purpose: resolving the error object needs an agent.
func (t *Thrown) Error() string {
	return "uncaught JavaScript exception"
}

// Completion converts the two-arm result into a completion record.
func (t *Thrown) Completion() types.Completion {
	return types.ThrowCompletion(t.Value)
}

// Throw allocates an error object of the requested kind with a formatted
// message and returns it as a Thrown. Allocation makes this a safepoint.
func (a *Agent) Throw(gc *heap.Scope, kind heap.ErrorKind, format string, args ...interface{}) *Thrown {
	msg := fmt.Sprintf(format, args...)
	msgValue := a.heap.NewString(gc, msg)
	errValue := a.createErrorObject(gc, kind, msgValue, true)
	a.lastException = errValue
	return &Thrown{Value: errValue}
}

// ThrowValue wraps an already-built error value (re-throw paths).
func (a *Agent) ThrowValue(v types.Value) *Thrown {
	a.lastException = v
	return &Thrown{Value: v}
}

// completionOf folds a (value, thrown) pair into a Completion.
func completionOf(v types.Value, t *Thrown) types.Completion {
	if t != nil {
		return t.Completion()
	}
	return types.NormalCompletion(v)
}
