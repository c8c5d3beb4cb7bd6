package types

// Completion is the normal-or-throw result every abstract operation and
// builtin returns. There is no out-of-band unwinding in the engine: callers
// inspect the completion explicitly at every call site.
type Completion struct {
	value  Value
	abrupt bool
}

// NormalCompletion wraps a value.
func NormalCompletion(v Value) Completion { return Completion{value: v} }

// ThrowCompletion wraps a thrown error value.
func ThrowCompletion(err Value) Completion { return Completion{value: err, abrupt: true} }

// IsAbrupt reports whether the completion is a throw.
func (c Completion) IsAbrupt() bool { return c.abrupt }

// Value returns the carried value: the result of a normal completion or the
// thrown error of an abrupt one.
func (c Completion) Value() Value { return c.value }
