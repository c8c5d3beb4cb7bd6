package core

import (
	"starling/internal/heap"
	"starling/internal/types"
)

// Error constructors and prototypes: the exception channel's allocation
// targets. Each error object carries its kind on the record plus an own
// "message" data property when a message was supplied, matching the
// observable NativeError shape.

// createErrorObject is shared by the constructors and Agent.Throw.
func (a *Agent) createErrorObject(gc *heap.Scope, kind heap.ErrorKind, message types.Value, hasMessage bool) types.Value {
	child := gc.Reborrow()
	defer child.Release()
	msgScoped := child.Scope(message)
	errValue := a.heap.NewError(child, a.realm.errorPrototype(kind), kind, message)
	if hasMessage {
		n := child.NoGC()
		shape := a.heap.ObjectShape(n, errValue)
		shape.SetProperty(types.StringKey("message"), heap.Property{
			Value: msgScoped.Get(n),
			Attrs: heap.AttrWritable | heap.AttrConfigurable,
		})
	}
	return errValue
}

// errorConstructorBehaviour builds the behaviour of one error constructor.
func errorConstructorBehaviour(kind heap.ErrorKind) NativeFunction {
	return func(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
		message := args.Get(0)
		if message.IsUndefined() {
			return types.NormalCompletion(a.createErrorObject(gc, kind, types.Undefined(), false))
		}
		msgValue, thrown := a.ToString(message, gc)
		if thrown != nil {
			return thrown.Completion()
		}
		return types.NormalCompletion(a.createErrorObject(gc, kind, msgValue, true))
	}
}

// Error.prototype.toString
func errorProtoToString(a *Agent, this types.Value, args ArgumentsList, newTarget types.Value, gc *heap.Scope) types.Completion {
	if !this.IsObject() {
		return a.Throw(gc, heap.TypeError, "Error.prototype.toString called on non-object").Completion()
	}
	thisScoped := gc.Scope(this)
	nameV, thrown := a.Get(this, types.StringKey("name"), this, gc)
	if thrown != nil {
		return thrown.Completion()
	}
	name := "Error"
	if !nameV.IsUndefined() {
		name, thrown = a.ToStringContent(nameV, gc)
		if thrown != nil {
			return thrown.Completion()
		}
	}
	msgV, thrown := a.Get(thisScoped.Get(gc.NoGC()), types.StringKey("message"), thisScoped.Get(gc.NoGC()), gc)
	if thrown != nil {
		return thrown.Completion()
	}
	msg := ""
	if !msgV.IsUndefined() {
		msg, thrown = a.ToStringContent(msgV, gc)
		if thrown != nil {
			return thrown.Completion()
		}
	}
	switch {
	case msg == "":
		return types.NormalCompletion(a.heap.NewString(gc, name))
	case name == "":
		return types.NormalCompletion(a.heap.NewString(gc, msg))
	}
	return types.NormalCompletion(a.heap.NewString(gc, name+": "+msg))
}

func createErrorIntrinsics(a *Agent, r *Realm, gc *heap.Scope) {
	h := a.heap
	stdAttrs := heap.AttrWritable | heap.AttrConfigurable

	// Base %Error.prototype% / %Error%.
	errProto := h.NewOrdinaryObject(gc, r.intrinsics[IntrObjectPrototype])
	r.intrinsics[IntrErrorPrototype] = errProto
	a.installData(gc, errProto, types.StringKey("name"), h.NewString(gc, "Error"), stdAttrs)
	a.installData(gc, errProto, types.StringKey("message"), h.NewString(gc, ""), stdAttrs)
	a.installMethod(gc, errProto, BuiltinDef{Name: "toString", Length: 0, Behaviour: errorProtoToString})

	errCtor := a.CreateBuiltinFunction(gc, BuiltinDef{
		Name: "Error", Length: 1, Behaviour: errorConstructorBehaviour(heap.PlainError), IsConstructor: true,
	})
	r.intrinsics[IntrErrorConstructor] = errCtor
	a.installConstructor(gc, errCtor, errProto)

	natives := []struct {
		kind      heap.ErrorKind
		protoSlot Intrinsic
		ctorSlot  Intrinsic
	}{
		{heap.TypeError, IntrTypeErrorPrototype, IntrTypeErrorConstructor},
		{heap.RangeError, IntrRangeErrorPrototype, IntrRangeErrorConstructor},
		{heap.SyntaxError, IntrSyntaxErrorPrototype, IntrSyntaxErrorConstructor},
		{heap.ReferenceError, IntrReferenceErrorPrototype, IntrReferenceErrorConstructor},
		{heap.URIError, IntrURIErrorPrototype, IntrURIErrorConstructor},
		{heap.EvalError, IntrEvalErrorPrototype, IntrEvalErrorConstructor},
	}
	for _, native := range natives {
		proto := h.NewOrdinaryObject(gc, errProto)
		r.intrinsics[native.protoSlot] = proto
		a.installData(gc, proto, types.StringKey("name"), h.NewString(gc, native.kind.Name()), stdAttrs)
		a.installData(gc, proto, types.StringKey("message"), h.NewString(gc, ""), stdAttrs)

		ctorProto := r.intrinsics[IntrErrorConstructor]
		ctor := a.CreateBuiltinFunction(gc, BuiltinDef{
			Name: native.kind.Name(), Length: 1,
			Behaviour: errorConstructorBehaviour(native.kind), IsConstructor: true,
			Prototype: types.ValuePtr(ctorProto),
		})
		r.intrinsics[native.ctorSlot] = ctor
		a.installConstructor(gc, ctor, proto)
	}
}
