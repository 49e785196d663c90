package vm

import (
	"ty/internal/compiler"
	"ty/internal/gc"
	"ty/internal/value"
)

// call dispatches an OpCall: callee may be a closure, a builtin
// free function, a bound method value, or a class (construction).
func (v *VM) call(f *Frame, callee value.Value, args []value.Value, kwargs *value.Dict) (value.Value, error) {
	switch callee.Kind {
	case value.KFunction:
		return v.invoke(f, callee, args, kwargs, nil)
	case value.KBuiltinFunction:
		bf := callee.Data.(*value.BuiltinFunction)
		return bf.Fn(args)
	case value.KMethod:
		m := callee.Data.(*value.Method)
		fnVal := value.Value{Kind: value.KFunction, Data: m.Fn}
		return v.invoke(f, fnVal, args, kwargs, &m.Receiver)
	case value.KBuiltinMethod:
		bm := callee.Data.(*value.BuiltinMethod)
		return bm.Fn(args)
	case value.KClass:
		return v.construct(f, callee.Data.(*value.Class), args, kwargs)
	default:
		return value.Nil(), v.runtimeErr(f, "value of type %s is not callable", TypeName(callee))
	}
}

// callMethod dispatches an OpCallMethod: a user-defined class method
// (walking the parent chain) takes priority; otherwise a builtin method
// keyed by the receiver's Kind and the method name handles aggregate
// operations (len, push, hasNext/next, ...) that have no opcode of
// their own.
func (v *VM) callMethod(f *Frame, obj value.Value, name string, args []value.Value, kwargs *value.Dict) (value.Value, error) {
	if obj.Kind == value.KObject {
		o := obj.Data.(*value.Object)
		if fn, ok := lookupMethod(o.Class, name); ok {
			fnVal := value.Value{Kind: value.KFunction, Data: fn}
			return v.invoke(f, fnVal, args, kwargs, &obj)
		}
	}
	if bf, ok := builtinMethods[methodKey{obj.Kind, name}]; ok {
		return bf(v, f, obj, args)
	}
	if obj.Kind == value.KObject {
		return value.Nil(), v.runtimeErr(f, "no method %q on %s", name, obj.Data.(*value.Object).Class.Name)
	}
	return value.Nil(), v.runtimeErr(f, "no method %q on %s", name, TypeName(obj))
}

// lookupMethod walks cls and its ancestors (trait methods already
// merged in at OpClass time, see classes.go) for name.
func lookupMethod(cls *value.Class, name string) (*value.Function, bool) {
	for c := cls; c != nil; c = c.Parent {
		if fn, ok := c.Methods[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// invoke runs fnVal's body in a fresh frame. self, when non-nil,
// overrides fnVal's own value as the binding for the function's
// SelfSlot (a bound method's receiver); when nil, a self-recursive
// named function binds to its own closure value instead.
func (v *VM) invoke(caller *Frame, fnVal value.Value, args []value.Value, kwargs *value.Dict, self *value.Value) (value.Value, error) {
	fn := fnVal.Data.(*value.Function)
	tmpl := fn.Code.(*compiler.FuncTemplate)

	if fn.IsGenerator {
		return value.Value{Kind: value.KPointer, Data: newGenerator(v, fnVal, args, kwargs, self)}, nil
	}

	locals := make([]value.Value, tmpl.NumSlots)
	paramBase := 0
	if tmpl.SelfSlot != -1 {
		if self != nil {
			locals[tmpl.SelfSlot] = *self
		} else {
			locals[tmpl.SelfSlot] = fnVal
		}
		paramBase = tmpl.SelfSlot + 1
	}
	bindParams(v.Heap, tmpl, locals, paramBase, args, kwargs)

	nf := &Frame{chunk: tmpl.Chunk, locals: locals, env: fn.Env, name: tmpl.Name, vm: v}
	return v.runFrame(nf)
}

// bindParams assigns call-site args/kwargs into fn's declared parameter
// slots starting at paramBase, one slot per declared parameter in
// order (including the rest/kwargs collector params, which still get a
// normal sequential slot -- RestIndex/KwargsIndex just mark which one).
// A parameter left unset arrives holding Nil, for the callee's default
// prologue to fill in. The rest/kwargs collector values must go through
// value.NewArray/value.NewDict (not a bare struct literal) so they come
// out with a usable backing slice/table and participate in heap tracking
// the same as any other aggregate built at runtime.
func bindParams(heap *gc.Heap, tmpl *compiler.FuncTemplate, locals []value.Value, paramBase int, args []value.Value, kwargs *value.Dict) {
	argIdx := 0
	for i, p := range tmpl.Params {
		slot := paramBase + i
		switch {
		case i == tmpl.RestIndex:
			var rest []value.Value
			if argIdx < len(args) {
				rest = append(rest, args[argIdx:]...)
			}
			locals[slot] = value.Value{Kind: value.KArray, Data: value.NewArray(heap, rest)}
			argIdx = len(args)
		case i == tmpl.KwargsIndex:
			d := value.NewDict(heap)
			if kwargs != nil {
				kwargs.Each(func(k, val value.Value) { d.Set(k, val) })
			}
			locals[slot] = value.Value{Kind: value.KDict, Data: d}
		default:
			if argIdx < len(args) {
				locals[slot] = args[argIdx]
				argIdx++
			} else if kwargs != nil {
				if val, ok := kwargs.Get(value.Value{Kind: value.KString, Data: nameAsStringKey(p.Name)}); ok {
					locals[slot] = val
				}
			}
		}
	}
}

// nameAsStringKey builds a throwaway *value.String for a kwargs lookup;
// value.Equal compares KString values by byte content, not identity, so
// this never needs to be the same allocation as the dict's stored key.
func nameAsStringKey(s string) *value.String { return &value.String{Bytes: []byte(s)} }

// makeClosure instantiates tmpl into a runtime closure, snapshotting its
// captured slots from the enclosing frame f.
func (v *VM) makeClosure(f *Frame, tmpl *compiler.FuncTemplate) value.Value {
	env := value.NewRefVector(v.Heap, len(tmpl.Captures))
	for i, cs := range tmpl.Captures {
		if cs.FromCapture {
			env.Slots[i] = f.env.Slots[cs.Index]
		} else {
			env.Slots[i] = f.locals[cs.Index]
		}
	}
	fn := &value.Function{
		Name: tmpl.Name, Code: tmpl, Params: tmpl.Params,
		RestIndex: tmpl.RestIndex, KwargsIndex: tmpl.KwargsIndex,
		Env: env, IsGenerator: tmpl.IsGenerator, SelfSlot: tmpl.SelfSlot,
	}
	return value.Value{Kind: value.KFunction, Data: fn}
}
