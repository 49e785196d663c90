package vm

import "ty/internal/value"

// subscript implements OpSubscript: integer indexing into
// arrays/tuples/strings, key lookup (with Default fallback) into
// dicts, and range-descriptor slicing of arrays/strings when idx is an
// OpRange result.
func (v *VM) subscript(f *Frame, obj, idx value.Value) value.Value {
	if rv, ok := idx.Data.(*rangeValue); ok && idx.Kind == value.KPointer {
		return v.sliceBy(f, obj, rv)
	}
	switch obj.Kind {
	case value.KArray:
		elems := obj.Data.(*value.Array).Elems
		i := normIndex(asInt(idx), len(elems))
		if i < 0 || i >= len(elems) {
			panic(v.runtimeErr(f, "array index out of range"))
		}
		return elems[i]
	case value.KTuple:
		elems := obj.Data.(*value.Tuple).Elems
		i := normIndex(asInt(idx), len(elems))
		if i < 0 || i >= len(elems) {
			panic(v.runtimeErr(f, "tuple index out of range"))
		}
		return elems[i]
	case value.KString:
		b := obj.Data.(*value.String).Bytes
		i := normIndex(asInt(idx), len(b))
		if i < 0 || i >= len(b) {
			panic(v.runtimeErr(f, "string index out of range"))
		}
		return v.str(string(b[i]))
	case value.KDict:
		d := obj.Data.(*value.Dict)
		if val, ok := d.Get(idx); ok {
			return val
		}
		if d.Default != nil {
			return *d.Default
		}
		return value.Nil()
	default:
		panic(v.runtimeErr(f, "value of type %s is not subscriptable", TypeName(obj)))
	}
}

func normIndex(i, n int) int {
	if i < 0 {
		return n + int(i)
	}
	return int(i)
}

func (v *VM) sliceBy(f *Frame, obj value.Value, rv *rangeValue) value.Value {
	switch obj.Kind {
	case value.KArray:
		elems := obj.Data.(*value.Array).Elems
		from, to := sliceBounds(rv, len(elems))
		return value.Value{Kind: value.KArray, Data: value.NewArray(v.Heap, append([]value.Value{}, elems[from:to]...))}
	case value.KString:
		b := obj.Data.(*value.String).Bytes
		from, to := sliceBounds(rv, len(b))
		return v.str(string(b[from:to]))
	default:
		panic(v.runtimeErr(f, "value of type %s is not sliceable", TypeName(obj)))
	}
}

func sliceBounds(rv *rangeValue, n int) (int, int) {
	from := normIndex(int(rv.From), n)
	to := normIndex(int(rv.To), n)
	if rv.Inclusive {
		to++
	}
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if to < from {
		to = from
	}
	return from, to
}

func (v *VM) setSubscript(f *Frame, obj, idx, val value.Value) {
	switch obj.Kind {
	case value.KArray:
		arr := obj.Data.(*value.Array)
		i := normIndex(asInt(idx), len(arr.Elems))
		if i < 0 || i >= len(arr.Elems) {
			panic(v.runtimeErr(f, "array index out of range"))
		}
		arr.Elems[i] = val
	case value.KDict:
		obj.Data.(*value.Dict).Set(idx, val)
	default:
		panic(v.runtimeErr(f, "value of type %s does not support index assignment", TypeName(obj)))
	}
}

// getMember implements OpMemberAccess. A Dict receiver is treated as a
// namespace (the representation OpExecCode produces for a module's
// exports, see module.go), so `mod.name` is a plain key lookup.
func (v *VM) getMember(f *Frame, obj value.Value, name string) (value.Value, error) {
	switch obj.Kind {
	case value.KDict:
		d := obj.Data.(*value.Dict)
		if val, ok := d.Get(v.str(name)); ok {
			return val, nil
		}
		return value.Nil(), v.runtimeErr(f, "no member %q", name)
	case value.KObject:
		o := obj.Data.(*value.Object)
		if getter, ok := lookupGetter(o.Class, name); ok {
			fnVal := value.Value{Kind: value.KFunction, Data: getter}
			return v.invoke(f, fnVal, nil, nil, &obj)
		}
		if val, ok := o.Fields[name]; ok {
			return val, nil
		}
		if fn, ok := lookupMethod(o.Class, name); ok {
			return value.Value{Kind: value.KMethod, Data: &value.Method{Receiver: obj, Fn: fn}}, nil
		}
		return value.Nil(), v.runtimeErr(f, "%s has no member %q", o.Class.Name, name)
	case value.KClass:
		cls := obj.Data.(*value.Class)
		if val, ok := cls.Statics[name]; ok {
			return val, nil
		}
		return value.Nil(), v.runtimeErr(f, "class %s has no static member %q", cls.Name, name)
	default:
		return value.Nil(), v.runtimeErr(f, "value of type %s has no member %q", TypeName(obj), name)
	}
}

func lookupGetter(cls *value.Class, name string) (*value.Function, bool) {
	for c := cls; c != nil; c = c.Parent {
		if fn, ok := c.Getters[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

func lookupSetter(cls *value.Class, name string) (*value.Function, bool) {
	for c := cls; c != nil; c = c.Parent {
		if fn, ok := c.Setters[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

func (v *VM) setMember(f *Frame, obj value.Value, name string, val value.Value) error {
	switch obj.Kind {
	case value.KObject:
		o := obj.Data.(*value.Object)
		if setter, ok := lookupSetter(o.Class, name); ok {
			fnVal := value.Value{Kind: value.KFunction, Data: setter}
			_, err := v.invoke(f, fnVal, []value.Value{val}, nil, &obj)
			return err
		}
		o.Fields[name] = val
		return nil
	case value.KClass:
		obj.Data.(*value.Class).Statics[name] = val
		return nil
	default:
		return v.runtimeErr(f, "value of type %s has no assignable member %q", TypeName(obj), name)
	}
}
