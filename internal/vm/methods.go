package vm

import (
	"strings"

	"ty/internal/value"
)

// methodKey is how OpCallMethod's builtin fallback table is keyed: a
// receiver Kind plus the called name. Operations that read naturally as
// a method (len, push, hasNext/next, string helpers) live here instead
// of growing the opcode set; see compiler.BuiltinNames for the handful
// of genuinely free-standing functions that don't have a receiver.
type methodKey struct {
	Kind value.Kind
	Name string
}

type builtinMethodFn func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error)

var builtinMethods map[methodKey]builtinMethodFn

func init() {
	builtinMethods = map[methodKey]builtinMethodFn{
		{value.KArray, "len"}:      func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) { return value.Int(int64(len(obj.Data.(*value.Array).Elems))), nil },
		{value.KTuple, "len"}:      func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) { return value.Int(int64(len(obj.Data.(*value.Tuple).Elems))), nil },
		{value.KDict, "len"}:       func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) { return value.Int(int64(obj.Data.(*value.Dict).Len())), nil },
		{value.KString, "len"}:     func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) { return value.Int(int64(len(obj.Data.(*value.String).Bytes))), nil },

		{value.KArray, "push"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			arr := obj.Data.(*value.Array)
			arr.Elems = append(arr.Elems, args...)
			return obj, nil
		},
		{value.KArray, "pop_back"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			arr := obj.Data.(*value.Array)
			if len(arr.Elems) == 0 {
				return value.Nil(), v.runtimeErr(f, "pop_back on empty array")
			}
			last := arr.Elems[len(arr.Elems)-1]
			arr.Elems = arr.Elems[:len(arr.Elems)-1]
			return last, nil
		},

		{value.KDict, "keys"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			var out []value.Value
			obj.Data.(*value.Dict).Each(func(k, val value.Value) { out = append(out, k) })
			return value.Value{Kind: value.KArray, Data: value.NewArray(v.Heap, out)}, nil
		},
		{value.KDict, "values"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			var out []value.Value
			obj.Data.(*value.Dict).Each(func(k, val value.Value) { out = append(out, val) })
			return value.Value{Kind: value.KArray, Data: value.NewArray(v.Heap, out)}, nil
		},
		{value.KDict, "has"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			_, ok := obj.Data.(*value.Dict).Get(arg(args, 0))
			return value.Bool(ok), nil
		},

		{value.KArray, "each"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			fn := arg(args, 0)
			for _, e := range append([]value.Value{}, obj.Data.(*value.Array).Elems...) {
				if _, err := v.call(f, fn, []value.Value{e}, nil); err != nil {
					return value.Nil(), err
				}
			}
			return value.Nil(), nil
		},
		{value.KArray, "map"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			fn := arg(args, 0)
			src := obj.Data.(*value.Array).Elems
			out := make([]value.Value, len(src))
			for i, e := range src {
				r, err := v.call(f, fn, []value.Value{e}, nil)
				if err != nil {
					return value.Nil(), err
				}
				out[i] = r
			}
			return value.Value{Kind: value.KArray, Data: value.NewArray(v.Heap, out)}, nil
		},
		{value.KArray, "filter"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			fn := arg(args, 0)
			var out []value.Value
			for _, e := range obj.Data.(*value.Array).Elems {
				r, err := v.call(f, fn, []value.Value{e}, nil)
				if err != nil {
					return value.Nil(), err
				}
				if r.Truthy() {
					out = append(out, e)
				}
			}
			return value.Value{Kind: value.KArray, Data: value.NewArray(v.Heap, out)}, nil
		},

		{value.KString, "upper"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			return v.str(strings.ToUpper(string(obj.Data.(*value.String).Bytes))), nil
		},
		{value.KString, "lower"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			return v.str(strings.ToLower(string(obj.Data.(*value.String).Bytes))), nil
		},
		{value.KString, "trim"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			return v.str(strings.TrimSpace(string(obj.Data.(*value.String).Bytes))), nil
		},
		{value.KString, "split"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			sep := v.ToString(arg(args, 0))
			parts := strings.Split(string(obj.Data.(*value.String).Bytes), sep)
			out := make([]value.Value, len(parts))
			for i, p := range parts {
				out[i] = v.str(p)
			}
			return value.Value{Kind: value.KArray, Data: value.NewArray(v.Heap, out)}, nil
		},
		{value.KString, "contains"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			return value.Bool(strings.Contains(string(obj.Data.(*value.String).Bytes), v.ToString(arg(args, 0)))), nil
		},
		{value.KString, "to_string"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) { return obj, nil },

		{value.KArray, "hasNext"}:  builtinArrayHasNext,
		{value.KArray, "next"}:     builtinArrayNext,
		{value.KTuple, "hasNext"}:  builtinTupleHasNext,
		{value.KTuple, "next"}:     builtinTupleNext,
		{value.KString, "hasNext"}: builtinStringHasNext,
		{value.KString, "next"}:    builtinStringNext,
		{value.KDict, "hasNext"}:   builtinDictHasNext,
		{value.KDict, "next"}:      builtinDictNext,
		{value.KPointer, "hasNext"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			switch it := obj.Data.(type) {
			case *rangeValue:
				return value.Bool(it.hasNext()), nil
			case *generator:
				return value.Bool(it.hasNext()), nil
			default:
				return value.Nil(), v.runtimeErr(f, "value is not iterable")
			}
		},
		{value.KPointer, "next"}: func(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
			switch it := obj.Data.(type) {
			case *rangeValue:
				return value.Int(it.next()), nil
			case *generator:
				return it.next()
			default:
				return value.Nil(), v.runtimeErr(f, "value is not iterable")
			}
		},
	}
}

// builtinArrayHasNext and friends implement each-loop iteration over a
// raw collection by keying a cursor off the collection's own Data
// pointer in v.iterPos, since arrays/dicts/strings carry no cursor
// field of their own (unlike rangeValue/generator). The entry is left
// in place once iteration is exhausted rather than cleaned up -- a
// collection iterated to completion and then discarded leaks one map
// entry until it would otherwise be reused, accepted as a minor,
// bounded simplification.
func builtinArrayHasNext(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
	arr := obj.Data.(*value.Array)
	return value.Bool(v.iterPos[arr] < len(arr.Elems)), nil
}

func builtinArrayNext(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
	arr := obj.Data.(*value.Array)
	i := v.iterPos[arr]
	v.iterPos[arr] = i + 1
	if i >= len(arr.Elems) {
		return value.Nil(), v.runtimeErr(f, "next() past end of array")
	}
	return arr.Elems[i], nil
}

func builtinTupleHasNext(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
	t := obj.Data.(*value.Tuple)
	return value.Bool(v.iterPos[t] < len(t.Elems)), nil
}

func builtinTupleNext(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
	t := obj.Data.(*value.Tuple)
	i := v.iterPos[t]
	v.iterPos[t] = i + 1
	if i >= len(t.Elems) {
		return value.Nil(), v.runtimeErr(f, "next() past end of tuple")
	}
	return t.Elems[i], nil
}

func builtinStringHasNext(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
	s := obj.Data.(*value.String)
	return value.Bool(v.iterPos[s] < len(s.Bytes)), nil
}

func builtinStringNext(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
	s := obj.Data.(*value.String)
	i := v.iterPos[s]
	v.iterPos[s] = i + 1
	if i >= len(s.Bytes) {
		return value.Nil(), v.runtimeErr(f, "next() past end of string")
	}
	return v.str(string(s.Bytes[i])), nil
}

// dictCursor snapshots a dict's entries the first time it's iterated so
// mutation mid-iteration doesn't reorder an in-progress each-loop.
type dictCursor struct {
	keys []value.Value
	vals []value.Value
	pos  int
}

func builtinDictHasNext(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
	d := obj.Data.(*value.Dict)
	cur, ok := v.dictIter[d]
	if !ok {
		cur = &dictCursor{}
		d.Each(func(k, val value.Value) { cur.keys = append(cur.keys, k); cur.vals = append(cur.vals, val) })
		v.dictIter[d] = cur
	}
	return value.Bool(cur.pos < len(cur.keys)), nil
}

func builtinDictNext(v *VM, f *Frame, obj value.Value, args []value.Value) (value.Value, error) {
	d := obj.Data.(*value.Dict)
	cur, ok := v.dictIter[d]
	if !ok || cur.pos >= len(cur.keys) {
		return value.Nil(), v.runtimeErr(f, "next() past end of dict")
	}
	pair := []value.Value{cur.keys[cur.pos], cur.vals[cur.pos]}
	cur.pos++
	return value.Value{Kind: value.KArray, Data: value.NewArray(v.Heap, pair)}, nil
}
