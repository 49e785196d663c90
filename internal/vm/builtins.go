package vm

import (
	"strconv"
	"strings"
	"time"

	"ty/internal/compiler"
	"ty/internal/value"
)

// seedBuiltins builds the slot values for compiler.BuiltinNames, in the
// same order, so a module's predeclared root-scope slots line up with
// what NewModuleCompiler reserved for them.
func (v *VM) seedBuiltins() []value.Value {
	table := map[string]value.BuiltinFn{
		"print":   v.biPrint,
		"println": v.biPrintln,
		"str":     func(args []value.Value) (value.Value, error) { return v.str(v.ToString(arg(args, 0))), nil },
		"int":     v.biInt,
		"real":    v.biReal,
		"bool":    func(args []value.Value) (value.Value, error) { return value.Bool(arg(args, 0).Truthy()), nil },
		"range":   v.biRange,
		"assert":  v.biAssert,
		"panic":   v.biPanic,
		"now":     func(args []value.Value) (value.Value, error) { return value.Real(float64(time.Now().UnixNano()) / 1e9), nil },
		"sleep": func(args []value.Value) (value.Value, error) {
			time.Sleep(time.Duration(toFloat(arg(args, 0)) * float64(time.Second)))
			return value.Nil(), nil
		},
	}
	out := make([]value.Value, len(compiler.BuiltinNames))
	for i, name := range compiler.BuiltinNames {
		fn := table[name]
		out[i] = value.Value{Kind: value.KBuiltinFunction, Data: &value.BuiltinFunction{Name: name, Fn: fn}}
	}
	return out
}

func arg(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Nil()
}

// biPrint joins its arguments with ", " and always terminates the line
// with "\n", even for a single argument -- print is a statement-level
// convenience, not a string-builder primitive.
func (v *VM) biPrint(args []value.Value) (value.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = v.ToString(a)
	}
	v.Stdout.Write([]byte(strings.Join(parts, ", ") + "\n"))
	return value.Nil(), nil
}

// biPrintln is print's non-spec-named sibling, kept for parity with the
// source material: same join, same trailing newline. Distinguishing the
// two would require print to NOT terminate its output, which spec.md
// §8 rules out.
func (v *VM) biPrintln(args []value.Value) (value.Value, error) {
	return v.biPrint(args)
}

func (v *VM) biInt(args []value.Value) (value.Value, error) {
	a := arg(args, 0)
	switch a.Kind {
	case value.KInteger:
		return a, nil
	case value.KReal:
		return value.Int(int64(a.Data.(float64))), nil
	case value.KBoolean:
		if a.Data.(bool) {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	case value.KString:
		n, err := strconv.ParseInt(strings.TrimSpace(string(a.Data.(*value.String).Bytes)), 10, 64)
		if err != nil {
			return value.Nil(), v.runtimeErr(nil, "int(): cannot parse %q", string(a.Data.(*value.String).Bytes))
		}
		return value.Int(n), nil
	default:
		return value.Nil(), v.runtimeErr(nil, "int(): cannot convert %s", TypeName(a))
	}
}

func (v *VM) biReal(args []value.Value) (value.Value, error) {
	a := arg(args, 0)
	switch a.Kind {
	case value.KReal:
		return a, nil
	case value.KInteger:
		return value.Real(float64(a.Data.(int64))), nil
	case value.KString:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(a.Data.(*value.String).Bytes)), 64)
		if err != nil {
			return value.Nil(), v.runtimeErr(nil, "real(): cannot parse %q", string(a.Data.(*value.String).Bytes))
		}
		return value.Real(f), nil
	default:
		return value.Nil(), v.runtimeErr(nil, "real(): cannot convert %s", TypeName(a))
	}
}

func (v *VM) biRange(args []value.Value) (value.Value, error) {
	var from, to, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		to = asInt(args[0])
	case 2:
		from, to = asInt(args[0]), asInt(args[1])
	default:
		from, to, step = asInt(args[0]), asInt(args[1]), asInt(args[2])
	}
	return value.Ptr(&rangeValue{From: from, To: to, Step: step, cur: from}), nil
}

func (v *VM) biAssert(args []value.Value) (value.Value, error) {
	if !arg(args, 0).Truthy() {
		msg := "assertion failed"
		if len(args) > 1 {
			msg = v.ToString(args[1])
		}
		return value.Nil(), v.runtimeErr(nil, "%s", msg)
	}
	return value.Nil(), nil
}

func (v *VM) biPanic(args []value.Value) (value.Value, error) {
	return value.Nil(), v.runtimeErr(nil, "%s", v.ToString(arg(args, 0)))
}
