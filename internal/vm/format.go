package vm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ty/internal/value"
)

// ToString is the user-facing stringification used by OpToString,
// string interpolation, and print/println: strings pass through
// unquoted, everything else renders the way DebugString would.
func (v *VM) ToString(val value.Value) string {
	if val.Kind == value.KString {
		return string(val.Data.(*value.String).Bytes)
	}
	return DebugString(val)
}

// DebugString renders val the way a REPL or a `str()`-on-a-container
// would: strings quoted, collections bracketed recursively.
func DebugString(val value.Value) string {
	var sb strings.Builder
	writeDebug(&sb, val)
	return sb.String()
}

func writeDebug(sb *strings.Builder, val value.Value) {
	switch val.Kind {
	case value.KNil:
		sb.WriteString("nil")
	case value.KSentinel:
		sb.WriteString("<sentinel>")
	case value.KBoolean:
		sb.WriteString(strconv.FormatBool(val.Data.(bool)))
	case value.KInteger:
		sb.WriteString(strconv.FormatInt(val.Data.(int64), 10))
	case value.KReal:
		sb.WriteString(strconv.FormatFloat(val.Data.(float64), 'g', -1, 64))
	case value.KString:
		sb.WriteString(strconv.Quote(string(val.Data.(*value.String).Bytes)))
	case value.KArray:
		sb.WriteByte('[')
		for i, e := range val.Data.(*value.Array).Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeDebug(sb, e)
		}
		sb.WriteByte(']')
	case value.KTuple:
		t := val.Data.(*value.Tuple)
		sb.WriteByte('(')
		for i, e := range t.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			if t.Names != nil && t.Names[i] != "" {
				sb.WriteString(t.Names[i])
				sb.WriteString(": ")
			}
			writeDebug(sb, e)
		}
		sb.WriteByte(')')
	case value.KDict:
		sb.WriteByte('{')
		first := true
		val.Data.(*value.Dict).Each(func(k, v value.Value) {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			writeDebug(sb, k)
			sb.WriteString(": ")
			writeDebug(sb, v)
		})
		sb.WriteByte('}')
	case value.KFunction:
		sb.WriteString("<fn " + val.Data.(*value.Function).Name + ">")
	case value.KBuiltinFunction:
		sb.WriteString("<builtin " + val.Data.(*value.BuiltinFunction).Name + ">")
	case value.KClass:
		sb.WriteString("<class " + val.Data.(*value.Class).Name + ">")
	case value.KObject:
		o := val.Data.(*value.Object)
		sb.WriteString(o.Class.Name)
		sb.WriteByte('(')
		first := true
		for k, fv := range o.Fields {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(k)
			sb.WriteString(": ")
			writeDebug(sb, fv)
		}
		sb.WriteByte(')')
	case value.KRegex:
		sb.WriteString("/" + val.Data.(*value.Regex).Source + "/")
	case value.KBlob:
		fmt.Fprintf(sb, "<blob %d bytes>", len(val.Data.(*value.Blob).Bytes))
	default:
		fmt.Fprintf(sb, "<%s>", TypeName(val))
	}
}

// TypeName is what OpTypeOf produces: the dynamic type name a script
// sees from typeof(x).
func TypeName(val value.Value) string {
	switch val.Kind {
	case value.KNil:
		return "nil"
	case value.KSentinel:
		return "sentinel"
	case value.KBoolean:
		return "bool"
	case value.KInteger:
		return "int"
	case value.KReal:
		return "real"
	case value.KString:
		return "string"
	case value.KArray:
		return "array"
	case value.KDict:
		return "dict"
	case value.KTuple:
		return "tuple"
	case value.KBlob:
		return "blob"
	case value.KRegex:
		return "regex"
	case value.KFunction, value.KBuiltinFunction:
		return "function"
	case value.KMethod, value.KBuiltinMethod:
		return "method"
	case value.KClass:
		return "class"
	case value.KObject:
		return val.Data.(*value.Object).Class.Name
	case value.KTag:
		return "tag"
	case value.KPointer:
		switch val.Data.(type) {
		case *rangeValue:
			return "range"
		case *generator:
			return "generator"
		default:
			return "pointer"
		}
	case value.KThread:
		return "thread"
	default:
		return "unknown"
	}
}

func matchRegex(re *value.Regex, val value.Value) bool {
	if val.Kind != value.KString {
		return false
	}
	compiled, ok := re.Compiled.(*regexp.Regexp)
	if !ok || compiled == nil {
		return false
	}
	return compiled.MatchString(string(val.Data.(*value.String).Bytes))
}
