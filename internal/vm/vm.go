// Package vm interprets the bytecode internal/compiler emits: a
// straightforward switch-dispatch loop over internal/bytecode's opcode
// set, one Go function activation per Ty call frame (so a nested Ty
// call is an ordinary nested Go call, and a Ty panic/throw can unwind
// through defer/recover the same way a Go panic would), reading
// constants inline from the chunk's code stream and allocating every
// compound value through internal/gc's heap.
package vm

import (
	"fmt"
	"io"
	"os"

	"ty/internal/bytecode"
	"ty/internal/compiler"
	tyerrors "ty/internal/errors"
	"ty/internal/gc"
	"ty/internal/module"
	"ty/internal/value"
)

// handlerEntry is one active try/catch scope within a single frame:
// the stack depth to truncate back to and the code address of the
// catch dispatch sequence, recorded when OpPushHandler runs.
type handlerEntry struct {
	addr  int
	depth int
}

// Frame is the interpreter state for one function activation: its own
// operand stack, local slots and instruction pointer, plus the
// try/catch and defer bookkeeping scoped to this call.
type Frame struct {
	chunk  *bytecode.Chunk
	ip     int
	locals []value.Value
	env    *value.RefVector // this closure's captured slots, nil for the module frame
	stack  []value.Value

	handlers []handlerEntry
	defers   []value.Value

	name string
	vm   *VM

	genOut chan genMsg   // non-nil only for a generator body's own frame
	genIn  chan struct{}
}

// VM owns the process-wide state shared by every frame: the GC heap,
// the interned tag table, the module loader, and the iteration cursor
// table each2-loop consults for a raw collection's current position.
type VM struct {
	Heap   *gc.Heap
	Tags   *value.TagTable
	Loader *module.Loader
	Stdout io.Writer

	globals  []value.Value // slots BuiltinNames predeclares in every module scope
	iterPos  map[any]int   // identity-keyed each-loop cursor for arrays/strings/tuples
	dictIter map[*value.Dict]*dictCursor
	modCache map[*compiler.ModuleArtifact]*value.Dict

	filePath string
	frameStack []*Frame // for building a CallStack trace on error
}

// ThrownValue wraps a Ty-level thrown value as a Go error so it can
// propagate up through nested runFrame calls exactly like any other
// runtime failure, until some frame's handler stack catches it or it
// reaches the top and is reported to the host.
type ThrownValue struct {
	Value value.Value
}

func (t *ThrownValue) Error() string { return "uncaught throw: " + safeDebugString(t.Value) }

func safeDebugString(v value.Value) string {
	defer func() { recover() }()
	return DebugString(v)
}

// New builds a VM ready to run compiled modules. stdout nil defaults to
// os.Stdout, matching print/println's destination.
func New(loader *module.Loader, tags *value.TagTable, stdout io.Writer) *VM {
	if stdout == nil {
		stdout = os.Stdout
	}
	v := &VM{
		Heap:     gc.NewHeap(),
		Tags:     tags,
		Loader:   loader,
		Stdout:   stdout,
		iterPos:  map[any]int{},
		dictIter: map[*value.Dict]*dictCursor{},
		modCache: map[*compiler.ModuleArtifact]*value.Dict{},
	}
	v.globals = v.seedBuiltins()
	return v
}

// RunModule executes a compiled module's top-level chunk to completion,
// returning the value left by OpHalt's implicit Nil result (module
// bodies don't otherwise produce a value) and a namespace Dict of its
// exported bindings.
func (v *VM) RunModule(art *compiler.ModuleArtifact, filePath string) (*value.Dict, error) {
	v.filePath = filePath
	env := make([]value.Value, art.Chunk.NumSlots)
	copy(env, v.globals)
	f := &Frame{chunk: art.Chunk, locals: env, name: "<module>", vm: v}
	_, err := v.runFrame(f)
	if err != nil {
		return nil, err
	}
	ns := value.NewDict(v.Heap)
	for name, slot := range art.Exports {
		ns.Set(v.str(name), f.locals[slot])
	}
	return ns, nil
}

func (v *VM) str(s string) value.Value {
	return value.Value{Kind: value.KString, Data: value.NewString(v.Heap, s)}
}

// push/pop operate on f.stack; a stack underflow is an interpreter bug,
// not a user-reachable error, so it panics (recovered at the top of
// runFrame into a *tyerrors.TyError of Kind Panic).
func (f *Frame) push(v value.Value) { f.stack = append(f.stack, v) }

func (f *Frame) pop() value.Value {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack = f.stack[:n]
	return v
}

func (f *Frame) peek() value.Value { return f.stack[len(f.stack)-1] }

func (f *Frame) popN(n int) []value.Value {
	start := len(f.stack) - n
	out := make([]value.Value, n)
	copy(out, f.stack[start:])
	f.stack = f.stack[:start]
	return out
}

// runFrame is the core dispatch loop: decode one opcode, act on it,
// repeat until OpReturn/OpHalt or an unrecovered error.
func (v *VM) runFrame(f *Frame) (result value.Value, err error) {
	v.frameStack = append(v.frameStack, f)
	defer func() { v.frameStack = v.frameStack[:len(v.frameStack)-1] }()

	defer func() {
		if r := recover(); r != nil {
			if te, ok := r.(*tyerrors.TyError); ok {
				err = te
				return
			}
			err = tyerrors.New(tyerrors.Panic, fmt.Sprintf("%v", r), v.locate(f))
		}
	}()

	code := f.chunk.Code
	for {
		op := bytecode.OpCode(code[f.ip])
		f.ip++

		switch op {
		case bytecode.OpInteger:
			f.push(value.Int(bytecode.ReadInt64(code, f.ip)))
			f.ip += 8
		case bytecode.OpReal:
			f.push(value.Real(bytecode.ReadFloat64(code, f.ip)))
			f.ip += 8
		case bytecode.OpBoolean:
			f.push(value.Bool(code[f.ip] != 0))
			f.ip++
		case bytecode.OpString:
			s, next := bytecode.ReadString(code, f.ip)
			f.ip = next
			f.push(v.str(s))
		case bytecode.OpNil:
			f.push(value.Nil())
		case bytecode.OpTag:
			v.fail(f, "OpTag is never emitted")
		case bytecode.OpRegex:
			idx := bytecode.ReadUint32(code, f.ip)
			f.ip += 4
			f.push(value.Value{Kind: value.KRegex, Data: f.chunk.Constants[idx]})
		case bytecode.OpArray:
			n := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			elems := f.popN(n)
			f.push(value.Value{Kind: value.KArray, Data: value.NewArray(v.Heap, elems)})
		case bytecode.OpDict:
			n := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			d := value.NewDict(v.Heap)
			pairs := f.popN(n * 2)
			for i := 0; i < n; i++ {
				d.Set(pairs[i*2], pairs[i*2+1])
			}
			f.push(value.Value{Kind: value.KDict, Data: d})
		case bytecode.OpTuple:
			n := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			elems := f.popN(n)
			f.push(value.Value{Kind: value.KTuple, Data: value.NewTuple(v.Heap, elems, nil)})

		case bytecode.OpLoadVar:
			slot := bytecode.ReadUint16(code, f.ip)
			f.ip += 2
			f.push(f.locals[slot])
		case bytecode.OpPushVar:
			slot := bytecode.ReadUint16(code, f.ip)
			f.ip += 2
			f.locals[slot] = f.pop()
		case bytecode.OpPopVar:
			slot := bytecode.ReadUint16(code, f.ip)
			f.ip += 2
			f.locals[slot] = f.peek()
		case bytecode.OpTargetVar, bytecode.OpTargetRef, bytecode.OpSaveStackPos, bytecode.OpRestoreStackPos, bytecode.OpKeys, bytecode.OpLen:
			v.fail(f, op.String()+" is never emitted")
		case bytecode.OpLoadRef:
			idx := bytecode.ReadUint16(code, f.ip)
			f.ip += 2
			f.push(f.env.Slots[idx])
		case bytecode.OpAssign:
			idx := bytecode.ReadUint16(code, f.ip)
			f.ip += 2
			f.env.Slots[idx] = f.peek()
		case bytecode.OpFunction:
			idx := bytecode.ReadUint32(code, f.ip)
			f.ip += 4
			tmpl := f.chunk.Constants[idx].(*compiler.FuncTemplate)
			f.push(v.makeClosure(f, tmpl))

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
			bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpShl, bytecode.OpShr:
			b, a := f.pop(), f.pop()
			f.push(v.arith(f, op, a, b))
		case bytecode.OpNeg:
			f.push(v.negate(f, f.pop()))
		case bytecode.OpNot:
			f.push(value.Bool(!f.pop().Truthy()))
		case bytecode.OpBitNot:
			a := f.pop()
			f.push(value.Int(^a.Data.(int64)))
		case bytecode.OpEq:
			b, a := f.pop(), f.pop()
			f.push(value.Bool(value.Equal(a, b)))
		case bytecode.OpNeq:
			b, a := f.pop(), f.pop()
			f.push(value.Bool(!value.Equal(a, b)))
		case bytecode.OpLt, bytecode.OpLeq, bytecode.OpGt, bytecode.OpGeq:
			b, a := f.pop(), f.pop()
			f.push(value.Bool(v.compareOp(f, op, a, b)))
		case bytecode.OpCmp:
			b, a := f.pop(), f.pop()
			f.push(value.Int(int64(v.compare(f, a, b))))

		case bytecode.OpJump:
			off := int32(bytecode.ReadUint32(code, f.ip))
			f.ip = f.ip + 4 + int(off)
		case bytecode.OpJumpIf:
			off := int32(bytecode.ReadUint32(code, f.ip))
			next := f.ip + 4
			if f.pop().Truthy() {
				f.ip = next + int(off)
			} else {
				f.ip = next
			}
		case bytecode.OpJumpIfNot:
			off := int32(bytecode.ReadUint32(code, f.ip))
			next := f.ip + 4
			if !f.pop().Truthy() {
				f.ip = next + int(off)
			} else {
				f.ip = next
			}
		case bytecode.OpDup:
			f.push(f.peek())
		case bytecode.OpPop:
			f.pop()

		case bytecode.OpCall:
			argc := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			hasKwargs := code[f.ip] != 0
			f.ip++
			var kwargs *value.Dict
			if hasKwargs {
				kwargs = f.pop().Data.(*value.Dict)
			}
			args := f.popN(argc)
			callee := f.pop()
			res, err := v.call(f, callee, args, kwargs)
			if err != nil {
				if v.dispatchError(f, err) {
					continue
				}
				return value.Nil(), err
			}
			f.push(res)

		case bytecode.OpCallMethod:
			name, next := bytecode.ReadString(code, f.ip)
			f.ip = next
			argc := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			hasKwargs := code[f.ip] != 0
			f.ip++
			maybe := code[f.ip] != 0
			f.ip++
			var kwargs *value.Dict
			if hasKwargs {
				kwargs = f.pop().Data.(*value.Dict)
			}
			args := f.popN(argc)
			obj := f.pop()
			if maybe && obj.IsNil() {
				f.push(value.Nil())
				continue
			}
			res, err := v.callMethod(f, obj, name, args, kwargs)
			if err != nil {
				if v.dispatchError(f, err) {
					continue
				}
				return value.Nil(), err
			}
			f.push(res)

		case bytecode.OpReturn:
			return f.pop(), nil
		case bytecode.OpHalt:
			_ = bytecode.ReadInt64(code, f.ip)
			f.ip += 8
			return value.Nil(), nil

		case bytecode.OpTryAssignNonNil:
			slot := bytecode.ReadUint16(code, f.ip)
			f.ip += 2
			failOff := int32(bytecode.ReadUint32(code, f.ip))
			failAt := f.ip + 4 + int(failOff)
			f.ip += 4
			val := f.pop()
			if val.IsNil() {
				f.ip = failAt
			} else {
				f.locals[slot] = val
			}
		case bytecode.OpTryIndex:
			idx := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			top := f.peek()
			elems := elemsOf(top)
			if idx < 0 || idx >= len(elems) {
				f.push(value.Nil())
			} else {
				f.push(elems[idx])
			}
		case bytecode.OpArrayRest:
			minLen := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			arr := f.pop().Data.(*value.Array)
			rest := append([]value.Value{}, arr.Elems[minLen:]...)
			f.push(value.Value{Kind: value.KArray, Data: value.NewArray(v.Heap, rest)})
		case bytecode.OpEnsureLen:
			minLen := int(bytecode.ReadUint16(code, f.ip))
			f.ip += 2
			exact := code[f.ip] != 0
			f.ip++
			failOff := int32(bytecode.ReadUint32(code, f.ip))
			failAt := f.ip + 4 + int(failOff)
			f.ip += 4
			top := f.peek()
			n := len(elemsOf(top))
			ok := n >= minLen
			if exact {
				ok = n == minLen
			}
			if !ok {
				f.pop()
				f.ip = failAt
			}
		case bytecode.OpTryTagPop:
			wantID := value.TagID(bytecode.ReadUint32(code, f.ip))
			f.ip += 4
			failOff := int32(bytecode.ReadUint32(code, f.ip))
			failAt := f.ip + 4 + int(failOff)
			f.ip += 4
			val := f.pop()
			if top, ok := v.Tags.Top(val.Tags); ok && top == wantID {
				parent, _, _ := v.Tags.Pop(val.Tags)
				f.push(value.Value{Kind: val.Kind, Data: val.Data, Tags: parent})
			} else {
				f.ip = failAt
			}
		case bytecode.OpTryRegex:
			idx := bytecode.ReadUint32(code, f.ip)
			f.ip += 4
			failOff := int32(bytecode.ReadUint32(code, f.ip))
			failAt := f.ip + 4 + int(failOff)
			f.ip += 4
			val := f.pop()
			re := f.chunk.Constants[idx].(*value.Regex)
			if !matchRegex(re, val) {
				f.ip = failAt
			}
		case bytecode.OpBadMatch:
			v.fail(f, "no pattern matched")
		case bytecode.OpUntagOrDie:
			wantID := value.TagID(bytecode.ReadUint32(code, f.ip))
			f.ip += 4
			val := f.pop()
			top, ok := v.Tags.Top(val.Tags)
			if !ok || top != wantID {
				v.fail(f, "value is not tagged "+v.Tags.Name(wantID))
			}
			parent, _, _ := v.Tags.Pop(val.Tags)
			f.push(value.Value{Kind: val.Kind, Data: val.Data, Tags: parent})
		case bytecode.OpTagPush:
			tagID := value.TagID(bytecode.ReadUint32(code, f.ip))
			f.ip += 4
			val := f.pop()
			f.push(value.Value{Kind: val.Kind, Data: val.Data, Tags: v.Tags.Push(val.Tags, tagID)})

		case bytecode.OpSubscript:
			idx, obj := f.pop(), f.pop()
			f.push(v.subscript(f, obj, idx))
		case bytecode.OpTargetSubscript:
			val, idx, obj := f.pop(), f.pop(), f.pop()
			v.setSubscript(f, obj, idx, val)
			f.push(val)
		case bytecode.OpMemberAccess:
			name, next := bytecode.ReadString(code, f.ip)
			f.ip = next
			maybe := code[f.ip] != 0
			f.ip++
			obj := f.pop()
			if maybe && obj.IsNil() {
				f.push(value.Nil())
				continue
			}
			res, err := v.getMember(f, obj, name)
			if err != nil {
				if v.dispatchError(f, err) {
					continue
				}
				return value.Nil(), err
			}
			f.push(res)
		case bytecode.OpTargetMember:
			name, next := bytecode.ReadString(code, f.ip)
			f.ip = next
			val, obj := f.pop(), f.pop()
			if err := v.setMember(f, obj, name, val); err != nil {
				if v.dispatchError(f, err) {
					continue
				}
				return value.Nil(), err
			}
			f.push(val)
		case bytecode.OpRange:
			inclusive := code[f.ip] != 0
			f.ip++
			hasStep := code[f.ip] != 0
			f.ip++
			var step int64 = 1
			if hasStep {
				step = asInt(f.pop())
			}
			to := f.pop()
			from := f.pop()
			f.push(value.Ptr(&rangeValue{From: asInt(from), To: asInt(to), Step: step, Inclusive: inclusive, cur: asInt(from)}))
		case bytecode.OpConcatStrings:
			b, a := f.pop(), f.pop()
			f.push(v.str(v.ToString(a) + v.ToString(b)))
		case bytecode.OpToString:
			f.push(v.str(v.ToString(f.pop())))
		case bytecode.OpTypeOf:
			f.push(v.str(TypeName(f.pop())))
		case bytecode.OpArrayAppend:
			val := f.pop()
			arr := f.peek().Data.(*value.Array)
			arr.Elems = append(arr.Elems, val)
		case bytecode.OpArrayExtend:
			val := f.pop()
			arr := f.peek().Data.(*value.Array)
			arr.Elems = append(arr.Elems, elemsOf(val)...)

		case bytecode.OpClass:
			v.execClass(f)

		case bytecode.OpExecCode:
			idx := bytecode.ReadUint32(code, f.ip)
			f.ip += 4
			art := f.chunk.Constants[idx].(*compiler.ModuleArtifact)
			ns, err := v.execModule(art)
			if err != nil {
				return value.Nil(), err
			}
			f.push(value.Value{Kind: value.KDict, Data: ns})
		case bytecode.OpEval:
			target := f.pop()
			res, err := v.evalSource(f, v.ToString(target))
			if err != nil {
				if v.dispatchError(f, err) {
					continue
				}
				return value.Nil(), err
			}
			f.push(res)

		case bytecode.OpThrow:
			thrown := f.pop()
			if v.raiseInFrame(f, thrown) {
				continue
			}
			return value.Nil(), &ThrownValue{Value: thrown}
		case bytecode.OpPushHandler:
			off := int32(bytecode.ReadUint32(code, f.ip))
			addr := f.ip + 4 + int(off)
			f.ip += 4
			f.handlers = append(f.handlers, handlerEntry{addr: addr, depth: len(f.stack)})
		case bytecode.OpPopHandler:
			f.handlers = f.handlers[:len(f.handlers)-1]
		case bytecode.OpYield:
			val := f.pop()
			f.push(v.yield(f, val))
		case bytecode.OpDefer:
			f.defers = append(f.defers, f.pop())
		case bytecode.OpRunDefers:
			v.runDefers(f)

		default:
			v.fail(f, "unknown opcode "+op.String())
		}
	}
}

func (v *VM) fail(f *Frame, msg string) {
	panic(tyerrors.New(tyerrors.RuntimeError, msg, v.locate(f)))
}

func (v *VM) locate(f *Frame) tyerrors.Location {
	loc := tyerrors.Location{File: v.filePath}
	if f == nil {
		return loc
	}
	if span, ok := f.chunk.LocationAt(f.ip); ok {
		loc.Line, loc.Column, loc.Offset = span.StartLine, span.StartCol, span.StartOff
	}
	return loc
}

// dispatchError checks f's active handler stack for an error raised
// deeper in the call (a nested call's runtime error or uncaught throw)
// and, if one is active, truncates the stack and jumps into the catch
// sequence the same way a same-frame OpThrow would. Returns false if
// nothing in this frame can handle it, meaning the caller should
// propagate err further up.
func (v *VM) dispatchError(f *Frame, err error) bool {
	tv, ok := err.(*ThrownValue)
	var payload value.Value
	if ok {
		payload = tv.Value
	} else {
		payload = v.runtimeErrorValue(err.Error())
	}
	return v.raiseInFrame(f, payload)
}

func (v *VM) raiseInFrame(f *Frame, payload value.Value) bool {
	if len(f.handlers) == 0 {
		return false
	}
	h := f.handlers[len(f.handlers)-1]
	f.handlers = f.handlers[:len(f.handlers)-1]
	f.stack = f.stack[:h.depth]
	f.push(payload)
	f.ip = h.addr
	return true
}

func (v *VM) runDefers(f *Frame) {
	for i := len(f.defers) - 1; i >= 0; i-- {
		d := f.defers[i]
		v.call(f, d, nil, nil)
	}
	f.defers = nil
}

func elemsOf(val value.Value) []value.Value {
	switch val.Kind {
	case value.KArray:
		return val.Data.(*value.Array).Elems
	case value.KTuple:
		return val.Data.(*value.Tuple).Elems
	default:
		return nil
	}
}

func asInt(v value.Value) int64 {
	switch v.Kind {
	case value.KInteger:
		return v.Data.(int64)
	case value.KReal:
		return int64(v.Data.(float64))
	default:
		return 0
	}
}
