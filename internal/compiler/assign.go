package compiler

import (
	"ty/internal/ast"
	"ty/internal/bytecode"
	"ty/internal/scope"
	"ty/internal/token"
)

var compoundOpcodes = map[ast.AssignOp]bytecode.OpCode{
	ast.AssignAddEq: bytecode.OpAdd, ast.AssignSubEq: bytecode.OpSub,
	ast.AssignMulEq: bytecode.OpMul, ast.AssignDivEq: bytecode.OpDiv,
	ast.AssignModEq: bytecode.OpMod,
}

// compileAssignExpr compiles `target op= value`, leaving the assigned
// value on the stack (AssignExpr is itself an expression). `?=` only
// assigns when the current target value is Nil, this module's "maybe-
// assign" used for lazy default-initialization idioms.
func (c *Compiler) compileAssignExpr(a *ast.AssignExpr) {
	span := a.GetSpan()

	if a.Op != ast.AssignEq {
		if a.Op == ast.AssignMaybeEq {
			c.compileMaybeAssign(a)
			return
		}
		op := compoundOpcodes[a.Op]
		c.compileReadModifyWrite(a.Target, func() {
			c.compileExpr(a.Value)
			c.emit(op, span)
		})
		return
	}

	if pat := asDestructurePattern(a.Target); pat != nil {
		c.compileExpr(a.Value)
		c.emit(bytecode.OpDup, span)
		var fails []int
		c.compilePattern(pat, &fails)
		for _, f := range fails {
			c.patch(f)
		}
		// A failed destructure falls through with no bindings made and
		// no error raised. Unlike `let` (compileIrrefutablePattern, which
		// emits OpBadMatch), plain `=` destructuring reports nothing on a
		// mismatch -- a documented gap, see DESIGN.md.
		return
	}

	c.compileStoreTarget(a.Target, func() { c.compileExpr(a.Value) })
}

// compileMaybeAssign evaluates target, and only if it is Nil, evaluates
// and stores value; the final target value (old or new) is left on the
// stack either way.
func (c *Compiler) compileMaybeAssign(a *ast.AssignExpr) {
	span := a.GetSpan()
	c.compileReadModifyWrite(a.Target, func() {
		c.emit(bytecode.OpDup, span)
		c.emit(bytecode.OpNil, span)
		c.emit(bytecode.OpEq, span)
		j := c.emitJump(bytecode.OpJumpIfNot, span)
		c.emit(bytecode.OpPop, span)
		c.compileExpr(a.Value)
		c.patch(j)
	})
}

func asDestructurePattern(target ast.Expr) ast.Expr {
	switch target.(type) {
	case *ast.ArrayLit, *ast.DictLit, *ast.TupleLit:
		return target
	}
	return nil
}

// compileReadModifyWrite evaluates target's current value, runs combine
// (which consumes that current value and leaves the new value on the
// stack), then stores the result back into target and leaves it on the
// stack as the expression's result.
func (c *Compiler) compileReadModifyWrite(target ast.Expr, combine func()) {
	span := target.GetSpan()
	switch t := target.(type) {
	case *ast.Ident:
		c.compileLoad(t.Name, span)
		combine()
		c.storeIdent(t.Name, span, true)

	case *ast.MemberExpr:
		c.compileExpr(t.Object)
		c.emit(bytecode.OpDup, span)
		c.emit(bytecode.OpMemberAccess, span)
		c.chunk.WriteString(t.Name)
		c.chunk.WriteBool(false)
		combine()
		c.emit(bytecode.OpTargetMember, span)
		c.chunk.WriteString(t.Name)

	case *ast.IndexExpr:
		objSlot := c.declare(c.nextScratch(), scope.KindVar, span).Slot
		idxSlot := c.declare(c.nextScratch(), scope.KindVar, span).Slot
		c.compileExpr(t.Object)
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(objSlot))
		c.compileExpr(t.Index)
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(idxSlot))

		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(objSlot))
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(idxSlot))
		c.emit(bytecode.OpSubscript, span)
		combine()

		valSlot := c.declare(c.nextScratch(), scope.KindVar, span).Slot
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(valSlot))
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(objSlot))
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(idxSlot))
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(valSlot))
		c.emit(bytecode.OpTargetSubscript, span)

	default:
		c.errorf(span, "invalid assignment target")
		combine()
	}
}

// compileStoreTarget evaluates pushValue then stores it into target,
// leaving the stored value on the stack.
func (c *Compiler) compileStoreTarget(target ast.Expr, pushValue func()) {
	span := target.GetSpan()
	switch t := target.(type) {
	case *ast.Ident:
		pushValue()
		c.storeIdent(t.Name, span, true)

	case *ast.MemberExpr:
		c.compileExpr(t.Object)
		pushValue()
		c.emit(bytecode.OpTargetMember, span)
		c.chunk.WriteString(t.Name)

	case *ast.IndexExpr:
		c.compileExpr(t.Object)
		c.compileExpr(t.Index)
		pushValue()
		c.emit(bytecode.OpTargetSubscript, span)

	default:
		c.errorf(span, "invalid assignment target")
		pushValue()
	}
}

// storeIdent stores the top-of-stack value into name, which must
// already be declared. When keepValue is true the stored value is pushed back,
// matching assignment-as-expression semantics; otherwise it is
// consumed, for the common case of `x = v` used as a bare statement.
func (c *Compiler) storeIdent(name string, span token.Span, keepValue bool) {
	sym, ok := c.sc.LookupAndCapture(name)
	if !ok {
		c.errorf(span, "undefined name %q", name)
		if !keepValue {
			c.emit(bytecode.OpPop, span)
		}
		return
	}
	captured := sym.Kind.Has(scope.KindCaptured) && ownFn(sym.Scope) != ownFn(c.sc)
	switch {
	case captured && keepValue:
		c.emit(bytecode.OpAssign, span)
		c.chunk.WriteUint16(uint16(sym.CaptureIndex))
	case captured:
		c.emit(bytecode.OpAssign, span)
		c.chunk.WriteUint16(uint16(sym.CaptureIndex))
		c.emit(bytecode.OpPop, span)
	case keepValue:
		c.emit(bytecode.OpPopVar, span)
		c.chunk.WriteUint16(uint16(sym.Slot))
	default:
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(sym.Slot))
	}
}
