package compiler

import (
	"ty/internal/ast"
	"ty/internal/bytecode"
	"ty/internal/scope"
	"ty/internal/token"
	"ty/internal/value"
)

// compileFunctionExpr compiles fn's body into its own chunk and returns
// the resulting template, recording the free variables it reads from
// enclosing frames so the VM's OpFunction can snapshot them into a
// value.RefVector at closure-creation time. selfName, when non-empty,
// binds the function's own eventual value to a local slot for
// self-recursion.
func (c *Compiler) compileFunctionExpr(fn *ast.FunctionExpr, selfName string) *FuncTemplate {
	fc := c.child()
	fnScope := fc.sc
	span := fn.GetSpan()

	selfSlot := -1
	if selfName != "" {
		sym := fc.declare(selfName, scope.KindVar, span)
		selfSlot = sym.Slot
	}

	restIndex, kwargsIndex := -1, -1
	params := make([]value.ParamInfo, len(fn.Params))
	type deferredDefault struct {
		slot int
		expr ast.Expr
	}
	var defaults []deferredDefault
	for i, p := range fn.Params {
		sym := fc.declare(p.Name, scope.KindVar, span)
		params[i] = value.ParamInfo{Name: p.Name}
		if p.IsRest {
			restIndex = i
		}
		if p.IsKwargs {
			kwargsIndex = i
		}
		if p.Default != nil {
			defaults = append(defaults, deferredDefault{sym.Slot, p.Default})
		}
	}
	// Unset positional/kwarg params arrive as locals already holding Nil
	// (the VM's OpCall convention, see internal/vm); a prologue swaps in
	// each declared default only when the caller left it Nil.
	for _, d := range defaults {
		fc.emit(bytecode.OpLoadVar, span)
		fc.chunk.WriteUint16(uint16(d.slot))
		fc.emit(bytecode.OpNil, span)
		fc.emit(bytecode.OpEq, span)
		skip := fc.emitJump(bytecode.OpJumpIfNot, span)
		fc.compileExpr(d.expr)
		fc.emit(bytecode.OpPushVar, span)
		fc.chunk.WriteUint16(uint16(d.slot))
		fc.patch(skip)
	}

	for _, s := range fn.Body {
		fc.compileStmt(s)
	}
	fc.emit(bytecode.OpRunDefers, span)
	fc.emit(bytecode.OpNil, span)
	fc.emit(bytecode.OpReturn, span)
	fc.chunk.Seal()

	c.Errors = append(c.Errors, fc.Errors...)

	var captures []CaptureSource
	for _, sym := range fnScope.Captured() {
		captures = append(captures, captureSourceFor(fnScope, sym))
	}

	return &FuncTemplate{
		Name:        fn.Name,
		Chunk:       fc.chunk,
		NumSlots:    fnScope.SlotCount(),
		Params:      params,
		RestIndex:   restIndex,
		KwargsIndex: kwargsIndex,
		IsGenerator: fn.IsGenerator,
		Captures:    captures,
		SelfSlot:    selfSlot,
	}
}

// emitClosure compiles fn and emits the OpFunction instruction that
// turns the resulting template into a runtime closure when executed.
func (c *Compiler) emitClosure(fn *ast.FunctionExpr, selfName string, span token.Span) {
	tmpl := c.compileFunctionExpr(fn, selfName)
	idx := c.chunk.AddConstant(tmpl)
	c.emit(bytecode.OpFunction, span)
	c.chunk.WriteUint32(idx)
}
