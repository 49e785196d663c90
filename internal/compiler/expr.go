package compiler

import (
	"ty/internal/ast"
	"ty/internal/bytecode"
	"ty/internal/scope"
	"ty/internal/token"
)

// compileExpr emits code that leaves exactly one value -- the
// expression's result -- on top of the stack.
func (c *Compiler) compileExpr(e ast.Expr) {
	span := e.GetSpan()
	switch ex := e.(type) {
	case *ast.IntLit:
		c.emit(bytecode.OpInteger, span)
		c.chunk.WriteInt64(ex.Value)
	case *ast.RealLit:
		c.emit(bytecode.OpReal, span)
		c.chunk.WriteFloat64(ex.Value)
	case *ast.StringLit:
		c.emit(bytecode.OpString, span)
		c.chunk.WriteString(ex.Value)
	case *ast.SpecialStringLit:
		c.compileInterpolatedString(ex)
	case *ast.BoolLit:
		c.emit(bytecode.OpBoolean, span)
		c.chunk.WriteBool(ex.Value)
	case *ast.NilLit:
		c.emit(bytecode.OpNil, span)
	case *ast.RegexLit:
		idx := c.chunk.AddConstant(c.compileRegexConstant(ex.Source, ex.Flags, span))
		c.emit(bytecode.OpRegex, span)
		c.chunk.WriteUint32(idx)
	case *ast.TagLit:
		c.compileTagConstruct(ex.Name, nil, span)
	case *ast.Ident:
		c.compileLoad(ex.Name, span)
	case *ast.SelfExpr:
		c.compileLoad("self", span)
	case *ast.SuperExpr:
		c.compileLoad("super", span)
	case *ast.Placeholder:
		c.emit(bytecode.OpNil, span)
	case *ast.ArrayLit:
		c.compileArrayLit(ex)
	case *ast.DictLit:
		c.compileDictLit(ex)
	case *ast.TupleLit:
		c.compileTupleLit(ex)
	case *ast.ArrayCompr:
		c.compileArrayCompr(ex)
	case *ast.DictCompr:
		c.compileDictCompr(ex)
	case *ast.BinaryExpr:
		c.compileBinaryExpr(ex)
	case *ast.UnaryExpr:
		c.compileUnaryExpr(ex)
	case *ast.AssignExpr:
		c.compileAssignExpr(ex)
	case *ast.CondExpr:
		c.compileCondExpr(ex)
	case *ast.CallExpr:
		c.compileCallExpr(ex)
	case *ast.MethodCallExpr:
		c.compileMethodCallExpr(ex)
	case *ast.IndexExpr:
		c.compileExpr(ex.Object)
		c.compileExpr(ex.Index)
		c.emit(bytecode.OpSubscript, span)
	case *ast.SliceExpr:
		c.compileSliceExpr(ex)
	case *ast.MemberExpr:
		c.compileExpr(ex.Object)
		c.emit(bytecode.OpMemberAccess, span)
		c.chunk.WriteString(ex.Name)
		c.chunk.WriteBool(ex.Maybe)
	case *ast.DynamicMemberExpr:
		c.compileExpr(ex.Object)
		c.compileExpr(ex.NameExpr)
		c.emit(bytecode.OpSubscript, span)
	case *ast.FunctionExpr:
		c.emitClosure(ex, ex.SelfBinding, span)
	case *ast.EvalExpr:
		c.compileExpr(ex.Target)
		c.emit(bytecode.OpEval, span)
	case *ast.DefinedExpr:
		_, ok := c.sc.Lookup(ex.Name)
		c.emit(bytecode.OpBoolean, span)
		c.chunk.WriteBool(ok)
	case *ast.TypeofExpr:
		c.compileExpr(ex.Target)
		c.emit(bytecode.OpTypeOf, span)
	case *ast.ThrowExpr:
		c.compileExpr(ex.Value)
		c.emit(bytecode.OpThrow, span)
	case *ast.YieldExpr:
		if ex.Value != nil {
			c.compileExpr(ex.Value)
		} else {
			c.emit(bytecode.OpNil, span)
		}
		c.emit(bytecode.OpYield, span)
	case *ast.WithExpr:
		c.compileWithExpr(ex)
	case *ast.StmtExpr:
		c.compileStmt(ex.Stmt)
		c.emit(bytecode.OpNil, span)
	case *ast.CastExpr:
		c.compileCastExpr(ex)
	case *ast.BlockExpr:
		c.compileBlockExpr(ex)
	case *ast.IfExpr:
		c.compileIfExpr(ex)
	case *ast.MatchExpr:
		c.compileMatchArms(ex.Subject, ex.Arms, span, true)
	case *ast.TemplateExpr, *ast.TemplateHole:
		c.errorf(span, "TEMPLATE quote used outside of a macro body")
		c.emit(bytecode.OpNil, span)
	case *ast.MacroInvocation:
		c.errorf(span, "macro %q could not be expanded (undefined, or a statement macro used in expression position)", ex.Name)
		c.emit(bytecode.OpNil, span)
	default:
		c.errorf(span, "unsupported expression form %T", e)
		c.emit(bytecode.OpNil, span)
	}
}

// compileLoad pushes the current value of a name, resolving it as a
// local or a captured free variable.
func (c *Compiler) compileLoad(name string, span token.Span) {
	sym, ok := c.sc.LookupAndCapture(name)
	if !ok {
		c.errorf(span, "undefined name %q", name)
		c.emit(bytecode.OpNil, span)
		return
	}
	if sym.Kind.Has(scope.KindCaptured) && ownFn(sym.Scope) != ownFn(c.sc) {
		c.emit(bytecode.OpLoadRef, span)
		c.chunk.WriteUint16(uint16(sym.CaptureIndex))
		return
	}
	c.emit(bytecode.OpLoadVar, span)
	c.chunk.WriteUint16(uint16(sym.Slot))
}

// compileTagConstruct pushes the tagged value for a bare tag (0-arity)
// or tag-call (args packed as the tag's payload; see pattern.go's
// compileTagPattern for the reverse, destructuring side of this
// convention: 0 args -> Nil payload, 1 arg -> the value itself, 2+ args
// -> an Array of the values).
func (c *Compiler) compileTagConstruct(name string, args []ast.Expr, span token.Span) {
	switch len(args) {
	case 0:
		c.emit(bytecode.OpNil, span)
	case 1:
		c.compileExpr(args[0])
	default:
		for _, a := range args {
			c.compileExpr(a)
		}
		c.emit(bytecode.OpArray, span)
		c.chunk.WriteUint16(uint16(len(args)))
	}
	tagID := c.tags.Intern(name)
	c.emit(bytecode.OpTagPush, span)
	c.chunk.WriteUint32(uint32(tagID))
}

func (c *Compiler) compileArrayLit(a *ast.ArrayLit) {
	span := a.GetSpan()
	hasSpread := false
	for _, ok := range a.Spreads {
		if ok {
			hasSpread = true
		}
	}
	if !hasSpread {
		for _, el := range a.Elements {
			c.compileExpr(el)
		}
		c.emit(bytecode.OpArray, span)
		c.chunk.WriteUint16(uint16(len(a.Elements)))
		return
	}
	// Spread elements: build the array incrementally so `[a, *b, c]`
	// splices b's elements in place rather than nesting it.
	c.emit(bytecode.OpArray, span)
	c.chunk.WriteUint16(0)
	for i, el := range a.Elements {
		c.compileExpr(el)
		if i < len(a.Spreads) && a.Spreads[i] {
			c.emit(bytecode.OpArrayExtend, span)
		} else {
			c.emit(bytecode.OpArrayAppend, span)
		}
	}
}

func (c *Compiler) compileDictLit(d *ast.DictLit) {
	span := d.GetSpan()
	for _, e := range d.Entries {
		c.compileExpr(e.Key)
		c.compileExpr(e.Value)
	}
	c.emit(bytecode.OpDict, span)
	c.chunk.WriteUint16(uint16(len(d.Entries)))
}

func (c *Compiler) compileTupleLit(t *ast.TupleLit) {
	span := t.GetSpan()
	for _, s := range t.Slots {
		if s.Value != nil {
			c.compileExpr(s.Value)
		} else {
			c.emit(bytecode.OpNil, span)
		}
	}
	c.emit(bytecode.OpTuple, span)
	c.chunk.WriteUint16(uint16(len(t.Slots)))
}

var binaryOpcodes = map[ast.BinaryOp]bytecode.OpCode{
	ast.OpAdd: bytecode.OpAdd, ast.OpSub: bytecode.OpSub, ast.OpMul: bytecode.OpMul,
	ast.OpDiv: bytecode.OpDiv, ast.OpMod: bytecode.OpMod, ast.OpEq: bytecode.OpEq,
	ast.OpNeq: bytecode.OpNeq, ast.OpLt: bytecode.OpLt, ast.OpLeq: bytecode.OpLeq,
	ast.OpGt: bytecode.OpGt, ast.OpGeq: bytecode.OpGeq, ast.OpBitAnd: bytecode.OpBitAnd,
	ast.OpBitOr: bytecode.OpBitOr, ast.OpBitXor: bytecode.OpBitXor, ast.OpShl: bytecode.OpShl,
	ast.OpShr: bytecode.OpShr,
}

func (c *Compiler) compileBinaryExpr(b *ast.BinaryExpr) {
	span := b.GetSpan()
	switch b.Op {
	case ast.OpAnd:
		c.compileExpr(b.Left)
		c.emit(bytecode.OpDup, span)
		j := c.emitJump(bytecode.OpJumpIfNot, span)
		c.emit(bytecode.OpPop, span)
		c.compileExpr(b.Right)
		c.patch(j)
		return
	case ast.OpOr:
		c.compileExpr(b.Left)
		c.emit(bytecode.OpDup, span)
		j := c.emitJump(bytecode.OpJumpIf, span)
		c.emit(bytecode.OpPop, span)
		c.compileExpr(b.Right)
		c.patch(j)
		return
	case ast.OpRange, ast.OpRangeIncl:
		c.compileExpr(b.Left)
		c.compileExpr(b.Right)
		c.emit(bytecode.OpRange, span)
		c.chunk.WriteBool(b.Op == ast.OpRangeIncl)
		c.chunk.WriteBool(false) // hasStep
		return
	case ast.OpUser:
		c.compileExpr(b.Left)
		c.compileExpr(b.Right)
		c.compileLoad("op:"+b.Name, span)
		c.emit(bytecode.OpCall, span)
		c.chunk.WriteUint16(2)
		c.chunk.WriteBool(false)
		return
	}
	op, ok := binaryOpcodes[b.Op]
	if !ok {
		c.errorf(span, "unsupported binary operator %q", b.Op)
		c.emit(bytecode.OpNil, span)
		return
	}
	c.compileExpr(b.Left)
	c.compileExpr(b.Right)
	c.emit(op, span)
}

func (c *Compiler) compileUnaryExpr(u *ast.UnaryExpr) {
	span := u.GetSpan()
	switch u.Op {
	case ast.UnNeg:
		c.compileExpr(u.Operand)
		c.emit(bytecode.OpNeg, span)
	case ast.UnNot:
		c.compileExpr(u.Operand)
		c.emit(bytecode.OpNot, span)
	case ast.UnBitNot:
		c.compileExpr(u.Operand)
		c.emit(bytecode.OpBitNot, span)
	default:
		c.errorf(span, "operator %q is only valid as a call argument or pattern prefix", u.Op)
		c.compileExpr(u.Operand)
	}
}

func (c *Compiler) compileCondExpr(e *ast.CondExpr) {
	span := e.GetSpan()
	c.compileExpr(e.Cond)
	elseJ := c.emitJump(bytecode.OpJumpIfNot, span)
	c.compileExpr(e.Then)
	endJ := c.emitJump(bytecode.OpJump, span)
	c.patch(elseJ)
	c.compileExpr(e.Else)
	c.patch(endJ)
}

func (c *Compiler) compileIfExpr(e *ast.IfExpr) {
	span := e.GetSpan()
	c.compileExpr(e.Cond)
	elseJ := c.emitJump(bytecode.OpJumpIfNot, span)
	c.compileExpr(e.Then)
	endJ := c.emitJump(bytecode.OpJump, span)
	c.patch(elseJ)
	if e.Else != nil {
		c.compileExpr(e.Else)
	} else {
		c.emit(bytecode.OpNil, span)
	}
	c.patch(endJ)
}

func (c *Compiler) compileBlockExpr(b *ast.BlockExpr) {
	old := c.openScope(false)
	defer c.closeScope(old)
	if len(b.Stmts) == 0 {
		c.emit(bytecode.OpNil, b.GetSpan())
		return
	}
	for _, s := range b.Stmts[:len(b.Stmts)-1] {
		c.compileStmt(s)
	}
	last := b.Stmts[len(b.Stmts)-1]
	if es, ok := last.(*ast.ExpressionStmt); ok {
		c.compileExpr(es.Expr)
	} else {
		c.compileStmt(last)
		c.emit(bytecode.OpNil, b.GetSpan())
	}
}

func (c *Compiler) compileWithExpr(w *ast.WithExpr) {
	span := w.GetSpan()
	old := c.openScope(false)
	defer c.closeScope(old)
	c.compileExpr(w.Resource)
	sym := c.declare(w.Binding, scope.KindVar, span)
	c.emit(bytecode.OpPushVar, span)
	c.chunk.WriteUint16(uint16(sym.Slot))

	closeCall := &ast.MethodCallExpr{Object: &ast.Ident{Name: w.Binding}, Method: "close", Maybe: true}
	closer := &ast.FunctionExpr{RestIndex: -1, KwargsIndex: -1, Body: []ast.Stmt{&ast.ExpressionStmt{Expr: closeCall}}}
	c.emitClosure(closer, "", span)
	c.emit(bytecode.OpDefer, span)

	for _, s := range w.Body {
		c.compileStmt(s)
	}
	c.emit(bytecode.OpRunDefers, span)
	c.emit(bytecode.OpNil, span)
}

func (c *Compiler) compileCastExpr(ce *ast.CastExpr) {
	span := ce.GetSpan()
	if name, ok := tagTypeName(ce.Type); ok {
		c.compileExpr(ce.Value)
		tagID := c.tags.Intern(name)
		c.emit(bytecode.OpUntagOrDie, span)
		c.chunk.WriteUint32(uint32(tagID))
		return
	}
	c.compileExpr(ce.Value)
	c.emit(bytecode.OpToString, span)
}

func tagTypeName(e ast.Expr) (string, bool) {
	switch t := e.(type) {
	case *ast.TagLit:
		return t.Name, true
	case *ast.Ident:
		return t.Name, isTagLike(t.Name)
	}
	return "", false
}

func (c *Compiler) compileSliceExpr(s *ast.SliceExpr) {
	span := s.GetSpan()
	c.compileExpr(s.Object)
	if s.From != nil {
		c.compileExpr(s.From)
	} else {
		c.emit(bytecode.OpNil, span)
	}
	if s.To != nil {
		c.compileExpr(s.To)
	} else {
		c.emit(bytecode.OpNil, span)
	}
	hasStep := s.Step != nil
	if hasStep {
		c.compileExpr(s.Step)
	}
	c.emit(bytecode.OpRange, span)
	c.chunk.WriteBool(false)
	c.chunk.WriteBool(hasStep)
	c.emit(bytecode.OpSubscript, span)
}

// compileCallArgs pushes positional args (rejecting Spread/Condition
// forms, a documented scope reduction) and, when kwargs are present,
// packs them into a trailing dict the VM's call convention treats as a
// keyword-argument bundle.
func (c *Compiler) compileCallArgs(args []ast.Arg, kwargs []ast.KwArg, span token.Span) (argc int, hasKwargs bool) {
	for _, a := range args {
		if a.Spread {
			c.errorf(a.Value.GetSpan(), "spread call arguments are not supported")
			continue
		}
		if a.Condition != nil {
			c.errorf(a.Value.GetSpan(), "conditional call arguments are not supported")
			continue
		}
		c.compileExpr(a.Value)
		argc++
	}
	if len(kwargs) == 0 {
		return argc, false
	}
	for _, kw := range kwargs {
		c.emit(bytecode.OpString, span)
		c.chunk.WriteString(kw.Name)
		c.compileExpr(kw.Value)
	}
	c.emit(bytecode.OpDict, span)
	c.chunk.WriteUint16(uint16(len(kwargs)))
	return argc, true
}

func (c *Compiler) compileCallExpr(call *ast.CallExpr) {
	span := call.GetSpan()
	if tag, ok := call.Callee.(*ast.TagLit); ok {
		var args []ast.Expr
		for _, a := range call.Args {
			args = append(args, a.Value)
		}
		c.compileTagConstruct(tag.Name, args, span)
		return
	}
	c.compileExpr(call.Callee)
	argc, hasKwargs := c.compileCallArgs(call.Args, call.Kwargs, span)
	c.emit(bytecode.OpCall, span)
	c.chunk.WriteUint16(uint16(argc))
	c.chunk.WriteBool(hasKwargs)
}

func (c *Compiler) compileMethodCallExpr(m *ast.MethodCallExpr) {
	span := m.GetSpan()
	c.compileExpr(m.Object)
	argc, hasKwargs := c.compileCallArgs(m.Args, m.Kwargs, span)
	c.emit(bytecode.OpCallMethod, span)
	c.chunk.WriteString(m.Method)
	c.chunk.WriteUint16(uint16(argc))
	c.chunk.WriteBool(hasKwargs)
	c.chunk.WriteBool(m.Maybe)
}

// compileInterpolatedString concatenates each literal/expression part
// left to right via repeated OpConcatStrings, converting non-string
// expression parts with OpToString first.
func (c *Compiler) compileInterpolatedString(s *ast.SpecialStringLit) {
	span := s.GetSpan()
	if len(s.Parts) == 0 {
		c.emit(bytecode.OpString, span)
		c.chunk.WriteString("")
		return
	}
	first := true
	for _, part := range s.Parts {
		if part.IsExpr {
			c.compileExpr(part.Expr)
			c.emit(bytecode.OpToString, span)
		} else {
			c.emit(bytecode.OpString, span)
			c.chunk.WriteString(part.Literal)
		}
		if !first {
			c.emit(bytecode.OpConcatStrings, span)
		}
		first = false
	}
}
