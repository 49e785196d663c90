package compiler

import (
	"sort"

	"ty/internal/ast"
	"ty/internal/bytecode"
	"ty/internal/scope"
	"ty/internal/token"
)

// compileStmt compiles one statement for effect; statements never leave
// a value on the stack (expression statements explicitly pop theirs).
func (c *Compiler) compileStmt(s ast.Stmt) {
	span := s.GetSpan()
	switch st := s.(type) {
	case *ast.ExpressionStmt:
		c.compileExpr(st.Expr)
		c.emit(bytecode.OpPop, span)

	case *ast.NullStmt, *ast.SetTypeStmt, *ast.TypeDefStmt:
		// No runtime effect: type constraints are advisory.

	case *ast.DefinitionStmt:
		c.compileDefinitionStmt(st)

	case *ast.FunctionDefStmt:
		sym := c.bindingSymbol(st.Fn.Name, st.Public, span)
		c.emitClosure(st.Fn, st.Fn.Name, span)
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(sym.Slot))

	case *ast.OperatorDefStmt:
		sym := c.bindingSymbol("op:"+st.Symbol, false, span)
		c.emitClosure(st.Fn, "", span)
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(sym.Slot))

	case *ast.MacroDefStmt, *ast.FunMacroDefStmt:
		// Consumed in full by expandMacros before compilation starts;
		// nothing left to emit, same as a TagDefStmt.

	case *ast.TagDefStmt:
		// Variant tags were interned during hoisting; nothing to emit.

	case *ast.ClassDefStmt:
		c.compileClassDef(st)

	case *ast.TraitDefStmt:
		c.compileTraitDef(st)

	case *ast.IfStmt:
		c.compileIfStmt(st)

	case *ast.IfLetStmt:
		c.compileIfLetStmt(st)

	case *ast.MatchStmt:
		c.compileMatchArms(st.Subject, st.Arms, span, false)

	case *ast.ForStmt:
		c.compileForStmt(st)

	case *ast.EachStmt:
		c.compileEachStmt(st)

	case *ast.WhileStmt:
		c.compileWhileStmt(st)

	case *ast.WhileMatchStmt:
		c.compileWhileMatchStmt(st)

	case *ast.ReturnStmt:
		c.emitRunDefers(span)
		if st.Value != nil {
			c.compileExpr(st.Value)
		} else {
			c.emit(bytecode.OpNil, span)
		}
		c.emit(bytecode.OpReturn, span)

	case *ast.GeneratorReturnStmt:
		c.emitRunDefers(span)
		if st.Value != nil {
			c.compileExpr(st.Value)
		} else {
			c.emit(bytecode.OpNil, span)
		}
		c.emit(bytecode.OpReturn, span)

	case *ast.NextStmt:
		// `next` is an unlabeled loop-continue.
		lc := c.findLoop("")
		if lc == nil {
			c.errorf(span, "'next' used outside a loop")
			return
		}
		at := c.emitJump(bytecode.OpJump, span)
		lc.continueJumps = append(lc.continueJumps, at)

	case *ast.ContinueStmt:
		lc := c.findLoop(st.Label)
		if lc == nil {
			c.errorf(span, "'continue' used outside a loop")
			return
		}
		c.emit(bytecode.OpJump, span)
		c.chunk.WriteUint32(0)
		at := c.chunk.Offset() - 4
		lc.continueJumps = append(lc.continueJumps, at)

	case *ast.BreakStmt:
		lc := c.findLoop(st.Label)
		if lc == nil {
			c.errorf(span, "'break' used outside a loop")
			return
		}
		if st.Value != nil {
			c.compileExpr(st.Value)
			c.emit(bytecode.OpPop, span)
		}
		at := c.emitJump(bytecode.OpJump, span)
		lc.breakJumps = append(lc.breakJumps, at)

	case *ast.TryStmt:
		c.compileTryStmt(st)

	case *ast.DeferStmt:
		c.emitDeferredClosure(st.Body, span)

	case *ast.CleanupStmt:
		c.emitDeferredClosure(st.Body, span)

	case *ast.TryCleanStmt:
		c.compileTryCleanStmt(st)

	case *ast.DropStmt:
		sym, ok := c.sc.Lookup(st.Name)
		if !ok {
			c.errorf(span, "undefined resource %q", st.Name)
			return
		}
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(sym.Slot))
		c.emit(bytecode.OpCallMethod, span)
		c.chunk.WriteString("close")
		c.chunk.WriteUint16(0)
		c.chunk.WriteBool(false)
		c.chunk.WriteBool(true)
		c.emit(bytecode.OpPop, span)

	case *ast.BlockStmt:
		old := c.openScope(false)
		for _, inner := range st.Stmts {
			c.compileStmt(inner)
		}
		c.closeScope(old)

	case *ast.MultiStmt:
		for _, inner := range st.Stmts {
			c.compileStmt(inner)
		}

	case *ast.HaltStmt:
		if st.Code != nil {
			c.compileExpr(st.Code)
		} else {
			c.emit(bytecode.OpInteger, span)
			c.chunk.WriteInt64(0)
		}
		c.emit(bytecode.OpHalt, span)

	case *ast.ImportStmt:
		c.compileImportStmt(st)

	case *ast.ExportStmt:
		for _, name := range st.Names {
			if sym, ok := c.sc.Lookup(name); ok {
				sym.Kind |= scope.KindPublic
			} else {
				c.errorf(span, "export of undefined name %q", name)
			}
		}

	case *ast.UseStmt:
		c.compileUseStmt(st)

	default:
		c.errorf(span, "unsupported statement form %T", s)
	}
}

// bindingSymbol declares name, marking it public when requested, unless
// it was already hoisted, in which case it reuses the hoisted symbol.
func (c *Compiler) bindingSymbol(name string, public bool, span token.Span) *scope.Symbol {
	kind := scope.KindVar
	if public {
		kind |= scope.KindPublic
	}
	if sym, ok := c.sc.Lookup(name); ok && c.sc.LocallyDefined(name) {
		if public {
			sym.Kind |= scope.KindPublic
		}
		return sym
	}
	return c.declare(name, kind, span)
}

func (c *Compiler) compileDefinitionStmt(st *ast.DefinitionStmt) {
	span := st.GetSpan()
	c.compileExpr(st.Value)
	if ident, ok := st.Pattern.(*ast.Ident); ok {
		sym := c.bindingSymbol(ident.Name, st.Public, span)
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(sym.Slot))
		return
	}
	c.compileIrrefutablePattern(st.Pattern)
}

// compileIrrefutablePattern matches pat against the value on top of the
// stack, throwing a match error at runtime if it fails to match (the
// irrefutable-binding contract `let`/`const`/each-loop patterns rely
// on, as opposed to a match arm's deliberate fallthrough to the next
// arm on mismatch).
func (c *Compiler) compileIrrefutablePattern(pat ast.Expr) {
	span := pat.GetSpan()
	var fails []int
	c.compilePattern(pat, &fails)
	if len(fails) == 0 {
		return
	}
	ok := c.emitJump(bytecode.OpJump, span)
	for _, f := range fails {
		c.patch(f)
	}
	c.emit(bytecode.OpNil, span)
	c.emit(bytecode.OpBadMatch, span)
	c.patch(ok)
}

func (c *Compiler) compileIfStmt(st *ast.IfStmt) {
	span := st.GetSpan()
	c.compileExpr(st.Cond)
	elseJ := c.emitJump(bytecode.OpJumpIfNot, span)
	c.compileBlock(st.Then)
	endJ := c.emitJump(bytecode.OpJump, span)
	c.patch(elseJ)
	c.compileBlock(st.Else)
	c.patch(endJ)
}

func (c *Compiler) compileIfLetStmt(st *ast.IfLetStmt) {
	span := st.GetSpan()
	old := c.openScope(false)
	c.compileExpr(st.Value)
	c.emit(bytecode.OpDup, span)
	var fails []int
	c.compilePattern(st.Pattern, &fails)
	c.emit(bytecode.OpPop, span)
	c.compileBlock(st.Then)
	c.closeScope(old)
	endJ := c.emitJump(bytecode.OpJump, span)
	for _, f := range fails {
		c.patch(f)
	}
	c.emit(bytecode.OpPop, span)
	c.compileBlock(st.Else)
	c.patch(endJ)
}

func (c *Compiler) compileBlock(stmts []ast.Stmt) {
	old := c.openScope(false)
	for _, s := range stmts {
		c.compileStmt(s)
	}
	c.closeScope(old)
}

// loopPatch tracks one active loop's pending break/continue jump sites
// while its body compiles, so break/continue/next can be resolved once
// the loop's back-edge and exit addresses are known.
type loopPatch struct {
	breakJumps    []int
	continueJumps []int
	label         string
}

func (c *Compiler) pushLoop(label string) *loopPatch {
	lc := &loopPatch{label: label}
	c.activeLoops = append(c.activeLoops, lc)
	return lc
}

func (c *Compiler) popLoop() { c.activeLoops = c.activeLoops[:len(c.activeLoops)-1] }

func (c *Compiler) findLoop(label string) *loopPatch {
	for i := len(c.activeLoops) - 1; i >= 0; i-- {
		if label == "" || c.activeLoops[i].label == label {
			return c.activeLoops[i]
		}
	}
	return nil
}

func (c *Compiler) patchLoopExits(lc *loopPatch, continueTarget int) {
	for _, at := range lc.continueJumps {
		c.chunk.PatchJumpTo(at, continueTarget)
	}
	for _, at := range lc.breakJumps {
		c.patch(at)
	}
}

func (c *Compiler) compileForStmt(st *ast.ForStmt) {
	span := st.GetSpan()
	old := c.openScope(false)
	defer c.closeScope(old)
	if st.Init != nil {
		c.compileStmt(st.Init)
	}
	lc := c.pushLoop(st.Label)
	defer c.popLoop()

	condStart := c.chunk.Offset()
	var exitJ int
	hasCond := st.Cond != nil
	if hasCond {
		c.compileExpr(st.Cond)
		exitJ = c.emitJump(bytecode.OpJumpIfNot, span)
	}
	c.compileBlock(st.Body)
	postStart := c.chunk.Offset()
	if st.Post != nil {
		c.compileStmt(st.Post)
	}
	c.emit(bytecode.OpJump, span)
	c.chunk.WriteUint32(0)
	c.chunk.PatchJumpTo(c.chunk.Offset()-4, condStart)
	if hasCond {
		c.patch(exitJ)
	}
	c.patchLoopExits(lc, postStart)
}

func (c *Compiler) compileWhileStmt(st *ast.WhileStmt) {
	span := st.GetSpan()
	lc := c.pushLoop(st.Label)
	defer c.popLoop()
	condStart := c.chunk.Offset()
	c.compileExpr(st.Cond)
	exitJ := c.emitJump(bytecode.OpJumpIfNot, span)
	c.compileBlock(st.Body)
	c.emit(bytecode.OpJump, span)
	c.chunk.WriteUint32(0)
	c.chunk.PatchJumpTo(c.chunk.Offset()-4, condStart)
	c.patch(exitJ)
	c.patchLoopExits(lc, condStart)
}

func (c *Compiler) compileWhileMatchStmt(st *ast.WhileMatchStmt) {
	span := st.GetSpan()
	lc := c.pushLoop(st.Label)
	defer c.popLoop()
	condStart := c.chunk.Offset()
	c.compileExpr(st.Subject)
	c.emit(bytecode.OpDup, span)
	old := c.openScope(false)
	var fails []int
	c.compilePattern(st.Pattern, &fails)
	if st.Guard != nil {
		c.compileExpr(st.Guard)
		fails = append(fails, c.emitJump(bytecode.OpJumpIfNot, span))
	}
	c.emit(bytecode.OpPop, span)
	c.compileBlock(st.Body)
	c.closeScope(old)
	c.emit(bytecode.OpJump, span)
	c.chunk.WriteUint32(0)
	c.chunk.PatchJumpTo(c.chunk.Offset()-4, condStart)
	for _, f := range fails {
		c.patch(f)
	}
	c.emit(bytecode.OpPop, span)
	c.patchLoopExits(lc, condStart)
}

func (c *Compiler) compileEachStmt(st *ast.EachStmt) {
	span := st.GetSpan()
	old := c.openScope(false)
	defer c.closeScope(old)
	c.compileExpr(st.Iterable)
	iterSym := c.declare(c.nextScratch(), scope.KindVar, span)
	c.emit(bytecode.OpPushVar, span)
	c.chunk.WriteUint16(uint16(iterSym.Slot))

	lc := c.pushLoop(st.Label)
	defer c.popLoop()

	condStart := c.chunk.Offset()
	c.emit(bytecode.OpLoadVar, span)
	c.chunk.WriteUint16(uint16(iterSym.Slot))
	c.emit(bytecode.OpCallMethod, span)
	c.chunk.WriteString("hasNext")
	c.chunk.WriteUint16(0)
	c.chunk.WriteBool(false)
	c.chunk.WriteBool(false)
	exitJ := c.emitJump(bytecode.OpJumpIfNot, span)

	c.emit(bytecode.OpLoadVar, span)
	c.chunk.WriteUint16(uint16(iterSym.Slot))
	c.emit(bytecode.OpCallMethod, span)
	c.chunk.WriteString("next")
	c.chunk.WriteUint16(0)
	c.chunk.WriteBool(false)
	c.chunk.WriteBool(false)

	itemScope := c.openScope(false)
	c.compileIrrefutablePattern(st.Pattern)
	if st.Guard != nil {
		c.compileExpr(st.Guard)
		skip := c.emitJump(bytecode.OpJumpIfNot, span)
		c.compileBlock(st.Body)
		c.patch(skip)
	} else {
		c.compileBlock(st.Body)
	}
	c.closeScope(itemScope)

	c.emit(bytecode.OpJump, span)
	c.chunk.WriteUint32(0)
	c.chunk.PatchJumpTo(c.chunk.Offset()-4, condStart)
	c.patch(exitJ)
	c.patchLoopExits(lc, condStart)
}

func (c *Compiler) compileTryStmt(st *ast.TryStmt) {
	span := st.GetSpan()
	handlerJ := c.emitJump(bytecode.OpPushHandler, span)
	c.compileBlock(st.Body)
	c.emit(bytecode.OpPopHandler, span)
	c.compileBlock(st.Finally)
	endJ := c.emitJump(bytecode.OpJump, span)

	c.patch(handlerJ)
	var successJumps []int
	for _, cc := range st.Catches {
		c.emit(bytecode.OpDup, span)
		old := c.openScope(false)
		var fails []int
		c.compilePattern(cc.Pattern, &fails)
		if cc.Guard != nil {
			c.compileExpr(cc.Guard)
			fails = append(fails, c.emitJump(bytecode.OpJumpIfNot, span))
		}
		c.emit(bytecode.OpPop, span)
		c.compileBlock(cc.Body)
		c.closeScope(old)
		c.compileBlock(st.Finally)
		successJumps = append(successJumps, c.emitJump(bytecode.OpJump, span))
		for _, f := range fails {
			c.patch(f)
		}
	}
	c.compileBlock(st.Finally)
	c.emit(bytecode.OpThrow, span)
	for _, j := range successJumps {
		c.patch(j)
	}
	c.patch(endJ)
}

func (c *Compiler) compileTryCleanStmt(st *ast.TryCleanStmt) {
	span := st.GetSpan()
	old := c.openScope(false)
	defer c.closeScope(old)
	c.compileExpr(st.Init)
	sym := c.declare(st.Resource, scope.KindVar, span)
	c.emit(bytecode.OpPushVar, span)
	c.chunk.WriteUint16(uint16(sym.Slot))

	closeResource := func() {
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(sym.Slot))
		c.emit(bytecode.OpCallMethod, span)
		c.chunk.WriteString("close")
		c.chunk.WriteUint16(0)
		c.chunk.WriteBool(false)
		c.chunk.WriteBool(true)
		c.emit(bytecode.OpPop, span)
	}

	handlerJ := c.emitJump(bytecode.OpPushHandler, span)
	c.compileBlock(st.Body)
	c.emit(bytecode.OpPopHandler, span)
	closeResource()
	c.compileBlock(st.Finally)
	endJ := c.emitJump(bytecode.OpJump, span)

	c.patch(handlerJ)
	var successJumps []int
	for _, cc := range st.Catches {
		c.emit(bytecode.OpDup, span)
		cold := c.openScope(false)
		var fails []int
		c.compilePattern(cc.Pattern, &fails)
		if cc.Guard != nil {
			c.compileExpr(cc.Guard)
			fails = append(fails, c.emitJump(bytecode.OpJumpIfNot, span))
		}
		c.emit(bytecode.OpPop, span)
		c.compileBlock(cc.Body)
		c.closeScope(cold)
		closeResource()
		c.compileBlock(st.Finally)
		successJumps = append(successJumps, c.emitJump(bytecode.OpJump, span))
		for _, f := range fails {
			c.patch(f)
		}
	}
	closeResource()
	c.compileBlock(st.Finally)
	c.emit(bytecode.OpThrow, span)
	for _, j := range successJumps {
		c.patch(j)
	}
	c.patch(endJ)
}

// emitDeferredClosure wraps body as a zero-argument closure and defers
// it on the current frame.
func (c *Compiler) emitDeferredClosure(body []ast.Stmt, span token.Span) {
	fn := &ast.FunctionExpr{RestIndex: -1, KwargsIndex: -1, Body: body}
	c.emitClosure(fn, "", span)
	c.emit(bytecode.OpDefer, span)
}

func (c *Compiler) emitRunDefers(span token.Span) {
	c.emit(bytecode.OpRunDefers, span)
}

func (c *Compiler) compileImportStmt(st *ast.ImportStmt) {
	span := st.GetSpan()
	if c.loader == nil || len(st.Path) == 0 {
		c.errorf(span, "import is unavailable in this compilation context")
		return
	}
	dotted := st.Path[0]
	for _, seg := range st.Path[1:] {
		dotted += "." + seg
	}
	compiled, err := c.loader.Load(dotted, c.dir)
	if err != nil {
		c.errorf(span, "import %q: %v", dotted, err)
		return
	}
	name := st.Alias
	if name == "" {
		name = st.Path[len(st.Path)-1]
	}
	sym := c.declare(name, scope.KindVar, span)
	idx := c.chunk.AddConstant(compiled.Artifact)
	c.emit(bytecode.OpExecCode, span)
	c.chunk.WriteUint32(idx)
	c.emit(bytecode.OpPushVar, span)
	c.chunk.WriteUint16(uint16(sym.Slot))
}

// compileUseStmt brings every public name of the module at st.Path into
// the current scope unqualified. This needs the loaded module's export
// table at compile time (to know which local names to declare), which
// module.Compiled.Artifact now carries as a *ModuleArtifact rather than
// a bare *bytecode.Chunk.
func (c *Compiler) compileUseStmt(st *ast.UseStmt) {
	span := st.GetSpan()
	if c.loader == nil || len(st.Path) == 0 {
		c.errorf(span, "use is unavailable in this compilation context")
		return
	}
	dotted := st.Path[0]
	for _, seg := range st.Path[1:] {
		dotted += "." + seg
	}
	compiled, err := c.loader.Load(dotted, c.dir)
	if err != nil {
		c.errorf(span, "use %q: %v", dotted, err)
		return
	}
	artifact, ok := compiled.Artifact.(*ModuleArtifact)
	if !ok || len(artifact.Exports) == 0 {
		return
	}
	names := make([]string, 0, len(artifact.Exports))
	for name := range artifact.Exports {
		names = append(names, name)
	}
	sort.Strings(names)

	idx := c.chunk.AddConstant(compiled.Artifact)
	c.emit(bytecode.OpExecCode, span)
	c.chunk.WriteUint32(idx)

	for _, name := range names {
		sym := c.declare(name, scope.KindVar, span)
		c.emit(bytecode.OpDup, span)
		c.emit(bytecode.OpMemberAccess, span)
		c.chunk.WriteString(name)
		c.chunk.WriteBool(false)
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(sym.Slot))
	}
	c.emit(bytecode.OpPop, span)
}

func (c *Compiler) compileClassDef(st *ast.ClassDefStmt) {
	span := st.GetSpan()
	sym := c.bindingSymbol(st.Name, st.Public, span)

	if st.Parent != "" {
		c.compileLoad(st.Parent, span)
	} else {
		c.emit(bytecode.OpNil, span)
	}

	var methodEntries, staticEntries, fieldDefaultEntries []ast.DictEntry
	for i := range st.Members {
		m := &st.Members[i]
		key := m.Name
		switch {
		case m.IsGetter:
			key = "get:" + key
		case m.IsSetter:
			key = "set:" + key
		}
		if m.Fn != nil {
			target := &methodEntries
			if m.IsStatic {
				target = &staticEntries
			}
			*target = append(*target, ast.DictEntry{
				Key:   &ast.StringLit{Value: key},
				Value: m.Fn,
			})
		} else if m.FieldValue != nil {
			fieldDefaultEntries = append(fieldDefaultEntries, ast.DictEntry{
				Key:   &ast.StringLit{Value: m.Name},
				Value: m.FieldValue,
			})
		}
	}
	c.compileMethodDict(methodEntries, span)
	c.compileMethodDict(staticEntries, span)
	c.compileDictLit(&ast.DictLit{Entries: fieldDefaultEntries})

	// Trait method dicts are ordinary variables bound by TraitDefStmt;
	// loading them here and merging at OpClass time reuses the same
	// name resolution compileLoad already does for any other reference,
	// rather than inventing a separate by-name trait registry.
	for _, traitName := range st.Traits {
		c.compileLoad(traitName, span)
	}

	nameIdx := c.chunk.AddConstant(st.Name)
	fieldsIdx := c.chunk.AddConstant(append([]string{}, st.Fields...))
	traitsIdx := c.chunk.AddConstant(append([]string{}, st.Traits...))
	c.emit(bytecode.OpClass, span)
	c.chunk.WriteUint32(nameIdx)
	c.chunk.WriteUint32(fieldsIdx)
	c.chunk.WriteUint32(traitsIdx)
	c.chunk.WriteUint16(uint16(len(st.Traits)))

	c.emit(bytecode.OpPushVar, span)
	c.chunk.WriteUint16(uint16(sym.Slot))
}

func (c *Compiler) compileTraitDef(st *ast.TraitDefStmt) {
	span := st.GetSpan()
	sym := c.bindingSymbol(st.Name, st.Public, span)
	var methodEntries []ast.DictEntry
	for i := range st.Members {
		m := &st.Members[i]
		if m.Fn == nil {
			continue
		}
		key := m.Name
		switch {
		case m.IsGetter:
			key = "get:" + key
		case m.IsSetter:
			key = "set:" + key
		}
		methodEntries = append(methodEntries, ast.DictEntry{
			Key:   &ast.StringLit{Value: key},
			Value: m.Fn,
		})
	}
	c.compileMethodDict(methodEntries, span)
	c.emit(bytecode.OpPushVar, span)
	c.chunk.WriteUint16(uint16(sym.Slot))
}

// compileMethodDict pushes a dict literal whose values are method
// closures (FunctionExpr values needing `self`-bound compilation rather
// than compileExpr's generic FunctionExpr handling, which binds no
// self name).
func (c *Compiler) compileMethodDict(entries []ast.DictEntry, span token.Span) {
	for _, e := range entries {
		c.compileExpr(e.Key)
		fn := e.Value.(*ast.FunctionExpr)
		c.emitClosure(fn, "self", span)
	}
	c.emit(bytecode.OpDict, span)
	c.chunk.WriteUint16(uint16(len(entries)))
}
