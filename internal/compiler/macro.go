package compiler

import (
	"strings"

	"github.com/google/uuid"

	"ty/internal/ast"
)

// maxMacroExpansionDepth bounds recursive macro expansion (a macro
// invoking itself, or another macro, through its own body) so a runaway
// definition fails fast instead of hanging the compiler.
const maxMacroExpansionDepth = 64

// macroExpander holds the macro definitions visible to one module.
// Macro-introduced bindings are renamed with uuid-based fresh names (see
// freshHygienicName).
type macroExpander struct {
	stmtMacros map[string]*ast.MacroDefStmt
	funMacros  map[string]*ast.FunMacroDefStmt
}

// expandMacros runs once over a module's top-level statements before
// compilation: every @name(...) invocation, and every plain name(...)
// call of a fun-macro, is substituted against its macro's body and
// spliced in, and every TEMPLATE quasi-quote's holes are filled in during
// that same substitution. Top-level MacroDefStmt and FunMacroDefStmt
// nodes are removed from the returned statements, since their content is
// fully consumed here rather than at statement-compile time.
//
// This is a parameter-substitution pipeline, not the fully general
// parser-driving macro system the language sketches (a macro borrowing
// live parser state via parse_get_expr/parse_get_token): a fun-macro's
// body is an ordinary expression/statement tree, substituted and
// spliced, not arbitrary grammar extension. Statement macros splice
// directly at their invocation's statement slot; fun-macros splice as an
// expression. Nested invocations recurse up to maxMacroExpansionDepth
// before giving up and leaving the invocation for the compiler to
// reject.
func expandMacros(stmts []ast.Stmt) []ast.Stmt {
	ex := &macroExpander{stmtMacros: map[string]*ast.MacroDefStmt{}, funMacros: map[string]*ast.FunMacroDefStmt{}}
	collectMacroDefs(stmts, ex)
	if len(ex.stmtMacros) == 0 && len(ex.funMacros) == 0 {
		return stmts
	}
	out := ex.rewriteStmts(stmts, &substScope{vars: map[string]ast.Expr{}}, 0)
	kept := out[:0]
	for _, s := range out {
		switch s.(type) {
		case *ast.MacroDefStmt, *ast.FunMacroDefStmt:
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// substScope carries a macro's param->argument bindings plus whether the
// statements currently being rewritten originate from inside an
// expanding macro body. Only a hygienic scope gets its own `let`/`const`
// bindings renamed -- ordinary module code untouched by any macro must
// never have its bindings rewritten just because the module happens to
// define a macro somewhere else.
type substScope struct {
	vars     map[string]ast.Expr
	hygienic bool
}

func collectMacroDefs(stmts []ast.Stmt, ex *macroExpander) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.MacroDefStmt:
			ex.stmtMacros[st.Name] = st
		case *ast.FunMacroDefStmt:
			ex.funMacros[st.Fn.Name] = st
		}
	}
}

func (ex *macroExpander) freshHygienicName() string {
	return "__hygiene_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// rewriteStmts substitutes sc.vars (a macro's param->argument bindings;
// empty and non-hygienic at the module top level) across stmts in
// order, expanding invocations as it goes. sc.vars is mutated in place
// to record hygienic renames introduced by `let`s inside a macro body,
// so a later statement in the same body sees the renamed binding.
func (ex *macroExpander) rewriteStmts(stmts []ast.Stmt, sc *substScope, depth int) []ast.Stmt {
	var out []ast.Stmt
	for _, s := range stmts {
		if es, ok := s.(*ast.ExpressionStmt); ok {
			if inv, ok := es.Expr.(*ast.MacroInvocation); ok {
				if def, ok := ex.stmtMacros[inv.Name]; ok {
					out = append(out, ex.expandStmtMacro(def, inv.Args, sc, depth)...)
					continue
				}
			}
		}
		out = append(out, ex.rewriteStmt(s, sc, depth))
	}
	return out
}

func (ex *macroExpander) rewriteStmt(s ast.Stmt, sc *substScope, depth int) ast.Stmt {
	switch st := s.(type) {
	case *ast.DefinitionStmt:
		val := ex.substExpr(st.Value, sc, depth)
		pat := st.Pattern
		if ident, ok := st.Pattern.(*ast.Ident); ok {
			if _, bound := sc.vars[ident.Name]; bound {
				pat = ex.substExpr(st.Pattern, sc, depth)
			} else if sc.hygienic {
				fresh := ex.freshHygienicName()
				renamed := &ast.Ident{ExprBase: ident.ExprBase, Name: fresh}
				sc.vars[ident.Name] = renamed
				pat = renamed
			}
		}
		return &ast.DefinitionStmt{StmtBase: st.StmtBase, Kind: st.Kind, Public: st.Public, Pattern: pat, Value: val}
	case *ast.ExpressionStmt:
		return &ast.ExpressionStmt{StmtBase: st.StmtBase, Expr: ex.substExpr(st.Expr, sc, depth)}
	case *ast.ReturnStmt:
		var v ast.Expr
		if st.Value != nil {
			v = ex.substExpr(st.Value, sc, depth)
		}
		return &ast.ReturnStmt{StmtBase: st.StmtBase, Value: v}
	case *ast.IfStmt:
		return &ast.IfStmt{StmtBase: st.StmtBase, Cond: ex.substExpr(st.Cond, sc, depth),
			Then: ex.rewriteStmts(st.Then, sc, depth), Else: ex.rewriteStmts(st.Else, sc, depth)}
	case *ast.WhileStmt:
		return &ast.WhileStmt{StmtBase: st.StmtBase, Cond: ex.substExpr(st.Cond, sc, depth),
			Body: ex.rewriteStmts(st.Body, sc, depth), Label: st.Label}
	case *ast.EachStmt:
		var guard ast.Expr
		if st.Guard != nil {
			guard = ex.substExpr(st.Guard, sc, depth)
		}
		return &ast.EachStmt{StmtBase: st.StmtBase, Pattern: st.Pattern, Iterable: ex.substExpr(st.Iterable, sc, depth),
			Guard: guard, Body: ex.rewriteStmts(st.Body, sc, depth), Label: st.Label}
	case *ast.BlockStmt:
		return &ast.BlockStmt{StmtBase: st.StmtBase, Stmts: ex.rewriteStmts(st.Stmts, sc, depth)}
	case *ast.MultiStmt:
		return &ast.MultiStmt{StmtBase: st.StmtBase, Stmts: ex.rewriteStmts(st.Stmts, sc, depth)}
	case *ast.TryStmt:
		var fin []ast.Stmt
		if st.Finally != nil {
			fin = ex.rewriteStmts(st.Finally, sc, depth)
		}
		catches := make([]ast.CatchClause, len(st.Catches))
		for i, c := range st.Catches {
			var guard ast.Expr
			if c.Guard != nil {
				guard = ex.substExpr(c.Guard, sc, depth)
			}
			catches[i] = ast.CatchClause{Pattern: c.Pattern, Guard: guard, Body: ex.rewriteStmts(c.Body, sc, depth)}
		}
		return &ast.TryStmt{StmtBase: st.StmtBase, Body: ex.rewriteStmts(st.Body, sc, depth), Catches: catches, Finally: fin}
	default:
		return s
	}
}

// expandStmtMacro substitutes args into def's body by position against
// def.Params and returns the resulting statements, spliced directly at
// the invocation's statement slot via the caller's append. The body
// rewrites in a fresh, hygienic substScope: its own param bindings plus
// any internal `let`s, which get renamed so they can never collide with
// a same-named binding at the invocation's call site.
func (ex *macroExpander) expandStmtMacro(def *ast.MacroDefStmt, args []ast.Expr, outer *substScope, depth int) []ast.Stmt {
	if depth > maxMacroExpansionDepth {
		inv := &ast.MacroInvocation{ExprBase: ast.ExprBase{Node: ast.Node{Span: def.GetSpan()}}, Name: def.Name, Args: args}
		return []ast.Stmt{&ast.ExpressionStmt{StmtBase: def.StmtBase, Expr: inv}}
	}
	inner := &substScope{vars: map[string]ast.Expr{}, hygienic: true}
	for i, p := range def.Params {
		if i < len(args) {
			inner.vars[p.Name] = ex.substExpr(args[i], outer, depth)
		} else if p.Default != nil {
			inner.vars[p.Name] = ex.substExpr(p.Default, outer, depth)
		}
	}
	return ex.rewriteStmts(def.Body, inner, depth+1)
}

// expandFunMacro substitutes args into fm's function body and reduces
// the result to a single expression: a one-statement body collapses
// directly (its `return` value, or its bare expression), a multi-
// statement body is kept as a BlockExpr -- compiling a `return` inside
// that BlockExpr returns from the macro's *call site* function, which
// is the documented limit of this minimal pipeline. As with a statement
// macro, the body rewrites in its own hygienic scope.
func (ex *macroExpander) expandFunMacro(fm *ast.FunMacroDefStmt, args []ast.Expr, outer *substScope, depth int) ast.Expr {
	if depth > maxMacroExpansionDepth {
		return &ast.MacroInvocation{ExprBase: fm.Fn.ExprBase, Name: fm.Fn.Name, Args: args}
	}
	inner := &substScope{vars: map[string]ast.Expr{}, hygienic: true}
	for i, p := range fm.Fn.Params {
		if i < len(args) {
			inner.vars[p.Name] = ex.substExpr(args[i], outer, depth)
		} else if p.Default != nil {
			inner.vars[p.Name] = ex.substExpr(p.Default, outer, depth)
		}
	}
	body := ex.rewriteStmts(fm.Fn.Body, inner, depth+1)
	if len(body) == 1 {
		switch s := body[0].(type) {
		case *ast.ReturnStmt:
			if s.Value != nil {
				return s.Value
			}
			return &ast.NilLit{ExprBase: fm.Fn.ExprBase}
		case *ast.ExpressionStmt:
			return s.Expr
		}
	}
	return &ast.BlockExpr{ExprBase: fm.Fn.ExprBase, Stmts: body}
}

// substExpr substitutes sc.vars across e, expanding any nested macro
// invocation and filling in any TEMPLATE hole it finds. Node kinds not
// listed here are returned unchanged: a deliberate, minimal-pipeline
// limitation rather than an attempt at full AST generality.
func (ex *macroExpander) substExpr(e ast.Expr, sc *substScope, depth int) ast.Expr {
	if e == nil {
		return nil
	}
	switch n := e.(type) {
	case *ast.Ident:
		if n.Module == "" {
			if rep, ok := sc.vars[n.Name]; ok {
				return rep
			}
		}
		return n
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{ExprBase: n.ExprBase, Op: n.Op, Name: n.Name, Left: ex.substExpr(n.Left, sc, depth), Right: ex.substExpr(n.Right, sc, depth)}
	case *ast.UnaryExpr:
		return &ast.UnaryExpr{ExprBase: n.ExprBase, Op: n.Op, Operand: ex.substExpr(n.Operand, sc, depth)}
	case *ast.AssignExpr:
		return &ast.AssignExpr{ExprBase: n.ExprBase, Op: n.Op, Target: ex.substExpr(n.Target, sc, depth), Value: ex.substExpr(n.Value, sc, depth)}
	case *ast.CondExpr:
		return &ast.CondExpr{ExprBase: n.ExprBase, Cond: ex.substExpr(n.Cond, sc, depth), Then: ex.substExpr(n.Then, sc, depth), Else: ex.substExpr(n.Else, sc, depth)}
	case *ast.CallExpr:
		if id, ok := n.Callee.(*ast.Ident); ok && id.Module == "" && len(n.Kwargs) == 0 {
			if fm, ok := ex.funMacros[id.Name]; ok {
				args := make([]ast.Expr, len(n.Args))
				for i, a := range n.Args {
					args[i] = ex.substExpr(a.Value, sc, depth)
				}
				return ex.expandFunMacro(fm, args, sc, depth+1)
			}
		}
		return &ast.CallExpr{ExprBase: n.ExprBase, Callee: ex.substExpr(n.Callee, sc, depth), Args: ex.substArgs(n.Args, sc, depth), Kwargs: n.Kwargs}
	case *ast.MethodCallExpr:
		return &ast.MethodCallExpr{ExprBase: n.ExprBase, Object: ex.substExpr(n.Object, sc, depth), Method: n.Method, Args: ex.substArgs(n.Args, sc, depth), Kwargs: n.Kwargs, Maybe: n.Maybe}
	case *ast.IndexExpr:
		return &ast.IndexExpr{ExprBase: n.ExprBase, Object: ex.substExpr(n.Object, sc, depth), Index: ex.substExpr(n.Index, sc, depth)}
	case *ast.MemberExpr:
		return &ast.MemberExpr{ExprBase: n.ExprBase, Object: ex.substExpr(n.Object, sc, depth), Name: n.Name, Maybe: n.Maybe}
	case *ast.ArrayLit:
		elems := make([]ast.Expr, len(n.Elements))
		for i, e := range n.Elements {
			elems[i] = ex.substExpr(e, sc, depth)
		}
		return &ast.ArrayLit{ExprBase: n.ExprBase, Elements: elems, Spreads: n.Spreads}
	case *ast.DictLit:
		entries := make([]ast.DictEntry, len(n.Entries))
		for i, ent := range n.Entries {
			entries[i] = ast.DictEntry{Key: ex.substExpr(ent.Key, sc, depth), Value: ex.substExpr(ent.Value, sc, depth)}
		}
		return &ast.DictLit{ExprBase: n.ExprBase, Entries: entries, Default: ex.substExpr(n.Default, sc, depth)}
	case *ast.TupleLit:
		slots := make([]ast.TupleSlot, len(n.Slots))
		for i, sl := range n.Slots {
			slots[i] = ast.TupleSlot{Name: sl.Name, Required: sl.Required, Value: ex.substExpr(sl.Value, sc, depth)}
		}
		return &ast.TupleLit{ExprBase: n.ExprBase, Slots: slots}
	case *ast.BlockExpr:
		return &ast.BlockExpr{ExprBase: n.ExprBase, Stmts: ex.rewriteStmts(n.Stmts, sc, depth)}
	case *ast.IfExpr:
		return &ast.IfExpr{ExprBase: n.ExprBase, Cond: ex.substExpr(n.Cond, sc, depth), Then: ex.substExpr(n.Then, sc, depth), Else: ex.substExpr(n.Else, sc, depth)}
	case *ast.TemplateExpr:
		// The quote wrapper is only meaningful while holes are still
		// unresolved; once substitution fills them in, the result IS
		// the expanded tree, not a template around it. A body holding a
		// single expression reduces to that expression.
		if blk, ok := n.Body.(*ast.BlockExpr); ok && len(blk.Stmts) == 1 {
			if es, ok := blk.Stmts[0].(*ast.ExpressionStmt); ok {
				return ex.substExpr(es.Expr, sc, depth)
			}
		}
		return ex.substExpr(n.Body, sc, depth)
	case *ast.TemplateHole:
		if n.Kind == ast.HoleToken {
			return n // type-holes are out of scope; left for the compiler to reject
		}
		return ex.substExpr(n.Name, sc, depth)
	case *ast.MacroInvocation:
		args := make([]ast.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = ex.substExpr(a, sc, depth)
		}
		if fm, ok := ex.funMacros[n.Name]; ok {
			return ex.expandFunMacro(fm, args, sc, depth+1)
		}
		return &ast.MacroInvocation{ExprBase: n.ExprBase, Name: n.Name, Args: args}
	default:
		return e
	}
}

func (ex *macroExpander) substArgs(args []ast.Arg, sc *substScope, depth int) []ast.Arg {
	out := make([]ast.Arg, len(args))
	for i, a := range args {
		var cond ast.Expr
		if a.Condition != nil {
			cond = ex.substExpr(a.Condition, sc, depth)
		}
		out[i] = ast.Arg{Value: ex.substExpr(a.Value, sc, depth), Spread: a.Spread, Condition: cond}
	}
	return out
}
