package parser

import (
	"testing"

	"ty/internal/ast"
)

func parseOne(t *testing.T, src string) ast.Stmt {
	t.Helper()
	prog, errs := New("<test>", src).ParseProgram()
	if len(errs) > 0 {
		t.Fatalf("parse error: %v", errs[0])
	}
	if len(prog.Stmts) == 0 {
		t.Fatal("expected at least one statement")
	}
	return prog.Stmts[len(prog.Stmts)-1]
}

func TestParseHaltStmt(t *testing.T) {
	st, ok := parseOne(t, "halt 2").(*ast.HaltStmt)
	if !ok {
		t.Fatalf("expected *ast.HaltStmt, got %T", parseOne(t, "halt 2"))
	}
	if _, ok := st.Code.(*ast.IntLit); !ok {
		t.Fatalf("expected Code to be an int literal, got %T", st.Code)
	}

	bare, ok := parseOne(t, "halt").(*ast.HaltStmt)
	if !ok {
		t.Fatalf("expected *ast.HaltStmt for bare halt, got %T", parseOne(t, "halt"))
	}
	if bare.Code != nil {
		t.Fatalf("expected nil Code for bare halt, got %v", bare.Code)
	}
}

func TestParseTagDefFlatList(t *testing.T) {
	st, ok := parseOne(t, "tag Ok, Err").(*ast.TagDefStmt)
	if !ok {
		t.Fatalf("expected *ast.TagDefStmt, got %T", parseOne(t, "tag Ok, Err"))
	}
	if st.Name != "Ok" {
		t.Fatalf("expected declaration name %q, got %q", "Ok", st.Name)
	}
	if len(st.Variants) != 2 || st.Variants[0].Name != "Ok" || st.Variants[1].Name != "Err" {
		t.Fatalf("expected variants [Ok Err], got %+v", st.Variants)
	}
}

func TestParseTryCleanStmt(t *testing.T) {
	st, ok := parseOne(t, `
try ^f = open("x") {
	use(f)
} catch e {
	print(e)
} finally {
	print("done")
}
`).(*ast.TryCleanStmt)
	if !ok {
		t.Fatalf("expected *ast.TryCleanStmt")
	}
	if st.Resource != "f" {
		t.Fatalf("expected resource name %q, got %q", "f", st.Resource)
	}
	if st.Init == nil {
		t.Fatal("expected a non-nil Init expression")
	}
	if len(st.Catches) != 1 || len(st.Finally) != 1 {
		t.Fatalf("expected one catch clause and one finally statement, got %d/%d", len(st.Catches), len(st.Finally))
	}
}

func TestParsePlainTryStmtUnaffected(t *testing.T) {
	if _, ok := parseOne(t, `try { foo() } catch e { bar() }`).(*ast.TryStmt); !ok {
		t.Fatalf("expected a plain *ast.TryStmt when no ^resource binding is present")
	}
}

func TestParseSetTypeStmt(t *testing.T) {
	st, ok := parseOne(t, "x: Int").(*ast.SetTypeStmt)
	if !ok {
		t.Fatalf("expected *ast.SetTypeStmt, got %T", parseOne(t, "x: Int"))
	}
	if st.Name != "x" {
		t.Fatalf("expected name %q, got %q", "x", st.Name)
	}
}

func TestParseArrayComprehension(t *testing.T) {
	let, ok := parseOne(t, "let xs = [x * 2 for x in ys if x > 0]").(*ast.DefinitionStmt)
	if !ok {
		t.Fatalf("expected *ast.DefinitionStmt, got %T", parseOne(t, "let xs = [x * 2 for x in ys if x > 0]"))
	}
	compr, ok := let.Value.(*ast.ArrayCompr)
	if !ok {
		t.Fatalf("expected *ast.ArrayCompr, got %T", let.Value)
	}
	if compr.Var != "x" || compr.Condition == nil {
		t.Fatalf("expected Var %q and a non-nil Condition, got Var=%q Condition=%v", "x", compr.Var, compr.Condition)
	}
}

func TestParseDictComprehension(t *testing.T) {
	let, ok := parseOne(t, `let d = #{x: x * x for x in ys}`).(*ast.DefinitionStmt)
	if !ok {
		t.Fatalf("expected *ast.DefinitionStmt, got %T", parseOne(t, `let d = #{x: x * x for x in ys}`))
	}
	if _, ok := let.Value.(*ast.DictCompr); !ok {
		t.Fatalf("expected *ast.DictCompr, got %T", let.Value)
	}
}

func TestParseMacroInvocation(t *testing.T) {
	es, ok := parseOne(t, "@stringify(x + 1)").(*ast.ExpressionStmt)
	if !ok {
		t.Fatalf("expected *ast.ExpressionStmt, got %T", parseOne(t, "@stringify(x + 1)"))
	}
	inv, ok := es.Expr.(*ast.MacroInvocation)
	if !ok {
		t.Fatalf("expected *ast.MacroInvocation, got %T", es.Expr)
	}
	if inv.Name != "stringify" || len(inv.Args) != 1 {
		t.Fatalf("expected name %q with 1 arg, got %q with %d args", "stringify", inv.Name, len(inv.Args))
	}
}

func TestParseMacroDefBlockForm(t *testing.T) {
	if _, ok := parseOne(t, `macro log(x) { print(x) }`).(*ast.MacroDefStmt); !ok {
		t.Fatalf("expected *ast.MacroDefStmt, got %T", parseOne(t, `macro log(x) { print(x) }`))
	}
}

func TestParseFunMacroArrowForm(t *testing.T) {
	st, ok := parseOne(t, `macro square(x) -> x * x`).(*ast.FunMacroDefStmt)
	if !ok {
		t.Fatalf("expected *ast.FunMacroDefStmt, got %T", parseOne(t, `macro square(x) -> x * x`))
	}
	if st.Fn.Name != "square" || len(st.Fn.Params) != 1 {
		t.Fatalf("expected fn %q with 1 param, got %q with %d params", "square", st.Fn.Name, len(st.Fn.Params))
	}
}

func TestParseTemplateExprWithHoles(t *testing.T) {
	st, ok := parseOne(t, `macro addOne(x) -> TEMPLATE { $(x) + 1 }`).(*ast.FunMacroDefStmt)
	if !ok {
		t.Fatalf("expected *ast.FunMacroDefStmt, got %T", parseOne(t, `macro addOne(x) -> TEMPLATE { $(x) + 1 }`))
	}
	ret, ok := st.Fn.Body[0].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("expected macro body to be a single return, got %T", st.Fn.Body[0])
	}
	tpl, ok := ret.Value.(*ast.TemplateExpr)
	if !ok {
		t.Fatalf("expected *ast.TemplateExpr, got %T", ret.Value)
	}
	block, ok := tpl.Body.(*ast.BlockExpr)
	if !ok || len(block.Stmts) != 1 {
		t.Fatalf("expected a one-statement block body, got %T", tpl.Body)
	}
	exprStmt, ok := block.Stmts[0].(*ast.ExpressionStmt)
	if !ok {
		t.Fatalf("expected *ast.ExpressionStmt, got %T", block.Stmts[0])
	}
	bin, ok := exprStmt.Expr.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected *ast.BinaryExpr, got %T", exprStmt.Expr)
	}
	hole, ok := bin.Left.(*ast.TemplateHole)
	if !ok {
		t.Fatalf("expected left operand to be *ast.TemplateHole, got %T", bin.Left)
	}
	if hole.Kind != ast.HoleExpr {
		t.Fatalf("expected HoleExpr, got %v", hole.Kind)
	}
}
