package compiler

import (
	"testing"

	"ty/internal/ast"
	"ty/internal/parser"
)

func parseStmts(t *testing.T, src string) []ast.Stmt {
	t.Helper()
	prog, errs := parser.New("<test>", src).ParseProgram()
	if len(errs) > 0 {
		t.Fatalf("parse error: %v", errs[0])
	}
	return prog.Stmts
}

func TestExpandMacrosFunMacroInline(t *testing.T) {
	stmts := expandMacros(parseStmts(t, `
macro square(x) -> x * x
print(square(5))
`))
	if len(stmts) != 1 {
		t.Fatalf("expected the macro def to be fully consumed, leaving 1 statement, got %d", len(stmts))
	}
	es, ok := stmts[0].(*ast.ExpressionStmt)
	if !ok {
		t.Fatalf("expected *ast.ExpressionStmt, got %T", stmts[0])
	}
	call, ok := es.Expr.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected *ast.CallExpr, got %T", es.Expr)
	}
	arg, ok := call.Args[0].Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected square(5) to have been inlined to a BinaryExpr, got %T", call.Args[0].Value)
	}
	left, ok := arg.Left.(*ast.IntLit)
	if !ok || left.Value != 5 {
		t.Fatalf("expected both operands substituted with the literal 5, got %#v", arg.Left)
	}
}

func TestExpandMacrosStmtMacroSplice(t *testing.T) {
	stmts := expandMacros(parseStmts(t, `
macro twice(x) {
    print(x)
    print(x)
}
@twice(7)
`))
	if len(stmts) != 2 {
		t.Fatalf("expected the invocation to splice 2 statements, got %d", len(stmts))
	}
	for _, s := range stmts {
		es, ok := s.(*ast.ExpressionStmt)
		if !ok {
			t.Fatalf("expected *ast.ExpressionStmt, got %T", s)
		}
		call, ok := es.Expr.(*ast.CallExpr)
		if !ok {
			t.Fatalf("expected *ast.CallExpr, got %T", es.Expr)
		}
		lit, ok := call.Args[0].Value.(*ast.IntLit)
		if !ok || lit.Value != 7 {
			t.Fatalf("expected the spliced argument substituted with 7, got %#v", call.Args[0].Value)
		}
	}
}

func TestExpandMacrosHygieneRenamesInternalLet(t *testing.T) {
	stmts := expandMacros(parseStmts(t, `
macro once(x) {
    let tmp = x
    print(tmp)
}
@once(1)
let tmp = 2
print(tmp)
`))
	def, ok := stmts[0].(*ast.DefinitionStmt)
	if !ok {
		t.Fatalf("expected the macro's own let to come first as *ast.DefinitionStmt, got %T", stmts[0])
	}
	ident, ok := def.Pattern.(*ast.Ident)
	if !ok {
		t.Fatalf("expected a plain identifier pattern, got %T", def.Pattern)
	}
	if ident.Name == "tmp" {
		t.Fatal("expected the macro-internal `tmp` binding to be hygienically renamed, not left as \"tmp\"")
	}
	printCall := stmts[1].(*ast.ExpressionStmt).Expr.(*ast.CallExpr)
	printedIdent, ok := printCall.Args[0].Value.(*ast.Ident)
	if !ok || printedIdent.Name != ident.Name {
		t.Fatalf("expected the macro body's print(tmp) to reference the same renamed identifier %q, got %#v", ident.Name, printCall.Args[0].Value)
	}

	// The call-site's own `let tmp = 2` must survive untouched: hygiene
	// only renames bindings introduced inside the macro body.
	outerDef, ok := stmts[2].(*ast.DefinitionStmt)
	if !ok {
		t.Fatalf("expected *ast.DefinitionStmt, got %T", stmts[2])
	}
	outerIdent, ok := outerDef.Pattern.(*ast.Ident)
	if !ok || outerIdent.Name != "tmp" {
		t.Fatalf("expected the call site's own `tmp` binding to be untouched, got %#v", outerDef.Pattern)
	}
}

func TestExpandMacrosTemplateHoleSubstitution(t *testing.T) {
	stmts := expandMacros(parseStmts(t, `
macro addOne(x) -> TEMPLATE { $(x) + 1 }
print(addOne(41))
`))
	es := stmts[0].(*ast.ExpressionStmt)
	call := es.Expr.(*ast.CallExpr)
	bin, ok := call.Args[0].Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected the TEMPLATE body to reduce to a *ast.BinaryExpr, got %T", call.Args[0].Value)
	}
	lit, ok := bin.Left.(*ast.IntLit)
	if !ok || lit.Value != 41 {
		t.Fatalf("expected the $(x) hole filled in with 41, got %#v", bin.Left)
	}
}

func TestExpandMacrosNoDefsIsNoOp(t *testing.T) {
	in := parseStmts(t, `print(1 + 2)`)
	out := expandMacros(in)
	if len(out) != 1 {
		t.Fatalf("expected a single pass-through statement, got %d", len(out))
	}
}
