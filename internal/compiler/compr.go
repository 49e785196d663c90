package compiler

import (
	"ty/internal/ast"
	"ty/internal/bytecode"
	"ty/internal/scope"
)

// compileArrayCompr and compileDictCompr lower `[expr for x in xs if
// cond]`-style comprehensions into the equivalent imperative form (a
// scratch accumulator plus an EachStmt) and compile that instead of
// emitting a dedicated opcode sequence -- the loop/guard machinery
// EachStmt already has is exactly what a comprehension needs.
func (c *Compiler) compileArrayCompr(ex *ast.ArrayCompr) {
	span := ex.GetSpan()
	old := c.openScope(false)
	defer c.closeScope(old)

	resultSym := c.declare(c.nextScratch(), scope.KindVar, span)
	c.emit(bytecode.OpArray, span)
	c.chunk.WriteUint16(0)
	c.emit(bytecode.OpPushVar, span)
	c.chunk.WriteUint16(uint16(resultSym.Slot))

	resultRef := &ast.Ident{ExprBase: ast.ExprBase{Node: ast.Node{Span: span}}, Name: resultSym.Name}
	push := &ast.MethodCallExpr{
		ExprBase: ast.ExprBase{Node: ast.Node{Span: span}},
		Object:   resultRef,
		Method:   "push",
		Args:     []ast.Arg{{Value: ex.Element}},
	}
	each := &ast.EachStmt{
		StmtBase: ast.StmtBase{Node: ast.Node{Span: span}},
		Pattern:  &ast.Ident{ExprBase: ast.ExprBase{Node: ast.Node{Span: span}}, Name: ex.Var},
		Iterable: ex.Iterable,
		Guard:    ex.Condition,
		Body:     []ast.Stmt{&ast.ExpressionStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: span}}, Expr: push}},
	}
	c.compileEachStmt(each)

	c.emit(bytecode.OpLoadVar, span)
	c.chunk.WriteUint16(uint16(resultSym.Slot))
}

func (c *Compiler) compileDictCompr(ex *ast.DictCompr) {
	span := ex.GetSpan()
	old := c.openScope(false)
	defer c.closeScope(old)

	resultSym := c.declare(c.nextScratch(), scope.KindVar, span)
	c.emit(bytecode.OpDict, span)
	c.chunk.WriteUint16(0)
	c.emit(bytecode.OpPushVar, span)
	c.chunk.WriteUint16(uint16(resultSym.Slot))

	resultRef := &ast.Ident{ExprBase: ast.ExprBase{Node: ast.Node{Span: span}}, Name: resultSym.Name}
	store := &ast.AssignExpr{
		ExprBase: ast.ExprBase{Node: ast.Node{Span: span}},
		Op:       ast.AssignEq,
		Target:   &ast.IndexExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: span}}, Object: resultRef, Index: ex.KeyExpr},
		Value:    ex.ValExpr,
	}
	each := &ast.EachStmt{
		StmtBase: ast.StmtBase{Node: ast.Node{Span: span}},
		Pattern:  &ast.Ident{ExprBase: ast.ExprBase{Node: ast.Node{Span: span}}, Name: ex.Var},
		Iterable: ex.Iterable,
		Guard:    ex.Condition,
		Body:     []ast.Stmt{&ast.ExpressionStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: span}}, Expr: store}},
	}
	c.compileEachStmt(each)

	c.emit(bytecode.OpLoadVar, span)
	c.chunk.WriteUint16(uint16(resultSym.Slot))
}
