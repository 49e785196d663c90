package compiler

import (
	"ty/internal/ast"
	"ty/internal/bytecode"
	"ty/internal/token"
)

// compileMatchArms compiles a subject expression followed by a chain of
// pattern arms, shared by match statements and match expressions. Each
// arm gets its own OpDup'd copy of the subject to test; on a guard or
// pattern mismatch the original subject is left intact for the next
// arm. Falling off the end throws (runtime match failure).
//
// When keepResult is true, each arm's body is a value-producing
// expression and its result is left on the stack at the shared end
// label; when false, the body runs for effect only and its result is
// discarded.
func (c *Compiler) compileMatchArms(subject ast.Expr, arms []ast.MatchArm, span token.Span, keepResult bool) {
	c.compileExpr(subject)
	var successJumps []int
	for _, arm := range arms {
		hasAlias := arm.Alias != ""
		if hasAlias {
			c.emit(bytecode.OpDup, span)
		}
		c.emit(bytecode.OpDup, span)

		old := c.openScope(false)
		var fails []int
		c.compilePattern(arm.Pattern, &fails)
		if arm.Guard != nil {
			c.compileExpr(arm.Guard)
			fails = append(fails, c.emitJump(bytecode.OpJumpIfNot, span))
		}

		if hasAlias {
			sym := c.declareOrReuse(arm.Alias, span)
			c.emit(bytecode.OpPushVar, span)
			c.chunk.WriteUint16(uint16(sym.Slot))
		}
		c.emit(bytecode.OpPop, span) // discard the original subject, match confirmed

		if keepResult {
			c.compileExpr(arm.Body)
		} else {
			c.compileStmt(&ast.ExpressionStmt{Expr: arm.Body})
		}
		successJumps = append(successJumps, c.emitJump(bytecode.OpJump, span))
		c.closeScope(old)

		for _, f := range fails {
			c.patch(f)
		}
		if hasAlias {
			c.emit(bytecode.OpPop, span) // discard the leaked alias dup
		}
	}
	c.emit(bytecode.OpBadMatch, span)
	for _, j := range successJumps {
		c.patch(j)
	}
}
