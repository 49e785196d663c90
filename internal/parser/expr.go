package parser

import (
	"strconv"

	"ty/internal/ast"
	"ty/internal/token"
)

// parseExpression is the Pratt loop: parse one prefix form, then keep
// consuming infix operators whose precedence exceeds prec.
func (p *Parser) parseExpression(prec Precedence) ast.Expr {
	left := p.parsePrefix()
	for {
		info, ok := p.infixInfoAt(p.cur)
		if !ok || info.Precedence <= prec {
			break
		}
		left = p.parseInfix(left, info)
	}
	return left
}

// infixInfoAt reports the OpInfo for tok if it can start an infix
// expression, consulting fixedInfix first (punctuation with a fixed
// meaning) and falling back to the user operator table for OPERATOR
// tokens and the few keyword-infix operators (`in`, `as`, `where`).
func (p *Parser) infixInfoAt(tok token.Token) (OpInfo, bool) {
	if info, ok := fixedInfix[tok.Type]; ok {
		return info, true
	}
	switch tok.Type {
	case token.OPERATOR:
		if info, ok := p.ops[tok.Lexeme]; ok {
			return info, true
		}
		return OpInfo{Precedence: defaultOperatorPrecedence}, true
	case token.KW_IN:
		if p.noIn {
			return OpInfo{}, false
		}
		return OpInfo{Precedence: PrecCompare}, true
	case token.KW_AS:
		return OpInfo{Precedence: PrecCompare}, true
	}
	return OpInfo{}, false
}

func (p *Parser) parseInfix(left ast.Expr, info OpInfo) ast.Expr {
	switch p.cur.Type {
	case token.LPAREN:
		return p.parseCallTail(left)
	case token.LBRACKET:
		return p.parseIndexOrSliceTail(left)
	case token.DOT, token.QUESTION_DOT:
		return p.parseMemberOrMethodTail(left)
	case token.EQ, token.MAYBE_EQ:
		return p.parseAssignTail(left)
	case token.QUESTION:
		return p.parseCondTail(left)
	case token.DOTDOT, token.DOTDOTEQ:
		return p.parseRangeTail(left)
	case token.KW_IN:
		p.advance(token.CtxPrefix)
		right := p.parseExpression(info.Precedence)
		return &ast.BinaryExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: left.GetSpan()}}, Op: ast.OpUser, Name: "in", Left: left, Right: right}
	case token.KW_AS:
		p.advance(token.CtxPrefix)
		typ := p.parseExpression(info.Precedence)
		return &ast.CastExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: left.GetSpan()}}, Value: left, Type: typ}
	}
	return p.parseBinaryTail(left, info)
}

func nextPrec(info OpInfo) Precedence {
	if info.RightAssoc {
		return info.Precedence - 1
	}
	return info.Precedence
}

func (p *Parser) parseBinaryTail(left ast.Expr, info OpInfo) ast.Expr {
	opTok := p.advance(token.CtxPrefix)
	right := p.parseExpression(nextPrec(info))
	op, name := classifyBinaryOp(opTok.Lexeme)
	return &ast.BinaryExpr{
		ExprBase: ast.ExprBase{Node: ast.Node{Span: left.GetSpan()}},
		Op:       op, Name: name, Left: left, Right: right,
	}
}

func classifyBinaryOp(lexeme string) (ast.BinaryOp, string) {
	switch lexeme {
	case "+":
		return ast.OpAdd, ""
	case "-":
		return ast.OpSub, ""
	case "*":
		return ast.OpMul, ""
	case "/":
		return ast.OpDiv, ""
	case "%":
		return ast.OpMod, ""
	case "==":
		return ast.OpEq, ""
	case "!=":
		return ast.OpNeq, ""
	case "<":
		return ast.OpLt, ""
	case "<=":
		return ast.OpLeq, ""
	case ">":
		return ast.OpGt, ""
	case ">=":
		return ast.OpGeq, ""
	case "&&":
		return ast.OpAnd, ""
	case "||":
		return ast.OpOr, ""
	case "&":
		return ast.OpBitAnd, ""
	case "|":
		return ast.OpBitOr, ""
	case "^":
		return ast.OpBitXor, ""
	case "<<":
		return ast.OpShl, ""
	case ">>":
		return ast.OpShr, ""
	default:
		return ast.OpUser, lexeme
	}
}

func (p *Parser) parseRangeTail(left ast.Expr) ast.Expr {
	incl := p.at(token.DOTDOTEQ)
	p.advance(token.CtxPrefix)
	op := ast.OpRange
	if incl {
		op = ast.OpRangeIncl
	}
	right := p.parseExpression(PrecRange)
	return &ast.BinaryExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: left.GetSpan()}}, Op: op, Left: left, Right: right}
}

func (p *Parser) parseCondTail(left ast.Expr) ast.Expr {
	p.advance(token.CtxPrefix) // consume '?'
	then := p.parseExpression(PrecAssign)
	p.expect(token.COLON, token.CtxPrefix)
	els := p.parseExpression(PrecConditional - 1)
	return &ast.CondExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: left.GetSpan()}}, Cond: left, Then: then, Else: els}
}

func assignOpFor(lexeme string) ast.AssignOp {
	switch lexeme {
	case "+=":
		return ast.AssignAddEq
	case "-=":
		return ast.AssignSubEq
	case "*=":
		return ast.AssignMulEq
	case "/=":
		return ast.AssignDivEq
	case "%=":
		return ast.AssignModEq
	case "?=":
		return ast.AssignMaybeEq
	default:
		return ast.AssignEq
	}
}

func (p *Parser) parseAssignTail(left ast.Expr) ast.Expr {
	opTok := p.advance(token.CtxPrefix)
	op := assignOpFor(opTok.Lexeme)
	value := p.parseExpression(PrecAssign - 1)
	return &ast.AssignExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: left.GetSpan()}}, Op: op, Target: left, Value: value}
}

func (p *Parser) parseArgs() ([]ast.Arg, []ast.KwArg) {
	var args []ast.Arg
	var kwargs []ast.KwArg
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		spread := false
		if p.at(token.OPERATOR) && p.cur.Lexeme == "*" {
			spread = true
			p.advance(token.CtxPrefix)
		}
		if !spread && p.at(token.IDENT) {
			p.pushSave()
			name := p.cur.Lexeme
			p.advance(token.CtxInfix)
			if p.at(token.COLON) {
				p.popSaveCommit()
				p.advance(token.CtxPrefix)
				v := p.parseExpression(PrecAssign)
				var cond ast.Expr
				if p.at(token.KW_IF) {
					p.advance(token.CtxPrefix)
					cond = p.parseExpression(PrecLowest)
				}
				kwargs = append(kwargs, ast.KwArg{Name: name, Value: v, Condition: cond})
				if p.at(token.COMMA) {
					p.advance(token.CtxPrefix)
				}
				continue
			}
			p.popSaveRestore()
		}
		v := p.parseExpression(PrecAssign)
		var cond ast.Expr
		if p.at(token.KW_IF) {
			p.advance(token.CtxPrefix)
			cond = p.parseExpression(PrecLowest)
		}
		args = append(args, ast.Arg{Value: v, Spread: spread, Condition: cond})
		if p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
		}
	}
	return args, kwargs
}

func (p *Parser) parseCallTail(left ast.Expr) ast.Expr {
	p.advance(token.CtxPrefix) // consume '('
	args, kwargs := p.parseArgs()
	p.expect(token.RPAREN, token.CtxInfix)
	return &ast.CallExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: left.GetSpan()}}, Callee: left, Args: args, Kwargs: kwargs}
}

func (p *Parser) parseIndexOrSliceTail(left ast.Expr) ast.Expr {
	start := left.GetSpan()
	p.advance(token.CtxPrefix) // consume '['
	var from, to, step ast.Expr
	if !p.at(token.COLON) {
		from = p.parseExpression(PrecLowest)
	}
	if p.at(token.COLON) {
		p.advance(token.CtxPrefix)
		if !p.at(token.COLON) && !p.at(token.RBRACKET) {
			to = p.parseExpression(PrecLowest)
		}
		if p.at(token.COLON) {
			p.advance(token.CtxPrefix)
			if !p.at(token.RBRACKET) {
				step = p.parseExpression(PrecLowest)
			}
		}
		p.expect(token.RBRACKET, token.CtxInfix)
		return &ast.SliceExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Object: left, From: from, To: to, Step: step}
	}
	p.expect(token.RBRACKET, token.CtxInfix)
	return &ast.IndexExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Object: left, Index: from}
}

func (p *Parser) parseMemberOrMethodTail(left ast.Expr) ast.Expr {
	maybe := p.at(token.QUESTION_DOT)
	start := left.GetSpan()
	p.advance(token.CtxName)
	name := p.cur.Lexeme
	p.advance(token.CtxInfix)
	if p.at(token.LPAREN) {
		p.advance(token.CtxPrefix)
		args, kwargs := p.parseArgs()
		p.expect(token.RPAREN, token.CtxInfix)
		return &ast.MethodCallExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Object: left, Method: name, Args: args, Kwargs: kwargs, Maybe: maybe}
	}
	return &ast.MemberExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Object: left, Name: name, Maybe: maybe}
}

// ---- prefix ----

func (p *Parser) parsePrefix() ast.Expr {
	switch p.cur.Type {
	case token.INT, token.REAL, token.STRING, token.KW_TRUE, token.KW_FALSE, token.KW_NIL, token.REGEX:
		return p.parsePrefixLiteral()
	case token.STRING_HEAD:
		return p.parseInterpolatedString()
	case token.IDENT:
		if p.cur.Lexeme == "TEMPLATE" {
			return p.parseTemplateExpr()
		}
		if isTagLike(p.cur.Lexeme) {
			return p.parseTagOrCall()
		}
		return p.parseIdentOrLambda()
	case token.TAG:
		return p.parseTagOrCall()
	case token.AT:
		return p.parseMacroInvocation()
	case token.DOLLAR_PAREN:
		return p.parseTemplateHole(ast.HoleExpr)
	case token.DOLLAR_BRACE:
		return p.parseTemplateHole(ast.HoleValue)
	case token.DOLLAR_COLON:
		p.errorf("type-holes ($:Type) are not supported")
		return p.parseTemplateHole(ast.HoleToken)
	case token.KW_SELF:
		t := p.advance(token.CtxInfix)
		return &ast.SelfExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: t.Span}}}
	case token.KW_SUPER:
		t := p.advance(token.CtxInfix)
		return &ast.SuperExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: t.Span}}}
	case token.LPAREN:
		return p.parseParenOrLambdaOrTuple()
	case token.LBRACKET:
		return p.parseArrayLiteral()
	case token.HASH:
		return p.parseDictLiteral()
	case token.LBRACE:
		return p.parseBlockExpr()
	case token.KW_IF:
		return p.parseIfExpr()
	case token.KW_MATCH:
		return p.parseMatchExprHead()
	case token.KW_FUNCTION, token.KW_GENERATOR:
		return p.parseFunctionLiteralBody("")
	case token.KW_THROW:
		start := p.cur.Span
		p.advance(token.CtxPrefix)
		v := p.parseExpression(PrecAssign)
		return &ast.ThrowExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Value: v}
	case token.KW_YIELD:
		start := p.cur.Span
		p.advance(token.CtxPrefix)
		var v ast.Expr
		if !p.atStmtEnd() {
			v = p.parseExpression(PrecAssign)
		}
		return &ast.YieldExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Value: v}
	case token.KW_EVAL:
		start := p.cur.Span
		p.advance(token.CtxPrefix)
		v := p.parseExpression(PrecUnary)
		return &ast.EvalExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Target: v}
	case token.KW_DEFINED:
		start := p.cur.Span
		p.advance(token.CtxPrefix)
		name := p.cur.Lexeme
		p.advance(token.CtxInfix)
		return &ast.DefinedExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}
	case token.KW_TYPEOF:
		start := p.cur.Span
		p.advance(token.CtxPrefix)
		v := p.parseExpression(PrecUnary)
		return &ast.TypeofExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Target: v}
	case token.KW_WITH:
		return p.parseWithExpr()
	case token.OPERATOR:
		if p.cur.Lexeme == "^" {
			start := p.cur.Span
			p.advance(token.CtxPrefix)
			name := p.cur.Lexeme
			p.advance(token.CtxInfix)
			return &ast.ResourceBinding{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}
		}
		return p.parseUnary()
	case token.BANG:
		return p.parseUnary()
	}
	p.errorf("unexpected token %s %q in expression", p.cur.Type, p.cur.Lexeme)
	t := p.advance(token.CtxInfix)
	return &ast.NilLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: t.Span}}}
}

func (p *Parser) parsePrefixLiteral() ast.Expr {
	start := p.cur.Span
	switch p.cur.Type {
	case token.INT:
		text := p.cur.Lexeme
		p.advance(token.CtxInfix)
		n, _ := strconv.ParseInt(text, 0, 64)
		return &ast.IntLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Value: n}
	case token.REAL:
		text := p.cur.Lexeme
		p.advance(token.CtxInfix)
		f, _ := strconv.ParseFloat(text, 64)
		return &ast.RealLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Value: f}
	case token.STRING:
		text := p.cur.Lexeme
		p.advance(token.CtxInfix)
		return &ast.StringLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Value: text}
	case token.KW_TRUE:
		p.advance(token.CtxInfix)
		return &ast.BoolLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Value: true}
	case token.KW_FALSE:
		p.advance(token.CtxInfix)
		return &ast.BoolLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Value: false}
	case token.KW_NIL:
		p.advance(token.CtxInfix)
		return &ast.NilLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}}
	case token.REGEX:
		text, flags := p.cur.Lexeme, p.cur.RegexFlags
		p.advance(token.CtxInfix)
		return &ast.RegexLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Source: text, Flags: flags}
	}
	panic("unreachable parsePrefixLiteral")
}

// parseInterpolatedString consumes a STRING_HEAD and its continuation
// parts, alternating literal runs and `{ expr }` holes.
// parseInterpolatedString consumes a STRING_HEAD and the hole/fragment
// sequence that follows it. The lexer leaves the opening '{' of a hole
// unconsumed when it emits STRING_HEAD, so the next ordinary token read
// is the '{' itself (scanned as plain punctuation, not resumed string
// content); once the hole's expression and closing '}' are parsed, the
// fragment after it is raw string text again and must be read with
// ContinueInterpolatedString rather than a normal token fetch.
func (p *Parser) parseInterpolatedString() ast.Expr {
	start := p.cur.Span
	var parts []ast.StringPart
	parts = append(parts, ast.StringPart{Literal: p.cur.Lexeme})
	p.advance(token.CtxPrefix) // cur is now the hole's '{'
	for {
		if _, err := p.expect(token.LBRACE, token.CtxPrefix); err != nil {
			break
		}
		expr := p.parseExpression(PrecLowest)
		var spec ast.Expr
		if p.at(token.COLON) {
			p.advance(token.CtxFmt)
			spec = p.parseExpression(PrecLowest)
		}
		if !p.at(token.RBRACE) {
			p.errorf("expected '}' to close string interpolation, got %s", p.cur.Type)
		}
		p.cur = p.lex.ContinueInterpolatedString(token.CtxInfix)
		parts = append(parts, ast.StringPart{IsExpr: true, Expr: expr, FormatSpec: spec})
		if p.cur.Type == token.STRING_HEAD {
			parts = append(parts, ast.StringPart{Literal: p.cur.Lexeme})
			p.advance(token.CtxPrefix)
			continue
		}
		parts = append(parts, ast.StringPart{Literal: p.cur.Lexeme})
		p.advance(token.CtxInfix)
		break
	}
	return &ast.SpecialStringLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Parts: parts}
}

func (p *Parser) parseUnary() ast.Expr {
	start := p.cur.Span
	lexeme := p.cur.Lexeme
	if p.cur.Type == token.BANG {
		lexeme = "!"
	}
	var op ast.UnaryOp
	switch lexeme {
	case "-":
		op = ast.UnNeg
	case "!":
		op = ast.UnNot
	case "~":
		op = ast.UnBitNot
	case "*":
		op = ast.UnSplat
	case "&":
		op = ast.UnRef
	default:
		p.errorf("unknown prefix operator %q", lexeme)
		op = ast.UnNeg
	}
	p.advance(token.CtxPrefix)
	operand := p.parseExpression(PrecUnary)
	return &ast.UnaryExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Op: op, Operand: operand}
}

func (p *Parser) parseIdentOrLambda() ast.Expr {
	start := p.cur.Span
	name := p.cur.Lexeme
	module := p.cur.Module
	p.advance(token.CtxInfix)
	if name == "_" {
		return &ast.Placeholder{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}}
	}
	return &ast.Ident{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Module: module, Name: name}
}

// isTagLike reports whether name denotes a tag constant in value or
// pattern position.
func isTagLike(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

func (p *Parser) parseTagOrCall() ast.Expr {
	start := p.cur.Span
	name := p.cur.Lexeme
	p.advance(token.CtxInfix)
	return &ast.TagLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}
}

// parseMacroInvocation parses `@name(args)`, a call to a macro defined
// with `macro` elsewhere in the module. Unlike an ordinary call, the
// argument expressions are kept as raw, unexpanded AST: substitution
// happens later, during macro expansion, not at parse time.
func (p *Parser) parseMacroInvocation() ast.Expr {
	start := p.cur.Span
	p.advance(token.CtxPrefix) // consume '@'
	name := p.cur.Lexeme
	p.expect(token.IDENT, token.CtxInfix)
	p.expect(token.LPAREN, token.CtxPrefix)
	var args []ast.Expr
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		args = append(args, p.parseExpression(PrecAssign))
		if p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
		} else {
			break
		}
	}
	p.expect(token.RPAREN, token.CtxInfix)
	return &ast.MacroInvocation{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name, Args: args}
}

// parseTemplateExpr parses `TEMPLATE { ... }`, a quasi-quote whose body
// is spliced, holes filled in, at the invoking macro's expansion site.
// The body reuses ordinary block-expression parsing: a template can
// quote either a single expression or a short statement sequence.
func (p *Parser) parseTemplateExpr() ast.Expr {
	start := p.cur.Span
	p.advance(token.CtxPrefix) // consume the `TEMPLATE` identifier
	body := p.parseBlockExpr()
	return &ast.TemplateExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Body: body}
}

// parseTemplateHole parses a `$(expr)` / `${expr}` / `$:Type` hole inside
// a TEMPLATE body. The opening delimiter is already consumed as part of
// the DOLLAR_PAREN/DOLLAR_BRACE/DOLLAR_COLON token; only the closing
// delimiter needs matching here.
func (p *Parser) parseTemplateHole(kind ast.TemplateHoleKind) ast.Expr {
	start := p.cur.Span
	closing := token.RPAREN
	if p.cur.Type == token.DOLLAR_BRACE {
		closing = token.RBRACE
	}
	p.advance(token.CtxPrefix)
	if kind == ast.HoleToken {
		name := p.cur.Lexeme
		p.advance(token.CtxInfix)
		return &ast.TemplateHole{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Kind: kind, Name: &ast.Ident{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}}
	}
	inner := p.parseExpression(PrecLowest)
	p.expect(closing, token.CtxInfix)
	return &ast.TemplateHole{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Kind: kind, Name: inner}
}

// parseParenOrLambdaOrTuple disambiguates `(expr)` grouping, `(a, b)`
// tuple literals, and `(params) -> body` lambda literals by speculative
// parse: try a parameter list, check for an ARROW, and backtrack to a
// grouped/tuple parse if it doesn't match.
func (p *Parser) parseParenOrLambdaOrTuple() ast.Expr {
	start := p.cur.Span
	p.pushSave()
	if params, ok := p.tryParseArrowParams(); ok {
		p.popSaveCommit()
		var ret ast.Expr
		if p.at(token.COLON) {
			p.advance(token.CtxPrefix)
			ret = p.parseExpression(PrecCompare)
		}
		p.expect(token.ARROW, token.CtxPrefix)
		var body []ast.Stmt
		if p.at(token.LBRACE) {
			body = p.parseBlock()
		} else {
			e := p.parseExpression(PrecAssign)
			body = []ast.Stmt{&ast.ReturnStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: e.GetSpan()}}, Value: e}}
		}
		rest, kwargs := restAndKwargsIndex(params)
		return &ast.FunctionExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Params: params, RestIndex: rest, KwargsIndex: kwargs, ReturnType: ret, Body: body}
	}
	p.popSaveRestore()

	p.advance(token.CtxPrefix) // consume '('
	if p.at(token.RPAREN) {
		p.advance(token.CtxInfix)
		return &ast.TupleLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}}
	}
	first := p.parseExpression(PrecLowest)
	if p.at(token.COMMA) {
		slots := []ast.TupleSlot{{Value: first, Required: true}}
		for p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
			if p.at(token.RPAREN) {
				break
			}
			v := p.parseExpression(PrecLowest)
			slots = append(slots, ast.TupleSlot{Value: v, Required: true})
		}
		p.expect(token.RPAREN, token.CtxInfix)
		return &ast.TupleLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Slots: slots}
	}
	p.expect(token.RPAREN, token.CtxInfix)
	return first
}

// tryParseArrowParams attempts to parse a `(name [: Constraint] [= default], ...)`
// parameter list; returns ok=false (caller restores the save-point) if
// the token stream doesn't actually look like one.
func (p *Parser) tryParseArrowParams() (params []ast.Param, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	if !p.at(token.LPAREN) {
		return nil, false
	}
	params = p.parseParamList()
	if p.at(token.COLON) {
		// peek past a possible return-type annotation before the arrow
		save := p.cur
		p.advance(token.CtxPrefix)
		p.parseExpression(PrecCompare)
		_ = save
	}
	if !p.at(token.ARROW) {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseArrayLiteral() ast.Expr {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	if p.at(token.RBRACKET) {
		p.advance(token.CtxInfix)
		return &ast.ArrayLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}}
	}
	first := p.parseExpression(PrecAssign)
	if p.at(token.KW_FOR) {
		return p.parseArrayComprTail(start, first)
	}
	elems := []ast.Expr{first}
	spreads := []bool{false}
	if p.at(token.COMMA) {
		p.advance(token.CtxPrefix)
	}
	for !p.at(token.RBRACKET) && !p.at(token.EOF) {
		spread := false
		if p.at(token.OPERATOR) && p.cur.Lexeme == "*" {
			spread = true
			p.advance(token.CtxPrefix)
		}
		elems = append(elems, p.parseExpression(PrecAssign))
		spreads = append(spreads, spread)
		if p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
		}
	}
	p.expect(token.RBRACKET, token.CtxInfix)
	return &ast.ArrayLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Elements: elems, Spreads: spreads}
}

// parseArrayComprTail finishes `[element for var in iterable if cond]`
// once the element expression and the leading `for` have been seen.
func (p *Parser) parseArrayComprTail(start token.Span, element ast.Expr) ast.Expr {
	p.advance(token.CtxPrefix) // consume 'for'
	varName := p.cur.Lexeme
	p.advance(token.CtxInfix)
	p.expect(token.KW_IN, token.CtxPrefix)
	iterable := p.parseExpression(PrecAssign)
	var cond ast.Expr
	if p.at(token.KW_IF) {
		p.advance(token.CtxPrefix)
		cond = p.parseExpression(PrecAssign)
	}
	p.expect(token.RBRACKET, token.CtxInfix)
	return &ast.ArrayCompr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Element: element, Var: varName, Iterable: iterable, Condition: cond}
}

func (p *Parser) parseDictLiteral() ast.Expr {
	start := p.cur.Span
	p.advance(token.CtxPrefix) // consume '#'
	p.expect(token.LBRACE, token.CtxPrefix)
	if p.at(token.RBRACE) {
		p.advance(token.CtxInfix)
		return &ast.DictLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}}
	}
	var firstKey ast.Expr
	if (p.at(token.IDENT) || p.at(token.STRING)) && p.lexAheadIsColon() {
		keyStart := p.cur.Span
		keyText := p.cur.Lexeme
		p.advance(token.CtxInfix)
		firstKey = &ast.StringLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: keyStart}}, Value: keyText}
	} else {
		firstKey = p.parseExpression(PrecAssign)
	}
	p.expect(token.COLON, token.CtxPrefix)
	firstVal := p.parseExpression(PrecAssign)
	if p.at(token.KW_FOR) {
		return p.parseDictComprTail(start, firstKey, firstVal)
	}
	entries := []ast.DictEntry{{Key: firstKey, Value: firstVal}}
	if p.at(token.COMMA) {
		p.advance(token.CtxPrefix)
	}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		var key ast.Expr
		if (p.at(token.IDENT) || p.at(token.STRING)) && p.lexAheadIsColon() {
			keyStart := p.cur.Span
			keyText := p.cur.Lexeme
			p.advance(token.CtxInfix)
			key = &ast.StringLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: keyStart}}, Value: keyText}
		} else {
			key = p.parseExpression(PrecAssign)
		}
		p.expect(token.COLON, token.CtxPrefix)
		val := p.parseExpression(PrecAssign)
		entries = append(entries, ast.DictEntry{Key: key, Value: val})
		if p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
		}
	}
	p.expect(token.RBRACE, token.CtxInfix)
	return &ast.DictLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Entries: entries}
}

// parseDictComprTail finishes `#{ key: val for var in iterable if cond }`
// once the first key/value pair and the leading `for` have been seen.
func (p *Parser) parseDictComprTail(start token.Span, key, val ast.Expr) ast.Expr {
	p.advance(token.CtxPrefix) // consume 'for'
	varName := p.cur.Lexeme
	p.advance(token.CtxInfix)
	p.expect(token.KW_IN, token.CtxPrefix)
	iterable := p.parseExpression(PrecAssign)
	var cond ast.Expr
	if p.at(token.KW_IF) {
		p.advance(token.CtxPrefix)
		cond = p.parseExpression(PrecAssign)
	}
	p.expect(token.RBRACE, token.CtxInfix)
	return &ast.DictCompr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, KeyExpr: key, ValExpr: val, Var: varName, Iterable: iterable, Condition: cond}
}

// lexAheadIsColon reports whether the token after the current one is a
// COLON, so a bare IDENT/STRING key followed directly by `:` becomes a
// string key while any other key (e.g. `w + "!"`) takes the expression
// path above.
func (p *Parser) lexAheadIsColon() bool {
	p.pushSave()
	p.advance(token.CtxInfix)
	ok := p.at(token.COLON)
	p.popSaveRestore()
	return ok
}

func (p *Parser) parseBlockExpr() ast.Expr {
	start := p.cur.Span
	stmts := p.parseBlock()
	return &ast.BlockExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Stmts: stmts}
}

func (p *Parser) parseIfExpr() ast.Expr {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	cond := p.parseExpression(PrecLowest)
	then := p.parseBlockExpr()
	var els ast.Expr
	if p.at(token.KW_ELSE) {
		p.advance(token.CtxPrefix)
		if p.at(token.KW_IF) {
			els = p.parseIfExpr()
		} else {
			els = p.parseBlockExpr()
		}
	}
	return &ast.IfExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseMatchExprHead() ast.Expr {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	subj := p.parseExpression(PrecLowest)
	arms := p.parseMatchArms()
	return &ast.MatchExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Subject: subj, Arms: arms}
}

func (p *Parser) parseWithExpr() ast.Expr {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	binding := ""
	if p.at(token.OPERATOR) && p.cur.Lexeme == "^" {
		p.advance(token.CtxPrefix)
		binding = p.cur.Lexeme
		p.advance(token.CtxInfix)
	}
	resource := p.parseExpression(PrecAssign)
	body := p.parseBlock()
	return &ast.WithExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Binding: binding, Resource: resource, Body: body}
}
