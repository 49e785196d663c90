// Package parser turns a Ty token stream into an AST. It is a Pratt
// parser: prefix and infix parsing functions are looked up per token
// type/lexeme, each infix association carrying a precedence from
// precedence.go's user-operator table. The parser pulls tokens from the
// lexer one at a time, always specifying the context (PREFIX/INFIX) the
// grammar position calls for, rather than reading ahead into a
// fixed-size buffer -- the lexer's context-sensitivity only works if the
// parser asks for exactly the context it is about to need.
package parser

import (
	"fmt"
	"strconv"

	"ty/internal/arena"
	"ty/internal/ast"
	tyerrors "ty/internal/errors"
	"ty/internal/lexer"
	"ty/internal/token"
)

type savePoint struct {
	pos, line, col int
	cur            token.Token
	errCount       int
}

// Parser owns the lexer, the current lookahead token, the user operator
// table, and a stack of save-points error recovery unwinds to.
type Parser struct {
	lex  *lexer.Lexer
	file string
	arena *arena.Arena

	cur token.Token

	ops          map[string]OpInfo
	macroNames   map[string]bool
	funMacroNames map[string]bool

	Errors      []*tyerrors.TyError
	AllowErrors bool // IDE/LSP mode: recover instead of aborting
	savePoints  []savePoint

	noEquals, noIn, noAndOr, noPipe, noConstraint, typeContext bool
}

func New(file, source string) *Parser {
	ops := map[string]OpInfo{}
	for k, v := range builtinOperators {
		ops[k] = v
	}
	p := &Parser{
		lex:  lexer.New(file, source),
		file: file,
		arena: arena.New(),
		ops:  ops,
		macroNames: map[string]bool{},
		funMacroNames: map[string]bool{},
	}
	p.lex.SetNeedNewline(true)
	p.cur = p.lex.Next(token.CtxPrefix)
	return p
}

// ---- token plumbing ----

// advance returns the current token and reads the next one using ctx,
// the context the upcoming grammar position requires.
func (p *Parser) advance(ctx token.Context) token.Token {
	t := p.cur
	for {
		p.cur = p.lex.Next(ctx)
		if p.cur.Type == token.NEWLINE || p.cur.Type == token.HIDDEN {
			continue
		}
		break
	}
	return t
}

func (p *Parser) at(tt token.Type) bool { return p.cur.Type == tt }

func (p *Parser) expect(tt token.Type, ctx token.Context) (token.Token, error) {
	if !p.at(tt) {
		return token.Token{}, p.errorf("expected %s, got %s %q", tt, p.cur.Type, p.cur.Lexeme)
	}
	return p.advance(ctx), nil
}

func (p *Parser) errorf(format string, args ...any) error {
	loc := tyerrors.Location{File: p.file, Line: p.cur.Span.StartLine, Column: p.cur.Span.StartCol, Offset: p.cur.Span.StartOff}
	e := tyerrors.New(tyerrors.ParseError, fmt.Sprintf(format, args...), loc)
	p.Errors = append(p.Errors, e)
	return e
}

func (p *Parser) pushSave() {
	pos, line, col := p.lex.Pos()
	p.savePoints = append(p.savePoints, savePoint{pos: pos, line: line, col: col, cur: p.cur, errCount: len(p.Errors)})
}

func (p *Parser) popSaveCommit() {
	p.savePoints = p.savePoints[:len(p.savePoints)-1]
}

func (p *Parser) popSaveRestore() {
	n := len(p.savePoints) - 1
	sp := p.savePoints[n]
	p.savePoints = p.savePoints[:n]
	p.lex.Rewind(sp.pos, sp.line, sp.col)
	p.cur = sp.cur
	p.Errors = p.Errors[:sp.errCount]
}

func spanFrom(start token.Span, end token.Span) token.Span {
	return token.Span{
		File: start.File, StartLine: start.StartLine, StartCol: start.StartCol, StartOff: start.StartOff,
		EndLine: end.EndLine, EndCol: end.EndCol, EndOff: end.EndOff,
	}
}

// ---- program ----

func (p *Parser) ParseProgram() (*ast.Program, []*tyerrors.TyError) {
	prog := &ast.Program{Module: p.file}
	for !p.at(token.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
		if len(p.Errors) > 0 && !p.AllowErrors {
			break
		}
	}
	return prog, p.Errors
}

// ---- statements ----

func (p *Parser) parseStatement() ast.Stmt {
	switch p.cur.Type {
	case token.KW_LET, token.KW_CONST:
		return p.parseDefinition(false)
	case token.KW_PUB:
		start := p.cur.Span
		p.advance(token.CtxPrefix)
		s := p.parseStatement()
		markPublic(s, start)
		return s
	case token.KW_FUNCTION, token.KW_GENERATOR:
		return p.parseFunctionDefStmt()
	case token.KW_TAG:
		return p.parseTagDef(false)
	case token.KW_CLASS:
		return p.parseClassDef(false, false)
	case token.KW_TRAIT:
		return p.parseTraitDef(false)
	case token.KW_IF:
		return p.parseIfStmt()
	case token.KW_WHILE:
		return p.parseWhileStmt()
	case token.KW_FOR:
		return p.parseForStmt()
	case token.KW_MATCH:
		return p.parseMatchStmt()
	case token.KW_RETURN:
		return p.parseReturnStmt()
	case token.KW_YIELD:
		return p.parseGeneratorReturnOrYieldStmt()
	case token.KW_NEXT:
		s := &ast.NextStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: p.cur.Span}}}
		p.advance(token.CtxPrefix)
		return s
	case token.KW_BREAK:
		return p.parseBreakStmt()
	case token.KW_CONTINUE:
		return p.parseContinueStmt()
	case token.KW_TRY:
		return p.parseTryStmt()
	case token.KW_DEFER:
		return p.parseDeferStmt()
	case token.KW_CLEANUP:
		return p.parseCleanupStmt()
	case token.KW_DROP:
		return p.parseDropStmt()
	case token.KW_HALT:
		return p.parseHaltStmt()
	case token.LBRACE:
		return p.parseBlockStmt()
	case token.KW_IMPORT:
		return p.parseImportStmt()
	case token.KW_EXPORT:
		return p.parseExportStmt()
	case token.KW_USE:
		return p.parseUseStmt()
	case token.KW_MACRO:
		return p.parseMacroDef()
	case token.KW_OPERATOR:
		return p.parseOperatorDef()
	case token.SEMI:
		s := &ast.NullStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: p.cur.Span}}}
		p.advance(token.CtxPrefix)
		return s
	default:
		start := p.cur.Span
		e := p.parseExpression(PrecLowest)
		if ident, ok := e.(*ast.Ident); ok && p.at(token.COLON) {
			p.advance(token.CtxPrefix)
			typ := p.parseExpression(PrecCompare)
			p.skipSemi()
			return &ast.SetTypeStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: spanFrom(start, typ.GetSpan())}}, Name: ident.Name, Type: typ}
		}
		p.skipSemi()
		return &ast.ExpressionStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: spanFrom(start, e.GetSpan())}}, Expr: e}
	}
}

func markPublic(s ast.Stmt, start token.Span) {
	switch st := s.(type) {
	case *ast.DefinitionStmt:
		st.Public = true
	case *ast.FunctionDefStmt:
		st.Public = true
	case *ast.TagDefStmt:
		st.Public = true
	case *ast.ClassDefStmt:
		st.Public = true
	case *ast.TraitDefStmt:
		st.Public = true
	case *ast.TypeDefStmt:
		st.Public = true
	}
}

func (p *Parser) skipSemi() {
	for p.at(token.SEMI) {
		p.advance(token.CtxPrefix)
	}
}

func (p *Parser) parseBlock() []ast.Stmt {
	if _, err := p.expect(token.LBRACE, token.CtxPrefix); err != nil {
		return nil
	}
	var stmts []ast.Stmt
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		stmts = append(stmts, p.parseStatement())
	}
	p.expect(token.RBRACE, token.CtxInfix)
	return stmts
}

func (p *Parser) parseBlockStmt() ast.Stmt {
	start := p.cur.Span
	stmts := p.parseBlock()
	return &ast.BlockStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Stmts: stmts}
}

func (p *Parser) parseDefinition(forceConst bool) ast.Stmt {
	start := p.cur.Span
	kind := ast.DefLet
	if p.cur.Type == token.KW_CONST || forceConst {
		kind = ast.DefConst
	}
	p.advance(token.CtxPrefix)
	pat := p.parsePattern()
	var value ast.Expr
	if p.at(token.EQ) {
		p.advance(token.CtxPrefix)
		value = p.parseExpression(PrecAssign)
	}
	p.skipSemi()
	return &ast.DefinitionStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Kind: kind, Pattern: pat, Value: value}
}

func (p *Parser) parseIfStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	if p.at(token.KW_LET) {
		p.advance(token.CtxPrefix)
		pat := p.parsePattern()
		p.expect(token.EQ, token.CtxPrefix)
		val := p.parseExpression(PrecLowest)
		then := p.parseBlock()
		var els []ast.Stmt
		if p.at(token.KW_ELSE) {
			p.advance(token.CtxPrefix)
			els = p.parseElseBody()
		}
		return &ast.IfLetStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Pattern: pat, Value: val, Then: then, Else: els}
	}
	cond := p.parseExpression(PrecLowest)
	then := p.parseBlock()
	var els []ast.Stmt
	if p.at(token.KW_ELSE) {
		p.advance(token.CtxPrefix)
		els = p.parseElseBody()
	}
	return &ast.IfStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseElseBody() []ast.Stmt {
	if p.at(token.KW_IF) {
		return []ast.Stmt{p.parseIfStmt()}
	}
	return p.parseBlock()
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	if p.at(token.KW_MATCH) {
		p.advance(token.CtxPrefix)
		subj := p.parseExpression(PrecLowest)
		pat, guard := p.parseSingleArmHeader()
		body := p.parseBlock()
		if pat != nil {
			p.expect(token.RBRACE, token.CtxPrefix) // closes the header's `{`
		}
		return &ast.WhileMatchStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Subject: subj, Pattern: pat, Guard: guard, Body: body}
	}
	cond := p.parseExpression(PrecLowest)
	body := p.parseBlock()
	return &ast.WhileStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Cond: cond, Body: body}
}

// parseSingleArmHeader parses the `{ Pattern [if guard] =>` header of a
// while-match, whose single arm body is a block followed by the closing
// `}` (consumed by parseWhileStmt). It returns nil, nil when the `{` is
// missing.
func (p *Parser) parseSingleArmHeader() (ast.Expr, ast.Expr) {
	if _, err := p.expect(token.LBRACE, token.CtxPrefix); err == nil {
		pat := p.parsePattern()
		var guard ast.Expr
		if p.at(token.KW_IF) {
			p.advance(token.CtxPrefix)
			guard = p.parseExpression(PrecLowest)
		}
		p.expect(token.FAT_ARROW, token.CtxPrefix)
		return pat, guard
	}
	return nil, nil
}

func (p *Parser) parseForStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	// EACH form: for pattern in iterable { ... }
	p.pushSave()
	savedNoIn := p.noIn
	p.noIn = true
	pat := p.tryParsePattern()
	p.noIn = savedNoIn
	if pat != nil && p.at(token.KW_IN) {
		p.popSaveCommit()
		p.advance(token.CtxPrefix)
		iterable := p.parseExpression(PrecLowest)
		var guard ast.Expr
		if p.at(token.KW_IF) {
			p.advance(token.CtxPrefix)
			guard = p.parseExpression(PrecLowest)
		}
		body := p.parseBlock()
		return &ast.EachStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Pattern: pat, Iterable: iterable, Guard: guard, Body: body}
	}
	p.popSaveRestore()

	// classic C-style for: for init; cond; post { ... }
	var init ast.Stmt
	if !p.at(token.SEMI) {
		init = p.parseStatement()
	} else {
		p.advance(token.CtxPrefix)
	}
	var cond ast.Expr
	if !p.at(token.SEMI) {
		cond = p.parseExpression(PrecLowest)
	}
	p.expect(token.SEMI, token.CtxPrefix)
	var post ast.Stmt
	if !p.at(token.LBRACE) {
		e := p.parseExpression(PrecLowest)
		post = &ast.ExpressionStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: e.GetSpan()}}, Expr: e}
	}
	body := p.parseBlock()
	return &ast.ForStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Init: init, Cond: cond, Post: post, Body: body}
}

func (p *Parser) tryParsePattern() (pat ast.Expr) {
	defer func() {
		if r := recover(); r != nil {
			pat = nil
		}
	}()
	return p.parsePattern()
}

func (p *Parser) parseMatchArms() []ast.MatchArm {
	p.expect(token.LBRACE, token.CtxPrefix)
	var arms []ast.MatchArm
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		pat := p.parsePattern()
		var guard ast.Expr
		if p.at(token.KW_IF) {
			p.advance(token.CtxPrefix)
			guard = p.parseExpression(PrecLowest)
		}
		alias := ""
		if p.at(token.KW_AS) {
			p.advance(token.CtxPrefix)
			if p.at(token.IDENT) {
				alias = p.cur.Lexeme
				p.advance(token.CtxInfix)
			}
		}
		p.expect(token.FAT_ARROW, token.CtxPrefix)
		body := p.parseExpression(PrecLowest)
		arms = append(arms, ast.MatchArm{Pattern: pat, Guard: guard, Alias: alias, Body: body})
		if p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
		}
	}
	p.expect(token.RBRACE, token.CtxInfix)
	return arms
}

func (p *Parser) parseMatchStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	subj := p.parseExpression(PrecLowest)
	arms := p.parseMatchArms()
	return &ast.MatchStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Subject: subj, Arms: arms}
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	var val ast.Expr
	if !p.atStmtEnd() {
		val = p.parseExpression(PrecLowest)
	}
	p.skipSemi()
	return &ast.ReturnStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Value: val}
}

func (p *Parser) parseGeneratorReturnOrYieldStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	var val ast.Expr
	if !p.atStmtEnd() {
		val = p.parseExpression(PrecLowest)
	}
	p.skipSemi()
	y := &ast.YieldExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Value: val}
	return &ast.ExpressionStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Expr: y}
}

func (p *Parser) atStmtEnd() bool {
	switch p.cur.Type {
	case token.SEMI, token.RBRACE, token.EOF:
		return true
	}
	return false
}

func (p *Parser) parseBreakStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	label := ""
	var val ast.Expr
	if p.at(token.IDENT) {
		label = p.cur.Lexeme
		p.advance(token.CtxInfix)
	} else if !p.atStmtEnd() {
		val = p.parseExpression(PrecLowest)
	}
	p.skipSemi()
	return &ast.BreakStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Label: label, Value: val}
}

func (p *Parser) parseContinueStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	label := ""
	if p.at(token.IDENT) {
		label = p.cur.Lexeme
		p.advance(token.CtxInfix)
	}
	p.skipSemi()
	return &ast.ContinueStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Label: label}
}

// parseTryStmt parses a plain `try { } catch ... finally { }` or, when a
// `^resource = init` binding immediately follows `try`, the combined
// resource-acquisition form (ast.TryCleanStmt): resource is declared
// before the body runs and closed on every exit path, mirroring how
// parseWithExpr detects the same `^name` marker in expression position.
func (p *Parser) parseTryStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)

	var resource string
	var init ast.Expr
	if p.at(token.OPERATOR) && p.cur.Lexeme == "^" {
		p.advance(token.CtxPrefix)
		resource = p.cur.Lexeme
		p.advance(token.CtxInfix)
		p.expect(token.EQ, token.CtxPrefix)
		init = p.parseExpression(PrecAssign)
	}

	body := p.parseBlock()
	var catches []ast.CatchClause
	for p.at(token.KW_CATCH) {
		p.advance(token.CtxPrefix)
		var pat ast.Expr
		if !p.at(token.LBRACE) {
			pat = p.parsePattern()
		}
		var guard ast.Expr
		if p.at(token.KW_IF) {
			p.advance(token.CtxPrefix)
			guard = p.parseExpression(PrecLowest)
		}
		cbody := p.parseBlock()
		catches = append(catches, ast.CatchClause{Pattern: pat, Guard: guard, Body: cbody})
	}
	var fin []ast.Stmt
	if p.at(token.KW_FINALLY) {
		p.advance(token.CtxPrefix)
		fin = p.parseBlock()
	}
	if resource != "" {
		return &ast.TryCleanStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Resource: resource, Init: init, Body: body, Catches: catches, Finally: fin}
	}
	return &ast.TryStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Body: body, Catches: catches, Finally: fin}
}

func (p *Parser) parseDeferStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	body := p.parseBlock()
	return &ast.DeferStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Body: body}
}

func (p *Parser) parseCleanupStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	body := p.parseBlock()
	return &ast.CleanupStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Body: body}
}

func (p *Parser) parseDropStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	name := ""
	if p.at(token.IDENT) {
		name = p.cur.Lexeme
		p.advance(token.CtxInfix)
	}
	p.skipSemi()
	return &ast.DropStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Name: name}
}

// parseHaltStmt parses `halt` or `halt code`, stopping the VM
// immediately with the given exit code (0 if omitted).
func (p *Parser) parseHaltStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	var code ast.Expr
	if !p.atStmtEnd() {
		code = p.parseExpression(PrecLowest)
	}
	p.skipSemi()
	return &ast.HaltStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Code: code}
}

func (p *Parser) parseDottedPath() []string {
	var segs []string
	if p.at(token.IDENT) {
		segs = append(segs, p.cur.Lexeme)
		p.advance(token.CtxInfix)
	}
	for p.at(token.DOT) {
		p.advance(token.CtxPrefix)
		if p.at(token.IDENT) {
			segs = append(segs, p.cur.Lexeme)
			p.advance(token.CtxInfix)
		}
	}
	return segs
}

func (p *Parser) parseImportStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	path := p.parseDottedPath()
	alias := ""
	if p.at(token.KW_AS) {
		p.advance(token.CtxPrefix)
		if p.at(token.IDENT) {
			alias = p.cur.Lexeme
			p.advance(token.CtxInfix)
		}
	}
	p.skipSemi()
	return &ast.ImportStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Path: path, Alias: alias}
}

func (p *Parser) parseExportStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	var names []string
	for p.at(token.IDENT) {
		names = append(names, p.cur.Lexeme)
		p.advance(token.CtxInfix)
		if p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
		}
	}
	p.skipSemi()
	return &ast.ExportStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Names: names}
}

func (p *Parser) parseUseStmt() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	path := p.parseDottedPath()
	p.skipSemi()
	return &ast.UseStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Path: path}
}

func (p *Parser) parseOperatorDef() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	symbol := p.cur.Lexeme
	p.advance(token.CtxInfix)
	prec := defaultOperatorPrecedence
	rightAssoc := false
	if p.at(token.INT) {
		n, _ := strconv.Atoi(p.cur.Lexeme)
		prec = Precedence(n)
		p.advance(token.CtxInfix)
	}
	fn := p.parseFunctionLiteralBody("")
	p.ops[symbol] = OpInfo{Precedence: prec, RightAssoc: rightAssoc}
	return &ast.OperatorDefStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Symbol: symbol, Precedence: int(prec), RightAssoc: rightAssoc, Fn: fn}
}

// parseMacroDef parses `macro name(params) { stmts }`, a statement macro
// whose body is raw, unexpanded syntax spliced at each invocation site,
// or `macro name(params) -> expr` / `-> { block }`, a fun-macro: an
// ordinary function invoked at compile time whose AST result replaces
// the call. The two share a keyword and param list and are distinguished
// by the same arrow-vs-brace lookahead used for lambda literals.
func (p *Parser) parseMacroDef() ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	name := p.cur.Lexeme
	p.advance(token.CtxInfix)
	params := p.parseParamList()
	if p.at(token.ARROW) {
		p.advance(token.CtxPrefix)
		var body []ast.Stmt
		if p.at(token.LBRACE) {
			body = p.parseBlock()
		} else {
			e := p.parseExpression(PrecAssign)
			body = []ast.Stmt{&ast.ReturnStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: e.GetSpan()}}, Value: e}}
		}
		rest, kwargs := restAndKwargsIndex(params)
		p.funMacroNames[name] = true
		fn := &ast.FunctionExpr{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name, Params: params, RestIndex: rest, KwargsIndex: kwargs, Body: body}
		return &ast.FunMacroDefStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Fn: fn}
	}
	p.macroNames[name] = true
	body := p.parseBlock()
	return &ast.MacroDefStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Name: name, Params: params, Body: body}
}

// ---- function / tag / class / trait definitions ----

func (p *Parser) parseParamList() []ast.Param {
	p.expect(token.LPAREN, token.CtxPrefix)
	var params []ast.Param
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		isRest, isKwargs := false, false
		if p.at(token.OPERATOR) && p.cur.Lexeme == "**" {
			p.advance(token.CtxPrefix)
			isKwargs = true
		} else if p.at(token.OPERATOR) && p.cur.Lexeme == "*" {
			p.advance(token.CtxPrefix)
			isRest = true
		}
		name := p.cur.Lexeme
		p.advance(token.CtxInfix)
		var constraint, def ast.Expr
		if p.at(token.COLON) {
			p.advance(token.CtxPrefix)
			constraint = p.parseExpression(PrecCompare)
		}
		if p.at(token.EQ) {
			p.advance(token.CtxPrefix)
			def = p.parseExpression(PrecAssign)
		}
		params = append(params, ast.Param{Name: name, Default: def, Constraint: constraint, IsRest: isRest, IsKwargs: isKwargs})
		if p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
		}
	}
	p.expect(token.RPAREN, token.CtxInfix)
	return params
}

func restAndKwargsIndex(params []ast.Param) (rest, kwargs int) {
	rest, kwargs = -1, -1
	for i, pr := range params {
		if pr.IsRest {
			rest = i
		}
		if pr.IsKwargs {
			kwargs = i
		}
	}
	return rest, kwargs
}

func (p *Parser) parseFunctionLiteralBody(name string) *ast.FunctionExpr {
	isGenerator := false
	if p.at(token.KW_GENERATOR) {
		isGenerator = true
	}
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	if name == "" && p.at(token.IDENT) {
		name = p.cur.Lexeme
		p.advance(token.CtxInfix)
	}
	params := p.parseParamList()
	var ret ast.Expr
	if p.at(token.ARROW) {
		p.advance(token.CtxPrefix)
		ret = p.parseExpression(PrecCompare)
	}
	var body []ast.Stmt
	if p.at(token.EQ) {
		p.advance(token.CtxPrefix)
		e := p.parseExpression(PrecLowest)
		body = []ast.Stmt{&ast.ReturnStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: e.GetSpan()}}, Value: e}}
	} else {
		body = p.parseBlock()
	}
	rest, kwargs := restAndKwargsIndex(params)
	return &ast.FunctionExpr{
		ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name, IsGenerator: isGenerator,
		Params: params, RestIndex: rest, KwargsIndex: kwargs, ReturnType: ret, Body: body,
	}
}

func (p *Parser) parseFunctionDefStmt() ast.Stmt {
	start := p.cur.Span
	fn := p.parseFunctionLiteralBody("")
	fn.Span = start
	return &ast.FunctionDefStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Fn: fn}
}

// parseTagDef parses a flat, comma-separated list of tag names, each
// optionally carrying positional payload field names in parens, e.g.
// `tag Ok, Err` or `tag Some(value), None`. There is no separate family
// name: the first entry doubles as both a variant and the declaration's
// namespace-registered name.
func (p *Parser) parseTagDef(public bool) ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	var variants []ast.TagVariant
	parseOne := func() {
		vname := p.cur.Lexeme
		p.advance(token.CtxInfix)
		var fields []string
		if p.at(token.LPAREN) {
			p.advance(token.CtxPrefix)
			for !p.at(token.RPAREN) && !p.at(token.EOF) {
				fields = append(fields, p.cur.Lexeme)
				p.advance(token.CtxInfix)
				if p.at(token.COMMA) {
					p.advance(token.CtxPrefix)
				}
			}
			p.expect(token.RPAREN, token.CtxInfix)
		}
		variants = append(variants, ast.TagVariant{Name: vname, Fields: fields})
	}
	parseOne()
	for p.at(token.COMMA) {
		p.advance(token.CtxPrefix)
		parseOne()
	}
	p.skipSemi()
	return &ast.TagDefStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Public: public, Name: variants[0].Name, Variants: variants}
}

func (p *Parser) parseClassBody() []ast.ClassMember {
	p.expect(token.LBRACE, token.CtxPrefix)
	var members []ast.ClassMember
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		static := false
		if p.at(token.KW_STATIC) {
			static = true
			p.advance(token.CtxPrefix)
		}
		switch p.cur.Type {
		case token.KW_FUNCTION, token.KW_GENERATOR:
			fn := p.parseFunctionLiteralBody("")
			members = append(members, ast.ClassMember{Name: fn.Name, Fn: fn, IsStatic: static})
		case token.KW_GET:
			p.advance(token.CtxPrefix)
			fn := p.parseFunctionLiteralBody("")
			members = append(members, ast.ClassMember{Name: fn.Name, Fn: fn, IsGetter: true, IsStatic: static})
		case token.KW_SET:
			p.advance(token.CtxPrefix)
			fn := p.parseFunctionLiteralBody("")
			members = append(members, ast.ClassMember{Name: fn.Name, Fn: fn, IsSetter: true, IsStatic: static})
		default:
			fname := p.cur.Lexeme
			p.advance(token.CtxInfix)
			var def ast.Expr
			if p.at(token.EQ) {
				p.advance(token.CtxPrefix)
				def = p.parseExpression(PrecAssign)
			}
			p.skipSemi()
			members = append(members, ast.ClassMember{Name: fname, FieldValue: def, IsStatic: static})
		}
	}
	p.expect(token.RBRACE, token.CtxInfix)
	return members
}

func (p *Parser) parseClassDef(public, _unused bool) ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	name := p.cur.Lexeme
	p.advance(token.CtxInfix)
	var implicitFields []string
	if p.at(token.LPAREN) {
		p.advance(token.CtxPrefix)
		for !p.at(token.RPAREN) && !p.at(token.EOF) {
			implicitFields = append(implicitFields, p.cur.Lexeme)
			p.advance(token.CtxInfix)
			if p.at(token.COLON) {
				p.advance(token.CtxPrefix)
				p.parseExpression(PrecCompare)
			}
			if p.at(token.COMMA) {
				p.advance(token.CtxPrefix)
			}
		}
		p.expect(token.RPAREN, token.CtxInfix)
	}
	parent := ""
	if p.at(token.OPERATOR) && p.cur.Lexeme == "<" {
		p.advance(token.CtxPrefix)
		parent = p.cur.Lexeme
		p.advance(token.CtxInfix)
	}
	var traits []string
	if p.at(token.COLON) {
		p.advance(token.CtxPrefix)
		traits = append(traits, p.cur.Lexeme)
		p.advance(token.CtxInfix)
		for p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
			traits = append(traits, p.cur.Lexeme)
			p.advance(token.CtxInfix)
		}
	}
	members := p.parseClassBody()
	return &ast.ClassDefStmt{
		StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Public: public, Name: name, Parent: parent,
		Traits: traits, Fields: implicitFields, Members: members,
	}
}

func (p *Parser) parseTraitDef(public bool) ast.Stmt {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	name := p.cur.Lexeme
	p.advance(token.CtxInfix)
	members := p.parseClassBody()
	return &ast.TraitDefStmt{StmtBase: ast.StmtBase{Node: ast.Node{Span: start}}, Public: public, Name: name, Members: members}
}
