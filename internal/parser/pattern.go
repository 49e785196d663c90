package parser

import (
	"ty/internal/ast"
	"ty/internal/token"
)

// parsePattern parses one pattern: a restricted grammar that reuses
// expression syntax for literals, names, arrays/tuples/dicts, tag
// destructuring, and alias/rest/view/choice forms. A top-level `|`
// chains alternatives into a ChoicePattern.
func (p *Parser) parsePattern() ast.Expr {
	first := p.parsePatternAtomWithAlias()
	if p.at(token.OPERATOR) && p.cur.Lexeme == "|" {
		alts := []ast.Expr{first}
		for p.at(token.OPERATOR) && p.cur.Lexeme == "|" {
			p.advance(token.CtxPrefix)
			alts = append(alts, p.parsePatternAtomWithAlias())
		}
		return &ast.ChoicePattern{ExprBase: ast.ExprBase{Node: ast.Node{Span: first.GetSpan()}}, Alternatives: alts}
	}
	return first
}

func (p *Parser) parsePatternAtomWithAlias() ast.Expr {
	pat := p.parsePatternView()
	if p.at(token.KW_AS) {
		p.advance(token.CtxPrefix)
		name := p.cur.Lexeme
		p.advance(token.CtxInfix)
		return &ast.AliasPattern{ExprBase: ast.ExprBase{Node: ast.Node{Span: pat.GetSpan()}}, Pattern: pat, Name: name}
	}
	return pat
}

// parsePatternView handles `expr -> Pattern` active/view patterns, which
// bind looser than alias but need to wrap the base pattern form.
func (p *Parser) parsePatternView() ast.Expr {
	pat := p.parsePatternBase()
	if p.at(token.ARROW) {
		p.advance(token.CtxPrefix)
		target := p.parsePatternBase()
		return &ast.ViewPattern{ExprBase: ast.ExprBase{Node: ast.Node{Span: pat.GetSpan()}}, View: pat, Pattern: target}
	}
	return pat
}

func (p *Parser) parsePatternBase() ast.Expr {
	start := p.cur.Span
	switch p.cur.Type {
	case token.IDENT:
		name := p.cur.Lexeme
		if name == "_" {
			p.advance(token.CtxInfix)
			return &ast.MatchAny{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}}
		}
		p.advance(token.CtxInfix)
		if p.at(token.LPAREN) {
			return p.parseTagPatternArgs(name, start)
		}
		if p.at(token.BANG) {
			p.advance(token.CtxInfix)
			return &ast.MatchNotNil{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}
		}
		if isTagLike(name) {
			return &ast.TagLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}
		}
		return &ast.Ident{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}
	case token.TAG:
		name := p.cur.Lexeme
		p.advance(token.CtxInfix)
		if p.at(token.LPAREN) {
			return p.parseTagPatternArgs(name, start)
		}
		return &ast.TagLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}
	case token.OPERATOR:
		if p.cur.Lexeme == "*" {
			p.advance(token.CtxPrefix)
			name := ""
			if p.at(token.IDENT) {
				name = p.cur.Lexeme
				p.advance(token.CtxInfix)
			}
			return &ast.SpreadPattern{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}
		}
		if p.cur.Lexeme == "^" {
			p.advance(token.CtxPrefix)
			name := p.cur.Lexeme
			p.advance(token.CtxInfix)
			return &ast.ResourcePattern{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}
		}
	case token.DOTDOT:
		p.advance(token.CtxPrefix)
		name := ""
		if p.at(token.IDENT) {
			name = p.cur.Lexeme
			p.advance(token.CtxInfix)
		}
		return &ast.MatchRest{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Name: name}
	case token.INT, token.REAL, token.STRING, token.KW_TRUE, token.KW_FALSE, token.KW_NIL, token.REGEX:
		return p.parsePrefixLiteral()
	case token.LBRACKET:
		return p.parseArrayPattern()
	case token.HASH:
		return p.parseDictPattern()
	case token.LPAREN:
		p.advance(token.CtxPrefix)
		inner := p.parsePattern()
		p.expect(token.RPAREN, token.CtxInfix)
		return inner
	}
	p.errorf("unexpected token %s in pattern", p.cur.Type)
	tok := p.advance(token.CtxInfix)
	return &ast.MatchAny{ExprBase: ast.ExprBase{Node: ast.Node{Span: tok.Span}}}
}

func (p *Parser) parseTagPatternArgs(name string, start token.Span) ast.Expr {
	p.advance(token.CtxPrefix) // consume '('
	var payload []ast.Expr
	var named []ast.DictEntry
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		if p.at(token.IDENT) {
			p.pushSave()
			fieldName := p.cur.Lexeme
			p.advance(token.CtxInfix)
			if p.at(token.COLON) {
				p.popSaveCommit()
				p.advance(token.CtxPrefix)
				v := p.parsePattern()
				named = append(named, ast.DictEntry{Key: &ast.StringLit{Value: fieldName}, Value: v})
				if p.at(token.COMMA) {
					p.advance(token.CtxPrefix)
				}
				continue
			}
			p.popSaveRestore()
		}
		payload = append(payload, p.parsePattern())
		if p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
		}
	}
	p.expect(token.RPAREN, token.CtxInfix)
	return &ast.TagPattern{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Tag: name, Payload: payload, Named: named}
}

func (p *Parser) parseArrayPattern() ast.Expr {
	start := p.cur.Span
	p.advance(token.CtxPrefix)
	var elems []ast.Expr
	var spreads []bool
	for !p.at(token.RBRACKET) && !p.at(token.EOF) {
		isSpread := false
		if p.at(token.OPERATOR) && p.cur.Lexeme == "*" {
			isSpread = true
		}
		if p.at(token.DOTDOT) {
			isSpread = true
		}
		elems = append(elems, p.parsePattern())
		spreads = append(spreads, isSpread)
		if p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
		}
	}
	p.expect(token.RBRACKET, token.CtxInfix)
	return &ast.ArrayLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Elements: elems, Spreads: spreads}
}

// parseDictPattern parses `#{ key: pattern, ... }`, the chosen surface
// syntax for both dict literals and dict patterns.
func (p *Parser) parseDictPattern() ast.Expr {
	start := p.cur.Span
	p.advance(token.CtxPrefix) // consume '#'
	p.expect(token.LBRACE, token.CtxPrefix)
	var entries []ast.DictEntry
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		var key ast.Expr
		if p.at(token.IDENT) || p.at(token.STRING) {
			keyStart := p.cur.Span
			keyText := p.cur.Lexeme
			p.advance(token.CtxInfix)
			key = &ast.StringLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: keyStart}}, Value: keyText}
		} else {
			key = p.parseExpression(PrecCompare)
		}
		p.expect(token.COLON, token.CtxPrefix)
		val := p.parsePattern()
		entries = append(entries, ast.DictEntry{Key: key, Value: val})
		if p.at(token.COMMA) {
			p.advance(token.CtxPrefix)
		}
	}
	p.expect(token.RBRACE, token.CtxInfix)
	return &ast.DictLit{ExprBase: ast.ExprBase{Node: ast.Node{Span: start}}, Entries: entries}
}
