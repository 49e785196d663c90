// Package token defines the tagged token representation shared by the
// lexer and parser.
package token

import "fmt"

type Type int

const (
	EOF Type = iota
	ERROR
	NEWLINE

	IDENT
	INT
	REAL
	STRING
	STRING_HEAD // interpolated-string fragment, more parts follow
	REGEX
	TAG // bare tag literal: Ok, Err, Some, None, ...

	// Keywords
	KW_FUNCTION
	KW_GENERATOR
	KW_RETURN
	KW_YIELD
	KW_IF
	KW_ELSE
	KW_WHILE
	KW_FOR
	KW_IN
	KW_MATCH
	KW_LET
	KW_CONST
	KW_PUB
	KW_IMPORT
	KW_EXPORT
	KW_USE
	KW_TAG
	KW_CLASS
	KW_TRAIT
	KW_TYPE
	KW_TRUE
	KW_FALSE
	KW_NIL
	KW_TRY
	KW_CATCH
	KW_FINALLY
	KW_THROW
	KW_DEFER
	KW_CLEANUP
	KW_DROP
	KW_BREAK
	KW_CONTINUE
	KW_NEXT
	KW_SELF
	KW_SUPER
	KW_OPERATOR
	KW_MACRO
	KW_EVAL
	KW_DEFINED
	KW_TYPEOF
	KW_WITH
	KW_AS
	KW_WHERE
	KW_STATIC
	KW_GET
	KW_SET
	KW_HALT

	// Punctuation / operators (fixed, always recognized regardless of the
	// user operator table)
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	COMMA
	SEMI
	COLON
	DOUBLE_COLON // check-match token, ::
	ARROW        // ->
	FAT_ARROW    // =>
	DOT
	DOTDOT   // ..
	DOTDOTEQ // ..=
	QUESTION
	QUESTION_DOT // ?.
	BANG
	AMP
	HASH
	DOLLAR
	CARET_ARROW // ~>
	CARET_ARROW_Q // $~>
	AT          // @ (macro invocation marker)
	STAR_PREFIX // leading * as splat in a pattern/param list position

	EQ
	MAYBE_EQ // ?=

	DOLLAR_PAREN // $( template hole
	DOLLAR_BRACE // ${ template hole
	DOLLAR_COLON // $: type-hole

	// Lexed generically from the operator character class; Lexeme carries
	// the exact text (">>=" , "<~>", a user-defined symbolic operator...).
	OPERATOR

	DIRECTIVE // $if / $while preprocessor directive head
	HIDDEN    // token skipped by a false preprocessor branch
)

// Context records how a token was requested from the lexer: PREFIX vs.
// INFIX position decides whether '/' starts a regex literal, and FMT/NAME are used while rescanning inside format
// specs and method-name position respectively.
type Context int

const (
	CtxPrefix Context = iota
	CtxInfix
	CtxFmt
	CtxXFmt
	CtxName
	CtxFake
	CtxHidden
)

// Span is the half-open [Start, End) byte range a token or AST node
// occupies in its source buffer. A span with Synthetic=true renders as
// "<synthetic>"; the lexer, parser and macro expander never set it
// (macro-expanded nodes keep the spans of the nodes they were built from).
type Span struct {
	File      string
	StartLine, StartCol, StartOff int
	EndLine, EndCol, EndOff       int
	Synthetic bool
}

func (s Span) String() string {
	if s.Synthetic {
		return "<synthetic>"
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.StartLine, s.StartCol)
}

// Token is the tagged representation emitted by the lexer.
type Token struct {
	Type    Type
	Lexeme  string
	Module  string // module qualifier before :: for IDENT, if any
	Span    Span
	Context Context

	Preprocessor  bool // produced while evaluating/skipping a $if/$while
	LeadingNewline bool

	// Not set by the lexer; it is always empty. An interpolation hole's
	// format spec (the expression after ':') is parsed into
	// ast.StringPart.FormatSpec instead.
	FormatSpec string

	// Populated for REGEX: the flag letters written after the closing
	// '/'. The pattern itself is the Lexeme; no compiled regex is attached.
	RegexFlags string
}

func (t Token) String() string {
	return fmt.Sprintf("%v(%q)@%s", t.Type, t.Lexeme, t.Span)
}

var keywords = map[string]Type{
	"function": KW_FUNCTION, "generator": KW_GENERATOR, "return": KW_RETURN,
	"yield": KW_YIELD, "if": KW_IF, "else": KW_ELSE, "while": KW_WHILE,
	"for": KW_FOR, "in": KW_IN, "match": KW_MATCH, "let": KW_LET,
	"const": KW_CONST, "pub": KW_PUB, "import": KW_IMPORT, "export": KW_EXPORT,
	"use": KW_USE, "tag": KW_TAG, "class": KW_CLASS, "trait": KW_TRAIT,
	"type": KW_TYPE, "true": KW_TRUE, "false": KW_FALSE, "nil": KW_NIL,
	"try": KW_TRY, "catch": KW_CATCH, "finally": KW_FINALLY, "throw": KW_THROW,
	"defer": KW_DEFER, "cleanup": KW_CLEANUP, "drop": KW_DROP, "break": KW_BREAK,
	"continue": KW_CONTINUE, "next": KW_NEXT, "self": KW_SELF, "super": KW_SUPER,
	"operator": KW_OPERATOR, "macro": KW_MACRO, "eval": KW_EVAL,
	"defined": KW_DEFINED, "typeof": KW_TYPEOF, "with": KW_WITH, "as": KW_AS,
	"where": KW_WHERE, "static": KW_STATIC, "get": KW_GET, "set": KW_SET,
	"halt": KW_HALT,
}

// LookupKeyword returns the keyword token type for text, or (IDENT,
// false) when text is an ordinary identifier.
func LookupKeyword(text string) (Type, bool) {
	t, ok := keywords[text]
	return t, ok
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

var typeNames = func() map[Type]string {
	m := map[Type]string{
		EOF: "EOF", ERROR: "ERROR", NEWLINE: "NEWLINE", IDENT: "IDENT",
		INT: "INT", REAL: "REAL", STRING: "STRING", STRING_HEAD: "STRING_HEAD",
		REGEX: "REGEX", TAG: "TAG", OPERATOR: "OPERATOR", DIRECTIVE: "DIRECTIVE",
		HIDDEN: "HIDDEN",
	}
	for k, v := range keywords {
		m[v] = "KW_" + k
	}
	return m
}()
