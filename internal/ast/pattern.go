package ast

// Patterns reuse the Expr interface. The node kinds below exist only in
// pattern position and have no other expression meaning, mirroring how
// parser overlays pattern parsing on its expression parser
// rather than building a wholly separate AST.

// MatchAny is the wildcard pattern `_`.
type MatchAny struct{ ExprBase }

// MatchNotNil is `x!` in pattern position: binds x but fails the match
// if the value is nil.
type MatchNotNil struct {
	ExprBase
	Name string
}

// MatchRest is the `...rest` tail-capture inside an array or tuple
// pattern.
type MatchRest struct {
	ExprBase
	Name string // "" for an anonymous `...`
}

// AliasPattern is `pattern as name`, binding the whole matched value to
// name in addition to whatever pattern destructures.
type AliasPattern struct {
	ExprBase
	Pattern Expr
	Name    string
}

// TagPattern matches a tagged value and destructures its payload:
// `Some(x)`, `Pair(a, b)`, `Err(msg: m)`.
type TagPattern struct {
	ExprBase
	Tag     string
	Payload []Expr
	Named   []DictEntry // keyword-destructured payload fields
}

// ViewPattern applies a function to the scrutinee before matching the
// result against Pattern: `x where double(x) > 10`-style active
// patterns, written `f(x) -> Pattern` in the surface grammar.
type ViewPattern struct {
	ExprBase
	View    Expr
	Pattern Expr
}

// ChoicePattern is `PatternA | PatternB | ...`, matching if any
// alternative matches; alternatives must bind the same names.
type ChoicePattern struct {
	ExprBase
	Alternatives []Expr
}

// ResourcePattern binds a `with`-style managed resource in a pattern
// position, `^name`, distinguishing a fresh bind from ResourceBinding's
// use of an existing one in expression position.
type ResourcePattern struct {
	ExprBase
	Name string
}

// SpreadPattern is `*name` used as a pattern, capturing a mid-sequence
// run rather than only the tail (MatchRest covers trailing-only rest).
type SpreadPattern struct {
	ExprBase
	Name string
}

func (e *MatchAny) Accept(v ExprVisitor) any         { return v.VisitMatchAny(e) }
func (e *MatchNotNil) Accept(v ExprVisitor) any      { return v.VisitMatchNotNil(e) }
func (e *MatchRest) Accept(v ExprVisitor) any        { return v.VisitMatchRest(e) }
func (e *AliasPattern) Accept(v ExprVisitor) any     { return v.VisitAliasPattern(e) }
func (e *TagPattern) Accept(v ExprVisitor) any       { return v.VisitTagPattern(e) }
func (e *ViewPattern) Accept(v ExprVisitor) any      { return v.VisitViewPattern(e) }
func (e *ChoicePattern) Accept(v ExprVisitor) any    { return v.VisitChoicePattern(e) }
func (e *ResourcePattern) Accept(v ExprVisitor) any  { return v.VisitResourcePattern(e) }
func (e *SpreadPattern) Accept(v ExprVisitor) any    { return v.VisitSpreadPattern(e) }
