package compiler

import (
	"ty/internal/ast"
	"ty/internal/bytecode"
	"ty/internal/scope"
)

// compilePattern emits code that matches the single value currently on
// top of the stack against pat. On every path -- match or mismatch --
// it consumes exactly that one value, so callers that need to retry a
// different pattern against the same subject (match arms, ChoicePattern
// alternatives) must OpDup the subject before each attempt.
//
// A mismatch appends the patch address of the jump that bypasses the
// rest of this pattern's code to fails; the caller patches every
// collected address to wherever "try the next arm" should land.
func (c *Compiler) compilePattern(pat ast.Expr, fails *[]int) {
	span := pat.GetSpan()
	switch p := pat.(type) {
	case *ast.MatchAny:
		c.emit(bytecode.OpPop, span)

	case *ast.Placeholder:
		c.emit(bytecode.OpPop, span)

	case *ast.Ident:
		sym := c.declareOrReuse(p.Name, span)
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(sym.Slot))

	case *ast.MatchNotNil:
		sym := c.declareOrReuse(p.Name, span)
		c.emit(bytecode.OpTryAssignNonNil, span)
		c.chunk.WriteUint16(uint16(sym.Slot))
		at := c.chunk.Offset()
		c.chunk.WriteUint32(0)
		*fails = append(*fails, at)

	case *ast.IntLit, *ast.RealLit, *ast.StringLit, *ast.BoolLit, *ast.NilLit:
		c.compileExpr(pat)
		c.emit(bytecode.OpEq, span)
		at := c.emitJump(bytecode.OpJumpIfNot, span)
		*fails = append(*fails, at)

	case *ast.TagLit:
		tagID := c.tags.Intern(p.Name)
		c.emit(bytecode.OpTryTagPop, span)
		c.chunk.WriteUint32(uint32(tagID))
		at := c.chunk.Offset()
		c.chunk.WriteUint32(0)
		*fails = append(*fails, at)
		c.emit(bytecode.OpPop, span) // discard the (unit) payload

	case *ast.TagPattern:
		c.compileTagPattern(p, fails)

	case *ast.ArrayLit:
		c.compileArrayPattern(p, fails)

	case *ast.DictLit:
		c.compileDictPattern(p, fails)

	case *ast.AliasPattern:
		sym := c.declareOrReuse(p.Name, span)
		c.emit(bytecode.OpPopVar, span) // binds the subject and keeps it for the inner pattern
		c.chunk.WriteUint16(uint16(sym.Slot))
		c.compilePattern(p.Pattern, fails)

	case *ast.ChoicePattern:
		c.compileChoicePattern(p, fails)

	case *ast.ViewPattern:
		subj := c.declare(c.nextScratch(), scope.KindVar, span)
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(subj.Slot))
		c.compileExpr(p.View)
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(subj.Slot))
		c.emit(bytecode.OpCall, span)
		c.chunk.WriteUint16(1)
		c.chunk.WriteBool(false)
		c.compilePattern(p.Pattern, fails)

	case *ast.ResourcePattern:
		sym := c.declareOrReuse(p.Name, span)
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(sym.Slot))

	case *ast.RegexLit:
		idx := c.chunk.AddConstant(c.compileRegexConstant(p.Source, p.Flags, span))
		c.emit(bytecode.OpTryRegex, span)
		c.chunk.WriteUint32(idx)
		at := c.chunk.Offset()
		c.chunk.WriteUint32(0)
		*fails = append(*fails, at)

	case *ast.MatchRest, *ast.SpreadPattern:
		// Only meaningful as the trailing element of an array pattern;
		// compileArrayPattern handles those directly without recursing
		// here. Reaching this case means one appeared elsewhere.
		c.errorf(span, "rest pattern is only valid as the last element of an array pattern")
		c.emit(bytecode.OpPop, span)

	default:
		c.errorf(span, "unsupported pattern form %T", pat)
		c.emit(bytecode.OpPop, span)
	}
}

func (c *Compiler) compileTagPattern(p *ast.TagPattern, fails *[]int) {
	span := p.GetSpan()
	tagID := c.tags.Intern(p.Tag)
	c.emit(bytecode.OpTryTagPop, span)
	c.chunk.WriteUint32(uint32(tagID))
	at := c.chunk.Offset()
	c.chunk.WriteUint32(0)
	*fails = append(*fails, at)

	fields := p.Payload
	if len(p.Named) > 0 {
		for _, entry := range p.Named {
			fields = append(fields, entry.Value)
		}
	}
	switch len(fields) {
	case 0:
		c.emit(bytecode.OpPop, span)
	case 1:
		c.compilePattern(fields[0], fails)
	default:
		scratch := c.declare(c.nextScratch(), scope.KindVar, span)
		c.emit(bytecode.OpPushVar, span)
		c.chunk.WriteUint16(uint16(scratch.Slot))

		elemSlots := make([]int, len(fields))
		for i := range fields {
			c.emit(bytecode.OpLoadVar, span)
			c.chunk.WriteUint16(uint16(scratch.Slot))
			c.emit(bytecode.OpTryIndex, span)
			c.chunk.WriteUint16(uint16(i))
			elem := c.declare(c.nextScratch(), scope.KindVar, span)
			elemSlots[i] = elem.Slot
			c.emit(bytecode.OpPushVar, span) // consumes elem, leaves the peeked array copy
			c.chunk.WriteUint16(uint16(elem.Slot))
			c.emit(bytecode.OpPop, span) // discard that array copy
		}
		for i, f := range fields {
			c.emit(bytecode.OpLoadVar, span)
			c.chunk.WriteUint16(uint16(elemSlots[i]))
			c.compilePattern(f, fails)
		}
	}
}

// compileArrayPattern matches an array/tuple of exact or minimum length.
// Only a single rest element, and only in trailing position, is
// supported: the `[h, *t]` head/tail-split shape.
func (c *Compiler) compileArrayPattern(p *ast.ArrayLit, fails *[]int) {
	span := p.GetSpan()
	restIdx := -1
	for i, el := range p.Elements {
		switch el.(type) {
		case *ast.SpreadPattern, *ast.MatchRest:
			restIdx = i
		}
	}
	if restIdx >= 0 && restIdx != len(p.Elements)-1 {
		c.errorf(span, "array pattern rest element must come last")
	}
	minLen := len(p.Elements)
	if restIdx >= 0 {
		minLen--
	}

	scratch := c.declare(c.nextScratch(), scope.KindVar, span)
	c.emit(bytecode.OpPushVar, span)
	c.chunk.WriteUint16(uint16(scratch.Slot))

	c.emit(bytecode.OpLoadVar, span)
	c.chunk.WriteUint16(uint16(scratch.Slot))
	c.emit(bytecode.OpEnsureLen, span)
	c.chunk.WriteUint16(uint16(minLen))
	c.chunk.WriteBool(restIdx < 0)
	at := c.chunk.Offset()
	c.chunk.WriteUint32(0)
	*fails = append(*fails, at)
	c.emit(bytecode.OpPop, span) // EnsureLen only peeked; discard the probed copy

	for i := 0; i < minLen; i++ {
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(scratch.Slot))
		c.emit(bytecode.OpTryIndex, span)
		c.chunk.WriteUint16(uint16(i))
		elem := c.declare(c.nextScratch(), scope.KindVar, span)
		c.emit(bytecode.OpPushVar, span) // consumes elem, leaves the peeked array copy
		c.chunk.WriteUint16(uint16(elem.Slot))
		c.emit(bytecode.OpPop, span) // discard that array copy before matching
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(elem.Slot))
		c.compilePattern(p.Elements[i], fails)
	}

	if restIdx >= 0 {
		name := restPatternName(p.Elements[restIdx])
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(scratch.Slot))
		c.emit(bytecode.OpArrayRest, span)
		c.chunk.WriteUint16(uint16(minLen))
		if name == "" || name == "_" {
			c.emit(bytecode.OpPop, span)
		} else {
			sym := c.declareOrReuse(name, span)
			c.emit(bytecode.OpPushVar, span)
			c.chunk.WriteUint16(uint16(sym.Slot))
		}
	}
}

func restPatternName(e ast.Expr) string {
	switch p := e.(type) {
	case *ast.SpreadPattern:
		return p.Name
	case *ast.MatchRest:
		return p.Name
	}
	return ""
}

// compileDictPattern matches each key present in p against the scrutinee
// dict, binding the corresponding sub-pattern to dict[key].
func (c *Compiler) compileDictPattern(p *ast.DictLit, fails *[]int) {
	span := p.GetSpan()
	scratch := c.declare(c.nextScratch(), scope.KindVar, span)
	c.emit(bytecode.OpPushVar, span)
	c.chunk.WriteUint16(uint16(scratch.Slot))

	for _, entry := range p.Entries {
		c.emit(bytecode.OpLoadVar, span)
		c.chunk.WriteUint16(uint16(scratch.Slot))
		c.compileExpr(entry.Key)
		c.emit(bytecode.OpSubscript, span)
		c.compilePattern(entry.Value, fails)
	}
}

// compileChoicePattern tries each alternative in turn against its own
// OpDup'd copy of the subject, falling through to the next on mismatch
// and short-circuiting to the end on the first match.
func (c *Compiler) compileChoicePattern(p *ast.ChoicePattern, fails *[]int) {
	span := p.GetSpan()
	var successJumps []int
	for i, alt := range p.Alternatives {
		last := i == len(p.Alternatives)-1
		if !last {
			c.emit(bytecode.OpDup, span)
		}
		var localFails []int
		target := fails
		if !last {
			target = &localFails
		}
		c.compilePattern(alt, target)
		if !last {
			c.emit(bytecode.OpPop, span) // matched: drop the original kept for the next alternative
			successJumps = append(successJumps, c.emitJump(bytecode.OpJump, span))
			for _, f := range localFails {
				c.patch(f)
			}
		}
	}
	for _, j := range successJumps {
		c.patch(j)
	}
}
