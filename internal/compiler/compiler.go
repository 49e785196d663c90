// Package compiler lowers a Ty AST (internal/ast) into bytecode
// (internal/bytecode). It drives internal/scope for lexical binding and
// closure capture, and internal/compiler/pattern.go for destructuring
// and match-arm compilation. The overall shape -- a Compiler struct
// walking statements and expressions, emitting into a *bytecode.Chunk,
// with a forward-reference hoisting pass over top-level definitions --
// generalizes a two-pass hoisting compiler to any top-level form
// instead of just functions.
//
// Operand encoding is this package's own invention, since
// internal/bytecode/opcodes.go only names the instruction set: every
// multi-byte operand is little-endian via bytecode.Chunk's Write*
// helpers, and OpFunction's operand is an index into the *outer*
// chunk's constant pool holding a *FuncTemplate (this package's type,
// not value.Function -- the same template is shared by every closure
// created from it, with each instantiation getting its own captured
// RefVector at OpFunction execution time).
package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"ty/internal/ast"
	"ty/internal/bytecode"
	tyerrors "ty/internal/errors"
	"ty/internal/module"
	"ty/internal/scope"
	"ty/internal/token"
	"ty/internal/value"
)

// CaptureSource tells the VM where to read a closure's i-th captured
// slot from when instantiating it: either the enclosing frame's own
// locals, or (for a capture chain more than one function deep) the
// enclosing frame's own captured-env vector.
type CaptureSource struct {
	FromCapture bool // true: read enclosingFrame.Env.Slots[Index]; false: read enclosingFrame.Locals[Index]
	Index       int
}

// FuncTemplate is the compile-time representation of one function body,
// shared by every runtime closure instantiated from it (each gets its
// own value.RefVector of captured slots; see OpFunction in vm).
type FuncTemplate struct {
	Name        string
	Chunk       *bytecode.Chunk
	NumSlots    int // total local slot count this function's frame needs
	Params      []value.ParamInfo
	RestIndex   int
	KwargsIndex int
	IsGenerator bool
	Captures    []CaptureSource
	SelfSlot    int // slot bound to the function's own value for self-recursion, -1 if none
}

// Compiler holds per-function compilation state. A fresh Compiler is
// created for the module top level and for every nested function body
// (sharing the TagTable and Loader, which are process/run-wide).
type Compiler struct {
	chunk *bytecode.Chunk
	sc    *scope.Scope
	tags  *value.TagTable
	loader *module.Loader

	filePath string
	dir      string

	parent      *Compiler
	activeLoops []*loopPatch

	scratchCounter int

	Errors []*tyerrors.TyError
}

// nextScratch returns a fresh name for a compiler-internal local slot.
// The '#' prefix can never collide with a user identifier.
func (c *Compiler) nextScratch() string {
	c.scratchCounter++
	return fmt.Sprintf("#pat%d", c.scratchCounter)
}

// NewModuleCompiler starts a compiler for one module's top-level code.
// The root scope predeclares BuiltinNames first so their slots line up
// with vm.SeedBuiltins, then hoist/compileStmt add the module's own
// names on top.
func NewModuleCompiler(filePath, dir string, tags *value.TagTable, loader *module.Loader) *Compiler {
	c := &Compiler{
		chunk:    bytecode.NewChunk(),
		sc:       scope.NewRoot(),
		tags:     tags,
		loader:   loader,
		filePath: filePath,
		dir:      dir,
	}
	for _, name := range BuiltinNames {
		c.sc.Add(name, scope.KindVar, 0, 0)
	}
	return c
}

func (c *Compiler) errorf(span token.Span, format string, args ...any) {
	loc := tyerrors.Location{File: c.filePath, Line: span.StartLine, Column: span.StartCol, Offset: span.StartOff}
	c.Errors = append(c.Errors, tyerrors.New(tyerrors.CompileError, fmt.Sprintf(format, args...), loc))
}

// child opens a Compiler for a nested function body, sharing the
// process-wide tag table and module loader but with its own chunk and a
// child lexical scope (a fresh function boundary).
func (c *Compiler) child() *Compiler {
	return &Compiler{
		chunk:    bytecode.NewChunk(),
		sc:       c.sc.NewChild(true),
		tags:     c.tags,
		loader:   c.loader,
		filePath: c.filePath,
		dir:      c.dir,
		parent:   c,
	}
}

// ModuleArtifact is what CompileModule hands the loader: the compiled
// chunk plus the slot each publicly-exported name ends up bound to in
// the module's top-level Env, so `import`/`use` can build a namespace
// value out of a module's execution without the VM needing to walk a
// scope tree (module.Compiled.Artifact is typed any precisely so a
// consumer like the VM can hold a concrete, richer type like this one).
type ModuleArtifact struct {
	Chunk   *bytecode.Chunk
	Exports map[string]int // exported name -> slot in the module's top-level Env
}

// CompileModule compiles prog into a top-level chunk (a module
// initializer), hoisting top-level function/tag/class/trait names first
// so later-in-file definitions can be called from earlier statements,
// generalizing a HoistingCompiler's two-pass shape to any top-level
// form instead of just functions.
func CompileModule(prog *ast.Program, filePath, dir string, tags *value.TagTable, loader *module.Loader) (*ModuleArtifact, []*tyerrors.TyError) {
	c := NewModuleCompiler(filePath, dir, tags, loader)
	stmts := expandMacros(prog.Stmts)
	c.hoist(stmts)
	for _, s := range stmts {
		c.compileStmt(s)
	}
	c.chunk.Emit(bytecode.OpHalt, token.Span{})
	c.chunk.NumSlots = c.sc.SlotCount()
	c.chunk.Seal()

	exports := map[string]int{}
	for _, sym := range c.sc.Public() {
		exports[sym.Name] = sym.Slot
	}
	return &ModuleArtifact{Chunk: c.chunk, Exports: exports}, c.Errors
}

// hoist pre-declares every top-level function/tag/class/trait name in
// c.sc before any statement is compiled, so a call to a function
// defined later in the same file resolves instead of raising an
// undefined-variable compile error.
func (c *Compiler) hoist(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch st := s.(type) {
		case *ast.FunctionDefStmt:
			c.declare(st.Fn.Name, scope.KindVar, st.GetSpan())
		case *ast.TagDefStmt:
			c.declare(st.Name, scope.KindVar, st.GetSpan())
			for _, v := range st.Variants {
				c.tags.Intern(v.Name)
			}
		case *ast.ClassDefStmt:
			c.declare(st.Name, scope.KindVar, st.GetSpan())
		case *ast.TraitDefStmt:
			c.declare(st.Name, scope.KindVar, st.GetSpan())
		}
	}
}

func (c *Compiler) declare(name string, kind scope.Kind, span token.Span) *scope.Symbol {
	sym, ok := c.sc.Add(name, kind, span.StartLine, span.StartCol)
	if !ok {
		c.errorf(span, "redeclaration of %q in the same scope", name)
		sym, _ = c.sc.Lookup(name)
	}
	return sym
}

// declareOrReuse declares name fresh unless it is already declared
// directly in the current scope, in which case it returns the existing
// symbol. Pattern compilation uses this instead of declare so that a
// ChoicePattern's alternatives share one slot per name rather than colliding as
// redeclarations.
func (c *Compiler) declareOrReuse(name string, span token.Span) *scope.Symbol {
	if name == "_" {
		return c.declare(name, scope.KindVar, span)
	}
	if sym, ok := c.sc.Lookup(name); ok && c.sc.LocallyDefined(name) {
		return sym
	}
	return c.declare(name, scope.KindVar, span)
}

func (c *Compiler) emit(op bytecode.OpCode, span token.Span) int { return c.chunk.Emit(op, span) }

// emitJump reserves a uint32 offset field after op and returns the
// patch address for a later PatchJump call.
func (c *Compiler) emitJump(op bytecode.OpCode, span token.Span) int {
	c.emit(op, span)
	at := c.chunk.Offset()
	c.chunk.WriteUint32(0)
	return at
}

func (c *Compiler) patch(at int) { c.chunk.PatchJump(at) }

// compileRegexConstant compiles source/flags ahead of time so a
// malformed pattern is a compile error rather than a runtime panic on
// first match. "i" maps to Go's inline (?i) case-fold flag; other
// flag letters are accepted and stored but have no Go regexp
// equivalent to apply.
func (c *Compiler) compileRegexConstant(source, flags string, span token.Span) *value.Regex {
	pattern := source
	if strings.Contains(flags, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		c.errorf(span, "invalid regex literal /%s/: %v", source, err)
	}
	return &value.Regex{Source: source, Flags: flags, Compiled: re}
}

// ownFn walks s outward to its nearest function-boundary ancestor
// (including s itself).
func ownFn(s *scope.Scope) *scope.Scope {
	for s != nil && !s.FunctionBoundary {
		s = s.Parent
	}
	return s
}

// captureSourceFor determines, for one symbol in fnScope's own captured
// list, whether fnScope's closures read it from their immediate
// parent frame's locals (the symbol is declared directly in that
// parent function) or from that parent's own captured-env vector (the
// symbol lives further out still, and the parent itself captures it).
func captureSourceFor(fnScope *scope.Scope, sym *scope.Symbol) CaptureSource {
	parentFn := ownFn(fnScope.Parent)
	declFn := ownFn(sym.Scope)
	if declFn == parentFn {
		return CaptureSource{FromCapture: false, Index: sym.Slot}
	}
	for i, s := range parentFn.Captured() {
		if s == sym {
			return CaptureSource{FromCapture: true, Index: i}
		}
	}
	// Unreachable if LookupAndCapture's chain walk ran correctly: every
	// intermediate boundary between declFn and fnScope registers sym.
	return CaptureSource{FromCapture: true, Index: -1}
}

func (c *Compiler) openScope(functionBoundary bool) *scope.Scope {
	old := c.sc
	c.sc = c.sc.NewChild(functionBoundary)
	return old
}

func (c *Compiler) closeScope(old *scope.Scope) { c.sc = old }
