// Package errors implements the location-carrying diagnostics used across
// every stage of the Ty front end and VM: the lexer, parser, compiler and
// VM all raise a *TyError rather than a bare Go error, so every failure
// can be rendered with a source caret.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a diagnostic, one per pipeline stage, plus Panic for
// internal invariant violations that must never be observable from user
// code.
type Kind string

const (
	LexError     Kind = "LexError"
	ParseError   Kind = "ParseError"
	CompileError Kind = "CompileError"
	RuntimeError Kind = "RuntimeError"
	Panic        Kind = "Panic"
)

// Location is a source position: line/column are 1-based, Offset is the
// 0-based byte offset into Source's buffer.
type Location struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("%d:%d", l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Frame is one entry of the call-stack trace attached to a runtime error.
type Frame struct {
	Function string
	Location Location
}

// TyError is the single error type raised by every core component. The
// Cause chain is built with github.com/pkg/errors so a lexer or I/O
// failure several layers down (a bad regex literal, a missing module
// file) keeps its original message instead of being collapsed into a
// generic string.
type TyError struct {
	Kind      Kind
	Message   string
	Location  Location
	Source    string // the offending source line, for caret rendering
	CallStack []Frame
	cause     error
	includes  []string // chain of module paths being compiled/imported
}

func (e *TyError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Message)
	if e.Location.File != "" || e.Location.Line != 0 {
		fmt.Fprintf(&sb, "\n  at %s", e.Location)
	}
	if e.Source != "" {
		fmt.Fprintf(&sb, "\n\n  %d | %s\n", e.Location.Line, e.Source)
		pad := strings.Repeat(" ", len(fmt.Sprintf("%d | ", e.Location.Line)))
		caret := pad
		if e.Location.Column > 0 {
			caret += strings.Repeat(" ", e.Location.Column-1)
		}
		sb.WriteString("  " + caret + "^")
	}
	for _, f := range e.CallStack {
		fmt.Fprintf(&sb, "\n  in %s (%s)", f.Function, f.Location)
	}
	if e.cause != nil {
		fmt.Fprintf(&sb, "\ncaused by: %v", e.cause)
	}
	return sb.String()
}

// Unwrap lets errors.Is/errors.As (stdlib or pkg/errors) see through to
// the underlying cause.
func (e *TyError) Unwrap() error { return e.cause }

func New(kind Kind, message string, loc Location) *TyError {
	return &TyError{Kind: kind, Message: message, Location: loc}
}

// Wrap attaches cause as the TyError's underlying reason, recording the
// chain with pkg/errors so %+v printing of the cause
// includes a stack trace from the call site that first observed cause.
func Wrap(kind Kind, message string, loc Location, cause error) *TyError {
	return &TyError{Kind: kind, Message: message, Location: loc, cause: pkgerrors.Wrap(cause, message)}
}

func (e *TyError) WithSource(line string) *TyError {
	e.Source = line
	return e
}

func (e *TyError) WithStack(stack []Frame) *TyError {
	e.CallStack = stack
	return e
}

func (e *TyError) PushFrame(function string, loc Location) *TyError {
	e.CallStack = append(e.CallStack, Frame{Function: function, Location: loc})
	return e
}

// WithInclude records that this error occurred while compiling/importing
// modulePath, building a chain-of-inclusion trail for diagnostics.
func (e *TyError) WithInclude(modulePath string) *TyError {
	e.includes = append([]string{modulePath}, e.includes...)
	return e
}

func (e *TyError) Includes() []string { return e.includes }

// Cause exposes the wrapped error the way pkg/errors.Cause would, for
// callers that want the root cause without the TyError envelope.
func (e *TyError) Cause() error {
	if e.cause == nil {
		return nil
	}
	return pkgerrors.Cause(e.cause)
}
