// Package diag implements the error-handling design of §7: positioned
// errors that never short-circuit a pass, a note channel that never raises
// the error count, and the AlreadyDefinedError / duplicate-definition shape.
package diag

import (
	"fmt"

	"github.com/kestrellang/kestrel/token"
)

// ErrorWithPos is an error tied to the source position that caused it.
// Every error surfaced by the evaluator implements this (§7: "every error
// carries the (file, line, column) of the blame token").
type ErrorWithPos interface {
	error
	Position() token.Pos
	Unwrap() error
}

type errorWithPos struct {
	pos        token.Pos
	underlying error
}

func (e errorWithPos) Error() string {
	if e.pos.IsValid() {
		return fmt.Sprintf("%s: %v", e.pos, e.underlying)
	}
	return e.underlying.Error()
}

func (e errorWithPos) Position() token.Pos { return e.pos }
func (e errorWithPos) Unwrap() error       { return e.underlying }

var _ ErrorWithPos = errorWithPos{}

// Error wraps err with a blame position.
func Error(pos token.Pos, err error) ErrorWithPos {
	return errorWithPos{pos: pos, underlying: err}
}

// Errorf builds an ErrorWithPos from a format string, like fmt.Errorf.
func Errorf(pos token.Pos, format string, args ...interface{}) ErrorWithPos {
	return errorWithPos{pos: pos, underlying: fmt.Errorf(format, args...)}
}

// Positioner is implemented by the low-level errors produced deeper in the
// stack (e.g. token.UnbalancedParensError) that know their own blame
// position without being wrapped in an errorWithPos.
type Positioner interface {
	Pos() token.Pos
}

// FromPositioner promotes any error implementing Positioner into an
// ErrorWithPos, otherwise wraps it at pos.
func FromPositioner(err error, fallback token.Pos) ErrorWithPos {
	if p, ok := err.(Positioner); ok {
		return errorWithPos{pos: p.Pos(), underlying: err}
	}
	return Error(fallback, err)
}

// AlreadyDefinedError is returned by the definition graph's addDefinition
// when name collides with an existing ObjectDefinition or a built-in
// macro/generator/compile-time-function (§4.C — DuplicateDefinition).
type AlreadyDefinedError struct {
	Name               string
	IsBuiltin          bool
	PreviousDefinition token.Pos
}

func (e *AlreadyDefinedError) Error() string {
	if e.IsBuiltin {
		return fmt.Sprintf("%q is already defined as a built-in", e.Name)
	}
	return fmt.Sprintf("%q already defined at %s", e.Name, e.PreviousDefinition)
}

// UnresolvedReferenceError is reported at the final-check pass (§4 control
// loop's finalCheck) for any required reference left in guess state None,
// or whose referent is still not loaded.
type UnresolvedReferenceError struct {
	Name string
	At   token.Pos
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference to %q", e.Name)
}
func (e *UnresolvedReferenceError) Pos() token.Pos { return e.At }

// SignatureMismatchError is reported when a compile-time function used as
// a hook or comptime-variable destructor has a parameter list different
// from the one expected (§4.I, §7).
type SignatureMismatchError struct {
	FunctionName string
	Expected     []string
	Got          []string
	At           token.Pos
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("%q has signature %v, expected %v", e.FunctionName, e.Got, e.Expected)
}
func (e *SignatureMismatchError) Pos() token.Pos { return e.At }

// ComptimeBuildFailureError wraps a compile/link/load failure for a single
// definition (§4.G, §7).
type ComptimeBuildFailureError struct {
	DefinitionName string
	Stage          string // "compile", "link", "load", or "generator"
	Err            error
	At             token.Pos
}

func (e *ComptimeBuildFailureError) Error() string {
	return fmt.Sprintf("%s failed for %q: %v", e.Stage, e.DefinitionName, e.Err)
}
func (e *ComptimeBuildFailureError) Unwrap() error { return e.Err }
func (e *ComptimeBuildFailureError) Pos() token.Pos { return e.At }

// InternalInvariantError marks a bug: a state the control loop should
// never reach (e.g. a resolved reference whose kind is neither Splice nor
// AlreadyLoaded). These are not user-facing; surfacing one always means a
// defect in this module.
type InternalInvariantError struct {
	Message string
}

func (e *InternalInvariantError) Error() string { return "internal invariant violated: " + e.Message }
