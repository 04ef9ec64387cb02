// Package ectx defines EvaluatorContext, the small value type threaded
// through every call into the evaluator (§3). It is copied freely: it
// carries no owning pointers, only a scope tag, a handful of flags, and
// borrowed references (definition name, module pointer) that are cheap to
// copy by value.
package ectx

import (
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/token"
)

// Scope controls how bare symbols are evaluated.
type Scope int

const (
	// Module is the top level of a file: invocations are dispatched,
	// symbols are not valid on their own.
	Module Scope = iota
	// Body is inside a function/statement body.
	Body
	// ExpressionsOnly means every token, including bare symbols, is
	// evaluated as an expression (e.g. inside a call's argument list).
	ExpressionsOnly
)

// Context is copied by value at every call site; it must stay small.
type Context struct {
	Scope Scope

	IsRequired bool

	// DefinitionName is the enclosing ObjectDefinition's name, or "" for
	// top-level (module-scope) invocations, which are attributed to the
	// global pseudo-object.
	DefinitionName string

	// ResolvingReference, when non-empty, names the reference currently
	// being re-resolved; it suppresses the dispatcher from recording a new
	// self-reference for that same name while re-evaluating a splice
	// point (§4.H).
	ResolvingReference string

	// Module is an opaque handle identifying which module/file this
	// context belongs to; it is never dereferenced by this package.
	Module interface{}

	// Delimiter, when its Text or Modifiers make it "syntactic" (§4.E),
	// is inserted between siblings during list-style evaluation.
	Delimiter output.Op

	// ResolvingToken is the blame token for the reference being
	// re-resolved, used only for diagnostics.
	ResolvingToken token.Token
}

// WithDefinition returns a copy of c scoped to the named definition.
func (c Context) WithDefinition(name string) Context {
	c.DefinitionName = name
	return c
}

// WithScope returns a copy of c with a different Scope.
func (c Context) WithScope(s Scope) Context {
	c.Scope = s
	return c
}

// WithDelimiter returns a copy of c with a new sibling delimiter template.
func (c Context) WithDelimiter(op output.Op) Context {
	c.Delimiter = op
	return c
}

// Resolving returns a copy of c marked as resolving the given reference,
// so the dispatcher suppresses re-recording a reference to the same name
// from the same definition.
func (c Context) Resolving(name string, tok token.Token) Context {
	c.ResolvingReference = name
	c.ResolvingToken = tok
	return c
}

// IsSyntacticDelimiter reports whether the context's delimiter carries its
// own content (non-empty text, or a modifier other than a bare newline)
// and must therefore always be emitted between siblings, never suppressed
// around a no-op sibling (§4.E).
func (c Context) IsSyntacticDelimiter() bool {
	d := c.Delimiter
	if d.Text != "" {
		return true
	}
	return d.Modifiers&^output.NewlineAfter != 0
}
