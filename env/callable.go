// Package env implements EvaluatorEnvironment (§3): the table of macros,
// generators and compile-time functions, compile-time variables, hook
// lists, named splice points, and the small set of global counters and
// flags the control loop threads through a build.
//
// Per the "vtable-ish dispatch" design note (§9), the three callable kinds
// are represented as a single tagged variant over function values rather
// than through an interface-per-kind inheritance hierarchy.
package env

import (
	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/token"
)

// Evaluator is the subset of the recursive evaluator (§4.E) that a
// built-in or dynamically-loaded Callable needs to call back into, kept as
// an interface here so that package env does not import package eval
// (which must import env for its tables) — avoiding an import cycle.
type Evaluator interface {
	// EvaluateAll evaluates expressions starting at index until the
	// matching CloseParen, returning the index of that CloseParen.
	EvaluateAll(tokens *token.Vector, index int, ctx ectx.Context, out *output.Tree) (next int, errCount int)
	// Evaluate evaluates exactly one expression at index.
	Evaluate(tokens *token.Vector, index int, ctx ectx.Context, out *output.Tree) (next int, errCount int)
}

// Invocation describes one call site passed to a Callable: the token
// vector, the index of its opening paren, and the context it was
// encountered in.
type Invocation struct {
	Tokens  *token.Vector
	Open    int
	Context ectx.Context
}

// Head returns the invocation's head symbol token (tokens[Open+1]).
func (inv Invocation) Head() token.Token {
	return inv.Tokens.At(inv.Open + 1)
}

// MacroFunc expands an invocation into a fresh token vector. The returned
// bool is the macro's success flag (§4.D): on false the invocation is
// reported as a GeneratorReportedFailure.
type MacroFunc func(e Evaluator, inv Invocation) (*token.Vector, bool)

// GeneratorFunc emits directly into the enclosing Output.
type GeneratorFunc func(e Evaluator, inv Invocation, out *output.Tree) error

// CompileTimeFunc is a user-defined function available to other
// compile-time code (macros, generators, hooks, destructors). Its
// signature is intentionally opaque (interface{} in, interface{} out)
// since, like the source system, argument/result shapes vary per
// function; callers agree on shape out of band.
type CompileTimeFunc func(args ...interface{}) (interface{}, error)

// CallableKind tags which of the three function fields on Callable is
// populated.
type CallableKind int

const (
	CallMacro CallableKind = iota
	CallGenerator
	CallCompileTime
)

// Callable is the tagged variant dispatched by name (§4.D, §9).
type Callable struct {
	Kind CallableKind

	Macro       MacroFunc
	Generator   GeneratorFunc
	CompileTime CompileTimeFunc

	// ParamTypeTokens is used to validate this callable's signature when
	// it is registered as a hook or comptime-variable destructor (§4.I).
	ParamTypeTokens []token.Token

	// Name is kept for diagnostics.
	Name string
}
