package eval

import (
	"fmt"

	"github.com/kestrellang/kestrel/diag"
	"github.com/kestrellang/kestrel/token"
)

// wrapErr promotes a raw error (possibly a token.Positioner) into a
// diag.ErrorWithPos, falling back to fallback when err carries no position
// of its own.
func wrapErr(err error, fallback token.Pos) diag.ErrorWithPos {
	return diag.FromPositioner(err, fallback)
}

// UnhandledTokenTypeError is reported when evaluate() is asked to handle a
// token kind it has no case for in the current scope (§4.E, §7).
type UnhandledTokenTypeError struct {
	Tok token.Token
}

func (e *UnhandledTokenTypeError) Error() string {
	return fmt.Sprintf("unhandled token type %v in non-expression scope", e.Tok.Kind)
}
func (e *UnhandledTokenTypeError) Pos() token.Pos { return e.Tok.Pos }

// GeneratorReportedFailureError wraps a macro/generator failure, always
// blamed at the invocation token (§7). Note, when set, holds the
// paren-validation error for a macro's expansion; the produced tokens
// themselves are not printed.
type GeneratorReportedFailureError struct {
	Name string
	At   token.Token
	Note string
}

func (e *GeneratorReportedFailureError) Error() string {
	msg := fmt.Sprintf("%q reported failure", e.Name)
	if e.Note != "" {
		msg += ": " + e.Note
	}
	return msg
}
func (e *GeneratorReportedFailureError) Pos() token.Pos { return e.At.Pos }

// InfiniteLoopSuspectedError is raised when a single name accumulates more
// than 2^13 references, bounding the fixpoint per §8.
type InfiniteLoopSuspectedError struct {
	Name    string
	Samples []token.Token
}

func (e *InfiniteLoopSuspectedError) Error() string {
	return fmt.Sprintf("infinite loop? %q has more than %d references", e.Name, maxReferencesPerName)
}
func (e *InfiniteLoopSuspectedError) Pos() token.Pos {
	if len(e.Samples) > 0 {
		return e.Samples[0].Pos
	}
	return token.Pos{}
}
