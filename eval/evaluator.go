// Package eval implements the recursive evaluator of §4.E: the invocation
// dispatcher (§4.D), required-ness propagation (§4.F), the reference
// resolver (§4.H), and the built-in macros/generators that dispatch through
// them. Built-ins live here rather than in a separate package so that they
// can call back into evaluation without introducing an eval<->builtin
// import cycle; package env stays beneath both by exposing only the
// minimal env.Evaluator interface.
package eval

import (
	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/env"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/token"
)

// maxReferencesPerName bounds the resolver's per-name fixpoint (§8): past
// this many references from a single call site pattern, something is
// almost certainly generating references forever rather than converging.
const maxReferencesPerName = 1 << 13

// Evaluator is the concrete recursive evaluator, implementing
// env.Evaluator so built-in and dynamically-loaded Callables can call back
// into it without depending on this package directly.
type Evaluator struct {
	Env *env.Environment
}

// New constructs an Evaluator over e, registering the built-in macros and
// generators (defun, defvar, defmacro, defgenerator, tokenize-push,
// token-splice, gensym — see builtins.go).
func New(e *env.Environment) *Evaluator {
	ev := &Evaluator{Env: e}
	registerBuiltins(e)
	return ev
}

var _ env.Evaluator = (*Evaluator)(nil)

// EvaluateAll evaluates sibling expressions starting at index, inserting
// ctx's sibling delimiter between siblings, until it reaches a CloseParen
// (the end of the enclosing invocation's body) or the end of the vector.
// It returns the index of that terminator.
//
// Per §4.E branch (a): a syntactic delimiter — one with real separator
// text or a modifier other than a line break — is placed between every
// pair of siblings, even when one side is a no-op. A purely cosmetic
// newline-only delimiter is suppressed around a no-op sibling instead, so
// no-op siblings don't leave behind blank lines.
func (ev *Evaluator) EvaluateAll(tokens *token.Vector, index int, ctx ectx.Context, out *output.Tree) (int, int) {
	errCount := 0
	started := false
	prevWroteSomething := false
	syntactic := ctx.IsSyntacticDelimiter()
	for index < tokens.Len() && tokens.At(index).Kind != token.CloseParen {
		if started && (syntactic || prevWroteSomething) {
			ev.emitDelimiter(ctx, out)
		}
		before := len(out.Source)
		next, ec := ev.Evaluate(tokens, index, ctx, out)
		errCount += ec
		prevWroteSomething = false
		for _, op := range out.Source[before:] {
			if op.IsMeaningful() {
				prevWroteSomething = true
				break
			}
		}
		started = true
		index = next
	}
	return index, errCount
}

func (ev *Evaluator) emitDelimiter(ctx ectx.Context, out *output.Tree) {
	if ctx.Delimiter.Kind == output.OpLiteral && ctx.Delimiter.Text == "" && ctx.Delimiter.Modifiers == 0 {
		return
	}
	out.AppendSource(ctx.Delimiter)
}

// Evaluate evaluates exactly one expression at index (§4.E) and returns the
// index immediately following it.
func (ev *Evaluator) Evaluate(tokens *token.Vector, index int, ctx ectx.Context, out *output.Tree) (int, int) {
	tok := tokens.At(index)
	switch tok.Kind {
	case token.OpenParen:
		closeIdx := token.FindCloseParen(tokens, index)
		if err := ev.dispatch(tokens, index, ctx, out); err != nil {
			ev.handleErr(err, tok.Pos)
			return closeIdx + 1, 1
		}
		return closeIdx + 1, 0

	case token.CloseParen:
		return index, 0

	case token.Symbol:
		if ctx.Scope != ectx.ExpressionsOnly {
			ev.handleErr(&UnhandledTokenTypeError{Tok: tok}, tok.Pos)
			return index + 1, 1
		}
		ev.evaluateSymbol(tok, out)
		return index + 1, 0

	case token.String:
		if ctx.Scope != ectx.ExpressionsOnly {
			ev.handleErr(&UnhandledTokenTypeError{Tok: tok}, tok.Pos)
			return index + 1, 1
		}
		out.AppendSource(output.Literal(tok.Text, output.SurroundWithQuotes))
		return index + 1, 0

	default:
		ev.handleErr(&UnhandledTokenTypeError{Tok: tok}, tok.Pos)
		return index + 1, 1
	}
}

// evaluateSymbol applies the special-case literal mappings (§4.E): `null`
// becomes `nullptr`, numeric and quote-prefixed literals are emitted
// verbatim, everything else gets the identifier-conversion modifier applied
// at write time.
func (ev *Evaluator) evaluateSymbol(tok token.Token, out *output.Tree) {
	switch {
	case tok.Text == "null":
		out.AppendSource(output.Literal("nullptr", 0))
	case isLiteralLike(tok.Text):
		out.AppendSource(output.Literal(tok.Text, 0))
	default:
		out.AppendSource(output.Literal(tok.Text, output.ConvertVariableName))
	}
}

func isLiteralLike(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '\'' {
		return true
	}
	c := s[0]
	if c >= '0' && c <= '9' {
		return true
	}
	if c == '-' && len(s) > 1 && ((s[1] >= '0' && s[1] <= '9') || s[1] == '.') {
		return true
	}
	return false
}

func (ev *Evaluator) handleErr(err error, pos token.Pos) {
	if ev.Env.Handler == nil {
		return
	}
	ev.Env.Handler.HandleError(wrapErr(err, pos))
}
