package eval

import (
	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/env"
	"github.com/kestrellang/kestrel/graph"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/token"
)

// dispatch implements the invocation dispatcher (§4.D): a strict,
// first-match-wins chain over macros, generators, already-callable
// definitions, and finally the unknown-reference (guess) path.
func (ev *Evaluator) dispatch(tokens *token.Vector, openIndex int, ctx ectx.Context, out *output.Tree) error {
	closeIdx := token.FindCloseParen(tokens, openIndex)
	headIdx := openIndex + 1
	if headIdx >= closeIdx || tokens.At(headIdx).Kind != token.Symbol {
		return &token.InvocationError{At: tokens.At(openIndex), Message: "invocation head must be a symbol"}
	}
	head := tokens.At(headIdx)
	name := head.Text
	inv := env.Invocation{Tokens: tokens, Open: openIndex, Context: ctx}

	if m, ok := ev.Env.LookupMacro(name); ok {
		return ev.dispatchMacro(m, inv, out)
	}

	if g, ok := ev.Env.LookupGenerator(name); ok {
		return g.Generator(ev, inv, out)
	}

	if def := ev.Env.Graph.FindDefinition(name); def != nil {
		callable := def.Kind == graph.Function || def.Kind == graph.Variable ||
			(def.Kind == graph.CompileTimeFunction && def.IsLoaded)
		if callable {
			ev.emitCall(tokens, openIndex, closeIdx, ctx, out, name, output.ConvertFunctionName)
			if ctx.ResolvingReference != name {
				ev.Env.Graph.AddReference(ctx, tokens, openIndex, name, graph.AlreadyLoaded)
			}
			return nil
		}
	}

	return ev.dispatchUnknown(tokens, openIndex, closeIdx, ctx, out, name)
}

// dispatchMacro expands inv through m.Macro, validates the result, and
// re-enters evaluation over the expansion with the same context (§4.D).
func (ev *Evaluator) dispatchMacro(m *env.Callable, inv env.Invocation, out *output.Tree) error {
	expansion, ok := m.Macro(ev, inv)
	if !ok {
		return &GeneratorReportedFailureError{Name: inv.Head().Text, At: inv.Head()}
	}
	if expansion == nil {
		return nil
	}
	if err := token.ValidateParens(expansion); err != nil {
		return &GeneratorReportedFailureError{Name: inv.Head().Text, At: inv.Head(), Note: err.Error()}
	}
	expansion.Freeze()

	owner := ev.ownerDefinition(inv.Context)
	owner.Expansions = append(owner.Expansions, graph.MacroExpansion{Invocation: inv.Head(), Produced: expansion})

	ev.EvaluateTopLevel(expansion, inv.Context, out)
	return nil
}

// EvaluateTopLevel evaluates a sequence of sibling top-level expressions
// (not nested inside any enclosing invocation) until the vector is
// exhausted, as used both for a freshly tokenized file and for re-entering
// evaluation over a macro's expansion (§4.D, §4.E).
func (ev *Evaluator) EvaluateTopLevel(tokens *token.Vector, ctx ectx.Context, out *output.Tree) int {
	errCount := 0
	idx := 0
	for idx < tokens.Len() {
		next, ec := ev.Evaluate(tokens, idx, ctx, out)
		errCount += ec
		idx = next
	}
	return errCount
}

// emitCall writes a direct function-call invocation: name, an open paren,
// the comma-separated argument list (each evaluated in ExpressionsOnly
// scope), a close paren, and — only when this call occurs directly in
// statement position, not nested inside another expression — a trailing
// semicolon.
func (ev *Evaluator) emitCall(tokens *token.Vector, openIndex, closeIdx int, ctx ectx.Context, out *output.Tree, name string, nameMod output.Modifier) {
	out.AppendSource(output.Literal(name, nameMod))
	out.AppendSource(output.Literal("(", output.OpenParenMod))
	argCtx := ctx.WithScope(ectx.ExpressionsOnly).WithDelimiter(output.Literal(",", output.ListSeparator|output.SpaceAfter))
	ev.EvaluateAll(tokens, openIndex+2, argCtx, out)
	out.AppendSource(output.Literal(")", output.CloseParenMod))
	if ctx.Scope != ectx.ExpressionsOnly {
		out.AppendSource(output.Literal(";", output.EndStatement|output.NewlineAfter))
	}
	_ = closeIdx
}

// dispatchUnknown implements the unknown-reference branch of §4.D: a fresh
// splice is allocated and wired into the enclosing Output, an
// ObjectReference is recorded against the owning definition, and — since a
// caller elsewhere may already have guessed this same name as an
// externally-linked C function — a guessed call is emitted immediately so
// every splice for this name has a stable placeholder between fixpoint
// passes, rather than sitting empty (§3 GuessState, §4.D, §4.H).
func (ev *Evaluator) dispatchUnknown(tokens *token.Vector, openIndex, closeIdx int, ctx ectx.Context, out *output.Tree, name string) error {
	splice := output.New()
	out.AppendSplice(splice)

	ref := ev.Env.Graph.AddReference(ctx, tokens, openIndex, name, graph.Splice)
	ref.Splice = splice

	ev.emitCall(tokens, openIndex, closeIdx, ctx, splice, name, 0)

	if owner := ev.ownerDefinition(ctx); owner != nil {
		if st, ok := owner.References[name]; ok {
			st.State = graph.Guessed
		}
	}
	return nil
}

func (ev *Evaluator) ownerDefinition(ctx ectx.Context) *graph.Definition {
	return ownerDefinitionOf(ev.Env.Graph, ctx)
}

// ownerDefinitionOf resolves ctx.DefinitionName against g, falling back to
// the global pseudo-object — shared by the Evaluator methods and the
// built-in generators, which only have access to the graph directly.
func ownerDefinitionOf(g *graph.Graph, ctx ectx.Context) *graph.Definition {
	if ctx.DefinitionName != "" {
		if d := g.FindDefinition(ctx.DefinitionName); d != nil {
			return d
		}
	}
	return g.Global
}
