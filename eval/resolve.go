package eval

import (
	"github.com/kestrellang/kestrel/graph"
	"github.com/kestrellang/kestrel/token"
)

// ResolveReferences implements the reference resolver of §4.H: every
// Splice-kind Reference to name is reset and re-dispatched at its original
// call site. Once name's definition has been loaded, re-dispatch naturally
// takes the known-definition branch of the invocation dispatcher instead of
// the guess branch, which is how a guessed C-call gets replaced by a real
// one without any resolver-specific call-emission logic of its own.
//
// References are resolved against a snapshot (graph.ReferencesTo copies the
// pool) so that references recorded by this very pass — a splice that
// itself invokes something else unresolved — are picked up on the next
// outer iteration of the control loop's fixpoint, not this one.
func (ev *Evaluator) ResolveReferences(name string) (resolvedCount int, err error) {
	refs := ev.Env.Graph.ReferencesTo(name)
	if len(refs) > maxReferencesPerName {
		return 0, &InfiniteLoopSuspectedError{Name: name, Samples: sampleBlame(refs, 10)}
	}

	for _, ref := range refs {
		if ref.Kind != graph.Splice || ref.IsResolved {
			continue
		}
		ref.Splice.Reset()

		blame := ref.Tokens.At(ref.InvocationAt)
		resolveCtx := ref.Context.Resolving(name, blame)

		if derr := ev.dispatch(ref.Tokens, ref.InvocationAt, resolveCtx, ref.Splice); derr != nil {
			ev.handleErr(derr, blame.Pos)
			continue
		}

		ev.updateGuessState(ref, name)
		ref.IsResolved = true
		resolvedCount++
	}
	return resolvedCount, nil
}

// updateGuessState sets the (owner, name) guess state to Resolved when name
// is now a known definition, or Guessed otherwise, and records on ref
// whether that changed the state. The build pipeline's candidate selection
// does not consult the recorded change.
func (ev *Evaluator) updateGuessState(ref *graph.Reference, name string) {
	owner := ev.ownerDefinition(ref.Context)
	if owner == nil {
		return
	}
	st, ok := owner.References[name]
	if !ok {
		return
	}
	newState := graph.Guessed
	if def := ev.Env.Graph.FindDefinition(name); def != nil && (def.IsLoaded || def.Kind == graph.Function || def.Kind == graph.Variable) {
		newState = graph.Resolved
	}
	ref.GuessObservedChange = st.State != newState
	st.State = newState
}

func sampleBlame(refs []*graph.Reference, n int) []token.Token {
	var out []token.Token
	for i, r := range refs {
		if i >= n {
			break
		}
		out = append(out, r.Tokens.At(r.InvocationAt))
	}
	return out
}
