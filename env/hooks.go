package env

import (
	"reflect"

	"github.com/kestrellang/kestrel/diag"
	"github.com/kestrellang/kestrel/hook"
	"github.com/kestrellang/kestrel/token"
)

// emptySignature is the parameter-type token list that hooks of both kinds
// (pre-link and post-references-resolved) must match (§4.I). Both
// hook kinds in the core take no parameters in this module's surface
// (they mutate the environment they're given at registration time via
// closure capture), so the expected signature is empty; a compile-time
// function registered with a non-empty ParamTypeTokens list is rejected.
var emptySignature []token.Token

// AddPreLinkHook registers a pre-link hook (gets to mutate the final link
// command) if it is not already registered and its signature matches.
func (e *Environment) AddPreLinkHook(name string, fn hook.Func, paramTypeTokens []token.Token, userPriority int, blame token.Token) error {
	if !hook.SignaturesMatch(emptySignature, paramTypeTokens) {
		return &diag.SignatureMismatchError{FunctionName: name, Expected: nil, Got: textsOf(paramTypeTokens), At: blame.Pos}
	}
	key := reflect.ValueOf(fn).Pointer()
	e.PreLinkHooks.Add(fn, key, userPriority)
	return nil
}

// AddPostReferencesResolvedHook registers a hook that runs once a fixpoint
// of reference resolution is reached; it may mutate the graph, which
// forces another fixpoint iteration (§4.I, top-level control loop).
func (e *Environment) AddPostReferencesResolvedHook(name string, fn hook.Func, paramTypeTokens []token.Token, userPriority int, blame token.Token) error {
	if !hook.SignaturesMatch(emptySignature, paramTypeTokens) {
		return &diag.SignatureMismatchError{FunctionName: name, Expected: nil, Got: textsOf(paramTypeTokens), At: blame.Pos}
	}
	key := reflect.ValueOf(fn).Pointer()
	e.PostReferencesResolvedHooks.Add(fn, key, userPriority)
	return nil
}

func textsOf(toks []token.Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Text
	}
	return out
}
