package graph

import (
	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/token"
)

// ResolutionKind tags how an ObjectReference should be handled once its
// referent is known (§3).
type ResolutionKind int

const (
	Splice ResolutionKind = iota
	AlreadyLoaded
)

// GuessState is the per (definition, name) guess state (§3).
type GuessState int

const (
	// None: never touched.
	None GuessState = iota
	// Guessed: assumed an externally-linked C/C++ function, emitted as a
	// direct call.
	Guessed
	// WaitingForLoad: known to be a compile-time object not yet built.
	WaitingForLoad
	// Resolved: known, and the splice has been (re)evaluated correctly.
	Resolved
)

func (g GuessState) String() string {
	switch g {
	case Guessed:
		return "Guessed"
	case WaitingForLoad:
		return "WaitingForLoad"
	case Resolved:
		return "Resolved"
	default:
		return "None"
	}
}

// Reference is an ObjectReference (§3): one call site that named an
// unresolved (or tentatively-resolved) symbol.
type Reference struct {
	Tokens       *token.Vector
	InvocationAt int
	Context      ectx.Context
	Kind         ResolutionKind
	Splice       *output.Tree
	IsResolved   bool

	// GuessObservedChange records whether a guess re-evaluation produced
	// an observable state change on the most recent resolve of this
	// reference. The build pipeline's candidate selection (Pipeline.pending)
	// does not read it.
	GuessObservedChange bool
}

// ReferenceStatus is every Reference from one definition to one name, plus
// that pair's guess state (§3).
type ReferenceStatus struct {
	Name       string
	References []*Reference
	State      GuessState
}
