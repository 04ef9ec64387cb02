// Package graph implements the definition & reference graph of §4.C: named
// ObjectDefinitions, the per-definition/per-name reference indexes, and the
// guess-state machinery that the build pipeline and reference resolver
// drive forward.
package graph

import (
	"strconv"

	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/token"
)

// Kind tags what an ObjectDefinition is.
type Kind int

const (
	PseudoObject Kind = iota
	Function
	Variable
	CompileTimeMacro
	CompileTimeGenerator
	CompileTimeFunction
	CompileTimeExternalGenerator
)

func (k Kind) IsCompileTime() bool {
	switch k {
	case CompileTimeMacro, CompileTimeGenerator, CompileTimeFunction, CompileTimeExternalGenerator:
		return true
	default:
		return false
	}
}

// Features is a bitset distinguishing definitions that need C++-only
// language features from plain-C ones (SPEC_FULL §"required-features
// flags"). It is carried on each Definition as RequiredFeatures; neither
// the writer nor the build pipeline reads it.
type Features uint32

const (
	FeatureNone Features = 0
	FeatureCpp  Features = 1 << iota
	FeatureReferences
	FeatureTemplates
)

// Stage is the comptime build pipeline's per-object state machine (§4.G).
type Stage int

const (
	StageNone Stage = iota
	StageCompiling
	StageLinking
	StageLoading
	StageResolvingReferences
	StageFinished
)

func (s Stage) String() string {
	switch s {
	case StageCompiling:
		return "Compiling"
	case StageLinking:
		return "Linking"
	case StageLoading:
		return "Loading"
	case StageResolvingReferences:
		return "ResolvingReferences"
	case StageFinished:
		return "Finished"
	default:
		return "None"
	}
}

// MacroExpansion records one macro invocation and the tokens it produced,
// so the evaluator can reconstruct "what a macro-created definition looked
// like" for diagnostics.
type MacroExpansion struct {
	Invocation token.Token
	Produced   *token.Vector
}

// Definition is an ObjectDefinition (§3).
type Definition struct {
	Name string
	Kind Kind

	// InvocationToken is the token that triggered this definition.
	InvocationToken token.Token

	// References maps a referenced name to its ReferenceStatus, scoped to
	// this definition.
	References map[string]*ReferenceStatus

	Expansions []MacroExpansion

	IsRequired          bool
	EnvironmentRequired bool
	IsLoaded            bool
	ForbidBuild         bool

	// Output is this definition's module-level splice target. It is
	// never reparented: a replacement swaps contents via Output.Reset,
	// not by pointing outer sequences at a new Tree (§3 invariant).
	Output *output.Tree

	// CapturedContext is the EvaluatorContext at the point the definition
	// was created, reused when the definition's body must be
	// re-evaluated (e.g. after a comptime rebuild).
	CapturedContext ectx.Context

	// CompileTimeHeader is the optional header/import-library name
	// associated with a compile-time definition's build artifact.
	CompileTimeHeader string

	// GensymCounter is a per-definition uniqueness counter used by
	// gensym-style helpers to avoid name collisions in macro-expanded
	// code (SPEC_FULL "gensym-style unique naming").
	GensymCounter int

	RequiredFeatures Features

	Stage Stage

	// ParamTypeTokens is the parameter-type token list taken from this
	// definition's signature, used to validate it when it is registered
	// as a hook or compile-time-variable destructor (§4.I).
	ParamTypeTokens []token.Token
}

// NewDefinition constructs a Definition whose Output is a fresh,
// independently-owned Tree and whose reference map is ready to use.
func NewDefinition(name string, kind Kind, invocation token.Token) *Definition {
	return &Definition{
		Name:             name,
		Kind:             kind,
		InvocationToken:  invocation,
		References:       make(map[string]*ReferenceStatus),
		Output:           output.New(),
		RequiredFeatures: FeatureNone,
	}
}

// Gensym returns a name guaranteed unique within this definition by
// appending and incrementing GensymCounter.
func (d *Definition) Gensym(base string) string {
	d.GensymCounter++
	return base + "_" + strconv.Itoa(d.GensymCounter)
}

// HasUnresolvedReferences reports whether any name this definition refers
// to is still in guess state None or WaitingForLoad. A build pipeline
// failure against a definition with zero unresolved references cannot be
// explained by a missing upstream symbol still on its way in, so it is
// eligible to be marked ForbidBuild (§4.G, §7).
func (d *Definition) HasUnresolvedReferences() bool {
	for _, status := range d.References {
		if status.State == None || status.State == WaitingForLoad {
			return true
		}
	}
	return false
}
