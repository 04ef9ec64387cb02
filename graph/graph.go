package graph

import (
	art "github.com/kralicky/go-adaptive-radix-tree"

	"github.com/kestrellang/kestrel/diag"
	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/token"
)

// GlobalPseudoObjectName is the name of the definition that carries
// top-level (module-scope) references — the "global pseudo-object" of
// §4.C.
const GlobalPseudoObjectName = "%module%"

// IsBuiltinFunc reports whether name is already taken by a built-in macro,
// generator, or compile-time function — addDefinition must reject a
// colliding user definition the same way it rejects a duplicate name in
// the definition table itself.
type IsBuiltinFunc func(name string) bool

// Graph holds every ObjectDefinition, keyed by name in a radix tree so
// that both exact lookups (addDefinition/findDefinition) and ordered
// iteration (needed to produce deterministic "ten sample blame sites"
// diagnostics, §8) are backed by a single structure.
type Graph struct {
	defs       art.Tree
	refPool    art.Tree // name -> []*Reference across every definition
	isBuiltin  IsBuiltinFunc
	Global     *Definition
}

// New creates an empty Graph. isBuiltin may be nil if no built-in names
// need to be excluded (e.g. in tests).
func New(isBuiltin IsBuiltinFunc) *Graph {
	if isBuiltin == nil {
		isBuiltin = func(string) bool { return false }
	}
	g := &Graph{
		defs:      art.New(),
		refPool:   art.New(),
		isBuiltin: isBuiltin,
	}
	g.Global = NewDefinition(GlobalPseudoObjectName, PseudoObject, token.Token{})
	g.Global.EnvironmentRequired = true
	g.Global.IsRequired = true
	g.defs.Insert(art.Key(GlobalPseudoObjectName), g.Global)
	return g
}

// AddDefinition inserts def, failing with diag.AlreadyDefinedError if the
// name exists already (in the definition table or among the built-ins).
func (g *Graph) AddDefinition(def *Definition) error {
	if g.isBuiltin(def.Name) {
		return &diag.AlreadyDefinedError{Name: def.Name, IsBuiltin: true}
	}
	if existing, ok := g.defs.Search(art.Key(def.Name)); ok {
		prev := existing.(*Definition)
		return &diag.AlreadyDefinedError{Name: def.Name, PreviousDefinition: prev.InvocationToken.Pos}
	}
	g.defs.Insert(art.Key(def.Name), def)
	return nil
}

// FindDefinition returns the definition named name, or nil if none exists.
func (g *Graph) FindDefinition(name string) *Definition {
	if v, ok := g.defs.Search(art.Key(name)); ok {
		return v.(*Definition)
	}
	return nil
}

// Definitions returns every definition, in radix (lexicographic) key
// order — used by the required-ness propagation pass and by the build
// pipeline's candidate selection, both of which need a stable, repeatable
// iteration order across passes.
func (g *Graph) Definitions() []*Definition {
	var out []*Definition
	g.defs.ForEach(func(n art.Node) bool {
		out = append(out, n.Value().(*Definition))
		return true
	})
	return out
}

// AddReference records a reference from the enclosing definition named by
// ctx.DefinitionName (or the global pseudo-object, if empty) to
// referenceName, occurring at tokens[invocationAt]. It inserts or extends
// the ReferenceStatus for that (definition, name) pair and appends the new
// Reference to the per-name reference pool, maintaining the reference
// duality property of §8: every Reference appears in exactly one
// definition's status and exactly once in the name's pool.
func (g *Graph) AddReference(ctx ectx.Context, tokens *token.Vector, invocationAt int, referenceName string, kind ResolutionKind) *Reference {
	owner := g.Global
	if ctx.DefinitionName != "" {
		if d := g.FindDefinition(ctx.DefinitionName); d != nil {
			owner = d
		}
	}

	status, ok := owner.References[referenceName]
	if !ok {
		state := None
		if kind == AlreadyLoaded {
			state = Resolved
		}
		status = &ReferenceStatus{Name: referenceName, State: state}
		owner.References[referenceName] = status
	}

	ref := &Reference{
		Tokens:       tokens,
		InvocationAt: invocationAt,
		Context:      ctx,
		Kind:         kind,
	}
	status.References = append(status.References, ref)

	g.appendToPool(referenceName, ref)
	return ref
}

func (g *Graph) appendToPool(name string, ref *Reference) {
	if existing, ok := g.refPool.Search(art.Key(name)); ok {
		list := existing.([]*Reference)
		list = append(list, ref)
		g.refPool.Insert(art.Key(name), list)
		return
	}
	g.refPool.Insert(art.Key(name), []*Reference{ref})
}

// ReferencesTo returns a *copy* of the reference-pool slice for name, so
// callers may safely iterate while the evaluator appends more references
// to the same name underneath them (§4.C: "Iteration during build copies
// status pointers before iteration").
func (g *Graph) ReferencesTo(name string) []*Reference {
	existing, ok := g.refPool.Search(art.Key(name))
	if !ok {
		return nil
	}
	list := existing.([]*Reference)
	out := make([]*Reference, len(list))
	copy(out, list)
	return out
}

// RefreshPoolLen reports the live length of the pool for name. The
// resolver does not call it: eval.ResolveReferences iterates the snapshot
// returned by ReferencesTo instead.
func (g *Graph) RefreshPoolLen(name string) int {
	existing, ok := g.refPool.Search(art.Key(name))
	if !ok {
		return 0
	}
	return len(existing.([]*Reference))
}
